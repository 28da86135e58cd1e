package sqlite

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const driverName = "sqlite"

// Config describes how to open the SQLite database.
type Config struct {
	// Path is a file path or a "file:" URI. Query parameters on a URI are kept.
	Path            string
	BusyTimeout     time.Duration
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns settings suitable for a single server process.
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		BusyTimeout:     5 * time.Second,
		MaxOpenConns:    4,
		ConnMaxLifetime: time.Hour,
	}
}

// DSN builds a modernc.org/sqlite data source name. The pragmas are applied
// to every new connection. Transactions begin with BEGIN IMMEDIATE.
func (c Config) DSN() string {
	base := c.Path
	if !strings.HasPrefix(base, "file:") {
		base = "file:" + base
	}

	params := url.Values{}
	if i := strings.IndexByte(base, '?'); i >= 0 {
		params, _ = url.ParseQuery(base[i+1:])
		base = base[:i]
	}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout.Milliseconds()))
	if params.Get("_txlock") == "" {
		params.Set("_txlock", "immediate")
	}
	return base + "?" + params.Encode()
}
