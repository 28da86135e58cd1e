package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key when read from the environment.
const EnvPrefix = "SCHEDULER"

// StoreKind selects the schedule store backend.
type StoreKind string

const (
	StoreMemory   StoreKind = "memory"
	StoreSQLite   StoreKind = "sqlite"
	StorePostgres StoreKind = "postgres"
)

// Config captures environment driven configuration values for the scheduler service.
type Config struct {
	HTTPPort      int
	Store         StoreKind
	SQLiteDSN     string
	PostgresDSN   string
	MigrationsDir string
	// RedisAddr enables the Redis backed resync lock when set.
	RedisAddr       string
	LockTTL         time.Duration
	OpenSeriesWeeks int
	// ResyncCron schedules a periodic resync of every class. Empty disables it.
	ResyncCron string
	// StaleResyncInterval is how often classes whose resync failed are
	// retried. Zero disables the retry loop.
	StaleResyncInterval time.Duration
	LogLevel            slog.Level
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", "8080")
	v.SetDefault("store", string(StoreSQLite))
	v.SetDefault("sqlite_dsn", "file:scheduler.db")
	v.SetDefault("lock_ttl", "10s")
	v.SetDefault("open_series_weeks", "16")
	v.SetDefault("stale_resync_interval", "5m")
	v.SetDefault("log_level", "info")
}

// Load parses configuration values from the current process environment.
//
// A dotenv file named by SCHEDULER_ENV_FILE, or .env in the working
// directory, is read first. Variables already present in the environment
// take precedence over the file.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return parse(v)
}

func loadEnvFile() error {
	path := strings.TrimSpace(os.Getenv(EnvPrefix + "_ENV_FILE"))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func parse(v *viper.Viper) (Config, error) {
	cfg := Config{
		SQLiteDSN:     strings.TrimSpace(v.GetString("sqlite_dsn")),
		PostgresDSN:   strings.TrimSpace(v.GetString("postgres_dsn")),
		MigrationsDir: strings.TrimSpace(v.GetString("migrations_dir")),
		RedisAddr:     strings.TrimSpace(v.GetString("redis_addr")),
		ResyncCron:    strings.TrimSpace(v.GetString("resync_cron")),
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)
	key := func(name string) string { return EnvPrefix + "_" + strings.ToUpper(name) }

	if port, err := strconv.Atoi(strings.TrimSpace(v.GetString("http_port"))); err != nil || port <= 0 || port > 65535 {
		invalid = append(invalid, key("http_port"))
	} else {
		cfg.HTTPPort = port
	}

	switch store := StoreKind(strings.ToLower(strings.TrimSpace(v.GetString("store")))); store {
	case StoreMemory, StoreSQLite, StorePostgres:
		cfg.Store = store
	default:
		invalid = append(invalid, key("store"))
	}

	switch cfg.Store {
	case StoreSQLite:
		if cfg.SQLiteDSN == "" {
			missing = append(missing, key("sqlite_dsn"))
		}
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			missing = append(missing, key("postgres_dsn"))
		}
	}

	if ttl, err := time.ParseDuration(strings.TrimSpace(v.GetString("lock_ttl"))); err != nil || ttl <= 0 {
		invalid = append(invalid, key("lock_ttl"))
	} else {
		cfg.LockTTL = ttl
	}

	if weeks, err := strconv.Atoi(strings.TrimSpace(v.GetString("open_series_weeks"))); err != nil || weeks <= 0 {
		invalid = append(invalid, key("open_series_weeks"))
	} else {
		cfg.OpenSeriesWeeks = weeks
	}

	if cfg.ResyncCron != "" {
		if _, err := cron.ParseStandard(cfg.ResyncCron); err != nil {
			invalid = append(invalid, key("resync_cron"))
		}
	}

	if interval, err := time.ParseDuration(strings.TrimSpace(v.GetString("stale_resync_interval"))); err != nil || interval < 0 {
		invalid = append(invalid, key("stale_resync_interval"))
	} else {
		cfg.StaleResyncInterval = interval
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(v.GetString("log_level")))); err != nil {
		invalid = append(invalid, key("log_level"))
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", ")))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
