package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/class-scheduler/internal/logging"
)

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	t.Run("attaches a request scoped logger and records the status", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		base := slog.New(slog.NewJSONHandler(&buf, nil))

		var (
			sawLogger bool
			requestID string
		)
		handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sawLogger = LoggerFromContext(r.Context()) != nil
			requestID = logging.RequestID(r.Context())
			w.WriteHeader(http.StatusTeapot)
		}))

		req := httptest.NewRequest(http.MethodGet, "/schedules", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if !sawLogger {
			t.Fatalf("expected logger in request context")
		}
		if requestID != "req-42" {
			t.Fatalf("expected request id in context, got %q", requestID)
		}
		if got := rec.Header().Get(RequestIDHeader); got != "req-42" {
			t.Fatalf("expected incoming request id to be echoed, got %q", got)
		}

		var entry map[string]any
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		if entry["msg"] != "request completed" || entry["request_id"] != "req-42" {
			t.Fatalf("unexpected log entry: %v", entry)
		}
		if status, _ := entry["status"].(float64); int(status) != http.StatusTeapot {
			t.Fatalf("expected status 418 in log, got %v", entry["status"])
		}
	})

	t.Run("generates a request id when none is given", func(t *testing.T) {
		t.Parallel()

		handler := RequestLogger(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if got := rec.Header().Get(RequestIDHeader); len(got) != 36 {
			t.Fatalf("expected a generated uuid, got %q", got)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}
