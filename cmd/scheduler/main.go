package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/example/class-scheduler/internal/application"
	"github.com/example/class-scheduler/internal/config"
	httptransport "github.com/example/class-scheduler/internal/http"
	"github.com/example/class-scheduler/internal/lock"
	"github.com/example/class-scheduler/internal/logging"
	"github.com/example/class-scheduler/internal/persistence"
	"github.com/example/class-scheduler/internal/persistence/memory"
	"github.com/example/class-scheduler/internal/persistence/postgres"
	"github.com/example/class-scheduler/internal/persistence/sqlite"
)

const usage = `usage: scheduler [command]

commands:
  serve              run the HTTP API (default)
  migrate            apply pending schema migrations and exit
  resync [-class ID] recompute total sessions for one class or every class
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve", "migrate", "resync":
	case "help", "-h", "--help":
		_, err := io.WriteString(out, usage)
		return err
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.New(out, cfg.LogLevel)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "store", cfg.Store, "error", err)
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		return err
	}
	if command == "migrate" {
		logger.Info("migrations applied", "store", cfg.Store)
		return nil
	}

	locker, closeLocker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect lock backend", "redis_addr", cfg.RedisAddr, "error", err)
		return err
	}
	defer closeLocker()

	sessions := application.NewSessionSynchronizerWithLogger(store, store, store, locker, cfg.OpenSeriesWeeks, time.Now, logger)

	if command == "resync" {
		return runResync(ctx, args, sessions, out, logger)
	}

	schedules := application.NewScheduleServiceWithLogger(store, store, sessions, uuid.NewString, time.Now, logger)
	return serve(ctx, cfg, schedules, sessions, logger)
}

// backend is a store offering every repository the services consume.
type backend interface {
	persistence.ScheduleRepository
	persistence.ClassRepository
	persistence.EnrollmentRepository
	Migrate(ctx context.Context) error
	Close() error
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory storage; data is lost on exit")
		return memory.New(), nil
	case config.StoreSQLite:
		opts := []sqlite.Option{sqlite.WithLogger(logger)}
		if cfg.MigrationsDir != "" {
			opts = append(opts, sqlite.WithMigrations(os.DirFS(cfg.MigrationsDir)))
		}
		return sqlite.Open(ctx, sqlite.DefaultConfig(cfg.SQLiteDSN), opts...)
	case config.StorePostgres:
		return postgres.Open(ctx, postgres.DefaultConfig(cfg.PostgresDSN), logger)
	default:
		return nil, fmt.Errorf("unsupported store %q", cfg.Store)
	}
}

// newLocker returns the Redis locker when an address is configured so that
// several server processes serialize resyncs of the same class.
func newLocker(ctx context.Context, cfg config.Config, logger *slog.Logger) (lock.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		return lock.NewLocal(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}

	closeClient := func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close redis client", "error", err)
		}
	}
	return lock.NewRedis(client, lock.RedisOptions{TTL: cfg.LockTTL}, logger), closeClient, nil
}

func runResync(ctx context.Context, args []string, sessions *application.SessionSynchronizer, out io.Writer, logger *slog.Logger) error {
	flags := flag.NewFlagSet("resync", flag.ContinueOnError)
	flags.SetOutput(out)
	classID := flags.String("class", "", "resync only this class")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *classID == "" {
		count, err := sessions.ResyncAll(ctx)
		if err != nil {
			return fmt.Errorf("resync failed after %d classes: %w", count, err)
		}
		logger.Info("resync completed", "classes", count)
		return nil
	}

	result, err := sessions.ResyncClass(ctx, *classID)
	if err != nil {
		return fmt.Errorf("resync class %s: %w", *classID, err)
	}
	return json.NewEncoder(out).Encode(result)
}

func serve(ctx context.Context, cfg config.Config, schedules *application.ScheduleService, sessions *application.SessionSynchronizer, logger *slog.Logger) error {
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Schedules:  httptransport.NewScheduleHandler(schedules, logger),
		Resync:     httptransport.NewResyncHandler(sessions, logger),
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	stopJobs, err := startBackgroundJobs(ctx, cfg, sessions, logger)
	if err != nil {
		return err
	}
	defer stopJobs()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("scheduler API listening", "addr", server.Addr, "store", cfg.Store)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		return err
	}
	return nil
}

// startBackgroundJobs schedules the periodic full resync and the retry loop
// for stale classes. The returned func stops both and waits for a running
// cron job to finish.
func startBackgroundJobs(ctx context.Context, cfg config.Config, sessions *application.SessionSynchronizer, logger *slog.Logger) (func(), error) {
	jobCtx, cancel := context.WithCancel(ctx)
	stops := []func(){cancel}

	if cfg.ResyncCron != "" {
		scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
		if _, err := scheduler.AddFunc(cfg.ResyncCron, func() {
			if _, err := sessions.ResyncAll(jobCtx); err != nil {
				logger.Warn("scheduled resync incomplete", "error", err)
			}
		}); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule resync %q: %w", cfg.ResyncCron, err)
		}
		scheduler.Start()
		logger.Info("periodic resync scheduled", "cron", cfg.ResyncCron)
		stops = append(stops, func() { <-scheduler.Stop().Done() })
	}

	if cfg.StaleResyncInterval > 0 {
		done := make(chan struct{})
		go func() {
			defer close(done)
			retryStale(jobCtx, cfg.StaleResyncInterval, sessions, logger)
		}()
		stops = append(stops, func() { <-done })
	}

	return func() {
		for _, stop := range stops {
			stop()
		}
	}, nil
}

func retryStale(ctx context.Context, interval time.Duration, sessions *application.SessionSynchronizer, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := sessions.ResyncStale(ctx)
			if err != nil {
				logger.Warn("stale class resync incomplete", "resynced", count, "error", err)
				continue
			}
			if count > 0 {
				logger.Info("stale classes resynced", "resynced", count)
			}
		}
	}
}
