package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aisaas/backend/internal/config"
	"github.com/aisaas/backend/internal/db"
	"github.com/aisaas/backend/internal/handlers"
	"github.com/aisaas/backend/internal/httpserver"
	"github.com/aisaas/backend/internal/logging"
	"github.com/aisaas/backend/internal/middleware"
	"github.com/aisaas/backend/internal/provision"
	"github.com/aisaas/backend/internal/repositories"
)

// Run bootstraps the backend application.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected command: serve, migrate, or seed")
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, args[1:])
	case "seed":
		return runSeed(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// interruptedJobMessage is recorded on jobs a previous process left unfinished.
const interruptedJobMessage = "generation interrupted by server restart"

// writeTimeoutMargin covers storage upload and response encoding after the completion wait.
const writeTimeoutMargin = time.Minute

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)
	ctx = logging.WithLogger(ctx, logger)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	failed, err := repositories.NewPostgresJobRepository(pool).FailUnfinished(ctx, interruptedJobMessage)
	if err != nil {
		return fmt.Errorf("fail unfinished jobs: %w", err)
	}
	if failed > 0 {
		logger.Warn("marked interrupted generation jobs as failed", "count", failed)
	}

	if cfg.Admin.ProvisionOnStart {
		result, _, err := newProvisioner(pool).EnsureAdmin(ctx, adminSpec(cfg))
		if err != nil {
			return fmt.Errorf("provision admin: %w", err)
		}
		logger.Info("admin provisioning finished", "result", result.String())
	}

	svc, cleanup, err := buildDependencies(ctx, pool, cfg)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, svc.Dependencies)

	handler := middleware.RequestLogger(logger)(middleware.Authenticate(svc.Auth)(mux))

	srv := httpserver.New(cfg.AppPort, handler, cfg.Generation.MaxWait+writeTimeoutMargin)

	logger.Info("starting http server", "port", cfg.AppPort, "storage", cfg.Storage.Backend)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			drainCtx, cancel := context.WithTimeout(context.Background(), httpserver.DrainTimeout)
			defer cancel()
			_ = cleanup(drainCtx)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	shutdownErr := srv.Shutdown(shutdownCtx)

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), httpserver.DrainTimeout)
	defer cancelDrain()

	if err := cleanup(drainCtx); err != nil {
		logger.Error("release dependencies", "error", err)
		if shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

const (
	migrationMaxRetries  = 3
	migrationBaseBackoff = 100 * time.Millisecond
	migrationMaxBackoff  = 3 * time.Second
)

var retryablePgErrorCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

func runMigrations(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	command := "up"
	if len(args) > 0 && args[0] != "" {
		command = args[0]
	}
	switch command {
	case "up", "status":
	case "down":
		return errors.New("down migrations are not supported")
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}

	dir, names, err := migrationFiles(cfg.MigrationDir)
	if err != nil {
		return err
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	applied, err := appliedMigrations(ctx, conn)
	if err != nil {
		return err
	}

	if command == "status" {
		for _, name := range names {
			mark := " "
			if applied[name] {
				mark = "x"
			}
			fmt.Printf("[%s] %s\n", mark, name)
		}
		return nil
	}

	pending := 0
	for _, name := range names {
		if applied[name] {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := applyMigrationWithRetry(ctx, conn, name, string(contents)); err != nil {
			return err
		}
		pending++
		fmt.Printf("applied migration %s\n", name)
	}
	if pending == 0 {
		fmt.Println("database is up to date")
	}
	return nil
}

// migrationFiles resolves dir against the working directory and lists its .sql files in
// lexical order.
func migrationFiles(dir string) (string, []string, error) {
	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return "", nil, fmt.Errorf("determine working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return dir, names, nil
}

func appliedMigrations(ctx context.Context, conn *pgxpool.Conn) (map[string]bool, error) {
	if _, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("fetch applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}

	applied := make(map[string]bool, len(versions))
	for _, version := range versions {
		applied[version] = true
	}
	return applied, nil
}

func runSeed(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected seed name: admin or plans")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)
	ctx = logging.WithLogger(ctx, logger)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	provisioner := newProvisioner(pool)

	switch args[0] {
	case "plans":
		if err := provisioner.EnsureDefaultPlans(ctx); err != nil {
			return err
		}
		fmt.Printf("ensured %d plans\n", len(provision.DefaultPlans))
		return nil
	case "admin":
		result, admin, err := provisioner.EnsureAdmin(ctx, adminSpec(cfg))
		if err != nil {
			return err
		}
		switch result {
		case provision.ResultCreated:
			fmt.Printf("admin created: %s\n", admin.Email)
		case provision.ResultAlreadyExists:
			fmt.Printf("admin already exists: %s\n", admin.Email)
		case provision.ResultPlanMissing:
			return fmt.Errorf("plan %q not found; run migrations and seed plans first", provision.AdminPlan)
		}
		return nil
	default:
		return fmt.Errorf("unknown seed %q", args[0])
	}
}

func newProvisioner(pool db.Pool) *provision.Provisioner {
	return &provision.Provisioner{
		Users: repositories.NewPostgresUserRepository(pool),
		Plans: repositories.NewPostgresPlanRepository(pool),
	}
}

func adminSpec(cfg config.Config) provision.AdminSpec {
	return provision.AdminSpec{
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
		Username: cfg.Admin.Username,
		FullName: cfg.Admin.FullName,
	}
}

func applyMigrationWithRetry(ctx context.Context, conn *pgxpool.Conn, name string, contents string) error {
	var attempt int
	for attempt = 0; attempt < migrationMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * migrationBaseBackoff
			if backoff > migrationMaxBackoff {
				backoff = migrationMaxBackoff
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			timer.Stop()
		}

		tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return fmt.Errorf("begin migration transaction for %s: %w", name, err)
		}

		if _, err := tx.Exec(ctx, contents); err != nil {
			_ = tx.Rollback(ctx)
			if shouldRetryMigration(err) && attempt < migrationMaxRetries-1 {
				fmt.Printf("transient error applying migration %s (attempt %d/%d): %v\n", name, attempt+1, migrationMaxRetries, err)
				continue
			}
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback(ctx)
			if shouldRetryMigration(err) && attempt < migrationMaxRetries-1 {
				fmt.Printf("transient error recording migration %s (attempt %d/%d): %v\n", name, attempt+1, migrationMaxRetries, err)
				continue
			}
			return fmt.Errorf("record migration %s: %w", name, err)
		}

		if err := tx.Commit(ctx); err != nil {
			_ = tx.Rollback(ctx)
			if shouldRetryMigration(err) && attempt < migrationMaxRetries-1 {
				fmt.Printf("transient error committing migration %s (attempt %d/%d): %v\n", name, attempt+1, migrationMaxRetries, err)
				continue
			}
			return fmt.Errorf("commit migration %s: %w", name, err)
		}

		return nil
	}

	return fmt.Errorf("apply migration %s: exceeded max retries (%d)", name, attempt)
}

func shouldRetryMigration(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := retryablePgErrorCodes[pgErr.Code]; ok {
			return true
		}
	}

	if errors.Is(err, pgx.ErrTxClosed) {
		return true
	}

	return false
}
