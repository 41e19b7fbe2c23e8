package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/text/language"

	"github.com/erazemk/lombard/internal/api"
	"github.com/erazemk/lombard/internal/auth"
	"github.com/erazemk/lombard/internal/config"
	"github.com/erazemk/lombard/internal/db"
	"github.com/erazemk/lombard/internal/model"
	"github.com/erazemk/lombard/internal/schema"
	"github.com/erazemk/lombard/internal/store"
	"github.com/erazemk/lombard/internal/task"
	"github.com/erazemk/lombard/internal/web"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// Returns a cleanup function that closes the log file (if opened).
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func usage() {
	fmt.Fprint(os.Stdout, `Usage: lombard [flags]

Every flag can also be set as LOMBARD_<NAME> in the environment or a .env
file, or as <name> in the --config file.

Flags:
`)
	fmt.Fprint(os.Stdout, config.NewFlagSet("lombard").FlagUsages())
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			usage()
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		usage()
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	registry := schema.Default()
	mux := http.NewServeMux()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cookieSecret := []byte(cfg.CookieSecret)
	if cfg.API {
		database, err := openDatabase(cfg)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer database.Close()

		// Load JWT secret from database (auto-generated on first run).
		jwtSecret, err := store.GetJWTSecret(ctx, database)
		if err != nil {
			slog.Error("failed to get JWT secret", "error", err)
			os.Exit(1)
		}

		if len(cookieSecret) == 0 {
			secret, err := store.GetCookieSecret(ctx, database)
			if err != nil {
				slog.Error("failed to get cookie secret", "error", err)
				os.Exit(1)
			}
			cookieSecret = []byte(secret)
		}

		apiRouter := api.NewRouter(database, jwtSecret, api.Options{Schema: registry})
		mux.Handle("/api/", apiRouter)
		mux.Handle("/healthz", apiRouter)

		go sweep(ctx, database, time.Hour)
	}

	tag, err := language.Parse(cfg.Language)
	if err != nil {
		slog.Warn("unknown collation language, using English", "language", cfg.Language)
		tag = language.English
	}

	backendURL := cfg.Backend(api.Prefix)
	webRouter, err := web.NewRouter(web.Options{
		BackendURL:    backendURL,
		Timeout:       cfg.BackendTimeout,
		Schema:        registry,
		Tasks:         task.NewRegistry(),
		PageSize:      cfg.PageSize,
		SessionTTL:    cfg.SessionTTL,
		SecureCookies: cfg.SecureCookies,
		CookieSecret:  cookieSecret,
		Language:      tag,
	})
	if err != nil {
		slog.Error("failed to set up web router", "error", err)
		os.Exit(1)
	}
	mux.Handle("/", webRouter)

	handler := api.LoggingMiddleware(mux)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr, "api", cfg.API, "backend", backendURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

// openDatabase opens the database, creating it with an admin account when
// the file does not exist yet.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	if _, err := os.Stat(cfg.DB); os.IsNotExist(err) {
		database, password, err := initDatabase(cfg.DB, cfg.AdminEmail)
		if err != nil {
			return nil, fmt.Errorf("initializing database: %w", err)
		}
		database.Close()

		printInitResult(cfg.DB, cfg.AdminEmail, password)
		fmt.Println()
	}

	database, err := db.Open(cfg.DB)
	if err != nil {
		return nil, err
	}

	// Ensure schema exists (idempotent).
	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	slog.Info("database ready", "path", cfg.DB)
	return database, nil
}

// sweep expires overdue pawns and purges stale tokens and codes, once at
// start and then every interval until ctx is done.
func sweep(ctx context.Context, database *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if n, err := store.ExpireOverdue(ctx, database, model.Today()); err != nil {
			slog.Error("failed to expire overdue pawns", "error", err)
		} else if n > 0 {
			slog.Info("expired overdue pawns", "count", n)
		}
		if n, err := store.PurgeExpired(ctx, database, time.Now()); err != nil {
			slog.Error("failed to purge expired tokens", "error", err)
		} else if n > 0 {
			slog.Info("purged expired tokens", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// initDatabase creates a new database, ensures the schema, and creates the admin user.
func initDatabase(path, adminEmail string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("ensuring schema: %w", err)
	}

	password, err := generatePassword(16)
	if err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	ctx := context.Background()
	_, err = store.CreateUser(ctx, database, "Admin", adminEmail, hash, model.RoleAdmin)
	if err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("creating admin user: %w", err)
	}

	return database, password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, email, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it is shown only once.")
	fmt.Println("Use the forgot-password flow to change it later.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
