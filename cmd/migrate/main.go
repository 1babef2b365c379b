// Command migrate applies the goose migrations for the verdict audit store.
//
// Usage:
//
//	go run ./cmd/migrate up          # Apply all pending migrations
//	go run ./cmd/migrate down        # Roll back the last migration
//	go run ./cmd/migrate status      # Show migration status
//	go run ./cmd/migrate version     # Show current schema version
//	go run ./cmd/migrate redo        # Roll back and re-apply last migration
//
// DATABASE_URL selects the database and MIGRATIONS_DIR overrides the
// migrations directory. Both may come from a .env file.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/mbd888/verdict/internal/fraud"
	"github.com/mbd888/verdict/internal/logging"
)

const usage = "usage: migrate <up|down|status|version|redo|up-to <version>|down-to <version>>"

// commands lists the goose commands and how many arguments each takes.
var commands = map[string]int{
	"up":      0,
	"down":    0,
	"status":  0,
	"version": 0,
	"redo":    0,
	"up-to":   1,
	"down-to": 1,
}

var errUsage = errors.New(usage)

func main() {
	_ = godotenv.Load()

	logger := logging.New(getenv("LOG_LEVEL", "info"), getenv("LOG_FORMAT", "text"))
	if err := run(context.Background(), logger, os.Args[1:], os.Getenv); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

// run validates the command before touching the database.
func run(ctx context.Context, logger *slog.Logger, args []string, env func(string) string) error {
	if len(args) == 0 {
		return errUsage
	}
	command, rest := args[0], args[1:]
	want, ok := commands[command]
	if !ok || len(rest) != want {
		return fmt.Errorf("%w (got %q)", errUsage, strings.Join(args, " "))
	}

	dbURL := env("DATABASE_URL")
	if dbURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	dir := env("MIGRATIONS_DIR")
	if dir == "" {
		dir = fraud.MigrationsDir
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	goose.SetLogger(gooseLogger{logger})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	logger.Info("running migration", "command", command, "dir", dir)
	if err := goose.RunContext(ctx, command, db, dir, rest...); err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	return nil
}

// gooseLogger routes goose output through slog.
type gooseLogger struct{ l *slog.Logger }

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.l.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.l.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
