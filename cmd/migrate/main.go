package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/permitflow/backend/internal/infrastructure/config"
	"github.com/permitflow/backend/internal/infrastructure/logger"
	"github.com/permitflow/backend/internal/infrastructure/migration"
	"github.com/permitflow/backend/migrations"
	"go.uber.org/zap"
)

func main() {
	var (
		migrationsPath string
		logLevel       string
	)
	flag.StringVar(&migrationsPath, "path", "", "Read migrations from this directory instead of the embedded set")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(logger.Config{Level: logLevel, Format: "console", Output: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	switch command {
	case "create":
		if len(args) < 2 {
			log.Fatal("Migration name required. Usage: migrate -path ./migrations create <name>")
		}
		dir := migrationsPath
		if dir == "" {
			dir = "migrations"
		}
		mf, err := migration.CreateMigration(dir, args[1])
		if err != nil {
			log.Fatal("Failed to create migration", zap.Error(err))
		}
		log.Info("Migration created", zap.Uint("version", mf.Version), zap.String("up_file", mf.UpPath))
		return
	case "list":
		if migrationsPath == "" {
			entries, err := migrations.FS.ReadDir(".")
			if err != nil {
				log.Fatal("Failed to list embedded migrations", zap.Error(err))
			}
			for _, e := range entries {
				fmt.Println("  -", e.Name())
			}
			return
		}
		files, err := migration.ListMigrations(migrationsPath)
		if err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		for _, f := range files {
			fmt.Printf("  - %06d %s\n", f.Version, f.Name)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	var m *migration.Migrator
	if migrationsPath != "" {
		m, err = migration.New(db, migrationsPath, log)
	} else {
		m, err = migration.NewEmbedded(db, migrations.FS, log)
	}
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	switch command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "step":
		err = withIntArg(args, func(n int) error { return m.Steps(n) })
	case "force":
		err = withIntArg(args, m.Force)
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = m.Version()
		if err == nil {
			log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		}
	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal("Migration command failed", zap.String("command", command), zap.Error(err))
	}
}

func withIntArg(args []string, fn func(int) error) error {
	if len(args) < 2 {
		return fmt.Errorf("%s requires a numeric argument", args[0])
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", args[1], err)
	}
	return fn(n)
}

func printUsage() {
	fmt.Println(`Billing database migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up              Apply all pending migrations
  down            Roll back all migrations
  step <n>        Apply n migrations (negative rolls back)
  version         Print the current version
  force <v>       Set the version without running migrations
  create <name>   Write the next sequential up/down pair
  list            List migrations

Flags:`)
	flag.PrintDefaults()
}
