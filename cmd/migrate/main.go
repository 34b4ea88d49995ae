package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/chrissnell/wxrollup/internal/archive"
	"github.com/chrissnell/wxrollup/internal/database"
	"github.com/chrissnell/wxrollup/pkg/config"
	"github.com/chrissnell/wxrollup/pkg/migrate"
)

func main() {
	var (
		schema        = flag.String("schema", "archive", "Schema to migrate: archive, config")
		dbDriver      = flag.String("driver", "sqlite", "Database driver (sqlite, postgres); config is sqlite only")
		dbDSN         = flag.String("dsn", "", "Database path or connection string")
		command       = flag.String("command", "up", "Migration command: up, down, to, version, status")
		targetVersion = flag.Int("target", -1, "Target version for down/to commands")
		helpFlag      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *helpFlag {
		showHelp()
		return
	}
	if *dbDSN == "" {
		fmt.Fprintf(os.Stderr, "Error: -dsn flag is required\n")
		showHelp()
		os.Exit(1)
	}

	ctx := context.Background()
	logger := zap.NewNop()

	db, err := openDB(ctx, *dbDriver, *dbDSN, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	migrator, err := migratorFor(*schema, *dbDriver, db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch *command {
	case "up":
		err = migrator.MigrateUp(ctx)
	case "down", "to":
		if *targetVersion < 0 {
			fmt.Fprintf(os.Stderr, "Error: -target flag is required for %s command\n", *command)
			os.Exit(1)
		}
		if *command == "down" {
			err = migrator.MigrateDown(ctx, *targetVersion)
		} else {
			err = migrator.MigrateTo(ctx, *targetVersion)
		}
	case "version":
		version, err := migrator.GetCurrentVersion(ctx)
		if err != nil {
			log.Fatalf("Failed to get current version: %v", err)
		}
		fmt.Printf("Current version: %d\n", version)
		return
	case "status":
		err = showStatus(ctx, migrator)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		showHelp()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Migration command failed: %v", err)
	}
	fmt.Println("Migration completed successfully")
}

func openDB(ctx context.Context, driver, dsn string, logger *zap.Logger) (*sql.DB, error) {
	switch driver {
	case "sqlite":
		return database.OpenSQLite(ctx, dsn)
	case "postgres":
		gdb, err := database.OpenPostgres(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
		return gdb.DB()
	}
	return nil, fmt.Errorf("unsupported driver %q", driver)
}

func migratorFor(schema, driver string, db *sql.DB) (*migrate.Migrator, error) {
	switch schema {
	case "archive":
		dialect := migrate.SQLite
		if driver == "postgres" {
			dialect = migrate.Postgres
		}
		return archive.NewMigrator(db, dialect, nil), nil
	case "config":
		if driver != "sqlite" {
			return nil, fmt.Errorf("the config schema lives in SQLite only")
		}
		return config.NewMigrator(db, nil), nil
	}
	return nil, fmt.Errorf("unknown schema %q", schema)
}

func showStatus(ctx context.Context, migrator *migrate.Migrator) error {
	currentVersion, err := migrator.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	pending, err := migrator.GetPendingMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending migrations: %w", err)
	}

	fmt.Printf("Current version: %d\n", currentVersion)
	fmt.Printf("Pending migrations: %d\n", len(pending))
	for _, migration := range pending {
		fmt.Printf("  %d: %s\n", migration.Version, migration.Name)
	}
	return nil
}

func showHelp() {
	fmt.Println("Schema migration tool for the archive and configuration databases")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  migrate [flags]")
	fmt.Println()
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  migrate -dsn archive.sdb -command status")
	fmt.Println("  migrate -schema config -dsn config.db -command down -target 0")
	fmt.Println("  migrate -driver postgres -dsn postgres://wx@localhost/wx -command version")
}
