package migrate

import (
	"context"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Dialect selects driver-specific SQL for the version table.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

var (
	upRegex   = regexp.MustCompile(`^(\d+)_(.+)\.up\.sql$`)
	downRegex = regexp.MustCompile(`^(\d+)_(.+)\.down\.sql$`)
)

// FSProvider loads migrations from a filesystem, typically an embed.FS.
// Files are named 001_migration_name.up.sql / 001_migration_name.down.sql.
type FSProvider struct {
	fsys           fs.FS
	dir            string
	migrationTable string
	dialect        Dialect
}

// NewFSProvider creates a provider reading migrations from dir within fsys.
func NewFSProvider(fsys fs.FS, dir, migrationTable string, dialect Dialect) *FSProvider {
	if migrationTable == "" {
		migrationTable = "schema_migrations"
	}
	return &FSProvider{
		fsys:           fsys,
		dir:            dir,
		migrationTable: migrationTable,
		dialect:        dialect,
	}
}

// GetMigrations loads all migrations in version order
func (p *FSProvider) GetMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(p.fsys, p.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory %s: %w", p.dir, err)
	}

	byVersion := make(map[int]*Migration)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		filename := entry.Name()

		matches := upRegex.FindStringSubmatch(filename)
		up := matches != nil
		if !up {
			matches = downRegex.FindStringSubmatch(filename)
		}
		if matches == nil {
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("invalid version number in file %s: %w", filename, err)
		}

		content, err := fs.ReadFile(p.fsys, p.dir+"/"+filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		if byVersion[version] == nil {
			byVersion[version] = &Migration{
				Version: version,
				Name:    strings.ReplaceAll(matches[2], "_", " "),
			}
		}
		if up {
			byVersion[version].Up = string(content)
		} else {
			byVersion[version].Down = string(content)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, migration := range byVersion {
		migrations = append(migrations, *migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// CreateMigrationTable creates the migration tracking table
func (p *FSProvider) CreateMigrationTable(ctx context.Context, db DB) error {
	timestampType := "DATETIME"
	if p.dialect == Postgres {
		timestampType = "TIMESTAMP"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at %s DEFAULT CURRENT_TIMESTAMP
		)
	`, p.migrationTable, timestampType)

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// GetCurrentVersion returns the highest applied migration version
func (p *FSProvider) GetCurrentVersion(ctx context.Context, db DB) (int, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", p.migrationTable)

	var version int
	if err := db.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// SetVersion records version as applied. Rolling back to 0 clears the table;
// rolling back to any other version removes the newer rows.
func (p *FSProvider) SetVersion(ctx context.Context, db DB, version int) error {
	var err error

	switch {
	case version == 0:
		_, err = db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", p.migrationTable))
	case p.dialect == Postgres:
		_, err = db.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (version, applied_at)
			VALUES ($1, CURRENT_TIMESTAMP)
			ON CONFLICT (version) DO UPDATE SET applied_at = CURRENT_TIMESTAMP
		`, p.migrationTable), version)
		if err == nil {
			_, err = db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE version > $1", p.migrationTable), version)
		}
	default:
		_, err = db.ExecContext(ctx, fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (version, applied_at)
			VALUES (?, CURRENT_TIMESTAMP)
		`, p.migrationTable), version)
		if err == nil {
			_, err = db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE version > ?", p.migrationTable), version)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}
