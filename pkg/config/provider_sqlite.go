package config

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/wxrollup/pkg/migrate"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens a SQLite configuration database, creating its
// tables if needed.
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if err := NewMigrator(db, nil).MigrateUp(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate configuration database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// NewMigrator returns the migrator for the configuration schema.
func NewMigrator(db *sql.DB, logger *zap.SugaredLogger) *migrate.Migrator {
	return migrate.NewMigrator(db, migrate.NewFSProvider(migrationFS, "migrations", "config_migrations", migrate.SQLite), logger)
}

// setting maps one scalar configuration field to a row in the settings table.
type setting struct {
	name string
	get  func(*ConfigData) string
	set  func(*ConfigData, string) error
}

func stringSetting(name string, field func(*ConfigData) *string) setting {
	return setting{
		name: name,
		get:  func(c *ConfigData) string { return *field(c) },
		set:  func(c *ConfigData, v string) error { *field(c) = v; return nil },
	}
}

func intSetting(name string, field func(*ConfigData) *int) setting {
	return setting{
		name: name,
		get:  func(c *ConfigData) string { return strconv.Itoa(*field(c)) },
		set: func(c *ConfigData, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*field(c) = n
			return nil
		},
	}
}

func floatSetting(name string, field func(*ConfigData) *float64) setting {
	return setting{
		name: name,
		get:  func(c *ConfigData) string { return strconv.FormatFloat(*field(c), 'f', -1, 64) },
		set: func(c *ConfigData, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			*field(c) = f
			return nil
		},
	}
}

var settings = []setting{
	stringSetting("station.name", func(c *ConfigData) *string { return &c.Station.Name }),
	stringSetting("station.type", func(c *ConfigData) *string { return &c.Station.Type }),
	intSetting("station.sample_interval", func(c *ConfigData) *int { return &c.Station.SampleInterval }),
	floatSetting("station.latitude", func(c *ConfigData) *float64 { return &c.Station.Latitude }),
	floatSetting("station.longitude", func(c *ConfigData) *float64 { return &c.Station.Longitude }),
	floatSetting("station.elevation", func(c *ConfigData) *float64 { return &c.Station.Elevation }),
	{
		name: "station.generates_archives",
		get:  func(c *ConfigData) string { return strconv.FormatBool(c.Station.GeneratesArchives) },
		set: func(c *ConfigData, v string) error {
			b, err := strconv.ParseBool(v)
			c.Station.GeneratesArchives = b
			return err
		},
	},
	intSetting("archive_interval", func(c *ConfigData) *int { return &c.ArchiveInterval }),
	intSetting("rain_season_start", func(c *ConfigData) *int { return &c.RainSeasonStart }),
	stringSetting("units", func(c *ConfigData) *string { return &c.Units }),
	stringSetting("time_zone", func(c *ConfigData) *string { return &c.TimeZone }),
	stringSetting("storage.backend", func(c *ConfigData) *string { return &c.Storage.Backend }),
	stringSetting("storage.archive_path", func(c *ConfigData) *string { return &c.Storage.ArchivePath }),
	stringSetting("storage.hilow_path", func(c *ConfigData) *string { return &c.Storage.HiLowPath }),
	{
		name: "storage.timescaledb.connection_string",
		get: func(c *ConfigData) string {
			if c.Storage.TimescaleDB == nil {
				return ""
			}
			return c.Storage.TimescaleDB.ConnectionString
		},
		set: func(c *ConfigData, v string) error {
			if v != "" {
				c.Storage.TimescaleDB = &TimescaleDBData{ConnectionString: v}
			}
			return nil
		},
	},
	floatSetting("storm.trigger_rate", func(c *ConfigData) *float64 { return &c.Storm.TriggerRate }),
	intSetting("storm.idle_hours", func(c *ConfigData) *int { return &c.Storm.IdleHours }),
	intSetting("presets.year", func(c *ConfigData) *int { return &c.Presets.Year }),
	floatSetting("presets.rain_ytd", func(c *ConfigData) *float64 { return &c.Presets.RainYTD }),
	floatSetting("presets.et_ytd", func(c *ConfigData) *float64 { return &c.Presets.ETYTD }),
	stringSetting("log_file", func(c *ConfigData) *string { return &c.LogFile }),
}

var settingsByName = func() map[string]setting {
	m := make(map[string]setting, len(settings))
	for _, s := range settings {
		m[s.name] = s
	}
	return m
}()

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	if err := s.loadSettings(config); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	calibrations, err := s.GetCalibrations()
	if err != nil {
		return nil, fmt.Errorf("failed to load calibrations: %w", err)
	}
	config.Calibration = calibrations

	notifiers, err := s.GetNotifiers()
	if err != nil {
		return nil, fmt.Errorf("failed to load notifiers: %w", err)
	}
	config.Notifiers = notifiers

	return config, nil
}

func (s *SQLiteProvider) loadSettings(config *ConfigData) error {
	rows, err := s.db.Query(`SELECT name, value FROM settings`)
	if err != nil {
		return fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return fmt.Errorf("failed to scan setting row: %w", err)
		}
		st, ok := settingsByName[name]
		if !ok {
			// Settings from newer versions are ignored.
			continue
		}
		if err := st.set(config, value); err != nil {
			return fmt.Errorf("invalid value %q for setting %s: %w", value, name, err)
		}
	}
	return rows.Err()
}

// GetCalibrations returns the per-channel calibrations
func (s *SQLiteProvider) GetCalibrations() ([]CalibrationData, error) {
	rows, err := s.db.Query(`SELECT channel, multiplier, offset_value FROM calibrations ORDER BY channel`)
	if err != nil {
		return nil, fmt.Errorf("failed to query calibrations: %w", err)
	}
	defer rows.Close()

	var calibrations []CalibrationData
	for rows.Next() {
		var cal CalibrationData
		if err := rows.Scan(&cal.Channel, &cal.Multiplier, &cal.Offset); err != nil {
			return nil, fmt.Errorf("failed to scan calibration row: %w", err)
		}
		calibrations = append(calibrations, cal)
	}
	return calibrations, rows.Err()
}

// GetNotifiers returns the configured notifiers in insertion order
func (s *SQLiteProvider) GetNotifiers() ([]NotifierData, error) {
	rows, err := s.db.Query(`SELECT type, path, format, units FROM notifiers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifiers: %w", err)
	}
	defer rows.Close()

	var notifiers []NotifierData
	for rows.Next() {
		var n NotifierData
		var path, format, units sql.NullString
		if err := rows.Scan(&n.Type, &path, &format, &units); err != nil {
			return nil, fmt.Errorf("failed to scan notifier row: %w", err)
		}
		n.Path = path.String
		n.Format = format.String
		n.Units = units.String
		notifiers = append(notifiers, n)
	}
	return notifiers, rows.Err()
}

// IsReadOnly returns false; SaveConfig replaces the stored configuration
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored configuration with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"settings", "calibrations", "notifiers"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, st := range settings {
		if _, err := tx.Exec(`INSERT INTO settings (name, value) VALUES (?, ?)`, st.name, st.get(configData)); err != nil {
			return fmt.Errorf("failed to insert setting %s: %w", st.name, err)
		}
	}

	for _, cal := range configData.Calibration {
		if _, err := tx.Exec(`INSERT INTO calibrations (channel, multiplier, offset_value) VALUES (?, ?, ?)`,
			cal.Channel, cal.Multiplier, cal.Offset); err != nil {
			return fmt.Errorf("failed to insert calibration for %s: %w", cal.Channel, err)
		}
	}

	for _, n := range configData.Notifiers {
		if _, err := tx.Exec(`INSERT INTO notifiers (type, path, format, units) VALUES (?, ?, ?, ?)`,
			n.Type, nullString(n.Path), nullString(n.Format), nullString(n.Units)); err != nil {
			return fmt.Errorf("failed to insert %s notifier: %w", n.Type, err)
		}
	}

	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
