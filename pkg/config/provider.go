// Package config loads daemon configuration from YAML files or SQLite
// databases into a single ConfigData structure.
package config

import (
	"fmt"
	"time"

	wxerrors "github.com/chrissnell/wxrollup/internal/errors"
	"github.com/chrissnell/wxrollup/internal/types"
	"github.com/chrissnell/wxrollup/pkg/responseformat"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Station         StationData       `json:"station"`
	ArchiveInterval int               `json:"archive_interval"`
	RainSeasonStart int               `json:"rain_season_start"`
	Units           string            `json:"units"`
	TimeZone        string            `json:"time_zone,omitempty"`
	Storage         StorageData       `json:"storage"`
	Storm           StormData         `json:"storm,omitempty"`
	Presets         PresetData        `json:"presets,omitempty"`
	Calibration     []CalibrationData `json:"calibration,omitempty"`
	Notifiers       []NotifierData    `json:"notifiers,omitempty"`
	LogFile         string            `json:"log_file,omitempty"`
}

// StationData describes the station feeding the daemon
type StationData struct {
	Name              string  `json:"name"`
	Type              string  `json:"type"`
	SampleInterval    int     `json:"sample_interval,omitempty"` // seconds
	Latitude          float64 `json:"latitude,omitempty"`
	Longitude         float64 `json:"longitude,omitempty"`
	Elevation         float64 `json:"elevation,omitempty"` // feet
	GeneratesArchives bool    `json:"generates_archives,omitempty"`
}

// StorageData holds the archive and HILOW locations
type StorageData struct {
	Backend     string           `json:"backend"`
	ArchivePath string           `json:"archive_path,omitempty"`
	HiLowPath   string           `json:"hilow_path"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string"`
}

// StormData configures storm rain tracking. A zero trigger rate disables it.
type StormData struct {
	TriggerRate float64 `json:"trigger_rate,omitempty"` // in/hr
	IdleHours   int     `json:"idle_hours,omitempty"`
}

// PresetData seeds rain-season totals kept before the archive began.
type PresetData struct {
	Year    int     `json:"year,omitempty"`
	RainYTD float64 `json:"rain_ytd,omitempty"`
	ETYTD   float64 `json:"et_ytd,omitempty"`
}

type CalibrationData struct {
	Channel    string  `json:"channel"`
	Multiplier float64 `json:"multiplier"`
	Offset     float64 `json:"offset"`
}

type NotifierData struct {
	Type   string `json:"type"`
	Path   string `json:"path,omitempty"`
	Format string `json:"format,omitempty"`
	Units  string `json:"units,omitempty"`
}

// Storage backends
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// NotifierSpool writes each stored record to a spool file.
const NotifierSpool = "spool"

var validIntervals = map[int]bool{1: true, 5: true, 10: true, 15: true, 30: true, 60: true}

// ApplyDefaults fills unset fields with their defaults.
func (c *ConfigData) ApplyDefaults() {
	if c.Station.Name == "" {
		c.Station.Name = "wxrollup"
	}
	if c.Station.Type == "" {
		c.Station.Type = "simulator"
	}
	if c.Station.SampleInterval == 0 {
		c.Station.SampleInterval = 2
	}
	if c.ArchiveInterval == 0 {
		c.ArchiveInterval = 5
	}
	if c.RainSeasonStart == 0 {
		c.RainSeasonStart = 1
	}
	if c.Units == "" {
		c.Units = string(types.Imperial)
	}
	if c.TimeZone == "" {
		c.TimeZone = "Local"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendSQLite
	}
	if c.Storage.Backend == BackendSQLite && c.Storage.ArchivePath == "" {
		c.Storage.ArchivePath = "archive.sdb"
	}
	if c.Storage.HiLowPath == "" {
		c.Storage.HiLowPath = "hilow.sdb"
	}
	if c.Storm.IdleHours == 0 {
		c.Storm.IdleHours = 12
	}
	for i := range c.Calibration {
		if c.Calibration[i].Multiplier == 0 {
			c.Calibration[i].Multiplier = 1
		}
	}
	for i := range c.Notifiers {
		if c.Notifiers[i].Units == "" {
			c.Notifiers[i].Units = c.Units
		}
		if c.Notifiers[i].Format == "" {
			c.Notifiers[i].Format = string(responseformat.MsgPack)
		}
	}
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *ConfigData) Validate() error {
	if !validIntervals[c.ArchiveInterval] {
		return invalid("archive interval %d minutes is not one of 1, 5, 10, 15, 30, 60", c.ArchiveInterval)
	}
	if c.RainSeasonStart < 1 || c.RainSeasonStart > 12 {
		return invalid("rain season start month %d is not between 1 and 12", c.RainSeasonStart)
	}
	if err := validUnits(c.Units); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Station.SampleInterval < 0 || c.Station.SampleInterval > c.ArchiveInterval*60 {
		return invalid("sample interval %ds does not fit in the archive interval", c.Station.SampleInterval)
	}

	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.ArchivePath == "" {
			return invalid("sqlite backend requires an archive path")
		}
	case BackendPostgres:
		if c.Storage.TimescaleDB == nil || c.Storage.TimescaleDB.ConnectionString == "" {
			return invalid("postgres backend requires a connection string")
		}
	default:
		return fmt.Errorf("%w: %q", wxerrors.ErrUnknownBackend, c.Storage.Backend)
	}
	if c.Storage.HiLowPath == "" {
		return invalid("a HILOW database path is required")
	}

	if c.Storm.TriggerRate < 0 || c.Storm.IdleHours < 0 {
		return invalid("storm trigger rate and idle hours must not be negative")
	}

	for _, cal := range c.Calibration {
		if _, ok := types.ChannelByName(cal.Channel); !ok {
			return invalid("calibration for unknown channel %q", cal.Channel)
		}
	}
	for _, n := range c.Notifiers {
		if n.Type != NotifierSpool {
			return invalid("unknown notifier type %q", n.Type)
		}
		if n.Path == "" {
			return invalid("%s notifier requires a path", n.Type)
		}
		if err := validUnits(n.Units); err != nil {
			return err
		}
		if _, err := responseformat.ParseFormat(n.Format); err != nil {
			return invalid("%s notifier: %v", n.Type, err)
		}
	}
	return nil
}

// Location resolves the configured time zone.
func (c *ConfigData) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, invalid("time zone %q: %v", c.TimeZone, err)
	}
	return loc, nil
}

func validUnits(u string) error {
	switch types.UnitSystem(u) {
	case types.Imperial, types.Metric:
		return nil
	}
	return invalid("unit system %q is not imperial or metric", u)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", wxerrors.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Load reads, defaults and validates the configuration from provider.
func Load(provider ConfigProvider) (*ConfigData, error) {
	cfg, err := provider.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
