package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := parseYAML(cfgFile)
	if err != nil {
		return nil, err
	}

	y.config = config
	return config, nil
}

func parseYAML(data []byte) (*ConfigData, error) {
	// Load into temporary struct with YAML tags
	var yamlConfig ConfigYAML
	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, err
	}

	config := &ConfigData{
		Station: StationData{
			Name:              yamlConfig.Station.Name,
			Type:              yamlConfig.Station.Type,
			SampleInterval:    yamlConfig.Station.SampleInterval,
			Latitude:          yamlConfig.Station.Latitude,
			Longitude:         yamlConfig.Station.Longitude,
			Elevation:         yamlConfig.Station.Elevation,
			GeneratesArchives: yamlConfig.Station.GeneratesArchives,
		},
		ArchiveInterval: yamlConfig.ArchiveInterval,
		RainSeasonStart: yamlConfig.RainSeasonStart,
		Units:           yamlConfig.Units,
		TimeZone:        yamlConfig.TimeZone,
		Storage: StorageData{
			Backend:     yamlConfig.Storage.Backend,
			ArchivePath: yamlConfig.Storage.ArchivePath,
			HiLowPath:   yamlConfig.Storage.HiLowPath,
		},
		Storm: StormData{
			TriggerRate: yamlConfig.Storm.TriggerRate,
			IdleHours:   yamlConfig.Storm.IdleHours,
		},
		Presets: PresetData{
			Year:    yamlConfig.Presets.Year,
			RainYTD: yamlConfig.Presets.RainYTD,
			ETYTD:   yamlConfig.Presets.ETYTD,
		},
		LogFile: yamlConfig.LogFile,
	}

	if yamlConfig.Storage.TimescaleDB != nil {
		config.Storage.TimescaleDB = &TimescaleDBData{
			ConnectionString: yamlConfig.Storage.TimescaleDB.ConnectionString,
		}
	}

	for _, cal := range yamlConfig.Calibration {
		config.Calibration = append(config.Calibration, CalibrationData{
			Channel:    cal.Channel,
			Multiplier: cal.Multiplier,
			Offset:     cal.Offset,
		})
	}

	for _, n := range yamlConfig.Notifiers {
		config.Notifiers = append(config.Notifiers, NotifierData{
			Type:   n.Type,
			Path:   n.Path,
			Format: n.Format,
			Units:  n.Units,
		})
	}

	return config, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with YAML tags for parsing the file format
type ConfigYAML struct {
	Station         StationYAML       `yaml:"station"`
	ArchiveInterval int               `yaml:"archive-interval,omitempty"`
	RainSeasonStart int               `yaml:"rain-season-start,omitempty"`
	Units           string            `yaml:"units,omitempty"`
	TimeZone        string            `yaml:"time-zone,omitempty"`
	Storage         StorageYAML       `yaml:"storage"`
	Storm           StormYAML         `yaml:"storm-rain,omitempty"`
	Presets         PresetYAML        `yaml:"presets,omitempty"`
	Calibration     []CalibrationYAML `yaml:"calibration,omitempty"`
	Notifiers       []NotifierYAML    `yaml:"notifiers,omitempty"`
	LogFile         string            `yaml:"log-file,omitempty"`
}

type StationYAML struct {
	Name              string  `yaml:"name"`
	Type              string  `yaml:"type,omitempty"`
	SampleInterval    int     `yaml:"sample-interval,omitempty"`
	Latitude          float64 `yaml:"latitude,omitempty"`
	Longitude         float64 `yaml:"longitude,omitempty"`
	Elevation         float64 `yaml:"elevation,omitempty"`
	GeneratesArchives bool    `yaml:"generates-archives,omitempty"`
}

type StorageYAML struct {
	Backend     string           `yaml:"backend,omitempty"`
	ArchivePath string           `yaml:"archive-path,omitempty"`
	HiLowPath   string           `yaml:"hilow-path,omitempty"`
	TimescaleDB *TimescaleDBYAML `yaml:"timescaledb,omitempty"`
}

type TimescaleDBYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type StormYAML struct {
	TriggerRate float64 `yaml:"trigger-rate,omitempty"`
	IdleHours   int     `yaml:"idle-hours,omitempty"`
}

type PresetYAML struct {
	Year    int     `yaml:"year,omitempty"`
	RainYTD float64 `yaml:"rain-ytd,omitempty"`
	ETYTD   float64 `yaml:"et-ytd,omitempty"`
}

type CalibrationYAML struct {
	Channel    string  `yaml:"channel"`
	Multiplier float64 `yaml:"multiplier,omitempty"`
	Offset     float64 `yaml:"offset,omitempty"`
}

type NotifierYAML struct {
	Type   string `yaml:"type"`
	Path   string `yaml:"path,omitempty"`
	Format string `yaml:"format,omitempty"`
	Units  string `yaml:"units,omitempty"`
}
