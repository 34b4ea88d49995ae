// Package stations provides the sources of samples and station-generated
// archive records.
package stations

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/wxrollup/internal/types"
	"github.com/chrissnell/wxrollup/pkg/config"
)

// Station delivers samples, and for stations with their own logger, archive
// records, until ctx is done.
type Station interface {
	StationName() string
	GeneratesArchives() bool
	Run(ctx context.Context, samples chan<- types.Sample, records chan<- types.ArchiveRecord) error
}

// New creates the station described by cfg.
func New(cfg config.StationData, archiveInterval int, logger *zap.SugaredLogger) (Station, error) {
	switch cfg.Type {
	case "simulator":
		return NewSimulator(SimulatorConfig{
			Name:              cfg.Name,
			SampleInterval:    time.Duration(cfg.SampleInterval) * time.Second,
			ArchiveInterval:   archiveInterval,
			GeneratesArchives: cfg.GeneratesArchives,
			Latitude:          cfg.Latitude,
			Longitude:         cfg.Longitude,
			ElevationFt:       cfg.Elevation,
		}, logger), nil
	}
	return nil, fmt.Errorf("unsupported station type %q", cfg.Type)
}
