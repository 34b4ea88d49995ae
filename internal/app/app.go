// Package app wires the stores, the rollup, the station and the notifiers
// together and runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/wxrollup/internal/archive"
	wxerrors "github.com/chrissnell/wxrollup/internal/errors"
	"github.com/chrissnell/wxrollup/internal/hilow"
	"github.com/chrissnell/wxrollup/internal/notify"
	"github.com/chrissnell/wxrollup/internal/rollup"
	"github.com/chrissnell/wxrollup/internal/scheduler"
	"github.com/chrissnell/wxrollup/internal/stations"
	"github.com/chrissnell/wxrollup/internal/types"
	"github.com/chrissnell/wxrollup/pkg/config"
	"github.com/chrissnell/wxrollup/pkg/responseformat"
)

// App represents the main application
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}

	arch, err := OpenArchive(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer arch.Close()

	hl, err := hilow.Open(ctx, a.cfg.Storage.HiLowPath, arch, loc, a.logger)
	if err != nil {
		return err
	}
	defer hl.Close()

	if err := hl.Sync(ctx, time.Now()); err != nil {
		return fmt.Errorf("HILOW sync failed: %w", err)
	}

	orch := rollup.NewOrchestrator(RollupConfig(a.cfg, loc), arch, hl, a.logger)
	if err := orch.Init(ctx, time.Now()); err != nil {
		return err
	}

	station, err := stations.New(a.cfg.Station, a.cfg.ArchiveInterval, a.logger)
	if err != nil {
		return err
	}

	notifiers, err := a.notifiers()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	mgr := notify.NewManager(gctx, a.logger, notifiers...)

	samples := make(chan types.Sample, 16)
	records := make(chan types.ArchiveRecord, 4)
	timer := scheduler.NewArchiveTimer(a.cfg.ArchiveInterval, loc, a.logger)

	g.Go(func() error {
		return station.Run(gctx, samples, records)
	})
	if !station.GeneratesArchives() {
		g.Go(func() error {
			return timer.Run(gctx)
		})
	}
	g.Go(func() error {
		return a.loop(gctx, orch, mgr, samples, records, timer.Ticks())
	})

	a.logger.Infof("station [%s] running, archive interval %d minutes", station.StationName(), a.cfg.ArchiveInterval)

	err = g.Wait()
	mgr.Wait()
	a.logger.Info("shutdown complete")
	return err
}

// loop is the only goroutine that touches the orchestrator.
func (a *App) loop(ctx context.Context, orch *rollup.Orchestrator, mgr *notify.Manager,
	samples <-chan types.Sample, records <-chan types.ArchiveRecord, ticks <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-samples:
			orch.RecordSample(s)
		case rec := <-records:
			a.finalize(ctx, orch, mgr, rec.Time(), &rec)
		case at := <-ticks:
			a.finalize(ctx, orch, mgr, at, nil)
		}
	}
}

func (a *App) finalize(ctx context.Context, orch *rollup.Orchestrator, mgr *notify.Manager, at time.Time, selfReported *types.ArchiveRecord) {
	rec, err := orch.FinalizeInterval(at, selfReported)
	if err != nil {
		a.logger.Warnf("no archive record at %v: %v", at.Format(time.RFC3339), err)
		return
	}

	err = orch.OnNewRecord(ctx, rec)
	switch {
	case wxerrors.IsIntegrity(err):
		a.logger.Warnf("archive rejected record %d (clock step or DST change?): %v", rec.DateTime, err)
	case err != nil:
		a.logger.Errorf("storing record %d: %v", rec.DateTime, err)
	default:
		ch := orch.Changes()
		a.logger.Debugf("stored record %d (outTemp %+.1f/h, barometer %+.3f/h)", rec.DateTime, ch.Hour.OutTemp, ch.Hour.Barometer)
		mgr.Publish(rec, orch.Totals())
	}
}

func (a *App) notifiers() ([]notify.Notifier, error) {
	var out []notify.Notifier
	for _, n := range a.cfg.Notifiers {
		format, err := responseformat.ParseFormat(n.Format)
		if err != nil {
			return nil, err
		}
		spool, err := notify.NewSpoolNotifier(n.Path, types.UnitSystem(n.Units), format, a.logger)
		if err != nil {
			return nil, err
		}
		out = append(out, spool)
	}
	return out, nil
}

// OpenArchive opens the configured archive backend.
func OpenArchive(ctx context.Context, cfg *config.ConfigData, logger *zap.SugaredLogger) (archive.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		store, err := archive.NewSQLiteStore(ctx, cfg.Storage.ArchivePath, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendPostgres:
		if cfg.Storage.TimescaleDB == nil {
			return nil, fmt.Errorf("%w: postgres backend without a connection string", wxerrors.ErrInvalidConfig)
		}
		store, err := archive.NewPostgresStore(ctx, cfg.Storage.TimescaleDB.ConnectionString, logger.Desugar())
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("%w: %q", wxerrors.ErrUnknownBackend, cfg.Storage.Backend)
}

// RollupConfig translates the daemon configuration into rollup settings.
func RollupConfig(cfg *config.ConfigData, loc *time.Location) rollup.Config {
	rc := rollup.Config{
		IntervalMinutes: cfg.ArchiveInterval,
		Location:        loc,
		RainSeasonStart: time.Month(cfg.RainSeasonStart),
		ElevationFt:     cfg.Station.Elevation,
		StormTrigger:    cfg.Storm.TriggerRate,
		StormIdle:       time.Duration(cfg.Storm.IdleHours) * time.Hour,
		PresetYear:      cfg.Presets.Year,
		RainYTD:         cfg.Presets.RainYTD,
		ETYTD:           cfg.Presets.ETYTD,
		Calibration:     make(map[types.Channel]rollup.Calibration),
	}
	for _, cal := range cfg.Calibration {
		if ch, ok := types.ChannelByName(cal.Channel); ok {
			rc.Calibration[ch] = rollup.Calibration{Multiplier: cal.Multiplier, Offset: cal.Offset}
		}
	}
	return rc
}
