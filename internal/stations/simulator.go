package stations

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/wxrollup/internal/types"
	"github.com/chrissnell/wxrollup/pkg/solar"
)

type SimulatorConfig struct {
	Name              string
	SampleInterval    time.Duration
	ArchiveInterval   int // minutes
	GeneratesArchives bool
	Seed              int64

	// station position, for clear-sky radiation
	Latitude    float64
	Longitude   float64
	ElevationFt float64
}

// Simulator generates synthetic weather following seasonal and daily
// cycles.
type Simulator struct {
	cfg    SimulatorConfig
	rng    *rand.Rand
	logger *zap.SugaredLogger

	baseTemp     float64
	baseHumidity float64
	basePressure float64

	// own archive logger, used when GeneratesArchives is set
	pending   []types.Sample
	lastStart time.Time
}

func NewSimulator(cfg SimulatorConfig, logger *zap.SugaredLogger) *Simulator {
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 2 * time.Second
	}
	if cfg.ArchiveInterval <= 0 {
		cfg.ArchiveInterval = 5
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Simulator{
		cfg:          cfg,
		rng:          rand.New(rand.NewSource(cfg.Seed)),
		logger:       logger,
		baseTemp:     60,
		baseHumidity: 55,
		basePressure: 30,
	}
}

func (s *Simulator) StationName() string {
	return s.cfg.Name
}

func (s *Simulator) GeneratesArchives() bool {
	return s.cfg.GeneratesArchives
}

// Run emits a sample every sample interval until ctx is done.
func (s *Simulator) Run(ctx context.Context, samples chan<- types.Sample, records chan<- types.ArchiveRecord) error {
	s.logger.Infof("simulated station [%s] sampling every %v", s.cfg.Name, s.cfg.SampleInterval)

	ticker := time.NewTicker(s.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if s.cfg.GeneratesArchives {
				if rec, ok := s.Archive(now); ok {
					select {
					case records <- rec:
					case <-ctx.Done():
						return nil
					}
				}
			}

			sample := s.Generate(now)
			select {
			case samples <- sample:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Generate returns a sample for time t.
func (s *Simulator) Generate(t time.Time) types.Sample {
	hour := float64(t.Hour()) + float64(t.Minute())/60
	day := float64(t.YearDay())

	seasonal := 20 * math.Sin(2*math.Pi*(day-81)/365)
	daily := 15 * math.Sin(2*math.Pi*(hour-6)/24)

	temp := s.baseTemp + seasonal + daily + (s.rng.Float64()-0.5)*4
	humidity := math.Max(10, math.Min(95, s.baseHumidity+(s.baseTemp-temp)))
	wind := 3 + s.rng.Float64()*8 + 2*math.Sin(2*math.Pi*hour/24)

	// passing cloud knocks up to a quarter off the clear-sky figure
	clearSky := solar.ClearSkyGHI(t, s.cfg.Latitude, s.cfg.Longitude, types.FeetToMeters(s.cfg.ElevationFt))
	radiation := clearSky * (0.75 + s.rng.Float64()*0.25)

	rain := 0.0
	if s.rng.Float64() < 0.02 {
		rain = math.Round(s.rng.Float64()*10) / 1000
	}

	sample := types.NewSample(t)
	sample.Set(types.OutTemp, round1(temp))
	sample.Set(types.InTemp, round1(temp+2))
	sample.Set(types.OutHumidity, math.Round(humidity))
	sample.Set(types.InHumidity, math.Round(humidity-3))
	sample.Set(types.Barometer, math.Round((s.basePressure+(s.rng.Float64()-0.5)*0.05)*1000)/1000)
	sample.Set(types.WindSpeed, round1(wind))
	sample.Set(types.WindGust, round1(wind+s.rng.Float64()*5))
	sample.Set(types.WindDir, float64(s.rng.Intn(360)))
	sample.Set(types.WindGustDir, sample.Get(types.WindDir))
	sample.Set(types.Radiation, math.Round(radiation))
	sample.Set(types.UV, round1(radiation/100))
	sample.Set(types.Rain, rain)
	sample.Set(types.RainRate, rain*3600/s.cfg.SampleInterval.Seconds())
	sample.Set(types.ConsBatteryVoltage, round1(13.2+s.rng.Float64()*0.6))

	if s.cfg.GeneratesArchives {
		s.pending = append(s.pending, sample)
	}
	return sample
}

// Archive returns the station's own record for the interval that ended at
// the most recent boundary before t, once per boundary.
func (s *Simulator) Archive(t time.Time) (types.ArchiveRecord, bool) {
	interval := time.Duration(s.cfg.ArchiveInterval) * time.Minute
	boundary := t.Truncate(interval)
	if s.lastStart.IsZero() {
		s.lastStart = boundary
		return types.ArchiveRecord{}, false
	}
	if !boundary.After(s.lastStart) {
		return types.ArchiveRecord{}, false
	}
	s.lastStart = boundary

	var within []types.Sample
	var rest []types.Sample
	for _, sample := range s.pending {
		if sample.Timestamp.Before(boundary) {
			within = append(within, sample)
		} else {
			rest = append(rest, sample)
		}
	}
	s.pending = rest
	if len(within) == 0 {
		return types.ArchiveRecord{}, false
	}

	rec := types.NewArchiveRecord(boundary, s.cfg.ArchiveInterval)
	var temp, rain, rate, gust, gustDir float64
	for i, sample := range within {
		temp += sample.Get(types.OutTemp)
		rain += sample.Get(types.Rain)
		rate = math.Max(rate, sample.Get(types.RainRate))
		if i == 0 || sample.Get(types.WindGust) > gust {
			gust = sample.Get(types.WindGust)
			gustDir = sample.Get(types.WindGustDir)
		}
	}
	last := within[len(within)-1]
	for _, c := range types.Channels() {
		rec.Values[c] = last.Get(c)
	}
	rec.Values[types.OutTemp] = round1(temp / float64(len(within)))
	rec.Values[types.Rain] = math.Round(rain*1000) / 1000
	rec.Values[types.RainRate] = rate
	rec.Values[types.WindGust] = gust
	rec.Values[types.WindGustDir] = gustDir
	return rec, true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
