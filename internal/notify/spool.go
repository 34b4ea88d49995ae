package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/chrissnell/wxrollup/internal/types"
	"github.com/chrissnell/wxrollup/pkg/responseformat"
)

// SpoolEntry is the on-disk form of an event. Values are in the spool's
// display units and omit missing channels.
type SpoolEntry struct {
	ID        string             `json:"id"`
	DateTime  int64              `json:"dateTime"`
	Interval  int                `json:"interval"`
	Units     string             `json:"units"`
	Values    map[string]float64 `json:"values"`
	DayRain   float64            `json:"dayRain"`
	MonthRain float64            `json:"monthRain"`
	YearRain  float64            `json:"yearRain"`
	StormRain float64            `json:"stormRain,omitempty"`
	StormFrom int64              `json:"stormStart,omitempty"`
}

// SpoolNotifier appends every event to a file for other programs to pick up.
type SpoolNotifier struct {
	path      string
	units     types.UnitSystem
	format    responseformat.Format
	formatter *responseformat.Formatter
	logger    *zap.SugaredLogger
	c         chan Event
}

// NewSpoolNotifier checks that path can be opened for appending.
func NewSpoolNotifier(path string, units types.UnitSystem, format responseformat.Format, logger *zap.SugaredLogger) (*SpoolNotifier, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("unable to open spool %s: %w", path, err)
	}
	f.Close()

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SpoolNotifier{
		path:      path,
		units:     units,
		format:    format,
		formatter: responseformat.NewFormatter(format),
		logger:    logger,
		c:         make(chan Event, 10),
	}, nil
}

func (s *SpoolNotifier) Name() string {
	return "spool:" + s.path
}

// StartNotifier starts the spool writer.
func (s *SpoolNotifier) StartNotifier(ctx context.Context, wg *sync.WaitGroup) chan<- Event {
	wg.Add(1)
	go s.run(ctx, wg)
	return s.c
}

func (s *SpoolNotifier) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case ev := <-s.c:
			if err := s.write(ev); err != nil {
				s.logger.Errorf("spool %s: %v", s.path, err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *SpoolNotifier) write(ev Event) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := s.formatter.Write(f, s.entry(ev)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *SpoolNotifier) entry(ev Event) SpoolEntry {
	rain := types.ConversionFor(types.Rain, s.units)
	e := SpoolEntry{
		ID:        ev.ID.String(),
		DateTime:  ev.Record.DateTime,
		Interval:  ev.Record.Interval,
		Units:     string(s.units),
		Values:    make(map[string]float64),
		DayRain:   rain(ev.Totals.DayRain),
		MonthRain: rain(ev.Totals.MonthRain),
		YearRain:  rain(ev.Totals.YearRain),
	}
	if ev.Totals.StormActive {
		e.StormRain = rain(ev.Totals.StormRain)
		e.StormFrom = ev.Totals.StormStart.Unix()
	}
	for _, c := range types.Channels() {
		if v := ev.Record.Get(c); types.Valid(v) {
			e.Values[c.String()] = types.ConvertForDisplay(c, v, s.units)
		}
	}
	return e
}

// ReadSpool decodes every entry in a spool stream.
func ReadSpool(r io.Reader, format responseformat.Format) ([]SpoolEntry, error) {
	d := responseformat.NewDecoder(r, format)
	var entries []SpoolEntry
	for {
		var e SpoolEntry
		err := d.Decode(&e)
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
}
