// Package notify fans each stored archive record out to the configured
// notifiers without blocking the rollup loop.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chrissnell/wxrollup/internal/rollup"
	"github.com/chrissnell/wxrollup/internal/types"
)

// Event is one stored record with the totals current at the time it was
// stored.
type Event struct {
	ID     uuid.UUID
	Record types.ArchiveRecord
	Totals rollup.Totals
	Sent   time.Time
}

// Notifier consumes events. StartNotifier launches the notifier's worker and
// returns the channel it reads from; the worker exits when ctx is done.
type Notifier interface {
	Name() string
	StartNotifier(ctx context.Context, wg *sync.WaitGroup) chan<- Event
}

type engine struct {
	name string
	c    chan<- Event
}

// Manager holds the active notifiers.
type Manager struct {
	engines     []engine
	distributor chan Event
	logger      *zap.SugaredLogger
	wg          sync.WaitGroup
}

// NewManager starts every notifier and the distributor that feeds them.
func NewManager(ctx context.Context, logger *zap.SugaredLogger, notifiers ...Notifier) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	m := &Manager{
		distributor: make(chan Event, 20),
		logger:      logger,
	}

	for _, n := range notifiers {
		m.engines = append(m.engines, engine{name: n.Name(), c: n.StartNotifier(ctx, &m.wg)})
		logger.Infof("notifier [%s] started", n.Name())
	}

	m.wg.Add(1)
	go m.distribute(ctx)
	return m
}

// Publish queues a record for every notifier. It never blocks; when the
// queue is full the event is dropped and logged.
func (m *Manager) Publish(rec types.ArchiveRecord, totals rollup.Totals) {
	ev := Event{ID: uuid.New(), Record: rec, Totals: totals, Sent: time.Now()}
	select {
	case m.distributor <- ev:
	default:
		m.logger.Warnf("notification queue full, dropping record %d", rec.DateTime)
	}
}

// Wait blocks until the distributor and every notifier have exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) distribute(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case ev := <-m.distributor:
			for _, e := range m.engines {
				select {
				case e.c <- ev:
				default:
					m.logger.Warnf("notifier [%s] is behind, dropping record %d", e.name, ev.Record.DateTime)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
