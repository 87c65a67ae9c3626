package sink

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/typetest/internal/model"
)

// Dispatcher saves results to every sink in the background. Dispatch never
// blocks and failures are only logged.
type Dispatcher struct {
	sinks   []Sink
	log     *zap.Logger
	timeout time.Duration
	group   errgroup.Group
}

// NewDispatcher returns a dispatcher fanning out to sinks. Each save is
// bounded by timeout when it is positive.
func NewDispatcher(log *zap.Logger, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{sinks: sinks, log: log, timeout: timeout}
}

// Dispatch schedules result for every sink and returns immediately.
func (d *Dispatcher) Dispatch(result model.TestResult, actor string) {
	for _, s := range d.sinks {
		s := s
		d.group.Go(func() error {
			ctx := context.Background()
			if d.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d.timeout)
				defer cancel()
			}
			if err := s.Save(ctx, result, actor); err != nil {
				d.log.Warn("failed to persist result",
					zap.String("id", result.ID),
					zap.String("actor", actorOrGuest(actor)),
					zap.Error(err))
				return nil
			}
			d.log.Debug("result persisted", zap.String("id", result.ID))
			return nil
		})
	}
}

// Wait blocks until every dispatched save finished.
func (d *Dispatcher) Wait() {
	_ = d.group.Wait()
}
