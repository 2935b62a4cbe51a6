// Package dedup collapses concurrent identical read requests into a single
// computation whose outcome is broadcast to every waiter.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Prometheus metrics for request coalescing.
var (
	dedupExecutionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apicache_dedup_executions_total",
		Help: "Total number of computations started by the in-flight tracker",
	})

	dedupSharedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apicache_dedup_shared_total",
		Help: "Total number of callers that received a shared result",
	})

	dedupInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "apicache_dedup_inflight",
		Help: "Number of computations currently in flight",
	})
)

// ErrComputePanic is broadcast to all waiters when the computation panics.
var ErrComputePanic = errors.New("computation panicked")

// ComputeFunc produces the shared result for a key.
type ComputeFunc func(ctx context.Context) (any, error)

// Tracker tracks computations in flight by key.
//
// The check-or-insert of a key record is atomic, the computation runs outside
// the lock, and the record is removed before waiters are released, so a call
// arriving after completion always starts fresh. Failures are not remembered.
type Tracker struct {
	group    singleflight.Group
	inflight atomic.Int64
	logger   zerolog.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		logger: logger,
	}
}

// Coalesce returns the outcome of compute for key, running it at most once
// across concurrent callers. shared reports whether the outcome was delivered
// to more than one caller.
//
// compute receives a context detached from ctx's cancellation, so the first
// caller going away does not abort the result the others are waiting for.
// A caller whose ctx is done stops waiting and gets ctx.Err().
func (t *Tracker) Coalesce(ctx context.Context, key string, compute ComputeFunc) (value any, shared bool, err error) {
	detached := context.WithoutCancel(ctx)

	ch := t.group.DoChan(key, func() (v any, err error) {
		t.inflight.Add(1)
		dedupInFlight.Inc()
		dedupExecutionsTotal.Inc()
		defer func() {
			t.inflight.Add(-1)
			dedupInFlight.Dec()
			if r := recover(); r != nil {
				t.logger.Error().
					Str("key", key).
					Interface("panic", r).
					Msg("Coalesced computation panicked")
				v, err = nil, fmt.Errorf("%w: %v", ErrComputePanic, r)
			}
		}()

		t.logger.Debug().Str("key", key).Msg("Starting coalesced computation")
		return compute(detached)
	})

	select {
	case res := <-ch:
		if res.Shared {
			dedupSharedTotal.Inc()
			t.logger.Debug().Str("key", key).Msg("Received shared result")
		}
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// InFlight returns the number of computations currently running.
func (t *Tracker) InFlight() int {
	return int(t.inflight.Load())
}
