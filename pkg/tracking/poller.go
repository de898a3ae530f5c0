package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/fusiondrive/CABSFlight/pkg/transit"
)

// DefaultPollInterval is how often the vehicle feed is polled.
const DefaultPollInterval = 3 * time.Second

// FetchFunc retrieves the current vehicle set for the active route.
type FetchFunc func(ctx context.Context) ([]transit.VehicleSnapshot, error)

// Poller repeatedly invokes a fetch on a fixed interval: fetch, apply,
// sleep, repeat. The first fetch fires immediately on Start.
//
// A failed fetch is reported through the error callback and does not halt
// the cycle; the next interval acts as the retry. Stopping the poller
// cancels the cycle at its next suspension point, and the result of any
// fetch still in flight is discarded rather than applied.
type Poller struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewPoller creates an idle poller.
func NewPoller() *Poller {
	return &Poller{}
}

// Start begins the polling cycle. Any cycle already running is superseded
// first, so at most one cycle is ever active. apply receives each
// successful result; onError receives each failure. Either callback may be
// nil.
func (p *Poller) Start(fetch FetchFunc, interval time.Duration, apply func([]transit.VehicleSnapshot), onError func(error)) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	go p.loop(ctx, fetch, interval, apply, onError)
}

// Stop halts the polling cycle. Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.running = false
	p.mu.Unlock()
}

// Running reports whether a polling cycle is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop(ctx context.Context, fetch FetchFunc, interval time.Duration, apply func([]transit.VehicleSnapshot), onError func(error)) {
	for {
		vehicles, err := fetch(ctx)

		// Stale result suppression: a fetch that completes after the
		// poller was stopped (or superseded) must not apply
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			if onError != nil {
				onError(err)
			}
		} else if apply != nil {
			apply(vehicles)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}
