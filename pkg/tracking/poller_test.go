package tracking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fusiondrive/CABSFlight/pkg/transit"
)

func TestPollerFetchesImmediately(t *testing.T) {
	p := NewPoller()
	defer p.Stop()

	var fetches, applies atomic.Int64
	p.Start(
		func(ctx context.Context) ([]transit.VehicleSnapshot, error) {
			fetches.Add(1)
			return []transit.VehicleSnapshot{{ID: "bus-1"}}, nil
		},
		time.Hour,
		func([]transit.VehicleSnapshot) { applies.Add(1) },
		nil,
	)

	if !waitFor(t, time.Second, func() bool { return applies.Load() == 1 }) {
		t.Fatalf("Expected one immediate fetch, got %d fetches and %d applies", fetches.Load(), applies.Load())
	}
	if fetches.Load() != 1 {
		t.Errorf("Expected exactly one fetch before the first interval, got %d", fetches.Load())
	}
}

func TestPollerRepeatsOnInterval(t *testing.T) {
	p := NewPoller()
	defer p.Stop()

	var fetches atomic.Int64
	p.Start(
		func(ctx context.Context) ([]transit.VehicleSnapshot, error) {
			fetches.Add(1)
			return nil, nil
		},
		10*time.Millisecond,
		nil,
		nil,
	)

	if !waitFor(t, 2*time.Second, func() bool { return fetches.Load() >= 3 }) {
		t.Errorf("Expected at least 3 fetches on a 10ms interval, got %d", fetches.Load())
	}
}

// TestPollerContinuesAfterError verifies the retry-next-cycle policy: a
// failed fetch is reported and the cycle keeps running.
func TestPollerContinuesAfterError(t *testing.T) {
	p := NewPoller()
	defer p.Stop()

	var fetches, applies atomic.Int64
	var mu sync.Mutex
	var reported []error

	p.Start(
		func(ctx context.Context) ([]transit.VehicleSnapshot, error) {
			if fetches.Add(1) == 1 {
				return nil, errors.New("feed unavailable")
			}
			return []transit.VehicleSnapshot{{ID: "bus-1"}}, nil
		},
		10*time.Millisecond,
		func([]transit.VehicleSnapshot) { applies.Add(1) },
		func(err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		},
	)

	if !waitFor(t, 2*time.Second, func() bool { return applies.Load() >= 1 }) {
		t.Fatal("Expected polling to recover after a failed fetch")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(reported) != 1 {
		t.Fatalf("Expected exactly one reported error, got %d", len(reported))
	}
	if reported[0].Error() != "feed unavailable" {
		t.Errorf("Expected the fetch error passed through, got %v", reported[0])
	}
}

// TestPollerStopDiscardsInFlightResult verifies that a fetch completing
// after Stop never reaches the apply callback.
func TestPollerStopDiscardsInFlightResult(t *testing.T) {
	p := NewPoller()

	release := make(chan struct{})
	started := make(chan struct{})
	var applies, errored atomic.Int64

	p.Start(
		func(ctx context.Context) ([]transit.VehicleSnapshot, error) {
			close(started)
			<-release
			return []transit.VehicleSnapshot{{ID: "bus-1"}}, nil
		},
		10*time.Millisecond,
		func([]transit.VehicleSnapshot) { applies.Add(1) },
		func(error) { errored.Add(1) },
	)

	<-started
	p.Stop()
	close(release)

	time.Sleep(50 * time.Millisecond)
	if applies.Load() != 0 {
		t.Errorf("Expected stale fetch result discarded, got %d applies", applies.Load())
	}
	if errored.Load() != 0 {
		t.Errorf("Expected no error callback after stop, got %d", errored.Load())
	}
}

func TestPollerStopIsIdempotent(t *testing.T) {
	p := NewPoller()
	p.Start(
		func(ctx context.Context) ([]transit.VehicleSnapshot, error) { return nil, nil },
		time.Hour,
		nil,
		nil,
	)

	if !p.Running() {
		t.Error("Expected poller running after start")
	}
	p.Stop()
	p.Stop()
	if p.Running() {
		t.Error("Expected poller stopped after stop")
	}
}

// TestPollerRestartSupersedes verifies that starting a new cycle cancels
// the previous one rather than running two cycles side by side.
func TestPollerRestartSupersedes(t *testing.T) {
	p := NewPoller()
	defer p.Stop()

	var first, second atomic.Int64
	p.Start(
		func(ctx context.Context) ([]transit.VehicleSnapshot, error) {
			first.Add(1)
			return nil, nil
		},
		10*time.Millisecond,
		nil,
		nil,
	)

	if !waitFor(t, time.Second, func() bool { return first.Load() >= 1 }) {
		t.Fatal("Expected first cycle to start fetching")
	}

	p.Start(
		func(ctx context.Context) ([]transit.VehicleSnapshot, error) {
			second.Add(1)
			return nil, nil
		},
		10*time.Millisecond,
		nil,
		nil,
	)

	if !waitFor(t, time.Second, func() bool { return second.Load() >= 2 }) {
		t.Fatal("Expected second cycle to take over")
	}

	settled := first.Load()
	time.Sleep(50 * time.Millisecond)
	if first.Load() != settled {
		t.Errorf("Expected first cycle halted after restart, fetch count moved from %d to %d", settled, first.Load())
	}
}
