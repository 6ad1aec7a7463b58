package capture

import (
	"sync"
	"time"
)

// tickInterval is the coarse duration tick cadence.
const tickInterval = time.Second

// durationTicker reports elapsed whole seconds once per second while the
// engine is Recording. Elapsed time is wall-clock since capture start, so
// time spent Paused still counts.
type durationTicker struct {
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func startDurationTicker(startedAt time.Time, emit func(seconds int)) *durationTicker {
	t := &durationTicker{
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-t.stopCh:
				return
			case <-ticker.C:
				emit(int(time.Since(startedAt).Seconds()))
			}
		}
	}()

	return t
}

// Stop halts the ticker and waits for it to exit. Idempotent.
func (t *durationTicker) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	<-t.done
}

// maxDurationTimer is the hard cutoff: a single deferred trigger armed at
// start for the configured maximum duration. It is cancelled on any
// stop/cancel/pause and re-armed with the remaining wall-clock time on
// resume, so it can never fire after teardown.
type maxDurationTimer struct {
	mu    sync.Mutex
	timer *time.Timer
}

func newMaxDurationTimer() *maxDurationTimer {
	return &maxDurationTimer{}
}

// Arm schedules trigger after d. A non-positive remainder fires
// immediately (asynchronously, like an expired timer would).
func (m *maxDurationTimer) Arm(d time.Duration, trigger func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	if d <= 0 {
		d = time.Nanosecond
	}
	m.timer = time.AfterFunc(d, trigger)
}

// Cancel stops any pending trigger. Idempotent.
func (m *maxDurationTimer) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
