package capture

import (
	"sync"
	"time"
)

const (
	// samplerInterval approximates one display frame.
	samplerInterval = 33 * time.Millisecond
	// visualGain scales raw RMS readings for visual responsiveness;
	// speech RMS rarely exceeds a quarter of full scale.
	visualGain = 4.0
)

// sampler drives the level meter: a per-frame loop that reads the signal
// analyzer and emits a scaled, clamped amplitude. Active only while the
// engine is Recording; every start has exactly one matching stop.
type sampler struct {
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func startSampler(analyzer Analyzer, emit func(level float64)) *sampler {
	s := &sampler{
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(samplerInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				level := analyzer.Level() * visualGain
				if level > 1 {
					level = 1
				}
				emit(level)
			}
		}
	}()

	return s
}

// Stop halts the loop and waits for it to exit. Idempotent.
func (s *sampler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.done
}
