package capture

import (
	"sync"
	"time"
)

// silencePollInterval is the fixed silence poll cadence.
const silencePollInterval = 200 * time.Millisecond

// silenceDetector polls the signal analyzer at a fixed interval and
// tracks continuous sub-threshold amplitude. Once the configured silence
// duration elapses it triggers exactly once; any above-threshold reading
// resets the timer. It is the only subsystem allowed to unilaterally
// initiate a stop with reason Silence.
type silenceDetector struct {
	analyzer  Analyzer
	threshold float64
	timeout   time.Duration
	trigger   func()

	triggerOnce sync.Once
	stopOnce    sync.Once
	stopCh      chan struct{}
	done        chan struct{}

	// silence-start timestamp, owned solely by the poll goroutine.
	silenceStart time.Time
}

func startSilenceDetector(analyzer Analyzer, threshold float64, timeout time.Duration, trigger func()) *silenceDetector {
	d := &silenceDetector{
		analyzer:  analyzer,
		threshold: threshold,
		timeout:   timeout,
		trigger:   trigger,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}

	go d.pollLoop()
	return d
}

func (d *silenceDetector) pollLoop() {
	defer close(d.done)
	ticker := time.NewTicker(silencePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			if d.update(time.Now()) {
				// Fire once on a separate goroutine, then retire: the
				// trigger tears the engine down, and teardown waits for
				// this loop to exit.
				go d.triggerOnce.Do(d.trigger)
				return
			}
		}
	}
}

// update advances the silence state for one poll and reports whether the
// silence timeout elapsed.
func (d *silenceDetector) update(now time.Time) bool {
	level := d.analyzer.Level()

	if level >= d.threshold {
		// Any sound resets the timer.
		d.silenceStart = time.Time{}
		return false
	}

	if d.silenceStart.IsZero() {
		d.silenceStart = now
		return false
	}

	return now.Sub(d.silenceStart) >= d.timeout
}

// Stop halts the poll loop and waits for it to exit. Idempotent.
func (d *silenceDetector) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	<-d.done
}
