package audio

import (
	"fmt"
	"sync"
	"time"
)

// DefaultWindow is the analysis window over which Level averages.
const DefaultWindow = 250 * time.Millisecond

type windowEntry struct {
	sumSquares float64
	samples    int
	at         time.Time
}

// Analyzer computes a windowed RMS amplitude over the live PCM stream.
// Feed is called from the capture pump; Level may be called from any
// goroutine and returns a fresh reading at the moment of the call.
type Analyzer struct {
	window time.Duration

	mu      sync.Mutex
	entries []windowEntry
	closed  bool
}

// NewAnalyzer builds an analyzer over the given window. A non-positive
// window is rejected so a misconfigured analyzer never silently reports
// zero levels.
func NewAnalyzer(window time.Duration) (*Analyzer, error) {
	if window <= 0 {
		return nil, fmt.Errorf("invalid analysis window: %v", window)
	}
	return &Analyzer{window: window}, nil
}

// Feed accumulates one frame of mono S16LE PCM into the window.
func (a *Analyzer) Feed(pcm []byte) {
	var stats FrameStats
	ProcessSamples(pcm, &stats)
	if stats.SampleCount == 0 {
		return
	}

	now := time.Now()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.entries = append(a.entries, windowEntry{
		sumSquares: stats.SumSquares,
		samples:    stats.SampleCount,
		at:         now,
	})
	a.evict(now)
}

// Level returns the RMS amplitude of the current window, normalized to
// [0,1]. Returns 0 when no audio arrived within the window.
func (a *Analyzer) Level() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.evict(time.Now())

	var total FrameStats
	for _, e := range a.entries {
		total.SumSquares += e.sumSquares
		total.SampleCount += e.samples
	}
	return total.RMS()
}

// Close drops all buffered window data. Further Feed calls are ignored,
// Level reports 0. Idempotent.
func (a *Analyzer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.entries = nil
}

// evict drops entries older than the window. Must be called with mu held.
func (a *Analyzer) evict(now time.Time) {
	cutoff := now.Add(-a.window)
	i := 0
	for ; i < len(a.entries); i++ {
		if a.entries[i].at.After(cutoff) {
			break
		}
	}
	if i > 0 {
		a.entries = append(a.entries[:0], a.entries[i:]...)
	}
}
