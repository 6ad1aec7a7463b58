package capture

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSilenceUpdate(t *testing.T) {
	base := time.Now()
	a := &fakeAnalyzer{}
	d := &silenceDetector{
		analyzer:  a,
		threshold: 0.01,
		timeout:   5 * time.Second,
	}

	steps := []struct {
		name  string
		level float64
		at    time.Time
		want  bool
	}{
		{"sound keeps timer unset", 0.5, base, false},
		{"first silent poll starts timer", 0.0, base.Add(time.Second), false},
		{"silence below timeout", 0.0, base.Add(3 * time.Second), false},
		{"sound resets timer", 0.2, base.Add(4 * time.Second), false},
		{"silence restarts from zero", 0.0, base.Add(5 * time.Second), false},
		{"still below timeout after reset", 0.0, base.Add(9 * time.Second), false},
		{"timeout elapsed", 0.0, base.Add(10 * time.Second), true},
	}

	for _, step := range steps {
		a.setLevel(step.level)
		if got := d.update(step.at); got != step.want {
			t.Fatalf("%s: update = %v, want %v", step.name, got, step.want)
		}
	}
}

func TestSilenceTriggersExactlyOnce(t *testing.T) {
	a := &fakeAnalyzer{} // level 0, permanently silent
	var fired atomic.Int32

	d := startSilenceDetector(a, 0.01, 300*time.Millisecond, func() {
		fired.Add(1)
	})
	defer d.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if fired.Load() == 0 {
		t.Fatal("silence trigger never fired")
	}

	// The loop retires after firing; no second trigger.
	time.Sleep(500 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("trigger fired %d times, want 1", got)
	}
}

func TestSilenceStopIsIdempotent(t *testing.T) {
	a := &fakeAnalyzer{level: 0.5}
	d := startSilenceDetector(a, 0.01, time.Hour, func() {
		t.Error("trigger fired with sound present")
	})

	d.Stop()
	d.Stop()
}

func TestSamplerClampsAndStops(t *testing.T) {
	a := &fakeAnalyzer{level: 0.9} // 0.9 * visualGain > 1, must clamp

	levels := make(chan float64, 64)
	s := startSampler(a, func(level float64) {
		select {
		case levels <- level:
		default:
		}
	})

	select {
	case level := <-levels:
		if level != 1 {
			t.Fatalf("level = %v, want clamped 1", level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sampler emitted nothing")
	}

	s.Stop()
	s.Stop() // idempotent

	// Drain, then confirm nothing more arrives after Stop returned.
	for len(levels) > 0 {
		<-levels
	}
	time.Sleep(3 * samplerInterval)
	if len(levels) != 0 {
		t.Error("sampler emitted after Stop")
	}
}

func TestDurationTickerEmitsElapsedSeconds(t *testing.T) {
	ticks := make(chan int, 16)
	ticker := startDurationTicker(time.Now().Add(-3*time.Second), func(seconds int) {
		select {
		case ticks <- seconds:
		default:
		}
	})
	defer ticker.Stop()

	select {
	case got := <-ticks:
		if got < 3 || got > 5 {
			t.Fatalf("tick = %d, want roughly 4", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("ticker emitted nothing")
	}
}

func TestMaxDurationTimer(t *testing.T) {
	var fired atomic.Int32
	m := newMaxDurationTimer()

	m.Arm(50*time.Millisecond, func() { fired.Add(1) })
	time.Sleep(200 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("trigger fired %d times, want 1", got)
	}

	// Cancelled timers never fire.
	m.Arm(50*time.Millisecond, func() { fired.Add(1) })
	m.Cancel()
	time.Sleep(200 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("trigger fired %d times after cancel, want 1", got)
	}

	m.Cancel() // idempotent
}

func TestMaxDurationTimerNonPositiveFiresImmediately(t *testing.T) {
	var fired atomic.Int32
	m := newMaxDurationTimer()

	m.Arm(-time.Second, func() { fired.Add(1) })
	deadline := time.Now().Add(time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if fired.Load() != 1 {
		t.Fatal("expired remainder did not fire")
	}
}
