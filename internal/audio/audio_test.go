package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

// pcmFrame builds a mono S16LE frame where every sample has the given
// amplitude.
func pcmFrame(amplitude int16, samples int) []byte {
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(amplitude))
	}
	return buf
}

func TestProcessSamples(t *testing.T) {
	tests := []struct {
		name      string
		buf       []byte
		wantCount int
		wantPeak  float64
		wantRMS   float64
	}{
		{"empty buffer", nil, 0, 0, 0},
		{"single truncated byte", []byte{0x12}, 0, 0, 0},
		{"digital silence", pcmFrame(0, 100), 100, 0, 0},
		{"half scale", pcmFrame(16384, 100), 100, 16384, 0.5},
		{"negative amplitude", pcmFrame(-16384, 100), 100, 16384, 0.5},
		{"near full scale", pcmFrame(-32768, 10), 10, 32768, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stats FrameStats
			ProcessSamples(tt.buf, &stats)

			if stats.SampleCount != tt.wantCount {
				t.Errorf("SampleCount = %d, want %d", stats.SampleCount, tt.wantCount)
			}
			if stats.Peak != tt.wantPeak {
				t.Errorf("Peak = %v, want %v", stats.Peak, tt.wantPeak)
			}
			if got := stats.RMS(); math.Abs(got-tt.wantRMS) > 1e-9 {
				t.Errorf("RMS = %v, want %v", got, tt.wantRMS)
			}
		})
	}
}

func TestProcessSamplesAccumulates(t *testing.T) {
	var stats FrameStats
	ProcessSamples(pcmFrame(16384, 50), &stats)
	ProcessSamples(pcmFrame(16384, 50), &stats)

	if stats.SampleCount != 100 {
		t.Errorf("SampleCount = %d, want 100", stats.SampleCount)
	}
	if got := stats.RMS(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("RMS = %v, want 0.5", got)
	}
}

func TestNewAnalyzerRejectsBadWindow(t *testing.T) {
	if _, err := NewAnalyzer(0); err == nil {
		t.Error("zero window accepted")
	}
	if _, err := NewAnalyzer(-time.Second); err == nil {
		t.Error("negative window accepted")
	}
	if _, err := NewAnalyzer(DefaultWindow); err != nil {
		t.Errorf("default window rejected: %v", err)
	}
}

func TestAnalyzerLevel(t *testing.T) {
	a, err := NewAnalyzer(time.Minute) // wide window, no eviction in-test
	if err != nil {
		t.Fatalf("NewAnalyzer failed: %v", err)
	}

	if got := a.Level(); got != 0 {
		t.Errorf("Level with no audio = %v, want 0", got)
	}

	a.Feed(pcmFrame(16384, 256))
	if got := a.Level(); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Level = %v, want 0.5", got)
	}

	// Silence pulls the windowed average down.
	a.Feed(pcmFrame(0, 256*3))
	if got := a.Level(); got >= 0.5 || got == 0 {
		t.Errorf("Level = %v, want between 0 and 0.5", got)
	}
}

func TestAnalyzerEvictsOldEntries(t *testing.T) {
	a, err := NewAnalyzer(30 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewAnalyzer failed: %v", err)
	}

	a.Feed(pcmFrame(16384, 256))
	time.Sleep(60 * time.Millisecond)

	if got := a.Level(); got != 0 {
		t.Errorf("Level after window elapsed = %v, want 0", got)
	}
}

func TestAnalyzerClose(t *testing.T) {
	a, err := NewAnalyzer(time.Minute)
	if err != nil {
		t.Fatalf("NewAnalyzer failed: %v", err)
	}

	a.Feed(pcmFrame(16384, 256))
	a.Close()
	a.Close() // idempotent

	if got := a.Level(); got != 0 {
		t.Errorf("Level after Close = %v, want 0", got)
	}

	a.Feed(pcmFrame(16384, 256)) // ignored
	if got := a.Level(); got != 0 {
		t.Errorf("Level after Feed on closed analyzer = %v, want 0", got)
	}
}
