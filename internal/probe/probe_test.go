package probe

import (
	"context"
	"testing"
	"time"

	"github.com/fieldscribe/fieldscribe/internal/recording"
)

func TestSupports(t *testing.T) {
	caps := Capabilities{Encodings: recording.PreferredEncodings[:2]}

	tests := []struct {
		id   string
		want bool
	}{
		{"audio/webm;codecs=opus", true},
		{"AUDIO/WEBM;CODECS=OPUS", true}, // case-insensitive
		{"audio/ogg;codecs=opus", true},
		{"audio/aac", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := caps.Supports(tt.id); got != tt.want {
			t.Errorf("Supports(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestProbeReflectsTranscriptionConfig(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if got := Probe(ctx, true); !got.LiveTranscription {
		t.Error("LiveTranscription = false with a configured provider")
	}
	if got := Probe(ctx, false); got.LiveTranscription {
		t.Error("LiveTranscription = true with no configured provider")
	}
}

func TestProbeEncodingsPreserveOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	caps := Probe(ctx, false)
	if !caps.Recorder {
		t.Skip("no recorder on this host")
	}

	// Whatever subset is supported must follow the preference order.
	idx := -1
	for _, enc := range caps.Encodings {
		found := -1
		for i, pref := range recording.PreferredEncodings {
			if pref.ID == enc.ID {
				found = i
				break
			}
		}
		if found == -1 {
			t.Fatalf("unknown encoding %s reported", enc.ID)
		}
		if found <= idx {
			t.Fatalf("encodings out of preference order: %v", caps.Encodings)
		}
		idx = found
	}
}
