// Package probe inspects the host once to determine what the capture
// engine can use: microphone access, the recording engine, live
// transcription and the ranked list of supported encodings.
package probe

import (
	"context"
	"log"
	"os/exec"
	"strings"
	"time"

	"github.com/fieldscribe/fieldscribe/internal/recording"
)

// Capabilities reports what the host supports. Computed once per probe
// and consulted by every subsystem at startup instead of scattered
// runtime checks.
type Capabilities struct {
	Microphone        bool
	Recorder          bool
	LiveTranscription bool
	Encodings         []recording.Encoding
}

// Supports reports whether the encoding identifier is usable on this host.
func (c Capabilities) Supports(encodingID string) bool {
	for _, e := range c.Encodings {
		if strings.EqualFold(e.ID, encodingID) {
			return true
		}
	}
	return false
}

// Probe is a pure query with no side effects; it may be called any number
// of times. transcriptionConfigured reports whether a live transcription
// provider is configured (API key present) — the probe only adds the
// host-side check.
func Probe(ctx context.Context, transcriptionConfigured bool) Capabilities {
	if ctx == nil {
		ctx = context.Background()
	}

	caps := Capabilities{
		Microphone:        recording.CheckPipeWireAvailable(ctx) == nil,
		Recorder:          recording.CheckEncoderAvailable() == nil,
		LiveTranscription: transcriptionConfigured,
	}
	if caps.Recorder {
		caps.Encodings = supportedEncodings(ctx)
		if len(caps.Encodings) == 0 {
			caps.Recorder = false
		}
	}
	return caps
}

// supportedEncodings filters the preference list against the codecs the
// installed ffmpeg actually provides, preserving preference order.
func supportedEncodings(ctx context.Context) []recording.Encoding {
	listCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	out, err := exec.CommandContext(listCtx, "ffmpeg", "-hide_banner", "-encoders").Output()
	if err != nil {
		log.Printf("Probe: list encoders failed: %v", err)
		return nil
	}

	available := string(out)
	var supported []recording.Encoding
	for _, e := range recording.PreferredEncodings {
		if strings.Contains(available, " "+e.Codec+" ") {
			supported = append(supported, e)
		}
	}
	return supported
}
