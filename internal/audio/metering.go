// Package audio provides signal analysis for the live microphone stream:
// RMS level metering and a windowed analyzer shared by the level meter
// and the silence detector.
package audio

import (
	"encoding/binary"
	"math"
)

// MaxSampleValue is the maximum absolute value for 16-bit signed audio.
const MaxSampleValue = 32768.0

// FrameStats holds accumulated sample data for one PCM frame.
type FrameStats struct {
	SumSquares  float64
	Peak        float64
	SampleCount int
}

// ProcessSamples accumulates level data from mono S16LE PCM data.
func ProcessSamples(buf []byte, stats *FrameStats) {
	for i := 0; i+1 < len(buf); i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(buf[i:])))

		stats.SumSquares += sample * sample
		if abs := math.Abs(sample); abs > stats.Peak {
			stats.Peak = abs
		}
		stats.SampleCount++
	}
}

// RMS returns the root-mean-square level of the accumulated samples,
// normalized to [0,1].
func (s *FrameStats) RMS() float64 {
	if s.SampleCount == 0 {
		return 0
	}
	return math.Sqrt(s.SumSquares/float64(s.SampleCount)) / MaxSampleValue
}
