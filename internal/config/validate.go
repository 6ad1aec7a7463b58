package config

import (
	"fmt"

	"github.com/fieldscribe/fieldscribe/internal/recording"
)

func (c *Config) Validate() error {
	if c.Recording.SampleRate <= 0 {
		return fmt.Errorf("invalid recording.sample_rate: %d", c.Recording.SampleRate)
	}
	if c.Recording.Channels <= 0 {
		return fmt.Errorf("invalid recording.channels: %d", c.Recording.Channels)
	}
	if c.Recording.BufferSize <= 0 {
		return fmt.Errorf("invalid recording.buffer_size: %d", c.Recording.BufferSize)
	}
	if c.Recording.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid recording.channel_buffer_size: %d", c.Recording.ChannelBufferSize)
	}
	if c.Recording.Format == "" {
		return fmt.Errorf("invalid recording.format: empty")
	}

	if c.Capture.SilenceTimeout <= 0 {
		return fmt.Errorf("invalid capture.silence_timeout: %v", c.Capture.SilenceTimeout)
	}
	if c.Capture.SilenceThreshold < 0 || c.Capture.SilenceThreshold > 1 {
		return fmt.Errorf("invalid capture.silence_threshold: %v (must be in [0,1])", c.Capture.SilenceThreshold)
	}
	if c.Capture.MaxDuration <= 0 {
		return fmt.Errorf("invalid capture.max_duration: %v", c.Capture.MaxDuration)
	}
	if c.Capture.Encoding != "" {
		if _, ok := recording.LookupEncoding(c.Capture.Encoding); !ok {
			return fmt.Errorf("invalid capture.encoding: %s (must be one of %s)", c.Capture.Encoding, encodingIDs())
		}
	}

	switch c.Transcription.Provider {
	case "deepgram", "openai":
	case "":
		return fmt.Errorf("invalid transcription.provider: empty")
	default:
		return fmt.Errorf("unsupported transcription.provider: %s (must be deepgram or openai)", c.Transcription.Provider)
	}

	if c.Transcription.Language != "" && !isValidLanguageCode(c.Transcription.Language) {
		return fmt.Errorf("invalid transcription.language: %s (use empty string for auto-detect or ISO-639-1 codes like 'en', 'es', 'fr')", c.Transcription.Language)
	}
	if c.General.Language != "" && !isValidLanguageCode(c.General.Language) {
		return fmt.Errorf("invalid general.language: %s (use empty string for auto-detect or ISO-639-1 codes like 'en', 'es', 'fr')", c.General.Language)
	}

	validTypes := map[string]bool{"desktop": true, "log": true, "none": true}
	if !validTypes[c.Notifications.Type] {
		return fmt.Errorf("invalid notifications.type: %s (must be desktop, log, or none)", c.Notifications.Type)
	}

	return nil
}

func encodingIDs() string {
	ids := ""
	for i, enc := range recording.PreferredEncodings {
		if i > 0 {
			ids += ", "
		}
		ids += enc.ID
	}
	return ids
}

func isValidLanguageCode(code string) bool {
	validCodes := map[string]bool{
		"en": true, "es": true, "fr": true, "de": true, "it": true, "pt": true,
		"ru": true, "ja": true, "ko": true, "zh": true, "ar": true, "hi": true,
		"nl": true, "sv": true, "da": true, "no": true, "fi": true, "pl": true,
		"tr": true, "he": true, "th": true, "vi": true, "id": true, "ms": true,
		"uk": true, "cs": true, "hu": true, "ro": true, "bg": true, "hr": true,
		"sk": true, "sl": true, "et": true, "lv": true, "lt": true, "mt": true,
		"cy": true, "ga": true, "eu": true, "ca": true, "gl": true, "is": true,
		"mk": true, "sq": true, "az": true, "be": true, "ka": true, "hy": true,
		"kk": true, "ky": true, "tg": true, "uz": true, "mn": true, "ne": true,
		"si": true, "km": true, "lo": true, "my": true, "fa": true, "ps": true,
		"ur": true, "bn": true, "ta": true, "te": true, "ml": true, "kn": true,
		"gu": true, "pa": true, "or": true, "as": true, "mr": true, "sa": true,
		"sw": true, "yo": true, "ig": true, "ha": true, "zu": true, "xh": true,
		"af": true, "am": true, "mg": true, "so": true, "sn": true, "rw": true,
	}
	return validCodes[code]
}
