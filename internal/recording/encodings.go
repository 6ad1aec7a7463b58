package recording

import "strings"

// Encoding describes one supported output encoding: a MIME-style
// identifier, the file extension used at handoff, and the ffmpeg codec
// and muxer that produce it.
type Encoding struct {
	ID        string // MIME-style identifier, e.g. "audio/webm;codecs=opus"
	Extension string
	Codec     string // ffmpeg encoder name
	Muxer     string // ffmpeg output format
}

// PreferredEncodings is the fixed preference list, most preferred first.
// AAC is emitted as an ADTS stream rather than mp4: the mp4 muxer needs a
// seekable output and the encoder writes to a pipe.
var PreferredEncodings = []Encoding{
	{ID: "audio/webm;codecs=opus", Extension: "webm", Codec: "libopus", Muxer: "webm"},
	{ID: "audio/ogg;codecs=opus", Extension: "ogg", Codec: "libopus", Muxer: "ogg"},
	{ID: "audio/aac", Extension: "aac", Codec: "aac", Muxer: "adts"},
}

// LookupEncoding resolves an encoding identifier against the preference
// list. The empty identifier resolves to the most preferred encoding.
func LookupEncoding(id string) (Encoding, bool) {
	if id == "" {
		return PreferredEncodings[0], true
	}
	for _, e := range PreferredEncodings {
		if strings.EqualFold(e.ID, id) {
			return e, true
		}
	}
	return Encoding{}, false
}
