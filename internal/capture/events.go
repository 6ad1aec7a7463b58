package capture

// Sink receives engine events. One method per event kind keeps the
// engine's emission points enumerable and testable in isolation.
type Sink interface {
	StateChanged(state State)
	Transcript(text string, final bool)
	Level(level float64)
	DurationTick(seconds int)
	Completed(result *Result)
	CaptureError(err *Error)
}

// NopSink is a Sink that does absolutely nothing.
// Useful in unit tests and after Destroy detaches the caller's sink.
type NopSink struct{}

func (NopSink) StateChanged(State)      {}
func (NopSink) Transcript(string, bool) {}
func (NopSink) Level(float64)           {}
func (NopSink) DurationTick(int)        {}
func (NopSink) Completed(*Result)       {}
func (NopSink) CaptureError(*Error)     {}
