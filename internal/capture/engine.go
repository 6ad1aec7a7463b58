package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fieldscribe/fieldscribe/internal/probe"
	"github.com/fieldscribe/fieldscribe/internal/recording"
	"github.com/fieldscribe/fieldscribe/internal/transcriber"
)

// Microphone is the exclusive audio input resource. Acquire is the only
// operation in the engine allowed to prompt the user; Release must be
// idempotent.
type Microphone interface {
	Acquire(ctx context.Context) (<-chan recording.AudioFrame, <-chan error, error)
	Release() error
}

// Encoder turns raw PCM into buffered encoded chunks and assembles the
// final payload.
type Encoder interface {
	Start(ctx context.Context, encoding recording.Encoding) error
	Write(pcm []byte) error
	Finalize(ctx context.Context) ([]byte, error)
}

// Analyzer exposes a fresh windowed RMS reading of the live signal.
type Analyzer interface {
	Feed(pcm []byte)
	Level() float64
	Close()
}

// Deps wires the engine's subsystems. NewAnalyzer and NewLive are
// optional: a nil factory (or a factory error) puts the engine in
// degraded mode for that feature, which is logged but never surfaced.
type Deps struct {
	Microphone  Microphone
	Encoder     Encoder
	NewAnalyzer func() (Analyzer, error)
	NewLive     func(emit func(text string, final bool), active func() bool) (transcriber.Live, error)
	Caps        probe.Capabilities
}

// Engine is the capture state machine. One Engine serves exactly one
// capture attempt; a new attempt starts from a fresh instance.
//
// All state lives on the instance: multiple engines may exist in one
// process, though only one capture is active per instance.
type Engine struct {
	cfg  Config
	deps Deps

	sinkMu sync.RWMutex
	sink   Sink

	mu        sync.Mutex
	state     State
	destroyed bool
	reason    StopReason

	// per-attempt state, reset at Start
	cancel     context.CancelFunc
	analyzer   Analyzer
	live       transcriber.Live
	encoding   recording.Encoding
	startedAt  time.Time
	endedAt    time.Time
	paused     atomic.Bool
	transcript string // finalized transcript, captured at teardown

	sampler  *sampler
	silence  *silenceDetector
	ticker   *durationTicker
	maxTimer *maxDurationTimer

	pumpQuit chan struct{}
	pumpWg   sync.WaitGroup
}

// New builds an engine in the Idle state.
func New(cfg Config, deps Deps, sink Sink) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Microphone == nil {
		return nil, fmt.Errorf("capture: microphone required")
	}
	if deps.Encoder == nil {
		return nil, fmt.Errorf("capture: encoder required")
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Engine{
		cfg:      cfg,
		deps:     deps,
		sink:     sink,
		state:    StateIdle,
		maxTimer: newMaxDurationTimer(),
	}, nil
}

// Start begins a capture attempt: capability check, microphone
// acquisition (the only step that may await user interaction), then
// parallel startup of the recording, analysis, transcription and timer
// subsystems. The engine transitions to Recording only once the
// recording subsystem is running; any required-step failure aborts the
// attempt and releases everything acquired so far.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return fmt.Errorf("capture: engine destroyed")
	}
	if e.state != StateIdle {
		e.mu.Unlock()
		capErr := NewError(CodeAlreadyRecording, "capture already in progress", nil)
		e.emitError(capErr)
		return capErr
	}
	// Reset all ephemeral state for the fresh attempt.
	e.reason = ""
	e.transcript = ""
	e.startedAt = time.Time{}
	e.endedAt = time.Time{}
	e.paused.Store(false)
	e.state = StateRequestingPermission
	e.mu.Unlock()
	e.emitState(StateRequestingPermission)

	// Fail fast before touching hardware when the host cannot record.
	caps := e.deps.Caps
	if !caps.Recorder {
		return e.failStart(ReasonError, NewError(CodeHostUnsupported, "recording engine unavailable on this host", nil))
	}
	encoding, ok := e.resolveEncoding(caps)
	if !ok {
		return e.failStart(ReasonError, NewError(CodeRecorderUnsupported,
			fmt.Sprintf("encoding %q not supported", e.cfg.PreferredEncoding), nil))
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	// May block indefinitely awaiting the permission grant or denial.
	frames, recErrs, err := e.deps.Microphone.Acquire(sessionCtx)
	if err != nil {
		cancel()
		e.mu.Lock()
		aborted := e.state != StateRequestingPermission
		e.mu.Unlock()
		if aborted {
			// Cancel interrupted the acquisition; not a failure.
			return nil
		}
		capErr := classifyAcquisition(err)
		return e.failStart(reasonForCode(capErr.Code), capErr)
	}

	if err := e.deps.Encoder.Start(sessionCtx, encoding); err != nil {
		_ = e.deps.Microphone.Release()
		cancel()
		return e.failStart(ReasonError, NewError(CodeRecordingFailed, "failed to start encoder", err))
	}

	// Best-effort subsystems: construction failure means degraded mode,
	// logged but never surfaced as a caller-visible error.
	var analyzer Analyzer
	if e.deps.NewAnalyzer != nil {
		a, err := e.deps.NewAnalyzer()
		if err != nil {
			log.Printf("capture: signal analysis unavailable, level meter and silence cutoff disabled: %v", err)
		} else {
			analyzer = a
		}
	}

	var live transcriber.Live
	if e.cfg.LiveTranscription && e.deps.NewLive != nil {
		lv, err := e.deps.NewLive(e.emitTranscript, e.liveActive)
		if err != nil {
			log.Printf("capture: live transcription unavailable: %v", err)
		} else if err := lv.Start(sessionCtx, e.cfg.Language); err != nil {
			log.Printf("capture: live transcription failed to start: %v", err)
		} else {
			live = lv
		}
	}

	startedAt := time.Now()

	e.mu.Lock()
	if e.state != StateRequestingPermission {
		// Cancelled while starting up: unwind everything acquired.
		e.mu.Unlock()
		if live != nil {
			_ = live.Stop(context.Background())
		}
		if analyzer != nil {
			analyzer.Close()
		}
		_ = e.deps.Microphone.Release()
		cancel()
		return nil
	}

	e.analyzer = analyzer
	e.live = live
	e.encoding = encoding
	e.startedAt = startedAt

	e.pumpQuit = make(chan struct{})
	e.pumpWg.Add(1)
	go e.pump(frames, recErrs, e.pumpQuit)

	if analyzer != nil {
		e.sampler = startSampler(analyzer, e.emitLevel)
		e.silence = startSilenceDetector(analyzer, e.cfg.SilenceThreshold, e.cfg.SilenceTimeout,
			func() { e.autoStop(ReasonSilence) })
	}
	e.ticker = startDurationTicker(startedAt, e.emitTick)
	e.maxTimer.Arm(e.cfg.MaxDuration, func() { e.autoStop(ReasonMaxDuration) })

	e.state = StateRecording
	e.mu.Unlock()
	e.emitState(StateRecording)
	log.Printf("capture: recording started, encoding=%s", encoding.ID)
	return nil
}

// Stop ends the capture and produces the result. Valid only from
// Recording or Paused; every stop path (user, silence, max duration)
// converges here and tears down subsystems in a fixed order.
func (e *Engine) Stop(ctx context.Context, reason StopReason) (*Result, error) {
	if reason == "" {
		reason = ReasonUser
	}

	e.mu.Lock()
	if e.state != StateRecording && e.state != StatePaused {
		e.mu.Unlock()
		return nil, NewError(CodeNotRecording, "no active capture to stop", nil)
	}
	e.state = StateStopping
	e.reason = reason
	startedAt := e.startedAt
	e.mu.Unlock()
	e.emitState(StateStopping)

	payload, encodingID := e.teardown(ctx)

	endedAt := time.Now()
	duration := endedAt.Sub(startedAt).Seconds()

	e.mu.Lock()
	transcript := e.transcript
	e.endedAt = endedAt
	e.state = StateCompleted
	e.mu.Unlock()
	e.emitState(StateCompleted)

	// An empty payload is a failed capture even though the state machine
	// reaches Completed for bookkeeping: the caller gets an error event,
	// not a result event.
	if len(payload) == 0 {
		capErr := NewError(CodeRecordingFailed, "no audio captured", nil)
		e.emitError(capErr)
		return nil, capErr
	}

	result := &Result{
		Payload:    payload,
		Encoding:   encodingID,
		Duration:   duration,
		Transcript: transcript,
		Reason:     reason,
		StartedAt:  startedAt,
		EndedAt:    endedAt,
	}
	e.emitCompleted(result)
	log.Printf("capture: completed, reason=%s, duration=%.1fs, %d bytes", reason, duration, len(payload))
	return result, nil
}

// Pause suspends the level meter, silence detector and live
// transcription while keeping the microphone and encoder alive. The
// max-duration cutoff is disarmed so it cannot fire during teardown; it
// is re-armed on Resume with the remaining wall-clock time.
func (e *Engine) Pause(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateRecording {
		e.mu.Unlock()
		return NewError(CodeNotRecording, "no active recording to pause", nil)
	}
	silence, smp, ticker, live := e.silence, e.sampler, e.ticker, e.live
	e.silence, e.sampler, e.ticker = nil, nil, nil
	e.paused.Store(true)
	e.state = StatePaused
	e.mu.Unlock()

	e.maxTimer.Cancel()
	if ticker != nil {
		ticker.Stop()
	}
	if silence != nil {
		silence.Stop()
	}
	if smp != nil {
		smp.Stop()
	}
	if live != nil {
		if err := live.Pause(ctx); err != nil {
			log.Printf("capture: pause live transcription: %v", err)
		}
	}

	e.emitState(StatePaused)
	return nil
}

// Resume restarts exactly the subsystems Pause suspended.
func (e *Engine) Resume(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StatePaused {
		e.mu.Unlock()
		return NewError(CodeNotRecording, "no paused recording to resume", nil)
	}
	analyzer, live, startedAt := e.analyzer, e.live, e.startedAt
	if analyzer != nil {
		e.sampler = startSampler(analyzer, e.emitLevel)
		e.silence = startSilenceDetector(analyzer, e.cfg.SilenceThreshold, e.cfg.SilenceTimeout,
			func() { e.autoStop(ReasonSilence) })
	}
	e.ticker = startDurationTicker(startedAt, e.emitTick)
	e.paused.Store(false)
	e.state = StateRecording
	e.mu.Unlock()

	// Wall-clock accounting: time spent paused still counts toward the
	// maximum duration.
	e.maxTimer.Arm(e.cfg.MaxDuration-time.Since(startedAt), func() { e.autoStop(ReasonMaxDuration) })

	if live != nil {
		if err := live.Resume(ctx); err != nil {
			log.Printf("capture: resume live transcription: %v", err)
		}
	}

	e.emitState(StateRecording)
	return nil
}

// Cancel aborts the capture from any active state, discarding all
// buffered audio and transcript: no result, no error, back to Idle.
// Idempotent with a teardown already in progress.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	switch e.state {
	case StateRecording, StatePaused:
		e.state = StateStopping
		e.mu.Unlock()

	case StateRequestingPermission:
		// Abort the pending acquisition; Start observes the state
		// change and unwinds.
		e.state = StateIdle
		cancel := e.cancel
		e.cancel = nil
		e.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		_ = e.deps.Microphone.Release()
		e.emitState(StateIdle)
		return nil

	default:
		e.mu.Unlock()
		return nil
	}

	ctx, cancelCtx := context.WithTimeout(context.Background(), 5*time.Second)
	e.teardown(ctx)
	cancelCtx()

	e.mu.Lock()
	e.state = StateIdle
	e.transcript = ""
	e.startedAt, e.endedAt = time.Time{}, time.Time{}
	e.mu.Unlock()
	e.emitState(StateIdle)
	log.Printf("capture: cancelled, buffers discarded")
	return nil
}

// Destroy cancels any active capture and permanently detaches the
// caller's sink. The engine must not be reused afterward. The destroyed
// flag is set before the cancel so a Start racing with Destroy either
// observes the flag or gets its acquisition aborted; it can never commit.
func (e *Engine) Destroy() {
	e.mu.Lock()
	e.destroyed = true
	e.mu.Unlock()

	_ = e.Cancel()

	e.sinkMu.Lock()
	e.sink = NopSink{}
	e.sinkMu.Unlock()
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsRecording reports whether a capture is in progress (Recording or
// Paused).
func (e *Engine) IsRecording() bool {
	s := e.State()
	return s == StateRecording || s == StatePaused
}

// Transcript returns the finalized transcript accumulated so far, with
// no interim fragments.
func (e *Engine) Transcript() string {
	e.mu.Lock()
	live, stored := e.live, e.transcript
	e.mu.Unlock()
	if live != nil {
		return live.Transcript()
	}
	return stored
}

// ElapsedSeconds reports wall-clock seconds since capture start; paused
// time counts.
func (e *Engine) ElapsedSeconds() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startedAt.IsZero() {
		return 0
	}
	if !e.endedAt.IsZero() {
		return int(e.endedAt.Sub(e.startedAt).Seconds())
	}
	return int(time.Since(e.startedAt).Seconds())
}

// teardown stops every subsystem in the fixed order required to avoid a
// loop reading from an already-released resource, finalizes the encoder
// into the payload and releases the microphone exactly once.
func (e *Engine) teardown(ctx context.Context) ([]byte, string) {
	e.mu.Lock()
	silence, smp, ticker := e.silence, e.sampler, e.ticker
	live, analyzer := e.live, e.analyzer
	cancel := e.cancel
	pumpQuit := e.pumpQuit
	encoding := e.encoding
	e.silence, e.sampler, e.ticker = nil, nil, nil
	e.live, e.analyzer = nil, nil
	e.cancel, e.pumpQuit = nil, nil
	e.mu.Unlock()

	// 1. timers
	e.maxTimer.Cancel()
	if ticker != nil {
		ticker.Stop()
	}
	// 2. silence detector, before the analyzer goes away
	if silence != nil {
		silence.Stop()
	}
	// 3. amplitude sampler
	if smp != nil {
		smp.Stop()
	}
	// 4. live transcription: commit pending fragments, then detach
	if live != nil {
		stopCtx, cancelStop := context.WithTimeout(ctx, 4*time.Second)
		if err := live.Stop(stopCtx); err != nil {
			log.Printf("capture: stop live transcription: %v", err)
		}
		cancelStop()

		e.mu.Lock()
		e.transcript = live.Transcript()
		e.mu.Unlock()
	}
	// 5. stop the frame pump, then finalize the encoder into the payload
	if pumpQuit != nil {
		close(pumpQuit)
	}
	e.pumpWg.Wait()

	var payload []byte
	finalizeCtx, cancelFinalize := context.WithTimeout(ctx, 5*time.Second)
	payload, err := e.deps.Encoder.Finalize(finalizeCtx)
	cancelFinalize()
	if err != nil {
		log.Printf("capture: finalize encoder: %v", err)
		payload = nil
	}
	// 6. release the microphone (idempotent)
	if err := e.deps.Microphone.Release(); err != nil {
		log.Printf("capture: release microphone: %v", err)
	}
	// 7. release the signal graph
	if analyzer != nil {
		analyzer.Close()
	}
	if cancel != nil {
		cancel()
	}

	return payload, encoding.ID
}

// pump fans incoming PCM frames out to the analyzer, encoder and live
// transcription. It owns no state beyond its parameters; while Paused it
// keeps feeding the analyzer but drops frames for the encoder and
// transcriber.
func (e *Engine) pump(frames <-chan recording.AudioFrame, recErrs <-chan error, quit <-chan struct{}) {
	defer e.pumpWg.Done()

	for {
		select {
		case <-quit:
			return

		case frame, ok := <-frames:
			if !ok {
				go e.fail(NewError(CodeRecordingFailed, "microphone stream ended unexpectedly", nil))
				return
			}
			e.handleFrame(frame)

		case err, ok := <-recErrs:
			if !ok {
				recErrs = nil
				continue
			}
			if err != nil {
				go e.fail(classifyAcquisition(err))
				return
			}
		}
	}
}

func (e *Engine) handleFrame(frame recording.AudioFrame) {
	e.mu.Lock()
	analyzer, live := e.analyzer, e.live
	e.mu.Unlock()

	if analyzer != nil {
		analyzer.Feed(frame.Data)
	}
	if e.paused.Load() {
		return
	}
	if err := e.deps.Encoder.Write(frame.Data); err != nil {
		log.Printf("capture: encoder write: %v", err)
	}
	if live != nil {
		_ = live.SendChunk(frame.Data)
	}
}

// autoStop is the internal caller of Stop used by the silence detector
// and the max-duration cutoff. A NotRecording guard error just means a
// teardown won the race.
func (e *Engine) autoStop(reason StopReason) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := e.Stop(ctx, reason); err != nil && !IsCode(err, CodeNotRecording) {
		log.Printf("capture: automatic stop (%s): %v", reason, err)
	}
}

// fail moves the engine to the terminal Error state after an
// unrecoverable mid-capture failure, tearing everything down first.
func (e *Engine) fail(capErr *Error) {
	e.mu.Lock()
	if e.state != StateRecording && e.state != StatePaused {
		e.mu.Unlock()
		return
	}
	e.state = StateStopping
	e.reason = reasonForCode(capErr.Code)
	e.mu.Unlock()
	e.emitState(StateStopping)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	e.teardown(ctx)
	cancel()

	e.mu.Lock()
	e.endedAt = time.Now()
	e.state = StateError
	e.mu.Unlock()
	e.emitState(StateError)
	e.emitError(capErr)
}

// failStart aborts a start attempt before the Recording state was
// reached.
func (e *Engine) failStart(reason StopReason, capErr *Error) error {
	e.mu.Lock()
	e.state = StateError
	e.reason = reason
	e.mu.Unlock()
	e.emitState(StateError)
	e.emitError(capErr)
	return capErr
}

// liveActive guards supervised transcription restarts: only while the
// capture is still Recording, never once teardown has begun.
func (e *Engine) liveActive() bool {
	return e.State() == StateRecording
}

func (e *Engine) resolveEncoding(caps probe.Capabilities) (recording.Encoding, bool) {
	if e.cfg.PreferredEncoding == "" {
		if len(caps.Encodings) == 0 {
			return recording.Encoding{}, false
		}
		return caps.Encodings[0], true
	}
	enc, ok := recording.LookupEncoding(e.cfg.PreferredEncoding)
	if ok && caps.Supports(enc.ID) {
		return enc, true
	}
	if len(caps.Encodings) > 0 {
		log.Printf("capture: preferred encoding %q unsupported, using %s",
			e.cfg.PreferredEncoding, caps.Encodings[0].ID)
		return caps.Encodings[0], true
	}
	return recording.Encoding{}, false
}

func classifyAcquisition(err error) *Error {
	switch {
	case errors.Is(err, recording.ErrPermissionDenied):
		return NewError(CodePermissionDenied, "microphone access denied; re-grant permission and try again", err)
	case errors.Is(err, recording.ErrNoMicrophone):
		return NewError(CodeNoMicrophone, "no microphone found; connect one and try again", err)
	default:
		return NewError(CodeRecordingFailed, "failed to acquire microphone", err)
	}
}

func reasonForCode(code Code) StopReason {
	if code == CodePermissionDenied {
		return ReasonPermissionDenied
	}
	return ReasonError
}

func (e *Engine) getSink() Sink {
	e.sinkMu.RLock()
	defer e.sinkMu.RUnlock()
	return e.sink
}

func (e *Engine) emitState(s State)       { e.getSink().StateChanged(s) }
func (e *Engine) emitError(err *Error)    { e.getSink().CaptureError(err) }
func (e *Engine) emitLevel(level float64) { e.getSink().Level(level) }
func (e *Engine) emitTick(seconds int)    { e.getSink().DurationTick(seconds) }
func (e *Engine) emitCompleted(r *Result) { e.getSink().Completed(r) }

func (e *Engine) emitTranscript(text string, final bool) {
	e.getSink().Transcript(text, final)
}
