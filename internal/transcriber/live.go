package transcriber

import (
	"context"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Live is the live transcription subsystem as the capture engine sees it.
// Implementations are best-effort: recognition errors are logged or
// swallowed internally and never surfaced through these methods as
// capture-fatal.
type Live interface {
	// Start begins continuous transcription for the given language tag.
	Start(ctx context.Context, language string) error

	// SendChunk feeds one chunk of raw PCM audio.
	SendChunk(pcm []byte) error

	// Transcript returns the accumulated finalized text. Interim
	// fragments are never part of it.
	Transcript() string

	// Pause suspends recognition, keeping the accumulated transcript.
	Pause(ctx context.Context) error

	// Resume restarts recognition after a Pause.
	Resume(ctx context.Context) error

	// Stop aborts recognition and detaches event emission; no events
	// fire after Stop returns.
	Stop(ctx context.Context) error
}

// restartDelay spaces supervised restarts so a flapping backend cannot
// spin the supervisor.
const restartDelay = 500 * time.Millisecond

// StreamingLive wraps a StreamingAdapter, partitions its results into
// finalized fragments (accumulated) and interim fragments (emitted as
// provisional text only), and supervises the adapter: if the result
// stream terminates unexpectedly while the capture is still active, the
// adapter is rebuilt and restarted silently.
type StreamingLive struct {
	newAdapter func() StreamingAdapter
	language   string
	emit       func(text string, final bool)
	active     func() bool

	mu      sync.Mutex
	adapter StreamingAdapter

	finalMu   sync.Mutex
	finalText strings.Builder

	// detached suppresses emission and chunk ingress once Stop begins;
	// stopped is the accumulation cutoff, set only after the backend has
	// flushed its pending finals. fatal retires the supervisor when the
	// backend reports an unrecoverable condition.
	detached atomic.Bool
	stopped  atomic.Bool
	fatal    atomic.Bool

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewStreamingLive(newAdapter func() StreamingAdapter, language string, emit func(text string, final bool), active func() bool) *StreamingLive {
	if emit == nil {
		emit = func(string, bool) {}
	}
	if active == nil {
		active = func() bool { return false }
	}
	return &StreamingLive{
		newAdapter: newAdapter,
		language:   language,
		emit:       emit,
		active:     active,
	}
}

func (t *StreamingLive) Start(ctx context.Context, language string) error {
	if language != "" {
		t.language = language
	}
	t.parent = ctx
	t.ctx, t.cancel = context.WithCancel(ctx)

	adapter := t.newAdapter()
	if err := adapter.Start(t.ctx, t.language); err != nil {
		t.cancel()
		return err
	}

	t.mu.Lock()
	t.adapter = adapter
	t.mu.Unlock()

	t.wg.Add(1)
	go t.superviseLoop(adapter)

	return nil
}

func (t *StreamingLive) SendChunk(pcm []byte) error {
	if t.retired() {
		return nil
	}
	t.mu.Lock()
	adapter := t.adapter
	t.mu.Unlock()
	if adapter == nil {
		return nil
	}
	if err := adapter.SendChunk(pcm); err != nil {
		// Transcription is a convenience feature, not a contract.
		log.Printf("live transcription: send error: %v", err)
	}
	return nil
}

func (t *StreamingLive) Transcript() string {
	t.finalMu.Lock()
	defer t.finalMu.Unlock()
	return t.finalText.String()
}

// Pause finalizes and tears down the streaming session. The accumulated
// transcript survives; Resume builds a fresh session that appends to it.
func (t *StreamingLive) Pause(ctx context.Context) error {
	if t.retired() {
		return nil
	}

	t.mu.Lock()
	adapter := t.adapter
	t.adapter = nil
	t.mu.Unlock()
	if adapter == nil {
		return nil
	}

	if err := adapter.Finalize(ctx); err != nil {
		log.Printf("live transcription: finalize on pause: %v", err)
	}
	if t.cancel != nil {
		t.cancel()
	}
	_ = adapter.Close()
	t.wg.Wait()
	return nil
}

// Resume opens a new streaming session after a Pause.
func (t *StreamingLive) Resume(ctx context.Context) error {
	if t.retired() {
		return nil
	}

	t.mu.Lock()
	if t.adapter != nil {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	t.ctx, t.cancel = context.WithCancel(t.parent)

	adapter := t.newAdapter()
	if err := adapter.Start(t.ctx, t.language); err != nil {
		t.cancel()
		return err
	}

	t.mu.Lock()
	t.adapter = adapter
	t.mu.Unlock()

	t.wg.Add(1)
	go t.superviseLoop(adapter)

	return nil
}

func (t *StreamingLive) Stop(ctx context.Context) error {
	// Detach emission first so no event fires after Stop returns. The
	// accumulator stays open: the finals the backend flushes in response
	// to Finalize still belong in the transcript.
	t.detached.Store(true)

	t.mu.Lock()
	adapter := t.adapter
	t.mu.Unlock()

	if adapter != nil {
		if err := adapter.Finalize(ctx); err != nil {
			log.Printf("live transcription: finalize: %v", err)
		}
	}

	if t.cancel != nil {
		t.cancel()
	}
	if adapter != nil {
		_ = adapter.Close()
	}
	t.wg.Wait()
	t.stopped.Store(true)
	return nil
}

// retired reports whether this session will never process another chunk:
// teardown has begun or the backend failed unrecoverably.
func (t *StreamingLive) retired() bool {
	return t.detached.Load() || t.stopped.Load() || t.fatal.Load()
}

// superviseLoop consumes adapter results and restarts the adapter when
// its result stream terminates while the capture is still active.
func (t *StreamingLive) superviseLoop(adapter StreamingAdapter) {
	defer t.wg.Done()

	for {
		terminated := t.consume(adapter)
		if !terminated {
			return
		}

		// Unexpected termination: restart transparently while the
		// capture is still recording, never after teardown has begun or
		// the backend reported a fatal condition.
		if t.retired() || t.ctx.Err() != nil || !t.active() {
			return
		}

		select {
		case <-t.ctx.Done():
			return
		case <-time.After(restartDelay):
		}

		if t.retired() || !t.active() {
			return
		}

		log.Printf("live transcription: engine terminated unexpectedly, restarting")
		_ = adapter.Close()
		adapter = t.newAdapter()
		if err := adapter.Start(t.ctx, t.language); err != nil {
			log.Printf("live transcription: restart failed: %v", err)
			return
		}

		t.mu.Lock()
		t.adapter = adapter
		t.mu.Unlock()
	}
}

// consume drains one adapter's result stream. Returns true when the
// stream closed underneath us (candidate for restart), false when we
// were stopped or cancelled.
func (t *StreamingLive) consume(adapter StreamingAdapter) bool {
	resultsCh := adapter.Results()
	for {
		select {
		case <-t.ctx.Done():
			// Commit anything the backend flushed before cancellation
			// won the select.
			for {
				select {
				case result, ok := <-resultsCh:
					if !ok {
						return false
					}
					t.handleResult(result)
				default:
					return false
				}
			}
		case result, ok := <-resultsCh:
			if !ok {
				return true
			}
			t.handleResult(result)
		}
	}
}

func (t *StreamingLive) handleResult(result TranscriptionResult) {
	if t.stopped.Load() {
		return
	}

	if result.Error != nil {
		if IsNonCritical(result.Error) {
			return
		}
		if IsFatalTranscriptionError(result.Error) {
			// Retire the supervisor: rebuilding a backend that cannot
			// connect only burns retries.
			log.Printf("live transcription: fatal backend error: %v", result.Error)
			t.fatal.Store(true)
			return
		}
		// Logged only, never propagated as capture-fatal.
		log.Printf("live transcription: result error: %v", result.Error)
		return
	}

	if result.Text == "" {
		return
	}

	if result.IsFinal {
		t.finalMu.Lock()
		if t.finalText.Len() > 0 {
			t.finalText.WriteString(" ")
		}
		t.finalText.WriteString(result.Text)
		accumulated := t.finalText.String()
		t.finalMu.Unlock()

		if !t.detached.Load() {
			t.emit(accumulated, true)
		}
		return
	}

	if t.detached.Load() {
		return
	}

	// Provisional view: accumulated finals plus the current interim
	// fragment. The interim text itself is never accumulated.
	t.finalMu.Lock()
	provisional := t.finalText.String()
	t.finalMu.Unlock()
	if provisional != "" {
		provisional += " "
	}
	t.emit(provisional+result.Text, false)
}

// BatchLive collects raw PCM during the capture and produces one final
// transcript at stop through a batch adapter. It backs the degraded mode
// where no streaming engine is available: no interim captions, but the
// result still carries a best-effort transcript.
type BatchLive struct {
	adapter    BatchAdapter
	sampleRate int
	emit       func(text string, final bool)

	bufferMu    sync.Mutex
	audioBuffer []byte

	transcriptMu sync.RWMutex
	transcript   string

	stopped atomic.Bool
}

func NewBatchLive(adapter BatchAdapter, sampleRate int, emit func(text string, final bool)) *BatchLive {
	if emit == nil {
		emit = func(string, bool) {}
	}
	return &BatchLive{adapter: adapter, sampleRate: sampleRate, emit: emit}
}

func (t *BatchLive) Start(ctx context.Context, language string) error {
	return nil
}

func (t *BatchLive) SendChunk(pcm []byte) error {
	if t.stopped.Load() {
		return nil
	}
	t.bufferMu.Lock()
	t.audioBuffer = append(t.audioBuffer, pcm...)
	t.bufferMu.Unlock()
	return nil
}

func (t *BatchLive) Transcript() string {
	t.transcriptMu.RLock()
	defer t.transcriptMu.RUnlock()
	return t.transcript
}

// Pause is a no-op: the capture engine stops feeding chunks while
// paused, and batch transcription only runs at stop.
func (t *BatchLive) Pause(ctx context.Context) error { return nil }

// Resume is a no-op, see Pause.
func (t *BatchLive) Resume(ctx context.Context) error { return nil }

func (t *BatchLive) Stop(ctx context.Context) error {
	t.bufferMu.Lock()
	audioData := make([]byte, len(t.audioBuffer))
	copy(audioData, t.audioBuffer)
	t.audioBuffer = nil
	t.bufferMu.Unlock()

	defer t.stopped.Store(true)

	if len(audioData) == 0 {
		log.Printf("live transcription: no audio data to transcribe")
		return nil
	}

	log.Printf("live transcription: transcribing %d bytes of audio", len(audioData))
	text, err := t.adapter.Transcribe(ctx, audioData)
	if err != nil {
		log.Printf("live transcription: batch transcription failed: %v", err)
		return nil
	}

	t.transcriptMu.Lock()
	t.transcript = text
	t.transcriptMu.Unlock()

	if !t.stopped.Load() && text != "" {
		t.emit(text, true)
	}
	return nil
}
