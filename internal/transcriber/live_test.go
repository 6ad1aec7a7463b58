package transcriber

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// scriptedAdapter is an in-memory StreamingAdapter driven by the test.
type scriptedAdapter struct {
	mu       sync.Mutex
	results  chan TranscriptionResult
	chunks   int
	started  int
	closed   int
	startErr error
}

func newScriptedAdapter() *scriptedAdapter {
	return &scriptedAdapter{results: make(chan TranscriptionResult, 16)}
}

func (a *scriptedAdapter) Start(ctx context.Context, language string) error {
	a.mu.Lock()
	a.started++
	a.mu.Unlock()
	return a.startErr
}

func (a *scriptedAdapter) SendChunk(audio []byte) error {
	a.mu.Lock()
	a.chunks++
	a.mu.Unlock()
	return nil
}

func (a *scriptedAdapter) Results() <-chan TranscriptionResult { return a.results }

func (a *scriptedAdapter) Finalize(ctx context.Context) error { return nil }

func (a *scriptedAdapter) Close() error {
	a.mu.Lock()
	a.closed++
	a.mu.Unlock()
	return nil
}

type emittedEvent struct {
	text  string
	final bool
}

type emitRecorder struct {
	mu     sync.Mutex
	events []emittedEvent
}

func (r *emitRecorder) emit(text string, final bool) {
	r.mu.Lock()
	r.events = append(r.events, emittedEvent{text, final})
	r.mu.Unlock()
}

func (r *emitRecorder) snapshot() []emittedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]emittedEvent, len(r.events))
	copy(out, r.events)
	return out
}

func (r *emitRecorder) waitLen(t *testing.T, n int) []emittedEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := r.snapshot(); len(events) >= n {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d emitted events, got %d", n, len(r.snapshot()))
	return nil
}

func TestStreamingLiveFinalAndInterimPartitioning(t *testing.T) {
	adapter := newScriptedAdapter()
	rec := &emitRecorder{}
	live := NewStreamingLive(func() StreamingAdapter { return adapter }, "en", rec.emit, func() bool { return true })

	if err := live.Start(context.Background(), "en"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer live.Stop(context.Background())

	adapter.results <- TranscriptionResult{Text: "hello", IsFinal: true}
	adapter.results <- TranscriptionResult{Text: "wor", IsFinal: false}
	adapter.results <- TranscriptionResult{Text: "world", IsFinal: true}

	events := rec.waitLen(t, 3)

	if events[0].text != "hello" || !events[0].final {
		t.Errorf("event 0 = %+v, want final 'hello'", events[0])
	}
	// Interim view: accumulated finals plus the live fragment.
	if events[1].text != "hello wor" || events[1].final {
		t.Errorf("event 1 = %+v, want interim 'hello wor'", events[1])
	}
	if events[2].text != "hello world" || !events[2].final {
		t.Errorf("event 2 = %+v, want final 'hello world'", events[2])
	}

	// The interim fragment never reached the accumulated transcript.
	if got := live.Transcript(); got != "hello world" {
		t.Errorf("Transcript = %q, want %q", got, "hello world")
	}
}

func TestStreamingLiveIgnoresEmptyAndNonCritical(t *testing.T) {
	adapter := newScriptedAdapter()
	rec := &emitRecorder{}
	live := NewStreamingLive(func() StreamingAdapter { return adapter }, "", rec.emit, func() bool { return true })

	if err := live.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer live.Stop(context.Background())

	adapter.results <- TranscriptionResult{Text: "", IsFinal: true}
	adapter.results <- TranscriptionResult{Error: ErrNoSpeech}
	adapter.results <- TranscriptionResult{Error: errors.New("deepgram: connection aborted")}
	adapter.results <- TranscriptionResult{Text: "kept", IsFinal: true}

	events := rec.waitLen(t, 1)
	if len(events) != 1 || events[0].text != "kept" {
		t.Errorf("events = %+v, want only 'kept'", events)
	}
}

func TestStreamingLiveRestartsWhileActive(t *testing.T) {
	var mu sync.Mutex
	var adapters []*scriptedAdapter
	newAdapter := func() StreamingAdapter {
		a := newScriptedAdapter()
		mu.Lock()
		adapters = append(adapters, a)
		mu.Unlock()
		return a
	}

	rec := &emitRecorder{}
	var active atomic.Bool
	active.Store(true)
	live := NewStreamingLive(newAdapter, "", rec.emit, func() bool { return active.Load() })

	if err := live.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		active.Store(false)
		live.Stop(context.Background())
	}()

	mu.Lock()
	first := adapters[0]
	mu.Unlock()

	first.results <- TranscriptionResult{Text: "before", IsFinal: true}
	rec.waitLen(t, 1)

	// Backend dies: result channel closes underneath the supervisor.
	close(first.results)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(adapters)
		mu.Unlock()
		if n >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	if len(adapters) < 2 {
		mu.Unlock()
		t.Fatal("supervisor did not restart the adapter")
	}
	second := adapters[1]
	mu.Unlock()

	// The replacement feeds the same accumulated transcript.
	second.results <- TranscriptionResult{Text: "after", IsFinal: true}
	events := rec.waitLen(t, 2)
	if events[1].text != "before after" {
		t.Errorf("post-restart transcript = %q, want %q", events[1].text, "before after")
	}
}

func TestStreamingLiveNoRestartWhenInactive(t *testing.T) {
	var mu sync.Mutex
	var adapters []*scriptedAdapter
	newAdapter := func() StreamingAdapter {
		a := newScriptedAdapter()
		mu.Lock()
		adapters = append(adapters, a)
		mu.Unlock()
		return a
	}

	live := NewStreamingLive(newAdapter, "", nil, func() bool { return false })
	if err := live.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer live.Stop(context.Background())

	mu.Lock()
	close(adapters[0].results)
	mu.Unlock()

	time.Sleep(3 * restartDelay)
	mu.Lock()
	n := len(adapters)
	mu.Unlock()
	if n != 1 {
		t.Errorf("adapters built = %d, want 1 (no restart while inactive)", n)
	}
}

func TestStreamingLiveStopDetaches(t *testing.T) {
	adapter := newScriptedAdapter()
	rec := &emitRecorder{}
	live := NewStreamingLive(func() StreamingAdapter { return adapter }, "", rec.emit, func() bool { return true })

	if err := live.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	adapter.results <- TranscriptionResult{Text: "committed", IsFinal: true}
	rec.waitLen(t, 1)

	if err := live.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := live.Transcript(); got != "committed" {
		t.Errorf("Transcript after Stop = %q, want %q", got, "committed")
	}
	if err := live.SendChunk([]byte{1, 2}); err != nil {
		t.Errorf("SendChunk after Stop = %v, want nil", err)
	}
	if adapter.chunks != 0 {
		t.Errorf("chunks reached adapter after Stop: %d", adapter.chunks)
	}
}

func TestStreamingLivePauseResume(t *testing.T) {
	var mu sync.Mutex
	var adapters []*scriptedAdapter
	newAdapter := func() StreamingAdapter {
		a := newScriptedAdapter()
		mu.Lock()
		adapters = append(adapters, a)
		mu.Unlock()
		return a
	}

	rec := &emitRecorder{}
	live := NewStreamingLive(newAdapter, "en", rec.emit, func() bool { return true })
	if err := live.Start(context.Background(), "en"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer live.Stop(context.Background())

	mu.Lock()
	first := adapters[0]
	mu.Unlock()
	first.results <- TranscriptionResult{Text: "first part", IsFinal: true}
	rec.waitLen(t, 1)

	if err := live.Pause(context.Background()); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if first.closed != 1 {
		t.Errorf("first adapter closed %d times after Pause, want 1", first.closed)
	}

	// Chunks while paused never reach a backend.
	_ = live.SendChunk([]byte{1, 2})

	if err := live.Resume(context.Background()); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	mu.Lock()
	if len(adapters) != 2 {
		mu.Unlock()
		t.Fatal("Resume did not build a fresh adapter")
	}
	second := adapters[1]
	mu.Unlock()

	// The accumulated transcript survives the pause.
	second.results <- TranscriptionResult{Text: "second part", IsFinal: true}
	events := rec.waitLen(t, 2)
	if events[1].text != "first part second part" {
		t.Errorf("post-resume transcript = %q, want %q", events[1].text, "first part second part")
	}
}

// flushingAdapter delivers one last final from inside Finalize, the way
// a streaming backend answers a close-stream request.
type flushingAdapter struct {
	*scriptedAdapter
	flush string
}

func (a *flushingAdapter) Finalize(ctx context.Context) error {
	a.results <- TranscriptionResult{Text: a.flush, IsFinal: true}
	return nil
}

func TestStreamingLiveStopCommitsFlushedFinals(t *testing.T) {
	adapter := &flushingAdapter{scriptedAdapter: newScriptedAdapter(), flush: "pending final"}
	rec := &emitRecorder{}
	live := NewStreamingLive(func() StreamingAdapter { return adapter }, "en", rec.emit, func() bool { return true })

	if err := live.Start(context.Background(), "en"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	adapter.results <- TranscriptionResult{Text: "spoken", IsFinal: true}
	rec.waitLen(t, 1)

	if err := live.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// The fragment flushed during teardown is accumulated but no longer
	// emitted.
	if got := live.Transcript(); got != "spoken pending final" {
		t.Errorf("Transcript = %q, want %q", got, "spoken pending final")
	}
	if events := rec.snapshot(); len(events) != 1 {
		t.Errorf("events after Stop = %d, want 1", len(events))
	}
}

func TestStreamingLiveNoRestartAfterFatalError(t *testing.T) {
	var mu sync.Mutex
	var adapters []*scriptedAdapter
	newAdapter := func() StreamingAdapter {
		a := newScriptedAdapter()
		mu.Lock()
		adapters = append(adapters, a)
		mu.Unlock()
		return a
	}

	live := NewStreamingLive(newAdapter, "", nil, func() bool { return true })
	if err := live.Start(context.Background(), ""); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer live.Stop(context.Background())

	mu.Lock()
	first := adapters[0]
	mu.Unlock()

	first.results <- TranscriptionResult{Error: NewFatalTranscriptionError(errors.New("reconnection failed"))}
	close(first.results)

	time.Sleep(3 * restartDelay)
	mu.Lock()
	n := len(adapters)
	mu.Unlock()
	if n != 1 {
		t.Errorf("adapters built = %d, want 1 (no rebuild after a fatal backend error)", n)
	}
}

// fakeBatch is an in-memory BatchAdapter.
type fakeBatch struct {
	mu    sync.Mutex
	got   []byte
	text  string
	err   error
	calls int
}

func (b *fakeBatch) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.got = append([]byte(nil), audioData...)
	return b.text, b.err
}

func TestBatchLiveTranscribesAtStop(t *testing.T) {
	batch := &fakeBatch{text: "batch transcript"}
	rec := &emitRecorder{}
	live := NewBatchLive(batch, 16000, rec.emit)

	if err := live.Start(context.Background(), "en"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	_ = live.SendChunk([]byte{1, 2})
	_ = live.SendChunk([]byte{3, 4})
	_ = live.Pause(context.Background())  // no-op
	_ = live.Resume(context.Background()) // no-op

	if got := live.Transcript(); got != "" {
		t.Errorf("Transcript before Stop = %q, want empty", got)
	}

	if err := live.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if batch.calls != 1 {
		t.Fatalf("Transcribe called %d times, want 1", batch.calls)
	}
	if len(batch.got) != 4 {
		t.Errorf("Transcribe received %d bytes, want 4", len(batch.got))
	}
	if got := live.Transcript(); got != "batch transcript" {
		t.Errorf("Transcript = %q, want %q", got, "batch transcript")
	}
}

func TestBatchLiveNoAudioNoCall(t *testing.T) {
	batch := &fakeBatch{text: "never"}
	live := NewBatchLive(batch, 16000, nil)

	if err := live.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if batch.calls != 0 {
		t.Errorf("Transcribe called %d times with no audio, want 0", batch.calls)
	}
}

func TestBatchLiveSwallowsTranscribeError(t *testing.T) {
	batch := &fakeBatch{err: errors.New("api down")}
	live := NewBatchLive(batch, 16000, nil)

	_ = live.SendChunk([]byte{1, 2})
	if err := live.Stop(context.Background()); err != nil {
		t.Fatalf("Stop surfaced a transcription error: %v", err)
	}
	if got := live.Transcript(); got != "" {
		t.Errorf("Transcript = %q, want empty", got)
	}
}
