package recording

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// flushInterval bounds how long encoded bytes sit outside the chunk
// buffer; chunked buffering keeps memory bounded and leaves room for
// progressive upload strategies later.
const flushInterval = time.Second

// Encoder pipes raw PCM through ffmpeg and buffers the encoded output as
// an ordered list of chunks. One Encoder serves one capture attempt.
type Encoder struct {
	config   Config
	encoding Encoding
	running  atomic.Bool

	mu     sync.Mutex // guards cmd, stdin, cancel
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	cancel context.CancelFunc

	chunkMu   sync.Mutex
	chunks    [][]byte
	pending   bytes.Buffer
	lastFlush time.Time

	wg sync.WaitGroup
}

func NewEncoder(config Config) *Encoder {
	return &Encoder{config: config}
}

// CheckEncoderAvailable reports whether the system encoder is present.
func CheckEncoderAvailable() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	return nil
}

// Start launches the encoder process for the given encoding and begins
// collecting encoded chunks as they arrive.
func (e *Encoder) Start(ctx context.Context, encoding Encoding) error {
	if e.running.Load() {
		return fmt.Errorf("encoder already started")
	}
	if err := CheckEncoderAvailable(); err != nil {
		return err
	}

	encCtx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(encCtx, "ffmpeg", e.buildArgs(encoding)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	e.mu.Lock()
	e.cmd = cmd
	e.stdin = stdin
	e.cancel = cancel
	e.encoding = encoding
	e.mu.Unlock()

	e.chunkMu.Lock()
	e.chunks = nil
	e.pending.Reset()
	e.lastFlush = time.Now()
	e.chunkMu.Unlock()

	e.running.Store(true)

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Printf("Encoder stderr: %s", scanner.Text())
		}
	}()

	e.wg.Add(1)
	go e.collectLoop(stdout)

	log.Printf("Encoder: started, encoding=%s", encoding.ID)
	return nil
}

// Write feeds one frame of raw PCM to the encoder.
func (e *Encoder) Write(pcm []byte) error {
	if !e.running.Load() {
		return fmt.Errorf("encoder not started")
	}

	e.mu.Lock()
	stdin := e.stdin
	e.mu.Unlock()

	if stdin == nil {
		return fmt.Errorf("encoder input closed")
	}
	if _, err := stdin.Write(pcm); err != nil {
		return fmt.Errorf("write pcm: %w", err)
	}
	return nil
}

// Finalize closes the encoder input, waits for the remaining encoded
// output to drain and returns all buffered chunks concatenated into one
// payload. An empty payload means no audio was encoded; the caller must
// treat that as a failed capture.
func (e *Encoder) Finalize(ctx context.Context) ([]byte, error) {
	if !e.running.Load() {
		return nil, fmt.Errorf("encoder not started")
	}

	e.mu.Lock()
	stdin := e.stdin
	e.stdin = nil
	e.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}

	// Wait for the collector to drain, bounded by the caller's context.
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		e.requestCancel()
		<-done
	}

	e.mu.Lock()
	cmd := e.cmd
	e.cmd = nil
	e.mu.Unlock()
	if cmd != nil {
		_ = cmd.Wait()
	}
	e.running.Store(false)

	e.chunkMu.Lock()
	defer e.chunkMu.Unlock()
	e.flushLocked()

	var total int
	for _, c := range e.chunks {
		total += len(c)
	}
	payload := make([]byte, 0, total)
	for _, c := range e.chunks {
		payload = append(payload, c...)
	}
	e.chunks = nil

	log.Printf("Encoder: finalized, %d bytes", len(payload))
	return payload, nil
}

// Encoding returns the encoding selected at Start.
func (e *Encoder) Encoding() Encoding {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encoding
}

// ChunkCount reports how many chunks are currently buffered.
func (e *Encoder) ChunkCount() int {
	e.chunkMu.Lock()
	defer e.chunkMu.Unlock()
	return len(e.chunks)
}

func (e *Encoder) collectLoop(stdout io.Reader) {
	defer e.wg.Done()

	buffer := make([]byte, 32*1024)
	for {
		n, err := stdout.Read(buffer)
		if n > 0 {
			e.chunkMu.Lock()
			e.pending.Write(buffer[:n])
			if time.Since(e.lastFlush) >= flushInterval {
				e.flushLocked()
			}
			e.chunkMu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

// flushLocked moves pending encoded bytes into the ordered chunk buffer.
// Must be called with chunkMu held.
func (e *Encoder) flushLocked() {
	if e.pending.Len() == 0 {
		return
	}
	chunk := make([]byte, e.pending.Len())
	copy(chunk, e.pending.Bytes())
	e.chunks = append(e.chunks, chunk)
	e.pending.Reset()
	e.lastFlush = time.Now()
}

func (e *Encoder) requestCancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *Encoder) buildArgs(encoding Encoding) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(e.config.SampleRate),
		"-ac", strconv.Itoa(e.config.Channels),
		"-i", "pipe:0",
		"-c:a", encoding.Codec,
		"-f", encoding.Muxer,
		"pipe:1",
	}
}
