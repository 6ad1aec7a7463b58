package daemon

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fieldscribe/fieldscribe/internal/audio"
	"github.com/fieldscribe/fieldscribe/internal/bus"
	"github.com/fieldscribe/fieldscribe/internal/capture"
	"github.com/fieldscribe/fieldscribe/internal/config"
	"github.com/fieldscribe/fieldscribe/internal/notify"
	"github.com/fieldscribe/fieldscribe/internal/probe"
	"github.com/fieldscribe/fieldscribe/internal/recording"
	"github.com/fieldscribe/fieldscribe/internal/transcriber"
)

// Daemon owns the control socket and at most one capture engine at a
// time. Each capture attempt gets a fresh engine; a finished engine is
// destroyed, never restarted.
type Daemon struct {
	mu       sync.RWMutex
	notifier notify.Notifier
	manager  *config.Manager

	ctx    context.Context
	cancel context.CancelFunc

	engine *capture.Engine

	// latest observed level, for the status command
	lastLevel float64
}

func New(manager *config.Manager) *Daemon {
	cfg := manager.GetConfig()
	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		notifier: notify.FromConfig(cfg.Notifications.Enabled, cfg.Notifications.Type),
		manager:  manager,
		ctx:      ctx,
		cancel:   cancel,
	}
	manager.OnReload(func(newCfg *config.Config) {
		d.mu.Lock()
		d.notifier = notify.FromConfig(newCfg.Notifications.Enabled, newCfg.Notifications.Type)
		d.mu.Unlock()
	})
	return d
}

func (d *Daemon) Run() error {
	if err := bus.CheckExistingDaemon(); err != nil {
		return err
	}

	ln, err := bus.Listen()
	if err != nil {
		return err
	}
	defer ln.Close()

	if err := bus.CreatePidFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}
	defer bus.RemovePidFile()

	if err := d.manager.StartWatching(d.ctx); err != nil {
		log.Printf("daemon: config watching disabled: %v", err)
	}
	defer d.manager.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	go func() {
		sig := <-sigCh
		log.Printf("daemon: received signal %v, shutting down gracefully", sig)
		d.cancel()
	}()

	// Close the listener when the context is done so Accept unblocks.
	go func() {
		<-d.ctx.Done()
		ln.Close()
	}()

	log.Printf("daemon: started, listening on control socket")

	for {
		c, err := ln.Accept()
		if err != nil {
			if d.ctx.Err() != nil {
				d.shutdownCapture()
				log.Printf("daemon: shutdown complete")
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}
		go d.handle(c)
	}
}

func (d *Daemon) handle(c net.Conn) {
	defer c.Close()

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		log.Printf("daemon: client read error: %v", err)
		fmt.Fprintf(c, "ERR read_error: %v\n", err)
		return
	}
	if len(line) == 0 {
		fmt.Fprint(c, "ERR empty\n")
		return
	}

	switch line[0] {
	case bus.CmdStart:
		if err := d.startCapture(); err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprint(c, "OK started\n")

	case bus.CmdStop:
		if err := d.stopCapture(); err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprint(c, "OK stopped\n")

	case bus.CmdPause:
		if err := d.withEngine(func(e *capture.Engine) error { return e.Pause(d.ctx) }); err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprint(c, "OK paused\n")

	case bus.CmdResume:
		if err := d.withEngine(func(e *capture.Engine) error { return e.Resume(d.ctx) }); err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprint(c, "OK resumed\n")

	case bus.CmdCancel:
		if err := d.withEngine(func(e *capture.Engine) error { return e.Cancel() }); err != nil {
			fmt.Fprintf(c, "ERR %v\n", err)
			return
		}
		fmt.Fprint(c, "OK cancelled\n")

	case bus.CmdStatus:
		state, elapsed, level := d.status()
		fmt.Fprintf(c, "STATUS state=%s elapsed=%d level=%.3f\n", state, elapsed, level)

	case bus.CmdVersion:
		fmt.Fprintf(c, "STATUS proto=%s\n", bus.ProtoVer)

	case bus.CmdQuit:
		fmt.Fprint(c, "OK quitting\n")
		d.cancel()

	default:
		log.Printf("daemon: unknown command: %c", line[0])
		fmt.Fprintf(c, "ERR unknown=%q\n", line[0])
	}
}

func (d *Daemon) status() (capture.State, int, float64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.engine == nil {
		return capture.StateIdle, 0, 0
	}
	return d.engine.State(), d.engine.ElapsedSeconds(), d.lastLevel
}

func (d *Daemon) withEngine(fn func(*capture.Engine) error) error {
	d.mu.RLock()
	engine := d.engine
	d.mu.RUnlock()
	if engine == nil {
		return fmt.Errorf("no active capture")
	}
	return fn(engine)
}

// startCapture builds a fresh engine wired to the current configuration
// and starts it. An engine still active from a previous start refuses a
// second capture.
func (d *Daemon) startCapture() error {
	cfg := d.manager.GetConfig()
	recCfg := cfg.ToRecordingConfig()
	capCfg := cfg.ToCaptureConfig()
	transCfg := cfg.ToTranscriberConfig()

	probeCtx, cancelProbe := context.WithTimeout(d.ctx, 5*time.Second)
	caps := probe.Probe(probeCtx, transCfg.APIKey != "")
	cancelProbe()

	deps := capture.Deps{
		Microphone: recording.NewRecorder(recCfg),
		Encoder:    recording.NewEncoder(recCfg),
		NewAnalyzer: func() (capture.Analyzer, error) {
			return audio.NewAnalyzer(audio.DefaultWindow)
		},
		NewLive: func(emit func(text string, final bool), active func() bool) (transcriber.Live, error) {
			return transcriber.New(transCfg, emit, active)
		},
		Caps: caps,
	}

	engine, err := capture.New(capCfg, deps, d)
	if err != nil {
		return err
	}

	old, err := d.installEngine(engine)
	if err != nil {
		return err
	}
	if old != nil {
		old.Destroy()
	}

	return engine.Start(d.ctx)
}

// installEngine swaps the daemon's engine under one critical section so
// concurrent start commands cannot both install one. Returns the
// replaced engine, which the caller must destroy.
func (d *Daemon) installEngine(engine *capture.Engine) (*capture.Engine, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.engine != nil && d.engine.State().Active() {
		return nil, fmt.Errorf("capture already in progress")
	}
	old := d.engine
	d.engine = engine
	d.lastLevel = 0
	return old, nil
}

func (d *Daemon) stopCapture() error {
	d.mu.RLock()
	engine := d.engine
	d.mu.RUnlock()
	if engine == nil {
		return fmt.Errorf("no active capture")
	}
	_, err := engine.Stop(d.ctx, capture.ReasonUser)
	return err
}

// shutdownCapture cancels any in-flight capture during daemon shutdown.
func (d *Daemon) shutdownCapture() {
	d.mu.RLock()
	engine := d.engine
	d.mu.RUnlock()
	if engine != nil {
		engine.Destroy()
	}
}

// StateChanged implements capture.Sink.
func (d *Daemon) StateChanged(state capture.State) {
	log.Printf("daemon: capture state: %s", state)
	switch state {
	case capture.StateRecording, capture.StatePaused, capture.StateCompleted:
		go d.getNotifier().CaptureChanged(string(state))
	}
}

// Transcript implements capture.Sink. Interim fragments are log-only;
// the finalized transcript travels with the result.
func (d *Daemon) Transcript(text string, final bool) {
	if final {
		log.Printf("daemon: transcript: %s", text)
	}
}

// Level implements capture.Sink.
func (d *Daemon) Level(level float64) {
	d.mu.Lock()
	d.lastLevel = level
	d.mu.Unlock()
}

// DurationTick implements capture.Sink. The status command reads the
// elapsed time from the engine directly.
func (d *Daemon) DurationTick(seconds int) {}

// Completed implements capture.Sink: the payload and its transcript
// sidecar land in the output directory.
func (d *Daemon) Completed(result *capture.Result) {
	path, err := d.saveResult(result)
	if err != nil {
		log.Printf("daemon: failed to save capture: %v", err)
		go d.getNotifier().Error(fmt.Sprintf("Failed to save capture: %v", err))
		return
	}
	log.Printf("daemon: capture saved to %s (%.1fs, reason=%s)", path, result.Duration, result.Reason)
	go d.getNotifier().Saved(path)
}

// CaptureError implements capture.Sink.
func (d *Daemon) CaptureError(capErr *capture.Error) {
	log.Printf("daemon: capture error: %v", capErr)
	go d.getNotifier().Error(capErr.Message)
}

func (d *Daemon) getNotifier() notify.Notifier {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.notifier
}

func (d *Daemon) saveResult(result *capture.Result) (string, error) {
	cfg := d.manager.GetConfig()
	dir, err := cfg.ResolveOutputDir()
	if err != nil {
		return "", err
	}

	ext := "bin"
	if enc, ok := recording.LookupEncoding(result.Encoding); ok {
		ext = enc.Extension
	}

	base := fmt.Sprintf("capture-%s", result.StartedAt.Format("20060102-150405"))
	payloadPath := filepath.Join(dir, base+"."+ext)
	if err := os.WriteFile(payloadPath, result.Payload, 0600); err != nil {
		return "", fmt.Errorf("failed to write payload: %w", err)
	}

	if result.Transcript != "" {
		transcriptPath := filepath.Join(dir, base+".txt")
		if err := os.WriteFile(transcriptPath, []byte(result.Transcript), 0600); err != nil {
			log.Printf("daemon: failed to write transcript sidecar: %v", err)
		}
	}

	return payloadPath, nil
}
