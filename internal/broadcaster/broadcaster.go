// Package broadcaster supervises the external transcoder child process,
// splits its output into an init segment and a media stream, and fans
// the result out through a stream.Manager.
package broadcaster

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"camfeed/internal/ffmpegargs"
	"camfeed/internal/mp4box"
	"camfeed/internal/observability/metrics"
	"camfeed/internal/stream"
)

// State is the Broadcaster's lifecycle state (§3 Broadcaster State).
type State int

const (
	Stopped State = iota
	Starting
	Running
	Stopping
	Error
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Starting:
		return "STARTING"
	case Running:
		return "RUNNING"
	case Stopping:
		return "STOPPING"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// readChunkSize is the fixed read size for the media-phase read loop.
const readChunkSize = 16 * 1024

// killWait is how long stop() waits for the child to exit after SIGKILL
// before force-killing it directly.
const killWait = 3 * time.Second

// Config bundles the options that control argument synthesis and restart
// behavior. It is immutable for the lifetime of a Broadcaster.
type Config struct {
	TranscoderPath string
	Source         ffmpegargs.Options
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	SuccessThresh  time.Duration
}

// Stats snapshots the broadcaster for the stats endpoint. ChunksSent and
// BytesSent describe the current cycle only, reset to zero at the start of
// each cycle; Cycles and LifetimeBytesSent accumulate across every cycle the
// process has run.
type Stats struct {
	State             State
	Running           bool
	ElapsedSeconds    float64
	ChunksSent        uint64
	BytesSent         uint64
	Cycles            int
	LifetimeBytesSent uint64
}

// Broadcaster is the Transcoder Supervisor, Init-Segment Parser and
// media-phase fan-out loop described in §4.1. One instance per process.
type Broadcaster struct {
	cfg      Config
	manager  *stream.Manager
	log      *slog.Logger
	backoff  *backoff
	recorder *metrics.Recorder

	mu                sync.Mutex
	state             State
	cycles            int
	chunksSent        uint64
	bytesSent         uint64
	lifetimeBytesSent uint64
	cycleStart        time.Time

	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
}

// New builds a Broadcaster that publishes to manager.
func New(cfg Config, manager *stream.Manager, log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	initialDelay := cfg.InitialDelay
	if initialDelay <= 0 {
		initialDelay = DefaultInitialDelay
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	threshold := cfg.SuccessThresh
	if threshold <= 0 {
		threshold = DefaultSuccessThreshold
	}
	if cfg.TranscoderPath == "" {
		cfg.TranscoderPath = "ffmpeg"
	}
	return &Broadcaster{
		cfg:      cfg,
		manager:  manager,
		log:      log.With("component", "broadcaster"),
		backoff:  newBackoff(initialDelay, maxDelay, threshold),
		state:    Stopped,
		recorder: metrics.Default(),
	}
}

// SetRecorder overrides the metrics.Recorder used to track cycle lifecycle
// events. Passing nil falls back to metrics.Default().
func (b *Broadcaster) SetRecorder(recorder *metrics.Recorder) {
	if recorder == nil {
		recorder = metrics.Default()
	}
	b.mu.Lock()
	b.recorder = recorder
	b.mu.Unlock()
}

// Start is idempotent: the supervision loop runs exactly once per
// Broadcaster, however many times Start is called.
func (b *Broadcaster) Start() {
	b.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		b.cancel = cancel
		b.done = make(chan struct{})
		b.setState(Starting)
		go b.superviseLoop(ctx)
	})
}

// Stop cooperatively terminates the child and waits for the supervision
// loop to exit.
func (b *Broadcaster) Stop() {
	if b.cancel == nil {
		return
	}
	b.setState(Stopping)
	b.cancel()
	<-b.done
	b.setState(Stopped)
}

func (b *Broadcaster) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// Stats returns a snapshot for the stats endpoint.
func (b *Broadcaster) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	elapsed := 0.0
	if !b.cycleStart.IsZero() {
		elapsed = time.Since(b.cycleStart).Seconds()
	}
	return Stats{
		State:             b.state,
		Running:           b.state == Running,
		ElapsedSeconds:    elapsed,
		ChunksSent:        b.chunksSent,
		BytesSent:         b.bytesSent,
		Cycles:            b.cycles,
		LifetimeBytesSent: b.lifetimeBytesSent,
	}
}

func (b *Broadcaster) superviseLoop(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b.mu.Lock()
		recorder := b.recorder
		b.mu.Unlock()
		recorder.BroadcasterCycleStarted()

		runTime, err := b.runCycle(ctx)
		if ctx.Err() != nil {
			return
		}

		b.mu.Lock()
		b.cycles++
		b.mu.Unlock()

		if err != nil {
			b.log.Warn("transcoder cycle ended with error", "error", err, "run_time", runTime)
		}

		// Sleep the delay already chosen by the previous exit (or the
		// initial delay, for the very first restart) before updating it
		// for the exit we just observed. Updating first and sleeping
		// second would make every restart wait one step ahead of the
		// sequence the backoff policy describes.
		if werr := b.backoff.wait(ctx); werr != nil {
			return
		}

		b.backoff.recordExit(runTime)
		recorder.BroadcasterCycleEnded(b.backoff.consecutiveFailures() == 0)
		b.setState(Starting)
	}
}

// runCycle spawns the child, parses its output, and runs until the
// child exits, ctx is cancelled, or a fatal parse error occurs.
func (b *Broadcaster) runCycle(ctx context.Context) (time.Duration, error) {
	args := ffmpegargs.Build(b.cfg.Source)
	cmd := exec.CommandContext(ctx, b.cfg.TranscoderPath, args...)
	configureChildProcess(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("broadcaster: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, fmt.Errorf("broadcaster: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("broadcaster: start transcoder: %w", err)
	}

	start := b.resetCycleStats()
	b.setState(Running)

	var eg errgroup.Group
	eg.Go(func() error {
		b.logStderr(stderr)
		return nil
	})

	readErr := b.readAndBroadcast(stdout)

	killErr := b.killProcess(cmd)
	_ = eg.Wait()

	runTime := time.Since(start)
	if readErr != nil {
		return runTime, readErr
	}
	return runTime, killErr
}

// killProcess sends SIGKILL, waits up to killWait, then force-kills if
// the child is still alive. SIGTERM is not used: some capture backends
// ignore it.
func (b *Broadcaster) killProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	_ = cmd.Process.Kill()

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	select {
	case err := <-waitDone:
		return err
	case <-time.After(killWait):
		_ = cmd.Process.Kill()
		<-waitDone
		return errors.New("broadcaster: child did not exit after SIGKILL, force-killed")
	}
}

// logStderr reads the child's stderr line by line, classifying each line
// by keyword so operators see transcoder errors without the server
// mediating their meaning.
func (b *Broadcaster) logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case containsAny(lower, "error", "fatal", "failed", "invalid"):
			b.log.Error("transcoder", "line", line)
		case strings.Contains(lower, "warning"):
			b.log.Warn("transcoder", "line", line)
		default:
			b.log.Debug("transcoder", "line", line)
		}
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// readAndBroadcast runs the two-phase read loop: accumulate bytes until
// the init/media boundary is found, publish the init segment once, then
// stream every subsequent read verbatim to the Connection Manager.
func (b *Broadcaster) readAndBroadcast(r io.Reader) error {
	var scratch bytes.Buffer
	chunk := make([]byte, readChunkSize)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			scratch.Write(chunk[:n])
			offset, ok, perr := mp4box.FindInitBoundary(scratch.Bytes())
			if perr != nil {
				return fmt.Errorf("broadcaster: parse init segment: %w", perr)
			}
			if ok {
				data := scratch.Bytes()
				init := append([]byte(nil), data[:offset]...)
				media := append([]byte(nil), data[offset:]...)
				b.manager.PublishInit(init)
				if len(media) > 0 {
					b.publish(media)
				}
				return b.streamMediaPhase(r, chunk)
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("broadcaster: read transcoder stdout: %w", err)
		}
	}
}

// streamMediaPhase forwards every subsequent read verbatim; the server
// never reassembles fragments once the init boundary has been found.
func (b *Broadcaster) streamMediaPhase(r io.Reader, chunk []byte) error {
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			b.publish(append([]byte(nil), chunk[:n]...))
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("broadcaster: read transcoder stdout: %w", err)
		}
	}
}

// resetCycleStats zeroes the per-cycle counters at the start of a new
// transcoder cycle, leaving the lifetime cycle count and cumulative byte
// count untouched, and returns the new cycle's start time.
func (b *Broadcaster) resetCycleStats() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cycleStart = time.Now()
	b.chunksSent = 0
	b.bytesSent = 0
	return b.cycleStart
}

func (b *Broadcaster) publish(chunk []byte) {
	b.mu.Lock()
	b.chunksSent++
	b.bytesSent += uint64(len(chunk))
	b.lifetimeBytesSent += uint64(len(chunk))
	b.mu.Unlock()
	b.manager.Broadcast(chunk)
}

