package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"meeting-recorder/constant"
	"meeting-recorder/pkg/apperr"
)

type State int

const (
	Idle State = iota
	Recording
	Paused
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Paused:
		return "paused"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Options configure a microphone session at acquisition time.
type Options struct {
	// Background keeps the capture running when the host process loses the
	// foreground or its controlling terminal.
	Background bool
	SampleRate int
	Channels   int
}

// Microphone acquires the capture device and starts writing to path.
type Microphone interface {
	Acquire(ctx context.Context, path string, opts Options) (Stream, error)
}

// Stream is one acquired capture. Finalize and Discard both release it.
type Stream interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Finalize(ctx context.Context) (string, error)
	Discard(ctx context.Context) error
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Artifact is the finished local recording handed over by Stop. It can be
// claimed exactly once.
type Artifact struct {
	URI             string
	StartedAt       time.Time
	DurationSeconds int

	claimed atomic.Bool
}

// Claim transfers ownership of the artifact to the caller.
func (a *Artifact) Claim() (string, error) {
	if a == nil {
		return "", fmt.Errorf("no artifact: %w", apperr.ErrArtifactMissing)
	}
	if !a.claimed.CompareAndSwap(false, true) {
		return "", fmt.Errorf("artifact %s already transferred: %w", a.URI, apperr.ErrArtifactMissing)
	}
	if a.URI == "" {
		return "", fmt.Errorf("artifact has no uri: %w", apperr.ErrArtifactMissing)
	}
	return a.URI, nil
}

type session struct {
	stream    Stream
	path      string
	startedAt time.Time
	elapsed   atomic.Int64

	// lastMark is the unix-nano time of the last tick or span start; carry
	// holds the sub-second remainder of closed Recording spans.
	lastMark atomic.Int64
	carry    time.Duration

	cancelTick context.CancelFunc
	tickDone   chan struct{}
}

type Config struct {
	Dir        string
	SampleRate int
	Channels   int
	Ticker     TickerFactory
	Now        func() time.Time
}

// Controller owns the microphone for at most one session at a time.
type Controller struct {
	mu        sync.Mutex
	mic       Microphone
	dir       string
	opts      Options
	newTicker TickerFactory
	now       func() time.Time

	state   State
	session *session
}

func NewController(mic Microphone, cfg Config) *Controller {
	if cfg.Ticker == nil {
		cfg.Ticker = NewTimeTicker
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(os.TempDir(), "meeting-recorder")
	}
	return &Controller{
		mic:       mic,
		dir:       cfg.Dir,
		newTicker: cfg.Ticker,
		now:       cfg.Now,
		opts: Options{
			Background: true,
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
		},
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Elapsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return 0
	}
	return int(c.session.elapsed.Load())
}

func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return fmt.Errorf("a recording is already in progress (state %s): %w", c.state, apperr.ErrCaptureUnavailable)
	}

	if err := os.MkdirAll(c.dir, os.ModePerm); err != nil {
		return errors.Join(apperr.ErrCaptureUnavailable, err)
	}

	path := filepath.Join(c.dir, uuid.NewString()+constant.AudioExtension)
	stream, err := c.mic.Acquire(ctx, path, c.opts)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to acquire microphone")
		if errors.Is(err, apperr.ErrCaptureUnavailable) {
			return err
		}
		return errors.Join(apperr.ErrCaptureUnavailable, err)
	}

	c.session = &session{
		stream:    stream,
		path:      path,
		startedAt: c.now(),
	}
	c.state = Recording
	c.startTicker(ctx)

	zerolog.Ctx(ctx).Info().Str("artifact", path).Msg("recording started")
	return nil
}

func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Recording {
		return fmt.Errorf("pause from %s: %w", c.state, apperr.ErrInvalidTransition)
	}
	if err := c.session.stream.Pause(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to pause capture")
		return err
	}
	c.stopTicker()
	c.state = Paused

	zerolog.Ctx(ctx).Info().Int64("elapsed_seconds", c.session.elapsed.Load()).Msg("recording paused")
	return nil
}

func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Paused {
		return fmt.Errorf("resume from %s: %w", c.state, apperr.ErrInvalidTransition)
	}
	if err := c.session.stream.Resume(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to resume capture")
		return err
	}
	c.state = Recording
	c.startTicker(ctx)

	zerolog.Ctx(ctx).Info().Int64("elapsed_seconds", c.session.elapsed.Load()).Msg("recording resumed")
	return nil
}

// Stop finalizes the capture and returns the artifact. Stop from Idle
// returns a nil artifact and no error.
func (c *Controller) Stop(ctx context.Context) (*Artifact, error) {
	c.mu.Lock()
	switch c.state {
	case Idle:
		c.mu.Unlock()
		return nil, nil
	case Stopping:
		c.mu.Unlock()
		return nil, fmt.Errorf("stop from %s: %w", c.state, apperr.ErrInvalidTransition)
	}
	c.stopTicker()
	c.state = Stopping
	sess := c.session
	c.mu.Unlock()

	uri, err := sess.stream.Finalize(ctx)

	c.mu.Lock()
	c.session = nil
	c.state = Idle
	c.mu.Unlock()

	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("artifact", sess.path).Msg("failed to finalize recording")
		return nil, errors.Join(apperr.ErrArtifactMissing, err)
	}

	artifact := &Artifact{
		URI:             uri,
		StartedAt:       sess.startedAt,
		DurationSeconds: int(sess.elapsed.Load()),
	}
	zerolog.Ctx(ctx).Info().
		Str("artifact", uri).
		Int("duration_seconds", artifact.DurationSeconds).
		Msg("recording stopped")
	return artifact, nil
}

// Abandon releases the microphone and deletes whatever was captured.
func (c *Controller) Abandon(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Recording && c.state != Paused {
		c.mu.Unlock()
		return nil
	}
	c.stopTicker()
	c.state = Stopping
	sess := c.session
	c.mu.Unlock()

	err := sess.stream.Discard(ctx)

	c.mu.Lock()
	c.session = nil
	c.state = Idle
	c.mu.Unlock()

	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("artifact", sess.path).Msg("failed to discard recording")
		return err
	}
	zerolog.Ctx(ctx).Info().Str("artifact", sess.path).Msg("recording abandoned")
	return nil
}

// startTicker must be called with c.mu held.
func (c *Controller) startTicker(ctx context.Context) {
	sess := c.session
	tickCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	sess.cancelTick = cancel
	sess.tickDone = done
	sess.lastMark.Store(c.now().UnixNano())

	now := c.now
	t := c.newTicker(time.Second)
	go func() {
		defer close(done)
		defer t.Stop()
		for {
			select {
			case <-tickCtx.Done():
				return
			case <-t.C():
				sess.elapsed.Add(1)
				sess.lastMark.Store(now().UnixNano())
			}
		}
	}()
}

// stopTicker must be called with c.mu held. The tick goroutine never takes
// c.mu, so waiting here cannot deadlock.
func (c *Controller) stopTicker() {
	sess := c.session
	if sess == nil || sess.cancelTick == nil {
		return
	}
	sess.cancelTick()
	<-sess.tickDone
	sess.cancelTick = nil
	sess.tickDone = nil

	if partial := c.now().Sub(time.Unix(0, sess.lastMark.Load())); partial > 0 {
		sess.carry += partial
	}
	if sess.carry >= time.Second {
		sess.elapsed.Add(int64(sess.carry / time.Second))
		sess.carry %= time.Second
	}
}

// FormatDuration renders seconds as mm:ss.
func FormatDuration(sec int) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}
