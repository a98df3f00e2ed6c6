package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"meeting-recorder/pkg/apperr"
)

const (
	defaultSampleRate = 44100
	defaultChannels   = 1
	defaultBitrate    = "128k"

	startupGrace = 300 * time.Millisecond
	stopTimeout  = 10 * time.Second
)

type FFmpegConfig struct {
	Path    string
	Format  string
	Device  string
	Bitrate string
}

// FFmpegMicrophone records the default input device through an ffmpeg
// subprocess. Each Recording span is written to its own segment and the
// segments are concatenated on Finalize.
type FFmpegMicrophone struct {
	path    string
	format  string
	device  string
	bitrate string
}

func NewFFmpegMicrophone(cfg FFmpegConfig) *FFmpegMicrophone {
	format, device := defaultInput()
	if cfg.Format != "" {
		format = cfg.Format
	}
	if cfg.Device != "" {
		device = cfg.Device
	}
	if cfg.Path == "" {
		cfg.Path = "ffmpeg"
	}
	if cfg.Bitrate == "" {
		cfg.Bitrate = defaultBitrate
	}
	return &FFmpegMicrophone{
		path:    cfg.Path,
		format:  format,
		device:  device,
		bitrate: cfg.Bitrate,
	}
}

func defaultInput() (string, string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", ":default"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

func (m *FFmpegMicrophone) Acquire(ctx context.Context, path string, opts Options) (Stream, error) {
	bin, err := exec.LookPath(m.path)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found at %q: %w", m.path, apperr.ErrCaptureUnavailable)
	}

	if opts.SampleRate <= 0 {
		opts.SampleRate = defaultSampleRate
	}
	if opts.Channels <= 0 {
		opts.Channels = defaultChannels
	}

	segDir := path + ".segments"
	if err := os.MkdirAll(segDir, os.ModePerm); err != nil {
		return nil, errors.Join(apperr.ErrCaptureUnavailable, err)
	}

	st := &ffmpegStream{
		mic:    m,
		bin:    bin,
		opts:   opts,
		output: path,
		segDir: segDir,
	}
	if err := st.startSegment(ctx); err != nil {
		_ = os.RemoveAll(segDir)
		return nil, errors.Join(apperr.ErrCaptureUnavailable, err)
	}
	return st, nil
}

type segmentProc struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	done   chan error
}

type ffmpegStream struct {
	mu       sync.Mutex
	mic      *FFmpegMicrophone
	bin      string
	opts     Options
	output   string
	segDir   string
	segments []string
	current  *segmentProc
}

func (s *ffmpegStream) segmentArgs(out string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", s.mic.format,
		"-i", s.mic.device,
		"-ac", strconv.Itoa(s.opts.Channels),
		"-ar", strconv.Itoa(s.opts.SampleRate),
		"-c:a", "aac",
		"-b:a", s.mic.bitrate,
		"-y",
		out,
	}
}

func (s *ffmpegStream) startSegment(ctx context.Context) error {
	out := filepath.Join(s.segDir, fmt.Sprintf("segment-%03d.m4a", len(s.segments)))

	// Not CommandContext: the capture must outlive the request that started it.
	cmd := exec.Command(s.bin, s.segmentArgs(out)...)
	if s.opts.Background {
		detach(cmd)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return err
	}

	proc := &segmentProc{cmd: cmd, stdin: stdin, stderr: stderr, done: make(chan error, 1)}
	go func() {
		proc.done <- cmd.Wait()
	}()

	// A denied permission or a missing device makes ffmpeg exit right away.
	select {
	case err := <-proc.done:
		if err == nil {
			err = errors.New("ffmpeg exited immediately")
		}
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	case <-time.After(startupGrace):
	}

	zerolog.Ctx(ctx).Debug().Str("segment", out).Int("pid", cmd.Process.Pid).Msg("capture segment started")
	s.segments = append(s.segments, out)
	s.current = proc
	return nil
}

func (s *ffmpegStream) stopSegment(ctx context.Context) error {
	proc := s.current
	if proc == nil {
		return nil
	}
	s.current = nil

	// "q" makes ffmpeg flush and write the container trailer.
	_, _ = io.WriteString(proc.stdin, "q\n")
	_ = proc.stdin.Close()

	select {
	case err := <-proc.done:
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("ffmpeg_output", proc.stderr.String()).Msg("capture segment exited with error")
		}
		return nil
	case <-time.After(stopTimeout):
		_ = proc.cmd.Process.Kill()
		<-proc.done
		return fmt.Errorf("ffmpeg did not stop within %s", stopTimeout)
	}
}

func (s *ffmpegStream) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopSegment(ctx)
}

func (s *ffmpegStream) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return nil
	}
	return s.startSegment(ctx)
}

func (s *ffmpegStream) Finalize(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer os.RemoveAll(s.segDir)

	if err := s.stopSegment(ctx); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to stop capture segment cleanly")
	}

	var written []string
	for _, seg := range s.segments {
		if info, err := os.Stat(seg); err == nil && info.Size() > 0 {
			written = append(written, seg)
		}
	}
	if len(written) == 0 {
		return "", errors.New("no audio was captured")
	}

	if len(written) == 1 {
		if err := os.Rename(written[0], s.output); err != nil {
			return "", err
		}
		return s.output, nil
	}

	if err := s.concat(ctx, written); err != nil {
		return "", err
	}
	return s.output, nil
}

func (s *ffmpegStream) concat(ctx context.Context, segments []string) error {
	listPath := filepath.Join(s.segDir, "concat_list.txt")
	content, err := buildConcatList(segments)
	if err != nil {
		return err
	}
	if err := os.WriteFile(listPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to create concat file: %w", err)
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-movflags", "+faststart",
		"-y",
		s.output,
	}
	zerolog.Ctx(ctx).Info().Int("segments", len(segments)).Str("output", s.output).Msg("merging capture segments")

	output, err := exec.CommandContext(ctx, s.bin, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg merge failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}

func (s *ffmpegStream) Discard(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		_ = s.current.cmd.Process.Kill()
		<-s.current.done
		s.current = nil
	}
	if err := os.RemoveAll(s.segDir); err != nil {
		return err
	}
	if err := os.Remove(s.output); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// buildConcatList renders an ffmpeg concat demuxer list.
func buildConcatList(paths []string) (string, error) {
	var b strings.Builder
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		escaped := strings.ReplaceAll(abs, "'", "'\\''")
		b.WriteString(fmt.Sprintf("file '%s'\n", escaped))
	}
	return b.String(), nil
}
