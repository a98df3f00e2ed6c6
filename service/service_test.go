package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"meeting-recorder/capture"
	"meeting-recorder/dto"
	"meeting-recorder/pkg/apperr"
	"meeting-recorder/repository"
)

var testStartedAt = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type manualTicker struct {
	ch chan time.Time
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               {}

// fileStream writes a small fake m4a on Finalize.
type fileStream struct {
	path string
}

func (s *fileStream) Pause(ctx context.Context) error  { return nil }
func (s *fileStream) Resume(ctx context.Context) error { return nil }
func (s *fileStream) Discard(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
func (s *fileStream) Finalize(ctx context.Context) (string, error) {
	if err := os.WriteFile(s.path, []byte("fake-audio"), 0644); err != nil {
		return "", err
	}
	return s.path, nil
}

type fakeMicrophone struct {
	acquired int
}

func (m *fakeMicrophone) Acquire(ctx context.Context, path string, opts capture.Options) (capture.Stream, error) {
	m.acquired++
	return &fileStream{path: path}, nil
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	err     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (s *memoryStore) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string, createOnly bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.err != nil {
		return "", s.err
	}
	if _, ok := s.objects[key]; ok && createOnly {
		return "", fmt.Errorf("object %s already exists: %w", key, apperr.ErrUploadConflict)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if int64(len(data)) != size {
		return "", fmt.Errorf("size mismatch: %d != %d", len(data), size)
	}
	s.objects[key] = data
	return key, nil
}

func (s *memoryStore) PublicURL(path string) string {
	return "http://storage.test/recordings/" + path
}

type recordingNotifier struct {
	mu       sync.Mutex
	requests []dto.ProcessMeetingRequest
	err      error
}

func (n *recordingNotifier) Notify(ctx context.Context, req dto.ProcessMeetingRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = append(n.requests, req)
	return n.err
}

type staticTokens struct {
	token string
}

func (s staticTokens) DeviceToken(ctx context.Context) (string, bool) {
	return s.token, s.token != ""
}

type failingCreateRepo struct {
	repository.MeetingRepository
}

func (failingCreateRepo) CreateMeeting(ctx context.Context, ownerId string, audioUrl string) (uuid.UUID, error) {
	return uuid.Nil, errors.Join(apperr.ErrPersistenceFailed, errors.New("connection refused"))
}

func newTestRepo(t *testing.T) repository.MeetingRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "meetings.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	r := repository.NewRepoFromGorm(db)
	require.NoError(t, r.Migrate(context.Background()))
	return r
}

func newTestController(t *testing.T, mic capture.Microphone) (*capture.Controller, chan time.Time) {
	t.Helper()
	ticks := make(chan time.Time)
	ticker := &manualTicker{ch: ticks}
	return capture.NewController(mic, capture.Config{
		Dir:    t.TempDir(),
		Ticker: func(time.Duration) capture.Ticker { return ticker },
		Now:    func() time.Time { return testStartedAt },
	}), ticks
}

func tick(t *testing.T, ticks chan time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case ticks <- time.Now():
		case <-time.After(time.Second):
			t.Fatalf("tick %d was not consumed", i+1)
		}
	}
}

func writeArtifact(t *testing.T, content string) *capture.Artifact {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a.m4a")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return &capture.Artifact{URI: path, StartedAt: testStartedAt, DurationSeconds: 3}
}
