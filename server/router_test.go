package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"meeting-recorder/capture"
	"meeting-recorder/dto"
	"meeting-recorder/entities"
	"meeting-recorder/pkg/identity"
	"meeting-recorder/pkg/processor"
	"meeting-recorder/pkg/push"
	"meeting-recorder/repository"
	"meeting-recorder/service"
)

type silentTicker struct{ ch chan time.Time }

func (t silentTicker) C() <-chan time.Time { return t.ch }
func (t silentTicker) Stop()               {}

type fileStream struct{ path string }

func (s *fileStream) Pause(ctx context.Context) error  { return nil }
func (s *fileStream) Resume(ctx context.Context) error { return nil }
func (s *fileStream) Discard(ctx context.Context) error {
	_ = os.Remove(s.path)
	return nil
}
func (s *fileStream) Finalize(ctx context.Context) (string, error) {
	return s.path, os.WriteFile(s.path, []byte("fake-audio"), 0o644)
}

type fakeMicrophone struct{}

func (fakeMicrophone) Acquire(ctx context.Context, path string, opts capture.Options) (capture.Stream, error) {
	return &fileStream{path: path}, nil
}

type memoryStore struct {
	mu   sync.Mutex
	keys []string
}

func (s *memoryStore) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string, createOnly bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return key, nil
}

func (s *memoryStore) PublicURL(path string) string {
	return "http://storage.test/recordings/" + path
}

type testServer struct {
	router    *gin.Engine
	requests  chan dto.ProcessMeetingRequest
	processor *httptest.Server
}

func newTestServer(t *testing.T, jwtSecret string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "meetings.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	repo := repository.NewRepoFromGorm(db)
	require.NoError(t, repo.Migrate(context.Background()))

	ts := &testServer{requests: make(chan dto.ProcessMeetingRequest, 4)}
	ts.processor = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req dto.ProcessMeetingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		ts.requests <- req
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(ts.processor.Close)

	ctrl := capture.NewController(fakeMicrophone{}, capture.Config{
		Dir:    t.TempDir(),
		Ticker: func(time.Duration) capture.Ticker { return silentTicker{ch: make(chan time.Time)} },
	})
	registrar := service.NewRegistrar(repo, processor.NewClient(ts.processor.URL, time.Second))
	deps := &Dependencies{
		Repo:      repo,
		Recording: service.NewRecordingService(ctrl, service.NewUploader(&memoryStore{}), registrar, push.NewRegistrar("")),
		Meetings:  service.NewMeetingService(repo),
	}
	ts.router = newRouter(context.Background(), deps, jwtSecret)
	return ts
}

func (ts *testServer) do(method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestRouter_Health(t *testing.T) {
	ts := newTestServer(t, "")
	w := ts.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_StartRequiresIdentity(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(http.MethodPost, "/v1/recordings/start", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Please sign in to record meetings.", decode[dto.ErrorResponse](t, w).Error)

	w = ts.do(http.MethodGet, "/v1/recordings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "idle", decode[dto.SessionStatus](t, w).State)
}

func TestRouter_RecordAndHandOff(t *testing.T) {
	ts := newTestServer(t, "")
	alice := map[string]string{identity.UserHeader: "alice", pushTokenHeader: "ExponentPushToken[alice]"}
	bob := map[string]string{identity.UserHeader: "bob"}

	w := ts.do(http.MethodPost, "/v1/recordings/start", alice)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[dto.SessionStatus](t, w)
	assert.Equal(t, "recording", status.State)
	assert.Equal(t, "alice", status.OwnerId)
	assert.Equal(t, "00:00", status.Elapsed)

	w = ts.do(http.MethodPost, "/v1/recordings/start", alice)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = ts.do(http.MethodPost, "/v1/recordings/pause", alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paused", decode[dto.SessionStatus](t, w).State)

	w = ts.do(http.MethodPost, "/v1/recordings/pause", alice)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(http.MethodPost, "/v1/recordings/stop", bob)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodPost, "/v1/recordings/stop", alice)
	require.Equal(t, http.StatusOK, w.Code)
	stop := decode[dto.StopResponse](t, w)
	require.NotNil(t, stop.MeetingId)
	assert.Equal(t, "pending", stop.Status)
	assert.Contains(t, stop.AudioUrl, "http://storage.test/recordings/meetings/alice/")

	select {
	case req := <-ts.requests:
		assert.Equal(t, *stop.MeetingId, req.MeetingId)
		assert.Equal(t, stop.AudioUrl, req.AudioUrl)
		require.NotNil(t, req.PushToken)
		assert.Equal(t, "ExponentPushToken[alice]", *req.PushToken)
	default:
		t.Fatal("processor was not notified")
	}

	w = ts.do(http.MethodGet, "/v1/meetings/"+stop.MeetingId.String(), alice)
	require.Equal(t, http.StatusOK, w.Code)
	meeting := decode[entities.Meeting](t, w)
	assert.Equal(t, stop.AudioUrl, meeting.AudioUrl)
	assert.Equal(t, "alice", meeting.UserId)

	w = ts.do(http.MethodGet, "/v1/meetings/"+stop.MeetingId.String(), bob)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodGet, "/v1/meetings", alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]entities.Meeting](t, w), 1)

	w = ts.do(http.MethodPost, "/v1/recordings/stop", alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[dto.StopResponse](t, w).MeetingId)
}

func TestRouter_AbandonCreatesNothing(t *testing.T) {
	ts := newTestServer(t, "")
	alice := map[string]string{identity.UserHeader: "alice"}

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/v1/recordings/start", alice).Code)
	w := ts.do(http.MethodPost, "/v1/recordings/abandon", alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "idle", decode[dto.SessionStatus](t, w).State)

	w = ts.do(http.MethodGet, "/v1/meetings", alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]entities.Meeting](t, w))
	assert.Empty(t, ts.requests)
}

func TestRouter_MeetingErrors(t *testing.T) {
	ts := newTestServer(t, "")

	w := ts.do(http.MethodGet, "/v1/meetings", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(http.MethodGet, "/v1/meetings/not-a-uuid", map[string]string{identity.UserHeader: "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_BearerToken(t *testing.T) {
	const secret = "test-secret"
	ts := newTestServer(t, secret)

	w := ts.do(http.MethodGet, "/v1/meetings", map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// the header is ignored once tokens are required
	w = ts.do(http.MethodGet, "/v1/meetings", map[string]string{identity.UserHeader: "alice"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "alice"}).SignedString([]byte(secret))
	require.NoError(t, err)
	w = ts.do(http.MethodGet, "/v1/meetings", map[string]string{"Authorization": "Bearer " + signed})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AnonymousCannotStopOrAbandon(t *testing.T) {
	ts := newTestServer(t, "")
	alice := map[string]string{identity.UserHeader: "alice"}

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/v1/recordings/start", alice).Code)

	for _, action := range []string{"stop", "abandon", "pause"} {
		w := ts.do(http.MethodPost, "/v1/recordings/"+action, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, action)
	}

	w := ts.do(http.MethodGet, "/v1/recordings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "recording", decode[dto.SessionStatus](t, w).State)
	assert.Empty(t, ts.requests)
}
