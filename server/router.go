package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"meeting-recorder/dto"
	"meeting-recorder/pkg/apperr"
	"meeting-recorder/pkg/identity"
	"meeting-recorder/pkg/push"
	"meeting-recorder/service"
)

const pushTokenHeader = "X-Push-Token"

type routes struct {
	recording service.RecordingService
	meetings  service.MeetingService
}

func newRouter(ctx context.Context, deps *Dependencies, jwtSecret string) *gin.Engine {
	rt := routes{recording: deps.Recording, meetings: deps.Meetings}

	r := gin.Default()
	r.Use(withLogger(ctx), withPushToken())
	addHealth(r)

	v1 := r.Group("/v1", identity.Middleware(jwtSecret))
	recordings := v1.Group("/recordings")
	recordings.GET("", rt.status)
	recordings.POST("/start", rt.transition(rt.recording.Start))
	recordings.POST("/pause", rt.transition(rt.recording.Pause))
	recordings.POST("/resume", rt.transition(rt.recording.Resume))
	recordings.POST("/abandon", rt.transition(rt.recording.Abandon))
	recordings.POST("/stop", rt.stop)

	meetings := v1.Group("/meetings")
	meetings.GET("", rt.listMeetings)
	meetings.GET("/:id", rt.getMeeting)

	return r
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
}

// withLogger attaches the server logger to every request context.
func withLogger(ctx context.Context) gin.HandlerFunc {
	logger := zerolog.Ctx(ctx)
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()
	}
}

func withPushToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := c.GetHeader(pushTokenHeader); token != "" {
			c.Request = c.Request.WithContext(push.WithToken(c.Request.Context(), token))
		}
		c.Next()
	}
}

func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	event := zerolog.Ctx(c.Request.Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = zerolog.Ctx(c.Request.Context()).Error()
	}
	event.Err(err).Str("path", c.FullPath()).Int("status", status).Msg("request failed")
	c.JSON(status, dto.ErrorResponse{Error: apperr.Message(err)})
}

func (rt routes) status(c *gin.Context) {
	c.JSON(http.StatusOK, rt.recording.Status())
}

func (rt routes) transition(fn func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rt.recording.Status())
	}
}

func (rt routes) stop(c *gin.Context) {
	result, err := rt.recording.Stop(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if result == nil {
		c.JSON(http.StatusOK, dto.StopResponse{})
		return
	}

	id := result.MeetingId
	c.JSON(http.StatusOK, dto.StopResponse{
		MeetingId:       &id,
		DurationSeconds: result.DurationSeconds,
		AudioUrl:        result.AudioUrl,
		Status:          result.Status.String(),
	})
}

func (rt routes) listMeetings(c *gin.Context) {
	userId, ok := identity.UserID(c.Request.Context())
	if !ok {
		respondError(c, apperr.ErrUnauthenticated)
		return
	}
	meetings, err := rt.meetings.List(c.Request.Context(), userId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meetings)
}

func (rt routes) getMeeting(c *gin.Context) {
	userId, ok := identity.UserID(c.Request.Context())
	if !ok {
		respondError(c, apperr.ErrUnauthenticated)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid meeting id"})
		return
	}
	meeting, err := rt.meetings.Get(c.Request.Context(), userId, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meeting)
}
