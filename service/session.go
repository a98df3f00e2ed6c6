package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"meeting-recorder/capture"
	"meeting-recorder/constant"
	"meeting-recorder/dto"
	"meeting-recorder/pkg/apperr"
	"meeting-recorder/pkg/identity"
)

type TokenSource interface {
	DeviceToken(ctx context.Context) (string, bool)
}

type RecordingService interface {
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	// Stop hands the capture off for processing. A nil result means nothing
	// was being recorded.
	Stop(ctx context.Context) (*StopResult, error)
	Abandon(ctx context.Context) error
	// Release abandons whatever session is open regardless of its owner.
	// It is meant for process shutdown, never for request handlers.
	Release(ctx context.Context) error
	Status() dto.SessionStatus
}

type StopResult struct {
	MeetingId       uuid.UUID
	DurationSeconds int
	AudioUrl        string
	Status          constant.MeetingStatus
}

type recordingService struct {
	mu        sync.Mutex
	capture   *capture.Controller
	uploader  Uploader
	registrar Registrar
	tokens    TokenSource
	owner     string
}

func (s *recordingService) Start(ctx context.Context) error {
	userId, ok := identity.UserID(ctx)
	if !ok {
		return apperr.ErrUnauthenticated
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.capture.Start(ctx); err != nil {
		return err
	}
	s.owner = userId
	zerolog.Ctx(ctx).Info().Str("owner_id", userId).Msg("recording session started")
	return nil
}

func (s *recordingService) Pause(ctx context.Context) error {
	if err := s.checkOwner(ctx); err != nil {
		return err
	}
	return s.capture.Pause(ctx)
}

func (s *recordingService) Resume(ctx context.Context) error {
	if err := s.checkOwner(ctx); err != nil {
		return err
	}
	return s.capture.Resume(ctx)
}

func (s *recordingService) Abandon(ctx context.Context) error {
	if err := s.checkOwner(ctx); err != nil {
		return err
	}
	err := s.capture.Abandon(ctx)
	s.releaseOwner()
	return err
}

func (s *recordingService) Release(ctx context.Context) error {
	err := s.capture.Abandon(ctx)
	s.releaseOwner()
	return err
}

// Stop runs upload, record creation and processor notification strictly in
// that order. Only notification failure is absorbed. Once started, the
// handoff is not cut short by cancellation of ctx.
func (s *recordingService) Stop(ctx context.Context) (*StopResult, error) {
	if err := s.checkOwner(ctx); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	owner := s.owner
	s.mu.Unlock()

	artifact, err := s.capture.Stop(ctx)
	s.releaseOwner()
	if err != nil {
		return nil, err
	}
	if artifact == nil {
		return nil, nil
	}

	log := zerolog.Ctx(ctx).With().Str("owner_id", owner).Logger()

	audioUrl, err := s.uploader.Upload(ctx, artifact, owner)
	if err != nil {
		return nil, err
	}
	log.Info().Str("audio_url", audioUrl).Msg("recording uploaded")

	meetingId, err := s.registrar.CreatePendingJob(ctx, owner, audioUrl)
	if err != nil {
		return nil, err
	}

	var pushToken *string
	if token, ok := s.tokens.DeviceToken(ctx); ok {
		pushToken = &token
	} else {
		log.Debug().Msg("no push token available")
	}

	result := &StopResult{
		MeetingId:       meetingId,
		DurationSeconds: artifact.DurationSeconds,
		AudioUrl:        audioUrl,
		Status:          constant.MeetingStatusPending,
	}
	if err := s.registrar.NotifyProcessor(ctx, meetingId, audioUrl, pushToken); err != nil {
		result.Status = constant.MeetingStatusFailed
	}

	log.Info().
		Str("meeting_id", meetingId.String()).
		Str("status", result.Status.String()).
		Int("duration_seconds", result.DurationSeconds).
		Msg("recording handed off")
	return result, nil
}

func (s *recordingService) Status() dto.SessionStatus {
	s.mu.Lock()
	owner := s.owner
	s.mu.Unlock()

	elapsed := s.capture.Elapsed()
	return dto.SessionStatus{
		State:          s.capture.State().String(),
		ElapsedSeconds: elapsed,
		Elapsed:        capture.FormatDuration(elapsed),
		OwnerId:        owner,
	}
}

func (s *recordingService) releaseOwner() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture.State() == capture.Idle {
		s.owner = ""
	}
}

// checkOwner rejects anonymous callers and callers acting on another
// user's session.
func (s *recordingService) checkOwner(ctx context.Context) error {
	userId, ok := identity.UserID(ctx)
	if !ok {
		return apperr.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != "" && s.owner != userId {
		return fmt.Errorf("session belongs to another user: %w", apperr.ErrUnauthenticated)
	}
	return nil
}

func NewRecordingService(ctrl *capture.Controller, uploader Uploader, registrar Registrar, tokens TokenSource) RecordingService {
	return &recordingService{
		capture:   ctrl,
		uploader:  uploader,
		registrar: registrar,
		tokens:    tokens,
	}
}
