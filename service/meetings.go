package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"meeting-recorder/constant"
	"meeting-recorder/dto"
	"meeting-recorder/entities"
	"meeting-recorder/pkg/apperr"
	"meeting-recorder/repository"
)

// ErrInvalidStatus rejects status messages that can never be applied.
var ErrInvalidStatus = errors.New("invalid meeting status message")

type MeetingService interface {
	Get(ctx context.Context, ownerId string, id uuid.UUID) (*entities.Meeting, error)
	List(ctx context.Context, ownerId string) ([]*entities.Meeting, error)
	ApplyStatus(ctx context.Context, message dto.MeetingStatusMessage) error
}

type meetingService struct {
	repo repository.MeetingRepository
}

func (s *meetingService) Get(ctx context.Context, ownerId string, id uuid.UUID) (*entities.Meeting, error) {
	meeting, err := s.repo.GetMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	if meeting.UserId != ownerId {
		return nil, fmt.Errorf("meeting %s: %w", id, apperr.ErrNotFound)
	}
	return meeting, nil
}

func (s *meetingService) List(ctx context.Context, ownerId string) ([]*entities.Meeting, error) {
	return s.repo.ListMeetings(ctx, ownerId)
}

// ApplyStatus records a transition reported by the processing service.
// A processed meeting is final; later messages for it are ignored.
func (s *meetingService) ApplyStatus(ctx context.Context, message dto.MeetingStatusMessage) error {
	status := constant.MeetingStatus(message.Status)
	if !status.Valid() || message.MeetingId == uuid.Nil {
		return fmt.Errorf("%w: meeting %s status %q", ErrInvalidStatus, message.MeetingId, message.Status)
	}

	log := zerolog.Ctx(ctx).With().Str("meeting_id", message.MeetingId.String()).Logger()

	// Read and write in one transaction; the conditional update keeps a
	// concurrent message from overwriting a processed meeting.
	var from constant.MeetingStatus
	var applied bool
	err := s.repo.Transaction(ctx, func(ctx context.Context) error {
		meeting, err := s.repo.GetMeeting(ctx, message.MeetingId)
		if err != nil {
			return err
		}
		from = meeting.Status
		if from == constant.MeetingStatusProcessed {
			return nil
		}

		applied, err = s.repo.UpdateOpenMeetingResult(ctx, message.MeetingId, repository.MeetingResult{
			Status:     status,
			Title:      message.Title,
			Summary:    message.Summary,
			Transcript: message.Transcript,
		})
		return err
	})
	if err != nil {
		log.Error().Err(err).Str("status", message.Status).Msg("failed to apply meeting status")
		return err
	}

	if !applied {
		log.Info().Str("status", message.Status).Msg("meeting already processed")
		return nil
	}

	log.Info().
		Str("from", from.String()).
		Str("to", status.String()).
		Msg("meeting status updated")
	return nil
}

func NewMeetingService(repo repository.MeetingRepository) MeetingService {
	return &meetingService{
		repo: repo,
	}
}
