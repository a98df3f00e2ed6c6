package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"meeting-recorder/constant"
	"meeting-recorder/dto"
	"meeting-recorder/repository"
)

type Notifier interface {
	Notify(ctx context.Context, req dto.ProcessMeetingRequest) error
}

type Registrar interface {
	CreatePendingJob(ctx context.Context, ownerId, audioUrl string) (uuid.UUID, error)
	// NotifyProcessor marks the meeting failed when the service cannot be
	// reached. The returned error is informational only.
	NotifyProcessor(ctx context.Context, jobId uuid.UUID, audioUrl string, pushToken *string) error
}

type registrar struct {
	repo     repository.MeetingRepository
	notifier Notifier
}

func (r *registrar) CreatePendingJob(ctx context.Context, ownerId, audioUrl string) (uuid.UUID, error) {
	id, err := r.repo.CreateMeeting(ctx, ownerId, audioUrl)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("owner_id", ownerId).Msg("failed to create meeting")
		return uuid.Nil, err
	}
	zerolog.Ctx(ctx).Info().Str("meeting_id", id.String()).Str("owner_id", ownerId).Msg("meeting created")
	return id, nil
}

func (r *registrar) NotifyProcessor(ctx context.Context, jobId uuid.UUID, audioUrl string, pushToken *string) (err error) {
	defer func() {
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("meeting_id", jobId.String()).Msg("processor notification failed")
			// the notify may have failed because ctx was cancelled
			if updateErr := r.repo.UpdateMeetingStatus(context.WithoutCancel(ctx), jobId, constant.MeetingStatusFailed); updateErr != nil {
				zerolog.Ctx(ctx).Error().Err(updateErr).Str("meeting_id", jobId.String()).Msg("failed to update meeting status")
			}
		}
	}()

	return r.notifier.Notify(ctx, dto.ProcessMeetingRequest{
		AudioUrl:  audioUrl,
		MeetingId: jobId,
		PushToken: pushToken,
	})
}

func NewRegistrar(repo repository.MeetingRepository, notifier Notifier) Registrar {
	return &registrar{
		repo:     repo,
		notifier: notifier,
	}
}
