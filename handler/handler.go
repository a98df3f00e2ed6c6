package handler

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"meeting-recorder/dto"
	"meeting-recorder/service"
)

type ServiceDependencies struct {
	MeetingService service.MeetingService
}

func MeetingStatusHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var statusMsg dto.MeetingStatusMessage
	if err := json.Unmarshal(msg.Body, &statusMsg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal meeting status message")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("meeting_id", statusMsg.MeetingId.String()).
		Str("status", statusMsg.Status).
		Msg("received meeting status message")

	return deps.MeetingService.ApplyStatus(ctx, statusMsg)
}
