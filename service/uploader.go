package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"meeting-recorder/capture"
	"meeting-recorder/constant"
	"meeting-recorder/pkg/apperr"
)

// ObjectStore is the create-only blob store meeting audio is uploaded to.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string, createOnly bool) (string, error)
	PublicURL(path string) string
}

type Uploader interface {
	Upload(ctx context.Context, artifact *capture.Artifact, ownerId string) (string, error)
}

type uploader struct {
	store ObjectStore
}

// ObjectKey is unique per owner and capture start, so two sessions of the
// same user never target the same object.
func ObjectKey(ownerId string, startedAt time.Time) string {
	return fmt.Sprintf("%s/%s/%d%s", constant.MeetingKeyPrefix, ownerId, startedAt.UnixMilli(), constant.AudioExtension)
}

func (u *uploader) Upload(ctx context.Context, artifact *capture.Artifact, ownerId string) (string, error) {
	if u.store == nil {
		return "", fmt.Errorf("object storage not configured: %w", apperr.ErrUploadFailed)
	}

	uri, err := artifact.Claim()
	if err != nil {
		return "", err
	}

	file, err := os.Open(uri)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("artifact", uri).Msg("failed to open artifact")
		return "", errors.Join(apperr.ErrArtifactMissing, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", errors.Join(apperr.ErrArtifactMissing, err)
	}

	key := ObjectKey(ownerId, artifact.StartedAt)
	zerolog.Ctx(ctx).Info().Str("object_key", key).Int64("size", info.Size()).Msg("uploading recording")

	path, err := u.store.PutObject(ctx, key, file, info.Size(), constant.AudioContentType, true)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("object_key", key).Msg("failed to upload recording")
		if errors.Is(err, apperr.ErrUploadConflict) || errors.Is(err, apperr.ErrUploadFailed) {
			return "", err
		}
		return "", errors.Join(apperr.ErrUploadFailed, err)
	}

	url := u.store.PublicURL(path)
	if url == "" {
		return "", fmt.Errorf("no public url for %s: %w", path, apperr.ErrUploadFailed)
	}
	return url, nil
}

func NewUploader(store ObjectStore) Uploader {
	return &uploader{
		store: store,
	}
}
