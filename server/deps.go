package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"meeting-recorder/capture"
	"meeting-recorder/config"
	"meeting-recorder/pkg/processor"
	"meeting-recorder/pkg/push"
	"meeting-recorder/pkg/storage"
	"meeting-recorder/repository"
	"meeting-recorder/service"
)

var ErrDatabaseNotConfigured = errors.New("postgresql_host not configured")

type Dependencies struct {
	Repo      repository.MeetingRepository
	Recording service.RecordingService
	Meetings  service.MeetingService
}

// NewDependencies builds the recording pipeline from cfg. The object store
// is optional: without it every upload fails and no meeting is created.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	if cfg.DB == nil {
		return nil, ErrDatabaseNotConfigured
	}
	repo, err := repository.NewRepo(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var store service.ObjectStore
	if cfg.Storage != nil {
		minioStore := storage.NewMinioStore(cfg.Storage, cfg.MinIO.Bucket, cfg.MinIO.PublicURL)
		if err := minioStore.EnsureBucket(ctx); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("bucket", cfg.MinIO.Bucket).Msg("could not verify bucket")
		}
		store = minioStore
	} else {
		zerolog.Ctx(ctx).Warn().Msg("object store not configured, recordings cannot be uploaded")
	}

	mic := capture.NewFFmpegMicrophone(capture.FFmpegConfig{
		Path:    cfg.Capture.FFmpegPath,
		Format:  cfg.Capture.Format,
		Device:  cfg.Capture.Device,
		Bitrate: cfg.Capture.Bitrate,
	})
	ctrl := capture.NewController(mic, capture.Config{
		Dir:        cfg.Capture.Dir,
		SampleRate: cfg.Capture.SampleRate,
		Channels:   cfg.Capture.Channels,
	})

	registrar := service.NewRegistrar(repo, processor.NewClient(cfg.Processor.BaseURL, cfg.Processor.Timeout))
	recording := service.NewRecordingService(ctrl, service.NewUploader(store), registrar, push.NewRegistrar(cfg.Push.Token))

	return &Dependencies{
		Repo:      repo,
		Recording: recording,
		Meetings:  service.NewMeetingService(repo),
	}, nil
}
