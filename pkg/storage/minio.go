package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
	"meeting-recorder/pkg/apperr"
)

// MinioStore is the object store backing meeting audio.
type MinioStore struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

func NewMinioStore(client *minio.Client, bucket, publicBaseURL string) *MinioStore {
	return &MinioStore{
		client:        client,
		bucket:        bucket,
		publicBaseURL: publicBaseURL,
	}
}

func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	zerolog.Ctx(ctx).Info().Str("bucket", s.bucket).Msg("creating bucket")
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
}

// PutObject uploads body under key. With createOnly an existing object is
// never overwritten and ErrUploadConflict is returned instead.
func (s *MinioStore) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string, createOnly bool) (string, error) {
	if createOnly {
		_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return "", fmt.Errorf("object %s already exists: %w", key, apperr.ErrUploadConflict)
		}
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return "", errors.Join(apperr.ErrUploadFailed, err)
		}
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", errors.Join(apperr.ErrUploadFailed, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("bucket", info.Bucket).
		Str("object_key", info.Key).
		Int64("size", info.Size).
		Msg("object uploaded")
	return info.Key, nil
}

// PublicURL returns the anonymous-read URL of an object path.
func (s *MinioStore) PublicURL(path string) string {
	base := s.publicBaseURL
	if base == "" {
		base = s.client.EndpointURL().String()
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(base, "/") + "/" + s.bucket + "/" + strings.Join(segments, "/")
}
