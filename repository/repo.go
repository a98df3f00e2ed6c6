package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"meeting-recorder/constant"
	"meeting-recorder/entities"
	"meeting-recorder/pkg/apperr"
)

type MeetingRepository interface {
	Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error
	GetDB() *gorm.DB
	Migrate(ctx context.Context) error
	CreateMeeting(ctx context.Context, ownerId string, audioUrl string) (uuid.UUID, error)
	UpdateMeetingStatus(ctx context.Context, id uuid.UUID, status constant.MeetingStatus) error
	UpdateMeetingResult(ctx context.Context, id uuid.UUID, result MeetingResult) error
	UpdateOpenMeetingResult(ctx context.Context, id uuid.UUID, result MeetingResult) (bool, error)
	GetMeeting(ctx context.Context, id uuid.UUID) (*entities.Meeting, error)
	ListMeetings(ctx context.Context, ownerId string) ([]*entities.Meeting, error)
}

// MeetingResult carries the fields written by the processing service.
// Nil fields are left untouched.
type MeetingResult struct {
	Status     constant.MeetingStatus
	Title      *string
	Summary    *string
	Transcript *string
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB) (MeetingRepository, error) {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		},
	)
	if err != nil {
		return nil, err
	}
	return NewRepoFromGorm(gormDB), nil
}

func NewRepoFromGorm(db *gorm.DB) MeetingRepository {
	return &repo{
		db: db,
	}
}

type txKey struct{}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

// conn returns the transaction bound to ctx by Transaction, if any.
func (r *repo) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return r.GetDB().WithContext(ctx)
}

// Transaction runs callback in a database transaction. Repository calls made
// with the ctx passed to callback join that transaction.
func (r *repo) Transaction(ctx context.Context, callback func(ctx context.Context) error, opts ...*sql.TxOptions) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return callback(context.WithValue(ctx, txKey{}, tx))
	}, opts...)
}

func (r *repo) Migrate(ctx context.Context) error {
	return r.conn(ctx).AutoMigrate(&entities.Meeting{})
}

func (r *repo) CreateMeeting(ctx context.Context, ownerId string, audioUrl string) (uuid.UUID, error) {
	if ownerId == "" || audioUrl == "" {
		return uuid.Nil, fmt.Errorf("owner and audio url are required: %w", apperr.ErrPersistenceFailed)
	}

	meeting := &entities.Meeting{
		UserId:   ownerId,
		AudioUrl: audioUrl,
		Status:   constant.MeetingStatusPending,
	}
	if err := r.conn(ctx).Create(meeting).Error; err != nil {
		return uuid.Nil, errors.Join(apperr.ErrPersistenceFailed, err)
	}
	return meeting.ID, nil
}

func (r *repo) UpdateMeetingStatus(ctx context.Context, id uuid.UUID, status constant.MeetingStatus) error {
	return r.UpdateMeetingResult(ctx, id, MeetingResult{Status: status})
}

// UpdateMeetingResult never writes audio_url: it is fixed at creation.
func (r *repo) UpdateMeetingResult(ctx context.Context, id uuid.UUID, result MeetingResult) error {
	updates, err := resultUpdates(result)
	if err != nil {
		return err
	}

	tx := r.conn(ctx).Model(&entities.Meeting{}).Where("id = ?", id).Updates(updates)
	if tx.Error != nil {
		return errors.Join(apperr.ErrPersistenceFailed, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return fmt.Errorf("meeting %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// UpdateOpenMeetingResult is UpdateMeetingResult for meetings that are not
// processed yet. It reports false when the row is missing or already
// processed.
func (r *repo) UpdateOpenMeetingResult(ctx context.Context, id uuid.UUID, result MeetingResult) (bool, error) {
	updates, err := resultUpdates(result)
	if err != nil {
		return false, err
	}

	tx := r.conn(ctx).Model(&entities.Meeting{}).
		Where("id = ? AND status <> ?", id, constant.MeetingStatusProcessed).
		Updates(updates)
	if tx.Error != nil {
		return false, errors.Join(apperr.ErrPersistenceFailed, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

func resultUpdates(result MeetingResult) (map[string]interface{}, error) {
	if !result.Status.Valid() {
		return nil, fmt.Errorf("invalid meeting status %q: %w", result.Status, apperr.ErrPersistenceFailed)
	}

	updates := map[string]interface{}{
		"status":     result.Status,
		"updated_at": time.Now(),
	}
	if result.Title != nil {
		updates["title"] = *result.Title
	}
	if result.Summary != nil {
		updates["summary"] = *result.Summary
	}
	if result.Transcript != nil {
		updates["transcript"] = *result.Transcript
	}
	return updates, nil
}

func (r *repo) GetMeeting(ctx context.Context, id uuid.UUID) (*entities.Meeting, error) {
	meeting := &entities.Meeting{}
	err := r.conn(ctx).First(meeting, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("meeting %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, errors.Join(apperr.ErrPersistenceFailed, err)
	}
	return meeting, nil
}

func (r *repo) ListMeetings(ctx context.Context, ownerId string) ([]*entities.Meeting, error) {
	var meetings []*entities.Meeting
	err := r.conn(ctx).Where("user_id = ?", ownerId).Order("created_at DESC").Find(&meetings).Error
	if err != nil {
		return nil, errors.Join(apperr.ErrPersistenceFailed, err)
	}
	return meetings, nil
}
