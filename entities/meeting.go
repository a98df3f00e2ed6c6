package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"meeting-recorder/constant"
)

type Meeting struct {
	ID         uuid.UUID              `json:"id" gorm:"type:uuid;primary_key"`
	UserId     string                 `json:"user_id" gorm:"type:varchar(255);not null;index:idx_meetings_user_id"`
	Title      *string                `json:"title" gorm:"type:varchar(255)"`
	Summary    *string                `json:"summary" gorm:"type:text"`
	Transcript *string                `json:"transcript" gorm:"type:text"`
	AudioUrl   string                 `json:"audio_url" gorm:"type:varchar(1024);not null"`
	Status     constant.MeetingStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index:idx_meetings_status"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

func (Meeting) TableName() string {
	return "meetings"
}

func (m *Meeting) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = constant.MeetingStatusPending
	}
	return nil
}
