package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GuestbookMessage is shown publicly only once approved.
type GuestbookMessage struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AuthorName string    `gorm:"column:author_name;not null" json:"author_name"`
	Message    string    `gorm:"column:message;not null" json:"message"`
	Approved   bool      `gorm:"column:approved;not null;default:false" json:"approved"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (GuestbookMessage) TableName() string {
	return "guestbook_messages"
}

func (m *GuestbookMessage) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
