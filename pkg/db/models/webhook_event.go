package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WebhookEvent records a processed provider notification; (provider,
// event_id) is unique.
type WebhookEvent struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Provider    string    `gorm:"column:provider;not null"`
	EventID     string    `gorm:"column:event_id;not null"`
	EventType   string    `gorm:"column:event_type;not null"`
	ProcessedAt time.Time `gorm:"column:processed_at;autoCreateTime"`
}

func (w *WebhookEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}
