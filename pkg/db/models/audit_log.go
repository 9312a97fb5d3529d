package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/enxoval-backend/pkg/types"
)

// AuditLog is an append-only record of an administrative mutation.
type AuditLog struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    *uuid.UUID    `gorm:"column:user_id;type:uuid" json:"user_id,omitempty"`
	Action    string        `gorm:"column:action;not null" json:"action"`
	Entity    string        `gorm:"column:entity;not null" json:"entity"`
	EntityID  *string       `gorm:"column:entity_id" json:"entity_id,omitempty"`
	Meta      types.JSONMap `gorm:"column:meta;type:jsonb" json:"meta,omitempty"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
