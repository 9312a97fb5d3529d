package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/pkg/enums"
)

// Profile binds an identity to a role.
type Profile struct {
	UserID       uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Email        string     `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash *string    `gorm:"column:password_hash" json:"-"`
	Role         enums.Role `gorm:"column:role;not null;default:viewer" json:"role"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
