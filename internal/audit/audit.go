package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/pagination"
	"github.com/angelmondragon/enxoval-backend/pkg/types"
)

// Entry describes one administrative mutation.
type Entry struct {
	UserID   uuid.UUID
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
}

// Filters narrow the audit log listing.
type Filters struct {
	Action string
	Entity string
}

// LogDTO is an audit row joined with the actor email.
type LogDTO struct {
	ID        uuid.UUID     `json:"id"`
	UserID    *uuid.UUID    `json:"user_id,omitempty"`
	UserEmail *string       `json:"user_email,omitempty"`
	Action    string        `json:"action"`
	Entity    string        `json:"entity"`
	EntityID  *string       `json:"entity_id,omitempty"`
	Meta      types.JSONMap `json:"meta,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

type ListResult struct {
	Logs  []LogDTO `json:"logs"`
	Total int64    `json:"total"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
}

// Recorder writes audit rows after the business mutation. Failures are
// logged and swallowed.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

type Service struct {
	db   *gorm.DB
	logg *logger.Logger
}

func NewService(db *gorm.DB, logg *logger.Logger) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{db: db, logg: logg}, nil
}

func (s *Service) Record(ctx context.Context, entry Entry) {
	row := &models.AuditLog{
		Action: entry.Action,
		Entity: entry.Entity,
		Meta:   types.JSONMap(entry.Meta),
	}
	if entry.UserID != uuid.Nil {
		id := entry.UserID
		row.UserID = &id
	}
	if entry.EntityID != "" {
		entityID := entry.EntityID
		row.EntityID = &entityID
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"audit_action": entry.Action,
			"audit_entity": entry.Entity,
		})
		s.logg.Error(logCtx, "audit log write failed", err)
	}
}

// List pages audit rows newest first.
func (s *Service) List(ctx context.Context, filters Filters, params pagination.Params) (*ListResult, error) {
	params = params.Normalize()
	base := s.db.WithContext(ctx).Table("audit_logs")
	if action := strings.TrimSpace(filters.Action); action != "" {
		base = base.Where("audit_logs.action = ?", action)
	}
	if entity := strings.TrimSpace(filters.Entity); entity != "" {
		base = base.Where("audit_logs.entity = ?", entity)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count audit logs")
	}

	var rows []LogDTO
	err := base.
		Select("audit_logs.*, p.email AS user_email").
		Joins("LEFT JOIN profiles p ON p.user_id = audit_logs.user_id").
		Order("audit_logs.created_at DESC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit logs")
	}
	if rows == nil {
		rows = []LogDTO{}
	}
	return &ListResult{Logs: rows, Total: total, Page: params.Page, Limit: params.Limit}, nil
}
