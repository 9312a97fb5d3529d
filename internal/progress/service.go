package progress

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
)

// Progress is the campaign thermometer shown on the landing page.
type Progress struct {
	GoalCents   int64 `json:"goal_cents"`
	RaisedCents int64 `json:"raised_cents"`
	Percent     int   `json:"percent"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &Service{db: db}, nil
}

// Get reads v_progress and derives the percentage, capped at 100.
func (s *Service) Get(ctx context.Context) (*Progress, error) {
	var row struct {
		GoalCents   int64
		RaisedCents int64
	}
	err := s.db.WithContext(ctx).
		Raw("SELECT goal_cents, raised_cents FROM v_progress").
		Scan(&row).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load progress")
	}
	return &Progress{
		GoalCents:   row.GoalCents,
		RaisedCents: row.RaisedCents,
		Percent:     Percent(row.RaisedCents, row.GoalCents),
	}, nil
}

// Percent returns floor(raised/goal*100) bounded to [0, 100].
func Percent(raised, goal int64) int {
	if goal <= 0 || raised <= 0 {
		return 0
	}
	pct := raised * 100 / goal
	if pct > 100 {
		return 100
	}
	return int(pct)
}
