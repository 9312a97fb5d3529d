package stats

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/enxoval-backend/internal/progress"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
)

// DailySalesWindow is how far back the admin dashboard chart reaches.
const DailySalesWindow = 30 * 24 * time.Hour

type Summary struct {
	TotalOrders     int64 `json:"total_orders"`
	PaidOrders      int64 `json:"paid_orders"`
	PendingOrders   int64 `json:"pending_orders"`
	FailedOrders    int64 `json:"failed_orders"`
	RaisedCents     int64 `json:"raised_cents"`
	MessagesPending int64 `json:"messages_pending"`
	GoalCents       int64 `json:"goal_cents"`
	Percent         int   `json:"percent"`
}

type DailySales struct {
	Day         string `json:"day"`
	Orders      int64  `json:"orders"`
	AmountCents int64  `json:"amount_cents"`
}

// Dashboard is the get_stats payload.
type Dashboard struct {
	Stats      Summary      `json:"stats"`
	DailySales []DailySales `json:"daily_sales"`
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &Service{db: db, now: time.Now}, nil
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	var summary Summary
	err := s.db.WithContext(ctx).
		Raw(`SELECT total_orders, paid_orders, pending_orders, failed_orders, raised_cents, messages_pending FROM v_admin_stats`).
		Scan(&summary).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load admin stats")
	}

	var goal struct{ GoalCents int64 }
	if err := s.db.WithContext(ctx).Raw("SELECT goal_cents FROM v_progress").Scan(&goal).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load goal")
	}
	summary.GoalCents = goal.GoalCents
	summary.Percent = progress.Percent(summary.RaisedCents, summary.GoalCents)

	since := s.now().UTC().Add(-DailySalesWindow).Format("2006-01-02")
	var daily []DailySales
	err = s.db.WithContext(ctx).
		Raw(`SELECT CAST(day AS TEXT) AS day, orders, amount_cents FROM v_daily_sales WHERE day >= ? ORDER BY day ASC`, since).
		Scan(&daily).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load daily sales")
	}
	if daily == nil {
		daily = []DailySales{}
	}
	return &Dashboard{Stats: summary, DailySales: daily}, nil
}
