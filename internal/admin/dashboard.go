package admin

import (
	"context"
	"encoding/json"

	"github.com/angelmondragon/enxoval-backend/internal/audit"
	"github.com/angelmondragon/enxoval-backend/internal/stats"
	"github.com/angelmondragon/enxoval-backend/pkg/pagination"
)

type auditLogsRequest struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Action string `json:"action"`
	Entity string `json:"entity"`
}

type auditLister interface {
	List(ctx context.Context, filters audit.Filters, params pagination.Params) (*audit.ListResult, error)
}

// Dashboard builds the read-only stats and audit trail resource served
// under /auth.
func Dashboard(statsSvc *stats.Service, logs auditLister) *Resource {
	return newResource("auth", map[string]Handler{
		"get_stats": func(ctx context.Context, _ Actor, _ json.RawMessage) (any, error) {
			return statsSvc.Dashboard(ctx)
		},
		"get_audit_logs": typed(func(ctx context.Context, _ Actor, req auditLogsRequest) (any, error) {
			return logs.List(ctx, audit.Filters{Action: req.Action, Entity: req.Entity}, pagination.Params{Page: req.Page, Limit: req.Limit})
		}),
	})
}
