package admin

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/angelmondragon/enxoval-backend/internal/audit"
	"github.com/angelmondragon/enxoval-backend/internal/settings"
	"github.com/angelmondragon/enxoval-backend/pkg/mercadopago"
)

const (
	entityCampaign    = "campaign_settings"
	entityMercadoPago = "mercadopago_settings"
)

type goalUpdateRequest struct {
	GoalCents int64 `json:"goal_cents" validate:"gt=0"`
}

type mercadoPagoTestRequest struct {
	AccessToken string `json:"access_token"`
}

type accountChecker interface {
	Check(ctx context.Context, token string) (*mercadopago.AccountCheck, error)
}

// Settings builds the campaign goal and gateway credential resource.
// Credentials are never echoed back, only their presence.
func Settings(store *settings.Service, checker accountChecker, recorder audit.Recorder) *Resource {
	return newResource("settings", map[string]Handler{
		"get_goal": func(ctx context.Context, _ Actor, _ json.RawMessage) (any, error) {
			return store.Goal(ctx)
		},
		"update_goal": typed(func(ctx context.Context, actor Actor, req goalUpdateRequest) (any, error) {
			goal, err := store.UpdateGoal(ctx, req.GoalCents)
			if err != nil {
				return nil, err
			}
			record(ctx, recorder, actor, "update_goal", entityCampaign, "1", map[string]any{
				"goal_cents": goal.GoalCents,
			})
			return goal, nil
		}),
		"get_mercadopago": func(ctx context.Context, _ Actor, _ json.RawMessage) (any, error) {
			return store.MercadoPagoStatus(ctx)
		},
		"update_mercadopago": typed(func(ctx context.Context, actor Actor, req settings.MercadoPagoInput) (any, error) {
			status, err := store.UpdateMercadoPago(ctx, req)
			if err != nil {
				return nil, err
			}
			record(ctx, recorder, actor, "update_mercadopago", entityMercadoPago, "1", map[string]any{
				"access_token_changed":   req.AccessToken != nil,
				"public_key_changed":     req.PublicKey != nil,
				"webhook_secret_changed": req.WebhookSecret != nil,
			})
			return status, nil
		}),
		"test_mercadopago": typed(func(ctx context.Context, _ Actor, req mercadoPagoTestRequest) (any, error) {
			token := strings.TrimSpace(req.AccessToken)
			if token == "" {
				stored, err := store.AccessToken(ctx)
				if err != nil {
					return nil, err
				}
				token = stored
			}
			return checker.Check(ctx, token)
		}),
	})
}
