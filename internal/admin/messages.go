package admin

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/internal/audit"
	"github.com/angelmondragon/enxoval-backend/internal/guestbook"
	"github.com/angelmondragon/enxoval-backend/pkg/pagination"
)

const entityMessage = "guestbook_message"

type messageListRequest struct {
	Page     int   `json:"page"`
	Limit    int   `json:"limit"`
	Approved *bool `json:"approved"`
}

type messageApprovalRequest struct {
	MessageID uuid.UUID `json:"message_id" validate:"required"`
	Approved  *bool     `json:"approved" validate:"required"`
}

type messageIDRequest struct {
	MessageID uuid.UUID `json:"message_id" validate:"required"`
}

// Messages builds the guestbook moderation resource.
func Messages(svc *guestbook.Service, recorder audit.Recorder) *Resource {
	return newResource("messages", map[string]Handler{
		"list": typed(func(ctx context.Context, _ Actor, req messageListRequest) (any, error) {
			return svc.AdminList(ctx, req.Approved, pagination.Params{Page: req.Page, Limit: req.Limit})
		}),
		"toggle_approval": typed(func(ctx context.Context, actor Actor, req messageApprovalRequest) (any, error) {
			msg, err := svc.SetApproval(ctx, req.MessageID, *req.Approved)
			if err != nil {
				return nil, err
			}
			action := "reject_message"
			if *req.Approved {
				action = "approve_message"
			}
			record(ctx, recorder, actor, action, entityMessage, req.MessageID.String(), map[string]any{
				"author_name": msg.AuthorName,
			})
			return msg, nil
		}),
		"delete": typed(func(ctx context.Context, actor Actor, req messageIDRequest) (any, error) {
			msg, err := svc.Delete(ctx, req.MessageID)
			if err != nil {
				return nil, err
			}
			record(ctx, recorder, actor, "delete_message", entityMessage, req.MessageID.String(), map[string]any{
				"author_name": msg.AuthorName,
			})
			return map[string]any{"success": true}, nil
		}),
	})
}
