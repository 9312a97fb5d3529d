package admin

import (
	"context"
	"encoding/json"

	"github.com/angelmondragon/enxoval-backend/internal/audit"
	"github.com/angelmondragon/enxoval-backend/internal/content"
	"github.com/angelmondragon/enxoval-backend/internal/settings"
)

const (
	entityStory    = "story_content"
	entityTemplate = "thankyou_template"
)

type storyUpdateRequest struct {
	Content     string  `json:"content" validate:"required"`
	CouplePhoto *string `json:"couple_photo"`
}

type templateUpdateRequest struct {
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

type testEmailRequest struct {
	content.TestEmailInput
}

// Content builds the story and thank-you template resource.
func Content(store *settings.Service, mail *content.Service, recorder audit.Recorder) *Resource {
	return newResource("content", map[string]Handler{
		"get_story": func(ctx context.Context, _ Actor, _ json.RawMessage) (any, error) {
			return store.Story(ctx)
		},
		"update_story": typed(func(ctx context.Context, actor Actor, req storyUpdateRequest) (any, error) {
			story, err := store.UpdateStory(ctx, req.Content, req.CouplePhoto)
			if err != nil {
				return nil, err
			}
			record(ctx, recorder, actor, "update_story", entityStory, "1", map[string]any{
				"has_couple_photo": story.CouplePhoto != nil,
			})
			return story, nil
		}),
		"get_template": func(ctx context.Context, _ Actor, _ json.RawMessage) (any, error) {
			return store.Template(ctx)
		},
		"update_template": typed(func(ctx context.Context, actor Actor, req templateUpdateRequest) (any, error) {
			tpl, err := store.UpdateTemplate(ctx, req.Subject, req.Body)
			if err != nil {
				return nil, err
			}
			record(ctx, recorder, actor, "update_template", entityTemplate, "1", map[string]any{
				"subject": tpl.Subject,
			})
			return tpl, nil
		}),
		"send_test_email": typed(func(ctx context.Context, actor Actor, req testEmailRequest) (any, error) {
			result, err := mail.SendTestEmail(ctx, req.TestEmailInput)
			if err != nil {
				return nil, err
			}
			record(ctx, recorder, actor, "send_test_email", entityTemplate, "1", map[string]any{
				"to": result.To,
			})
			return result, nil
		}),
	})
}
