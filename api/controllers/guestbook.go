package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/enxoval-backend/api/responses"
	"github.com/angelmondragon/enxoval-backend/api/validators"
	"github.com/angelmondragon/enxoval-backend/internal/guestbook"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/pagination"
)

type guestbookService interface {
	ListApproved(ctx context.Context, params pagination.Params) (*guestbook.ListResult, error)
	Post(ctx context.Context, input guestbook.PostInput) (*models.GuestbookMessage, error)
}

type storyReader interface {
	Story(ctx context.Context) (*models.StoryContent, error)
}

func GuestbookList(svc guestbookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListApproved(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// GuestbookPost stores an unapproved message; it stays hidden until an
// admin approves it.
func GuestbookPost(svc guestbookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body guestbook.PostInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		msg, err := svc.Post(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, msg)
	}
}

func PublicStory(svc storyReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		story, err := svc.Story(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, story)
	}
}
