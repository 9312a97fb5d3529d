package guestbook

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/enxoval-backend/pkg/db"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/enxoval-backend/pkg/pagination"
)

const (
	MaxAuthorNameLength = 80
	MaxMessageLength    = 500
)

// PostInput is the public guestbook submission.
type PostInput struct {
	AuthorName string `json:"author_name" validate:"required,notblank"`
	Message    string `json:"message" validate:"required,notblank"`
}

type ListResult struct {
	Messages []models.GuestbookMessage `json:"messages"`
	Total    int64                     `json:"total"`
	Page     int                       `json:"page"`
	Limit    int                       `json:"limit"`
}

type ServiceParams struct {
	Repo   *Repository
	Tx     db.TxRunner
	Outbox outbox.Emitter
}

type Service struct {
	repo   *Repository
	tx     db.TxRunner
	outbox outbox.Emitter
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("guestbook repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &Service{repo: params.Repo, tx: params.Tx, outbox: params.Outbox}, nil
}

// ListApproved is the public feed.
func (s *Service) ListApproved(ctx context.Context, params pagination.Params) (*ListResult, error) {
	approved := true
	return s.list(ctx, &approved, params)
}

// AdminList returns messages regardless of moderation state unless approved
// is set.
func (s *Service) AdminList(ctx context.Context, approved *bool, params pagination.Params) (*ListResult, error) {
	return s.list(ctx, approved, params)
}

func (s *Service) list(ctx context.Context, approved *bool, params pagination.Params) (*ListResult, error) {
	params = params.Normalize()
	rows, total, err := s.repo.List(ctx, approved, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list guestbook messages")
	}
	if rows == nil {
		rows = []models.GuestbookMessage{}
	}
	return &ListResult{Messages: rows, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// Post stores an unapproved message and queues guestbook_message_posted in
// the same transaction.
func (s *Service) Post(ctx context.Context, input PostInput) (*models.GuestbookMessage, error) {
	author := strings.TrimSpace(input.AuthorName)
	message := strings.TrimSpace(input.Message)
	if author == "" || message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nome e mensagem são obrigatórios")
	}
	if utf8.RuneCountInString(author) > MaxAuthorNameLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("nome deve ter no máximo %d caracteres", MaxAuthorNameLength))
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("mensagem deve ter no máximo %d caracteres", MaxMessageLength))
	}

	msg := &models.GuestbookMessage{AuthorName: author, Message: message}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, msg); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventGuestbookMessagePosted,
			AggregateType: enums.AggregateGuestbookMessage,
			AggregateID:   msg.ID,
			Data: payloads.GuestbookMessagePostedEvent{
				MessageID:  msg.ID,
				AuthorName: msg.AuthorName,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "post guestbook message")
	}
	return msg, nil
}

// SetApproval toggles moderation and returns the updated message.
func (s *Service) SetApproval(ctx context.Context, id uuid.UUID, approved bool) (*models.GuestbookMessage, error) {
	affected, err := s.repo.SetApproved(ctx, id, approved)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update guestbook message")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "mensagem não encontrada")
	}
	msg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guestbook message")
	}
	return msg, nil
}

// Delete removes the message and returns what was deleted so callers can
// audit the author.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (*models.GuestbookMessage, error) {
	msg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "mensagem não encontrada")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guestbook message")
	}
	if _, err := s.repo.Delete(ctx, id); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete guestbook message")
	}
	return msg, nil
}
