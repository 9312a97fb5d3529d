package settings

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/enxoval-backend/pkg/config"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
)

const (
	DefaultGoalCents       int64 = 115500
	DefaultStory                 = "Digite a história aqui..."
	DefaultTemplateSubject       = "Obrigado pela sua contribuição!"
	DefaultTemplateBody          = "Olá {{name}},\n\nObrigado pela sua contribuição de {{total_brl}} para nosso enxoval!\n\nPedido: {{order_id}}"
)

// MercadoPagoStatus never exposes secrets, only whether they are set.
type MercadoPagoStatus struct {
	HasAccessToken   bool    `json:"has_access_token"`
	PublicKey        *string `json:"public_key,omitempty"`
	HasWebhookSecret bool    `json:"has_webhook_secret"`
	Source           string  `json:"source"`
}

// MercadoPagoInput updates only the provided fields; an empty string clears.
type MercadoPagoInput struct {
	AccessToken   *string `json:"access_token"`
	PublicKey     *string `json:"public_key"`
	WebhookSecret *string `json:"webhook_secret"`
}

// Service owns the singleton settings rows and resolves gateway credentials
// with env fallbacks.
type Service struct {
	repo *Repository
	mp   config.MercadoPagoConfig
}

func NewService(repo *Repository, mp config.MercadoPagoConfig) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	return &Service{repo: repo, mp: mp}, nil
}

func (s *Service) Goal(ctx context.Context) (*models.CampaignSettings, error) {
	row, ok, err := s.repo.Campaign(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load campaign settings")
	}
	if !ok {
		return &models.CampaignSettings{ID: models.SingletonID, GoalCents: DefaultGoalCents}, nil
	}
	return row, nil
}

func (s *Service) UpdateGoal(ctx context.Context, goalCents int64) (*models.CampaignSettings, error) {
	if goalCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "meta deve ser maior que zero")
	}
	row := &models.CampaignSettings{GoalCents: goalCents}
	if err := s.repo.SaveCampaign(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save campaign settings")
	}
	return row, nil
}

func (s *Service) Story(ctx context.Context) (*models.StoryContent, error) {
	row, ok, err := s.repo.Story(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load story")
	}
	if !ok {
		return &models.StoryContent{ID: models.SingletonID, Content: DefaultStory}, nil
	}
	return row, nil
}

// UpdateStory keeps the current couple photo when couplePhoto is nil.
func (s *Service) UpdateStory(ctx context.Context, content string, couplePhoto *string) (*models.StoryContent, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "conteúdo é obrigatório")
	}
	current, err := s.Story(ctx)
	if err != nil {
		return nil, err
	}
	row := &models.StoryContent{Content: content, CouplePhoto: current.CouplePhoto}
	if couplePhoto != nil {
		photo := strings.TrimSpace(*couplePhoto)
		if photo == "" {
			row.CouplePhoto = nil
		} else {
			row.CouplePhoto = &photo
		}
	}
	if err := s.repo.SaveStory(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save story")
	}
	return row, nil
}

func (s *Service) Template(ctx context.Context) (*models.ThankYouTemplate, error) {
	row, ok, err := s.repo.Template(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load template")
	}
	if !ok {
		return &models.ThankYouTemplate{
			ID:      models.SingletonID,
			Subject: DefaultTemplateSubject,
			Body:    DefaultTemplateBody,
		}, nil
	}
	return row, nil
}

func (s *Service) UpdateTemplate(ctx context.Context, subject, body string) (*models.ThankYouTemplate, error) {
	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	if subject == "" || body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assunto e corpo são obrigatórios")
	}
	row := &models.ThankYouTemplate{Subject: subject, Body: body}
	if err := s.repo.SaveTemplate(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save template")
	}
	return row, nil
}

func (s *Service) MercadoPagoStatus(ctx context.Context) (*MercadoPagoStatus, error) {
	row, ok, err := s.repo.MercadoPago(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load mercadopago settings")
	}
	status := &MercadoPagoStatus{Source: "env"}
	if ok {
		status.Source = "database"
		status.HasAccessToken = nonEmpty(row.AccessToken)
		status.HasWebhookSecret = nonEmpty(row.WebhookSecret)
		status.PublicKey = row.PublicKey
	}
	if !status.HasAccessToken {
		status.HasAccessToken = strings.TrimSpace(s.mp.AccessToken) != ""
	}
	if !status.HasWebhookSecret {
		status.HasWebhookSecret = strings.TrimSpace(s.mp.WebhookSecret) != ""
	}
	return status, nil
}

func (s *Service) UpdateMercadoPago(ctx context.Context, input MercadoPagoInput) (*MercadoPagoStatus, error) {
	if input.AccessToken == nil && input.PublicKey == nil && input.WebhookSecret == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "informe ao menos um campo")
	}
	row, _, err := s.repo.MercadoPago(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load mercadopago settings")
	}
	if input.AccessToken != nil {
		row.AccessToken = trimmedOrNil(*input.AccessToken)
	}
	if input.PublicKey != nil {
		row.PublicKey = trimmedOrNil(*input.PublicKey)
	}
	if input.WebhookSecret != nil {
		row.WebhookSecret = trimmedOrNil(*input.WebhookSecret)
	}
	if err := s.repo.SaveMercadoPago(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save mercadopago settings")
	}
	return s.MercadoPagoStatus(ctx)
}

// AccessToken resolves the gateway token: settings row first, then env.
func (s *Service) AccessToken(ctx context.Context) (string, error) {
	row, ok, err := s.repo.MercadoPago(ctx)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load mercadopago settings")
	}
	if ok && nonEmpty(row.AccessToken) {
		return strings.TrimSpace(*row.AccessToken), nil
	}
	return strings.TrimSpace(s.mp.AccessToken), nil
}

// WebhookSecret resolves the webhook signing secret: settings row first,
// then env.
func (s *Service) WebhookSecret(ctx context.Context) (string, error) {
	row, ok, err := s.repo.MercadoPago(ctx)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load mercadopago settings")
	}
	if ok && nonEmpty(row.WebhookSecret) {
		return strings.TrimSpace(*row.WebhookSecret), nil
	}
	return strings.TrimSpace(s.mp.WebhookSecret), nil
}

func nonEmpty(value *string) bool {
	return value != nil && strings.TrimSpace(*value) != ""
}

func trimmedOrNil(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
