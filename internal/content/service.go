package content

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/mailer"
)

const (
	TestSubjectPrefix = "[TESTE] "

	sampleName     = "Teste"
	sampleOrderID  = "TEST-001"
	sampleTotalBRL = "R$ 150,00"
)

// TemplateSource yields the current thank-you template, defaults included.
type TemplateSource interface {
	Template(ctx context.Context) (*models.ThankYouTemplate, error)
}

// TestEmailInput drives send_test_email; empty sample fields get defaults.
type TestEmailInput struct {
	To       string `json:"to"`
	Name     string `json:"name"`
	OrderID  string `json:"order_id"`
	TotalBRL string `json:"total_brl"`
}

type TestEmailResult struct {
	Sent    bool   `json:"sent"`
	To      string `json:"to"`
	Subject string `json:"subject"`
}

// Service composes thank-you emails from the admin-managed template. A nil
// sender disables delivery.
type Service struct {
	templates TemplateSource
	sender    mailer.Sender
}

func NewService(templates TemplateSource, sender mailer.Sender) (*Service, error) {
	if templates == nil {
		return nil, fmt.Errorf("template source required")
	}
	return &Service{templates: templates, sender: sender}, nil
}

// Enabled reports whether email delivery is configured.
func (s *Service) Enabled() bool {
	return s.sender != nil
}

func (s *Service) Compose(ctx context.Context, vars Vars) (Rendered, error) {
	tpl, err := s.templates.Template(ctx)
	if err != nil {
		return Rendered{}, err
	}
	rendered, err := Render(tpl.Subject, tpl.Body, vars)
	if err != nil {
		return Rendered{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render template")
	}
	return rendered, nil
}

// SendThankYou composes and delivers the thank-you email for a paid order.
// It returns false without error when delivery is disabled.
func (s *Service) SendThankYou(ctx context.Context, toName, toEmail string, vars Vars) (bool, error) {
	if s.sender == nil {
		return false, nil
	}
	rendered, err := s.Compose(ctx, vars)
	if err != nil {
		return false, err
	}
	err = s.sender.Send(ctx, mailer.Message{
		ToName:  toName,
		ToEmail: toEmail,
		Subject: rendered.Subject,
		Text:    rendered.Text,
		HTML:    rendered.HTML,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// SendTestEmail delivers the current template with sample values and a
// subject prefixed by [TESTE].
func (s *Service) SendTestEmail(ctx context.Context, input TestEmailInput) (*TestEmailResult, error) {
	to := strings.TrimSpace(input.To)
	if to == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email de destino é obrigatório")
	}
	if _, err := mail.ParseAddress(to); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email de destino inválido")
	}
	if s.sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeMissingConfig, "envio de email não configurado")
	}

	vars := Vars{
		Name:     firstNonEmpty(input.Name, sampleName),
		OrderID:  firstNonEmpty(input.OrderID, sampleOrderID),
		TotalBRL: firstNonEmpty(input.TotalBRL, sampleTotalBRL),
	}
	rendered, err := s.Compose(ctx, vars)
	if err != nil {
		return nil, err
	}
	subject := TestSubjectPrefix + rendered.Subject
	err = s.sender.Send(ctx, mailer.Message{
		ToName:  vars.Name,
		ToEmail: to,
		Subject: subject,
		Text:    rendered.Text,
		HTML:    rendered.HTML,
	})
	if err != nil {
		return nil, err
	}
	return &TestEmailResult{Sent: true, To: to, Subject: subject}, nil
}

func firstNonEmpty(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
