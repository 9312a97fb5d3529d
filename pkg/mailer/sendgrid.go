package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/enxoval-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
)

// Message is a single transactional email.
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGrid delivers mail through the SendGrid v3 API.
type SendGrid struct {
	client   sendClient
	from     string
	fromName string
}

// NewSendGrid returns nil, nil when SendGrid is not configured so callers
// can skip email delivery.
func NewSendGrid(cfg config.SendgridConfig) (*SendGrid, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	return &SendGrid{
		client:   sendgrid.NewSendClient(strings.TrimSpace(cfg.APIKey)),
		from:     strings.TrimSpace(cfg.DefaultFrom),
		fromName: cfg.FromName,
	}, nil
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.ToEmail) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "destinatário é obrigatório")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "assunto é obrigatório")
	}

	from := mail.NewEmail(s.fromName, s.from)
	to := mail.NewEmail(msg.ToName, strings.TrimSpace(msg.ToEmail))
	email := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sendgrid send")
	}
	if resp.StatusCode >= 300 {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("sendgrid status %d", resp.StatusCode)).
			WithDetails(map[string]any{"status": resp.StatusCode, "body": resp.Body})
	}
	return nil
}
