package mailer

import (
	"context"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/enxoval-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
)

type fakeSendClient struct {
	sent   *mail.SGMailV3
	status int
}

func (f *fakeSendClient) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = email
	return &rest.Response{StatusCode: f.status, Body: "body"}, nil
}

func TestNewSendGridDisabled(t *testing.T) {
	sender, err := NewSendGrid(config.SendgridConfig{})
	if err != nil || sender != nil {
		t.Fatalf("expected nil sender when unconfigured, got %v (%v)", sender, err)
	}
}

func TestSendGridSend(t *testing.T) {
	fake := &fakeSendClient{status: 202}
	sender := &SendGrid{client: fake, from: "no-reply@enxoval.test", fromName: "Enxoval"}

	err := sender.Send(context.Background(), Message{
		ToName:  "Ana",
		ToEmail: "ana@example.com",
		Subject: "Obrigado",
		Text:    "oi",
		HTML:    "<p>oi</p>",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.sent == nil || fake.sent.Subject != "Obrigado" || fake.sent.From.Address != "no-reply@enxoval.test" {
		t.Fatalf("unexpected message %+v", fake.sent)
	}
	if got := fake.sent.Personalizations[0].To[0].Address; got != "ana@example.com" {
		t.Fatalf("unexpected recipient %q", got)
	}
}

func TestSendGridSendRejectedStatus(t *testing.T) {
	sender := &SendGrid{client: &fakeSendClient{status: 401}, from: "x@y.z"}
	err := sender.Send(context.Background(), Message{ToEmail: "a@b.c", Subject: "s", Text: "t"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestSendGridSendValidates(t *testing.T) {
	sender := &SendGrid{client: &fakeSendClient{status: 202}, from: "x@y.z"}
	if err := sender.Send(context.Background(), Message{Subject: "s"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
