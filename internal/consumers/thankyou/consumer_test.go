package thankyou

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/internal/content"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox/payloads"
)

type stubOrders map[uuid.UUID]*models.Order

func (s stubOrders) Get(_ context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return order, nil
}

type sentMail struct {
	toName, toEmail string
	vars            content.Vars
}

type fakeMailer struct {
	enabled bool
	err     error
	sent    []sentMail
}

func (f *fakeMailer) Enabled() bool { return f.enabled }

func (f *fakeMailer) SendThankYou(_ context.Context, toName, toEmail string, vars content.Vars) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.sent = append(f.sent, sentMail{toName: toName, toEmail: toEmail, vars: vars})
	return true, nil
}

type memoryIdempotency struct {
	seen    map[string]bool
	deleted int
}

func (m *memoryIdempotency) Claim(_ context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key := consumer + ":" + eventID.String()
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func (m *memoryIdempotency) Release(_ context.Context, consumer string, eventID uuid.UUID) error {
	delete(m.seen, consumer+":"+eventID.String())
	m.deleted++
	return nil
}

func paidEnvelope(t *testing.T, orderID uuid.UUID) outbox.PayloadEnvelope {
	t.Helper()
	data, err := json.Marshal(payloads.OrderPaidEvent{OrderID: orderID, AmountCents: 15000})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), OccurredAt: time.Now(), Data: data}
}

func TestThankYouSentOncePerEvent(t *testing.T) {
	order := &models.Order{
		ID:             uuid.New(),
		PurchaserName:  "Ana Souza",
		PurchaserEmail: "ana@example.com",
		AmountCents:    15000,
		Status:         enums.OrderStatusPaid,
	}
	mail := &fakeMailer{enabled: true}
	idem := &memoryIdempotency{seen: map[string]bool{}}
	consumer, err := NewConsumer(stubOrders{order.ID: order}, mail, idem, logger.Nop())
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	envelope := paidEnvelope(t, order.ID)
	for i := 0; i < 2; i++ {
		if err := consumer.Process(context.Background(), enums.EventOrderPaid, envelope); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if len(mail.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(mail.sent))
	}
	got := mail.sent[0]
	if got.toEmail != "ana@example.com" || got.vars.Name != "Ana Souza" {
		t.Fatalf("unexpected recipient %+v", got)
	}
	if got.vars.TotalBRL != content.FormatBRL(15000) || got.vars.OrderID != order.ID.String() {
		t.Fatalf("unexpected vars %+v", got.vars)
	}
}

func TestThankYouIgnoresOtherEventsAndDisabledDelivery(t *testing.T) {
	mail := &fakeMailer{enabled: false}
	idem := &memoryIdempotency{seen: map[string]bool{}}
	consumer, err := NewConsumer(stubOrders{}, mail, idem, logger.Nop())
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	if err := consumer.Process(context.Background(), enums.EventOrderCreated, paidEnvelope(t, uuid.New())); err != nil {
		t.Fatalf("process created: %v", err)
	}
	if err := consumer.Process(context.Background(), enums.EventOrderPaid, paidEnvelope(t, uuid.New())); err != nil {
		t.Fatalf("process paid: %v", err)
	}
	if len(idem.seen) != 0 {
		t.Fatalf("disabled delivery must not claim events")
	}
}

func TestThankYouReleasesClaimOnFailure(t *testing.T) {
	order := &models.Order{ID: uuid.New(), PurchaserName: "Ana", PurchaserEmail: "ana@example.com", Status: enums.OrderStatusPaid}
	mail := &fakeMailer{enabled: true, err: errors.New("sendgrid 500")}
	idem := &memoryIdempotency{seen: map[string]bool{}}
	consumer, err := NewConsumer(stubOrders{order.ID: order}, mail, idem, logger.Nop())
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}

	if err := consumer.Process(context.Background(), enums.EventOrderPaid, paidEnvelope(t, order.ID)); err == nil {
		t.Fatalf("expected error")
	}
	if idem.deleted != 1 || len(idem.seen) != 0 {
		t.Fatalf("expected claim released, deleted=%d seen=%d", idem.deleted, len(idem.seen))
	}
}
