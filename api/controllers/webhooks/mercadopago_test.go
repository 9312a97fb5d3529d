package webhooks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mpwebhook "github.com/angelmondragon/enxoval-backend/internal/webhooks/mercadopago"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

const testSecret = "whsec"

type recordingService struct {
	calls int
	err   error
}

func (s *recordingService) HandleEvent(_ context.Context, event *mpwebhook.Event) (string, error) {
	s.calls++
	if event.Type != mpwebhook.EventTypePayment {
		return mpwebhook.ResultIgnored, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return mpwebhook.ResultProcessed, nil
}

type staticSecret string

func (s staticSecret) WebhookSecret(context.Context) (string, error) { return string(s), nil }

type memoryGuard struct {
	seen    map[string]bool
	deleted []string
}

func (g *memoryGuard) CheckAndMark(_ context.Context, id string) (bool, error) {
	if g.seen == nil {
		g.seen = map[string]bool{}
	}
	if g.seen[id] {
		return true, nil
	}
	g.seen[id] = true
	return false, nil
}

func (g *memoryGuard) Delete(_ context.Context, id string) error {
	delete(g.seen, id)
	g.deleted = append(g.deleted, id)
	return nil
}

func signedRequest(body, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mercadopago", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(signatureHeader, "ts=1700000000,"+mpwebhook.Sign([]byte(body), secret))
	}
	return req
}

const paymentBody = `{"id":9001,"type":"payment","action":"payment.updated","data":{"id":"123"}}`

func TestWebhookRejectsMissingOrBadSignature(t *testing.T) {
	svc := &recordingService{}
	handler := MercadoPagoWebhook(svc, staticSecret(testSecret), &memoryGuard{}, logger.Nop())

	for name, req := range map[string]*http.Request{
		"missing": signedRequest(paymentBody, ""),
		"wrong":   signedRequest(paymentBody, "other-secret"),
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", name, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	MercadoPagoWebhook(svc, staticSecret(""), &memoryGuard{}, logger.Nop()).ServeHTTP(rec, signedRequest(paymentBody, testSecret))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unconfigured secret: expected 401 got %d", rec.Code)
	}
	if svc.calls != 0 {
		t.Fatalf("service must not run without a valid signature")
	}
}

func TestWebhookProcessesOnce(t *testing.T) {
	svc := &recordingService{}
	guard := &memoryGuard{}
	handler := MercadoPagoWebhook(svc, staticSecret(testSecret), guard, logger.Nop())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, signedRequest(paymentBody, testSecret))
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200 got %d", i, rec.Code)
		}
		if rec.Body.String() != "OK" {
			t.Fatalf("delivery %d: expected OK body, got %q", i, rec.Body.String())
		}
	}
	if svc.calls != 1 {
		t.Fatalf("expected one processing, got %d", svc.calls)
	}
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	svc := &recordingService{}
	guard := &memoryGuard{}
	body := `{"id":1,"type":"merchant_order","data":{"id":"55"}}`
	rec := httptest.NewRecorder()
	MercadoPagoWebhook(svc, staticSecret(testSecret), guard, logger.Nop()).ServeHTTP(rec, signedRequest(body, testSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if len(guard.seen) != 0 {
		t.Fatalf("ignored events must not be marked")
	}
}

func TestWebhookFailureClearsMark(t *testing.T) {
	svc := &recordingService{err: errors.New("gateway down")}
	guard := &memoryGuard{}
	rec := httptest.NewRecorder()
	MercadoPagoWebhook(svc, staticSecret(testSecret), guard, logger.Nop()).ServeHTTP(rec, signedRequest(paymentBody, testSecret))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	if len(guard.deleted) != 1 || guard.deleted[0] != "9001" {
		t.Fatalf("expected mark cleared, got %v", guard.deleted)
	}
}

func TestWebhookWithoutNotificationIDSkipsMark(t *testing.T) {
	svc := &recordingService{}
	guard := &memoryGuard{}
	handler := MercadoPagoWebhook(svc, staticSecret(testSecret), guard, logger.Nop())

	for _, body := range []string{
		`{"type":"payment","action":"payment.created","data":{"id":"123"}}`,
		`{"type":"payment","action":"payment.updated","data":{"id":"123"}}`,
		`{"type":"payment","action":"payment.updated","data":{"id":"123"}}`,
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, signedRequest(body, testSecret))
		if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
			t.Fatalf("expected 200 OK, got %d %q", rec.Code, rec.Body.String())
		}
	}
	if svc.calls != 3 {
		t.Fatalf("every delivery should reach the service, got %d", svc.calls)
	}
	if len(guard.seen) != 0 {
		t.Fatalf("no replay mark expected, got %v", guard.seen)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(`{"id":7,"type":"payment","data":{}}`, testSecret))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing payment id: expected 400 got %d", rec.Code)
	}
}
