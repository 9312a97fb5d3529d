package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	"github.com/google/uuid"
)

type stubSessions struct {
	active map[string]bool
}

func (s stubSessions) HasSession(_ context.Context, accessID string) (bool, error) {
	return s.active[accessID], nil
}

func TestLocalVerifier(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: userID, Role: enums.RoleAdmin, JTI: "live"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	verifier, err := NewLocalVerifier(cfg, stubSessions{active: map[string]bool{"live": true}})
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	identity, err := verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity.UserID != userID || identity.AccessID != "live" {
		t.Fatalf("unexpected identity %+v", identity)
	}

	revoked, _ := NewLocalVerifier(cfg, stubSessions{active: map[string]bool{}})
	if _, err := revoked.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for revoked session, got %v", err)
	}
	if _, err := verifier.Verify(context.Background(), "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for garbage, got %v", err)
	}
}
