package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/enxoval-backend/pkg/config"
)

// ErrInvalidToken is returned for any bearer token that cannot be trusted.
var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier turns a raw bearer token into a verified identity.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*Identity, error)
}

type sessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// LocalVerifier accepts HS256 tokens minted by MintAccessToken whose
// session is still present in Redis.
type LocalVerifier struct {
	cfg      config.JWTConfig
	sessions sessionChecker
}

func NewLocalVerifier(cfg config.JWTConfig, sessions sessionChecker) (*LocalVerifier, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session checker is required")
	}
	return &LocalVerifier{cfg: cfg, sessions: sessions}, nil
}

func (v *LocalVerifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	claims, err := ParseAccessToken(v.cfg, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" {
		return nil, ErrInvalidToken
	}
	active, err := v.sessions.HasSession(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, fmt.Errorf("%w: session revoked", ErrInvalidToken)
	}
	return &Identity{
		UserID:   claims.UserID,
		Email:    claims.Email,
		Role:     claims.Role,
		AccessID: claims.ID,
	}, nil
}
