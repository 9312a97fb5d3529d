// Package oidc verifies ID tokens issued by an external OpenID Connect
// provider.
package oidc

import (
	"context"
	"fmt"
	"strings"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/pkg/auth"
	"github.com/angelmondragon/enxoval-backend/pkg/config"
)

type idTokenVerifier interface {
	Verify(ctx context.Context, raw string) (*gooidc.IDToken, error)
}

// Verifier checks ID tokens against the provider's JWKS. The subject must be
// the profile user id; the role is resolved later from profiles.
type Verifier struct {
	verifier idTokenVerifier
}

type idClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

// New discovers the provider configuration for cfg.Issuer.
func New(ctx context.Context, cfg config.OIDCConfig) (*Verifier, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("oidc issuer is required")
	}
	provider, err := gooidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}
	oidcCfg := &gooidc.Config{ClientID: cfg.ClientID}
	if strings.TrimSpace(cfg.ClientID) == "" {
		oidcCfg.SkipClientIDCheck = true
	}
	return &Verifier{verifier: provider.Verifier(oidcCfg)}, nil
}

func (v *Verifier) Verify(ctx context.Context, raw string) (*auth.Identity, error) {
	token, err := v.verifier.Verify(ctx, strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}
	var claims idClaims
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", auth.ErrInvalidToken)
	}
	return &auth.Identity{UserID: userID, Email: claims.Email, AccessID: token.Subject}, nil
}
