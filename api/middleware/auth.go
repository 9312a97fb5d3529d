package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/enxoval-backend/api/responses"
	pkgAuth "github.com/angelmondragon/enxoval-backend/pkg/auth"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

// AdminTokenHeader carries the access token alongside Authorization.
const AdminTokenHeader = "X-ENX-Token"

// RoleLookup resolves the stored role for a verified user. Token claims are
// never trusted for the role.
type RoleLookup interface {
	Role(ctx context.Context, userID uuid.UUID) (enums.Role, error)
}

// Auth verifies the bearer token with the configured identity provider,
// reads the caller's role from profiles and seeds the request context.
func Auth(verifier pkgAuth.TokenVerifier, roles RoleLookup, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "token ausente"))
				return
			}

			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if errors.Is(err, pkgAuth.ErrInvalidToken) {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "token inválido"))
					return
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
				return
			}

			role, err := roles.Role(r.Context(), identity.UserID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load role"))
				return
			}

			ctx := WithCaller(r.Context(), Caller{
				UserID: identity.UserID.String(),
				Email:  identity.Email,
				Role:   role,
			})
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    identity.UserID.String(),
					"actor_role": string(role),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw == "" {
		raw = strings.TrimSpace(r.Header.Get(AdminTokenHeader))
	}
	return raw
}
