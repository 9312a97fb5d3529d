package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/enxoval-backend/api/middleware"
	"github.com/angelmondragon/enxoval-backend/internal/auth"
	pkgAuth "github.com/angelmondragon/enxoval-backend/pkg/auth"
	"github.com/angelmondragon/enxoval-backend/pkg/auth/session"
	"github.com/angelmondragon/enxoval-backend/pkg/config"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "enxoval", ExpirationMinutes: 30}

type stubLogin struct {
	err error
}

func (s stubLogin) Login(_ context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &auth.LoginResponse{AccessToken: "access-" + req.Email, RefreshToken: "refresh"}, nil
}

type stubRotator struct {
	rotatedFrom string
	revoked     string
	rotateErr   error
}

func (s *stubRotator) Rotate(_ context.Context, oldAccessID, provided string) (string, string, error) {
	if s.rotateErr != nil {
		return "", "", s.rotateErr
	}
	s.rotatedFrom = oldAccessID
	return "access-2", "refresh-2", nil
}

func (s *stubRotator) Revoke(_ context.Context, accessID string) error {
	s.revoked = accessID
	return nil
}

func mintTestToken(t *testing.T, jti string) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testJWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "admin@enxoval.dev",
		Role:   enums.RoleAdmin,
		JTI:    jti,
	})
	require.NoError(t, err)
	return token
}

func TestLoginSetsTokenHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/login",
		strings.NewReader(`{"email":"admin@enxoval.dev","password":"segredo123"}`))
	rec := httptest.NewRecorder()

	Login(stubLogin{}, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "access-admin@enxoval.dev", rec.Header().Get(middleware.AdminTokenHeader))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/login",
		strings.NewReader(`{"email":"admin@enxoval.dev","password":"errada"}`))
	rec := httptest.NewRecorder()

	Login(stubLogin{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "credenciais inválidas")}, logger.Nop()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get(middleware.AdminTokenHeader))
}

func TestRefreshRotatesSession(t *testing.T) {
	rotator := &stubRotator{}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/refresh", strings.NewReader(`{"refresh_token":"refresh-1"}`))
	req.Header.Set(middleware.AdminTokenHeader, mintTestToken(t, "access-1"))
	rec := httptest.NewRecorder()

	Refresh(rotator, testJWT, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "access-1", rotator.rotatedFrom)

	var body struct {
		Data refreshResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "refresh-2", body.Data.RefreshToken)

	claims, err := pkgAuth.ParseAccessToken(testJWT, body.Data.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "access-2", claims.ID)
	assert.Equal(t, enums.RoleAdmin, claims.Role)
}

func TestRefreshRejectsUnknownRefreshToken(t *testing.T) {
	rotator := &stubRotator{rotateErr: session.ErrInvalidRefreshToken}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/refresh", strings.NewReader(`{"refresh_token":"stale"}`))
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, "access-1"))
	rec := httptest.NewRecorder()

	Refresh(rotator, testJWT, logger.Nop()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesSession(t *testing.T) {
	rotator := &stubRotator{}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, "access-9"))
	rec := httptest.NewRecorder()

	Logout(rotator, testJWT, logger.Nop()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "access-9", rotator.revoked)
}

func TestLogoutWithoutToken(t *testing.T) {
	rec := httptest.NewRecorder()
	Logout(&stubRotator{}, testJWT, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/v1/auth/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
