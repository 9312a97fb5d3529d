package responses

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env.Error
}

func TestWriteSuccessStatusWrapsData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccessStatus(rec, http.StatusCreated, map[string]string{"id": "msg-1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	var env Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, "msg-1", env.Data.(map[string]any)["id"])
}

func TestWriteErrorShowsUserFacingMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "Apenas 2 unidade(s) disponível(is)").
		WithDetails(map[string]string{"field": "quantity"})
	WriteError(t.Context(), logger.Nop(), rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeValidation), body.Code)
	assert.Equal(t, "Apenas 2 unidade(s) disponível(is)", body.Message)
	assert.NotNil(t, body.Details)
}

func TestWriteErrorGatewayUsesPublicMessageAndKeepsDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeGateway, "preference rejected").
		WithDetails(map[string]any{"status": 401, "detail": `{"message":"invalid token"}`})
	WriteError(t.Context(), nil, rec, err)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, pkgerrors.MetadataFor(pkgerrors.CodeGateway).PublicMessage, body.Message)
	assert.NotNil(t, body.Details)
}

func TestWriteErrorHidesUntypedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(t.Context(), nil, rec, errors.New("dial tcp 10.0.0.3:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeInternal), body.Code)
	assert.NotContains(t, body.Message, "10.0.0.3")
	assert.Nil(t, body.Details)
}

func TestWriteErrorLogsServerFailuresWithChain(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "api", Output: buf})
	rec := httptest.NewRecorder()
	WriteError(t.Context(), logg, rec, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("redis down"), "cache"))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, buf.String(), `"error_code":"DEPENDENCY_ERROR"`)
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestWriteBodySetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteBody(rec, http.StatusOK, "image/png", []byte{0x89, 'P', 'N', 'G'})

	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, 4, rec.Body.Len())
}
