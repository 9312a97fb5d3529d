package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
)

const defaultAccountURL = "https://api.mercadopago.com/v1/account/settings"

// AccountCheck is the outcome of probing the gateway with a token.
type AccountCheck struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	StatusCode int            `json:"status_code,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Detail     string         `json:"detail,omitempty"`
}

// AccountChecker validates an access token against the account endpoint,
// which the SDK does not cover.
type AccountChecker struct {
	httpClient *http.Client
	url        string
}

func NewAccountChecker(accountURL string, timeout time.Duration) *AccountChecker {
	if strings.TrimSpace(accountURL) == "" {
		accountURL = defaultAccountURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AccountChecker{
		httpClient: &http.Client{Timeout: timeout},
		url:        accountURL,
	}
}

// Check returns a populated AccountCheck for any gateway answer; the error
// is reserved for a missing token or a transport failure.
func (a *AccountChecker) Check(ctx context.Context, token string) (*AccountCheck, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeMissingConfig, "token do Mercado Pago não configurado")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build account request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "falha ao contatar o Mercado Pago").WithDetails(map[string]any{
			"status": 0,
			"detail": err.Error(),
		})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "falha ao ler resposta do Mercado Pago")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &AccountCheck{
			Success:    false,
			Message:    fmt.Sprintf("Token inválido ou sem permissão (HTTP %d)", resp.StatusCode),
			StatusCode: resp.StatusCode,
			Detail:     string(body),
		}, nil
	}

	data := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &data); err != nil {
			data = map[string]any{"raw": string(body)}
		}
	}
	return &AccountCheck{
		Success:    true,
		Message:    "Conexão com o Mercado Pago estabelecida com sucesso",
		StatusCode: resp.StatusCode,
		Data:       data,
	}, nil
}
