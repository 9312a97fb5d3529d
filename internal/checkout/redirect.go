package checkout

import (
	"bytes"
	"html/template"
	"net/url"
	"strings"

	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
)

const (
	appScheme       = "mercadopago://"
	appSchemeTarget = "https://www.mercadopago.com.br/"
	preferenceURL   = "https://www.mercadopago.com.br/checkout/v1/redirect?pref_id="
)

// Redirect strategies, tried in order by the redirect page.
const (
	StrategyLocationAssign = "location_assign"
	StrategyAnchorClick    = "anchor_click"
	StrategyFormGet        = "form_get"
)

// RedirectStrategies is the ordered fallback list returned to clients.
var RedirectStrategies = []string{StrategyLocationAssign, StrategyAnchorClick, StrategyFormGet}

// NormalizeRedirectURL rewrites the app-launch scheme to its web equivalent
// and refuses anything that is not an absolute https URL.
func NormalizeRedirectURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "URL de pagamento indisponível")
	}
	if strings.HasPrefix(strings.ToLower(raw), appScheme) {
		raw = appSchemeTarget + strings.TrimLeft(raw[len(appScheme):], "/")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme != "https" || parsed.Host == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "URL de pagamento inválida")
	}
	return parsed.String(), nil
}

// PreferenceRedirectURL is the hosted checkout URL for a preference id.
func PreferenceRedirectURL(preferenceID string) string {
	return preferenceURL + url.QueryEscape(preferenceID)
}

var redirectPage = template.Must(template.New("redirect").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Redirecionando para o pagamento</title>
</head>
<body>
<p>Redirecionando para o Mercado Pago... <a id="fallback" href="{{.URL}}" rel="noopener">Clique aqui</a> se nada acontecer.</p>
<form id="redirect-form" method="GET" action="{{.Action}}">
{{range .Params}}<input type="hidden" name="{{.Name}}" value="{{.Value}}">
{{end}}</form>
<script>
(function () {
  var target = {{.URL}};
  try {
    window.location.assign(target);
    return;
  } catch (e) {}
  try {
    document.getElementById("fallback").click();
    return;
  } catch (e) {}
  document.getElementById("redirect-form").submit();
})();
</script>
</body>
</html>
`))

type formParam struct {
	Name  string
	Value string
}

// RenderRedirectPage renders the HTML page that navigates to target using
// location.assign, then an anchor click, then a GET form submit, each only
// if the previous one threw.
func RenderRedirectPage(target string) ([]byte, error) {
	normalized, err := NormalizeRedirectURL(target)
	if err != nil {
		return nil, err
	}
	parsed, _ := url.Parse(normalized)
	var params []formParam
	for name, values := range parsed.Query() {
		for _, value := range values {
			params = append(params, formParam{Name: name, Value: value})
		}
	}
	action := *parsed
	action.RawQuery = ""

	var buf bytes.Buffer
	err = redirectPage.Execute(&buf, map[string]any{
		"URL":    normalized,
		"Action": action.String(),
		"Params": params,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render redirect page")
	}
	return buf.Bytes(), nil
}
