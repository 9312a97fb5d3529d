package content

import (
	"bytes"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Vars are the placeholders a thank-you template may reference.
type Vars struct {
	Name     string
	TotalBRL string
	OrderID  string
}

// Rendered is a composed email ready for delivery.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Substitute replaces {{name}}, {{total_brl}} and {{order_id}}. Unknown
// placeholders are left untouched.
func Substitute(tpl string, vars Vars) string {
	return strings.NewReplacer(
		"{{name}}", vars.Name,
		"{{total_brl}}", vars.TotalBRL,
		"{{order_id}}", vars.OrderID,
	).Replace(tpl)
}

// Render substitutes the placeholders in subject and body, and renders the
// markdown body to HTML.
func Render(subject, body string, vars Vars) (Rendered, error) {
	text := Substitute(body, vars)
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return Rendered{}, err
	}
	return Rendered{
		Subject: Substitute(subject, vars),
		Text:    text,
		HTML:    buf.String(),
	}, nil
}

// FormatBRL renders cents as "R$ 1.234,56".
func FormatBRL(cents int64) string {
	negative := cents < 0
	if negative {
		cents = -cents
	}
	fixed := decimal.New(cents, -2).StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	out := "R$ " + grouped.String() + "," + frac
	if negative {
		return "-" + out
	}
	return out
}
