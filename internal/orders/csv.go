package orders

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
)

var csvHeader = []string{"Data", "Comprador", "Email", "Método", "Valor (R$)", "Status", "ID Pagamento"}

var saoPaulo = loadSaoPaulo()

func loadSaoPaulo() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}

// ExportCSV renders every order matching filters as a semicolon separated
// file with comma decimals, newest first.
func (s *Service) ExportCSV(ctx context.Context, filters ListFilters) (*ExportResult, error) {
	rows, err := s.repo.ListAll(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "export orders")
	}
	content, err := renderCSV(rows)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render csv")
	}
	return &ExportResult{
		Filename: "pedidos_" + s.now().UTC().Format("2006-01-02") + ".csv",
		Content:  content,
		Count:    len(rows),
	}, nil
}

func renderCSV(rows []models.Order) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, order := range rows {
		paymentID := ""
		if order.ExternalPaymentID != nil {
			paymentID = *order.ExternalPaymentID
		}
		record := []string{
			order.CreatedAt.In(saoPaulo).Format("02/01/2006 15:04:05"),
			order.PurchaserName,
			order.PurchaserEmail,
			order.PaymentMethod.Label(),
			FormatAmount(order.AmountCents),
			order.Status.Label(),
			paymentID,
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FormatAmount renders cents with a comma decimal separator, e.g. "1155,00".
func FormatAmount(cents int64) string {
	return strings.Replace(decimal.New(cents, -2).StringFixed(2), ".", ",", 1)
}
