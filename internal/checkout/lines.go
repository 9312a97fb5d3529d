package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/enxoval-backend/internal/orders"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/mercadopago"
)

// ProductLookup loads catalogue rows by id.
type ProductLookup interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// LineRequest is one requested product.
type LineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// ResolveLines prices the requested lines from the catalogue and checks each
// quantity against min(remaining, 5). Repeated product ids are merged in
// first-seen order.
func ResolveLines(ctx context.Context, products ProductLookup, requests []LineRequest) ([]orders.Line, error) {
	if len(requests) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Todos os campos são obrigatórios")
	}

	merged := make([]LineRequest, 0, len(requests))
	index := map[uuid.UUID]int{}
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Todos os campos são obrigatórios")
		}
		if req.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantidade deve ser pelo menos 1")
		}
		if i, ok := index[req.ProductID]; ok {
			merged[i].Quantity += req.Quantity
			continue
		}
		index[req.ProductID] = len(merged)
		merged = append(merged, req)
	}

	ids := make([]uuid.UUID, 0, len(merged))
	for _, req := range merged {
		ids = append(ids, req.ProductID)
	}
	found, err := products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	lines := make([]orders.Line, 0, len(merged))
	for _, req := range merged {
		product, ok := found[req.ProductID]
		if !ok || !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Produto %s não encontrado ou inativo", req.ProductID))
		}
		if product.Remaining() == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("O produto \"%s\" já atingiu a meta de presentes!", product.Name))
		}
		if req.Quantity > product.MaxPerCart() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf(
				"Apenas %d unidade(s) disponível(is) para o produto \"%s\"", product.MaxPerCart(), product.Name,
			)).WithDetails(map[string]any{"product_id": product.ID, "max_per_cart": product.MaxPerCart()})
		}
		lines = append(lines, orders.Line{Product: product, Quantity: req.Quantity})
	}
	return lines, nil
}

// Summary is the gateway-facing description of a checkout.
type Summary struct {
	Title      string
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalCents int64
}

// Summarize builds the preference title and pricing: a single line is sold
// as quantity x unit price, several lines as one unit worth the total.
func Summarize(lines []orders.Line) Summary {
	var total int64
	for _, line := range lines {
		total += line.Product.PriceCents * int64(line.Quantity)
	}
	if len(lines) == 1 {
		line := lines[0]
		return Summary{
			Title:      "Presente para o bebê: " + line.Product.Name,
			Quantity:   line.Quantity,
			UnitPrice:  mercadopago.CentsToUnits(line.Product.PriceCents),
			TotalCents: total,
		}
	}
	return Summary{
		Title:      fmt.Sprintf("Presentes para o bebê (%d itens)", len(lines)),
		Quantity:   1,
		UnitPrice:  mercadopago.CentsToUnits(total),
		TotalCents: total,
	}
}
