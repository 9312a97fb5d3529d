package checkout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/enxoval-backend/internal/orders"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
)

type stubProducts map[uuid.UUID]models.Product

func (s stubProducts) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := map[uuid.UUID]models.Product{}
	for _, id := range ids {
		if p, ok := s[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func TestResolveLinesMergesDuplicates(t *testing.T) {
	body := models.Product{ID: uuid.New(), Name: "Body", PriceCents: 4990, TargetQty: 10, IsActive: true}
	lines, err := ResolveLines(context.Background(), stubProducts{body.ID: body}, []LineRequest{
		{ProductID: body.ID, Quantity: 1},
		{ProductID: body.ID, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
}

func TestResolveLinesRejections(t *testing.T) {
	active := models.Product{ID: uuid.New(), Name: "Manta", PriceCents: 8000, TargetQty: 3, PurchasedQty: 1, IsActive: true}
	done := models.Product{ID: uuid.New(), Name: "Berço", PriceCents: 90000, TargetQty: 1, PurchasedQty: 1, IsActive: true}
	hidden := models.Product{ID: uuid.New(), Name: "Carrinho", PriceCents: 120000, TargetQty: 1, IsActive: false}
	products := stubProducts{active.ID: active, done.ID: done, hidden.ID: hidden}

	cases := []struct {
		name    string
		lines   []LineRequest
		message string
	}{
		{"empty", nil, "Todos os campos são obrigatórios"},
		{"inactive", []LineRequest{{ProductID: hidden.ID, Quantity: 1}}, "não encontrado ou inativo"},
		{"unknown", []LineRequest{{ProductID: uuid.New(), Quantity: 1}}, "não encontrado ou inativo"},
		{"goal reached", []LineRequest{{ProductID: done.ID, Quantity: 1}}, "já atingiu a meta de presentes!"},
		{"over remaining", []LineRequest{{ProductID: active.ID, Quantity: 3}}, "Apenas 2 unidade(s) disponível(is) para o produto \"Manta\""},
		{"zero quantity", []LineRequest{{ProductID: active.ID, Quantity: 0}}, "quantidade deve ser pelo menos 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveLines(context.Background(), products, tc.lines)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
			assert.Contains(t, typed.Message(), tc.message)
		})
	}
}

func TestSummarize(t *testing.T) {
	body := models.Product{Name: "Body", PriceCents: 4990}
	manta := models.Product{Name: "Manta", PriceCents: 8000}

	single := Summarize([]orders.Line{{Product: body, Quantity: 2}})
	assert.Equal(t, "Presente para o bebê: Body", single.Title)
	assert.Equal(t, 2, single.Quantity)
	assert.Equal(t, "49.9", single.UnitPrice.String())
	assert.Equal(t, int64(9980), single.TotalCents)

	multi := Summarize([]orders.Line{{Product: body, Quantity: 2}, {Product: manta, Quantity: 1}})
	assert.Equal(t, "Presentes para o bebê (2 itens)", multi.Title)
	assert.Equal(t, 1, multi.Quantity)
	assert.Equal(t, "179.8", multi.UnitPrice.String())
	assert.Equal(t, int64(17980), multi.TotalCents)
}
