package admin

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/enxoval-backend/internal/audit"
	"github.com/angelmondragon/enxoval-backend/internal/categories"
	product "github.com/angelmondragon/enxoval-backend/internal/products"
	"github.com/angelmondragon/enxoval-backend/pkg/db"
	"github.com/angelmondragon/enxoval-backend/pkg/db/dbtest"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
)

type recordedEntries struct {
	entries []audit.Entry
}

func (r *recordedEntries) Record(_ context.Context, entry audit.Entry) {
	r.entries = append(r.entries, entry)
}

var testActor = Actor{UserID: uuid.New(), Email: "admin@example.com"}

func productResource(t *testing.T) (*Resource, *recordedEntries, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := product.NewService(product.NewRepository(conn))
	require.NoError(t, err)
	recorder := &recordedEntries{}
	return Products(svc, recorder), recorder, conn
}

func TestDispatchUnknownActionIsValidationError(t *testing.T) {
	res, recorder, _ := productResource(t)

	_, err := res.Dispatch(context.Background(), testActor, []byte(`{"action":"explode"}`))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, recorder.entries)

	_, err = res.Dispatch(context.Background(), testActor, []byte(`{"id":"x"}`))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = res.Dispatch(context.Background(), testActor, []byte(`not json`))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDispatchAcceptsFlatAndNestedBodies(t *testing.T) {
	res, recorder, _ := productResource(t)

	flat := []byte(`{"action":"create","name":"Body manga longa","price_cents":4990,"target_qty":3}`)
	out, err := res.Dispatch(context.Background(), testActor, flat)
	require.NoError(t, err)
	created := out.(*product.ProductDTO)
	assert.Equal(t, "Body manga longa", created.Name)

	nested := []byte(`{"action":"create","data":{"name":"Macacão","price_cents":7990,"target_qty":2}}`)
	out, err = res.Dispatch(context.Background(), testActor, nested)
	require.NoError(t, err)
	assert.Equal(t, int64(7990), out.(*product.ProductDTO).PriceCents)

	require.Len(t, recorder.entries, 2)
	assert.Equal(t, "create_product", recorder.entries[0].Action)
	assert.Equal(t, testActor.UserID, recorder.entries[0].UserID)
	assert.Equal(t, created.ID.String(), recorder.entries[0].EntityID)
}

func TestDispatchValidatesRequiredFields(t *testing.T) {
	res, recorder, _ := productResource(t)

	_, err := res.Dispatch(context.Background(), testActor, []byte(`{"action":"toggle_active","id":"`+uuid.NewString()+`"}`))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = res.Dispatch(context.Background(), testActor, []byte(`{"action":"create","name":"Sem preço","target_qty":1}`))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, recorder.entries)
}

func TestBulkToggleAudited(t *testing.T) {
	res, recorder, conn := productResource(t)
	a := models.Product{Name: "Fralda P", PriceCents: 5990, TargetQty: 10, IsActive: true}
	b := models.Product{Name: "Fralda M", PriceCents: 6490, TargetQty: 10, IsActive: true}
	require.NoError(t, conn.Create(&a).Error)
	require.NoError(t, conn.Create(&b).Error)

	body, _ := json.Marshal(map[string]any{"action": "bulk_toggle", "ids": []uuid.UUID{a.ID, b.ID}, "is_active": false})
	out, err := res.Dispatch(context.Background(), testActor, body)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"updated": int64(2)}, out)

	var active int64
	require.NoError(t, conn.Model(&models.Product{}).Where("is_active = ?", true).Count(&active).Error)
	assert.Zero(t, active)
	require.Len(t, recorder.entries, 1)
	assert.Equal(t, "bulk_toggle_products", recorder.entries[0].Action)
}

func TestCategoryReorderAtTopDoesNotMove(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := categories.NewService(categories.NewRepository(conn), product.NewRepository(conn), db.FromConn(conn))
	require.NoError(t, err)
	recorder := &recordedEntries{}
	res := Categories(svc, recorder)

	first := models.Category{Name: "Roupas", SortOrder: 0}
	second := models.Category{Name: "Higiene", SortOrder: 1}
	require.NoError(t, conn.Create(&first).Error)
	require.NoError(t, conn.Create(&second).Error)

	out, err := res.Dispatch(context.Background(), testActor, []byte(`{"action":"reorder","id":"`+first.ID.String()+`","direction":"up"}`))
	require.NoError(t, err)
	result := out.(*categories.ReorderResult)
	assert.False(t, result.Moved)
	assert.NotEmpty(t, result.Message)
	assert.Empty(t, recorder.entries)

	out, err = res.Dispatch(context.Background(), testActor, []byte(`{"action":"reorder","data":{"id":"`+first.ID.String()+`","direction":"down"}}`))
	require.NoError(t, err)
	assert.True(t, out.(*categories.ReorderResult).Moved)
	require.Len(t, recorder.entries, 1)

	_, err = res.Dispatch(context.Background(), testActor, []byte(`{"action":"reorder","id":"`+first.ID.String()+`","direction":"sideways"}`))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCategoryActionsAcceptCategoryID(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := categories.NewService(categories.NewRepository(conn), product.NewRepository(conn), db.FromConn(conn))
	require.NoError(t, err)
	recorder := &recordedEntries{}
	res := Categories(svc, recorder)

	cat := models.Category{Name: "Roupas"}
	require.NoError(t, conn.Create(&cat).Error)

	_, err = res.Dispatch(context.Background(), testActor, []byte(`{"action":"update","category_id":"`+cat.ID.String()+`","name":"Roupinhas"}`))
	require.NoError(t, err)
	var renamed models.Category
	require.NoError(t, conn.First(&renamed, "id = ?", cat.ID).Error)
	assert.Equal(t, "Roupinhas", renamed.Name)

	_, err = res.Dispatch(context.Background(), testActor, []byte(`{"action":"delete"}`))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	out, err := res.Dispatch(context.Background(), testActor, []byte(`{"action":"delete","category_id":"`+cat.ID.String()+`"}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"success": true}, out)
	require.Len(t, recorder.entries, 2)
	assert.Equal(t, "delete_category", recorder.entries[1].Action)
	assert.Equal(t, cat.ID.String(), recorder.entries[1].EntityID)
}

func TestParseDateCoversWholeDay(t *testing.T) {
	to, err := parseDate("2026-05-10", true)
	require.NoError(t, err)
	assert.Equal(t, 23, to.Hour())

	from, err := parseDate("2026-05-10", false)
	require.NoError(t, err)
	assert.Zero(t, from.Hour())

	_, err = parseDate("10/05/2026", false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
