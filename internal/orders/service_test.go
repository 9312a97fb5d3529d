package orders

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	product "github.com/angelmondragon/enxoval-backend/internal/products"
	"github.com/angelmondragon/enxoval-backend/pkg/db"
	"github.com/angelmondragon/enxoval-backend/pkg/db/dbtest"
	"github.com/angelmondragon/enxoval-backend/pkg/db/models"
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/enxoval-backend/pkg/errors"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/mercadopago"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox"
	"github.com/angelmondragon/enxoval-backend/pkg/pagination"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(conn),
		Tx:      db.FromConn(conn),
		Outbox:  outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Counter: product.PurchaseCounter{},
		Logger:  logger.Nop(),
	})
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC) }
	return svc, conn
}

func seedProduct(t *testing.T, conn *gorm.DB, name string, price int64, target, purchased int) models.Product {
	t.Helper()
	p := models.Product{Name: name, PriceCents: price, TargetQty: target, PurchasedQty: purchased, IsActive: true}
	require.NoError(t, conn.Create(&p).Error)
	return p
}

func outboxTypes(t *testing.T, conn *gorm.DB) []enums.OutboxEventType {
	t.Helper()
	var events []models.OutboxEvent
	require.NoError(t, conn.Order("created_at ASC").Find(&events).Error)
	out := make([]enums.OutboxEventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType)
	}
	return out
}

func createOrder(t *testing.T, svc *Service, lines ...Line) *models.Order {
	t.Helper()
	order, err := svc.CreatePending(context.Background(), CreateInput{
		PurchaserName:  "Ana Souza",
		PurchaserEmail: "ana@example.com",
		Method:         enums.PaymentMethodPix,
		Lines:          lines,
	})
	require.NoError(t, err)
	return order
}

func TestCreatePendingSnapshotsPrices(t *testing.T) {
	svc, conn := newTestService(t)
	body := seedProduct(t, conn, "Body", 4990, 5, 0)
	manta := seedProduct(t, conn, "Manta", 12000, 2, 0)

	order := createOrder(t, svc, Line{Product: body, Quantity: 2}, Line{Product: manta, Quantity: 1})
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.EqualValues(t, 2*4990+12000, order.AmountCents)

	require.NoError(t, conn.Model(&models.Product{}).Where("id = ?", body.ID).Update("price_cents", 9999).Error)

	loaded, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 2)
	for _, item := range loaded.Items {
		if item.ProductID == body.ID {
			require.EqualValues(t, 4990, item.UnitPriceCents)
		}
	}
	require.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated}, outboxTypes(t, conn))

	_, err = svc.CreatePending(context.Background(), CreateInput{PurchaserName: "Ana", Method: enums.PaymentMethodPix})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestApplyPaymentStatusPaysOnceAndCapsIncrement(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	body := seedProduct(t, conn, "Body", 4990, 5, 4)
	order := createOrder(t, svc, Line{Product: body, Quantity: 2})

	res, err := svc.ApplyPaymentStatus(ctx, PaymentUpdate{
		OrderID:           order.ID,
		ExternalPaymentID: "mp-1",
		ProviderStatus:    mercadopago.StatusApproved,
		Source:            SourceWebhook,
		EventID:           "evt-1",
		EventType:         "payment",
	})
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Equal(t, enums.OrderStatusPending, res.OldStatus)
	require.Equal(t, enums.OrderStatusPaid, res.NewStatus)

	var reloaded models.Product
	require.NoError(t, conn.First(&reloaded, "id = ?", body.ID).Error)
	assert.Equal(t, 5, reloaded.PurchasedQty)

	dup, err := svc.ApplyPaymentStatus(ctx, PaymentUpdate{OrderID: order.ID, ProviderStatus: "approved", EventID: "evt-1", EventType: "payment"})
	require.NoError(t, err)
	require.True(t, dup.Duplicate)
	require.False(t, dup.Changed)

	again, err := svc.ApplyPaymentStatus(ctx, PaymentUpdate{OrderID: order.ID, ProviderStatus: "approved", EventID: "evt-2", EventType: "payment"})
	require.NoError(t, err)
	require.False(t, again.Changed)
	require.Equal(t, enums.OrderStatusPaid, again.NewStatus)

	paid, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, paid.PaidAt)
	require.Equal(t, "mp-1", *paid.ExternalPaymentID)

	require.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated, enums.EventOrderPaid}, outboxTypes(t, conn))

	var markers int64
	require.NoError(t, conn.Model(&models.WebhookEvent{}).Count(&markers).Error)
	require.EqualValues(t, 2, markers)
}

func TestConcurrentPaidDeliveriesIncrementOnce(t *testing.T) {
	svc, conn := newTestService(t)
	body := seedProduct(t, conn, "Body", 4990, 5, 0)
	order := createOrder(t, svc, Line{Product: body, Quantity: 2})

	const deliveries = 8
	var changed atomic.Int32
	errs := make(chan error, deliveries)
	var wg sync.WaitGroup
	for i := range deliveries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.ApplyPaymentStatus(context.Background(), PaymentUpdate{
				OrderID:           order.ID,
				ExternalPaymentID: "mp-1",
				ProviderStatus:    mercadopago.StatusApproved,
				Source:            SourceWebhook,
				EventID:           "evt-" + strconv.Itoa(i),
				EventType:         "payment",
			})
			if err != nil {
				errs <- err
				return
			}
			if res.Changed {
				changed.Add(1)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.EqualValues(t, 1, changed.Load())
	var reloaded models.Product
	require.NoError(t, conn.First(&reloaded, "id = ?", body.ID).Error)
	assert.Equal(t, 2, reloaded.PurchasedQty)
	assert.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated, enums.EventOrderPaid}, outboxTypes(t, conn))
}

func TestApplyPaymentStatusFailureIsTerminal(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	body := seedProduct(t, conn, "Body", 4990, 5, 0)
	order := createOrder(t, svc, Line{Product: body, Quantity: 1})

	res, err := svc.ApplyPaymentStatus(ctx, PaymentUpdate{OrderID: order.ID, ProviderStatus: "rejected", Source: SourceReconcile})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusFailed, res.NewStatus)

	late, err := svc.ApplyPaymentStatus(ctx, PaymentUpdate{OrderID: order.ID, ProviderStatus: "approved", Source: SourceWebhook})
	require.NoError(t, err)
	require.False(t, late.Changed)
	require.Equal(t, enums.OrderStatusFailed, late.NewStatus)

	var reloaded models.Product
	require.NoError(t, conn.First(&reloaded, "id = ?", body.ID).Error)
	require.Zero(t, reloaded.PurchasedQty)
	require.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated, enums.EventOrderFailed}, outboxTypes(t, conn))
}

func TestApplyPaymentStatusInFlightStaysPending(t *testing.T) {
	svc, conn := newTestService(t)
	body := seedProduct(t, conn, "Body", 4990, 5, 0)
	order := createOrder(t, svc, Line{Product: body, Quantity: 1})

	res, err := svc.ApplyPaymentStatus(context.Background(), PaymentUpdate{OrderID: order.ID, ProviderStatus: "in_process", ExternalPaymentID: "mp-9"})
	require.NoError(t, err)
	require.False(t, res.Changed)
	require.Equal(t, enums.OrderStatusPending, res.NewStatus)

	loaded, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, "in_process", *loaded.ProviderStatus)
	require.Equal(t, "mp-9", *loaded.ExternalPaymentID)

	_, err = svc.ApplyPaymentStatus(context.Background(), PaymentUpdate{OrderID: uuid.New(), ProviderStatus: "approved"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestListFiltersAndExportCSV(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	body := seedProduct(t, conn, "Body", 115500, 5, 0)

	first := createOrder(t, svc, Line{Product: body, Quantity: 1})
	require.NoError(t, svc.AttachPayment(ctx, first.ID, "mp-77", "pending"))
	_, err := svc.CreatePending(ctx, CreateInput{
		PurchaserName:  "Bruno Lima",
		PurchaserEmail: "bruno@example.com",
		Method:         enums.PaymentMethodCredit,
		Lines:          []Line{{Product: body, Quantity: 1}},
	})
	require.NoError(t, err)

	list, err := svc.List(ctx, ListFilters{Search: "MP-77"}, pagination.Params{})
	require.NoError(t, err)
	require.EqualValues(t, 1, list.Total)
	require.Equal(t, first.ID, list.Orders[0].ID)

	list, err = svc.List(ctx, ListFilters{PaymentMethod: enums.PaymentMethodCredit}, pagination.Params{})
	require.NoError(t, err)
	require.EqualValues(t, 1, list.Total)
	require.Equal(t, "Bruno Lima", list.Orders[0].PurchaserName)

	export, err := svc.ExportCSV(ctx, ListFilters{Search: "ana"})
	require.NoError(t, err)
	require.Equal(t, "pedidos_2026-05-10.csv", export.Filename)
	require.Equal(t, 1, export.Count)

	lines := strings.Split(strings.TrimSpace(export.Content), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Data;Comprador;Email;Método;Valor (R$);Status;ID Pagamento", lines[0])
	require.Contains(t, lines[1], ";Ana Souza;ana@example.com;")
	require.Contains(t, lines[1], ";1155,00;Pendente;mp-77")
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "0,99", FormatAmount(99))
	require.Equal(t, "1155,00", FormatAmount(115500))
}

type stubFetcher struct {
	payment *mercadopago.Payment
	calls   int
}

func (s *stubFetcher) GetPayment(_ context.Context, id string) (*mercadopago.Payment, error) {
	s.calls++
	p := *s.payment
	p.ID = id
	return &p, nil
}

func TestReconcileAppliesGatewayStatus(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	body := seedProduct(t, conn, "Body", 4990, 5, 0)

	fetcher := &stubFetcher{payment: &mercadopago.Payment{Status: mercadopago.StatusDeclined}}
	reconciler, err := NewReconciler(svc, fetcher)
	require.NoError(t, err)

	noPayment := createOrder(t, svc, Line{Product: body, Quantity: 1})
	_, err = reconciler.Reconcile(ctx, noPayment.ID, SourceReconcile)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Zero(t, fetcher.calls)

	require.NoError(t, svc.AttachPayment(ctx, noPayment.ID, "mp-5", ""))
	res, err := reconciler.Reconcile(ctx, noPayment.ID, SourceReconcile)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.True(t, res.Changed)
	require.Equal(t, enums.OrderStatusPending, res.OldStatus)
	require.Equal(t, enums.OrderStatusFailed, res.NewStatus)
	require.Equal(t, "declined", res.ProviderStatus)
	require.Equal(t, "mp-5", res.PaymentData.ID)
}

func TestStalePendingAndMarkFailed(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	body := seedProduct(t, conn, "Body", 4990, 5, 0)

	old := createOrder(t, svc, Line{Product: body, Quantity: 1})
	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", old.ID).Update("created_at", time.Date(2026, 5, 8, 0, 0, 0, 0, time.UTC)).Error)
	recent := createOrder(t, svc, Line{Product: body, Quantity: 1})
	require.NoError(t, conn.Model(&models.Order{}).Where("id = ?", recent.ID).Update("created_at", time.Date(2026, 5, 10, 14, 59, 0, 0, time.UTC)).Error)

	stale, err := svc.StalePending(ctx, 24*time.Hour, false, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, old.ID, stale[0].ID)

	withPayment, err := svc.StalePending(ctx, 24*time.Hour, true, 10)
	require.NoError(t, err)
	require.Empty(t, withPayment)

	res, err := svc.MarkFailed(ctx, old.ID, SourceCron, ProviderStatusExpired)
	require.NoError(t, err)
	require.True(t, res.Changed)

	status, err := svc.Status(ctx, old.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusFailed, status.Status)
}
