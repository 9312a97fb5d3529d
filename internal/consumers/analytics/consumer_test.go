package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	"github.com/angelmondragon/enxoval-backend/pkg/logger"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/enxoval-backend/pkg/outbox/registry"
)

type recordingInserter struct {
	tables []string
	rows   []any
	err    error
}

func (r *recordingInserter) InsertRows(_ context.Context, table string, rows []any) error {
	if r.err != nil {
		return r.err
	}
	r.tables = append(r.tables, table)
	r.rows = append(r.rows, rows...)
	return nil
}

type memoryClaims struct {
	claimed  map[uuid.UUID]bool
	released int
}

func (m *memoryClaims) Claim(_ context.Context, _ string, id uuid.UUID) (bool, error) {
	if m.claimed[id] {
		return false, nil
	}
	m.claimed[id] = true
	return true, nil
}

func (m *memoryClaims) Release(_ context.Context, _ string, id uuid.UUID) error {
	delete(m.claimed, id)
	m.released++
	return nil
}

func setup(t *testing.T) (*Consumer, *recordingInserter, *memoryClaims) {
	t.Helper()
	inserter := &recordingInserter{}
	claims := &memoryClaims{claimed: map[uuid.UUID]bool{}}
	c, err := NewConsumer(inserter, " contribution_events ", claims, logger.Nop())
	require.NoError(t, err)
	return c, inserter, claims
}

func envelopeFor(t *testing.T, data any) outbox.PayloadEnvelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), OccurredAt: time.Now().UTC(), Data: raw}
}

func TestOrderPaidBecomesOneRowWithLines(t *testing.T) {
	c, inserter, _ := setup(t)
	orderID := uuid.New()
	paidAt := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	env := envelopeFor(t, payloads.OrderPaidEvent{
		OrderID:       orderID,
		PaymentMethod: enums.PaymentMethodPix,
		AmountCents:   12970,
		PaidAt:        paidAt,
		Source:        "webhook",
		Items: []payloads.OrderLine{
			{ProductID: uuid.New(), ProductName: "Body", Quantity: 2, UnitPriceCents: 4990},
			{ProductID: uuid.New(), ProductName: "Manta", Quantity: 1, UnitPriceCents: 2990},
		},
	})

	require.NoError(t, c.Process(context.Background(), enums.EventOrderPaid, env))
	require.Len(t, inserter.rows, 1)
	assert.Equal(t, []string{"contribution_events"}, inserter.tables)

	saver, ok := inserter.rows[0].(*cbigquery.StructSaver)
	require.True(t, ok)
	assert.Equal(t, env.EventID, saver.InsertID)
	row := saver.Struct.(*contributionRow)
	assert.Equal(t, orderID.String(), row.OrderID)
	assert.Equal(t, "pix", row.PaymentMethod)
	assert.EqualValues(t, 3, row.ItemCount)
	assert.Len(t, row.Lines, 2)
	assert.Equal(t, "webhook", row.Source.StringVal)
	assert.True(t, row.PaidAt.Valid)
	assert.False(t, row.ProviderStatus.Valid)
	assert.True(t, row.Payload.Valid)
}

func TestOrderFailedCarriesProviderStatus(t *testing.T) {
	c, inserter, _ := setup(t)
	env := envelopeFor(t, payloads.OrderFailedEvent{
		OrderID:        uuid.New(),
		PaymentMethod:  enums.PaymentMethodCredit,
		AmountCents:    4990,
		ProviderStatus: "rejected",
		Source:         "reconcile",
	})

	require.NoError(t, c.Process(context.Background(), enums.EventOrderFailed, env))
	row := inserter.rows[0].(*cbigquery.StructSaver).Struct.(*contributionRow)
	assert.Equal(t, "rejected", row.ProviderStatus.StringVal)
	assert.Zero(t, row.ItemCount)
	assert.False(t, row.PaidAt.Valid)
}

func TestRedeliveryIsIngestedOnce(t *testing.T) {
	c, inserter, _ := setup(t)
	env := envelopeFor(t, payloads.OrderCreatedEvent{OrderID: uuid.New(), AmountCents: 100})

	require.NoError(t, c.Process(context.Background(), enums.EventOrderCreated, env))
	require.NoError(t, c.Process(context.Background(), enums.EventOrderCreated, env))
	assert.Len(t, inserter.rows, 1)
}

func TestGuestbookEventsAreIgnored(t *testing.T) {
	c, inserter, claims := setup(t)
	env := envelopeFor(t, payloads.GuestbookMessagePostedEvent{MessageID: uuid.New(), AuthorName: "Tia"})

	require.NoError(t, c.Process(context.Background(), enums.EventGuestbookMessagePosted, env))
	assert.Empty(t, inserter.rows)
	assert.Empty(t, claims.claimed)
}

func TestInsertFailureReleasesClaim(t *testing.T) {
	c, inserter, claims := setup(t)
	inserter.err = errors.New("bigquery unavailable")
	env := envelopeFor(t, payloads.OrderCreatedEvent{OrderID: uuid.New()})

	err := c.Process(context.Background(), enums.EventOrderCreated, env)
	require.Error(t, err)
	assert.False(t, errors.As(err, new(registry.NonRetryableError)))
	assert.Equal(t, 1, claims.released)
	assert.Empty(t, claims.claimed)
}

func TestMalformedPayloadIsNotRetried(t *testing.T) {
	c, inserter, claims := setup(t)
	env := outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), Data: []byte(`{"order_id":42}`)}

	err := c.Process(context.Background(), enums.EventOrderPaid, env)
	require.Error(t, err)
	assert.True(t, errors.As(err, new(registry.NonRetryableError)))
	assert.Empty(t, inserter.rows)
	assert.Empty(t, claims.claimed)
}

func TestSchemaMatchesRow(t *testing.T) {
	schema, err := Schema()
	require.NoError(t, err)

	fields := map[string]*cbigquery.FieldSchema{}
	for _, f := range schema {
		fields[f.Name] = f
	}
	require.Contains(t, fields, PartitionField)
	assert.Equal(t, cbigquery.TimestampFieldType, fields[PartitionField].Type)
	require.Contains(t, fields, "lines")
	assert.True(t, fields["lines"].Repeated)
	assert.Len(t, fields["lines"].Schema, 4)
	assert.False(t, fields["source"].Required)
}
