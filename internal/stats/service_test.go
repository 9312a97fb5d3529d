package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/enxoval-backend/pkg/db/dbtest"
)

func TestDashboardAggregatesOrdersAndMessages(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(conn)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, conn.Exec(`INSERT INTO orders (id, purchaser_name, purchaser_email, payment_method, amount_cents, status, paid_at, created_at) VALUES
('o1', 'Ana', 'a@x.com', 'pix', 10000, 'paid', '2026-03-30 10:00:00', '2026-03-30 09:00:00'),
('o2', 'Bia', 'b@x.com', 'credit', 5000, 'paid', '2026-03-30 11:00:00', '2026-03-30 11:00:00'),
('o3', 'Caio', 'c@x.com', 'pix', 2000, 'paid', '2026-01-01 11:00:00', '2026-01-01 11:00:00'),
('o4', 'Duda', 'd@x.com', 'pix', 7000, 'pending', NULL, '2026-03-30 11:00:00'),
('o5', 'Eva', 'e@x.com', 'debit', 3000, 'failed', NULL, '2026-03-29 11:00:00')`).Error)
	require.NoError(t, conn.Exec(`INSERT INTO guestbook_messages (id, author_name, message, approved) VALUES ('m1', 'Ana', 'oi', 0), ('m2', 'Bia', 'olá', 1)`).Error)

	got, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 5, got.Stats.TotalOrders)
	require.EqualValues(t, 3, got.Stats.PaidOrders)
	require.EqualValues(t, 1, got.Stats.PendingOrders)
	require.EqualValues(t, 1, got.Stats.FailedOrders)
	require.EqualValues(t, 17000, got.Stats.RaisedCents)
	require.EqualValues(t, 1, got.Stats.MessagesPending)
	require.EqualValues(t, 115500, got.Stats.GoalCents)
	require.Equal(t, 14, got.Stats.Percent)

	require.Len(t, got.DailySales, 1)
	require.Equal(t, "2026-03-30", got.DailySales[0].Day)
	require.EqualValues(t, 2, got.DailySales[0].Orders)
	require.EqualValues(t, 15000, got.DailySales[0].AmountCents)
}
