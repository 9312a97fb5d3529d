// Package dbtest opens isolated in-memory sqlite databases carrying the
// registry schema for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var schema = []string{
	`CREATE TABLE categories (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  sort_order INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  price_cents INTEGER NOT NULL CHECK (price_cents > 0),
  target_qty INTEGER NOT NULL DEFAULT 1 CHECK (target_qty >= 1),
  purchased_qty INTEGER NOT NULL DEFAULT 0 CHECK (purchased_qty >= 0),
  category_id TEXT REFERENCES categories(id),
  is_active INTEGER NOT NULL DEFAULT 1,
  image_url TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  CHECK (purchased_qty <= target_qty)
);`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  purchaser_name TEXT NOT NULL,
  purchaser_email TEXT NOT NULL,
  payment_method TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  external_payment_id TEXT,
  preference_id TEXT,
  provider_status TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id),
  product_id TEXT NOT NULL REFERENCES products(id),
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  unit_price_cents INTEGER NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE guestbook_messages (
  id TEXT PRIMARY KEY,
  author_name TEXT NOT NULL,
  message TEXT NOT NULL,
  approved INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`,
	`CREATE TABLE campaign_settings (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  goal_cents INTEGER NOT NULL,
  updated_at DATETIME
);`,
	`CREATE TABLE story_content (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  content TEXT NOT NULL,
  couple_photo TEXT,
  updated_at DATETIME
);`,
	`CREATE TABLE thankyou_template (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  subject TEXT NOT NULL,
  body TEXT NOT NULL,
  updated_at DATETIME
);`,
	`CREATE TABLE mercadopago_settings (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  access_token TEXT,
  public_key TEXT,
  webhook_secret TEXT,
  updated_at DATETIME
);`,
	`CREATE TABLE profiles (
  user_id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT,
  role TEXT NOT NULL DEFAULT 'viewer',
  created_at DATETIME
);`,
	`CREATE TABLE audit_logs (
  id TEXT PRIMARY KEY,
  user_id TEXT,
  action TEXT NOT NULL,
  entity TEXT NOT NULL,
  entity_id TEXT,
  meta TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE webhook_events (
  id TEXT PRIMARY KEY,
  provider TEXT NOT NULL,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  processed_at DATETIME,
  UNIQUE (provider, event_id)
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json BLOB NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME
);`,
	`CREATE VIEW v_progress AS
SELECT
  COALESCE((SELECT goal_cents FROM campaign_settings WHERE id = 1), 115500) AS goal_cents,
  COALESCE((SELECT SUM(amount_cents) FROM orders WHERE status = 'paid'), 0) AS raised_cents;`,
	`CREATE VIEW v_admin_stats AS
SELECT
  (SELECT COUNT(*) FROM orders) AS total_orders,
  (SELECT COUNT(*) FROM orders WHERE status = 'paid') AS paid_orders,
  (SELECT COUNT(*) FROM orders WHERE status = 'pending') AS pending_orders,
  (SELECT COUNT(*) FROM orders WHERE status = 'failed') AS failed_orders,
  COALESCE((SELECT SUM(amount_cents) FROM orders WHERE status = 'paid'), 0) AS raised_cents,
  (SELECT COUNT(*) FROM guestbook_messages WHERE approved = 0) AS messages_pending;`,
	`CREATE VIEW v_daily_sales AS
SELECT
  DATE(COALESCE(paid_at, created_at)) AS day,
  COUNT(*) AS orders,
  SUM(amount_cents) AS amount_cents
FROM orders
WHERE status = 'paid'
GROUP BY DATE(COALESCE(paid_at, created_at));`,
}

// Open returns a fresh database private to the calling test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared&_foreign_keys=1", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	// one connection keeps the shared in-memory database alive and
	// serializes writers the way a row lock would
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}
