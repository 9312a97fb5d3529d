package bigquery

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/angelmondragon/enxoval-backend/pkg/config"
	"google.golang.org/api/googleapi"
)

func TestConfiguredTables(t *testing.T) {
	tables := configuredTables(config.BigQueryConfig{ContributionsTable: " contribution_events "})
	if len(tables) != 1 || tables[0] != "contribution_events" {
		t.Fatalf("unexpected tables %v", tables)
	}
	if got := configuredTables(config.BigQueryConfig{}); len(got) != 0 {
		t.Fatalf("expected no tables, got %v", got)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusNotFound})) {
		t.Fatalf("expected wrapped 404 to be not found")
	}
	if isNotFound(&googleapi.Error{Code: http.StatusForbidden}) {
		t.Fatalf("403 is not a not-found error")
	}
	if !isConflict(&googleapi.Error{Code: http.StatusConflict}) || isConflict(nil) {
		t.Fatalf("conflict detection mismatch")
	}
}

func TestUninitializedClient(t *testing.T) {
	var c *Client
	if err := c.InsertRows(context.Background(), "t", []any{1}); err == nil {
		t.Fatalf("expected error from nil client")
	}
	if _, err := c.EnsureTable(context.Background(), "t", nil, ""); err == nil {
		t.Fatalf("expected error from nil client")
	}
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.BigQueryConfig{}, nil); err == nil {
		t.Fatalf("expected project id error")
	}
}
