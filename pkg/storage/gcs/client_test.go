package gcs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{
		httpClient:    srv.Client(),
		apiBase:       srv.URL,
		bucket:        "enxoval-media",
		publicBaseURL: "https://cdn.example.com",
	}
}

func TestUploadSendsMediaRequest(t *testing.T) {
	var gotName, gotType, gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, "/upload/storage/v1/b/enxoval-media/o") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotName = r.URL.Query().Get("name")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})

	publicURL, err := client.Upload(context.Background(), "products/abc.png", "image/png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if gotName != "products/abc.png" || gotType != "image/png" || gotBody != "png-bytes" {
		t.Fatalf("unexpected upload name=%q type=%q body=%q", gotName, gotType, gotBody)
	}
	if publicURL != "https://cdn.example.com/enxoval-media/products/abc.png" {
		t.Fatalf("unexpected public url %q", publicURL)
	}
}

func TestUploadSurfacesErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden bucket", http.StatusForbidden)
	})
	_, err := client.Upload(context.Background(), "couple/x.jpg", "image/jpeg", strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "forbidden bucket") {
		t.Fatalf("expected forbidden error, got %v", err)
	}
	if _, err := client.Upload(context.Background(), " ", "image/jpeg", strings.NewReader("x")); err == nil {
		t.Fatalf("expected error for empty object name")
	}
}

func TestPing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("maxResults") != "1" {
			t.Errorf("expected maxResults=1")
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	var nilClient *Client
	if err := nilClient.Ping(context.Background()); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestPublicURLDefaultsToStorageHost(t *testing.T) {
	c := &Client{bucket: "b"}
	if got := c.PublicURL("/couple/foto casal.jpg"); got != "https://storage.googleapis.com/b/couple/foto%20casal.jpg" {
		t.Fatalf("unexpected url %q", got)
	}
}
