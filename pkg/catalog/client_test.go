package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_SearchByName(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/search" {
			t.Errorf("path=%q, want /products/search", r.URL.Path)
		}
		if got := r.URL.Query().Get("query"); got != "cordless drill" {
			t.Errorf("query=%q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "1" {
			t.Errorf("limit=%q, want 1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"products":[{"id":"p1","name":"Cordless Drill","price":129.99,"stock_quantity":12}],"total":1}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	product, err := client.SearchByName(context.Background(), "cordless drill")
	if err != nil {
		t.Fatalf("SearchByName error: %v", err)
	}
	if product == nil || product.ID != "p1" || product.Price != 129.99 {
		t.Fatalf("product=%+v", product)
	}
}

func TestClient_SearchByName_NoMatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"products":[],"total":0}`))
	}))
	defer server.Close()

	product, err := NewClient(server.URL).SearchByName(context.Background(), "unobtainium")
	if err != nil {
		t.Fatalf("SearchByName error: %v", err)
	}
	if product != nil {
		t.Fatalf("product=%+v, want nil for no match", product)
	}
}

func TestClient_Search_APIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Search(context.Background(), "drill", 5)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error=%v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", apiErr.StatusCode)
	}
}

func TestClient_Search_EmptyQueryRejected(t *testing.T) {
	t.Parallel()

	if _, err := NewClient("http://127.0.0.1:0").Search(context.Background(), "  ", 5); err == nil {
		t.Fatalf("expected error for empty query")
	}
}
