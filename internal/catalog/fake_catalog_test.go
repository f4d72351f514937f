package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"ordersvc/internal/config"
)

// fakeCatalog is an in-memory product service serving the catalog HTTP contract.
type fakeCatalog struct {
	mu       sync.Mutex
	products map[int64]map[string]interface{}
	puts     int
	changes  []stockChangeRequest
	failAll  bool
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{products: map[int64]map[string]interface{}{}}
}

func (f *fakeCatalog) add(id int64, name string, price float64, stock int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[id] = map[string]interface{}{
		"id":        id,
		"name":      name,
		"price":     price,
		"stock":     float64(stock),
		"createdAt": "2024-01-01T00:00:00Z",
	}
}

func (f *fakeCatalog) stock(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int(f.products[id]["stock"].(float64))
}

func (f *fakeCatalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAll {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "products" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	product, ok := f.products[id]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(product)
	case len(parts) == 2 && r.Method == http.MethodPut:
		var record map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.products[id] = record
		f.puts++
		w.WriteHeader(http.StatusOK)
	case len(parts) == 4 && parts[2] == "stock" && r.Method == http.MethodPost:
		var req stockChangeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		current := int(product["stock"].(float64))
		switch parts[3] {
		case "decrement":
			if current < req.Quantity {
				w.WriteHeader(http.StatusConflict)
				_ = json.NewEncoder(w).Encode(stockConflictResponse{Name: product["name"].(string), Available: current})
				return
			}
			product["stock"] = float64(current - req.Quantity)
		case "increment":
			product["stock"] = float64(current + req.Quantity)
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.changes = append(f.changes, req)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, fake http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return NewClient(config.CatalogConfig{BaseURL: srv.URL, Timeout: 2 * time.Second}, zap.NewNop())
}
