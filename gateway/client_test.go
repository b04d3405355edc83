package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m3rciful/funnelbot/funnel"
)

func TestListProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/content/product" {
			t.Errorf("path: %s", r.URL.Path)
		}
		io.WriteString(w, `{
			"status": 200, "msg": "", "description": "",
			"data": [
				{"id": "1", "name": "Widget", "price": "500"},
				{"id": "2", "name": "Gadget", "price": "750"}
			]
		}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/api"})
	items, err := c.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	want := []funnel.CatalogItem{
		{Selectable: funnel.Selectable{ID: "1", Name: "Widget"}, Price: "500"},
		{Selectable: funnel.Selectable{ID: "2", Name: "Gadget"}, Price: "750"},
	}
	if len(items) != len(want) {
		t.Fatalf("items: got %d, want %d", len(items), len(want))
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("item %d: got %+v, want %+v", i, items[i], want[i])
		}
	}
}

func TestListAreasPassesCityID(t *testing.T) {
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/content/area" {
			t.Errorf("path: %s", r.URL.Path)
		}
		gotID = r.URL.Query().Get("id")
		io.WriteString(w, `{"status":200,"msg":"","description":"","data":[{"id":"9","name":"Center"}]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/api"})
	items, err := c.ListAreas(context.Background(), "5")
	if err != nil {
		t.Fatalf("ListAreas: %v", err)
	}
	if gotID != "5" {
		t.Errorf("city id: got %q, want %q", gotID, "5")
	}
	if len(items) != 1 || items[0].ID != "9" {
		t.Errorf("items: %+v", items)
	}
}

func TestListCatalogSkipsIncompleteEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"status": 200, "msg": "", "description": "",
			"data": [
				{},
				{"id": "1"},
				{"name": "orphan"},
				{"id": "2", "name": "OK"},
				"not an object"
			]
		}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	items, err := c.ListCities(context.Background())
	if err != nil {
		t.Fatalf("ListCities: %v", err)
	}
	if len(items) != 1 || items[0].ID != "2" {
		t.Errorf("items: %+v", items)
	}
}

func TestListCatalogErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.ListProducts(context.Background())
	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("got %T, want *Error", err)
	}
	if gwErr.Status != http.StatusBadGateway {
		t.Errorf("status: got %d", gwErr.Status)
	}
}

func TestSubmitOrderWireContract(t *testing.T) {
	var got map[string]string
	var contentType string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Method != http.MethodPost {
			t.Errorf("method: %s", r.Method)
		}
		if r.URL.Path != "/api/purchase" {
			t.Errorf("path: %s", r.URL.Path)
		}
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/api"})
	err := c.SubmitOrder(context.Background(), funnel.Order{
		OrderID:   "1234567890",
		ProductID: "1",
		CityID:    "5",
		AreaID:    "9",
		SessionID: "42",
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
	if contentType != "application/json" {
		t.Errorf("content type: %q", contentType)
	}
	want := map[string]string{
		"city":    "5",
		"product": "1",
		"area":    "9",
		"orderid": "1234567890",
		"userid":  "42",
	}
	if len(got) != len(want) {
		t.Fatalf("body keys: got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("body[%q]: got %q, want %q", k, got[k], v)
		}
	}
}

func TestSubmitOrderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	err := c.SubmitOrder(context.Background(), funnel.Order{OrderID: "1", SessionID: "1"})
	var gwErr *Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("got %T, want *Error", err)
	}
	if gwErr.Status != http.StatusInternalServerError {
		t.Errorf("status: got %d", gwErr.Status)
	}
}

func TestBaseURLTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/content/product" {
			t.Errorf("path: %s", r.URL.Path)
		}
		io.WriteString(w, `{"status":200,"msg":"","description":"","data":[]}`)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/"})
	if _, err := c.ListProducts(context.Background()); err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
}
