package funnel

import (
	"strconv"
	"testing"
)

func TestNewOrderIDRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id := NewOrderID()
		if len(id) != 10 {
			t.Fatalf("order id %q: got %d digits, want 10", id, len(id))
		}
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			t.Fatalf("order id %q is not decimal: %v", id, err)
		}
		if n < 1_000_000_000 || n >= 10_000_000_000 {
			t.Fatalf("order id %d out of range", n)
		}
	}
}

func TestBuildOrder(t *testing.T) {
	st := AwaitingConfirmation{
		Product: Selectable{ID: "1", Name: "Widget"},
		City:    Selectable{ID: "5", Name: "Riga"},
		Area:    Selectable{ID: "9", Name: "Center"},
	}
	order := buildOrder("1234567890", 42, st)
	if order.OrderID != "1234567890" {
		t.Errorf("order id: got %q", order.OrderID)
	}
	if order.ProductID != "1" || order.CityID != "5" || order.AreaID != "9" {
		t.Errorf("selection ids lost: %+v", order)
	}
	if order.SessionID != "42" {
		t.Errorf("session id: got %q, want %q", order.SessionID, "42")
	}
}
