package funnel

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

type fakeGateway struct {
	products []CatalogItem
	cities   []CatalogItem
	areas    map[string][]CatalogItem

	listErr   error
	submitErr error

	submitted    []Order
	areaCalls    []string
	productCalls int
	cityCalls    int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		products: []CatalogItem{
			{Selectable: Selectable{ID: "1", Name: "Widget"}, Price: "500"},
			{Selectable: Selectable{ID: "2", Name: "Gadget"}, Price: "750"},
		},
		cities: []CatalogItem{
			{Selectable: Selectable{ID: "5", Name: "Riga"}},
			{Selectable: Selectable{ID: "6", Name: "Vilnius"}},
		},
		areas: map[string][]CatalogItem{
			"5": {{Selectable: Selectable{ID: "9", Name: "Center"}}},
			"6": {{Selectable: Selectable{ID: "11", Name: "Old Town"}}},
		},
	}
}

func (g *fakeGateway) ListProducts(context.Context) ([]CatalogItem, error) {
	g.productCalls++
	return g.products, g.listErr
}

func (g *fakeGateway) ListCities(context.Context) ([]CatalogItem, error) {
	g.cityCalls++
	return g.cities, g.listErr
}

func (g *fakeGateway) ListAreas(_ context.Context, cityID string) ([]CatalogItem, error) {
	g.areaCalls = append(g.areaCalls, cityID)
	return g.areas[cityID], g.listErr
}

func (g *fakeGateway) SubmitOrder(_ context.Context, order Order) error {
	g.submitted = append(g.submitted, order)
	return g.submitErr
}

type recordingJournal struct {
	records []OrderRecord
	err     error
}

func (j *recordingJournal) Record(_ context.Context, rec OrderRecord) error {
	j.records = append(j.records, rec)
	return j.err
}

func newTestController(gw *fakeGateway, opts ...ControllerOption) (*Controller, *MemoryStore) {
	store := NewMemoryStore(0)
	opts = append(opts, WithOrderIDFunc(func() string { return "1234567890" }))
	return NewController(store, gw, opts...), store
}

func mustState(t *testing.T, store Store, sessionID int64) State {
	t.Helper()
	st, err := store.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return st
}

func TestControllerFullFlow(t *testing.T) {
	gw := newFakeGateway()
	journal := &recordingJournal{}
	c, store := newTestController(gw, WithJournal(journal))
	defer store.Close()
	ctx := context.Background()
	const session = int64(42)

	// /start shows the product list in a fresh message
	reply, err := c.Handle(ctx, session, StartSignal())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if reply.Kind != ReplySend {
		t.Fatalf("start reply kind: got %v, want ReplySend", reply.Kind)
	}
	if reply.Text != promptProduct {
		t.Errorf("start prompt: got %q", reply.Text)
	}
	if got := reply.Keyboard[0][0].Text; got != "Widget - 500" {
		t.Errorf("product label: got %q", got)
	}
	for _, row := range reply.Keyboard {
		for _, b := range row {
			if b.Data == TokenBack {
				t.Error("product step must not offer a back button")
			}
		}
	}
	if _, ok := mustState(t, store, session).(AwaitingProduct); !ok {
		t.Fatalf("after start: %T", mustState(t, store, session))
	}

	// product picked: city list replaces the message
	reply, err = c.Handle(ctx, session, TokenSignal("1|Widget"))
	if err != nil {
		t.Fatalf("pick product: %v", err)
	}
	if reply.Kind != ReplyEdit || reply.Text != promptCity {
		t.Fatalf("city step: kind=%v text=%q", reply.Kind, reply.Text)
	}
	if st, ok := mustState(t, store, session).(AwaitingCity); !ok || st.Product.ID != "1" {
		t.Fatalf("after product: %+v", mustState(t, store, session))
	}

	// city picked: areas are fetched for that city id
	reply, err = c.Handle(ctx, session, TokenSignal("5|Riga"))
	if err != nil {
		t.Fatalf("pick city: %v", err)
	}
	if reply.Kind != ReplyEdit || reply.Text != promptArea {
		t.Fatalf("area step: kind=%v text=%q", reply.Kind, reply.Text)
	}
	if len(gw.areaCalls) != 1 || gw.areaCalls[0] != "5" {
		t.Errorf("area fetch calls: %v", gw.areaCalls)
	}

	// area picked: confirmation prompt with confirm/cancel only
	reply, err = c.Handle(ctx, session, TokenSignal("9|Center"))
	if err != nil {
		t.Fatalf("pick area: %v", err)
	}
	if reply.Text != promptConfirm {
		t.Errorf("confirm prompt: got %q", reply.Text)
	}
	if len(reply.Keyboard) != 1 || len(reply.Keyboard[0]) != 2 {
		t.Fatalf("confirm keyboard: %v", reply.Keyboard)
	}
	st, ok := mustState(t, store, session).(AwaitingConfirmation)
	if !ok {
		t.Fatalf("after area: %T", mustState(t, store, session))
	}
	if st.Product.ID != "1" || st.City.ID != "5" || st.Area.ID != "9" {
		t.Errorf("accumulated selections: %+v", st)
	}

	// confirm: exactly one submission, summary shown, session reset
	reply, err = c.Handle(ctx, session, TokenSignal(TokenConfirm))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if reply.Kind != ReplyEdit {
		t.Errorf("confirm reply kind: got %v", reply.Kind)
	}
	if !strings.Contains(reply.Text, "1234567890") ||
		!strings.Contains(reply.Text, "Widget") ||
		!strings.Contains(reply.Text, "Riga") ||
		!strings.Contains(reply.Text, "Center") {
		t.Errorf("summary: %q", reply.Text)
	}
	if len(gw.submitted) != 1 {
		t.Fatalf("submissions: got %d, want 1", len(gw.submitted))
	}
	order := gw.submitted[0]
	want := Order{OrderID: "1234567890", ProductID: "1", CityID: "5", AreaID: "9", SessionID: "42"}
	if order != want {
		t.Errorf("order: got %+v, want %+v", order, want)
	}
	if _, ok := mustState(t, store, session).(Start); !ok {
		t.Errorf("after confirm: %T, want Start", mustState(t, store, session))
	}

	if len(journal.records) != 1 {
		t.Fatalf("journal records: got %d, want 1", len(journal.records))
	}
	rec := journal.records[0]
	if rec.Outcome != OutcomeSubmitted || rec.ProductName != "Widget" || rec.CityName != "Riga" {
		t.Errorf("journal record: %+v", rec)
	}
}

func TestControllerBackNavigation(t *testing.T) {
	gw := newFakeGateway()
	c, store := newTestController(gw)
	defer store.Close()
	ctx := context.Background()
	const session = int64(1)

	c.Handle(ctx, session, StartSignal())
	c.Handle(ctx, session, TokenSignal("1|Widget"))

	// back from the city list returns to products
	reply, err := c.Handle(ctx, session, TokenSignal(TokenBack))
	if err != nil {
		t.Fatalf("back: %v", err)
	}
	if reply.Kind != ReplyEdit || reply.Text != promptProduct {
		t.Errorf("back to products: kind=%v text=%q", reply.Kind, reply.Text)
	}
	if _, ok := mustState(t, store, session).(AwaitingProduct); !ok {
		t.Fatalf("state after back: %T", mustState(t, store, session))
	}

	// forward to the area list, then back returns to cities with the
	// chosen product intact
	c.Handle(ctx, session, TokenSignal("2|Gadget"))
	c.Handle(ctx, session, TokenSignal("5|Riga"))
	reply, err = c.Handle(ctx, session, TokenSignal(TokenBack))
	if err != nil {
		t.Fatalf("back from area: %v", err)
	}
	if reply.Text != promptCity {
		t.Errorf("back to cities: %q", reply.Text)
	}
	st, ok := mustState(t, store, session).(AwaitingCity)
	if !ok || st.Product.ID != "2" {
		t.Fatalf("state after back from area: %+v", mustState(t, store, session))
	}

	// re-selecting the same city lands on the same area step and
	// fetches the city's areas again
	reply, err = c.Handle(ctx, session, TokenSignal("5|Riga"))
	if err != nil {
		t.Fatalf("re-select city: %v", err)
	}
	if reply.Text != promptArea {
		t.Errorf("re-select city: %q", reply.Text)
	}
	area, ok := mustState(t, store, session).(AwaitingArea)
	if !ok || area.Product.ID != "2" || area.City.ID != "5" {
		t.Fatalf("state after re-select: %+v", mustState(t, store, session))
	}
	if !reflect.DeepEqual(gw.areaCalls, []string{"5", "5"}) {
		t.Errorf("area fetches: %v", gw.areaCalls)
	}
}

func TestControllerCancelDeletesPrompt(t *testing.T) {
	gw := newFakeGateway()
	c, store := newTestController(gw)
	defer store.Close()
	ctx := context.Background()
	const session = int64(1)

	c.Handle(ctx, session, StartSignal())
	c.Handle(ctx, session, TokenSignal("1|Widget"))
	c.Handle(ctx, session, TokenSignal("5|Riga"))
	c.Handle(ctx, session, TokenSignal("9|Center"))

	reply, err := c.Handle(ctx, session, TokenSignal(TokenCancel))
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if reply.Kind != ReplyDelete {
		t.Errorf("cancel reply kind: got %v, want ReplyDelete", reply.Kind)
	}
	if len(gw.submitted) != 0 {
		t.Errorf("cancel must not submit: %v", gw.submitted)
	}
	if _, ok := mustState(t, store, session).(Start); !ok {
		t.Errorf("after cancel: %T, want Start", mustState(t, store, session))
	}
}

func TestControllerSubmitFailureResetsSession(t *testing.T) {
	gw := newFakeGateway()
	gw.submitErr = errors.New("gateway down")
	journal := &recordingJournal{}
	c, store := newTestController(gw, WithJournal(journal))
	defer store.Close()
	ctx := context.Background()
	const session = int64(1)

	c.Handle(ctx, session, StartSignal())
	c.Handle(ctx, session, TokenSignal("1|Widget"))
	c.Handle(ctx, session, TokenSignal("5|Riga"))
	c.Handle(ctx, session, TokenSignal("9|Center"))

	reply, err := c.Handle(ctx, session, TokenSignal(TokenConfirm))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if reply.Text != msgOrderFailed {
		t.Errorf("failure text: got %q", reply.Text)
	}
	if len(gw.submitted) != 1 {
		t.Errorf("submit attempts: got %d, want exactly 1", len(gw.submitted))
	}
	if _, ok := mustState(t, store, session).(Start); !ok {
		t.Errorf("after failed confirm: %T, want Start", mustState(t, store, session))
	}
	if len(journal.records) != 1 || journal.records[0].Outcome != OutcomeGatewayFailed {
		t.Errorf("journal: %+v", journal.records)
	}
}

func TestControllerIgnoresMismatchedSignals(t *testing.T) {
	gw := newFakeGateway()
	c, store := newTestController(gw)
	defer store.Close()
	ctx := context.Background()
	const session = int64(1)

	cases := []struct {
		name  string
		setup []Signal
		sig   Signal
		stage string
	}{
		{"token before start", nil, TokenSignal("1|Widget"), stageStart},
		{"back on product step", []Signal{StartSignal()}, TokenSignal(TokenBack), stageProduct},
		{"confirm on product step", []Signal{StartSignal()}, TokenSignal(TokenConfirm), stageProduct},
		{"malformed token", []Signal{StartSignal()}, TokenSignal("garbage"), stageProduct},
		{"command mid-funnel", []Signal{StartSignal(), TokenSignal("1|Widget")}, StartSignal(), stageCity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := store.Put(ctx, session, Start{}); err != nil {
				t.Fatalf("reset: %v", err)
			}
			for _, sig := range tc.setup {
				if _, err := c.Handle(ctx, session, sig); err != nil {
					t.Fatalf("setup: %v", err)
				}
			}
			products, cities, areas := gw.productCalls, gw.cityCalls, len(gw.areaCalls)
			reply, err := c.Handle(ctx, session, tc.sig)
			if err != nil {
				t.Fatalf("Handle: %v", err)
			}
			if reply.Kind != ReplyNone {
				t.Errorf("reply kind: got %v, want ReplyNone", reply.Kind)
			}
			if got := mustState(t, store, session).Stage(); got != tc.stage {
				t.Errorf("state: got %s, want %s", got, tc.stage)
			}
			if gw.productCalls != products || gw.cityCalls != cities || len(gw.areaCalls) != areas {
				t.Errorf("rejected signal reached the gateway: products=%d cities=%d areas=%d",
					gw.productCalls-products, gw.cityCalls-cities, len(gw.areaCalls)-areas)
			}
			if len(gw.submitted) != 0 {
				t.Errorf("rejected signal submitted an order: %+v", gw.submitted)
			}
		})
	}
}

func TestControllerDegradedCatalog(t *testing.T) {
	gw := newFakeGateway()
	gw.listErr = errors.New("content service down")
	c, store := newTestController(gw)
	defer store.Close()
	ctx := context.Background()

	reply, err := c.Handle(ctx, 1, StartSignal())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if reply.Kind != ReplySend || reply.Text != promptProduct {
		t.Errorf("degraded start: kind=%v text=%q", reply.Kind, reply.Text)
	}
	if len(reply.Keyboard) != 0 {
		t.Errorf("degraded keyboard: %v", reply.Keyboard)
	}
	if _, ok := mustState(t, store, 1).(AwaitingProduct); !ok {
		t.Errorf("degraded fetch must still advance: %T", mustState(t, store, 1))
	}
}

func TestControllerSessionsAreIsolated(t *testing.T) {
	gw := newFakeGateway()
	c, store := newTestController(gw)
	defer store.Close()
	ctx := context.Background()

	c.Handle(ctx, 1, StartSignal())
	c.Handle(ctx, 1, TokenSignal("1|Widget"))
	c.Handle(ctx, 2, StartSignal())

	if got := mustState(t, store, 1).Stage(); got != stageCity {
		t.Errorf("session 1: %s", got)
	}
	if got := mustState(t, store, 2).Stage(); got != stageProduct {
		t.Errorf("session 2: %s", got)
	}
}

func TestControllerJournalFailureDoesNotAffectUser(t *testing.T) {
	gw := newFakeGateway()
	journal := &recordingJournal{err: fmt.Errorf("database gone")}
	c, store := newTestController(gw, WithJournal(journal))
	defer store.Close()
	ctx := context.Background()
	const session = int64(1)

	c.Handle(ctx, session, StartSignal())
	c.Handle(ctx, session, TokenSignal("1|Widget"))
	c.Handle(ctx, session, TokenSignal("5|Riga"))
	c.Handle(ctx, session, TokenSignal("9|Center"))

	reply, err := c.Handle(ctx, session, TokenSignal(TokenConfirm))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !strings.Contains(reply.Text, "1234567890") {
		t.Errorf("journal failure leaked to the user: %q", reply.Text)
	}
}
