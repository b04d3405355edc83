package funnel

import (
	"sync"
	"testing"
)

func TestStateMarshalRoundTrip(t *testing.T) {
	product := Selectable{ID: "1", Name: "Widget"}
	city := Selectable{ID: "5", Name: "Riga"}
	area := Selectable{ID: "9", Name: "Center"}

	states := []State{
		Start{},
		AwaitingProduct{},
		AwaitingCity{Product: product},
		AwaitingArea{Product: product, City: city},
		AwaitingConfirmation{Product: product, City: city, Area: area},
	}
	for _, want := range states {
		raw, err := marshalState(want)
		if err != nil {
			t.Fatalf("marshal %s: %v", want.Stage(), err)
		}
		got, err := unmarshalState(raw)
		if err != nil {
			t.Fatalf("unmarshal %s: %v", want.Stage(), err)
		}
		if got != want {
			t.Errorf("round trip %s: got %+v, want %+v", want.Stage(), got, want)
		}
	}
}

func TestUnmarshalStateDefensive(t *testing.T) {
	cases := map[string]string{
		"unknown stage":  `{"stage":"upgraded_away"}`,
		"missing fields": `{"stage":"awaiting_area","product":{"id":"1","name":"W"}}`,
		"empty object":   `{}`,
	}
	for name, raw := range cases {
		st, err := unmarshalState([]byte(raw))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if _, ok := st.(Start); !ok {
			t.Errorf("%s: got %T, want Start", name, st)
		}
	}

	if _, err := unmarshalState([]byte("{not json")); err == nil {
		t.Error("corrupt payload: expected error")
	}
}

func TestRedisStoreAcquireReleasesLockEntries(t *testing.T) {
	s := &RedisStore{locks: make(map[int64]*sessionLock)}

	release := s.Acquire(1)
	if got := len(s.locks); got != 1 {
		t.Fatalf("held sessions: got %d, want 1", got)
	}
	release()
	if got := len(s.locks); got != 0 {
		t.Fatalf("after release: %d entries left", got)
	}

	// contended sessions keep one entry until the last holder releases
	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				rel := s.Acquire(7)
				rel()
			}
		}()
	}
	wg.Wait()
	if got := len(s.locks); got != 0 {
		t.Fatalf("after contention: %d entries left", got)
	}
}
