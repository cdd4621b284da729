package validator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"xmrbet/internal/client/predictions"
	"xmrbet/internal/models"
)

type fakeProber struct {
	mu     sync.Mutex
	calls  map[string]int
	exists map[string]bool
	errs   map[string]error
	// hang marks markets whose probe blocks until the per-probe timeout fires.
	hang map[string]bool

	maxInFlight int64
	inFlight    int64
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		calls:  map[string]int{},
		exists: map[string]bool{},
		errs:   map[string]error{},
		hang:   map[string]bool{},
	}
}

func (f *fakeProber) GetPool(ctx context.Context, marketID string) (*predictions.Pool, error) {
	cur := atomic.AddInt64(&f.inFlight, 1)
	defer atomic.AddInt64(&f.inFlight, -1)
	for {
		max := atomic.LoadInt64(&f.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt64(&f.maxInFlight, max, cur) {
			break
		}
	}

	f.mu.Lock()
	f.calls[marketID]++
	hang := f.hang[marketID]
	err := f.errs[marketID]
	exists := f.exists[marketID]
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return &predictions.Pool{Exists: exists}, nil
}

func marketList(n int) []models.Market {
	out := make([]models.Market, n)
	for i := range out {
		out[i] = models.Market{ID: "m" + string(rune('A'+i))}
	}
	return out
}

func TestFilter_ProcessesEveryMarketExactlyOnce(t *testing.T) {
	prober := newFakeProber()
	markets := marketList(20)
	for i, m := range markets {
		// Mix of outcomes: exists, missing, error, timeout.
		switch i % 4 {
		case 0, 1:
			prober.exists[m.ID] = true
		case 2:
			prober.errs[m.ID] = errors.New("boom")
		case 3:
			prober.hang[m.ID] = true
		}
	}

	v := &PoolValidator{Prober: prober, Workers: 6, ProbeTimeout: 50 * time.Millisecond}
	kept := v.Filter(context.Background(), markets)

	for _, m := range markets {
		if got := prober.calls[m.ID]; got != 1 {
			t.Fatalf("market %s probed %d times, want exactly 1", m.ID, got)
		}
	}
	if len(kept) != 10 {
		t.Fatalf("kept %d markets, want 10", len(kept))
	}
	if prober.maxInFlight > 6 {
		t.Fatalf("concurrency reached %d, want <= 6", prober.maxInFlight)
	}
}

func TestFilter_PreservesInputOrder(t *testing.T) {
	prober := newFakeProber()
	markets := marketList(8)
	for _, m := range markets {
		prober.exists[m.ID] = true
	}

	v := &PoolValidator{Prober: prober, Workers: 4, ProbeTimeout: time.Second}
	kept := v.Filter(context.Background(), markets)

	if len(kept) != len(markets) {
		t.Fatalf("kept %d want %d", len(kept), len(markets))
	}
	for i := range kept {
		if kept[i].ID != markets[i].ID {
			t.Fatalf("order broken at %d: got %s want %s", i, kept[i].ID, markets[i].ID)
		}
	}
}

func TestFilter_SilentExclusionOnFailure(t *testing.T) {
	prober := newFakeProber()
	markets := marketList(3)
	prober.exists[markets[0].ID] = true
	prober.errs[markets[1].ID] = errors.New("network down")
	// markets[2] resolves exists=false.

	v := &PoolValidator{Prober: prober, Workers: 2, ProbeTimeout: time.Second}
	kept := v.Filter(context.Background(), markets)

	if len(kept) != 1 || kept[0].ID != markets[0].ID {
		t.Fatalf("want only %s kept, got %v", markets[0].ID, kept)
	}
}

func TestRunner_SecondRunSupersedesFirst(t *testing.T) {
	prober := newFakeProber()
	markets := marketList(12)
	for _, m := range markets {
		prober.hang[m.ID] = true
	}

	prober.exists["fast"] = true

	r := &Runner{Validator: &PoolValidator{Prober: prober, Workers: 3, ProbeTimeout: 2 * time.Second}}

	firstDone := make(chan []models.Market, 1)
	go func() {
		firstDone <- r.Filter(context.Background(), markets)
	}()
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	kept := r.Filter(context.Background(), []models.Market{{ID: "fast"}})
	if len(kept) != 1 {
		t.Fatalf("second run kept %d markets, want 1", len(kept))
	}
	// The second run must not have waited for the first run's 2s probe
	// timeouts; cancellation should have released it almost immediately.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("second run blocked %v behind a cancelled pass", elapsed)
	}

	select {
	case <-firstDone:
	case <-time.After(time.Second):
		t.Fatal("first run never returned after cancellation")
	}
}
