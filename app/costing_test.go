package app_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arvend/tokengate/adapters/clock"
	"github.com/arvend/tokengate/adapters/memory"
	"github.com/arvend/tokengate/app"
	"github.com/arvend/tokengate/domain/cost"
	"github.com/rs/zerolog"
)

// fakePrices serves a fixed table and counts upstream fetches.
type fakePrices struct {
	table   map[string]cost.Rate
	err     error
	fetches atomic.Int64
	delay   time.Duration
}

func (f *fakePrices) FetchRates(ctx context.Context) (map[string]cost.Rate, error) {
	f.fetches.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.table, nil
}

func testTable() map[string]cost.Rate {
	return map[string]cost.Rate{
		"gpt-4o": {Model: "gpt-4o", InputPerToken: 5e-6, OutputPerToken: 15e-6},
	}
}

func newCostService(p *fakePrices, ttl time.Duration) (*app.CostService, *memory.SnapshotStore, *clock.Fake) {
	clk := clock.NewFake(time.Unix(1700000000, 0))
	store := memory.NewSnapshotStore()
	svc := app.NewCostService(p, store, clk, zerolog.Nop(), nil, app.CostServiceConfig{CacheTTL: ttl})
	return svc, store, clk
}

func TestRateForCachesTable(t *testing.T) {
	p := &fakePrices{table: testTable()}
	svc, _, _ := newCostService(p, 10*time.Minute)

	for i := 0; i < 5; i++ {
		r, ok, err := svc.RateFor(context.Background(), "gpt-4o")
		if err != nil {
			t.Fatalf("RateFor error: %v", err)
		}
		if !ok {
			t.Fatal("RateFor ok = false, want true")
		}
		if r.InputPerToken != 5e-6 {
			t.Errorf("InputPerToken = %g, want 5e-6", r.InputPerToken)
		}
	}
	if n := p.fetches.Load(); n != 1 {
		t.Errorf("upstream fetches = %d, want 1", n)
	}
}

func TestRateForUnknownModel(t *testing.T) {
	p := &fakePrices{table: testTable()}
	svc, _, _ := newCostService(p, 10*time.Minute)

	_, ok, err := svc.RateFor(context.Background(), "imaginary-model")
	if err != nil {
		t.Fatalf("RateFor error: %v", err)
	}
	if ok {
		t.Error("ok = true for model absent from the table")
	}
}

func TestRatesExpiryRefetches(t *testing.T) {
	p := &fakePrices{table: testTable()}
	svc, _, clk := newCostService(p, 10*time.Minute)

	if _, err := svc.Rates(context.Background()); err != nil {
		t.Fatal(err)
	}
	clk.Advance(11 * time.Minute)
	if _, err := svc.Rates(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := p.fetches.Load(); n != 2 {
		t.Errorf("upstream fetches = %d, want 2 after expiry", n)
	}
}

func TestConcurrentMissesShareOneFetch(t *testing.T) {
	p := &fakePrices{table: testTable(), delay: 20 * time.Millisecond}
	svc, _, _ := newCostService(p, 10*time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := svc.RateFor(context.Background(), "gpt-4o"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if n := p.fetches.Load(); n != 1 {
		t.Errorf("upstream fetches = %d, want 1 for concurrent misses", n)
	}
}

func TestEstimateComputesBreakdown(t *testing.T) {
	p := &fakePrices{table: testTable()}
	svc, _, _ := newCostService(p, 10*time.Minute)

	snap, err := svc.Estimate(context.Background(), "gpt-4o", cost.Usage{InputTokens: 1000, OutputTokens: 500})
	if err != nil {
		t.Fatal(err)
	}
	bd, ok := snap.Breakdown()
	if !ok {
		t.Fatal("Breakdown unavailable, want computed costs")
	}
	if got, want := bd.Total, 0.0125; got != want {
		t.Errorf("Total = %g, want %g", got, want)
	}
}

func TestRecordNowPersistsAndIsWriteOnce(t *testing.T) {
	p := &fakePrices{table: testTable()}
	svc, _, _ := newCostService(p, 10*time.Minute)

	first, err := svc.RecordNow(context.Background(), "msg_1", "gpt-4o", cost.Usage{InputTokens: 100, OutputTokens: 50})
	if err != nil {
		t.Fatal(err)
	}

	// Second write for the same message must not replace the first.
	if _, err := svc.RecordNow(context.Background(), "msg_1", "gpt-4o", cost.Usage{InputTokens: 999999}); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Snapshot(context.Background(), "msg_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.InputTokens != first.InputTokens {
		t.Errorf("InputTokens = %d, want original %d", got.InputTokens, first.InputTokens)
	}
}

func TestRecordNowWithoutRatesPersistsCounts(t *testing.T) {
	p := &fakePrices{err: errors.New("pricing down")}
	svc, _, _ := newCostService(p, 10*time.Minute)

	snap, err := svc.RecordNow(context.Background(), "msg_1", "gpt-4o", cost.Usage{InputTokens: 100, OutputTokens: 50})
	if err != nil {
		t.Fatal(err)
	}
	if !snap.IsEmpty() {
		t.Error("IsEmpty = false, want counts-only snapshot when rates are unknown")
	}
	if snap.InputTokens != 100 {
		t.Errorf("InputTokens = %d, want 100", snap.InputTokens)
	}
	if _, ok := snap.Breakdown(); ok {
		t.Error("Breakdown ok = true, want unknown cost")
	}
}

func TestRecordAsyncEventuallyPersists(t *testing.T) {
	p := &fakePrices{table: testTable()}
	svc, store, _ := newCostService(p, 10*time.Minute)

	svc.Record(context.Background(), "msg_async", "gpt-4o", cost.Usage{InputTokens: 10, OutputTokens: 5})

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("snapshot never persisted")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := svc.Snapshot(context.Background(), "msg_async"); err != nil {
		t.Errorf("Snapshot error: %v", err)
	}
}

func TestRecordNowRequiresMessageID(t *testing.T) {
	p := &fakePrices{table: testTable()}
	svc, _, _ := newCostService(p, 10*time.Minute)

	if _, err := svc.RecordNow(context.Background(), "", "gpt-4o", cost.Usage{}); err == nil {
		t.Error("RecordNow with empty message id: got nil error")
	}
}
