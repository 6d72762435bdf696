package ttlcache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arvend/tokengate/adapters/clock"
	"github.com/arvend/tokengate/pkg/ttlcache"
)

func TestGetMissAndSet(t *testing.T) {
	clk := clock.NewFake(time.Unix(1700000000, 0))
	c := ttlcache.New[string](clk, time.Minute, 0)

	if _, ok := c.Get("k"); ok {
		t.Error("Get on empty cache returned ok")
	}

	c.Set("k", "v")
	got, ok := c.Get("k")
	if !ok || got != "v" {
		t.Errorf("Get = %q, %v, want v, true", got, ok)
	}
}

func TestExpiry(t *testing.T) {
	clk := clock.NewFake(time.Unix(1700000000, 0))
	c := ttlcache.New[int](clk, time.Minute, 0)

	c.Set("k", 42)
	clk.Advance(59 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Error("entry expired before its TTL")
	}

	clk.Advance(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("entry still served after its TTL")
	}
}

func TestGetOrFetchCaches(t *testing.T) {
	clk := clock.NewFake(time.Unix(1700000000, 0))
	c := ttlcache.New[int](clk, time.Minute, 0)

	calls := 0
	fetch := func(ctx context.Context) (int, error) {
		calls++
		return 7, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrFetch(context.Background(), "k", fetch)
		if err != nil || v != 7 {
			t.Fatalf("GetOrFetch = %d, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}
}

func TestGetOrFetchConcurrentSingleFlight(t *testing.T) {
	clk := clock.NewFake(time.Unix(1700000000, 0))
	c := ttlcache.New[int](clk, time.Minute, 0)

	var calls atomic.Int64
	fetch := func(ctx context.Context) (int, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return 7, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrFetch(context.Background(), "k", fetch)
			if err != nil || v != 7 {
				t.Errorf("GetOrFetch = %d, %v", v, err)
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("fetch calls = %d, want 1 for concurrent misses", n)
	}
}

func TestNegativeCaching(t *testing.T) {
	clk := clock.NewFake(time.Unix(1700000000, 0))
	c := ttlcache.New[int](clk, time.Hour, 5*time.Minute)

	calls := 0
	boom := errors.New("upstream down")
	fetch := func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	}

	for i := 0; i < 3; i++ {
		if _, err := c.GetOrFetch(context.Background(), "k", fetch); !errors.Is(err, boom) {
			t.Fatalf("GetOrFetch err = %v, want cached failure", err)
		}
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1 while failure cached", calls)
	}

	// The failure entry expires on its own shorter TTL.
	clk.Advance(6 * time.Minute)
	if _, err := c.GetOrFetch(context.Background(), "k", fetch); !errors.Is(err, boom) {
		t.Fatalf("GetOrFetch err = %v", err)
	}
	if calls != 2 {
		t.Errorf("fetch calls = %d, want 2 after failure TTL", calls)
	}
}

func TestZeroFailureTTLDisablesNegativeCaching(t *testing.T) {
	clk := clock.NewFake(time.Unix(1700000000, 0))
	c := ttlcache.New[int](clk, time.Hour, 0)

	calls := 0
	fetch := func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("nope")
	}

	for i := 0; i < 3; i++ {
		if _, err := c.GetOrFetch(context.Background(), "k", fetch); err == nil {
			t.Fatal("GetOrFetch: got nil error")
		}
	}
	if calls != 3 {
		t.Errorf("fetch calls = %d, want 3 with negative caching disabled", calls)
	}
}

func TestInvalidate(t *testing.T) {
	clk := clock.NewFake(time.Unix(1700000000, 0))
	c := ttlcache.New[int](clk, time.Hour, 0)

	c.Set("k", 1)
	c.Invalidate("k")
	if _, ok := c.Get("k"); ok {
		t.Error("entry survived Invalidate")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}
