package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arvend/tokengate/adapters/memory"
	"github.com/arvend/tokengate/domain/cost"
	"github.com/arvend/tokengate/ports"
)

func testSnapshot(model string) cost.Snapshot {
	return cost.NewSnapshot(model, cost.Usage{
		InputTokens:  1000,
		OutputTokens: 500,
	}, &cost.Rate{
		Model:          model,
		InputPerToken:  5e-6,
		OutputPerToken: 15e-6,
	}, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestSnapshotStore_PutGet(t *testing.T) {
	store := memory.NewSnapshotStore()
	ctx := context.Background()

	snap := testSnapshot("gpt-4o")
	if err := store.Put(ctx, "msg-1", snap); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, err := store.Get(ctx, "msg-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Model != "gpt-4o" {
		t.Errorf("Model = %s, want gpt-4o", got.Model)
	}
	if got.Costs == nil {
		t.Fatal("Costs should be present")
	}
	if got.Costs.Total != 0.0125 {
		t.Errorf("Total = %v, want 0.0125", got.Costs.Total)
	}
}

func TestSnapshotStore_GetMissing(t *testing.T) {
	store := memory.NewSnapshotStore()

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, ports.ErrSnapshotNotFound) {
		t.Errorf("Get error = %v, want ErrSnapshotNotFound", err)
	}
}

func TestSnapshotStore_WriteOnce(t *testing.T) {
	store := memory.NewSnapshotStore()
	ctx := context.Background()

	first := testSnapshot("gpt-4o")
	if err := store.Put(ctx, "msg-1", first); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	second := testSnapshot("claude-3-5-sonnet")
	if err := store.Put(ctx, "msg-1", second); err != nil {
		t.Fatalf("second Put error: %v", err)
	}

	got, err := store.Get(ctx, "msg-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Model != "gpt-4o" {
		t.Errorf("Model = %s, want gpt-4o (first write wins)", got.Model)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}
