package storage

import (
	"context"
	"path/filepath"
	"testing"

	"mexc_go/internal/ledger"
)

func newTestStore(t *testing.T) *FillStore {
	t.Helper()
	store, err := NewFillStore(filepath.Join(t.TempDir(), "fills.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFillStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fills := []ledger.Fill{
		{ID: 1, Time: 1000, Side: ledger.Buy, BaseQty: 10000, QuoteQty: 100000, IsMaker: true},
		{ID: 2, Time: 2000, Side: ledger.Sell, BaseQty: 4000, QuoteQty: 43956, FeeQty: 44, FeeAsset: "USDT"},
	}
	for _, f := range fills {
		if err := store.SaveFill(ctx, f); err != nil {
			t.Fatalf("Failed to save fill %d: %v", f.ID, err)
		}
	}

	loaded, err := store.LoadFills(ctx, 1)
	if err != nil {
		t.Fatalf("Failed to load fills: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 fills, got %d", len(loaded))
	}
	if loaded[0] != fills[0] || loaded[1] != fills[1] {
		t.Errorf("loaded fills differ: %+v vs %+v", loaded, fills)
	}
}

func TestFillStore_ReplayIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fill := ledger.Fill{ID: 7, Time: 1000, Side: ledger.Buy, BaseQty: 1, QuoteQty: 1}
	if err := store.SaveFill(ctx, fill); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveFill(ctx, fill); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.LoadFills(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded) != 1 {
		t.Errorf("Expected 1 fill after duplicate save, got %d", len(loaded))
	}
}

func TestFillStore_LastFillID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	lastID, err := store.LastFillID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if lastID != 0 {
		t.Errorf("Expected 0 for empty store, got %d", lastID)
	}

	store.SaveFill(ctx, ledger.Fill{ID: 5, Side: ledger.Buy})
	store.SaveFill(ctx, ledger.Fill{ID: 10, Side: ledger.Sell})

	lastID, err = store.LastFillID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if lastID != 10 {
		t.Errorf("Expected 10, got %d", lastID)
	}
}

func TestFillStore_Metadata(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	value, err := store.GetMetadata(ctx, "session_start")
	if err != nil {
		t.Fatal(err)
	}
	if value != "" {
		t.Errorf("Expected empty for missing key, got %q", value)
	}

	if err := store.UpsertMetadata(ctx, "session_start", "1700000000000", 1700000000000); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertMetadata(ctx, "session_start", "1700000001000", 1700000001000); err != nil {
		t.Fatal(err)
	}

	value, err = store.GetMetadata(ctx, "session_start")
	if err != nil {
		t.Fatal(err)
	}
	if value != "1700000001000" {
		t.Errorf("Expected upserted value, got %q", value)
	}
}
