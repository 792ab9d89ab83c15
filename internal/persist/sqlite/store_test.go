package sqlite

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"financeflow/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreLoadEmpty(t *testing.T) {
	store := newTestStore(t)
	_, found, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if found {
		t.Fatal("fresh database reported a snapshot")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	total := 75.0
	snap := core.Snapshot{
		Vendors: []core.Vendor{
			{ID: 0, Name: "Acme", ProductIDs: []int{0, 1}},
			{ID: 1, Name: "Bazaar"},
		},
		Items: []core.Item{
			{ID: 0, Name: "Widget", Price: 10},
			{ID: 1, Name: "Gadget", Price: 4.5},
		},
		Expenses: []core.Expense{
			{ID: 0, VendorID: 0, ItemIDs: []int{0, 1}, ItemQuantities: []int{3, 1}, Tax: 2.5, Time: 1700000000000},
			{ID: 1, VendorID: 1, Total: &total, Time: 1700086400000},
		},
		Settings: core.Settings{Budget: 120, CurrencyType: "eur"},
	}

	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, found, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatal("saved snapshot not found")
	}
	if !reflect.DeepEqual(snap, got) {
		t.Fatalf("round trip mismatch:\n  in: %+v\n out: %+v", snap, got)
	}
}

func TestStoreSaveReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := core.Snapshot{
		Vendors:  []core.Vendor{{ID: 0, Name: "Acme"}},
		Settings: core.DefaultSettings(),
	}
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}

	second := core.Snapshot{
		Vendors:  []core.Vendor{{ID: 0, Name: "Bazaar"}},
		Settings: core.Settings{Budget: 80, CurrencyType: "gbp"},
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	got, _, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(second, got) {
		t.Fatalf("second save not reflected: %+v", got)
	}
}

// Stored expense ids can drift from their positions after removals. The
// store must preserve both, including duplicate ids.
func TestStorePreservesDriftedExpenseIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snap := core.Snapshot{
		Vendors: []core.Vendor{{ID: 0, Name: "Acme", ProductIDs: []int{0}}},
		Items:   []core.Item{{ID: 0, Name: "Widget", Price: 10}},
		Expenses: []core.Expense{
			{ID: 1, VendorID: 0, ItemIDs: []int{0}, ItemQuantities: []int{1}},
			{ID: 1, VendorID: 0, ItemIDs: []int{0}, ItemQuantities: []int{2}},
		},
		Settings: core.DefaultSettings(),
	}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, _, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(snap.Expenses, got.Expenses) {
		t.Fatalf("expense ids not preserved: %+v", got.Expenses)
	}
}
