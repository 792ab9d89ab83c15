package ledger

import (
	"errors"
	"reflect"
	"testing"

	"financeflow/internal/core"
)

func fptr(v float64) *float64 { return &v }

// seed builds a store with Acme{Widget $10, Gadget $2.5} and Bazaar{Bolt $1}.
func seed(t *testing.T) *Store {
	t.Helper()
	s := New()
	acme, err := s.CreateVendor("Acme")
	if err != nil {
		t.Fatalf("create vendor: %v", err)
	}
	if _, err := s.CreateItem("Widget", 10, acme.ID); err != nil {
		t.Fatalf("create item: %v", err)
	}
	if _, err := s.CreateItem("Gadget", 2.5, acme.ID); err != nil {
		t.Fatalf("create item: %v", err)
	}
	bazaar, err := s.CreateVendor("Bazaar")
	if err != nil {
		t.Fatalf("create vendor: %v", err)
	}
	if _, err := s.CreateItem("Bolt", 1, bazaar.ID); err != nil {
		t.Fatalf("create item: %v", err)
	}
	return s
}

func TestCreateVendor(t *testing.T) {
	s := New()
	v, err := s.CreateVendor("Acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.ID != 0 || v.Name != "Acme" || len(v.ProductIDs) != 0 {
		t.Fatalf("vendor = %+v", v)
	}
	if v2, err := s.CreateVendor("Next"); err != nil || v2.ID != 1 {
		t.Fatalf("second vendor = %+v, err %v", v2, err)
	}
}

func TestCreateVendorDuplicate(t *testing.T) {
	s := New()
	if _, err := s.CreateVendor("Acme"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := s.Serialize()

	_, err := s.CreateVendor("Acme")
	var dup *core.DuplicateNameError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateNameError, got %v", err)
	}
	// A rejected call leaves the store unchanged.
	if !reflect.DeepEqual(before, s.Serialize()) {
		t.Fatal("store changed after rejected create")
	}

	// Names compare case-sensitively; a different casing is a new vendor.
	if _, err := s.CreateVendor("acme"); err != nil {
		t.Fatalf("case-different name rejected: %v", err)
	}
}

func TestCreateVendorEmptyName(t *testing.T) {
	s := New()
	_, err := s.CreateVendor("   ")
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCreateItem(t *testing.T) {
	s := seed(t)
	v, err := s.Vendor(0)
	if err != nil {
		t.Fatalf("vendor: %v", err)
	}
	if !reflect.DeepEqual(v.ProductIDs, []int{0, 1}) {
		t.Fatalf("product ids = %v, want [0 1]", v.ProductIDs)
	}
	it, err := s.Item(0)
	if err != nil || it.Name != "Widget" || it.Price != 10 {
		t.Fatalf("item = %+v, err %v", it, err)
	}
}

func TestCreateItemErrors(t *testing.T) {
	s := seed(t)
	before := s.Serialize()

	cases := []struct {
		name     string
		itemName string
		price    float64
		vendorID int
		target   error
	}{
		{"unknown vendor", "X", 1, 99, &core.NotFoundError{}},
		{"duplicate within vendor", "Widget", 3, 0, &core.DuplicateNameError{}},
		{"negative price", "Y", -1, 0, &core.ValidationError{}},
		{"empty name", " ", 1, 0, &core.ValidationError{}},
	}
	for _, tc := range cases {
		_, err := s.CreateItem(tc.itemName, tc.price, tc.vendorID)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !asTarget(err, tc.target) {
			t.Fatalf("%s: wrong error type %T", tc.name, err)
		}
	}
	if !reflect.DeepEqual(before, s.Serialize()) {
		t.Fatal("store changed after rejected creates")
	}

	// Same item name under a different vendor is fine.
	if _, err := s.CreateItem("Widget", 4, 1); err != nil {
		t.Fatalf("cross-vendor duplicate rejected: %v", err)
	}
}

func asTarget(err, target error) bool {
	switch target.(type) {
	case *core.NotFoundError:
		var e *core.NotFoundError
		return errors.As(err, &e)
	case *core.DuplicateNameError:
		var e *core.DuplicateNameError
		return errors.As(err, &e)
	case *core.ValidationError:
		var e *core.ValidationError
		return errors.As(err, &e)
	}
	return false
}

func TestAddExpense(t *testing.T) {
	s := seed(t)
	draft := core.Expense{
		VendorID:       0,
		ItemIDs:        []int{0},
		ItemQuantities: []int{3},
		Tax:            2.5,
		Time:           1700000000000,
	}
	stored, err := s.AddExpense(draft)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if stored.ID != 0 {
		t.Fatalf("id = %d, want 0", stored.ID)
	}

	// Mutating the caller's draft must not reach stored state.
	draft.ItemQuantities[0] = 99
	got, err := s.Expense(0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ItemQuantities[0] != 3 {
		t.Fatalf("stored state aliased: %+v", got)
	}

	if next, _ := s.AddExpense(core.Expense{VendorID: 1, Total: fptr(5)}); next.ID != 1 {
		t.Fatalf("second id = %d, want 1", next.ID)
	}
}

func TestAddExpenseBadRefs(t *testing.T) {
	s := seed(t)
	cases := []core.Expense{
		{VendorID: 9, Total: fptr(1)},
		{VendorID: 0, ItemIDs: []int{42}, ItemQuantities: []int{1}},
	}
	for i, e := range cases {
		_, err := s.AddExpense(e)
		var nf *core.NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("case %d: expected NotFoundError, got %v", i, err)
		}
	}
	if n := len(s.Expenses()); n != 0 {
		t.Fatalf("rejected adds appended: %d expenses", n)
	}
}

func TestRemoveExpenseShifts(t *testing.T) {
	s := seed(t)
	for i := 0; i < 3; i++ {
		if _, err := s.AddExpense(core.Expense{VendorID: 0, Total: fptr(float64(i + 1))}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	if err := s.RemoveExpense(1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if n := len(s.Expenses()); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	// Re-fetching the old id returns the entry that shifted into that slot.
	shifted, err := s.Expense(1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *shifted.Total != 3 {
		t.Fatalf("slot 1 holds total %v, want 3", *shifted.Total)
	}

	var nf *core.NotFoundError
	if err := s.RemoveExpense(7); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestUpdateExpense(t *testing.T) {
	s := seed(t)
	if _, err := s.AddExpense(core.Expense{VendorID: 0, Total: fptr(5)}); err != nil {
		t.Fatalf("add: %v", err)
	}
	updated, err := s.UpdateExpense(0, core.Expense{VendorID: 1, Total: fptr(8), Tax: 1})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != 0 || updated.VendorID != 1 || *updated.Total != 8 {
		t.Fatalf("updated = %+v", updated)
	}

	var nf *core.NotFoundError
	if _, err := s.UpdateExpense(5, core.Expense{VendorID: 0}); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSerializeRestoreRoundTrip(t *testing.T) {
	s := seed(t)
	if _, err := s.AddExpense(core.Expense{VendorID: 0, ItemIDs: []int{0}, ItemQuantities: []int{2}, Tax: 1, Time: 42}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.SetBudget(120); err != nil {
		t.Fatalf("budget: %v", err)
	}

	snap := s.Serialize()
	restored := FromSnapshot(snap)
	if !reflect.DeepEqual(snap, restored.Serialize()) {
		t.Fatal("restore(serialize(s)) differs from s")
	}
}

func TestRestoreEmptySettingsDefaults(t *testing.T) {
	s := New()
	s.Restore(core.Snapshot{})
	if got := s.Settings(); got != core.DefaultSettings() {
		t.Fatalf("settings = %+v, want defaults", got)
	}
}

func TestReset(t *testing.T) {
	s := seed(t)
	if err := s.SetCurrency("EUR"); err != nil {
		t.Fatalf("currency: %v", err)
	}
	s.Reset()
	snap := s.Serialize()
	if len(snap.Vendors) != 0 || len(snap.Items) != 0 || len(snap.Expenses) != 0 {
		t.Fatalf("reset left data: %+v", snap)
	}
	if snap.Settings != core.DefaultSettings() {
		t.Fatalf("settings = %+v, want defaults", snap.Settings)
	}
}

func TestSearchVendors(t *testing.T) {
	s := New()
	for _, name := range []string{"Green Grocer", "Greenhouse", "Butcher"} {
		if _, err := s.CreateVendor(name); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got := s.SearchVendors("green")
	if len(got) != 2 {
		t.Fatalf("matches = %d, want 2", len(got))
	}
	// Closer name first: "Greenhouse" is nearer to "green" than "Green Grocer".
	if got[0].Name != "Greenhouse" {
		t.Fatalf("first match = %q, want Greenhouse", got[0].Name)
	}

	if got := s.SearchVendors("  "); got != nil {
		t.Fatalf("empty query matched %d vendors", len(got))
	}
}

func TestSearchVendorItems(t *testing.T) {
	s := seed(t)
	got, err := s.SearchVendorItems(0, "get")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	// Equidistant names keep insertion order.
	if len(got) != 2 || got[0].Name != "Widget" || got[1].Name != "Gadget" {
		t.Fatalf("matches = %+v, want Widget then Gadget", got)
	}

	// Only the vendor's own products are searched.
	got, err = s.SearchVendorItems(1, "Widget")
	if err != nil || len(got) != 0 {
		t.Fatalf("cross-vendor search = %+v, err %v", got, err)
	}

	var nf *core.NotFoundError
	if _, err := s.SearchVendorItems(9, "x"); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
