package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financeflow/internal/core"
	"financeflow/internal/ledger"
)

func fptr(v float64) *float64 { return &v }

// newLedger returns a store seeded with Acme{Widget $10} and Bazaar{Bolt $1}.
func newLedger(t *testing.T) *ledger.Store {
	t.Helper()
	s := ledger.New()
	acme, err := s.CreateVendor("Acme")
	require.NoError(t, err)
	_, err = s.CreateItem("Widget", 10, acme.ID)
	require.NoError(t, err)
	bazaar, err := s.CreateVendor("Bazaar")
	require.NoError(t, err)
	_, err = s.CreateItem("Bolt", 1, bazaar.ID)
	require.NoError(t, err)
	return s
}

func TestAttachVendor(t *testing.T) {
	b := NewBuilder(newLedger(t))

	require.NoError(t, b.AttachVendor(0))
	d := b.Draft()
	require.NotNil(t, d.VendorID)
	assert.Equal(t, 0, *d.VendorID)

	err := b.AttachVendor(42)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSelectItemRequiresVendor(t *testing.T) {
	b := NewBuilder(newLedger(t))
	var verr *core.ValidationError
	require.ErrorAs(t, b.SelectItem(0), &verr)
}

func TestSelectItemMustBelongToVendor(t *testing.T) {
	b := NewBuilder(newLedger(t))
	require.NoError(t, b.AttachVendor(0))

	// Bolt (id 1) belongs to Bazaar, not Acme.
	var verr *core.ValidationError
	require.ErrorAs(t, b.SelectItem(1), &verr)

	require.NoError(t, b.SelectItem(0))
	d := b.Draft()
	require.NotNil(t, d.Pending)
	assert.Equal(t, 0, *d.Pending)
	assert.Empty(t, d.ItemIDs, "selection is pending until a quantity lands")
}

func TestSelectItemNoDuplicates(t *testing.T) {
	b := NewBuilder(newLedger(t))
	require.NoError(t, b.AttachVendor(0))
	require.NoError(t, b.SelectItem(0))
	require.NoError(t, b.SetQuantity(1))

	var verr *core.ValidationError
	require.ErrorAs(t, b.SelectItem(0), &verr)
}

func TestCreateItemDelegatesToStore(t *testing.T) {
	store := newLedger(t)
	b := NewBuilder(store)
	require.NoError(t, b.AttachVendor(0))

	it, err := b.CreateItem("Gizmo", 4.5)
	require.NoError(t, err)
	assert.Equal(t, "Gizmo", it.Name)

	// Created item is registered with the vendor and immediately pending.
	v, err := store.Vendor(0)
	require.NoError(t, err)
	assert.Contains(t, v.ProductIDs, it.ID)
	d := b.Draft()
	require.NotNil(t, d.Pending)
	assert.Equal(t, it.ID, *d.Pending)

	// Duplicate product names within the vendor are rejected.
	require.NoError(t, b.SetQuantity(1))
	_, err = b.CreateItem("Widget", 2)
	var dup *core.DuplicateNameError
	require.ErrorAs(t, err, &dup)
}

func TestSetQuantity(t *testing.T) {
	b := NewBuilder(newLedger(t))
	require.NoError(t, b.AttachVendor(0))
	require.NoError(t, b.SelectItem(0))

	var verr *core.ValidationError
	require.ErrorAs(t, b.SetQuantity(0), &verr)
	require.ErrorAs(t, b.SetQuantity(-3), &verr)
	// The pending item stays unresolved after a rejected quantity.
	d := b.Draft()
	require.NotNil(t, d.Pending)
	assert.Empty(t, d.ItemIDs)

	require.NoError(t, b.SetQuantity(3))
	d = b.Draft()
	assert.Nil(t, d.Pending)
	assert.Equal(t, []int{0}, d.ItemIDs)
	assert.Equal(t, []int{3}, d.ItemQuantities)

	// No pending item left to resolve.
	require.ErrorAs(t, b.SetQuantity(1), &verr)
}

func TestCancelPending(t *testing.T) {
	b := NewBuilder(newLedger(t))
	require.NoError(t, b.AttachVendor(0))
	require.NoError(t, b.SelectItem(0))
	b.CancelPending()
	d := b.Draft()
	assert.Nil(t, d.Pending)
	assert.Empty(t, d.ItemIDs)
}

func TestSetExplicitTotalAndTax(t *testing.T) {
	b := NewBuilder(newLedger(t))

	var verr *core.ValidationError
	require.ErrorAs(t, b.SetExplicitTotal(fptr(-5)), &verr)
	require.ErrorAs(t, b.SetTax(fptr(-1)), &verr)

	require.NoError(t, b.SetExplicitTotal(fptr(75)))
	require.NoError(t, b.SetTax(fptr(2.5)))
	d := b.Draft()
	assert.Equal(t, 75.0, *d.Total)
	assert.Equal(t, 2.5, *d.Tax)

	// nil switches back to itemized / default tax.
	require.NoError(t, b.SetExplicitTotal(nil))
	require.NoError(t, b.SetTax(nil))
	d = b.Draft()
	assert.Nil(t, d.Total)
	assert.Nil(t, d.Tax)
}

func TestSetTimestamp(t *testing.T) {
	b := NewBuilder(newLedger(t))

	b.SetTimestamp("2026-03-05", "")
	want := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.Local).UnixMilli()
	assert.Equal(t, want, b.Draft().Time)

	b.SetTimestamp("2026-03-05", "14:30")
	assert.Equal(t, want+14*3_600_000+30*60_000, b.Draft().Time)

	// Malformed time of day is ignored, keeping the date's midnight.
	b.SetTimestamp("2026-03-05", "not-a-time")
	assert.Equal(t, want, b.Draft().Time)

	// Empty or unparseable dates yield the sentinel zero timestamp.
	b.SetTimestamp("", "10:00")
	assert.Zero(t, b.Draft().Time)
	b.SetTimestamp("yesterday-ish", "")
	assert.Zero(t, b.Draft().Time)
}

func TestCommitItemized(t *testing.T) {
	store := newLedger(t)
	b := NewBuilder(store)
	require.NoError(t, b.AttachVendor(0))
	require.NoError(t, b.SelectItem(0))
	require.NoError(t, b.SetQuantity(3))
	require.NoError(t, b.SetTax(fptr(2.5)))

	e, err := b.Commit()
	require.NoError(t, err)
	assert.Equal(t, 0, e.ID)
	assert.True(t, e.Itemized())
	assert.Equal(t, 32.5, core.AmountPaid(e, store.ItemLookup()))
}

func TestCommitDefaultsTaxToZero(t *testing.T) {
	b := NewBuilder(newLedger(t))
	require.NoError(t, b.AttachVendor(0))
	require.NoError(t, b.SetExplicitTotal(fptr(75)))

	e, err := b.Commit()
	require.NoError(t, err)
	assert.Zero(t, e.Tax)
	assert.Equal(t, 75.0, *e.Total)
}

func TestCommitRollsBackPending(t *testing.T) {
	b := NewBuilder(newLedger(t))
	require.NoError(t, b.AttachVendor(0))
	require.NoError(t, b.SelectItem(0))
	// Quantity never supplied: the pending selection is discarded.
	e, err := b.Commit()
	require.NoError(t, err)
	assert.Empty(t, e.ItemIDs)
	assert.Empty(t, e.ItemQuantities)
}

func TestCommitRequiresVendor(t *testing.T) {
	b := NewBuilder(newLedger(t))
	_, err := b.Commit()
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestStartFromEdits(t *testing.T) {
	store := newLedger(t)
	src, err := store.AddExpense(core.Expense{
		VendorID:       0,
		ItemIDs:        []int{0},
		ItemQuantities: []int{2},
		Tax:            1,
		Time:           1700000000000,
	})
	require.NoError(t, err)

	b := NewBuilder(store)
	b.StartFrom(src)
	id, editing := b.Editing()
	require.True(t, editing)
	assert.Equal(t, src.ID, id)

	d := b.Draft()
	assert.Equal(t, []int{0}, d.ItemIDs)
	assert.Nil(t, d.Total, "itemized source stays itemized")

	// Commit replaces the source expense in place.
	require.NoError(t, b.SetTax(fptr(3)))
	e, err := b.Commit()
	require.NoError(t, err)
	assert.Equal(t, src.ID, e.ID)
	stored, err := store.Expense(src.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, stored.Tax)
	assert.Len(t, store.Expenses(), 1)
}

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"3", 3, true},
		{" 12 ", 12, true},
		{"0", 0, false},
		{"-1", 0, false},
		{"2.5", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseQuantity(tc.in)
		if tc.ok {
			require.NoError(t, err, "input %q", tc.in)
			assert.Equal(t, tc.want, got)
		} else {
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr, "input %q", tc.in)
		}
	}
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount("price", "12.34")
	require.NoError(t, err)
	assert.Equal(t, 12.34, got)

	for _, in := range []string{"", "abc", "-3", "NaN"} {
		_, err := ParseAmount("price", in)
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr, "input %q", in)
	}

	opt, err := ParseOptionalAmount("tax", "  ")
	require.NoError(t, err)
	assert.Nil(t, opt)
	opt, err = ParseOptionalAmount("tax", "1.5")
	require.NoError(t, err)
	require.NotNil(t, opt)
	assert.Equal(t, 1.5, *opt)
}
