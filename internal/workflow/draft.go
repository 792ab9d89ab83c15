// Package workflow builds expenses interactively: a Builder accumulates a
// draft through discrete edits, and a Session enforces the legal order of
// those edits. Invalid input is rejected at the step that produced it, never
// deferred to commit.
package workflow

import (
	"math"
	"strconv"
	"strings"
	"time"

	"financeflow/internal/core"
	"financeflow/internal/ledger"
)

// Draft is an expense under construction plus workflow-only state. Pending
// holds an item id that has been selected but not yet given a quantity; it
// is the only moment ItemIDs and ItemQuantities are allowed to disagree,
// and it is rolled back if the quantity never arrives.
type Draft struct {
	VendorID       *int
	ItemIDs        []int
	ItemQuantities []int
	Pending        *int
	Total          *float64 // nil = itemized mode
	Tax            *float64 // nil = default 0 at commit
	Time           int64
}

func (d Draft) clone() Draft {
	c := d
	c.ItemIDs = append([]int(nil), d.ItemIDs...)
	c.ItemQuantities = append([]int(nil), d.ItemQuantities...)
	c.VendorID = cloneIntPtr(d.VendorID)
	c.Pending = cloneIntPtr(d.Pending)
	c.Total = cloneFloatPtr(d.Total)
	c.Tax = cloneFloatPtr(d.Tax)
	return c
}

// Builder applies single edits to a draft, validating each against the
// ledger as it lands.
type Builder struct {
	store  *ledger.Store
	d      Draft
	editOf *int // expense id being edited, nil for a new expense
}

// NewBuilder starts an empty draft.
func NewBuilder(store *ledger.Store) *Builder {
	return &Builder{store: store}
}

// StartFrom seeds the builder with a deep copy of an existing expense for
// editing. Pricing mode is carried by the copied Total.
func (b *Builder) StartFrom(e core.Expense) {
	e = e.Clone()
	vendorID := e.VendorID
	b.d = Draft{
		VendorID:       &vendorID,
		ItemIDs:        e.ItemIDs,
		ItemQuantities: e.ItemQuantities,
		Total:          e.Total,
		Time:           e.Time,
	}
	if e.Tax != 0 {
		tax := e.Tax
		b.d.Tax = &tax
	}
	id := e.ID
	b.editOf = &id
}

// Draft returns a copy of the current draft state.
func (b *Builder) Draft() Draft { return b.d.clone() }

// Editing returns the source expense id when the draft edits an existing
// expense.
func (b *Builder) Editing() (int, bool) {
	if b.editOf == nil {
		return 0, false
	}
	return *b.editOf, true
}

// AttachVendor points the draft at a vendor. Items already selected stay.
func (b *Builder) AttachVendor(vendorID int) error {
	if _, err := b.store.Vendor(vendorID); err != nil {
		return &core.ValidationError{Field: "vendor", Reason: "no such vendor"}
	}
	b.d.VendorID = &vendorID
	return nil
}

// SelectItem marks an item as purchased, awaiting its quantity. The item
// must belong to the attached vendor and not already be on the draft.
func (b *Builder) SelectItem(itemID int) error {
	if b.d.VendorID == nil {
		return &core.ValidationError{Field: "item", Reason: "no vendor has been selected yet"}
	}
	vendor, err := b.store.Vendor(*b.d.VendorID)
	if err != nil {
		return &core.ValidationError{Field: "vendor", Reason: "no such vendor"}
	}
	carried := false
	for _, pid := range vendor.ProductIDs {
		if pid == itemID {
			carried = true
			break
		}
	}
	if !carried {
		return &core.ValidationError{Field: "item", Reason: "not a product of the selected vendor"}
	}
	for _, id := range b.d.ItemIDs {
		if id == itemID {
			return &core.ValidationError{Field: "item", Reason: "already on this expense"}
		}
	}
	if b.d.Pending != nil {
		return &core.ValidationError{Field: "item", Reason: "an item is already awaiting a quantity"}
	}
	b.d.Pending = &itemID
	return nil
}

// CreateItem creates a new product under the attached vendor, then selects
// it. Name uniqueness and price validation are the store's.
func (b *Builder) CreateItem(name string, price float64) (core.Item, error) {
	if b.d.VendorID == nil {
		return core.Item{}, &core.ValidationError{Field: "item", Reason: "no vendor has been selected yet"}
	}
	it, err := b.store.CreateItem(name, price, *b.d.VendorID)
	if err != nil {
		return core.Item{}, err
	}
	if err := b.SelectItem(it.ID); err != nil {
		return core.Item{}, err
	}
	return it, nil
}

// SetQuantity resolves the pending item with a positive quantity, keeping
// the parallel slices length-equal.
func (b *Builder) SetQuantity(quantity int) error {
	if b.d.Pending == nil {
		return &core.ValidationError{Field: "quantity", Reason: "no item awaiting a quantity"}
	}
	if quantity <= 0 {
		return &core.ValidationError{Field: "quantity", Reason: "must be a positive integer"}
	}
	b.d.ItemIDs = append(b.d.ItemIDs, *b.d.Pending)
	b.d.ItemQuantities = append(b.d.ItemQuantities, quantity)
	b.d.Pending = nil
	return nil
}

// CancelPending discards an item selection whose quantity never arrived.
func (b *Builder) CancelPending() { b.d.Pending = nil }

// SetExplicitTotal switches the draft to explicit pricing, or back to
// itemized when amount is nil.
func (b *Builder) SetExplicitTotal(amount *float64) error {
	if amount != nil && (math.IsNaN(*amount) || *amount < 0) {
		return &core.ValidationError{Field: "total", Reason: "must be a non-negative number"}
	}
	b.d.Total = cloneFloatPtr(amount)
	return nil
}

// SetTax records the tax paid; nil means the commit default of zero.
func (b *Builder) SetTax(amount *float64) error {
	if amount != nil && (math.IsNaN(*amount) || *amount < 0) {
		return &core.ValidationError{Field: "tax", Reason: "must be a non-negative number"}
	}
	b.d.Tax = cloneFloatPtr(amount)
	return nil
}

// SetTimestamp combines a calendar date (2006-01-02) with an optional
// HH:MM time of day into epoch milliseconds. An empty or unparseable date
// yields the documented sentinel timestamp of zero; a malformed time of day
// is ignored, keeping the date's midnight.
func (b *Builder) SetTimestamp(date, clock string) {
	date = strings.TrimSpace(date)
	if date == "" {
		b.d.Time = 0
		return
	}
	day, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		b.d.Time = 0
		return
	}
	ts := day.UnixMilli()
	if clock = strings.TrimSpace(clock); clock != "" {
		if tod, err := time.Parse("15:04", clock); err == nil {
			ts += int64(tod.Hour())*3_600_000 + int64(tod.Minute())*60_000
		}
	}
	b.d.Time = ts
}

// Commit validates the finished draft and hands it to the store: appended
// for a new expense, replaced in place for an edit. An unresolved pending
// item is rolled back first.
func (b *Builder) Commit() (core.Expense, error) {
	b.d.Pending = nil
	if b.d.VendorID == nil {
		return core.Expense{}, &core.ValidationError{Field: "vendor", Reason: "no vendor has been selected yet"}
	}
	e := core.Expense{
		VendorID:       *b.d.VendorID,
		ItemIDs:        append([]int(nil), b.d.ItemIDs...),
		ItemQuantities: append([]int(nil), b.d.ItemQuantities...),
		Total:          cloneFloatPtr(b.d.Total),
		Time:           b.d.Time,
	}
	if b.d.Tax != nil {
		e.Tax = *b.d.Tax
	}
	if id, editing := b.Editing(); editing {
		return b.store.UpdateExpense(id, e)
	}
	return b.store.AddExpense(e)
}

// ParseQuantity parses user quantity input: a positive base-10 integer.
func ParseQuantity(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &core.ValidationError{Field: "quantity", Reason: "must not be empty"}
	}
	q, err := strconv.Atoi(s)
	if err != nil || q <= 0 {
		return 0, &core.ValidationError{Field: "quantity", Reason: "must be a positive integer"}
	}
	return q, nil
}

// ParseAmount parses user money input: a non-negative decimal number.
func ParseAmount(field, s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &core.ValidationError{Field: field, Reason: "must not be empty"}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v < 0 {
		return 0, &core.ValidationError{Field: field, Reason: "must be a non-negative number"}
	}
	return v, nil
}

// ParseOptionalAmount is ParseAmount with empty input meaning "absent".
func ParseOptionalAmount(field, s string) (*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := ParseAmount(field, s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
