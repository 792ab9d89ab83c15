// Package ledger holds the authoritative in-memory collections of vendors,
// items, expenses, and settings.
//
// Vendors and items are append-only, so their ids equal their insertion
// index permanently. Expenses are removed positionally: survivors shift down
// and their effective ids change, so callers must not hold expense ids
// across a removal. This mirrors the persisted document format and is kept
// deliberately (see DESIGN.md).
package ledger

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"

	"financeflow/internal/core"
)

// Store is process-wide shared state. A single mutex suffices: operations
// are discrete and short, and the HTTP layer is the only concurrent caller.
type Store struct {
	mu       sync.Mutex
	expenses []core.Expense
	vendors  []core.Vendor
	items    []core.Item
	settings core.Settings
}

// New returns an empty store with default settings.
func New() *Store {
	return &Store{settings: core.DefaultSettings()}
}

// FromSnapshot builds a store from previously persisted state.
func FromSnapshot(snap core.Snapshot) *Store {
	s := New()
	s.Restore(snap)
	return s
}

// CreateVendor appends a new vendor with an empty product list. Vendor names
// are unique, compared case-sensitively.
func (s *Store) CreateVendor(name string) (core.Vendor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Vendor{}, &core.ValidationError{Field: "vendor name", Reason: "must not be empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vendors {
		if v.Name == name {
			return core.Vendor{}, &core.DuplicateNameError{Scope: "vendor", Name: name}
		}
	}
	v := core.Vendor{ID: len(s.vendors), Name: name, ProductIDs: []int{}}
	s.vendors = append(s.vendors, v)
	return v.Clone(), nil
}

// CreateItem appends a new item and registers it with its owning vendor.
// Item names are unique within that vendor's products.
func (s *Store) CreateItem(name string, price float64, vendorID int) (core.Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Item{}, &core.ValidationError{Field: "item name", Reason: "must not be empty"}
	}
	if math.IsNaN(price) || price < 0 {
		return core.Item{}, &core.ValidationError{Field: "price", Reason: "must be a non-negative number"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if vendorID < 0 || vendorID >= len(s.vendors) {
		return core.Item{}, &core.NotFoundError{Kind: "vendor", ID: vendorID}
	}
	vendor := &s.vendors[vendorID]
	for _, pid := range vendor.ProductIDs {
		if s.items[pid].Name == name {
			return core.Item{}, &core.DuplicateNameError{Scope: vendor.Name + " product", Name: name}
		}
	}
	it := core.Item{ID: len(s.items), Name: name, Price: price}
	s.items = append(s.items, it)
	vendor.ProductIDs = append(vendor.ProductIDs, it.ID)
	return it, nil
}

// AddExpense validates references, assigns the next positional id, and
// appends a deep copy, so later mutation of the caller's draft cannot alias
// stored state. The append is all-or-nothing.
func (s *Store) AddExpense(e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRefs(e); err != nil {
		return core.Expense{}, err
	}
	stored := e.Clone()
	stored.ID = len(s.expenses)
	s.expenses = append(s.expenses, stored)
	return stored.Clone(), nil
}

// UpdateExpense replaces the expense at the given positional id in place,
// keeping that id. Used when an edit-mode draft is committed.
func (s *Store) UpdateExpense(id int, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.expenses) {
		return core.Expense{}, &core.NotFoundError{Kind: "expense", ID: id}
	}
	if err := s.checkRefs(e); err != nil {
		return core.Expense{}, err
	}
	stored := e.Clone()
	stored.ID = id
	s.expenses[id] = stored
	return stored.Clone(), nil
}

// RemoveExpense removes the expense at the given position. Every expense
// after it shifts down by one, changing its effective id.
func (s *Store) RemoveExpense(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.expenses) {
		return &core.NotFoundError{Kind: "expense", ID: id}
	}
	s.expenses = append(s.expenses[:id], s.expenses[id+1:]...)
	return nil
}

// Vendor looks a vendor up by id.
func (s *Store) Vendor(id int) (core.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.vendors) {
		return core.Vendor{}, &core.NotFoundError{Kind: "vendor", ID: id}
	}
	return s.vendors[id].Clone(), nil
}

// Item looks an item up by id.
func (s *Store) Item(id int) (core.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.items) {
		return core.Item{}, &core.NotFoundError{Kind: "item", ID: id}
	}
	return s.items[id], nil
}

// Expense looks an expense up by its current position.
func (s *Store) Expense(id int) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.expenses) {
		return core.Expense{}, &core.NotFoundError{Kind: "expense", ID: id}
	}
	return s.expenses[id].Clone(), nil
}

// Expenses returns a deep copy of all expenses in insertion order.
func (s *Store) Expenses() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, len(s.expenses))
	for i, e := range s.expenses {
		out[i] = e.Clone()
	}
	return out
}

// ItemLookup returns a lookup usable by the metrics engine.
func (s *Store) ItemLookup() core.ItemLookup {
	return func(id int) (core.Item, bool) {
		it, err := s.Item(id)
		return it, err == nil
	}
}

// VendorLookup returns a lookup usable by the metrics engine.
func (s *Store) VendorLookup() core.VendorLookup {
	return func(id int) (core.Vendor, bool) {
		v, err := s.Vendor(id)
		return v, err == nil
	}
}

// Settings returns the current settings.
func (s *Store) Settings() core.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetBudget updates the monthly budget.
func (s *Store) SetBudget(budget float64) error {
	if math.IsNaN(budget) || budget < 0 {
		return &core.ValidationError{Field: "budget", Reason: "must be a non-negative number"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Budget = budget
	return nil
}

// SetCurrency updates the display currency code.
func (s *Store) SetCurrency(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return &core.ValidationError{Field: "currencyType", Reason: "must not be empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.CurrencyType = strings.ToLower(code)
	return nil
}

// Serialize returns a deep-copied snapshot of the whole ledger.
func (s *Store) Serialize() core.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Snapshot{
		Expenses: s.expenses,
		Vendors:  s.vendors,
		Items:    s.items,
		Settings: s.settings,
	}.Clone()
}

// Restore replaces the in-memory state with the snapshot's contents.
func (s *Store) Restore(snap core.Snapshot) {
	snap = snap.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = snap.Expenses
	s.vendors = snap.Vendors
	s.items = snap.Items
	s.settings = snap.Settings
	if s.settings == (core.Settings{}) {
		s.settings = core.DefaultSettings()
	}
}

// Reset discards all data and returns the store to its initial state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = nil
	s.vendors = nil
	s.items = nil
	s.settings = core.DefaultSettings()
}

// SearchVendors returns vendors whose name contains the query
// (case-insensitive), closest names first. An empty query matches nothing,
// matching the picker behavior.
func (s *Store) SearchVendors(query string) []core.Vendor {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	s.mu.Lock()
	matched := make([]core.Vendor, 0, 4)
	for _, v := range s.vendors {
		if containsFold(v.Name, query) {
			matched = append(matched, v.Clone())
		}
	}
	s.mu.Unlock()
	rankByDistance(query, matched, func(v core.Vendor) string { return v.Name })
	return matched
}

// SearchVendorItems returns the vendor's products whose name contains the
// query (case-insensitive), closest names first.
func (s *Store) SearchVendorItems(vendorID int, query string) ([]core.Item, error) {
	query = strings.TrimSpace(query)
	s.mu.Lock()
	if vendorID < 0 || vendorID >= len(s.vendors) {
		s.mu.Unlock()
		return nil, &core.NotFoundError{Kind: "vendor", ID: vendorID}
	}
	matched := make([]core.Item, 0, 4)
	if query != "" {
		for _, pid := range s.vendors[vendorID].ProductIDs {
			if containsFold(s.items[pid].Name, query) {
				matched = append(matched, s.items[pid])
			}
		}
	}
	s.mu.Unlock()
	rankByDistance(query, matched, func(it core.Item) string { return it.Name })
	return matched, nil
}

// checkRefs verifies every id the expense references exists. Caller holds
// the lock.
func (s *Store) checkRefs(e core.Expense) error {
	if e.VendorID < 0 || e.VendorID >= len(s.vendors) {
		return &core.NotFoundError{Kind: "vendor", ID: e.VendorID}
	}
	for _, id := range e.ItemIDs {
		if id < 0 || id >= len(s.items) {
			return &core.NotFoundError{Kind: "item", ID: id}
		}
	}
	return nil
}

func containsFold(value, query string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(query))
}

// rankByDistance orders matches by edit distance to the query so near-exact
// hits surface first; the sort is stable to preserve insertion order on ties.
func rankByDistance[T any](query string, matches []T, name func(T) string) {
	q := strings.ToLower(query)
	sort.SliceStable(matches, func(i, j int) bool {
		di := levenshtein.ComputeDistance(strings.ToLower(name(matches[i])), q)
		dj := levenshtein.ComputeDistance(strings.ToLower(name(matches[j])), q)
		return di < dj
	})
}
