package core

// ExplicitTotalUnset is the stored sentinel meaning "derive the total from
// the item list". Kept for compatibility with exported documents produced by
// older builds; new code leaves Total nil instead.
const ExplicitTotalUnset = -1

type (
	// Vendor is a seller. Vendors are append-only: expenses reference them
	// permanently, so a vendor id equals its insertion index forever.
	Vendor struct {
		ID         int    `json:"id"`
		Name       string `json:"name"`
		ProductIDs []int  `json:"productIds"`
	}

	// Item is a priced product carried by exactly one vendor. Ownership is
	// recorded on the vendor's ProductIDs, not on the item. Append-only.
	Item struct {
		ID    int     `json:"id"`
		Name  string  `json:"name"`
		Price float64 `json:"price"` // pre-tax unit price
	}

	// Expense is a recorded purchase. ItemIDs and ItemQuantities are
	// parallel slices of equal length. A nil Total (or the -1 sentinel)
	// selects itemized pricing; any other value is an explicit total.
	Expense struct {
		ID             int      `json:"id"`
		VendorID       int      `json:"vendorId"`
		ItemIDs        []int    `json:"itemIds"`
		ItemQuantities []int    `json:"itemQuantities"`
		Total          *float64 `json:"total,omitempty"`
		Tax            float64  `json:"tax"`
		Time           int64    `json:"time"` // unix epoch milliseconds
	}

	// Settings is the process-wide singleton configuration of the ledger.
	Settings struct {
		Budget       float64 `json:"budget"` // monthly budget
		CurrencyType string  `json:"currencyType"`
	}

	// Snapshot is the full ledger state as passed across the persistence
	// and import/export boundaries.
	Snapshot struct {
		Expenses []Expense `json:"expenses"`
		Vendors  []Vendor  `json:"vendors"`
		Items    []Item    `json:"items"`
		Settings Settings  `json:"settings"`
	}
)

// DefaultSettings are used when no persisted data exists yet.
func DefaultSettings() Settings {
	return Settings{Budget: 50, CurrencyType: "usd"}
}

// Itemized reports whether the expense total is derived from its item list
// rather than stored explicitly.
func (e Expense) Itemized() bool {
	return e.Total == nil || *e.Total == ExplicitTotalUnset
}

// Clone returns a deep copy so the stored record never aliases caller slices.
func (e Expense) Clone() Expense {
	c := e
	c.ItemIDs = append([]int(nil), e.ItemIDs...)
	c.ItemQuantities = append([]int(nil), e.ItemQuantities...)
	if e.Total != nil {
		t := *e.Total
		c.Total = &t
	}
	return c
}

// Clone returns a deep copy of the vendor.
func (v Vendor) Clone() Vendor {
	c := v
	c.ProductIDs = append([]int(nil), v.ProductIDs...)
	return c
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	c := Snapshot{Settings: s.Settings}
	c.Expenses = make([]Expense, len(s.Expenses))
	for i, e := range s.Expenses {
		c.Expenses[i] = e.Clone()
	}
	c.Vendors = make([]Vendor, len(s.Vendors))
	for i, v := range s.Vendors {
		c.Vendors[i] = v.Clone()
	}
	c.Items = append([]Item(nil), s.Items...)
	return c
}

// Validate checks the expense's internal consistency. Reference validity
// against the ledger collections is the store's job.
func (e Expense) Validate() error {
	if len(e.ItemIDs) != len(e.ItemQuantities) {
		return &ValidationError{Field: "items", Reason: "item ids and quantities differ in length"}
	}
	seen := make(map[int]struct{}, len(e.ItemIDs))
	for _, id := range e.ItemIDs {
		if _, dup := seen[id]; dup {
			return &ValidationError{Field: "items", Reason: "duplicate item in a single expense"}
		}
		seen[id] = struct{}{}
	}
	for _, q := range e.ItemQuantities {
		if q <= 0 {
			return &ValidationError{Field: "quantity", Reason: "must be a positive integer"}
		}
	}
	if e.Tax < 0 {
		return &ValidationError{Field: "tax", Reason: "must not be negative"}
	}
	if e.Total != nil && *e.Total < 0 && *e.Total != ExplicitTotalUnset {
		return &ValidationError{Field: "total", Reason: "must not be negative"}
	}
	return nil
}

// Validate checks settings bounds.
func (s Settings) Validate() error {
	if s.Budget < 0 {
		return &ValidationError{Field: "budget", Reason: "must not be negative"}
	}
	if s.CurrencyType == "" {
		return &ValidationError{Field: "currencyType", Reason: "must not be empty"}
	}
	return nil
}
