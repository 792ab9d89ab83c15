package workflow

import (
	"fmt"

	"financeflow/internal/core"
	"financeflow/internal/ledger"
)

// State identifies where the entry workflow stands.
type State int

const (
	VendorSelection State = iota
	PricingModeChoice
	ItemSelection
	QuantityEntry
	ExplicitPriceEntry
	TaxAndTimeEntry
	ReadyToCommit
)

var stateNames = map[State]string{
	VendorSelection:    "vendor-selection",
	PricingModeChoice:  "pricing-mode-choice",
	ItemSelection:      "item-selection",
	QuantityEntry:      "quantity-entry",
	ExplicitPriceEntry: "explicit-price-entry",
	TaxAndTimeEntry:    "tax-and-time-entry",
	ReadyToCommit:      "ready-to-commit",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// TransitionError reports an operation attempted in the wrong state. It is
// recoverable like every other workflow error.
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while in %s", e.Op, e.State)
}

// Session drives a Builder through the legal step sequence. Each user action
// is a separate entry point that runs to completion; cancelling at any point
// discards the draft and re-arms the session.
type Session struct {
	store *ledger.Store
	b     *Builder
	state State
}

// NewSession starts a fresh session at vendor selection.
func NewSession(store *ledger.Store) *Session {
	return &Session{store: store, b: NewBuilder(store), state: VendorSelection}
}

// State returns the current workflow state.
func (s *Session) State() State { return s.state }

// Draft returns a copy of the in-progress draft.
func (s *Session) Draft() Draft { return s.b.Draft() }

// Editing reports which expense the session is editing, if any.
func (s *Session) Editing() (int, bool) { return s.b.Editing() }

// Cancel discards the draft and resets to a fresh vendor selection.
func (s *Session) Cancel() {
	s.b = NewBuilder(s.store)
	s.state = VendorSelection
}

// Edit discards any in-progress draft and seeds the session from an
// existing expense, skipping vendor selection but still allowing the vendor
// to be re-picked.
func (s *Session) Edit(expenseID int) error {
	e, err := s.store.Expense(expenseID)
	if err != nil {
		return err
	}
	s.b = NewBuilder(s.store)
	s.b.StartFrom(e)
	s.state = PricingModeChoice
	return nil
}

// SelectVendor attaches an existing vendor and advances to the pricing-mode
// choice. Allowed again from that state so a vendor can be re-picked.
func (s *Session) SelectVendor(vendorID int) error {
	if s.state != VendorSelection && s.state != PricingModeChoice {
		return &TransitionError{Op: "select a vendor", State: s.state}
	}
	if err := s.b.AttachVendor(vendorID); err != nil {
		return err
	}
	s.state = PricingModeChoice
	return nil
}

// CreateVendor creates a vendor and attaches it in one step.
func (s *Session) CreateVendor(name string) (core.Vendor, error) {
	if s.state != VendorSelection && s.state != PricingModeChoice {
		return core.Vendor{}, &TransitionError{Op: "create a vendor", State: s.state}
	}
	v, err := s.store.CreateVendor(name)
	if err != nil {
		return core.Vendor{}, err
	}
	if err := s.b.AttachVendor(v.ID); err != nil {
		return core.Vendor{}, err
	}
	s.state = PricingModeChoice
	return v, nil
}

// ChooseItemized enters the itemized branch. The toggle may be flipped from
// either branch until tax entry begins; switching clears an explicit total.
func (s *Session) ChooseItemized() error {
	if !s.atModeToggle() {
		return &TransitionError{Op: "choose itemized pricing", State: s.state}
	}
	if err := s.b.SetExplicitTotal(nil); err != nil {
		return err
	}
	s.state = ItemSelection
	return nil
}

// ChooseExplicit enters the explicit-total branch. The item list already on
// the draft stays, recording what was bought for display.
func (s *Session) ChooseExplicit() error {
	if !s.atModeToggle() {
		return &TransitionError{Op: "choose explicit pricing", State: s.state}
	}
	s.state = ExplicitPriceEntry
	return nil
}

func (s *Session) atModeToggle() bool {
	switch s.state {
	case PricingModeChoice, ItemSelection, ExplicitPriceEntry:
		return true
	}
	return false
}

// SelectItem picks an existing product and moves to quantity entry.
func (s *Session) SelectItem(itemID int) error {
	if s.state != ItemSelection {
		return &TransitionError{Op: "select an item", State: s.state}
	}
	if err := s.b.SelectItem(itemID); err != nil {
		return err
	}
	s.state = QuantityEntry
	return nil
}

// CreateItem creates a product under the attached vendor, selects it, and
// moves to quantity entry.
func (s *Session) CreateItem(name string, price float64) (core.Item, error) {
	if s.state != ItemSelection {
		return core.Item{}, &TransitionError{Op: "create an item", State: s.state}
	}
	it, err := s.b.CreateItem(name, price)
	if err != nil {
		return core.Item{}, err
	}
	s.state = QuantityEntry
	return it, nil
}

// SetQuantity resolves the pending item and returns to item selection. An
// invalid quantity keeps the session in quantity entry with the pending
// item unresolved.
func (s *Session) SetQuantity(quantity int) error {
	if s.state != QuantityEntry {
		return &TransitionError{Op: "set a quantity", State: s.state}
	}
	if err := s.b.SetQuantity(quantity); err != nil {
		return err
	}
	s.state = ItemSelection
	return nil
}

// CancelQuantity abandons quantity entry, discarding the pending item.
func (s *Session) CancelQuantity() error {
	if s.state != QuantityEntry {
		return &TransitionError{Op: "cancel quantity entry", State: s.state}
	}
	s.b.CancelPending()
	s.state = ItemSelection
	return nil
}

// SetExplicitTotal records the fixed total in the explicit branch.
func (s *Session) SetExplicitTotal(amount *float64) error {
	if s.state != ExplicitPriceEntry {
		return &TransitionError{Op: "set an explicit total", State: s.state}
	}
	return s.b.SetExplicitTotal(amount)
}

// ProceedToTaxTime converges both pricing branches on tax and timestamp
// entry.
func (s *Session) ProceedToTaxTime() error {
	if s.state != ItemSelection && s.state != ExplicitPriceEntry {
		return &TransitionError{Op: "proceed to tax and time", State: s.state}
	}
	s.b.CancelPending()
	s.state = TaxAndTimeEntry
	return nil
}

// SetTax records the tax paid; nil defaults to zero at commit.
func (s *Session) SetTax(amount *float64) error {
	if s.state != TaxAndTimeEntry {
		return &TransitionError{Op: "set tax", State: s.state}
	}
	return s.b.SetTax(amount)
}

// SetTimestamp records the purchase date and optional time of day.
func (s *Session) SetTimestamp(date, clock string) error {
	if s.state != TaxAndTimeEntry {
		return &TransitionError{Op: "set the timestamp", State: s.state}
	}
	s.b.SetTimestamp(date, clock)
	return nil
}

// Finish leaves tax and time entry. Nothing is validated here; commit does
// that.
func (s *Session) Finish() error {
	if s.state != TaxAndTimeEntry {
		return &TransitionError{Op: "finish the draft", State: s.state}
	}
	s.state = ReadyToCommit
	return nil
}

// Commit validates and stores the expense, then re-arms the session with a
// fresh draft. A failed commit stays in ReadyToCommit so the step can be
// corrected and retried.
func (s *Session) Commit() (core.Expense, error) {
	if s.state != ReadyToCommit {
		return core.Expense{}, &TransitionError{Op: "commit", State: s.state}
	}
	e, err := s.b.Commit()
	if err != nil {
		return core.Expense{}, err
	}
	s.Cancel()
	return e, nil
}
