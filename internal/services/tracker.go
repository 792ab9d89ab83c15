// Package services wires the ledger to persistence and the event queue.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"financeflow/internal/core"
	"financeflow/internal/events"
	"financeflow/internal/ledger"
	applog "financeflow/internal/log"
	"financeflow/internal/persist"
	"financeflow/internal/transfer"
	"financeflow/internal/workflow"
)

// EventPublisher publishes expense events. A nil publisher disables
// publishing without disabling the tracker.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, msg *events.ExpenseEvent) error
}

// Tracker orchestrates ledger mutations: every mutation is persisted, and
// expense commits and removals are announced on the event queue.
type Tracker struct {
	store     *ledger.Store
	snapshots persist.SnapshotStore
	publisher EventPublisher
}

func NewTracker(snapshots persist.SnapshotStore, publisher EventPublisher) *Tracker {
	return &Tracker{
		store:     ledger.New(),
		snapshots: snapshots,
		publisher: publisher,
	}
}

// Init loads the persisted snapshot into the ledger. A missing snapshot
// leaves the ledger empty with default settings.
func (t *Tracker) Init(ctx context.Context) error {
	snap, found, err := t.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !found {
		slog.InfoContext(ctx, "No persisted snapshot, starting fresh")
		return nil
	}
	t.store.Restore(snap)
	return nil
}

func (t *Tracker) Ledger() *ledger.Store { return t.store }

// NewSession starts an expense entry workflow against the ledger.
func (t *Tracker) NewSession() *workflow.Session {
	return workflow.NewSession(t.store)
}

// CommitSession commits the session's draft, persists the ledger, and
// publishes an expense.committed event.
func (t *Tracker) CommitSession(ctx context.Context, session *workflow.Session) (core.Expense, error) {
	e, err := session.Commit()
	if err != nil {
		return core.Expense{}, err
	}
	if err := t.save(ctx); err != nil {
		return core.Expense{}, err
	}
	t.publish(ctx, events.KindExpenseCommitted, e)
	return e, nil
}

// RemoveExpense removes an expense, persists the ledger, and publishes an
// expense.removed event.
func (t *Tracker) RemoveExpense(ctx context.Context, id int) error {
	e, err := t.store.Expense(id)
	if err != nil {
		return err
	}
	if err := t.store.RemoveExpense(id); err != nil {
		return err
	}
	if err := t.save(ctx); err != nil {
		return err
	}
	t.publish(ctx, events.KindExpenseRemoved, e)
	return nil
}

func (t *Tracker) SetBudget(ctx context.Context, budget float64) error {
	if err := t.store.SetBudget(budget); err != nil {
		return err
	}
	return t.save(ctx)
}

func (t *Tracker) SetCurrency(ctx context.Context, code string) error {
	if err := t.store.SetCurrency(code); err != nil {
		return err
	}
	return t.save(ctx)
}

// Import replaces the ledger with a decoded interchange document.
func (t *Tracker) Import(ctx context.Context, doc []byte) error {
	snap, err := transfer.Decode(doc)
	if err != nil {
		return err
	}
	t.store.Restore(snap)
	return t.save(ctx)
}

// Export serializes the ledger as an interchange document.
func (t *Tracker) Export(ctx context.Context) ([]byte, error) {
	return transfer.Encode(t.store.Serialize())
}

// Reset clears the ledger back to defaults and persists the empty state.
func (t *Tracker) Reset(ctx context.Context) error {
	t.store.Reset()
	return t.save(ctx)
}

func (t *Tracker) save(ctx context.Context) error {
	if err := t.snapshots.Save(ctx, t.store.Serialize()); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

// publish announces an expense event. Publish failures are logged, never
// surfaced: the ledger mutation already succeeded and persisted.
func (t *Tracker) publish(ctx context.Context, kind string, e core.Expense) {
	if t.publisher == nil {
		slog.DebugContext(ctx, "Event publisher not configured, skipping event", applog.FieldEventKind, kind)
		return
	}

	vendorName := ""
	if v, err := t.store.Vendor(e.VendorID); err == nil {
		vendorName = v.Name
	}
	total := core.AmountPaid(e, t.store.ItemLookup())

	msg := events.NewExpenseEvent(kind, e.ID, vendorName, total, e.Tax, e.Time)
	if err := t.publisher.PublishExpenseEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			applog.FieldEventKind, kind,
			applog.FieldExpenseID, e.ID,
			applog.FieldError, err)
	}
}
