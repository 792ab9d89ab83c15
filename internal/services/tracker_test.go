package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"financeflow/internal/core"
	"financeflow/internal/events"
)

// memorySnapshots is an in-memory persist.SnapshotStore.
type memorySnapshots struct {
	mu    sync.Mutex
	snap  core.Snapshot
	found bool
	saves int
}

func (m *memorySnapshots) Load(ctx context.Context) (core.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, m.found, nil
}

func (m *memorySnapshots) Save(ctx context.Context, snap core.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	m.found = true
	m.saves++
	return nil
}

type capturingPublisher struct {
	published []*events.ExpenseEvent
}

func (p *capturingPublisher) PublishExpenseEvent(ctx context.Context, msg *events.ExpenseEvent) error {
	p.published = append(p.published, msg)
	return nil
}

func newTracker(t *testing.T) (*Tracker, *memorySnapshots, *capturingPublisher) {
	t.Helper()
	snaps := &memorySnapshots{}
	pub := &capturingPublisher{}
	tracker := NewTracker(snaps, pub)
	if err := tracker.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return tracker, snaps, pub
}

func TestInitFreshStart(t *testing.T) {
	tracker, _, _ := newTracker(t)

	if got := tracker.Ledger().Settings(); got != core.DefaultSettings() {
		t.Errorf("fresh ledger settings = %+v", got)
	}
}

func TestInitRestoresSnapshot(t *testing.T) {
	snaps := &memorySnapshots{
		snap: core.Snapshot{
			Vendors:  []core.Vendor{{ID: 0, Name: "Acme"}},
			Settings: core.Settings{Budget: 200, CurrencyType: "eur"},
		},
		found: true,
	}
	tracker := NewTracker(snaps, nil)
	if err := tracker.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}

	v, err := tracker.Ledger().Vendor(0)
	if err != nil {
		t.Fatalf("vendor not restored: %v", err)
	}
	if v.Name != "Acme" {
		t.Errorf("vendor name = %q", v.Name)
	}
	if tracker.Ledger().Settings().Budget != 200 {
		t.Errorf("budget = %v", tracker.Ledger().Settings().Budget)
	}
}

func TestCommitSessionSavesAndPublishes(t *testing.T) {
	tracker, snaps, pub := newTracker(t)
	ctx := context.Background()

	session := tracker.NewSession()
	v, err := session.CreateVendor("Acme")
	if err != nil {
		t.Fatalf("create vendor: %v", err)
	}
	if err := session.ChooseItemized(); err != nil {
		t.Fatalf("choose itemized: %v", err)
	}
	if _, err := session.CreateItem("Widget", 10); err != nil {
		t.Fatalf("create item: %v", err)
	}
	if err := session.SetQuantity(3); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if err := session.ProceedToTaxTime(); err != nil {
		t.Fatalf("proceed: %v", err)
	}
	if err := session.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}

	e, err := tracker.CommitSession(ctx, session)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	if snaps.saves == 0 {
		t.Error("commit did not persist the ledger")
	}
	if len(snaps.snap.Expenses) != 1 {
		t.Fatalf("persisted %d expenses", len(snaps.snap.Expenses))
	}

	if len(pub.published) != 1 {
		t.Fatalf("published %d events", len(pub.published))
	}
	msg := pub.published[0]
	if msg.Kind != events.KindExpenseCommitted {
		t.Errorf("event kind = %q", msg.Kind)
	}
	if msg.ExpenseID != e.ID {
		t.Errorf("event expense id = %d, want %d", msg.ExpenseID, e.ID)
	}
	if msg.Vendor != v.Name {
		t.Errorf("event vendor = %q, want %q", msg.Vendor, v.Name)
	}
	if msg.Total != 30 {
		t.Errorf("event total = %v, want 30", msg.Total)
	}
}

func TestRemoveExpensePublishesRemoval(t *testing.T) {
	tracker, snaps, pub := newTracker(t)
	ctx := context.Background()

	store := tracker.Ledger()
	if _, err := store.CreateVendor("Acme"); err != nil {
		t.Fatalf("create vendor: %v", err)
	}
	total := 75.0
	if _, err := store.AddExpense(core.Expense{VendorID: 0, Total: &total}); err != nil {
		t.Fatalf("add expense: %v", err)
	}

	if err := tracker.RemoveExpense(ctx, 0); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if len(snaps.snap.Expenses) != 0 {
		t.Errorf("persisted %d expenses after removal", len(snaps.snap.Expenses))
	}
	if len(pub.published) != 1 || pub.published[0].Kind != events.KindExpenseRemoved {
		t.Fatalf("expected one removal event, got %+v", pub.published)
	}
	if pub.published[0].Total != 75 {
		t.Errorf("removal event total = %v", pub.published[0].Total)
	}
}

func TestRemoveExpenseUnknown(t *testing.T) {
	tracker, snaps, _ := newTracker(t)

	err := tracker.RemoveExpense(context.Background(), 5)
	if err == nil {
		t.Fatal("removing unknown expense should fail")
	}
	if snaps.saves != 0 {
		t.Error("failed removal should not persist")
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	tracker, _, _ := newTracker(t)
	ctx := context.Background()

	store := tracker.Ledger()
	if _, err := store.CreateVendor("Acme"); err != nil {
		t.Fatalf("create vendor: %v", err)
	}
	if _, err := store.CreateItem("Widget", 10, 0); err != nil {
		t.Fatalf("create item: %v", err)
	}

	doc, err := tracker.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	if err := tracker.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(store.SearchVendors("acme")) != 0 {
		t.Fatal("reset did not clear vendors")
	}

	if err := tracker.Import(ctx, doc); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := store.Vendor(0); err != nil {
		t.Fatal("import did not restore vendors")
	}
}

func TestImportRejectsBadDocument(t *testing.T) {
	tracker, snaps, _ := newTracker(t)

	err := tracker.Import(context.Background(), []byte("not json"))
	if err == nil {
		t.Fatal("import should reject non-JSON input")
	}
	var ife *core.ImportFormatError
	if !errors.As(err, &ife) {
		t.Fatalf("unexpected error type: %T", err)
	}
	if snaps.saves != 0 {
		t.Error("failed import should not persist")
	}
}

func TestSettingsMutationsPersist(t *testing.T) {
	tracker, snaps, _ := newTracker(t)
	ctx := context.Background()

	if err := tracker.SetBudget(ctx, 80); err != nil {
		t.Fatalf("set budget: %v", err)
	}
	if err := tracker.SetCurrency(ctx, "EUR"); err != nil {
		t.Fatalf("set currency: %v", err)
	}

	if snaps.snap.Settings.Budget != 80 {
		t.Errorf("persisted budget = %v", snaps.snap.Settings.Budget)
	}
	if snaps.snap.Settings.CurrencyType != "eur" {
		t.Errorf("persisted currency = %q", snaps.snap.Settings.CurrencyType)
	}
}

func TestNilPublisherIsSkipped(t *testing.T) {
	snaps := &memorySnapshots{}
	tracker := NewTracker(snaps, nil)
	if err := tracker.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}

	store := tracker.Ledger()
	if _, err := store.CreateVendor("Acme"); err != nil {
		t.Fatalf("create vendor: %v", err)
	}
	total := 10.0
	if _, err := store.AddExpense(core.Expense{VendorID: 0, Total: &total}); err != nil {
		t.Fatalf("add expense: %v", err)
	}

	if err := tracker.RemoveExpense(context.Background(), 0); err != nil {
		t.Fatalf("remove with nil publisher: %v", err)
	}
}
