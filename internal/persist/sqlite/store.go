// Package sqlite persists ledger snapshots in a normalized SQLite schema.
// The schema is managed by embedded migrations and each Save replaces the
// stored snapshot in a single transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"financeflow/internal/core"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load reads the stored snapshot. The settings row marks whether a snapshot
// has ever been saved; without it Load reports found=false.
func (s *Store) Load(ctx context.Context) (core.Snapshot, bool, error) {
	var snap core.Snapshot

	row := s.db.QueryRowContext(ctx, `SELECT budget, currency_type FROM settings WHERE id = 1`)
	if err := row.Scan(&snap.Settings.Budget, &snap.Settings.CurrencyType); err != nil {
		if err == sql.ErrNoRows {
			return core.Snapshot{}, false, nil
		}
		return core.Snapshot{}, false, fmt.Errorf("load settings: %w", err)
	}

	vendors, err := s.loadVendors(ctx)
	if err != nil {
		return core.Snapshot{}, false, err
	}
	snap.Vendors = vendors

	items, err := s.loadItems(ctx)
	if err != nil {
		return core.Snapshot{}, false, err
	}
	snap.Items = items

	expenses, err := s.loadExpenses(ctx)
	if err != nil {
		return core.Snapshot{}, false, err
	}
	snap.Expenses = expenses

	slog.InfoContext(ctx, "Snapshot loaded from SQLite",
		"vendors", len(snap.Vendors),
		"items", len(snap.Items),
		"expenses", len(snap.Expenses))

	return snap, true, nil
}

func (s *Store) loadVendors(ctx context.Context) ([]core.Vendor, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM vendors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load vendors: %w", err)
	}
	defer rows.Close()

	var vendors []core.Vendor
	for rows.Next() {
		var v core.Vendor
		if err := rows.Scan(&v.ID, &v.Name); err != nil {
			return nil, fmt.Errorf("scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendors: %w", err)
	}

	prows, err := s.db.QueryContext(ctx,
		`SELECT vendor_id, item_id FROM vendor_products ORDER BY vendor_id, position`)
	if err != nil {
		return nil, fmt.Errorf("load vendor products: %w", err)
	}
	defer prows.Close()

	for prows.Next() {
		var vendorID, itemID int
		if err := prows.Scan(&vendorID, &itemID); err != nil {
			return nil, fmt.Errorf("scan vendor product: %w", err)
		}
		if vendorID < 0 || vendorID >= len(vendors) {
			return nil, fmt.Errorf("vendor product references unknown vendor %d", vendorID)
		}
		vendors[vendorID].ProductIDs = append(vendors[vendorID].ProductIDs, itemID)
	}
	if err := prows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendor products: %w", err)
	}

	return vendors, nil
}

func (s *Store) loadItems(ctx context.Context) ([]core.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, price FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	var items []core.Item
	for rows.Next() {
		var it core.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Price); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

func (s *Store) loadExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vendor_id, total, tax, time FROM expenses ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		var e core.Expense
		var total sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.VendorID, &total, &e.Tax, &e.Time); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if total.Valid {
			v := total.Float64
			e.Total = &v
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}

	irows, err := s.db.QueryContext(ctx,
		`SELECT expense_position, item_id, quantity FROM expense_items ORDER BY expense_position, position`)
	if err != nil {
		return nil, fmt.Errorf("load expense items: %w", err)
	}
	defer irows.Close()

	for irows.Next() {
		var pos, itemID, quantity int
		if err := irows.Scan(&pos, &itemID, &quantity); err != nil {
			return nil, fmt.Errorf("scan expense item: %w", err)
		}
		if pos < 0 || pos >= len(expenses) {
			return nil, fmt.Errorf("expense item references unknown expense %d", pos)
		}
		expenses[pos].ItemIDs = append(expenses[pos].ItemIDs, itemID)
		expenses[pos].ItemQuantities = append(expenses[pos].ItemQuantities, quantity)
	}
	if err := irows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expense items: %w", err)
	}

	return expenses, nil
}

// Save replaces the stored snapshot. The whole write happens in one
// transaction so readers never see a half-written snapshot.
func (s *Store) Save(ctx context.Context, snap core.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"expense_items", "expenses", "vendor_products", "items", "vendors", "settings"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, v := range snap.Vendors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vendors (id, name) VALUES (?, ?)`, v.ID, v.Name); err != nil {
			return fmt.Errorf("insert vendor: %w", err)
		}
		for pos, itemID := range v.ProductIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vendor_products (vendor_id, position, item_id) VALUES (?, ?, ?)`,
				v.ID, pos, itemID); err != nil {
				return fmt.Errorf("insert vendor product: %w", err)
			}
		}
	}

	for _, it := range snap.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO items (id, name, price) VALUES (?, ?, ?)`,
			it.ID, it.Name, it.Price); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
	}

	for epos, e := range snap.Expenses {
		var total sql.NullFloat64
		if e.Total != nil {
			total = sql.NullFloat64{Float64: *e.Total, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (position, id, vendor_id, total, tax, time) VALUES (?, ?, ?, ?, ?, ?)`,
			epos, e.ID, e.VendorID, total, e.Tax, e.Time); err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		for pos, itemID := range e.ItemIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO expense_items (expense_position, position, item_id, quantity) VALUES (?, ?, ?, ?)`,
				epos, pos, itemID, e.ItemQuantities[pos]); err != nil {
				return fmt.Errorf("insert expense item: %w", err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO settings (id, budget, currency_type) VALUES (1, ?, ?)`,
		snap.Settings.Budget, snap.Settings.CurrencyType); err != nil {
		return fmt.Errorf("insert settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}

	slog.DebugContext(ctx, "Snapshot saved to SQLite",
		"vendors", len(snap.Vendors),
		"items", len(snap.Items),
		"expenses", len(snap.Expenses))

	return nil
}
