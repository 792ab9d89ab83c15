// Package persist defines the snapshot persistence boundary and its
// file-backed implementation. The ledger itself stays in memory; stores
// only load it at startup and save it after mutations.
package persist

import (
	"context"

	"financeflow/internal/core"
)

// SnapshotStore loads and saves the whole ledger at once.
type SnapshotStore interface {
	// Load returns the persisted snapshot. The second return is false when
	// nothing has been persisted yet, which is not an error: the caller
	// starts from defaults.
	Load(ctx context.Context) (core.Snapshot, bool, error)

	// Save persists the snapshot, replacing whatever was there.
	Save(ctx context.Context, snap core.Snapshot) error
}
