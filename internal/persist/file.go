package persist

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"financeflow/internal/core"
	"financeflow/internal/transfer"
)

// FileStore keeps the ledger as a single interchange document on disk, the
// same format the export feature produces.
type FileStore struct {
	path string
}

var _ SnapshotStore = (*FileStore)(nil)

// NewFileStore creates the parent directory if needed.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Load(ctx context.Context) (core.Snapshot, bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return core.Snapshot{}, false, nil
	}
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("read snapshot file: %w", err)
	}
	snap, err := transfer.Decode(data)
	if err != nil {
		return core.Snapshot{}, false, fmt.Errorf("decode snapshot file: %w", err)
	}
	slog.InfoContext(ctx, "Ledger snapshot loaded",
		"path", s.path,
		"expenses", len(snap.Expenses),
		"vendors", len(snap.Vendors),
		"items", len(snap.Items))
	return snap, true, nil
}

// Save writes to a temp file and renames it into place so a crash mid-write
// never leaves a truncated document.
func (s *FileStore) Save(ctx context.Context, snap core.Snapshot) error {
	data, err := transfer.Encode(snap)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	slog.DebugContext(ctx, "Ledger snapshot saved", "path", s.path, "bytes", len(data))
	return nil
}
