// Package transfer encodes and decodes the ledger interchange document, a
// single JSON object with expenses, vendors, items, and settings keys. The
// same format backs file persistence and user-driven import/export.
package transfer

import (
	"bytes"
	"encoding/json"
	"fmt"

	"financeflow/internal/core"
)

// Encode serializes a snapshot. Collections are always emitted as arrays,
// never null, so the output is importable as-is.
func Encode(snap core.Snapshot) ([]byte, error) {
	snap = snap.Clone()
	if snap.Expenses == nil {
		snap.Expenses = []core.Expense{}
	}
	if snap.Vendors == nil {
		snap.Vendors = []core.Vendor{}
	}
	if snap.Items == nil {
		snap.Items = []core.Item{}
	}
	out, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return out, nil
}

// Decode parses and validates an interchange document. Non-JSON input and
// each missing top-level key are rejected with their own message, and the
// document's references are checked before it is accepted, so a decoded
// snapshot can always be restored safely.
func Decode(doc []byte) (core.Snapshot, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(doc, &keys); err != nil {
		return core.Snapshot{}, &core.ImportFormatError{Reason: "imported data is not in JSON format"}
	}

	// Each key has its own rejection message so the user knows what is
	// missing. A JSON null counts as missing.
	required := []struct {
		key    string
		reason string
	}{
		{"expenses", "imported data does not include data about expenses"},
		{"vendors", "imported data does not include data about vendors"},
		{"items", "imported data does not include data about products"},
		{"settings", "imported data does not include settings"},
	}
	for _, r := range required {
		raw, ok := keys[r.key]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return core.Snapshot{}, &core.ImportFormatError{Reason: r.reason}
		}
	}

	var snap core.Snapshot
	if err := json.Unmarshal(keys["expenses"], &snap.Expenses); err != nil {
		return core.Snapshot{}, &core.ImportFormatError{Reason: "expenses data is malformed"}
	}
	if err := json.Unmarshal(keys["vendors"], &snap.Vendors); err != nil {
		return core.Snapshot{}, &core.ImportFormatError{Reason: "vendors data is malformed"}
	}
	if err := json.Unmarshal(keys["items"], &snap.Items); err != nil {
		return core.Snapshot{}, &core.ImportFormatError{Reason: "products data is malformed"}
	}
	if err := json.Unmarshal(keys["settings"], &snap.Settings); err != nil {
		return core.Snapshot{}, &core.ImportFormatError{Reason: "settings data is malformed"}
	}

	if err := validate(snap); err != nil {
		return core.Snapshot{}, err
	}
	return snap, nil
}

// validate checks referential integrity so a bad document never reaches the
// ledger.
func validate(snap core.Snapshot) error {
	for i, v := range snap.Vendors {
		for _, pid := range v.ProductIDs {
			if pid < 0 || pid >= len(snap.Items) {
				return &core.ImportFormatError{Reason: fmt.Sprintf("vendor %d references unknown product %d", i, pid)}
			}
		}
	}
	for i, e := range snap.Expenses {
		if len(e.ItemIDs) != len(e.ItemQuantities) {
			return &core.ImportFormatError{Reason: fmt.Sprintf("expense %d has mismatched item and quantity lists", i)}
		}
		if e.VendorID < 0 || e.VendorID >= len(snap.Vendors) {
			return &core.ImportFormatError{Reason: fmt.Sprintf("expense %d references unknown vendor %d", i, e.VendorID)}
		}
		for _, id := range e.ItemIDs {
			if id < 0 || id >= len(snap.Items) {
				return &core.ImportFormatError{Reason: fmt.Sprintf("expense %d references unknown item %d", i, id)}
			}
		}
	}
	if err := snap.Settings.Validate(); err != nil {
		return &core.ImportFormatError{Reason: "settings data is malformed"}
	}
	return nil
}
