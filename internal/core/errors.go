package core

import "fmt"

// The error taxonomy mirrors the failure classes of the entry workflow.
// None of these are fatal: each is surfaced at the step that produced it.

// ValidationError reports malformed or missing required input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DuplicateNameError reports a name collision within its scope: vendor names
// are unique globally, item names within a single vendor's products.
type DuplicateNameError struct {
	Scope string // "vendor" or the owning vendor's name for items
	Name  string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Scope, e.Name)
}

// NotFoundError reports a reference to a nonexistent record.
type NotFoundError struct {
	Kind string // "vendor", "item", "expense"
	ID   int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// ImportFormatError reports a malformed or incomplete imported document.
type ImportFormatError struct {
	Reason string
}

func (e *ImportFormatError) Error() string {
	return e.Reason
}
