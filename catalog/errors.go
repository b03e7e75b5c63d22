package catalog

import "fmt"

// ValidationError reports malformed batch input (mismatched array lengths,
// negative buffers, invalid geometry). It is always raised before any work
// unit is scheduled, so a ValidationError guarantees no I/O happened.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return "invalid input: " + e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports that a re-tiling destination already contains
// point-cloud files. It is raised before any write begins.
type ConflictError struct {
	Dir   string
	Files []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("destination %s already contains %d point-cloud file(s)", e.Dir, len(e.Files))
}

// IndexError reports a malformed catalog index (duplicate tile paths or
// degenerate bounding boxes). It fails catalog construction and never
// surfaces mid-batch.
type IndexError struct {
	Msg string
}

func (e *IndexError) Error() string { return "bad catalog index: " + e.Msg }

func indexErrorf(format string, args ...any) error {
	return &IndexError{Msg: fmt.Sprintf(format, args...)}
}

// UnitFailure wraps the error of a single work unit. It is recorded against
// the unit's name in the batch result and never aborts sibling units.
type UnitFailure struct {
	Unit string
	Err  error
}

func (e *UnitFailure) Error() string {
	return fmt.Sprintf("unit %s failed: %v", e.Unit, e.Err)
}

func (e *UnitFailure) Unwrap() error { return e.Err }
