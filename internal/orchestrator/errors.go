package orchestrator

import (
	"errors"
	"fmt"

	"github.com/dusk-indust/courseforge/internal/outline"
)

// StructuralError reports malformed input (outline, request). It is fatal and
// surfaced to the caller before any stage executes.
type StructuralError struct {
	Msg string
}

func (e *StructuralError) Error() string {
	return "structural: " + e.Msg
}

// structuralf builds a StructuralError from a format string.
func structuralf(format string, args ...any) error {
	return &StructuralError{Msg: fmt.Sprintf(format, args...)}
}

// IsStructural reports whether err is a structural validation failure,
// including outline validation errors.
func IsStructural(err error) bool {
	var se *StructuralError
	if errors.As(err, &se) {
		return true
	}
	var ve *outline.ValidationError
	return errors.As(err, &ve)
}

// MergeConflictError reports two different bindings arriving for the same
// image id. Ids are assigned run-uniquely up front, so this always indicates
// an id-assignment bug and is never silently resolved.
type MergeConflictError struct {
	ImageID  int
	Existing ImageBinding
	Incoming ImageBinding
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict: image id %d bound to %q and %q",
		e.ImageID, e.Existing.StorageKey, e.Incoming.StorageKey)
}
