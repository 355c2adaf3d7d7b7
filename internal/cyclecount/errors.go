package cyclecount

import (
	"errors"
	"fmt"

	"cyclecount-service/internal/model"
)

// ErrDuplicateCountNumber reports that a count number was taken by a
// concurrent schedule. The service retries with a fresh number; callers
// never see it.
var ErrDuplicateCountNumber = errors.New("count number already taken")

// ValidationError signals malformed input (negative quantity, missing scope
// field). The caller can correct the request and retry.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

// NotFoundError signals that a count or item id did not resolve.
type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// InvalidStateError signals an operation attempted from a status that does
// not permit it, usually a stale client or a concurrent modification. Nothing
// is mutated when it is returned.
type InvalidStateError struct {
	Event  string
	Status model.CountStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s a count with status %q", e.Event, e.Status)
}

// DependencyError signals that the inventory adjustment write failed during
// approval. The approval is aborted as a whole and the count stays in
// pending_approval for a manual retry.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}
