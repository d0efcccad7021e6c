package state

import (
	"errors"
	"fmt"

	"walupload/internal/ops"
)

var (
	// ErrInvalidState is matched by every InvalidStateError.
	ErrInvalidState = errors.New("invalid state")
	// ErrIndexOutOfBounds is matched by every IndexOutOfBoundsError.
	ErrIndexOutOfBounds = errors.New("index out of bounds")
	// ErrNoParts is the cause of an InvalidStateError for an empty part list.
	ErrNoParts = errors.New("no parts configured")
)

// InvalidStateError reports an operation that cannot be applied to a state.
type InvalidStateError struct {
	State State
	Op    ops.Operation
	Err   error
}

func (e *InvalidStateError) Error() string {
	phase := Phase("<nil>")
	if e.State != nil {
		phase = e.State.Phase()
	}
	kind := ops.Kind("<nil>")
	if e.Op != nil {
		kind = e.Op.Kind()
	}
	msg := fmt.Sprintf("invalid operation %s in %s state", kind, phase)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidStateError) Unwrap() error {
	return e.Err
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// IndexOutOfBoundsError reports an uploaded part index outside the part list.
type IndexOutOfBoundsError struct {
	Index int
	Len   int
}

func (e *IndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("part index %d out of bounds for %d parts", e.Index, e.Len)
}

func (e *IndexOutOfBoundsError) Is(target error) bool {
	return target == ErrIndexOutOfBounds
}

// ReplayError wraps the failure of the operation at Position during Replay.
type ReplayError struct {
	Position int
	Err      error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("replay operation %d: %v", e.Position, e.Err)
}

func (e *ReplayError) Unwrap() error {
	return e.Err
}
