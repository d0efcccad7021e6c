package state

import (
	"walupload/internal/ops"
)

// Apply returns the state that results from applying op to s. It has no side
// effects and never modifies s, including the part slice s refers to. On error
// the returned state is s itself.
func Apply(s State, op ops.Operation) (State, error) {
	switch cur := s.(type) {
	case Init:
		return applyInit(cur, op)
	case Starting:
		return applyStarting(cur, op)
	case Uploading:
		return applyUploading(cur, op)
	case Completing:
		return applyCompleting(cur, op)
	case Aborting:
		return applyAborting(cur, op)
	}
	// Completed, Aborted and anything unknown accept nothing.
	return s, invalid(s, op, nil)
}

func applyInit(s Init, op ops.Operation) (State, error) {
	switch o := op.(type) {
	case ops.ConfiguredParts:
		if len(o.Parts) == 0 {
			return s, invalid(s, op, ErrNoParts)
		}
		return Starting{Parts: clone(o.Parts), Attempt: 0}, nil
	}
	return s, invalid(s, op, nil)
}

func applyStarting(s Starting, op ops.Operation) (State, error) {
	switch o := op.(type) {
	case ops.Started:
		return Uploading{
			Parts:    s.Parts,
			UploadID: o.UploadID,
			Index:    0,
			Attempt:  0,
		}, nil
	case ops.FailedStart:
		return Starting{Parts: s.Parts, Attempt: s.Attempt + 1}, nil
	}
	return s, invalid(s, op, nil)
}

func applyUploading(s Uploading, op ops.Operation) (State, error) {
	switch o := op.(type) {
	case ops.UploadedPart:
		if o.Index < 0 || o.Index >= len(s.Parts) {
			return s, &IndexOutOfBoundsError{Index: o.Index, Len: len(s.Parts)}
		}
		if o.Index != s.Index {
			return s, invalid(s, op, nil)
		}

		parts := clone(s.Parts)
		parts[o.Index].ETag = o.ETag
		index := s.Index + 1

		if index == len(parts) {
			return Completing{Parts: parts, UploadID: s.UploadID, Attempt: 0}, nil
		}
		return Uploading{Parts: parts, UploadID: s.UploadID, Index: index, Attempt: 0}, nil
	case ops.FailedPart:
		return Uploading{
			Parts:    s.Parts,
			UploadID: s.UploadID,
			Index:    s.Index,
			Attempt:  s.Attempt + 1,
		}, nil
	case ops.Aborted:
		return Aborted{}, nil
	case ops.FailedAbort:
		// The first abort attempt was the escalation out of this phase.
		return Aborting{UploadID: s.UploadID, Attempt: 1}, nil
	}
	return s, invalid(s, op, nil)
}

func applyCompleting(s Completing, op ops.Operation) (State, error) {
	switch op.(type) {
	case ops.Completed:
		return Completed{}, nil
	case ops.FailedComplete:
		return Completing{Parts: s.Parts, UploadID: s.UploadID, Attempt: s.Attempt + 1}, nil
	case ops.Aborted:
		return Aborted{}, nil
	case ops.FailedAbort:
		return Aborting{UploadID: s.UploadID, Attempt: 1}, nil
	}
	return s, invalid(s, op, nil)
}

func applyAborting(s Aborting, op ops.Operation) (State, error) {
	switch op.(type) {
	case ops.Aborted:
		return Aborted{}, nil
	case ops.FailedAbort:
		return Aborting{UploadID: s.UploadID, Attempt: s.Attempt + 1}, nil
	}
	return s, invalid(s, op, nil)
}

func invalid(s State, op ops.Operation, cause error) error {
	return &InvalidStateError{State: s, Op: op, Err: cause}
}

func clone(parts []ops.Part) []ops.Part {
	out := make([]ops.Part, len(parts))
	copy(out, parts)
	return out
}
