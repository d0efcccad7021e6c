// Package state holds the upload progress reconstructed from the operation log.
//
// A State is only ever produced by Apply. Callers never edit a State in place;
// they replace the value they hold with the one Apply returns.
package state

import (
	"walupload/internal/ops"
)

// Phase names a state variant.
type Phase string

const (
	PhaseInit       Phase = "init"
	PhaseStarting   Phase = "starting"
	PhaseUploading  Phase = "uploading"
	PhaseCompleting Phase = "completing"
	PhaseCompleted  Phase = "completed"
	PhaseAborting   Phase = "aborting"
	PhaseAborted    Phase = "aborted"
)

// State is implemented by every state variant. The set is closed.
type State interface {
	Phase() Phase
	isState()
}

// Init is the state before any part is known.
type Init struct{}

// Starting has a fixed part list but no remote session yet.
type Starting struct {
	Parts   []ops.Part
	Attempt int
}

// Uploading has an open session. Index is the next part to upload.
type Uploading struct {
	Parts    []ops.Part
	UploadID string
	Index    int
	Attempt  int
}

// Completing has every part uploaded and is finalizing the object.
type Completing struct {
	Parts    []ops.Part
	UploadID string
	Attempt  int
}

// Completed is terminal success.
type Completed struct{}

// Aborting is cancelling the remote session.
type Aborting struct {
	UploadID string
	Attempt  int
}

// Aborted is terminal failure.
type Aborted struct{}

func (Init) Phase() Phase       { return PhaseInit }
func (Starting) Phase() Phase   { return PhaseStarting }
func (Uploading) Phase() Phase  { return PhaseUploading }
func (Completing) Phase() Phase { return PhaseCompleting }
func (Completed) Phase() Phase  { return PhaseCompleted }
func (Aborting) Phase() Phase   { return PhaseAborting }
func (Aborted) Phase() Phase    { return PhaseAborted }

func (Init) isState()       {}
func (Starting) isState()   {}
func (Uploading) isState()  {}
func (Completing) isState() {}
func (Completed) isState()  {}
func (Aborting) isState()   {}
func (Aborted) isState()    {}

// New returns the state every log is replayed from.
func New() State {
	return Init{}
}

// IsTerminal reports whether s accepts no further operations.
func IsTerminal(s State) bool {
	switch s.(type) {
	case Completed, Aborted:
		return true
	}
	return false
}

// Replay folds operations into a state starting from Init.
func Replay(operations []ops.Operation) (State, error) {
	s := New()
	for i, op := range operations {
		next, err := Apply(s, op)
		if err != nil {
			return s, &ReplayError{Position: i, Err: err}
		}
		s = next
	}
	return s, nil
}
