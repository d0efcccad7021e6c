package state_test

import (
	"errors"
	"fmt"
	"testing"

	"walupload/internal/ops"
	"walupload/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoParts() []ops.Part {
	return []ops.Part{
		ops.NewPart(1, "data/a.bin"),
		ops.NewPart(2, "data/b.bin"),
	}
}

func apply(t *testing.T, s state.State, op ops.Operation) state.State {
	t.Helper()
	next, err := state.Apply(s, op)
	require.NoError(t, err)
	return next
}

func TestApply_HappyPath(t *testing.T) {
	s := state.New()

	s = apply(t, s, ops.ConfiguredParts{Parts: twoParts()})
	assert.Equal(t, state.Starting{Parts: twoParts(), Attempt: 0}, s)

	s = apply(t, s, ops.Started{UploadID: "U1"})
	assert.Equal(t, state.Uploading{Parts: twoParts(), UploadID: "U1", Index: 0, Attempt: 0}, s)

	s = apply(t, s, ops.UploadedPart{Index: 0, ETag: "e1"})
	uploading, ok := s.(state.Uploading)
	require.True(t, ok)
	assert.Equal(t, 1, uploading.Index)
	assert.Equal(t, "e1", uploading.Parts[0].ETag)
	assert.Empty(t, uploading.Parts[1].ETag)

	s = apply(t, s, ops.UploadedPart{Index: 1, ETag: "e2"})
	completing, ok := s.(state.Completing)
	require.True(t, ok)
	assert.Equal(t, "U1", completing.UploadID)
	assert.Equal(t, 0, completing.Attempt)
	assert.Equal(t, []ops.Part{
		{Number: 1, Path: "data/a.bin", ETag: "e1"},
		{Number: 2, Path: "data/b.bin", ETag: "e2"},
	}, completing.Parts)

	s = apply(t, s, ops.Completed{})
	assert.Equal(t, state.Completed{}, s)
	assert.True(t, state.IsTerminal(s))
}

func TestApply_EmptyPartsRejected(t *testing.T) {
	s, err := state.Apply(state.New(), ops.ConfiguredParts{})

	require.Error(t, err)
	assert.ErrorIs(t, err, state.ErrInvalidState)
	assert.ErrorIs(t, err, state.ErrNoParts)
	assert.Equal(t, state.Init{}, s)
}

func TestApply_StartFailureIncrementsAttempt(t *testing.T) {
	s := state.State(state.Starting{Parts: twoParts()})

	s = apply(t, s, ops.FailedStart{Attempt: 1, Msg: "connection refused"})
	s = apply(t, s, ops.FailedStart{Attempt: 2, Msg: "connection refused"})

	assert.Equal(t, state.Starting{Parts: twoParts(), Attempt: 2}, s)
}

func TestApply_PartFailureKeepsIndex(t *testing.T) {
	s := state.State(state.Uploading{Parts: twoParts(), UploadID: "U1", Index: 1})

	s = apply(t, s, ops.FailedPart{Index: 1, Attempt: 1, Msg: "timeout"})

	assert.Equal(t, state.Uploading{Parts: twoParts(), UploadID: "U1", Index: 1, Attempt: 1}, s)
}

func TestApply_UploadedPartResetsAttempt(t *testing.T) {
	s := state.State(state.Uploading{Parts: twoParts(), UploadID: "U1", Index: 0, Attempt: 2})

	s = apply(t, s, ops.UploadedPart{Index: 0, ETag: "e1"})

	uploading, ok := s.(state.Uploading)
	require.True(t, ok)
	assert.Equal(t, 0, uploading.Attempt)
}

func TestApply_IndexOutOfBounds(t *testing.T) {
	before := state.Uploading{Parts: twoParts(), UploadID: "U1", Index: 1}

	s, err := state.Apply(before, ops.UploadedPart{Index: 5, ETag: "x"})

	require.Error(t, err)
	assert.ErrorIs(t, err, state.ErrIndexOutOfBounds)
	var oob *state.IndexOutOfBoundsError
	require.ErrorAs(t, err, &oob)
	assert.Equal(t, 5, oob.Index)
	assert.Equal(t, 2, oob.Len)
	assert.Equal(t, before, s)
}

func TestApply_NegativeIndexOutOfBounds(t *testing.T) {
	_, err := state.Apply(state.Uploading{Parts: twoParts(), UploadID: "U1"}, ops.UploadedPart{Index: -1})

	assert.ErrorIs(t, err, state.ErrIndexOutOfBounds)
}

func TestApply_UploadedPartForWrongIndex(t *testing.T) {
	_, err := state.Apply(state.Uploading{Parts: twoParts(), UploadID: "U1", Index: 1}, ops.UploadedPart{Index: 0, ETag: "e1"})

	assert.ErrorIs(t, err, state.ErrInvalidState)
	assert.NotErrorIs(t, err, state.ErrIndexOutOfBounds)
}

func TestApply_CompletingTransitions(t *testing.T) {
	s := state.State(state.Completing{Parts: twoParts(), UploadID: "U1"})

	failed := apply(t, s, ops.FailedComplete{Attempt: 1, Msg: "500"})
	assert.Equal(t, state.Completing{Parts: twoParts(), UploadID: "U1", Attempt: 1}, failed)

	assert.Equal(t, state.Aborted{}, apply(t, s, ops.Aborted{}))
	assert.Equal(t, state.Aborting{UploadID: "U1", Attempt: 1}, apply(t, s, ops.FailedAbort{Attempt: 1, Msg: "503"}))
}

func TestApply_EscalationFromUploading(t *testing.T) {
	s := state.State(state.Uploading{Parts: twoParts(), UploadID: "U1", Index: 1, Attempt: 3})

	assert.Equal(t, state.Aborted{}, apply(t, s, ops.Aborted{}))

	aborting := apply(t, s, ops.FailedAbort{Attempt: 1, Msg: "503"})
	assert.Equal(t, state.Aborting{UploadID: "U1", Attempt: 1}, aborting)

	aborting = apply(t, aborting, ops.FailedAbort{Attempt: 2, Msg: "503"})
	assert.Equal(t, state.Aborting{UploadID: "U1", Attempt: 2}, aborting)

	assert.Equal(t, state.Aborted{}, apply(t, aborting, ops.Aborted{}))
}

func TestApply_TerminalStatesRejectEverything(t *testing.T) {
	for _, terminal := range []state.State{state.Completed{}, state.Aborted{}} {
		for _, op := range allOperations() {
			t.Run(fmt.Sprintf("%s/%s", terminal.Phase(), op.Kind()), func(t *testing.T) {
				s, err := state.Apply(terminal, op)

				assert.ErrorIs(t, err, state.ErrInvalidState)
				assert.Equal(t, terminal, s)
			})
		}
	}
}

func TestApply_Totality(t *testing.T) {
	states := []state.State{
		state.Init{},
		state.Starting{Parts: twoParts()},
		state.Uploading{Parts: twoParts(), UploadID: "U1", Index: 1},
		state.Completing{Parts: twoParts(), UploadID: "U1"},
		state.Completed{},
		state.Aborting{UploadID: "U1"},
		state.Aborted{},
		nil,
	}
	operations := append(allOperations(), nil)

	for _, s := range states {
		for _, op := range operations {
			assert.NotPanics(t, func() {
				next, err := state.Apply(s, op)
				if err != nil {
					assert.True(t, isInvalidOrOutOfBounds(err), "undeclared error %v", err)
					assert.Equal(t, s, next)
					return
				}
				assert.NotNil(t, next)
			})
		}
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	parts := twoParts()
	before := state.Uploading{Parts: parts, UploadID: "U1", Index: 0}

	_ = apply(t, before, ops.UploadedPart{Index: 0, ETag: "e1"})

	assert.Empty(t, parts[0].ETag)
	assert.Empty(t, before.Parts[0].ETag)
}

func TestApply_MonotonicIndex(t *testing.T) {
	parts := []ops.Part{ops.NewPart(1, "a"), ops.NewPart(2, "b"), ops.NewPart(3, "c")}
	sequence := []ops.Operation{
		ops.ConfiguredParts{Parts: parts},
		ops.Started{UploadID: "U1"},
		ops.FailedPart{Index: 0, Attempt: 1, Msg: "timeout"},
		ops.UploadedPart{Index: 0, ETag: "e1"},
		ops.FailedPart{Index: 1, Attempt: 1, Msg: "timeout"},
		ops.FailedPart{Index: 1, Attempt: 2, Msg: "timeout"},
		ops.UploadedPart{Index: 1, ETag: "e2"},
		ops.UploadedPart{Index: 2, ETag: "e3"},
	}

	s := state.New()
	last := 0
	for _, op := range sequence {
		s = apply(t, s, op)
		if u, ok := s.(state.Uploading); ok {
			assert.GreaterOrEqual(t, u.Index, last)
			assert.LessOrEqual(t, u.Index, len(u.Parts))
			last = u.Index
		}
	}
	assert.IsType(t, state.Completing{}, s)
}

func TestReplay_Deterministic(t *testing.T) {
	sequence := []ops.Operation{
		ops.ConfiguredParts{Parts: twoParts()},
		ops.FailedStart{Attempt: 1, Msg: "dns"},
		ops.Started{UploadID: "U1"},
		ops.UploadedPart{Index: 0, ETag: "e1"},
		ops.FailedPart{Index: 1, Attempt: 1, Msg: "timeout"},
	}

	first, err := state.Replay(sequence)
	require.NoError(t, err)
	second, err := state.Replay(sequence)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, state.Uploading{
		Parts:    []ops.Part{{Number: 1, Path: "data/a.bin", ETag: "e1"}, {Number: 2, Path: "data/b.bin"}},
		UploadID: "U1",
		Index:    1,
		Attempt:  1,
	}, first)
}

func TestReplay_ReconstructsFailedPart(t *testing.T) {
	s, err := state.Replay([]ops.Operation{
		ops.ConfiguredParts{Parts: []ops.Part{ops.NewPart(1, "p1")}},
		ops.Started{UploadID: "U1"},
		ops.FailedPart{Index: 0, Attempt: 1, Msg: "timeout"},
	})

	require.NoError(t, err)
	assert.Equal(t, state.Uploading{Parts: []ops.Part{ops.NewPart(1, "p1")}, UploadID: "U1", Index: 0, Attempt: 1}, s)
}

func TestReplay_ReportsPosition(t *testing.T) {
	_, err := state.Replay([]ops.Operation{
		ops.ConfiguredParts{Parts: twoParts()},
		ops.Completed{},
	})

	var replayErr *state.ReplayError
	require.ErrorAs(t, err, &replayErr)
	assert.Equal(t, 1, replayErr.Position)
	assert.ErrorIs(t, err, state.ErrInvalidState)
}

func allOperations() []ops.Operation {
	return []ops.Operation{
		ops.ConfiguredParts{Parts: twoParts()},
		ops.ConfiguredParts{},
		ops.Started{UploadID: "U2"},
		ops.FailedStart{Attempt: 1, Msg: "x"},
		ops.UploadedPart{Index: 1, ETag: "e"},
		ops.UploadedPart{Index: 9, ETag: "e"},
		ops.FailedPart{Index: 1, Attempt: 1, Msg: "x"},
		ops.Completed{},
		ops.FailedComplete{Attempt: 1, Msg: "x"},
		ops.Aborted{},
		ops.FailedAbort{Attempt: 1, Msg: "x"},
	}
}

func isInvalidOrOutOfBounds(err error) bool {
	var invalid *state.InvalidStateError
	var oob *state.IndexOutOfBoundsError
	return errors.As(err, &invalid) || errors.As(err, &oob)
}
