package planner

import (
	"fmt"

	"walupload/internal/state"
)

// Next returns the action to attempt for s. A phase whose attempt counter has
// reached maxAttempts is not retried: uploading and completing escalate to an
// abort with a fresh counter, starting and aborting terminate.
func Next(s state.State, maxAttempts int) Action {
	switch cur := s.(type) {
	case state.Init:
		return LoadParts{}

	case state.Starting:
		if cur.Attempt >= maxAttempts {
			return Terminate{Reason: fmt.Sprintf("%d out of %d failures starting upload", cur.Attempt, maxAttempts)}
		}
		return StartUpload{Attempt: cur.Attempt}

	case state.Uploading:
		if cur.Attempt >= maxAttempts {
			return Abort{
				UploadID: cur.UploadID,
				Msg:      fmt.Sprintf("%d out of %d failures uploading part %d", cur.Attempt, maxAttempts, cur.Index+1),
				Attempt:  1,
			}
		}
		if cur.Index < 0 || cur.Index >= len(cur.Parts) {
			return Abort{
				UploadID: cur.UploadID,
				Msg:      fmt.Sprintf("invalid part index %d", cur.Index),
				Attempt:  1,
			}
		}
		return UploadPart{
			UploadID: cur.UploadID,
			Index:    cur.Index,
			Attempt:  cur.Attempt,
			Part:     cur.Parts[cur.Index],
		}

	case state.Completing:
		if cur.Attempt >= maxAttempts {
			return Abort{
				UploadID: cur.UploadID,
				Msg:      fmt.Sprintf("%d out of %d failures completing upload", cur.Attempt, maxAttempts),
				Attempt:  1,
			}
		}
		return Complete{UploadID: cur.UploadID, Attempt: cur.Attempt, Parts: cur.Parts}

	case state.Completed:
		return Terminate{Reason: "upload completed"}

	case state.Aborting:
		if cur.Attempt >= maxAttempts {
			return Terminate{Reason: fmt.Sprintf("%d out of %d failures aborting upload", cur.Attempt, maxAttempts)}
		}
		return Abort{
			UploadID: cur.UploadID,
			Msg:      fmt.Sprintf("retrying abort after %d of %d failures", cur.Attempt, maxAttempts),
			Attempt:  cur.Attempt,
		}

	case state.Aborted:
		return Terminate{Reason: "upload aborted"}
	}

	return Terminate{Reason: fmt.Sprintf("no action for state %T", s)}
}
