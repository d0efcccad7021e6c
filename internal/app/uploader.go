package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"walupload/internal/journal"
	"walupload/internal/metrics"
	"walupload/internal/ops"
	"walupload/internal/planner"
	"walupload/internal/progress"
	"walupload/internal/state"
	"walupload/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoParts is returned when discovery finds no part files. Nothing is
// logged in that case, so the same log can be reused once files exist.
var ErrNoParts = errors.New("no part files found")

// Transfer is the remote side of an upload.
type Transfer interface {
	StartUpload(ctx context.Context, bucket, key string) (string, error)
	UploadPart(ctx context.Context, path, bucket, key, uploadID string, partNumber int) (storage.UploadedPart, error)
	CompleteUpload(ctx context.Context, bucket, key, uploadID string, parts []storage.CompletedPart) error
	AbortUpload(ctx context.Context, bucket, key, uploadID string) error
}

// PartSource finds the local part files.
type PartSource interface {
	Discover(pattern string) ([]string, error)
	Size(path string) (int64, error)
}

// Options identifies the upload and its retry budget. A nil Metrics or
// Tracker gets a private one.
type Options struct {
	Bucket      string
	Key         string
	Pattern     string
	MaxAttempts int
	Metrics     *metrics.Collector
	Tracker     *progress.Tracker
}

// Uploader drives one upload session from its log. It is not safe for
// concurrent use.
type Uploader struct {
	opts     Options
	log      journal.Log
	transfer Transfer
	parts    PartSource
	logger   *zap.Logger
	metrics  *metrics.Collector
	tracker  *progress.Tracker

	state state.State
}

// NewUploader replays every operation in log and returns an uploader
// positioned at the resulting state.
func NewUploader(opts Options, log journal.Log, transfer Transfer, parts PartSource, logger *zap.Logger) (*Uploader, error) {
	if opts.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1, got %d", opts.MaxAttempts)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	recorded := log.Operations()
	s, err := state.Replay(recorded)
	if err != nil {
		return nil, fmt.Errorf("failed to recover upload state: %w", err)
	}

	u := &Uploader{
		opts:     opts,
		log:      log,
		transfer: transfer,
		parts:    parts,
		logger:   logger.With(zap.String("bucket", opts.Bucket), zap.String("key", opts.Key)),
		metrics:  opts.Metrics,
		tracker:  opts.Tracker,
		state:    s,
	}
	if u.metrics == nil {
		u.metrics = metrics.New()
	}
	if u.tracker == nil {
		u.tracker = progress.NewTracker()
	}

	if len(recorded) > 0 {
		u.logger.Info("Recovered upload state",
			zap.Int("operations", len(recorded)),
			zap.String("phase", string(s.Phase())),
		)
	}

	return u, nil
}

// State returns the current state.
func (u *Uploader) State() state.State {
	return u.state
}

// Run plans and executes actions until the planner terminates, and returns
// the final state. Failures of the remote store are recorded in the log and
// retried; Run only returns an error when discovery fails, the log cannot be
// written, an outcome does not fit the state, or ctx is done.
func (u *Uploader) Run(ctx context.Context) (state.State, error) {
	logger := u.logger.With(zap.String("run_id", uuid.NewString()))
	u.resumeProgress(logger)

	for {
		if err := ctx.Err(); err != nil {
			logger.Info("Upload interrupted", zap.String("phase", string(u.state.Phase())))
			return u.state, err
		}

		action := planner.Next(u.state, u.opts.MaxAttempts)
		u.metrics.IncAction(action.Name())

		if t, ok := action.(planner.Terminate); ok {
			u.tracker.SetPhase(string(u.state.Phase()))
			if _, completed := u.state.(state.Completed); completed {
				logger.Info("Upload finished", zap.String("reason", t.Reason))
			} else {
				logger.Warn("Upload finished without completing",
					zap.String("phase", string(u.state.Phase())),
					zap.String("reason", t.Reason),
				)
			}
			return u.state, nil
		}

		logger.Debug("Executing action", zap.String("action", action.Name()))

		op, err := u.execute(ctx, logger, action)
		if err != nil {
			return u.state, err
		}
		if err := u.commit(ctx, op); err != nil {
			logger.Error("Stopping upload", zap.String("op", string(op.Kind())), zap.Error(err))
			return u.state, err
		}
	}
}

// commit appends op and then folds it into the state. An op the state would
// reject is never appended.
func (u *Uploader) commit(ctx context.Context, op ops.Operation) error {
	next, err := state.Apply(u.state, op)
	if err != nil {
		return fmt.Errorf("operation %s does not apply to %s state: %w", op.Kind(), u.state.Phase(), err)
	}

	// The remote side effect already happened; record it even if ctx is done.
	if err := u.log.Append(context.WithoutCancel(ctx), op); err != nil {
		return err
	}

	u.state = next
	u.metrics.IncOperation(string(op.Kind()))
	u.tracker.SetPhase(string(next.Phase()))
	return nil
}

// execute performs one action and maps its outcome to an operation. A
// collaborator failure becomes a Failed* operation unless ctx was cancelled,
// in which case the action is left to be retried by the next run.
func (u *Uploader) execute(ctx context.Context, logger *zap.Logger, action planner.Action) (ops.Operation, error) {
	bucket, key := u.opts.Bucket, u.opts.Key

	switch a := action.(type) {
	case planner.LoadParts:
		return u.loadParts(logger)

	case planner.StartUpload:
		uploadID, err := u.transfer.StartUpload(ctx, bucket, key)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			u.failed(logger, "start_upload", a.Attempt+1, err)
			return ops.FailedStart{Attempt: a.Attempt + 1, Msg: err.Error()}, nil
		}
		logger.Info("Started multipart upload", zap.String("upload_id", uploadID))
		return ops.Started{UploadID: uploadID}, nil

	case planner.UploadPart:
		start := time.Now()
		uploaded, err := u.transfer.UploadPart(ctx, a.Part.Path, bucket, key, a.UploadID, a.Part.Number)
		u.metrics.ObservePartDuration(time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			u.failed(logger, "upload_part", a.Attempt+1, err, zap.Int("part", a.Part.Number))
			return ops.FailedPart{Index: a.Index, Attempt: a.Attempt + 1, Msg: err.Error()}, nil
		}
		u.metrics.AddBytes(uploaded.Size)
		u.tracker.AddPart(uploaded.Size)
		logger.Info("Uploaded part",
			zap.Int("part", a.Part.Number),
			zap.String("path", a.Part.Path),
			zap.Int64("size", uploaded.Size),
			zap.String("etag", uploaded.ETag),
		)
		return ops.UploadedPart{Index: a.Index, ETag: uploaded.ETag}, nil

	case planner.Complete:
		err := u.transfer.CompleteUpload(ctx, bucket, key, a.UploadID, completedParts(a.Parts))
		if errors.Is(err, storage.ErrCompletedRemotely) {
			logger.Warn("Upload id is gone but the object matches the uploaded parts, treating it as completed",
				zap.String("upload_id", a.UploadID),
				zap.Error(err),
			)
			return ops.Completed{}, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			u.failed(logger, "complete", a.Attempt+1, err)
			return ops.FailedComplete{Attempt: a.Attempt + 1, Msg: err.Error()}, nil
		}
		logger.Info("Completed multipart upload", zap.String("upload_id", a.UploadID))
		return ops.Completed{}, nil

	case planner.Abort:
		// Escalation carries the first abort attempt; Aborting carries failures so far.
		attempt := a.Attempt
		if _, aborting := u.state.(state.Aborting); aborting {
			attempt++
		} else {
			logger.Warn("Abandoning upload", zap.String("upload_id", a.UploadID), zap.String("reason", a.Msg))
		}
		if err := u.transfer.AbortUpload(ctx, bucket, key, a.UploadID); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			u.failed(logger, "abort", attempt, err)
			return ops.FailedAbort{Attempt: attempt, Msg: err.Error()}, nil
		}
		logger.Info("Aborted multipart upload", zap.String("upload_id", a.UploadID))
		return ops.Aborted{}, nil
	}

	return nil, fmt.Errorf("no executor for action %T", action)
}

func (u *Uploader) loadParts(logger *zap.Logger) (ops.Operation, error) {
	paths, err := u.parts.Discover(u.opts.Pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to discover parts: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: pattern %q", ErrNoParts, u.opts.Pattern)
	}

	parts := make([]ops.Part, len(paths))
	for i, path := range paths {
		parts[i] = ops.NewPart(i+1, path)
	}

	total := u.totalSize(logger, parts)
	u.tracker.SetTotal(int64(len(parts)), total)
	logger.Info("Discovered parts",
		zap.Int("parts", len(parts)),
		zap.Int64("bytes", total),
		zap.String("pattern", u.opts.Pattern),
	)

	return ops.ConfiguredParts{Parts: parts}, nil
}

// resumeProgress seeds the tracker from a recovered state.
func (u *Uploader) resumeProgress(logger *zap.Logger) {
	u.tracker.SetPhase(string(u.state.Phase()))

	var parts []ops.Part
	switch cur := u.state.(type) {
	case state.Starting:
		parts = cur.Parts
	case state.Uploading:
		parts = cur.Parts
	case state.Completing:
		parts = cur.Parts
	default:
		return
	}

	u.tracker.SetTotal(int64(len(parts)), u.totalSize(logger, parts))

	var done, doneBytes int64
	for _, p := range parts {
		if !p.Uploaded() {
			continue
		}
		done++
		if size, err := u.parts.Size(p.Path); err == nil {
			doneBytes += size
		}
	}
	if done > 0 {
		u.tracker.SetResumed(done, doneBytes)
		logger.Info("Resuming upload",
			zap.String("phase", string(u.state.Phase())),
			zap.Int64("parts_done", done),
			zap.Int("parts_total", len(parts)),
		)
	}
}

// totalSize sums the part sizes. Missing files count as zero; the upload of
// that part will fail and be retried.
func (u *Uploader) totalSize(logger *zap.Logger, parts []ops.Part) int64 {
	var total int64
	for _, p := range parts {
		size, err := u.parts.Size(p.Path)
		if err != nil {
			logger.Debug("Cannot size part", zap.String("path", p.Path), zap.Error(err))
			continue
		}
		total += size
	}
	return total
}

func (u *Uploader) failed(logger *zap.Logger, action string, attempt int, err error, fields ...zap.Field) {
	u.tracker.AddFailure()
	fields = append(fields,
		zap.String("action", action),
		zap.Int("attempt", attempt),
		zap.Int("max_attempts", u.opts.MaxAttempts),
		zap.Error(err),
	)
	logger.Warn("Action failed", fields...)
}

func completedParts(parts []ops.Part) []storage.CompletedPart {
	out := make([]storage.CompletedPart, len(parts))
	for i, p := range parts {
		out[i] = storage.CompletedPart{PartNumber: p.Number, ETag: p.ETag}
	}
	return out
}
