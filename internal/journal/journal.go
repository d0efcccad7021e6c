// Package journal is the durable, append-only log of upload operations.
//
// A successful Append is a durability guarantee: the operation is on stable
// storage and the next Open returns it. Records are never rewritten or removed.
package journal

import (
	"context"
	"fmt"

	"walupload/internal/ops"
)

// Backend names a log storage implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
)

// Log is an opened operation log.
type Log interface {
	// Operations returns every operation in log order, including those
	// appended since Open.
	Operations() []ops.Operation
	// Append durably records op.
	Append(ctx context.Context, op ops.Operation) error
	Close() error
}

// Open opens the log at path with the given backend, creating it if missing.
func Open(backend Backend, path string) (Log, error) {
	switch backend {
	case BackendFile, "":
		return OpenFile(path)
	case BackendSQLite:
		return OpenSQLite(path)
	}
	return nil, &LoadError{Path: path, Err: fmt.Errorf("unknown log backend %q", backend)}
}

// LoadError reports a log that could not be opened or read. A log that fails
// to load is never partially recovered.
type LoadError struct {
	Path string
	// Record is the 1-based record number that failed to parse, or 0.
	Record int
	Err    error
}

func (e *LoadError) Error() string {
	if e.Record > 0 {
		return fmt.Sprintf("load log %s: record %d: %v", e.Path, e.Record, e.Err)
	}
	return fmt.Sprintf("load log %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// AppendError reports an operation that may not be durable.
type AppendError struct {
	Kind ops.Kind
	Err  error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("append %s to log: %v", e.Kind, e.Err)
}

func (e *AppendError) Unwrap() error {
	return e.Err
}
