package journal

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"walupload/internal/ops"
)

// FileLog stores one JSON record per line and fsyncs after every append.
type FileLog struct {
	path       string
	file       *os.File
	operations []ops.Operation
	// unterminated is set when the last record on disk has no newline.
	unterminated bool
	now          func() time.Time
}

// OpenFile opens or creates the newline-delimited log at path and reads every
// record in it. Any record that does not parse fails the whole open.
func OpenFile(path string) (*FileLog, error) {
	_, statErr := os.Stat(path)
	created := errors.Is(statErr, os.ErrNotExist)
	if statErr != nil && !created {
		return nil, &LoadError{Path: path, Err: statErr}
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("open: %w", err)}
	}

	if created {
		if err := syncDir(filepath.Dir(path)); err != nil {
			file.Close()
			return nil, &LoadError{Path: path, Err: fmt.Errorf("sync parent directory: %w", err)}
		}
	}

	l := &FileLog{
		path: path,
		file: file,
		now:  time.Now,
	}
	if err := l.load(); err != nil {
		file.Close()
		return nil, err
	}

	return l, nil
}

func (l *FileLog) load() error {
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return &LoadError{Path: l.path, Err: fmt.Errorf("seek: %w", err)}
	}

	reader := bufio.NewReader(l.file)
	record := 0
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return &LoadError{Path: l.path, Err: fmt.Errorf("read: %w", err)}
		}

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) > 0 {
			record++
			op, decodeErr := UnmarshalLine(trimmed)
			if decodeErr != nil {
				return &LoadError{Path: l.path, Record: record, Err: decodeErr}
			}
			l.operations = append(l.operations, op)
			l.unterminated = errors.Is(err, io.EOF)
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

// Operations implements Log.
func (l *FileLog) Operations() []ops.Operation {
	out := make([]ops.Operation, len(l.operations))
	copy(out, l.operations)
	return out
}

// Append implements Log. It returns only after the record has been synced.
func (l *FileLog) Append(_ context.Context, op ops.Operation) error {
	if op == nil {
		return &AppendError{Err: fmt.Errorf("nil operation")}
	}

	line, err := MarshalLine(op, l.now())
	if err != nil {
		return &AppendError{Kind: op.Kind(), Err: err}
	}
	if l.unterminated {
		line = append([]byte{'\n'}, line...)
	}

	if _, err := l.file.Write(line); err != nil {
		return &AppendError{Kind: op.Kind(), Err: fmt.Errorf("write: %w", err)}
	}
	if err := l.file.Sync(); err != nil {
		return &AppendError{Kind: op.Kind(), Err: fmt.Errorf("sync: %w", err)}
	}

	l.unterminated = false
	l.operations = append(l.operations, op)
	return nil
}

// Path returns the file the log is stored in.
func (l *FileLog) Path() string {
	return l.path
}

// Close implements Log.
func (l *FileLog) Close() error {
	return l.file.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
