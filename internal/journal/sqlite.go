package journal

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"walupload/internal/ops"
)

// SQLiteLog stores one row per operation. Row order is the log order.
type SQLiteLog struct {
	path       string
	db         *sql.DB
	operations []ops.Operation
	now        func() time.Time
}

// OpenSQLite opens or creates the SQLite log at path and reads every row.
func OpenSQLite(path string) (*SQLiteLog, error) {
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("failed to open database: %w", err)}
	}

	// Single writer, single process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &SQLiteLog{
		path: path,
		db:   db,
		now:  time.Now,
	}
	if err := l.createTables(); err != nil {
		db.Close()
		return nil, &LoadError{Path: path, Err: fmt.Errorf("failed to create tables: %w", err)}
	}
	if err := l.load(); err != nil {
		db.Close()
		return nil, err
	}

	return l, nil
}

// sqliteDSN builds a file URI for path with its reserved characters escaped,
// so a '?' or '#' in a file name stays part of the name.
func sqliteDSN(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(abs),
		// synchronous(FULL) makes every commit durable before it returns.
		RawQuery: "_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(60000)",
	}
	return u.String(), nil
}

func (l *SQLiteLog) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS operations (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		op TEXT NOT NULL,
		data TEXT NOT NULL,
		recorded_at DATETIME NOT NULL
	);
	`

	_, err := l.db.Exec(query)
	return err
}

func (l *SQLiteLog) load() error {
	rows, err := l.db.Query(`SELECT op, data, recorded_at FROM operations ORDER BY seq ASC`)
	if err != nil {
		return &LoadError{Path: l.path, Err: err}
	}
	defer rows.Close()

	record := 0
	for rows.Next() {
		record++

		var kind, data string
		var recordedAt time.Time
		if err := rows.Scan(&kind, &data, &recordedAt); err != nil {
			return &LoadError{Path: l.path, Record: record, Err: err}
		}
		rec := Record{Op: ops.Kind(kind), Data: []byte(data), At: recordedAt}

		op, err := Decode(rec)
		if err != nil {
			return &LoadError{Path: l.path, Record: record, Err: err}
		}
		l.operations = append(l.operations, op)
	}

	if err := rows.Err(); err != nil {
		return &LoadError{Path: l.path, Err: err}
	}
	return nil
}

// Operations implements Log.
func (l *SQLiteLog) Operations() []ops.Operation {
	out := make([]ops.Operation, len(l.operations))
	copy(out, l.operations)
	return out
}

// Append implements Log. The row is committed before it returns.
func (l *SQLiteLog) Append(ctx context.Context, op ops.Operation) error {
	if op == nil {
		return &AppendError{Err: fmt.Errorf("nil operation")}
	}

	rec, err := Encode(op, l.now())
	if err != nil {
		return &AppendError{Kind: op.Kind(), Err: err}
	}

	err = retryOnBusy(func() error {
		return l.insert(ctx, rec)
	})
	if err != nil {
		return &AppendError{Kind: op.Kind(), Err: err}
	}

	l.operations = append(l.operations, op)
	return nil
}

func (l *SQLiteLog) insert(ctx context.Context, rec Record) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // ignored after Commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO operations (op, data, recorded_at) VALUES (?, ?, ?)`,
		string(rec.Op),
		string(rec.Data),
		rec.At,
	)
	if err != nil {
		return fmt.Errorf("failed to execute insert: %w", err)
	}

	return tx.Commit()
}

// Path returns the database file the log is stored in.
func (l *SQLiteLog) Path() string {
	return l.path
}

// Close implements Log.
func (l *SQLiteLog) Close() error {
	return l.db.Close()
}

// retryOnBusy retries operation while SQLite reports the database as locked.
func retryOnBusy(operation func() error) error {
	const maxRetries = 10
	baseDelay := 50 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = operation()
		if err == nil || !isSQLiteBusyError(err) {
			return err
		}
		time.Sleep(baseDelay * time.Duration(1<<uint(attempt)))
	}
	return err
}

func isSQLiteBusyError(err error) bool {
	errorStr := err.Error()
	return strings.Contains(errorStr, "database is locked") ||
		strings.Contains(errorStr, "SQLITE_BUSY")
}
