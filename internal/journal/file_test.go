package journal_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"walupload/internal/journal"
	"walupload/internal/ops"
	"walupload/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOperations() []ops.Operation {
	return []ops.Operation{
		ops.ConfiguredParts{Parts: []ops.Part{ops.NewPart(1, "a.bin"), ops.NewPart(2, "b.bin")}},
		ops.FailedStart{Attempt: 1, Msg: "connection refused"},
		ops.Started{UploadID: "U1"},
		ops.UploadedPart{Index: 0, ETag: "\"e1\""},
		ops.FailedPart{Index: 1, Attempt: 1, Msg: "timeout"},
		ops.UploadedPart{Index: 1, ETag: "\"e2\""},
		ops.FailedComplete{Attempt: 1, Msg: "internal error"},
		ops.Completed{},
	}
}

func TestFileLog_OpenCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.log")

	log, err := journal.OpenFile(path)
	require.NoError(t, err)
	defer log.Close()

	assert.Empty(t, log.Operations())
	assert.FileExists(t, path)
}

func TestFileLog_AppendIsRecoveredByOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "upload.log")

	log, err := journal.OpenFile(path)
	require.NoError(t, err)
	for _, op := range sampleOperations() {
		require.NoError(t, log.Append(ctx, op))
	}
	assert.Equal(t, sampleOperations(), log.Operations())
	require.NoError(t, log.Close())

	reopened, err := journal.OpenFile(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, sampleOperations(), reopened.Operations())

	s, err := state.Replay(reopened.Operations())
	require.NoError(t, err)
	assert.Equal(t, state.Completed{}, s)
}

func TestFileLog_AppendAfterReopenKeepsOrder(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "upload.log")
	all := sampleOperations()

	first, err := journal.OpenFile(path)
	require.NoError(t, err)
	for _, op := range all[:3] {
		require.NoError(t, first.Append(ctx, op))
	}
	require.NoError(t, first.Close())

	second, err := journal.OpenFile(path)
	require.NoError(t, err)
	for _, op := range all[3:] {
		require.NoError(t, second.Append(ctx, op))
	}
	require.NoError(t, second.Close())

	third, err := journal.OpenFile(path)
	require.NoError(t, err)
	defer third.Close()
	assert.Equal(t, all, third.Operations())
}

func TestFileLog_OneRecordPerLine(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "upload.log")

	log, err := journal.OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, log.Append(ctx, ops.Started{UploadID: "U1"}))
	require.NoError(t, log.Append(ctx, ops.Aborted{}))
	require.NoError(t, log.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := splitLines(data)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"op":"started"`)
	assert.Contains(t, lines[0], `"upload_id":"U1"`)
	assert.Contains(t, lines[1], `"op":"aborted"`)
}

func TestFileLog_CorruptRecordFailsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.log")
	content := `{"op":"started","data":{"upload_id":"U1"},"ts":"2024-01-01T00:00:00Z"}
{"op":"uploaded_part","data":{"index":0,
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := journal.OpenFile(path)

	var loadErr *journal.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, 2, loadErr.Record)
	assert.Equal(t, path, loadErr.Path)
}

func TestFileLog_UnknownOperationFailsOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.log")
	require.NoError(t, os.WriteFile(path, []byte(`{"op":"rewound","data":{}}`+"\n"), 0o644))

	_, err := journal.OpenFile(path)

	var loadErr *journal.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, 1, loadErr.Record)
}

func TestFileLog_BlankLinesAreSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.log")
	content := "\n" + `{"op":"started","data":{"upload_id":"U1"}}` + "\n\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	log, err := journal.OpenFile(path)
	require.NoError(t, err)
	defer log.Close()

	assert.Equal(t, []ops.Operation{ops.Started{UploadID: "U1"}}, log.Operations())
}

func TestFileLog_UnterminatedLastRecord(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "upload.log")
	require.NoError(t, os.WriteFile(path, []byte(`{"op":"started","data":{"upload_id":"U1"}}`), 0o644))

	log, err := journal.OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, log.Append(ctx, ops.UploadedPart{Index: 0, ETag: "e1"}))
	require.NoError(t, log.Close())

	reopened, err := journal.OpenFile(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, []ops.Operation{
		ops.Started{UploadID: "U1"},
		ops.UploadedPart{Index: 0, ETag: "e1"},
	}, reopened.Operations())
}

func TestFileLog_AppendNil(t *testing.T) {
	log, err := journal.OpenFile(filepath.Join(t.TempDir(), "upload.log"))
	require.NoError(t, err)
	defer log.Close()

	var appendErr *journal.AppendError
	assert.ErrorAs(t, log.Append(context.Background(), nil), &appendErr)
	assert.Empty(t, log.Operations())
}

func TestFileLog_AppendAfterCloseFails(t *testing.T) {
	log, err := journal.OpenFile(filepath.Join(t.TempDir(), "upload.log"))
	require.NoError(t, err)
	require.NoError(t, log.Close())

	err = log.Append(context.Background(), ops.Aborted{})

	var appendErr *journal.AppendError
	require.ErrorAs(t, err, &appendErr)
	assert.Equal(t, ops.KindAborted, appendErr.Kind)
	assert.Empty(t, log.Operations())
}

func TestOpen_Backends(t *testing.T) {
	dir := t.TempDir()

	fileLog, err := journal.Open(journal.BackendFile, filepath.Join(dir, "upload.log"))
	require.NoError(t, err)
	assert.IsType(t, &journal.FileLog{}, fileLog)
	require.NoError(t, fileLog.Close())

	sqliteLog, err := journal.Open(journal.BackendSQLite, filepath.Join(dir, "upload.db"))
	require.NoError(t, err)
	assert.IsType(t, &journal.SQLiteLog{}, sqliteLog)
	require.NoError(t, sqliteLog.Close())

	_, err = journal.Open("tape", filepath.Join(dir, "upload.tape"))
	var loadErr *journal.LoadError
	assert.ErrorAs(t, err, &loadErr)
}

func splitLines(data []byte) []string {
	var lines []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, string(data[start:i]))
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, string(data[start:]))
	}
	return lines
}
