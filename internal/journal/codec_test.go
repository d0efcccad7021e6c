package journal_test

import (
	"testing"
	"time"

	"walupload/internal/journal"
	"walupload/internal/ops"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalLine_SelfDescribing(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	line, err := journal.MarshalLine(ops.FailedPart{Index: 2, Attempt: 1, Msg: "timeout"}, at)
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"op":"failed_part","data":{"index":2,"attempt":1,"msg":"timeout"},"ts":"2024-05-01T12:00:00Z"}`,
		string(line[:len(line)-1]))
	assert.Equal(t, byte('\n'), line[len(line)-1])
}

func TestUnmarshalLine_MissingOperation(t *testing.T) {
	_, err := journal.UnmarshalLine([]byte(`{"data":{}}`))

	assert.Error(t, err)
}

func TestDecode_EmptyDataYieldsZeroValue(t *testing.T) {
	op, err := journal.Decode(journal.Record{Op: ops.KindCompleted})

	require.NoError(t, err)
	assert.Equal(t, ops.Completed{}, op)
}
