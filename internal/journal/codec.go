package journal

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"walupload/internal/ops"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is the stored form of one operation. Op names the variant and Data
// holds its fields.
type Record struct {
	Op   ops.Kind            `json:"op"`
	Data jsoniter.RawMessage `json:"data"`
	At   time.Time           `json:"ts"`
}

// Encode converts op into a record stamped with at.
func Encode(op ops.Operation, at time.Time) (Record, error) {
	if op == nil {
		return Record{}, fmt.Errorf("nil operation")
	}
	data, err := json.Marshal(op)
	if err != nil {
		return Record{}, fmt.Errorf("marshal %s: %w", op.Kind(), err)
	}
	return Record{Op: op.Kind(), Data: data, At: at.UTC()}, nil
}

// Decode converts a record back into its operation.
func Decode(rec Record) (ops.Operation, error) {
	switch rec.Op {
	case ops.KindConfiguredParts:
		return decodeAs[ops.ConfiguredParts](rec)
	case ops.KindStarted:
		return decodeAs[ops.Started](rec)
	case ops.KindFailedStart:
		return decodeAs[ops.FailedStart](rec)
	case ops.KindUploadedPart:
		return decodeAs[ops.UploadedPart](rec)
	case ops.KindFailedPart:
		return decodeAs[ops.FailedPart](rec)
	case ops.KindCompleted:
		return decodeAs[ops.Completed](rec)
	case ops.KindFailedComplete:
		return decodeAs[ops.FailedComplete](rec)
	case ops.KindAborted:
		return decodeAs[ops.Aborted](rec)
	case ops.KindFailedAbort:
		return decodeAs[ops.FailedAbort](rec)
	}
	return nil, fmt.Errorf("unknown operation %q", rec.Op)
}

func decodeAs[T ops.Operation](rec Record) (ops.Operation, error) {
	var op T
	if len(rec.Data) > 0 {
		if err := json.Unmarshal(rec.Data, &op); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", rec.Op, err)
		}
	}
	return op, nil
}

// MarshalLine encodes op as one newline-terminated line.
func MarshalLine(op ops.Operation, at time.Time) ([]byte, error) {
	rec, err := Encode(op, at)
	if err != nil {
		return nil, err
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return append(line, '\n'), nil
}

// UnmarshalLine decodes one line produced by MarshalLine.
func UnmarshalLine(line []byte) (ops.Operation, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	if rec.Op == "" {
		return nil, fmt.Errorf("record has no operation")
	}
	return Decode(rec)
}
