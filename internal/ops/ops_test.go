package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKinds_CoverEveryVariant(t *testing.T) {
	variants := []Operation{
		ConfiguredParts{}, Started{}, FailedStart{}, UploadedPart{}, FailedPart{},
		Completed{}, FailedComplete{}, Aborted{}, FailedAbort{},
	}

	var kinds []Kind
	for _, op := range variants {
		kinds = append(kinds, op.Kind())
	}
	assert.Equal(t, Kinds, kinds)
}

func TestPart_Uploaded(t *testing.T) {
	p := NewPart(3, "chunks/003")
	assert.False(t, p.Uploaded())
	assert.Equal(t, 3, p.Number)

	p.ETag = "e3"
	assert.True(t, p.Uploaded())
}
