package status

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, Success},
		{"status", NotFound, NotFound},
		{"wrapped status", fmt.Errorf("lookup: %w", Busy), Busy},
		{"deadline", fmt.Errorf("scan: %w", context.DeadlineExceeded), Timeout},
		{"cancelled", context.Canceled, Closed},
		{"other", errors.New("boom"), Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromError(tt.err))
		})
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "query parsing error", QueryParsingError.Error())
	assert.Equal(t, "unknown status", Status(99).String())
	assert.True(t, Success.OK())
	assert.False(t, Timeout.OK())
}
