package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fitclass/internal/apperr"
)

func ts(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		want                       bool
	}{
		{"disjoint before", ts(9, 0), ts(10, 0), ts(11, 0), ts(12, 0), false},
		{"disjoint after", ts(11, 0), ts(12, 0), ts(9, 0), ts(10, 0), false},
		{"partial overlap", ts(9, 0), ts(10, 30), ts(10, 0), ts(11, 0), true},
		{"contained", ts(9, 0), ts(12, 0), ts(10, 0), ts(11, 0), true},
		{"containing", ts(10, 0), ts(11, 0), ts(9, 0), ts(12, 0), true},
		{"identical", ts(9, 0), ts(10, 0), ts(9, 0), ts(10, 0), true},
		// Half-open semantics: an interval ending exactly when the other
		// starts is back-to-back, not a conflict.
		{"touching boundary", ts(9, 0), ts(10, 0), ts(10, 0), ts(11, 0), false},
		{"touching boundary reversed", ts(10, 0), ts(11, 0), ts(9, 0), ts(10, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd))
		})
	}
}

func TestOverlapsIsSymmetric(t *testing.T) {
	a1, a2 := ts(9, 0), ts(10, 30)
	b1, b2 := ts(10, 0), ts(11, 0)

	assert.Equal(t, Overlaps(a1, a2, b1, b2), Overlaps(b1, b2, a1, a2))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(ts(9, 0), ts(10, 0)))

	err := Validate(ts(10, 0), ts(9, 0))
	assert.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.PolicyViolation))

	// Zero-length intervals are rejected too.
	err = Validate(ts(9, 0), ts(9, 0))
	assert.Error(t, err)
}
