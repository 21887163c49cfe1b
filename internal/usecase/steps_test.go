package usecase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/forecast-frames/internal/domain"
)

func TestStepSelectors(t *testing.T) {
	tests := []struct {
		name     string
		selector StepSelector
		total    int
		want     []int
	}{
		{"dense range", StepRange{Start: 1, End: 4}, 10, []int{1, 2, 3}},
		{"range to end", StepRange{Start: 7, End: AllSteps}, 10, []int{7, 8, 9}},
		{"sparse list keeps order", StepList{1, 2, 3, 6, 9, 12, 15, 18}, 19, []int{1, 2, 3, 6, 9, 12, 15, 18}},
		{"stride", StepStride{K: 6}, 20, []int{0, 6, 12, 18}},
		{"stride with offset", StepStride{Start: 1, K: 3}, 8, []int{1, 4, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.selector.Select(tt.total)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStepSelectors_Errors(t *testing.T) {
	tests := []struct {
		name     string
		selector StepSelector
		oor      bool
	}{
		{"range past end", StepRange{Start: 0, End: 6}, true},
		{"range start past end", StepRange{Start: 5, End: AllSteps}, true},
		{"negative start", StepRange{Start: -1, End: 2}, true},
		{"empty range", StepRange{Start: 3, End: 3}, false},
		{"list index past end", StepList{0, 5}, true},
		{"empty list", StepList{}, false},
		{"zero stride", StepStride{K: 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.selector.Select(5)
			require.Error(t, err)
			var oor *domain.StepOutOfRangeError
			assert.Equal(t, tt.oor, errors.As(err, &oor))
		})
	}
}

func TestParseSteps(t *testing.T) {
	tests := []struct {
		expr string
		want StepSelector
	}{
		{"", StepRange{Start: 0, End: AllSteps}},
		{"all", StepRange{Start: 0, End: AllSteps}},
		{"3-9", StepRange{Start: 3, End: 9}},
		{"1-", StepRange{Start: 1, End: AllSteps}},
		{"1,2,3,6", StepList{1, 2, 3, 6}},
		{"0/3", StepStride{Start: 0, K: 3}},
		{"4", StepList{4}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseSteps(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"x", "1,b", "a-3", "2-z", "q/2", "0/w"} {
		_, err := ParseSteps(bad)
		assert.Error(t, err, bad)
	}
}
