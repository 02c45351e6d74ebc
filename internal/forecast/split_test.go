package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainSize(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{n: 2, want: 1},
		{n: 3, want: 2},
		{n: 4, want: 3},
		{n: 5, want: 4},
		{n: 10, want: 8},
		{n: 11, want: 9},
		{n: 15, want: 12},
		{n: 20, want: 16},
		{n: 21, want: 17},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TrainSize(tt.n), "n=%d", tt.n)
	}
}

func TestSplitChronological(t *testing.T) {
	rows, err := NewFeatureBuilder().Build(buildSeries("Widget", 77, ramp, 0))
	require.NoError(t, err)
	n := len(rows)

	split := SplitChronological(rows)
	assert.Equal(t, n, len(split.Train)+len(split.Test))
	assert.Equal(t, n/5, len(split.Test))

	lastTrain := split.Train[len(split.Train)-1]
	for _, r := range split.Test {
		assert.Greater(t, r.Position, lastTrain.Position)
		assert.True(t, r.Date.After(lastTrain.Date))
	}

	seen := make(map[int]bool, n)
	for _, r := range split.Train {
		seen[r.Position] = true
	}
	for _, r := range split.Test {
		assert.False(t, seen[r.Position], "position %d in both halves", r.Position)
	}
}

func TestSplitKeepsTestNonEmpty(t *testing.T) {
	for n := MinFeatureRows; n <= 4; n++ {
		split := SplitChronological(make([]FeatureRow, n))
		assert.Len(t, split.Test, 1, "n=%d", n)
	}
}
