package facematch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/face-attend/internal/faceencoder"
)

func TestDistance(t *testing.T) {
	a := faceencoder.Encoding{0, 0, 0}
	b := faceencoder.Encoding{3, 4, 0}
	assert.InDelta(t, 5.0, Distance(a, b), 1e-9)
	assert.Zero(t, Distance(a, a))
}

func TestDistanceInvalidInputs(t *testing.T) {
	assert.True(t, math.IsInf(Distance(nil, nil), 1))
	assert.True(t, math.IsInf(Distance(faceencoder.Encoding{1}, faceencoder.Encoding{1, 2}), 1))
}

func TestCompareAlignment(t *testing.T) {
	known := []faceencoder.Encoding{
		{0, 0},
		{10, 10},
		{0.1, 0},
	}
	probe := faceencoder.Encoding{0, 0}

	results := Compare(known, probe, 0.5)
	assert.Equal(t, []bool{true, false, true}, results)
}

func TestBestMatchPicksMinimumDistance(t *testing.T) {
	known := []faceencoder.Encoding{
		{0.5, 0},  // distance 0.5, within tolerance but not closest
		{10, 10},  // far off
		{0.1, 0},  // closest
	}
	probe := faceencoder.Encoding{0, 0}

	idx, dist, ok := BestMatch(known, probe, DefaultTolerance)
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.InDelta(t, 0.1, dist, 1e-9)
}

func TestBestMatchTieResolvesToEarliestIndex(t *testing.T) {
	known := []faceencoder.Encoding{
		{0.2, 0},
		{0.2, 0},
	}
	probe := faceencoder.Encoding{0, 0}

	idx, _, ok := BestMatch(known, probe, DefaultTolerance)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestBestMatchNoneWithinTolerance(t *testing.T) {
	known := []faceencoder.Encoding{{5, 5}, {7, 7}}
	probe := faceencoder.Encoding{0, 0}

	idx, _, ok := BestMatch(known, probe, DefaultTolerance)
	assert.False(t, ok)
	assert.Equal(t, -1, idx)
}

func TestBestMatchEmptySet(t *testing.T) {
	_, _, ok := BestMatch(nil, faceencoder.Encoding{1, 2}, DefaultTolerance)
	assert.False(t, ok)
}
