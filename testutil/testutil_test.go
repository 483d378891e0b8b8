package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUniformRangeVector(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UniformRangeVector(32)

	assert.Len(t, v, 32)
	for _, x := range v {
		assert.GreaterOrEqual(t, x, -1.0)
		assert.Less(t, x, 1.0)
	}
}

func TestUnitVector(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UnitVector(32)

	var sum float64
	for _, x := range v {
		sum += x * x
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestSnapshotAndDrift(t *testing.T) {
	rng := NewRNG(4711)

	snap := rng.Snapshot([]string{"L1", "L2", "L3"}, 16)
	assert.Len(t, snap, 3)
	assert.Len(t, snap["L2"], 16)

	drifted := rng.Drift(snap, 0)
	assert.Equal(t, snap, drifted)

	drifted["L1"][0] += 1
	assert.NotEqual(t, snap["L1"][0], drifted["L1"][0], "Drift must copy")
}

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	v1 := rng.UniformRangeVector(10)

	rng.Reset()
	v2 := rng.UniformRangeVector(10)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(4711), rng.Seed())
}
