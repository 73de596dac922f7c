package committees

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestShredReconstructionThreshold tests computing the number of data shreds
// needed to rebuild a block from n shreds.
func TestShredReconstructionThreshold(t *testing.T) {
	assert.Equal(t, 0, ShredReconstructionThreshold(0))
	assert.Equal(t, 1, ShredReconstructionThreshold(1))
	assert.Equal(t, 3, ShredReconstructionThreshold(4))
	assert.Equal(t, 7, ShredReconstructionThreshold(10))

	for n := 1; n <= 302; n++ {
		k := ShredReconstructionThreshold(n)
		assert.True(t, 3*k >= 2*n)
		assert.True(t, 3*(k-1) < 2*n)
		assert.LessOrEqual(t, k, n)
	}
}

// TestFinalizationThresholds tests the fast (80%) and slow (60%) stake thresholds.
func TestFinalizationThresholds(t *testing.T) {
	for total := uint64(1); total <= 1000; total++ {
		fast := FastFinalizationThreshold(total)
		assert.True(t, fast*5 >= total*4)
		assert.True(t, (fast-1)*5 < total*4)

		slow := SlowFinalizationThreshold(total)
		assert.True(t, slow*5 >= total*3)
		assert.True(t, (slow-1)*5 < total*3)

		assert.LessOrEqual(t, slow, fast)
	}
	assert.Equal(t, uint64(320), FastFinalizationThreshold(400))
	assert.Equal(t, uint64(3), SlowFinalizationThreshold(4))
}

func TestByzantineStakeBound(t *testing.T) {
	assert.Equal(t, uint64(20), ByzantineStakeBound(100))
	assert.Equal(t, uint64(1), ByzantineStakeBound(4))
}
