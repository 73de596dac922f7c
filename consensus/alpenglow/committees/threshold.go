package committees

// ShredReconstructionThreshold returns the number of data shreds K required to
// reconstruct a block erasure-coded into n shreds: the smallest integer with
// 2n/3 <= K, i.e. Ceil(2n/3).
func ShredReconstructionThreshold(n int) int {
	if n <= 0 {
		return 0
	}
	return (2*n + 2) / 3
}

// FastFinalizationThreshold returns the stake minimally required for a fast
// finalization certificate: Ceil(4 * totalStake / 5), i.e. 80%.
func FastFinalizationThreshold(totalStake uint64) uint64 {
	return ceilFraction(totalStake, 4, 5)
}

// SlowFinalizationThreshold returns the stake minimally required for a slow
// (two-round) finalization certificate and for a skip certificate: Ceil(3 * totalStake / 5), i.e. 60%.
func SlowFinalizationThreshold(totalStake uint64) uint64 {
	return ceilFraction(totalStake, 3, 5)
}

// ByzantineStakeBound returns the largest Byzantine stake the protocol
// tolerates: strictly less than 20% of totalStake.
func ByzantineStakeBound(totalStake uint64) uint64 {
	// smallest integer b with totalStake/5 <= b; Byzantine stake must stay below it
	return ceilFraction(totalStake, 1, 5)
}

// ceilFraction computes Ceil(total * num / den) without overflowing for
// realistic stake totals.
func ceilFraction(total, num, den uint64) uint64 {
	q := total / den
	r := total % den
	res := q * num
	// remainder contributes Ceil(r*num/den), r < den keeps r*num small
	res += (r*num + den - 1) / den
	return res
}
