package engines

// WeightThresholdToBuildQC returns the smallest weight t with t > 2/3 of totalWeight,
// i.e. 2*floor(total/3) + max(1, total mod 3).
func WeightThresholdToBuildQC(totalWeight uint64) uint64 {
	floorOneThird := totalWeight / 3
	res := 2 * floorOneThird
	divRemainder := totalWeight % 3
	if divRemainder <= 1 {
		res = res + 1
	} else {
		res += divRemainder
	}
	return res
}
