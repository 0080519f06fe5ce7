package evo

import (
	"fmt"
	"math"
	"math/rand"
)

// PickDistinctPair draws two different indices in [0, n) uniformly,
// resampling the second until it differs from the first.
func PickDistinctPair(rng *rand.Rand, n int) (int, int, error) {
	if rng == nil {
		return 0, 0, fmt.Errorf("random source is required")
	}
	if n < 2 {
		return 0, 0, fmt.Errorf("need at least 2 candidates for a distinct pair, got %d", n)
	}
	first := rng.Intn(n)
	for {
		second := rng.Intn(n)
		if second != first {
			return first, second, nil
		}
	}
}

// EliteCount is floor(fraction * size), raised to 2 so a distinct parent
// pair always exists and capped at size.
func EliteCount(fraction float64, size int) int {
	count := int(math.Floor(fraction*float64(size) + 1e-9))
	if count < 2 {
		count = 2
	}
	if count > size {
		count = size
	}
	return count
}
