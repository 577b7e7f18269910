package conv

import (
	"fmt"
	"math"
)

// IntToUint64 converts a non-negative int to uint64.
func IntToUint64(v int) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("conv: %d is negative", v)
	}
	return uint64(v), nil
}

// Uint64ToInt converts v to int, failing when it does not fit the platform int.
func Uint64ToInt(v uint64) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, fmt.Errorf("conv: %d overflows int", v)
	}
	return int(v), nil
}

// Uint64ToUint32 converts v to uint32, failing above math.MaxUint32.
func Uint64ToUint32(v uint64) (uint32, error) {
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("conv: %d overflows uint32", v)
	}
	return uint32(v), nil
}
