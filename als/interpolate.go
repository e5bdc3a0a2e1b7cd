package als

import "math"

// Interpolate maps x2 through the line (x1,y1)-(x3,y3):
//
//	y2 = (x2-x1)(y3-y1)/(x3-x1) + y1
//
// A degenerate curve (x1 == x3) applies no calibration and returns x2.
// Lux can't be negative, so the result is clamped to [0, MaxUint32].
func Interpolate(x1 int32, x2 int64, x3 int32, y1 int32, y3 int32) uint32 {
	divisor := int64(x3) - int64(x1)
	if divisor == 0 {
		return clampU32(x2)
	}
	dividend := (x2 - int64(x1)) * (int64(y3) - int64(y1))
	return clampU32(dividend/divisor + int64(y1))
}

func clampU32(v int64) uint32 {
	if v < 0 {
		return 0
	}
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}
