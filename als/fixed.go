package als

import (
	"fmt"
	"math"
	"math/bits"
)

// Fixed is a two part fixed point value: Int + Frac/SCALE_SIGNIFICANCE
type Fixed struct {
	Int  int32 `yaml:"ival" json:"ival"`
	Frac int32 `yaml:"fval" json:"fval"`
}

// Build a Fixed from a float, rounding Frac to the nearest billionth
func FixedFromFloat(f float64) Fixed {
	i, frac := math.Modf(f)
	return Fixed{
		Int:  int32(i),
		Frac: int32(math.Round(frac * float64(SCALE_SIGNIFICANCE))),
	}
}

// Value in billionths
func (f Fixed) Nanos() int64 {
	return int64(f.Int)*SCALE_SIGNIFICANCE + int64(f.Frac)
}

func (f Fixed) Float64() float64 {
	return float64(f.Nanos()) / float64(SCALE_SIGNIFICANCE)
}

func (f Fixed) IsZero() bool {
	return f.Int == 0 && f.Frac == 0
}

// IsOne is the calibration mode sentinel
func (f Fixed) IsOne() bool {
	return f.Int == 1 && f.Frac == 0
}

func (f Fixed) String() string {
	return fmt.Sprintf("%.9f", f.Float64())
}

// MulDiv returns hw * num / den.
// The product is carried in 128 bits so a full scale raw value times a
// large resolution cannot overflow. A zero or negative den disables
// scaling (divides by one). The result saturates at math.MaxInt64.
func MulDiv(hw uint32, num, den Fixed) int64 {
	n := num.Nanos()
	if n <= 0 || hw == 0 {
		return 0
	}
	d := den.Nanos()
	if d <= 0 {
		d = SCALE_SIGNIFICANCE
	}
	hi, lo := bits.Mul64(uint64(hw), uint64(n))
	if hi >= uint64(d) {
		return math.MaxInt64
	}
	q, _ := bits.Div64(hi, lo, uint64(d))
	if q > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(q)
}
