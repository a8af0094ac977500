package tektronix

import (
	"fmt"
	"math"
)

// Bounds is an inclusive numeric interval.  Lower <= Upper always holds for
// values made with NewBounds.
type Bounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// NewBounds returns the interval spanning a and b in either order
func NewBounds(a, b float64) Bounds {
	if a > b {
		a, b = b, a
	}
	return Bounds{Lower: a, Upper: b}
}

// Contains returns true if Lower <= x <= Upper.  A relative slack of 1e-12
// absorbs float rounding in derived bounds.
func (b Bounds) Contains(x float64) bool {
	eps := 1e-12 * math.Max(math.Abs(b.Lower), math.Abs(b.Upper))
	return x >= b.Lower-eps && x <= b.Upper+eps
}

// Scale multiplies both ends by f
func (b Bounds) Scale(f float64) Bounds {
	return NewBounds(b.Lower*f, b.Upper*f)
}

// Over derives a frequency range from a sample rate range and a range of
// record lengths: the slowest frequency is the slowest rate over the longest
// record, the fastest is the fastest rate over the shortest record.
func (b Bounds) Over(lengths Bounds) Bounds {
	return Bounds{Lower: b.Lower / lengths.Upper, Upper: b.Upper / lengths.Lower}
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%g, %g]", b.Lower, b.Upper)
}

func ptr(b Bounds) *Bounds { return &b }
