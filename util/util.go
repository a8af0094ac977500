// Package util contains misc internal utilities.
package util

import (
	"math"
	"strconv"
)

// GetBit returns the value of a given bit in a byte
func GetBit(b byte, bitIndex uint) bool {
	return b&(1<<bitIndex) != 0
}

// FormatFloat renders f the way SCPI instruments read it back.
// Integral values are written without an exponent (36000000, not 3.6E+07),
// everything else in the shortest %G form.
func FormatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'G', -1, 64)
}

// IsClose returns true if |a-b| <= tol
func IsClose(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// RoundTo rounds x to the given number of decimal digits; negative digits
// round to the left of the decimal point, RoundTo(1234, -1) == 1230
func RoundTo(x float64, digits int) float64 {
	if digits < 0 {
		p := math.Pow(10, float64(-digits))
		return math.RoundToEven(x/p) * p
	}
	p := math.Pow(10, float64(digits))
	return math.RoundToEven(x*p) / p
}
