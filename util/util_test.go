package util_test

import (
	"fmt"
	"testing"

	"github.com/nasa-jpl/tekgen/util"
)

func ExampleFormatFloat() {
	fmt.Println(util.FormatFloat(36e6))
	fmt.Println(util.FormatFloat(0.25))
	fmt.Println(util.FormatFloat(1e-6))
	// Output:
	// 36000000
	// 0.25
	// 1E-06
}

func TestGetBit(t *testing.T) {
	var b byte = 0x24 // 0010 0100
	for i := uint(0); i < 8; i++ {
		expected := i == 2 || i == 5
		if got := util.GetBit(b, i); got != expected {
			t.Errorf("bit %d: expected %v got %v", i, expected, got)
		}
	}
}

func TestRoundTo(t *testing.T) {
	cases := []struct {
		in, out float64
		digits  int
	}{
		{36000004, 36000000, -1},
		{1.26, 1.3, 1},
		{99.5, 100, 0},
	}
	for _, c := range cases {
		if got := util.RoundTo(c.in, c.digits); !util.IsClose(got, c.out, 1e-9) {
			t.Errorf("RoundTo(%v, %d): expected %v got %v", c.in, c.digits, c.out, got)
		}
	}
}
