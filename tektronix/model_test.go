package tektronix_test

import (
	"fmt"
	"testing"

	"github.com/nasa-jpl/tekgen/tektronix"
)

func ExampleParseModel() {
	info, _ := tektronix.ParseModel("afg31252")
	fmt.Println(info.Series, info.Code, info.Channels)
	// Output: AFG31K 25 2
}

func TestParseModel(t *testing.T) {
	cases := []struct {
		model    string
		series   tektronix.Series
		code     string
		channels int
	}{
		{"AFG3011C", tektronix.SeriesAFG3KC, "01", 1},
		{"AFG3252", tektronix.SeriesAFG3K, "25", 2},
		{"AFG3102B", tektronix.SeriesAFG3KB, "10", 2},
		{"AFG3151C", tektronix.SeriesAFG3KC, "15", 1},
		{"AFG31021", tektronix.SeriesAFG31K, "02", 1},
		{"AFG31152", tektronix.SeriesAFG31K, "15", 2},
		{"AWG5204", tektronix.SeriesAWG5200, "", 4},
		{"AWG70002A", tektronix.SeriesAWG70KA, "", 2},
		{"AWG70001B", tektronix.SeriesAWG70KB, "", 1},
		{"AWG7122C", tektronix.SeriesAWG7KC, "12", 2},
		{"AWG7051", tektronix.SeriesAWG7K, "05", 1},
		{"AWG5014C", tektronix.SeriesAWG5KC, "1", 4},
		{" awg5002 ", tektronix.SeriesAWG5K, "0", 2},
	}
	for _, c := range cases {
		info, err := tektronix.ParseModel(c.model)
		if err != nil {
			t.Errorf("%s: %v", c.model, err)
			continue
		}
		if info.Series != c.series || info.Code != c.code || info.Channels != c.channels {
			t.Errorf("%s: expected %s/%s/%d got %s/%s/%d", c.model,
				c.series, c.code, c.channels, info.Series, info.Code, info.Channels)
		}
	}
}

func TestParseModelRejectsUnknown(t *testing.T) {
	for _, m := range []string{"", "MSO58", "AFG1022", "AWG5200", "AFG31", "AWG70002C"} {
		if _, err := tektronix.ParseModel(m); !tektronix.IsDomainError(err) {
			t.Errorf("%q: expected a domain error got %v", m, err)
		}
	}
}

func TestConstantsFor(t *testing.T) {
	c := tektronix.ConstantsFor(tektronix.SeriesAWG7KB)
	if c.MemoryMaxRecordLength != 32400000 || c.MemoryMinRecordLength != 2 || c.MemoryPageSize != 1 {
		t.Errorf("expected 1/32400000/2 got %+v", c)
	}
	if len(c.Functions) != len(tektronix.AWGFunctions()) {
		t.Errorf("expected the AWG functions got %v", c.Functions)
	}
	c = tektronix.ConstantsFor(tektronix.SeriesAFG31K)
	if c.MemoryPageSize != 2 || c.MemoryMaxRecordLength != 131072 {
		t.Errorf("expected 2/131072 got %+v", c)
	}
}

func TestParseFunction(t *testing.T) {
	f, err := tektronix.ParseFunction(tektronix.FamilyAFG, "squ")
	if err != nil || f != tektronix.AFGSquare {
		t.Errorf("expected SQUARE got %v, %v", f, err)
	}
	f, err = tektronix.ParseFunction(tektronix.FamilyAWG, "sine")
	if err != nil || f != tektronix.AWGSin {
		t.Errorf("expected SIN got %v, %v", f, err)
	}
	if f, err = tektronix.ParseFunction(tektronix.FamilyAWG, "PULSE"); err == nil || f != nil {
		t.Errorf("expected PULSE to be rejected for an AWG, got %v", f)
	}
	if tektronix.AFGArbitrary.Token() != "EMEM" {
		t.Errorf("expected EMEM got %s", tektronix.AFGArbitrary.Token())
	}
}

func TestParseOutputPath(t *testing.T) {
	cases := map[string]tektronix.OutputPath{
		"0":           tektronix.PathDCA,
		"1":           tektronix.PathDIR,
		"dchv":        tektronix.PathDCHV,
		"ACAmplified": tektronix.PathACAmplified,
		"":            "",
	}
	for in, want := range cases {
		got, err := tektronix.ParseOutputPath(in)
		if err != nil || got != want {
			t.Errorf("%q: expected %s got %s (%v)", in, want, got, err)
		}
	}
	if _, err := tektronix.ParseOutputPath("AC"); err == nil {
		t.Error("expected AC to be rejected")
	}
}

func TestBounds(t *testing.T) {
	b := tektronix.NewBounds(5, -5)
	if b.Lower != -5 || b.Upper != 5 {
		t.Errorf("expected [-5, 5] got %s", b)
	}
	if !b.Contains(5) || !b.Contains(-5) || b.Contains(5.1) {
		t.Error("expected inclusive containment")
	}
	f := tektronix.Bounds{Lower: 300, Upper: 5e9}.Over(tektronix.Bounds{Lower: 10, Upper: 3600})
	if f.Lower != 300./3600 || f.Upper != 5e8 {
		t.Errorf("expected [0.0833, 5e8] got %s", f)
	}
}

func TestFunctionOutOfRange(t *testing.T) {
	cases := []struct {
		f         tektronix.Function
		name, tok string
	}{
		{tektronix.AFGFunction(-1), "AFGFunction(-1)", ""},
		{tektronix.AFGFunction(99), "AFGFunction(99)", ""},
		{tektronix.AWGFunction(42), "AWGFunction(42)", ""},
		{tektronix.AFGSquare, "SQUARE", "SQU"},
	}
	for _, c := range cases {
		if c.f.String() != c.name || c.f.Token() != c.tok {
			t.Errorf("expected %s/%q got %s/%q", c.name, c.tok, c.f.String(), c.f.Token())
		}
	}
	info, _ := tektronix.ParseModel("AFG31252")
	p, _ := tektronix.PolicyFor(info, "")
	if _, err := p.Constraints(tektronix.ConstraintQuery{Function: tektronix.AFGFunction(99)}); !tektronix.IsDomainError(err) {
		t.Errorf("expected an unknown AFG function to be a domain error got %v", err)
	}
	info, _ = tektronix.ParseModel("AWG5014C")
	p, _ = tektronix.PolicyFor(info, "")
	if _, err := p.Constraints(tektronix.ConstraintQuery{Function: tektronix.AWGFunction(42)}); !tektronix.IsDomainError(err) {
		t.Errorf("expected an unknown AWG function to be a domain error got %v", err)
	}
}
