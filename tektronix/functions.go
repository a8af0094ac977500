package tektronix

import (
	"strconv"
	"strings"
)

// Function is a waveform shape.  It is implemented only by AFGFunction and
// AWGFunction.
type Function interface {
	// Token is the word sent to the instrument
	Token() string

	// String is the name of the function, e.g. SQUARE
	String() string

	// Family reports which kind of generator the function belongs to
	Family() Family

	function()
}

// AFGFunction is a built-in waveform of the AFG series
type AFGFunction int

const (
	AFGSin AFGFunction = iota
	AFGSquare
	AFGPulse
	AFGRamp
	AFGPRNoise
	AFGDC
	AFGSinc
	AFGGaussian
	AFGLorentz
	AFGERise
	AFGEDecay
	AFGHaversine
	AFGArbitrary
)

var afgFunctions = [...]struct{ name, token string }{
	AFGSin:       {"SIN", "SIN"},
	AFGSquare:    {"SQUARE", "SQU"},
	AFGPulse:     {"PULSE", "PULS"},
	AFGRamp:      {"RAMP", "RAMP"},
	AFGPRNoise:   {"PRNOISE", "PRN"},
	AFGDC:        {"DC", "DC"},
	AFGSinc:      {"SINC", "SINC"},
	AFGGaussian:  {"GAUSSIAN", "GAUS"},
	AFGLorentz:   {"LORENTZ", "LOR"},
	AFGERise:     {"ERISE", "ERIS"},
	AFGEDecay:    {"EDECAY", "EDEC"},
	AFGHaversine: {"HAVERSINE", "HAV"},
	AFGArbitrary: {"ARBITRARY", "EMEM"},
}

func (f AFGFunction) Token() string {
	if f < 0 || int(f) >= len(afgFunctions) {
		return ""
	}
	return afgFunctions[f].token
}

func (f AFGFunction) String() string {
	if f < 0 || int(f) >= len(afgFunctions) {
		return "AFGFunction(" + strconv.Itoa(int(f)) + ")"
	}
	return afgFunctions[f].name
}

func (f AFGFunction) Family() Family { return FamilyAFG }
func (f AFGFunction) function()      {}

// AFGFunctions lists every AFG function in declaration order
func AFGFunctions() []Function {
	out := make([]Function, len(afgFunctions))
	for i := range afgFunctions {
		out[i] = AFGFunction(i)
	}
	return out
}

// AWGFunction is a waveform shape an AWG can play from its predefined set
type AWGFunction int

const (
	AWGSin AWGFunction = iota
	AWGClock
	AWGSquare
	AWGRamp
	AWGTriangle
	AWGDC
)

var awgFunctions = [...]struct{ name, token string }{
	AWGSin:      {"SIN", "SINE"},
	AWGClock:    {"CLOCK", "CLOCK"},
	AWGSquare:   {"SQUARE", "SQUARE"},
	AWGRamp:     {"RAMP", "RAMP"},
	AWGTriangle: {"TRIANGLE", "TRIANGLE"},
	AWGDC:       {"DC", "DC"},
}

func (f AWGFunction) Token() string {
	if f < 0 || int(f) >= len(awgFunctions) {
		return ""
	}
	return awgFunctions[f].token
}

func (f AWGFunction) String() string {
	if f < 0 || int(f) >= len(awgFunctions) {
		return "AWGFunction(" + strconv.Itoa(int(f)) + ")"
	}
	return awgFunctions[f].name
}

func (f AWGFunction) Family() Family { return FamilyAWG }
func (f AWGFunction) function()      {}

// title renders the token the way predefined waveform names spell it, Sine
func (f AWGFunction) title() string {
	t := strings.ToLower(f.Token())
	if t == "" {
		return ""
	}
	return strings.ToUpper(t[:1]) + t[1:]
}

// AWGFunctions lists every AWG function in declaration order
func AWGFunctions() []Function {
	out := make([]Function, len(awgFunctions))
	for i := range awgFunctions {
		out[i] = AWGFunction(i)
	}
	return out
}

// ParseAFGFunction accepts a function name or its token, in any case
func ParseAFGFunction(s string) (AFGFunction, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, f := range afgFunctions {
		if s == f.name || s == f.token {
			return AFGFunction(i), nil
		}
	}
	return 0, domainErrorf("%q is not an AFG function", s)
}

// ParseAWGFunction accepts a function name or its token, in any case
func ParseAWGFunction(s string) (AWGFunction, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, f := range awgFunctions {
		if s == f.name || s == f.token {
			return AWGFunction(i), nil
		}
	}
	return 0, domainErrorf("%q is not an AWG function", s)
}

// ParseFunction parses s as a function of the given family
func ParseFunction(fam Family, s string) (Function, error) {
	var (
		f   Function
		err error
	)
	if fam == FamilyAWG {
		f, err = ParseAWGFunction(s)
	} else {
		f, err = ParseAFGFunction(s)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}
