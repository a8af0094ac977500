package tektronix

import (
	"regexp"
	"strconv"
	"strings"
)

// Family is AFG or AWG
type Family string

const (
	FamilyAFG Family = "AFG"
	FamilyAWG Family = "AWG"
)

// Series is a product line sharing constraints and a command dialect
type Series string

const (
	SeriesAFG3K   Series = "AFG3K"
	SeriesAFG3KB  Series = "AFG3KB"
	SeriesAFG3KC  Series = "AFG3KC"
	SeriesAFG31K  Series = "AFG31K"
	SeriesAWG5200 Series = "AWG5200"
	SeriesAWG70KA Series = "AWG70KA"
	SeriesAWG70KB Series = "AWG70KB"
	SeriesAWG7K   Series = "AWG7K"
	SeriesAWG7KB  Series = "AWG7KB"
	SeriesAWG7KC  Series = "AWG7KC"
	SeriesAWG5K   Series = "AWG5K"
	SeriesAWG5KB  Series = "AWG5KB"
	SeriesAWG5KC  Series = "AWG5KC"
)

// Family returns the family of the series
func (s Series) Family() Family {
	if strings.HasPrefix(string(s), "AWG") {
		return FamilyAWG
	}
	return FamilyAFG
}

// ModelInfo is what the model number says about an instrument
type ModelInfo struct {
	// Model is the normalized model number, e.g. AFG31252
	Model string `json:"model"`

	Series Series `json:"series"`

	// Code is the model digits the constraint tables key on: the bandwidth
	// code of an AFG (25 for an AFG3252), the GS/s of an AWG7000 (12 for
	// an AWG7122C), the rate digit of an AWG5000 (1 for an AWG5012)
	Code string `json:"code"`

	// Variant is the trailing letter, B or C, if any
	Variant string `json:"variant"`

	Channels int `json:"channels"`
}

type modelRule struct {
	re *regexp.Regexp
	// build maps the submatches to a ModelInfo
	build func(m []string) ModelInfo
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

var modelRules = []modelRule{
	{regexp.MustCompile(`^AFG31(\d\d)(\d)$`), func(m []string) ModelInfo {
		return ModelInfo{Series: SeriesAFG31K, Code: m[1], Channels: atoi(m[2])}
	}},
	{regexp.MustCompile(`^AFG3(\d\d)(\d)([BC]?)$`), func(m []string) ModelInfo {
		s := SeriesAFG3K
		switch m[3] {
		case "B":
			s = SeriesAFG3KB
		case "C":
			s = SeriesAFG3KC
		}
		return ModelInfo{Series: s, Code: m[1], Channels: atoi(m[2]), Variant: m[3]}
	}},
	{regexp.MustCompile(`^AWG520(\d)$`), func(m []string) ModelInfo {
		return ModelInfo{Series: SeriesAWG5200, Channels: atoi(m[1])}
	}},
	{regexp.MustCompile(`^AWG7000(\d)([AB])$`), func(m []string) ModelInfo {
		s := SeriesAWG70KA
		if m[2] == "B" {
			s = SeriesAWG70KB
		}
		return ModelInfo{Series: s, Channels: atoi(m[1]), Variant: m[2]}
	}},
	{regexp.MustCompile(`^AWG7(\d\d)(\d)([BC]?)$`), func(m []string) ModelInfo {
		s := SeriesAWG7K
		switch m[3] {
		case "B":
			s = SeriesAWG7KB
		case "C":
			s = SeriesAWG7KC
		}
		return ModelInfo{Series: s, Code: m[1], Channels: atoi(m[2]), Variant: m[3]}
	}},
	{regexp.MustCompile(`^AWG50(\d)(\d)([BC]?)$`), func(m []string) ModelInfo {
		s := SeriesAWG5K
		switch m[3] {
		case "B":
			s = SeriesAWG5KB
		case "C":
			s = SeriesAWG5KC
		}
		return ModelInfo{Series: s, Code: m[1], Channels: atoi(m[2]), Variant: m[3]}
	}},
}

// ParseModel identifies the series of a model number such as AFG3252C or
// AWG70002A.  Case and surrounding whitespace are ignored.
func ParseModel(model string) (ModelInfo, error) {
	model = strings.ToUpper(strings.TrimSpace(model))
	for _, rule := range modelRules {
		m := rule.re.FindStringSubmatch(model)
		if m == nil {
			continue
		}
		info := rule.build(m)
		info.Model = model
		if info.Channels < 1 {
			return ModelInfo{}, domainErrorf("%s reports no channels", model)
		}
		return info, nil
	}
	return ModelInfo{}, domainErrorf("%q is not a supported Tektronix AFG or AWG model", model)
}

// SourceDeviceConstants are the fixed memory properties of a series
type SourceDeviceConstants struct {
	MemoryPageSize        int        `json:"memoryPageSize"`
	MemoryMaxRecordLength int        `json:"memoryMaxRecordLength"`
	MemoryMinRecordLength int        `json:"memoryMinRecordLength"`
	Functions             []Function `json:"-"`
}

var (
	afg3kConstants   = SourceDeviceConstants{2, 131072, 2, AFGFunctions()}
	afg31kConstants  = SourceDeviceConstants{2, 131072, 2, AFGFunctions()}
	awg5200Constants = SourceDeviceConstants{1, 16200000, 1, AWGFunctions()}
	awg70kConstants  = SourceDeviceConstants{1, 2000000000, 1, AWGFunctions()}
	awg7kConstants   = SourceDeviceConstants{1, 32400000, 2, AWGFunctions()}
	awg5kConstants   = SourceDeviceConstants{1, 16200000, 1, AWGFunctions()}
)

// ConstantsFor returns the device constants of a series
func ConstantsFor(s Series) SourceDeviceConstants {
	switch s {
	case SeriesAFG3K, SeriesAFG3KB, SeriesAFG3KC:
		return afg3kConstants
	case SeriesAFG31K:
		return afg31kConstants
	case SeriesAWG5200:
		return awg5200Constants
	case SeriesAWG70KA, SeriesAWG70KB:
		return awg70kConstants
	case SeriesAWG7K, SeriesAWG7KB, SeriesAWG7KC:
		return awg7kConstants
	default:
		return awg5kConstants
	}
}

// OutputPath is the analog path a channel is routed through
type OutputPath string

const (
	// DCA is the DC amplified path of the AWG5000/7000/70000
	PathDCA OutputPath = "DCA"
	// DIR is the direct, unamplified path
	PathDIR OutputPath = "DIR"

	PathDCHB        OutputPath = "DCHB"
	PathDCHV        OutputPath = "DCHV"
	PathACDirect    OutputPath = "ACDirect"
	PathACAmplified OutputPath = "ACAmplified"
)

// ParseOutputPath normalizes a path name.  "0" and "1" are accepted as the
// AWGCONTROL:DOUTPUT states of DCA and DIR.  The empty string is returned
// unchanged and means the series default.
func ParseOutputPath(s string) (OutputPath, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "0", "DCA":
		return PathDCA, nil
	case "1", "DIR":
		return PathDIR, nil
	case "DCHB":
		return PathDCHB, nil
	case "DCHV":
		return PathDCHV, nil
	case "ACDIRECT":
		return PathACDirect, nil
	case "ACAMPLIFIED":
		return PathACAmplified, nil
	}
	return "", domainErrorf("%q is not an output signal path", s)
}

// LoadImpedance is the load the generator expects to drive
type LoadImpedance string

const (
	HighZ LoadImpedance = "HIGHZ"
	Fifty LoadImpedance = "FIFTY"
)

// ParseLoadImpedance accepts HIGHZ, FIFTY, INFINITY or 50
func ParseLoadImpedance(s string) (LoadImpedance, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "HIGHZ", "INFINITY", "INF":
		return HighZ, nil
	case "FIFTY", "50":
		return Fifty, nil
	}
	return "", domainErrorf("%q is not a load impedance, use HIGHZ or FIFTY", s)
}

// Polarity of an AFG output
type Polarity string

const (
	Normal   Polarity = "NORMAL"
	Inverted Polarity = "INVERTED"
)

func (p Polarity) token() string {
	if p == Inverted {
		return "INV"
	}
	return "NORM"
}
