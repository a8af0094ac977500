package tektronix

import (
	"strconv"
)

// the DC record plays at a fixed helper rate
const dcSampleRate = 15.0e6

var predefinedLengths = map[AWGFunction][]int{
	AWGSin:   {3600, 1000, 960, 360, 100, 36, 10},
	AWGClock: {960},
}

var defaultPredefinedLengths = []int{1000, 960, 100, 10}

// SelectPredefined picks the factory waveform that plays fn at frequency,
// preferring the longest record whose sample rate the policy allows.  A ramp
// with a symmetry of exactly 50 is the Triangle record.
func SelectPredefined(p ConstraintPolicy, frequency float64, fn AWGFunction, symmetry float64, path OutputPath) (name string, sampleRate float64, err error) {
	if fn == AWGRamp && symmetry == 50 {
		fn = AWGTriangle
	}
	if fn == AWGDC {
		return "*DC", dcSampleRate, nil
	}
	c, err := p.Constraints(ConstraintQuery{Function: fn, Frequency: frequency, OutputPath: path})
	if err != nil {
		return "", 0, err
	}
	lengths, ok := predefinedLengths[fn]
	if !ok {
		lengths = defaultPredefinedLengths
	}
	for _, l := range lengths {
		rate := frequency * float64(l)
		if c.SampleRate.Contains(rate) {
			return "*" + fn.title() + strconv.Itoa(l), rate, nil
		}
	}
	return "", 0, domainErrorf("Unable to generate %s waveform with provided frequency of %g Hz.", fn.title(), frequency)
}
