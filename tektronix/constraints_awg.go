package tektronix

import (
	"strings"
)

// awgLimits returns amplitude, offset and sample rate bounds of an AWG series
// for an output path.  path has already been defaulted and validated.
type awgLimits func(info ModelInfo, opts string, path OutputPath) (amp, off, srate Bounds, err error)

// awgRecordLengths are the record lengths of the predefined waveform of each function
var awgRecordLengths = map[AWGFunction]Bounds{
	AWGSin:      {10, 3600},
	AWGClock:    {960, 960},
	AWGSquare:   {10, 1000},
	AWGRamp:     {10, 1000},
	AWGTriangle: {10, 1000},
	AWGDC:       {1000, 1000},
}

type awgPolicy struct {
	info   ModelInfo
	opts   string
	limits awgLimits
}

// newAWGPolicy resolves the limits of the default output path once so an
// option string naming no known sample rate fails here rather than on the
// first request
func newAWGPolicy(info ModelInfo, opts string, limits awgLimits) (ConstraintPolicy, error) {
	path, err := pathFor(info, "")
	if err != nil {
		return nil, err
	}
	if _, _, _, err := limits(info, opts, path); err != nil {
		return nil, err
	}
	return awgPolicy{info: info, opts: opts, limits: limits}, nil
}

func (p awgPolicy) Constraints(q ConstraintQuery) (Constraints, error) {
	if (q.Function == nil) == (q.WaveformLength == 0) {
		return Constraints{}, domainErrorf("AWG Constraints require exclusively function or waveform_length.")
	}
	path, err := pathFor(p.info, q.OutputPath)
	if err != nil {
		return Constraints{}, err
	}
	amp, off, srate, err := p.limits(p.info, p.opts, path)
	if err != nil {
		return Constraints{}, err
	}
	var freq Bounds
	if q.Function != nil {
		fn, ok := q.Function.(AWGFunction)
		if !ok {
			return Constraints{}, domainErrorf("%s is not a function of the AWG series", q.Function)
		}
		lengths, ok := awgRecordLengths[fn]
		if !ok {
			return Constraints{}, domainErrorf("%s is not a function of the AWG series", q.Function)
		}
		freq = srate.Over(lengths)
	} else {
		l := float64(q.WaveformLength)
		freq = Bounds{srate.Lower / l, srate.Upper / l}
	}
	return Constraints{Amplitude: amp, Offset: off, Frequency: freq, SampleRate: srate}, nil
}

// pathFor applies the default output path of the series and rejects paths
// the series does not have
func pathFor(info ModelInfo, p OutputPath) (OutputPath, error) {
	var valid []OutputPath
	switch info.Series {
	case SeriesAWG5200:
		valid = []OutputPath{PathDCHB, PathDCHV, PathACDirect, PathACAmplified}
	case SeriesAWG70KA, SeriesAWG70KB:
		valid = []OutputPath{PathDIR, PathDCA}
	case SeriesAWG7K, SeriesAWG7KB, SeriesAWG7KC, SeriesAWG5K, SeriesAWG5KB, SeriesAWG5KC:
		valid = []OutputPath{PathDCA, PathDIR}
	default:
		if p == "" {
			return "", nil
		}
		return "", domainErrorf("%s is an invalid output signal path for %s.", p, info.Model)
	}
	if p == "" {
		return valid[0], nil
	}
	for _, v := range valid {
		if v == p {
			return p, nil
		}
	}
	return "", domainErrorf("%s is an invalid output signal path for %s.", p, info.Model)
}

func awg5200Limits(info ModelInfo, opts string, path OutputPath) (amp, off, srate Bounds, err error) {
	switch {
	case strings.Contains(opts, "DC") && path == PathDCHB:
		amp = Bounds{25.0e-3, 1.5}
	case path == PathDCHV:
		amp = Bounds{10.0e-3, 5.0}
	default:
		amp = Bounds{25.0e-3, 750.0e-3}
	}
	off = Bounds{-2.0, 2.0}
	// the option is the sample rate in hundreds of MS/s
	max := 50.0
	if strings.Contains(opts, "25") {
		max = 25.0
	} else if !strings.Contains(opts, "50") {
		return amp, off, srate, domainErrorf("%s options %q do not name a sample rate option (25 or 50)", info.Model, opts)
	}
	srate = Bounds{300.0, max * 100.0e6}
	return amp, off, srate, nil
}

var awg70kRates = []string{"50", "25", "16", "08"}

func awg70kLimits(info ModelInfo, opts string, path OutputPath) (amp, off, srate Bounds, err error) {
	if path == PathDCA {
		amp = Bounds{31.0e-3, 1.2}
		off = Bounds{-400.0e-3, 800.0e-3}
	} else {
		amp = Bounds{125.0e-3, 0.5}
		off = Bounds{0, 0}
	}
	// first option digit is the channel count, the next two are GS/s
	for _, r := range awg70kRates {
		if strings.Contains(opts, r) {
			srate = Bounds{1.5e3, float64(atoi(r)) * 1.0e9}
			return amp, off, srate, nil
		}
	}
	return amp, off, srate, domainErrorf("%s options %q do not name a sample rate option (%s)",
		info.Model, opts, strings.Join(awg70kRates, ", "))
}

// highBandwidth reports the 02 or 06 option of an AWG7000, which removes the
// amplifier and with it the offset
func highBandwidth(opts string) bool {
	return strings.Contains(opts, "02") || strings.Contains(opts, "06")
}

func awg7kLimits(info ModelInfo, opts string, path OutputPath) (amp, off, srate Bounds, err error) {
	switch {
	case highBandwidth(opts):
		amp = Bounds{500.0e-3, 1.0}
		off = Bounds{0, 0}
	case path == PathDIR:
		amp = Bounds{50.0e-3, 2.0}
		off = Bounds{0, 0}
	default:
		amp = Bounds{50.0e-3, 2.0}
		off = Bounds{-0.5, 0.5}
	}
	// AWG 7 xx(GS/s) x(channels)
	srate = Bounds{10.0e6, float64(atoi(info.Code)) * 1.0e9}
	return amp, off, srate, nil
}

func awg5kLimits(info ModelInfo, opts string, path OutputPath) (amp, off, srate Bounds, err error) {
	amp = Bounds{20.0e-3, 4.5}
	if path == PathDIR {
		off = Bounds{0, 0}
	} else {
		off = Bounds{-2.25, 2.25}
	}
	srate = Bounds{10.0e6, 600.0e6 + 600.0e6*float64(atoi(info.Code))}
	return amp, off, srate, nil
}
