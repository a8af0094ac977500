package tektronix

// ConstraintQuery describes the waveform whose limits are wanted.
// Zero values mean "not given".
type ConstraintQuery struct {
	Function Function

	// WaveformLength is the record length of an arbitrary waveform
	WaveformLength int

	Frequency float64

	// OutputPath selects the analog path of an AWG, empty for the series default
	OutputPath OutputPath

	// Load is the expected load of an AFG, HighZ if empty
	Load LoadImpedance
}

// Constraints are the limits resolved for one ConstraintQuery.  The pointer
// fields are nil when the function has no such parameter.
type Constraints struct {
	Amplitude  Bounds `json:"amplitude"`
	Offset     Bounds `json:"offset"`
	Frequency  Bounds `json:"frequency"`
	SampleRate Bounds `json:"sampleRate"`

	SquareDutyCycle *Bounds `json:"squareDutyCycle,omitempty"`
	RampSymmetry    *Bounds `json:"rampSymmetry,omitempty"`
}

// ConstraintPolicy resolves the limits of one model
type ConstraintPolicy interface {
	Constraints(q ConstraintQuery) (Constraints, error)
}

// PolicyFor returns the constraint policy of a model.  opts is the *OPT?
// string, which only AWGs consult.
func PolicyFor(info ModelInfo, opts string) (ConstraintPolicy, error) {
	switch info.Series {
	case SeriesAFG3K, SeriesAFG3KB, SeriesAFG3KC:
		return afg3kPolicy{info: info}, nil
	case SeriesAFG31K:
		return afg31kPolicy{info: info}, nil
	case SeriesAWG5200:
		return newAWGPolicy(info, opts, awg5200Limits)
	case SeriesAWG70KA, SeriesAWG70KB:
		return newAWGPolicy(info, opts, awg70kLimits)
	case SeriesAWG7K, SeriesAWG7KB, SeriesAWG7KC:
		return newAWGPolicy(info, opts, awg7kLimits)
	case SeriesAWG5K, SeriesAWG5KB, SeriesAWG5KC:
		return newAWGPolicy(info, opts, awg5kLimits)
	}
	return nil, domainErrorf("no constraint policy for series %s", info.Series)
}

func loadMultiplier(l LoadImpedance) float64 {
	if l == Fifty {
		return 0.5
	}
	return 1
}

// extended fills the function specific ranges of an AFG
func extended(c *Constraints, fn AFGFunction) {
	switch fn {
	case AFGSquare, AFGPulse:
		c.SquareDutyCycle = ptr(Bounds{Lower: 10, Upper: 90})
	case AFGRamp:
		c.RampSymmetry = ptr(Bounds{Lower: 0, Upper: 100})
	}
}

func afgFunction(f Function) (AFGFunction, error) {
	if f == nil {
		return 0, domainErrorf("AFGs must have a waveform defined.")
	}
	fn, ok := f.(AFGFunction)
	if !ok || fn.Token() == "" {
		return 0, domainErrorf("%s is not a function of the AFG series", f)
	}
	return fn, nil
}

const (
	afgFreqBase = 10.0e6

	// records shorter than this play at the fast sample rate
	afgShortRecord = 16 * 1024
)

type afg3kPolicy struct {
	info ModelInfo
}

// multipliers returns the square and "everything else" frequency multipliers
func (p afg3kPolicy) multipliers() (square, other float64) {
	square, other = 0.5, 0.01
	if p.info.Series == SeriesAFG3KC {
		if p.info.Code == "02" {
			square = 1.0
		}
		if p.info.Code == "05" {
			other = 0.016
		}
	}
	return square, other
}

func (p afg3kPolicy) Constraints(q ConstraintQuery) (Constraints, error) {
	fn, err := afgFunction(q.Function)
	if err != nil {
		return Constraints{}, err
	}
	var (
		code    = p.info.Code
		load    = loadMultiplier(q.Load)
		lowMult = 1.0
		upMult  = 1.0
		offMult = 1.0
	)
	switch code {
	case "02", "05":
		lowMult, upMult, offMult = 0.5, 0.5, 0.5
	case "10", "15":
		upMult, offMult = 0.5, 0.5
	case "25":
		lowMult, upMult, offMult = 2.5, 0.25, 0.25
	}

	srate := 250.0e6
	switch code {
	case "05", "10", "15", "25":
		if q.WaveformLength > 0 && q.WaveformLength < afgShortRecord {
			// the upper amplitude multiplier tracks the fast sample rate
			srate = 0.5e9 / upMult
		}
	}
	if code == "15" || code == "25" {
		if q.Frequency == 0 || q.Frequency > 50.0e6/upMult {
			upMult *= 0.8
		}
	}

	modelMult := 2.5
	if code != "02" {
		modelMult = float64(atoi(code))
		if modelMult > 24 {
			modelMult = 24
		}
	}
	square, other := p.multipliers()
	var freq Bounds
	switch fn {
	case AFGSin:
		freq = Bounds{1.0e-6, afgFreqBase * modelMult}
	case AFGArbitrary, AFGPulse, AFGSquare:
		freq = Bounds{1.0e-3, afgFreqBase * modelMult * square}
	default:
		freq = Bounds{1.0e-6, afgFreqBase * modelMult * other}
	}

	c := Constraints{
		Amplitude:  Bounds{40.0e-3 * lowMult * load, 40.0 * upMult * load},
		Offset:     NewBounds(-20.0*offMult*load, 20.0*offMult*load),
		Frequency:  freq,
		SampleRate: Bounds{srate, srate},
	}
	extended(&c, fn)
	return c, nil
}

type afg31kPolicy struct {
	info ModelInfo
}

func (p afg31kPolicy) Constraints(q ConstraintQuery) (Constraints, error) {
	fn, err := afgFunction(q.Function)
	if err != nil {
		return Constraints{}, err
	}
	code := p.info.Code
	load := loadMultiplier(q.Load)
	f := q.Frequency

	var upper, offset float64
	switch code {
	case "02", "05", "10":
		switch {
		case f > 0 && f <= 60.0e6:
			upper = 20
		case f > 0 && f <= 80.0e6:
			upper = 16
		default:
			upper = 12
		}
		offset = 10
	default:
		upper = 8
		if f > 0 && f <= 200.0e6 {
			upper = 10
		}
		offset = 5
	}

	modelMult := 2.5
	if code != "02" {
		modelMult = float64(atoi(code))
	}

	srate := 250.0e6
	if q.WaveformLength > 0 && q.WaveformLength < afgShortRecord {
		switch code {
		case "05", "10":
			srate = 1.0e9
		case "15", "25":
			srate = 2.0e9
		}
	}

	square := 0.8
	if code == "25" {
		square = 0.64
	}
	other := 0.01
	switch code {
	case "02":
		other = 0.025
	case "05":
		other = 0.016
	}
	const arb = 0.5

	var high float64
	switch fn {
	case AFGSin:
		high = modelMult * afgFreqBase
	case AFGArbitrary:
		high = modelMult * arb * afgFreqBase
	case AFGPulse, AFGSquare:
		high = modelMult * square * afgFreqBase
	default:
		high = modelMult * other * afgFreqBase
	}

	c := Constraints{
		Amplitude:  Bounds{2.0e-3 * load, upper * load},
		Offset:     NewBounds(-offset*load, offset*load),
		Frequency:  Bounds{1.0e-6, high},
		SampleRate: Bounds{srate, srate},
	}
	extended(&c, fn)
	return c, nil
}
