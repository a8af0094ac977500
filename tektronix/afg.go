package tektronix

import (
	"strconv"

	"github.com/gotmc/query"
	"github.com/nasa-jpl/tekgen/scpi"
	"github.com/nasa-jpl/tekgen/util"
)

const maxAFGBurst = 1000000

// settable offset and amplitude readbacks are rounded by the AFG
const afgVoltageTolerance = 0.01

func (d *Device) validateAFG(req Request, fn AFGFunction) error {
	if req.Burst < 0 || req.Burst > maxAFGBurst {
		return domainErrorf("%d is an invalid burst value. Burst must be within [1, %d] or 0.", req.Burst, maxAFGBurst)
	}
	c, err := d.policy.Constraints(ConstraintQuery{Function: fn, Frequency: req.Frequency, Load: req.Termination})
	if err != nil {
		return err
	}
	if fn != AFGDC {
		if err := checkRange("frequency", req.Frequency, c.Frequency); err != nil {
			return err
		}
		if err := checkRange("amplitude", req.Amplitude, c.Amplitude); err != nil {
			return err
		}
	}
	if err := checkRange("offset", req.Offset, c.Offset); err != nil {
		return err
	}
	if c.SquareDutyCycle != nil && fn == AFGPulse {
		if err := checkRange("duty cycle", req.DutyCycle, *c.SquareDutyCycle); err != nil {
			return err
		}
	}
	if c.RampSymmetry != nil {
		if err := checkRange("symmetry", req.Symmetry, *c.RampSymmetry); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) generateAFG(req Request, chans []Channel, trigger bool) error {
	fn := req.Function.(AFGFunction)
	if req.Termination == "" {
		req.Termination = Fifty
	}
	if err := d.validateAFG(req, fn); err != nil {
		return err
	}
	for _, ch := range chans {
		n := strconv.Itoa(ch.Num)
		// off while the parameters change
		if err := d.t.SetAndCheck("OUTPUT"+n+":STATE", "0"); err != nil {
			return err
		}
		if err := d.configureAFG(ch, req, fn); err != nil {
			return err
		}
		if err := d.t.SetAndCheck("OUTPUT"+n+":STATE", "1"); err != nil {
			return err
		}
	}

	bursting := false
	for i := 1; i <= d.info.Channels; i++ {
		state, err := query.String(d.t, "SOURCE"+strconv.Itoa(i)+":BURST:STATE?")
		if err != nil {
			return err
		}
		if state == "1" {
			bursting = true
		}
	}
	switch {
	case req.Burst > 0:
		if trigger {
			if err := d.t.Write("*TRG"); err != nil {
				return err
			}
		}
	case d.info.Channels > 1 && fn != AFGDC && !bursting:
		// phase sync the channels
		if err := d.t.Write("SOURCE1:PHASE:INITIATE"); err != nil {
			return err
		}
	}
	return d.t.ExpectESR(0)
}

// configureAFG sets the waveform properties of one channel.  The amplitude is
// set after the termination since the AFG rescales it when the load changes.
func (d *Device) configureAFG(ch Channel, req Request, fn AFGFunction) error {
	n := strconv.Itoa(ch.Num)
	var err error
	if req.Termination == HighZ {
		err = d.t.Write("OUTPUT" + n + ":IMPEDANCE INFINITY")
	} else {
		err = d.t.SetAndCheck("OUTPUT"+n+":IMPEDANCE", "50")
	}
	if err != nil {
		return err
	}
	if _, err := d.t.SetIfNeeded(d.dialect.Frequency.For(ch), util.FormatFloat(req.Frequency)); err != nil {
		return err
	}
	if _, err := d.t.SetIfNeeded(d.dialect.Offset.For(ch), util.FormatFloat(req.Offset), scpi.Tolerance(afgVoltageTolerance)); err != nil {
		return err
	}
	if fn == AFGPulse {
		if err := d.t.SetAndCheck(ch.Name+":PULSE:DCYCLE", util.FormatFloat(req.DutyCycle)); err != nil {
			return err
		}
	}
	if err := d.t.SetAndCheck("OUTPUT"+n+":POLARITY", req.Polarity.token()); err != nil {
		return err
	}
	if fn == AFGRamp {
		if err := d.t.SetAndCheck(ch.Name+":FUNCTION:RAMP:SYMMETRY", util.FormatFloat(req.Symmetry)); err != nil {
			return err
		}
	}
	if err := d.t.SetAndCheck(ch.Name+":FUNCTION", fn.Token()); err != nil {
		return err
	}
	if _, err := d.t.SetIfNeeded(d.dialect.Amplitude.For(ch), util.FormatFloat(req.Amplitude), scpi.Tolerance(afgVoltageTolerance)); err != nil {
		return err
	}
	if req.Burst > 0 {
		steps := [][2]string{
			{"TRIGGER:SEQUENCE:SOURCE", "EXT"},
			{ch.Name + ":BURST:STATE", "1"},
			{ch.Name + ":BURST:MODE", "TRIG"},
			{ch.Name + ":BURST:NCYCLES", strconv.Itoa(req.Burst)},
		}
		for _, s := range steps {
			if err := d.t.SetAndCheck(s[0], s[1]); err != nil {
				return err
			}
		}
	}
	return nil
}
