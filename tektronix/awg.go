package tektronix

import (
	"strconv"

	"github.com/nasa-jpl/tekgen/scpi"
	"github.com/nasa-jpl/tekgen/util"
	"go.uber.org/zap"
)

// sample rate readback tolerance, as a fraction of the rate
const sampleRateTolerance = 0.001

func (d *Device) generateAWG(req Request, chans []Channel, trigger bool) error {
	fn := req.Function.(AWGFunction)
	if req.Burst < 0 {
		return domainErrorf("%d is an invalid burst value. Burst must be >= 0.", req.Burst)
	}
	if req.Burst > 0 && d.info.Series == SeriesAWG5200 {
		return domainErrorf("burst is not supported on %s", d.info.Model)
	}
	path, err := pathFor(d.info, req.OutputPath)
	if err != nil {
		return err
	}
	name, rate, err := SelectPredefined(d.policy, req.Frequency, fn, req.Symmetry, path)
	if err != nil {
		return err
	}
	c, err := d.policy.Constraints(ConstraintQuery{Function: fn, OutputPath: path})
	if err != nil {
		return err
	}
	if err := checkRange("amplitude", req.Amplitude, c.Amplitude); err != nil {
		return err
	}
	if err := checkRange("offset", req.Offset, c.Offset); err != nil {
		return err
	}
	d.log.Debug("predefined waveform", zap.String("name", name), zap.Float64("sampleRate", rate))

	if d.info.Series == SeriesAWG5200 {
		return d.generate5200(req, chans, path, name, rate)
	}
	for _, ch := range chans {
		n := strconv.Itoa(ch.Num)
		if err := d.t.SetAndCheck("OUTPUT"+n+":STATE", "0"); err != nil {
			return err
		}
		if err := d.ensurePredefined(name); err != nil {
			return err
		}
		if req.OutputPath != "" {
			if err := d.setPath(ch, path); err != nil {
				return err
			}
		}
		// one clock for all channels
		if err := d.setFrequency(d.channels[0], util.RoundTo(rate, -1)); err != nil {
			return err
		}
		if err := d.setupBurstWaveform(ch, name, req.Burst); err != nil {
			return err
		}
		if _, err := d.t.SetIfNeeded(d.dialect.Amplitude.For(ch), util.FormatFloat(req.Amplitude)); err != nil {
			return err
		}
		if err := d.setOffset(ch, req.Offset); err != nil {
			return err
		}
		if err := d.t.SetAndCheck("OUTPUT"+n+":STATE", "1"); err != nil {
			return err
		}
	}
	if trigger {
		if err := d.run(); err != nil {
			return err
		}
	}
	return d.t.ExpectESR(0)
}

// generate5200 drives the AWG5200, whose clock and run commands overlap and
// must be waited on
func (d *Device) generate5200(req Request, chans []Channel, path OutputPath, name string, rate float64) error {
	if err := d.t.OPC(); err != nil {
		return err
	}
	if err := d.t.CLS(); err != nil {
		return err
	}
	for _, ch := range chans {
		n := strconv.Itoa(ch.Num)
		if err := d.t.SetAndCheck("OUTPUT"+n+":STATE", "0"); err != nil {
			return err
		}
		if err := d.ensurePredefined(name); err != nil {
			return err
		}
		if err := d.setPath(ch, path); err != nil {
			return err
		}
		if err := d.setFrequency(ch, rate); err != nil {
			return err
		}
		if err := d.t.SetAndCheck(ch.Name+":WAVEFORM", quote(name)); err != nil {
			return err
		}
		if _, err := d.t.SetIfNeeded(d.dialect.Amplitude.For(ch), util.FormatFloat(req.Amplitude)); err != nil {
			return err
		}
		if err := d.setOffset(ch, req.Offset); err != nil {
			return err
		}
		if err := d.t.WAI(); err != nil {
			return err
		}
		if err := d.t.OPC(); err != nil {
			return err
		}
		if err := d.t.CLS(); err != nil {
			return err
		}
		if _, err := d.t.SetIfNeeded("OUTPUT"+n+":STATE", "1"); err != nil {
			return err
		}
	}
	if err := d.run(); err != nil {
		return err
	}
	return d.t.ExpectESR(0)
}

// run starts playback.  On the AWG5200 it waits for the run state to read 2.
func (d *Device) run() error {
	run := d.dialect.Run
	if run.Empty() {
		return ErrNotSupported
	}
	if run.Overlapping {
		if err := d.t.OPC(); err != nil {
			return err
		}
	}
	if err := d.t.Write(run.Header); err != nil {
		return err
	}
	if !run.Overlapping {
		return nil
	}
	if err := d.wait(); err != nil {
		return err
	}
	return d.t.PollQuery(d.pollTimeout, "AWGControl:RSTate?", 2)
}

// ensurePredefined loads the factory waveform set if name is not resident.
// Series without a set keep their predefined waveforms in memory.
func (d *Device) ensurePredefined(name string) error {
	if d.dialect.PredefinedSet == "" {
		return nil
	}
	return d.catalog.Ensure(name, func() error {
		d.log.Info("loading predefined waveform set", zap.String("file", d.dialect.PredefinedSet))
		return d.loadSet(d.dialect.PredefinedSet, "")
	})
}

// setupBurstWaveform assigns the waveform to a channel directly, or as a
// single element sequence looped burst times
func (d *Device) setupBurstWaveform(ch Channel, name string, burst int) error {
	if burst < 0 {
		return domainErrorf("%d is an invalid burst value. Burst must be >= 0.", burst)
	}
	if burst == 0 {
		return d.t.SetAndCheck(ch.Name+":WAVEFORM", quote(name))
	}
	steps := [][2]string{
		{"AWGCONTROL:RMODE", "SEQ"},
		{"SEQUENCE:LENGTH", "1"},
		{"SEQUENCE:ELEMENT1:WAVEFORM" + strconv.Itoa(ch.Num), quote(name)},
		{"SEQUENCE:ELEMENT1:LOOP:COUNT", strconv.Itoa(burst)},
	}
	for _, s := range steps {
		if err := d.t.SetAndCheck(s[0], s[1]); err != nil {
			return err
		}
	}
	return nil
}

// setFrequency sets the frequency of an AFG channel or the sample rate of an
// AWG.  Overlapping clock commands are polled until the readback settles.
func (d *Device) setFrequency(ch Channel, v float64, opts ...scpi.SetOption) error {
	cmd := d.dialect.Frequency
	hdr := cmd.For(ch)
	if cmd.Overlapping {
		if _, err := d.t.SetIfNeeded(hdr, util.FormatFloat(v), scpi.NoVerify(), scpi.WithOPC()); err != nil {
			return err
		}
		if err := d.wait(); err != nil {
			return err
		}
		if len(opts) == 0 {
			opts = []scpi.SetOption{scpi.Tolerance(v * sampleRateTolerance)}
		}
		return d.t.PollQuery(d.pollTimeout, hdr+"?", v, opts...)
	}
	if cmd.OPC {
		opts = append(append([]scpi.SetOption{}, opts...), scpi.WithOPC())
	}
	_, err := d.t.SetIfNeeded(hdr, util.FormatFloat(v), opts...)
	return err
}

// setPath routes a channel through an output path
func (d *Device) setPath(ch Channel, p OutputPath) error {
	if d.dialect.Path.Empty() {
		return ErrNotSupported
	}
	p, err := pathFor(d.info, p)
	if err != nil {
		return err
	}
	_, err = d.t.SetIfNeeded(d.dialect.Path.For(ch), d.dialect.pathValue(p))
	return err
}

// setOffset sets the offset of a channel.  The AWG5000 and AWG7000 have no
// offset on the direct path, nor the AWG7000 with the 02 or 06 option; a zero
// offset is accepted there and nothing is sent.
func (d *Device) setOffset(ch Channel, v float64, opts ...scpi.SetOption) error {
	if d.dialect.PathAsState {
		var direct bool
		if d.is7K() && highBandwidth(d.opts) {
			direct = true
		} else {
			state, err := d.t.Query("AWGCONTROL:DOUTPUT" + strconv.Itoa(ch.Num) + ":STATE?")
			if err != nil {
				return err
			}
			direct = state == "1" || state == "ON"
		}
		if direct {
			if v == 0 {
				return nil
			}
			if d.is7K() {
				return domainErrorf("The offset can only be set on %s without an 02 or 06 option and with an output signal path of DCA (AWGCONTROL:DOUTPUT%d:STATE set to 0).", d.info.Model, ch.Num)
			}
			return domainErrorf("The offset can only be set on %s with an output signal path of DCA (AWGCONTROL:DOUTPUT%d:STATE set to 0).", d.info.Model, ch.Num)
		}
	}
	_, err := d.t.SetIfNeeded(d.dialect.Offset.For(ch), util.FormatFloat(v), opts...)
	return err
}

func (d *Device) is7K() bool {
	switch d.info.Series {
	case SeriesAWG7K, SeriesAWG7KB, SeriesAWG7KC:
		return true
	}
	return false
}
