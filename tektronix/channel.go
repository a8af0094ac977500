package tektronix

import (
	"strconv"
	"strings"

	"github.com/gotmc/query"
	"github.com/nasa-jpl/tekgen/scpi"
	"github.com/nasa-jpl/tekgen/util"
)

// SourceChannel sets the properties of one channel outside of a full
// generation sequence
type SourceChannel struct {
	d  *Device
	ch Channel
}

// Channel returns the channel called name
func (d *Device) Channel(name string) (*SourceChannel, error) {
	if name == "" || strings.EqualFold(name, "all") {
		return nil, domainErrorf("a single channel is required, not %q", name)
	}
	chans, err := d.resolveChannels(name)
	if err != nil {
		return nil, err
	}
	return &SourceChannel{d: d, ch: chans[0]}, nil
}

// Name returns SOURCE<n>
func (c *SourceChannel) Name() string { return c.ch.Name }

// Num returns the channel number
func (c *SourceChannel) Num() int { return c.ch.Num }

// SetFrequency sets the output frequency of an AFG channel or the sample rate
// of an AWG
func (c *SourceChannel) SetFrequency(v float64, opts ...scpi.SetOption) error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	return c.d.setFrequency(c.ch, v, opts...)
}

// Frequency reads back the frequency, or the sample rate of an AWG
func (c *SourceChannel) Frequency() (float64, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	return query.Float64(c.d.t, c.d.dialect.Frequency.For(c.ch)+"?")
}

// SetAmplitude sets the peak to peak amplitude
func (c *SourceChannel) SetAmplitude(v float64, opts ...scpi.SetOption) error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	_, err := c.d.t.SetIfNeeded(c.d.dialect.Amplitude.For(c.ch), util.FormatFloat(v), opts...)
	return err
}

// Amplitude reads back the peak to peak amplitude
func (c *SourceChannel) Amplitude() (float64, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	return query.Float64(c.d.t, c.d.dialect.Amplitude.For(c.ch)+"?")
}

// SetOffset sets the DC offset
func (c *SourceChannel) SetOffset(v float64, opts ...scpi.SetOption) error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	return c.d.setOffset(c.ch, v, opts...)
}

// Offset reads back the DC offset
func (c *SourceChannel) Offset() (float64, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	return query.Float64(c.d.t, c.d.dialect.Offset.For(c.ch)+"?")
}

// SetOutputPath routes the channel through p, or the series default if p is
// empty
func (c *SourceChannel) SetOutputPath(p OutputPath) error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	return c.d.setPath(c.ch, p)
}

// SetState turns the output on or off
func (c *SourceChannel) SetState(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	return c.d.t.SetAndCheck("OUTPUT"+strconv.Itoa(c.ch.Num)+":STATE", v)
}

// State reads back the output state
func (c *SourceChannel) State() (bool, error) {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	n, err := query.Int(c.d.t, "OUTPUT"+strconv.Itoa(c.ch.Num)+":STATE?")
	return n != 0, err
}

func (c *SourceChannel) requireAFG() error {
	if c.d.Family() != FamilyAFG {
		return ErrNotSupported
	}
	return nil
}

// SetFunction selects the waveform of an AFG channel
func (c *SourceChannel) SetFunction(fn Function) error {
	if err := c.requireAFG(); err != nil {
		return err
	}
	f, err := afgFunction(fn)
	if err != nil {
		return err
	}
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	return c.d.t.SetAndCheck(c.ch.Name+":FUNCTION", f.Token())
}

// SetRampSymmetry sets the ramp symmetry of an AFG channel in percent
func (c *SourceChannel) SetRampSymmetry(v float64) error {
	if err := c.requireAFG(); err != nil {
		return err
	}
	if err := checkRange("symmetry", v, Bounds{0, 100}); err != nil {
		return err
	}
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	return c.d.t.SetAndCheck(c.ch.Name+":FUNCTION:RAMP:SYMMETRY", util.FormatFloat(v))
}

// SetBurstCount sets the cycles per burst of an AFG channel
func (c *SourceChannel) SetBurstCount(n int) error {
	if err := c.requireAFG(); err != nil {
		return err
	}
	if n < 1 || n > maxAFGBurst {
		return domainErrorf("%d is an invalid burst value. Burst must be within [1, %d].", n, maxAFGBurst)
	}
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	return c.d.t.SetAndCheck(c.ch.Name+":BURST:NCYCLES", strconv.Itoa(n))
}
