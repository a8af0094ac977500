/*Package tektronix drives Tektronix AFG and AWG signal generators.

A Device pairs a Transport with the constraint policy and command dialect of
its series.  GenerateFunction validates a Request against the policy, then
configures each channel in an order the instruments depend on (the output is
disabled first, amplitude follows termination) and checks the event status
register at the end.

Nothing in this package does I/O except through the Transport.
*/
package tektronix

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nasa-jpl/tekgen/scpi"
)

const (
	// DefaultSettle is the pause after an overlapping command before *OPC?
	DefaultSettle = 100 * time.Millisecond

	// DefaultPollTimeout bounds waits for a value to take effect
	DefaultPollTimeout = scpi.DefaultPollTimeout
)

// Channel is a source channel, SOURCE1 and so on
type Channel struct {
	Name string `json:"name"`
	Num  int    `json:"num"`
}

// ParseChannel accepts SOURCE<n> in any case
func ParseChannel(s string) (Channel, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(up, "SOURCE") {
		return Channel{}, domainErrorf("%q is not a source channel", s)
	}
	n, err := strconv.Atoi(up[len("SOURCE"):])
	if err != nil || n < 1 {
		return Channel{}, domainErrorf("%q is not a source channel", s)
	}
	return Channel{Name: up, Num: n}, nil
}

// Option configures a Device
type Option func(*Device)

// WithLogger logs sequences to l
func WithLogger(l *zap.Logger) Option {
	return func(d *Device) { d.log = l }
}

// WithSettle sets the pause taken after overlapping commands
func WithSettle(dur time.Duration) Option {
	return func(d *Device) { d.settle = dur }
}

// WithPollTimeout bounds polling for slow settings to take effect.
// Durations that are not positive keep DefaultPollTimeout.
func WithPollTimeout(dur time.Duration) Option {
	return func(d *Device) {
		if dur > 0 {
			d.pollTimeout = dur
		}
	}
}

// WithChannels overrides the channel count implied by the model number
func WithChannels(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.info.Channels = n
		}
	}
}

// Device is a signal generator.  Its methods are safe for concurrent use;
// each public operation holds the device for its whole command sequence.
type Device struct {
	mu sync.Mutex

	t       Transport
	info    ModelInfo
	opts    string
	policy  ConstraintPolicy
	dialect CommandDialect
	catalog *Catalog

	log         *zap.Logger
	settle      time.Duration
	pollTimeout time.Duration

	channels []Channel
}

// New returns a Device for the given model and *OPT? string.  Models outside
// the parse table are rejected.
func New(t Transport, model, opts string, options ...Option) (*Device, error) {
	info, err := ParseModel(model)
	if err != nil {
		return nil, err
	}
	policy, err := PolicyFor(info, opts)
	if err != nil {
		return nil, err
	}
	d := &Device{
		t:           t,
		info:        info,
		opts:        strings.TrimSpace(opts),
		policy:      policy,
		dialect:     DialectFor(info.Series),
		log:         zap.NewNop(),
		settle:      DefaultSettle,
		pollTimeout: DefaultPollTimeout,
	}
	for _, o := range options {
		o(d)
	}
	d.catalog = NewCatalog(t)
	d.channels = make([]Channel, d.info.Channels)
	for i := range d.channels {
		d.channels[i] = Channel{Name: "SOURCE" + strconv.Itoa(i+1), Num: i + 1}
	}
	d.log = d.log.With(zap.String("model", d.info.Model))
	return d, nil
}

// Info returns what the model number says about the device
func (d *Device) Info() ModelInfo { return d.info }

// Model returns the model number
func (d *Device) Model() string { return d.info.Model }

// Options returns the installed options string
func (d *Device) Options() string { return d.opts }

// Family returns AFG or AWG
func (d *Device) Family() Family { return d.info.Series.Family() }

// Constants returns the fixed memory properties of the series
func (d *Device) Constants() SourceDeviceConstants { return ConstantsFor(d.info.Series) }

// Channels returns the source channels, SOURCE1 first
func (d *Device) Channels() []Channel {
	out := make([]Channel, len(d.channels))
	copy(out, d.channels)
	return out
}

// Transport returns the link to the instrument
func (d *Device) Transport() Transport { return d.t }

// Catalog returns the cache of waveform names resident on the instrument
func (d *Device) Catalog() *Catalog { return d.catalog }

// Close closes the transport
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.t.Close()
}

// Constraints resolves the limits of a waveform on this device
func (d *Device) Constraints(q ConstraintQuery) (Constraints, error) {
	return d.policy.Constraints(q)
}

// resolveChannels expands "all" or checks a single channel name
func (d *Device) resolveChannels(name string) ([]Channel, error) {
	if name == "" || strings.EqualFold(name, "all") {
		return d.Channels(), nil
	}
	up := strings.ToUpper(strings.TrimSpace(name))
	for _, ch := range d.channels {
		if ch.Name == up {
			return []Channel{ch}, nil
		}
	}
	names := make([]string, len(d.channels))
	for i, ch := range d.channels {
		names[i] = ch.Name
	}
	return nil, domainErrorf("Invalid channel name '%s', valid items: %s", name, strings.Join(names, ", "))
}

// wait pauses after an overlapping command, then synchronizes and clears
// the status registers
func (d *Device) wait() error {
	if d.settle > 0 {
		time.Sleep(d.settle)
	}
	if err := d.t.OPC(); err != nil {
		return err
	}
	return d.t.CLS()
}

// Request is a function generation request.  Use NewRequest for defaults.
type Request struct {
	Frequency float64
	Function  Function
	Amplitude float64
	Offset    float64

	// Channel is a channel name or "all"
	Channel string

	// OutputPath is ignored by AFGs
	OutputPath OutputPath

	// Burst is the cycle count of a triggered burst, 0 for continuous output
	Burst int

	// the remaining fields are ignored by AWGs, except Symmetry which turns a
	// ramp into a triangle at 50
	Termination LoadImpedance
	DutyCycle   float64
	Polarity    Polarity
	Symmetry    float64
}

// NewRequest fills in the defaults: all channels, fifty ohm termination, 50%
// duty cycle, normal polarity and a symmetry of 100 on AFGs or 50 on AWGs
func NewRequest(frequency float64, fn Function, amplitude, offset float64) Request {
	r := Request{
		Frequency:   frequency,
		Function:    fn,
		Amplitude:   amplitude,
		Offset:      offset,
		Channel:     "all",
		Termination: Fifty,
		DutyCycle:   50,
		Polarity:    Normal,
		Symmetry:    100,
	}
	if fn != nil && fn.Family() == FamilyAWG {
		r.Symmetry = 50
	}
	return r
}

func (r Request) String() string {
	return fmt.Sprintf("%v %gHz %gV %+gV on %s", r.Function, r.Frequency, r.Amplitude, r.Offset, r.Channel)
}

// checkRange returns a domain error if v lies outside b
func checkRange(what string, v float64, b Bounds) error {
	if !b.Contains(v) {
		return domainErrorf("%s of %g is outside the range %s", what, v, b)
	}
	return nil
}

// GenerateFunction outputs a waveform on the requested channels
func (d *Device) GenerateFunction(req Request) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generate(req, true)
}

// SetupBurst configures a burst of req.Burst cycles without triggering it
func (d *Device) SetupBurst(req Request) error {
	if req.Burst <= 0 {
		return domainErrorf("%d is an invalid burst value. Burst must be > 0.", req.Burst)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generate(req, false)
}

// GenerateBurst fires a burst prepared by SetupBurst
func (d *Device) GenerateBurst() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Family() == FamilyAFG {
		if err := d.t.Write("*TRG"); err != nil {
			return err
		}
	} else if err := d.run(); err != nil {
		return err
	}
	return d.t.ExpectESR(0)
}

func (d *Device) generate(req Request, trigger bool) error {
	if req.Function == nil {
		if d.Family() == FamilyAFG {
			return domainErrorf("AFGs must have a waveform defined.")
		}
		return domainErrorf("a function is required to generate a waveform")
	}
	if req.Function.Family() != d.Family() {
		return domainErrorf("%s is not a function of the %s series", req.Function, d.info.Series)
	}
	chans, err := d.resolveChannels(req.Channel)
	if err != nil {
		return err
	}
	d.log.Info("generating function", zap.Stringer("request", req))
	if d.Family() == FamilyAFG {
		return d.generateAFG(req, chans, trigger)
	}
	return d.generateAWG(req, chans, trigger)
}

// Reboot restarts the instrument on series that support it remotely
func (d *Device) Reboot() error {
	if d.dialect.Restart.Empty() {
		return ErrNotSupported
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.catalog.Invalidate()
	return d.t.Write(d.dialect.Restart.Header)
}
