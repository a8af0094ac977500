// Package registry maps aliases and addresses to signal generators.
//
// A Registry owns the transports it opens.  Devices are identified with *IDN?
// and *OPT? when the setup does not name a model or its options.
package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/gotmc/query"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nasa-jpl/tekgen/comm"
	"github.com/nasa-jpl/tekgen/scpi"
	"github.com/nasa-jpl/tekgen/tektronix"
	"github.com/nasa-jpl/tekgen/usbtmc"
)

const (
	// DefaultBaud is used for serial setups which do not name one
	DefaultBaud = 9600

	// DefaultTimeout bounds a single exchange and a connection attempt
	DefaultTimeout = 3 * time.Second

	// idle connections are closed after this long
	poolIdle = 5 * time.Minute
)

var (
	// ErrNotFound is returned when no device has the alias or address
	ErrNotFound = errors.New("no device with that alias or address")

	// ErrWrongFamily is returned by AFG and AWG when the device is the other kind
	ErrWrongFamily = errors.New("device is not of the requested family")
)

// DeviceSetup describes one instrument.  Model and Options may be left empty,
// in which case they are read from the instrument.
type DeviceSetup struct {
	// Alias is the name the device is looked up by
	Alias string `yaml:"Alias" koanf:"Alias"`

	// Addr holds the network or filesystem address of the remote device,
	// e.g. 192.168.100.123:4000 for a socket server, /dev/ttyUSB0 for an
	// RS232 device, or usb:0699:0358 for USBTMC
	Addr string `yaml:"Addr" koanf:"Addr"`

	// Model is the model number, e.g. AFG31252
	Model string `yaml:"Model" koanf:"Model"`

	// Options is the *OPT? response, e.g. 50,DC
	Options string `yaml:"Options" koanf:"Options"`

	// Serial determines if the connection is serial/RS232 (True) or TCP (False)
	Serial bool `yaml:"Serial" koanf:"Serial"`

	// Baud is the serial baud rate, DefaultBaud if zero
	Baud int `yaml:"Baud" koanf:"Baud"`

	// Channels overrides the channel count implied by the model
	Channels int `yaml:"Channels" koanf:"Channels"`

	// Handshaking checks the error queue after every write
	Handshaking bool `yaml:"Handshaking" koanf:"Handshaking"`

	// Endpoint is the URL the device's routes are served under by siggensrv
	Endpoint string `yaml:"Endpoint" koanf:"Endpoint"`
}

// Option configures a Registry
type Option func(*Registry)

// WithLogger logs to l
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithMock backs every device added afterwards with an scpi.Mock
func WithMock(mock bool) Option {
	return func(r *Registry) { r.mock = mock }
}

// WithMetrics counts SCPI traffic of every device in m
func WithMetrics(m *scpi.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithTimeout sets the exchange and dial timeout.  Zero keeps DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRate paces commands to each device at no more than perSecond
func WithRate(perSecond float64) Option {
	return func(r *Registry) { r.perSecond = perSecond }
}

// WithDeviceOptions passes opts to every tektronix.New call
func WithDeviceOptions(opts ...tektronix.Option) Option {
	return func(r *Registry) { r.devOpts = append(r.devOpts, opts...) }
}

type entry struct {
	setup DeviceSetup
	dev   *tektronix.Device
}

// Registry holds the configured devices.  It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	byAddr  map[string]string

	log       *zap.Logger
	mock      bool
	metrics   *scpi.Metrics
	timeout   time.Duration
	perSecond float64
	devOpts   []tektronix.Option
}

// New returns an empty Registry
func New(opts ...Option) *Registry {
	r := &Registry{
		entries: map[string]*entry{},
		byAddr:  map[string]string{},
		log:     zap.NewNop(),
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func connMaker(s DeviceSetup, timeout time.Duration) (comm.CreationFunc, error) {
	switch {
	case strings.HasPrefix(strings.ToLower(s.Addr), "usb:"):
		vid, pid, err := usbtmc.ParseAddr(s.Addr)
		if err != nil {
			return nil, err
		}
		return usbtmc.ConnMaker(vid, pid), nil
	case s.Serial:
		baud := s.Baud
		if baud == 0 {
			baud = DefaultBaud
		}
		return comm.SerialConnMaker(s.Addr, baud, timeout), nil
	default:
		return comm.BackingOffTCPConnMaker(s.Addr, timeout), nil
	}
}

// transport opens the Transport for s.  Nothing is dialed until first use.
func (r *Registry) transport(s DeviceSetup) (tektronix.Transport, error) {
	if r.mock {
		m := scpi.NewMock()
		if s.Model != "" {
			m.Set("*IDN?", fmt.Sprintf("TEKTRONIX,%s,MOCK,FV:1.0", s.Model))
		}
		m.Set("*OPT?", s.Options)
		return m, nil
	}
	maker, err := connMaker(s, r.timeout)
	if err != nil {
		return nil, err
	}
	t := &scpi.SCPI{
		Pool:        comm.NewPool(1, poolIdle, maker),
		Handshaking: s.Handshaking,
		Timeout:     r.timeout,
		Logger:      r.log.With(zap.String("alias", s.Alias)),
		Metrics:     r.metrics,
	}
	if r.perSecond > 0 {
		t.Limiter = rate.NewLimiter(rate.Limit(r.perSecond), 1)
	}
	return t, nil
}

// Identify reads the model and options of the instrument behind t.  The model
// is the second field of *IDN?; an *OPT? of 0 means no options.
func Identify(t query.Querier) (model, opts string, err error) {
	idn, err := query.String(t, "*IDN?")
	if err != nil {
		return "", "", errors.Wrap(err, "identifying instrument")
	}
	fields := strings.Split(idn, ",")
	if len(fields) < 2 || strings.TrimSpace(fields[1]) == "" {
		return "", "", fmt.Errorf("*IDN? response %q has no model field", idn)
	}
	model = strings.TrimSpace(fields[1])
	opts, err = query.String(t, "*OPT?")
	if err != nil {
		return "", "", errors.Wrap(err, "reading options")
	}
	opts = strings.Trim(strings.TrimSpace(opts), `"`)
	if opts == "0" {
		opts = ""
	}
	return model, opts, nil
}

// Add opens the device described by s and registers it under s.Alias.
func (r *Registry) Add(s DeviceSetup) (*tektronix.Device, error) {
	if s.Alias == "" {
		return nil, errors.New("device setup has no alias")
	}
	if s.Addr == "" && !r.mock {
		return nil, fmt.Errorf("device %s has no address", s.Alias)
	}
	r.mu.RLock()
	_, dup := r.entries[s.Alias]
	r.mu.RUnlock()
	if dup {
		return nil, fmt.Errorf("alias %s is already registered", s.Alias)
	}
	if r.mock && s.Model == "" {
		return nil, fmt.Errorf("device %s: a model is required in mock mode", s.Alias)
	}

	t, err := r.transport(s)
	if err != nil {
		return nil, errors.Wrapf(err, "device %s", s.Alias)
	}
	if s.Model == "" {
		model, opts, err := Identify(t)
		if err != nil {
			t.Close()
			return nil, errors.Wrapf(err, "device %s", s.Alias)
		}
		s.Model = model
		if s.Options == "" {
			s.Options = opts
		}
	}

	opts := append([]tektronix.Option{
		tektronix.WithLogger(r.log.With(zap.String("alias", s.Alias))),
		tektronix.WithChannels(s.Channels),
	}, r.devOpts...)
	dev, err := tektronix.New(t, s.Model, s.Options, opts...)
	if err != nil {
		t.Close()
		return nil, errors.Wrapf(err, "device %s", s.Alias)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[s.Alias]; dup {
		dev.Close()
		return nil, fmt.Errorf("alias %s is already registered", s.Alias)
	}
	r.entries[s.Alias] = &entry{setup: s, dev: dev}
	if s.Addr != "" {
		r.byAddr[s.Addr] = s.Alias
	}
	r.log.Info("registered device",
		zap.String("alias", s.Alias),
		zap.String("addr", s.Addr),
		zap.String("model", s.Model),
		zap.String("options", s.Options))
	return dev, nil
}

// Get returns the device registered under an alias or an address
func (r *Registry) Get(aliasOrAddr string) (*tektronix.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[aliasOrAddr]; ok {
		return e.dev, nil
	}
	if alias, ok := r.byAddr[aliasOrAddr]; ok {
		return r.entries[alias].dev, nil
	}
	return nil, errors.Wrap(ErrNotFound, aliasOrAddr)
}

func (r *Registry) family(alias string, fam tektronix.Family) (*tektronix.Device, error) {
	d, err := r.Get(alias)
	if err != nil {
		return nil, err
	}
	if d.Family() != fam {
		return nil, errors.Wrapf(ErrWrongFamily, "%s is a %s %s", alias, d.Model(), d.Family())
	}
	return d, nil
}

// AFG returns the device under alias if it is an AFG
func (r *Registry) AFG(alias string) (*tektronix.Device, error) {
	return r.family(alias, tektronix.FamilyAFG)
}

// AWG returns the device under alias if it is an AWG
func (r *Registry) AWG(alias string) (*tektronix.Device, error) {
	return r.family(alias, tektronix.FamilyAWG)
}

// Setup returns the setup a device was added with, with the model and options
// filled in
func (r *Registry) Setup(alias string) (DeviceSetup, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[alias]
	if !ok {
		return DeviceSetup{}, false
	}
	return e.setup, true
}

// Aliases returns the registered aliases, sorted
func (r *Registry) Aliases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Close closes every device and empties the registry
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	for alias, e := range r.entries {
		err = multierr.Append(err, errors.Wrap(e.dev.Close(), alias))
	}
	r.entries = map[string]*entry{}
	r.byAddr = map[string]string{}
	return err
}

// File is the layout of a device list on disk
type File struct {
	Devices []DeviceSetup `yaml:"Devices"`
}

// LoadYaml reads a device list from path and adds each device.  Devices added
// before a failure stay registered.
func (r *Registry) LoadYaml(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var cfg File
	if err = yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return errors.Wrapf(err, "decoding %s", path)
	}
	for _, s := range cfg.Devices {
		if _, err := r.Add(s); err != nil {
			return err
		}
	}
	return nil
}
