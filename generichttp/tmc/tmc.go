// Package tmc provides an HTTP interface to Tektronix signal generators
package tmc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/tekgen/generichttp"
	"github.com/nasa-jpl/tekgen/server"
	"github.com/nasa-jpl/tekgen/tektronix"
)

// Status maps a domain error to 400, an unsupported operation to 501 and
// anything else to 500
func Status(err error) int {
	switch {
	case tektronix.IsDomainError(err):
		return http.StatusBadRequest
	case errors.Is(err, tektronix.ErrNotSupported):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

// GenerateRequest is the body of /generate and /burst/setup.  Omitted fields
// take the defaults of tektronix.NewRequest.
type GenerateRequest struct {
	Function    string   `json:"function"`
	Frequency   float64  `json:"frequency"`
	Amplitude   float64  `json:"amplitude"`
	Offset      float64  `json:"offset"`
	Channel     string   `json:"channel,omitempty"`
	OutputPath  string   `json:"outputPath,omitempty"`
	Burst       int      `json:"burst,omitempty"`
	Termination string   `json:"termination,omitempty"`
	DutyCycle   *float64 `json:"dutyCycle,omitempty"`
	Polarity    string   `json:"polarity,omitempty"`
	Symmetry    *float64 `json:"symmetry,omitempty"`
}

// Request converts g to a tektronix.Request for a device of family fam
func (g GenerateRequest) Request(fam tektronix.Family) (tektronix.Request, error) {
	fn, err := tektronix.ParseFunction(fam, g.Function)
	if err != nil {
		return tektronix.Request{}, err
	}
	req := tektronix.NewRequest(g.Frequency, fn, g.Amplitude, g.Offset)
	if g.Channel != "" {
		req.Channel = g.Channel
	}
	if req.OutputPath, err = tektronix.ParseOutputPath(g.OutputPath); err != nil {
		return req, err
	}
	req.Burst = g.Burst
	if g.Termination != "" {
		if req.Termination, err = tektronix.ParseLoadImpedance(g.Termination); err != nil {
			return req, err
		}
	}
	if g.DutyCycle != nil {
		req.DutyCycle = *g.DutyCycle
	}
	if g.Symmetry != nil {
		req.Symmetry = *g.Symmetry
	}
	switch strings.ToUpper(g.Polarity) {
	case "":
	case "NORMAL", "NORM":
		req.Polarity = tektronix.Normal
	case "INVERTED", "INV":
		req.Polarity = tektronix.Inverted
	default:
		return req, &tektronix.DomainError{Msg: g.Polarity + " is not a polarity, use NORMAL or INVERTED"}
	}
	return req, nil
}

// ModelResponse is the body of GET /model
type ModelResponse struct {
	tektronix.ModelInfo
	Family  tektronix.Family `json:"family"`
	Options string           `json:"options"`
}

// HTTPSignalGenerator wraps a Device in an HTTP route table
type HTTPSignalGenerator struct {
	// Dev is the underlying signal generator
	Dev *tektronix.Device

	// RouteTable maps URLs to functions
	RouteTable generichttp.RouteTable
}

// NewHTTPSignalGenerator returns a new HTTP wrapper around a device
func NewHTTPSignalGenerator(d *tektronix.Device) HTTPSignalGenerator {
	h := HTTPSignalGenerator{Dev: d}
	rt := generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/model"}:          h.Model,
		{Method: http.MethodGet, Path: "/channels"}:       h.Channels,
		{Method: http.MethodGet, Path: "/constants"}:      h.Constants,
		{Method: http.MethodGet, Path: "/constraints"}:    h.Constraints,
		{Method: http.MethodPost, Path: "/generate"}:      h.Generate,
		{Method: http.MethodPost, Path: "/burst/setup"}:   h.SetupBurst,
		{Method: http.MethodPost, Path: "/burst/trigger"}: h.TriggerBurst,
		{Method: http.MethodPost, Path: "/reboot"}:        h.Reboot,

		{Method: http.MethodGet, Path: "/channel/{ch}/frequency"}:  h.channelFloat(getFrequency),
		{Method: http.MethodPost, Path: "/channel/{ch}/frequency"}: h.setChannelFloat(setFrequency),
		{Method: http.MethodGet, Path: "/channel/{ch}/amplitude"}:  h.channelFloat(getAmplitude),
		{Method: http.MethodPost, Path: "/channel/{ch}/amplitude"}: h.setChannelFloat(setAmplitude),
		{Method: http.MethodGet, Path: "/channel/{ch}/offset"}:     h.channelFloat(getOffset),
		{Method: http.MethodPost, Path: "/channel/{ch}/offset"}:    h.setChannelFloat(setOffset),
		{Method: http.MethodGet, Path: "/channel/{ch}/state"}:      h.ChannelState,
		{Method: http.MethodPost, Path: "/channel/{ch}/state"}:     h.SetChannelState,
		{Method: http.MethodPost, Path: "/channel/{ch}/path"}:      h.SetChannelPath,
	}
	if d.Family() == tektronix.FamilyAWG {
		rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/waveforms"}] = h.Waveforms
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/waveforms/load-set"}] = generichttp.SetString(d.LoadWaveformSet, Status)
	}
	h.RouteTable = rt
	return h
}

// RT satisfies the generichttp.HTTPer interface
func (h HTTPSignalGenerator) RT() generichttp.RouteTable {
	return h.RouteTable
}

// Model returns the model, series, family and options as JSON
func (h HTTPSignalGenerator) Model(w http.ResponseWriter, r *http.Request) {
	server.RespondJSON(w, ModelResponse{
		ModelInfo: h.Dev.Info(),
		Family:    h.Dev.Family(),
		Options:   h.Dev.Options()})
}

// Channels returns the source channels as JSON
func (h HTTPSignalGenerator) Channels(w http.ResponseWriter, r *http.Request) {
	server.RespondJSON(w, h.Dev.Channels())
}

// Constants returns the memory constants of the device as JSON
func (h HTTPSignalGenerator) Constants(w http.ResponseWriter, r *http.Request) {
	server.RespondJSON(w, h.Dev.Constants())
}

// Constraints resolves limits from the query string:
// function, length, frequency, path and load
func (h HTTPSignalGenerator) Constraints(w http.ResponseWriter, r *http.Request) {
	q, err := constraintQuery(h.Dev.Family(), r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c, err := h.Dev.Constraints(q)
	if err != nil {
		http.Error(w, err.Error(), Status(err))
		return
	}
	server.RespondJSON(w, c)
}

func constraintQuery(fam tektronix.Family, r *http.Request) (tektronix.ConstraintQuery, error) {
	var (
		q   tektronix.ConstraintQuery
		err error
	)
	v := r.URL.Query()
	if s := v.Get("function"); s != "" {
		if q.Function, err = tektronix.ParseFunction(fam, s); err != nil {
			return q, err
		}
	}
	if s := v.Get("length"); s != "" {
		if q.WaveformLength, err = strconv.Atoi(s); err != nil {
			return q, err
		}
	}
	if s := v.Get("frequency"); s != "" {
		if q.Frequency, err = strconv.ParseFloat(s, 64); err != nil {
			return q, err
		}
	}
	if q.OutputPath, err = tektronix.ParseOutputPath(v.Get("path")); err != nil {
		return q, err
	}
	q.Load, err = tektronix.ParseLoadImpedance(v.Get("load"))
	return q, err
}

func (h HTTPSignalGenerator) decode(w http.ResponseWriter, r *http.Request) (tektronix.Request, bool) {
	g := GenerateRequest{}
	err := json.NewDecoder(r.Body).Decode(&g)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return tektronix.Request{}, false
	}
	req, err := g.Request(h.Dev.Family())
	if err != nil {
		http.Error(w, err.Error(), Status(err))
		return req, false
	}
	return req, true
}

// Generate runs the full generation sequence for a GenerateRequest
func (h HTTPSignalGenerator) Generate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if err := h.Dev.GenerateFunction(req); err != nil {
		http.Error(w, err.Error(), Status(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// SetupBurst prepares a burst without triggering it
func (h HTTPSignalGenerator) SetupBurst(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if err := h.Dev.SetupBurst(req); err != nil {
		http.Error(w, err.Error(), Status(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// TriggerBurst fires a prepared burst
func (h HTTPSignalGenerator) TriggerBurst(w http.ResponseWriter, r *http.Request) {
	if err := h.Dev.GenerateBurst(); err != nil {
		http.Error(w, err.Error(), Status(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Reboot restarts the instrument
func (h HTTPSignalGenerator) Reboot(w http.ResponseWriter, r *http.Request) {
	if err := h.Dev.Reboot(); err != nil {
		http.Error(w, err.Error(), Status(err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Waveforms lists the waveforms resident on an AWG
func (h HTTPSignalGenerator) Waveforms(w http.ResponseWriter, r *http.Request) {
	names, err := h.Dev.Catalog().Names()
	if err != nil {
		http.Error(w, err.Error(), Status(err))
		return
	}
	server.RespondJSON(w, names)
}

func getFrequency(c *tektronix.SourceChannel) (float64, error) { return c.Frequency() }
func getAmplitude(c *tektronix.SourceChannel) (float64, error) { return c.Amplitude() }
func getOffset(c *tektronix.SourceChannel) (float64, error)    { return c.Offset() }

func setFrequency(c *tektronix.SourceChannel, v float64) error { return c.SetFrequency(v) }
func setAmplitude(c *tektronix.SourceChannel, v float64) error { return c.SetAmplitude(v) }
func setOffset(c *tektronix.SourceChannel, v float64) error    { return c.SetOffset(v) }

// channel resolves the {ch} URL parameter, writing the error if it fails
func (h HTTPSignalGenerator) channel(w http.ResponseWriter, r *http.Request) (*tektronix.SourceChannel, bool) {
	c, err := h.Dev.Channel(chi.URLParam(r, "ch"))
	if err != nil {
		http.Error(w, err.Error(), Status(err))
		return nil, false
	}
	return c, true
}

func (h HTTPSignalGenerator) channelFloat(get func(*tektronix.SourceChannel) (float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := h.channel(w, r)
		if !ok {
			return
		}
		generichttp.GetFloat(func() (float64, error) { return get(c) }, Status)(w, r)
	}
}

func (h HTTPSignalGenerator) setChannelFloat(set func(*tektronix.SourceChannel, float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := h.channel(w, r)
		if !ok {
			return
		}
		generichttp.SetFloat(func(v float64) error { return set(c, v) }, Status)(w, r)
	}
}

// ChannelState returns whether the output of {ch} is on
func (h HTTPSignalGenerator) ChannelState(w http.ResponseWriter, r *http.Request) {
	c, ok := h.channel(w, r)
	if !ok {
		return
	}
	generichttp.GetBool(c.State, Status)(w, r)
}

// SetChannelState turns the output of {ch} on or off
func (h HTTPSignalGenerator) SetChannelState(w http.ResponseWriter, r *http.Request) {
	c, ok := h.channel(w, r)
	if !ok {
		return
	}
	generichttp.SetBool(c.SetState, Status)(w, r)
}

// SetChannelPath routes {ch} through the output path named by {'str': path}
func (h HTTPSignalGenerator) SetChannelPath(w http.ResponseWriter, r *http.Request) {
	c, ok := h.channel(w, r)
	if !ok {
		return
	}
	generichttp.SetString(func(s string) error {
		p, err := tektronix.ParseOutputPath(s)
		if err != nil {
			return err
		}
		return c.SetOutputPath(p)
	}, Status)(w, r)
}
