package scpi

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts SCPI traffic.  A nil *Metrics is valid and records nothing.
type Metrics struct {
	Commands *prometheus.CounterVec
	Errors   prometheus.Counter
}

// NewMetrics registers SCPI metrics against reg, or the default registerer if nil.
// Registering twice returns the collectors already registered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	cmds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scpi_commands_total",
		Help: "SCPI messages sent to instruments, by kind (write or query).",
	}, []string{"kind"})
	if err := reg.Register(cmds); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("collector scpi_commands_total already registered with incompatible type")
		}
		cmds = existing
	}

	errs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scpi_transport_errors_total",
		Help: "SCPI exchanges which failed in the transport.",
	})
	if err := reg.Register(errs); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(prometheus.Counter)
		if !ok {
			return nil, fmt.Errorf("collector scpi_transport_errors_total already registered with incompatible type")
		}
		errs = existing
	}
	return &Metrics{Commands: cmds, Errors: errs}, nil
}

func (m *Metrics) observe(query bool) {
	if m == nil || m.Commands == nil {
		return
	}
	kind := "write"
	if query {
		kind = "query"
	}
	m.Commands.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeError() {
	if m == nil || m.Errors == nil {
		return
	}
	m.Errors.Inc()
}
