package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nasa-jpl/tekgen/generichttp"
	"github.com/nasa-jpl/tekgen/generichttp/ascii"
	"github.com/nasa-jpl/tekgen/generichttp/tmc"
	"github.com/nasa-jpl/tekgen/registry"
	"github.com/nasa-jpl/tekgen/scpi"
	"github.com/nasa-jpl/tekgen/server/middleware/locker"
)

// Config is a struct that holds the initialization parameters for the
// server and the signal generators behind it.  It is populated by koanf.
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"Addr" koanf:"Addr"`

	// Mock replaces every instrument with an in-memory one
	Mock bool `yaml:"Mock" koanf:"Mock"`

	// Debug logs every SCPI message
	Debug bool `yaml:"Debug" koanf:"Debug"`

	// Timeout bounds a single exchange with an instrument
	Timeout time.Duration `yaml:"Timeout" koanf:"Timeout"`

	// Rate limits commands to each instrument per second, 0 for no limit
	Rate float64 `yaml:"Rate" koanf:"Rate"`

	// DeviceFile is an optional yaml file with more Nodes under "Devices"
	DeviceFile string `yaml:"DeviceFile" koanf:"DeviceFile"`

	// Nodes is the list of signal generators to set up
	Nodes []registry.DeviceSetup `yaml:"Nodes" koanf:"Nodes"`
}

// Server is the router and the registry it serves
type Server struct {
	Router   chi.Router
	Registry *registry.Registry
}

// BuildMux opens every node and mounts its routes under its endpoint, or its
// alias if the endpoint is empty.  The mux also serves /endpoints, which lists
// the routes of every node as JSON, and /metrics.
func BuildMux(c Config, log *zap.Logger) (*Server, error) {
	promreg := prometheus.NewRegistry()
	metrics, err := scpi.NewMetrics(promreg)
	if err != nil {
		return nil, err
	}
	reg := registry.New(
		registry.WithLogger(log),
		registry.WithMock(c.Mock),
		registry.WithMetrics(metrics),
		registry.WithTimeout(c.Timeout),
		registry.WithRate(c.Rate))
	for _, node := range c.Nodes {
		if _, err := reg.Add(node); err != nil {
			reg.Close()
			return nil, err
		}
	}
	if c.DeviceFile != "" {
		if err := reg.LoadYaml(c.DeviceFile); err != nil {
			reg.Close()
			return nil, err
		}
	}

	root := chi.NewRouter()
	root.Use(middleware.Logger)
	supergraph := map[string][]string{}
	for _, alias := range reg.Aliases() {
		dev, _ := reg.Get(alias)
		setup, _ := reg.Setup(alias)
		endpoint := setup.Endpoint
		if endpoint == "" {
			endpoint = alias
		}
		// "lab/afg" => "/lab/afg"
		hndlS := generichttp.SubMuxSanitize(endpoint)
		if _, dup := supergraph[hndlS]; dup {
			reg.Close()
			return nil, fmt.Errorf("endpoint %s is used by more than one device", hndlS)
		}

		httper := tmc.NewHTTPSignalGenerator(dev)
		ascii.InjectRawComm(httper.RT(), dev.Transport())
		lock := locker.New()
		locker.Inject(httper, lock)
		supergraph[hndlS] = httper.RT().Endpoints()

		r := chi.NewRouter()
		r.Use(lock.Check)
		httper.RT().Bind(r)
		root.Mount(hndlS, r)
	}
	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	root.Handle("/metrics", promhttp.HandlerFor(promreg, promhttp.HandlerOpts{}))
	return &Server{Router: root, Registry: reg}, nil
}
