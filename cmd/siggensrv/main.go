package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"go.uber.org/zap"

	"github.com/nasa-jpl/tekgen/registry"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "siggensrv.yml"
	k              = koanf.New(".")
)

// envKeys maps TEKGEN_ environment variables to config keys
var envKeys = map[string]string{
	"ADDR":       "Addr",
	"MOCK":       "Mock",
	"DEBUG":      "Debug",
	"TIMEOUT":    "Timeout",
	"RATE":       "Rate",
	"DEVICEFILE": "DeviceFile",
}

func setupconfig() {
	k.Load(structs.Provider(Config{
		Addr:    ":8000",
		Timeout: 3 * time.Second,
		Nodes:   []registry.DeviceSetup{}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
	k.Load(env.Provider("TEKGEN_", ".", func(s string) string {
		return envKeys[strings.TrimPrefix(s, "TEKGEN_")]
	}), nil)
}

func root() {
	str := `siggensrv drives Tektronix AFG and AWG signal generators and exposes an
HTTP interface to them.  Clients can leverage the excellent HTTP libraries of
any programming language instead of VISA.

Usage:
	siggensrv <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `siggensrv is amenable to configuration via its .yml file, and the
TEKGEN_ADDR, TEKGEN_MOCK, TEKGEN_DEBUG, TEKGEN_TIMEOUT, TEKGEN_RATE and
TEKGEN_DEVICEFILE environment variables, which take precedence.  For a primer on
YAML, see https://yaml.org/start.html

Each node has an Alias, an Addr and optionally a Model, Options and Endpoint.
Addr is host:port for a socket server, a serial port when Serial is true, or
usb:VID:PID (hex) for USBTMC.  When Model is empty, the instrument is
identified with *IDN? and *OPT? at startup.

No two nodes can have the same Endpoint.  An empty Endpoint uses the Alias.

Supported series: AFG3000 (B, C), AFG31000, AWG5000 (B, C), AWG5200,
AWG7000 (B, C), AWG70000 (A, B).

Every node serves /model, /channels, /constants, /constraints, /generate,
/burst/setup, /burst/trigger, /reboot, /channel/{ch}/..., /raw and /lock.
AWGs also serve /waveforms.  /endpoints lists them all, /metrics serves
prometheus metrics.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("siggensrv version %v\n", Version)
}

func newLogger(debug bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal(err)
	}
	return logger
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	logger := newLogger(c.Debug)
	defer logger.Sync()
	srv, err := BuildMux(c, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer srv.Registry.Close()
	if len(srv.Registry.Aliases()) == 0 {
		log.Fatal("no signal generators configured, see siggensrv help")
	}
	logger.Info("now listening for requests", zap.String("addr", c.Addr), zap.Strings("devices", srv.Registry.Aliases()))
	log.Fatal(http.ListenAndServe(c.Addr, srv.Router))
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
