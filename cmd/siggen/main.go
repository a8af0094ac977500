package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/theckman/yacspin"

	"github.com/nasa-jpl/tekgen/registry"
	"github.com/nasa-jpl/tekgen/tektronix"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "siggen.yml"
	k              = koanf.New(".")
)

// Config holds the instruments siggen knows about
type Config struct {
	// Mock replaces every instrument with an in-memory one
	Mock bool `yaml:"Mock" koanf:"Mock"`

	// Timeout bounds a single exchange with an instrument
	Timeout time.Duration `yaml:"Timeout" koanf:"Timeout"`

	// Devices is the list of signal generators
	Devices []registry.DeviceSetup `yaml:"Devices" koanf:"Devices"`
}

func setupconfig() {
	k.Load(structs.Provider(Config{
		Timeout: 3 * time.Second,
		Devices: []registry.DeviceSetup{}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
	k.Load(env.Provider("TEKGEN_", ".", func(s string) string {
		switch strings.TrimPrefix(s, "TEKGEN_") {
		case "MOCK":
			return "Mock"
		case "TIMEOUT":
			return "Timeout"
		}
		return ""
	}), nil)
}

func root() {
	str := `siggen configures Tektronix AFG and AWG signal generators from the command line

Usage:
	siggen <command> [arguments]

Commands:
	list
	constraints <alias> <function> [frequency] [path] [load]
	generate <alias> <function> <frequency> <amplitude> [offset] [channel]
	burst <alias> <function> <frequency> <amplitude> <cycles> [channel]
	raw <alias> <message>
	mkconf
	conf
	version`
	fmt.Println(str)
}

func loadConfig() Config {
	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		log.Fatal(err)
	}
	return c
}

// open adds only the device named alias, so the others are not identified
func open(alias string) *tektronix.Device {
	c := loadConfig()
	reg := registry.New(registry.WithMock(c.Mock), registry.WithTimeout(c.Timeout))
	for _, s := range c.Devices {
		if s.Alias == alias {
			d, err := reg.Add(s)
			if err != nil {
				log.Fatal(err)
			}
			return d
		}
	}
	log.Fatalf("no device with alias %s in %s", alias, ConfigFileName)
	return nil
}

func float(s, what string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Fatalf("%s %q is not a number", what, s)
	}
	return f
}

func need(args []string, n int) {
	if len(args) < n {
		root()
		os.Exit(1)
	}
}

func spin(msg string, fcn func() error) {
	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[11],
		Suffix:            " ",
		Message:           msg,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		log.Fatal(err)
	}
	spinner.Start()
	if err := fcn(); err != nil {
		spinner.StopFailMessage(err.Error())
		spinner.StopFail()
		os.Exit(1)
	}
	spinner.Stop()
}

func list() {
	c := loadConfig()
	for _, s := range c.Devices {
		model := s.Model
		if model == "" {
			model = "(identified at connect)"
		}
		fmt.Printf("%-16s %-24s %s %s\n", s.Alias, s.Addr, model, s.Options)
	}
}

func constraints(args []string) {
	need(args, 2)
	d := open(args[0])
	fn, err := tektronix.ParseFunction(d.Family(), args[1])
	if err != nil {
		log.Fatal(err)
	}
	q := tektronix.ConstraintQuery{Function: fn}
	if len(args) > 2 {
		q.Frequency = float(args[2], "frequency")
	}
	if len(args) > 3 {
		if q.OutputPath, err = tektronix.ParseOutputPath(args[3]); err != nil {
			log.Fatal(err)
		}
	}
	if len(args) > 4 {
		if q.Load, err = tektronix.ParseLoadImpedance(args[4]); err != nil {
			log.Fatal(err)
		}
	}
	cons, err := d.Constraints(q)
	if err != nil {
		log.Fatal(err)
	}
	if err = yml.NewEncoder(os.Stdout).Encode(cons); err != nil {
		log.Fatal(err)
	}
}

func request(d *tektronix.Device, args []string) tektronix.Request {
	fn, err := tektronix.ParseFunction(d.Family(), args[0])
	if err != nil {
		log.Fatal(err)
	}
	return tektronix.NewRequest(float(args[1], "frequency"), fn, float(args[2], "amplitude"), 0)
}

func generate(args []string) {
	need(args, 4)
	d := open(args[0])
	defer d.Close()
	req := request(d, args[1:])
	if len(args) > 4 {
		req.Offset = float(args[4], "offset")
	}
	if len(args) > 5 {
		req.Channel = args[5]
	}
	spin(fmt.Sprintf("generating %v on %s", req, d.Model()), func() error {
		return d.GenerateFunction(req)
	})
}

func burst(args []string) {
	need(args, 5)
	d := open(args[0])
	defer d.Close()
	req := request(d, args[1:])
	cycles, err := strconv.Atoi(args[4])
	if err != nil {
		log.Fatalf("cycles %q is not an integer", args[4])
	}
	req.Burst = cycles
	if len(args) > 5 {
		req.Channel = args[5]
	}
	spin(fmt.Sprintf("bursting %d cycles of %v on %s", cycles, req, d.Model()), func() error {
		if err := d.SetupBurst(req); err != nil {
			return err
		}
		return d.GenerateBurst()
	})
}

func raw(args []string) {
	need(args, 2)
	d := open(args[0])
	defer d.Close()
	resp, err := d.Transport().Raw(strings.Join(args[1:], " "))
	if err != nil {
		log.Fatal(err)
	}
	if resp != "" {
		fmt.Println(resp)
	}
}

func mkconf() {
	c := loadConfig()
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
	c := loadConfig()
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd := strings.ToLower(args[1])
	rest := args[2:]
	switch cmd {
	case "help":
		root()
	case "list":
		list()
	case "constraints":
		constraints(rest)
	case "generate":
		generate(rest)
	case "burst":
		burst(rest)
	case "raw":
		raw(rest)
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "version":
		fmt.Printf("siggen version %v\n", Version)
	default:
		log.Fatal("unknown command")
	}
}
