package tektronix

import (
	"strconv"
	"strings"
)

// Command is a command header.  {ch} is replaced by the channel name and {n}
// by its number.
type Command struct {
	Header string

	// Overlapping commands return before the instrument has acted on them and
	// must be followed by a settle delay and *OPC?
	Overlapping bool

	// OPC requests *OPC? after the command without the settle delay
	OPC bool
}

// For renders the header for a channel
func (c Command) For(ch Channel) string {
	r := strings.NewReplacer("{ch}", ch.Name, "{n}", strconv.Itoa(ch.Num))
	return r.Replace(c.Header)
}

// Empty is true when the series has no such command
func (c Command) Empty() bool {
	return c.Header == ""
}

// CommandDialect is the set of commands a series uses for the same intent
type CommandDialect struct {
	// Frequency sets the output frequency of an AFG or the sample rate of an AWG
	Frequency Command

	Amplitude Command
	Offset    Command

	// Path selects the output signal path; empty if there is none
	Path Command

	// PathAsState encodes DCA as 0 and DIR as 1, as AWGCONTROL:DOUTPUT does
	PathAsState bool

	// Run starts AWG playback
	Run Command

	// PredefinedSet is the factory waveform set loaded before predefined
	// waveforms are referenced; empty when they are always resident
	PredefinedSet string

	// Restart reboots the instrument; empty when unsupported
	Restart Command
}

const (
	awg5200PredefinedSet = `C:\Program Files\Tektronix\AWG5200\Samples\AWG5k7k Predefined Waveforms.awgx`
	awg70kPredefinedSet  = `C:\Program Files\Tektronix\AWG70000\Samples\AWG5k7k Predefined Waveforms.awgx`
)

var (
	afgDialect = CommandDialect{
		Frequency: Command{Header: "{ch}:FREQUENCY:FIXED"},
		Amplitude: Command{Header: "{ch}:VOLTAGE:AMPLITUDE"},
		Offset:    Command{Header: "{ch}:VOLTAGE:OFFSET"},
	}

	awg5200Dialect = CommandDialect{
		Frequency:     Command{Header: "CLOCK:SRATE", Overlapping: true},
		Amplitude:     Command{Header: "{ch}:VOLTAGE:AMPLITUDE"},
		Offset:        Command{Header: "{ch}:VOLTAGE:OFFSET"},
		Path:          Command{Header: "OUTPUT{n}:PATH"},
		Run:           Command{Header: "AWGCONTROL:RUN", Overlapping: true},
		PredefinedSet: awg5200PredefinedSet,
	}

	awg70kDialect = CommandDialect{
		Frequency:     Command{Header: "{ch}:FREQUENCY", OPC: true},
		Amplitude:     Command{Header: "{ch}:VOLTAGE:AMPLITUDE"},
		Offset:        Command{Header: "{ch}:VOLTAGE:OFFSET"},
		Path:          Command{Header: "OUTPUT{n}:PATH"},
		Run:           Command{Header: "AWGCONTROL:RUN"},
		PredefinedSet: awg70kPredefinedSet,
	}

	awg5k7kDialect = CommandDialect{
		Frequency:   Command{Header: "{ch}:FREQUENCY"},
		Amplitude:   Command{Header: "{ch}:VOLTAGE:AMPLITUDE"},
		Offset:      Command{Header: "{ch}:VOLTAGE:OFFSET"},
		Path:        Command{Header: "AWGCONTROL:DOUTPUT{n}:STATE"},
		PathAsState: true,
		Run:         Command{Header: "AWGCONTROL:RUN"},
	}
)

// DialectFor returns the command dialect of a series
func DialectFor(s Series) CommandDialect {
	switch s {
	case SeriesAFG31K, SeriesAFG3KC:
		d := afgDialect
		d.Restart = Command{Header: "SYSTem:RESTart"}
		return d
	case SeriesAFG3K, SeriesAFG3KB:
		return afgDialect
	case SeriesAWG5200:
		return awg5200Dialect
	case SeriesAWG70KA, SeriesAWG70KB:
		return awg70kDialect
	default:
		return awg5k7kDialect
	}
}

// pathValue is the argument the Path command takes for p
func (d CommandDialect) pathValue(p OutputPath) string {
	if !d.PathAsState {
		return string(p)
	}
	if p == PathDIR {
		return "1"
	}
	return "0"
}
