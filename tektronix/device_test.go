package tektronix_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nasa-jpl/tekgen/scpi"
	"github.com/nasa-jpl/tekgen/tektronix"
)

func newDevice(t *testing.T, model, opts string) (*tektronix.Device, *scpi.Mock) {
	t.Helper()
	m := scpi.NewMock()
	d, err := tektronix.New(m, model, opts, tektronix.WithSettle(0))
	if err != nil {
		t.Fatal(err)
	}
	return d, m
}

// inOrder checks that want appears in log as a subsequence
func inOrder(t *testing.T, log []string, want ...string) {
	t.Helper()
	i := 0
	for _, l := range log {
		if i < len(want) && l == want[i] {
			i++
		}
	}
	if i != len(want) {
		t.Errorf("expected %q in order, missing from %q\nlog:\n%s", want, want[i], strings.Join(log, "\n"))
	}
}

func count(log []string, substr string) int {
	n := 0
	for _, l := range log {
		if strings.Contains(l, substr) {
			n++
		}
	}
	return n
}

func TestAFGGenerateFunctionTwoChannels(t *testing.T) {
	d, m := newDevice(t, "AFG3252C", "")
	err := d.GenerateFunction(tektronix.NewRequest(1e6, tektronix.AFGSin, 1, 0.2))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"OUTPUT1:STATE 0",
		"OUTPUT1:IMPEDANCE 50",
		"SOURCE1:FREQUENCY:FIXED 1000000",
		"SOURCE1:VOLTAGE:OFFSET 0.2",
		"OUTPUT1:POLARITY NORM",
		"SOURCE1:FUNCTION SIN",
		"SOURCE1:VOLTAGE:AMPLITUDE 1",
		"OUTPUT1:STATE 1",
		"OUTPUT2:STATE 0",
		"OUTPUT2:IMPEDANCE 50",
		"SOURCE2:FREQUENCY:FIXED 1000000",
		"SOURCE2:VOLTAGE:OFFSET 0.2",
		"OUTPUT2:POLARITY NORM",
		"SOURCE2:FUNCTION SIN",
		"SOURCE2:VOLTAGE:AMPLITUDE 1",
		"OUTPUT2:STATE 1",
		"SOURCE1:PHASE:INITIATE",
	}
	got := m.Writes()
	if len(got) != len(want) {
		t.Fatalf("expected %d writes got %d:\n%s", len(want), len(got), strings.Join(got, "\n"))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d: expected %q got %q", i, want[i], got[i])
		}
	}
	if count(m.Log(), "BURST:STATE?") != 2 {
		t.Errorf("expected the burst state of both channels to be read")
	}
	log := m.Log()
	if log[len(log)-1] != "*ESR?" {
		t.Errorf("expected the sequence to end with *ESR? got %s", log[len(log)-1])
	}
}

func TestAFGAmplitudeFollowsImpedance(t *testing.T) {
	for _, fn := range tektronix.AFGFunctions() {
		d, m := newDevice(t, "AFG31022", "")
		req := tektronix.NewRequest(1e3, fn, 0.5, 0)
		req.Termination = tektronix.HighZ
		if err := d.GenerateFunction(req); err != nil {
			t.Fatalf("%v: %v", fn, err)
		}
		imp, amp := -1, -1
		for i, l := range m.Writes() {
			if strings.HasPrefix(l, "OUTPUT1:IMPEDANCE") && imp == -1 {
				imp = i
			}
			if strings.HasPrefix(l, "SOURCE1:VOLTAGE:AMPLITUDE") && amp == -1 {
				amp = i
			}
		}
		if imp == -1 || amp == -1 || imp > amp {
			t.Errorf("%v: expected impedance (%d) before amplitude (%d)", fn, imp, amp)
		}
	}
}

func TestAFGShapeParameters(t *testing.T) {
	d, m := newDevice(t, "AFG31021", "")
	req := tektronix.NewRequest(1e3, tektronix.AFGPulse, 1, 0)
	req.DutyCycle = 25
	req.Polarity = tektronix.Inverted
	if err := d.GenerateFunction(req); err != nil {
		t.Fatal(err)
	}
	inOrder(t, m.Writes(), "SOURCE1:PULSE:DCYCLE 25", "OUTPUT1:POLARITY INV", "SOURCE1:FUNCTION PULS")
	if count(m.Writes(), "SYMMETRY") != 0 {
		t.Error("expected no symmetry for a pulse")
	}

	d, m = newDevice(t, "AFG31021", "")
	req = tektronix.NewRequest(1e3, tektronix.AFGRamp, 1, 0)
	req.Symmetry = 30
	if err := d.GenerateFunction(req); err != nil {
		t.Fatal(err)
	}
	inOrder(t, m.Writes(), "OUTPUT1:POLARITY NORM", "SOURCE1:FUNCTION:RAMP:SYMMETRY 30", "SOURCE1:FUNCTION RAMP")
	if count(m.Writes(), "DCYCLE") != 0 {
		t.Error("expected no duty cycle for a ramp")
	}
}

func TestAFGBurst(t *testing.T) {
	d, m := newDevice(t, "AFG31022", "")
	req := tektronix.NewRequest(1e3, tektronix.AFGSquare, 1, 0)
	req.Burst = 5
	req.Channel = "source2"
	if err := d.GenerateFunction(req); err != nil {
		t.Fatal(err)
	}
	inOrder(t, m.Writes(),
		"SOURCE2:VOLTAGE:AMPLITUDE 1",
		"TRIGGER:SEQUENCE:SOURCE EXT",
		"SOURCE2:BURST:STATE 1",
		"SOURCE2:BURST:MODE TRIG",
		"SOURCE2:BURST:NCYCLES 5",
		"OUTPUT2:STATE 1",
		"*TRG")
	if count(m.Writes(), "PHASE:INITIATE") != 0 {
		t.Error("expected no phase sync when bursting")
	}
	if count(m.Writes(), "OUTPUT1:") != 0 {
		t.Error("expected channel 1 to be left alone")
	}
}

func TestAFGNoBurstCommandsWithoutBurst(t *testing.T) {
	d, m := newDevice(t, "AFG3102", "")
	if err := d.GenerateFunction(tektronix.NewRequest(1e3, tektronix.AFGSin, 1, 0)); err != nil {
		t.Fatal(err)
	}
	if n := count(m.Writes(), "BURST"); n != 0 {
		t.Errorf("expected no burst writes got %d", n)
	}
	if n := count(m.Writes(), "*TRG"); n != 0 {
		t.Errorf("expected no trigger got %d", n)
	}
}

func TestAFGPhaseSync(t *testing.T) {
	cases := []struct {
		model   string
		fn      tektronix.AFGFunction
		channel string
		syncs   int
	}{
		{"AFG3102", tektronix.AFGSin, "all", 1},
		{"AFG3102", tektronix.AFGSin, "SOURCE1", 1},
		{"AFG3102", tektronix.AFGDC, "all", 0},
		{"AFG3101", tektronix.AFGSin, "all", 0},
	}
	for _, c := range cases {
		d, m := newDevice(t, c.model, "")
		req := tektronix.NewRequest(1e3, c.fn, 1, 0)
		req.Channel = c.channel
		if err := d.GenerateFunction(req); err != nil {
			t.Fatal(err)
		}
		if n := count(m.Writes(), "SOURCE1:PHASE:INITIATE"); n != c.syncs {
			t.Errorf("%s %v %s: expected %d phase syncs got %d", c.model, c.fn, c.channel, c.syncs, n)
		}
	}
}

func TestAFGPhaseSyncSkippedWhenAnotherChannelBursts(t *testing.T) {
	d, m := newDevice(t, "AFG3102", "")
	m.Set("SOURCE2:BURST:STATE", "1")
	req := tektronix.NewRequest(1e3, tektronix.AFGSin, 1, 0)
	req.Channel = "SOURCE1"
	if err := d.GenerateFunction(req); err != nil {
		t.Fatal(err)
	}
	if n := count(m.Writes(), "PHASE:INITIATE"); n != 0 {
		t.Errorf("expected no phase sync got %d", n)
	}
}

func TestAFGValidation(t *testing.T) {
	d, m := newDevice(t, "AFG31022", "")
	bad := []tektronix.Request{
		tektronix.NewRequest(1e3, nil, 1, 0),
		tektronix.NewRequest(1e3, tektronix.AWGSin, 1, 0),
		tektronix.NewRequest(100e6, tektronix.AFGSin, 1, 0),
		tektronix.NewRequest(1e3, tektronix.AFGSin, 30, 0),
		tektronix.NewRequest(1e3, tektronix.AFGSin, 1, 8),
	}
	r := tektronix.NewRequest(1e3, tektronix.AFGSin, 1, 0)
	r.Burst = -1
	bad = append(bad, r)
	r.Burst = 1000001
	bad = append(bad, r)
	r = tektronix.NewRequest(1e3, tektronix.AFGSin, 1, 0)
	r.Channel = "SOURCE3"
	bad = append(bad, r)
	for _, req := range bad {
		if err := d.GenerateFunction(req); !tektronix.IsDomainError(err) {
			t.Errorf("%v: expected a domain error got %v", req, err)
		}
	}
	if len(m.Log()) != 0 {
		t.Errorf("expected nothing sent for invalid requests, got %q", m.Log())
	}
	err := d.GenerateFunction(r)
	if err == nil || err.Error() != "Invalid channel name 'SOURCE3', valid items: SOURCE1, SOURCE2" {
		t.Errorf("expected the valid channels listed got %v", err)
	}
}

func TestVerificationAbortsSequence(t *testing.T) {
	d, m := newDevice(t, "AFG3102", "")
	m.Reply("SOURCE1:FUNCTION?", "SQU")
	err := d.GenerateFunction(tektronix.NewRequest(1e3, tektronix.AFGSin, 1, 0))
	var ve *scpi.VerificationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected a VerificationError got %v", err)
	}
	if count(m.Writes(), "OUTPUT1:STATE 1") != 0 || count(m.Writes(), "OUTPUT2") != 0 {
		t.Errorf("expected the sequence to stop at the function, got %q", m.Writes())
	}
}

func TestESRFailure(t *testing.T) {
	d, m := newDevice(t, "AFG31021", "")
	m.Reply("*ESR?", "16")
	m.Reply("SYSTEM:ERROR?", `-222,"Data out of range"`, `0,"No error"`)
	err := d.GenerateFunction(tektronix.NewRequest(1e3, tektronix.AFGSin, 1, 0))
	var esr *scpi.ESRError
	if !errors.As(err, &esr) {
		t.Fatalf("expected an ESRError got %v", err)
	}
	if esr.Got != 16 || !strings.Contains(esr.Error(), "Data out of range") {
		t.Errorf("expected ESR 16 with the queued error, got %v", esr)
	}
}

func TestAFGSetupAndGenerateBurst(t *testing.T) {
	d, m := newDevice(t, "AFG31021", "")
	req := tektronix.NewRequest(1e3, tektronix.AFGSin, 1, 0)
	if err := d.SetupBurst(req); !tektronix.IsDomainError(err) {
		t.Errorf("expected a burst of 0 to be rejected got %v", err)
	}
	req.Burst = 10
	if err := d.SetupBurst(req); err != nil {
		t.Fatal(err)
	}
	if count(m.Writes(), "*TRG") != 0 {
		t.Error("expected SetupBurst to withhold the trigger")
	}
	if err := d.GenerateBurst(); err != nil {
		t.Fatal(err)
	}
	w := m.Writes()
	if w[len(w)-1] != "*TRG" {
		t.Errorf("expected GenerateBurst to trigger got %q", w[len(w)-1])
	}
}

func TestAWG5200Sequence(t *testing.T) {
	d, m := newDevice(t, "AWG5204", "50")
	m.Set("AWGControl:RSTate", "2")
	req := tektronix.NewRequest(10e3, tektronix.AWGSin, 0.5, 0.2)
	req.Channel = "SOURCE1"
	if err := d.GenerateFunction(req); err != nil {
		t.Fatal(err)
	}
	inOrder(t, m.Log(),
		"*OPC?",
		"*CLS",
		"OUTPUT1:STATE 0",
		"WLISt:LIST?",
		`MMEMORY:OPEN:SASSET "C:\Program Files\Tektronix\AWG5200\Samples\AWG5k7k Predefined Waveforms.awgx"`,
		"OUTPUT1:PATH DCHB",
		"CLOCK:SRATE 36000000",
		"*OPC?",
		"*CLS",
		"CLOCK:SRATE?",
		`SOURCE1:WAVEFORM "*Sine3600"`,
		"SOURCE1:VOLTAGE:AMPLITUDE 0.5",
		"SOURCE1:VOLTAGE:OFFSET 0.2",
		"*WAI",
		"*OPC?",
		"*CLS",
		"OUTPUT1:STATE 1",
		"*OPC?",
		"AWGCONTROL:RUN",
		"*OPC?",
		"*CLS",
		"AWGControl:RSTate?",
		"*ESR?",
	)
}

func TestAWG5200SkipsLoadedSet(t *testing.T) {
	d, m := newDevice(t, "AWG5204", "50")
	m.Set("AWGControl:RSTate", "2")
	m.Reply("WLISt:LIST?", `"*Sine3600","*Clock960"`)
	if err := d.GenerateFunction(tektronix.NewRequest(10e3, tektronix.AWGSin, 0.5, 0)); err != nil {
		t.Fatal(err)
	}
	if n := count(m.Writes(), "SASSET"); n != 0 {
		t.Errorf("expected no set load got %d", n)
	}
	if n := count(m.Log(), "WLISt:LIST?"); n != 1 {
		t.Errorf("expected the catalog to be read once for four channels got %d", n)
	}
}

func TestAWG5200RejectsBurst(t *testing.T) {
	d, m := newDevice(t, "AWG5204", "50")
	req := tektronix.NewRequest(10e3, tektronix.AWGSin, 0.5, 0)
	req.Burst = 2
	if err := d.GenerateFunction(req); !tektronix.IsDomainError(err) {
		t.Errorf("expected a domain error got %v", err)
	}
	if len(m.Log()) != 0 {
		t.Errorf("expected nothing sent got %q", m.Log())
	}
}

func TestAWG7KBurstSequence(t *testing.T) {
	d, m := newDevice(t, "AWG7051", "")
	m.Set("AWGCONTROL:DOUTPUT1:STATE", "0")
	req := tektronix.NewRequest(10e7, tektronix.AWGRamp, 1, 0.1)
	req.Burst = 3
	if err := d.GenerateFunction(req); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"OUTPUT1:STATE 0",
		"SOURCE1:FREQUENCY 1000000000",
		"AWGCONTROL:RMODE SEQ",
		"SEQUENCE:LENGTH 1",
		`SEQUENCE:ELEMENT1:WAVEFORM1 "*Triangle10"`,
		"SEQUENCE:ELEMENT1:LOOP:COUNT 3",
		"SOURCE1:VOLTAGE:AMPLITUDE 1",
		"SOURCE1:VOLTAGE:OFFSET 0.1",
		"OUTPUT1:STATE 1",
		"AWGCONTROL:RUN",
	}
	got := m.Writes()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("expected\n%s\ngot\n%s", strings.Join(want, "\n"), strings.Join(got, "\n"))
	}
}

func TestAWGNegativeBurst(t *testing.T) {
	d, _ := newDevice(t, "AWG5014C", "")
	req := tektronix.NewRequest(1e3, tektronix.AWGSin, 1, 0)
	req.Burst = -2
	err := d.GenerateFunction(req)
	if err == nil || err.Error() != "-2 is an invalid burst value. Burst must be >= 0." {
		t.Errorf("expected the burst to be rejected got %v", err)
	}
}

func TestAWG5KOffsetOnDirectPath(t *testing.T) {
	d, m := newDevice(t, "AWG5012", "")
	m.Set("AWGCONTROL:DOUTPUT1:STATE", "1")
	req := tektronix.NewRequest(1e5, tektronix.AWGSin, 1, 0)
	req.Channel = "SOURCE1"
	if err := d.GenerateFunction(req); err != nil {
		t.Fatal(err)
	}
	if n := count(m.Writes(), "OFFSET"); n != 0 {
		t.Errorf("expected a zero offset to be skipped on DIR, got %d writes", n)
	}

	req.Offset = 0.5
	err := d.GenerateFunction(req)
	if !tektronix.IsDomainError(err) || !strings.Contains(err.Error(), "output signal path of DCA (AWGCONTROL:DOUTPUT1:STATE set to 0)") {
		t.Errorf("expected the offset to be refused got %v", err)
	}
}

func TestAWG7KHighBandwidthOffset(t *testing.T) {
	d, m := newDevice(t, "AWG7122C", "06")
	req := tektronix.NewRequest(1e6, tektronix.AWGSin, 0.75, 0)
	req.Channel = "SOURCE2"
	if err := d.GenerateFunction(req); err != nil {
		t.Fatal(err)
	}
	if n := count(m.Log(), "OFFSET"); n != 0 {
		t.Errorf("expected no offset traffic with option 06, got %d", n)
	}
	req.Offset = 0.1
	if err := d.GenerateFunction(req); !tektronix.IsDomainError(err) {
		t.Errorf("expected a domain error got %v", err)
	}
}

func TestAWG5KOutputPath(t *testing.T) {
	d, m := newDevice(t, "AWG5014C", "")
	req := tektronix.NewRequest(1e5, tektronix.AWGSin, 1, 0)
	req.Channel = "SOURCE3"
	req.OutputPath = tektronix.PathDIR
	if err := d.GenerateFunction(req); err != nil {
		t.Fatal(err)
	}
	inOrder(t, m.Writes(), "OUTPUT3:STATE 0", "AWGCONTROL:DOUTPUT3:STATE 1", "SOURCE1:FREQUENCY 360000000")
	req.OutputPath = tektronix.PathDCHB
	if err := d.GenerateFunction(req); !tektronix.IsDomainError(err) {
		t.Errorf("expected DCHB to be rejected got %v", err)
	}
}

func TestAWG70KSequence(t *testing.T) {
	d, m := newDevice(t, "AWG70002A", "225")
	req := tektronix.NewRequest(1e6, tektronix.AWGSquare, 0.25, 0)
	req.OutputPath = tektronix.PathDIR
	if err := d.GenerateFunction(req); err != nil {
		t.Fatal(err)
	}
	inOrder(t, m.Log(),
		"OUTPUT1:STATE 0",
		`MMEMORY:OPEN:SASSET "C:\Program Files\Tektronix\AWG70000\Samples\AWG5k7k Predefined Waveforms.awgx"`,
		"*OPC?",
		"OUTPUT1:PATH DIR",
		"SOURCE1:FREQUENCY 1000000000",
		"*OPC?",
		`SOURCE1:WAVEFORM "*Square1000"`,
		"OUTPUT1:STATE 1",
		"OUTPUT2:STATE 0",
		"OUTPUT2:PATH DIR",
		`SOURCE2:WAVEFORM "*Square1000"`,
		"OUTPUT2:STATE 1",
		"AWGCONTROL:RUN",
		"*ESR?",
	)
}

func TestAWGSetupAndGenerateBurst(t *testing.T) {
	d, m := newDevice(t, "AWG5014C", "")
	m.Set("AWGCONTROL:DOUTPUT1:STATE", "0")
	req := tektronix.NewRequest(1e5, tektronix.AWGSin, 1, 0)
	req.Channel = "SOURCE1"
	req.Burst = 4
	if err := d.SetupBurst(req); err != nil {
		t.Fatal(err)
	}
	if count(m.Writes(), "AWGCONTROL:RUN") != 0 {
		t.Error("expected SetupBurst to withhold the run")
	}
	if err := d.GenerateBurst(); err != nil {
		t.Fatal(err)
	}
	if count(m.Writes(), "AWGCONTROL:RUN") != 1 {
		t.Error("expected GenerateBurst to run")
	}
}

func TestEndToEndSine(t *testing.T) {
	d, m := newDevice(t, "AWG5202", "50")
	m.Set("AWGControl:RSTate", "2")
	req := tektronix.NewRequest(10e3, tektronix.AWGSin, 1.0, 0.2)
	req.Channel = "SOURCE1"
	if err := d.GenerateFunction(req); !tektronix.IsDomainError(err) {
		t.Errorf("expected 1 V to exceed the DCHB range without the DC option, got %v", err)
	}
	d, m = newDevice(t, "AWG5202", "50,DC")
	m.Set("AWGControl:RSTate", "2")
	if err := d.GenerateFunction(req); err != nil {
		t.Fatal(err)
	}
	inOrder(t, m.Writes(),
		"CLOCK:SRATE 36000000",
		`SOURCE1:WAVEFORM "*Sine3600"`,
		"SOURCE1:VOLTAGE:AMPLITUDE 1",
		"SOURCE1:VOLTAGE:OFFSET 0.2",
		"OUTPUT1:STATE 1")
}

func TestPollTimeoutNotPositiveKeepsDefault(t *testing.T) {
	for _, timeout := range []time.Duration{0, -time.Second} {
		m := scpi.NewMock()
		d, err := tektronix.New(m, "AWG5204", "50", tektronix.WithSettle(0), tektronix.WithPollTimeout(timeout))
		if err != nil {
			t.Fatal(err)
		}
		m.Reply("AWGControl:RSTate?", "1", "1", "2")
		req := tektronix.NewRequest(10e3, tektronix.AWGSin, 0.5, 0)
		req.Channel = "SOURCE1"
		if err := d.GenerateFunction(req); err != nil {
			t.Errorf("timeout %v: expected polling to wait for the run state got %v", timeout, err)
		}
		if n := count(m.Log(), "AWGControl:RSTate?"); n != 3 {
			t.Errorf("timeout %v: expected 3 polls got %d", timeout, n)
		}
	}
}

func TestPollTimeoutReportsVerificationError(t *testing.T) {
	m := scpi.NewMock()
	d, err := tektronix.New(m, "AWG5204", "50", tektronix.WithSettle(0), tektronix.WithPollTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	m.Reply("AWGControl:RSTate?", "1")
	req := tektronix.NewRequest(10e3, tektronix.AWGSin, 0.5, 0)
	req.Channel = "SOURCE1"
	var ve *scpi.VerificationError
	if err := d.GenerateFunction(req); !errors.As(err, &ve) {
		t.Errorf("expected a VerificationError got %v", err)
	}
}
