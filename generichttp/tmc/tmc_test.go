package tmc_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/tekgen/generichttp/tmc"
	"github.com/nasa-jpl/tekgen/scpi"
	"github.com/nasa-jpl/tekgen/server"
	"github.com/nasa-jpl/tekgen/tektronix"
)

func newServer(t *testing.T, model, opts string) (*httptest.Server, *tektronix.Device, *scpi.Mock) {
	t.Helper()
	m := scpi.NewMock()
	d, err := tektronix.New(m, model, opts, tektronix.WithSettle(0))
	if err != nil {
		t.Fatal(err)
	}
	r := chi.NewRouter()
	tmc.NewHTTPSignalGenerator(d).RT().Bind(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, d, m
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func contains(log []string, s string) bool {
	for _, l := range log {
		if l == s {
			return true
		}
	}
	return false
}

func TestGenerate(t *testing.T) {
	srv, _, m := newServer(t, "AFG31022", "")
	resp := post(t, srv.URL+"/generate", `{"function":"sin","frequency":1000,"amplitude":1,"offset":0.1,"channel":"SOURCE2"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}
	for _, want := range []string{"SOURCE2:FUNCTION SIN", "SOURCE2:VOLTAGE:AMPLITUDE 1", "SOURCE2:VOLTAGE:OFFSET 0.1"} {
		if !contains(m.Writes(), want) {
			t.Errorf("expected %q to be sent, got %q", want, m.Writes())
		}
	}
}

func TestGenerateStatusCodes(t *testing.T) {
	srv, _, m := newServer(t, "AFG31022", "")
	cases := []struct {
		body   string
		status int
	}{
		{`{"function":"SIN","frequency":1000,"amplitude":30}`, http.StatusBadRequest},
		{`{"function":"BLARG","frequency":1000,"amplitude":1}`, http.StatusBadRequest},
		{`{"function":"SIN","frequency":1000,"amplitude":1,"polarity":"sideways"}`, http.StatusBadRequest},
		{`{"function":"SIN","frequency":1000,"amplitude":1,"channel":"SOURCE9"}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
	}
	for _, c := range cases {
		resp := post(t, srv.URL+"/generate", c.body)
		resp.Body.Close()
		if resp.StatusCode != c.status {
			t.Errorf("%s: expected %d got %d", c.body, c.status, resp.StatusCode)
		}
	}
	if len(m.Log()) != 0 {
		t.Errorf("expected nothing sent for bad requests got %q", m.Log())
	}

	m.FailOn("*ESR?", errTransport)
	resp := post(t, srv.URL+"/generate", `{"function":"SIN","frequency":1000,"amplitude":1}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected a transport fault to be 500 got %d", resp.StatusCode)
	}
}

type transportError struct{}

func (transportError) Error() string { return "connection reset" }

var errTransport = transportError{}

func TestConstraints(t *testing.T) {
	srv, d, _ := newServer(t, "AFG3252C", "")
	resp := get(t, srv.URL+"/constraints?function=SQUARE&frequency=1e6&load=HIGHZ")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}
	var got tektronix.Constraints
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	want, err := d.Constraints(tektronix.ConstraintQuery{Function: tektronix.AFGSquare, Frequency: 1e6, Load: tektronix.HighZ})
	if err != nil {
		t.Fatal(err)
	}
	if got.Amplitude != want.Amplitude || got.Frequency != want.Frequency || got.Offset != want.Offset {
		t.Errorf("expected %+v got %+v", want, got)
	}
	if got.SquareDutyCycle == nil || *got.SquareDutyCycle != *want.SquareDutyCycle {
		t.Errorf("expected a duty cycle range of %v got %v", want.SquareDutyCycle, got.SquareDutyCycle)
	}

	for _, q := range []string{"?function=SIN&frequency=fast", "?function=SIN&load=75", ""} {
		resp := get(t, srv.URL+"/constraints"+q)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%q: expected 400 got %d", q, resp.StatusCode)
		}
	}
}

func TestChannelRoutes(t *testing.T) {
	srv, _, m := newServer(t, "AFG31022", "")
	m.Set("SOURCE1:FREQUENCY:FIXED", "1000")
	resp := get(t, srv.URL+"/channel/source1/frequency")
	var f server.FloatT
	err := json.NewDecoder(resp.Body).Decode(&f)
	resp.Body.Close()
	if err != nil || f.F64 != 1000 {
		t.Errorf("expected 1000 got %v (%v)", f.F64, err)
	}

	resp = post(t, srv.URL+"/channel/SOURCE2/amplitude", `{"f64": 0.5}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !contains(m.Writes(), "SOURCE2:VOLTAGE:AMPLITUDE 0.5") {
		t.Errorf("expected the amplitude to be set, got %d %q", resp.StatusCode, m.Writes())
	}

	resp = post(t, srv.URL+"/channel/SOURCE1/state", `{"bool": true}`)
	resp.Body.Close()
	if !contains(m.Writes(), "OUTPUT1:STATE 1") {
		t.Errorf("expected the output to be turned on, got %q", m.Writes())
	}

	resp = post(t, srv.URL+"/channel/SOURCE3/offset", `{"f64": 0}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected an unknown channel to be 400 got %d", resp.StatusCode)
	}

	resp = post(t, srv.URL+"/channel/SOURCE1/path", `{"str": "DIR"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("expected an AFG output path to be 501 got %d", resp.StatusCode)
	}
}

func TestReboot(t *testing.T) {
	srv, _, m := newServer(t, "AFG31022", "")
	resp := post(t, srv.URL+"/reboot", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !contains(m.Writes(), "SYSTem:RESTart") {
		t.Errorf("expected a restart, got %d %q", resp.StatusCode, m.Writes())
	}

	srv, _, _ = newServer(t, "AFG3102", "")
	resp = post(t, srv.URL+"/reboot", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotImplemented {
		t.Errorf("expected 501 got %d", resp.StatusCode)
	}
}

func TestAWGRoutes(t *testing.T) {
	srv, d, m := newServer(t, "AWG5204", "50")
	m.Reply("WLISt:LIST?", `"*Sine3600","*DC","*Square1000"`)
	resp := get(t, srv.URL+"/waveforms")
	var names []string
	err := json.NewDecoder(resp.Body).Decode(&names)
	resp.Body.Close()
	if err != nil || strings.Join(names, ",") != "*DC,*Sine3600,*Square1000" {
		t.Errorf("expected the sorted catalog got %v (%v)", names, err)
	}

	resp = post(t, srv.URL+"/waveforms/load-set", `{"str": "C:\\waveforms\\set.txt"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected a bad extension to be 400 got %d", resp.StatusCode)
	}

	resp = get(t, srv.URL+"/model")
	var model tmc.ModelResponse
	err = json.NewDecoder(resp.Body).Decode(&model)
	resp.Body.Close()
	if err != nil || model.Series != tektronix.SeriesAWG5200 || model.Family != tektronix.FamilyAWG || model.Options != "50" {
		t.Errorf("expected AWG5200/AWG/50 got %+v (%v)", model, err)
	}

	endpoints := tmc.NewHTTPSignalGenerator(d).RT().Endpoints()
	if !contains(endpoints, "/waveforms") {
		t.Errorf("expected /waveforms in %v", endpoints)
	}
}

func TestAFGHasNoWaveformRoutes(t *testing.T) {
	_, d, _ := newServer(t, "AFG3102", "")
	if contains(tmc.NewHTTPSignalGenerator(d).RT().Endpoints(), "/waveforms") {
		t.Error("expected no waveform catalog on an AFG")
	}
}

func TestBurstRoutes(t *testing.T) {
	srv, _, m := newServer(t, "AFG31022", "")
	resp := post(t, srv.URL+"/burst/setup", `{"function":"SQU","frequency":1000,"amplitude":1,"burst":3,"channel":"SOURCE1"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}
	if contains(m.Writes(), "*TRG") {
		t.Error("expected setup not to trigger")
	}
	resp = post(t, srv.URL+"/burst/trigger", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !contains(m.Writes(), "*TRG") {
		t.Errorf("expected a trigger, got %d %q", resp.StatusCode, m.Writes())
	}
}
