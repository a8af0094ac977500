package scpi

import (
	"strings"
	"sync"
	"time"
)

// Mock is an in-memory instrument.  Writes store their argument under the
// command header and queries read it back, so set-then-verify sequences
// succeed the way they do against hardware.  Replies scripted with Reply take
// precedence over stored state.  Every message is recorded in order.
type Mock struct {
	mu      sync.Mutex
	state   map[string]string
	replies map[string][]string
	fail    map[string]error
	log     []string
}

// runStates are the AWGControl:RSTate? readings left by run control commands
var runStates = map[string]string{
	"AWGCONTROL:RUN":            "2",
	"AWGCONTROL:RUN:IMMEDIATE":  "2",
	"AWGCONTROL:STOP":           "0",
	"AWGCONTROL:STOP:IMMEDIATE": "0",
}

const runStateHeader = "AWGCONTROL:RSTATE"

// NewMock returns a Mock whose *ESR? reads 0, *OPC? reads 1 and whose error
// queue is empty.  An AWG mock is stopped until it is sent AWGCONTROL:RUN.
func NewMock() *Mock {
	return &Mock{
		state: map[string]string{
			"*ESR":         "0",
			"*OPC":         "1",
			"SYSTEM:ERROR": `0,"No error"`,
			runStateHeader: "0",
		},
		replies: map[string][]string{},
		fail:    map[string]error{},
	}
}

func header(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	cmd = strings.TrimPrefix(cmd, ":")
	cmd = strings.TrimSuffix(cmd, "?")
	return strings.ToUpper(cmd)
}

// Set seeds the value a query of hdr returns
func (m *Mock) Set(hdr, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[header(hdr)] = value
}

// Get returns the stored value for hdr
func (m *Mock) Get(hdr string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.state[header(hdr)]
	return v, ok
}

// Reply scripts the answers to query.  They are consumed in order and the
// last one repeats.
func (m *Mock) Reply(query string, replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[header(query)] = replies
}

// FailOn makes any message with the given header return err
func (m *Mock) FailOn(hdr string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[header(hdr)] = err
}

// Log returns a copy of every message received, in order
func (m *Mock) Log() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.log))
	copy(out, m.log)
	return out
}

// Writes returns the messages received which were not queries
func (m *Mock) Writes() []string {
	var out []string
	for _, l := range m.Log() {
		if !strings.Contains(l, "?") {
			out = append(out, l)
		}
	}
	return out
}

// ClearLog forgets the recorded messages
func (m *Mock) ClearLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = nil
}

// Write records the command and stores its argument
func (m *Mock) Write(cmds ...string) error {
	cmd := strings.Join(cmds, " ")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, cmd)
	hdr, arg := cmd, ""
	if idx := strings.IndexByte(cmd, ' '); idx != -1 {
		hdr, arg = cmd[:idx], strings.TrimSpace(cmd[idx+1:])
	}
	hdr = header(hdr)
	if err, ok := m.fail[hdr]; ok {
		return err
	}
	if arg != "" {
		m.state[hdr] = arg
	}
	if rs, ok := runStates[hdr]; ok {
		m.state[runStateHeader] = rs
	}
	return nil
}

// Query records the command and answers from scripted replies or stored state.
// Unknown queries read back as an empty string.
func (m *Mock) Query(cmd string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, cmd)
	hdr := header(cmd)
	if err, ok := m.fail[hdr]; ok {
		return "", err
	}
	if r, ok := m.replies[hdr]; ok && len(r) > 0 {
		resp := r[0]
		if len(r) > 1 {
			m.replies[hdr] = r[1:]
		}
		return resp, nil
	}
	return m.state[hdr], nil
}

// Raw writes or queries depending on the presence of a question mark
func (m *Mock) Raw(str string) (string, error) {
	if strings.Contains(str, "?") {
		return m.Query(str)
	}
	return "", m.Write(str)
}

// WriteBlock records cmd and block as one message
func (m *Mock) WriteBlock(cmd string, block []byte) error {
	return m.Write(cmd + string(block))
}

// SetIfNeeded sets cmd to value only if the mock does not already hold it
func (m *Mock) SetIfNeeded(cmd, value string, opts ...SetOption) (bool, error) {
	return SetIfNeeded(m, cmd, value, opts...)
}

// SetAndCheck sets cmd to value and reads it back
func (m *Mock) SetAndCheck(cmd, value string, opts ...SetOption) error {
	return SetAndCheck(m, cmd, value, opts...)
}

// ExpectESR checks *ESR? against code
func (m *Mock) ExpectESR(code int) error { return ExpectESR(m, code) }

// OPC queries *OPC?
func (m *Mock) OPC() error { return OPC(m) }

// CLS writes *CLS
func (m *Mock) CLS() error { return CLS(m) }

// WAI writes *WAI
func (m *Mock) WAI() error { return WAI(m) }

// PollQuery polls query until it reads want
func (m *Mock) PollQuery(timeout time.Duration, query string, want float64, opts ...SetOption) error {
	return PollQuery(m, timeout, query, want, opts...)
}

// Close does nothing
func (m *Mock) Close() error { return nil }
