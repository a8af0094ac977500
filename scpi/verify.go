package scpi

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"

	"github.com/nasa-jpl/tekgen/util"
)

// Commander is the least an instrument link must do for the helpers in this file
type Commander interface {
	// Write sends the arguments joined by spaces as one command
	Write(cmds ...string) error

	// Query sends cmd and returns the reply line without its terminator
	Query(cmd string) (string, error)
}

type setConfig struct {
	tol        float64
	percentage bool
	verify     bool
	opc        bool
}

// SetOption adjusts the behavior of SetIfNeeded, SetAndCheck and PollQuery
type SetOption func(*setConfig)

// Tolerance allows numeric readbacks to differ from the set value by tol
func Tolerance(tol float64) SetOption {
	return func(c *setConfig) { c.tol = tol }
}

// Percentage makes the tolerance a percentage of the set value
func Percentage() SetOption {
	return func(c *setConfig) { c.percentage = true }
}

// NoVerify skips reading the value back after it is written
func NoVerify() SetOption {
	return func(c *setConfig) { c.verify = false }
}

// WithOPC waits for *OPC? after the write
func WithOPC() SetOption {
	return func(c *setConfig) { c.opc = true }
}

func newSetConfig(opts []SetOption) setConfig {
	c := setConfig{verify: true}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}

// matches compares a readback to the value written.  Numbers compare within
// tolerance, anything else compares case-insensitively with quotes stripped.
// A keyword also matches its SCPI short form (SQU vs SQUARE), never any
// other prefix.
func (c setConfig) matches(want, got string) bool {
	want, got = unquote(want), unquote(got)
	wf, errW := strconv.ParseFloat(want, 64)
	gf, errG := strconv.ParseFloat(got, 64)
	if errW == nil && errG == nil {
		tol := c.tol
		if c.percentage {
			tol = c.tol / 100 * math.Abs(wf)
		}
		return util.IsClose(wf, gf, tol)
	}
	if errW == nil || errG == nil {
		return false
	}
	w, g := strings.ToUpper(want), strings.ToUpper(got)
	if w == g {
		return true
	}
	if !mnemonic(w) || !mnemonic(g) {
		return false
	}
	return shortForm(w) == g || shortForm(g) == w
}

// mnemonic reports whether s is a bare SCPI keyword, letters only
func mnemonic(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// shortForm is the SCPI short form of an upper case keyword: the first four
// letters, or three when the fourth is a vowel.  SQUARE -> SQU, PULSE -> PULS.
func shortForm(s string) string {
	if len(s) <= 4 {
		return s
	}
	if strings.IndexByte("AEIOU", s[3]) != -1 {
		return s[:3]
	}
	return s[:4]
}

// SetIfNeeded queries cmd and writes value only if the instrument reports
// something else.  It returns true if a write happened.
func SetIfNeeded(c Commander, cmd, value string, opts ...SetOption) (bool, error) {
	cfg := newSetConfig(opts)
	cur, err := c.Query(cmd + "?")
	if err != nil {
		return false, err
	}
	if cfg.matches(value, cur) {
		return false, nil
	}
	return true, set(c, cfg, cmd, value)
}

// SetAndCheck writes value to cmd unconditionally, then verifies it
func SetAndCheck(c Commander, cmd, value string, opts ...SetOption) error {
	return set(c, newSetConfig(opts), cmd, value)
}

func set(c Commander, cfg setConfig, cmd, value string) error {
	if err := c.Write(cmd, value); err != nil {
		return err
	}
	if cfg.opc {
		if err := OPC(c); err != nil {
			return err
		}
	}
	if !cfg.verify {
		return nil
	}
	got, err := c.Query(cmd + "?")
	if err != nil {
		return err
	}
	if !cfg.matches(value, got) {
		return &VerificationError{Command: cmd, Want: value, Got: got}
	}
	return nil
}

// ExpectESR reads the standard event status register and returns an ESRError
// carrying the drained error queue if it does not equal code
func ExpectESR(c Commander, code int) error {
	resp, err := c.Query("*ESR?")
	if err != nil {
		return err
	}
	got, err := strconv.Atoi(strings.TrimSpace(resp))
	if err != nil {
		return errors.Wrapf(err, "parsing *ESR? reply %q", resp)
	}
	if got == code {
		return nil
	}
	return &ESRError{Want: code, Got: got, Queue: drainErrors(c)}
}

// OPC blocks until the instrument answers *OPC? with 1
func OPC(c Commander) error {
	resp, err := c.Query("*OPC?")
	if err != nil {
		return err
	}
	if strings.TrimSpace(resp) != "1" {
		return errors.Errorf("*OPC? returned %q", resp)
	}
	return nil
}

// CLS clears the status registers and the error queue
func CLS(c Commander) error {
	return c.Write("*CLS")
}

// WAI holds off execution of later commands until pending ones finish
func WAI(c Commander) error {
	return c.Write("*WAI")
}

// DefaultPollTimeout is a reasonable bound for PollQuery
const DefaultPollTimeout = 30 * time.Second

// PollQuery re-issues query until the numeric reply is within tolerance of
// want, or timeout elapses.  The last reply is reported in a VerificationError.
// A timeout that is not positive queries once.
func PollQuery(c Commander, timeout time.Duration, query string, want float64, opts ...SetOption) error {
	cfg := newSetConfig(opts)
	wantS := strconv.FormatFloat(want, 'G', -1, 64)
	var (
		last  string
		fatal error
	)
	op := func() error {
		resp, err := c.Query(query)
		if err != nil {
			fatal = err
			return backoff.Permanent(err)
		}
		last = resp
		if !cfg.matches(wantS, resp) {
			return errors.Errorf("%s returned %s", query, resp)
		}
		return nil
	}
	var b backoff.BackOff = &backoff.StopBackOff{}
	if timeout > 0 {
		// MaxElapsedTime of zero would never stop
		eb := &backoff.ExponentialBackOff{
			InitialInterval:     10 * time.Millisecond,
			RandomizationFactor: 0.,
			Multiplier:          2.,
			MaxInterval:         time.Second,
			MaxElapsedTime:      timeout,
			Clock:               backoff.SystemClock}
		eb.Reset()
		b = eb
	}
	err := backoff.Retry(op, b)
	if err == nil {
		return nil
	}
	if fatal != nil {
		return err
	}
	return &VerificationError{Command: strings.TrimSuffix(query, "?"), Want: wantS, Got: last}
}
