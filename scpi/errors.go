package scpi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nasa-jpl/tekgen/util"
	"go.uber.org/multierr"
)

// InstrumentError is an entry of the SYSTem:ERRor? queue, e.g.
// -222,"Data out of range"
type InstrumentError struct {
	Code    int
	Message string
}

func (e InstrumentError) Error() string {
	return fmt.Sprintf("%d,%q", e.Code, e.Message)
}

// parseError parses a SYSTem:ERRor? reply.  Code 0 is no error and yields nil.
func parseError(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("empty reply to SYSTem:ERRor?")
	}
	codeS, msg := s, ""
	if idx := strings.IndexByte(s, ','); idx != -1 {
		codeS, msg = s[:idx], s[idx+1:]
	}
	code, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(codeS), "+"))
	if err != nil {
		return fmt.Errorf("malformed reply to SYSTem:ERRor?: %q", s)
	}
	if code == 0 {
		return nil
	}
	return InstrumentError{Code: code, Message: strings.Trim(strings.TrimSpace(msg), `"`)}
}

// VerificationError is returned when the value read back after a set does
// not match the value written
type VerificationError struct {
	Command string
	Want    string
	Got     string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s was set to %s but reads back %s", e.Command, e.Want, e.Got)
}

// ESRError is returned by ExpectESR when the event status register does not
// hold the expected value.  Queue holds whatever the error queue contained.
type ESRError struct {
	Want  int
	Got   int
	Queue error
}

var esrBits = [...]string{
	0: "operation complete",
	1: "request control",
	2: "query error",
	3: "device dependent error",
	4: "execution error",
	5: "command error",
	6: "user request",
	7: "power on",
}

// Flags names the bits set in Got
func (e *ESRError) Flags() []string {
	var out []string
	for i, name := range esrBits {
		if util.GetBit(byte(e.Got), uint(i)) {
			out = append(out, name)
		}
	}
	return out
}

func (e *ESRError) Error() string {
	s := fmt.Sprintf("*ESR? returned %d, expected %d", e.Got, e.Want)
	if flags := e.Flags(); len(flags) > 0 {
		s += " (" + strings.Join(flags, ", ") + ")"
	}
	if e.Queue != nil {
		s += ": " + e.Queue.Error()
	}
	return s
}

// Unwrap exposes the drained error queue
func (e *ESRError) Unwrap() error {
	return e.Queue
}

func popError(c Commander) error {
	str, err := c.Query("SYSTem:ERRor?")
	if err != nil {
		return err
	}
	return parseError(str)
}

// drainErrors pops the error queue until it reports no error
func drainErrors(c Commander) error {
	var errs error
	for i := 0; i < maxErrorQueue; i++ {
		err := popError(c)
		if err == nil {
			break
		}
		errs = multierr.Append(errs, err)
		if _, ok := err.(InstrumentError); !ok {
			// transport trouble, the queue cannot be trusted
			break
		}
	}
	return errs
}
