// Package scpi provides primitives for working with devices that
// have SCPI interfaces
package scpi

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/nasa-jpl/tekgen/comm"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the per-exchange deadline used when SCPI.Timeout is zero
	DefaultTimeout = 5 * time.Second

	// maxResponse bounds a single reply, waveform catalogs and curve
	// queries run to megabytes
	maxResponse = 64 << 20

	// maxErrorQueue bounds draining of SYSTem:ERRor?, instruments hold 32 at most
	maxErrorQueue = 32
)

// SCPI is a type for encapsulating SCPI communication
type SCPI struct {
	Pool *comm.Pool

	// Handshaking indicates if the communication shall use handshaking,
	// where an error query is sent with every message
	// to ensure the device accepted the input
	Handshaking bool

	// Timeout is the deadline for a single exchange, DefaultTimeout if zero
	Timeout time.Duration

	// Limiter paces commands.  Older AFGs drop input when
	// commands arrive back to back.  nil means unlimited
	Limiter *rate.Limiter

	// Logger traces every exchange at debug level.  nil means no logging
	Logger *zap.Logger

	// Metrics counts exchanges.  nil means no metrics
	Metrics *Metrics
}

func (s *SCPI) timeout() time.Duration {
	if s.Timeout == 0 {
		return DefaultTimeout
	}
	return s.Timeout
}

func (s *SCPI) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *SCPI) wait() error {
	if s.Limiter == nil {
		return nil
	}
	return s.Limiter.Wait(context.Background())
}

// exchange writes cmd and, if read is true, reads a single response line
func (s *SCPI) exchange(cmd string, read bool) ([]byte, error) {
	return s.send([]byte(cmd), false, read)
}

// send writes msg and, if read is true, reads until the terminator.  A block
// message always gets the terminator appended, since binary data may end in
// a newline byte.  The connection is dropped on any error so a partial reply
// cannot be read by the next exchange.
func (s *SCPI) send(msg []byte, block, read bool) (resp []byte, err error) {
	if err = s.wait(); err != nil {
		return nil, err
	}
	cmd := string(msg)
	if block {
		cmd = "<" + strconv.Itoa(len(msg)) + " byte block>"
	}
	conn, err := s.Pool.Get()
	if err != nil {
		s.Metrics.observeError()
		return nil, errors.Wrapf(err, "connecting to send %q", cmd)
	}
	defer func() { s.Pool.ReturnWithError(conn, err) }()
	term := comm.NewTerminator(conn, '\n', '\n')
	if _, err = comm.NewTimeout(term, s.timeout()); err != nil {
		return nil, err
	}
	s.log().Debug("scpi", zap.String("cmd", cmd), zap.Bool("query", read))
	if block {
		_, err = term.WriteTerminated(msg)
	} else {
		_, err = term.Write(msg)
	}
	if err != nil {
		s.Metrics.observeError()
		return nil, errors.Wrapf(err, "writing %q", cmd)
	}
	s.Metrics.observe(read)
	if !read {
		return nil, nil
	}
	resp, err = term.ReadLine(maxResponse)
	if err != nil {
		s.Metrics.observeError()
		return nil, errors.Wrapf(err, "reading response to %q", cmd)
	}
	resp = bytes.TrimRight(resp, "\r\n")
	s.log().Debug("scpi", zap.String("cmd", cmd), zap.ByteString("resp", resp))
	return resp, nil
}

// WriteBlock sends cmd immediately followed by block, an IEEE 488.2 definite
// length block.  Handshaking queries the error queue in a second exchange.
func (s *SCPI) WriteBlock(cmd string, block []byte) error {
	msg := make([]byte, 0, len(cmd)+len(block))
	msg = append(append(msg, cmd...), block...)
	if _, err := s.send(msg, true, false); err != nil {
		return err
	}
	if !s.Handshaking {
		return nil
	}
	resp, err := s.exchange("SYSTem:ERRor?", true)
	if err != nil {
		return err
	}
	return parseError(string(resp))
}

// Write sends a command to the device.  The arguments are joined by spaces,
// so Write("OUTPUT1:STATE", "0") sends "OUTPUT1:STATE 0".
// if s.Handshaking == true, it also requests an error response and checks that it is OK
func (s *SCPI) Write(cmds ...string) error {
	str := strings.Join(cmds, " ")
	if !s.Handshaking {
		_, err := s.exchange(str, false)
		return err
	}
	resp, err := s.exchange("*CLS;:"+str+";:SYSTem:ERRor?", true)
	if err != nil {
		return err
	}
	return parseError(string(resp))
}

// WriteRead is write, but with a read call after.  It is assumed that "get"
// calls use this underlying mechanism
func (s *SCPI) WriteRead(cmds ...string) ([]byte, error) {
	str := strings.Join(cmds, " ")
	if !s.Handshaking {
		return s.exchange(str, true)
	}
	resp, err := s.exchange("*CLS;:"+str+";:SYSTem:ERRor?", true)
	if err != nil {
		return resp, err
	}
	// the error reply is last, after the query response
	idx := bytes.LastIndexByte(resp, ';')
	if idx == -1 {
		return resp, errors.Errorf("handshake reply to %q missing error field: %q", str, resp)
	}
	if err := parseError(string(resp[idx+1:])); err != nil {
		return resp[:idx], err
	}
	return resp[:idx], nil
}

// Query sends a command to the device, the reads the response
// and returns it as a decoded ASCII or UTF-8 string
func (s *SCPI) Query(cmd string) (string, error) {
	resp, err := s.WriteRead(cmd)
	return string(resp), err
}

// ReadString is Query for multi-part commands
func (s *SCPI) ReadString(cmds ...string) (string, error) {
	resp, err := s.WriteRead(cmds...)
	return string(resp), err
}

// ReadFloat sends a command to the device, then reads the
// response and parses it as a floating point value
func (s *SCPI) ReadFloat(cmds ...string) (float64, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(resp), 64)
}

// ReadInt sends a command to the device, then reads the
// response and parses it as an integer
func (s *SCPI) ReadInt(cmds ...string) (int, error) {
	resp, err := s.ReadString(cmds...)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(resp))
}

// Raw sends a command and returns a response if it was a query,
// else a blank string.  Handshaking is not used.
func (s *SCPI) Raw(str string) (string, error) {
	if strings.Contains(str, "?") {
		resp, err := s.exchange(str, true)
		return string(resp), err
	}
	_, err := s.exchange(str, false)
	return "", err
}

// PopError gets a single error from the queue on the device
func (s *SCPI) PopError() error {
	return popError(s)
}

// AllErrors drains the error queue and combines every entry into one error.
// nil means the queue was empty.
func (s *SCPI) AllErrors() error {
	return drainErrors(s)
}

// Close closes the idle connections of the pool
func (s *SCPI) Close() error {
	return s.Pool.Close()
}

// SetIfNeeded sets cmd to value only if the instrument does not already report it
func (s *SCPI) SetIfNeeded(cmd, value string, opts ...SetOption) (bool, error) {
	return SetIfNeeded(s, cmd, value, opts...)
}

// SetAndCheck sets cmd to value and verifies the instrument accepted it
func (s *SCPI) SetAndCheck(cmd, value string, opts ...SetOption) error {
	return SetAndCheck(s, cmd, value, opts...)
}

// ExpectESR checks the event status register holds code
func (s *SCPI) ExpectESR(code int) error { return ExpectESR(s, code) }

// OPC blocks until pending operations complete
func (s *SCPI) OPC() error { return OPC(s) }

// CLS clears the status registers and error queue
func (s *SCPI) CLS() error { return CLS(s) }

// WAI tells the instrument to finish pending commands before new ones
func (s *SCPI) WAI() error { return WAI(s) }

// PollQuery re-issues query until its numeric reply is within tolerance of want
func (s *SCPI) PollQuery(timeout time.Duration, query string, want float64, opts ...SetOption) error {
	return PollQuery(s, timeout, query, want, opts...)
}
