package tektronix

import (
	"time"

	"github.com/nasa-jpl/tekgen/scpi"
)

// Transport is the link to an instrument.  *scpi.SCPI and *scpi.Mock
// implement it.
type Transport interface {
	Write(cmds ...string) error
	Query(cmd string) (string, error)
	Raw(str string) (string, error)
	WriteBlock(cmd string, block []byte) error

	SetIfNeeded(cmd, value string, opts ...scpi.SetOption) (bool, error)
	SetAndCheck(cmd, value string, opts ...scpi.SetOption) error
	ExpectESR(code int) error
	OPC() error
	CLS() error
	WAI() error
	PollQuery(timeout time.Duration, query string, want float64, opts ...scpi.SetOption) error

	Close() error
}

var (
	_ Transport = (*scpi.SCPI)(nil)
	_ Transport = (*scpi.Mock)(nil)
)
