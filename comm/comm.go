/*Package comm provides connection pooling and connection makers for
instruments reached over TCP, RS-232 or USB.

Most usages of this package will boil down to:
	1.  pick a CreationFunc for the link (BackingOffTCPConnMaker, SerialConnMaker,
		or usbtmc.ConnMaker)
	2.  build a Pool from it
	3.  Get a connection, wrap it in a Terminator and a Timeout, do one
		exchange, then ReturnWithError

	pool := comm.NewPool(1, 30*time.Second, comm.BackingOffTCPConnMaker("192.168.100.40:4000", 3*time.Second))
	conn, err := pool.Get()
	if err != nil {
		return err
	}
	defer func() { pool.ReturnWithError(conn, err) }()
	wrap := comm.NewTerminator(conn, '\n', '\n')
	_, err = io.WriteString(wrap, "*IDN?")
*/
package comm

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
)

var (
	// ErrNotConnected is generated when a connection is used after it was closed
	ErrNotConnected = errors.New("conn is nil, not connected to remote")

	// ErrTerminatorNotFound is generated when the termination byte is not found in a response
	ErrTerminatorNotFound = errors.New("termination byte not found")
)

// TCPSetup opens a new TCP connection with a timeout on connect
func TCPSetup(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// dialBackoff is the schedule used to open TCP connections.
// Ethernet-to-serial adapters in front of older AFGs do not like being
// connection thrashed.
func dialBackoff() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock}
}

// BackingOffTCPConnMaker returns a CreationFunc which dials addr, retrying
// with exponential backoff on timeouts.  A refused connection is not retried.
func BackingOffTCPConnMaker(addr string, timeout time.Duration) CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		var conn net.Conn
		op := func() error {
			c, err := TCPSetup(addr, timeout)
			if err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "refused") {
					return backoff.Permanent(err)
				}
				return err
			}
			conn = c
			return nil
		}
		err := backoff.Retry(op, dialBackoff())
		if err != nil {
			return nil, fmt.Errorf("connection to %s: %w", addr, err)
		}
		return conn, nil
	}
}

// SerialConnMaker returns a CreationFunc which opens the serial port at addr
// with the given baud rate, 8N1, and a read timeout
func SerialConnMaker(addr string, baud int, timeout time.Duration) CreationFunc {
	return func() (io.ReadWriteCloser, error) {
		conf := &serial.Config{
			Name:        addr,
			Baud:        baud,
			Size:        8,
			Parity:      serial.ParityNone,
			StopBits:    serial.Stop1,
			ReadTimeout: timeout}
		return serial.OpenPort(conf)
	}
}
