package comm

import (
	"bytes"
	"io"
	"time"
)

// readChunk is the size of each read made by ReadLine, one ethernet frame
const readChunk = 1500

type deadliner interface {
	SetDeadline(time.Time) error
}

// Terminator appends a transmit terminator to writes and reads until the
// receive terminator is seen.  Reads return the data including the terminator.
type Terminator struct {
	rw     io.ReadWriter
	rx, tx byte
}

// NewTerminator wraps rw with the given receive and transmit terminators
func NewTerminator(rw io.ReadWriter, rx, tx byte) *Terminator {
	return &Terminator{rw: rw, rx: rx, tx: tx}
}

// Write writes b, adding the transmit terminator if b does not end with it
func (t *Terminator) Write(b []byte) (int, error) {
	if len(b) == 0 || b[len(b)-1] != t.tx {
		buf := make([]byte, len(b), len(b)+1)
		copy(buf, b)
		b = append(buf, t.tx)
		n, err := t.rw.Write(b)
		if n > len(b)-1 {
			n = len(b) - 1
		}
		return n, err
	}
	return t.rw.Write(b)
}

// WriteTerminated writes b followed by the transmit terminator, whatever b
// ends with.  Binary payloads need this.
func (t *Terminator) WriteTerminated(b []byte) (int, error) {
	buf := make([]byte, len(b), len(b)+1)
	copy(buf, b)
	n, err := t.rw.Write(append(buf, t.tx))
	if n > len(b) {
		n = len(b)
	}
	return n, err
}

// ReadLine reads until the last byte received is the receive terminator, over
// as many reads as that takes.  More than max bytes without it is
// ErrTerminatorNotFound.
func (t *Terminator) ReadLine(max int) ([]byte, error) {
	var out []byte
	chunk := make([]byte, readChunk)
	for {
		n, err := t.Read(chunk)
		out = append(out, chunk[:n]...)
		if len(out) > 0 && out[len(out)-1] == t.rx {
			return out, nil
		}
		if err != nil && err != ErrTerminatorNotFound {
			return out, err
		}
		if len(out) >= max {
			return out, ErrTerminatorNotFound
		}
	}
}

// Read reads into p until the receive terminator ends the data read so far.
// If p fills first, ErrTerminatorNotFound is returned with the data.
func (t *Terminator) Read(p []byte) (int, error) {
	var n int
	for n < len(p) {
		m, err := t.rw.Read(p[n:])
		n += m
		if n > 0 && p[n-1] == t.rx {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if m == 0 {
			// a reader returning 0, nil repeatedly would spin forever
			return n, io.ErrNoProgress
		}
	}
	if bytes.IndexByte(p[:n], t.rx) == -1 {
		return n, ErrTerminatorNotFound
	}
	return n, nil
}

// SetDeadline forwards to the wrapped connection if it supports deadlines
func (t *Terminator) SetDeadline(d time.Time) error {
	if dl, ok := t.rw.(deadliner); ok {
		return dl.SetDeadline(d)
	}
	return nil
}

// NewTimeout sets a deadline of now+timeout on rw when the underlying
// connection supports deadlines (TCP does, serial and USB do not) and
// returns rw.
func NewTimeout(rw io.ReadWriter, timeout time.Duration) (io.ReadWriter, error) {
	if dl, ok := rw.(deadliner); ok {
		if err := dl.SetDeadline(time.Now().Add(timeout)); err != nil {
			return rw, err
		}
	}
	return rw, nil
}
