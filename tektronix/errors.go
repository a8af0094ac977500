package tektronix

import (
	"fmt"

	"github.com/pkg/errors"
)

// DomainError is returned when a request is impossible for the instrument:
// a value out of range, an invalid channel or output path, a function of the
// wrong family.  Nothing has been sent to the instrument when it is returned
// from a validation step.
type DomainError struct {
	Msg string
}

func (e *DomainError) Error() string { return e.Msg }

func domainErrorf(format string, a ...interface{}) error {
	return errors.WithStack(&DomainError{Msg: fmt.Sprintf(format, a...)})
}

// IsDomainError returns true if err is or wraps a *DomainError
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// ErrNotSupported is returned for operations a series does not implement
var ErrNotSupported = errors.New("operation not supported by this instrument")
