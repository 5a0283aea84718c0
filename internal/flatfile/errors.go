package flatfile

import (
	"errors"
	"fmt"
)

// ErrProtocol is the parent of every usage error: calling methods in a state
// that does not allow them.
var ErrProtocol = errors.New("flatfile: protocol error")

var (
	// ErrNoDataSource is returned by Read when no source has been attached.
	ErrNoDataSource = fmt.Errorf("%w: no data source attached", ErrProtocol)
	// ErrConfigLocked is returned when the configuration is changed while parsing.
	ErrConfigLocked = fmt.Errorf("%w: configuration cannot change while parsing", ErrProtocol)
	// ErrDisposed is returned by every method once Dispose has been called.
	ErrDisposed = fmt.Errorf("%w: parser has been disposed", ErrProtocol)
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("flatfile: invalid configuration")

var (
	// ErrTooManyColumns is reported when a row grows past ExpectedColumnCount.
	ErrTooManyColumns = errors.New("too many columns in row")
	// ErrColumnCountMismatch is reported when a finished row does not have
	// exactly ExpectedColumnCount fields.
	ErrColumnCountMismatch = errors.New("column count does not match expected count")
	// ErrFieldTooLarge is reported when a single field does not fit in the buffer.
	ErrFieldTooLarge = errors.New("field exceeds buffer size")
)

// ParseError carries the physical row and column where parsing failed.
// Row and Column are 1-based.
type ParseError struct {
	Row    int
	Column int
	Err    error
}

// Error formats the parse error with its position.
func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("flatfile: parse error on row %d, column %d: %v", e.Row, e.Column, e.Err)
}

// Unwrap returns the underlying sentinel so errors.Is works.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
