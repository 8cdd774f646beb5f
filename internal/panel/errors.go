package panel

import (
	"errors"
	"fmt"
)

// ErrUserNotFound marks a 404-equivalent lookup result. Distinct from
// transport or auth failures, which surface as *Error.
var ErrUserNotFound = errors.New("user not found on panel")

// ErrUnsupported marks an operation the vendor API cannot perform.
var ErrUnsupported = errors.New("operation not supported by panel")

// Error is the uniform failure kind for vendor calls. It carries the
// vendor name so operator logs identify which upstream misbehaved.
type Error struct {
	Vendor  string
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("panel %s: %s: %s", e.Vendor, e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("panel %s: %s: %v", e.Vendor, e.Op, e.Err)
	}
	return fmt.Sprintf("panel %s: %s failed", e.Vendor, e.Op)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapErr(vendor, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Vendor: vendor, Op: op, Err: err}
}

func vendorErr(vendor, op, format string, args ...interface{}) error {
	return &Error{Vendor: vendor, Op: op, Message: fmt.Sprintf(format, args...)}
}
