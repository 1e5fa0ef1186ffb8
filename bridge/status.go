//  status.go
//  Nyx Mobile Bridge
//
//  Flat status codes shared by every boundary call and the typed error that
//  carries them through Go code until the C layer flattens it.

package bridge

import (
	"context"
	"errors"
	"fmt"
)

// Status is the integer result code returned by every boundary call. Zero is
// success; every other value names a failure category.
type Status int32

const (
	StatusOK Status = iota
	StatusAlreadyInitialized
	StatusNotInitialized
	StatusInvalidArgument
	StatusInternalError
	StatusNetworkError
	StatusCryptoError
	StatusAuthenticationFailed
	StatusConnectionTimeout
	StatusBufferTooSmall
	StatusResourceExhausted
	StatusPermissionDenied
	StatusUnsupportedOperation
	StatusConfigurationError
	StatusBiometricAuthRequired
	StatusBackgroundModeRestricted

	statusCount
)

var statusNames = [...]string{
	StatusOK:                       "ok",
	StatusAlreadyInitialized:       "already_initialized",
	StatusNotInitialized:           "not_initialized",
	StatusInvalidArgument:          "invalid_argument",
	StatusInternalError:            "internal_error",
	StatusNetworkError:             "network_error",
	StatusCryptoError:              "crypto_error",
	StatusAuthenticationFailed:     "authentication_failed",
	StatusConnectionTimeout:        "connection_timeout",
	StatusBufferTooSmall:           "buffer_too_small",
	StatusResourceExhausted:        "resource_exhausted",
	StatusPermissionDenied:         "permission_denied",
	StatusUnsupportedOperation:     "unsupported_operation",
	StatusConfigurationError:       "configuration_error",
	StatusBiometricAuthRequired:    "biometric_auth_required",
	StatusBackgroundModeRestricted: "background_mode_restricted",
}

// Valid reports whether s is one of the documented codes.
func (s Status) Valid() bool {
	return s >= StatusOK && s < statusCount
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("status(%d)", int32(s))
	}
	return statusNames[s]
}

// ParseStatus resolves a status by its name or numeric value.
func ParseStatus(v string) (Status, bool) {
	for i, name := range statusNames {
		if name == v {
			return Status(i), true
		}
	}
	var n int32
	if _, err := fmt.Sscanf(v, "%d", &n); err == nil && Status(n).Valid() {
		return Status(n), true
	}
	return 0, false
}

// Error is a boundary failure. Op names the operation ("connect",
// "power.set"), Msg is the human-readable detail stored in the last-error slot.
type Error struct {
	Op     string
	Status Status
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Status.String()
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error carrying the same status, so callers can compare
// against the sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Status == e.Status
}

// Sentinels for errors.Is comparisons.
var (
	ErrAlreadyInitialized   = &Error{Status: StatusAlreadyInitialized}
	ErrNotInitialized       = &Error{Status: StatusNotInitialized}
	ErrInvalidArgument      = &Error{Status: StatusInvalidArgument}
	ErrNetwork              = &Error{Status: StatusNetworkError}
	ErrConnectionTimeout    = &Error{Status: StatusConnectionTimeout}
	ErrResourceExhausted    = &Error{Status: StatusResourceExhausted}
	ErrPermissionDenied     = &Error{Status: StatusPermissionDenied}
	ErrUnsupported          = &Error{Status: StatusUnsupportedOperation}
	ErrConfiguration        = &Error{Status: StatusConfigurationError}
	ErrBackgroundRestricted = &Error{Status: StatusBackgroundModeRestricted}
)

// StatusOf flattens err into a status code.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var be *Error
	if errors.As(err, &be) && be.Status.Valid() {
		return be.Status
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusConnectionTimeout
	}
	return StatusInternalError
}
