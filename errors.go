package rpcdispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedVersion matches every *UnsupportedVersionError.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrNoSuchMethod matches every *NoSuchMethodError.
	ErrNoSuchMethod = errors.New("no such method")

	// ErrInvalidVersion is returned for version strings that are not of the
	// form "<major>.<minor>".
	ErrInvalidVersion = errors.New("invalid version")

	// ErrInvalidCall is returned when a raw call envelope cannot be decoded.
	ErrInvalidCall = errors.New("invalid call")

	// ErrInvalidArguments is returned by bound methods whose arguments do
	// not decode into, or do not validate as, the method's argument type.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// UnsupportedVersionError reports that no registered endpoint serves the
// requested namespace and version. It covers both an empty registry and a
// registry where nothing is compatible; callers should treat the two alike.
type UnsupportedVersionError struct {
	Version   string
	Namespace string

	// Cause is set when the requested version itself could not be parsed.
	Cause error
}

func (e *UnsupportedVersionError) Error() string {
	msg := fmt.Sprintf("endpoint does not support RPC version %s", e.Version)
	if e.Namespace != "" {
		msg += fmt.Sprintf(" in namespace %q", e.Namespace)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrUnsupportedVersion) hold.
func (e *UnsupportedVersionError) Is(target error) bool {
	return target == ErrUnsupportedVersion
}

func (e *UnsupportedVersionError) Unwrap() error { return e.Cause }

// NoSuchMethodError reports that the endpoint selected for a call has no
// method with the requested name.
type NoSuchMethodError struct {
	Method    string
	Namespace string
	Version   string
}

func (e *NoSuchMethodError) Error() string {
	return fmt.Sprintf("endpoint does not support RPC method %s", e.Method)
}

// Is makes errors.Is(err, ErrNoSuchMethod) hold.
func (e *NoSuchMethodError) Is(target error) bool {
	return target == ErrNoSuchMethod
}

// SerializationError reports a failure at the serializer boundary. Phase is
// "deserialize" (Key names the argument) or "serialize".
type SerializationError struct {
	Phase string
	Key   string
	Err   error
}

func (e *SerializationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s argument %q: %v", e.Phase, e.Key, e.Err)
	}
	return fmt.Sprintf("%s result: %v", e.Phase, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// expectedError marks an endpoint error as part of the method's contract.
type expectedError struct {
	err error
}

func (e *expectedError) Error() string { return e.err.Error() }
func (e *expectedError) Unwrap() error { return e.err }

// Expected marks err as an expected outcome of an endpoint method, such as
// "not found" or "permission denied". The error still reaches the caller
// unchanged apart from the marker; logging hooks report it at debug level
// instead of error. Expected(nil) returns nil.
func Expected(err error) error {
	if err == nil {
		return nil
	}
	return &expectedError{err: err}
}

// IsExpected reports whether err or anything it wraps was marked with
// Expected.
func IsExpected(err error) bool {
	var e *expectedError
	return errors.As(err, &e)
}
