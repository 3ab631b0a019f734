package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is against any *Error produced by this module.
var (
	ErrRemoteRequest     = errors.New("remote request failed")
	ErrProtocol          = errors.New("unexpected provider response")
	ErrStorage           = errors.New("storage failure")
	ErrInvalidModel      = errors.New("invalid model")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnknownJob        = errors.New("unknown job")
	ErrDuplicateJob      = errors.New("duplicate job")
	ErrInvalidTransition = errors.New("invalid job transition")
	ErrJobNotReady       = errors.New("job not completed")
	ErrJobFailed         = errors.New("job failed")
)

// Error is the structured error value used across the service. Kind is one of
// the Err* sentinels above, Msg is safe to show to a client and Err is the
// underlying cause, if any.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool { return e.Kind == target }

func newError(kind error, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// RemoteRequestError reports a transport or HTTP status failure talking to the provider.
func RemoteRequestError(err error, format string, args ...any) *Error {
	return newError(ErrRemoteRequest, err, format, args...)
}

// ProtocolError reports a malformed or unexpected provider response.
func ProtocolError(err error, format string, args ...any) *Error {
	return newError(ErrProtocol, err, format, args...)
}

// StorageError reports a local filesystem failure.
func StorageError(err error, format string, args ...any) *Error {
	return newError(ErrStorage, err, format, args...)
}

func InvalidModelError(model string) *Error {
	return newError(ErrInvalidModel, nil, "invalid model selected: %q", model)
}

func InvalidRequestError(format string, args ...any) *Error {
	return newError(ErrInvalidRequest, nil, format, args...)
}

func UnknownJobError(id string) *Error {
	return newError(ErrUnknownJob, nil, "generation %s not found", id)
}

func DuplicateJobError(id string) *Error {
	return newError(ErrDuplicateJob, nil, "generation %s already exists", id)
}

func InvalidTransitionError(id string, from JobStatus) *Error {
	return newError(ErrInvalidTransition, nil, "generation %s is already %s", id, from)
}

func JobNotReadyError() *Error {
	return newError(ErrJobNotReady, nil, "image generation not completed")
}

// JobFailedError carries the message stored on the failed job.
func JobFailedError(message string) *Error {
	if message == "" {
		message = "image generation failed"
	}
	return &Error{Kind: ErrJobFailed, Msg: message}
}

// Message returns the client-facing message for err, falling back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
