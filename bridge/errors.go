package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrTerminated is returned (possibly wrapped) for any operation that
	// could not complete because the bridge terminated.
	ErrTerminated = errors.New(`bridge: terminated`)

	// ErrEmptyCommand is returned by Bridge.Cmdline for an empty command.
	ErrEmptyCommand = errors.New(`bridge: empty command`)

	// ErrAlreadyStarted is returned if Bridge.Start is called more than once.
	ErrAlreadyStarted = errors.New(`bridge: already started`)

	// ErrPending is returned by Future.Result if the future is not resolved.
	ErrPending = errors.New(`bridge: pending`)

	// ErrNotConfigured is wrapped by HostError if a message requires a
	// collaborator that was not provided.
	ErrNotConfigured = errors.New(`bridge: collaborator not configured`)
)

type (
	// ProtocolError indicates the two sides have diverged, e.g. an
	// acknowledgement for an event that was never sent. It is always fatal.
	ProtocolError struct {
		// Err is the underlying cause, if any.
		Err    error
		Op     string
		Reason string
	}

	// RemoteError indicates the compute side rejected a request. The bridge
	// remains usable.
	RemoteError struct {
		Op      string
		Message string
	}

	// RemoteFatalError is an error reported by the compute side, via an
	// error message. It terminates the bridge.
	RemoteFatalError struct {
		Message string
	}

	// HostError wraps a failure of a host collaborator, e.g. a panicking or
	// failing evaluation. Its message is what the compute side sees.
	HostError struct {
		Err error
		Op  string
	}
)

func (e *ProtocolError) Error() string {
	msg := `bridge: protocol error: ` + e.Op + `: ` + e.Reason
	if e.Err != nil {
		msg += `: ` + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *RemoteError) Error() string {
	if e.Message == `` {
		return `bridge: ` + e.Op + ` failed`
	}
	return `bridge: ` + e.Op + ` failed: ` + e.Message
}

func (e *RemoteFatalError) Error() string {
	return `bridge: remote: ` + e.Message
}

func (e *HostError) Error() string {
	return fmt.Sprintf(`%s: %v`, e.Op, e.Err)
}

func (e *HostError) Unwrap() error { return e.Err }

// terminatedError returns the error used to fail work outstanding at
// termination.
func terminatedError(cause error) error {
	if cause == nil {
		return ErrTerminated
	}
	return fmt.Errorf(`%w: %w`, ErrTerminated, cause)
}
