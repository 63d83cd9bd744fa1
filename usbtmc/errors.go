package usbtmc

import "fmt"

// Kind enumerates the closed set of error categories a caller can
// distinguish with errors.As, independent of the underlying transport.
type Kind int

const (
	// Transport indicates the underlying bulk or control call failed,
	// including timeout, stall, or disconnect.  It is surfaced unchanged
	// from the endpoint I/O facade; auto-abort may have run as a side
	// effect before this is returned.
	Transport Kind = iota

	// Protocol indicates the device returned a non-SUCCESS status byte
	// outside of the expected polling states, or a drain loop exceeded
	// its iteration cap.
	Protocol

	// InvalidArgument indicates an unknown attribute id, an out-of-range
	// value, a write to a read-only attribute, a minor number referring
	// to no attached instrument, or an unknown control request.
	InvalidArgument

	// NotSupported indicates a seek operation, or a write to the
	// enumeration session.
	NotSupported

	// Addressing indicates the caller's buffer could not be accessed.
	Addressing

	// Resource indicates an allocation failure or that no free session
	// slot was available on attach.
	Resource
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Protocol:
		return "protocol"
	case InvalidArgument:
		return "invalid argument"
	case NotSupported:
		return "not supported"
	case Addressing:
		return "addressing"
	case Resource:
		return "resource"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by the exported operations
// in this package.  It carries a Kind so callers can classify failures
// without sniffing error strings the way comm.Open/comm.Close do for
// their transport.  ClearInHalt, ClearOutHalt, ResetConfiguration,
// Discover, and the closing halt clear of AbortBulkOut and Clear return
// the host USB stack's error as is, not wrapped in an *Error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("usbtmc: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("usbtmc: %s: %s", e.Op, e.Kind)
}

// Unwrap exposes the underlying cause, if any, for errors.As/errors.Is.
func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether err is a *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == kind
}
