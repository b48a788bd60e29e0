package hwaccel

import (
	"fmt"
)

type ErrorKind int

const (
	ErrUndefined = ErrorKind(iota)
	ErrNoDeviceFound
	ErrUnsupportedCodecOrProfile
	ErrUnsupportedPixelFormat
	ErrConfigCreationFailed
	ErrPixelFormatUnsupported
	ErrSizeUnsupported
	ErrAllocationFailure
	ErrDeviceOperationFailed
	ErrAlreadyAttached
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUndefined:
		return "undefined"
	case ErrNoDeviceFound:
		return "no device found"
	case ErrUnsupportedCodecOrProfile:
		return "unsupported codec or profile"
	case ErrUnsupportedPixelFormat:
		return "unsupported pixel format"
	case ErrConfigCreationFailed:
		return "config creation failed"
	case ErrPixelFormatUnsupported:
		return "pixel format is not supported by the hardware"
	case ErrSizeUnsupported:
		return "size is not supported by the hardware"
	case ErrAllocationFailure:
		return "allocation failure"
	case ErrDeviceOperationFailed:
		return "device operation failed"
	case ErrAlreadyAttached:
		return "already attached"
	}
	return fmt.Sprintf("unexpected_error_kind_%d", int(k))
}

func (k ErrorKind) Error() string {
	return k.String()
}

// Error is returned by every failing negotiation stage. It matches its
// Kind via errors.Is and unwraps to the device-reported cause (if any).
type Error struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

var _ error = (*Error)(nil)

func NewError(kind ErrorKind, stage string, err error) *Error {
	return &Error{
		Kind:  kind,
		Stage: stage,
		Err:   err,
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	kind, ok := target.(ErrorKind)
	return ok && kind == e.Kind
}
