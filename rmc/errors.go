package rmc

import (
	"errors"
	"fmt"
	"net"

	"rmclink/cip"
)

// ErrorKind classifies every failure the register layer can report, so
// callers can tell "my address is wrong" apart from "link is down".
type ErrorKind int

const (
	// KindUnknownDevice is the fall-through for device status codes with no
	// specific mapping; the raw codes are carried for diagnostics.
	KindUnknownDevice ErrorKind = iota

	// KindNotConnected: operation attempted before Connect or after
	// Disconnect.  No network I/O was performed.
	KindNotConnected

	// KindTimeout: the request deadline expired.  A pending write may or may
	// not have been applied by the controller.
	KindTimeout

	// KindRegisterNotFound: the controller does not know the file/element.
	KindRegisterNotFound

	// KindReadOnlyRegister: write rejected for a read-only register.
	KindReadOnlyRegister

	// KindDeviceBusy: the controller cannot service the request right now.
	KindDeviceBusy

	// KindStateConflict: the controller's state forbids the operation.
	KindStateConflict

	// KindMalformedResponse: response had unexpected length or format.  The
	// session is left connected; repeat writes with caution.
	KindMalformedResponse

	// KindTransport: socket-level failure (refused, reset, torn session).
	// Recovery requires an explicit Disconnect then Connect.
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotConnected:
		return "NotConnected"
	case KindTimeout:
		return "Timeout"
	case KindRegisterNotFound:
		return "RegisterNotFound"
	case KindReadOnlyRegister:
		return "ReadOnlyRegister"
	case KindDeviceBusy:
		return "DeviceBusy"
	case KindStateConflict:
		return "StateConflict"
	case KindMalformedResponse:
		return "MalformedResponse"
	case KindTransport:
		return "TransportError"
	case KindUnknownDevice:
		return "UnknownDeviceError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the typed failure returned by all register operations.
type Error struct {
	Kind      ErrorKind
	Op        string // operation, e.g. "ReadFloat"
	Status    byte   // CIP general status (0 unless device-reported)
	ExtStatus uint16 // first additional status word, if any
	Err       error  // wrapped cause, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(": %s (0x%02X)", cip.StatusName(e.Status), e.Status)
		if e.ExtStatus != 0 {
			msg += fmt.Sprintf(", extended 0x%04X", e.ExtStatus)
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from an error chain.  Errors not produced by
// this package report KindUnknownDevice.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknownDevice
}

// TranslateStatus maps a CIP general status (and extended status, where
// present) to an ErrorKind.  Pure and total: every status maps to exactly one
// kind, and unmapped codes fall through to KindUnknownDevice.
func TranslateStatus(status byte, extStatus uint16) ErrorKind {
	switch status {
	case cip.StatusPathSegmentError, cip.StatusPathUnknown,
		cip.StatusObjectNotExist, cip.StatusAttrNotSupported:
		return KindRegisterNotFound
	case cip.StatusAttrNotSettable, cip.StatusPrivilegeViolation:
		return KindReadOnlyRegister
	case cip.StatusResourceUnavailable:
		return KindDeviceBusy
	case cip.StatusDeviceStateConflict:
		return KindStateConflict
	case cip.StatusReplyTooLarge, cip.StatusNotEnoughData,
		cip.StatusTooMuchData:
		return KindMalformedResponse
	default:
		return KindUnknownDevice
	}
}

// deviceError builds the typed error for a non-success device response.
func deviceError(op string, status byte, extStatus uint16) *Error {
	return &Error{
		Kind:      TranslateStatus(status, extStatus),
		Op:        op,
		Status:    status,
		ExtStatus: extStatus,
	}
}

// transportError classifies a messaging-engine failure as timeout or
// transport.  Deadline expiry surfaces as a net.Error with Timeout() true.
func transportError(op string, err error) *Error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

// malformedError reports a response that could not be parsed or was the
// wrong shape.
func malformedError(op string, err error) *Error {
	return &Error{Kind: KindMalformedResponse, Op: op, Err: err}
}

// notConnectedError reports use before connect or after disconnect.
func notConnectedError(op string) *Error {
	return &Error{Kind: KindNotConnected, Op: op}
}
