package rmc

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"rmclink/cip"
)

func TestTranslateStatus(t *testing.T) {
	tests := []struct {
		status byte
		want   ErrorKind
	}{
		{cip.StatusPathSegmentError, KindRegisterNotFound},
		{cip.StatusPathUnknown, KindRegisterNotFound},
		{cip.StatusObjectNotExist, KindRegisterNotFound},
		{cip.StatusAttrNotSupported, KindRegisterNotFound},
		{cip.StatusAttrNotSettable, KindReadOnlyRegister},
		{cip.StatusPrivilegeViolation, KindReadOnlyRegister},
		{cip.StatusResourceUnavailable, KindDeviceBusy},
		{cip.StatusDeviceStateConflict, KindStateConflict},
		{cip.StatusReplyTooLarge, KindMalformedResponse},
		{cip.StatusNotEnoughData, KindMalformedResponse},
		{cip.StatusTooMuchData, KindMalformedResponse},
		{0x1F, KindUnknownDevice},
		{0xFF, KindUnknownDevice},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("0x%02X", tt.status), func(t *testing.T) {
			if got := TranslateStatus(tt.status, 0); got != tt.want {
				t.Errorf("TranslateStatus(0x%02X) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestTranslateStatusDeterministic(t *testing.T) {
	// Same inputs must always map to the same kind, for every possible status.
	for status := 0; status < 256; status++ {
		first := TranslateStatus(byte(status), 0)
		for i := 0; i < 3; i++ {
			if got := TranslateStatus(byte(status), 0); got != first {
				t.Fatalf("TranslateStatus(0x%02X) not deterministic: %v then %v", status, first, got)
			}
		}
	}
}

func TestKindOf(t *testing.T) {
	err := deviceError("ReadFloat", cip.StatusPathUnknown, 0)
	if got := KindOf(err); got != KindRegisterNotFound {
		t.Errorf("KindOf = %v, want KindRegisterNotFound", got)
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if got := KindOf(wrapped); got != KindRegisterNotFound {
		t.Errorf("KindOf(wrapped) = %v, want KindRegisterNotFound", got)
	}

	if got := KindOf(errors.New("plain")); got != KindUnknownDevice {
		t.Errorf("KindOf(plain) = %v, want KindUnknownDevice", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := transportError("Connect", cause)
	if !errors.Is(err, cause) {
		t.Error("transportError should wrap its cause")
	}
	if err.Kind != KindTransport {
		t.Errorf("Kind = %v, want KindTransport", err.Kind)
	}
}

// fakeNetError mimics a net.Error deadline expiry.
type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "i/o timeout" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return false }

func TestTransportErrorTimeoutClassification(t *testing.T) {
	timeoutErr := transportError("ReadFloat", &fakeNetError{timeout: true})
	if timeoutErr.Kind != KindTimeout {
		t.Errorf("timeout Kind = %v, want KindTimeout", timeoutErr.Kind)
	}

	resetErr := transportError("ReadFloat", &fakeNetError{timeout: false})
	if resetErr.Kind != KindTransport {
		t.Errorf("reset Kind = %v, want KindTransport", resetErr.Kind)
	}
}

func TestErrorMessage(t *testing.T) {
	err := deviceError("WriteFloat", cip.StatusAttrNotSettable, 0x2105)
	msg := err.Error()
	for _, want := range []string{"WriteFloat", "ReadOnlyRegister", "0x0E", "0x2105"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}
