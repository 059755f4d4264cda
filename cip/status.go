package cip

import "fmt"

// CIP general status codes seen in Message Router replies.
const (
	StatusSuccess             byte = 0x00
	StatusConnectionFailure   byte = 0x01
	StatusResourceUnavailable byte = 0x02
	StatusInvalidParameter    byte = 0x03
	StatusPathSegmentError    byte = 0x04
	StatusPathUnknown         byte = 0x05
	StatusPartialTransfer     byte = 0x06
	StatusServiceNotSupported byte = 0x08
	StatusInvalidAttrValue    byte = 0x09
	StatusObjectNotExist      byte = 0x0B
	StatusAttrNotSettable     byte = 0x0E
	StatusPrivilegeViolation  byte = 0x0F
	StatusDeviceStateConflict byte = 0x10
	StatusReplyTooLarge       byte = 0x11
	StatusNotEnoughData       byte = 0x13
	StatusAttrNotSupported    byte = 0x14
	StatusTooMuchData         byte = 0x15
	StatusGeneralError        byte = 0x1F
)

func StatusName(status byte) string {
	switch status {
	case StatusSuccess:
		return "Success"
	case StatusConnectionFailure:
		return "Connection Failure"
	case StatusResourceUnavailable:
		return "Resource Unavailable"
	case StatusInvalidParameter:
		return "Invalid Parameter"
	case StatusPathSegmentError:
		return "Path Segment Error"
	case StatusPathUnknown:
		return "Path Unknown"
	case StatusPartialTransfer:
		return "Partial Transfer"
	case 0x07:
		return "Connection Lost"
	case StatusServiceNotSupported:
		return "Service Not Supported"
	case StatusInvalidAttrValue:
		return "Invalid Attribute Value"
	case StatusObjectNotExist:
		return "Object Does Not Exist"
	case 0x0D:
		return "Object Already Exists"
	case StatusAttrNotSettable:
		return "Attribute Not Settable"
	case StatusPrivilegeViolation:
		return "Privilege Violation"
	case StatusDeviceStateConflict:
		return "Device State Conflict"
	case StatusReplyTooLarge:
		return "Reply Data Too Large"
	case StatusNotEnoughData:
		return "Not Enough Data"
	case StatusAttrNotSupported:
		return "Attribute Not Supported"
	case StatusTooMuchData:
		return "Too Much Data"
	case 0x1C:
		return "Not Enough Data Received"
	case 0x20:
		return "Invalid Parameter Type"
	case 0x26:
		return "Invalid Path"
	case StatusGeneralError:
		return "General Error"
	default:
		return fmt.Sprintf("Status 0x%02X", status)
	}
}
