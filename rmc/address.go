// Package rmc implements register access for Delta RMC75E motion controllers
// over EtherNet/IP explicit messaging.  Registers live in the controller's
// Register Map Object (class 0xC0) and are addressed by a (file, element)
// pair, written "F57:30" in RMC documentation.  Each register is a 32-bit
// word that may be viewed as an IEEE-754 float or a signed 32-bit integer.
package rmc

import (
	"fmt"
	"strconv"
	"strings"

	"rmclink/cip"
)

// Register Map Object identifiers.
const (
	RegisterMapClass    uint16 = 0xC0
	RegisterMapInstance uint16 = 0x01
)

// Vendor-specific block services of the Register Map Object.  The LSB-first
// variants match the controller's native word order; the MSB-first variants
// exist on the device but are not used here.
const (
	SvcReadBlockLSB  byte = 0x4B
	SvcWriteBlockLSB byte = 0x4C
	SvcReadBlockMSB  byte = 0x4D
	SvcWriteBlockMSB byte = 0x4E
)

// Address identifies one 32-bit register slot.  Valid ranges are
// device-defined; out-of-range addresses are detected only by the
// controller's error response.
type Address struct {
	File    uint16
	Element uint16
}

// String renders the RMC documentation convention, e.g. "F56:10".
func (a Address) String() string {
	return fmt.Sprintf("F%d:%d", a.File, a.Element)
}

// ParseAddress parses "F57:30" (the leading F is optional) into an Address.
func ParseAddress(s string) (Address, error) {
	str := strings.TrimSpace(s)
	str = strings.TrimPrefix(strings.ToUpper(str), "F")

	file, element, ok := strings.Cut(str, ":")
	if !ok {
		return Address{}, fmt.Errorf("ParseAddress: %q is not in file:element form", s)
	}

	f, err := strconv.ParseUint(file, 10, 16)
	if err != nil {
		return Address{}, fmt.Errorf("ParseAddress: bad file number in %q: %w", s, err)
	}
	e, err := strconv.ParseUint(element, 10, 16)
	if err != nil {
		return Address{}, fmt.Errorf("ParseAddress: bad element number in %q: %w", s, err)
	}

	return Address{File: uint16(f), Element: uint16(e)}, nil
}

// Range is a contiguous run of elements within one file, Count >= 1.
type Range struct {
	Base  Address
	Count uint16
}

// Validate rejects empty ranges and ranges whose elements would wrap past
// the end of the element space.  A wrapped range would silently alias
// registers in the same file, so it is refused up front.
func (r Range) Validate() error {
	if r.Count < 1 {
		return fmt.Errorf("range %s: count must be >= 1, got %d", r.Base, r.Count)
	}
	if uint32(r.Base.Element)+uint32(r.Count)-1 > 0xFFFF {
		return fmt.Errorf("range %s: count %d overruns the element space", r.Base, r.Count)
	}
	return nil
}

// At returns the address of the i'th element of the range.
func (r Range) At(i int) Address {
	return Address{File: r.Base.File, Element: r.Base.Element + uint16(i)}
}

// EncodePath maps a register address onto its CIP request path: the Register
// Map Object class, instance = file number, attribute = element number.
// The same mapping applies to reads and writes; element numbers are used
// as attribute IDs directly (0-based, the device's own element offsets).
// Total for any representable address.
func EncodePath(addr Address) cip.EPath_t {
	path, _ := cip.EPath().
		Class16(RegisterMapClass).
		Instance16(addr.File).
		Attribute16(addr.Element).
		Build()
	return path
}

// BlockPath returns the path of the vendor block services: the Register Map
// Object's single instance.  Addressing rides in the request payload instead
// of the path.
func BlockPath() cip.EPath_t {
	path, _ := cip.EPath().
		Class16(RegisterMapClass).
		Instance16(RegisterMapInstance).
		Build()
	return path
}
