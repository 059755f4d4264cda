package rmc

import (
	"encoding/binary"
	"fmt"
	"math"
)

// WordSize is the wire size of one register in bytes.
const WordSize = 4

// Datatype selects how a register word is interpreted.  It changes decoding
// only, never the wire bytes: the same bit pattern read as Float or Int32 is
// bit-identical to what the controller reports through either view.
type Datatype int

const (
	Float Datatype = iota
	Int32
)

func (d Datatype) String() string {
	switch d {
	case Float:
		return "float"
	case Int32:
		return "int32"
	default:
		return fmt.Sprintf("datatype(%d)", int(d))
	}
}

// ParseDatatype parses the config spelling of a datatype.
func ParseDatatype(s string) (Datatype, error) {
	switch s {
	case "float", "REAL", "":
		return Float, nil
	case "int32", "DINT":
		return Int32, nil
	default:
		return Float, fmt.Errorf("unknown datatype %q", s)
	}
}

// The codec is a reinterpretation layer only: little-endian words, IEEE-754
// bits carried through unchanged (no scaling, no NaN/Inf substitution).

func EncodeFloat(v float32) []byte {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))
}

func EncodeInt32(v int32) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(v))
}

func EncodeFloats(vals []float32) []byte {
	out := make([]byte, 0, len(vals)*WordSize)
	for _, v := range vals {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
	}
	return out
}

func EncodeInt32s(vals []int32) []byte {
	out := make([]byte, 0, len(vals)*WordSize)
	for _, v := range vals {
		out = binary.LittleEndian.AppendUint32(out, uint32(v))
	}
	return out
}

// DecodeFloats reinterprets count words from raw.  Trailing bytes beyond
// count words are ignored (the device may pad responses).
func DecodeFloats(raw []byte, count int) ([]float32, error) {
	if len(raw) < count*WordSize {
		return nil, fmt.Errorf("DecodeFloats: expected %d bytes, got %d", count*WordSize, len(raw))
	}
	out := make([]float32, count)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*WordSize:]))
	}
	return out, nil
}

// DecodeInt32s reinterprets count words from raw.
func DecodeInt32s(raw []byte, count int) ([]int32, error) {
	if len(raw) < count*WordSize {
		return nil, fmt.Errorf("DecodeInt32s: expected %d bytes, got %d", count*WordSize, len(raw))
	}
	out := make([]int32, count)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(raw[i*WordSize:]))
	}
	return out, nil
}
