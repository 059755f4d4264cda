package rmc

import (
	"bytes"
	"math"
	"testing"
)

func TestParseDatatype(t *testing.T) {
	tests := []struct {
		input   string
		want    Datatype
		wantErr bool
	}{
		{"float", Float, false},
		{"REAL", Float, false},
		{"", Float, false},
		{"int32", Int32, false},
		{"DINT", Int32, false},
		{"double", Float, true},
		{"FLOAT", Float, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDatatype(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDatatype(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseDatatype(%q) unexpected error: %v", tt.input, err)
				return
			}
			if got != tt.want {
				t.Errorf("ParseDatatype(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEncodeFloatLittleEndian(t *testing.T) {
	// 1.0 = 0x3F800000, little-endian on the wire.
	got := EncodeFloat(1.0)
	want := []byte{0x00, 0x00, 0x80, 0x3F}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeFloat(1.0) = % X, want % X", got, want)
	}
}

func TestEncodeInt32LittleEndian(t *testing.T) {
	got := EncodeInt32(-2)
	want := []byte{0xFE, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeInt32(-2) = % X, want % X", got, want)
	}
}

func TestFloatBitExactRoundTrip(t *testing.T) {
	// The codec must carry bit patterns through unchanged, including
	// non-finite values and negative zero.
	patterns := []uint32{
		0x00000000,             // +0
		0x80000000,             // -0
		0x3F800000,             // 1.0
		0x7F800000,             // +Inf
		0xFF800000,             // -Inf
		0x7FC00001,             // quiet NaN with payload
		0x00000001,             // smallest subnormal
		0x7F7FFFFF,             // max finite
		math.Float32bits(3.14159),
	}

	for _, bits := range patterns {
		v := math.Float32frombits(bits)
		enc := EncodeFloat(v)
		dec, err := DecodeFloats(enc, 1)
		if err != nil {
			t.Fatalf("DecodeFloats error for bits 0x%08X: %v", bits, err)
		}
		if got := math.Float32bits(dec[0]); got != bits {
			t.Errorf("round trip bits = 0x%08X, want 0x%08X", got, bits)
		}
	}
}

func TestFloatIntReinterpretation(t *testing.T) {
	// The same wire word decodes to both views without value conversion.
	word := EncodeInt32(0x3F800000)

	ints, err := DecodeInt32s(word, 1)
	if err != nil {
		t.Fatalf("DecodeInt32s error: %v", err)
	}
	floats, err := DecodeFloats(word, 1)
	if err != nil {
		t.Fatalf("DecodeFloats error: %v", err)
	}

	if ints[0] != 0x3F800000 {
		t.Errorf("int view = 0x%08X, want 0x3F800000", ints[0])
	}
	if floats[0] != 1.0 {
		t.Errorf("float view = %v, want 1.0", floats[0])
	}
}

func TestEncodeSlices(t *testing.T) {
	raw := EncodeFloats([]float32{1.0, 2.0})
	if len(raw) != 8 {
		t.Fatalf("EncodeFloats length = %d, want 8", len(raw))
	}
	dec, err := DecodeFloats(raw, 2)
	if err != nil {
		t.Fatalf("DecodeFloats error: %v", err)
	}
	if dec[0] != 1.0 || dec[1] != 2.0 {
		t.Errorf("decoded = %v, want [1 2]", dec)
	}

	iraw := EncodeInt32s([]int32{-1, 2147483647, -2147483648})
	idec, err := DecodeInt32s(iraw, 3)
	if err != nil {
		t.Fatalf("DecodeInt32s error: %v", err)
	}
	if idec[0] != -1 || idec[1] != 2147483647 || idec[2] != -2147483648 {
		t.Errorf("decoded = %v", idec)
	}
}

func TestDecodeShortBuffer(t *testing.T) {
	if _, err := DecodeFloats([]byte{0x00, 0x00, 0x80}, 1); err == nil {
		t.Error("DecodeFloats with 3 bytes expected error, got nil")
	}
	if _, err := DecodeInt32s([]byte{0x01, 0x02, 0x03, 0x04}, 2); err == nil {
		t.Error("DecodeInt32s with 4 bytes for count 2 expected error, got nil")
	}
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	raw := append(EncodeInt32(42), 0xAA, 0xBB)
	dec, err := DecodeInt32s(raw, 1)
	if err != nil {
		t.Fatalf("DecodeInt32s error: %v", err)
	}
	if dec[0] != 42 {
		t.Errorf("decoded = %d, want 42", dec[0])
	}
}
