package rmc

import (
	"testing"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input       string
		wantErr     bool
		wantFile    uint16
		wantElement uint16
	}{
		{"F57:30", false, 57, 30},
		{"f57:30", false, 57, 30},
		{"57:30", false, 57, 30},
		{"F0:0", false, 0, 0},
		{"F65535:65535", false, 65535, 65535},
		{" F56:10 ", false, 56, 10},

		{"", true, 0, 0},
		{"F57", true, 0, 0},
		{"F57:", true, 0, 0},
		{":30", true, 0, 0},
		{"F-1:0", true, 0, 0},
		{"F57:70000", true, 0, 0},
		{"F57:30:1", true, 0, 0},
		{"Fabc:30", true, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			addr, err := ParseAddress(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseAddress(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseAddress(%q) unexpected error: %v", tt.input, err)
				return
			}
			if addr.File != tt.wantFile {
				t.Errorf("ParseAddress(%q) File = %d, want %d", tt.input, addr.File, tt.wantFile)
			}
			if addr.Element != tt.wantElement {
				t.Errorf("ParseAddress(%q) Element = %d, want %d", tt.input, addr.Element, tt.wantElement)
			}
		})
	}
}

func TestAddressString(t *testing.T) {
	addr := Address{File: 56, Element: 10}
	if got := addr.String(); got != "F56:10" {
		t.Errorf("String() = %q, want %q", got, "F56:10")
	}
}

func TestAddressRoundTrip(t *testing.T) {
	orig := Address{File: 57, Element: 30}
	parsed, err := ParseAddress(orig.String())
	if err != nil {
		t.Fatalf("ParseAddress(%q) error: %v", orig.String(), err)
	}
	if parsed != orig {
		t.Errorf("round trip = %v, want %v", parsed, orig)
	}
}

func TestRangeValidate(t *testing.T) {
	tests := []struct {
		name    string
		rng     Range
		wantErr bool
	}{
		{"single", Range{Base: Address{File: 56, Element: 0}, Count: 1}, false},
		{"many", Range{Base: Address{File: 56, Element: 0}, Count: 1024}, false},
		{"at end", Range{Base: Address{File: 56, Element: 65535}, Count: 1}, false},
		{"to end", Range{Base: Address{File: 56, Element: 65500}, Count: 36}, false},

		{"zero count", Range{Base: Address{File: 56, Element: 0}, Count: 0}, true},
		{"wraps", Range{Base: Address{File: 56, Element: 65535}, Count: 2}, true},
		{"wraps far", Range{Base: Address{File: 56, Element: 65500}, Count: 37}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rng.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("Validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestRangeAt(t *testing.T) {
	rng := Range{Base: Address{File: 57, Element: 10}, Count: 5}
	for i := 0; i < 5; i++ {
		got := rng.At(i)
		want := Address{File: 57, Element: uint16(10 + i)}
		if got != want {
			t.Errorf("At(%d) = %v, want %v", i, got, want)
		}
	}
}

func TestEncodePath(t *testing.T) {
	// Class 0xC0, instance = file, attribute = element, all 16-bit padded.
	path := EncodePath(Address{File: 57, Element: 30})
	want := []byte{
		0x21, 0x00, 0xC0, 0x00, // class 0xC0
		0x25, 0x00, 0x39, 0x00, // instance 57
		0x31, 0x00, 0x1E, 0x00, // attribute 30
	}
	if len(path) != len(want) {
		t.Fatalf("path length = %d, want %d (% X)", len(path), len(want), path)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Errorf("path[%d] = 0x%02X, want 0x%02X", i, path[i], want[i])
		}
	}
	if path.WordLen() != 6 {
		t.Errorf("WordLen() = %d, want 6", path.WordLen())
	}
}

func TestBlockPath(t *testing.T) {
	path := BlockPath()
	want := []byte{
		0x21, 0x00, 0xC0, 0x00, // class 0xC0
		0x25, 0x00, 0x01, 0x00, // instance 1
	}
	if len(path) != len(want) {
		t.Fatalf("path length = %d, want %d (% X)", len(path), len(want), path)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Errorf("path[%d] = 0x%02X, want 0x%02X", i, path[i], want[i])
		}
	}
}
