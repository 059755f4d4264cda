package eip

import (
	"bytes"
	"testing"
)

func TestUnconnectedPacketRoundTrip(t *testing.T) {
	cipReq := []byte{0x0E, 0x06, 0x21, 0x00, 0xC0, 0x00, 0x25, 0x00, 0x39, 0x00, 0x31, 0x00, 0x1E, 0x00}

	packet := NewUnconnectedPacket(cipReq)
	raw := packet.Bytes()

	parsed, err := ParseEipCommonPacket(raw)
	if err != nil {
		t.Fatalf("ParseEipCommonPacket: %v", err)
	}
	if len(parsed.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(parsed.Items))
	}
	if parsed.Items[0].TypeId != CpfAddressNullId {
		t.Errorf("item 0 type = 0x%04X, want null address", parsed.Items[0].TypeId)
	}
	if parsed.Items[0].Length != 0 {
		t.Errorf("item 0 length = %d, want 0", parsed.Items[0].Length)
	}
	if parsed.Items[1].TypeId != CpfUnconnectedMessageId {
		t.Errorf("item 1 type = 0x%04X, want unconnected data", parsed.Items[1].TypeId)
	}

	data, err := parsed.UnconnectedData()
	if err != nil {
		t.Fatalf("UnconnectedData: %v", err)
	}
	if !bytes.Equal(data, cipReq) {
		t.Errorf("data = % X, want % X", data, cipReq)
	}
}

func TestParseEipCommonPacketErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"one byte", []byte{0x02}},
		{"count without items", []byte{0x02, 0x00}},
		{"truncated item header", []byte{0x01, 0x00, 0x00, 0x00, 0x04}},
		{"truncated item data", []byte{0x01, 0x00, 0xB2, 0x00, 0x08, 0x00, 0x01, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEipCommonPacket(tt.raw); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestUnconnectedDataWrongShape(t *testing.T) {
	oneItem := &EipCommonPacket{Items: []EipCommonPacketItem{{TypeId: CpfAddressNullId}}}
	if _, err := oneItem.UnconnectedData(); err == nil {
		t.Error("single item expected error")
	}

	wrongType := &EipCommonPacket{Items: []EipCommonPacketItem{
		{TypeId: CpfAddressNullId},
		{TypeId: CpfConnectedTransportId, Length: 1, Data: []byte{0x00}},
	}}
	if _, err := wrongType.UnconnectedData(); err == nil {
		t.Error("wrong second item type expected error")
	}
}

func TestEncapBytesLayout(t *testing.T) {
	msg := EipEncap{
		command:       0x6F,
		length:        4,
		sessionHandle: 0x11223344,
		data:          []byte{0xDE, 0xAD, 0xBE, 0xEF},
	}
	raw := msg.Bytes()

	if len(raw) != 28 {
		t.Fatalf("frame length = %d, want 28", len(raw))
	}
	// command, little-endian
	if raw[0] != 0x6F || raw[1] != 0x00 {
		t.Errorf("command bytes = % X", raw[:2])
	}
	// length
	if raw[2] != 0x04 || raw[3] != 0x00 {
		t.Errorf("length bytes = % X", raw[2:4])
	}
	// session handle
	if !bytes.Equal(raw[4:8], []byte{0x44, 0x33, 0x22, 0x11}) {
		t.Errorf("session bytes = % X", raw[4:8])
	}
	// payload at offset 24
	if !bytes.Equal(raw[24:], []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Errorf("payload = % X", raw[24:])
	}
}

func TestCommandDataRoundTrip(t *testing.T) {
	cd := EipCommandData{timeout: 10, packet: []byte{0x01, 0x00, 0x00, 0x00}}
	raw := cd.Bytes()

	parsed, err := ParseEipCommandData(raw)
	if err != nil {
		t.Fatalf("ParseEipCommandData: %v", err)
	}
	if parsed.timeout != 10 {
		t.Errorf("timeout = %d, want 10", parsed.timeout)
	}
	if !bytes.Equal(parsed.packet, cd.packet) {
		t.Errorf("packet = % X, want % X", parsed.packet, cd.packet)
	}

	if _, err := ParseEipCommandData([]byte{0x01, 0x02}); err == nil {
		t.Error("short command data expected error")
	}
}
