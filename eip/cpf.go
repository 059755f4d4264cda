package eip

// Common Packet Format wrapping per ODVA v1.4.

import (
	"encoding/binary"
	"fmt"
)

const (
	CpfAddressNullId          uint16 = 0x00
	CpfAddressConnectionId    uint16 = 0xA1
	CpfConnectedTransportId   uint16 = 0xB1
	CpfUnconnectedMessageId   uint16 = 0xB2
	CpfSockAddrInfoOtoTId     uint16 = 0x8000
	CpfSockAddrInfoTtoOId     uint16 = 0x8001
	CpfSequencedAddressId     uint16 = 0x8002
)

// A CommonPacket is a wrapper around a list of address/data items.
type EipCommonPacket struct {
	Items []EipCommonPacketItem
}

type EipCommonPacketItem struct {
	TypeId uint16
	Length uint16
	Data   []byte
}

func (p *EipCommonPacket) Bytes() []byte {
	raw := binary.LittleEndian.AppendUint16(nil, uint16(len(p.Items)))
	for _, value := range p.Items {
		raw = append(raw, value.Bytes()...)
	}
	return raw
}

func (item *EipCommonPacketItem) Bytes() []byte {
	raw := binary.LittleEndian.AppendUint16(nil, item.TypeId)
	raw = binary.LittleEndian.AppendUint16(raw, item.Length)
	raw = append(raw, item.Data...)
	return raw
}

// NewUnconnectedPacket wraps an explicit messaging request in the null-address
// plus unconnected-data item pair used by SendRRData.
func NewUnconnectedPacket(cipRequest []byte) *EipCommonPacket {
	return &EipCommonPacket{
		Items: []EipCommonPacketItem{
			{TypeId: CpfAddressNullId, Length: 0, Data: nil},
			{TypeId: CpfUnconnectedMessageId, Length: uint16(len(cipRequest)), Data: cipRequest},
		},
	}
}

// ParseEipCommonPacket parses the item list from a raw byte stream.
func ParseEipCommonPacket(raw []byte) (*EipCommonPacket, error) {

	if len(raw) < 2 {
		return nil, fmt.Errorf("ParseEipCommonPacket: raw bytes too short: minimum 2, got %d", len(raw))
	}

	item_count := binary.LittleEndian.Uint16(raw[:2])
	raw = raw[2:]

	if (item_count > 0) && len(raw) == 0 {
		return nil, fmt.Errorf("ParseEipCommonPacket: item count is nonzero but no bytes remain")
	}

	var cp_items []EipCommonPacketItem

	var i uint16 = 0
	for i = 0; i < item_count; i += 1 {

		if len(raw) < 4 {
			return nil, fmt.Errorf("ParseEipCommonPacket: truncated item header at item %d: have %d bytes", i, len(raw))
		}

		type_id := binary.LittleEndian.Uint16(raw[:2])
		length := binary.LittleEndian.Uint16(raw[2:4])

		need := int(4 + length)
		if len(raw) < need {
			return nil, fmt.Errorf("ParseEipCommonPacket: insufficient data for item %d: need %d bytes, have %d", i, need, len(raw))
		}

		data := raw[4 : 4+length]
		cp_items = append(cp_items, EipCommonPacketItem{TypeId: type_id, Length: length, Data: data})

		raw = raw[4+length:]
	}

	return &EipCommonPacket{Items: cp_items}, nil
}

// UnconnectedData returns the payload of the unconnected data item, which is
// expected to be the second item of a SendRRData response.
func (p *EipCommonPacket) UnconnectedData() ([]byte, error) {
	if len(p.Items) < 2 {
		return nil, fmt.Errorf("UnconnectedData: expected 2 CPF items, got %d", len(p.Items))
	}
	if p.Items[1].TypeId != CpfUnconnectedMessageId {
		return nil, fmt.Errorf("UnconnectedData: unexpected item type 0x%04X", p.Items[1].TypeId)
	}
	return p.Items[1].Data, nil
}
