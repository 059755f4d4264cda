// Package eip implements the EtherNet/IP encapsulation layer used to carry
// explicit messaging requests: session registration, SendRRData transactions,
// and the Common Packet Format wrapper.
package eip

import (
	"encoding/binary"
	"fmt"
)

// Generic EtherNet/IP encapsulation frame.
type EipEncap struct {
	command       uint16
	length        uint16
	sessionHandle uint32
	status        uint32
	context       [8]byte
	options       uint32
	data          []byte
}

// Interface handle + timeout wrapper carried inside SendRRData frames.
type EipCommandData struct {
	interfaceHandle uint32
	timeout         uint16
	packet          []byte
}

func (m *EipEncap) Bytes() []byte {
	buf := []byte{}
	buf = binary.LittleEndian.AppendUint16(buf, m.command)
	buf = binary.LittleEndian.AppendUint16(buf, m.length)
	buf = binary.LittleEndian.AppendUint32(buf, m.sessionHandle)
	buf = binary.LittleEndian.AppendUint32(buf, m.status)
	buf = append(buf, m.context[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, m.options)
	buf = append(buf, m.data...)
	return buf
}

func (r *EipCommandData) Bytes() []byte {
	raw := binary.LittleEndian.AppendUint32(nil, r.interfaceHandle)
	raw = binary.LittleEndian.AppendUint16(raw, r.timeout)
	raw = append(raw, r.packet...)
	return raw
}

func ParseEipCommandData(raw []byte) (*EipCommandData, error) {
	if len(raw) < 8 {
		return nil, fmt.Errorf("ParseEipCommandData: raw bytes too short: minimum 8, got %d", len(raw))
	}

	return &EipCommandData{
		interfaceHandle: binary.LittleEndian.Uint32(raw[:4]),
		timeout:         binary.LittleEndian.Uint16(raw[4:6]),
		packet:          raw[6:],
	}, nil
}
