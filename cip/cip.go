// Package cip implements the small slice of the Common Industrial Protocol
// needed for explicit messaging to an RMC75E: encoded paths, Message Router
// requests, and response parsing with status code names.
package cip

import (
	"encoding/binary"
	"fmt"
)

// Explicit messaging service codes.
const (
	SvcGetAttributeSingle byte = 0x0E
	SvcSetAttributeSingle byte = 0x10

	// A reply echoes the request service with the high bit set.
	ReplyMask byte = 0x80
)

type Request struct {
	Service byte
	Path    EPath_t
	Data    []byte
}

func (r Request) Marshal() []byte {
	path := r.Path
	out := make([]byte, 0, 2+len(path)+len(r.Data))
	out = append(out, r.Service)
	out = append(out, r.Path.WordLen())
	out = append(out, path...)
	out = append(out, r.Data...)
	return out
}

type Response struct {
	ReplyService     byte
	GeneralStatus    byte
	AdditionalStatus []uint16
	Data             []byte
}

// ParseResponse decodes a Message Router reply:
// [ReplyService 1] [Reserved 1] [GeneralStatus 1] [AddlStatusSize 1] [AddlStatus n*2] [Data n]
func ParseResponse(raw []byte) (*Response, error) {
	if len(raw) < 4 {
		return nil, fmt.Errorf("ParseResponse: response too short: %d bytes", len(raw))
	}

	addlWords := int(raw[3])
	dataStart := 4 + addlWords*2
	if len(raw) < dataStart {
		return nil, fmt.Errorf("ParseResponse: truncated additional status: need %d bytes, have %d", dataStart, len(raw))
	}

	addl := make([]uint16, 0, addlWords)
	for i := 0; i < addlWords; i++ {
		addl = append(addl, binary.LittleEndian.Uint16(raw[4+i*2:6+i*2]))
	}

	return &Response{
		ReplyService:     raw[0],
		GeneralStatus:    raw[2],
		AdditionalStatus: addl,
		Data:             raw[dataStart:],
	}, nil
}

// ExtendedStatus returns the first additional status word, or 0 if none.
func (r *Response) ExtendedStatus() uint16 {
	if r == nil || len(r.AdditionalStatus) == 0 {
		return 0
	}
	return r.AdditionalStatus[0]
}
