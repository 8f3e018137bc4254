package dnswire

import (
	"encoding/binary"
	"fmt"
)

// Header is the fixed 12 byte DNS message header.
type Header struct {
	ID                 uint16
	Response           bool
	Opcode             uint8
	Authoritative      bool
	Truncated          bool
	RecursionDesired   bool
	RecursionAvailable bool
	Zero               uint8
	RCode              uint8

	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// flag bit positions, most significant first.
const (
	flagQR     = 1 << 15
	flagAA     = 1 << 10
	flagTC     = 1 << 9
	flagRD     = 1 << 8
	flagRA     = 1 << 7
	opcodeBits = 11
	zeroBits   = 4
)

// DecodeHeader decodes the header at the start of msg.
func DecodeHeader(msg []byte) (Header, error) {
	if len(msg) < HeaderLen {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, got %d", ErrTruncated, HeaderLen, len(msg))
	}

	flags := binary.BigEndian.Uint16(msg[2:])
	return Header{
		ID:                 binary.BigEndian.Uint16(msg[0:]),
		Response:           flags&flagQR != 0,
		Opcode:             uint8(flags>>opcodeBits) & 0x0F,
		Authoritative:      flags&flagAA != 0,
		Truncated:          flags&flagTC != 0,
		RecursionDesired:   flags&flagRD != 0,
		RecursionAvailable: flags&flagRA != 0,
		Zero:               uint8(flags>>zeroBits) & 0x07,
		RCode:              uint8(flags) & 0x0F,
		QDCount:            binary.BigEndian.Uint16(msg[4:]),
		ANCount:            binary.BigEndian.Uint16(msg[6:]),
		NSCount:            binary.BigEndian.Uint16(msg[8:]),
		ARCount:            binary.BigEndian.Uint16(msg[10:]),
	}, nil
}

// flags packs the flag fields into their 16 bit wire representation.
func (h Header) flags() uint16 {
	var f uint16
	if h.Response {
		f |= flagQR
	}
	f |= uint16(h.Opcode&0x0F) << opcodeBits
	if h.Authoritative {
		f |= flagAA
	}
	if h.Truncated {
		f |= flagTC
	}
	if h.RecursionDesired {
		f |= flagRD
	}
	if h.RecursionAvailable {
		f |= flagRA
	}
	f |= uint16(h.Zero&0x07) << zeroBits
	f |= uint16(h.RCode & 0x0F)
	return f
}

// AppendHeader appends the wire form of h to b.
func AppendHeader(b []byte, h Header) []byte {
	b = binary.BigEndian.AppendUint16(b, h.ID)
	b = binary.BigEndian.AppendUint16(b, h.flags())
	b = binary.BigEndian.AppendUint16(b, h.QDCount)
	b = binary.BigEndian.AppendUint16(b, h.ANCount)
	b = binary.BigEndian.AppendUint16(b, h.NSCount)
	return binary.BigEndian.AppendUint16(b, h.ARCount)
}

// SetID overwrites the transaction ID of an encoded message in place.
func SetID(msg []byte, id uint16) {
	if len(msg) >= 2 {
		binary.BigEndian.PutUint16(msg, id)
	}
}
