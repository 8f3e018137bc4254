package dnswire

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Question is an entry of the question section.
type Question struct {
	Name  string
	Type  uint16
	Class uint16
}

// Record is a decoded resource record.
// Addr is set for A and AAAA records, Target for CNAME records. The rdata of
// all other types is skipped.
type Record struct {
	Name  string
	Type  uint16
	Class uint16
	TTL   uint32

	Addr   netip.Addr
	Target string
}

// DecodeQuestion decodes the question at off.
func DecodeQuestion(msg []byte, off int) (Question, int, error) {
	name, off, err := DecodeName(msg, off)
	if err != nil {
		return Question{}, 0, err
	}
	if off+questionFixedLen > len(msg) {
		return Question{}, 0, fmt.Errorf("%w: question %q", ErrTruncated, name)
	}

	return Question{
		Name:  name,
		Type:  binary.BigEndian.Uint16(msg[off:]),
		Class: binary.BigEndian.Uint16(msg[off+2:]),
	}, off + questionFixedLen, nil
}

// DecodeRecord decodes the resource record at off.
func DecodeRecord(msg []byte, off int) (Record, int, error) {
	name, off, err := DecodeName(msg, off)
	if err != nil {
		return Record{}, 0, err
	}
	if off+recordFixedLen > len(msg) {
		return Record{}, 0, fmt.Errorf("%w: record %q", ErrTruncated, name)
	}

	rr := Record{
		Name:  name,
		Type:  binary.BigEndian.Uint16(msg[off:]),
		Class: binary.BigEndian.Uint16(msg[off+2:]),
		TTL:   binary.BigEndian.Uint32(msg[off+4:]),
	}
	rdlen := int(binary.BigEndian.Uint16(msg[off+8:]))
	off += recordFixedLen
	end := off + rdlen
	if end > len(msg) {
		return Record{}, 0, fmt.Errorf("%w: rdata of %q needs %d bytes", ErrTruncated, name, rdlen)
	}
	rdata := msg[off:end]

	switch rr.Type {
	case TypeA:
		if rdlen != 4 {
			return Record{}, 0, fmt.Errorf("%w: A record of %q with %d bytes", ErrBadRData, name, rdlen)
		}
		rr.Addr = netip.AddrFrom4([4]byte(rdata))
	case TypeAAAA:
		if rdlen != 16 {
			return Record{}, 0, fmt.Errorf("%w: AAAA record of %q with %d bytes", ErrBadRData, name, rdlen)
		}
		rr.Addr = netip.AddrFrom16([16]byte(rdata))
	case TypeCNAME:
		// The target may be compressed and thus refers to the whole message.
		target, targetEnd, err := DecodeName(msg, off)
		if err != nil {
			return Record{}, 0, err
		}
		if targetEnd > end {
			return Record{}, 0, fmt.Errorf("%w: CNAME target of %q exceeds rdata", ErrBadRData, name)
		}
		rr.Target = target
	default:
		// PTR, HINFO, TXT and everything else: skip.
	}

	return rr, end, nil
}

// AppendQuestion appends the wire form of q to b.
func AppendQuestion(b []byte, q Question) ([]byte, error) {
	b, err := AppendName(b, q.Name)
	if err != nil {
		return b, err
	}
	b = binary.BigEndian.AppendUint16(b, q.Type)
	return binary.BigEndian.AppendUint16(b, q.Class), nil
}

// AppendAddressRecord appends an A or AAAA record binding name to addr.
func AppendAddressRecord(b []byte, name string, addr netip.Addr, class uint16, ttl uint32) ([]byte, error) {
	if !addr.IsValid() {
		return b, ErrInvalidAddress
	}
	addr = addr.Unmap()

	b, err := AppendName(b, name)
	if err != nil {
		return b, err
	}
	rdata := addr.AsSlice()
	rrType := TypeA
	if addr.Is6() {
		rrType = TypeAAAA
	}
	b = binary.BigEndian.AppendUint16(b, rrType)
	b = binary.BigEndian.AppendUint16(b, class)
	b = binary.BigEndian.AppendUint32(b, ttl)
	b = binary.BigEndian.AppendUint16(b, uint16(len(rdata)))
	return append(b, rdata...), nil
}
