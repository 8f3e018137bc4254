package dnswire

import (
	"fmt"
	"net/netip"
)

// Message is a decoded DNS message.
type Message struct {
	Header     Header
	Questions  []Question
	Answers    []Record
	Authority  []Record
	Additional []Record
}

// Records returns the records of all three sections in wire order.
func (m *Message) Records() []Record {
	all := make([]Record, 0, len(m.Answers)+len(m.Authority)+len(m.Additional))
	all = append(all, m.Answers...)
	all = append(all, m.Authority...)
	return append(all, m.Additional...)
}

// Parse decodes a complete message.
func Parse(msg []byte) (*Message, error) {
	h, err := DecodeHeader(msg)
	if err != nil {
		return nil, err
	}

	m := &Message{Header: h}
	off := HeaderLen

	// Every question and record consumes at least one byte, so the counts
	// cannot make this loop run longer than the message.
	if int(h.QDCount) > 0 {
		m.Questions = make([]Question, 0, min(int(h.QDCount), len(msg)/(questionFixedLen+1)))
	}
	for i := range int(h.QDCount) {
		var q Question
		q, off, err = DecodeQuestion(msg, off)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		m.Questions = append(m.Questions, q)
	}

	for _, section := range []struct {
		count uint16
		dst   *[]Record
		name  string
	}{
		{h.ANCount, &m.Answers, "answer"},
		{h.NSCount, &m.Authority, "authority"},
		{h.ARCount, &m.Additional, "additional"},
	} {
		for i := range int(section.count) {
			var rr Record
			rr, off, err = DecodeRecord(msg, off)
			if err != nil {
				return nil, fmt.Errorf("%s %d: %w", section.name, i, err)
			}
			*section.dst = append(*section.dst, rr)
		}
	}

	return m, nil
}

// EncodeQuery builds a query with a single question for hostname.
// Unicast queries set recursion desired, mDNS queries do not.
func EncodeQuery(hostname string, id uint16, qtype uint16, recursionDesired bool) ([]byte, error) {
	b := make([]byte, 0, HeaderLen+len(hostname)+2+questionFixedLen)
	b = AppendHeader(b, Header{
		ID:               id,
		RecursionDesired: recursionDesired,
		QDCount:          1,
	})
	return AppendQuestion(b, Question{
		Name:  hostname,
		Type:  qtype,
		Class: ClassINET,
	})
}

// EncodeSelfAnswer builds an authoritative response announcing that
// hostname.local has the address addr. The record type (A or AAAA) follows
// the address family.
func EncodeSelfAnswer(hostname string, addr netip.Addr, id uint16, ttl uint32) ([]byte, error) {
	name := LocalName(hostname)
	b := make([]byte, 0, HeaderLen+len(name)+2+recordFixedLen+16)
	b = AppendHeader(b, Header{
		ID:            id,
		Response:      true,
		Authoritative: true,
		ANCount:       1,
	})
	return AppendAddressRecord(b, name, addr, ClassINET, ttl)
}
