// Package dnswire encodes and decodes the subset of the DNS wire format used
// by the uDNS resolver and mDNS responder.
//
// The codec is total over all byte inputs: every malformed, truncated or
// hostile message yields an error and never a panic.
package dnswire

import (
	"errors"

	"github.com/miekg/dns"
)

// Size limits.
const (
	HeaderLen      = 12
	MaxNameLen     = 255
	MaxLabelLen    = 63
	MaxPointerHops = 5

	// fixed fields of a resource record after the owner name
	recordFixedLen = 10
	// fixed fields of a question after the name
	questionFixedLen = 4
)

// Record types handled by the resolver.
const (
	TypeA     uint16 = dns.TypeA
	TypeCNAME uint16 = dns.TypeCNAME
	TypePTR   uint16 = dns.TypePTR
	TypeHINFO uint16 = dns.TypeHINFO
	TypeTXT   uint16 = dns.TypeTXT
	TypeAAAA  uint16 = dns.TypeAAAA
	TypeANY   uint16 = dns.TypeANY
)

// DNS Classes.
const (
	ClassINET uint16 = dns.ClassINET
	// ClassTopBit is the mDNS unicast-response bit in questions and the
	// cache-flush bit in records.
	ClassTopBit uint16 = 1 << 15
)

// Response codes.
const (
	RcodeSuccess   uint8 = dns.RcodeSuccess
	RcodeNameError uint8 = dns.RcodeNameError
)

// DefaultSelfTTL is the TTL in seconds of records announcing the own address.
const DefaultSelfTTL uint32 = 10000

// LocalSuffix is the domain suffix resolved via multicast DNS.
const LocalSuffix = ".local"

// Errors.
var (
	// ErrTruncated is returned when a message ends before a field is complete.
	ErrTruncated = errors.New("dns message truncated")
	// ErrInvalidLabel is returned for reserved label types and bad label lengths.
	ErrInvalidLabel = errors.New("invalid label")
	// ErrPointerLoop is returned for compression pointers that do not point
	// backwards or exceed the hop limit.
	ErrPointerLoop = errors.New("invalid compression pointer")
	// ErrNameTooLong is returned when a name exceeds 255 bytes on the wire.
	ErrNameTooLong = errors.New("name too long")
	// ErrBadRData is returned when the rdata length does not fit the record type.
	ErrBadRData = errors.New("invalid rdata")
	// ErrInvalidAddress is returned when encoding an answer without a valid address.
	ErrInvalidAddress = errors.New("invalid address")
)

// ClassIsINET reports whether class is IN, ignoring the mDNS top bit.
func ClassIsINET(class uint16) bool {
	return class&^ClassTopBit == ClassINET
}

// TypeString returns the mnemonic of a record type.
func TypeString(t uint16) string {
	return dns.Type(t).String()
}
