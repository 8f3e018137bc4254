package dnswire

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// DecodeName reads a possibly compressed name starting at off.
// It returns the name without trailing dot and the offset of the first byte
// after the name as it appears at off.
//
// Compression pointers must point strictly backwards from their own
// position and at most MaxPointerHops pointers are followed.
func DecodeName(msg []byte, off int) (name string, next int, err error) {
	if off < 0 || off >= len(msg) {
		return "", 0, fmt.Errorf("%w: name offset %d outside message of %d bytes", ErrTruncated, off, len(msg))
	}

	var (
		sb      strings.Builder
		pos     = off
		hops    int
		wireLen = 1 // terminating zero
	)
	next = -1

	for {
		if pos >= len(msg) {
			return "", 0, fmt.Errorf("%w: name at %d", ErrTruncated, off)
		}
		c := int(msg[pos])

		switch c & 0xC0 {
		case 0x00:
			if c == 0 {
				if next < 0 {
					next = pos + 1
				}
				return sb.String(), next, nil
			}
			if pos+1+c > len(msg) {
				return "", 0, fmt.Errorf("%w: label at %d", ErrTruncated, pos)
			}
			wireLen += c + 1
			if wireLen > MaxNameLen {
				return "", 0, fmt.Errorf("%w: name at %d", ErrNameTooLong, off)
			}
			if sb.Len() > 0 {
				sb.WriteByte('.')
			}
			sb.Write(msg[pos+1 : pos+1+c])
			pos += 1 + c

		case 0xC0:
			if pos+2 > len(msg) {
				return "", 0, fmt.Errorf("%w: pointer at %d", ErrTruncated, pos)
			}
			target := int(binary.BigEndian.Uint16(msg[pos:]) & 0x3FFF)
			if target >= pos {
				return "", 0, fmt.Errorf("%w: pointer at %d to %d", ErrPointerLoop, pos, target)
			}
			hops++
			if hops > MaxPointerHops {
				return "", 0, fmt.Errorf("%w: more than %d hops", ErrPointerLoop, MaxPointerHops)
			}
			if next < 0 {
				next = pos + 2
			}
			pos = target

		default:
			// 0x40 and 0x80 label types are reserved.
			return "", 0, fmt.Errorf("%w: label type %#x at %d", ErrInvalidLabel, c&0xC0, pos)
		}
	}
}

// AppendName appends the uncompressed wire form of name to b.
// A trailing dot is accepted; the empty name and "." encode the root.
func AppendName(b []byte, name string) ([]byte, error) {
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return append(b, 0), nil
	}
	if len(name)+2 > MaxNameLen {
		return b, fmt.Errorf("%w: %q", ErrNameTooLong, name)
	}

	for _, label := range strings.Split(name, ".") {
		if label == "" || len(label) > MaxLabelLen {
			return b, fmt.Errorf("%w: %q in %q", ErrInvalidLabel, label, name)
		}
		b = append(b, byte(len(label)))
		b = append(b, label...)
	}
	return append(b, 0), nil
}

// EncodeName returns the uncompressed wire form of name.
func EncodeName(name string) ([]byte, error) {
	return AppendName(make([]byte, 0, len(name)+2), name)
}

// HasLocalSuffix reports whether name belongs to the mDNS ".local" domain.
func HasLocalSuffix(name string) bool {
	name = strings.TrimSuffix(name, ".")
	return len(name) > len(LocalSuffix) && strings.EqualFold(name[len(name)-len(LocalSuffix):], LocalSuffix)
}

// LocalName returns hostname with the ".local" suffix appended, if missing.
func LocalName(hostname string) string {
	hostname = strings.TrimSuffix(hostname, ".")
	if HasLocalSuffix(hostname) {
		return hostname
	}
	return hostname + LocalSuffix
}
