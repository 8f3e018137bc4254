package dnswire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameRoundTrip(t *testing.T) {
	t.Parallel()

	names := []string{
		"",
		"a",
		"printer.local",
		"host.example.com",
		"x1-y2.sub.domain.example",
		strings.Repeat("a", MaxLabelLen) + ".local",
		// 4 labels of 63 bytes are 256 bytes on the wire, 3 plus one of 61 are 253.
		strings.Repeat("b", 63) + "." + strings.Repeat("c", 63) + "." + strings.Repeat("d", 63) + "." + strings.Repeat("e", 61),
	}

	for _, name := range names {
		wire, err := EncodeName(name)
		require.NoError(t, err, name)

		decoded, next, err := DecodeName(wire, 0)
		require.NoError(t, err, name)
		assert.Equal(t, name, decoded)
		assert.Equal(t, len(wire), next)
	}
}

func TestEncodeNameRejects(t *testing.T) {
	t.Parallel()

	for _, name := range []string{
		"a..b",
		".leading",
		strings.Repeat("a", MaxLabelLen+1) + ".local",
		strings.Repeat("abcdefg.", 32) + "x",
	} {
		_, err := EncodeName(name)
		assert.Error(t, err, name)
	}

	// Trailing dot is the same name.
	withDot, err := EncodeName("host.local.")
	require.NoError(t, err)
	without, err := EncodeName("host.local")
	require.NoError(t, err)
	assert.Equal(t, without, withDot)
}

func TestDecodeNameCompression(t *testing.T) {
	t.Parallel()

	msg := []byte{
		// 0: "example.local"
		7, 'e', 'x', 'a', 'm', 'p', 'l', 'e',
		5, 'l', 'o', 'c', 'a', 'l',
		0,
		// 15: "test" + pointer to "local" at 8
		4, 't', 'e', 's', 't',
		0xC0, 0x08,
		// 22: pointer to 15, chaining to 8
		0xC0, 0x0F,
	}

	name, next, err := DecodeName(msg, 15)
	require.NoError(t, err)
	assert.Equal(t, "test.local", name)
	assert.Equal(t, 22, next)

	name, next, err = DecodeName(msg, 22)
	require.NoError(t, err)
	assert.Equal(t, "test.local", name)
	assert.Equal(t, 24, next)

	// Same as the uncompressed form.
	plain, err := EncodeName("test.local")
	require.NoError(t, err)
	plainName, _, err := DecodeName(plain, 0)
	require.NoError(t, err)
	assert.Equal(t, plainName, name)
}

func TestDecodeNameRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  []byte
		off  int
		err  error
	}{
		{"empty buffer", []byte{}, 0, ErrTruncated},
		{"offset past end", []byte{0}, 1, ErrTruncated},
		{"negative offset", []byte{0}, -1, ErrTruncated},
		{"missing terminator", []byte{3, 'a', 'b', 'c'}, 0, ErrTruncated},
		{"label past end", []byte{9, 'a', 'b'}, 0, ErrTruncated},
		{"half pointer", []byte{0xC0}, 0, ErrTruncated},
		{"self pointer", []byte{0xC0, 0x00}, 0, ErrPointerLoop},
		{"forward pointer", []byte{0xC0, 0x02, 0}, 0, ErrPointerLoop},
		{"reserved label type 01", []byte{0x40, 0}, 0, ErrInvalidLabel},
		{"reserved label type 10", []byte{0x80, 0}, 0, ErrInvalidLabel},
		{
			"pointer ping pong",
			// 0: "a" then pointer to 4, 4: pointer to 0
			[]byte{1, 'a', 0xC0, 0x04, 0xC0, 0x00},
			4,
			ErrPointerLoop,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := DecodeName(tc.msg, tc.off)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestDecodeNameHopLimit(t *testing.T) {
	t.Parallel()

	// A chain of backward pointers, each hop pointing two bytes further back.
	build := func(hops int) ([]byte, int) {
		msg := []byte{1, 'x', 0}
		prev := 0
		for range hops {
			at := len(msg)
			msg = append(msg, 0xC0, byte(prev))
			prev = at
		}
		return msg, prev
	}

	msg, start := build(MaxPointerHops)
	name, _, err := DecodeName(msg, start)
	require.NoError(t, err)
	assert.Equal(t, "x", name)

	msg, start = build(MaxPointerHops + 1)
	_, _, err = DecodeName(msg, start)
	assert.ErrorIs(t, err, ErrPointerLoop)
}

func TestDecodeNameTooLong(t *testing.T) {
	t.Parallel()

	var msg []byte
	for range 5 {
		msg = append(msg, 60)
		msg = append(msg, []byte(strings.Repeat("z", 60))...)
	}
	msg = append(msg, 0)

	_, _, err := DecodeName(msg, 0)
	assert.ErrorIs(t, err, ErrNameTooLong)
}

func TestLocalSuffix(t *testing.T) {
	t.Parallel()

	assert.True(t, HasLocalSuffix("printer.local"))
	assert.True(t, HasLocalSuffix("printer.LOCAL."))
	assert.False(t, HasLocalSuffix(".local"))
	assert.False(t, HasLocalSuffix("local"))
	assert.False(t, HasLocalSuffix("host.example.com"))
	assert.False(t, HasLocalSuffix("notlocal"))

	assert.Equal(t, "node.local", LocalName("node"))
	assert.Equal(t, "node.local", LocalName("node.local"))
	assert.Equal(t, "node.local", LocalName("node."))
}
