package udns

import (
	"fmt"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCacheTTL(t *testing.T) {
	t.Parallel()

	c := newAnswerCache(DefaultCacheBudget)
	addr := netip.MustParseAddr("192.0.2.1")

	require.True(t, c.Insert("h", addr, time.Second, testEpoch))
	got, found := c.Lookup("h", testEpoch.Add(999*time.Millisecond))
	assert.True(t, found)
	assert.Equal(t, addr, got)

	_, found = c.Lookup("h", testEpoch.Add(time.Second))
	assert.False(t, found)
	assert.Zero(t, c.Len(), "expired entry should be removed")
	assert.Zero(t, c.Size())
}

func TestCacheExpiredBehindHead(t *testing.T) {
	t.Parallel()

	c := newAnswerCache(DefaultCacheBudget)
	c.Insert("long", netip.MustParseAddr("192.0.2.1"), time.Hour, testEpoch)
	c.Insert("short", netip.MustParseAddr("192.0.2.2"), time.Second, testEpoch)

	_, found := c.Lookup("short", testEpoch.Add(2*time.Second))
	assert.False(t, found)
	assert.Equal(t, 1, c.Len())
}

func TestCacheFirstInsertWins(t *testing.T) {
	t.Parallel()

	c := newAnswerCache(DefaultCacheBudget)
	first := netip.MustParseAddr("192.0.2.1")
	assert.True(t, c.Insert("h", first, time.Minute, testEpoch))
	assert.False(t, c.Insert("h", netip.MustParseAddr("192.0.2.2"), time.Minute, testEpoch))

	got, _ := c.Lookup("h", testEpoch)
	assert.Equal(t, first, got)
	assert.Equal(t, cacheEntryOverhead+1, c.Size())

	// After expiry the name can be cached again.
	assert.True(t, c.Insert("h", netip.MustParseAddr("192.0.2.3"), time.Minute, testEpoch.Add(time.Hour)))
}

func TestCacheFIFOEviction(t *testing.T) {
	t.Parallel()

	// Every entry is 24+6 bytes, so 3 fit into 100 bytes.
	c := newAnswerCache(100)
	for i := range 10 {
		name := fmt.Sprintf("host-%d", i)
		c.Insert(name, netip.AddrFrom4([4]byte{192, 0, 2, byte(i)}), time.Minute, testEpoch)

		assert.LessOrEqual(t, c.Size(), c.Budget())
		entries := c.Entries()
		require.NotEmpty(t, entries)
		assert.Equal(t, name, entries[len(entries)-1].Hostname, "newest entry must survive")
		for j := 1; j < len(entries); j++ {
			assert.Less(t, entries[j-1].Hostname, entries[j].Hostname, "entries must stay in insertion order")
		}
	}

	// Lookups do not change the eviction order.
	_, found := c.Lookup("host-7", testEpoch)
	require.True(t, found)
	c.Insert("host-x", netip.MustParseAddr("192.0.2.100"), time.Minute, testEpoch)
	_, found = c.Lookup("host-7", testEpoch)
	assert.False(t, found)

	c.SetBudget(2 * (cacheEntryOverhead + 6))
	assert.Equal(t, []string{"host-9", "host-x"}, hostnames(c.Entries()))

	c.SetBudget(10)
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Size())
}

func hostnames(entries []CacheEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Hostname)
	}
	return names
}
