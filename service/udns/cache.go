package udns

import (
	"net/netip"
	"slices"
	"time"
)

// cacheEntryOverhead is the accounted size of an entry without its name.
const cacheEntryOverhead = 24

// CacheEntry is a cached answer. An invalid Addr marks a name that is known
// to have no address.
type CacheEntry struct {
	Hostname string
	Addr     netip.Addr
	Expires  time.Time
}

func (e CacheEntry) size() int {
	return cacheEntryOverhead + len(e.Hostname)
}

// answerCache is a byte-bounded FIFO of answers with lazy TTL expiry.
// Entries are kept in insertion order; the oldest entry is evicted first.
type answerCache struct {
	entries []CacheEntry
	size    int
	budget  int
}

func newAnswerCache(budget int) *answerCache {
	return &answerCache{budget: budget}
}

// purgeExpired drops expired entries from the head of the list.
func (c *answerCache) purgeExpired(now time.Time) {
	n := 0
	for n < len(c.entries) && !now.Before(c.entries[n].Expires) {
		c.size -= c.entries[n].size()
		n++
	}
	if n > 0 {
		c.entries = slices.Delete(c.entries, 0, n)
	}
}

func (c *answerCache) index(name string) int {
	return slices.IndexFunc(c.entries, func(e CacheEntry) bool {
		return e.Hostname == name
	})
}

func (c *answerCache) removeAt(i int) {
	c.size -= c.entries[i].size()
	c.entries = slices.Delete(c.entries, i, i+1)
}

// Lookup returns the cached address of name.
func (c *answerCache) Lookup(name string, now time.Time) (addr netip.Addr, found bool) {
	c.purgeExpired(now)

	i := c.index(name)
	if i < 0 {
		return netip.Addr{}, false
	}
	// Entries behind a longer-lived head may have expired too.
	if !now.Before(c.entries[i].Expires) {
		c.removeAt(i)
		return netip.Addr{}, false
	}
	return c.entries[i].Addr, true
}

// Insert adds an answer, unless name is already cached.
// It reports whether the entry was added.
func (c *answerCache) Insert(name string, addr netip.Addr, ttl time.Duration, now time.Time) bool {
	c.purgeExpired(now)

	if i := c.index(name); i >= 0 {
		if now.Before(c.entries[i].Expires) {
			return false
		}
		c.removeAt(i)
	}

	e := CacheEntry{
		Hostname: name,
		Addr:     addr,
		Expires:  now.Add(ttl),
	}
	c.entries = append(c.entries, e)
	c.size += e.size()
	c.evict()
	return true
}

// SetBudget changes the budget and evicts entries until it is respected.
func (c *answerCache) SetBudget(budget int) {
	c.budget = budget
	c.evict()
}

func (c *answerCache) evict() {
	n := 0
	for c.size > c.budget && n < len(c.entries) {
		c.size -= c.entries[n].size()
		n++
	}
	if n > 0 {
		c.entries = slices.Delete(c.entries, 0, n)
	}
}

// Entries returns a copy of all entries, oldest first.
func (c *answerCache) Entries() []CacheEntry {
	return slices.Clone(c.entries)
}

// Size returns the accounted size in bytes.
func (c *answerCache) Size() int { return c.size }

// Len returns the number of entries.
func (c *answerCache) Len() int { return len(c.entries) }

// Budget returns the configured budget in bytes.
func (c *answerCache) Budget() int { return c.budget }
