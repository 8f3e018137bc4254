package udns

import (
	"net/netip"
	"slices"
	"time"
)

// Handle identifies a pending query. The zero Handle is never assigned and
// stands for "answered from cache".
type Handle uint32

// ResolveFunc receives the result of a resolve call. It is called exactly
// once per resolve call, unless the query is canceled. It runs on the
// resolver's goroutine and must not block.
type ResolveFunc func(hostname string, addr netip.Addr, err error)

// query is a pending query. Queries are not deduplicated.
type query struct {
	handle Handle
	// name is the name the caller asked for, hostname the name that is
	// currently queried for. They differ after following an alias.
	name     string
	hostname string
	wire     []byte
	callback ResolveFunc

	started   time.Time
	sentAt    time.Time
	multicast bool
	sendCount int
	retries   int
}

type queryTable struct {
	queries    []*query
	lastHandle Handle
	lastID     uint16
}

func newQueryTable() *queryTable {
	return &queryTable{}
}

func (t *queryTable) nextHandle() Handle {
	t.lastHandle++
	if t.lastHandle == 0 {
		t.lastHandle++
	}
	return t.lastHandle
}

// nextID returns the id for the next unicast query. Zero is left to mDNS.
func (t *queryTable) nextID() uint16 {
	t.lastID++
	if t.lastID == 0 {
		t.lastID++
	}
	return t.lastID
}

func (t *queryTable) add(q *query) {
	q.handle = t.nextHandle()
	t.queries = append(t.queries, q)
}

// take removes and returns all queries for hostname.
func (t *queryTable) take(hostname string) []*query {
	var matched []*query
	t.queries = slices.DeleteFunc(t.queries, func(q *query) bool {
		if q.hostname == hostname {
			matched = append(matched, q)
			return true
		}
		return false
	})
	return matched
}

// rename points all queries for hostname to canonical.
func (t *queryTable) rename(hostname, canonical string) int {
	var n int
	for _, q := range t.queries {
		if q.hostname == hostname {
			q.hostname = canonical
			n++
		}
	}
	return n
}

// cancel removes the query with the given handle without calling back.
func (t *queryTable) cancel(h Handle) bool {
	i := slices.IndexFunc(t.queries, func(q *query) bool {
		return q.handle == h
	})
	if i < 0 {
		return false
	}
	t.queries = slices.Delete(t.queries, i, i+1)
	return true
}

// expire removes and returns all queries that will not be retried anymore:
// unicast queries that used up their retries and multicast queries that are
// older than the full retry window.
func (t *queryTable) expire(now time.Time, interval time.Duration, maxRetries int) []*query {
	var expired []*query
	t.queries = slices.DeleteFunc(t.queries, func(q *query) bool {
		var done bool
		if q.multicast {
			done = now.Sub(q.started) >= time.Duration(maxRetries+1)*interval
		} else {
			done = q.retries >= maxRetries && now.Sub(q.sentAt) >= interval
		}
		if done {
			expired = append(expired, q)
		}
		return done
	})
	return expired
}

// due returns the unicast queries that should be resent.
func (t *queryTable) due(now time.Time, interval time.Duration) []*query {
	var due []*query
	for _, q := range t.queries {
		if !q.multicast && now.Sub(q.sentAt) >= interval {
			due = append(due, q)
		}
	}
	return due
}

func (t *queryTable) Len() int {
	return len(t.queries)
}

// PendingQuery describes a pending query.
type PendingQuery struct {
	Handle    Handle
	Name      string
	Hostname  string
	Multicast bool
	Retries   int
	Age       time.Duration
}

func (t *queryTable) pending(now time.Time) []PendingQuery {
	list := make([]PendingQuery, 0, len(t.queries))
	for _, q := range t.queries {
		list = append(list, PendingQuery{
			Handle:    q.handle,
			Name:      q.name,
			Hostname:  q.hostname,
			Multicast: q.multicast,
			Retries:   q.retries,
			Age:       now.Sub(q.started),
		})
	}
	return list
}
