// Package cache is the resolver's in-memory, TTL-aware RR-set store (data
// model's "Cache entry"). It is one of exactly two pieces of state shared
// across worker goroutines (the other is the active-query table), so every
// operation here takes the internal lock for its whole duration.
package cache

import (
	"bytes"
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/jroosing/goresolv/internal/wire"
)

// Key identifies a cache entry: a lowercased owner name plus type and
// class. Name is already canonical (wire.Name case-folds on construction
// and decode), so Key is directly comparable.
type Key struct {
	Name  wire.Name
	Type  wire.RecordType
	Class wire.RecordClass
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%v/%v", k.Name, k.Type, k.Class)
}

func keyOf(rr wire.RR) Key {
	return Key{Name: rr.Header().Name, Type: rr.Type(), Class: rr.Header().Class}
}

// member is one RR within a cached set, carrying its own absolute expiry so
// that "merging refreshes TTL to the larger" can be resolved record by
// record rather than for the whole set at once.
type member struct {
	rr        wire.RR
	rdata     []byte // cached MarshalRData() output, for same-rdata comparison
	expiresAt time.Time
}

// positiveEntry is the value behind one Key: the full RR set last returned
// together, plus its position in the LRU list.
type positiveEntry struct {
	members []member
	elem    *list.Element
}

// negativeEntry records that a name is known not to exist (or has no data
// of a given type), per RFC 2308.
type negativeEntry struct {
	rcode     wire.RCode
	expiresAt time.Time
	elem      *list.Element
}

// Stats is a snapshot of cache activity, exposed for introspection (e.g.
// internal/statusapi).
type Stats struct {
	Entries      int
	NegEntries   int
	Hits         int
	Misses       int
	NegativeHits int
}

// Cache is a thread-safe, TTL-aware LRU cache of DNS resource-record sets,
// generalized from a single-value TTL+LRU cache into RR-set semantics:
// entries are sets of records sharing (name, type, class), and a name can
// additionally carry a negative (NXDOMAIN/NODATA/SERVFAIL) entry.
//
// Positive and negative entries share one LRU list and one maxEntries
// budget, so a cache dominated by negative churn (e.g. during a DDoS of
// nonexistent names) still evicts fairly against positive entries.
type Cache struct {
	mu sync.Mutex

	positiveCap time.Duration
	negativeCap time.Duration
	maxEntries  int

	lru      *list.List
	positive map[Key]*positiveEntry
	negative map[Key]*negativeEntry

	hits         int
	misses       int
	negativeHits int
}

// Config holds the cache's tunables, sourced from internal/config's
// positive_cache_cap_s / negative_cache_cap_s keys.
type Config struct {
	PositiveCap time.Duration
	NegativeCap time.Duration
	MaxEntries  int
}

// New builds a Cache per cfg, applying the same "never size zero" floor as
// the teacher's NewTTLCache.
func New(cfg Config) *Cache {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 1
	}
	positiveCap := cfg.PositiveCap
	if positiveCap <= 0 {
		positiveCap = 24 * time.Hour
	}
	negativeCap := cfg.NegativeCap
	if negativeCap <= 0 {
		negativeCap = time.Hour
	}
	return &Cache{
		positiveCap: positiveCap,
		negativeCap: negativeCap,
		maxEntries:  maxEntries,
		lru:         list.New(),
		positive:    map[Key]*positiveEntry{},
		negative:    map[Key]*negativeEntry{},
	}
}

// lruKey is what's stored as a list.Element's Value, so eviction (which
// only sees the element) can tell which map and Key to delete from.
type lruKey struct {
	key      Key
	negative bool
}

// Put ingests a single RR. A zero (or negative) TTL record is accepted for
// the immediate caller but is not stored, per the data model.
func (c *Cache) Put(rr wire.RR) {
	c.PutMany([]wire.RR{rr})
}

// PutMany ingests a batch of RRs, grouping by (name, type, class) so an
// answer section's worth of records lands as one entry.
func (c *Cache) PutMany(rrs []wire.RR) {
	if len(rrs) == 0 {
		return
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	grouped := map[Key][]wire.RR{}
	var order []Key
	for _, rr := range rrs {
		if rr.Header().TTL <= 0 {
			continue
		}
		k := keyOf(rr)
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], rr)
	}

	for _, k := range order {
		c.mergeLocked(k, grouped[k], now)
	}
	c.evictLocked()
}

func (c *Cache) mergeLocked(k Key, rrs []wire.RR, now time.Time) {
	entry := c.positive[k]
	if entry == nil {
		entry = &positiveEntry{}
		entry.elem = c.lru.PushBack(lruKey{key: k})
		c.positive[k] = entry
	} else {
		c.lru.MoveToBack(entry.elem)
	}

	for _, rr := range rrs {
		ttl := time.Duration(rr.Header().TTL) * time.Second
		if ttl > c.positiveCap {
			ttl = c.positiveCap
		}
		expiry := now.Add(ttl)
		rdata, err := rr.MarshalRData()
		if err != nil {
			continue
		}

		merged := false
		for i := range entry.members {
			if bytes.Equal(entry.members[i].rdata, rdata) {
				// Same rdata: refresh TTL to the larger (later) expiry.
				if expiry.After(entry.members[i].expiresAt) {
					entry.members[i].expiresAt = expiry
					entry.members[i].rr = rr
				}
				merged = true
				break
			}
		}
		if !merged {
			entry.members = append(entry.members, member{rr: rr, rdata: rdata, expiresAt: expiry})
		}
	}

	// A fresh negative entry for this (name, class) is no longer accurate
	// once we have positive data for it. Negative entries are keyed without
	// a record type.
	nk := Key{Name: k.Name, Class: k.Class}
	if neg := c.negative[nk]; neg != nil {
		c.removeNegativeLocked(nk, neg)
	}
}

// Get returns the cached RR set for (name, type, class). allFresh is true
// only when the set was found and every member is still unexpired; a
// single expired member evicts the whole set and counts as a miss, per the
// "any expired record evicts the whole set" rule.
func (c *Cache) Get(name wire.Name, rtype wire.RecordType, class wire.RecordClass) (records []wire.RR, allFresh bool) {
	k := Key{Name: name, Type: rtype, Class: class}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.positive[k]
	if entry == nil {
		c.misses++
		return nil, false
	}

	for _, m := range entry.members {
		if !m.expiresAt.After(now) {
			c.removePositiveLocked(k, entry)
			c.misses++
			return nil, false
		}
	}

	c.lru.MoveToBack(entry.elem)
	c.hits++
	out := make([]wire.RR, len(entry.members))
	for i, m := range entry.members {
		out[i] = m.rr
	}
	return out, true
}

// GetNegative reports whether (name, class) carries an unexpired negative
// entry and, if so, the rcode it should synthesize.
func (c *Cache) GetNegative(name wire.Name, class wire.RecordClass) (wire.RCode, bool) {
	k := Key{Name: name, Class: class}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.negative[k]
	if entry == nil {
		c.misses++
		return 0, false
	}
	if !entry.expiresAt.After(now) {
		c.removeNegativeLocked(k, entry)
		c.misses++
		return 0, false
	}
	c.lru.MoveToBack(entry.elem)
	c.hits++
	c.negativeHits++
	return entry.rcode, true
}

// PutNegative records that (question.Name, question.Class) — independent
// of question.Type, since NXDOMAIN means the whole name doesn't exist —
// should synthesize rcode for ttl (typically derived from an authority
// section SOA's Minimum field, per RFC 2308).
func (c *Cache) PutNegative(q wire.Question, rcode wire.RCode, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if ttl > c.negativeCap {
		ttl = c.negativeCap
	}
	k := Key{Name: q.Name, Class: q.Class}
	expiry := time.Now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing := c.negative[k]; existing != nil {
		existing.rcode = rcode
		existing.expiresAt = expiry
		c.lru.MoveToBack(existing.elem)
	} else {
		entry := &negativeEntry{rcode: rcode, expiresAt: expiry}
		entry.elem = c.lru.PushBack(lruKey{key: k, negative: true})
		c.negative[k] = entry
	}
	c.evictLocked()
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Init()
	c.positive = map[Key]*positiveEntry{}
	c.negative = map[Key]*negativeEntry{}
}

// PruneExpired walks every entry and removes those that have fully
// expired, without waiting for a Get to discover it. Intended to run on a
// periodic timer-wheel tick rather than in the request path.
func (c *Cache) PruneExpired() int {
	now := time.Now()
	pruned := 0

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, entry := range c.positive {
		expired := false
		for _, m := range entry.members {
			if !m.expiresAt.After(now) {
				expired = true
				break
			}
		}
		if expired {
			c.removePositiveLocked(k, entry)
			pruned++
		}
	}
	for k, entry := range c.negative {
		if !entry.expiresAt.After(now) {
			c.removeNegativeLocked(k, entry)
			pruned++
		}
	}
	return pruned
}

// Stats returns a snapshot of cache counters and size.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:      len(c.positive),
		NegEntries:   len(c.negative),
		Hits:         c.hits,
		Misses:       c.misses,
		NegativeHits: c.negativeHits,
	}
}

func (c *Cache) removePositiveLocked(k Key, entry *positiveEntry) {
	c.lru.Remove(entry.elem)
	delete(c.positive, k)
}

func (c *Cache) removeNegativeLocked(k Key, entry *negativeEntry) {
	c.lru.Remove(entry.elem)
	delete(c.negative, k)
}

// evictLocked removes the least-recently-used entries (positive or
// negative) until the combined count is back under maxEntries.
func (c *Cache) evictLocked() {
	for len(c.positive)+len(c.negative) > c.maxEntries {
		front := c.lru.Front()
		if front == nil {
			return
		}
		lk := front.Value.(lruKey)
		if lk.negative {
			if entry := c.negative[lk.key]; entry != nil {
				c.removeNegativeLocked(lk.key, entry)
				continue
			}
		} else if entry := c.positive[lk.key]; entry != nil {
			c.removePositiveLocked(lk.key, entry)
			continue
		}
		// Stale element (already removed by expiry path); drop it.
		c.lru.Remove(front)
	}
}
