// Package lookupcache keeps resolved catalog lookups for a fixed TTL,
// including confirmed "not found" results.
package lookupcache

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"bookscan/internal/entity"
)

// DefaultTTL is how long an entry stays valid.
const DefaultTTL = time.Hour

// Status is the outcome of a Get.
type Status int

const (
	// Miss means no valid entry exists; the caller must ask the provider.
	Miss Status = iota
	// Hit means a cached item was returned.
	Hit
	// NotFound means the provider previously confirmed the key does not exist.
	NotFound
)

func (s Status) String() string {
	switch s {
	case Hit:
		return "hit"
	case NotFound:
		return "not_found"
	default:
		return "miss"
	}
}

type entry struct {
	key      string
	item     entity.CatalogItem
	found    bool
	storedAt time.Time
	elem     *list.Element
}

// Cache is safe for concurrent use. Expired entries are only dropped when
// read or overwritten.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	order      *list.List // oldest insertion at the front
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) { c.ttl = d }
}

// WithMaxEntries bounds the cache, evicting the oldest insertion first.
// Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(c *Cache) { c.maxEntries = n }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		order:   list.New(),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached item for key. An entry older than the TTL reports Miss.
func (c *Cache) Get(key string) (entity.CatalogItem, Status) {
	key = normalizeKey(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return entity.CatalogItem{}, Miss
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		c.removeLocked(e)
		return entity.CatalogItem{}, Miss
	}
	if !e.found {
		return entity.CatalogItem{}, NotFound
	}
	return e.item, Hit
}

// Put stores a resolved item, replacing any previous entry.
func (c *Cache) Put(key string, item entity.CatalogItem) {
	c.store(key, item, true)
}

// PutNotFound records that the provider has no item for key.
func (c *Cache) PutNotFound(key string) {
	c.store(key, entity.CatalogItem{}, false)
}

// Len counts stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.order.Init()
}

func (c *Cache) store(key string, item entity.CatalogItem, found bool) {
	key = normalizeKey(key)
	if key == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.removeLocked(old)
	}
	e := &entry{key: key, item: item, found: found, storedAt: c.now()}
	e.elem = c.order.PushBack(e)
	c.entries[key] = e

	for c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*entry))
	}
}

func (c *Cache) removeLocked(e *entry) {
	c.order.Remove(e.elem)
	delete(c.entries, e.key)
}

func normalizeKey(key string) string {
	return strings.TrimSpace(key)
}
