package lookupcache

import (
	"testing"
	"time"

	"bookscan/internal/entity"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestCache(opts ...Option) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return New(opts...), clock
}

func TestCache_GetMiss(t *testing.T) {
	c, _ := newTestCache()
	_, status := c.Get("9780306406157")
	assert.Equal(t, Miss, status)
}

func TestCache_PutThenHit(t *testing.T) {
	c, _ := newTestCache()
	item := entity.CatalogItem{Identifier: "9780306406157", Title: "The Art of Electronics"}
	c.Put("9780306406157", item)

	got, status := c.Get("9780306406157")
	assert.Equal(t, Hit, status)
	assert.Equal(t, item, got)
}

func TestCache_NegativeEntry(t *testing.T) {
	c, _ := newTestCache()
	c.PutNotFound("9780000000002")

	got, status := c.Get("9780000000002")
	assert.Equal(t, NotFound, status)
	assert.Equal(t, entity.CatalogItem{}, got)
}

func TestCache_ExpiredEntryIsMissAndPutOverwrites(t *testing.T) {
	c, clock := newTestCache(WithTTL(time.Hour))
	c.Put("k", entity.CatalogItem{Title: "old"})

	clock.Advance(time.Hour)
	_, status := c.Get("k")
	assert.Equal(t, Hit, status, "entry exactly at TTL is still valid")

	clock.Advance(time.Millisecond)
	_, status = c.Get("k")
	assert.Equal(t, Miss, status)

	c.Put("k", entity.CatalogItem{Title: "new"})
	got, status := c.Get("k")
	assert.Equal(t, Hit, status)
	assert.Equal(t, "new", got.Title)
}

func TestCache_ExpiredNegativeEntryIsMiss(t *testing.T) {
	c, clock := newTestCache(WithTTL(time.Minute))
	c.PutNotFound("k")
	clock.Advance(2 * time.Minute)

	_, status := c.Get("k")
	assert.Equal(t, Miss, status)
	assert.Equal(t, 0, c.Len())
}

func TestCache_PutReplacesNegativeEntry(t *testing.T) {
	c, _ := newTestCache()
	c.PutNotFound("k")
	c.Put("k", entity.CatalogItem{Title: "found later"})

	got, status := c.Get("k")
	assert.Equal(t, Hit, status)
	assert.Equal(t, "found later", got.Title)
	assert.Equal(t, 1, c.Len())
}

func TestCache_MaxEntriesEvictsOldest(t *testing.T) {
	c, _ := newTestCache(WithMaxEntries(2))
	c.Put("a", entity.CatalogItem{Title: "a"})
	c.Put("b", entity.CatalogItem{Title: "b"})
	c.Put("c", entity.CatalogItem{Title: "c"})

	_, status := c.Get("a")
	assert.Equal(t, Miss, status)
	_, status = c.Get("b")
	assert.Equal(t, Hit, status)
	_, status = c.Get("c")
	assert.Equal(t, Hit, status)
}

func TestCache_IgnoresBlankKey(t *testing.T) {
	c, _ := newTestCache()
	c.Put("  ", entity.CatalogItem{Title: "x"})
	assert.Equal(t, 0, c.Len())
}

func TestCache_Clear(t *testing.T) {
	c, _ := newTestCache()
	c.Put("a", entity.CatalogItem{})
	c.PutNotFound("b")
	c.Clear()
	assert.Equal(t, 0, c.Len())
}
