package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecentScans_EvictsOldest(t *testing.T) {
	r := newRecentScans(2)
	r.add("a")
	r.add("b")
	r.add("c")

	assert.False(t, r.contains("a"))
	assert.True(t, r.contains("b"))
	assert.True(t, r.contains("c"))
	assert.Equal(t, 2, r.len())
}

func TestRecentScans_ReAddKeepsPosition(t *testing.T) {
	r := newRecentScans(2)
	r.add("a")
	r.add("b")
	r.add("a")
	r.add("c")

	assert.False(t, r.contains("a"))
	assert.True(t, r.contains("b"))
}

func TestRecentScans_Remove(t *testing.T) {
	r := newRecentScans(0)
	r.add("a")
	r.remove("a")
	r.remove("missing")

	assert.False(t, r.contains("a"))
	assert.Equal(t, 0, r.len())
	assert.Equal(t, DefaultRecentCapacity, r.capacity)
}
