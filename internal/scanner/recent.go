package scanner

import "container/list"

// recentScans is a bounded insertion-ordered set; the oldest code is evicted first.
type recentScans struct {
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

func newRecentScans(capacity int) *recentScans {
	if capacity <= 0 {
		capacity = DefaultRecentCapacity
	}
	return &recentScans{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

func (r *recentScans) contains(code string) bool {
	_, ok := r.index[code]
	return ok
}

// add is a no-op for a code already present; it keeps its original position.
func (r *recentScans) add(code string) {
	if r.contains(code) {
		return
	}
	r.index[code] = r.order.PushBack(code)
	for r.order.Len() > r.capacity {
		oldest := r.order.Front()
		r.order.Remove(oldest)
		delete(r.index, oldest.Value.(string))
	}
}

func (r *recentScans) remove(code string) {
	if el, ok := r.index[code]; ok {
		r.order.Remove(el)
		delete(r.index, code)
	}
}

func (r *recentScans) len() int {
	return r.order.Len()
}
