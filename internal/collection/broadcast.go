package collection

import "sync"

// subscriber holds at most one pending snapshot; a newer one replaces it.
type subscriber struct {
	ch chan Snapshot
}

func newSubscriber() *subscriber {
	return &subscriber{ch: make(chan Snapshot, 1)}
}

// offer must not race with close; hub serializes both under its lock.
func (s *subscriber) offer(snap Snapshot) {
	select {
	case s.ch <- snap:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- snap:
	default:
	}
}

// hub fans snapshots out to in-process subscribers of the same user.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*subscriber]struct{})}
}

func (h *hub) add(userID string) *subscriber {
	s := newSubscriber()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][s] = struct{}{}
	return s
}

func (h *hub) remove(userID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[userID][s]; !ok {
		return
	}
	delete(h.subs[userID], s)
	if len(h.subs[userID]) == 0 {
		delete(h.subs, userID)
	}
	close(s.ch)
}

func (h *hub) hasSubscribers(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID]) > 0
}

// send delivers snap to one subscriber if it is still registered.
func (h *hub) send(s *subscriber, snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[snap.UserID][s]; ok {
		s.offer(snap)
	}
}

func (h *hub) publish(snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[snap.UserID] {
		s.offer(snap)
	}
}

// closeAll ends every subscription.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, subs := range h.subs {
		for s := range subs {
			close(s.ch)
		}
		delete(h.subs, userID)
	}
}
