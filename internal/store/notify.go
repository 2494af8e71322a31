package store

import "sync"

// Subscription delivers a signal on C after each committed transaction that
// touched one of its tables. Signals coalesce; C never holds more than one.
type Subscription struct {
	C <-chan struct{}

	c      chan struct{}
	tables map[Table]struct{}
	hub    *hub
	once   sync.Once
}

// Cancel stops delivery and closes C. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.c)
	})
}

func (s *Subscription) watches(touched map[Table]struct{}) bool {
	for table := range touched {
		if _, ok := s.tables[table]; ok {
			return true
		}
	}
	return false
}

func (s *Subscription) signal() {
	select {
	case s.c <- struct{}{}:
	default:
	}
}

type hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers interest in changes to the given tables.
// The caller must Cancel the subscription when done.
func (s *Store) Subscribe(tables ...Table) *Subscription {
	c := make(chan struct{}, 1)
	sub := &Subscription{
		C:      c,
		c:      c,
		tables: make(map[Table]struct{}, len(tables)),
		hub:    s.hub,
	}
	for _, table := range tables {
		sub.tables[table] = struct{}{}
	}

	s.hub.mu.Lock()
	s.hub.subs[sub] = struct{}{}
	s.hub.mu.Unlock()
	return sub
}

func (h *hub) remove(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	h.mu.Unlock()
}

// notify signals every subscription watching one of the touched tables.
// Holding mu while signalling keeps Cancel from closing a channel mid-send.
func (h *hub) notify(touched map[Table]struct{}) {
	if len(touched) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.watches(touched) {
			sub.signal()
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}
