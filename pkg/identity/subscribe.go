package identity

import "sync"

// Unsubscribe deregisters an observer. Calling it more than once is safe.
type Unsubscribe func()

// Subscribe registers fn for session transitions. fn is called once right
// away, before Subscribe returns, with the current state (nil when signed
// out), then on every sign-in, sign-out and provider-side revocation.
//
// Observers run on the goroutine that caused the transition, in
// registration order, and see transitions in the order they took effect.
// Transitions wait for every observer to return, so an observer may read
// CurrentIdentity but must not sign in, sign out or call FreshToken.
func (o *Oracle) Subscribe(fn func(*Identity)) Unsubscribe {
	if fn == nil {
		return func() {}
	}

	o.transMu.Lock()
	defer o.transMu.Unlock()

	id := o.subs.add(fn)
	fn(o.CurrentIdentity())

	return func() { o.subs.remove(id) }
}

type subscriber struct {
	id uint64
	fn func(*Identity)
}

// subscribers is an ordered observer set.
type subscribers struct {
	mu   sync.Mutex
	next uint64
	list []subscriber
}

func (s *subscribers) add(fn func(*Identity)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	s.list = append(s.list, subscriber{id: s.next, fn: fn})
	return s.next
}

func (s *subscribers) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.list {
		if sub.id == id {
			s.list = append(s.list[:i:i], s.list[i+1:]...)
			return
		}
	}
}

// notify delivers a private copy of id to each observer registered at the
// time of the call.
func (s *subscribers) notify(id *Identity) {
	s.mu.Lock()
	snapshot := make([]subscriber, len(s.list))
	copy(snapshot, s.list)
	s.mu.Unlock()

	for _, sub := range snapshot {
		if id == nil {
			sub.fn(nil)
			continue
		}
		cp := *id
		sub.fn(&cp)
	}
}

func (s *subscribers) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.list)
}
