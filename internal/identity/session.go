package identity

import (
	"sync"
)

// Session holds the signed-in user of one client and tells watchers when it changes.
type Session struct {
	mu       sync.RWMutex
	current  *Principal
	watchers map[int]chan struct{}
	nextID   int
}

func NewSession() *Session {
	return &Session{watchers: make(map[int]chan struct{})}
}

func NewSignedInSession(p Principal) *Session {
	s := NewSession()
	s.current = &p
	return s
}

func (s *Session) Current() (Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Principal{}, false
	}
	return *s.current, true
}

func (s *Session) SignIn(p Principal) {
	s.mu.Lock()
	if s.current != nil && *s.current == p {
		s.mu.Unlock()
		return
	}
	s.current = &p
	s.notifyLocked()
	s.mu.Unlock()
}

func (s *Session) SignOut() {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.notifyLocked()
	s.mu.Unlock()
}

// Watch returns a channel that receives a signal after every sign-in or
// sign-out. Signals coalesce; read Current for the state. The returned
// func stops the watch.
func (s *Session) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) notifyLocked() {
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
