package remote

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chazu/blockbridge/proxy"
)

type handle struct {
	id        string
	p         proxy.Proxy
	sessionID string
	created   time.Time
	lastUsed  time.Time
}

type identityKey struct {
	session string
	id      any
}

// HandleStore maps opaque "h-N" ids to proxies held for remote clients.
// Within a session one native object is held under one id, so clients
// can compare identities by id.
type HandleStore struct {
	mu         sync.Mutex
	handles    map[string]*handle
	byIdentity map[identityKey]string
	nextID     atomic.Uint64
}

// NewHandleStore creates an empty handle store.
func NewHandleStore() *HandleStore {
	return &HandleStore{
		handles:    make(map[string]*handle),
		byIdentity: make(map[identityKey]string),
	}
}

// Create holds p for sessionID and returns its id. An object the session
// already holds keeps its id.
func (s *HandleStore) Create(p proxy.Proxy, sessionID string) string {
	key := identityKey{session: sessionID, id: p.Handle().Identity()}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if id, ok := s.byIdentity[key]; ok {
		s.handles[id].lastUsed = now
		return id
	}
	id := fmt.Sprintf("h-%d", s.nextID.Add(1))
	s.handles[id] = &handle{
		id:        id,
		p:         p,
		sessionID: sessionID,
		created:   now,
		lastUsed:  now,
	}
	s.byIdentity[key] = id
	return id
}

// Lookup returns the proxy held under id.
func (s *HandleStore) Lookup(id string) (proxy.Proxy, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[id]
	if !ok {
		return proxy.Proxy{}, false
	}
	h.lastUsed = time.Now()
	return h.p, true
}

// Len is the number of live handles.
func (s *HandleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Release drops a handle. It reports whether the handle existed.
func (s *HandleStore) Release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[id]
	if ok {
		s.drop(h)
	}
	return ok
}

// ReleaseSession drops every handle owned by a session.
func (s *HandleStore) ReleaseSession(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, h := range s.handles {
		if h.sessionID == sessionID {
			s.drop(h)
			removed++
		}
	}
	return removed
}

// Sweep removes handles that haven't been used within the TTL.
func (s *HandleStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for _, h := range s.handles {
		if h.lastUsed.Before(cutoff) {
			s.drop(h)
			removed++
		}
	}
	if removed > 0 {
		log.Debugf("swept %d idle handles", removed)
	}
	return removed
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *HandleStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// drop must be called with s.mu held.
func (s *HandleStore) drop(h *handle) {
	delete(s.handles, h.id)
	delete(s.byIdentity, identityKey{session: h.sessionID, id: h.p.Handle().Identity()})
}
