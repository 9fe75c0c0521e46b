// Package blob holds short-lived in-memory byte payloads behind opaque URLs,
// the server-side counterpart of browser object URLs.
package blob

import (
	"container/list"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// URLPrefix is the route under which handles are served.
const URLPrefix = "/studio/blob/"

var (
	ErrNotFound = errors.New("blob not found")
	ErrRevoked  = errors.New("blob already revoked")
)

// Handle names a stored payload.
type Handle struct {
	Token string
	URL   string
}

type entry struct {
	token   string
	data    []byte
	mime    string
	expires time.Time
	pinned  bool
}

// Stats reports store usage.
type Stats struct {
	Live      int   `json:"live"`
	Pinned    int   `json:"pinned"`
	Capacity  int   `json:"capacity"`
	Created   int64 `json:"created"`
	Revoked   int64 `json:"revoked"`
	Evictions int64 `json:"evictions"`
}

// Store keeps at most capacity unpinned payloads, least recently used first
// out. Every handle is released exactly once, by Revoke, eviction or expiry;
// released tokens are remembered so a second Revoke reports ErrRevoked.
// Pinned handles neither expire nor count against capacity.
type Store struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	items    map[string]*list.Element
	lru      *list.List
	released map[string]struct{}
	pinned   int

	created   int64
	revoked   int64
	evictions int64
}

// New creates a store. ttl <= 0 disables expiry.
func New(capacity int, ttl time.Duration) *Store {
	if capacity <= 0 {
		capacity = 1
	}
	return &Store{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
		released: make(map[string]struct{}),
	}
}

// WithClock replaces the time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Create stores data and returns a fresh handle.
func (s *Store) Create(data []byte, mime string) Handle {
	return s.put(&entry{data: data, mime: mime})
}

// Pin stores data under a handle that is only released by Revoke or Clear.
func (s *Store) Pin(data []byte, mime string) Handle {
	return s.put(&entry{data: data, mime: mime, pinned: true})
}

func (s *Store) put(e *entry) Handle {
	e.token = uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ttl > 0 && !e.pinned {
		e.expires = s.now().Add(s.ttl)
	}
	s.items[e.token] = s.lru.PushFront(e)
	s.created++
	if e.pinned {
		s.pinned++
	}
	for elem := s.lru.Back(); elem != nil && s.lru.Len()-s.pinned > s.capacity; {
		prev := elem.Prev()
		if !elem.Value.(*entry).pinned {
			s.release(elem)
			s.evictions++
		}
		elem = prev
	}
	return Handle{Token: e.token, URL: URLPrefix + e.token}
}

// Get returns the payload behind token.
func (s *Store) Get(token string) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.items[token]
	if !ok {
		if _, gone := s.released[token]; gone {
			return nil, "", ErrRevoked
		}
		return nil, "", ErrNotFound
	}
	e := elem.Value.(*entry)
	if s.expired(e) {
		s.release(elem)
		return nil, "", ErrRevoked
	}
	s.lru.MoveToFront(elem)
	return e.data, e.mime, nil
}

// Revoke releases the handle identified by a token or its URL.
func (s *Store) Revoke(tokenOrURL string) error {
	token := TokenOf(tokenOrURL)
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.items[token]
	if !ok {
		if _, gone := s.released[token]; gone {
			return ErrRevoked
		}
		return ErrNotFound
	}
	s.release(elem)
	s.revoked++
	return nil
}

// Sweep releases expired entries and returns how many it dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for elem := s.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if s.expired(elem.Value.(*entry)) {
			s.release(elem)
			n++
		}
		elem = prev
	}
	return n
}

// Clear releases everything.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for elem := s.lru.Front(); elem != nil; {
		next := elem.Next()
		s.release(elem)
		elem = next
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Live:      s.lru.Len(),
		Pinned:    s.pinned,
		Capacity:  s.capacity,
		Created:   s.created,
		Revoked:   s.revoked,
		Evictions: s.evictions,
	}
}

// TokenOf strips URLPrefix from u if present.
func TokenOf(u string) string {
	return strings.TrimPrefix(u, URLPrefix)
}

func (s *Store) expired(e *entry) bool {
	return !e.expires.IsZero() && !s.now().Before(e.expires)
}

func (s *Store) release(elem *list.Element) {
	e := s.lru.Remove(elem).(*entry)
	if e.pinned {
		s.pinned--
	}
	delete(s.items, e.token)
	s.released[e.token] = struct{}{}
	e.data = nil
}
