package promostudio

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Registry holds the live studios and closes those left idle longer than
// its TTL.
type Registry struct {
	mu      sync.Mutex
	studios map[string]*Studio
	ttl     time.Duration
	now     func() time.Time
	factory func(id string) *Studio
}

// NewRegistry creates a Registry. ttl <= 0 keeps studios until removed.
func NewRegistry(ttl time.Duration, now func() time.Time, factory func(id string) *Studio) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		studios: make(map[string]*Studio),
		ttl:     ttl,
		now:     now,
		factory: factory,
	}
}

// Create builds and registers a studio under a fresh id.
func (r *Registry) Create() *Studio {
	st := r.factory(uuid.NewString())
	st.touch(r.now())

	r.mu.Lock()
	r.studios[st.ID] = st
	n := len(r.studios)
	r.mu.Unlock()

	log.Debug().Str("studio", st.ID).Int("live", n).Msg("studio created")
	return st
}

// Get returns the studio for id and marks it as seen. An expired studio is
// closed and reported missing.
func (r *Registry) Get(id string) (*Studio, bool) {
	if id == "" {
		return nil, false
	}
	now := r.now()

	r.mu.Lock()
	st, ok := r.studios[id]
	if ok && r.expired(st, now) {
		delete(r.studios, id)
		r.mu.Unlock()
		r.close(st, "expired")
		return nil, false
	}
	r.mu.Unlock()

	if !ok {
		return nil, false
	}
	st.touch(now)
	return st, true
}

// Remove closes and forgets the studio for id.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	st, ok := r.studios[id]
	delete(r.studios, id)
	r.mu.Unlock()
	if ok {
		r.close(st, "removed")
	}
	return ok
}

// Sweep closes every expired studio and returns how many it closed. Live
// studios drop their expired blobs.
func (r *Registry) Sweep() int {
	now := r.now()
	var expired, live []*Studio

	r.mu.Lock()
	for id, st := range r.studios {
		if r.expired(st, now) {
			expired = append(expired, st)
			delete(r.studios, id)
		} else {
			live = append(live, st)
		}
	}
	r.mu.Unlock()

	for _, st := range expired {
		r.close(st, "expired")
	}
	for _, st := range live {
		if n := st.Blobs.Sweep(); n > 0 {
			log.Debug().Str("studio", st.ID).Int("blobs", n).Msg("expired blobs released")
		}
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				log.Info().Int("closed", n).Msg("idle studios closed")
			}
		}
	}
}

// CloseAll closes every studio.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Studio, 0, len(r.studios))
	for _, st := range r.studios {
		all = append(all, st)
	}
	r.studios = make(map[string]*Studio)
	r.mu.Unlock()

	for _, st := range all {
		r.close(st, "shutdown")
	}
}

// Len is the number of live studios.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.studios)
}

func (r *Registry) expired(st *Studio, now time.Time) bool {
	return r.ttl > 0 && now.Sub(st.idleSince()) > r.ttl
}

func (r *Registry) close(st *Studio, reason string) {
	if err := st.Close(); err != nil {
		log.Error().Err(err).Str("studio", st.ID).Msg("close studio")
		return
	}
	log.Debug().Str("studio", st.ID).Str("reason", reason).Msg("studio closed")
}
