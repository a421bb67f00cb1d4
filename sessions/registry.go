package sessions

import (
	"errors"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mobile-next/doubletap/utils"
)

// ErrSessionNotFound is returned when a session id is unknown or evicted.
var ErrSessionNotFound = errors.New("session not found")

// Registry keeps the most recently used sessions. Sessions that fall out of
// the cache are closed so their pending timers never fire.
type Registry struct {
	cache *lru.Cache[string, *Session]
}

// NewRegistry creates a registry holding at most size sessions.
func NewRegistry(size int) (*Registry, error) {
	cache, err := lru.NewWithEvict(size, func(id string, s *Session) {
		utils.Verbose("Evicting session %s", id)
		s.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	return &Registry{cache: cache}, nil
}

// Create starts a new session and registers it.
func (r *Registry) Create(opts Options) *Session {
	s := NewSession(opts)
	r.cache.Add(s.ID, s)
	utils.Verbose("Created session %s (threshold=%v, inert=%v)", s.ID, s.classifier.Threshold(), s.classifier.Inert())
	return s
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	s, ok := r.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Remove closes and forgets a session.
func (r *Registry) Remove(id string) error {
	if !r.cache.Remove(id) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// List returns all live sessions ordered by creation time.
func (r *Registry) List() []*Session {
	list := r.cache.Values()
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// CloseAll closes every session and empties the registry.
func (r *Registry) CloseAll() {
	if r.cache.Len() == 0 {
		return
	}
	utils.Verbose("Closing %d session(s)", r.cache.Len())
	r.cache.Purge()
}
