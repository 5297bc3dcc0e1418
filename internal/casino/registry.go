package casino

import (
	"sort"
	"sync"
	"time"
)

// Registry holds open sessions. One mutex guards every operation so two
// removals of the same id can never both succeed.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]Session),
	}
}

func (r *Registry) Insert(s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; ok {
		return ErrDuplicateSession
	}
	r.sessions[s.ID] = s
	return nil
}

// FirstForPlayer returns the player's oldest open session.
func (r *Registry) FirstForPlayer(playerID int64) (Session, bool) {
	all := r.ForPlayer(playerID)
	if len(all) == 0 {
		return Session{}, false
	}
	return all[0], true
}

// ForPlayer returns the player's open sessions, oldest first.
func (r *Registry) ForPlayer(playerID int64) []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Session
	for _, s := range r.sessions {
		if s.PlayerID == playerID {
			out = append(out, s)
		}
	}
	sortSessions(out)
	return out
}

func (r *Registry) Get(id string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Remove(id string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	delete(r.sessions, id)
	return s, nil
}

// Expired returns sessions created before cutoff, oldest first.
func (r *Registry) Expired(cutoff time.Time) []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Session
	for _, s := range r.sessions {
		if s.CreatedAt.Before(cutoff) {
			out = append(out, s)
		}
	}
	sortSessions(out)
	return out
}

func (r *Registry) List() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sortSessions(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func sortSessions(s []Session) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].CreatedAt.Equal(s[j].CreatedAt) {
			return s[i].ID < s[j].ID
		}
		return s[i].CreatedAt.Before(s[j].CreatedAt)
	})
}
