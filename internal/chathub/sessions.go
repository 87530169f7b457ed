package chathub

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is an active pairing of two distinct participants.
type Session struct {
	ID        string    `json:"id"`
	A         string    `json:"a"`
	B         string    `json:"b"`
	CreatedAt time.Time `json:"created_at"`
}

// PartnerOf returns the other side of the session, or "" if id is not in it.
func (s Session) PartnerOf(id string) string {
	switch id {
	case s.A:
		return s.B
	case s.B:
		return s.A
	}
	return ""
}

// SessionTable maps every paired participant to its session. Both keys of a
// session are written and removed together.
type SessionTable struct {
	mu            sync.RWMutex
	byParticipant map[string]*Session
	byID          map[string]*Session
}

func NewSessionTable() *SessionTable {
	return &SessionTable{
		byParticipant: make(map[string]*Session),
		byID:          make(map[string]*Session),
	}
}

// Pair creates a session between a and b.
func (t *SessionTable) Pair(a, b string, now time.Time) (Session, error) {
	if a == "" || b == "" || a == b {
		return Session{}, fmt.Errorf("%w: cannot pair %q with %q", ErrInvalidArgument, a, b)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byParticipant[a]; ok {
		return Session{}, ErrAlreadyActive
	}
	if _, ok := t.byParticipant[b]; ok {
		return Session{}, ErrAlreadyActive
	}

	s := &Session{ID: uuid.New().String(), A: a, B: b, CreatedAt: now}
	t.byParticipant[a] = s
	t.byParticipant[b] = s
	t.byID[s.ID] = s
	return *s, nil
}

func (t *SessionTable) PartnerOf(id string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.byParticipant[id]
	if !ok {
		return "", false
	}
	return s.PartnerOf(id), true
}

func (t *SessionTable) SessionOf(id string) (Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.byParticipant[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

func (t *SessionTable) Contains(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.byParticipant[id]
	return ok
}

// End removes the session of id for both participants and returns it.
// A session that is not registered under both keys is cleared anyway and
// reported as ErrInternal.
func (t *SessionTable) End(id string) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.byParticipant[id]
	if !ok {
		return Session{}, ErrNotFound
	}

	partner := s.PartnerOf(id)
	consistent := partner != "" && t.byParticipant[partner] == s && t.byID[s.ID] == s

	delete(t.byParticipant, id)
	delete(t.byID, s.ID)
	if partner != "" && t.byParticipant[partner] == s {
		delete(t.byParticipant, partner)
	}

	if !consistent {
		return *s, fmt.Errorf("%w: one-sided session %s for %s", ErrInternal, s.ID, id)
	}
	return *s, nil
}

// Count returns the number of active sessions (pairs).
func (t *SessionTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// Snapshot returns the active sessions oldest first.
func (t *SessionTable) Snapshot() []Session {
	t.mu.RLock()
	out := make([]Session, 0, len(t.byID))
	for _, s := range t.byID {
		out = append(out, *s)
	}
	t.mu.RUnlock()

	slices.SortFunc(out, func(a, b Session) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
