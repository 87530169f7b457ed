package chathub

import (
	"cmp"
	"fmt"
	"slices"
	"strangerchat/backend/internal/models"
	"strings"
	"sync"

	"github.com/lib/pq"
)

// ParticipantRegistry is the directory of every participant that ever
// contacted the service. It backs broadcast recipients and profiles; the
// matcher never reads preferences from it.
type ParticipantRegistry struct {
	mu    sync.RWMutex
	users map[string]*models.User
	clock Clock
}

func NewParticipantRegistry(clock Clock) *ParticipantRegistry {
	if clock == nil {
		clock = SystemClock
	}
	return &ParticipantRegistry{
		users: make(map[string]*models.User),
		clock: clock,
	}
}

// Touch registers u (matched by ID) or refreshes its LastSeen, username and
// language. It returns a copy of the stored record and whether the record was
// created or had a username or language change, i.e. whether it needs saving.
func (r *ParticipantRegistry) Touch(u models.User) (models.User, bool) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.users[u.ID]; ok {
		existing.LastSeen = now
		changed := false
		if u.Username != "" && u.Username != existing.Username {
			existing.Username = u.Username
			changed = true
		}
		if u.Language != "" && u.Language != existing.Language {
			existing.Language = u.Language
			changed = true
		}
		return copyUser(existing), changed
	}

	stored := copyUser(&u)
	if stored.FirstSeen.IsZero() {
		stored.FirstSeen = now
	}
	stored.LastSeen = now
	r.users[u.ID] = &stored
	return copyUser(&stored), true
}

// RecordPreference stores gender and interest for id. interest is a comma
// separated tag list. Unknown participants are registered on the fly.
func (r *ParticipantRegistry) RecordPreference(id, gender, interest string) (models.User, error) {
	if id == "" {
		return models.User{}, fmt.Errorf("%w: empty participant id", ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		now := r.clock.Now()
		u = &models.User{ID: id, FirstSeen: now, LastSeen: now}
		r.users[id] = u
	}
	if gender != "" {
		u.Gender = strings.ToLower(strings.TrimSpace(gender))
	}
	if interest != "" {
		u.Interests = parseInterests(interest)
	}
	return copyUser(u), nil
}

func (r *ParticipantRegistry) Get(id string) (models.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return models.User{}, false
	}
	return copyUser(u), true
}

// List returns every known participant ordered by first contact.
func (r *ParticipantRegistry) List() []models.User {
	r.mu.RLock()
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, copyUser(u))
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b models.User) int {
		if c := a.FirstSeen.Compare(b.FirstSeen); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func (r *ParticipantRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Restore merges persisted users; records already in memory win.
func (r *ParticipantRegistry) Restore(users []models.User) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	restored := 0
	for i := range users {
		if users[i].ID == "" {
			continue
		}
		if _, ok := r.users[users[i].ID]; ok {
			continue
		}
		u := copyUser(&users[i])
		r.users[u.ID] = &u
		restored++
	}
	return restored
}

func parseInterests(raw string) pq.StringArray {
	var out pq.StringArray
	for _, part := range strings.Split(raw, ",") {
		tag := strings.ToLower(strings.TrimSpace(part))
		if tag != "" && !slices.Contains(out, tag) {
			out = append(out, tag)
		}
	}
	return out
}

func copyUser(u *models.User) models.User {
	c := *u
	if u.Interests != nil {
		c.Interests = slices.Clone(u.Interests)
	}
	return c
}
