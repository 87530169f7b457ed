package chathub

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strangerchat/backend/internal/models"
	"sync"
	"time"
)

// BanRegistry holds at most one ban record per subject. Expired records are
// removed lazily, whenever a read observes them.
type BanRegistry struct {
	mu      sync.Mutex
	records map[string]models.BanRecord
	clock   Clock
}

func NewBanRegistry(clock Clock) *BanRegistry {
	if clock == nil {
		clock = SystemClock
	}
	return &BanRegistry{
		records: make(map[string]models.BanRecord),
		clock:   clock,
	}
}

// Ban installs or replaces the record for subject, expiring after d.
func (r *BanRegistry) Ban(subject string, d time.Duration, reason string) (models.BanRecord, error) {
	if subject == "" {
		return models.BanRecord{}, fmt.Errorf("%w: empty ban subject", ErrInvalidArgument)
	}
	if d <= 0 {
		return models.BanRecord{}, fmt.Errorf("%w: ban duration must be positive, got %s", ErrInvalidArgument, d)
	}

	now := r.clock.Now()
	rec := models.BanRecord{
		SubjectID: subject,
		ExpiresAt: now.Add(d),
		Reason:    reason,
		CreatedAt: now,
	}

	r.mu.Lock()
	r.records[subject] = rec
	r.mu.Unlock()
	return rec, nil
}

// Unban removes the record for subject. ErrNotFound is returned when no
// active record existed; a stale one is dropped all the same.
func (r *BanRegistry) Unban(subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[subject]
	if !ok {
		return ErrNotFound
	}
	delete(r.records, subject)
	if !rec.Active(r.clock.Now()) {
		return ErrNotFound
	}
	return nil
}

// IsBanned returns the active record for subject, if any.
func (r *BanRegistry) IsBanned(subject string) (models.BanRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[subject]
	if !ok {
		return models.BanRecord{}, false
	}
	if !rec.Active(r.clock.Now()) {
		delete(r.records, subject)
		return models.BanRecord{}, false
	}
	return rec, true
}

// List yields the active records ordered by expiry. Expired records are swept
// when the sequence is created; the sequence iterates over a snapshot, so it
// is safe to call other registry methods while ranging over it.
func (r *BanRegistry) List() iter.Seq[models.BanRecord] {
	r.mu.Lock()
	r.sweepLocked()
	snapshot := make([]models.BanRecord, 0, len(r.records))
	for _, rec := range r.records {
		snapshot = append(snapshot, rec)
	}
	r.mu.Unlock()

	slices.SortFunc(snapshot, func(a, b models.BanRecord) int {
		if c := a.ExpiresAt.Compare(b.ExpiresAt); c != 0 {
			return c
		}
		return cmp.Compare(a.SubjectID, b.SubjectID)
	})

	return func(yield func(models.BanRecord) bool) {
		for _, rec := range snapshot {
			if !yield(rec) {
				return
			}
		}
	}
}

// Count returns the number of active bans.
func (r *BanRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	return len(r.records)
}

// Sweep drops every expired record and returns how many were removed.
func (r *BanRegistry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked()
}

// Restore installs persisted records, skipping the ones already expired.
func (r *BanRegistry) Restore(records []models.BanRecord) int {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	restored := 0
	for _, rec := range records {
		if rec.SubjectID == "" || !rec.Active(now) {
			continue
		}
		r.records[rec.SubjectID] = rec
		restored++
	}
	return restored
}

func (r *BanRegistry) sweepLocked() int {
	now := r.clock.Now()
	removed := 0
	for subject, rec := range r.records {
		if !rec.Active(now) {
			delete(r.records, subject)
			removed++
		}
	}
	return removed
}
