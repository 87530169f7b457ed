// Package errlog records failed operations. Every error is written to a
// JSON-lines log and counted by kind; the most recent ones are kept in
// memory for the admin API.
package errlog

import (
	"cmp"
	"slices"
	"strangerchat/backend/internal/chathub"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const DefaultRecent = 100

type Entry struct {
	Time          time.Time `json:"time"`
	Kind          string    `json:"kind"`
	Message       string    `json:"message"`
	Location      string    `json:"location"`
	ParticipantID string    `json:"participant_id,omitempty"`
}

type Summary struct {
	Total      int            `json:"total"`
	ByKind     map[string]int `json:"by_kind"`
	MostCommon string         `json:"most_common,omitempty"`
}

// Recorder implements chathub.ErrorReporter.
type Recorder struct {
	mu     sync.Mutex
	total  int
	byKind map[string]int
	recent []Entry
	limit  int
	now    func() time.Time

	log zerolog.Logger
}

var _ chathub.ErrorReporter = (*Recorder)(nil)

func NewRecorder(log zerolog.Logger, limit int) *Recorder {
	if limit <= 0 {
		limit = DefaultRecent
	}
	return &Recorder{
		byKind: make(map[string]int),
		limit:  limit,
		now:    time.Now,
		log:    log,
	}
}

func (r *Recorder) Record(err error, location, participantID string) {
	if err == nil {
		return
	}
	e := Entry{
		Time:          r.now(),
		Kind:          chathub.ErrorKind(err),
		Message:       err.Error(),
		Location:      location,
		ParticipantID: participantID,
	}

	r.mu.Lock()
	r.total++
	r.byKind[e.Kind]++
	if len(r.recent) == r.limit {
		copy(r.recent, r.recent[1:])
		r.recent = r.recent[:r.limit-1]
	}
	r.recent = append(r.recent, e)
	r.mu.Unlock()

	r.log.Error().
		Err(err).
		Str("kind", e.Kind).
		Str("location", location).
		Str("participant_id", participantID).
		Send()
}

func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{Total: r.total, ByKind: make(map[string]int, len(r.byKind))}
	kinds := make([]string, 0, len(r.byKind))
	for k, n := range r.byKind {
		s.ByKind[k] = n
		kinds = append(kinds, k)
	}
	if len(kinds) > 0 {
		// Ties go to the alphabetically first kind.
		s.MostCommon = slices.MinFunc(kinds, func(a, b string) int {
			if c := cmp.Compare(r.byKind[b], r.byKind[a]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
	}
	return s
}

// Recent returns up to n entries, newest first, optionally only of kind.
func (r *Recorder) Recent(n int, kind string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, min(n, len(r.recent)))
	for i := len(r.recent) - 1; i >= 0 && len(out) < n; i-- {
		if kind != "" && r.recent[i].Kind != kind {
			continue
		}
		out = append(out, r.recent[i])
	}
	return out
}
