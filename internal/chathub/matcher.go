package chathub

import (
	"errors"
	"fmt"
	"strangerchat/backend/internal/models"
	"sync"
	"time"
)

// End reasons recorded on chat rooms and in the activity log.
const (
	ReasonManual         = "manual"
	ReasonNext           = "next"
	ReasonBanned         = "banned"
	ReasonAdmin          = "admin"
	ReasonConnectionLost = "connection_lost"
)

type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeWaiting
	OutcomeMatched
	OutcomeEnded
	OutcomeCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeWaiting:
		return "waiting"
	case OutcomeMatched:
		return "matched"
	case OutcomeEnded:
		return "ended"
	case OutcomeCancelled:
		return "cancelled"
	}
	return "none"
}

// Outcome is what a matcher operation did. The hub turns it into
// notifications once the matcher lock is released.
type Outcome struct {
	Kind OutcomeKind
	// Participant is the one the operation was called for.
	Participant string
	// Partner is the other side for Matched and Ended.
	Partner string
	// Session is the created (Matched) or destroyed (Ended) session.
	Session Session
	Reason  string
	// Forced marks outcomes of moderator actions.
	Forced bool
}

type ParticipantState int

const (
	StateUnseen ParticipantState = iota
	StateWaiting
	StatePaired
)

func (s ParticipantState) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StatePaired:
		return "paired"
	}
	return "unseen"
}

// Stats is a point-in-time count of the live state.
type Stats struct {
	Waiting int `json:"waiting"`
	Paired  int `json:"paired"`
	Banned  int `json:"banned"`
	Known   int `json:"known"`
}

// MatcherService pairs waiting participants and ends sessions. mu serializes
// every compound operation over Pool and Sessions; the stores' own locks are
// only ever taken inside it.
type MatcherService struct {
	mu sync.Mutex

	Bans         *BanRegistry
	Pool         *WaitingPool
	Sessions     *SessionTable
	Participants *ParticipantRegistry

	clock Clock
}

func NewMatcherService(bans *BanRegistry, pool *WaitingPool, sessions *SessionTable, participants *ParticipantRegistry, clock Clock) *MatcherService {
	if clock == nil {
		clock = SystemClock
	}
	return &MatcherService{
		Bans:         bans,
		Pool:         pool,
		Sessions:     sessions,
		Participants: participants,
		clock:        clock,
	}
}

// RequestChat pairs id with the oldest waiting participant, or queues it.
func (m *MatcherService) RequestChat(id string) (Outcome, error) {
	if id == "" {
		return Outcome{}, fmt.Errorf("%w: empty participant id", ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, banned := m.Bans.IsBanned(id); banned {
		return Outcome{}, &BannedError{Until: rec.ExpiresAt, Reason: rec.Reason}
	}
	if m.Sessions.Contains(id) || m.Pool.Contains(id) {
		return Outcome{}, ErrAlreadyActive
	}

	for {
		candidate, ok := m.Pool.DequeueOldestOtherThan(id)
		if !ok {
			break
		}
		// Banned but not yet evicted: drop instead of pairing.
		if _, banned := m.Bans.IsBanned(candidate.ParticipantID); banned {
			continue
		}

		s, err := m.Sessions.Pair(candidate.ParticipantID, id, m.clock.Now())
		if err != nil {
			m.Pool.Requeue(candidate)
			break
		}
		return Outcome{
			Kind:        OutcomeMatched,
			Participant: id,
			Partner:     candidate.ParticipantID,
			Session:     s,
		}, nil
	}

	if _, err := m.Pool.Enqueue(id, m.clock.Now()); err != nil {
		return Outcome{}, err
	}
	return Outcome{Kind: OutcomeWaiting, Participant: id}, nil
}

// EndChat ends id's session or cancels its wait.
func (m *MatcherService) EndChat(id, reason string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.endLocked(id, reason)
}

// ForceEnd is EndChat on behalf of a moderator.
func (m *MatcherService) ForceEnd(id, reason string) (Outcome, error) {
	if reason == "" {
		reason = ReasonAdmin
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out, err := m.endLocked(id, reason)
	out.Forced = true
	return out, err
}

// OnBan evicts a freshly banned subject from the session table or the pool.
// It is a no-op for a subject that is neither waiting nor paired.
func (m *MatcherService) OnBan(subject string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out, err := m.endLocked(subject, ReasonBanned)
	if errors.Is(err, ErrNotFound) {
		return Outcome{Kind: OutcomeNone, Participant: subject, Reason: ReasonBanned}, nil
	}
	out.Forced = true
	return out, err
}

func (m *MatcherService) endLocked(id, reason string) (Outcome, error) {
	if m.Sessions.Contains(id) {
		s, err := m.Sessions.End(id)
		out := Outcome{
			Kind:        OutcomeEnded,
			Participant: id,
			Partner:     s.PartnerOf(id),
			Session:     s,
			Reason:      reason,
		}
		if err != nil {
			// The table has already been cleared; still let a partner that
			// can be identified hear about it.
			return out, err
		}
		// A paired participant is never queued.
		m.Pool.Remove(id)
		m.Pool.Remove(out.Partner)
		return out, nil
	}

	if m.Pool.Remove(id) {
		return Outcome{Kind: OutcomeCancelled, Participant: id, Reason: reason}, nil
	}
	return Outcome{}, ErrNotFound
}

// RelayEligiblePartner returns the participant that a message from id should
// be forwarded to.
func (m *MatcherService) RelayEligiblePartner(id string) (string, bool) {
	if _, banned := m.Bans.IsBanned(id); banned {
		return "", false
	}
	return m.Sessions.PartnerOf(id)
}

// RecordPreference stores profile data. It has no effect on pairing.
func (m *MatcherService) RecordPreference(id, gender, interest string) (models.User, error) {
	return m.Participants.RecordPreference(id, gender, interest)
}

// Now is the matcher's notion of the current time.
func (m *MatcherService) Now() time.Time { return m.clock.Now() }

func (m *MatcherService) StateOf(id string) ParticipantState {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.Sessions.Contains(id):
		return StatePaired
	case m.Pool.Contains(id):
		return StateWaiting
	}
	return StateUnseen
}

func (m *MatcherService) Stats() Stats {
	m.mu.Lock()
	waiting, paired := m.Pool.Size(), m.Sessions.Count()
	m.mu.Unlock()

	return Stats{
		Waiting: waiting,
		Paired:  paired,
		Banned:  m.Bans.Count(),
		Known:   m.Participants.Count(),
	}
}
