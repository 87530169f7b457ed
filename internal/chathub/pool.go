package chathub

import (
	"container/list"
	"sync"
	"time"
)

// WaitingEntry is a participant waiting for a partner. Seq is assigned from a
// monotonic counter and alone decides the order.
type WaitingEntry struct {
	ParticipantID string    `json:"participant_id"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
	Seq           uint64    `json:"seq"`
}

// WaitingPool is a strict FIFO of participants seeking a partner.
type WaitingPool struct {
	mu      sync.Mutex
	queue   *list.List // of WaitingEntry, ascending Seq
	index   map[string]*list.Element
	nextSeq uint64
}

func NewWaitingPool() *WaitingPool {
	return &WaitingPool{
		queue: list.New(),
		index: make(map[string]*list.Element),
	}
}

// Enqueue appends id to the back of the pool.
func (p *WaitingPool) Enqueue(id string, now time.Time) (WaitingEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.index[id]; ok {
		return WaitingEntry{}, ErrAlreadyActive
	}
	p.nextSeq++
	entry := WaitingEntry{ParticipantID: id, EnqueuedAt: now, Seq: p.nextSeq}
	p.index[id] = p.queue.PushBack(entry)
	return entry, nil
}

// DequeueOldestOtherThan pops the earliest entry whose participant is not
// excluded.
func (p *WaitingPool) DequeueOldestOtherThan(excluded string) (WaitingEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for e := p.queue.Front(); e != nil; e = e.Next() {
		entry := e.Value.(WaitingEntry)
		if entry.ParticipantID == excluded {
			continue
		}
		p.queue.Remove(e)
		delete(p.index, entry.ParticipantID)
		return entry, true
	}
	return WaitingEntry{}, false
}

// Requeue puts a previously dequeued entry back at its original precedence.
// It is a no-op if the participant is queued again in the meantime.
func (p *WaitingPool) Requeue(entry WaitingEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.index[entry.ParticipantID]; ok {
		return
	}
	for e := p.queue.Front(); e != nil; e = e.Next() {
		if e.Value.(WaitingEntry).Seq > entry.Seq {
			p.index[entry.ParticipantID] = p.queue.InsertBefore(entry, e)
			return
		}
	}
	p.index[entry.ParticipantID] = p.queue.PushBack(entry)
}

// Remove deletes id from the pool and reports whether it was there.
func (p *WaitingPool) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.index[id]
	if !ok {
		return false
	}
	p.queue.Remove(e)
	delete(p.index, id)
	return true
}

func (p *WaitingPool) Contains(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.index[id]
	return ok
}

func (p *WaitingPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// Snapshot returns the waiting entries oldest first.
func (p *WaitingPool) Snapshot() []WaitingEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]WaitingEntry, 0, p.queue.Len())
	for e := p.queue.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(WaitingEntry))
	}
	return out
}
