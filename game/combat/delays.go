package combat

import (
	"sync"

	"github.com/ryanroundhouse/punk-mud-sub000/model"
)

// DelayEntry is a committed move counting down to execution.
type DelayEntry struct {
	Delay    int // remaining turns, stun included
	Nominal  int // the move's own delay
	Stunned  bool
	Move     model.Move
	TargetID string
}

// ApplyStunEffect returns delay raised by two turns per stun round on the
// move's success list.
func ApplyStunEffect(move model.Move, delay int) int {
	return delay + 2*StunRounds(move.Success)
}

// DelayStore holds one queued move per combatant id. Stun that lands on a
// combatant with nothing queued is held until its next move is queued.
type DelayStore struct {
	mu      sync.Mutex
	entries map[string]*DelayEntry
	pending map[string]int
}

// NewDelayStore creates an empty DelayStore.
func NewDelayStore() *DelayStore {
	return &DelayStore{
		entries: make(map[string]*DelayEntry),
		pending: make(map[string]int),
	}
}

// Queue commits move for combatantID. Returns false if a move is already queued.
func (s *DelayStore) Queue(combatantID string, move model.Move, targetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[combatantID]; ok {
		return false
	}
	move = move.WithDefaults()
	e := &DelayEntry{Delay: move.Delay, Nominal: move.Delay, Move: move, TargetID: targetID}
	if extra := s.pending[combatantID]; extra > 0 {
		e.Delay += extra
		e.Stunned = true
		delete(s.pending, combatantID)
	}
	s.entries[combatantID] = e
	return true
}

// Get returns a copy of the entry for combatantID.
func (s *DelayStore) Get(combatantID string) (DelayEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[combatantID]
	if !ok {
		return DelayEntry{}, false
	}
	return *e, true
}

// AddStun adds turns to the combatant's queued move, or holds them for the
// next one.
func (s *DelayStore) AddStun(combatantID string, turns int) {
	if turns <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[combatantID]; ok {
		e.Delay += turns
		e.Stunned = true
		return
	}
	s.pending[combatantID] += turns
}

// Advance subtracts turns from every listed entry, floored at 0.
func (s *DelayStore) Advance(turns int, combatantIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range combatantIDs {
		if e, ok := s.entries[id]; ok {
			e.Delay -= turns
			if e.Delay < 0 {
				e.Delay = 0
			}
		}
	}
}

// Ready reports whether combatantID has a queued move whose delay has run out.
func (s *DelayStore) Ready(combatantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[combatantID]
	return ok && e.Delay <= 0
}

// Take removes and returns the entry for combatantID.
func (s *DelayStore) Take(combatantID string) (DelayEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[combatantID]
	if !ok {
		return DelayEntry{}, false
	}
	delete(s.entries, combatantID)
	return *e, true
}

// Clear drops queued moves and pending stun for the given combatants.
func (s *DelayStore) Clear(combatantIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range combatantIDs {
		delete(s.entries, id)
		delete(s.pending, id)
	}
}
