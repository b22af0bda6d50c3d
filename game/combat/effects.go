package combat

import (
	"sync"

	"github.com/ryanroundhouse/punk-mud-sub000/model"
)

// ActiveEffect is a timed stat modifier registered on a combatant.
type ActiveEffect struct {
	Effect        string
	Stat          string
	Amount        int
	Rounds        int
	InitialRounds int
	Target        string
	Initiator     string // display name of the combatant whose move applied it
	Message       string
}

// IsStunned reports whether any entry is a stun with rounds left.
func IsStunned(effects []model.MoveEffect) bool {
	for _, e := range effects {
		if e.Effect == model.EffectStun && e.Rounds > 0 {
			return true
		}
	}
	return false
}

// StunRounds sums the rounds of every stun entry.
func StunRounds(effects []model.MoveEffect) int {
	total := 0
	for _, e := range effects {
		if e.Effect == model.EffectStun && e.Rounds > 0 {
			total += e.Rounds
		}
	}
	return total
}

// EffectStore holds active effects keyed by combatant id.
type EffectStore struct {
	mu      sync.Mutex
	effects map[string][]ActiveEffect
}

// NewEffectStore creates an empty EffectStore.
func NewEffectStore() *EffectStore {
	return &EffectStore{effects: make(map[string][]ActiveEffect)}
}

// Add registers e on combatantID. Stun entries and entries without rounds
// are ignored.
func (s *EffectStore) Add(combatantID string, e ActiveEffect) {
	if e.Effect == model.EffectStun || e.Effect == "" || e.Rounds <= 0 {
		return
	}
	if e.InitialRounds == 0 {
		e.InitialRounds = e.Rounds
	}
	s.mu.Lock()
	s.effects[combatantID] = append(s.effects[combatantID], e)
	s.mu.Unlock()
}

// Get returns a copy of the effects on combatantID.
func (s *EffectStore) Get(combatantID string) []ActiveEffect {
	s.mu.Lock()
	defer s.mu.Unlock()
	src := s.effects[combatantID]
	if len(src) == 0 {
		return nil
	}
	out := make([]ActiveEffect, len(src))
	copy(out, src)
	return out
}

// StatModifier is the net increase minus reduction applied to stat.
func (s *EffectStore) StatModifier(combatantID, stat string) int {
	if stat == "" {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	mod := 0
	for _, e := range s.effects[combatantID] {
		if e.Stat != stat || e.Rounds <= 0 {
			continue
		}
		switch e.Effect {
		case model.EffectIncreaseStat:
			mod += e.Amount
		case model.EffectReduceStat:
			mod -= e.Amount
		}
	}
	return mod
}

// Tick decrements every effect on the given combatants by one round and
// drops the expired ones. It returns the effects that expired.
func (s *EffectStore) Tick(combatantIDs ...string) []ActiveEffect {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expired []ActiveEffect
	for _, id := range combatantIDs {
		list := s.effects[id]
		kept := list[:0]
		for _, e := range list {
			e.Rounds--
			if e.Rounds <= 0 {
				expired = append(expired, e)
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(s.effects, id)
		} else {
			s.effects[id] = kept
		}
	}
	return expired
}

// Clear drops all effects on the given combatants.
func (s *EffectStore) Clear(combatantIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range combatantIDs {
		delete(s.effects, id)
	}
}
