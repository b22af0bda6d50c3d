// Package dice supplies the randomness used by combat, skill checks and mob AI.
package dice

import (
	"errors"
	"fmt"
	"math"
	"sync"

	toolkit "github.com/KirkDiggler/rpg-toolkit/dice"
)

// Roller is the rpg-toolkit roller. Roll returns a uniform integer in
// [1, size]; implementations must be safe for concurrent use.
type Roller = toolkit.Roller

// ErrInvalidSize is returned for dice with fewer than one side.
var ErrInvalidSize = errors.New("dice: size must be positive")

// New returns the toolkit's default roller.
func New() Roller { return toolkit.DefaultRoller }

// D20 rolls a twenty-sided die.
func D20(r Roller) (int, error) {
	v, err := r.Roll(20)
	if err != nil {
		return 0, fmt.Errorf("dice: d20: %w", err)
	}
	return v, nil
}

// Pick returns a uniform index in [0, n).
func Pick(r Roller, n int) (int, error) {
	if n < 1 {
		return 0, ErrInvalidSize
	}
	v, err := r.Roll(n)
	if err != nil {
		return 0, fmt.Errorf("dice: pick of %d: %w", n, err)
	}
	return v - 1, nil
}

// Chance rolls a d100 and reports whether it lands within p, a probability
// in [0, 1]. Certain outcomes do not roll.
func Chance(r Roller, p float64) (bool, error) {
	switch {
	case p <= 0:
		return false, nil
	case p >= 1:
		return true, nil
	}
	v, err := r.Roll(100)
	if err != nil {
		return false, fmt.Errorf("dice: chance: %w", err)
	}
	return v <= int(math.Round(p*100)), nil
}

// Script replays forced rolls in order. Once the queue is exhausted Roll
// returns 1.
type Script struct {
	mu    sync.Mutex
	rolls []int
	err   error
}

var _ Roller = (*Script)(nil)

// NewScript returns a Script that yields rolls in order.
func NewScript(rolls ...int) *Script {
	return &Script{rolls: rolls}
}

// Failing returns a Script whose every roll fails with err.
func Failing(err error) *Script {
	return &Script{err: err}
}

// Push queues more rolls.
func (s *Script) Push(rolls ...int) {
	s.mu.Lock()
	s.rolls = append(s.rolls, rolls...)
	s.mu.Unlock()
}

func (s *Script) Roll(size int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	if size < 1 {
		return 0, ErrInvalidSize
	}
	if len(s.rolls) == 0 {
		return 1, nil
	}
	v := s.rolls[0]
	s.rolls = s.rolls[1:]
	if v > size {
		v = size
	}
	if v < 1 {
		v = 1
	}
	return v, nil
}

func (s *Script) RollN(count, size int) ([]int, error) {
	out := make([]int, 0, count)
	for i := 0; i < count; i++ {
		v, err := s.Roll(size)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Remaining reports how many forced rolls are still queued.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rolls)
}
