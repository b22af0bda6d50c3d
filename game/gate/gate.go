// Package gate decides which choices of an event node a player may see and
// maps numeric input onto them.
package gate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ryanroundhouse/punk-mud-sub000/game/eventtree"
)

// Restriction tags understood on next nodes.
const (
	RestrictionNoClass      = "noClass"
	RestrictionEnforcerOnly = "enforcerOnly"

	EnforcerClass = "Enforcer"
)

// Player is the quest and class state a gate decision reads.
type Player interface {
	HasQuest(questID string) bool
	QuestEventIDs() map[string]struct{}
	HasClass() bool
	Class() string
}

// IndexedChoice is a visible choice with its position in the unfiltered list.
type IndexedChoice struct {
	Choice        eventtree.Choice
	OriginalIndex int
}

// FilterChoicesByRestrictions drops choices whose next node activates a quest
// the player already holds, is blocked by an event the player has reached,
// or is restricted by class. Order is preserved.
func FilterChoicesByRestrictions(tree *eventtree.Tree, choices []eventtree.Choice, p Player) []IndexedChoice {
	out := make([]IndexedChoice, 0, len(choices))
	var seen map[string]struct{}
	for i, c := range choices {
		if c.Next == "" {
			out = append(out, IndexedChoice{Choice: c, OriginalIndex: i})
			continue
		}
		next, ok := tree.FindNode(c.Next)
		if !ok {
			out = append(out, IndexedChoice{Choice: c, OriginalIndex: i})
			continue
		}
		if next.ActivateQuestID != "" && p.HasQuest(next.ActivateQuestID) {
			continue
		}
		if len(next.BlockIfQuestEventIDs) > 0 {
			if seen == nil {
				seen = p.QuestEventIDs()
			}
			if intersects(next.BlockIfQuestEventIDs, seen) {
				continue
			}
		}
		if next.HasRestriction(RestrictionNoClass) && p.HasClass() {
			continue
		}
		if next.HasRestriction(RestrictionEnforcerOnly) && p.Class() != EnforcerClass {
			continue
		}
		out = append(out, IndexedChoice{Choice: c, OriginalIndex: i})
	}
	return out
}

func intersects(ids []string, set map[string]struct{}) bool {
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

// InputError is a recoverable bad choice entry.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

// ValidateChoiceInput resolves 1-based numeric input against valid.
func ValidateChoiceInput(input string, valid []IndexedChoice) (IndexedChoice, error) {
	if len(valid) == 0 {
		return IndexedChoice{}, &InputError{Message: "There are no responses available."}
	}
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return IndexedChoice{}, &InputError{
			Message: fmt.Sprintf("Please enter a number between 1 and %d.", len(valid)),
		}
	}
	if n < 1 || n > len(valid) {
		return IndexedChoice{}, &InputError{
			Message: fmt.Sprintf("Invalid choice. Please choose a number between 1 and %d.", len(valid)),
		}
	}
	return valid[n-1], nil
}
