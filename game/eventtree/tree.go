// Package eventtree holds dialogue and story-event trees as an arena of nodes
// addressed by id. Authored trees arrive as nested JSON and are flattened on
// parse; all traversal uses explicit queues and stacks.
package eventtree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// RootID is assigned to a root node that carries no id of its own.
const RootID = "root"

// ErrEmptyTree is returned when the source document has no root node.
var ErrEmptyTree = errors.New("eventtree: empty tree")

// Node is one prompt and its choice set.
type Node struct {
	ID     string
	Prompt string
	// QuestCompletionEvents is nil when the field is absent and empty (non-nil)
	// when it is present without entries.
	QuestCompletionEvents []string
	ActivateQuestID       string
	Restrictions          []string
	BlockIfQuestEventIDs  []string
	Choices               []Choice
}

// Choice is one selectable option under a node. Next and Failure hold node
// ids ("" when absent).
type Choice struct {
	Text                   string
	Next                   string
	Failure                string
	QuestCompletionEvents  []string
	ActivateQuestID        string
	MobID                  string
	TeleportToNode         string
	SkillCheckStat         string
	SkillCheckTargetNumber int
}

// IsSkillCheck reports whether the choice rolls against a stat.
func (c Choice) IsSkillCheck() bool {
	return c.SkillCheckStat != "" && c.SkillCheckTargetNumber > 0
}

// HasRestriction reports whether n lists r.
func (n Node) HasRestriction(r string) bool {
	for _, v := range n.Restrictions {
		if v == r {
			return true
		}
	}
	return false
}

// Tree is a node arena with parent-to-child edges only.
type Tree struct {
	RootID string
	nodes  map[string]*Node
}

// Len is the number of nodes in the arena.
func (t *Tree) Len() int { return len(t.nodes) }

// node returns the live arena entry.
func (t *Tree) node(id string) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// NormalizeID trims whitespace and surrounding quotes from an id that may
// have arrived in raw or stringified form.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	for len(id) >= 2 {
		first, last := id[0], id[len(id)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			id = strings.TrimSpace(id[1 : len(id)-1])
			continue
		}
		break
	}
	return id
}

// FindNode searches breadth-first from the root for nodeID and returns a
// copy of the node. An empty id yields the root.
func (t *Tree) FindNode(nodeID string) (Node, bool) {
	if t == nil || len(t.nodes) == 0 {
		return Node{}, false
	}
	want := NormalizeID(nodeID)
	if want == "" {
		want = t.RootID
	}

	visited := map[string]bool{t.RootID: true}
	queue := []string{t.RootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n, ok := t.nodes[id]
		if !ok {
			continue
		}
		if n.ID == want {
			return cloneNode(n), true
		}
		for _, c := range n.Choices {
			for _, child := range [2]string{c.Next, c.Failure} {
				if child != "" && !visited[child] {
					visited[child] = true
					queue = append(queue, child)
				}
			}
		}
	}
	return Node{}, false
}

// Root returns a copy of the root node.
func (t *Tree) Root() (Node, bool) { return t.FindNode("") }

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	out := &Tree{RootID: t.RootID, nodes: make(map[string]*Node, len(t.nodes))}
	for id, n := range t.nodes {
		c := cloneNode(n)
		out.nodes[id] = &c
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func cloneNode(n *Node) Node {
	c := *n
	c.QuestCompletionEvents = cloneStrings(n.QuestCompletionEvents)
	c.Restrictions = cloneStrings(n.Restrictions)
	c.BlockIfQuestEventIDs = cloneStrings(n.BlockIfQuestEventIDs)
	if n.Choices != nil {
		c.Choices = make([]Choice, len(n.Choices))
		for i, ch := range n.Choices {
			ch.QuestCompletionEvents = cloneStrings(ch.QuestCompletionEvents)
			c.Choices[i] = ch
		}
	}
	return c
}

// EnsureConsistentQuestEvents makes the questCompletionEvents field present on
// every sibling next node of nodeID once any sibling declares a non-empty
// list. Missing lists become empty; ids are never copied between siblings,
// so an "exit" branch never inherits completion events. It returns how many
// nodes changed.
func (t *Tree) EnsureConsistentQuestEvents(nodeID string) int {
	n, ok := t.node(nodeID)
	if !ok {
		return 0
	}
	anyEvents := false
	for _, c := range n.Choices {
		if next, ok := t.node(c.Next); ok && len(next.QuestCompletionEvents) > 0 {
			anyEvents = true
			break
		}
	}
	if !anyEvents {
		return 0
	}
	changed := 0
	for _, c := range n.Choices {
		next, ok := t.node(c.Next)
		if !ok || next.QuestCompletionEvents != nil {
			continue
		}
		next.QuestCompletionEvents = []string{}
		changed++
	}
	return changed
}

// RepairAll runs EnsureConsistentQuestEvents on every node.
func (t *Tree) RepairAll() int {
	changed := 0
	for id := range t.nodes {
		changed += t.EnsureConsistentQuestEvents(id)
	}
	return changed
}

// ---- JSON form ----

// flexID accepts ids encoded as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(NormalizeID(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("eventtree: id must be string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

type wireNode struct {
	ID                    flexID       `json:"id,omitempty"`
	Prompt                string       `json:"prompt"`
	QuestCompletionEvents []string     `json:"questCompletionEvents"`
	ActivateQuestID       string       `json:"activateQuestId,omitempty"`
	Restrictions          []string     `json:"restrictions,omitempty"`
	BlockIfQuestEventIDs  []string     `json:"blockIfQuestEventIds,omitempty"`
	Choices               []wireChoice `json:"choices,omitempty"`
}

type wireChoice struct {
	Text                   string    `json:"text"`
	NextNode               *wireNode `json:"nextNode,omitempty"`
	FailureNode            *wireNode `json:"failureNode,omitempty"`
	QuestCompletionEvents  []string  `json:"questCompletionEvents"`
	ActivateQuestID        string    `json:"activateQuestId,omitempty"`
	MobID                  string    `json:"mobId,omitempty"`
	TeleportToNode         flexID    `json:"teleportToNode,omitempty"`
	SkillCheckStat         string    `json:"skillCheckStat,omitempty"`
	SkillCheckTargetNumber int       `json:"skillCheckTargetNumber,omitempty"`
}

// Parse flattens a nested JSON tree into an arena. Nodes without an id get a
// path id: the parent id plus the choice index, with ".f" appended for
// failure branches. Duplicate ids fall back to the path id.
func Parse(data []byte) (*Tree, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyTree
	}
	var root wireNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("eventtree: parse: %w", err)
	}
	t := &Tree{nodes: make(map[string]*Node)}
	t.RootID = t.claimID(string(root.ID), RootID)

	type frame struct {
		wire *wireNode
		id   string
	}
	stack := []frame{{&root, t.RootID}}
	t.nodes[t.RootID] = nil // reserved until popped
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &Node{
			ID:                    f.id,
			Prompt:                f.wire.Prompt,
			QuestCompletionEvents: f.wire.QuestCompletionEvents,
			ActivateQuestID:       f.wire.ActivateQuestID,
			Restrictions:          f.wire.Restrictions,
			BlockIfQuestEventIDs:  f.wire.BlockIfQuestEventIDs,
		}
		if len(f.wire.Choices) > 0 {
			n.Choices = make([]Choice, len(f.wire.Choices))
		}
		for i := range f.wire.Choices {
			wc := &f.wire.Choices[i]
			c := Choice{
				Text:                   wc.Text,
				QuestCompletionEvents:  wc.QuestCompletionEvents,
				ActivateQuestID:        wc.ActivateQuestID,
				MobID:                  wc.MobID,
				TeleportToNode:         string(wc.TeleportToNode),
				SkillCheckStat:         wc.SkillCheckStat,
				SkillCheckTargetNumber: wc.SkillCheckTargetNumber,
			}
			path := f.id + "." + strconv.Itoa(i)
			if wc.NextNode != nil {
				c.Next = t.claimID(string(wc.NextNode.ID), path)
				t.nodes[c.Next] = nil
				stack = append(stack, frame{wc.NextNode, c.Next})
			}
			if wc.FailureNode != nil {
				c.Failure = t.claimID(string(wc.FailureNode.ID), path+".f")
				t.nodes[c.Failure] = nil
				stack = append(stack, frame{wc.FailureNode, c.Failure})
			}
			n.Choices[i] = c
		}
		t.nodes[f.id] = n
	}
	return t, nil
}

func (t *Tree) claimID(id, path string) string {
	id = NormalizeID(id)
	if id == "" {
		id = path
	}
	if _, taken := t.nodes[id]; taken {
		id = path
	}
	for {
		if _, taken := t.nodes[id]; !taken {
			return id
		}
		id += "_"
	}
}

// MarshalJSON renders the arena back into nested form.
func (t *Tree) MarshalJSON() ([]byte, error) {
	if t == nil || len(t.nodes) == 0 {
		return []byte("null"), nil
	}
	wires := make(map[string]*wireNode, len(t.nodes))
	for id, n := range t.nodes {
		w := &wireNode{
			ID:                    flexID(n.ID),
			Prompt:                n.Prompt,
			QuestCompletionEvents: n.QuestCompletionEvents,
			ActivateQuestID:       n.ActivateQuestID,
			Restrictions:          n.Restrictions,
			BlockIfQuestEventIDs:  n.BlockIfQuestEventIDs,
		}
		wires[id] = w
	}
	// link children once every wire node exists
	for id, n := range t.nodes {
		w := wires[id]
		for _, c := range n.Choices {
			w.Choices = append(w.Choices, wireChoice{
				Text:                   c.Text,
				NextNode:               wires[c.Next],
				FailureNode:            wires[c.Failure],
				QuestCompletionEvents:  c.QuestCompletionEvents,
				ActivateQuestID:        c.ActivateQuestID,
				MobID:                  c.MobID,
				TeleportToNode:         flexID(c.TeleportToNode),
				SkillCheckStat:         c.SkillCheckStat,
				SkillCheckTargetNumber: c.SkillCheckTargetNumber,
			})
		}
	}
	return json.Marshal(wires[t.RootID])
}
