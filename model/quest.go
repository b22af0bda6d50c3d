package model

import (
	"time"

	"gorm.io/datatypes"
)

// Quest event types.
const (
	QuestEventChat = "chat"
	QuestEventKill = "kill"
)

// Reward types.
const (
	RewardExperience = "experiencePoints"
	RewardGainClass  = "gainClass"
)

// Quest is a quest definition: a directed graph of events.
type Quest struct {
	ID                 string                         `gorm:"primaryKey;size:36" json:"id"`
	Title              string                         `gorm:"size:128;not null" json:"title"`
	JournalDescription string                         `gorm:"type:text" json:"journal_description"`
	Events             datatypes.JSONSlice[QuestEvent] `json:"events"`
}

// QuestEvent is one node of a quest's event graph.
type QuestEvent struct {
	ID        string        `json:"id"`
	Message   string        `json:"message"`
	ActorID   string        `json:"actorId,omitempty"`
	EventType string        `json:"eventType,omitempty"` // chat | kill
	MobID     string        `json:"mobId,omitempty"`
	Quantity  int           `json:"quantity,omitempty"`
	IsStart   bool          `json:"isStart,omitempty"`
	IsEnd     bool          `json:"isEnd,omitempty"`
	Choices   []QuestChoice `json:"choices,omitempty"`
	Rewards   []Reward      `json:"rewards,omitempty"`
}

// QuestChoice is an outgoing edge of a quest event.
type QuestChoice struct {
	NextEventID string `json:"nextEventId"`
}

// Reward is granted when a quest event is reached.
type Reward struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Event returns the quest event with the given id, or nil.
func (q *Quest) Event(id string) *QuestEvent {
	for i := range q.Events {
		if q.Events[i].ID == id {
			return &q.Events[i]
		}
	}
	return nil
}

// StartEvent returns the event flagged isStart, or nil.
func (q *Quest) StartEvent() *QuestEvent {
	for i := range q.Events {
		if q.Events[i].IsStart {
			return &q.Events[i]
		}
	}
	return nil
}

// KillProgress tracks remaining kills for one kill-type quest event.
type KillProgress struct {
	EventID   string `json:"eventId"`
	Remaining int    `json:"remaining"`
}

// UserQuest tracks a character's progress through a quest.
type UserQuest struct {
	ID                int64                            `gorm:"primaryKey;autoIncrement" json:"id"`
	CharID            string                           `gorm:"index:idx_char_quest;size:36;not null" json:"char_id"`
	QuestID           string                           `gorm:"size:36;not null" json:"quest_id"`
	CurrentEventID    string                           `gorm:"size:64" json:"current_event_id"`
	CompletedEventIDs datatypes.JSONSlice[string]      `json:"completed_event_ids"`
	Completed         bool                             `gorm:"default:false" json:"completed"`
	CompletedAt       *time.Time                       `json:"completed_at"`
	KillProgress      datatypes.JSONSlice[KillProgress] `json:"kill_progress"`
}

// Kills returns the progress entry for eventID, or nil.
func (q *UserQuest) Kills(eventID string) *KillProgress {
	for i := range q.KillProgress {
		if q.KillProgress[i].EventID == eventID {
			return &q.KillProgress[i]
		}
	}
	return nil
}

// ClearKills removes the progress entry for eventID.
func (q *UserQuest) ClearKills(eventID string) {
	out := q.KillProgress[:0]
	for _, k := range q.KillProgress {
		if k.EventID != eventID {
			out = append(out, k)
		}
	}
	q.KillProgress = out
}
