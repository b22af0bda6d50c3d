package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ryanroundhouse/punk-mud-sub000/audit"
	"github.com/ryanroundhouse/punk-mud-sub000/game/player"
	"github.com/ryanroundhouse/punk-mud-sub000/model"
)

const historyLen = 10

type historyDetail struct {
	Mob     string `json:"mob"`
	QuestID string `json:"quest_id"`
}

func describeRecord(rec model.AuditLog) string {
	var det historyDetail
	_ = json.Unmarshal(rec.Detail, &det)
	switch rec.Action {
	case audit.ActionCombatVictory:
		return "Defeated " + det.Mob
	case audit.ActionCombatDefeat:
		return "Was beaten by " + det.Mob
	case audit.ActionCombatFlee:
		return "Fled from " + det.Mob
	case audit.ActionQuestStart:
		return "Started quest " + det.QuestID
	case audit.ActionQuestComplete:
		return "Completed quest " + det.QuestID
	}
	return rec.Action
}

// history lists the player's latest recorded fights and quest milestones.
func (d *Dispatcher) history(ctx context.Context, p *model.Character) error {
	if d.records == nil {
		d.msg.SendToPlayer(p.ID, player.ChannelInfo, "No history is kept here.")
		return nil
	}
	recs, err := d.records.Recent(ctx, p.ID, historyLen)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		d.msg.SendToPlayer(p.ID, player.ChannelInfo, "Nothing worth remembering yet.")
		return nil
	}
	lines := make([]string, 0, len(recs)+1)
	lines = append(lines, "Recent history:")
	for _, rec := range recs {
		lines = append(lines, fmt.Sprintf("  %s  %s", rec.CreatedAt.Format("Jan 02 15:04"), describeRecord(rec)))
	}
	d.msg.SendToPlayer(p.ID, player.ChannelList, strings.Join(lines, "\n"))
	return nil
}
