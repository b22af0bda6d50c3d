package player

import (
	"context"

	"github.com/ryanroundhouse/punk-mud-sub000/cache"
)

func roomKey(locationID string) string { return "room:" + locationID }

// Presence tracks which players stand in which location, in cache sets.
type Presence struct {
	cache cache.Cache
}

// NewPresence creates a Presence over c.
func NewPresence(c cache.Cache) *Presence {
	return &Presence{cache: c}
}

// Move removes playerID from the old room and adds it to the new one.
// Either id may be empty.
func (p *Presence) Move(ctx context.Context, playerID, from, to string) error {
	if from != "" && from != to {
		if err := p.cache.SRem(ctx, roomKey(from), playerID); err != nil {
			return err
		}
	}
	if to != "" {
		return p.cache.SAdd(ctx, roomKey(to), playerID)
	}
	return nil
}

// Leave removes playerID from a room.
func (p *Presence) Leave(ctx context.Context, playerID, locationID string) error {
	if locationID == "" {
		return nil
	}
	return p.cache.SRem(ctx, roomKey(locationID), playerID)
}

// Members lists the players in a room.
func (p *Presence) Members(ctx context.Context, locationID string) ([]string, error) {
	return p.cache.SMembers(ctx, roomKey(locationID))
}

// Contains reports whether playerID is recorded in a room.
func (p *Presence) Contains(ctx context.Context, playerID, locationID string) (bool, error) {
	return p.cache.SIsMember(ctx, roomKey(locationID), playerID)
}
