package redis

import (
	"fmt"

	"github.com/mcoot/playerwatch/internal/model"
)

// Key prefix for all playerwatch data
const keyPrefix = "pw"

// Key generation functions for each entity type

// playerKey returns the Redis key for a TrackedPlayer
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%d", keyPrefix, id)
}

// upstreamIndexKey returns the Redis key for the upstream id -> player id index
func upstreamIndexKey(upstreamID string) string {
	return fmt.Sprintf("%s:idx:upstream:%s", keyPrefix, upstreamID)
}

// playersKey returns the Redis key for the ZSET of all player ids, scored by id
func playersKey() string {
	return fmt.Sprintf("%s:players", keyPrefix)
}

// namesKey returns the Redis key for a player's name history LIST
func namesKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:names:%d", keyPrefix, id)
}

// snapshotsKey returns the Redis key for a player's snapshot ZSET, scored by capture time
func snapshotsKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:snapshots:%d", keyPrefix, id)
}

// cyclesKey returns the Redis key for the polling cycle ZSET, scored by cycle time
func cyclesKey() string {
	return fmt.Sprintf("%s:cycles", keyPrefix)
}

// sequenceKey returns the Redis key for an id counter
func sequenceKey(entity string) string {
	return fmt.Sprintf("%s:seq:%s", keyPrefix, entity)
}
