package redis

import (
	"fmt"

	"github.com/mcoot/gaminghub/internal/model"
)

// Key prefix for all hub data
const keyPrefix = "hub"

// accountKey returns the Redis key for an account HASH
func accountKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, id)
}

// appliedKey returns the Redis key recording the result of an idempotent delta
func appliedKey(id model.PlayerID, key string) string {
	return fmt.Sprintf("%s:applied:%s:%s", keyPrefix, id, key)
}

// leaderboardKey returns the Redis key for the ZSET ranking accounts
func leaderboardKey(by model.RankBy) string {
	return fmt.Sprintf("%s:leaderboard:%s", keyPrefix, by)
}

// roundKey returns the Redis key for a Round
func roundKey(id model.RoundID) string {
	return fmt.Sprintf("%s:round:%s", keyPrefix, id)
}

// playerRoundsIndexKey returns the Redis key for the ZSET of a player's rounds by start time
func playerRoundsIndexKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:idx:player_rounds:%s", keyPrefix, playerID)
}

// activeRoundsIndexKey returns the Redis key for the ZSET of in-progress rounds by deadline
func activeRoundsIndexKey() string {
	return fmt.Sprintf("%s:idx:active_rounds", keyPrefix)
}

// botSessionKey returns the Redis key for a chat bot session
func botSessionKey(id model.BotSessionID) string {
	return fmt.Sprintf("%s:bot_session:%s", keyPrefix, id)
}

// openBotSessionKey returns the Redis key holding the id of the open chat bot session
func openBotSessionKey() string {
	return fmt.Sprintf("%s:bot_session_open", keyPrefix)
}

// botSessionsIndexKey returns the Redis key for the ZSET of chat bot sessions by creation time
func botSessionsIndexKey() string {
	return fmt.Sprintf("%s:idx:bot_sessions", keyPrefix)
}
