package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	// Account events
	EventBalanceChanged EventType = "balance_changed"
	EventLevelUp        EventType = "level_up"

	// Round events
	EventRoundCompleted EventType = "round_completed"
)

// Event is a notification addressed to a single player
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	PlayerID  PlayerID  `json:"player_id"`
	Payload   any       `json:"payload"`
}

// BalanceChangedPayload contains data for balance changed events
type BalanceChangedPayload struct {
	Delta   int64 `json:"delta"`
	Balance int64 `json:"balance"`
}

// LevelUpPayload contains data for level up events
type LevelUpPayload struct {
	OldLevel   int   `json:"old_level"`
	NewLevel   int   `json:"new_level"`
	Experience int64 `json:"experience"`
}

// RoundCompletedPayload contains data for round completed events
type RoundCompletedPayload struct {
	RoundID      RoundID    `json:"round_id"`
	GameType     GameType   `json:"game_type"`
	State        RoundState `json:"state"`
	PointsEarned int64      `json:"points_earned"`
	ExpGained    int64      `json:"exp_gained"`
}

// EventsForDelta derives the notifications implied by an applied delta
func EventsForDelta(res DeltaResult, now time.Time) []Event {
	if !res.Applied {
		return nil
	}
	var events []Event
	if res.After.Points != res.Before.Points {
		events = append(events, Event{
			Type:      EventBalanceChanged,
			Timestamp: now,
			PlayerID:  res.After.ID,
			Payload: BalanceChangedPayload{
				Delta:   res.After.Points - res.Before.Points,
				Balance: res.After.Points,
			},
		})
	}
	if res.After.Level > res.Before.Level {
		events = append(events, Event{
			Type:      EventLevelUp,
			Timestamp: now,
			PlayerID:  res.After.ID,
			Payload: LevelUpPayload{
				OldLevel:   res.Before.Level,
				NewLevel:   res.After.Level,
				Experience: res.After.Experience,
			},
		})
	}
	return events
}
