package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// TTL settings for different entity types.
	// Accounts never expire.
	RoundTTL      time.Duration
	AppliedTTL    time.Duration
	BotSessionTTL time.Duration

	// RoundHistoryLimit caps the per-player round index
	RoundHistoryLimit int64
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:               "redis://localhost:6379",
		PoolSize:          10,
		MinIdleConns:      2,
		RoundTTL:          30 * 24 * time.Hour,
		AppliedTTL:        30 * 24 * time.Hour,
		BotSessionTTL:     7 * 24 * time.Hour,
		RoundHistoryLimit: 200,
	}
}
