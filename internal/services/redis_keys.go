package services

import "time"

const (
	KeyDocument            = "doc:%s"
	KeyLeaderboardSnapshot = "leaderboard:snapshot"
	KeyRateLimit           = "ratelimit:%s:%s"

	TTLLeaderboardSnapshot = 10 * time.Minute

	DefaultRateLimitWrites = 30 // Max 30 POSTs per minute per client
	RateLimitWindow        = time.Minute
)
