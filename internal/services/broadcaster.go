package services

import "github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"

// Broadcaster pushes leaderboard changes to connected clients.
type Broadcaster interface {
	BroadcastLeaderboard(snapshot *models.LeaderboardSnapshot)
}
