package models

import "time"

type LeaderboardEntry struct {
	Address string `json:"address"`
	Points  int64  `json:"points"`
	Rank    int    `json:"rank"`
}

// FocusStats describes one requested address. Ranked is false when the address
// has points but fell outside the truncated top-N; Rank is then its position in
// the full ordering.
type FocusStats struct {
	Address string `json:"address"`
	Points  int64  `json:"points"`
	Rank    int    `json:"rank"`
	Ranked  bool   `json:"ranked"`
}

type LeaderboardSnapshot struct {
	Entries        []LeaderboardEntry `json:"entries"`
	TotalAddresses int                `json:"total_addresses"`
	LastBlock      uint64             `json:"last_block"`
	GeneratedAt    time.Time          `json:"generated_at"`
}
