package models

import "time"

type StreakResult string

const (
	ResultNone StreakResult = "none"
	ResultWin  StreakResult = "win"
	ResultLoss StreakResult = "loss"
)

type UserStreak struct {
	Address          string       `json:"address"`
	CurrentStreak    int64        `json:"currentStreak"`
	MaxStreak        int64        `json:"maxStreak"`
	LastRoundID      int64        `json:"lastRoundId"`
	LastResult       StreakResult `json:"lastResult"`
	StreakAtLoss     int64        `json:"streakAtLoss"`
	TotalBonusPoints int64        `json:"totalBonusPoints"`
	LastUpdate       time.Time    `json:"lastUpdate"`
}

func NewUserStreak(address string) *UserStreak {
	return &UserStreak{
		Address:    address,
		LastResult: ResultNone,
	}
}

// StreakDocument is the persisted layout: {"streaks": {address: UserStreak}}.
type StreakDocument struct {
	Streaks map[string]*UserStreak `json:"streaks"`
}

func NewStreakDocument() *StreakDocument {
	return &StreakDocument{Streaks: make(map[string]*UserStreak)}
}

// ReferralDocument is the persisted layout of the referral store.
type ReferralDocument struct {
	Referrals map[string][]string `json:"referrals"`
	Referrers map[string]string   `json:"referrers"`
}

func NewReferralDocument() *ReferralDocument {
	return &ReferralDocument{
		Referrals: make(map[string][]string),
		Referrers: make(map[string]string),
	}
}

type ReferralInfo struct {
	ReferralCount int      `json:"referralCount"`
	RefereeList   []string `json:"refereeList"`
	ReferredBy    string   `json:"referredBy"`
}
