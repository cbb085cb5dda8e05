package models

import (
	"math/big"
	"time"
)

// Round is the single-pool contract's round struct.
type Round struct {
	ID           int64     `json:"id"`
	PoolA        *big.Int  `json:"pool_a"`
	PoolB        *big.Int  `json:"pool_b"`
	StartTime    time.Time `json:"start_time"`
	Locked       bool      `json:"locked"`
	Completed    bool      `json:"completed"`
	WinningGroup Group     `json:"winning_group"`
}

// NeedsOutcome reports whether the round is locked but nobody declared a winner yet.
func (r *Round) NeedsOutcome() bool {
	return r.Locked && !r.Completed && r.WinningGroup == GroupNone
}

func (r *Round) TotalPool() *big.Int {
	return new(big.Int).Add(bigOrZero(r.PoolA), bigOrZero(r.PoolB))
}

func (r *Round) Pool(g Group) *big.Int {
	switch g {
	case GroupA:
		return bigOrZero(r.PoolA)
	case GroupB:
		return bigOrZero(r.PoolB)
	default:
		return new(big.Int)
	}
}

// Stake is one address' position in a single-pool round.
type Stake struct {
	Amount  *big.Int `json:"amount"`
	Group   Group    `json:"group"`
	Claimed bool     `json:"claimed"`
}

// Game is the elimination contract's game struct.
type Game struct {
	ID               int64     `json:"id"`
	State            GameState `json:"state"`
	PlayerCount      int64     `json:"player_count"`
	AliveCount       int64     `json:"alive_count"`
	CurrentRound     int64     `json:"current_round"`
	ChoicesSubmitted int64     `json:"choices_submitted"`
	PrizePool        *big.Int  `json:"prize_pool"`
	RoundStartedAt   time.Time `json:"round_started_at"`
}

func (g *Game) AllChoicesIn() bool {
	return g.AliveCount > 0 && g.ChoicesSubmitted >= g.AliveCount
}

// Player is one address' standing in an elimination game.
type Player struct {
	Joined     bool     `json:"joined"`
	Alive      bool     `json:"alive"`
	CashedOut  bool     `json:"cashed_out"`
	ClaimValue *big.Int `json:"claim_value"`
	LastChoice Group    `json:"last_choice"`
}

// RoundOutcome joins RoundStarted pools with the WinnerDeclared result.
type RoundOutcome struct {
	RoundID      int64    `json:"round_id"`
	PoolA        *big.Int `json:"pool_a"`
	PoolB        *big.Int `json:"pool_b"`
	WinningGroup Group    `json:"winning_group"`
}

// Resolved reports whether both the pools and a winner are known.
func (o *RoundOutcome) Resolved() bool {
	return o.PoolA != nil && o.PoolB != nil && o.WinningGroup.Valid()
}

type ClaimableEntry struct {
	ID       int64    `json:"id"`
	Amount   *big.Int `json:"amount"`
	GameType GameType `json:"game_type"`
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
