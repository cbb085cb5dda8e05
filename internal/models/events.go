package models

import "math/big"

// Event is one decoded contract log. Block and Index give the log's position so
// callers can keep a replayable, ordered history.
type Event interface {
	Block() uint64
	Index() uint
}

type LogPosition struct {
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint   `json:"log_index"`
}

func (p LogPosition) Block() uint64 { return p.BlockNumber }
func (p LogPosition) Index() uint   { return p.LogIndex }

// Single-pool events

type StakePlaced struct {
	LogPosition
	RoundID int64    `json:"round_id"`
	User    string   `json:"user"`
	Group   Group    `json:"group"`
	Amount  *big.Int `json:"amount"`
}

type RoundStarted struct {
	LogPosition
	RoundID int64    `json:"round_id"`
	PoolA   *big.Int `json:"pool_a"`
	PoolB   *big.Int `json:"pool_b"`
}

type WinnerDeclared struct {
	LogPosition
	RoundID      int64 `json:"round_id"`
	WinningGroup Group `json:"winning_group"`
}

type PayoutClaimed struct {
	LogPosition
	RoundID int64    `json:"round_id"`
	User    string   `json:"user"`
	Amount  *big.Int `json:"amount"`
}

// Elimination events

type PlayerJoined struct {
	LogPosition
	GameID int64  `json:"game_id"`
	Player string `json:"player"`
}

type ChoiceSubmitted struct {
	LogPosition
	GameID int64  `json:"game_id"`
	Round  int64  `json:"round"`
	Player string `json:"player"`
	Choice Group  `json:"choice"`
}

type PlayerCashedOut struct {
	LogPosition
	GameID int64    `json:"game_id"`
	Player string   `json:"player"`
	Amount *big.Int `json:"amount"`
}

type RoundResolved struct {
	LogPosition
	GameID  int64 `json:"game_id"`
	Round   int64 `json:"round"`
	Outcome Group `json:"outcome"`
}

type VictoryClaimed struct {
	LogPosition
	GameID int64    `json:"game_id"`
	Player string   `json:"player"`
	Amount *big.Int `json:"amount"`
}
