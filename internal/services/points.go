package services

import (
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
)

const DefaultTopN = 100

// ReferenceStake is 0.1 ETH in wei. A stake of exactly this size has a share of 100.
var ReferenceStake = new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil)

// share = amount / 1e17 * 100 = amount * 10^-15
const shareExponent = -15

var (
	winnerMultiplier = decimal.RequireFromString("1.6")
	loserMultiplier  = decimal.RequireFromString("0.4")
)

type LeaderboardResult struct {
	Entries        []models.LeaderboardEntry
	Focus          *models.FocusStats
	TotalAddresses int
}

// PointsEngine replays the event log into per-address points. It holds no state
// between calls, so the same log always yields the same leaderboard.
type PointsEngine struct {
	TopN int
}

func NewPointsEngine(topN int) *PointsEngine {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &PointsEngine{TopN: topN}
}

// StakePoints is the award for one stake: round(share x 1.6) on the winning
// side, round(share x 0.4) otherwise, with share = amount / 0.1 ETH x 100.
func StakePoints(amount *big.Int, won bool) int64 {
	if amount == nil || amount.Sign() <= 0 {
		return 0
	}
	share := decimal.NewFromBigInt(amount, shareExponent)
	multiplier := loserMultiplier
	if won {
		multiplier = winnerMultiplier
	}
	return share.Mul(multiplier).Round(0).IntPart()
}

func (e *PointsEngine) Recompute(events []models.Event, focus string) LeaderboardResult {
	var stakes []*models.StakePlaced
	outcomes := make(map[int64]*models.RoundOutcome)
	outcome := func(roundID int64) *models.RoundOutcome {
		o, ok := outcomes[roundID]
		if !ok {
			o = &models.RoundOutcome{RoundID: roundID}
			outcomes[roundID] = o
		}
		return o
	}

	for _, ev := range events {
		switch v := ev.(type) {
		case *models.StakePlaced:
			stakes = append(stakes, v)
		case *models.RoundStarted:
			o := outcome(v.RoundID)
			// non-nil pools mark the round as started
			o.PoolA, o.PoolB = orZero(v.PoolA), orZero(v.PoolB)
		case *models.WinnerDeclared:
			// an outcome is immutable once declared
			if o := outcome(v.RoundID); v.WinningGroup.Valid() && !o.WinningGroup.Valid() {
				o.WinningGroup = v.WinningGroup
			}
		}
	}

	totals := make(map[string]int64)
	var order []string

	for _, stake := range stakes {
		if stake.User == "" || stake.Amount == nil || !stake.Group.Valid() {
			continue
		}
		o, ok := outcomes[stake.RoundID]
		if !ok || !o.Resolved() {
			continue
		}

		if _, seen := totals[stake.User]; !seen {
			order = append(order, stake.User)
		}
		totals[stake.User] += StakePoints(stake.Amount, stake.Group == o.WinningGroup)
	}

	ranked := make([]models.LeaderboardEntry, len(order))
	for i, addr := range order {
		ranked[i] = models.LeaderboardEntry{Address: addr, Points: totals[addr]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Points > ranked[j].Points
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	result := LeaderboardResult{TotalAddresses: len(ranked)}

	topN := e.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	if len(ranked) > topN {
		result.Entries = ranked[:topN]
	} else {
		result.Entries = ranked
	}

	if focus != "" {
		result.Focus = focusStats(ranked, topN, focus)
	}
	return result
}

func focusStats(ranked []models.LeaderboardEntry, topN int, focus string) *models.FocusStats {
	for _, entry := range ranked {
		if entry.Address != focus {
			continue
		}
		if entry.Rank <= topN {
			return &models.FocusStats{Address: focus, Points: entry.Points, Rank: entry.Rank, Ranked: true}
		}
		if entry.Points > 0 {
			return &models.FocusStats{Address: focus, Points: entry.Points, Rank: entry.Rank, Ranked: false}
		}
		break
	}
	return &models.FocusStats{Address: focus}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
