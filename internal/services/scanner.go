package services

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/config"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
)

// ClaimScanner finds winnings an address can still withdraw from either game.
type ClaimScanner struct {
	rounds RoundStakeReader
	games  GamePlayerReader
	events EventSource

	blockWindow  uint64
	chunkSize    uint64
	recentRounds int64
	recentGames  int64
}

// NewClaimScanner accepts nil for a game type that is not deployed.
func NewClaimScanner(cfg *config.Config, rounds RoundStakeReader, games GamePlayerReader, events EventSource) *ClaimScanner {
	chunk := cfg.LogChunkSize
	if chunk == 0 {
		chunk = 9000
	}
	return &ClaimScanner{
		rounds:       rounds,
		games:        games,
		events:       events,
		blockWindow:  cfg.ScanBlockWindow,
		chunkSize:    chunk,
		recentRounds: cfg.ScanRecentRounds,
		recentGames:  cfg.ScanRecentGames,
	}
}

// Scan returns claimable entries sorted by game type, newest id first. A
// failed item in a batch is skipped; only failures that leave nothing to
// inspect are returned.
func (s *ClaimScanner) Scan(ctx context.Context, address string) ([]models.ClaimableEntry, error) {
	address, err := models.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	var claims []models.ClaimableEntry
	if s.rounds != nil {
		found, err := s.scanRounds(ctx, address)
		if err != nil {
			return nil, err
		}
		claims = append(claims, found...)
	}
	if s.games != nil {
		found, err := s.scanGames(ctx, address)
		if err != nil {
			return nil, err
		}
		claims = append(claims, found...)
	}

	sort.SliceStable(claims, func(i, j int) bool {
		if claims[i].GameType != claims[j].GameType {
			return claims[i].GameType == models.GameTypeSingle
		}
		return claims[i].ID > claims[j].ID
	})
	return claims, nil
}

func (s *ClaimScanner) scanRounds(ctx context.Context, address string) ([]models.ClaimableEntry, error) {
	current, err := s.rounds.CurrentRoundID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read current round: %w", err)
	}

	ids := make(map[int64]bool)
	for id := current; id > 0 && id > current-s.recentRounds; id-- {
		ids[id] = true
	}

	claimed := make(map[int64]bool)
	if s.events != nil {
		staked, paid := s.userRoundEvents(ctx, address)
		for id := range staked {
			ids[id] = true
		}
		claimed = paid
	}
	if len(ids) == 0 {
		return nil, nil
	}

	roundIDs := make([]int64, 0, len(ids))
	for id := range ids {
		roundIDs = append(roundIDs, id)
	}
	sort.Slice(roundIDs, func(i, j int) bool { return roundIDs[i] > roundIDs[j] })

	results, err := s.rounds.RoundStakes(ctx, roundIDs, address)
	if err != nil {
		return nil, fmt.Errorf("failed to read rounds: %w", err)
	}

	var claims []models.ClaimableEntry
	for _, res := range results {
		if res.Err != nil {
			scanItemFailures.WithLabelValues(string(models.GameTypeSingle)).Inc()
			log.WithFields(log.Fields{"round": res.RoundID, "address": address}).WithError(res.Err).Debug("Skipping round")
			continue
		}
		if claimed[res.RoundID] {
			continue
		}
		if amount := roundPayout(res.Round, res.Stake); amount != nil {
			claims = append(claims, models.ClaimableEntry{ID: res.RoundID, Amount: amount, GameType: models.GameTypeSingle})
		}
	}
	return claims, nil
}

// userRoundEvents collects the rounds the address staked in and the rounds it
// already claimed within the block window. Failed chunks are skipped.
func (s *ClaimScanner) userRoundEvents(ctx context.Context, address string) (staked, claimed map[int64]bool) {
	staked = make(map[int64]bool)
	claimed = make(map[int64]bool)

	head, err := s.events.LatestBlock(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to read head block, scanning recent rounds only")
		return staked, claimed
	}
	var from uint64
	if head > s.blockWindow {
		from = head - s.blockWindow
	}

	for start := from; start <= head; start += s.chunkSize {
		end := start + s.chunkSize - 1
		if end > head {
			end = head
		}
		events, err := s.events.FetchUserLogs(ctx, address, start, end)
		if err != nil {
			log.WithFields(log.Fields{"from": start, "to": end}).WithError(err).Warn("Failed to fetch stake logs")
			continue
		}
		for _, ev := range events {
			switch v := ev.(type) {
			case *models.StakePlaced:
				if v.User == address {
					staked[v.RoundID] = true
				}
			case *models.PayoutClaimed:
				if v.User == address {
					claimed[v.RoundID] = true
				}
			}
		}
	}
	return staked, claimed
}

// roundPayout is the winner's pro-rata share of both pools, or nil when the
// stake has nothing to claim.
func roundPayout(round *models.Round, stake *models.Stake) *big.Int {
	if round == nil || stake == nil || stake.Amount == nil {
		return nil
	}
	if !round.Completed || stake.Claimed || stake.Amount.Sign() <= 0 {
		return nil
	}
	if !round.WinningGroup.Valid() || stake.Group != round.WinningGroup {
		return nil
	}

	winningPool := round.Pool(round.WinningGroup)
	if winningPool.Sign() <= 0 {
		return new(big.Int).Set(stake.Amount)
	}
	payout := new(big.Int).Mul(stake.Amount, round.TotalPool())
	return payout.Quo(payout, winningPool)
}

func (s *ClaimScanner) scanGames(ctx context.Context, address string) ([]models.ClaimableEntry, error) {
	current, err := s.games.CurrentGameID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read current game: %w", err)
	}

	var gameIDs []int64
	for id := current; id > 0 && id > current-s.recentGames; id-- {
		gameIDs = append(gameIDs, id)
	}
	if len(gameIDs) == 0 {
		return nil, nil
	}

	results, err := s.games.GamePlayers(ctx, gameIDs, address)
	if err != nil {
		return nil, fmt.Errorf("failed to read games: %w", err)
	}

	var claims []models.ClaimableEntry
	for _, res := range results {
		if res.Err != nil {
			scanItemFailures.WithLabelValues(string(models.GameTypeElimination)).Inc()
			log.WithFields(log.Fields{"game": res.GameID, "address": address}).WithError(res.Err).Debug("Skipping game")
			continue
		}
		p, g := res.Player, res.Game
		if p == nil || g == nil || p.ClaimValue == nil {
			continue
		}
		if g.State != models.GameStateCompleted || !p.Alive || p.CashedOut || p.ClaimValue.Sign() <= 0 {
			continue
		}
		claims = append(claims, models.ClaimableEntry{
			ID:       res.GameID,
			Amount:   new(big.Int).Set(p.ClaimValue),
			GameType: models.GameTypeElimination,
		})
	}
	return claims, nil
}
