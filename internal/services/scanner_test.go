package services

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/config"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
)

type fakeRoundReader struct {
	current int64
	rounds  map[int64]*models.Round
	stakes  map[int64]*models.Stake
	broken  map[int64]bool
	asked   []int64
}

func (f *fakeRoundReader) CurrentRoundID(context.Context) (int64, error) { return f.current, nil }

func (f *fakeRoundReader) RoundStakes(_ context.Context, ids []int64, _ string) ([]RoundStakeResult, error) {
	f.asked = ids
	out := make([]RoundStakeResult, len(ids))
	for i, id := range ids {
		out[i] = RoundStakeResult{RoundID: id}
		if f.broken[id] {
			out[i].Err = errors.New("execution reverted")
			continue
		}
		out[i].Round = f.rounds[id]
		if out[i].Round == nil {
			out[i].Round = &models.Round{ID: id}
		}
		out[i].Stake = f.stakes[id]
		if out[i].Stake == nil {
			out[i].Stake = &models.Stake{Amount: new(big.Int)}
		}
	}
	return out, nil
}

type fakeGameReader struct {
	current int64
	games   map[int64]*models.Game
	players map[int64]*models.Player
	err     error
}

func (f *fakeGameReader) CurrentGameID(context.Context) (int64, error) { return f.current, nil }

func (f *fakeGameReader) GamePlayers(_ context.Context, ids []int64, _ string) ([]GamePlayerResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]GamePlayerResult, len(ids))
	for i, id := range ids {
		out[i] = GamePlayerResult{GameID: id, Game: f.games[id], Player: f.players[id]}
		if out[i].Game == nil {
			out[i].Err = errors.New("missing game")
		}
	}
	return out, nil
}

func completedRound(id int64, poolA, poolB *big.Int, winner models.Group) *models.Round {
	return &models.Round{ID: id, PoolA: poolA, PoolB: poolB, Locked: true, Completed: true, WinningGroup: winner}
}

func testScanConfig() *config.Config {
	return &config.Config{
		ScanBlockWindow:  1000,
		LogChunkSize:     400,
		ScanRecentRounds: 3,
		ScanRecentGames:  2,
	}
}

func TestScanRoundsClaimable(t *testing.T) {
	rounds := &fakeRoundReader{
		current: 10,
		rounds: map[int64]*models.Round{
			2:  completedRound(2, wei(1), wei(3), models.GroupA),
			9:  completedRound(9, wei(2), wei(2), models.GroupB),
			10: {ID: 10, PoolA: wei(1), Locked: true},
		},
		stakes: map[int64]*models.Stake{
			2:  {Amount: wei(1), Group: models.GroupA},
			9:  {Amount: wei(1), Group: models.GroupA},
			10: {Amount: wei(1), Group: models.GroupA},
		},
	}
	events := &fakeEventSource{
		head: 5000,
		user: []models.Event{stake(2, addrX, models.GroupA, wei(1))},
	}

	scanner := NewClaimScanner(testScanConfig(), rounds, nil, events)
	claims, err := scanner.Scan(context.Background(), addrX)
	require.NoError(t, err)

	// round 2 comes from the event search, 8..10 from the recent window
	assert.ElementsMatch(t, []int64{2, 8, 9, 10}, rounds.asked)
	assert.Equal(t, []blockRange{{4000, 4399}, {4400, 4799}, {4800, 5000}}, events.ranges)

	require.Len(t, claims, 1)
	assert.Equal(t, int64(2), claims[0].ID)
	assert.Equal(t, models.GameTypeSingle, claims[0].GameType)
	// 0.1 on A out of a 0.4 total pool where A holds 0.1
	assert.Equal(t, wei(4), claims[0].Amount)
}

func TestScanExcludesClaimedRounds(t *testing.T) {
	rounds := &fakeRoundReader{
		current: 6,
		rounds: map[int64]*models.Round{
			5: completedRound(5, wei(1), wei(1), models.GroupA),
			6: completedRound(6, wei(1), wei(1), models.GroupA),
		},
		stakes: map[int64]*models.Stake{
			5: {Amount: wei(1), Group: models.GroupA},
			6: {Amount: wei(1), Group: models.GroupA, Claimed: true},
		},
	}
	events := &fakeEventSource{
		head: 10,
		user: []models.Event{
			stake(5, addrX, models.GroupA, wei(1)),
			&models.PayoutClaimed{RoundID: 5, User: addrX, Amount: wei(2)},
		},
	}

	claims, err := NewClaimScanner(testScanConfig(), rounds, nil, events).Scan(context.Background(), addrX)
	require.NoError(t, err)
	assert.Empty(t, claims)
}

func TestScanToleratesPartialBatchFailure(t *testing.T) {
	rounds := &fakeRoundReader{
		current: 3,
		rounds: map[int64]*models.Round{
			1: completedRound(1, wei(1), wei(1), models.GroupB),
			3: completedRound(3, wei(1), wei(1), models.GroupB),
		},
		stakes: map[int64]*models.Stake{
			1: {Amount: wei(1), Group: models.GroupB},
			3: {Amount: wei(1), Group: models.GroupB},
		},
		broken: map[int64]bool{2: true, 3: true},
	}
	games := &fakeGameReader{
		current: 8,
		games: map[int64]*models.Game{
			8: {ID: 8, State: models.GameStateCompleted},
		},
		players: map[int64]*models.Player{
			8: {Joined: true, Alive: true, ClaimValue: wei(5)},
		},
	}

	claims, err := NewClaimScanner(testScanConfig(), rounds, games, nil).Scan(context.Background(), addrX)
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, models.ClaimableEntry{ID: 1, Amount: wei(2), GameType: models.GameTypeSingle}, claims[0])
	assert.Equal(t, models.ClaimableEntry{ID: 8, Amount: wei(5), GameType: models.GameTypeElimination}, claims[1])
}

func TestScanGamesEligibility(t *testing.T) {
	games := &fakeGameReader{
		current: 4,
		games: map[int64]*models.Game{
			4: {ID: 4, State: models.GameStateInProgress},
			3: {ID: 3, State: models.GameStateCompleted},
		},
		players: map[int64]*models.Player{
			4: {Alive: true, ClaimValue: wei(1)},
			3: {Alive: true, CashedOut: true, ClaimValue: wei(1)},
		},
	}
	claims, err := NewClaimScanner(testScanConfig(), nil, games, nil).Scan(context.Background(), addrY)
	require.NoError(t, err)
	assert.Empty(t, claims)

	games.players[3].CashedOut = false
	claims, err = NewClaimScanner(testScanConfig(), nil, games, nil).Scan(context.Background(), addrY)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, int64(3), claims[0].ID)

	games.err = errors.New("connection reset")
	_, err = NewClaimScanner(testScanConfig(), nil, games, nil).Scan(context.Background(), addrY)
	assert.Error(t, err)
}

func TestScanRejectsBadAddress(t *testing.T) {
	_, err := NewClaimScanner(testScanConfig(), nil, nil, nil).Scan(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrInvalidAddress)
}

func TestRoundPayout(t *testing.T) {
	round := completedRound(1, wei(3), wei(1), models.GroupB)
	assert.Equal(t, wei(4), roundPayout(round, &models.Stake{Amount: wei(1), Group: models.GroupB}))
	assert.Nil(t, roundPayout(round, &models.Stake{Amount: wei(1), Group: models.GroupA}))
	assert.Nil(t, roundPayout(round, &models.Stake{Amount: new(big.Int), Group: models.GroupB}))
	assert.Nil(t, roundPayout(&models.Round{WinningGroup: models.GroupB}, &models.Stake{Amount: wei(1), Group: models.GroupB}))
}
