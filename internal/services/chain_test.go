package services

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
)

func packRound(t *testing.T, id int64, poolA, poolB *big.Int, locked, completed bool, winner models.Group) []byte {
	t.Helper()
	out, err := roundsABI.Methods["getRound"].Outputs.Pack(
		big.NewInt(id), poolA, poolB, big.NewInt(1_700_000_000), locked, completed, uint8(winner),
	)
	require.NoError(t, err)
	return out
}

func packStake(t *testing.T, amount *big.Int, group models.Group, claimed bool) []byte {
	t.Helper()
	out, err := roundsABI.Methods["getUserStake"].Outputs.Pack(amount, uint8(group), claimed)
	require.NoError(t, err)
	return out
}

func TestDecodeRoundNamedFields(t *testing.T) {
	data := packRound(t, 12, wei(3), wei(1), true, false, models.GroupNone)

	round, err := decodeRound(data)
	require.NoError(t, err)
	assert.Equal(t, int64(12), round.ID)
	assert.Equal(t, wei(3), round.PoolA)
	assert.Equal(t, wei(1), round.PoolB)
	assert.True(t, round.Locked)
	assert.False(t, round.Completed)
	assert.True(t, round.NeedsOutcome())
	assert.Equal(t, time.Unix(1_700_000_000, 0).UTC(), round.StartTime)

	_, err = decodeRound(data[:64])
	assert.Error(t, err)
}

func TestDecodeGameAndPlayer(t *testing.T) {
	gameData, err := eliminationABI.Methods["getGame"].Outputs.Pack(
		big.NewInt(4), uint8(models.GameStateInProgress), big.NewInt(6), big.NewInt(3),
		big.NewInt(2), big.NewInt(1), wei(10), big.NewInt(1_700_000_100),
	)
	require.NoError(t, err)
	game, err := decodeGame(gameData)
	require.NoError(t, err)
	assert.Equal(t, int64(4), game.ID)
	assert.Equal(t, models.GameStateInProgress, game.State)
	assert.Equal(t, int64(6), game.PlayerCount)
	assert.Equal(t, int64(3), game.AliveCount)
	assert.Equal(t, int64(2), game.CurrentRound)
	assert.Equal(t, int64(1), game.ChoicesSubmitted)
	assert.False(t, game.AllChoicesIn())

	playerData, err := eliminationABI.Methods["getPlayer"].Outputs.Pack(true, true, false, wei(2), uint8(models.GroupB))
	require.NoError(t, err)
	player, err := decodePlayer(playerData)
	require.NoError(t, err)
	assert.True(t, player.Joined)
	assert.True(t, player.Alive)
	assert.False(t, player.CashedOut)
	assert.Equal(t, wei(2), player.ClaimValue)
	assert.Equal(t, models.GroupB, player.LastChoice)
}

func TestDecodeLog(t *testing.T) {
	user := common.HexToAddress(addrX)

	data, err := roundsABI.Events["StakePlaced"].Inputs.NonIndexed().Pack(uint8(models.GroupA), wei(2))
	require.NoError(t, err)
	ev, err := DecodeLog(types.Log{
		Topics:      []common.Hash{topicStakePlaced, common.BigToHash(big.NewInt(9)), common.BytesToHash(user.Bytes())},
		Data:        data,
		BlockNumber: 100,
		Index:       3,
	})
	require.NoError(t, err)
	stake, ok := ev.(*models.StakePlaced)
	require.True(t, ok)
	assert.Equal(t, int64(9), stake.RoundID)
	assert.Equal(t, addrX, stake.User)
	assert.Equal(t, models.GroupA, stake.Group)
	assert.Equal(t, wei(2), stake.Amount)
	assert.Equal(t, uint64(100), stake.Block())
	assert.Equal(t, uint(3), stake.Index())

	data, err = roundsABI.Events["WinnerDeclared"].Inputs.NonIndexed().Pack(uint8(models.GroupB))
	require.NoError(t, err)
	ev, err = DecodeLog(types.Log{Topics: []common.Hash{topicWinnerDeclared, common.BigToHash(big.NewInt(9))}, Data: data})
	require.NoError(t, err)
	assert.Equal(t, &models.WinnerDeclared{RoundID: 9, WinningGroup: models.GroupB}, ev)

	ev, err = DecodeLog(types.Log{Topics: []common.Hash{topicPlayerJoined, common.BigToHash(big.NewInt(2)), common.BytesToHash(user.Bytes())}})
	require.NoError(t, err)
	assert.Equal(t, &models.PlayerJoined{GameID: 2, Player: addrX}, ev)

	_, err = DecodeLog(types.Log{Topics: []common.Hash{common.HexToHash("0xdead")}})
	assert.ErrorIs(t, err, errUnknownEvent)

	// missing indexed topic
	_, err = DecodeLog(types.Log{Topics: []common.Hash{topicWinnerDeclared}, Data: data})
	assert.Error(t, err)

	// round id past int64 would alias a real round after truncation
	huge := new(big.Int).Add(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(9))
	_, err = DecodeLog(types.Log{Topics: []common.Hash{topicWinnerDeclared, common.BigToHash(huge)}, Data: data})
	assert.ErrorIs(t, err, errMalformedEvent)

	_, err = DecodeLog(types.Log{Topics: []common.Hash{topicPlayerJoined, common.BigToHash(huge), common.BytesToHash(user.Bytes())}})
	assert.ErrorIs(t, err, errMalformedEvent)
}

// fakeBatch answers getRound/getUserStake from maps and fails selected items.
type fakeBatch struct {
	t      *testing.T
	rounds map[int64][]byte
	stakes map[int64][]byte
	fail   map[int64]bool
	err    error
}

func (f *fakeBatch) BatchCallContext(_ context.Context, b []rpc.BatchElem) error {
	if f.err != nil {
		return f.err
	}
	for i := range b {
		data := b[i].Args[0].(map[string]any)["data"].(hexutil.Bytes)
		method, err := roundsABI.MethodById(data[:4])
		require.NoError(f.t, err)
		inputs, err := method.Inputs.Unpack(data[4:])
		require.NoError(f.t, err)
		id := inputs[0].(*big.Int).Int64()

		if f.fail[id] && method.Name == "getUserStake" {
			b[i].Error = errors.New("execution reverted")
			continue
		}
		source := f.rounds
		if method.Name == "getUserStake" {
			source = f.stakes
		}
		*b[i].Result.(*hexutil.Bytes) = source[id]
	}
	return nil
}

func TestRoundStakesPartialFailure(t *testing.T) {
	batch := &fakeBatch{
		t: t,
		rounds: map[int64][]byte{
			1: packRound(t, 1, wei(1), wei(1), true, true, models.GroupA),
			2: packRound(t, 2, wei(1), wei(1), true, true, models.GroupB),
			3: packRound(t, 3, wei(1), wei(1), true, true, models.GroupA),
		},
		stakes: map[int64][]byte{
			1: packStake(t, wei(1), models.GroupA, false),
			3: packStake(t, wei(2), models.GroupA, true),
		},
		fail: map[int64]bool{2: true},
	}
	rounds := &EthRounds{contract: &contract{parsed: roundsABI, batch: batch}}

	results, err := rounds.RoundStakes(context.Background(), []int64{1, 2, 3}, addrX)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, models.GroupA, results[0].Round.WinningGroup)
	assert.Equal(t, wei(1), results[0].Stake.Amount)

	assert.Error(t, results[1].Err)
	assert.Equal(t, int64(2), results[1].RoundID)

	assert.NoError(t, results[2].Err)
	assert.True(t, results[2].Stake.Claimed)

	batch.err = errors.New("connection refused")
	_, err = rounds.RoundStakes(context.Background(), []int64{1}, addrX)
	assert.Error(t, err)
}

type fakeReceipts struct {
	bind.ContractBackend
	receipts map[common.Hash]*types.Receipt
	calls    int
}

func (f *fakeReceipts) TransactionReceipt(_ context.Context, tx common.Hash) (*types.Receipt, error) {
	f.calls++
	if r, ok := f.receipts[tx]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeReceipts) BlockNumber(context.Context) (uint64, error) { return 0, nil }

func TestWaitMined(t *testing.T) {
	ok := common.HexToHash("0x01")
	reverted := common.HexToHash("0x02")
	pending := common.HexToHash("0x03")

	backend := &fakeReceipts{receipts: map[common.Hash]*types.Receipt{
		ok:       {Status: types.ReceiptStatusSuccessful},
		reverted: {Status: types.ReceiptStatusFailed},
	}}
	c := &contract{backend: backend, pollInterval: time.Millisecond}

	assert.NoError(t, c.WaitMined(context.Background(), ok))
	assert.ErrorIs(t, c.WaitMined(context.Background(), reverted), ErrTxReverted)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.WaitMined(ctx, pending), ErrNoReceipt)
	assert.Greater(t, backend.calls, 2)
}

func TestTransactWithoutSigner(t *testing.T) {
	rounds := &EthRounds{contract: &contract{parsed: roundsABI}}
	_, err := rounds.DeclareWinner(context.Background(), 1, models.GroupA)
	assert.ErrorIs(t, err, ErrNoSigner)
}

type fakeLogs struct {
	logs  []types.Log
	query ethereum.FilterQuery
}

func (f *fakeLogs) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.query = q
	return f.logs, nil
}

func (f *fakeLogs) BlockNumber(context.Context) (uint64, error) { return 0, nil }

func TestEventSourceSkipsUndecodable(t *testing.T) {
	data, err := roundsABI.Events["RoundStarted"].Inputs.NonIndexed().Pack(wei(1), wei(2))
	require.NoError(t, err)

	backend := &fakeLogs{logs: []types.Log{
		{Topics: []common.Hash{topicRoundStarted, common.BigToHash(big.NewInt(5))}, Data: data},
		{Topics: []common.Hash{common.HexToHash("0xbeef")}},
		{Topics: []common.Hash{topicRoundStarted, common.BigToHash(big.NewInt(6))}, Data: data, Removed: true},
	}}
	src := &EthEventSource{backend: backend, rounds: common.HexToAddress(addrZ)}

	events, err := src.FetchLogs(context.Background(), 10, 20)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(5), events[0].(*models.RoundStarted).RoundID)
	assert.Equal(t, big.NewInt(10), backend.query.FromBlock)

	_, err = src.FetchUserLogs(context.Background(), addrX, 1, 2)
	require.NoError(t, err)
	require.Len(t, backend.query.Topics, 3)
	assert.Equal(t, []common.Hash{topicStakePlaced, topicPayoutClaimed}, backend.query.Topics[0])
}
