package services

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
)

const roundsABIJSON = `[
 {"type":"function","name":"currentRoundId","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"getRound","stateMutability":"view","inputs":[{"name":"roundId","type":"uint256"}],"outputs":[
  {"name":"id","type":"uint256"},{"name":"poolA","type":"uint256"},{"name":"poolB","type":"uint256"},
  {"name":"startTime","type":"uint256"},{"name":"locked","type":"bool"},{"name":"completed","type":"bool"},
  {"name":"winningGroup","type":"uint8"}]},
 {"type":"function","name":"getUserStake","stateMutability":"view","inputs":[{"name":"roundId","type":"uint256"},{"name":"user","type":"address"}],"outputs":[
  {"name":"amount","type":"uint256"},{"name":"group","type":"uint8"},{"name":"claimed","type":"bool"}]},
 {"type":"function","name":"declareWinner","stateMutability":"nonpayable","inputs":[{"name":"roundId","type":"uint256"},{"name":"winningGroup","type":"uint8"}],"outputs":[]},
 {"type":"event","name":"StakePlaced","anonymous":false,"inputs":[
  {"name":"roundId","type":"uint256","indexed":true},{"name":"user","type":"address","indexed":true},
  {"name":"group","type":"uint8","indexed":false},{"name":"amount","type":"uint256","indexed":false}]},
 {"type":"event","name":"RoundStarted","anonymous":false,"inputs":[
  {"name":"roundId","type":"uint256","indexed":true},{"name":"poolA","type":"uint256","indexed":false},{"name":"poolB","type":"uint256","indexed":false}]},
 {"type":"event","name":"WinnerDeclared","anonymous":false,"inputs":[
  {"name":"roundId","type":"uint256","indexed":true},{"name":"winningGroup","type":"uint8","indexed":false}]},
 {"type":"event","name":"PayoutClaimed","anonymous":false,"inputs":[
  {"name":"roundId","type":"uint256","indexed":true},{"name":"user","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

const eliminationABIJSON = `[
 {"type":"function","name":"currentGameId","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"minPlayers","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"getGame","stateMutability":"view","inputs":[{"name":"gameId","type":"uint256"}],"outputs":[
  {"name":"id","type":"uint256"},{"name":"state","type":"uint8"},{"name":"playerCount","type":"uint256"},
  {"name":"aliveCount","type":"uint256"},{"name":"currentRound","type":"uint256"},{"name":"choicesSubmitted","type":"uint256"},
  {"name":"prizePool","type":"uint256"},{"name":"roundStartTime","type":"uint256"}]},
 {"type":"function","name":"getPlayer","stateMutability":"view","inputs":[{"name":"gameId","type":"uint256"},{"name":"player","type":"address"}],"outputs":[
  {"name":"joined","type":"bool"},{"name":"alive","type":"bool"},{"name":"cashedOut","type":"bool"},
  {"name":"claimValue","type":"uint256"},{"name":"lastChoice","type":"uint8"}]},
 {"type":"function","name":"startGame","stateMutability":"nonpayable","inputs":[{"name":"gameId","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"resolveRound","stateMutability":"nonpayable","inputs":[{"name":"gameId","type":"uint256"},{"name":"outcome","type":"uint8"}],"outputs":[]},
 {"type":"event","name":"PlayerJoined","anonymous":false,"inputs":[
  {"name":"gameId","type":"uint256","indexed":true},{"name":"player","type":"address","indexed":true}]},
 {"type":"event","name":"ChoiceSubmitted","anonymous":false,"inputs":[
  {"name":"gameId","type":"uint256","indexed":true},{"name":"player","type":"address","indexed":true},
  {"name":"round","type":"uint256","indexed":false},{"name":"choice","type":"uint8","indexed":false}]},
 {"type":"event","name":"PlayerCashedOut","anonymous":false,"inputs":[
  {"name":"gameId","type":"uint256","indexed":true},{"name":"player","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
 {"type":"event","name":"RoundResolved","anonymous":false,"inputs":[
  {"name":"gameId","type":"uint256","indexed":true},{"name":"round","type":"uint256","indexed":false},{"name":"outcome","type":"uint8","indexed":false}]},
 {"type":"event","name":"VictoryClaimed","anonymous":false,"inputs":[
  {"name":"gameId","type":"uint256","indexed":true},{"name":"player","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]}
]`

var (
	roundsABI      = mustParseABI(roundsABIJSON)
	eliminationABI = mustParseABI(eliminationABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("invalid contract abi: %v", err))
	}
	return parsed
}

// Raw tuples as the contract returns them. Field names follow the ABI output
// names so abi.Arguments.Copy can fill them; nothing outside this file sees them.

type roundTuple struct {
	Id           *big.Int
	PoolA        *big.Int
	PoolB        *big.Int
	StartTime    *big.Int
	Locked       bool
	Completed    bool
	WinningGroup uint8
}

type stakeTuple struct {
	Amount  *big.Int
	Group   uint8
	Claimed bool
}

type gameTuple struct {
	Id               *big.Int
	State            uint8
	PlayerCount      *big.Int
	AliveCount       *big.Int
	CurrentRound     *big.Int
	ChoicesSubmitted *big.Int
	PrizePool        *big.Int
	RoundStartTime   *big.Int
}

type playerTuple struct {
	Joined     bool
	Alive      bool
	CashedOut  bool
	ClaimValue *big.Int
	LastChoice uint8
}

func decodeUint(parsed abi.ABI, method string, data []byte) (*big.Int, error) {
	values, err := parsed.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected %s output: %d values", method, len(values))
	}
	return abi.ConvertType(values[0], new(big.Int)).(*big.Int), nil
}

func decodeRound(data []byte) (*models.Round, error) {
	var raw roundTuple
	if err := roundsABI.UnpackIntoInterface(&raw, "getRound", data); err != nil {
		return nil, fmt.Errorf("failed to decode round: %w", err)
	}
	return &models.Round{
		ID:           raw.Id.Int64(),
		PoolA:        raw.PoolA,
		PoolB:        raw.PoolB,
		StartTime:    unixTime(raw.StartTime),
		Locked:       raw.Locked,
		Completed:    raw.Completed,
		WinningGroup: models.Group(raw.WinningGroup),
	}, nil
}

func decodeStake(data []byte) (*models.Stake, error) {
	var raw stakeTuple
	if err := roundsABI.UnpackIntoInterface(&raw, "getUserStake", data); err != nil {
		return nil, fmt.Errorf("failed to decode stake: %w", err)
	}
	return &models.Stake{
		Amount:  raw.Amount,
		Group:   models.Group(raw.Group),
		Claimed: raw.Claimed,
	}, nil
}

func decodeGame(data []byte) (*models.Game, error) {
	var raw gameTuple
	if err := eliminationABI.UnpackIntoInterface(&raw, "getGame", data); err != nil {
		return nil, fmt.Errorf("failed to decode game: %w", err)
	}
	return &models.Game{
		ID:               raw.Id.Int64(),
		State:            models.GameState(raw.State),
		PlayerCount:      raw.PlayerCount.Int64(),
		AliveCount:       raw.AliveCount.Int64(),
		CurrentRound:     raw.CurrentRound.Int64(),
		ChoicesSubmitted: raw.ChoicesSubmitted.Int64(),
		PrizePool:        raw.PrizePool,
		RoundStartedAt:   unixTime(raw.RoundStartTime),
	}, nil
}

func decodePlayer(data []byte) (*models.Player, error) {
	var raw playerTuple
	if err := eliminationABI.UnpackIntoInterface(&raw, "getPlayer", data); err != nil {
		return nil, fmt.Errorf("failed to decode player: %w", err)
	}
	return &models.Player{
		Joined:     raw.Joined,
		Alive:      raw.Alive,
		CashedOut:  raw.CashedOut,
		ClaimValue: raw.ClaimValue,
		LastChoice: models.Group(raw.LastChoice),
	}, nil
}

func unixTime(v *big.Int) time.Time {
	if v == nil || v.Sign() == 0 {
		return time.Time{}
	}
	return time.Unix(v.Int64(), 0).UTC()
}

func addressString(a common.Address) string {
	return strings.ToLower(a.Hex())
}
