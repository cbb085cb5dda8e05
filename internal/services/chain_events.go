package services

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
)

var (
	errUnknownEvent   = errors.New("unknown event signature")
	errMalformedEvent = errors.New("malformed event")
)

type stakePlacedLog struct {
	RoundId *big.Int
	User    common.Address
	Group   uint8
	Amount  *big.Int
}

type roundStartedLog struct {
	RoundId *big.Int
	PoolA   *big.Int
	PoolB   *big.Int
}

type winnerDeclaredLog struct {
	RoundId      *big.Int
	WinningGroup uint8
}

type payoutClaimedLog struct {
	RoundId *big.Int
	User    common.Address
	Amount  *big.Int
}

type playerJoinedLog struct {
	GameId *big.Int
	Player common.Address
}

type choiceSubmittedLog struct {
	GameId *big.Int
	Player common.Address
	Round  *big.Int
	Choice uint8
}

type playerAmountLog struct {
	GameId *big.Int
	Player common.Address
	Amount *big.Int
}

type roundResolvedLog struct {
	GameId  *big.Int
	Round   *big.Int
	Outcome uint8
}

// Topic hashes used to filter logs.
var (
	topicStakePlaced     = roundsABI.Events["StakePlaced"].ID
	topicRoundStarted    = roundsABI.Events["RoundStarted"].ID
	topicWinnerDeclared  = roundsABI.Events["WinnerDeclared"].ID
	topicPayoutClaimed   = roundsABI.Events["PayoutClaimed"].ID
	topicPlayerJoined    = eliminationABI.Events["PlayerJoined"].ID
	topicChoiceSubmitted = eliminationABI.Events["ChoiceSubmitted"].ID
	topicPlayerCashedOut = eliminationABI.Events["PlayerCashedOut"].ID
	topicRoundResolved   = eliminationABI.Events["RoundResolved"].ID
	topicVictoryClaimed  = eliminationABI.Events["VictoryClaimed"].ID
)

// unpackLog fills out from both the data section and the indexed topics.
func unpackLog(parsed abi.ABI, out any, name string, lg types.Log) error {
	event, ok := parsed.Events[name]
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownEvent, name)
	}
	if len(event.Inputs.NonIndexed()) > 0 {
		if err := parsed.UnpackIntoInterface(out, name, lg.Data); err != nil {
			return fmt.Errorf("failed to unpack %s data: %w", name, err)
		}
	}
	var indexed abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopics(out, indexed, lg.Topics[1:]); err != nil {
		return fmt.Errorf("failed to parse %s topics: %w", name, err)
	}
	return nil
}

// checkIDs rejects ids that do not fit an int64 instead of truncating them.
func checkIDs(name string, ids ...*big.Int) error {
	for _, id := range ids {
		if id == nil || !id.IsInt64() || id.Sign() < 0 {
			return fmt.Errorf("%w: %s id out of range", errMalformedEvent, name)
		}
	}
	return nil
}

// DecodeLog turns a raw contract log into a model event.
func DecodeLog(lg types.Log) (models.Event, error) {
	if len(lg.Topics) == 0 {
		return nil, errUnknownEvent
	}
	pos := models.LogPosition{BlockNumber: lg.BlockNumber, LogIndex: lg.Index}

	switch lg.Topics[0] {
	case topicStakePlaced:
		var raw stakePlacedLog
		if err := unpackLog(roundsABI, &raw, "StakePlaced", lg); err != nil {
			return nil, err
		}
		if err := checkIDs("StakePlaced", raw.RoundId); err != nil {
			return nil, err
		}
		return &models.StakePlaced{
			LogPosition: pos,
			RoundID:     raw.RoundId.Int64(),
			User:        addressString(raw.User),
			Group:       models.Group(raw.Group),
			Amount:      raw.Amount,
		}, nil

	case topicRoundStarted:
		var raw roundStartedLog
		if err := unpackLog(roundsABI, &raw, "RoundStarted", lg); err != nil {
			return nil, err
		}
		if err := checkIDs("RoundStarted", raw.RoundId); err != nil {
			return nil, err
		}
		return &models.RoundStarted{LogPosition: pos, RoundID: raw.RoundId.Int64(), PoolA: raw.PoolA, PoolB: raw.PoolB}, nil

	case topicWinnerDeclared:
		var raw winnerDeclaredLog
		if err := unpackLog(roundsABI, &raw, "WinnerDeclared", lg); err != nil {
			return nil, err
		}
		if err := checkIDs("WinnerDeclared", raw.RoundId); err != nil {
			return nil, err
		}
		return &models.WinnerDeclared{LogPosition: pos, RoundID: raw.RoundId.Int64(), WinningGroup: models.Group(raw.WinningGroup)}, nil

	case topicPayoutClaimed:
		var raw payoutClaimedLog
		if err := unpackLog(roundsABI, &raw, "PayoutClaimed", lg); err != nil {
			return nil, err
		}
		if err := checkIDs("PayoutClaimed", raw.RoundId); err != nil {
			return nil, err
		}
		return &models.PayoutClaimed{LogPosition: pos, RoundID: raw.RoundId.Int64(), User: addressString(raw.User), Amount: raw.Amount}, nil

	case topicPlayerJoined:
		var raw playerJoinedLog
		if err := unpackLog(eliminationABI, &raw, "PlayerJoined", lg); err != nil {
			return nil, err
		}
		if err := checkIDs("PlayerJoined", raw.GameId); err != nil {
			return nil, err
		}
		return &models.PlayerJoined{LogPosition: pos, GameID: raw.GameId.Int64(), Player: addressString(raw.Player)}, nil

	case topicChoiceSubmitted:
		var raw choiceSubmittedLog
		if err := unpackLog(eliminationABI, &raw, "ChoiceSubmitted", lg); err != nil {
			return nil, err
		}
		if err := checkIDs("ChoiceSubmitted", raw.GameId, raw.Round); err != nil {
			return nil, err
		}
		return &models.ChoiceSubmitted{
			LogPosition: pos,
			GameID:      raw.GameId.Int64(),
			Round:       raw.Round.Int64(),
			Player:      addressString(raw.Player),
			Choice:      models.Group(raw.Choice),
		}, nil

	case topicPlayerCashedOut:
		var raw playerAmountLog
		if err := unpackLog(eliminationABI, &raw, "PlayerCashedOut", lg); err != nil {
			return nil, err
		}
		if err := checkIDs("PlayerCashedOut", raw.GameId); err != nil {
			return nil, err
		}
		return &models.PlayerCashedOut{LogPosition: pos, GameID: raw.GameId.Int64(), Player: addressString(raw.Player), Amount: raw.Amount}, nil

	case topicRoundResolved:
		var raw roundResolvedLog
		if err := unpackLog(eliminationABI, &raw, "RoundResolved", lg); err != nil {
			return nil, err
		}
		if err := checkIDs("RoundResolved", raw.GameId, raw.Round); err != nil {
			return nil, err
		}
		return &models.RoundResolved{LogPosition: pos, GameID: raw.GameId.Int64(), Round: raw.Round.Int64(), Outcome: models.Group(raw.Outcome)}, nil

	case topicVictoryClaimed:
		var raw playerAmountLog
		if err := unpackLog(eliminationABI, &raw, "VictoryClaimed", lg); err != nil {
			return nil, err
		}
		if err := checkIDs("VictoryClaimed", raw.GameId); err != nil {
			return nil, err
		}
		return &models.VictoryClaimed{LogPosition: pos, GameID: raw.GameId.Int64(), Player: addressString(raw.Player), Amount: raw.Amount}, nil
	}

	return nil, errUnknownEvent
}
