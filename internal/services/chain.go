package services

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	log "github.com/sirupsen/logrus"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/config"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
)

var (
	ErrNoReceipt  = errors.New("transaction receipt not found")
	ErrTxReverted = errors.New("transaction reverted")
	ErrNoSigner   = errors.New("no signing key configured")
)

// RoundsContract is what the single-pool resolution bot needs from the chain.
type RoundsContract interface {
	CurrentRoundID(ctx context.Context) (int64, error)
	GetRound(ctx context.Context, roundID int64) (*models.Round, error)
	DeclareWinner(ctx context.Context, roundID int64, winner models.Group) (common.Hash, error)
	WaitMined(ctx context.Context, tx common.Hash) error
}

// EliminationContract is what the elimination bot needs from the chain.
type EliminationContract interface {
	CurrentGameID(ctx context.Context) (int64, error)
	GetGame(ctx context.Context, gameID int64) (*models.Game, error)
	MinPlayers(ctx context.Context) (int64, error)
	StartGame(ctx context.Context, gameID int64) (common.Hash, error)
	ResolveRound(ctx context.Context, gameID int64, outcome models.Group) (common.Hash, error)
	WaitMined(ctx context.Context, tx common.Hash) error
}

// RoundStakeResult is one item of a batched round+stake read. Err is set when
// either call failed; the other items of the batch are unaffected.
type RoundStakeResult struct {
	RoundID int64
	Round   *models.Round
	Stake   *models.Stake
	Err     error
}

type GamePlayerResult struct {
	GameID int64
	Game   *models.Game
	Player *models.Player
	Err    error
}

type RoundStakeReader interface {
	CurrentRoundID(ctx context.Context) (int64, error)
	RoundStakes(ctx context.Context, roundIDs []int64, user string) ([]RoundStakeResult, error)
}

type GamePlayerReader interface {
	CurrentGameID(ctx context.Context) (int64, error)
	GamePlayers(ctx context.Context, gameIDs []int64, user string) ([]GamePlayerResult, error)
}

// EventSource is the replayable contract log, queried by block range.
type EventSource interface {
	LatestBlock(ctx context.Context) (uint64, error)
	FetchLogs(ctx context.Context, from, to uint64) ([]models.Event, error)
	FetchUserLogs(ctx context.Context, user string, from, to uint64) ([]models.Event, error)
}

type chainBackend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

type batchCaller interface {
	BatchCallContext(ctx context.Context, b []rpc.BatchElem) error
}

// ChainClient is one RPC connection shared by every contract wrapper.
type ChainClient struct {
	rpc     *rpc.Client
	eth     *ethclient.Client
	auth    *bind.TransactOpts
	chainID *big.Int
}

// DialChain connects to RPC_URL. The signer is only set up when needKey is true.
func DialChain(ctx context.Context, cfg *config.Config, needKey bool) (*ChainClient, error) {
	rpcClient, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}
	client := &ChainClient{
		rpc:     rpcClient,
		eth:     ethclient.NewClient(rpcClient),
		chainID: big.NewInt(cfg.ChainID),
	}

	if needKey {
		key, err := crypto.HexToECDSA(cfg.BotPrivateKey)
		if err != nil {
			rpcClient.Close()
			return nil, fmt.Errorf("invalid bot private key: %w", err)
		}
		if client.auth, err = newTransactor(key, client.chainID); err != nil {
			rpcClient.Close()
			return nil, err
		}
		log.WithField("signer", client.auth.From.Hex()).Info("Bot signer loaded")
	}

	return client, nil
}

func newTransactor(key *ecdsa.PrivateKey, chainID *big.Int) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}
	return auth, nil
}

func (c *ChainClient) Close() {
	c.rpc.Close()
}

func (c *ChainClient) Rounds(address string) *EthRounds {
	return &EthRounds{contract: newContract(common.HexToAddress(address), roundsABI, c.eth, c.rpc, c.auth)}
}

func (c *ChainClient) Elimination(address string) *EthElimination {
	return &EthElimination{contract: newContract(common.HexToAddress(address), eliminationABI, c.eth, c.rpc, c.auth)}
}

func (c *ChainClient) Events(rounds, elimination string) *EthEventSource {
	src := &EthEventSource{backend: c.eth}
	if rounds != "" {
		src.rounds = common.HexToAddress(rounds)
		src.addresses = append(src.addresses, src.rounds)
	}
	if elimination != "" {
		src.addresses = append(src.addresses, common.HexToAddress(elimination))
	}
	return src
}

// contract bundles the plumbing both wrappers share.
type contract struct {
	address      common.Address
	parsed       abi.ABI
	backend      chainBackend
	batch        batchCaller
	auth         *bind.TransactOpts
	bound        *bind.BoundContract
	pollInterval time.Duration
}

func newContract(address common.Address, parsed abi.ABI, backend chainBackend, batch batchCaller, auth *bind.TransactOpts) *contract {
	return &contract{
		address:      address,
		parsed:       parsed,
		backend:      backend,
		batch:        batch,
		auth:         auth,
		bound:        bind.NewBoundContract(address, parsed, backend, backend, backend),
		pollInterval: time.Second,
	}
}

func (c *contract) call(ctx context.Context, method string, args ...any) ([]byte, error) {
	data, err := c.parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	return out, nil
}

func (c *contract) callUint(ctx context.Context, method string) (int64, error) {
	out, err := c.call(ctx, method)
	if err != nil {
		return 0, err
	}
	v, err := decodeUint(c.parsed, method, out)
	if err != nil {
		return 0, err
	}
	return v.Int64(), nil
}

type batchCall struct {
	method string
	args   []any
	result hexutil.Bytes
	err    error
}

// callBatch sends every call in one JSON-RPC batch. A transport error fails
// the whole batch; per-call errors are left on the individual items.
func (c *contract) callBatch(ctx context.Context, calls []*batchCall) error {
	elems := make([]rpc.BatchElem, 0, len(calls))
	packed := make([]*batchCall, 0, len(calls))
	for _, bc := range calls {
		data, err := c.parsed.Pack(bc.method, bc.args...)
		if err != nil {
			bc.err = fmt.Errorf("failed to pack %s: %w", bc.method, err)
			continue
		}
		elems = append(elems, rpc.BatchElem{
			Method: "eth_call",
			Args: []any{
				map[string]any{"to": c.address, "data": hexutil.Bytes(data)},
				"latest",
			},
			Result: &bc.result,
		})
		packed = append(packed, bc)
	}
	if len(elems) == 0 {
		return nil
	}
	if err := c.batch.BatchCallContext(ctx, elems); err != nil {
		return fmt.Errorf("batch call failed: %w", err)
	}
	for i, elem := range elems {
		if elem.Error != nil {
			packed[i].err = elem.Error
		}
	}
	return nil
}

func (c *contract) transact(ctx context.Context, method string, args ...any) (common.Hash, error) {
	if c.auth == nil {
		return common.Hash{}, ErrNoSigner
	}
	opts := *c.auth
	opts.Context = ctx
	tx, err := c.bound.Transact(&opts, method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%s transaction failed: %w", method, err)
	}
	return tx.Hash(), nil
}

// WaitMined polls for the receipt until it appears or ctx ends. A receipt
// with status 0 is reported as ErrTxReverted.
func (c *contract) WaitMined(ctx context.Context, tx common.Hash) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, tx)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("%w: %s", ErrTxReverted, tx.Hex())
			}
			return nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			log.WithField("tx", tx.Hex()).WithError(err).Debug("Receipt lookup failed, retrying")
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", ErrNoReceipt, tx.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

type EthRounds struct {
	contract *contract
}

func (r *EthRounds) CurrentRoundID(ctx context.Context) (int64, error) {
	return r.contract.callUint(ctx, "currentRoundId")
}

func (r *EthRounds) GetRound(ctx context.Context, roundID int64) (*models.Round, error) {
	out, err := r.contract.call(ctx, "getRound", big.NewInt(roundID))
	if err != nil {
		return nil, err
	}
	return decodeRound(out)
}

func (r *EthRounds) RoundStakes(ctx context.Context, roundIDs []int64, user string) ([]RoundStakeResult, error) {
	account := common.HexToAddress(user)
	calls := make([]*batchCall, 0, 2*len(roundIDs))
	for _, id := range roundIDs {
		calls = append(calls,
			&batchCall{method: "getRound", args: []any{big.NewInt(id)}},
			&batchCall{method: "getUserStake", args: []any{big.NewInt(id), account}},
		)
	}
	if err := r.contract.callBatch(ctx, calls); err != nil {
		return nil, err
	}

	results := make([]RoundStakeResult, len(roundIDs))
	for i, id := range roundIDs {
		res := RoundStakeResult{RoundID: id}
		roundCall, stakeCall := calls[2*i], calls[2*i+1]
		switch {
		case roundCall.err != nil:
			res.Err = roundCall.err
		case stakeCall.err != nil:
			res.Err = stakeCall.err
		default:
			res.Round, res.Err = decodeRound(roundCall.result)
			if res.Err == nil {
				res.Stake, res.Err = decodeStake(stakeCall.result)
			}
		}
		results[i] = res
	}
	return results, nil
}

func (r *EthRounds) DeclareWinner(ctx context.Context, roundID int64, winner models.Group) (common.Hash, error) {
	return r.contract.transact(ctx, "declareWinner", big.NewInt(roundID), uint8(winner))
}

func (r *EthRounds) WaitMined(ctx context.Context, tx common.Hash) error {
	return r.contract.WaitMined(ctx, tx)
}

type EthElimination struct {
	contract *contract
}

func (e *EthElimination) CurrentGameID(ctx context.Context) (int64, error) {
	return e.contract.callUint(ctx, "currentGameId")
}

func (e *EthElimination) MinPlayers(ctx context.Context) (int64, error) {
	return e.contract.callUint(ctx, "minPlayers")
}

func (e *EthElimination) GetGame(ctx context.Context, gameID int64) (*models.Game, error) {
	out, err := e.contract.call(ctx, "getGame", big.NewInt(gameID))
	if err != nil {
		return nil, err
	}
	return decodeGame(out)
}

func (e *EthElimination) GamePlayers(ctx context.Context, gameIDs []int64, user string) ([]GamePlayerResult, error) {
	account := common.HexToAddress(user)
	calls := make([]*batchCall, 0, 2*len(gameIDs))
	for _, id := range gameIDs {
		calls = append(calls,
			&batchCall{method: "getGame", args: []any{big.NewInt(id)}},
			&batchCall{method: "getPlayer", args: []any{big.NewInt(id), account}},
		)
	}
	if err := e.contract.callBatch(ctx, calls); err != nil {
		return nil, err
	}

	results := make([]GamePlayerResult, len(gameIDs))
	for i, id := range gameIDs {
		res := GamePlayerResult{GameID: id}
		gameCall, playerCall := calls[2*i], calls[2*i+1]
		switch {
		case gameCall.err != nil:
			res.Err = gameCall.err
		case playerCall.err != nil:
			res.Err = playerCall.err
		default:
			res.Game, res.Err = decodeGame(gameCall.result)
			if res.Err == nil {
				res.Player, res.Err = decodePlayer(playerCall.result)
			}
		}
		results[i] = res
	}
	return results, nil
}

func (e *EthElimination) StartGame(ctx context.Context, gameID int64) (common.Hash, error) {
	return e.contract.transact(ctx, "startGame", big.NewInt(gameID))
}

func (e *EthElimination) ResolveRound(ctx context.Context, gameID int64, outcome models.Group) (common.Hash, error) {
	return e.contract.transact(ctx, "resolveRound", big.NewInt(gameID), uint8(outcome))
}

func (e *EthElimination) WaitMined(ctx context.Context, tx common.Hash) error {
	return e.contract.WaitMined(ctx, tx)
}

type logFilterer interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// EthEventSource reads both contracts' logs with eth_getLogs.
type EthEventSource struct {
	backend   logFilterer
	rounds    common.Address
	addresses []common.Address
}

func (s *EthEventSource) LatestBlock(ctx context.Context) (uint64, error) {
	return s.backend.BlockNumber(ctx)
}

func (s *EthEventSource) FetchLogs(ctx context.Context, from, to uint64) ([]models.Event, error) {
	return s.filter(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: s.addresses,
	})
}

// FetchUserLogs returns the user's StakePlaced and PayoutClaimed events on the
// single-pool contract. Both events index the user as their second topic.
func (s *EthEventSource) FetchUserLogs(ctx context.Context, user string, from, to uint64) ([]models.Event, error) {
	if s.rounds == (common.Address{}) {
		return nil, nil
	}
	userTopic := common.BytesToHash(common.HexToAddress(user).Bytes())
	return s.filter(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{s.rounds},
		Topics: [][]common.Hash{
			{topicStakePlaced, topicPayoutClaimed},
			nil,
			{userTopic},
		},
	})
}

func (s *EthEventSource) filter(ctx context.Context, q ethereum.FilterQuery) ([]models.Event, error) {
	logs, err := s.backend.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs: %w", err)
	}

	events := make([]models.Event, 0, len(logs))
	skipped := 0
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		ev, err := DecodeLog(lg)
		if err != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	if skipped > 0 {
		log.WithFields(log.Fields{
			"from":    q.FromBlock,
			"to":      q.ToBlock,
			"skipped": skipped,
		}).Warn("Skipped undecodable logs")
		undecodedLogs.Add(float64(skipped))
	}
	return events, nil
}
