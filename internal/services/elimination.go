package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/config"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
)

const EliminationBotName = "elimination"

// EliminationResolver starts elimination games once the lobby countdown has
// run and forces each round's outcome after the decision window.
type EliminationResolver struct {
	*botLoop

	contract       EliminationContract
	pick           func() (models.Group, error)
	now            func() time.Time
	confirmTimeout time.Duration
	lobbyCountdown time.Duration
	decisionWindow time.Duration
	decisionGrace  time.Duration
	minPlayers     int64

	tickMu    sync.Mutex
	processed map[string]bool
	lobbyFull map[int64]time.Time
	roundSeen map[string]time.Time
}

func NewEliminationResolver(cfg *config.Config, contract EliminationContract) *EliminationResolver {
	e := &EliminationResolver{
		botLoop:        newBotLoop(EliminationBotName, cfg.BotInterval),
		contract:       contract,
		pick:           RandomGroup,
		now:            time.Now,
		confirmTimeout: cfg.ConfirmTimeout,
		lobbyCountdown: cfg.LobbyCountdown,
		decisionWindow: cfg.DecisionWindow,
		decisionGrace:  cfg.DecisionGrace,
		minPlayers:     cfg.MinPlayersFallback,
		processed:      make(map[string]bool),
		lobbyFull:      make(map[int64]time.Time),
		roundSeen:      make(map[string]time.Time),
	}
	e.botLoop.tick = e.Tick
	return e
}

func startKey(gameID int64) string {
	return fmt.Sprintf("%d:start", gameID)
}

func roundKey(gameID, round int64) string {
	return fmt.Sprintf("%d:%d", gameID, round)
}

func (e *EliminationResolver) Tick(ctx context.Context) error {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	err := e.poll(ctx)
	e.recordTick(e.now(), err)
	return err
}

func (e *EliminationResolver) poll(ctx context.Context) error {
	gameID, err := e.contract.CurrentGameID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read current game: %w", err)
	}
	if gameID == 0 {
		return nil
	}
	game, err := e.contract.GetGame(ctx, gameID)
	if err != nil {
		return fmt.Errorf("failed to read game %d: %w", gameID, err)
	}

	switch game.State {
	case models.GameStateLobby:
		return e.handleLobby(ctx, game)
	case models.GameStateInProgress:
		return e.handleRound(ctx, game)
	default:
		return nil
	}
}

func (e *EliminationResolver) requiredPlayers(ctx context.Context) int64 {
	required, err := e.contract.MinPlayers(ctx)
	if err != nil || required <= 0 {
		if err != nil {
			log.WithError(err).Debug("Failed to read min players, using configured value")
		}
		return e.minPlayers
	}
	return required
}

func (e *EliminationResolver) handleLobby(ctx context.Context, game *models.Game) error {
	key := startKey(game.ID)
	if e.processed[key] {
		return nil
	}

	if game.PlayerCount < e.requiredPlayers(ctx) {
		delete(e.lobbyFull, game.ID)
		return nil
	}

	now := e.now()
	fullAt, ok := e.lobbyFull[game.ID]
	if !ok {
		e.lobbyFull[game.ID] = now
		log.WithFields(log.Fields{
			"game":      game.ID,
			"players":   game.PlayerCount,
			"countdown": e.lobbyCountdown,
		}).Info("Lobby reached minimum players, countdown started")
		return nil
	}
	if now.Sub(fullAt) < e.lobbyCountdown {
		return nil
	}

	fields := log.Fields{"game": game.ID, "players": game.PlayerCount}
	err := e.submit(ctx, "start_game", fields, e.confirmTimeout,
		func(ctx context.Context) (common.Hash, error) {
			return e.contract.StartGame(ctx, game.ID)
		},
		e.contract.WaitMined,
	)
	if err != nil {
		return err
	}

	e.processed[key] = true
	delete(e.lobbyFull, game.ID)
	return nil
}

func (e *EliminationResolver) handleRound(ctx context.Context, game *models.Game) error {
	if game.AliveCount == 0 {
		return nil
	}
	key := roundKey(game.ID, game.CurrentRound)
	if e.processed[key] {
		return nil
	}

	// the on-chain round start wins; first sight covers contracts that report none
	now := e.now()
	seen, ok := e.roundSeen[key]
	if !ok {
		seen = now
		e.roundSeen[key] = seen
	}
	if !game.RoundStartedAt.IsZero() {
		seen = game.RoundStartedAt
	}

	allIn := game.AllChoicesIn()
	if !allIn && now.Sub(seen) < e.decisionWindow+e.decisionGrace {
		return nil
	}

	outcome, err := e.pick()
	if err != nil {
		return err
	}

	fields := log.Fields{
		"game":    game.ID,
		"round":   game.CurrentRound,
		"outcome": outcome.String(),
		"choices": fmt.Sprintf("%d/%d", game.ChoicesSubmitted, game.AliveCount),
		"forced":  !allIn,
	}
	err = e.submit(ctx, "resolve_round", fields, e.confirmTimeout,
		func(ctx context.Context) (common.Hash, error) {
			return e.contract.ResolveRound(ctx, game.ID, outcome)
		},
		e.contract.WaitMined,
	)
	if err != nil {
		return err
	}

	e.processed[key] = true
	delete(e.roundSeen, key)
	e.recordProcessed(game.ID)
	return nil
}
