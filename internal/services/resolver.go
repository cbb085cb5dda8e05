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

const RoundsBotName = "rounds"

// RoundResolver declares a random winner for every single-pool round that is
// locked without an outcome. Processed rounds are remembered for the process
// lifetime only; the contract rejects repeats after a restart.
type RoundResolver struct {
	*botLoop

	contract       RoundsContract
	pick           func() (models.Group, error)
	now            func() time.Time
	confirmTimeout time.Duration

	tickMu    sync.Mutex
	processed map[int64]bool
}

func NewRoundResolver(cfg *config.Config, contract RoundsContract) *RoundResolver {
	r := &RoundResolver{
		botLoop:        newBotLoop(RoundsBotName, cfg.BotInterval),
		contract:       contract,
		pick:           RandomGroup,
		now:            time.Now,
		confirmTimeout: cfg.ConfirmTimeout,
		processed:      make(map[int64]bool),
	}
	r.botLoop.tick = r.Tick
	return r
}

// Tick runs one poll: read the current round and resolve it when needed.
func (r *RoundResolver) Tick(ctx context.Context) error {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	err := r.poll(ctx)
	r.recordTick(r.now(), err)
	return err
}

func (r *RoundResolver) poll(ctx context.Context) error {
	roundID, err := r.contract.CurrentRoundID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read current round: %w", err)
	}
	if roundID == 0 || r.processed[roundID] {
		return nil
	}

	round, err := r.contract.GetRound(ctx, roundID)
	if err != nil {
		return fmt.Errorf("failed to read round %d: %w", roundID, err)
	}
	if round.Completed {
		r.processed[roundID] = true
		return nil
	}
	if !round.NeedsOutcome() {
		return nil
	}

	winner, err := r.pick()
	if err != nil {
		return err
	}

	fields := log.Fields{"round": roundID, "winner": winner.String()}
	log.WithFields(fields).Info("Round locked without winner, declaring")

	err = r.submit(ctx, "declare_winner", fields, r.confirmTimeout,
		func(ctx context.Context) (common.Hash, error) {
			return r.contract.DeclareWinner(ctx, roundID, winner)
		},
		r.contract.WaitMined,
	)
	if err != nil {
		return err
	}

	r.processed[roundID] = true
	r.recordProcessed(roundID)
	return nil
}
