package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
)

// BotController is the start/stop/status surface shared by both resolution bots.
type BotController interface {
	Start(ctx context.Context) bool
	Stop() bool
	Status() BotStatus
	Tick(ctx context.Context) error
}

type BotStatus struct {
	Name          string    `json:"name"`
	Running       bool      `json:"running"`
	RunID         string    `json:"run_id,omitempty"`
	Interval      string    `json:"interval"`
	LastProcessed int64     `json:"last_processed"`
	LastTick      time.Time `json:"last_tick"`
	LastError     string    `json:"last_error,omitempty"`
	Ticks         int64     `json:"ticks"`
	Submissions   int64     `json:"submissions"`
	Failures      int64     `json:"failures"`
}

// RandomGroup picks A or B with equal probability from crypto/rand.
func RandomGroup() (models.Group, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	if err != nil {
		return models.GroupNone, fmt.Errorf("failed to read randomness: %w", err)
	}
	if n.Sign() == 0 {
		return models.GroupA, nil
	}
	return models.GroupB, nil
}

// botLoop owns the poll timer. Each bot supplies its tick function.
type botLoop struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context) error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	status BotStatus
}

func newBotLoop(name string, interval time.Duration) *botLoop {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &botLoop{
		name:     name,
		interval: interval,
		status:   BotStatus{Name: name, Interval: interval.String()},
	}
}

// Start launches the poll loop. It returns false when the loop already runs.
func (b *botLoop) Start(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	b.status.Running = true
	b.status.RunID = uuid.NewString()

	logger := log.WithFields(log.Fields{"bot": b.name, "run_id": b.status.RunID})
	logger.WithField("interval", b.interval).Info("Bot started")

	go b.run(loopCtx, b.done, logger)
	return true
}

func (b *botLoop) run(ctx context.Context, done chan struct{}, logger *log.Entry) {
	defer close(done)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		if err := b.tick(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Warn("Bot tick failed")
		}
		select {
		case <-ctx.Done():
			logger.Info("Bot stopped")
			return
		case <-ticker.C:
		}
	}
}

// Stop halts the timer and waits for the current tick to return. A
// transaction already submitted is not cancelled on chain.
func (b *botLoop) Stop() bool {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.status.Running = false
	b.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (b *botLoop) Status() BotStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *botLoop) recordTick(at time.Time, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.Ticks++
	b.status.LastTick = at
	b.status.LastError = ""
	botTicks.WithLabelValues(b.name).Inc()
	if err != nil {
		b.status.LastError = err.Error()
		botTickErrors.WithLabelValues(b.name).Inc()
	}
}

func (b *botLoop) recordProcessed(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.LastProcessed = id
	botLastProcessed.WithLabelValues(b.name).Set(float64(id))
}

// submit sends one transaction and waits for it to be mined. The caller marks
// its round processed only when submit returns nil.
func (b *botLoop) submit(ctx context.Context, action string, fields log.Fields, timeout time.Duration,
	send func(ctx context.Context) (common.Hash, error),
	wait func(ctx context.Context, tx common.Hash) error,
) error {
	logger := log.WithFields(fields).WithFields(log.Fields{"bot": b.name, "action": action})

	b.mu.Lock()
	b.status.Submissions++
	b.mu.Unlock()

	tx, err := send(ctx)
	if err != nil {
		b.recordFailure(action)
		return fmt.Errorf("%s submission failed: %w", action, err)
	}
	logger = logger.WithField("tx", tx.Hex())
	logger.Info("Transaction sent, waiting for confirmation")

	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := wait(waitCtx, tx); err != nil {
		b.recordFailure(action)
		return fmt.Errorf("%s confirmation failed: %w", action, err)
	}

	botSubmissions.WithLabelValues(b.name, action, "confirmed").Inc()
	logger.Info("Transaction confirmed")
	return nil
}

func (b *botLoop) recordFailure(action string) {
	b.mu.Lock()
	b.status.Failures++
	b.mu.Unlock()
	botSubmissions.WithLabelValues(b.name, action, "failed").Inc()
}
