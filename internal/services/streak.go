package services

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
)

// StreakService tracks consecutive wins per address. Every mutation loads the
// whole document, changes one record and writes the document back; mu keeps
// those read-modify-write cycles from interleaving inside one process.
type StreakService struct {
	store DocumentStore
	now   func() time.Time
	mu    sync.Mutex
}

func NewStreakService(store DocumentStore) *StreakService {
	return &StreakService{store: store, now: time.Now}
}

// MilestoneBonus returns the one-shot bonus for reaching a streak length.
func MilestoneBonus(streak int64) int64 {
	switch {
	case streak == 2:
		return 1
	case streak == 3:
		return 2
	case streak == 5:
		return 5
	case streak > 5 && streak%5 == 0:
		return 5
	default:
		return 0
	}
}

func (s *StreakService) Get(ctx context.Context, address string) *models.UserStreak {
	doc := s.load(ctx)
	if streak, ok := doc.Streaks[address]; ok {
		return streak
	}
	return models.NewUserStreak(address)
}

// RecordResult applies one round outcome. A result for the round already
// recorded last is ignored and the stored record is returned unchanged.
func (s *StreakService) RecordResult(ctx context.Context, address string, roundID int64, isWin bool) *models.UserStreak {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)
	streak, ok := doc.Streaks[address]
	if !ok {
		streak = models.NewUserStreak(address)
		doc.Streaks[address] = streak
	} else if streak.LastRoundID == roundID {
		return streak
	}

	if isWin {
		streak.CurrentStreak++
		if streak.CurrentStreak > streak.MaxStreak {
			streak.MaxStreak = streak.CurrentStreak
		}
		streak.StreakAtLoss = 0
		streak.TotalBonusPoints += MilestoneBonus(streak.CurrentStreak)
		streak.LastResult = models.ResultWin
	} else {
		streak.StreakAtLoss = streak.CurrentStreak
		streak.CurrentStreak = 0
		streak.LastResult = models.ResultLoss
	}
	streak.LastRoundID = roundID
	streak.LastUpdate = s.now().UTC()

	s.save(ctx, doc)
	return streak
}

// ProtectStreak undoes the loss recorded for roundID. It only works once per
// loss and only for the most recent result.
func (s *StreakService) ProtectStreak(ctx context.Context, address string, roundID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)
	streak, ok := doc.Streaks[address]
	if !ok {
		return false
	}
	if streak.LastResult != models.ResultLoss || streak.LastRoundID != roundID || streak.StreakAtLoss <= 0 {
		return false
	}

	streak.CurrentStreak = streak.StreakAtLoss
	streak.StreakAtLoss = 0
	streak.LastResult = models.ResultWin
	streak.LastUpdate = s.now().UTC()

	s.save(ctx, doc)
	return true
}

func (s *StreakService) load(ctx context.Context) *models.StreakDocument {
	doc := models.NewStreakDocument()
	if err := s.store.Load(ctx, doc); err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.WithError(err).Warn("Failed to load streak store, starting empty")
		}
		return models.NewStreakDocument()
	}
	if doc.Streaks == nil {
		doc.Streaks = make(map[string]*models.UserStreak)
	}
	return doc
}

func (s *StreakService) save(ctx context.Context, doc *models.StreakDocument) {
	if err := s.store.Save(ctx, doc); err != nil {
		log.WithError(err).Error("Failed to write streak store, update lost")
	}
}
