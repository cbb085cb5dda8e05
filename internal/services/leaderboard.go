package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/config"
	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
)

// SnapshotCache shares the latest leaderboard between API instances.
type SnapshotCache interface {
	CacheSnapshot(ctx context.Context, snapshot *models.LeaderboardSnapshot) error
	GetCachedSnapshot(ctx context.Context) (*models.LeaderboardSnapshot, error)
}

type LeaderboardView struct {
	models.LeaderboardSnapshot
	Focus *models.FocusStats `json:"focus,omitempty"`
}

// LeaderboardService keeps an append-only copy of the contract log and
// recomputes points from it. Logs are fetched incrementally from the block
// after the last one seen; reorgs are not tracked.
type LeaderboardService struct {
	source      EventSource
	engine      *PointsEngine
	cache       SnapshotCache
	broadcaster Broadcaster

	chunkSize uint64
	interval  time.Duration
	now       func() time.Time

	refreshMu sync.Mutex
	mu        sync.RWMutex
	events    []models.Event
	nextBlock uint64
	snapshot  *models.LeaderboardSnapshot
}

func NewLeaderboardService(cfg *config.Config, source EventSource, cache SnapshotCache, broadcaster Broadcaster) *LeaderboardService {
	chunk := cfg.LogChunkSize
	if chunk == 0 {
		chunk = 9000
	}
	return &LeaderboardService{
		source:      source,
		engine:      NewPointsEngine(cfg.LeaderboardTopN),
		cache:       cache,
		broadcaster: broadcaster,
		chunkSize:   chunk,
		interval:    cfg.LeaderboardInterval,
		now:         time.Now,
		nextBlock:   cfg.DeployBlock,
	}
}

// Refresh pulls new logs up to the chain head and rebuilds the snapshot.
// Chunks fetched before a failure are kept, so the next call resumes there.
func (s *LeaderboardService) Refresh(ctx context.Context) (*models.LeaderboardSnapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	head, err := s.source.LatestBlock(ctx)
	if err != nil {
		leaderboardRefreshes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to get latest block: %w", err)
	}

	fetchErr := s.fetchUntil(ctx, head)

	s.mu.Lock()
	result := s.engine.Recompute(s.events, "")
	snapshot := &models.LeaderboardSnapshot{
		Entries:        result.Entries,
		TotalAddresses: result.TotalAddresses,
		LastBlock:      s.lastBlockLocked(),
		GeneratedAt:    s.now().UTC(),
	}
	s.snapshot = snapshot
	eventCount := len(s.events)
	s.mu.Unlock()

	leaderboardEvents.Set(float64(eventCount))

	if s.cache != nil {
		if err := s.cache.CacheSnapshot(ctx, snapshot); err != nil {
			log.WithError(err).Warn("Failed to cache leaderboard snapshot")
		}
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastLeaderboard(snapshot)
	}

	if fetchErr != nil {
		leaderboardRefreshes.WithLabelValues("partial").Inc()
		return snapshot, fetchErr
	}
	leaderboardRefreshes.WithLabelValues("ok").Inc()
	return snapshot, nil
}

func (s *LeaderboardService) fetchUntil(ctx context.Context, head uint64) error {
	for {
		s.mu.RLock()
		from := s.nextBlock
		s.mu.RUnlock()
		if from > head {
			return nil
		}

		to := from + s.chunkSize - 1
		if to > head {
			to = head
		}
		events, err := s.source.FetchLogs(ctx, from, to)
		if err != nil {
			return fmt.Errorf("failed to fetch logs %d-%d: %w", from, to, err)
		}

		s.mu.Lock()
		s.events = append(s.events, events...)
		s.nextBlock = to + 1
		s.mu.Unlock()

		log.WithFields(log.Fields{
			"from":   from,
			"to":     to,
			"events": len(events),
		}).Debug("Fetched leaderboard logs")
	}
}

func (s *LeaderboardService) lastBlockLocked() uint64 {
	if s.nextBlock == 0 {
		return 0
	}
	return s.nextBlock - 1
}

// Leaderboard returns the top entries, at most limit of them when limit is
// positive, plus stats for focus when it is set. Before the first refresh
// it falls back to the shared cache, which carries no focus stats.
func (s *LeaderboardService) Leaderboard(ctx context.Context, focus string, limit int) (*LeaderboardView, error) {
	s.mu.RLock()
	loaded := s.snapshot != nil
	var view *LeaderboardView
	if loaded {
		result := s.engine.Recompute(s.events, focus)
		view = &LeaderboardView{
			LeaderboardSnapshot: models.LeaderboardSnapshot{
				Entries:        result.Entries,
				TotalAddresses: result.TotalAddresses,
				LastBlock:      s.snapshot.LastBlock,
				GeneratedAt:    s.snapshot.GeneratedAt,
			},
			Focus: result.Focus,
		}
	}
	s.mu.RUnlock()

	if !loaded {
		if s.cache == nil {
			return nil, ErrNotFound
		}
		cached, err := s.cache.GetCachedSnapshot(ctx)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("failed to read cached leaderboard: %w", err)
		}
		view = &LeaderboardView{LeaderboardSnapshot: *cached}
	}

	if limit > 0 && len(view.Entries) > limit {
		view.Entries = view.Entries[:limit]
	}
	return view, nil
}

// Start refreshes immediately and then on every interval until ctx ends.
func (s *LeaderboardService) Start(ctx context.Context) {
	go func() {
		interval := s.interval
		if interval <= 0 {
			interval = 45 * time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if _, err := s.Refresh(ctx); err != nil {
				log.WithError(err).Error("Leaderboard refresh failed")
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
