package services

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/cryptoghoul07-bit/baseflip-miniapp-sub000/internal/models"
)

const PointsPerReferral = 5

// ReferralService keeps the referrer/referee mapping. Referrals are permanent
// and every referee has at most one referrer.
type ReferralService struct {
	store DocumentStore
	mu    sync.Mutex
}

func NewReferralService(store DocumentStore) *ReferralService {
	return &ReferralService{store: store}
}

// Record links referee to referrer. It returns false for malformed addresses,
// self referral, or a referee that was already referred.
func (s *ReferralService) Record(ctx context.Context, referrer, referee string) bool {
	referrer, err := models.NormalizeAddress(referrer)
	if err != nil {
		return false
	}
	referee, err = models.NormalizeAddress(referee)
	if err != nil {
		return false
	}
	if referrer == referee {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(ctx)
	if _, exists := doc.Referrers[referee]; exists {
		return false
	}

	doc.Referrers[referee] = referrer
	doc.Referrals[referrer] = append(doc.Referrals[referrer], referee)

	if err := s.store.Save(ctx, doc); err != nil {
		log.WithFields(log.Fields{
			"referrer": referrer,
			"referee":  referee,
		}).WithError(err).Error("Failed to write referral store, referral lost")
	}
	return true
}

func (s *ReferralService) Info(ctx context.Context, address string) models.ReferralInfo {
	address, err := models.NormalizeAddress(address)
	if err != nil {
		return models.ReferralInfo{RefereeList: []string{}}
	}

	doc := s.load(ctx)
	referees := append([]string{}, doc.Referrals[address]...)
	return models.ReferralInfo{
		ReferralCount: len(referees),
		RefereeList:   referees,
		ReferredBy:    doc.Referrers[address],
	}
}

// Points awards PointsPerReferral for every recorded referee.
func (s *ReferralService) Points(ctx context.Context) map[string]int {
	doc := s.load(ctx)
	points := make(map[string]int, len(doc.Referrals))
	for referrer, referees := range doc.Referrals {
		if len(referees) == 0 {
			continue
		}
		points[referrer] = len(referees) * PointsPerReferral
	}
	return points
}

func (s *ReferralService) load(ctx context.Context) *models.ReferralDocument {
	doc := models.NewReferralDocument()
	if err := s.store.Load(ctx, doc); err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.WithError(err).Warn("Failed to load referral store, starting empty")
		}
		return models.NewReferralDocument()
	}
	if doc.Referrals == nil {
		doc.Referrals = make(map[string][]string)
	}
	if doc.Referrers == nil {
		doc.Referrers = make(map[string]string)
	}
	return doc
}
