// Package dashboard assembles the facility overview snapshot with a
// cache-aside read path. The cache is an optimization only: any cache failure
// degrades to a store read, never to a request error.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/edtriage/internal/triage"
)

// DefaultTTL is how long an overview snapshot is served from cache. Short
// enough that the dashboard stays near-live, long enough to absorb refresh
// storms from a ward full of screens.
const DefaultTTL = 30 * time.Second

// waitingListLimit caps the queue section of the snapshot.
const waitingListLimit = 20

// Cache is the byte-level cache behind the overview read path.
type Cache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Overview is the facility dashboard snapshot.
type Overview struct {
	FacilityID  string               `json:"facilityId"`
	ActiveCount int                  `json:"activeCount"`
	ByLevel     map[triage.Level]int `json:"byLevel"`
	Today       *triage.DayStats     `json:"today"`
	WaitingList []*triage.QueueEntry `json:"waitingList"`
	GeneratedAt time.Time            `json:"generatedAt"`
}

// Service serves dashboard reads.
type Service struct {
	store   triage.Store
	cache   Cache
	ttl     time.Duration
	logger  log.Logger
	metrics *Metrics
}

// NewService creates a dashboard service. cache may be nil (every read hits
// the store); a non-positive ttl falls back to DefaultTTL.
func NewService(store triage.Store, cache Cache, ttl time.Duration, logger log.Logger, metrics *Metrics) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:   store,
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

func overviewKey(facilityID string) string {
	return "dashboard:overview:" + facilityID
}

// Overview returns the overview snapshot for a facility as serialized JSON,
// and whether it was served from cache. Cached bytes are returned verbatim,
// so repeated reads within the TTL are byte-identical.
func (s *Service) Overview(ctx context.Context, facilityID string) (json.RawMessage, bool, error) {
	key := overviewKey(facilityID)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn(ctx, "dashboard cache read failed", "key", key, "error", err.Error())
		} else if ok {
			s.countRead("hit")
			return cached, true, nil
		}
	}
	s.countRead("miss")

	snapshot, err := s.build(ctx, facilityID)
	if err != nil {
		return nil, false, err
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, false, fmt.Errorf("marshal overview: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, key, data, s.ttl); err != nil {
			s.logger.Warn(ctx, "dashboard cache write failed", "key", key, "error", err.Error())
		}
	}

	return data, false, nil
}

func (s *Service) build(ctx context.Context, facilityID string) (*Overview, error) {
	now := time.Now()

	activeCount, err := s.store.ActiveCount(ctx, facilityID)
	if err != nil {
		return nil, fmt.Errorf("active count: %w", err)
	}

	byLevel, err := s.store.ActiveByLevel(ctx, facilityID)
	if err != nil {
		return nil, fmt.Errorf("active by level: %w", err)
	}
	// Every level appears in the snapshot, including empty ones.
	for _, l := range []triage.Level{triage.Level1, triage.Level2, triage.Level3, triage.Level4, triage.Level5} {
		if _, ok := byLevel[l]; !ok {
			byLevel[l] = 0
		}
	}

	today, err := s.store.TodayStats(ctx, facilityID, now)
	if err != nil {
		return nil, fmt.Errorf("today stats: %w", err)
	}

	waiting, err := s.store.WaitingList(ctx, facilityID, waitingListLimit)
	if err != nil {
		return nil, fmt.Errorf("waiting list: %w", err)
	}
	if waiting == nil {
		waiting = []*triage.QueueEntry{}
	}

	return &Overview{
		FacilityID:  facilityID,
		ActiveCount: activeCount,
		ByLevel:     byLevel,
		Today:       today,
		WaitingList: waiting,
		GeneratedAt: now,
	}, nil
}

func (s *Service) countRead(outcome string) {
	if s.metrics != nil {
		s.metrics.ReadsTotal.WithLabelValues(outcome).Inc()
	}
}
