package insights

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/log"
)

// MonthSource loads the months analyses are derived from.
type MonthSource interface {
	GetMonth(ctx context.Context, monthID string) (*core.Month, error)
	ListMonths(ctx context.Context, userID string) ([]*core.Month, error)
}

// Service serves cached insights. It is a change notifier: ledger writes
// drop the affected entries, and results computed across an invalidation
// are returned but never cached. Returned values are shared and must not
// be modified.
type Service struct {
	source    MonthSource
	months    *cache.LRUCache[*MonthInsights]
	overviews *cache.LRUCache[*Overview]
	group     singleflight.Group
	epoch     atomic.Uint64
	logger    *log.Logger
}

func NewService(source MonthSource, size int, ttl time.Duration, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Service{
		source:    source,
		months:    cache.NewLRUCache[*MonthInsights](size, ttl),
		overviews: cache.NewLRUCache[*Overview](size, ttl),
		logger:    logger.WithComponent(log.ComponentInsights),
	}
}

// Register hands the caches to m for periodic expiry sweeps.
func (s *Service) Register(m *cache.Manager) {
	m.Register(s.months)
	m.Register(s.overviews)
}

func monthKey(monthID string) string { return "month:" + monthID }

func userPrefix(userID string) string { return "user:" + userID + ":" }

func overviewKey(userID string) string { return userPrefix(userID) + "overview" }

// share runs fn once per key for all concurrent callers. fn gets a context
// detached from any single caller's cancellation; each caller still stops
// waiting when its own ctx ends.
func (s *Service) share(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) { return fn(shared) })
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Month returns the insights of one month.
func (s *Service) Month(ctx context.Context, monthID string) (*MonthInsights, error) {
	key := monthKey(monthID)
	if in, ok := s.months.Get(key); ok {
		return in, nil
	}

	v, err := s.share(ctx, key, func(ctx context.Context) (any, error) {
		epoch := s.epoch.Load()
		m, err := s.source.GetMonth(ctx, monthID)
		if err != nil {
			return nil, err
		}
		in := ForMonth(m)
		if s.epoch.Load() == epoch {
			s.months.Set(key, in)
		}
		return in, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*MonthInsights), nil
}

// Overview returns the insights across all months of userID.
func (s *Service) Overview(ctx context.Context, userID string) (*Overview, error) {
	key := overviewKey(userID)
	if ov, ok := s.overviews.Get(key); ok {
		return ov, nil
	}

	v, err := s.share(ctx, key, func(ctx context.Context) (any, error) {
		epoch := s.epoch.Load()
		months, err := s.source.ListMonths(ctx, userID)
		if err != nil {
			return nil, err
		}
		ov := ForUser(userID, months)
		if s.epoch.Load() == epoch {
			s.overviews.Set(key, ov)
		}
		return ov, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Overview), nil
}

// MonthChanged drops the month and the overview of its owner.
func (s *Service) MonthChanged(ctx context.Context, userID, monthID string) error {
	s.epoch.Add(1)
	s.months.Delete(monthKey(monthID))
	s.overviews.Delete(overviewKey(userID))
	s.logger.DebugContext(ctx, "Insights invalidated",
		log.NewFields().WithMonth(userID, monthID).WithOperation(log.OpInvalidate).ToSlice()...)
	return nil
}

// UserChanged drops every per-user entry of userID.
func (s *Service) UserChanged(ctx context.Context, userID string) error {
	s.epoch.Add(1)
	n := s.overviews.DeletePrefix(userPrefix(userID))
	s.logger.DebugContext(ctx, "User insights invalidated",
		log.FieldUserID, userID, log.FieldOperation, log.OpInvalidate, "entries", n)
	return nil
}

// Stats reports cache hits and misses across both caches.
func (s *Service) Stats() (hits, misses int64) {
	mh, mm := s.months.Stats()
	oh, om := s.overviews.Stats()
	return mh + oh, mm + om
}
