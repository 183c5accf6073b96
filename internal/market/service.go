package market

import (
	"context"
	"strings"
	"sync"
	"time"

	"cryptoden/internal/logger"
)

// MetricsSource supplies per-symbol derivatives metrics.
type MetricsSource interface {
	FundingRate(ctx context.Context, symbol string) (float64, error)
	LongShortRatio(ctx context.Context, symbol string) (long, short float64, err error)
	OpenInterestChange(ctx context.Context, symbol string) (change1h, change24h float64, err error)
	LiquidationVolumes(ctx context.Context, symbol string) (longUSD, shortUSD float64, err error)
}

// NewsSource supplies the news and event picture. Implementations live
// outside the core; the orchestrator only consumes snapshots.
type NewsSource interface {
	Sentiment(ctx context.Context) (Sentiment, error)
	MarketState(ctx context.Context) (MarketState, error)
}

// MarketState is the news-derived slice of a snapshot.
type MarketState struct {
	Mode               MarketMode
	AlertLevel         AlertLevel
	ImportantEventSoon bool
	EventName          string
	CriticalNewsCount  int
}

// SnapshotService aggregates the feeds into per-symbol snapshots and caches
// them between refresh cycles. A feed error degrades the snapshot rather
// than failing the refresh.
type SnapshotService struct {
	metrics   MetricsSource
	news      NewsSource
	fearGreed *FearGreedService

	refreshEvery int

	mu        sync.RWMutex
	cache     map[string]Snapshot
	lastCycle map[string]int
}

func NewSnapshotService(metrics MetricsSource, news NewsSource, fearGreed *FearGreedService, refreshEvery int) *SnapshotService {
	if refreshEvery <= 0 {
		refreshEvery = 5
	}
	return &SnapshotService{
		metrics:      metrics,
		news:         news,
		fearGreed:    fearGreed,
		refreshEvery: refreshEvery,
		cache:        make(map[string]Snapshot),
		lastCycle:    make(map[string]int),
	}
}

// Get returns the cached snapshot for symbol, normalized.
func (s *SnapshotService) Get(symbol string) (Snapshot, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	s.mu.RLock()
	snap, ok := s.cache[symbol]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return snap.Normalize(), true
}

// Refresh rebuilds the snapshot for symbol when the refresh cadence is due
// at this cycle, or when nothing is cached yet. It returns the current
// snapshot either way.
func (s *SnapshotService) Refresh(ctx context.Context, symbol string, cycle int) Snapshot {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	s.mu.RLock()
	cached, ok := s.cache[symbol]
	last, seen := s.lastCycle[symbol]
	s.mu.RUnlock()
	if ok && seen && cycle-last < s.refreshEvery {
		return cached.Normalize()
	}

	snap := s.build(ctx, symbol, cached)
	s.mu.Lock()
	s.cache[symbol] = snap
	s.lastCycle[symbol] = cycle
	s.mu.Unlock()
	return snap.Normalize()
}

func (s *SnapshotService) build(ctx context.Context, symbol string, prior Snapshot) Snapshot {
	snap := prior
	snap.Symbol = symbol
	snap.CapturedAt = time.Now()

	if s.fearGreed != nil {
		s.fearGreed.RefreshIfStale(ctx)
		if v, ok := s.fearGreed.Value(); ok {
			snap.FearGreed = v
			snap.FearGreedSet = true
		}
	}
	if s.metrics != nil {
		if funding, err := s.metrics.FundingRate(ctx, symbol); err != nil {
			logger.Warnf("%s funding rate unavailable: %v", symbol, err)
		} else {
			snap.FundingRate = funding
		}
		if long, short, err := s.metrics.LongShortRatio(ctx, symbol); err != nil {
			logger.Warnf("%s long/short ratio unavailable: %v", symbol, err)
		} else {
			snap.LongRatio = long
			snap.ShortRatio = short
		}
		if h1, h24, err := s.metrics.OpenInterestChange(ctx, symbol); err != nil {
			logger.Warnf("%s open interest unavailable: %v", symbol, err)
		} else {
			snap.OIChange1h = h1
			snap.OIChange24h = h24
		}
		if longUSD, shortUSD, err := s.metrics.LiquidationVolumes(ctx, symbol); err != nil {
			logger.Debugf("%s liquidation volumes unavailable: %v", symbol, err)
		} else {
			snap.LiquidationsLongUSD = longUSD
			snap.LiquidationsShortUSD = shortUSD
		}
	}
	if s.news != nil {
		if sentiment, err := s.news.Sentiment(ctx); err != nil {
			logger.Warnf("news sentiment unavailable: %v", err)
		} else {
			snap.NewsSentiment = sentiment
		}
		if state, err := s.news.MarketState(ctx); err != nil {
			logger.Warnf("market state unavailable: %v", err)
		} else {
			snap.MarketMode = state.Mode
			snap.AlertLevel = state.AlertLevel
			snap.ImportantEventSoon = state.ImportantEventSoon
			snap.EventName = state.EventName
			snap.CriticalNewsCount = state.CriticalNewsCount
		}
	}
	return snap
}
