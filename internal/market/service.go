package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"crypto-assistant/internal/envelope"
	"crypto-assistant/internal/observability"
)

const SourceCache = "cache"

type cacheEntry struct {
	coins     []envelope.MarketCoin
	fetchedAt time.Time
}

// Service throttles market list fetches. Requests arriving within
// minInterval of the last fetch for the same query are served from memory,
// and a failed fetch falls back to the last good list.
type Service struct {
	provider    MarketProvider
	minInterval time.Duration
	log         *zap.Logger
	now         func() time.Time

	mu    sync.Mutex
	cache map[Query]cacheEntry
}

func NewService(provider MarketProvider, minInterval time.Duration, logger *zap.Logger) *Service {
	if minInterval < 0 {
		minInterval = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider:    provider,
		minInterval: minInterval,
		log:         logger,
		now:         time.Now,
		cache:       make(map[Query]cacheEntry),
	}
}

func (s *Service) GetMarkets(ctx context.Context, q Query) (Result, error) {
	if s.provider == nil {
		return Result{}, fmt.Errorf("market provider not configured")
	}
	q = q.Normalize()

	s.mu.Lock()
	entry, ok := s.cache[q]
	if ok && s.minInterval > 0 && s.now().Sub(entry.fetchedAt) < s.minInterval {
		s.mu.Unlock()
		observability.RecordMarketFetch("throttled")
		return Result{
			Coins:     entry.coins,
			Stale:     true,
			Source:    SourceCache,
			FetchedAt: entry.fetchedAt.Unix(),
			Warnings:  []string{"requests too frequent, serving cached markets"},
		}, nil
	}
	s.mu.Unlock()

	coins, source, err := s.provider.GetMarkets(ctx, q)
	if err == nil {
		fetched := s.now()
		s.mu.Lock()
		s.cache[q] = cacheEntry{coins: coins, fetchedAt: fetched}
		s.mu.Unlock()
		observability.RecordMarketFetch("ok")
		return Result{Coins: coins, Source: source, FetchedAt: fetched.Unix()}, nil
	}

	s.mu.Lock()
	entry, ok = s.cache[q]
	s.mu.Unlock()
	if ok {
		s.log.Warn("market fetch failed, serving cache", zap.Error(err))
		observability.RecordMarketFetch("fallback")
		return Result{
			Coins:     entry.coins,
			Stale:     true,
			Source:    SourceCache,
			FetchedAt: entry.fetchedAt.Unix(),
			Warnings:  []string{fmt.Sprintf("market fetch failed, serving cache: %v", err)},
		}, nil
	}

	observability.RecordMarketFetch("error")
	return Result{}, err
}
