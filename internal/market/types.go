package market

import (
	"context"

	"crypto-assistant/internal/envelope"
)

const (
	DefaultPerPage = 12
	MaxPerPage     = 250
)

// Query selects a market list page.
type Query struct {
	PerPage   int
	Sparkline bool
}

// Normalize clamps PerPage into [1, MaxPerPage], using DefaultPerPage when
// unset.
func (q Query) Normalize() Query {
	if q.PerPage <= 0 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	return q
}

type MarketProvider interface {
	GetMarkets(ctx context.Context, q Query) ([]envelope.MarketCoin, string, error)
}

// Result is a market list plus where it came from.
type Result struct {
	Coins     []envelope.MarketCoin
	Stale     bool
	Source    string
	FetchedAt int64
	Warnings  []string
}
