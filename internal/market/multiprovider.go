package market

import (
	"context"
	"fmt"

	"crypto-assistant/internal/envelope"
)

// MultiProvider asks each provider in order and returns the first non-empty
// list. An empty but successful answer is only used when nobody has more.
type MultiProvider struct {
	providers []MarketProvider
}

func NewMultiProvider(providers ...MarketProvider) *MultiProvider {
	return &MultiProvider{providers: providers}
}

func (m *MultiProvider) GetMarkets(ctx context.Context, q Query) ([]envelope.MarketCoin, string, error) {
	if len(m.providers) == 0 {
		return nil, "", fmt.Errorf("no market providers configured")
	}
	var (
		lastErr     error
		emptySource string
		sawEmpty    bool
	)
	for _, p := range m.providers {
		coins, source, err := p.GetMarkets(ctx, q)
		if err == nil && len(coins) > 0 {
			return coins, source, nil
		}
		if err == nil {
			if !sawEmpty {
				sawEmpty, emptySource = true, source
			}
			continue
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if sawEmpty {
		return []envelope.MarketCoin{}, emptySource, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all providers failed")
	}
	return nil, "", lastErr
}
