package narrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-assistant/internal/format"
	"crypto-assistant/internal/viewmodel"
)

func TestNew_DisabledByConfig(t *testing.T) {
	a := New(Config{Enabled: false}, nil)
	assert.False(t, a.Enabled())

	res, err := a.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fallback", res["mode"])
	assert.Equal(t, "disabled by config", res["reason"])
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_MODEL", "")
	a := New(Config{Enabled: true}, nil)
	assert.False(t, a.Enabled())

	res, err := a.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "api_key or model missing", res["reason"])
}

func TestNilAgentFallsBack(t *testing.T) {
	var a *Agent
	got, err := a.Brief(context.Background(), viewmodel.TokenView{Name: "Uniswap", Symbol: "UNI", Price: "$5.12"})
	require.NoError(t, err)
	assert.Equal(t, "Uniswap (UNI) trades at $5.12.", got)

	res, err := a.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "not configured", res["reason"])
}

func TestFallbackBrief(t *testing.T) {
	assert.Equal(t, "Uniswap (UNI) trades at $5.12 with a market cap of $3,850,000,000.",
		FallbackBrief(viewmodel.TokenView{Name: "Uniswap", Symbol: "UNI", Price: "$5.12", MarketCap: "$3,850,000,000"}))
	assert.Equal(t, "Uniswap (UNI): price unavailable.",
		FallbackBrief(viewmodel.TokenView{Name: "Uniswap", Symbol: "UNI", Price: format.Unavailable}))
	assert.Equal(t, "BTC trades at $1.",
		FallbackBrief(viewmodel.TokenView{Symbol: "BTC", Price: "$1", MarketCap: format.Unavailable}))
	assert.Equal(t, "", FallbackBrief(viewmodel.TokenView{}))
}

func TestParseBrief(t *testing.T) {
	got, err := parseBrief(`{"one_liner":"Uniswap is a DEX token."}`)
	require.NoError(t, err)
	assert.Equal(t, "Uniswap is a DEX token.", got)

	got, err = parseBrief("Sure! ```json\n{\"one_liner\": \"  Spaced\\n out  \"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Spaced out", got)

	_, err = parseBrief("no json here")
	assert.Error(t, err)

	_, err = parseBrief(`{"one_liner":"   "}`)
	assert.Error(t, err)
}

func TestInputOfSkipsUnknownFunding(t *testing.T) {
	in := inputOf(viewmodel.TokenView{Name: "X", Funding: viewmodel.FundingView{TotalRaised: format.Unavailable}})
	assert.Empty(t, in.TotalRaised)

	in = inputOf(viewmodel.TokenView{Name: "X", Funding: viewmodel.FundingView{TotalRaised: "$10"}})
	assert.Equal(t, "$10", in.TotalRaised)
}
