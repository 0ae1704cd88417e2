package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crypto-assistant/internal/backend"
	"crypto-assistant/internal/envelope"
	"crypto-assistant/internal/market"
	"crypto-assistant/internal/narrator"
)

type stubBackend struct {
	body string
	err  error
}

func (s stubBackend) Ask(context.Context, string) (envelope.Envelope, error) {
	if s.err != nil {
		return envelope.Envelope{}, s.err
	}
	return envelope.Decode([]byte(s.body))
}

type stubMarkets struct {
	coins []envelope.MarketCoin
	err   error
	last  market.Query
}

func (s *stubMarkets) GetMarkets(_ context.Context, q market.Query) ([]envelope.MarketCoin, string, error) {
	s.last = q
	return s.coins, "primary", s.err
}

func newServer(d Deps) *server.Hertz {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	h := server.Default(server.WithHostPorts("127.0.0.1:0"))
	RegisterRoutes(h, d)
	return h
}

func post(h *server.Hertz, path, body string) *ut.ResponseRecorder {
	return ut.PerformRequest(h.Engine, http.MethodPost, path,
		&ut.Body{Body: bytes.NewBufferString(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
}

func decodeBody(t *testing.T, w *ut.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Result().Body(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	h := newServer(Deps{})
	w := ut.PerformRequest(h.Engine, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Result().StatusCode())
	assert.JSONEq(t, `{"ok":true}`, string(w.Result().Body()))
}

func TestAsk_Markets(t *testing.T) {
	h := newServer(Deps{Backend: stubBackend{body: `{"kind":"markets","data":[{"id":"bitcoin","name":"Bitcoin","symbol":"btc","current_price":64000.5,"price_change_percentage_24h":2.345}]}`}})

	w := post(h, "/api/v1/assistant/ask", `{"query":"price of bitcoin"}`)
	require.Equal(t, http.StatusOK, w.Result().StatusCode())

	body := decodeBody(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "markets", body["kind"])
	assert.Equal(t, false, body["empty"])
	view := body["view"].(map[string]any)
	cards := view["markets"].([]any)
	require.Len(t, cards, 1)
	card := cards[0].(map[string]any)
	assert.Equal(t, "$64,000.5", card["price"])
	assert.Equal(t, "+2.35%", card["change"])
	assert.Equal(t, "BTC", card["symbol"])
}

func TestAsk_TokenFullWithFallbackBrief(t *testing.T) {
	h := newServer(Deps{
		Backend:  stubBackend{body: `{"kind":"token_full","data":{"summary":{"name":"Uniswap","symbol":"uni","price":5.1234}}}`},
		Narrator: narrator.New(narrator.Config{}, nil),
	})

	w := post(h, "/api/v1/assistant/ask", `{"query":"uniswap"}`)
	require.Equal(t, http.StatusOK, w.Result().StatusCode())
	token := decodeBody(t, w)["view"].(map[string]any)["token_full"].(map[string]any)
	assert.Equal(t, "$5.1234", token["price"])
	assert.Equal(t, "Uniswap (UNI) trades at $5.1234.", token["brief"])
	assert.Equal(t, []any{}, token["founders"])
}

func TestAsk_UnknownKindIsEmpty(t *testing.T) {
	h := newServer(Deps{Backend: stubBackend{body: `{"kind":"bogus"}`}})
	w := post(h, "/api/v1/assistant/ask", `{"query":"hello"}`)
	require.Equal(t, http.StatusOK, w.Result().StatusCode())
	body := decodeBody(t, w)
	assert.Equal(t, true, body["empty"])
	assert.Equal(t, "", body["kind"])
}

func TestAsk_EmptyQuery(t *testing.T) {
	h := newServer(Deps{Backend: stubBackend{err: errors.New("must not be called")}})
	w := post(h, "/api/v1/assistant/ask", `{"query":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode())

	w = post(h, "/api/v1/assistant/ask", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode())
}

func TestAsk_UpstreamAndTransportErrors(t *testing.T) {
	h := newServer(Deps{Backend: stubBackend{err: &backend.UpstreamError{Op: "ask", Status: 404, Detail: "Token not found"}}})
	w := post(h, "/api/v1/assistant/ask", `{"query":"price of notacoin"}`)
	assert.Equal(t, http.StatusBadGateway, w.Result().StatusCode())
	assert.Equal(t, "Token not found", decodeBody(t, w)["error"])

	h = newServer(Deps{Backend: stubBackend{err: &backend.TransportError{Op: "request ask", Err: errors.New("dial tcp: refused")}}})
	w = post(h, "/api/v1/assistant/ask", `{"query":"x"}`)
	assert.Equal(t, http.StatusBadGateway, w.Result().StatusCode())
	assert.Equal(t, backend.MsgRequestFailed, decodeBody(t, w)["error"])
}

func TestAsk_RateLimited(t *testing.T) {
	h := newServer(Deps{
		Backend: stubBackend{body: `{"kind":"markets","data":[]}`},
		Limiter: NewTokenBucket(1, 1),
	})
	assert.Equal(t, http.StatusOK, post(h, "/api/v1/assistant/ask", `{"query":"a"}`).Result().StatusCode())

	w := post(h, "/api/v1/assistant/ask", `{"query":"b"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Result().StatusCode())
	assert.NotEmpty(t, string(w.Result().Header.Peek("Retry-After")))
}

func TestAsk_NoBackend(t *testing.T) {
	h := newServer(Deps{})
	assert.Equal(t, http.StatusInternalServerError, post(h, "/api/v1/assistant/ask", `{"query":"a"}`).Result().StatusCode())
}

func TestMarkets(t *testing.T) {
	p := &stubMarkets{coins: []envelope.MarketCoin{{ID: "bitcoin", Symbol: "btc"}}}
	h := newServer(Deps{
		Markets:        market.NewService(p, time.Minute, nil),
		MarketDefaults: market.Query{PerPage: 12, Sparkline: true},
	})

	w := ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/markets", nil)
	require.Equal(t, http.StatusOK, w.Result().StatusCode())
	assert.Equal(t, market.Query{PerPage: 12, Sparkline: true}, p.last)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["stale"])
	assert.Equal(t, "primary", body["source"])
	coins := body["coins"].([]any)
	require.Len(t, coins, 1)
	assert.Equal(t, "BTC", coins[0].(map[string]any)["symbol"])
	assert.Equal(t, "—", coins[0].(map[string]any)["price"])

	w = ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/markets?per_page=12&sparkline=true", nil)
	require.Equal(t, http.StatusOK, w.Result().StatusCode())
	assert.Equal(t, true, decodeBody(t, w)["stale"])

	w = ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/markets?per_page=3&sparkline=false", nil)
	require.Equal(t, http.StatusOK, w.Result().StatusCode())
	assert.Equal(t, market.Query{PerPage: 3}, p.last)
}

func TestMarkets_BadQueryAndFailure(t *testing.T) {
	p := &stubMarkets{err: &backend.UpstreamError{Op: "markets", Status: 503}}
	h := newServer(Deps{Markets: market.NewService(p, 0, nil), MarketDefaults: market.Query{PerPage: 12}})

	w := ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/markets?per_page=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode())
	w = ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/markets?sparkline=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Result().StatusCode())

	w = ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/markets", nil)
	assert.Equal(t, http.StatusBadGateway, w.Result().StatusCode())
	assert.Equal(t, backend.MsgMarketsFailed, decodeBody(t, w)["error"])
}

func TestNarratorPing(t *testing.T) {
	h := newServer(Deps{Narrator: narrator.New(narrator.Config{Enabled: false}, nil)})
	w := ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/narrator/ping", nil)
	require.Equal(t, http.StatusOK, w.Result().StatusCode())
	assert.Equal(t, "fallback", decodeBody(t, w)["mode"])
}

func TestTokenBucket(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := NewTokenBucket(60, 2)
	b.now = func() time.Time { return now }
	b.lastRefill = now

	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())
	assert.Equal(t, time.Second, b.RetryAfter())

	now = now.Add(time.Second)
	assert.True(t, b.Allow())
	assert.False(t, b.Allow())

	var disabled *TokenBucket
	assert.True(t, disabled.Allow())
	assert.True(t, NewTokenBucket(0, 0).Allow())
	assert.Zero(t, NewTokenBucket(0, 0).RetryAfter())
}
