package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"go.uber.org/zap"

	"crypto-assistant/internal/assistant"
	"crypto-assistant/internal/backend"
	"crypto-assistant/internal/market"
	"crypto-assistant/internal/narrator"
	"crypto-assistant/internal/viewmodel"
)

type AskRequest struct {
	Query string `json:"query"`
}

type AskResponse struct {
	OK    bool           `json:"ok"`
	Kind  string         `json:"kind"`
	Empty bool           `json:"empty"`
	View  viewmodel.View `json:"view"`
}

// Deps are the services the routes call. Nil services answer 500.
type Deps struct {
	Backend        assistant.Backend
	Markets        *market.Service
	MarketDefaults market.Query
	Narrator       *narrator.Agent
	Limiter        *TokenBucket
	Logger         *zap.Logger
}

func RegisterRoutes(h *server.Hertz, d Deps) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h.GET("/healthz", func(_ context.Context, c *app.RequestContext) {
		c.JSON(200, map[string]bool{"ok": true})
	})

	h.POST("/api/v1/assistant/ask", func(ctx context.Context, c *app.RequestContext) {
		if d.Backend == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "backend not configured",
			})
			return
		}
		if !d.Limiter.Allow() {
			rejectRateLimited(c, d.Limiter)
			return
		}

		var req AskRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": "invalid json body",
			})
			return
		}

		// one router per request: HTTP callers share no snapshot
		opts := []assistant.RouterOption{assistant.WithLogger(logger)}
		if d.Narrator != nil {
			opts = append(opts, assistant.WithNarrator(d.Narrator))
		}
		view, err := assistant.NewRouter(d.Backend, opts...).Ask(ctx, req.Query)
		if errors.Is(err, assistant.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadGateway, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, AskResponse{
			OK:    true,
			Kind:  string(view.Kind),
			Empty: view.Empty(),
			View:  view,
		})
	})

	h.GET("/api/v1/markets", func(ctx context.Context, c *app.RequestContext) {
		if d.Markets == nil {
			c.JSON(http.StatusInternalServerError, map[string]any{
				"ok":    false,
				"error": "market service not configured",
			})
			return
		}
		q, err := parseMarketQuery(string(c.Query("per_page")), string(c.Query("sparkline")), d.MarketDefaults)
		if err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		res, err := d.Markets.GetMarkets(ctx, q)
		if err != nil {
			logger.Warn("markets fetch failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, map[string]any{
				"ok":    false,
				"error": backend.Message(err, backend.MsgMarketsFailed),
			})
			return
		}
		c.JSON(http.StatusOK, map[string]any{
			"ok":         true,
			"stale":      res.Stale,
			"source":     res.Source,
			"fetched_at": res.FetchedAt,
			"warnings":   res.Warnings,
			"coins":      viewmodel.MarketCards(res.Coins),
		})
	})

	h.GET("/api/v1/narrator/ping", func(ctx context.Context, c *app.RequestContext) {
		res, err := d.Narrator.Ping(ctx)
		if err != nil {
			logger.Warn("narrator ping failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, map[string]any{
				"ok":    false,
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, res)
	})
}

func rejectRateLimited(c *app.RequestContext, limiter *TokenBucket) {
	if wait := limiter.RetryAfter(); wait > 0 {
		c.Header("Retry-After", strconv.Itoa(int(wait.Seconds())))
	}
	c.JSON(http.StatusTooManyRequests, map[string]any{
		"ok":    false,
		"error": "rate limited",
	})
}

func parseMarketQuery(perPage, sparkline string, defaults market.Query) (market.Query, error) {
	q := defaults
	if perPage = strings.TrimSpace(perPage); perPage != "" {
		v, err := strconv.Atoi(perPage)
		if err != nil || v <= 0 {
			return market.Query{}, fmt.Errorf("invalid per_page")
		}
		q.PerPage = v
	}
	if sparkline = strings.TrimSpace(sparkline); sparkline != "" {
		v, err := strconv.ParseBool(sparkline)
		if err != nil {
			return market.Query{}, fmt.Errorf("invalid sparkline")
		}
		q.Sparkline = v
	}
	return q.Normalize(), nil
}
