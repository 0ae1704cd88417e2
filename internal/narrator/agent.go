// Package narrator writes a one-line brief for a token view, using an
// OpenAI-compatible chat model when configured and a template otherwise.
package narrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"crypto-assistant/internal/format"
	"crypto-assistant/internal/observability"
	"crypto-assistant/internal/viewmodel"
)

const maxBriefRunes = 200

type Config struct {
	Enabled    bool   `yaml:"enabled"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	ByAzure    bool   `yaml:"by_azure"`
	APIVersion string `yaml:"api_version"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

type Agent struct {
	enabled        bool
	model          *openai.ChatModel
	modelName      string
	disabledReason string
	log            *zap.Logger
}

// Input is what the model sees of a token view.
type Input struct {
	Name              string   `json:"name"`
	Symbol            string   `json:"symbol"`
	Price             string   `json:"price"`
	MarketCap         string   `json:"market_cap"`
	FDV               string   `json:"fully_diluted_valuation"`
	CirculatingSupply string   `json:"circulating_supply"`
	MaxSupply         string   `json:"max_supply"`
	Founders          []string `json:"founders,omitempty"`
	TotalRaised       string   `json:"total_raised,omitempty"`
}

type brief struct {
	OneLiner string `json:"one_liner"`
}

func New(cfg Config, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return &Agent{enabled: false, disabledReason: "disabled by config", log: logger}
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv("OPENAI_MODEL")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if cfg.APIKey == "" || cfg.Model == "" {
		logger.Info("narrator disabled: missing api key or model")
		return &Agent{enabled: false, disabledReason: "api_key or model missing", log: logger}
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	model, err := openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		ByAzure:    cfg.ByAzure,
		APIVersion: cfg.APIVersion,
		Timeout:    timeout,
	})
	if err != nil {
		logger.Warn("narrator init failed", zap.Error(err))
		return &Agent{enabled: false, disabledReason: "init failed", log: logger}
	}

	return &Agent{enabled: true, model: model, modelName: cfg.Model, log: logger}
}

func (a *Agent) Enabled() bool {
	return a != nil && a.enabled && a.model != nil
}

// Brief never fails from the caller's point of view: on any model problem
// it logs and returns the template brief.
func (a *Agent) Brief(ctx context.Context, tv viewmodel.TokenView) (string, error) {
	if !a.Enabled() {
		observability.RecordNarratorCall("fallback", "ok")
		return FallbackBrief(tv), nil
	}

	payload, _ := json.Marshal(inputOf(tv))

	system := `You are a crypto market narrator. Output ONLY valid JSON: {"one_liner": "..."}.
One sentence, at most 30 words, factual, based only on the input. No advice, no predictions.
Values of "—" are unknown; do not mention them.`

	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(fmt.Sprintf("Input: %s", string(payload))),
	}

	resp, err := a.model.Generate(ctx, messages)
	if err != nil {
		a.logLLMError(err)
		observability.RecordNarratorCall("llm", "error")
		return FallbackBrief(tv), nil
	}
	text, err := parseBrief(strings.TrimSpace(resp.Content))
	if err != nil {
		a.log.Debug("narrator returned unusable output", zap.Error(err))
		observability.RecordNarratorCall("llm", "invalid")
		return FallbackBrief(tv), nil
	}
	observability.RecordNarratorCall("llm", "ok")
	return text, nil
}

func (a *Agent) Ping(ctx context.Context) (map[string]any, error) {
	if !a.Enabled() {
		reason := "not configured"
		if a != nil && a.disabledReason != "" {
			reason = a.disabledReason
		}
		return map[string]any{"ok": true, "mode": "fallback", "reason": reason}, nil
	}
	start := time.Now()
	messages := []*schema.Message{
		schema.SystemMessage("Return ONLY valid JSON: {\"ok\":true}."),
		schema.UserMessage("ping"),
	}
	_, err := a.model.Generate(ctx, messages)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		a.logLLMError(err)
		return map[string]any{"ok": true, "mode": "fallback", "reason": "llm error"}, err
	}
	return map[string]any{"ok": true, "mode": "llm", "model": a.modelName, "latency_ms": latency}, nil
}

// FallbackBrief is the template brief used without a model.
func FallbackBrief(tv viewmodel.TokenView) string {
	name := strings.TrimSpace(tv.Name)
	if name == "" {
		name = tv.Symbol
	}
	if name == "" {
		return ""
	}
	if tv.Symbol != "" && tv.Symbol != name {
		name = fmt.Sprintf("%s (%s)", name, tv.Symbol)
	}
	if !known(tv.Price) {
		return name + ": price unavailable."
	}
	if known(tv.MarketCap) {
		return fmt.Sprintf("%s trades at %s with a market cap of %s.", name, tv.Price, tv.MarketCap)
	}
	return fmt.Sprintf("%s trades at %s.", name, tv.Price)
}

func known(v string) bool {
	return v != "" && v != format.Unavailable
}

func inputOf(tv viewmodel.TokenView) Input {
	in := Input{
		Name:              tv.Name,
		Symbol:            tv.Symbol,
		Price:             tv.Price,
		MarketCap:         tv.MarketCap,
		FDV:               tv.FullyDilutedValuation,
		CirculatingSupply: tv.CirculatingSupply,
		MaxSupply:         tv.MaxSupply,
		Founders:          tv.Founders,
	}
	if known(tv.Funding.TotalRaised) {
		in.TotalRaised = tv.Funding.TotalRaised
	}
	return in
}

func parseBrief(text string) (string, error) {
	var out brief
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		jsonStr := extractFirstJSONObject(text)
		if jsonStr == "" {
			return "", fmt.Errorf("no json object found")
		}
		if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
			return "", fmt.Errorf("parse brief: %w", err)
		}
	}
	return sanitizeBrief(out.OneLiner)
}

func sanitizeBrief(s string) (string, error) {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "", fmt.Errorf("empty brief")
	}
	if utf8.RuneCountInString(s) > maxBriefRunes {
		s = string([]rune(s)[:maxBriefRunes]) + "…"
	}
	return s, nil
}

func extractFirstJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func (a *Agent) logLLMError(err error) {
	apiErr := &openai.APIError{}
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		a.log.Warn("narrator api error", zap.Int("status", apiErr.HTTPStatusCode), zap.String("message", msg))
		return
	}
	a.log.Warn("narrator error", zap.Error(err))
}
