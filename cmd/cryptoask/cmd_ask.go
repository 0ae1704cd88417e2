package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"crypto-assistant/internal/assistant"
	"crypto-assistant/internal/backend"
	"crypto-assistant/internal/envelope"
	"crypto-assistant/internal/market"
	"crypto-assistant/internal/viewmodel"
)

var askCmd = &cobra.Command{
	Use:   "ask <query...>",
	Short: "Ask one question",
	Example: `  cryptoask ask price of bitcoin
  cryptoask ask tell me about uniswap`,
	RunE: runAsk,
}

var (
	perPage   int
	sparkline bool
)

var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "Show the top of the market list",
	RunE:  runMarkets,
}

func init() {
	marketsCmd.Flags().IntVar(&perPage, "per-page", 0, "Number of coins (default from config)")
	marketsCmd.Flags().BoolVar(&sparkline, "sparkline", true, "Request 7 day sparklines")
}

func runAsk(cmd *cobra.Command, args []string) error {
	router := assistant.NewRouter(newBackend(cfg.Backend.BaseURL),
		assistant.WithLogger(logger),
		assistant.WithNarrator(newNarrator()),
	)
	view, err := router.Ask(cmdContext(cmd), strings.Join(args, " "))
	if errors.Is(err, assistant.ErrEmptyQuery) {
		return fmt.Errorf("nothing to ask: pass a question, e.g. cryptoask ask price of bitcoin")
	}
	if err != nil {
		return err
	}
	if view.Empty() {
		logger.Debug("answer has nothing to render", zap.String("kind", string(view.Kind)))
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), renderMarkdown(viewmodel.Markdown(view)))
	return nil
}

func runMarkets(cmd *cobra.Command, args []string) error {
	q := market.Query{PerPage: cfg.Markets.PerPage, Sparkline: cfg.Markets.Sparkline}
	if perPage > 0 {
		q.PerPage = perPage
	}
	if cmd.Flags().Changed("sparkline") {
		q.Sparkline = sparkline
	}

	coins, source, err := newMarketProvider().GetMarkets(cmdContext(cmd), q.Normalize())
	if err != nil {
		logger.Debug("markets fetch failed", zap.Error(err))
		return errors.New(backend.Message(err, backend.MsgMarketsFailed))
	}
	logger.Debug("markets fetched", zap.String("source", source), zap.Int("coins", len(coins)))

	view := viewmodel.View{Kind: envelope.KindMarkets, Markets: viewmodel.MarketCards(coins)}
	fmt.Fprint(cmd.OutOrStdout(), renderMarkdown(viewmodel.Markdown(view)))
	return nil
}
