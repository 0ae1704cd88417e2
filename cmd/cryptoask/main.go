package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"crypto-assistant/internal/backend"
	"crypto-assistant/internal/config"
	"crypto-assistant/internal/market"
	"crypto-assistant/internal/narrator"
	"crypto-assistant/internal/observability"
)

var (
	// Flags
	configPath string
	backendURL string
	plain      bool
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cryptoask",
	Short: "Ask about crypto markets and tokens from the terminal",
	Long: `cryptoask sends questions to the crypto assistant backend and renders
the answers: market lists, token cards and full token profiles.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if backendURL != "" {
			cfg.Backend.BaseURL = backendURL
		}

		level := "warn"
		if verbose {
			level = "debug"
		}
		logger, err = observability.NewLogger(level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (defaults + env when empty)")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "Backend base URL (overrides config and BACKEND_URL)")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "Print raw markdown instead of styled output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(marketsCmd)
	rootCmd.AddCommand(listenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newBackend(baseURL string) *backend.Client {
	return backend.New(baseURL,
		backend.WithTimeout(time.Duration(cfg.Backend.TimeoutMs)*time.Millisecond),
		backend.WithMaxRetries(cfg.Backend.MaxRetries),
	)
}

func newMarketProvider() market.MarketProvider {
	urls := cfg.Backend.URLs()
	providers := make([]market.MarketProvider, 0, len(urls))
	for _, u := range urls {
		providers = append(providers, newBackend(u))
	}
	return market.NewMultiProvider(providers...)
}

func newNarrator() *narrator.Agent {
	return narrator.New(narrator.Config{
		Enabled:    cfg.Narrator.Enabled,
		Model:      cfg.Narrator.Model,
		APIKey:     cfg.Narrator.APIKey,
		BaseURL:    cfg.Narrator.BaseURL,
		ByAzure:    cfg.Narrator.ByAzure,
		APIVersion: cfg.Narrator.APIVersion,
		TimeoutMs:  cfg.Narrator.TimeoutMs,
	}, logger.Named("narrator"))
}
