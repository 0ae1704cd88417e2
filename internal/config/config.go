package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Backend   BackendConfig   `yaml:"backend"`
	Markets   MarketsConfig   `yaml:"markets"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Speech    SpeechConfig    `yaml:"speech"`
	Narrator  NarratorConfig  `yaml:"narrator"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type BackendConfig struct {
	BaseURL    string   `yaml:"base_url"`
	MirrorURLs []string `yaml:"mirror_urls"`
	TimeoutMs  int      `yaml:"timeout_ms"`
	MaxRetries int      `yaml:"max_retries"`
}

// URLs returns the primary base URL followed by the mirrors, without
// blanks or duplicates.
func (b BackendConfig) URLs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range append([]string{b.BaseURL}, b.MirrorURLs...) {
		u = strings.TrimRight(strings.TrimSpace(u), "/")
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

type MarketsConfig struct {
	PerPage              int  `yaml:"per_page"`
	Sparkline            bool `yaml:"sparkline"`
	MinRequestIntervalMs int  `yaml:"min_request_interval_ms"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

type SpeechConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Endpoint           string `yaml:"endpoint"`
	Lang               string `yaml:"lang"`
	HandshakeTimeoutMs int    `yaml:"handshake_timeout_ms"`
	StopGraceMs        int    `yaml:"stop_grace_ms"`
}

type NarratorConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	ByAzure    bool   `yaml:"by_azure"`
	APIVersion string `yaml:"api_version"`
	TimeoutMs  int    `yaml:"timeout_ms"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info"},
		Backend: BackendConfig{
			BaseURL:    "http://localhost:8000",
			TimeoutMs:  15000,
			MaxRetries: 2,
		},
		Markets: MarketsConfig{
			PerPage:              12,
			Sparkline:            true,
			MinRequestIntervalMs: 1000,
		},
		RateLimit: RateLimitConfig{PerMinute: 120, Burst: 20},
		Speech: SpeechConfig{
			Enabled:            false,
			Lang:               "en-US",
			HandshakeTimeoutMs: 10000,
			StopGraceMs:        3000,
		},
		Narrator: NarratorConfig{
			Enabled:   false,
			Model:     "gpt-4.1-mini",
			TimeoutMs: 10000,
		},
		Metrics: MetricsConfig{Addr: ":9090"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	} else if v := os.Getenv("VITE_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("SPEECH_WS_URL"); v != "" {
		cfg.Speech.Endpoint = v
		cfg.Speech.Enabled = true
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	return nil
}

func (c *Config) validate() error {
	if len(c.Backend.URLs()) == 0 {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Markets.PerPage <= 0 {
		return fmt.Errorf("markets.per_page must be positive, got %d", c.Markets.PerPage)
	}
	if c.Speech.Enabled && c.Speech.Endpoint == "" {
		return fmt.Errorf("speech.endpoint is required when speech is enabled")
	}
	return nil
}
