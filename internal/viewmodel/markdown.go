package viewmodel

import (
	"fmt"
	"strings"

	"crypto-assistant/internal/envelope"
)

// Markdown renders v as a terminal-friendly document. Empty views render
// as the empty string.
func Markdown(v View) string {
	if v.Empty() {
		return ""
	}
	switch v.Kind {
	case envelope.KindMarkets:
		return marketsMarkdown(v.Markets)
	case envelope.KindToken:
		return tokenBasicMarkdown(*v.Token)
	case envelope.KindTokenFull:
		return tokenMarkdown(*v.TokenFull)
	}
	return ""
}

func marketsMarkdown(cards []MarketCard) string {
	if len(cards) == 0 {
		return "_No markets returned._"
	}
	lines := []string{
		"| Coin | Symbol | Price | 24h |",
		"|---|---|---:|---:|",
	}
	for _, c := range cards {
		arrow := "▼"
		if c.Up {
			arrow = "▲"
		}
		lines = append(lines, fmt.Sprintf("| %s | %s | %s | %s %s |", c.Name, c.Symbol, c.Price, arrow, c.Change))
	}
	return strings.Join(lines, "\n")
}

func tokenBasicMarkdown(t TokenBasicView) string {
	return strings.Join([]string{
		fmt.Sprintf("### %s (%s)", t.Name, t.Symbol),
		"",
		t.Description,
	}, "\n")
}

func tokenMarkdown(t TokenView) string {
	lines := []string{fmt.Sprintf("### %s (%s)", t.Name, t.Symbol)}
	if t.Brief != "" {
		lines = append(lines, "", "> "+t.Brief)
	}
	if t.Description != "" {
		lines = append(lines, "", t.Description)
	}
	lines = append(lines,
		"",
		"| | |",
		"|---|---:|",
		"| Price | "+t.Price+" |",
		"| Market cap | "+t.MarketCap+" |",
		"| FDV | "+t.FullyDilutedValuation+" |",
		"| Circulating supply | "+t.CirculatingSupply+" |",
		"| Total supply | "+t.TotalSupply+" |",
		"| Max supply | "+t.MaxSupply+" |",
	)
	if t.EtherscanURL != "" {
		lines = append(lines, "", fmt.Sprintf("Contract: [%s](%s)", t.ContractAddress, t.EtherscanURL))
	}
	if len(t.Links) > 0 {
		parts := make([]string, 0, len(t.Links))
		for _, l := range t.Links {
			parts = append(parts, fmt.Sprintf("[%s](%s)", l.Label, l.URL))
		}
		lines = append(lines, "", "Links: "+strings.Join(parts, " · "))
	}
	if len(t.Founders) > 0 {
		lines = append(lines, "", "**Founders**: "+strings.Join(t.Founders, ", "))
	}
	if !t.Funding.Empty() {
		lines = append(lines, "", "**Funding** (total raised "+t.Funding.TotalRaised+")")
		for _, r := range t.Funding.Rounds {
			label := r.Label
			if label == "" {
				label = "Round"
			}
			if r.Date != "" {
				label += ", " + r.Date
			}
			lines = append(lines, fmt.Sprintf("- %s: %s (%s investors)", label, r.Amount, r.Investors))
		}
	}
	return strings.Join(lines, "\n")
}
