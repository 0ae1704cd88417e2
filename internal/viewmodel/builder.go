// Package viewmodel turns decoded envelopes into render-ready views.
package viewmodel

import (
	"strconv"
	"strings"
	"unicode"

	"crypto-assistant/internal/envelope"
	"crypto-assistant/internal/extract"
	"crypto-assistant/internal/format"
)

const (
	etherscanTokenURL = "https://etherscan.io/token/"

	maxDescription      = 320
	maxBasicDescription = 220
	ellipsis            = "…"
	noDescription       = "No description available."
)

// FundamentalsSources are the source keys searched, in order, for the
// profile/fundamentals provider payload.
var FundamentalsSources = []string{"messari", "fundamentals"}

// Render builds the view for env. Unknown kinds produce an empty view.
func Render(env envelope.Envelope) View {
	v := View{Kind: env.Kind}
	switch env.Kind {
	case envelope.KindMarkets:
		v.Markets = MarketCards(env.Markets)
	case envelope.KindToken:
		if env.Token != nil {
			tb := BuildTokenBasic(*env.Token)
			v.Token = &tb
		}
	case envelope.KindTokenFull:
		if env.TokenFull != nil {
			tv := BuildToken(env.TokenFull)
			v.TokenFull = &tv
		}
	default:
		v.Kind = envelope.KindUnknown
	}
	return v
}

func MarketCards(coins []envelope.MarketCoin) []MarketCard {
	cards := make([]MarketCard, 0, len(coins))
	for _, c := range coins {
		change := 0.0
		if c.PriceChangePercentage24h != nil {
			change = *c.PriceChangePercentage24h
		}
		card := MarketCard{
			ID:     c.ID,
			Name:   c.Name,
			Symbol: strings.ToUpper(c.Symbol),
			Image:  c.Image,
			Price:  format.Number(c.CurrentPrice, format.WithPrefix("$")),
			Change: format.Percent(change),
			Up:     change >= 0,
		}
		if c.Sparkline != nil {
			card.Sparkline = c.Sparkline.Price
		}
		cards = append(cards, card)
	}
	return cards
}

func BuildTokenBasic(tb envelope.TokenBasic) TokenBasicView {
	desc := truncate(tb.Description.Text, maxBasicDescription)
	if desc == "" {
		desc = noDescription
	}
	return TokenBasicView{
		Name:        tb.Name,
		Symbol:      strings.ToUpper(tb.Symbol),
		Image:       tb.Image.Best(),
		Description: desc,
	}
}

// BuildToken composes the summary with founder and funding data pulled from
// the fundamentals provider. A missing or unreadable provider payload only
// empties those two blocks.
func BuildToken(agg *envelope.TokenAggregate) TokenView {
	if agg == nil {
		agg = &envelope.TokenAggregate{}
	}
	s := agg.Summary
	usd := format.WithPrefix("$")

	tv := TokenView{
		Name:                  s.Name,
		Symbol:                strings.ToUpper(s.Symbol),
		Image:                 s.Image.Best(),
		Description:           truncate(s.Description.Text, maxDescription),
		ContractAddress:       strings.TrimSpace(s.ContractAddress),
		Price:                 format.Number(s.Price, usd, format.WithMaxFraction(6)),
		MarketCap:             format.Number(s.MarketCap, usd),
		FullyDilutedValuation: format.Number(s.FullyDilutedValuation, usd),
		CirculatingSupply:     format.Number(s.CirculatingSupply),
		TotalSupply:           format.Number(s.TotalSupply),
		MaxSupply:             format.Number(s.MaxSupply),
		Links:                 BuildLinks(s.Links),
		Founders:              []string{},
		Funding:               FundingView{TotalRaised: format.Unavailable, Rounds: []RoundView{}},
	}
	if tv.ContractAddress != "" {
		tv.EtherscanURL = etherscanTokenURL + tv.ContractAddress
	}

	if raw, ok := agg.Source(FundamentalsSources...); ok {
		tv.Founders = append(tv.Founders, extract.Founders(raw)...)
		tv.Funding = fundingView(extract.Funding(raw))
	}
	return tv
}

func fundingView(f extract.FundingInfo) FundingView {
	out := FundingView{
		TotalRaised: format.Number(f.TotalRaised, format.WithPrefix("$")),
		Rounds:      make([]RoundView, 0, len(f.Rounds)),
	}
	for _, r := range f.Rounds {
		investors := format.Unavailable
		if r.Investors != nil {
			investors = strconv.Itoa(*r.Investors)
		}
		out.Rounds = append(out.Rounds, RoundView{
			Date:      r.Date,
			Label:     r.Label,
			Amount:    format.Number(r.AmountUSD, format.WithPrefix("$")),
			Investors: investors,
		})
	}
	return out
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimRightFunc(string(runes[:limit]), unicode.IsSpace) + ellipsis
}
