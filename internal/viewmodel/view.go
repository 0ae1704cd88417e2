package viewmodel

import (
	"crypto-assistant/internal/envelope"
	"crypto-assistant/internal/format"
)

// View is what a surface renders for one ask. Exactly one of the variant
// fields is set, matching Kind; an unknown kind leaves all of them nil.
type View struct {
	Kind      envelope.Kind   `json:"kind"`
	Markets   []MarketCard    `json:"markets,omitempty"`
	Token     *TokenBasicView `json:"token,omitempty"`
	TokenFull *TokenView      `json:"token_full,omitempty"`
}

// Empty reports whether there is nothing to render.
func (v View) Empty() bool {
	switch v.Kind {
	case envelope.KindMarkets:
		return v.Markets == nil
	case envelope.KindToken:
		return v.Token == nil
	case envelope.KindTokenFull:
		return v.TokenFull == nil
	}
	return true
}

type MarketCard struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	Image     string    `json:"image,omitempty"`
	Price     string    `json:"price"`
	Change    string    `json:"change"`
	Up        bool      `json:"up"`
	Sparkline []float64 `json:"sparkline,omitempty"`
}

type TokenBasicView struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description"`
}

type TokenView struct {
	Name                  string      `json:"name"`
	Symbol                string      `json:"symbol"`
	Image                 string      `json:"image,omitempty"`
	Description           string      `json:"description,omitempty"`
	ContractAddress       string      `json:"contract_address,omitempty"`
	EtherscanURL          string      `json:"etherscan_url,omitempty"`
	Price                 string      `json:"price"`
	MarketCap             string      `json:"market_cap"`
	FullyDilutedValuation string      `json:"fully_diluted_valuation"`
	CirculatingSupply     string      `json:"circulating_supply"`
	TotalSupply           string      `json:"total_supply"`
	MaxSupply             string      `json:"max_supply"`
	Links                 []Link      `json:"links"`
	Founders              []string    `json:"founders"`
	Funding               FundingView `json:"funding"`
	Brief                 string      `json:"brief,omitempty"`
}

type Link struct {
	Kind  string `json:"kind"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

type FundingView struct {
	TotalRaised string      `json:"total_raised"`
	Rounds      []RoundView `json:"rounds"`
}

func (f FundingView) Empty() bool {
	return len(f.Rounds) == 0 && (f.TotalRaised == "" || f.TotalRaised == format.Unavailable)
}

type RoundView struct {
	Date      string `json:"date,omitempty"`
	Label     string `json:"label,omitempty"`
	Amount    string `json:"amount"`
	Investors string `json:"investors"`
}
