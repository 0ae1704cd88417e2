package envelope

import "encoding/json"

// MarketCoin is one row of a market list. The backend normalizes these
// already, so fields are consumed as-is.
type MarketCoin struct {
	ID                       string     `json:"id"`
	Name                     string     `json:"name"`
	Symbol                   string     `json:"symbol"`
	Image                    string     `json:"image"`
	CurrentPrice             *float64   `json:"current_price"`
	PriceChangePercentage24h *float64   `json:"price_change_percentage_24h"`
	MarketCap                *float64   `json:"market_cap,omitempty"`
	Sparkline                *Sparkline `json:"sparkline_in_7d,omitempty"`
}

type Sparkline struct {
	Price []float64 `json:"price"`
}

type TokenBasic struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Image       ImageRef `json:"image"`
	Description TextRef  `json:"description"`
}

// TokenAggregate is the token_full payload: a backend-built summary plus
// the raw payload of every provider that answered, keyed by provider name.
type TokenAggregate struct {
	Summary Summary                    `json:"summary"`
	Sources map[string]json.RawMessage `json:"sources,omitempty"`
}

// Summary numeric fields are left untyped; providers send numbers, numeric
// strings or null and the formatter copes with all of them.
type Summary struct {
	ID                    string   `json:"id,omitempty"`
	Name                  string   `json:"name"`
	Symbol                string   `json:"symbol"`
	Image                 ImageRef `json:"image"`
	Description           TextRef  `json:"description"`
	ContractAddress       string   `json:"contract_address"`
	Price                 any      `json:"price"`
	MarketCap             any      `json:"market_cap"`
	FullyDilutedValuation any      `json:"fully_diluted_valuation"`
	CirculatingSupply     any      `json:"circulating_supply"`
	TotalSupply           any      `json:"total_supply"`
	MaxSupply             any      `json:"max_supply"`
	Links                 Links    `json:"links"`
}

type Links struct {
	Homepage LinkRef `json:"homepage"`
	Twitter  LinkRef `json:"twitter"`
	Github   LinkRef `json:"github"`
	Discord  LinkRef `json:"discord"`
	Telegram LinkRef `json:"telegram"`
}

// Source returns the first provider payload found under one of names.
func (a *TokenAggregate) Source(names ...string) (json.RawMessage, bool) {
	if a == nil || a.Sources == nil {
		return nil, false
	}
	for _, n := range names {
		if raw, ok := a.Sources[n]; ok && len(raw) > 0 && string(raw) != "null" {
			return raw, true
		}
	}
	return nil, false
}

// UnmarshalJSON keeps whatever part of the aggregate is readable. A summary
// that is not an object decodes empty and sources that are not an object
// are dropped; only a payload that is not an object at all is rejected.
func (a *TokenAggregate) UnmarshalJSON(b []byte) error {
	var w struct {
		Summary json.RawMessage `json:"summary"`
		Sources json.RawMessage `json:"sources"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*a = TokenAggregate{}
	if len(w.Summary) > 0 {
		_ = json.Unmarshal(w.Summary, &a.Summary)
	}
	var sources map[string]json.RawMessage
	if err := json.Unmarshal(w.Sources, &sources); err == nil && len(sources) > 0 {
		a.Sources = sources
	}
	return nil
}

// UnmarshalJSON accepts numeric or boolean identity fields (CMC-style
// numeric ids) and never fails on a field-level mismatch.
func (s *Summary) UnmarshalJSON(b []byte) error {
	type plain Summary
	var w struct {
		plain
		ID              looseString `json:"id"`
		Name            looseString `json:"name"`
		Symbol          looseString `json:"symbol"`
		ContractAddress looseString `json:"contract_address"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		*s = Summary{}
		return nil
	}
	*s = Summary(w.plain)
	s.ID = string(w.ID)
	s.Name = string(w.Name)
	s.Symbol = string(w.Symbol)
	s.ContractAddress = string(w.ContractAddress)
	return nil
}

func (t *TokenBasic) UnmarshalJSON(b []byte) error {
	type plain TokenBasic
	var w struct {
		plain
		ID     looseString `json:"id"`
		Name   looseString `json:"name"`
		Symbol looseString `json:"symbol"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*t = TokenBasic(w.plain)
	t.ID = string(w.ID)
	t.Name = string(w.Name)
	t.Symbol = string(w.Symbol)
	return nil
}
