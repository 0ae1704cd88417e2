package extract

import (
	"github.com/tidwall/gjson"
)

const maxRounds = 5

var (
	roundListKeys   = []string{"rounds", "funding_rounds"}
	totalRaisedKeys = []string{"total_raised_usd", "raised", "total"}
	roundDateKeys   = []string{"date", "announced_date", "end_date", "start_date"}
	roundLabelKeys  = []string{"round_type", "type", "title", "round"}
	roundAmountKeys = []string{"amount_usd", "amount_collected_in_usd", "raised_usd", "amount"}
	investorCounts  = []string{"investor_count", "investors_count"}
)

type FundingRound struct {
	Date      string   `json:"date,omitempty"`
	Label     string   `json:"label,omitempty"`
	AmountUSD *float64 `json:"amount_usd,omitempty"`
	Investors *int     `json:"investors,omitempty"`
}

type FundingInfo struct {
	TotalRaised *float64       `json:"total_raised"`
	Rounds      []FundingRound `json:"rounds"`
}

func (f FundingInfo) Empty() bool {
	return f.TotalRaised == nil && len(f.Rounds) == 0
}

// Funding pulls the fundraising block out of a fundamentals-provider
// payload. Unknown or broken shapes yield an empty FundingInfo.
func Funding(payload []byte) (out FundingInfo) {
	out = FundingInfo{Rounds: []FundingRound{}}
	defer func() {
		if r := recover(); r != nil {
			out = FundingInfo{Rounds: []FundingRound{}}
		}
	}()

	root, ok := parse(payload)
	if !ok {
		return out
	}
	fr, ok := probe(root, "metrics.fundraising", "profile.fundraising")
	if !ok {
		return out
	}

	for _, key := range roundListKeys {
		list := fr.Get(key)
		if !list.IsArray() {
			continue
		}
		list.ForEach(func(_, r gjson.Result) bool {
			if r.IsObject() {
				out.Rounds = append(out.Rounds, parseRound(r))
			}
			return len(out.Rounds) < maxRounds
		})
		break
	}

	for _, key := range totalRaisedKeys {
		v := fr.Get(key)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if f, ok := toFloat(v); ok {
			out.TotalRaised = &f
		}
		break
	}
	return out
}

func parseRound(r gjson.Result) FundingRound {
	round := FundingRound{
		Date:      firstString(r, roundDateKeys),
		Label:     firstString(r, roundLabelKeys),
		AmountUSD: firstFloat(r, roundAmountKeys),
	}
	if n := firstFloat(r, investorCounts); n != nil {
		c := int(*n)
		round.Investors = &c
	} else if inv := r.Get("investors"); inv.IsArray() {
		c := len(inv.Array())
		round.Investors = &c
	}
	return round
}
