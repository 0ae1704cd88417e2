package extract

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const foundersArray = `[
	{"name": "Vitalik Buterin"},
	{"full_name": "Gavin Wood"},
	{"title": "Joseph Lubin"},
	{"role": "advisor"}
]`

const foundersMap = `{
	"p1": {"name": "Vitalik Buterin"},
	"p2": {"full_name": "Gavin Wood"},
	"p3": {"title": "Joseph Lubin"},
	"p4": {"role": "advisor"}
}`

var wantFounders = FounderList{"Vitalik Buterin", "Gavin Wood", "Joseph Lubin"}

func wrap(inner string, depth int) []byte {
	s := inner
	for i := 0; i < depth; i++ {
		s = fmt.Sprintf(`{"data": %s}`, s)
	}
	return []byte(s)
}

func profileWithFounders(founders string) string {
	return fmt.Sprintf(`{"profile": {"people": {"founders": %s}}}`, founders)
}

func TestFounders_SameAcrossWrapDepths(t *testing.T) {
	for depth := 0; depth <= 2; depth++ {
		got := Founders(wrap(profileWithFounders(foundersArray), depth))
		assert.Equal(t, wantFounders, got, "depth %d", depth)
	}
}

func TestFounders_TooDeeplyWrapped(t *testing.T) {
	got := Founders(wrap(profileWithFounders(foundersArray), 3))
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestFounders_ArrayAndKeyedMapAgree(t *testing.T) {
	fromArray := Founders([]byte(profileWithFounders(foundersArray)))
	fromMap := Founders([]byte(profileWithFounders(foundersMap)))
	assert.Equal(t, fromArray, fromMap)
	assert.Equal(t, wantFounders, fromMap)
}

func TestFounders_AlternateKeys(t *testing.T) {
	payload := `{"data": {"profile": {"team": {"persons": [{"name": "Satoshi"}]}}}}`
	assert.Equal(t, FounderList{"Satoshi"}, Founders([]byte(payload)))

	payload = `{"profile": {"people": {"people": {"x": {"name": "Anatoly"}}}}}`
	assert.Equal(t, FounderList{"Anatoly"}, Founders([]byte(payload)))
}

func TestFounders_EmptyFoundersFallsThroughToNextKey(t *testing.T) {
	payload := `{"profile": {"people": {"founders": [], "persons": [{"name": "Hayden"}]}}}`
	assert.Equal(t, FounderList{"Hayden"}, Founders([]byte(payload)))
}

func TestFounders_LeadershipListFallback(t *testing.T) {
	payload := `{"profile": {"people": [{"name": "Stani"}, {"full_name": "Emilio"}, 7, "x"]}}`
	assert.Equal(t, FounderList{"Stani", "Emilio"}, Founders([]byte(payload)))
}

func TestFounders_DedupAndCap(t *testing.T) {
	var people []map[string]string
	for i := 0; i < 50; i++ {
		people = append(people, map[string]string{"name": fmt.Sprintf("Founder %d", i%8)})
	}
	raw, err := json.Marshal(people)
	require.NoError(t, err)

	got := Founders([]byte(profileWithFounders(string(raw))))
	require.Len(t, got, maxFounders)
	assert.Equal(t, FounderList{"Founder 0", "Founder 1", "Founder 2", "Founder 3", "Founder 4", "Founder 5"}, got)

	seen := map[string]bool{}
	for _, n := range got {
		assert.False(t, seen[n], "duplicate %q", n)
		seen[n] = true
	}
}

func TestFounders_PreservesFirstSeenOrder(t *testing.T) {
	payload := profileWithFounders(`[{"name":"B"},{"name":"A"},{"name":"B"},{"name":"C"},{"name":"A"}]`)
	assert.Equal(t, FounderList{"B", "A", "C"}, Founders([]byte(payload)))
}

func TestFounders_Malformed(t *testing.T) {
	cases := []string{
		``,
		`not json`,
		`[]`,
		`null`,
		`{"profile": null}`,
		`{"profile": "text"}`,
		`{"profile": {}}`,
		`{"profile": {"people": 3}}`,
		`{"profile": {"people": {"founders": "Vitalik"}}}`,
		`{"profile": {"people": {"founders": [null, 1, "x", {"name": 5}]}}}`,
		`{"data": [1, 2]}`,
	}
	for _, c := range cases {
		assert.NotPanics(t, func() {
			got := Founders([]byte(c))
			assert.NotNil(t, got, c)
			assert.Empty(t, got, c)
		})
	}
}

func TestFunding_RoundsCappedAndOrdered(t *testing.T) {
	var rounds []map[string]any
	for i := 0; i < 9; i++ {
		rounds = append(rounds, map[string]any{
			"round_type": fmt.Sprintf("R%d", i),
			"amount_usd": 1000 * (i + 1),
		})
	}
	raw, err := json.Marshal(map[string]any{
		"metrics": map[string]any{
			"fundraising": map[string]any{"rounds": rounds, "total_raised_usd": 45000},
		},
	})
	require.NoError(t, err)

	got := Funding(wrap(string(raw), 1))
	require.Len(t, got.Rounds, maxRounds)
	for i, r := range got.Rounds {
		assert.Equal(t, fmt.Sprintf("R%d", i), r.Label)
		require.NotNil(t, r.AmountUSD)
		assert.Equal(t, float64(1000*(i+1)), *r.AmountUSD)
	}
	require.NotNil(t, got.TotalRaised)
	assert.Equal(t, 45000.0, *got.TotalRaised)
}

func TestFunding_AlternateParentAndKeys(t *testing.T) {
	payload := `{"data": {"data": {
		"metrics": {"supply": {}},
		"profile": {"fundraising": {
			"funding_rounds": [
				{"announced_date": "2021-03-01", "type": "Seed", "raised_usd": "2500000", "investors": ["a", "b", "c"]},
				{"title": "Series A", "investor_count": 4}
			],
			"raised": "18000000"
		}}
	}}}`
	got := Funding([]byte(payload))
	require.Len(t, got.Rounds, 2)

	first := got.Rounds[0]
	assert.Equal(t, "2021-03-01", first.Date)
	assert.Equal(t, "Seed", first.Label)
	require.NotNil(t, first.AmountUSD)
	assert.Equal(t, 2500000.0, *first.AmountUSD)
	require.NotNil(t, first.Investors)
	assert.Equal(t, 3, *first.Investors)

	second := got.Rounds[1]
	assert.Equal(t, "Series A", second.Label)
	assert.Nil(t, second.AmountUSD)
	require.NotNil(t, second.Investors)
	assert.Equal(t, 4, *second.Investors)

	require.NotNil(t, got.TotalRaised)
	assert.Equal(t, 18000000.0, *got.TotalRaised)
}

func TestFunding_TotalFromFirstPresentKey(t *testing.T) {
	payload := `{"profile": {"fundraising": {"raised": null, "total": 12}}}`
	got := Funding([]byte(payload))
	require.NotNil(t, got.TotalRaised)
	assert.Equal(t, 12.0, *got.TotalRaised)
	assert.Empty(t, got.Rounds)
}

func TestFunding_Malformed(t *testing.T) {
	cases := []string{
		``,
		`{"profile": {"people": {}}}`,
		`{"metrics": {"fundraising": []}}`,
		`{"metrics": {"fundraising": {"rounds": "many"}}}`,
		`[{"metrics": {}}]`,
	}
	for _, c := range cases {
		assert.NotPanics(t, func() {
			got := Funding([]byte(c))
			assert.Nil(t, got.TotalRaised, c)
			assert.NotNil(t, got.Rounds, c)
			assert.Empty(t, got.Rounds, c)
			assert.True(t, got.Empty(), c)
		})
	}
}
