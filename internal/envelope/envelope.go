// Package envelope decodes the tagged response of the backend ask endpoint.
//
// The backend may add kinds at any time. Decode never fails on an
// unrecognized tag: it returns an envelope of KindUnknown that renders as
// nothing.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindUnknown   Kind = ""
	KindMarkets   Kind = "markets"
	KindToken     Kind = "token"
	KindTokenFull Kind = "token_full"
	KindError     Kind = "error"
)

var ErrMalformed = errors.New("malformed envelope")

func (k Kind) Known() bool {
	switch k {
	case KindMarkets, KindToken, KindTokenFull, KindError:
		return true
	}
	return false
}

// Envelope holds exactly one populated variant, selected by Kind.
type Envelope struct {
	Kind    Kind
	RawKind string

	Markets   []MarketCoin
	Token     *TokenBasic
	TokenFull *TokenAggregate
	Error     string
}

type wireEnvelope struct {
	Kind    string          `json:"kind"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Detail  string          `json:"detail"`
	Error   string          `json:"error"`
}

// Decode parses an ask response body. The discriminator is read from
// "kind", falling back to the legacy "type" field.
func Decode(body []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(body, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	tag := strings.TrimSpace(w.Kind)
	if tag == "" {
		tag = strings.TrimSpace(w.Type)
	}
	env := Envelope{Kind: Kind(strings.ToLower(tag)), RawKind: tag}

	switch env.Kind {
	case KindMarkets:
		coins := []MarketCoin{}
		if hasData(w.Data) {
			if err := json.Unmarshal(w.Data, &coins); err != nil {
				return Envelope{}, fmt.Errorf("%w: markets: %v", ErrMalformed, err)
			}
		}
		env.Markets = coins
	case KindToken:
		if !hasData(w.Data) {
			return Envelope{}, fmt.Errorf("%w: token: missing data", ErrMalformed)
		}
		var tb TokenBasic
		if err := json.Unmarshal(w.Data, &tb); err != nil {
			return Envelope{}, fmt.Errorf("%w: token: %v", ErrMalformed, err)
		}
		env.Token = &tb
	case KindTokenFull:
		if !hasData(w.Data) {
			return Envelope{}, fmt.Errorf("%w: token_full: missing data", ErrMalformed)
		}
		var agg TokenAggregate
		if err := json.Unmarshal(w.Data, &agg); err != nil {
			return Envelope{}, fmt.Errorf("%w: token_full: %v", ErrMalformed, err)
		}
		env.TokenFull = &agg
	case KindError:
		env.Error = firstNonEmpty(w.Message, w.Detail, w.Error, dataString(w.Data))
	default:
		env.Kind = KindUnknown
	}
	return env, nil
}

func hasData(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null"
}

func dataString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
