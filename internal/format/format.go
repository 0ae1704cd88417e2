// Package format turns loosely typed upstream values into display strings.
// Every function here is total: missing, non-numeric or non-finite input
// yields Unavailable instead of an error.
package format

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Unavailable is rendered in place of any value that cannot be formatted.
const Unavailable = "—"

const defaultMaxFraction = 2

type options struct {
	maxFraction int
	prefix      string
	tag         language.Tag
}

// Option adjusts how Number renders a value.
type Option func(*options)

// WithMaxFraction overrides the default of at most 2 fraction digits.
func WithMaxFraction(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxFraction = n
		}
	}
}

// WithPrefix prepends a currency marker such as "$".
func WithPrefix(p string) Option {
	return func(o *options) { o.prefix = p }
}

// WithLocale switches grouping and decimal separators from English.
func WithLocale(tag language.Tag) Option {
	return func(o *options) { o.tag = tag }
}

// Number formats v with locale grouping. v may be any numeric kind, a
// json.Number, a numeric string, a pointer to one of those, or nil.
func Number(v any, opts ...Option) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = Unavailable
		}
	}()

	f, ok := Coerce(v)
	if !ok {
		return Unavailable
	}
	o := options{maxFraction: defaultMaxFraction, tag: language.English}
	for _, opt := range opts {
		opt(&o)
	}
	p := message.NewPrinter(o.tag)
	return o.prefix + p.Sprint(number.Decimal(f, number.MaxFractionDigits(o.maxFraction)))
}

// Percent renders a signed change rounded to 2 decimals, e.g. "+2.35%".
func Percent(v any) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = Unavailable
		}
	}()

	f, ok := Coerce(v)
	if !ok {
		return Unavailable
	}
	r := math.Round(f*100) / 100
	if r == 0 {
		return "0%"
	}
	sign := ""
	if r > 0 {
		sign = "+"
	}
	p := message.NewPrinter(language.English)
	return sign + p.Sprint(number.Decimal(r, number.MaxFractionDigits(2))) + "%"
}

// Coerce converts v to a finite float64.
func Coerce(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int8:
		f = float64(t)
	case int16:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint8:
		f = float64(t)
	case uint16:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = n
	case *float64:
		if t == nil {
			return 0, false
		}
		f = *t
	case *int64:
		if t == nil {
			return 0, false
		}
		f = float64(*t)
	case *string:
		if t == nil {
			return 0, false
		}
		return Coerce(*t)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
