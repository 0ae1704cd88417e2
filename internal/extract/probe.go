package extract

import (
	"strings"

	"github.com/tidwall/gjson"

	"crypto-assistant/internal/format"
)

// maxWrapDepth is how many nested "data" wrappers a provider may add.
const maxWrapDepth = 2

func parse(payload []byte) (gjson.Result, bool) {
	if len(payload) == 0 || !gjson.ValidBytes(payload) {
		return gjson.Result{}, false
	}
	root := gjson.ParseBytes(payload)
	return root, root.IsObject()
}

// probe returns the first object found at one of paths, trying the payload
// itself and then each "data" wrapper below it.
func probe(root gjson.Result, paths ...string) (gjson.Result, bool) {
	node := root
	for depth := 0; depth <= maxWrapDepth; depth++ {
		if !node.IsObject() {
			break
		}
		for _, p := range paths {
			if v := node.Get(p); v.IsObject() {
				return v, true
			}
		}
		node = node.Get("data")
	}
	return gjson.Result{}, false
}

func isContainer(v gjson.Result) bool {
	return v.IsArray() || v.IsObject()
}

// values yields array elements, or object values in document order.
func values(v gjson.Result) []gjson.Result {
	if !isContainer(v) {
		return nil
	}
	var out []gjson.Result
	v.ForEach(func(_, item gjson.Result) bool {
		out = append(out, item)
		return true
	})
	return out
}

func firstString(obj gjson.Result, keys []string) string {
	for _, k := range keys {
		v := obj.Get(k)
		if v.Type != gjson.String {
			continue
		}
		if s := strings.TrimSpace(v.Str); s != "" {
			return s
		}
	}
	return ""
}

func toFloat(v gjson.Result) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return format.Coerce(v.Num)
	case gjson.String:
		return format.Coerce(v.Str)
	}
	return 0, false
}

func firstFloat(obj gjson.Result, keys []string) *float64 {
	for _, k := range keys {
		if f, ok := toFloat(obj.Get(k)); ok {
			return &f
		}
	}
	return nil
}
