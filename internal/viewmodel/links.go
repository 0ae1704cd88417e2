package viewmodel

import (
	"strings"

	"crypto-assistant/internal/envelope"
)

type linkDef struct {
	kind  string
	label string
	base  string
}

var linkKinds = []linkDef{
	{kind: "homepage", label: "Website"},
	{kind: "twitter", label: "X", base: "https://x.com/"},
	{kind: "github", label: "GitHub", base: "https://github.com/"},
	{kind: "discord", label: "Discord", base: "https://discord.gg/"},
	{kind: "telegram", label: "Telegram", base: "https://t.me/"},
}

// BuildLinks emits one link per non-empty field, expanding bare handles
// into profile URLs. Absent fields are left out entirely.
func BuildLinks(l envelope.Links) []Link {
	raw := map[string]string{
		"homepage": string(l.Homepage),
		"twitter":  string(l.Twitter),
		"github":   string(l.Github),
		"discord":  string(l.Discord),
		"telegram": string(l.Telegram),
	}
	links := make([]Link, 0, len(linkKinds))
	for _, lk := range linkKinds {
		v := strings.TrimSpace(raw[lk.kind])
		if v == "" {
			continue
		}
		u := expand(v, lk.base)
		if u == "" {
			continue
		}
		links = append(links, Link{Kind: lk.kind, Label: lk.label, URL: u})
	}
	return links
}

func expand(v, base string) string {
	if hasScheme(v) {
		return v
	}
	handle := strings.TrimPrefix(v, "@")
	if handle == "" {
		return ""
	}
	// a host path without scheme, e.g. "t.me/foo" or "uniswap.org"
	if base == "" || (strings.Contains(handle, ".") && strings.Contains(handle, "/")) {
		return "https://" + handle
	}
	return base + handle
}

func hasScheme(v string) bool {
	l := strings.ToLower(v)
	return strings.HasPrefix(l, "https://") || strings.HasPrefix(l, "http://")
}
