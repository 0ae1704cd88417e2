package envelope

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ImageRef accepts either a bare URL or a {thumb, small, large} object.
type ImageRef struct {
	Thumb string `json:"thumb,omitempty"`
	Small string `json:"small,omitempty"`
	Large string `json:"large,omitempty"`
}

func (r *ImageRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = ImageRef{Small: s}
		return nil
	}
	type plain ImageRef
	var p plain
	if err := json.Unmarshal(b, &p); err == nil {
		*r = ImageRef(p)
	}
	return nil
}

// Best returns the small image, falling back to the other sizes.
func (r ImageRef) Best() string {
	for _, s := range []string{r.Small, r.Thumb, r.Large} {
		if s != "" {
			return s
		}
	}
	return ""
}

// TextRef accepts either a plain string or a {"en": "..."} localized map.
type TextRef struct {
	Text string
}

func (r *TextRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		r.Text = s
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err == nil {
		r.Text = m["en"]
	}
	return nil
}

func (r TextRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Text)
}

// LinkRef accepts a string or a list of strings (first non-empty wins).
type LinkRef string

func (r *LinkRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = LinkRef(strings.TrimSpace(s))
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		for _, item := range list {
			if v := strings.TrimSpace(item); v != "" {
				*r = LinkRef(v)
				return nil
			}
		}
	}
	*r = ""
	return nil
}

// looseString accepts a string, number or bool. Anything else decodes empty.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*s = ""
	if len(b) == 0 {
		return nil
	}
	switch c := b[0]; {
	case c == '"':
		var v string
		if err := json.Unmarshal(b, &v); err == nil {
			*s = looseString(v)
		}
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(b, &n); err == nil {
			*s = looseString(n.String())
		}
	case c == 't' || c == 'f':
		var v bool
		if err := json.Unmarshal(b, &v); err == nil {
			*s = looseString(strconv.FormatBool(v))
		}
	}
	return nil
}
