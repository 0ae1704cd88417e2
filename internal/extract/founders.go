package extract

import "github.com/tidwall/gjson"

const maxFounders = 6

var (
	peopleKeys  = []string{"people", "team"}
	founderKeys = []string{"founders", "persons", "people"}
	nameKeys    = []string{"name", "full_name", "title"}
)

// FounderList holds unique display names in first-seen order.
type FounderList []string

// Founders pulls founder names out of a fundamentals-provider payload.
// Unknown or broken shapes yield an empty list.
func Founders(payload []byte) (out FounderList) {
	out = FounderList{}
	defer func() {
		if r := recover(); r != nil {
			out = FounderList{}
		}
	}()

	root, ok := parse(payload)
	if !ok {
		return out
	}
	profile, ok := probe(root, "profile")
	if !ok {
		return out
	}
	for _, key := range peopleKeys {
		people := profile.Get(key)
		if !isContainer(people) {
			continue
		}
		if names := foundersIn(people); len(names) > 0 {
			return dedupe(names, maxFounders)
		}
	}
	return out
}

func foundersIn(people gjson.Result) []string {
	if people.IsObject() {
		for _, key := range founderKeys {
			if names := namesOf(people.Get(key)); len(names) > 0 {
				return names
			}
		}
		return nil
	}
	// leadership list given directly as an array of people
	return namesOf(people)
}

func namesOf(container gjson.Result) []string {
	var names []string
	for _, rec := range values(container) {
		if !rec.IsObject() {
			continue
		}
		if n := firstString(rec, nameKeys); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func dedupe(names []string, limit int) FounderList {
	out := make(FounderList, 0, limit)
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	return out
}
