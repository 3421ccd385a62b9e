package resolver

import (
	"strconv"
	"strings"

	"github.com/dpshade/prompthive/internal/storage"
)

// ShortCode derives an abbreviation for name that is not in existing.
//
// It tries the initials of the '-' and '_' separated words, then the first
// two letters of each word, then that form with a digit 1-9 appended, and
// finally falls back to the full name.
func ShortCode(name string, existing map[string]bool) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' })
	if len(words) == 0 {
		words = []string{name}
	}

	var initials, pairs strings.Builder
	for _, w := range words {
		runes := []rune(w)
		if len(runes) == 0 {
			initials.WriteRune('x')
			continue
		}
		initials.WriteRune(runes[0])
		pairs.WriteString(string(runes[:min(2, len(runes))]))
	}

	code := initials.String()
	if !existing[code] {
		return code
	}

	code = pairs.String()
	if !existing[code] {
		return code
	}

	for i := 1; i <= 9; i++ {
		numbered := code + strconv.Itoa(i)
		if !existing[numbered] {
			return numbered
		}
	}

	return name
}

// Candidate pairs a key with the short code assigned to it.
type Candidate struct {
	Key       storage.Key
	ShortCode string
}

func (c Candidate) String() string {
	return c.Key.String() + " (" + c.ShortCode + ")"
}

// AssignShortCodes gives every key a code, in order, each one avoiding the
// codes handed out before it. The result depends on the listing it is given.
func AssignShortCodes(keys []storage.Key) []Candidate {
	taken := make(map[string]bool, len(keys))
	out := make([]Candidate, 0, len(keys))
	for _, k := range keys {
		code := ShortCode(k.BaseName(), taken)
		taken[code] = true
		out = append(out, Candidate{Key: k, ShortCode: code})
	}
	return out
}
