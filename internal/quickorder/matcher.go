package quickorder

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchStatus represents the status of a match operation
type MatchStatus int

const (
	Matched MatchStatus = iota
	Ambiguous
	Unmatched
)

func (s MatchStatus) String() string {
	switch s {
	case Matched:
		return "MATCHED"
	case Ambiguous:
		return "AMBIGUOUS"
	case Unmatched:
		return "UNMATCHED"
	default:
		return "UNKNOWN"
	}
}

// Item is a menu item the matcher can pick.
type Item struct {
	ID   uuid.UUID
	Name string
}

// MatchResult contains the result of a matching operation
type MatchResult struct {
	Status     MatchStatus
	Item       *Item  // when Matched
	Candidates []Item // when Ambiguous
}

const (
	exactWeight    = 2
	prefixWeight   = 1
	fullNameWeight = 3
	minPrefixLen   = 3
)

// Words that never identify a dish on their own.
var stopwords = map[string]bool{
	"a": true, "o": true, "e": true, "de": true, "da": true, "do": true,
	"das": true, "dos": true, "com": true, "na": true, "no": true, "em": true,
}

// Matcher scores menu items against free-text descriptions by name tokens.
type Matcher struct {
	items    []Item
	keywords [][]string // pre-tokenized names per item
}

// NewMatcher creates a Matcher with pre-tokenized item names.
func NewMatcher(items []Item) *Matcher {
	m := &Matcher{items: items, keywords: make([][]string, len(items))}
	for i, item := range items {
		m.keywords[i] = keywords(item.Name)
	}
	return m
}

// Match picks the menu item whose name best fits text. An exact token scores
// more than a prefix ("caipi" for "caipirinha"), and an item whose whole name
// appears in text gets a bonus so "guarana lata" beats plain "guarana".
func (m *Matcher) Match(text string) MatchResult {
	input := keywords(text)
	if len(input) == 0 {
		return MatchResult{Status: Unmatched}
	}

	type scoredItem struct {
		item  Item
		score int
	}
	var scored []scoredItem
	for i, item := range m.items {
		if score := score(input, m.keywords[i]); score > 0 {
			scored = append(scored, scoredItem{item: item, score: score})
		}
	}
	if len(scored) == 0 {
		return MatchResult{Status: Unmatched}
	}

	maxScore := 0
	for _, s := range scored {
		if s.score > maxScore {
			maxScore = s.score
		}
	}
	var top []Item
	for _, s := range scored {
		if s.score == maxScore {
			top = append(top, s.item)
		}
	}

	if len(top) == 1 {
		return MatchResult{Status: Matched, Item: &top[0]}
	}
	return MatchResult{Status: Ambiguous, Candidates: top}
}

func score(input, name []string) int {
	if len(name) == 0 {
		return 0
	}
	total := 0
	covered := 0
	for _, kw := range name {
		best := 0
		for _, tok := range input {
			switch {
			case tok == kw:
				best = exactWeight
			case best == 0 && len(tok) >= minPrefixLen && strings.HasPrefix(kw, tok):
				best = prefixWeight
			}
		}
		if best > 0 {
			covered++
		}
		total += best
	}
	if total > 0 && covered == len(name) {
		total += fullNameWeight
	}
	return total
}

// keywords normalizes s and drops stopwords and bare numbers.
func keywords(s string) []string {
	var out []string
	for _, tok := range strings.Fields(normalize(s)) {
		if stopwords[tok] || isNumber(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// normalize folds accents, lowercases and replaces non-alphanumeric chars with spaces
func normalize(s string) string {
	// Transformers keep state, so build one per call.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func isNumber(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return tok != ""
}
