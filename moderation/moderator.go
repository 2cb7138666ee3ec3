// Package moderation masks blacklisted words in message content.
package moderation

import (
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Filter matches blacklisted words on a normalized form of the text, so
// spacing, punctuation and leet speak don't hide them. A Filter with no
// words lets every text through unchanged.
type Filter struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewFilter builds the automaton. Words that normalize to nothing are ignored.
func NewFilter(words []string, replacement rune) (*Filter, error) {
	patterns := lo.Filter(
		lo.Map(words, func(w string, _ int) []rune { return normalizeRunes([]rune(w)) }),
		func(p []rune, _ int) bool { return len(p) > 0 },
	)
	if len(patterns) == 0 {
		return &Filter{replacement: replacement}, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Filter{matcher: m, replacement: replacement}, nil
}

func (f *Filter) Enabled() bool {
	return f != nil && f.matcher != nil
}

// Censor masks every match in the original text, keeping its length and
// spacing. It returns the masked text and the matched words, in order.
func (f *Filter) Censor(original string) (string, []string) {
	if !f.Enabled() {
		return original, nil
	}
	mapping := normalize(original)
	if len(mapping.normalized) == 0 {
		return original, nil
	}

	spans := f.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	origRunes := []rune(original)
	var words []string
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(mapping.origIdx) {
			continue
		}
		for i := mapping.origIdx[start]; i <= mapping.origIdx[end-1]; i++ {
			origRunes[i] = f.replacement
		}
		words = append(words, string(span.Word))
	}
	return string(origRunes), words
}

// normalize keeps the position of every kept rune in the original text.
func normalize(input string) textMapping {
	origRunes := []rune(input)
	mapping := textMapping{
		normalized: make([]rune, 0, len(origRunes)),
		origIdx:    make([]int, 0, len(origRunes)),
	}
	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		mapping.normalized = append(mapping.normalized, unicode.ToLower(clean))
		mapping.origIdx = append(mapping.origIdx, i)
	}
	return mapping
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps leet speak back to letters.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}

// Language guesses the ISO 639-1 code of text, for logging.
func Language(text string) string {
	return whatlanggo.Detect(text).Lang.Iso6391()
}
