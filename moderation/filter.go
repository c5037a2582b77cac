// Package moderation masks forbidden terms in message text before it is
// persisted or broadcast. Matching is resilient to casing, accents around
// the term, leet substitutions and separator stuffing ("b.a.d word").
package moderation

import (
	"log/slog"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// leet maps the usual digit and symbol substitutions back to letters before
// matching, so "h4x" and "hax" hit the same pattern.
var leet = map[rune]rune{
	'4': 'a', '@': 'a',
	'3': 'e', '€': 'e',
	'1': 'i', '!': 'i', '|': 'i',
	'0': 'o',
	'5': 's', '$': 's',
}

// Filter holds a compiled Aho-Corasick automaton over the canonical form of
// the banned terms. It is immutable after construction and safe for
// concurrent use.
type Filter struct {
	machine *goahocorasick.Machine
	mask    rune
	log     *slog.Logger
}

func NewFilter(banned []string, mask rune, log *slog.Logger) (*Filter, error) {
	patterns := make([][]rune, 0, len(banned))
	for _, term := range banned {
		canon, _ := canonicalize(term)
		if len(canon) == 0 {
			// Terms made of pure separators would match everything.
			continue
		}
		patterns = append(patterns, canon)
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Filter{machine: machine, mask: mask, log: log}, nil
}

// Mask replaces every character of each matched term with the mask rune,
// leaving separators and surrounding text untouched. It returns the masked
// text and the canonical form of each term that was hit, in match order.
func (f *Filter) Mask(text string) (string, []string) {
	canon, sourceIdx := canonicalize(text)
	if len(canon) == 0 {
		return text, nil
	}

	hits := f.machine.MultiPatternSearch(canon, false)
	if len(hits) == 0 {
		return text, nil
	}

	out := []rune(text)
	var matched []string
	for _, hit := range hits {
		start := hit.Pos
		end := start + len(hit.Word)
		if start < 0 || end > len(sourceIdx) {
			continue
		}
		matched = append(matched, string(hit.Word))

		// Mask the original span, separators included, so "b.a.d" becomes
		// "*****" rather than "*.*.*" with the shape of the word intact.
		for i := sourceIdx[start]; i <= sourceIdx[end-1]; i++ {
			out[i] = f.mask
		}
	}
	return string(out), matched
}

// canonicalize lowercases, undoes leet substitutions and strips separator
// runes. sourceIdx maps each canonical rune back to its index in the
// original rune slice so matches can be projected onto the source text.
func canonicalize(text string) (canon []rune, sourceIdx []int) {
	for i, r := range []rune(text) {
		if mapped, ok := leet[r]; ok {
			r = mapped
		}
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		canon = append(canon, unicode.ToLower(r))
		sourceIdx = append(sourceIdx, i)
	}
	return canon, sourceIdx
}

// ParseWordList reads one banned term per line, skipping blanks and
// #-comments. Used for both the embedded defaults and operator overrides.
func ParseWordList(raw string) []string {
	var words []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words
}
