package services

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Censor masks configured words in message content. Matching ignores case,
// punctuation, spacing and common leet substitutions.
type Censor struct {
	matcher *goahocorasick.Machine
	mask    rune
}

// NewCensor builds the automaton. With no words the censor passes text through.
func NewCensor(words []string, mask rune) (*Censor, error) {
	patterns := make([][]rune, 0, len(words))
	for _, w := range words {
		if p := normalizeRunes([]rune(w)); len(p) > 0 {
			patterns = append(patterns, p)
		}
	}
	c := &Censor{mask: mask}
	if len(patterns) == 0 {
		return c, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	c.matcher = m
	return c, nil
}

// Apply returns text with every matched span replaced by the mask rune.
func (c *Censor) Apply(text string) string {
	if c == nil || c.matcher == nil {
		return text
	}

	orig := []rune(text)
	norm := make([]rune, 0, len(orig))
	origIdx := make([]int, 0, len(orig))
	for i, r := range orig {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	if len(norm) == 0 {
		return text
	}

	hits := c.matcher.MultiPatternSearch(norm, false)
	if len(hits) == 0 {
		return text
	}
	for _, hit := range hits {
		end := hit.Pos + len(hit.Word)
		if hit.Pos < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[hit.Pos]; i <= origIdx[end-1]; i++ {
			orig[i] = c.mask
		}
	}
	return string(orig)
}

func normalizeRunes(in []rune) []rune {
	out := make([]rune, 0, len(in))
	for _, r := range in {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	}
	return r
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
