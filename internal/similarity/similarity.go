// Package similarity scores short strings by character n-gram overlap. It
// backs typo-tolerant lookups such as feed catalog suggestions.
package similarity

import (
	"strings"
	"unicode"
)

type Checker struct {
	threshold float64
	ngramSize int
}

func New(threshold float64, ngramSize int) *Checker {
	return &Checker{threshold: threshold, ngramSize: max(ngramSize, 1)}
}

// normalize lowercases, removes punctuation, and collapses whitespace.
func normalize(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			prevSpace = false
		} else if !prevSpace {
			sb.WriteRune(' ')
			prevSpace = true
		}
	}
	return strings.TrimSpace(sb.String())
}

// Grams extracts the character n-grams of text. Text shorter than n yields
// itself as a single gram.
func (c *Checker) Grams(text string) map[string]struct{} {
	runes := []rune(normalize(text))
	set := make(map[string]struct{})
	if len(runes) > 0 && len(runes) < c.ngramSize {
		set[string(runes)] = struct{}{}
		return set
	}
	for i := 0; i <= len(runes)-c.ngramSize; i++ {
		set[string(runes[i:i+c.ngramSize])] = struct{}{}
	}
	return set
}

// Jaccard computes |A intersection B| / |A union B|.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Score is the best similarity between word and any single word of text.
func (c *Checker) Score(word, text string) float64 {
	want := c.Grams(word)
	if len(want) == 0 {
		return 0
	}
	best := 0.0
	for _, w := range strings.Fields(normalize(text)) {
		if s := Jaccard(want, c.Grams(w)); s > best {
			best = s
		}
	}
	return best
}

// Matches reports whether any word of text is close enough to word.
func (c *Checker) Matches(word, text string) bool {
	return c.Score(word, text) >= c.threshold
}
