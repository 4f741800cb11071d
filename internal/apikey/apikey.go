// Package apikey generates and displays the key used by automation clients.
package apikey

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// words are short newsroom terms.
var words = []string{
	"anchor", "archive", "article", "banner", "beacon", "bulletin",
	"byline", "caption", "channel", "chronicle", "column", "comment",
	"corner", "courier", "dateline", "digest", "dispatch", "editor",
	"edition", "feature", "filing", "folio", "gazette", "glance",
	"harbor", "header", "herald", "headline", "insight", "journal",
	"kicker", "layout", "ledger", "lens", "margin", "masthead",
	"memo", "morning", "network", "notice", "outlook", "packet",
	"paper", "planet", "press", "print", "profile", "pulse",
	"quarter", "radar", "record", "report", "review", "rotor",
	"sector", "signal", "source", "spark", "sphere", "spotlight",
	"station", "story", "stream", "summary", "survey", "ticker",
	"timeline", "tribune", "update", "vector", "verse", "volume",
	"weekly", "window", "wire", "witness",
}

const (
	wordCount = 4
	prefix    = "nr"
)

func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// Generate creates a key of the form nr-word-Word-word-word-1234: four
// distinct words, one of them capitalized, and a four digit suffix.
func Generate() (string, error) {
	picked := make(map[int]bool, wordCount)
	parts := []string{prefix}
	for len(parts) <= wordCount {
		idx, err := randInt(len(words))
		if err != nil {
			return "", fmt.Errorf("random word index: %w", err)
		}
		if picked[idx] {
			continue
		}
		picked[idx] = true
		parts = append(parts, words[idx])
	}

	upper, err := randInt(wordCount)
	if err != nil {
		return "", fmt.Errorf("random capital: %w", err)
	}
	w := parts[upper+1]
	parts[upper+1] = strings.ToUpper(w[:1]) + w[1:]

	num, err := randInt(9000)
	if err != nil {
		return "", fmt.Errorf("random number: %w", err)
	}
	parts = append(parts, fmt.Sprintf("%d", num+1000))

	return strings.Join(parts, "-"), nil
}

// Mask hides all but the last segment of key for display.
func Mask(key string) string {
	if key == "" {
		return ""
	}
	i := strings.LastIndex(key, "-")
	if i < 0 || len(key)-i > 8 {
		return strings.Repeat("*", 8)
	}
	return strings.Repeat("*", 8) + key[i:]
}
