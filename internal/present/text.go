// Package present turns workflow state into what the upload control and
// result display render.
package present

import (
	"regexp"
	"strings"
)

var (
	sentenceSep = regexp.MustCompile(`[.;]\s*`)
	colourSep   = regexp.MustCompile(`[,/&]+`)
)

// Chip is one colour label of the analysis card.
type Chip struct {
	Label  string
	Swatch string // CSS colour guess, the lower-cased label
}

// Bulletize splits free text into sentences on "." and ";" and drops
// empty pieces.
func Bulletize(text string) []string {
	return splitTrim(sentenceSep, text)
}

// SplitColours splits a colour list on ",", "/" and "&".
func SplitColours(text string) []Chip {
	labels := splitTrim(colourSep, text)
	chips := make([]Chip, 0, len(labels))
	for _, label := range labels {
		chips = append(chips, Chip{Label: label, Swatch: strings.ToLower(label)})
	}
	return chips
}

func splitTrim(sep *regexp.Regexp, text string) []string {
	parts := sep.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
