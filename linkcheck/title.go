package linkcheck

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// minTokenRunes is the shortest claim token counted in the overlap test.
	minTokenRunes = 4
	// overlapRatio is the share of claim tokens that must appear in the
	// reference, rounded up.
	overlapRatio = 0.15
)

// IsTitleConsistent reports whether the page plausibly carries the claimed
// title. Either string containing the other passes, and so does a ⌈15%⌉
// overlap of the claim's longer tokens.
func IsTitleConsistent(page Signals, claimed string) bool {
	ref := strings.ToLower(page.Reference())
	claim := strings.ToLower(collapse(claimed))
	if ref == "" || claim == "" {
		return false
	}

	if strings.Contains(ref, claim) || strings.Contains(claim, ref) {
		return true
	}

	tokens := longTokens(claim)
	if len(tokens) == 0 {
		return false
	}

	need := int(math.Ceil(float64(len(tokens)) * overlapRatio))
	hits := 0
	for _, tok := range tokens {
		if strings.Contains(ref, tok) {
			hits++
			if hits >= need {
				return true
			}
		}
	}
	return false
}

// longTokens splits s into maximal runs of letters and digits and keeps the
// ones of at least minTokenRunes runes.
func longTokens(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTokenRunes {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
