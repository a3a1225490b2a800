// Package tokens provides best-effort word-level token counting for text
// where no authoritative provider usage counts are available.
package tokens

import "regexp"

// wordPattern matches runs of letters/digits, keeping internal apostrophes
// so contractions count as one token.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)

// Tokenize splits text into word tokens. Punctuation and whitespace are
// discarded. Returns nil for empty input.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return wordPattern.FindAllString(text, -1)
}

// Estimate returns an approximate token count for text. Empty or
// punctuation-only text yields 0. Estimation never fails.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(wordPattern.FindAllStringIndex(text, -1))
}
