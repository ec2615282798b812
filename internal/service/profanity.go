package service

import (
	"strings"
	"unicode"
)

// profanityList is the fixed word list matched case-insensitively as
// whole words. Matched words are masked character-for-character so the
// message length and word boundaries are preserved.
var profanityList = []string{
	"fuck", "shit", "ass", "bitch", "damn", "dick", "bastard", "crap", "hell",
}

const maskRune = '*'

// FilterProfanity replaces every whole-word occurrence of a listed word
// with an equal-length run of mask characters. The output is always the
// same length as the input.
func FilterProfanity(text string) string {
	runes := []rune(text)
	out := make([]rune, len(runes))
	copy(out, runes)

	lower := strings.ToLower(text)
	lowerRunes := []rune(lower)

	for _, word := range profanityList {
		wordRunes := []rune(word)
		for i := 0; i+len(wordRunes) <= len(lowerRunes); i++ {
			if !runesMatch(lowerRunes[i:i+len(wordRunes)], wordRunes) {
				continue
			}
			// Whole-word boundaries only.
			if i > 0 && isWordRune(lowerRunes[i-1]) {
				continue
			}
			if end := i + len(wordRunes); end < len(lowerRunes) && isWordRune(lowerRunes[end]) {
				continue
			}
			for j := i; j < i+len(wordRunes); j++ {
				out[j] = maskRune
			}
		}
	}

	return string(out)
}

func runesMatch(a, b []rune) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
