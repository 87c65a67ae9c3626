package wordlist

import (
	"strings"
	"unicode"
)

// FilterFunc reports whether a word is kept.
type FilterFunc func(string) bool

// FilterForLang picks the word filter for lang. English lists are restricted to
// lowercase ASCII; other languages keep any word made of letters, marks and
// apostrophes or hyphens between letters.
func FilterForLang(lang string) FilterFunc {
	switch strings.ToLower(lang) {
	case "en", "english":
		return isLowerASCII
	default:
		return isLetterWord
	}
}

// Apply keeps the words accepted by f, preserving order.
func Apply(words []string, f FilterFunc) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if f(w) {
			out = append(out, w)
		}
	}
	return out
}

func isLowerASCII(word string) bool {
	if word == "" {
		return false
	}
	for i := 0; i < len(word); i++ {
		if word[i] < 'a' || word[i] > 'z' {
			return false
		}
	}
	return true
}

func isLetterWord(word string) bool {
	if word == "" {
		return false
	}
	runes := []rune(word)
	for i, r := range runes {
		switch {
		case unicode.IsLetter(r), unicode.Is(unicode.Mn, r):
		case (r == '\'' || r == '-' || r == '’') && i > 0 && i < len(runes)-1:
		default:
			return false
		}
	}
	return true
}
