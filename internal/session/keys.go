package session

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// KeyKind classifies an input event. The zero value is an invalid key.
type KeyKind int

const (
	KeyInvalid KeyKind = iota
	KeyChar
	KeySpace
	KeyBackspace
)

// Key is one physical key event.
type Key struct {
	Kind KeyKind
	Rune rune
}

// CharKey returns a printable character key.
func CharKey(r rune) Key {
	if r == ' ' {
		return SpaceKey()
	}
	if !unicode.IsPrint(r) || unicode.IsSpace(r) {
		return Key{}
	}
	return Key{Kind: KeyChar, Rune: r}
}

// SpaceKey returns the word separator key.
func SpaceKey() Key {
	return Key{Kind: KeySpace, Rune: ' '}
}

// BackspaceKey returns the backspace key.
func BackspaceKey() Key {
	return Key{Kind: KeyBackspace}
}

// ParseKey maps a key name to a Key. It accepts "Backspace", a single space
// and any single printable rune.
func ParseKey(s string) (Key, bool) {
	if strings.EqualFold(s, "backspace") {
		return BackspaceKey(), true
	}
	if utf8.RuneCountInString(s) != 1 {
		return Key{}, false
	}
	r, _ := utf8.DecodeRuneInString(s)
	k := CharKey(r)
	return k, k.Valid()
}

// Valid reports whether the key belongs to one of the accepted classes.
func (k Key) Valid() bool {
	switch k.Kind {
	case KeySpace, KeyBackspace:
		return true
	case KeyChar:
		return k.Rune != 0
	default:
		return false
	}
}
