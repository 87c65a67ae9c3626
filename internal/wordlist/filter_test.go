package wordlist

import "testing"

func TestFilterEnglishASCII(t *testing.T) {
	for _, lang := range []string{"en", "english"} {
		filter := FilterForLang(lang)
		if !filter("hello") {
			t.Fatalf("expected hello to pass %s filter", lang)
		}
		for _, word := range []string{"résumé", "naïve", "don’t", "co-op"} {
			if filter(word) {
				t.Fatalf("expected %q to be rejected", word)
			}
		}
	}
}

func TestApplyPreservesOrder(t *testing.T) {
	got := Apply([]string{"b", "Bad", "a", ""}, FilterForLang("english"))
	if len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Fatalf("unexpected filtered words: %v", got)
	}
}

func TestFilterOtherLanguages(t *testing.T) {
	filter := FilterForLang("german")
	for _, word := range []string{"Straße", "über", "Hals-Nasen"} {
		if !filter(word) {
			t.Fatalf("expected %q to pass", word)
		}
	}
	for _, word := range []string{"", "-ab", "zwei2", "a b"} {
		if filter(word) {
			t.Fatalf("expected %q to be rejected", word)
		}
	}
}
