package generator

import (
	"fmt"

	"github.com/verte-zerg/typetest/internal/model"
	"github.com/verte-zerg/typetest/internal/wordlist"
)

// Source adapts a provider and generator into a batch function sessions
// call with their config snapshot.
type Source struct {
	Provider wordlist.Provider
	Gen      *Generator
	// WeakSet and WeakFactor are forwarded into every batch.
	WeakSet    map[rune]struct{}
	WeakFactor float64
	// CapsPct is forwarded into every batch.
	CapsPct float64
}

// Words returns n words for cfg.
func (s Source) Words(cfg model.TestConfig, n int) ([]string, error) {
	corpus, err := s.Provider.Words(cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("failed to load words for %q: %w", cfg.Language, err)
	}
	opts := OptionsFor(cfg, n)
	opts.WeakSet = s.WeakSet
	opts.WeakFactor = s.WeakFactor
	opts.CapsPct = s.CapsPct
	return s.Gen.Generate(corpus, opts)
}
