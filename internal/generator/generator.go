// Package generator builds typing word sequences.
package generator

import (
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/verte-zerg/typetest/internal/model"
)

const (
	// PunctuationPct is the per-word chance of a trailing punctuation mark.
	PunctuationPct = 0.10
	// NumbersPct is the per-word chance of being replaced by a number.
	NumbersPct = 0.05

	// Time mode supplies this many words per configured second.
	wordsPerSecond = 5
	minTimeWords   = 50
	maxNumberToken = 1000
)

var punctuationSet = []rune{'.', ',', '!', '?', ';', ':'}

// ErrEmptyCorpus is returned when there is nothing to sample from.
var ErrEmptyCorpus = errors.New("word corpus is empty")

// Options controls a single generation batch.
type Options struct {
	Count       int
	Punctuation bool
	Numbers     bool
	// CapsPct is the per-word chance of an uppercase first letter.
	CapsPct float64
	// WeakSet biases sampling toward words containing these runes.
	WeakSet    map[rune]struct{}
	WeakFactor float64
}

// Generator produces randomized typing text. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewWithSeed(time.Now().UnixNano())
}

// NewWithSeed returns a deterministic Generator.
func NewWithSeed(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// WordCount returns how many words a test needs up front. Time mode is
// over-provisioned; sessions append more batches if a typist gets close to the end.
func WordCount(cfg model.TestConfig) int {
	if cfg.Mode == model.ModeWords {
		return cfg.WordTarget
	}
	n := cfg.TimeLimit * wordsPerSecond
	if n < minTimeWords {
		n = minTimeWords
	}
	return n
}

// OptionsFor builds batch options from a test config.
func OptionsFor(cfg model.TestConfig, count int) Options {
	return Options{
		Count:       count,
		Punctuation: cfg.Punctuation,
		Numbers:     cfg.Numbers,
	}
}

// Generate samples words uniformly with replacement, or weighted toward weak
// characters when a weak set is given, then applies caps, punctuation and
// numbers.
func (g *Generator) Generate(words []string, opts Options) ([]string, error) {
	if len(words) == 0 {
		return nil, ErrEmptyCorpus
	}
	if opts.Count <= 0 {
		return []string{}, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	pick := g.uniformPicker(words)
	if len(opts.WeakSet) > 0 && opts.WeakFactor > 0 {
		pick = g.weightedPicker(words, opts.WeakSet, opts.WeakFactor)
	}

	result := make([]string, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		word := applyCaps(g.rnd, pick(), opts.CapsPct)
		if opts.Punctuation {
			word = applyPunct(g.rnd, word, PunctuationPct, punctuationSet)
		}
		if opts.Numbers {
			word = applyNumber(g.rnd, word, NumbersPct)
		}
		result = append(result, word)
	}
	return result, nil
}

func (g *Generator) uniformPicker(words []string) func() string {
	return func() string {
		return words[g.rnd.Intn(len(words))]
	}
}

func (g *Generator) weightedPicker(words []string, weakSet map[rune]struct{}, factor float64) func() string {
	weights := make([]float64, len(words))
	total := 0.0
	for i, word := range words {
		weakCount := 0
		for _, r := range word {
			if _, ok := weakSet[r]; ok {
				weakCount++
			}
		}
		w := 1.0 + float64(weakCount)*factor
		weights[i] = w
		total += w
	}
	return func() string {
		r := g.rnd.Float64() * total
		acc := 0.0
		for j, w := range weights {
			acc += w
			if r <= acc {
				return words[j]
			}
		}
		return words[len(words)-1]
	}
}

func applyCaps(rnd *rand.Rand, word string, capsPct float64) string {
	if capsPct <= 0 || rnd.Float64() >= capsPct {
		return word
	}
	first, size := utf8.DecodeRuneInString(word)
	if first == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(first)) + word[size:]
}

func applyPunct(rnd *rand.Rand, word string, punctPct float64, punctSet []rune) string {
	if punctPct <= 0 || len(punctSet) == 0 {
		return word
	}
	if rnd.Float64() >= punctPct {
		return word
	}
	punct := punctSet[rnd.Intn(len(punctSet))]
	return word + string(punct)
}

func applyNumber(rnd *rand.Rand, word string, numberPct float64) string {
	if numberPct <= 0 {
		return word
	}
	if rnd.Float64() >= numberPct {
		return word
	}
	return strconv.Itoa(rnd.Intn(maxNumberToken))
}
