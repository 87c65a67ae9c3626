package stats

import (
	"cmp"
	"slices"

	"github.com/verte-zerg/typetest/internal/model"
)

// minWeakSamples keeps rarely typed characters out of the weak set.
const minWeakSamples = 3

// SelectWeakChars returns the top lowest-accuracy characters. Characters typed
// without a single mistake, or fewer than minWeakSamples times, are never weak.
// top <= 0 selects every candidate.
func SelectWeakChars(aggs []model.CharAggregate, top int) map[rune]struct{} {
	candidates := slices.DeleteFunc(slices.Clone(aggs), func(a model.CharAggregate) bool {
		return a.Incorrect == 0 || a.Correct+a.Incorrect < minWeakSamples || a.Char == "" || a.Char == " "
	})
	slices.SortFunc(candidates, func(a, b model.CharAggregate) int {
		if c := cmp.Compare(accuracy(a), accuracy(b)); c != 0 {
			return c
		}
		return cmp.Compare(a.Char, b.Char)
	})
	if top > 0 && top < len(candidates) {
		candidates = candidates[:top]
	}
	weak := make(map[rune]struct{}, len(candidates))
	for _, a := range candidates {
		weak[[]rune(a.Char)[0]] = struct{}{}
	}
	return weak
}

func accuracy(a model.CharAggregate) float64 {
	total := a.Correct + a.Incorrect
	if total == 0 {
		return 1
	}
	return float64(a.Correct) / float64(total)
}
