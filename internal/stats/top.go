package stats

import (
	"cmp"
	"slices"

	"github.com/verte-zerg/typetest/internal/model"
)

// SlowestChars returns up to n characters with the highest average latency
// between correct keystrokes. Characters without latency samples are skipped.
func SlowestChars(aggs []model.CharAggregate, n int) []string {
	if n <= 0 {
		return nil
	}
	timed := slices.DeleteFunc(slices.Clone(aggs), func(a model.CharAggregate) bool {
		return a.LatencyCount == 0 || a.Char == " "
	})
	slices.SortFunc(timed, func(a, b model.CharAggregate) int {
		if c := cmp.Compare(avgLatency(b), avgLatency(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.Char, b.Char)
	})
	out := make([]string, 0, min(n, len(timed)))
	for _, a := range timed[:min(n, len(timed))] {
		out = append(out, a.Char)
	}
	return out
}

func avgLatency(a model.CharAggregate) float64 {
	if a.LatencyCount == 0 {
		return 0
	}
	return float64(a.LatencySumMs) / float64(a.LatencyCount)
}
