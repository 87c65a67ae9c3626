package stats

import (
	"testing"

	"github.com/verte-zerg/typetest/internal/model"
)

func TestSlowestChars(t *testing.T) {
	aggs := []model.CharAggregate{
		{Char: "b", LatencySumMs: 600, LatencyCount: 3},
		{Char: "a", LatencySumMs: 900, LatencyCount: 3},
		{Char: "c", LatencySumMs: 100, LatencyCount: 1},
		{Char: "d"},
		{Char: " ", LatencySumMs: 5000, LatencyCount: 1},
	}
	top := SlowestChars(aggs, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 chars, got %d", len(top))
	}
	if top[0] != "a" || top[1] != "b" {
		t.Fatalf("unexpected order: %v", top)
	}
	if all := SlowestChars(aggs, 10); len(all) != 3 {
		t.Fatalf("expected chars without samples to be skipped: %v", all)
	}
}

func TestSelectWeakChars(t *testing.T) {
	aggs := []model.CharAggregate{
		{Char: "q", Correct: 1, Incorrect: 3},
		{Char: "x", Correct: 5, Incorrect: 5},
		{Char: "e", Correct: 50, Incorrect: 0},
		{Char: "z", Correct: 0, Incorrect: 1},
		{Char: " ", Correct: 0, Incorrect: 9},
	}
	weak := SelectWeakChars(aggs, 1)
	if len(weak) != 1 {
		t.Fatalf("expected one weak char, got %v", weak)
	}
	if _, ok := weak['q']; !ok {
		t.Fatalf("expected q to be weakest, got %v", weak)
	}
	all := SelectWeakChars(aggs, 0)
	if len(all) != 2 {
		t.Fatalf("expected q and x only, got %v", all)
	}
}
