package stats

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/typetest/internal/model"
	"github.com/verte-zerg/typetest/internal/store"
)

func TestBuildReport(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "typetest.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		start := time.Unix(0, 0).Add(time.Duration(i) * time.Minute)
		end := start.Add(30 * time.Second)
		result := model.TestResult{
			ID:           fmt.Sprintf("r%d", i),
			Username:     "alice",
			StartedAt:    start,
			EndedAt:      end,
			WPM:          40 + i,
			Accuracy:     90,
			CorrectChars: 10,
			DurationMs:   end.Sub(start).Milliseconds(),
			Config:       model.TestConfig{Mode: model.ModeWords, WordTarget: 10, Language: "english", Difficulty: model.DifficultyNormal},
			CharStats: []model.CharStats{
				{Char: "a", Correct: 5, Incorrect: 0},
				{Char: "b", Correct: 4, Incorrect: 1},
			},
		}
		if err := st.InsertResult(ctx, result); err != nil {
			t.Fatalf("insert result: %v", err)
		}
	}

	cfg := model.StatsConfig{
		Filter:      model.ResultFilter{Language: "english"},
		CurveWindow: 2,
	}
	report, err := BuildReport(ctx, st, cfg)
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Results))
	}
	if report.Results[0].ID != "r0" {
		t.Fatalf("expected oldest first, got %s", report.Results[0].ID)
	}
	if len(report.WindowResultIDs) != 2 || report.WindowResultIDs[1] != "r2" {
		t.Fatalf("unexpected window ids: %v", report.WindowResultIDs)
	}
	for _, agg := range report.CharAggsWindow {
		if agg.Char == "b" && agg.Incorrect != 2 {
			t.Fatalf("expected 2 window errors for b, got %d", agg.Incorrect)
		}
	}
	for _, agg := range report.CharAggsAll {
		if agg.Char == "a" && agg.Correct != 15 {
			t.Fatalf("expected 15 correct a, got %d", agg.Correct)
		}
	}
}
