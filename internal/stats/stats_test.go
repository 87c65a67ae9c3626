package stats

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/typetest/internal/model"
)

func TestComputeFormula(t *testing.T) {
	c := Counts{Correct: 40, Incorrect: 5, Extra: 1, Missed: 2, Spaces: 10}
	live, ok := Compute(c, 30*time.Second)
	if !ok {
		t.Fatalf("expected statistics to be computed")
	}
	// (50/5)/0.5 = 20, (58/5)/0.5 = 23.2, 50/58 = 86.2%
	if live.WPM != 20 || live.RawWPM != 23 || live.Accuracy != 86 {
		t.Fatalf("unexpected live stats: %+v", live)
	}
}

func TestComputeGuards(t *testing.T) {
	if _, ok := Compute(Counts{Correct: 3}, 500*time.Millisecond); ok {
		t.Fatalf("expected epsilon guard to skip update")
	}
	if _, ok := Compute(Counts{}, time.Minute); ok {
		t.Fatalf("expected no update without committed characters")
	}
	if _, ok := Compute(Counts{Correct: 1}, MinElapsed); !ok {
		t.Fatalf("expected update at the epsilon boundary")
	}
}

func TestComputeFinal(t *testing.T) {
	if got := ComputeFinal(Counts{}, time.Minute); got != DefaultLive() {
		t.Fatalf("expected defaults for empty counts, got %+v", got)
	}
	got := ComputeFinal(Counts{Correct: 4, Incorrect: 1}, 0)
	if got.WPM != 0 || got.Accuracy != 80 {
		t.Fatalf("unexpected zero-duration result: %+v", got)
	}
	got = ComputeFinal(Counts{Correct: 5}, 100*time.Millisecond)
	if got.WPM != 600 {
		t.Fatalf("expected final stats to ignore the epsilon guard, got %+v", got)
	}
}

func TestAccuracyBounds(t *testing.T) {
	for _, c := range []Counts{{Incorrect: 9}, {Correct: 9}, {Correct: 1, Extra: 3, Missed: 7}} {
		live, ok := Compute(c, time.Minute)
		if !ok {
			t.Fatalf("expected update for %+v", c)
		}
		if live.Accuracy < 0 || live.Accuracy > 100 {
			t.Fatalf("accuracy out of range: %+v", live)
		}
	}
}

func TestConsistency(t *testing.T) {
	if got := Consistency(nil); got != 100 {
		t.Fatalf("expected 100 without samples, got %d", got)
	}
	if got := Consistency([]float64{60, 60, 60, 60}); got != 100 {
		t.Fatalf("expected steady series to score 100, got %d", got)
	}
	steady := Consistency([]float64{58, 62, 60, 61, 59})
	erratic := Consistency([]float64{10, 120, 5, 90, 0})
	if steady <= erratic {
		t.Fatalf("expected steady (%d) > erratic (%d)", steady, erratic)
	}
	if erratic < 0 || steady > 100 {
		t.Fatalf("consistency out of range: %d %d", steady, erratic)
	}
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{2, 4, 6, 8}, 2)
	want := []float64{2, 3, 5, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %v want %v", i, got, want)
		}
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{1, 1, 1}); got != "+++" {
		t.Fatalf("unexpected flat sparkline %q", got)
	}
	if got := Sparkline([]float64{0, 10}); got != " @" {
		t.Fatalf("unexpected sparkline %q", got)
	}
}

func TestRenderSummaryAndTable(t *testing.T) {
	results := []model.TestResult{
		{WPM: 60, RawWPM: 70, Accuracy: 90, Consistency: 80, DurationMs: 30000, Username: "ann",
			Config: model.TestConfig{Mode: model.ModeTime, TimeLimit: 30, Language: "english"}},
		{WPM: 80, RawWPM: 84, Accuracy: 96, Consistency: 70, DurationMs: 30000, Username: "ann",
			Config: model.TestConfig{Mode: model.ModeWords, WordTarget: 25, Language: "english"}},
	}
	var buf bytes.Buffer
	if err := RenderSummary(&buf, results); err != nil {
		t.Fatalf("render summary: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Tests: 2", "Avg WPM: 70.00", "Best WPM: 80", "Avg Accuracy: 93.00%", "Time typing: 1m0s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
	buf.Reset()
	if err := RenderResultTable(&buf, results); err != nil {
		t.Fatalf("render table: %v", err)
	}
	out = buf.String()
	if !strings.Contains(out, "time-30") || !strings.Contains(out, "words-25") {
		t.Fatalf("table missing mode keys:\n%s", out)
	}
}

func TestRenderCharTable(t *testing.T) {
	var buf bytes.Buffer
	err := RenderCharTable(&buf, []model.CharAggregate{
		{Char: "a", Correct: 9, Incorrect: 1, LatencySumMs: 300, LatencyCount: 3},
		{Char: " ", Correct: 1, Incorrect: 1},
	})
	if err != nil {
		t.Fatalf("render char table: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected title, header and two rows, got %q", lines)
	}
	if !strings.HasPrefix(lines[2], "<space>") {
		t.Fatalf("expected lowest accuracy first, got %q", lines[2])
	}
}
