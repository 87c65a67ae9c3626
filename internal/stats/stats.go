// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/typetest/internal/model"
)

const sparkChars = " .:-=+*#%@"

// MinElapsed is the shortest interval live statistics are computed for.
// Below it the division by elapsed minutes blows up.
const MinElapsed = 600 * time.Millisecond

// Counts tallies committed characters.
type Counts struct {
	Correct   int
	Incorrect int
	Extra     int
	// Missed letters were skipped by an early space. They count toward
	// the total like any other committed position.
	Missed int
	// Spaces is one per completed word boundary, always counted as correct.
	Spaces int
}

// Total is every committed character including word-boundary spaces.
func (c Counts) Total() int {
	return c.Correct + c.Incorrect + c.Extra + c.Missed + c.Spaces
}

// CorrectWithSpaces is the WPM numerator.
func (c Counts) CorrectWithSpaces() int {
	return c.Correct + c.Spaces
}

// Live holds the rounded live statistics.
type Live struct {
	WPM      int `json:"wpm"`
	RawWPM   int `json:"rawWpm"`
	Accuracy int `json:"accuracy"`
}

// DefaultLive is shown before the first valid sample.
func DefaultLive() Live {
	return Live{WPM: 0, RawWPM: 0, Accuracy: 100}
}

// Compute derives live statistics. ok is false when elapsed is under
// MinElapsed or nothing was committed yet; callers keep the previous value.
func Compute(c Counts, elapsed time.Duration) (live Live, ok bool) {
	if elapsed < MinElapsed {
		return Live{}, false
	}
	total := c.Total()
	if total == 0 {
		return Live{}, false
	}
	return metrics(c, elapsed), true
}

// ComputeFinal derives the statistics recorded in a result. It has no
// elapsed floor; a zero duration yields zero speeds.
func ComputeFinal(c Counts, elapsed time.Duration) Live {
	out := DefaultLive()
	if c.Total() == 0 {
		return out
	}
	if elapsed <= 0 {
		out.Accuracy = accuracyPct(c)
		return out
	}
	return metrics(c, elapsed)
}

func metrics(c Counts, elapsed time.Duration) Live {
	minutes := elapsed.Minutes()
	return Live{
		WPM:      int(math.Round((float64(c.CorrectWithSpaces()) / 5.0) / minutes)),
		RawWPM:   int(math.Round((float64(c.Total()) / 5.0) / minutes)),
		Accuracy: accuracyPct(c),
	}
}

func accuracyPct(c Counts) int {
	return int(math.Round(float64(c.CorrectWithSpaces()) / float64(c.Total()) * 100))
}

// Consistency maps the coefficient of variation of per-interval speed
// samples into [0,100]; 100 is perfectly steady. Fewer than two samples, or
// an all-zero series, report 100.
func Consistency(samples []float64) int {
	if len(samples) < 2 {
		return 100
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	mean := sum / float64(len(samples))
	if mean <= 0 {
		return 100
	}
	var sq float64
	for _, v := range samples {
		d := v - mean
		sq += d * d
	}
	cv := math.Sqrt(sq/float64(len(samples))) / mean
	score := 100 * (1 - math.Tanh(cv+math.Pow(cv, 3)/3+math.Pow(cv, 5)/5))
	return clampPct(int(math.Round(score)))
}

func clampPct(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// Summary aggregates a list of results.
type Summary struct {
	Count          int
	AvgWPM         float64
	BestWPM        int
	AvgRawWPM      float64
	AvgAccuracy    float64
	AvgConsistency float64
	TotalTime      time.Duration
}

// Summarize computes averages and bests over results.
func Summarize(results []model.TestResult) Summary {
	s := Summary{Count: len(results)}
	if len(results) == 0 {
		return s
	}
	var wpm, raw, acc, cons float64
	for _, r := range results {
		wpm += float64(r.WPM)
		raw += float64(r.RawWPM)
		acc += float64(r.Accuracy)
		cons += float64(r.Consistency)
		if r.WPM > s.BestWPM {
			s.BestWPM = r.WPM
		}
		s.TotalTime += time.Duration(r.DurationMs) * time.Millisecond
	}
	n := float64(len(results))
	s.AvgWPM = wpm / n
	s.AvgRawWPM = raw / n
	s.AvgAccuracy = acc / n
	s.AvgConsistency = cons / n
	return s
}

// Series extracts per-result WPM and accuracy in result order.
func Series(results []model.TestResult) (wpm, accuracy []float64) {
	wpm = make([]float64, len(results))
	accuracy = make([]float64, len(results))
	for i, r := range results {
		wpm[i] = float64(r.WPM)
		accuracy[i] = float64(r.Accuracy)
	}
	return wpm, accuracy
}

// RenderSummary prints a summary block for results.
func RenderSummary(w io.Writer, results []model.TestResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No results found.")
		return err
	}
	s := Summarize(results)
	lines := []string{
		"Summary",
		fmt.Sprintf("Tests: %d", s.Count),
		fmt.Sprintf("Avg WPM: %.2f", s.AvgWPM),
		fmt.Sprintf("Best WPM: %d", s.BestWPM),
		fmt.Sprintf("Avg Raw: %.2f", s.AvgRawWPM),
		fmt.Sprintf("Avg Accuracy: %.2f%%", s.AvgAccuracy),
		fmt.Sprintf("Avg Consistency: %.2f%%", s.AvgConsistency),
		fmt.Sprintf("Time typing: %s", s.TotalTime.Round(time.Second)),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderResultTable prints one row per result.
func RenderResultTable(w io.Writer, results []model.TestResult) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No results found.")
		return err
	}
	t := newTextTable([]string{"Date", "Mode", "Lang", "WPM", "Raw", "Acc", "Cons", "Chars", "User"}, 3, 4, 5, 6)
	for _, r := range results {
		t.add(
			r.EndedAt.Local().Format("2006-01-02 15:04"),
			r.Config.ModeKey(),
			r.Config.Language,
			strconv.Itoa(r.WPM),
			strconv.Itoa(r.RawWPM),
			fmt.Sprintf("%d%%", r.Accuracy),
			fmt.Sprintf("%d%%", r.Consistency),
			CharBreakdown(r),
			r.Username,
		)
	}
	return t.write(w)
}

// CharBreakdown formats correct/incorrect/extra/missed counts.
func CharBreakdown(r model.TestResult) string {
	return fmt.Sprintf("%d/%d/%d/%d", r.CorrectChars, r.IncorrectChars, r.ExtraChars, r.MissedChars)
}

// CharRow is one formatted per-character line.
type CharRow struct {
	Char      string
	Accuracy  float64
	LatencyMs float64
	Correct   int
	Incorrect int
}

// CharRows sorts aggregates by lowest accuracy first.
func CharRows(aggs []model.CharAggregate) []CharRow {
	rows := make([]CharRow, 0, len(aggs))
	for _, agg := range aggs {
		label := agg.Char
		if label == " " {
			label = "<space>"
		}
		rows = append(rows, CharRow{
			Char:      label,
			Accuracy:  accuracy(agg),
			LatencyMs: avgLatency(agg),
			Correct:   agg.Correct,
			Incorrect: agg.Incorrect,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Accuracy == rows[j].Accuracy {
			return rows[i].Char < rows[j].Char
		}
		return rows[i].Accuracy < rows[j].Accuracy
	})
	return rows
}

// RenderCharTable prints per-character aggregates.
func RenderCharTable(w io.Writer, aggs []model.CharAggregate) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No character stats found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Per-Character"); err != nil {
		return err
	}
	t := newTextTable([]string{"Char", "Accuracy", "Avg Latency (ms)", "Correct", "Incorrect"}, 1, 2, 3, 4)
	for _, r := range CharRows(aggs) {
		t.add(
			r.Char,
			fmt.Sprintf("%.2f%%", r.Accuracy*100),
			fmt.Sprintf("%.1f", r.LatencyMs),
			strconv.Itoa(r.Correct),
			strconv.Itoa(r.Incorrect),
		)
	}
	if err := t.write(w); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
