package chart

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/typetest/internal/model"
	"github.com/verte-zerg/typetest/internal/stats"
)

func TestRenderHistory(t *testing.T) {
	base := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	report := stats.Report{
		Results: []model.TestResult{
			{ID: "a", EndedAt: base, WPM: 50, RawWPM: 55, Accuracy: 91},
			{ID: "b", EndedAt: base.Add(time.Hour), WPM: 62, RawWPM: 64, Accuracy: 97},
		},
		CharAggsAll: []model.CharAggregate{
			{Char: "q", Correct: 3, Incorrect: 2},
			{Char: " ", Correct: 30},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, report, 2))
	html := buf.String()
	assert.Contains(t, html, "Speed Over Time")
	assert.Contains(t, html, "Weakest Characters")
	assert.Contains(t, html, "WPM avg(2)")
}

func TestRenderWithoutResults(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, stats.Report{}, 5))
	assert.Zero(t, buf.Len())
}
