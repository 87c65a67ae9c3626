package statsui

import (
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/typetest/internal/model"
	"github.com/verte-zerg/typetest/internal/store"
)

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "typetest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	langs := []string{"english", "english", "german"}
	for i, lang := range langs {
		r := model.TestResult{
			ID:        "r" + string(rune('0'+i)),
			Username:  "ana",
			StartedAt: base.Add(time.Duration(i) * time.Hour),
			EndedAt:   base.Add(time.Duration(i)*time.Hour + 15*time.Second),
			Config: model.TestConfig{
				Mode:       model.ModeTime,
				TimeLimit:  15,
				Language:   lang,
				Difficulty: model.DifficultyNormal,
			},
			WPM:        50 + i*10,
			RawWPM:     55 + i*10,
			Accuracy:   95,
			DurationMs: 15000,
			CharStats: []model.CharStats{
				{Char: "e", Correct: 20, Incorrect: 2, LatencySumMs: 2000, LatencyCount: 20},
			},
		}
		require.NoError(t, st.InsertResult(t.Context(), r))
	}
	return st
}

func TestOverviewShowsSummary(t *testing.T) {
	m := NewModel(seededStore(t), model.StatsConfig{CurveWindow: 2})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	require.Len(t, m.report.Results, 3)
	view := m.View()
	assert.Contains(t, view, "Overview")
	assert.Contains(t, view, "Best WPM")
	assert.Contains(t, view, "WPM avg(2)")
}

func TestTabsCycle(t *testing.T) {
	m := NewModel(seededStore(t), model.StatsConfig{})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, tabResults, m.activeTab)
	assert.Contains(t, m.View(), "time-15")

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, tabChars, m.activeTab)
	assert.Contains(t, m.View(), "Avg Latency")

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, tabOverview, m.activeTab)

	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, tabChars, m.activeTab)
}

func TestFilterFormAppliesLanguage(t *testing.T) {
	m := NewModel(seededStore(t), model.StatsConfig{})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}})
	require.True(t, m.filterMode)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("german")})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, m.filterMode)
	assert.Equal(t, "german", m.cfg.Filter.Language)
	require.Len(t, m.report.Results, 1)
	assert.Equal(t, 70, m.report.Results[0].WPM)
}

func TestFilterFormRejectsBadInput(t *testing.T) {
	m := NewModel(seededStore(t), model.StatsConfig{})
	m.startFilter()
	m.filterInputs[fieldLast].SetValue("-4")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.True(t, m.filterMode)
	assert.Contains(t, m.filterError, "invalid last value")

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.filterMode)
}

func TestCurveWindowKeys(t *testing.T) {
	m := NewModel(seededStore(t), model.StatsConfig{CurveWindow: 1})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'-'}})
	assert.Equal(t, 1, m.cfg.CurveWindow)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'='}})
	assert.Equal(t, 2, m.cfg.CurveWindow)
}

func TestEmptyStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	m := NewModel(st, model.StatsConfig{})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	assert.Contains(t, m.View(), "No results found.")
}
