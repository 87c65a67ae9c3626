package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/typetest/internal/model"
)

func sampleResults() []model.TestResult {
	return []model.TestResult{{
		ID:        "abc",
		Username:  "ana",
		StartedAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		EndedAt:   time.Date(2024, 6, 1, 9, 0, 30, 0, time.UTC),
		WPM:       64,
		RawWPM:    70,
		Accuracy:  96,
		Config: model.TestConfig{
			Mode:       model.ModeTime,
			TimeLimit:  30,
			Language:   "english",
			Difficulty: model.DifficultyNormal,
		},
	}}
}

func TestWriteHistoryJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHistory(&buf, sampleResults(), "json", 0))

	var decoded []model.TestResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "abc", decoded[0].ID)
	assert.Equal(t, 30, decoded[0].Config.TimeLimit)
}

func TestWriteHistoryYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHistory(&buf, sampleResults(), "yaml", 0))

	var decoded []map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "ana", decoded[0]["username"])
	assert.Equal(t, 64, decoded[0]["wpm"])
}

func TestWriteHistoryEmptyJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHistory(&buf, nil, "json", 0))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}

func TestWriteHistoryTableTruncates(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeHistory(&buf, sampleResults(), "table", 20))

	out := buf.String()
	assert.Contains(t, out, "Summary")
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		assert.LessOrEqual(t, len(line), 20, line)
	}
}

func TestWriteHistoryRejectsFormat(t *testing.T) {
	assert.Error(t, writeHistory(&bytes.Buffer{}, nil, "xml", 0))
}

func TestFilterFlags(t *testing.T) {
	f := filterFlags{user: " ana ", mode: "words", since: "2024-06-01", last: 5}
	filter, err := f.filter()
	require.NoError(t, err)
	assert.Equal(t, "ana", filter.Username)
	assert.Equal(t, model.ModeWords, filter.Mode)
	require.NotNil(t, filter.Since)
	assert.Equal(t, 5, filter.Last)

	_, err = (&filterFlags{mode: "zen"}).filter()
	assert.Error(t, err)
	_, err = (&filterFlags{last: -1}).filter()
	assert.Error(t, err)
}

func TestPracticeConfigValidation(t *testing.T) {
	practiceMode, practiceTime, practiceLang, practiceDifficulty = "time", 15, "english", "normal"
	t.Cleanup(func() {
		practiceMode, practiceTime, practiceLang, practiceDifficulty = defaultMode, defaultTime, defaultLang, defaultDifficulty
	})

	cfg, err := practiceConfig()
	require.NoError(t, err)
	assert.Equal(t, "time-15", cfg.Test.ModeKey())
	assert.Zero(t, cfg.Test.WordTarget)

	practiceTime = 0
	_, err = practiceConfig()
	assert.EqualError(t, err, "--time must be > 0")
}

func TestPracticeConfigCaps(t *testing.T) {
	practiceMode, practiceTime, practiceLang, practiceDifficulty = "time", 15, "english", "normal"
	t.Cleanup(func() {
		practiceMode, practiceTime, practiceLang, practiceDifficulty = defaultMode, defaultTime, defaultLang, defaultDifficulty
		practiceCaps = 0
	})

	practiceCaps = 0.25
	cfg, err := practiceConfig()
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.CapsPct)

	practiceCaps = 1.5
	_, err = practiceConfig()
	assert.EqualError(t, err, "--caps must be between 0 and 1")
}

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	tmpl := defaultConfigTemplate()
	assert.Contains(t, tmpl, "[practice]")
	assert.Contains(t, tmpl, "[remote]")
	assert.Contains(t, tmpl, "[server]")
}
