// Package model defines shared data structures.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Mode selects how a test terminates.
type Mode string

const (
	// ModeTime ends the test once the configured duration elapses.
	ModeTime Mode = "time"
	// ModeWords ends the test once the configured number of words is typed.
	ModeWords Mode = "words"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeTime:
		return ModeTime, nil
	case ModeWords:
		return ModeWords, nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected time or words)", s)
	}
}

// Difficulty is carried with every result. Only "normal" semantics are enforced.
type Difficulty string

const (
	DifficultyNormal Difficulty = "normal"
	DifficultyExpert Difficulty = "expert"
	DifficultyMaster Difficulty = "master"
)

// ParseDifficulty validates a difficulty name.
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case DifficultyNormal, "":
		return DifficultyNormal, nil
	case DifficultyExpert:
		return DifficultyExpert, nil
	case DifficultyMaster:
		return DifficultyMaster, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
}

// GuestActor is the identity recorded for results of anonymous users.
const GuestActor = "Guest"

// TestConfig is the immutable settings snapshot a session is created with.
type TestConfig struct {
	Mode             Mode       `json:"mode" yaml:"mode"`
	TimeLimit        int        `json:"time,omitempty" yaml:"time,omitempty"`
	WordTarget       int        `json:"words,omitempty" yaml:"words,omitempty"`
	Language         string     `json:"language" yaml:"language"`
	Punctuation      bool       `json:"punctuation" yaml:"punctuation"`
	Numbers          bool       `json:"numbers" yaml:"numbers"`
	FreedomMode      bool       `json:"freedomMode" yaml:"freedom_mode"`
	HideExtraLetters bool       `json:"hideExtraLetters" yaml:"hide_extra_letters"`
	Difficulty       Difficulty `json:"difficulty" yaml:"difficulty"`
}

// Validate reports the first invalid field.
func (c TestConfig) Validate() error {
	switch c.Mode {
	case ModeTime:
		if c.TimeLimit <= 0 {
			return fmt.Errorf("--time must be > 0")
		}
	case ModeWords:
		if c.WordTarget <= 0 {
			return fmt.Errorf("--words must be > 0")
		}
	default:
		return fmt.Errorf("--mode must be time or words")
	}
	if strings.TrimSpace(c.Language) == "" {
		return fmt.Errorf("--lang must not be empty")
	}
	if _, err := ParseDifficulty(string(c.Difficulty)); err != nil {
		return fmt.Errorf("--difficulty: %w", err)
	}
	return nil
}

// ModeKey returns the leaderboard key such as "time-15" or "words-25".
func (c TestConfig) ModeKey() string {
	if c.Mode == ModeWords {
		return string(ModeWords) + "-" + strconv.Itoa(c.WordTarget)
	}
	return string(ModeTime) + "-" + strconv.Itoa(c.TimeLimit)
}

// ParseModeKey splits a leaderboard key into mode and value.
func ParseModeKey(key string) (Mode, int, error) {
	name, value, ok := strings.Cut(key, "-")
	if !ok {
		return "", 0, fmt.Errorf("invalid mode key %q", key)
	}
	mode, err := ParseMode(name)
	if err != nil {
		return "", 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return "", 0, fmt.Errorf("invalid mode value in %q", key)
	}
	return mode, n, nil
}

// PracticeConfig defines TUI practice settings on top of the test snapshot.
type PracticeConfig struct {
	Test       TestConfig
	Username   string
	CapsPct    float64
	FocusWeak  bool
	WeakTop    int
	WeakFactor float64
	WeakWindow int
}

// TestResult is the immutable record produced when a session completes.
type TestResult struct {
	ID             string      `json:"id" yaml:"id"`
	Username       string      `json:"username" yaml:"username"`
	StartedAt      time.Time   `json:"startedAt" yaml:"started_at"`
	EndedAt        time.Time   `json:"endedAt" yaml:"ended_at"`
	WPM            int         `json:"wpm" yaml:"wpm"`
	RawWPM         int         `json:"rawWpm" yaml:"raw_wpm"`
	Accuracy       int         `json:"accuracy" yaml:"accuracy"`
	Consistency    int         `json:"consistency" yaml:"consistency"`
	Characters     int         `json:"characters" yaml:"characters"`
	CorrectChars   int         `json:"correctChars" yaml:"correct_chars"`
	IncorrectChars int         `json:"incorrectChars" yaml:"incorrect_chars"`
	ExtraChars     int         `json:"extraChars" yaml:"extra_chars"`
	MissedChars    int         `json:"missedChars" yaml:"missed_chars"`
	ElapsedSeconds int         `json:"time" yaml:"time"`
	DurationMs     int64       `json:"durationMs" yaml:"duration_ms"`
	Config         TestConfig  `json:"config" yaml:"config"`
	CharStats      []CharStats `json:"charStats,omitempty" yaml:"char_stats,omitempty"`
}

// Errors is the number of mistyped keystrokes kept in the final text.
func (r TestResult) Errors() int {
	return r.IncorrectChars + r.ExtraChars
}

// CharStats stores per-character stats for a result.
type CharStats struct {
	Char         string `json:"char" yaml:"char"`
	Correct      int    `json:"correct" yaml:"correct"`
	Incorrect    int    `json:"incorrect" yaml:"incorrect"`
	LatencySumMs int64  `json:"latencySumMs" yaml:"latency_sum_ms"`
	LatencyCount int64  `json:"latencyCount" yaml:"latency_count"`
}

// CharAggregate aggregates character stats across results.
type CharAggregate struct {
	Char         string
	Correct      int
	Incorrect    int
	LatencySumMs int64
	LatencyCount int64
}

// ResultFilter narrows result listings.
type ResultFilter struct {
	Username string
	Language string
	Mode     Mode
	Since    *time.Time
	Last     int
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	Filter      ResultFilter
	CurveWindow int
}

// LeaderboardQuery selects one leaderboard.
type LeaderboardQuery struct {
	Mode     Mode
	Value    int
	Language string
	Limit    int
}

// UserStats summarizes all results of one user.
type UserStats struct {
	Username        string  `json:"username"`
	TotalTests      int     `json:"totalTests"`
	AverageWPM      float64 `json:"averageWpm"`
	BestWPM         int     `json:"bestWpm"`
	AverageAccuracy float64 `json:"averageAccuracy"`
}
