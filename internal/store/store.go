// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/typetest/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Store wraps SQLite access for test results.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for skipped rows.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between
	// the practice UI and asynchronous result saves.
	db.SetMaxOpenConns(1)
	store := &Store{db: db, log: zap.NewNop()}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			mode TEXT NOT NULL,
			time_limit INTEGER NOT NULL,
			word_target INTEGER NOT NULL,
			lang TEXT NOT NULL,
			punctuation INTEGER NOT NULL,
			numbers INTEGER NOT NULL,
			freedom INTEGER NOT NULL,
			hide_extra INTEGER NOT NULL,
			difficulty TEXT NOT NULL,
			wpm INTEGER NOT NULL,
			raw_wpm INTEGER NOT NULL,
			accuracy INTEGER NOT NULL,
			consistency INTEGER NOT NULL,
			characters INTEGER NOT NULL,
			correct_chars INTEGER NOT NULL,
			incorrect_chars INTEGER NOT NULL,
			extra_chars INTEGER NOT NULL,
			missed_chars INTEGER NOT NULL,
			elapsed_seconds INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS result_char_stats (
			result_id TEXT NOT NULL,
			char TEXT NOT NULL,
			correct INTEGER NOT NULL,
			incorrect INTEGER NOT NULL,
			latency_sum_ms INTEGER NOT NULL,
			latency_count INTEGER NOT NULL,
			PRIMARY KEY (result_id, char)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_ended_at ON results(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_results_username ON results(username);`,
		`CREATE INDEX IF NOT EXISTS idx_results_board ON results(mode, lang, wpm);`,
		`CREATE INDEX IF NOT EXISTS idx_result_char_stats_char ON result_char_stats(char);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const resultColumns = `id, username, started_at, ended_at, mode, time_limit, word_target, lang,
	punctuation, numbers, freedom, hide_extra, difficulty, wpm, raw_wpm, accuracy, consistency,
	characters, correct_chars, incorrect_chars, extra_chars, missed_chars, elapsed_seconds, duration_ms`

// InsertResult stores a completed result and its per-character stats.
func (s *Store) InsertResult(ctx context.Context, r model.TestResult) (err error) {
	if r.ID == "" {
		return fmt.Errorf("result id is empty")
	}
	if r.Username == "" {
		r.Username = model.GuestActor
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	cfg := r.Config
	_, err = tx.ExecContext(ctx,
		`INSERT INTO results (`+resultColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.Username,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.EndedAt.UTC().Format(time.RFC3339Nano),
		string(cfg.Mode),
		cfg.TimeLimit,
		cfg.WordTarget,
		cfg.Language,
		cfg.Punctuation,
		cfg.Numbers,
		cfg.FreedomMode,
		cfg.HideExtraLetters,
		string(cfg.Difficulty),
		r.WPM,
		r.RawWPM,
		r.Accuracy,
		r.Consistency,
		r.Characters,
		r.CorrectChars,
		r.IncorrectChars,
		r.ExtraChars,
		r.MissedChars,
		r.ElapsedSeconds,
		r.DurationMs,
	)
	if err != nil {
		return err
	}

	if len(r.CharStats) > 0 {
		stmt, perr := tx.PrepareContext(ctx,
			`INSERT INTO result_char_stats (result_id, char, correct, incorrect, latency_sum_ms, latency_count)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if perr != nil {
			err = perr
			return err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, cs := range r.CharStats {
			if _, err = stmt.ExecContext(ctx, r.ID, cs.Char, cs.Correct, cs.Incorrect, cs.LatencySumMs, cs.LatencyCount); err != nil {
				return err
			}
		}
	}

	err = tx.Commit()
	return err
}

// GetResult loads one result with its per-character stats.
func (s *Store) GetResult(ctx context.Context, id string) (model.TestResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+resultColumns+` FROM results WHERE id = ?`, id)
	if err != nil {
		return model.TestResult{}, err
	}
	results, err := s.scanResults(rows)
	if err != nil {
		return model.TestResult{}, err
	}
	if len(results) == 0 {
		return model.TestResult{}, ErrNotFound
	}
	result := results[0]
	chars, err := s.listCharStats(ctx, id)
	if err != nil {
		return model.TestResult{}, err
	}
	result.CharStats = chars
	return result, nil
}

// ListResults returns results matching the filter, oldest first. Last keeps
// only the most recent N.
func (s *Store) ListResults(ctx context.Context, f model.ResultFilter) ([]model.TestResult, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if f.Username != "" {
		clauses = append(clauses, "username = ?")
		args = append(args, f.Username)
	}
	if f.Language != "" {
		clauses = append(clauses, "lang = ?")
		args = append(args, f.Language)
	}
	if f.Mode != "" {
		clauses = append(clauses, "mode = ?")
		args = append(args, string(f.Mode))
	}
	if f.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT %s FROM results WHERE %s ORDER BY ended_at DESC`,
		resultColumns, strings.Join(clauses, " AND "))
	if f.Last > 0 {
		query += " LIMIT ?"
		args = append(args, f.Last)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	results, err := s.scanResults(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}

// Leaderboard returns the fastest results for one mode/value/language.
func (s *Store) Leaderboard(ctx context.Context, q model.LeaderboardQuery) ([]model.TestResult, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	clauses := []string{"mode = ?"}
	args := []any{string(q.Mode)}
	switch q.Mode {
	case model.ModeTime:
		clauses = append(clauses, "time_limit = ?")
		args = append(args, q.Value)
	case model.ModeWords:
		clauses = append(clauses, "word_target = ?")
		args = append(args, q.Value)
	default:
		return nil, fmt.Errorf("unsupported leaderboard mode %q", q.Mode)
	}
	if q.Language != "" {
		clauses = append(clauses, "lang = ?")
		args = append(args, q.Language)
	}
	args = append(args, q.Limit)
	query := fmt.Sprintf(`SELECT %s FROM results WHERE %s ORDER BY wpm DESC, accuracy DESC, ended_at ASC LIMIT ?`,
		resultColumns, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return s.scanResults(rows)
}

// TopPerformers returns the fastest results across every mode.
func (s *Store) TopPerformers(ctx context.Context, limit int) ([]model.TestResult, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+resultColumns+` FROM results ORDER BY wpm DESC, ended_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return s.scanResults(rows)
}

// UserStats aggregates every result of one user. Averages are rounded to two decimals.
func (s *Store) UserStats(ctx context.Context, username string) (model.UserStats, error) {
	stats := model.UserStats{Username: username}
	var avgWPM, avgAcc sql.NullFloat64
	var best sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(wpm), MAX(wpm), AVG(accuracy) FROM results WHERE username = ?`,
		username,
	).Scan(&stats.TotalTests, &avgWPM, &best, &avgAcc)
	if err != nil {
		return model.UserStats{}, err
	}
	if stats.TotalTests == 0 {
		return stats, nil
	}
	stats.AverageWPM = round2(avgWPM.Float64)
	stats.BestWPM = int(best.Int64)
	stats.AverageAccuracy = round2(avgAcc.Float64)
	return stats, nil
}

// GetWeakChars aggregates character stats over the most recent results.
func (s *Store) GetWeakChars(ctx context.Context, window int, lang string) ([]model.CharAggregate, error) {
	if window <= 0 {
		return nil, nil
	}
	query := `WITH recent AS (
		SELECT id FROM results
		WHERE (? = '' OR lang = ?)
		ORDER BY ended_at DESC
		LIMIT ?
	)
	SELECT cs.char, SUM(cs.correct), SUM(cs.incorrect), SUM(cs.latency_sum_ms), SUM(cs.latency_count)
	FROM result_char_stats cs
	JOIN recent r ON r.id = cs.result_id
	GROUP BY cs.char`

	rows, err := s.db.QueryContext(ctx, query, lang, lang, window)
	if err != nil {
		return nil, err
	}
	return scanCharAggregates(rows)
}

// ListCharAggregates aggregates per-character stats across results.
func (s *Store) ListCharAggregates(ctx context.Context, resultIDs []string) ([]model.CharAggregate, error) {
	if len(resultIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(resultIDs))
	args := make([]any, len(resultIDs))
	for i, id := range resultIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT char, SUM(correct), SUM(incorrect), SUM(latency_sum_ms), SUM(latency_count)
		FROM result_char_stats
		WHERE result_id IN (%s)
		GROUP BY char`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanCharAggregates(rows)
}

func (s *Store) listCharStats(ctx context.Context, id string) ([]model.CharStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT char, correct, incorrect, latency_sum_ms, latency_count
		 FROM result_char_stats WHERE result_id = ? ORDER BY char`, id)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	var out []model.CharStats
	for rows.Next() {
		var cs model.CharStats
		if err := rows.Scan(&cs.Char, &cs.Correct, &cs.Incorrect, &cs.LatencySumMs, &cs.LatencyCount); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// scanResults closes rows. Rows with unparseable timestamps or settings are
// logged and skipped so one corrupt record never hides the rest of the history.
func (s *Store) scanResults(rows *sql.Rows) ([]model.TestResult, error) {
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var results []model.TestResult
	for rows.Next() {
		var (
			r                  model.TestResult
			startedAt, endedAt string
			mode, difficulty   string
		)
		if err := rows.Scan(
			&r.ID, &r.Username, &startedAt, &endedAt, &mode,
			&r.Config.TimeLimit, &r.Config.WordTarget, &r.Config.Language,
			&r.Config.Punctuation, &r.Config.Numbers, &r.Config.FreedomMode, &r.Config.HideExtraLetters,
			&difficulty, &r.WPM, &r.RawWPM, &r.Accuracy, &r.Consistency,
			&r.Characters, &r.CorrectChars, &r.IncorrectChars, &r.ExtraChars, &r.MissedChars,
			&r.ElapsedSeconds, &r.DurationMs,
		); err != nil {
			return nil, err
		}
		if err := decodeRow(&r, startedAt, endedAt, mode, difficulty); err != nil {
			s.log.Warn("skipping malformed result row", zap.String("id", r.ID), zap.Error(err))
			continue
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func decodeRow(r *model.TestResult, startedAt, endedAt, mode, difficulty string) error {
	var err error
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return fmt.Errorf("started_at: %w", err)
	}
	if r.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
		return fmt.Errorf("ended_at: %w", err)
	}
	if r.Config.Mode, err = model.ParseMode(mode); err != nil {
		return err
	}
	if r.Config.Difficulty, err = model.ParseDifficulty(difficulty); err != nil {
		return err
	}
	return nil
}

func scanCharAggregates(rows *sql.Rows) ([]model.CharAggregate, error) {
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.CharAggregate
	for rows.Next() {
		var agg model.CharAggregate
		if err := rows.Scan(&agg.Char, &agg.Correct, &agg.Incorrect, &agg.LatencySumMs, &agg.LatencyCount); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
