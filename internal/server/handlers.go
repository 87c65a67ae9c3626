package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verte-zerg/typetest/internal/model"
)

const maxLimit = 100

// LeaderboardEntry is one ranked result.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	Username    string    `json:"username"`
	WPM         int       `json:"wpm"`
	RawWPM      int       `json:"rawWpm"`
	Accuracy    int       `json:"accuracy"`
	Consistency int       `json:"consistency"`
	Mode        string    `json:"mode"`
	Language    string    `json:"language"`
	EndedAt     time.Time `json:"endedAt"`
}

func (s *Server) health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) postResult(c *gin.Context) {
	var result model.TestResult
	if err := c.ShouldBindJSON(&result); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid result payload"})
		return
	}
	if err := result.Config.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if result.Accuracy < 0 || result.Accuracy > 100 || result.WPM < 0 || result.RawWPM < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "statistics out of range"})
		return
	}
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.EndedAt.IsZero() {
		result.EndedAt = time.Now().UTC()
	}
	if result.StartedAt.IsZero() {
		result.StartedAt = result.EndedAt.Add(-time.Duration(result.DurationMs) * time.Millisecond)
	}
	if strings.TrimSpace(result.Username) == "" {
		result.Username = model.GuestActor
	}

	if err := s.store.InsertResult(c.Request.Context(), result); err != nil {
		s.log.Error("failed to insert result", zap.String("id", result.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save result"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": result.ID})
}

func (s *Server) listResults(c *gin.Context) {
	filter := model.ResultFilter{
		Username: c.Query("username"),
		Language: c.Query("lang"),
	}
	if raw := c.Query("mode"); raw != "" {
		mode, err := model.ParseMode(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Mode = mode
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		filter.Since = &since
	}
	last, ok := queryLimit(c, "last", 50)
	if !ok {
		return
	}
	filter.Last = last

	results, err := s.store.ListResults(c.Request.Context(), filter)
	if err != nil {
		s.log.Error("failed to list results", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list results"})
		return
	}
	if results == nil {
		results = []model.TestResult{}
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) leaderboard(c *gin.Context) {
	key := c.DefaultQuery("mode", "time-15")
	mode, value, err := model.ParseModeKey(key)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, ok := queryLimit(c, "limit", 10)
	if !ok {
		return
	}
	results, err := s.store.Leaderboard(c.Request.Context(), model.LeaderboardQuery{
		Mode:     mode,
		Value:    value,
		Language: c.Query("lang"),
		Limit:    limit,
	})
	if err != nil {
		s.log.Error("failed to load leaderboard", zap.String("mode", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load leaderboard"})
		return
	}
	c.JSON(http.StatusOK, rank(results))
}

func (s *Server) topPerformers(c *gin.Context) {
	limit, ok := queryLimit(c, "limit", 10)
	if !ok {
		return
	}
	results, err := s.store.TopPerformers(c.Request.Context(), limit)
	if err != nil {
		s.log.Error("failed to load top performers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load top performers"})
		return
	}
	c.JSON(http.StatusOK, rank(results))
}

func (s *Server) userStats(c *gin.Context) {
	username := c.Param("username")
	stats, err := s.store.UserStats(c.Request.Context(), username)
	if err != nil {
		s.log.Error("failed to load user stats", zap.String("username", username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user stats"})
		return
	}
	if stats.TotalTests == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no results for user"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func rank(results []model.TestResult) []LeaderboardEntry {
	out := make([]LeaderboardEntry, len(results))
	for i, r := range results {
		out[i] = LeaderboardEntry{
			Rank:        i + 1,
			Username:    r.Username,
			WPM:         r.WPM,
			RawWPM:      r.RawWPM,
			Accuracy:    r.Accuracy,
			Consistency: r.Consistency,
			Mode:        r.Config.ModeKey(),
			Language:    r.Config.Language,
			EndedAt:     r.EndedAt,
		}
	}
	return out
}

// queryLimit parses a positive limit capped at maxLimit. It writes a 400 and
// returns false on bad input.
func queryLimit(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, true
}
