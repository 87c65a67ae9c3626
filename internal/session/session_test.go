package session

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/verte-zerg/typetest/internal/generator"
	"github.com/verte-zerg/typetest/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixedSource cycles through words.
func fixedSource(words ...string) WordSource {
	return func(_ model.TestConfig, n int) ([]string, error) {
		out := make([]string, n)
		for i := range out {
			out[i] = words[i%len(words)]
		}
		return out, nil
	}
}

func wordsConfig(n int) model.TestConfig {
	return model.TestConfig{Mode: model.ModeWords, WordTarget: n, Language: "english", Difficulty: model.DifficultyNormal}
}

func timeConfig(sec int) model.TestConfig {
	return model.TestConfig{Mode: model.ModeTime, TimeLimit: sec, Language: "english", Difficulty: model.DifficultyNormal}
}

func newTestSession(t *testing.T, cfg model.TestConfig, src WordSource, opts ...Option) (*Session, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock), WithTickInterval(0)}, opts...)
	s, err := New(cfg, src, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, clock
}

func typeString(s *Session, clock *fakeClock, text string) {
	for _, r := range text {
		if clock != nil {
			clock.Advance(100 * time.Millisecond)
		}
		s.ProcessInput(CharKey(r))
	}
}

func TestTwoCorrectWordsComplete(t *testing.T) {
	s, _ := newTestSession(t, wordsConfig(2), fixedSource("the", "cat"))
	typeString(s, nil, "the cat ")

	snap := s.Snapshot()
	assert.Equal(t, Complete, snap.State)
	assert.Equal(t, 2, snap.WordIndex)
	assert.Equal(t, WordCorrect, snap.Words[0].Status)
	assert.Equal(t, WordCorrect, snap.Words[1].Status)
}

func TestIncorrectLetterMarksWord(t *testing.T) {
	s, _ := newTestSession(t, wordsConfig(3), fixedSource("the"))
	typeString(s, nil, "txe ")

	w := s.Snapshot().Words[0]
	assert.Equal(t, LetterCorrect, w.Letters[0].Status)
	assert.Equal(t, LetterIncorrect, w.Letters[1].Status)
	assert.Equal(t, 'x', w.Letters[1].Typed)
	assert.Equal(t, LetterCorrect, w.Letters[2].Status)
	assert.Equal(t, WordIncorrect, w.Status)
}

func TestExtraLetter(t *testing.T) {
	s, _ := newTestSession(t, wordsConfig(3), fixedSource("cat"))
	typeString(s, nil, "catt")
	assert.Equal(t, 4, s.Snapshot().LetterIndex)

	s.ProcessInput(SpaceKey())
	s.mu.Lock()
	c := s.counts()
	s.mu.Unlock()
	// 4 letters typed for "cat" plus the boundary space.
	assert.Equal(t, 5, c.Total())
	assert.Equal(t, 3, c.Correct)
	assert.Equal(t, 1, c.Extra)

	w := s.Snapshot().Words[0]
	require.Len(t, w.Letters, 4)
	assert.Equal(t, LetterExtra, w.Letters[3].Status)
	assert.Equal(t, 't', w.Letters[3].Typed)
	assert.Equal(t, WordIncorrect, w.Status)
}

func TestHideExtraLettersDropsKeystrokes(t *testing.T) {
	cfg := wordsConfig(3)
	cfg.HideExtraLetters = true
	s, _ := newTestSession(t, cfg, fixedSource("cat"))
	typeString(s, nil, "cat")
	assert.False(t, s.ProcessInput(CharKey('s')))

	snap := s.Snapshot()
	assert.Equal(t, 3, snap.LetterIndex)
	assert.Len(t, snap.Words[0].Letters, 3)
}

func TestMissingLetterMarksWordIncorrect(t *testing.T) {
	s, _ := newTestSession(t, wordsConfig(3), fixedSource("cat"))
	typeString(s, nil, "ca ")

	snap := s.Snapshot()
	assert.Equal(t, WordIncorrect, snap.Words[0].Status)
	assert.Equal(t, LetterPending, snap.Words[0].Letters[2].Status)
	s.mu.Lock()
	assert.Equal(t, 1, s.counts().Missed)
	s.mu.Unlock()
}

func TestBackspaceRevertsLetter(t *testing.T) {
	s, _ := newTestSession(t, wordsConfig(3), fixedSource("cat"))
	typeString(s, nil, "cx")
	require.True(t, s.ProcessInput(BackspaceKey()))

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.LetterIndex)
	assert.Equal(t, LetterPending, snap.Words[0].Letters[1].Status)
	assert.Zero(t, snap.Words[0].Letters[1].Typed)
	assert.Equal(t, LetterCorrect, snap.Words[0].Letters[0].Status)
}

func TestBackspaceRemovesExtraLetter(t *testing.T) {
	s, _ := newTestSession(t, wordsConfig(3), fixedSource("cat"))
	typeString(s, nil, "catxy")
	s.ProcessInput(BackspaceKey())

	snap := s.Snapshot()
	assert.Equal(t, 4, snap.LetterIndex)
	assert.Len(t, snap.Words[0].Letters, 4)
}

func TestBackspaceAtWordStartWithoutFreedom(t *testing.T) {
	s, _ := newTestSession(t, wordsConfig(3), fixedSource("cat"))
	typeString(s, nil, "cat ")
	assert.False(t, s.ProcessInput(BackspaceKey()))

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.WordIndex)
	assert.Equal(t, 0, snap.LetterIndex)
}

func TestFreedomModeReentersPreviousWord(t *testing.T) {
	cfg := wordsConfig(3)
	cfg.FreedomMode = true
	s, _ := newTestSession(t, cfg, fixedSource("cat"))
	typeString(s, nil, "cxt ")
	require.True(t, s.ProcessInput(BackspaceKey()))

	snap := s.Snapshot()
	assert.Equal(t, 0, snap.WordIndex)
	assert.Equal(t, 3, snap.LetterIndex)
	assert.Equal(t, WordPending, snap.Words[0].Status)
	// Letter statuses survive re-entry.
	assert.Equal(t, LetterIncorrect, snap.Words[0].Letters[1].Status)

	s.ProcessInput(BackspaceKey())
	s.ProcessInput(BackspaceKey())
	typeString(s, nil, "at ")
	snap = s.Snapshot()
	assert.Equal(t, WordCorrect, snap.Words[0].Status)
	assert.Equal(t, 1, snap.WordIndex)
}

func TestFreedomModeReentryStopsAtTypedLength(t *testing.T) {
	cfg := wordsConfig(3)
	cfg.FreedomMode = true
	s, _ := newTestSession(t, cfg, fixedSource("house"))
	typeString(s, nil, "ho ")
	s.ProcessInput(BackspaceKey())

	assert.Equal(t, 2, s.Snapshot().LetterIndex)
}

func TestSpaceAtWordStartIsNoop(t *testing.T) {
	s, _ := newTestSession(t, wordsConfig(2), fixedSource("the"))
	assert.True(t, s.ProcessInput(SpaceKey()), "first key activates the test")

	snap := s.Snapshot()
	assert.Equal(t, Active, snap.State)
	assert.Equal(t, 0, snap.WordIndex)

	typeString(s, nil, "the ")
	assert.False(t, s.ProcessInput(SpaceKey()))
	assert.Equal(t, 1, s.Snapshot().WordIndex)
}

func TestInvalidKeysIgnored(t *testing.T) {
	s, _ := newTestSession(t, wordsConfig(2), fixedSource("the"))
	assert.False(t, s.ProcessInput(Key{}))
	assert.False(t, s.ProcessInput(CharKey('\t')))
	assert.Equal(t, Inactive, s.State())
}

func TestCursorInvariants(t *testing.T) {
	cfg := wordsConfig(4)
	cfg.FreedomMode = true
	s, _ := newTestSession(t, cfg, fixedSource("ab", "cde"))
	keys := []Key{
		BackspaceKey(), CharKey('a'), BackspaceKey(), BackspaceKey(), SpaceKey(),
		CharKey('a'), CharKey('b'), CharKey('c'), SpaceKey(), BackspaceKey(),
		BackspaceKey(), BackspaceKey(), BackspaceKey(), BackspaceKey(), CharKey('z'),
		SpaceKey(), CharKey('c'), SpaceKey(), CharKey('x'), SpaceKey(), CharKey('q'), SpaceKey(),
	}
	for _, k := range keys {
		s.ProcessInput(k)
		snap := s.Snapshot()
		require.GreaterOrEqual(t, snap.LetterIndex, 0)
		require.LessOrEqual(t, snap.WordIndex, len(snap.Words))
	}
	assert.Equal(t, Complete, s.State())
}

func TestWordsModeTerminatesExactlyAtTarget(t *testing.T) {
	s, _ := newTestSession(t, wordsConfig(3), fixedSource("a"))
	typeString(s, nil, "a a ")
	assert.Equal(t, Active, s.State())
	typeString(s, nil, "a")
	assert.Equal(t, Active, s.State())
	s.ProcessInput(SpaceKey())
	assert.Equal(t, Complete, s.State())

	assert.False(t, s.ProcessInput(CharKey('a')))
	assert.Equal(t, 3, s.Snapshot().WordIndex)
}

func TestLiveStatsFormula(t *testing.T) {
	s, clock := newTestSession(t, wordsConfig(10), fixedSource("hello"))
	s.ProcessInput(CharKey('h'))
	assert.Equal(t, 100, s.Snapshot().Live.Accuracy, "placeholder before epsilon")
	assert.Equal(t, 0, s.Snapshot().Live.WPM)

	// 4 more letters over 12 seconds: 5 correct chars at 0.2 min = 5 WPM.
	for _, r := range "ello" {
		clock.Advance(3 * time.Second)
		s.ProcessInput(CharKey(r))
	}
	live := s.Snapshot().Live
	assert.Equal(t, 5, live.WPM)
	assert.Equal(t, 5, live.RawWPM)
	assert.Equal(t, 100, live.Accuracy)

	clock.Advance(3 * time.Second)
	s.Tick()
	// (5/5)/0.25 = 4
	assert.Equal(t, 4, s.Snapshot().Live.WPM)
}

func TestTimeModeTerminatesOnTick(t *testing.T) {
	var results []model.TestResult
	s, clock := newTestSession(t, timeConfig(2), fixedSource("go"),
		WithFinish(func(r model.TestResult) { results = append(results, r) }))
	typeString(s, clock, "go go")

	clock.Advance(1 * time.Second)
	s.Tick()
	assert.Equal(t, Active, s.State())

	clock.Advance(600 * time.Millisecond)
	s.Tick()
	assert.Equal(t, Complete, s.State())
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].ElapsedSeconds)

	assert.False(t, s.ProcessInput(CharKey('g')))
	s.Tick()
	assert.Len(t, results, 1, "finish is delivered once")
}

func TestTimeModeKeystrokeAfterDeadline(t *testing.T) {
	s, clock := newTestSession(t, timeConfig(1), fixedSource("go"))
	s.ProcessInput(CharKey('g'))
	clock.Advance(time.Second)
	assert.False(t, s.ProcessInput(CharKey('o')))
	assert.Equal(t, Complete, s.State())
	assert.Equal(t, 1, s.Snapshot().LetterIndex)
}

func TestTimeModeRefillsWords(t *testing.T) {
	s, _ := newTestSession(t, timeConfig(1), fixedSource("a"))
	initial := len(s.Snapshot().Words)
	assert.Equal(t, generator.WordCount(timeConfig(1)), initial)

	for i := 0; i < initial-refillThreshold; i++ {
		typeString(s, nil, "a ")
	}
	assert.Greater(t, len(s.Snapshot().Words), initial)
}

func TestFinishProducesResult(t *testing.T) {
	s, clock := newTestSession(t, wordsConfig(10), fixedSource("the", "cat"), WithUsername("alice"))
	_, ok := s.Finish()
	assert.False(t, ok, "nothing to finish before the first key")

	typeString(s, clock, "the cxt")
	clock.Advance(300 * time.Millisecond)
	res, ok := s.Finish()
	require.True(t, ok)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "alice", res.Username)
	assert.Equal(t, 6, res.CorrectChars)
	assert.Equal(t, 1, res.IncorrectChars)
	assert.Equal(t, 7, res.Characters)
	assert.Equal(t, 1, res.ElapsedSeconds)
	assert.Equal(t, int64(900), res.DurationMs)
	assert.Equal(t, wordsConfig(10), res.Config)
	assert.Equal(t, WordIncorrect, s.Snapshot().Words[1].Status)

	stored, ok := s.Result()
	require.True(t, ok)
	assert.Equal(t, res.ID, stored.ID)

	var charT model.CharStats
	for _, cs := range res.CharStats {
		if cs.Char == "t" {
			charT = cs
		}
	}
	assert.Equal(t, 2, charT.Correct)
	// The opening keystroke has no predecessor to measure against.
	assert.Equal(t, int64(1), charT.LatencyCount)
	assert.Equal(t, int64(100), charT.LatencySumMs)
}

func TestConsistencyInResult(t *testing.T) {
	s, clock := newTestSession(t, wordsConfig(50), fixedSource("abcd"))
	for i := 0; i < 4; i++ {
		typeString(s, nil, "abcd ")
		clock.Advance(time.Second)
	}
	res, ok := s.Finish()
	require.True(t, ok)
	assert.Equal(t, 100, res.Consistency)
}

func TestResetReturnsToInactive(t *testing.T) {
	var snaps []Snapshot
	s, _ := newTestSession(t, wordsConfig(2), fixedSource("the"),
		WithNotifier(func(snap Snapshot) { snaps = append(snaps, snap) }))
	typeString(s, nil, "th")
	require.NoError(t, s.Reset())

	snap := s.Snapshot()
	assert.Equal(t, Inactive, snap.State)
	assert.Equal(t, 0, snap.WordIndex)
	assert.Equal(t, 0, snap.LetterIndex)
	assert.Equal(t, LetterPending, snap.Words[0].Letters[0].Status)
	assert.Equal(t, 100, snap.Live.Accuracy)
	require.Len(t, snaps, 1)
	_, ok := s.Result()
	assert.False(t, ok)
}

func TestReconfigure(t *testing.T) {
	s, _ := newTestSession(t, wordsConfig(2), fixedSource("the"))
	require.NoError(t, s.Reconfigure(wordsConfig(5)))
	assert.Len(t, s.Snapshot().Words, 5)

	assert.Error(t, s.Reconfigure(model.TestConfig{Mode: model.ModeWords}))

	s.Start()
	assert.ErrorIs(t, s.Reconfigure(wordsConfig(3)), ErrNotInactive)
	assert.Equal(t, 5, s.Config().WordTarget)
}

func TestEmptyCorpusFailsFast(t *testing.T) {
	empty := func(model.TestConfig, int) ([]string, error) { return nil, nil }
	_, err := New(wordsConfig(2), empty, WithTickInterval(0))
	assert.ErrorIs(t, err, generator.ErrEmptyCorpus)

	failing := func(model.TestConfig, int) ([]string, error) { return nil, errors.New("boom") }
	_, err = New(wordsConfig(2), failing, WithTickInterval(0))
	assert.Error(t, err)
}

func TestTickerStopsOnComplete(t *testing.T) {
	done := make(chan model.TestResult, 1)
	s, err := New(timeConfig(1), fixedSource("a"),
		WithTickInterval(5*time.Millisecond),
		WithFinish(func(r model.TestResult) { done <- r }))
	require.NoError(t, err)
	defer s.Close()

	require.True(t, s.Start())
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("time mode did not finish")
	}
	assert.Equal(t, Complete, s.State())
	// goleak in TestMain verifies the ticker goroutine exited.
}

func TestTickerStopsOnReset(t *testing.T) {
	ticks := make(chan struct{}, 100)
	s, err := New(timeConfig(60), fixedSource("a"),
		WithTickInterval(time.Millisecond),
		WithNotifier(func(Snapshot) {
			select {
			case ticks <- struct{}{}:
			default:
			}
		}))
	require.NoError(t, err)
	defer s.Close()

	s.ProcessInput(CharKey('a'))
	<-ticks
	require.NoError(t, s.Reset())
	for len(ticks) > 0 {
		<-ticks
	}
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, ticks)
	assert.Equal(t, Inactive, s.State())
}

func TestParseKey(t *testing.T) {
	k, ok := ParseKey("Backspace")
	assert.True(t, ok)
	assert.Equal(t, KeyBackspace, k.Kind)

	k, ok = ParseKey(" ")
	assert.True(t, ok)
	assert.Equal(t, KeySpace, k.Kind)

	k, ok = ParseKey("é")
	assert.True(t, ok)
	assert.Equal(t, CharKey('é'), k)

	for _, bad := range []string{"", "ab", "Enter", "\n"} {
		_, ok := ParseKey(bad)
		assert.False(t, ok, bad)
	}
}

func TestSnapshotJSON(t *testing.T) {
	s, _ := newTestSession(t, wordsConfig(2), fixedSource("ok"))
	typeString(s, nil, "x")
	raw, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"state":"active"`)
	assert.Contains(t, string(raw), `{"expected":"o","status":"incorrect","typed":"x"}`)
	assert.Contains(t, string(raw), `"wordTarget":2`)
}
