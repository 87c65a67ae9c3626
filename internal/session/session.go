// Package session implements the typing test state machine: it turns a
// stream of keystrokes into per-letter state and derives live and final
// statistics.
package session

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verte-zerg/typetest/internal/generator"
	"github.com/verte-zerg/typetest/internal/model"
	"github.com/verte-zerg/typetest/internal/stats"
)

// ErrNotInactive is returned by Reconfigure once a test has started.
var ErrNotInactive = errors.New("session is not inactive")

// refillThreshold triggers another time-mode batch when this few words remain.
const refillThreshold = 10

// WordSource returns n words for the given config.
type WordSource func(cfg model.TestConfig, n int) ([]string, error)

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithTickInterval sets the refresh interval. Zero disables the background
// ticker; callers then drive Tick themselves.
func WithTickInterval(d time.Duration) Option {
	return func(s *Session) {
		s.tickEvery = d
	}
}

// WithNotifier registers a callback receiving a snapshot after every tick.
func WithNotifier(fn func(Snapshot)) Option {
	return func(s *Session) {
		s.notify = fn
	}
}

// WithFinish registers a callback receiving each completed result once.
func WithFinish(fn func(model.TestResult)) Option {
	return func(s *Session) {
		s.onFinish = fn
	}
}

// WithUsername sets the identity recorded on results. Blank names keep the
// guest identity.
func WithUsername(name string) Option {
	return func(s *Session) {
		if name = strings.TrimSpace(name); name != "" {
			s.username = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// Session is one typing test. All methods are safe for concurrent use;
// keystrokes and ticks are serialized by a single mutex.
type Session struct {
	mu sync.Mutex

	cfg      model.TestConfig
	src      WordSource
	clock    Clock
	log      *zap.Logger
	username string

	tickEvery time.Duration
	tick      *ticker
	epoch     uint64
	closed    bool

	notify   func(Snapshot)
	onFinish func(model.TestResult)

	words     []Word
	wordIdx   int
	letterIdx int
	state     State
	startedAt time.Time
	endedAt   time.Time
	live      stats.Live

	// keystrokes per elapsed second, for consistency.
	buckets   []int
	chars     map[rune]*model.CharStats
	lastKeyAt time.Time
	result    *model.TestResult
}

// New validates cfg, generates the first word batch and returns an
// inactive session.
func New(cfg model.TestConfig, src WordSource, opts ...Option) (*Session, error) {
	if src == nil {
		return nil, fmt.Errorf("word source is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		cfg:       cfg,
		src:       src,
		clock:     systemClock{},
		log:       zap.NewNop(),
		username:  model.GuestActor,
		tickEvery: DefaultTickInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	words, err := s.generate(cfg, generator.WordCount(cfg))
	if err != nil {
		return nil, err
	}
	s.resetLocked(words)
	return s, nil
}

// Config returns the snapshot the session runs with.
func (s *Session) Config() model.TestConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// State returns the activity flag.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the completed result, if any.
func (s *Session) Result() (model.TestResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return model.TestResult{}, false
	}
	return *s.result, true
}

// Start activates an inactive session. It reports whether the state changed.
func (s *Session) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Inactive {
		return false
	}
	s.activateLocked(s.clock.Now())
	return true
}

// Reset stops the test, generates fresh words and returns to inactive.
func (s *Session) Reset() error {
	s.mu.Lock()
	words, err := s.generate(s.cfg, generator.WordCount(s.cfg))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	t := s.stopTickerLocked()
	s.resetLocked(words)
	snap := s.snapshotLocked(s.clock.Now())
	notify := s.notify
	s.mu.Unlock()

	if t != nil {
		t.wait()
	}
	if notify != nil {
		notify(snap)
	}
	return nil
}

// Reconfigure replaces the config snapshot and regenerates words. Only an
// inactive session accepts a new config.
func (s *Session) Reconfigure(cfg model.TestConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Inactive {
		return ErrNotInactive
	}
	words, err := s.generate(cfg, generator.WordCount(cfg))
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.resetLocked(words)
	return nil
}

// ProcessInput applies one keystroke. Invalid keys and input after
// completion are ignored. The first valid key activates the test even when
// it changes nothing else. It reports whether the key was accepted.
func (s *Session) ProcessInput(k Key) bool {
	if !k.Valid() {
		return false
	}
	s.mu.Lock()
	if s.state == Complete {
		s.mu.Unlock()
		return false
	}
	now := s.clock.Now()
	var (
		accepted bool
		fin      *finished
	)
	if s.state == Inactive {
		s.activateLocked(now)
		accepted = true
	}

	if s.timeUp(now) {
		fin = s.finishLocked(now)
	} else {
		var changed bool
		switch k.Kind {
		case KeySpace:
			changed = s.space(now)
		case KeyBackspace:
			changed = s.backspace()
		case KeyChar:
			changed = s.char(k.Rune, now)
		}
		accepted = accepted || changed
		if s.cfg.Mode == model.ModeWords && s.wordIdx >= s.cfg.WordTarget {
			fin = s.finishLocked(now)
		} else {
			s.refreshLocked(now)
		}
	}
	s.mu.Unlock()

	fin.deliver()
	return accepted
}

// Finish forces termination of an active test and returns its result.
func (s *Session) Finish() (model.TestResult, bool) {
	s.mu.Lock()
	if s.state != Active {
		s.mu.Unlock()
		return model.TestResult{}, false
	}
	fin := s.finishLocked(s.clock.Now())
	res := *s.result
	s.mu.Unlock()

	fin.deliver()
	return res, true
}

// Tick recomputes live statistics and checks the time limit.
func (s *Session) Tick() {
	s.mu.Lock()
	s.tickLocked(s.epoch, false)
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(s.clock.Now())
}

// Close stops the ticker. The session stays readable.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	t := s.stopTickerLocked()
	s.mu.Unlock()
	if t != nil {
		t.wait()
	}
}

// tickLocked is entered with the lock held and releases it. The ticker
// goroutine cannot wait for itself, so it passes fromTicker.
func (s *Session) tickLocked(epoch uint64, fromTicker bool) {
	if epoch != s.epoch || s.state != Active {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	var fin *finished
	if s.timeUp(now) {
		fin = s.finishLocked(now)
		if fromTicker {
			fin.stopped = nil
		}
	} else {
		s.refreshLocked(now)
	}
	snap := s.snapshotLocked(now)
	notify := s.notify
	s.mu.Unlock()

	if notify != nil {
		notify(snap)
	}
	fin.deliver()
}

func (s *Session) generate(cfg model.TestConfig, n int) ([]string, error) {
	words, err := s.src(cfg, n)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 && n > 0 {
		return nil, generator.ErrEmptyCorpus
	}
	return words, nil
}

func (s *Session) resetLocked(texts []string) {
	s.epoch++
	s.words = make([]Word, len(texts))
	for i, w := range texts {
		s.words[i] = newWord(w)
	}
	s.wordIdx = 0
	s.letterIdx = 0
	s.state = Inactive
	s.startedAt = time.Time{}
	s.endedAt = time.Time{}
	s.live = stats.DefaultLive()
	s.buckets = nil
	s.chars = map[rune]*model.CharStats{}
	s.lastKeyAt = time.Time{}
	s.result = nil
}

func (s *Session) activateLocked(now time.Time) {
	s.state = Active
	s.startedAt = now
	s.lastKeyAt = time.Time{}
	if s.tickEvery > 0 && !s.closed {
		epoch := s.epoch
		s.tick = startTicker(s.tickEvery, func() {
			s.mu.Lock()
			s.tickLocked(epoch, true)
		})
	}
}

func (s *Session) stopTickerLocked() *ticker {
	t := s.tick
	s.tick = nil
	if t != nil {
		t.signal()
	}
	return t
}

func (s *Session) timeUp(now time.Time) bool {
	if s.state != Active || s.cfg.Mode != model.ModeTime {
		return false
	}
	return now.Sub(s.startedAt) >= time.Duration(s.cfg.TimeLimit)*time.Second
}

func (s *Session) currentWord() *Word {
	if s.wordIdx >= len(s.words) {
		return nil
	}
	return &s.words[s.wordIdx]
}

func (s *Session) space(now time.Time) bool {
	w := s.currentWord()
	if w == nil || s.letterIdx == 0 {
		return false
	}
	correct := s.letterIdx == w.expectedLen()
	for i := 0; i < s.letterIdx && correct; i++ {
		if w.Letters[i].Status != LetterCorrect {
			correct = false
		}
	}
	if correct {
		w.Status = WordCorrect
	} else {
		w.Status = WordIncorrect
	}
	s.recordKey(' ', true, now)
	s.wordIdx++
	s.letterIdx = 0
	s.refillLocked()
	return true
}

func (s *Session) backspace() bool {
	if s.letterIdx > 0 {
		w := s.currentWord()
		if w == nil {
			return false
		}
		s.letterIdx--
		if w.Letters[s.letterIdx].Status == LetterExtra {
			w.Letters = w.Letters[:s.letterIdx]
		} else {
			w.Letters[s.letterIdx].Status = LetterPending
			w.Letters[s.letterIdx].Typed = 0
		}
		return true
	}
	if s.wordIdx == 0 || !s.cfg.FreedomMode {
		return false
	}
	s.wordIdx--
	prev := &s.words[s.wordIdx]
	prev.Status = WordPending
	s.letterIdx = prev.typedLen()
	return true
}

func (s *Session) char(r rune, now time.Time) bool {
	w := s.currentWord()
	if w == nil {
		return false
	}
	if s.letterIdx < w.expectedLen() {
		l := &w.Letters[s.letterIdx]
		if l.Expected == r {
			l.Status = LetterCorrect
			l.Typed = 0
		} else {
			l.Status = LetterIncorrect
			l.Typed = r
		}
		s.recordKey(l.Expected, l.Status == LetterCorrect, now)
		s.letterIdx++
		return true
	}
	if s.cfg.HideExtraLetters {
		return false
	}
	w.Letters = append(w.Letters, Letter{Status: LetterExtra, Typed: r})
	s.bucket(now)
	s.lastKeyAt = now
	s.letterIdx++
	return true
}

// recordKey tallies a keystroke against its expected rune. Latency is the
// gap since the previous keystroke and is only kept for correct keys.
func (s *Session) recordKey(expected rune, correct bool, now time.Time) {
	cs, ok := s.chars[expected]
	if !ok {
		cs = &model.CharStats{Char: string(expected)}
		s.chars[expected] = cs
	}
	if correct {
		cs.Correct++
		if !s.lastKeyAt.IsZero() {
			cs.LatencySumMs += now.Sub(s.lastKeyAt).Milliseconds()
			cs.LatencyCount++
		}
	} else {
		cs.Incorrect++
	}
	s.bucket(now)
	s.lastKeyAt = now
}

func (s *Session) bucket(now time.Time) {
	sec := int(now.Sub(s.startedAt) / time.Second)
	if sec < 0 {
		sec = 0
	}
	for len(s.buckets) <= sec {
		s.buckets = append(s.buckets, 0)
	}
	s.buckets[sec]++
}

// refillLocked appends another batch in time mode when the cursor nears the
// end of the supply.
func (s *Session) refillLocked() {
	if s.cfg.Mode != model.ModeTime || len(s.words)-s.wordIdx > refillThreshold {
		return
	}
	more, err := s.generate(s.cfg, generator.WordCount(s.cfg))
	if err != nil {
		s.log.Warn("failed to extend word supply", zap.Error(err))
		return
	}
	for _, w := range more {
		s.words = append(s.words, newWord(w))
	}
}

// counts tallies committed letters: every letter of a passed word and the
// letters before the cursor in the current word.
func (s *Session) counts() stats.Counts {
	var c stats.Counts
	add := func(l Letter) {
		switch l.Status {
		case LetterCorrect:
			c.Correct++
		case LetterIncorrect:
			c.Incorrect++
		case LetterExtra:
			c.Extra++
		default:
			c.Missed++
		}
	}
	for i := 0; i < s.wordIdx && i < len(s.words); i++ {
		for _, l := range s.words[i].Letters {
			add(l)
		}
	}
	if w := s.currentWord(); w != nil {
		for i := 0; i < s.letterIdx && i < len(w.Letters); i++ {
			add(w.Letters[i])
		}
	}
	c.Spaces = s.wordIdx
	return c
}

func (s *Session) refreshLocked(now time.Time) {
	if s.state != Active {
		return
	}
	if live, ok := stats.Compute(s.counts(), now.Sub(s.startedAt)); ok {
		s.live = live
	}
}

// finished carries work done after the lock is released.
type finished struct {
	stopped  *ticker
	result   model.TestResult
	onFinish func(model.TestResult)
}

func (f *finished) deliver() {
	if f == nil {
		return
	}
	if f.stopped != nil {
		f.stopped.wait()
	}
	if f.onFinish != nil {
		f.onFinish(f.result)
	}
}

func (s *Session) finishLocked(now time.Time) *finished {
	s.endedAt = now
	s.state = Complete
	if w := s.currentWord(); w != nil && s.letterIdx > 0 {
		correct := s.letterIdx == w.expectedLen()
		for i := 0; i < s.letterIdx && correct; i++ {
			correct = w.Letters[i].Status == LetterCorrect
		}
		if correct {
			w.Status = WordCorrect
		} else {
			w.Status = WordIncorrect
		}
	}

	elapsed := s.endedAt.Sub(s.startedAt)
	counts := s.counts()
	final := stats.ComputeFinal(counts, elapsed)
	s.live = final

	res := model.TestResult{
		ID:             uuid.NewString(),
		Username:       s.username,
		StartedAt:      s.startedAt,
		EndedAt:        s.endedAt,
		WPM:            final.WPM,
		RawWPM:         final.RawWPM,
		Accuracy:       final.Accuracy,
		Consistency:    stats.Consistency(s.speedSamples(elapsed)),
		Characters:     counts.Total(),
		CorrectChars:   counts.CorrectWithSpaces(),
		IncorrectChars: counts.Incorrect,
		ExtraChars:     counts.Extra,
		MissedChars:    counts.Missed,
		ElapsedSeconds: int(math.Round(elapsed.Seconds())),
		DurationMs:     elapsed.Milliseconds(),
		Config:         s.cfg,
		CharStats:      s.charStats(),
	}
	s.result = &res
	return &finished{
		stopped:  s.stopTickerLocked(),
		result:   res,
		onFinish: s.onFinish,
	}
}

// speedSamples converts every full second of keystrokes into raw WPM.
func (s *Session) speedSamples(elapsed time.Duration) []float64 {
	full := int(elapsed / time.Second)
	samples := make([]float64, full)
	for i := 0; i < full; i++ {
		if i < len(s.buckets) {
			samples[i] = float64(s.buckets[i]) * 60 / 5
		}
	}
	return samples
}

func (s *Session) charStats() []model.CharStats {
	out := make([]model.CharStats, 0, len(s.chars))
	for _, cs := range s.chars {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Char < out[j].Char })
	return out
}

func (s *Session) snapshotLocked(now time.Time) Snapshot {
	words := make([]Word, len(s.words))
	for i, w := range s.words {
		words[i] = w.clone()
	}
	snap := Snapshot{
		State:       s.state,
		Words:       words,
		WordIndex:   s.wordIdx,
		LetterIndex: s.letterIdx,
		Live:        s.live,
	}
	var elapsed time.Duration
	switch s.state {
	case Active:
		elapsed = now.Sub(s.startedAt)
	case Complete:
		elapsed = s.endedAt.Sub(s.startedAt)
	}
	snap.Elapsed = elapsed.Seconds()
	switch s.cfg.Mode {
	case model.ModeTime:
		left := time.Duration(s.cfg.TimeLimit)*time.Second - elapsed
		if left < 0 {
			left = 0
		}
		snap.Remaining = int(math.Ceil(left.Seconds()))
	case model.ModeWords:
		snap.WordTarget = s.cfg.WordTarget
	}
	return snap
}
