// Package tui provides the Bubble Tea typing interface.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/verte-zerg/typetest/internal/generator"
	"github.com/verte-zerg/typetest/internal/model"
	"github.com/verte-zerg/typetest/internal/session"
	statsPkg "github.com/verte-zerg/typetest/internal/stats"
	"github.com/verte-zerg/typetest/internal/store"
)

// visibleLines is how many wrapped lines of text are shown.
const visibleLines = 3

var (
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	extraStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#A8071A"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	cursorStyle      = pendingStyle.Underline(true)
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	headerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	labelStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
)

// Saver receives finished results. sink.Dispatcher implements it.
type Saver interface {
	Dispatch(result model.TestResult, actor string)
}

// Options wires the typing UI.
type Options struct {
	Practice model.PracticeConfig
	Source   *generator.Source
	// Store backs the footer averages and weak-character focus. It may be nil.
	Store *store.Store
	Saver Saver
	Log   *zap.Logger
}

type snapshotMsg session.Snapshot

type finishedMsg model.TestResult

// Model implements the Bubble Tea typing UI.
type Model struct {
	cfg   model.PracticeConfig
	src   *generator.Source
	store *store.Store
	saver Saver
	log   *zap.Logger

	sess    *session.Session
	ticks   chan session.Snapshot
	results chan model.TestResult

	width  int
	height int

	snap   session.Snapshot
	result *model.TestResult

	weakNoticeShown bool

	lastWPM int
	lastAcc int
	hasLast bool
	allWPM  float64
	allAcc  float64
	allN    int
}

// NewModel builds the session and loads footer statistics.
func NewModel(opts Options) (*Model, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("word source is required")
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	m := &Model{
		cfg:     opts.Practice,
		src:     opts.Source,
		store:   opts.Store,
		saver:   opts.Saver,
		log:     log,
		ticks:   make(chan session.Snapshot, 1),
		results: make(chan model.TestResult, 4),
	}
	if m.cfg.FocusWeak {
		m.refreshWeakSet()
	}
	sess, err := session.New(m.cfg.Test, m.words,
		session.WithUsername(m.cfg.Username),
		session.WithLogger(log),
		session.WithNotifier(m.onTick),
		session.WithFinish(m.onFinish),
	)
	if err != nil {
		return nil, err
	}
	m.sess = sess
	m.snap = sess.Snapshot()
	m.loadFooterStats()
	return m, nil
}

// Close stops the session ticker.
func (m *Model) Close() {
	m.sess.Close()
}

// words reads the source through the model so weak-set updates apply to
// later batches.
func (m *Model) words(cfg model.TestConfig, n int) ([]string, error) {
	return m.src.Words(cfg, n)
}

// onTick runs on the session ticker; stale snapshots are dropped.
func (m *Model) onTick(snap session.Snapshot) {
	select {
	case <-m.ticks:
	default:
	}
	select {
	case m.ticks <- snap:
	default:
	}
}

func (m *Model) onFinish(r model.TestResult) {
	select {
	case m.results <- r:
	default:
		m.log.Warn("dropping finished result notification", zap.String("id", r.ID))
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	ticks, results := m.ticks, m.results
	return func() tea.Msg {
		select {
		case r := <-results:
			return finishedMsg(r)
		case snap := <-ticks:
			return snapshotMsg(snap)
		}
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.waitForEvent()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case snapshotMsg:
		m.snap = session.Snapshot(msg)
		return m, m.waitForEvent()
	case finishedMsg:
		m.handleFinished(model.TestResult(msg))
		return m, m.waitForEvent()
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC:
		return tea.Quit
	case tea.KeyEsc:
		if m.result != nil {
			return tea.Quit
		}
		m.restart()
		return nil
	case tea.KeyTab, tea.KeyEnter:
		if m.result != nil || msg.Type == tea.KeyTab {
			m.restart()
		}
		return nil
	}
	if m.result != nil {
		if msg.Type == tea.KeyRunes && string(msg.Runes) == "q" {
			return tea.Quit
		}
		return nil
	}
	switch msg.Type {
	case tea.KeyBackspace, tea.KeyDelete:
		m.sess.ProcessInput(session.BackspaceKey())
	case tea.KeySpace:
		m.sess.ProcessInput(session.SpaceKey())
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			m.sess.ProcessInput(session.CharKey(r))
		}
	default:
		return nil
	}
	m.snap = m.sess.Snapshot()
	return nil
}

func (m *Model) restart() {
	if err := m.sess.Reset(); err != nil {
		m.log.Error("failed to reset session", zap.Error(err))
		return
	}
	m.result = nil
	m.snap = m.sess.Snapshot()
}

func (m *Model) handleFinished(r model.TestResult) {
	m.result = &r
	m.snap = m.sess.Snapshot()
	if m.saver != nil {
		m.saver.Dispatch(r, m.cfg.Username)
	}
	m.lastWPM = r.WPM
	m.lastAcc = r.Accuracy
	m.hasLast = true
	m.allWPM = (m.allWPM*float64(m.allN) + float64(r.WPM)) / float64(m.allN+1)
	m.allAcc = (m.allAcc*float64(m.allN) + float64(r.Accuracy)) / float64(m.allN+1)
	m.allN++
	if m.cfg.FocusWeak {
		m.refreshWeakSet()
	}
}

func (m *Model) loadFooterStats() {
	if m.store == nil {
		return
	}
	results, err := m.store.ListResults(context.Background(), model.ResultFilter{Language: m.cfg.Test.Language})
	if err != nil {
		m.log.Warn("failed to load result history", zap.Error(err))
		return
	}
	if len(results) == 0 {
		return
	}
	last := results[len(results)-1]
	m.lastWPM = last.WPM
	m.lastAcc = last.Accuracy
	m.hasLast = true
	summary := statsPkg.Summarize(results)
	m.allWPM = summary.AvgWPM
	m.allAcc = summary.AvgAccuracy
	m.allN = summary.Count
}

func (m *Model) refreshWeakSet() {
	if m.store == nil {
		return
	}
	aggs, err := m.store.GetWeakChars(context.Background(), m.cfg.WeakWindow, m.cfg.Test.Language)
	if err != nil {
		m.log.Warn("failed to load weak chars", zap.Error(err))
		return
	}
	weak := statsPkg.SelectWeakChars(aggs, m.cfg.WeakTop)
	if len(weak) == 0 && !m.weakNoticeShown {
		m.log.Info("no stats available for weak-char focus yet; using normal generator")
		m.weakNoticeShown = true
	}
	m.src.WeakSet = weak
	m.src.WeakFactor = m.cfg.WeakFactor
}

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	if m.result != nil {
		content = renderResult(*m.result)
	} else {
		content = m.renderTest()
	}
	if m.width == 0 || m.height == 0 {
		return content
	}
	footer := m.renderFooter()
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) contentWidth() int {
	if m.width == 0 {
		return 0
	}
	w := int(float64(m.width) * 0.70)
	if w < 1 {
		w = 1
	}
	return w
}

func (m *Model) renderTest() string {
	snap := m.snap
	if len(snap.Words) == 0 {
		return ""
	}
	runes, cursor := buildStyledRunes(snap.Words, snap.WordIndex, snap.LetterIndex, snap.State != session.Complete)
	width := m.contentWidth()
	lines, starts := wrapStyledLines(runes, width)
	first := 0
	if cursor >= 0 {
		first = lineOf(starts, cursor) - 1
	}
	if first < 0 {
		first = 0
	}
	last := first + visibleLines
	if last > len(lines) {
		last = len(lines)
	}
	text := strings.Join(lines[first:last], "\n")
	if width > 0 {
		text = lipgloss.NewStyle().Width(width).Render(text)
	}
	return m.renderHeader() + "\n\n" + text
}

func (m *Model) renderHeader() string {
	snap := m.snap
	var progress string
	switch m.cfg.Test.Mode {
	case model.ModeTime:
		progress = fmt.Sprintf("%ds", snap.Remaining)
	default:
		progress = fmt.Sprintf("%d/%d", snap.WordIndex, snap.WordTarget)
	}
	if snap.State == session.Inactive {
		return headerStyle.Render(progress) + labelStyle.Render("  start typing")
	}
	return headerStyle.Render(progress) +
		labelStyle.Render(fmt.Sprintf("  %d wpm  %d%%", snap.Live.WPM, snap.Live.Accuracy))
}

func (m *Model) renderFooter() string {
	segments := []string{m.cfg.Test.ModeKey() + " " + m.cfg.Test.Language}
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("Last %d WPM · %d%%", m.lastWPM, m.lastAcc))
	}
	if m.allN > 0 {
		segments = append(segments, fmt.Sprintf("All-time %.1f WPM · %.1f%%", m.allWPM, m.allAcc))
	}
	segments = append(segments, "tab restart · esc quit")
	return footerStyle.Render(strings.Join(segments, "  "))
}

func renderResult(r model.TestResult) string {
	row := func(label, value string) string {
		return labelStyle.Render(fmt.Sprintf("%-12s", label)) + valueStyle.Render(value)
	}
	lines := []string{
		headerStyle.Render("Result"),
		"",
		row("wpm", fmt.Sprintf("%d", r.WPM)),
		row("raw", fmt.Sprintf("%d", r.RawWPM)),
		row("accuracy", fmt.Sprintf("%d%%", r.Accuracy)),
		row("consistency", fmt.Sprintf("%d%%", r.Consistency)),
		row("characters", statsPkg.CharBreakdown(r)),
		row("time", fmt.Sprintf("%ds", r.ElapsedSeconds)),
		row("test", r.Config.ModeKey()+" "+r.Config.Language),
		"",
		labelStyle.Render("enter next test · esc quit"),
	}
	return strings.Join(lines, "\n")
}
