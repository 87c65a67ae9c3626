// Package statsui provides the Bubble Tea stats interface.
package statsui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/typetest/internal/model"
	"github.com/verte-zerg/typetest/internal/stats"
	"github.com/verte-zerg/typetest/internal/store"
)

const (
	tabOverview = iota
	tabResults
	tabChars
)

const (
	fieldLang = iota
	fieldUser
	fieldMode
	fieldSince
	fieldLast
	fieldWindow
)

const (
	colorText   = lipgloss.Color("#F0F0F0")
	colorMuted  = lipgloss.Color("#8C8C8C")
	colorDim    = lipgloss.Color("#6E6E6E")
	colorBorder = lipgloss.Color("#4A4A4A")
	colorAccent = lipgloss.Color("#C89A3A")
	colorError  = lipgloss.Color("#FF4D4F")
)

var (
	tabStyle       = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 2)
	activeTabStyle = tabStyle.Foreground(colorAccent).Bold(true).Underline(true)
	dimStyle       = lipgloss.NewStyle().Foreground(colorDim)
	errorStyle     = lipgloss.NewStyle().Foreground(colorError)
	cardStyle      = lipgloss.NewStyle().
			Padding(0, 2).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(colorAccent)
	cardLabelStyle = lipgloss.NewStyle().Foreground(colorMuted)
	cardValueStyle = lipgloss.NewStyle().Foreground(colorText).Bold(true)
)

// Model implements the Bubble Tea stats UI.
type Model struct {
	store *store.Store
	cfg   model.StatsConfig

	report stats.Report
	errMsg string

	tabs      []string
	activeTab int
	overview  viewport.Model
	tables    map[int]*table.Model

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

// NewModel constructs a stats UI model.
func NewModel(st *store.Store, cfg model.StatsConfig) *Model {
	if cfg.CurveWindow < 1 {
		cfg.CurveWindow = 10
	}
	resultsTable := newTable(resultColumns())
	charsTable := newTable(charColumns())
	m := &Model{
		store:    st,
		cfg:      cfg,
		tabs:     []string{"Overview", "Results", "Chars"},
		overview: viewport.New(0, 0),
		tables: map[int]*table.Model{
			tabResults: &resultsTable,
			tabChars:   &charsTable,
		},
	}
	m.initInputs()
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderOverview()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=":
			m.cfg.CurveWindow++
			m.refreshReport()
			return m, nil
		case "-":
			if m.cfg.CurveWindow > 1 {
				m.cfg.CurveWindow--
				m.refreshReport()
			}
			return m, nil
		case "/":
			return m.startFilter()
		case "r":
			m.refreshReport()
			return m, nil
		}
		if t, ok := m.tables[m.activeTab]; ok {
			var cmd tea.Cmd
			*t, cmd = t.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.overview, cmd = m.overview.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	return lipgloss.JoinVertical(lipgloss.Left,
		frame(m.renderHeader(), m.width, headerHeight),
		frame(m.renderBody(), m.width, bodyHeight),
		frame(m.renderFooter(), m.width, footerHeight),
	)
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Lang: "),
		newFilterInput("User: "),
		newFilterInput("Mode (time/words): "),
		newFilterInput("Since (YYYY-MM-DD): "),
		newFilterInput("Last: "),
		newFilterInput("Curve window: "),
	}
	m.setInputsFromConfig()
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	f := m.cfg.Filter
	m.filterInputs[fieldLang].SetValue(f.Language)
	m.filterInputs[fieldUser].SetValue(f.Username)
	m.filterInputs[fieldMode].SetValue(string(f.Mode))
	if f.Since != nil {
		m.filterInputs[fieldSince].SetValue(f.Since.Format("2006-01-02"))
	} else {
		m.filterInputs[fieldSince].SetValue("")
	}
	if f.Last > 0 {
		m.filterInputs[fieldLast].SetValue(strconv.Itoa(f.Last))
	} else {
		m.filterInputs[fieldLast].SetValue("")
	}
	m.filterInputs[fieldWindow].SetValue(strconv.Itoa(m.cfg.CurveWindow))
}

// layoutHeights splits the screen into the tab bar plus settings line, the
// body, and the help line with an optional error line.
func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	headerHeight = 2
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = max(1, m.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	for _, t := range m.tables {
		t.SetWidth(m.width)
		t.SetHeight(max(1, bodyHeight-1))
	}
	for i := range m.filterInputs {
		in := &m.filterInputs[i]
		in.Width = max(10, m.width-lipgloss.Width(in.Prompt)-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := (m.activeTab + delta + count) % count
	m.activeTab = next
	for tab, t := range m.tables {
		if tab == m.activeTab {
			t.Focus()
		} else {
			t.Blur()
		}
	}
}

func (m *Model) renderHeader() string {
	var bar strings.Builder
	for i, tab := range m.tabs {
		style := tabStyle
		if i == m.activeTab {
			style = activeTabStyle
		}
		bar.WriteString(style.Render(tab))
	}
	return bar.String() + "\n" + m.renderFilterSummary()
}

func (m *Model) renderFilterSummary() string {
	f := m.cfg.Filter
	orAny := func(v string) string {
		if v == "" {
			return "any"
		}
		return v
	}
	since := "any"
	if f.Since != nil {
		since = f.Since.Format("2006-01-02")
	}
	last := "all"
	if f.Last > 0 {
		last = strconv.Itoa(f.Last)
	}
	summary := fmt.Sprintf("lang=%s  user=%s  mode=%s  since=%s  last=%s  window=%d",
		orAny(f.Language), orAny(f.Username), orAny(string(f.Mode)), since, last, m.cfg.CurveWindow)
	if m.width > 0 {
		summary = runewidth.Truncate(summary, m.width-2, "…")
	}
	return dimStyle.Render("  " + summary)
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return dimStyle.Render("tab/shift+tab field · enter apply · esc cancel")
	}
	help := dimStyle.Render("←/→ tab · ↑/↓ scroll · -/= window · / settings · r reload · q quit")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	return help
}

func (m *Model) renderBody() string {
	if m.filterMode {
		lines := []string{"Settings (enter to apply, esc to cancel)"}
		for _, input := range m.filterInputs {
			lines = append(lines, input.View())
		}
		if m.filterError != "" {
			lines = append(lines, errorStyle.Render(m.filterError))
		}
		return strings.Join(lines, "\n")
	}
	if m.errMsg != "" {
		return "Failed to load stats."
	}
	switch m.activeTab {
	case tabResults:
		if len(m.report.Results) == 0 {
			return "No results found."
		}
		return m.tables[tabResults].View()
	case tabChars:
		if len(m.report.CharAggsAll) == 0 {
			return "No character stats found."
		}
		return m.tables[tabChars].View()
	default:
		return m.overview.View()
	}
}

func (m *Model) refreshReport() {
	report, err := stats.BuildReport(context.Background(), m.store, m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		return
	}
	m.errMsg = ""
	m.report = report
	m.tables[tabResults].SetRows(resultRows(report.Results))
	m.tables[tabChars].SetRows(charRows(report.CharAggsAll))
	m.renderOverview()
}

func (m *Model) renderOverview() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.overview.SetContent(renderOverview(m.report, m.cfg.CurveWindow, width))
}

func renderOverview(report stats.Report, window, width int) string {
	if len(report.Results) == 0 {
		return "No results found."
	}
	summary := stats.Summarize(report.Results)
	cards := []string{
		metricCard("Tests", strconv.Itoa(summary.Count)),
		metricCard("Avg WPM", fmt.Sprintf("%.1f", summary.AvgWPM)),
		metricCard("Best WPM", strconv.Itoa(summary.BestWPM)),
		metricCard("Avg Acc", fmt.Sprintf("%.1f%%", summary.AvgAccuracy)),
		metricCard("Avg Cons", fmt.Sprintf("%.1f%%", summary.AvgConsistency)),
		metricCard("Time", summary.TotalTime.Round(time.Second).String()),
	}
	var cardBlock string
	if width < 80 {
		cardBlock = strings.Join(cards, "\n")
	} else {
		row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
		row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4], cards[5])
		cardBlock = lipgloss.JoinVertical(lipgloss.Left, row1, row2)
	}

	wpm, acc := stats.Series(report.Results)
	lines := []string{
		cardBlock,
		"",
		curveLine("WPM", wpm, width),
		curveLine(fmt.Sprintf("WPM avg(%d)", window), stats.MovingAverage(wpm, window), width),
		curveLine("Accuracy", acc, width),
	}
	if slow := stats.SlowestChars(report.CharAggsWindow, 5); len(slow) > 0 {
		lines = append(lines, "", dimStyle.Render(fmt.Sprintf("Slowest chars (last %d): %s", window, strings.Join(slow, " "))))
	}
	return strings.Join(lines, "\n")
}

// curveLine keeps the most recent values that fit the width.
func curveLine(label string, values []float64, width int) string {
	prefix := fmt.Sprintf("%-12s ", label)
	room := width - len(prefix)
	if room > 0 && len(values) > room {
		values = values[len(values)-room:]
	}
	return cardLabelStyle.Render(prefix) + stats.Sparkline(values)
}

func metricCard(label, value string) string {
	return cardStyle.Render(cardValueStyle.Render(value) + "\n" + cardLabelStyle.Render(label))
}

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(1),
	)
	t.SetStyles(tableStyles())
	return t
}

func resultColumns() []table.Column {
	return []table.Column{
		{Title: "Ended", Width: 16},
		{Title: "User", Width: 10},
		{Title: "Test", Width: 10},
		{Title: "Lang", Width: 10},
		{Title: "WPM", Width: 5},
		{Title: "Raw", Width: 5},
		{Title: "Acc", Width: 5},
		{Title: "Cons", Width: 5},
		{Title: "Chars", Width: 14},
	}
}

// resultRows lists newest first.
func resultRows(results []model.TestResult) []table.Row {
	rows := make([]table.Row, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		rows = append(rows, table.Row{
			r.EndedAt.Local().Format("2006-01-02 15:04"),
			r.Username,
			r.Config.ModeKey(),
			r.Config.Language,
			strconv.Itoa(r.WPM),
			strconv.Itoa(r.RawWPM),
			fmt.Sprintf("%d%%", r.Accuracy),
			fmt.Sprintf("%d%%", r.Consistency),
			stats.CharBreakdown(r),
		})
	}
	return rows
}

func charColumns() []table.Column {
	return []table.Column{
		{Title: "Char", Width: 7},
		{Title: "Accuracy", Width: 9},
		{Title: "Avg Latency (ms)", Width: 17},
		{Title: "Correct", Width: 7},
		{Title: "Incorrect", Width: 9},
	}
}

func charRows(aggs []model.CharAggregate) []table.Row {
	charStats := stats.CharRows(aggs)
	rows := make([]table.Row, 0, len(charStats))
	for _, r := range charStats {
		rows = append(rows, table.Row{
			r.Char,
			fmt.Sprintf("%.2f%%", r.Accuracy*100),
			fmt.Sprintf("%.1f", r.LatencyMs),
			strconv.Itoa(r.Correct),
			strconv.Itoa(r.Incorrect),
		})
	}
	return rows
}

func tableStyles() table.Styles {
	cell := lipgloss.NewStyle().Foreground(colorMuted).PaddingRight(1)
	return table.Styles{
		Header: cell.Foreground(colorAccent).Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(colorBorder),
		Cell:     cell,
		Selected: lipgloss.NewStyle().Foreground(colorText).Bold(true),
	}
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.setInputsFromConfig()
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.refreshReport()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	m.filterIndex = (idx + count) % count
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	value := func(field int) string {
		return strings.TrimSpace(m.filterInputs[field].Value())
	}

	var mode model.Mode
	if v := value(fieldMode); v != "" {
		parsed, err := model.ParseMode(v)
		if err != nil {
			return err
		}
		mode = parsed
	}

	var since *time.Time
	if v := value(fieldSince); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			return fmt.Errorf("invalid since date (expected YYYY-MM-DD)")
		}
		since = &parsed
	}

	last := 0
	if v := value(fieldLast); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return fmt.Errorf("invalid last value (use 0 or positive integer)")
		}
		last = parsed
	}

	window := m.cfg.CurveWindow
	if v := value(fieldWindow); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid curve window (use integer >= 1)")
		}
		window = parsed
	}

	m.cfg = model.StatsConfig{
		Filter: model.ResultFilter{
			Username: value(fieldUser),
			Language: value(fieldLang),
			Mode:     mode,
			Since:    since,
			Last:     last,
		},
		CurveWindow: window,
	}
	return nil
}

// frame pads s to exactly width x height cells, cutting what does not fit.
func frame(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	return lipgloss.NewStyle().
		Width(width).MaxWidth(width).
		Height(height).MaxHeight(height).
		Render(s)
}
