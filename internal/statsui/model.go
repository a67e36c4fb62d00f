// Package statsui provides the Bubble Tea history interface.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"sort"
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

	"github.com/verte-zerg/focustimer/internal/model"
	"github.com/verte-zerg/focustimer/internal/stats"
)

const (
	tabOverview = iota
	tabSessions
	tabReviews
)

const (
	reviewLimit = 50
	maxDays     = 365
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Source is the history the browser reads.
type Source interface {
	stats.History
	ListReviews(ctx context.Context, limit int) ([]model.ReviewResponse, error)
}

// Model implements the Bubble Tea history UI.
type Model struct {
	source Source
	days   int
	now    func() time.Time

	report  stats.Report
	reviews []model.ReviewResponse
	errMsg  string

	tabs      []string
	activeTab int
	viewports []viewport.Model
	sessions  table.Model

	width  int
	height int

	filterMode  bool
	filterInput textinput.Model
	filterError string
}

// NewModel constructs a history UI over the last days days.
func NewModel(src Source, days int, now func() time.Time) *Model {
	if days <= 0 {
		days = 7
	}
	if now == nil {
		now = time.Now
	}
	m := &Model{
		source: src,
		days:   days,
		now:    now,
		tabs:   []string{"Overview", "Sessions", "Reviews"},
	}
	m.filterInput = textinput.New()
	m.filterInput.Prompt = "Days: "
	m.filterInput.CharLimit = 3
	m.filterInput.Cursor.SetMode(cursor.CursorBlink)
	m.sessions = table.New(table.WithColumns(sessionColumns()), table.WithHeight(1))
	m.sessions.SetStyles(sessionTableStyles())
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
	m.refresh()
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
		m.renderContents()
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
		case "=", "+":
			m.setDays(m.days + 7)
			return m, nil
		case "-":
			m.setDays(m.days - 7)
			return m, nil
		case "/":
			m.filterMode = true
			m.filterError = ""
			m.filterInput.SetValue(strconv.Itoa(m.days))
			return m, m.filterInput.Focus()
		case "g", "home":
			if m.activeTab == tabSessions {
				m.sessions.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabSessions {
				m.sessions.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		}
		var cmd tea.Cmd
		if m.activeTab == tabSessions {
			m.sessions, cmd = m.sessions.Update(msg)
			return m, cmd
		}
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
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
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		m.filterInput.Blur()
		return m, nil
	case tea.KeyEnter:
		days, err := parseDays(m.filterInput.Value())
		if err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.filterInput.Blur()
		m.setDays(days)
		return m, nil
	}
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	return m, cmd
}

func parseDays(input string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > maxDays {
		return 0, fmt.Errorf("days must be between 1 and %d", maxDays)
	}
	return n, nil
}

func (m *Model) setDays(days int) {
	days = max(1, min(maxDays, days))
	if days == m.days {
		return
	}
	m.days = days
	m.refresh()
}

func (m *Model) refresh() {
	ctx := context.Background()
	report, err := stats.BuildReport(ctx, m.source, m.days, m.now())
	if err != nil {
		m.errMsg = err.Error()
		m.renderContents()
		return
	}
	reviews, err := m.source.ListReviews(ctx, reviewLimit)
	if err != nil {
		m.errMsg = err.Error()
		m.renderContents()
		return
	}
	m.errMsg = ""
	m.report = report
	m.reviews = reviews
	m.sessions.SetRows(sessionRows(report.Sessions))
	m.renderContents()
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := max(1, lipgloss.Height(activeNavStyle.Render("X")))
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.errMsg != "" || m.filterError != "" {
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
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = bodyHeight
	}
	m.sessions.SetWidth(m.width)
	m.sessions.SetHeight(max(1, bodyHeight-1))
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := (m.activeTab + delta + count) % count
	m.activeTab = next
	if m.activeTab == tabSessions {
		m.sessions.Focus()
	} else {
		m.sessions.Blur()
	}
}

func (m *Model) renderContents() {
	if m.errMsg != "" {
		for i := range m.viewports {
			m.viewports[i].SetContent("Failed to load history.")
		}
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabOverview].SetContent(renderOverview(m.report, width))
	m.viewports[tabReviews].SetContent(renderReviews(m.reviews, width))
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	summary := fmt.Sprintf("Window: last %d days  Sessions: %d  Reviews: %d",
		m.days, len(m.report.Sessions), len(m.reviews))
	return padLines(m.renderTabs(), m.width) + "\n" + headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderBody() string {
	if m.filterMode {
		return "Window (enter to apply, esc to cancel)\n" + m.filterInput.View()
	}
	if m.activeTab == tabSessions {
		if len(m.report.Sessions) == 0 {
			return "No sessions found."
		}
		return tableMutedStyle.Render(m.sessions.View())
	}
	return m.viewports[m.activeTab].View()
}

func (m *Model) renderFooter() string {
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  Window: -/=  Days: /  Quit: q"
	if m.filterMode {
		help = "enter: apply  esc: cancel"
	}
	lines := []string{headerStyle.Render(help)}
	switch {
	case m.filterError != "":
		lines = append(lines, errorStyle.Render(m.filterError))
	case m.errMsg != "":
		lines = append(lines, errorStyle.Render(m.errMsg))
	}
	return strings.Join(lines, "\n")
}

func renderOverview(r stats.Report, width int) string {
	if len(r.Sessions) == 0 {
		return "No sessions found."
	}
	cards := renderSummaryCards(r, width)
	var buf bytes.Buffer
	if err := r.Render(&buf, width, true); err != nil {
		return fmt.Sprintf("Failed to render report: %v", err)
	}
	return strings.TrimRight(cards+"\n\n"+buf.String(), "\n")
}

func renderSummaryCards(r stats.Report, width int) string {
	quality := "-"
	if r.Summary.RatedSessions > 0 {
		quality = fmt.Sprintf("%.1f", r.Summary.AvgQuality)
	}
	cards := []string{
		metricCard("Completed", strconv.Itoa(r.Summary.Completed)),
		metricCard("Focus", formatMinutes(r.Summary.FocusMinutes)),
		metricCard("Quality", quality),
		metricCard("Streak", fmt.Sprintf("%dd", r.AllTime.CurrentStreak)),
		metricCard("Best streak", fmt.Sprintf("%dd", r.AllTime.LongestStreak)),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4])
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func sessionColumns() []table.Column {
	return []table.Column{
		{Title: "Ended", Width: 16},
		{Title: "Type", Width: 10},
		{Title: "Minutes", Width: 7},
		{Title: "Outcome", Width: 9},
		{Title: "Quality", Width: 7},
	}
}

// sessionRows lists sessions newest first.
func sessionRows(sessions []model.SessionAggregate) []table.Row {
	sorted := append([]model.SessionAggregate(nil), sessions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].EndedAt.After(sorted[j].EndedAt) })
	rows := make([]table.Row, 0, len(sorted))
	for _, s := range sorted {
		outcome := "abandoned"
		if s.Completed {
			outcome = "completed"
		}
		quality := "-"
		if s.QualityRating != nil {
			quality = strconv.Itoa(*s.QualityRating)
		}
		rows = append(rows, table.Row{
			s.EndedAt.Local().Format("2006-01-02 15:04"),
			string(s.SessionType),
			strconv.Itoa(s.WorkedSeconds / 60),
			outcome,
			quality,
		})
	}
	return rows
}

func sessionTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func renderReviews(reviews []model.ReviewResponse, width int) string {
	if len(reviews) == 0 {
		return "No reviews yet."
	}
	var blocks []string
	for _, r := range reviews {
		lines := []string{cardValueStyle.Render(fmt.Sprintf("%s  %s", r.CompletedAt.Local().Format("2006-01-02 15:04"), r.PromptType))}
		ids := make([]string, 0, len(r.Answers))
		for id := range r.Answers {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			lines = append(lines, truncateLine(fmt.Sprintf("  %s: %s", id, r.Answers[id]), width))
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

func formatMinutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", m/60, m%60)
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
