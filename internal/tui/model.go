// Package tui provides the Bubble Tea focus timer interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/focustimer/internal/breaks"
	"github.com/verte-zerg/focustimer/internal/model"
	"github.com/verte-zerg/focustimer/internal/notify"
	"github.com/verte-zerg/focustimer/internal/timer"
)

const (
	defaultBreakSnooze  = 10 * time.Minute
	defaultReviewSnooze = 15
	maxNotices          = 3
)

// Engine is the timer state the interface drives.
type Engine interface {
	Snapshot() model.TimerSnapshot
	Start(req timer.StartRequest) (model.Session, error)
	Pause() bool
	Resume() bool
	Stop(ctx context.Context) bool
	Complete(ctx context.Context, rating *int, notes string) bool
	Tick(ctx context.Context) timer.TickResult
	FocusReturned() bool
	Activity()
	UpdateSessionType(t model.SessionType) bool
	UpdatePlannedDuration(minutes int) bool
	BreakCounters() breaks.Counters
	CurrentSuggestion() (model.BreakSuggestion, bool)
	AcceptBreak() (model.Session, error)
	DismissBreak() error
	SnoozeBreak(d time.Duration) error
	ActiveReview() (model.ReviewPrompt, bool)
	SubmitReview(ctx context.Context, t model.PromptType, answers map[string]string) (model.ReviewResponse, error)
	SnoozeReview(t model.PromptType, minutes int) error
	DismissReview(t model.PromptType) error
}

// Notifications is the source of notifications to show in the interface.
type Notifications interface {
	Drain() []notify.Notification
}

// Options configures a Model.
type Options struct {
	TickInterval time.Duration
	BreakSnooze  time.Duration
	ReviewSnooze int
}

type tickMsg time.Time

// Model implements the Bubble Tea focus timer UI.
type Model struct {
	engine  Engine
	notes   Notifications
	opts    Options
	keys    keyMap
	formKey formKeyMap
	help    help.Model
	bar     progress.Model

	width  int
	height int

	notices []notify.Notification
	form    *reviewForm
	status  string
	errMsg  string
}

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	clockStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	pausedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(1, 2)
)

// NewModel constructs the timer UI. notes may be nil.
func NewModel(e Engine, notes Notifications, opts Options) *Model {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.BreakSnooze <= 0 {
		opts.BreakSnooze = defaultBreakSnooze
	}
	if opts.ReviewSnooze <= 0 {
		opts.ReviewSnooze = defaultReviewSnooze
	}
	return &Model{
		engine:  e,
		notes:   notes,
		opts:    opts,
		keys:    defaultKeys(),
		formKey: defaultFormKeys(),
		help:    help.New(),
		bar:     progress.New(progress.WithSolidFill("#C89A3A"), progress.WithoutPercentage()),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.tick()
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.opts.TickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.bar.Width = min(60, max(10, msg.Width-8))
		if m.form != nil {
			m.form.setWidth(m.contentWidth())
		}
		return m, nil
	case tickMsg:
		m.engine.Tick(context.Background())
		cmd := m.refresh()
		return m, tea.Batch(cmd, m.tick())
	case tea.FocusMsg:
		if m.engine.FocusReturned() {
			m.status = "Timer paused while the computer was asleep"
		}
		return m, m.refresh()
	case tea.KeyMsg:
		if m.form != nil {
			return m, m.updateForm(msg)
		}
		return m.handleKey(msg)
	}
	if m.form != nil {
		return m, m.form.update(msg)
	}
	return m, nil
}

// refresh pulls notifications and opens a review form when one is waiting.
func (m *Model) refresh() tea.Cmd {
	if m.notes == nil {
		return m.openActiveReview()
	}
	var cmd tea.Cmd
	for _, n := range m.notes.Drain() {
		m.notices = append(m.notices, n)
		if n.Prompt != nil && m.form == nil {
			cmd = m.openForm(*n.Prompt)
		}
	}
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
	if cmd != nil {
		return cmd
	}
	return m.openActiveReview()
}

func (m *Model) openActiveReview() tea.Cmd {
	if m.form != nil {
		return nil
	}
	if p, ok := m.engine.ActiveReview(); ok {
		return m.openForm(p)
	}
	return nil
}

func (m *Model) openForm(p model.ReviewPrompt) tea.Cmd {
	m.form = newReviewForm(p)
	m.form.setWidth(m.contentWidth())
	return m.form.focus(0)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	m.engine.Activity()
	m.errMsg = ""
	ctx := context.Background()
	snap := m.engine.Snapshot()

	switch {
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Start):
		if snap.IsRunning {
			return m, nil
		}
		if _, err := m.engine.Start(timer.StartRequest{
			SessionType:     snap.SessionType,
			PlannedDuration: snap.PlannedDuration,
		}); err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		m.status = fmt.Sprintf("%s started", typeLabel(snap.SessionType))
		m.notices = nil
	case key.Matches(msg, m.keys.Toggle):
		switch {
		case !snap.IsRunning:
		case snap.IsPaused:
			m.engine.Resume()
			m.status = "Resumed"
		default:
			m.engine.Pause()
			m.status = "Paused"
		}
	case key.Matches(msg, m.keys.Stop):
		if m.engine.Stop(ctx) {
			m.status = "Session stopped"
		}
	case key.Matches(msg, m.keys.Complete):
		if m.engine.Complete(ctx, nil, "") {
			m.status = "Session completed"
		}
	case key.Matches(msg, m.keys.Type):
		next := nextType(snap.SessionType)
		if m.engine.UpdateSessionType(next) {
			m.status = ""
		}
	case key.Matches(msg, m.keys.Longer):
		m.engine.UpdatePlannedDuration(snap.PlannedDuration + durationStep(snap.PlannedDuration))
	case key.Matches(msg, m.keys.Shorter):
		if step := durationStep(snap.PlannedDuration - 1); snap.PlannedDuration > step {
			m.engine.UpdatePlannedDuration(snap.PlannedDuration - step)
		}
	case key.Matches(msg, m.keys.Accept):
		if _, err := m.engine.AcceptBreak(); err != nil {
			m.errMsg = breakError(err)
			return m, nil
		}
		m.status = "Break started"
	case key.Matches(msg, m.keys.Dismiss):
		if err := m.engine.DismissBreak(); err != nil {
			m.errMsg = breakError(err)
			return m, nil
		}
		m.status = "Break suggestion dismissed"
	case key.Matches(msg, m.keys.Snooze):
		if err := m.engine.SnoozeBreak(m.opts.BreakSnooze); err != nil {
			m.errMsg = breakError(err)
			return m, nil
		}
		m.status = fmt.Sprintf("Break reminders snoozed for %s", m.opts.BreakSnooze)
	}
	return m, m.refresh()
}

func (m *Model) updateForm(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}
	m.engine.Activity()
	f := m.form
	switch {
	case key.Matches(msg, m.formKey.Next):
		return f.focus(f.index + 1)
	case key.Matches(msg, m.formKey.Prev):
		return f.focus(f.index - 1)
	case msg.Type == tea.KeyEnter:
		if f.index < len(f.inputs)-1 {
			return f.focus(f.index + 1)
		}
		return m.submitForm()
	case key.Matches(msg, m.formKey.Submit):
		return m.submitForm()
	case key.Matches(msg, m.formKey.Snooze):
		if f.prompt.Type == model.PromptSessionEnd {
			m.closeForm("")
			return nil
		}
		if err := m.engine.SnoozeReview(f.prompt.Type, m.opts.ReviewSnooze); err != nil {
			f.err = err.Error()
			return nil
		}
		m.closeForm(fmt.Sprintf("Review postponed %d minutes", m.opts.ReviewSnooze))
		return nil
	case key.Matches(msg, m.formKey.Skip):
		if f.prompt.Type != model.PromptSessionEnd {
			if err := m.engine.DismissReview(f.prompt.Type); err != nil {
				f.err = err.Error()
				return nil
			}
		}
		m.closeForm("Review skipped")
		return nil
	}
	return f.update(msg)
}

func (m *Model) submitForm() tea.Cmd {
	f := m.form
	if _, err := m.engine.SubmitReview(context.Background(), f.prompt.Type, f.answers()); err != nil {
		f.err = err.Error()
		return nil
	}
	m.closeForm("Review saved")
	return nil
}

func (m *Model) closeForm(status string) {
	m.form = nil
	m.status = status
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.form != nil {
		body := modalStyle.Render(m.form.view(m.contentWidth()))
		footer := footerStyle.Render(m.help.View(m.formKey))
		return m.place(body, footer)
	}
	return m.place(m.renderTimer(), m.renderFooter())
}

func (m *Model) place(body, footer string) string {
	if m.width == 0 || m.height == 0 {
		return body + "\n" + footer
	}
	footerHeight := lipgloss.Height(footer)
	if m.height <= footerHeight+2 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
	}
	top := lipgloss.Place(m.width, m.height-footerHeight, lipgloss.Center, lipgloss.Center, body)
	return top + "\n" + lipgloss.PlaceHorizontal(m.width, lipgloss.Center, footer)
}

func (m *Model) renderTimer() string {
	snap := m.engine.Snapshot()
	width := m.contentWidth()

	header := titleStyle.Render(typeLabel(snap.SessionType))
	remaining := snap.RemainingTime
	if !snap.IsRunning {
		remaining = snap.PlannedDuration * 60
	}
	clock := clockStyle.Render(formatClock(remaining))
	state := mutedStyle.Render("ready")
	switch {
	case snap.IsPaused:
		clock = pausedStyle.Render(formatClock(remaining))
		state = mutedStyle.Render("paused")
	case snap.IsRunning:
		state = accentStyle.Render("running")
	}

	lines := []string{header, clock, state, m.bar.ViewAs(progressOf(snap))}

	c := m.engine.BreakCounters()
	if c.SessionsSinceLastBreak > 0 {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("%d sessions, %d min since last break",
			c.SessionsSinceLastBreak, c.TotalWorkTimeSinceBreak)))
	}
	if s, ok := m.engine.CurrentSuggestion(); ok {
		lines = append(lines, "", m.renderSuggestion(s, width))
	}
	for _, n := range m.notices {
		if n.Suggestion != nil {
			continue
		}
		lines = append(lines, mutedStyle.Render(truncate(n.Title+": "+n.Body, width)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderSuggestion(s model.BreakSuggestion, width int) string {
	inner := max(10, width-4)
	lines := []string{accentStyle.Render(fmt.Sprintf("Break: %d min", s.SuggestedDuration))}
	lines = append(lines, wrapText(s.Reason, inner)...)
	lines = append(lines, mutedStyle.Render("a take  d dismiss  z snooze"))
	return cardStyle.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderFooter() string {
	var lines []string
	switch {
	case m.errMsg != "":
		lines = append(lines, errorStyle.Render(truncate(m.errMsg, m.footerWidth())))
	case m.status != "":
		lines = append(lines, footerStyle.Render(truncate(m.status, m.footerWidth())))
	}
	lines = append(lines, footerStyle.Render(m.help.View(m.keys)))
	return strings.Join(lines, "\n")
}

func (m *Model) contentWidth() int {
	if m.width <= 0 {
		return 60
	}
	return max(20, min(70, m.width-8))
}

func (m *Model) footerWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

func progressOf(s model.TimerSnapshot) float64 {
	if !s.IsRunning || s.PlannedDuration <= 0 {
		return 0
	}
	total := float64(s.PlannedDuration * 60)
	done := total - float64(s.RemainingTime)
	return min(1, max(0, done/total))
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func typeLabel(t model.SessionType) string {
	switch t {
	case model.SessionDeepWork:
		return "Deep work"
	case model.SessionQuickTask:
		return "Quick task"
	case model.SessionBreak:
		return "Break"
	default:
		return "Custom"
	}
}

func nextType(t model.SessionType) model.SessionType {
	for i, st := range model.SessionTypes {
		if st == t {
			return model.SessionTypes[(i+1)%len(model.SessionTypes)]
		}
	}
	return model.SessionTypes[0]
}

// durationStep is 1 minute up to 10 minutes and 5 minutes above.
func durationStep(minutes int) int {
	if minutes < 10 {
		return 1
	}
	return 5
}

func breakError(err error) string {
	if errors.Is(err, timer.ErrSessionActive) {
		return "Finish the current session before taking a break"
	}
	return err.Error()
}
