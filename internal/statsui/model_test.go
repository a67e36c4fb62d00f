package statsui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/focustimer/internal/model"
)

type fakeSource struct {
	sessions []model.SessionAggregate
	reviews  []model.ReviewResponse
	err      error
}

func (f *fakeSource) ListSessions(context.Context, model.HistoryFilter) ([]model.SessionAggregate, error) {
	return f.sessions, f.err
}

func (f *fakeSource) ListReviews(context.Context, int) ([]model.ReviewResponse, error) {
	return f.reviews, nil
}

var testNow = time.Date(2026, 3, 12, 18, 0, 0, 0, time.Local)

func fixedNow() time.Time { return testNow }

func sampleSource() *fakeSource {
	rating := 4
	return &fakeSource{
		sessions: []model.SessionAggregate{
			{SessionID: 1, SessionType: model.SessionDeepWork, EndedAt: testNow.Add(-3 * time.Hour), WorkedSeconds: 3000, Completed: true, QualityRating: &rating},
			{SessionID: 2, SessionType: model.SessionQuickTask, EndedAt: testNow.Add(-time.Hour), WorkedSeconds: 600},
			{SessionID: 3, SessionType: model.SessionDeepWork, EndedAt: testNow.AddDate(0, 0, -20), WorkedSeconds: 3000, Completed: true},
		},
		reviews: []model.ReviewResponse{
			{PromptType: model.PromptDaily, Answers: map[string]string{"productivity": "4", "accomplishments": "shipped"}, CompletedAt: testNow},
		},
	}
}

func TestSessionRowsNewestFirst(t *testing.T) {
	rows := sessionRows(sampleSource().sessions)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][1] != "quick_task" || rows[0][3] != "abandoned" || rows[0][4] != "-" {
		t.Fatalf("unexpected first row: %v", rows[0])
	}
	if rows[1][2] != "50" || rows[1][3] != "completed" || rows[1][4] != "4" {
		t.Fatalf("unexpected second row: %v", rows[1])
	}
}

func TestWindowFiltersSessions(t *testing.T) {
	m := NewModel(sampleSource(), 7, fixedNow)
	if got := len(m.report.Sessions); got != 2 {
		t.Fatalf("expected 2 sessions in a week, got %d", got)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("=")})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("=")})
	if m.days != 21 {
		t.Fatalf("expected 21 days, got %d", m.days)
	}
	if got := len(m.report.Sessions); got != 3 {
		t.Fatalf("expected 3 sessions in three weeks, got %d", got)
	}
}

func TestDaysFilterInput(t *testing.T) {
	m := NewModel(sampleSource(), 7, fixedNow)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	if !m.filterMode {
		t.Fatalf("expected filter mode")
	}
	m.filterInput.SetValue("abc")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.filterError == "" || !m.filterMode {
		t.Fatalf("expected a validation error")
	}
	m.filterInput.SetValue("30")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.filterMode || m.days != 30 {
		t.Fatalf("expected 30 day window, got %d (filter=%v)", m.days, m.filterMode)
	}
}

func TestViewRendersTabs(t *testing.T) {
	m := NewModel(sampleSource(), 7, fixedNow)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	out := m.View()
	for _, want := range []string{"Overview", "Sessions", "Reviews", "last 7 days", "Completed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in view:\n%s", want, out)
		}
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if !strings.Contains(m.View(), "accomplishments: shipped") {
		t.Fatalf("expected review answers in view:\n%s", m.View())
	}
}

func TestLoadErrorIsShown(t *testing.T) {
	m := NewModel(&fakeSource{err: errors.New("disk gone")}, 7, fixedNow)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	if !strings.Contains(m.View(), "disk gone") {
		t.Fatalf("expected error in footer:\n%s", m.View())
	}
}
