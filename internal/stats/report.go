package stats

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/focustimer/internal/model"
)

// History lists stored sessions.
type History interface {
	ListSessions(ctx context.Context, filter model.HistoryFilter) ([]model.SessionAggregate, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Days     int
	Now      time.Time
	Sessions []model.SessionAggregate
	Summary  Summary
	Daily    []float64
	AllTime  Summary
}

// BuildReport loads history and prepares the last days days for rendering.
func BuildReport(ctx context.Context, h History, days int, now time.Time) (Report, error) {
	if days <= 0 {
		return Report{}, fmt.Errorf("days must be > 0")
	}
	all, err := h.ListSessions(ctx, model.HistoryFilter{})
	if err != nil {
		return Report{}, fmt.Errorf("failed to load sessions: %w", err)
	}
	since := startOfDay(now).AddDate(0, 0, -(days - 1))
	var window []model.SessionAggregate
	for _, s := range all {
		if !s.EndedAt.Before(since) {
			window = append(window, s)
		}
	}
	return Report{
		Days:     days,
		Now:      now,
		Sessions: window,
		Summary:  Summarize(window, now),
		Daily:    DailyFocusMinutes(window, days, now),
		AllTime:  Summarize(all, now),
	}, nil
}

// Render prints the report.
func (r Report) Render(w io.Writer, width int, forceColor bool) error {
	if r.Summary.Sessions == 0 && r.Summary.Breaks == 0 {
		_, err := fmt.Fprintf(w, "No sessions in the last %d days.\n", r.Days)
		return err
	}
	quality := "-"
	if r.Summary.RatedSessions > 0 {
		quality = fmt.Sprintf("%.2f", r.Summary.AvgQuality)
	}
	lines := []string{
		fmt.Sprintf("Summary (last %d days)", r.Days),
		fmt.Sprintf("Sessions: %d (%d completed, %d abandoned)", r.Summary.Sessions, r.Summary.Completed, r.Summary.Abandoned),
		fmt.Sprintf("Breaks: %d", r.Summary.Breaks),
		fmt.Sprintf("Focus time: %s", formatMinutes(r.Summary.FocusMinutes)),
		fmt.Sprintf("Avg quality: %s", quality),
		fmt.Sprintf("Current streak: %d days (longest %d)", r.AllTime.CurrentStreak, r.AllTime.LongestStreak),
		fmt.Sprintf("Trend: [%s]", Sparkline(r.Daily)),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	if err := r.renderTypes(w); err != nil {
		return err
	}

	bars := make([]Bar, len(r.Daily))
	first := startOfDay(r.Now).AddDate(0, 0, -(len(r.Daily) - 1))
	for i, v := range r.Daily {
		bars[i] = Bar{Label: first.AddDate(0, 0, i).Format("Mon 01-02"), Value: v}
	}
	return RenderBars(w, "Focus minutes per day", bars, width, forceColor)
}

func (r Report) renderTypes(w io.Writer) error {
	for _, line := range typeBreakdown(r.Sessions) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

type typeRow struct {
	sessionType model.SessionType
	sessions    int
	completed   int
	minutes     int
}

// typeBreakdown renders one aligned row per session type, most focus time first.
// Share is each type's part of the window's worked minutes.
func typeBreakdown(sessions []model.SessionAggregate) []string {
	byType := map[model.SessionType]*typeRow{}
	total := 0
	for _, s := range sessions {
		row, ok := byType[s.SessionType]
		if !ok {
			row = &typeRow{sessionType: s.SessionType}
			byType[s.SessionType] = row
		}
		row.sessions++
		if s.Completed {
			row.completed++
		}
		row.minutes += s.WorkedSeconds / 60
		total += s.WorkedSeconds / 60
	}
	if len(byType) == 0 {
		return nil
	}
	rows := make([]*typeRow, 0, len(byType))
	for _, row := range byType {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].minutes != rows[j].minutes {
			return rows[i].minutes > rows[j].minutes
		}
		return rows[i].sessionType < rows[j].sessionType
	})

	cells := [][]string{{"Type", "Sessions", "Done", "Minutes", "Share"}}
	for _, row := range rows {
		share := "-"
		if total > 0 {
			share = fmt.Sprintf("%d%%", row.minutes*100/total)
		}
		cells = append(cells, []string{
			string(row.sessionType),
			strconv.Itoa(row.sessions),
			strconv.Itoa(row.completed),
			strconv.Itoa(row.minutes),
			share,
		})
	}

	widths := make([]int, len(cells[0]))
	for _, line := range cells {
		for i, cell := range line {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	out := make([]string, len(cells))
	for n, line := range cells {
		var b strings.Builder
		for i, cell := range line {
			pad := strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell))
			switch {
			case i == 0:
				b.WriteString(cell + pad)
			default:
				b.WriteString(" " + pad + cell)
			}
		}
		out[n] = b.String()
	}
	return out
}

func formatMinutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", m/60, m%60)
}
