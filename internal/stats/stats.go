// Package stats summarizes focus session history.
package stats

import (
	"math"
	"strings"
	"time"

	"github.com/verte-zerg/focustimer/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Summary aggregates a set of sessions.
type Summary struct {
	Sessions      int
	Completed     int
	Abandoned     int
	Breaks        int
	FocusMinutes  int
	AvgQuality    float64
	RatedSessions int
	CurrentStreak int
	LongestStreak int
}

// Summarize computes totals. Break sessions count toward Breaks only.
func Summarize(sessions []model.SessionAggregate, now time.Time) Summary {
	var s Summary
	var qualitySum int
	for _, sess := range sessions {
		if sess.SessionType == model.SessionBreak {
			s.Breaks++
			continue
		}
		s.Sessions++
		s.FocusMinutes += sess.WorkedSeconds / 60
		if sess.Completed {
			s.Completed++
		} else {
			s.Abandoned++
		}
		if sess.QualityRating != nil {
			s.RatedSessions++
			qualitySum += *sess.QualityRating
		}
	}
	if s.RatedSessions > 0 {
		s.AvgQuality = float64(qualitySum) / float64(s.RatedSessions)
	}
	s.CurrentStreak = CurrentStreak(sessions, now)
	s.LongestStreak = LongestStreak(sessions)
	return s
}

// CompletedOn counts completed focus sessions that ended on the same local day as day.
func CompletedOn(sessions []model.SessionAggregate, day time.Time) int {
	key := dayKey(day)
	n := 0
	for _, s := range sessions {
		if countsForStreak(s) && dayKey(s.EndedAt.In(day.Location())) == key {
			n++
		}
	}
	return n
}

// CurrentStreak counts consecutive days with a completed focus session, ending today.
// A day without sessions yet today does not break the streak until it is over.
func CurrentStreak(sessions []model.SessionAggregate, now time.Time) int {
	days := activeDays(sessions, now.Location())
	day := startOfDay(now)
	if !days[dayKey(day)] {
		day = day.AddDate(0, 0, -1)
	}
	n := 0
	for days[dayKey(day)] {
		n++
		day = day.AddDate(0, 0, -1)
	}
	return n
}

// LongestStreak returns the longest run of consecutive active days.
func LongestStreak(sessions []model.SessionAggregate) int {
	if len(sessions) == 0 {
		return 0
	}
	loc := sessions[0].EndedAt.Location()
	days := activeDays(sessions, loc)
	best := 0
	for key := range days {
		day, err := time.ParseInLocation(time.DateOnly, key, loc)
		if err != nil {
			continue
		}
		if days[dayKey(day.AddDate(0, 0, -1))] {
			continue
		}
		n := 0
		for days[dayKey(day)] {
			n++
			day = day.AddDate(0, 0, 1)
		}
		if n > best {
			best = n
		}
	}
	return best
}

// DailyFocusMinutes returns worked minutes per day for the last days days, oldest first.
func DailyFocusMinutes(sessions []model.SessionAggregate, days int, now time.Time) []float64 {
	if days <= 0 {
		return nil
	}
	out := make([]float64, days)
	first := startOfDay(now).AddDate(0, 0, -(days - 1))
	index := map[string]int{}
	for i := 0; i < days; i++ {
		index[dayKey(first.AddDate(0, 0, i))] = i
	}
	for _, s := range sessions {
		if s.SessionType == model.SessionBreak {
			continue
		}
		if i, ok := index[dayKey(s.EndedAt.In(now.Location()))]; ok {
			out[i] += float64(s.WorkedSeconds) / 60
		}
	}
	return out
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		den := math.Min(float64(i+1), float64(window))
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

func countsForStreak(s model.SessionAggregate) bool {
	return s.Completed && s.SessionType != model.SessionBreak
}

func activeDays(sessions []model.SessionAggregate, loc *time.Location) map[string]bool {
	days := map[string]bool{}
	for _, s := range sessions {
		if countsForStreak(s) {
			days[dayKey(s.EndedAt.In(loc))] = true
		}
	}
	return days
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func dayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
