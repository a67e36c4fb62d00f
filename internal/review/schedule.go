// Package review schedules daily and weekly reflection prompts.
package review

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/focustimer/internal/model"
)

// ParseTimeOfDay parses an HH:MM value.
func ParseTimeOfDay(v string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(v), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid time of day %q: expected HH:MM", v)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", v)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", v)
	}
	return hour, minute, nil
}

// NextDaily returns the next daily review strictly after now. Weekends are skipped
// unless included.
func NextDaily(now time.Time, p model.DailyReviewPrefs) (time.Time, error) {
	hour, minute, err := ParseTimeOfDay(p.Time)
	if err != nil {
		return time.Time{}, err
	}
	next := at(now, hour, minute)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	for !p.WeekendsIncluded && isWeekend(next.Weekday()) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

// NextWeekly returns the next weekly review. DayOfWeek uses time.Weekday numbering.
// When today is the target day and the time has passed, the review rolls a full week.
func NextWeekly(now time.Time, p model.WeeklyReviewPrefs) (time.Time, error) {
	if p.DayOfWeek < 0 || p.DayOfWeek > 6 {
		return time.Time{}, fmt.Errorf("invalid day of week %d", p.DayOfWeek)
	}
	hour, minute, err := ParseTimeOfDay(p.Time)
	if err != nil {
		return time.Time{}, err
	}
	days := (p.DayOfWeek - int(now.Weekday()) + 7) % 7
	next := at(now, hour, minute).AddDate(0, 0, days)
	if days == 0 && !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next, nil
}

func at(day time.Time, hour, minute int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, day.Location())
}

func isWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}
