package review

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/focustimer/internal/model"
)

func date(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func TestParseTimeOfDay(t *testing.T) {
	h, m, err := ParseTimeOfDay("18:05")
	require.NoError(t, err)
	assert.Equal(t, 18, h)
	assert.Equal(t, 5, m)

	for _, bad := range []string{"", "18", "24:00", "12:60", "ab:cd", "-1:00"} {
		_, _, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}

func TestNextDaily(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		weekends bool
		want     time.Time
	}{
		// 2026-03-07 is a Saturday.
		{name: "saturday skips to monday", now: date(2026, 3, 7, 17, 0), want: date(2026, 3, 9, 18, 0)},
		{name: "saturday with weekends", now: date(2026, 3, 7, 17, 0), weekends: true, want: date(2026, 3, 7, 18, 0)},
		{name: "later today", now: date(2026, 3, 3, 9, 30), want: date(2026, 3, 3, 18, 0)},
		{name: "past today rolls", now: date(2026, 3, 3, 18, 30), want: date(2026, 3, 4, 18, 0)},
		{name: "exactly now rolls", now: date(2026, 3, 3, 18, 0), want: date(2026, 3, 4, 18, 0)},
		{name: "friday evening", now: date(2026, 3, 6, 19, 0), want: date(2026, 3, 9, 18, 0)},
		{name: "month boundary", now: date(2026, 3, 31, 19, 0), want: date(2026, 4, 1, 18, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextDaily(tt.now, model.DailyReviewPrefs{Enabled: true, Time: "18:00", WeekendsIncluded: tt.weekends})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextWeekly(t *testing.T) {
	friday := int(time.Friday)
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{name: "monday to friday", now: date(2026, 3, 2, 8, 0), want: date(2026, 3, 6, 17, 0)},
		{name: "friday before time", now: date(2026, 3, 6, 16, 59), want: date(2026, 3, 6, 17, 0)},
		{name: "friday after time rolls a week", now: date(2026, 3, 6, 17, 1), want: date(2026, 3, 13, 17, 0)},
		{name: "saturday", now: date(2026, 3, 7, 10, 0), want: date(2026, 3, 13, 17, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextWeekly(tt.now, model.WeeklyReviewPrefs{Enabled: true, DayOfWeek: friday, Time: "17:00"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NextWeekly(date(2026, 3, 2, 8, 0), model.WeeklyReviewPrefs{DayOfWeek: 7, Time: "17:00"})
	assert.Error(t, err)
}

func TestValidateAnswers(t *testing.T) {
	daily := DailyPrompt()
	assert.Error(t, ValidateAnswers(daily, map[string]string{"accomplishments": "x"}))
	assert.Error(t, ValidateAnswers(daily, map[string]string{"productivity": "9"}))
	assert.NoError(t, ValidateAnswers(daily, map[string]string{"productivity": "4"}))

	weekly := WeeklyPrompt()
	assert.Error(t, ValidateAnswers(weekly, map[string]string{"week_rating": "3"}))
	assert.Error(t, ValidateAnswers(weekly, map[string]string{"week_rating": "3", "goals_achieved": "maybe"}))
	assert.NoError(t, ValidateAnswers(weekly, map[string]string{"week_rating": "3", "goals_achieved": "Yes"}))

	require.Len(t, daily.Questions, 4)
	require.Len(t, weekly.Questions, 5)
	assert.True(t, daily.Questions[0].Required)
	assert.True(t, weekly.Questions[1].Required)
	assert.Equal(t, model.QuestionYesNo, weekly.Questions[1].Type)

	r := Rating(map[string]string{"quality": " 5 "}, "quality")
	require.NotNil(t, r)
	assert.Equal(t, 5, *r)
	assert.Nil(t, Rating(map[string]string{}, "quality"))
}
