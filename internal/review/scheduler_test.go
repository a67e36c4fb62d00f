package review

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/focustimer/internal/clock"
	"github.com/verte-zerg/focustimer/internal/model"
)

type memRecorder struct {
	mu   sync.Mutex
	got  []model.ReviewResponse
	fail error
}

func (m *memRecorder) RecordReview(_ context.Context, r model.ReviewResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.got = append(m.got, r)
	return nil
}

func testPrefs() model.NotificationPreferences {
	p := model.DefaultPreferences()
	p.DailyReview = model.DailyReviewPrefs{Enabled: true, Time: "18:00"}
	p.WeeklyReview = model.WeeklyReviewPrefs{Enabled: true, DayOfWeek: int(time.Friday), Time: "17:00"}
	return p
}

func TestPollFiresDailyAndStaysActive(t *testing.T) {
	clk := clock.NewFake(date(2026, 3, 3, 17, 0))
	var surfaced []model.PromptType
	rec := &memRecorder{}
	s := NewScheduler(rec, WithClock(clk), WithOnPrompt(func(p model.ReviewPrompt) {
		surfaced = append(surfaced, p.Type)
	}))
	s.ScheduleNextReviews(testPrefs())

	_, ok := s.Poll()
	assert.False(t, ok)

	clk.Set(date(2026, 3, 3, 18, 0))
	p, ok := s.Poll()
	require.True(t, ok)
	assert.Equal(t, model.PromptDaily, p.Type)
	assert.Equal(t, []model.PromptType{model.PromptDaily}, surfaced)

	clk.Set(date(2026, 3, 3, 18, 1))
	_, ok = s.Poll()
	assert.False(t, ok, "active prompt is not re-fired")
	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, model.PromptDaily, active.Type)

	resp, err := s.Submit(context.Background(), model.PromptDaily, map[string]string{"productivity": "4"})
	require.NoError(t, err)
	assert.Equal(t, date(2026, 3, 3, 18, 1), resp.CompletedAt)
	_, ok = s.Active()
	assert.False(t, ok)
	daily, _ := s.Next()
	assert.Equal(t, date(2026, 3, 4, 18, 0), daily)
	require.Len(t, rec.got, 1)
}

func TestGateHoldsBackDuePrompt(t *testing.T) {
	clk := clock.NewFake(date(2026, 3, 3, 18, 0))
	allow := false
	s := NewScheduler(nil, WithClock(clk), WithGate(func(f model.Family) bool {
		return allow && f == model.FamilyDailyReview
	}))
	clk.Set(date(2026, 3, 3, 17, 59))
	s.ScheduleNextReviews(testPrefs())
	clk.Set(date(2026, 3, 3, 18, 0))

	_, ok := s.Poll()
	assert.False(t, ok)
	allow = true
	clk.Set(date(2026, 3, 3, 18, 1))
	p, ok := s.Poll()
	require.True(t, ok)
	assert.Equal(t, model.PromptDaily, p.Type)
}

func TestSnoozeReschedulesOnlyThatPrompt(t *testing.T) {
	// Friday 17:30: weekly is due at 17:00, daily at 18:00.
	clk := clock.NewFake(date(2026, 3, 6, 16, 0))
	s := NewScheduler(nil, WithClock(clk))
	s.ScheduleNextReviews(testPrefs())
	clk.Set(date(2026, 3, 6, 17, 30))

	p, ok := s.Poll()
	require.True(t, ok)
	require.Equal(t, model.PromptWeekly, p.Type)

	assert.ErrorIs(t, s.Snooze(model.PromptDaily, 10), ErrNoActivePrompt)
	require.NoError(t, s.Snooze(model.PromptWeekly, 45))
	daily, weekly := s.Next()
	assert.Equal(t, date(2026, 3, 6, 18, 15), weekly)
	assert.Equal(t, date(2026, 3, 6, 18, 0), daily)

	clk.Set(date(2026, 3, 6, 18, 0))
	p, ok = s.Poll()
	require.True(t, ok)
	assert.Equal(t, model.PromptDaily, p.Type)
	require.NoError(t, s.Dismiss(model.PromptDaily))
	daily, _ = s.Next()
	assert.Equal(t, date(2026, 3, 9, 18, 0), daily)

	clk.Set(date(2026, 3, 6, 18, 15))
	p, ok = s.Poll()
	require.True(t, ok)
	assert.Equal(t, model.PromptWeekly, p.Type)
}

func TestSubmitValidationAndFailureKeepPromptActive(t *testing.T) {
	clk := clock.NewFake(date(2026, 3, 6, 16, 0))
	rec := &memRecorder{fail: errors.New("offline")}
	s := NewScheduler(rec, WithClock(clk))
	s.ScheduleNextReviews(testPrefs())
	clk.Set(date(2026, 3, 6, 17, 0))
	_, ok := s.Poll()
	require.True(t, ok)

	_, err := s.Submit(context.Background(), model.PromptDaily, map[string]string{"productivity": "3"})
	assert.ErrorIs(t, err, ErrNoActivePrompt)

	_, err = s.Submit(context.Background(), model.PromptWeekly, map[string]string{"week_rating": "4"})
	require.Error(t, err)

	_, err = s.Submit(context.Background(), model.PromptWeekly, map[string]string{"week_rating": "4", "goals_achieved": "yes"})
	require.Error(t, err)
	_, ok = s.Active()
	assert.True(t, ok)

	rec.fail = nil
	_, err = s.Submit(context.Background(), model.PromptWeekly, map[string]string{"week_rating": "4", "goals_achieved": "yes"})
	require.NoError(t, err)
	_, weekly := s.Next()
	assert.Equal(t, date(2026, 3, 13, 17, 0), weekly)
}

func TestSessionEndSubmitDoesNotNeedActivePrompt(t *testing.T) {
	rec := &memRecorder{}
	s := NewScheduler(rec, WithClock(clock.NewFake(date(2026, 3, 3, 10, 0))))
	_, err := s.Submit(context.Background(), model.PromptSessionEnd, map[string]string{"quality": "5"})
	require.NoError(t, err)
	require.Len(t, rec.got, 1)
	assert.Equal(t, model.PromptSessionEnd, rec.got[0].PromptType)
}

func TestDisabledReviewsNeverFire(t *testing.T) {
	clk := clock.NewFake(date(2026, 3, 6, 16, 0))
	s := NewScheduler(nil, WithClock(clk))
	p := testPrefs()
	p.DailyReview.Enabled = false
	p.WeeklyReview.Time = "bogus"
	s.ScheduleNextReviews(p)

	daily, weekly := s.Next()
	assert.True(t, daily.IsZero())
	assert.True(t, weekly.IsZero())
	clk.Set(date(2026, 3, 20, 20, 0))
	_, ok := s.Poll()
	assert.False(t, ok)
}

func TestStartStopPollLoop(t *testing.T) {
	clk := clock.NewFake(date(2026, 3, 3, 17, 58))
	fired := make(chan model.ReviewPrompt, 1)
	s := NewScheduler(nil, WithClock(clk), WithPollInterval(time.Minute), WithOnPrompt(func(p model.ReviewPrompt) {
		fired <- p
	}))
	s.ScheduleNextReviews(testPrefs())

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)
	assert.True(t, s.Running())

	clk.Advance(time.Minute)
	clk.Advance(time.Minute)

	select {
	case p := <-fired:
		assert.Equal(t, model.PromptDaily, p.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("poll loop did not fire the due prompt")
	}

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
}
