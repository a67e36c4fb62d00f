package breaks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/focustimer/internal/model"
)

func prefsWith(f model.BreakFrequency) model.BreakReminderPrefs {
	p := model.DefaultPreferences().BreakReminders
	p.Frequency = f
	return p
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		counters   Counters
		frequency  model.BreakFrequency
		wantOK     bool
		wantType   model.SuggestionType
		confidence float64
		duration   int
	}{
		{
			name:       "time rule wins over frequency",
			counters:   Counters{SessionsSinceLastBreak: 1, TotalWorkTimeSinceBreak: 125},
			frequency:  model.FrequencyAfterEach,
			wantOK:     true,
			wantType:   model.SuggestionTimeBased,
			confidence: 0.9,
			duration:   15,
		},
		{
			name:       "time rule applies under smart",
			counters:   Counters{SessionsSinceLastBreak: 2, TotalWorkTimeSinceBreak: 120},
			frequency:  model.FrequencySmart,
			wantOK:     true,
			wantType:   model.SuggestionTimeBased,
			confidence: 0.9,
			duration:   15,
		},
		{
			name:       "after each",
			counters:   Counters{SessionsSinceLastBreak: 1, TotalWorkTimeSinceBreak: 25},
			frequency:  model.FrequencyAfterEach,
			wantOK:     true,
			wantType:   model.SuggestionPatternBased,
			confidence: 0.8,
			duration:   10,
		},
		{
			name:      "after 3 not reached",
			counters:  Counters{SessionsSinceLastBreak: 2, TotalWorkTimeSinceBreak: 100},
			frequency: model.FrequencyAfter3,
		},
		{
			name:       "after 2 reached",
			counters:   Counters{SessionsSinceLastBreak: 2, TotalWorkTimeSinceBreak: 30},
			frequency:  model.FrequencyAfter2,
			wantOK:     true,
			wantType:   model.SuggestionPatternBased,
			confidence: 0.8,
			duration:   10,
		},
		{
			name:       "smart at threshold",
			counters:   Counters{SessionsSinceLastBreak: 2, TotalWorkTimeSinceBreak: 90},
			frequency:  model.FrequencySmart,
			wantOK:     true,
			wantType:   model.SuggestionProductivityBased,
			confidence: 0.75,
			duration:   15,
		},
		{
			name:       "smart duration rounds",
			counters:   Counters{SessionsSinceLastBreak: 4, TotalWorkTimeSinceBreak: 117},
			frequency:  model.FrequencySmart,
			wantOK:     true,
			wantType:   model.SuggestionProductivityBased,
			confidence: 0.75,
			duration:   20,
		},
		{
			name:      "smart below threshold",
			counters:  Counters{SessionsSinceLastBreak: 5, TotalWorkTimeSinceBreak: 89},
			frequency: model.FrequencySmart,
		},
		{
			name:      "unknown frequency",
			counters:  Counters{SessionsSinceLastBreak: 5, TotalWorkTimeSinceBreak: 100},
			frequency: "hourly",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := Evaluate(tt.counters, prefsWith(tt.frequency))
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantType, s.Type)
			assert.InDelta(t, tt.confidence, s.Confidence, 1e-9)
			assert.Equal(t, tt.duration, s.SuggestedDuration)
			assert.Equal(t, tt.counters.SessionsSinceLastBreak, s.SessionsSinceLastBreak)
			assert.Equal(t, tt.counters.TotalWorkTimeSinceBreak, s.TotalWorkTime)
			assert.NotEmpty(t, s.Reason)
		})
	}
}

func TestSmartDurationCappedAt20(t *testing.T) {
	p := prefsWith(model.FrequencySmart)
	p.SmartThreshold = 30
	s, ok := Evaluate(Counters{SessionsSinceLastBreak: 1, TotalWorkTimeSinceBreak: 119}, p)
	require.True(t, ok)
	assert.Equal(t, 20, s.SuggestedDuration)

	s, ok = Evaluate(Counters{SessionsSinceLastBreak: 1, TotalWorkTimeSinceBreak: 45}, p)
	require.True(t, ok)
	assert.Equal(t, 8, s.SuggestedDuration)
}

func TestRecordSessionIgnoresBreaks(t *testing.T) {
	e := NewEngine()
	e.RecordSession(model.SessionDeepWork, 50)
	e.RecordSession(model.SessionBreak, 10)
	e.RecordSession(model.SessionQuickTask, 15)
	assert.Equal(t, Counters{SessionsSinceLastBreak: 2, TotalWorkTimeSinceBreak: 65}, e.Counters())
}

func TestAcceptResetsCountersDismissDoesNot(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	prefs := prefsWith(model.FrequencyAfterEach)
	e := NewEngine()
	e.RecordSession(model.SessionDeepWork, 50)

	s, ok := e.Suggest(prefs, now)
	require.True(t, ok)
	e.Show(s)
	_, ok = e.Suggest(prefs, now)
	assert.False(t, ok, "one suggestion at a time")

	require.True(t, e.Dismiss(now))
	assert.Equal(t, 1, e.Counters().SessionsSinceLastBreak)
	require.Len(t, e.Dismissals(), 1)
	assert.False(t, e.Dismiss(now))

	s, ok = e.Suggest(prefs, now)
	require.True(t, ok)
	e.Show(s)
	accepted, ok := e.Accept()
	require.True(t, ok)
	assert.Equal(t, model.SuggestionPatternBased, accepted.Type)
	assert.Equal(t, Counters{}, e.Counters())
	_, ok = e.Current()
	assert.False(t, ok)
	_, ok = e.Accept()
	assert.False(t, ok)
}

func TestSnoozeSuppressesEvaluation(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	prefs := prefsWith(model.FrequencyAfterEach)
	e := NewEngine()
	e.RecordSession(model.SessionDeepWork, 50)

	s, ok := e.Suggest(prefs, now)
	require.True(t, ok)
	e.Show(s)
	e.Snooze(now, 5*time.Minute)
	_, showing := e.Current()
	assert.False(t, showing)

	_, ok = e.Suggest(prefs, now.Add(4*time.Minute))
	assert.False(t, ok)
	assert.False(t, e.SnoozedUntil().IsZero())

	_, ok = e.Suggest(prefs, now.Add(6*time.Minute))
	assert.True(t, ok)
	assert.True(t, e.SnoozedUntil().IsZero(), "expired snooze is cleared")
}
