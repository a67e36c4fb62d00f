// Package breaks decides when to suggest a break from accumulated work counters.
package breaks

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/verte-zerg/focustimer/internal/model"
)

const (
	// LongWorkMinutes triggers the time-based rule.
	LongWorkMinutes   = 120
	maxSmartBreak     = 20
	timeBasedDuration = 15
	patternDuration   = 10
)

// Counters are the inputs maintained by the session-completion hook.
type Counters struct {
	SessionsSinceLastBreak  int
	TotalWorkTimeSinceBreak int
}

// Evaluate applies the rules in priority order and returns the first match.
func Evaluate(c Counters, prefs model.BreakReminderPrefs) (model.BreakSuggestion, bool) {
	if c.TotalWorkTimeSinceBreak >= LongWorkMinutes {
		return model.BreakSuggestion{
			Type:                   model.SuggestionTimeBased,
			Reason:                 fmt.Sprintf("You've been working for %d minutes. Time for a longer break.", c.TotalWorkTimeSinceBreak),
			SuggestedDuration:      timeBasedDuration,
			Confidence:             0.9,
			SessionsSinceLastBreak: c.SessionsSinceLastBreak,
			TotalWorkTime:          c.TotalWorkTimeSinceBreak,
		}, true
	}

	if threshold, ok := prefs.Frequency.Sessions(); ok {
		if c.SessionsSinceLastBreak >= threshold {
			return model.BreakSuggestion{
				Type:                   model.SuggestionPatternBased,
				Reason:                 fmt.Sprintf("You've completed %d session(s) since your last break.", c.SessionsSinceLastBreak),
				SuggestedDuration:      patternDuration,
				Confidence:             0.8,
				SessionsSinceLastBreak: c.SessionsSinceLastBreak,
				TotalWorkTime:          c.TotalWorkTimeSinceBreak,
			}, true
		}
		return model.BreakSuggestion{}, false
	}

	if prefs.Frequency == model.FrequencySmart {
		threshold := prefs.SmartThreshold
		if threshold <= 0 {
			threshold = model.DefaultSmartThreshold
		}
		if c.TotalWorkTimeSinceBreak >= threshold {
			d := int(math.Round(float64(c.TotalWorkTimeSinceBreak) / 6))
			if d > maxSmartBreak {
				d = maxSmartBreak
			}
			return model.BreakSuggestion{
				Type:                   model.SuggestionProductivityBased,
				Reason:                 fmt.Sprintf("%d minutes of focused work. A short break keeps your productivity up.", c.TotalWorkTimeSinceBreak),
				SuggestedDuration:      d,
				Confidence:             0.75,
				SessionsSinceLastBreak: c.SessionsSinceLastBreak,
				TotalWorkTime:          c.TotalWorkTimeSinceBreak,
			}, true
		}
	}
	return model.BreakSuggestion{}, false
}

// Dismissal records a dismissed suggestion.
type Dismissal struct {
	Suggestion model.BreakSuggestion
	At         time.Time
}

// Engine tracks the counters and the lifecycle of the current suggestion.
// Gating on notification preferences happens in the caller at surfacing time.
type Engine struct {
	mu           sync.Mutex
	counters     Counters
	showing      *model.BreakSuggestion
	snoozedUntil time.Time
	dismissals   []Dismissal
}

// NewEngine returns an engine with zeroed counters.
func NewEngine() *Engine {
	return &Engine{}
}

// RecordSession updates the counters for a completed session. Breaks are not counted.
func (e *Engine) RecordSession(t model.SessionType, workedMinutes int) {
	if t == model.SessionBreak || workedMinutes < 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.counters.SessionsSinceLastBreak++
	e.counters.TotalWorkTimeSinceBreak += workedMinutes
}

// Counters returns the current counters.
func (e *Engine) Counters() Counters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters
}

// Suggest evaluates the rules unless a suggestion is already showing or a snooze is active.
// An expired snooze is cleared.
func (e *Engine) Suggest(prefs model.BreakReminderPrefs, now time.Time) (model.BreakSuggestion, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.showing != nil {
		return model.BreakSuggestion{}, false
	}
	if !e.snoozedUntil.IsZero() {
		if now.Before(e.snoozedUntil) {
			return model.BreakSuggestion{}, false
		}
		e.snoozedUntil = time.Time{}
	}
	return Evaluate(e.counters, prefs)
}

// Show marks s as the currently surfaced suggestion.
func (e *Engine) Show(s model.BreakSuggestion) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.showing = &s
}

// Current returns the surfaced suggestion, if any.
func (e *Engine) Current() (model.BreakSuggestion, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.showing == nil {
		return model.BreakSuggestion{}, false
	}
	return *e.showing, true
}

// Accept clears the suggestion and resets both counters.
func (e *Engine) Accept() (model.BreakSuggestion, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.showing == nil {
		return model.BreakSuggestion{}, false
	}
	s := *e.showing
	e.showing = nil
	e.counters = Counters{}
	return s, true
}

// Dismiss clears the suggestion and records it. Counters are kept.
func (e *Engine) Dismiss(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.showing == nil {
		return false
	}
	e.dismissals = append(e.dismissals, Dismissal{Suggestion: *e.showing, At: now})
	e.showing = nil
	return true
}

// Snooze clears the suggestion and suppresses evaluation for d.
func (e *Engine) Snooze(now time.Time, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.showing = nil
	e.snoozedUntil = now.Add(d)
}

// SnoozedUntil returns the active snooze deadline, or zero.
func (e *Engine) SnoozedUntil() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snoozedUntil
}

// Dismissals returns the recorded dismissals.
func (e *Engine) Dismissals() []Dismissal {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Dismissal, len(e.dismissals))
	copy(out, e.dismissals)
	return out
}
