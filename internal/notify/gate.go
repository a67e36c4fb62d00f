// Package notify decides whether notifications may surface and delivers them.
package notify

import "github.com/verte-zerg/focustimer/internal/model"

// FocusState reports whether a focus session is actively running.
type FocusState interface {
	IsFocusActive() bool
}

// PreferenceSource returns the current preferences.
type PreferenceSource interface {
	Current() model.NotificationPreferences
}

// Gate is the single predicate every notification passes through when surfacing.
type Gate struct {
	prefs PreferenceSource
	focus FocusState
}

// NewGate creates a gate. focus may be nil when no timer is attached.
func NewGate(prefs PreferenceSource, focus FocusState) *Gate {
	return &Gate{prefs: prefs, focus: focus}
}

// CanShow reports whether a notification of family f may be shown now.
func (g *Gate) CanShow(f model.Family) bool {
	return Allowed(g.prefs.Current(), g.focus != nil && g.focus.IsFocusActive(), f)
}

// Allowed evaluates the gate rules for fixed inputs.
func Allowed(p model.NotificationPreferences, focusActive bool, f model.Family) bool {
	if !p.Enabled {
		return false
	}
	if focusActive && p.FocusMode.SuppressOtherNotifications {
		if f == model.FamilyBreakReminders {
			if !p.FocusMode.AllowBreakReminders {
				return false
			}
		} else if p.FocusMode.AllowUrgentOnly {
			return false
		}
	}
	return p.FamilyEnabled(f)
}
