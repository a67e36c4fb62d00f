package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/focustimer/internal/model"
	"github.com/verte-zerg/focustimer/internal/notify"
	"github.com/verte-zerg/focustimer/internal/stats"
)

// MilestoneKey is the storage key for the last announced goal and streak.
const MilestoneKey = "milestoneState"

type milestoneState struct {
	GoalDate   string `json:"goalDate,omitempty"`
	StreakDate string `json:"streakDate,omitempty"`
}

// checkMilestones announces the daily goal and streak milestones, each at most once a day.
func (e *Engine) checkMilestones(ctx context.Context, prefs model.NotificationPreferences, now time.Time) {
	if e.history == nil {
		return
	}
	goalOn := prefs.GoalAchievements.Enabled && prefs.GoalAchievements.DailySessionGoal > 0
	streakOn := prefs.StreakMilestones.Enabled && len(prefs.StreakMilestones.Milestones) > 0
	if !goalOn && !streakOn {
		return
	}
	sessions, err := e.history.ListSessions(ctx, model.HistoryFilter{CompletedOnly: true})
	if err != nil {
		e.logger.Warn("failed to load history for milestones", zap.Error(err))
		return
	}

	state := e.loadMilestones()
	today := now.Format(time.DateOnly)
	changed := false

	if goalOn && state.GoalDate != today {
		goal := prefs.GoalAchievements.DailySessionGoal
		if done := stats.CompletedOn(sessions, now); done >= goal {
			shown := e.dispatcher.Emit(notify.Notification{
				Family: model.FamilyGoalAchievements,
				Title:  "Daily goal reached",
				Body:   fmt.Sprintf("%d of %d sessions completed today", done, goal),
				Sound:  prefs.GoalAchievements.Sound,
				At:     now,
			})
			if shown {
				state.GoalDate = today
				changed = true
			}
		}
	}

	if streakOn && state.StreakDate != today {
		streak := stats.CurrentStreak(sessions, now)
		if slices.Contains(prefs.StreakMilestones.Milestones, streak) {
			shown := e.dispatcher.Emit(notify.Notification{
				Family: model.FamilyStreakMilestones,
				Title:  "Streak milestone",
				Body:   fmt.Sprintf("%d days in a row", streak),
				Sound:  prefs.StreakMilestones.Sound,
				At:     now,
			})
			if shown {
				state.StreakDate = today
				changed = true
			}
		}
	}

	if changed {
		e.saveMilestones(state)
	}
}

func (e *Engine) loadMilestones() milestoneState {
	var state milestoneState
	if e.store == nil {
		return state
	}
	raw, ok, err := e.store.Get(MilestoneKey)
	if err != nil || !ok {
		return state
	}
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		e.logger.Warn("corrupt milestone state, resetting", zap.Error(err))
		return milestoneState{}
	}
	return state
}

func (e *Engine) saveMilestones(state milestoneState) {
	if e.store == nil {
		return
	}
	data, err := json.Marshal(state)
	if err != nil {
		return
	}
	if err := e.store.Set(MilestoneKey, string(data)); err != nil {
		e.logger.Warn("failed to persist milestone state", zap.Error(err))
	}
}
