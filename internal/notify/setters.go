package notify

import (
	"fmt"
	"sort"
	"time"

	"github.com/verte-zerg/focustimer/internal/model"
)

// Setter modifies one leaf of the preference tree.
type Setter func(*model.NotificationPreferences) error

// SetEnabled toggles all notifications.
func SetEnabled(on bool) Setter {
	return func(p *model.NotificationPreferences) error {
		p.Enabled = on
		return nil
	}
}

// SetFamilyEnabled toggles one notification family.
func SetFamilyEnabled(f model.Family, on bool) Setter {
	return func(p *model.NotificationPreferences) error {
		switch f {
		case model.FamilySessionComplete:
			p.SessionComplete.Enabled = on
		case model.FamilyBreakReminders:
			p.BreakReminders.Enabled = on
		case model.FamilyDailyReview:
			p.DailyReview.Enabled = on
		case model.FamilyWeeklyReview:
			p.WeeklyReview.Enabled = on
		case model.FamilyGoalAchievements:
			p.GoalAchievements.Enabled = on
		case model.FamilyStreakMilestones:
			p.StreakMilestones.Enabled = on
		case model.FamilyIdleDetection:
			p.IdleDetection.Enabled = on
		case model.FamilySystemSleep:
			p.SystemSleep.Enabled = on
		default:
			return fmt.Errorf("unknown notification family %q", f)
		}
		return nil
	}
}

// SetBreakFrequency sets how often breaks are suggested.
func SetBreakFrequency(f model.BreakFrequency) Setter {
	return func(p *model.NotificationPreferences) error {
		if _, ok := f.Sessions(); !ok && f != model.FrequencySmart {
			return fmt.Errorf("unknown break frequency %q", f)
		}
		p.BreakReminders.Frequency = f
		return nil
	}
}

// SetSmartThreshold sets the smart rule's work minutes.
func SetSmartThreshold(minutes int) Setter {
	return func(p *model.NotificationPreferences) error {
		if minutes <= 0 {
			return fmt.Errorf("smart threshold must be > 0")
		}
		p.BreakReminders.SmartThreshold = minutes
		return nil
	}
}

// SetDailyReviewTime sets the HH:MM of the daily review.
func SetDailyReviewTime(hhmm string) Setter {
	return func(p *model.NotificationPreferences) error {
		if err := checkTimeOfDay(hhmm); err != nil {
			return err
		}
		p.DailyReview.Time = hhmm
		return nil
	}
}

// SetWeekendsIncluded controls whether daily reviews fire on weekends.
func SetWeekendsIncluded(on bool) Setter {
	return func(p *model.NotificationPreferences) error {
		p.DailyReview.WeekendsIncluded = on
		return nil
	}
}

// SetWeeklyReview sets the weekday and HH:MM of the weekly review.
func SetWeeklyReview(day time.Weekday, hhmm string) Setter {
	return func(p *model.NotificationPreferences) error {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("invalid weekday %d", day)
		}
		if err := checkTimeOfDay(hhmm); err != nil {
			return err
		}
		p.WeeklyReview.DayOfWeek = int(day)
		p.WeeklyReview.Time = hhmm
		return nil
	}
}

// SetDailySessionGoal sets the completed-session goal per day.
func SetDailySessionGoal(n int) Setter {
	return func(p *model.NotificationPreferences) error {
		if n <= 0 {
			return fmt.Errorf("daily session goal must be > 0")
		}
		p.GoalAchievements.DailySessionGoal = n
		return nil
	}
}

// SetStreakMilestones replaces the milestone list. Values are sorted and deduplicated.
func SetStreakMilestones(days ...int) Setter {
	return func(p *model.NotificationPreferences) error {
		seen := map[int]bool{}
		out := make([]int, 0, len(days))
		for _, d := range days {
			if d <= 0 {
				return fmt.Errorf("milestone must be > 0, got %d", d)
			}
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
		sort.Ints(out)
		p.StreakMilestones.Milestones = out
		return nil
	}
}

// SetIdleThreshold sets minutes of inactivity before an idle nudge.
func SetIdleThreshold(minutes int) Setter {
	return func(p *model.NotificationPreferences) error {
		if minutes <= 0 {
			return fmt.Errorf("idle threshold must be > 0")
		}
		p.IdleDetection.ThresholdMinutes = minutes
		return nil
	}
}

// SetFocusMode replaces the focus mode policy.
func SetFocusMode(policy model.FocusModePolicy) Setter {
	return func(p *model.NotificationPreferences) error {
		p.FocusMode = policy
		return nil
	}
}

// SetSound toggles sound for families that support it.
func SetSound(f model.Family, on bool) Setter {
	return func(p *model.NotificationPreferences) error {
		switch f {
		case model.FamilySessionComplete:
			p.SessionComplete.Sound = on
		case model.FamilyBreakReminders:
			p.BreakReminders.Sound = on
		case model.FamilyDailyReview:
			p.DailyReview.Sound = on
		case model.FamilyWeeklyReview:
			p.WeeklyReview.Sound = on
		case model.FamilyGoalAchievements:
			p.GoalAchievements.Sound = on
		case model.FamilyStreakMilestones:
			p.StreakMilestones.Sound = on
		default:
			return fmt.Errorf("family %q has no sound setting", f)
		}
		return nil
	}
}

func checkTimeOfDay(v string) error {
	if _, err := time.Parse("15:04", v); err != nil {
		return fmt.Errorf("invalid time of day %q: expected HH:MM", v)
	}
	return nil
}
