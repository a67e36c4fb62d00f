package model

// Family identifies a notification family.
type Family string

const (
	FamilySessionComplete  Family = "session_complete"
	FamilyBreakReminders   Family = "break_reminders"
	FamilyDailyReview      Family = "daily_review"
	FamilyWeeklyReview     Family = "weekly_review"
	FamilyGoalAchievements Family = "goal_achievements"
	FamilyStreakMilestones Family = "streak_milestones"
	FamilyIdleDetection    Family = "idle_detection"
	FamilySystemSleep      Family = "system_sleep"
)

// BreakFrequency controls how often break suggestions are offered.
type BreakFrequency string

const (
	FrequencyAfterEach BreakFrequency = "after_each"
	FrequencyAfter2    BreakFrequency = "after_2"
	FrequencyAfter3    BreakFrequency = "after_3"
	FrequencySmart     BreakFrequency = "smart"
)

// DefaultSmartThreshold is the smart rule's minutes of work before suggesting a break.
const DefaultSmartThreshold = 90

// Sessions returns the session-count threshold for fixed frequencies.
// ok is false for smart and unknown values.
func (f BreakFrequency) Sessions() (n int, ok bool) {
	switch f {
	case FrequencyAfterEach:
		return 1, true
	case FrequencyAfter2:
		return 2, true
	case FrequencyAfter3:
		return 3, true
	default:
		return 0, false
	}
}

// NotificationPreferences is the full preference tree. It is replaced as a whole.
type NotificationPreferences struct {
	Enabled          bool                 `json:"enabled"`
	SessionComplete  SessionCompletePrefs `json:"sessionComplete"`
	BreakReminders   BreakReminderPrefs   `json:"breakReminders"`
	DailyReview      DailyReviewPrefs     `json:"dailyReview"`
	WeeklyReview     WeeklyReviewPrefs    `json:"weeklyReview"`
	GoalAchievements GoalAchievementPrefs `json:"goalAchievements"`
	StreakMilestones StreakMilestonePrefs `json:"streakMilestones"`
	IdleDetection    IdleDetectionPrefs   `json:"idleDetection"`
	SystemSleep      SystemSleepPrefs     `json:"systemSleep"`
	FocusMode        FocusModePolicy      `json:"focusMode"`
}

// SessionCompletePrefs configures session-complete notifications.
type SessionCompletePrefs struct {
	Enabled  bool `json:"enabled"`
	Sound    bool `json:"sound"`
	Duration int  `json:"duration"`
}

// BreakReminderPrefs configures break suggestions.
type BreakReminderPrefs struct {
	Enabled        bool           `json:"enabled"`
	Frequency      BreakFrequency `json:"frequency"`
	SmartThreshold int            `json:"smartThreshold"`
	Sound          bool           `json:"sound"`
	Duration       int            `json:"duration"`
}

// DailyReviewPrefs configures the daily reflection prompt.
type DailyReviewPrefs struct {
	Enabled          bool   `json:"enabled"`
	Time             string `json:"time"`
	WeekendsIncluded bool   `json:"weekendsIncluded"`
	Sound            bool   `json:"sound"`
}

// WeeklyReviewPrefs configures the weekly reflection prompt.
// DayOfWeek follows time.Weekday numbering (0 = Sunday).
type WeeklyReviewPrefs struct {
	Enabled   bool   `json:"enabled"`
	DayOfWeek int    `json:"dayOfWeek"`
	Time      string `json:"time"`
	Sound     bool   `json:"sound"`
}

// GoalAchievementPrefs configures daily goal notifications.
type GoalAchievementPrefs struct {
	Enabled          bool `json:"enabled"`
	DailySessionGoal int  `json:"dailySessionGoal"`
	Sound            bool `json:"sound"`
}

// StreakMilestonePrefs configures streak notifications.
type StreakMilestonePrefs struct {
	Enabled    bool  `json:"enabled"`
	Milestones []int `json:"milestones"`
	Sound      bool  `json:"sound"`
}

// IdleDetectionPrefs configures the idle nudge.
type IdleDetectionPrefs struct {
	Enabled          bool `json:"enabled"`
	ThresholdMinutes int  `json:"thresholdMinutes"`
}

// SystemSleepPrefs configures sleep-detected notifications.
type SystemSleepPrefs struct {
	Enabled bool `json:"enabled"`
}

// FocusModePolicy controls suppression while a focus session runs.
type FocusModePolicy struct {
	SuppressOtherNotifications bool `json:"suppressOtherNotifications"`
	AllowBreakReminders        bool `json:"allowBreakReminders"`
	AllowUrgentOnly            bool `json:"allowUrgentOnly"`
}

// DefaultPreferences returns the out-of-the-box preference tree.
func DefaultPreferences() NotificationPreferences {
	return NotificationPreferences{
		Enabled:         true,
		SessionComplete: SessionCompletePrefs{Enabled: true, Sound: true, Duration: 5},
		BreakReminders: BreakReminderPrefs{
			Enabled:        true,
			Frequency:      FrequencyAfter2,
			SmartThreshold: DefaultSmartThreshold,
			Sound:          true,
			Duration:       10,
		},
		DailyReview:      DailyReviewPrefs{Enabled: true, Time: "18:00"},
		WeeklyReview:     WeeklyReviewPrefs{Enabled: true, DayOfWeek: 5, Time: "17:00"},
		GoalAchievements: GoalAchievementPrefs{Enabled: true, DailySessionGoal: 4, Sound: true},
		StreakMilestones: StreakMilestonePrefs{Enabled: true, Milestones: []int{3, 7, 14, 30, 60, 100}},
		IdleDetection:    IdleDetectionPrefs{Enabled: false, ThresholdMinutes: 30},
		SystemSleep:      SystemSleepPrefs{Enabled: true},
		FocusMode: FocusModePolicy{
			SuppressOtherNotifications: true,
			AllowBreakReminders:        true,
		},
	}
}

// Clone returns a deep copy so callers can read-modify-write safely.
func (p NotificationPreferences) Clone() NotificationPreferences {
	out := p
	if p.StreakMilestones.Milestones != nil {
		out.StreakMilestones.Milestones = append([]int(nil), p.StreakMilestones.Milestones...)
	}
	return out
}

// FamilyEnabled returns the per-family enabled flag.
func (p NotificationPreferences) FamilyEnabled(f Family) bool {
	switch f {
	case FamilySessionComplete:
		return p.SessionComplete.Enabled
	case FamilyBreakReminders:
		return p.BreakReminders.Enabled
	case FamilyDailyReview:
		return p.DailyReview.Enabled
	case FamilyWeeklyReview:
		return p.WeeklyReview.Enabled
	case FamilyGoalAchievements:
		return p.GoalAchievements.Enabled
	case FamilyStreakMilestones:
		return p.StreakMilestones.Enabled
	case FamilyIdleDetection:
		return p.IdleDetection.Enabled
	case FamilySystemSleep:
		return p.SystemSleep.Enabled
	default:
		return false
	}
}
