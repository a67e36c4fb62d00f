package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/verte-zerg/focustimer/internal/logging"
	"github.com/verte-zerg/focustimer/internal/model"
	"github.com/verte-zerg/focustimer/internal/store"
)

type staticPrefs model.NotificationPreferences

func (s staticPrefs) Current() model.NotificationPreferences { return model.NotificationPreferences(s) }

type focusFlag bool

func (f focusFlag) IsFocusActive() bool { return bool(f) }

type fakeRemote struct {
	prefs   *model.NotificationPreferences
	getErr  error
	putErr  error
	putCnt  int
	lastPut model.NotificationPreferences
}

func (f *fakeRemote) GetPreferences(context.Context) (model.NotificationPreferences, error) {
	if f.getErr != nil {
		return model.NotificationPreferences{}, f.getErr
	}
	if f.prefs == nil {
		return model.DefaultPreferences(), nil
	}
	return f.prefs.Clone(), nil
}

func (f *fakeRemote) PutPreferences(_ context.Context, p model.NotificationPreferences) error {
	f.putCnt++
	f.lastPut = p.Clone()
	return f.putErr
}

func TestAllowed(t *testing.T) {
	base := model.DefaultPreferences()
	off := base.Clone()
	off.Enabled = false
	noBreaks := base.Clone()
	noBreaks.FocusMode.AllowBreakReminders = false
	urgent := base.Clone()
	urgent.FocusMode.AllowUrgentOnly = true
	noSuppress := urgent.Clone()
	noSuppress.FocusMode.SuppressOtherNotifications = false
	dailyOff := base.Clone()
	dailyOff.DailyReview.Enabled = false

	tests := []struct {
		name   string
		prefs  model.NotificationPreferences
		focus  bool
		family model.Family
		want   bool
	}{
		{"master off", off, false, model.FamilySessionComplete, false},
		{"idle passes to family flag", base, false, model.FamilyDailyReview, true},
		{"family disabled", dailyOff, false, model.FamilyDailyReview, false},
		{"focus allows breaks", base, true, model.FamilyBreakReminders, true},
		{"focus blocks breaks", noBreaks, true, model.FamilyBreakReminders, false},
		{"focus without urgent-only passes others", base, true, model.FamilyDailyReview, true},
		{"urgent-only blocks others", urgent, true, model.FamilyDailyReview, false},
		{"urgent-only keeps breaks", urgent, true, model.FamilyBreakReminders, true},
		{"urgent-only ignored when idle", urgent, false, model.FamilyGoalAchievements, true},
		{"no suppression", noSuppress, true, model.FamilyWeeklyReview, true},
		{"focus still honours family flag", dailyOff, true, model.FamilyDailyReview, false},
		{"idle detection off by default", base, false, model.FamilyIdleDetection, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allowed(tt.prefs, tt.focus, tt.family))
			g := NewGate(staticPrefs(tt.prefs), focusFlag(tt.focus))
			assert.Equal(t, tt.want, g.CanShow(tt.family))
		})
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	remote := &fakeRemote{getErr: errors.New("offline"), putErr: errors.New("offline")}
	p := NewPreferences(kv, remote, nil)

	want := model.DefaultPreferences()
	want.BreakReminders.Frequency = model.FrequencySmart
	want.BreakReminders.SmartThreshold = 75
	want.StreakMilestones.Milestones = []int{5, 10}
	want.FocusMode.AllowUrgentOnly = true

	err := p.Update(ctx, want)
	require.Error(t, err, "server failure is reported")
	assert.Equal(t, want, p.Current(), "local state is committed regardless")

	fresh := NewPreferences(kv, remote, nil)
	assert.Equal(t, want, fresh.Load(ctx))
}

func TestLoadPrefersServerAndCachesLocally(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	server := model.DefaultPreferences()
	server.GoalAchievements.DailySessionGoal = 6
	p := NewPreferences(kv, &fakeRemote{prefs: &server}, nil)

	got := p.Load(ctx)
	assert.Equal(t, 6, got.GoalAchievements.DailySessionGoal)
	assert.True(t, kv.Has(PreferencesKey))

	offline := NewPreferences(kv, &fakeRemote{getErr: errors.New("down")}, nil)
	assert.Equal(t, 6, offline.Load(ctx).GoalAchievements.DailySessionGoal)
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	tl := logging.NewTestLogger()
	kv := store.NewMemoryKV()
	require.NoError(t, kv.Set(PreferencesKey, "{broken"))
	p := NewPreferences(kv, nil, tl.Logger)

	assert.Equal(t, model.DefaultPreferences(), p.Load(context.Background()))
	tl.AssertLogged(t, zapcore.WarnLevel, "corrupt local notification preferences")
}

func TestApplySetters(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	p := NewPreferences(store.NewMemoryKV(), remote, nil)
	var changes int
	p.OnChange(func(model.NotificationPreferences) { changes++ })

	require.NoError(t, p.Apply(ctx,
		SetBreakFrequency(model.FrequencyAfter3),
		SetDailyReviewTime("19:30"),
		SetWeeklyReview(time.Sunday, "10:00"),
		SetStreakMilestones(30, 7, 7, 3),
		SetFamilyEnabled(model.FamilyIdleDetection, true),
		SetIdleThreshold(20),
		SetSound(model.FamilyDailyReview, true),
	))
	cur := p.Current()
	assert.Equal(t, model.FrequencyAfter3, cur.BreakReminders.Frequency)
	assert.Equal(t, "19:30", cur.DailyReview.Time)
	assert.Equal(t, 0, cur.WeeklyReview.DayOfWeek)
	assert.Equal(t, []int{3, 7, 30}, cur.StreakMilestones.Milestones)
	assert.True(t, cur.IdleDetection.Enabled)
	assert.Equal(t, 1, changes)
	assert.Equal(t, 1, remote.putCnt)
	assert.Equal(t, cur, remote.lastPut)

	err := p.Apply(ctx, SetSmartThreshold(60), SetDailyReviewTime("25:00"))
	require.Error(t, err)
	assert.Equal(t, cur, p.Current(), "failed apply changes nothing")

	assert.Error(t, p.Apply(ctx, SetBreakFrequency("hourly")))
	assert.Error(t, p.Apply(ctx, SetSound(model.FamilySystemSleep, true)))
	assert.Error(t, p.Apply(ctx, SetFamilyEnabled("pager", true)))
	assert.Equal(t, 1, changes)
}

func TestCurrentIsACopy(t *testing.T) {
	p := NewPreferences(nil, nil, nil)
	cur := p.Current()
	cur.StreakMilestones.Milestones[0] = 999
	assert.Equal(t, 3, p.Current().StreakMilestones.Milestones[0])
}

func TestDispatcherGatesAtSurfacing(t *testing.T) {
	prefs := NewPreferences(nil, nil, nil)
	focus := focusFlag(true)
	q := NewQueue(2)
	var observed []bool
	d := NewDispatcher(NewGate(prefs, focus), q, nil, func(_ model.Family, shown bool) {
		observed = append(observed, shown)
	})

	assert.True(t, d.Emit(Notification{Family: model.FamilySessionComplete, Title: "done"}))
	require.NoError(t, prefs.Apply(context.Background(), SetEnabled(false)))
	assert.False(t, d.Emit(Notification{Family: model.FamilySessionComplete, Title: "hidden"}))
	require.NoError(t, prefs.Apply(context.Background(), SetEnabled(true)))
	d.Emit(Notification{Family: model.FamilyBreakReminders, Title: "b1"})
	d.Emit(Notification{Family: model.FamilyBreakReminders, Title: "b2"})

	items := q.Drain()
	require.Len(t, items, 2, "queue keeps the newest items")
	assert.Equal(t, "b1", items[0].Title)
	assert.Empty(t, q.Drain())
	assert.Equal(t, []bool{true, false, true, true}, observed)
}
