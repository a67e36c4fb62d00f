package companion

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/focustimer/internal/clock"
	"github.com/verte-zerg/focustimer/internal/model"
	"github.com/verte-zerg/focustimer/internal/syncclient"
	"github.com/verte-zerg/focustimer/internal/timer"
)

// mirrorSleepThreshold disables sleep detection for mirrors: the companion only advances a
// countdown when asked, so long gaps between requests are normal.
const mirrorSleepThreshold = 365 * 24 * time.Hour

// Timers keeps one timer mirror per client id.
type Timers struct {
	mu       sync.Mutex
	clock    clock.Clock
	logger   *zap.Logger
	mirrors  map[string]*timer.Machine
	onFinish func(clientID string, c timer.Completion)
}

// NewTimers creates an empty registry. onFinish runs when a mirror counts down to zero.
func NewTimers(c clock.Clock, logger *zap.Logger, onFinish func(string, timer.Completion)) *Timers {
	if onFinish == nil {
		onFinish = func(string, timer.Completion) {}
	}
	return &Timers{
		clock:    c,
		logger:   logger,
		mirrors:  map[string]*timer.Machine{},
		onFinish: onFinish,
	}
}

func (t *Timers) get(clientID string) *timer.Machine {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.mirrors[clientID]
	if !ok {
		m = timer.New(nil, timer.Options{
			SleepThreshold: mirrorSleepThreshold,
			Clock:          t.clock,
			Logger:         t.logger,
		})
		t.mirrors[clientID] = m
	}
	return m
}

// advance brings the mirror up to date and reports a countdown that just finished.
func (t *Timers) advance(clientID string, m *timer.Machine) {
	if res := m.Tick(); res.Completion != nil {
		t.onFinish(clientID, *res.Completion)
	}
}

// Start begins a mirrored session for clientID.
func (t *Timers) Start(clientID string, req syncclient.StartRequest) (syncclient.Status, error) {
	m := t.get(clientID)
	t.advance(clientID, m)
	if _, err := m.Start(timer.StartRequest{
		SessionType:     req.SessionType,
		PlannedDuration: req.PlannedDuration,
		TaskID:          req.TaskID,
		CategoryID:      req.CategoryID,
	}); err != nil {
		return syncclient.Status{}, err
	}
	return statusOf(m.Snapshot()), nil
}

// Pause pauses the mirror. Pausing an idle or paused mirror is a no-op.
func (t *Timers) Pause(clientID string) syncclient.Status {
	m := t.get(clientID)
	t.advance(clientID, m)
	m.Pause()
	return statusOf(m.Snapshot())
}

// Resume resumes the mirror.
func (t *Timers) Resume(clientID string) syncclient.Status {
	m := t.get(clientID)
	m.Resume()
	return statusOf(m.Snapshot())
}

// Stop abandons the mirrored session.
func (t *Timers) Stop(clientID string) syncclient.Status {
	m := t.get(clientID)
	t.advance(clientID, m)
	m.Stop()
	return statusOf(m.Snapshot())
}

// Complete finishes the mirrored session.
func (t *Timers) Complete(clientID string, req syncclient.CompleteRequest) syncclient.Status {
	m := t.get(clientID)
	t.advance(clientID, m)
	m.Complete(req.QualityRating, req.Notes)
	return statusOf(m.Snapshot())
}

// Status returns the up-to-date mirror state.
func (t *Timers) Status(clientID string) syncclient.Status {
	m := t.get(clientID)
	t.advance(clientID, m)
	return statusOf(m.Snapshot())
}

// Tray summarizes all active mirrors. The displayed timer is the running one closest to
// finishing, or the paused one closest to finishing when none runs.
func (t *Timers) Tray() syncclient.TrayStatus {
	t.mu.Lock()
	ids := make([]string, 0, len(t.mirrors))
	for id := range t.mirrors {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	sort.Strings(ids)

	var active []syncclient.Status
	for _, id := range ids {
		m := t.get(id)
		t.advance(id, m)
		if st := statusOf(m.Snapshot()); st.IsRunning {
			active = append(active, st)
		}
	}
	if len(active) == 0 {
		return syncclient.TrayStatus{Label: "Idle"}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].IsPaused != active[j].IsPaused {
			return !active[i].IsPaused
		}
		return active[i].RemainingTime < active[j].RemainingTime
	})
	top := active[0]
	label := fmt.Sprintf("%s %s", formatClock(top.RemainingTime), top.SessionType)
	if top.IsPaused {
		label += " (paused)"
	}
	return syncclient.TrayStatus{
		ActiveTimers:  len(active),
		IsRunning:     !top.IsPaused,
		IsPaused:      top.IsPaused,
		SessionType:   top.SessionType,
		RemainingTime: top.RemainingTime,
		Label:         label,
	}
}

func statusOf(s model.TimerSnapshot) syncclient.Status {
	st := syncclient.Status{
		IsRunning:       s.IsRunning,
		IsPaused:        s.IsPaused,
		PlannedDuration: s.PlannedDuration,
		RemainingTime:   s.RemainingTime,
		StartTime:       s.StartTime,
	}
	if s.IsRunning {
		st.SessionType = s.SessionType
	}
	if s.CurrentSession != nil {
		st.SessionID = s.CurrentSession.LocalID
	}
	return st
}

func formatClock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
