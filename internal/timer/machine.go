// Package timer implements the focus countdown state machine and its startup recovery.
//
// The Machine owns the canonical TimerSnapshot. Every operation runs under one mutex and
// persists the resulting snapshot before returning, so in-memory and stored state never
// diverge across a yield point. Network side effects are the caller's concern.
package timer

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/verte-zerg/focustimer/internal/clock"
	"github.com/verte-zerg/focustimer/internal/logging"
	"github.com/verte-zerg/focustimer/internal/model"
)

// SnapshotKey is the storage key for the persisted TimerSnapshot.
const SnapshotKey = "timerState"

// DefaultSleepThreshold is the tick gap treated as host suspension.
const DefaultSleepThreshold = 90 * time.Second

var (
	// ErrInvalidDuration is returned by Start for non-positive durations.
	ErrInvalidDuration = errors.New("planned duration must be greater than zero")
	// ErrSessionActive is returned by Start while a session is running or paused.
	ErrSessionActive = errors.New("a session is already active")
)

// Storage is the synchronous key/value contract the machine persists through.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Options configures a Machine.
type Options struct {
	SleepThreshold time.Duration
	DefaultType    model.SessionType
	Clock          clock.Clock
	Logger         *zap.Logger
	// NewLocalID generates correlation ids for new sessions. Defaults to uuid.
	NewLocalID func() string
}

// StartRequest carries the parameters of Start.
type StartRequest struct {
	SessionType     model.SessionType
	PlannedDuration int
	TaskID          string
	CategoryID      string
}

// Completion describes a session that left the running state.
type Completion struct {
	Session         model.Session
	PlannedDuration int
	WorkedSeconds   int
	EndedAt         time.Time
	Completed       bool
	QualityRating   *int
	Notes           string
}

// Record converts the completion into a history row.
func (c Completion) Record() model.CompletedSession {
	return model.CompletedSession{
		ServerID:        c.Session.ID,
		LocalID:         c.Session.LocalID,
		SessionType:     c.Session.SessionType,
		CategoryID:      c.Session.CategoryID,
		TaskID:          c.Session.TaskID,
		StartedAt:       c.Session.StartTime,
		EndedAt:         c.EndedAt,
		PlannedDuration: c.PlannedDuration,
		WorkedSeconds:   c.WorkedSeconds,
		Completed:       c.Completed,
		QualityRating:   c.QualityRating,
		Notes:           c.Notes,
	}
}

// TickResult reports what a tick did.
type TickResult struct {
	ElapsedSeconds int
	SleepDetected  bool
	Completion     *Completion
}

// Machine is the timer state machine.
type Machine struct {
	mu             sync.Mutex
	snap           model.TimerSnapshot
	store          Storage
	clock          clock.Clock
	logger         *zap.Logger
	sleepThreshold time.Duration
	defaultType    model.SessionType
	newLocalID     func() string
}

// New creates an idle machine.
func New(store Storage, opts Options) *Machine {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.SleepThreshold <= 0 {
		opts.SleepThreshold = DefaultSleepThreshold
	}
	if !opts.DefaultType.Valid() {
		opts.DefaultType = model.SessionDeepWork
	}
	if opts.NewLocalID == nil {
		opts.NewLocalID = func() string { return uuid.New().String() }
	}
	m := &Machine{
		store:          store,
		clock:          opts.Clock,
		logger:         logging.OrNop(opts.Logger),
		sleepThreshold: opts.SleepThreshold,
		defaultType:    opts.DefaultType,
		newLocalID:     opts.NewLocalID,
	}
	m.snap = model.IdleSnapshot(m.defaultType, m.clock.Now())
	return m
}

// Restore replaces the in-memory state with a recovered snapshot. Storage is not touched;
// the next mutation persists again.
func (m *Machine) Restore(snap model.TimerSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = cloneSnapshot(snap)
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() model.TimerSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSnapshot(m.snap)
}

// IsFocusActive reports whether a non-break session is actively counting down.
func (m *Machine) IsFocusActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.IsRunning && !m.snap.IsPaused && m.snap.SessionType != model.SessionBreak
}

// Start begins a new session.
func (m *Machine) Start(req StartRequest) (model.Session, error) {
	if req.PlannedDuration <= 0 {
		return model.Session{}, ErrInvalidDuration
	}
	if !req.SessionType.Valid() {
		req.SessionType = m.defaultType
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap.IsRunning {
		return model.Session{}, ErrSessionActive
	}

	now := m.clock.Now()
	sess := model.Session{
		LocalID:         m.newLocalID(),
		TaskID:          req.TaskID,
		CategoryID:      req.CategoryID,
		SessionType:     req.SessionType,
		StartTime:       now,
		PlannedDuration: req.PlannedDuration,
		CreatedAt:       now,
	}
	m.snap = model.TimerSnapshot{
		IsRunning:       true,
		SessionType:     req.SessionType,
		PlannedDuration: req.PlannedDuration,
		RemainingTime:   req.PlannedDuration * 60,
		StartTime:       timePtr(now),
		LastTickTime:    timePtr(now),
		LastActiveTime:  now,
		CurrentSession:  &sess,
	}
	m.persistLocked()
	return sess, nil
}

// Pause stops the countdown. It is a no-op unless running and not paused.
func (m *Machine) Pause() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.snap.IsRunning || m.snap.IsPaused {
		return false
	}
	m.snap.IsPaused = true
	m.snap.LastTickTime = nil
	m.persistLocked()
	return true
}

// Resume continues a paused countdown and clears any stale sleep flag.
func (m *Machine) Resume() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.snap.IsRunning || !m.snap.IsPaused {
		return false
	}
	now := m.clock.Now()
	m.snap.IsPaused = false
	m.snap.LastTickTime = timePtr(now)
	m.snap.LastActiveTime = now
	m.snap.IsSystemSleepDetected = false
	m.persistLocked()
	return true
}

// Stop abandons the session without completing it.
func (m *Machine) Stop() (Completion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.snap.IsRunning {
		return Completion{}, false
	}
	c := m.finishLocked(false, nil, "")
	return c, true
}

// Complete finishes the running (or paused) session with optional rating and notes.
func (m *Machine) Complete(qualityRating *int, notes string) (Completion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.snap.IsRunning {
		return Completion{}, false
	}
	c := m.finishLocked(true, qualityRating, notes)
	return c, true
}

// Tick advances the countdown by the whole seconds elapsed since the last tick.
// A gap at or beyond the sleep threshold pauses the timer instead of consuming time.
func (m *Machine) Tick() TickResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.snap.IsRunning || m.snap.IsPaused {
		return TickResult{}
	}
	now := m.clock.Now()
	if m.snap.LastTickTime == nil {
		m.snap.LastTickTime = timePtr(now)
		m.persistLocked()
		return TickResult{}
	}

	delta := now.Sub(*m.snap.LastTickTime)
	if delta >= m.sleepThreshold {
		m.snap.IsSystemSleepDetected = true
		m.snap.IsPaused = true
		m.snap.LastTickTime = nil
		m.persistLocked()
		m.logger.Warn("tick gap exceeds sleep threshold, pausing",
			zap.Duration("gap", delta),
			zap.Duration("threshold", m.sleepThreshold),
		)
		return TickResult{SleepDetected: true}
	}

	elapsed := int(delta / time.Second)
	if elapsed <= 0 {
		return TickResult{}
	}
	// Advance by whole seconds only so the fractional remainder carries into the next tick.
	next := m.snap.LastTickTime.Add(time.Duration(elapsed) * time.Second)
	m.snap.LastTickTime = &next
	m.snap.LastActiveTime = now
	m.snap.RemainingTime -= elapsed
	if m.snap.RemainingTime <= 0 {
		m.snap.RemainingTime = 0
		c := m.finishLocked(true, nil, "")
		return TickResult{ElapsedSeconds: elapsed, Completion: &c}
	}
	m.persistLocked()
	return TickResult{ElapsedSeconds: elapsed}
}

// DetectSystemSleep compares now against the last activity time. Beyond the threshold it
// flags sleep and pauses a running countdown. It reports true only when a countdown was
// paused; an idle or already paused timer has nothing to lose to the gap.
func (m *Machine) DetectSystemSleep() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.snap.IsRunning || m.snap.IsPaused {
		return false
	}
	gap := m.clock.Now().Sub(m.snap.LastActiveTime)
	if gap < m.sleepThreshold {
		return false
	}
	m.snap.IsSystemSleepDetected = true
	m.snap.IsPaused = true
	m.snap.LastTickTime = nil
	m.persistLocked()
	return true
}

// UpdateLastActiveTime records activity and clears the sleep flag.
func (m *Machine) UpdateLastActiveTime() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.LastActiveTime = m.clock.Now()
	m.snap.IsSystemSleepDetected = false
	m.persistLocked()
}

// UpdateSessionType selects the type for the next session. Only applies while idle.
func (m *Machine) UpdateSessionType(t model.SessionType) bool {
	if !t.Valid() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap.IsRunning {
		return false
	}
	m.snap.SessionType = t
	m.snap.PlannedDuration = t.DefaultDuration()
	m.snap.RemainingTime = m.snap.PlannedDuration * 60
	m.persistLocked()
	return true
}

// UpdatePlannedDuration sets the duration for the next session. Only applies while idle.
func (m *Machine) UpdatePlannedDuration(minutes int) bool {
	if minutes <= 0 {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap.IsRunning {
		return false
	}
	m.snap.PlannedDuration = minutes
	m.snap.RemainingTime = minutes * 60
	m.persistLocked()
	return true
}

// AttachServerID records the collaborator id for the session with localID.
// Returns false when the session is no longer current (a stale response).
func (m *Machine) AttachServerID(localID, serverID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.snap.CurrentSession
	if cur == nil || cur.LocalID != localID {
		return false
	}
	cur.ID = serverID
	m.persistLocked()
	return true
}

func (m *Machine) finishLocked(completed bool, rating *int, notes string) Completion {
	now := m.clock.Now()
	worked := m.snap.PlannedDuration*60 - m.snap.RemainingTime
	if worked < 0 {
		worked = 0
	}
	var sess model.Session
	if m.snap.CurrentSession != nil {
		sess = *m.snap.CurrentSession
	} else {
		sess = model.Session{SessionType: m.snap.SessionType, PlannedDuration: m.snap.PlannedDuration}
		if m.snap.StartTime != nil {
			sess.StartTime = *m.snap.StartTime
		}
	}
	sess.Completed = completed
	c := Completion{
		Session:         sess,
		PlannedDuration: m.snap.PlannedDuration,
		WorkedSeconds:   worked,
		EndedAt:         now,
		Completed:       completed,
		QualityRating:   rating,
		Notes:           notes,
	}
	m.snap = model.IdleSnapshot(m.defaultType, now)
	m.persistLocked()
	return c
}

// persistLocked mirrors the snapshot to storage. Idle state removes the key.
// Failures are logged; local state stays authoritative.
func (m *Machine) persistLocked() {
	if m.store == nil {
		return
	}
	if !m.snap.IsRunning {
		if err := m.store.Remove(SnapshotKey); err != nil {
			m.logger.Warn("failed to clear timer snapshot", zap.Error(err))
		}
		return
	}
	data, err := json.Marshal(m.snap)
	if err != nil {
		m.logger.Error("failed to encode timer snapshot", zap.Error(err))
		return
	}
	if err := m.store.Set(SnapshotKey, string(data)); err != nil {
		m.logger.Warn("failed to persist timer snapshot", zap.Error(err))
	}
}

func cloneSnapshot(s model.TimerSnapshot) model.TimerSnapshot {
	out := s
	if s.StartTime != nil {
		out.StartTime = timePtr(*s.StartTime)
	}
	if s.LastTickTime != nil {
		out.LastTickTime = timePtr(*s.LastTickTime)
	}
	if s.CurrentSession != nil {
		sess := *s.CurrentSession
		out.CurrentSession = &sess
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	return &t
}
