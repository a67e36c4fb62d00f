// Package engine owns the focus timer state and wires the timer, sync, break, review and
// notification components together.
//
// An Engine is created once per program and passed to the presentation layer. All state
// changes go through its methods: the local transition commits first, then network
// mirroring runs in the background and never rolls local state back.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/focustimer/internal/api"
	"github.com/verte-zerg/focustimer/internal/breaks"
	"github.com/verte-zerg/focustimer/internal/clock"
	"github.com/verte-zerg/focustimer/internal/logging"
	"github.com/verte-zerg/focustimer/internal/model"
	"github.com/verte-zerg/focustimer/internal/notify"
	"github.com/verte-zerg/focustimer/internal/review"
	"github.com/verte-zerg/focustimer/internal/syncclient"
	"github.com/verte-zerg/focustimer/internal/timer"
)

const mirrorQueueSize = 64

var (
	// ErrNoSuggestion is returned when acting on a break suggestion that is not showing.
	ErrNoSuggestion = errors.New("no break suggestion is showing")
	// ErrNoCompletedSession is returned by session-end reviews before any session finished.
	ErrNoCompletedSession = errors.New("no completed session to review")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine is closed")
)

// KV is the synchronous local storage shared by the timer, preferences and milestones.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// History is the local record of finished sessions and reviews.
type History interface {
	InsertSession(ctx context.Context, cs model.CompletedSession) (int64, error)
	ListSessions(ctx context.Context, filter model.HistoryFilter) ([]model.SessionAggregate, error)
	RateSession(ctx context.Context, localID string, rating *int, notes string) error
	InsertReview(ctx context.Context, resp model.ReviewResponse) (int64, error)
}

// Mirror is the companion service the timer verbs are mirrored to.
type Mirror interface {
	Start(ctx context.Context, req syncclient.StartRequest) (syncclient.Status, error)
	Pause(ctx context.Context) (syncclient.Status, error)
	Resume(ctx context.Context) (syncclient.Status, error)
	Stop(ctx context.Context) (syncclient.Status, error)
	Complete(ctx context.Context, req syncclient.CompleteRequest) (syncclient.Status, error)
}

// SessionAPI is the collaborator storage for sessions and reviews.
type SessionAPI interface {
	CreateSession(ctx context.Context, req api.CreateSessionRequest) (model.Session, error)
	CompleteSession(ctx context.Context, id string, req api.CompleteSessionRequest) error
	SubmitReview(ctx context.Context, r model.ReviewResponse) error
}

// Options configures an Engine. Store is required; every other collaborator is optional.
type Options struct {
	Store       KV
	History     History
	Mirror      Mirror
	Sessions    SessionAPI
	Preferences *notify.Preferences
	Sink        notify.Sink
	Clock       clock.Clock
	Logger      *zap.Logger
	Metrics     *Metrics

	DefaultType        model.SessionType
	SleepThreshold     time.Duration
	RecoveryWindow     time.Duration
	ReviewPollInterval time.Duration

	// OnSyncError is called from a background goroutine when a mirror or API call fails.
	OnSyncError func(verb string, err error)
}

// Engine is the explicitly owned focus timer state.
type Engine struct {
	machine    *timer.Machine
	breaks     *breaks.Engine
	reviews    *review.Scheduler
	prefs      *notify.Preferences
	dispatcher *notify.Dispatcher

	store    KV
	history  History
	mirror   Mirror
	sessions SessionAPI
	clock    clock.Clock
	logger   *zap.Logger
	metrics  *Metrics

	recoveryWindow time.Duration
	onSyncError    func(string, error)

	ctx    context.Context
	cancel context.CancelFunc
	worker sync.WaitGroup
	calls  sync.WaitGroup
	jobs   chan job

	mu            sync.Mutex
	closed        bool
	idleNudged    bool
	lastCompleted *timer.Completion
	// pending holds completions waiting for a server id; resolved holds server ids that
	// arrived after their session had already ended locally. abandoned marks stopped
	// sessions whose create response is still in flight.
	pending   map[string]api.CompleteSessionRequest
	resolved  map[string]string
	abandoned map[string]struct{}
}

type job struct {
	verb string
	fn   func(ctx context.Context) error
}

// New wires an engine. The mirror worker starts immediately; reviews are polled only
// after StartReviews.
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	logger := logging.OrNop(opts.Logger)
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.Preferences == nil {
		opts.Preferences = notify.NewPreferences(opts.Store, nil, logger)
	}
	if opts.Sink == nil {
		opts.Sink = notify.LogSink(logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		breaks:         breaks.NewEngine(),
		prefs:          opts.Preferences,
		store:          opts.Store,
		history:        opts.History,
		mirror:         opts.Mirror,
		sessions:       opts.Sessions,
		clock:          opts.Clock,
		logger:         logger,
		metrics:        opts.Metrics,
		recoveryWindow: opts.RecoveryWindow,
		onSyncError:    opts.OnSyncError,
		ctx:            ctx,
		cancel:         cancel,
		jobs:           make(chan job, mirrorQueueSize),
		pending:        map[string]api.CompleteSessionRequest{},
		resolved:       map[string]string{},
		abandoned:      map[string]struct{}{},
	}
	e.machine = timer.New(opts.Store, timer.Options{
		SleepThreshold: opts.SleepThreshold,
		DefaultType:    opts.DefaultType,
		Clock:          opts.Clock,
		Logger:         logger.Named("timer"),
	})
	gate := notify.NewGate(e.prefs, e.machine)
	e.dispatcher = notify.NewDispatcher(gate, opts.Sink, logger.Named("notify"), func(f model.Family, shown bool) {
		e.metrics.RecordNotification(string(f), shown)
	})
	e.reviews = review.NewScheduler(e,
		review.WithClock(opts.Clock),
		review.WithPollInterval(opts.ReviewPollInterval),
		review.WithGate(e.dispatcher.CanShow),
		review.WithOnPrompt(e.surfacePrompt),
		review.WithLogger(logger.Named("review")),
	)
	e.prefs.OnChange(e.reviews.ScheduleNextReviews)
	e.reviews.ScheduleNextReviews(e.prefs.Current())

	e.worker.Add(1)
	go e.runMirror()
	return e
}

// Recover restores a recently persisted timer, at most once per process start.
func (e *Engine) Recover() timer.RecoveryResult {
	res := timer.Recover(e.store, e.clock.Now(), e.recoveryWindow, e.logger.Named("recovery"))
	e.metrics.RecordRecovery(string(res.Outcome))
	if res.Restored() {
		e.machine.Restore(*res.Snapshot)
		e.logger.Info("timer restored", zap.Duration("gap", res.Gap))
	}
	return res
}

// LoadPreferences loads the preference tree and reschedules reviews.
func (e *Engine) LoadPreferences(ctx context.Context) model.NotificationPreferences {
	return e.prefs.Load(ctx)
}

// UpdatePreferences applies typed setters. Local state is committed even when the server
// mirror fails; that failure is returned.
func (e *Engine) UpdatePreferences(ctx context.Context, setters ...notify.Setter) error {
	return e.prefs.Apply(ctx, setters...)
}

// Preferences returns the active preference tree.
func (e *Engine) Preferences() model.NotificationPreferences {
	return e.prefs.Current()
}

// Snapshot returns the current timer state.
func (e *Engine) Snapshot() model.TimerSnapshot {
	return e.machine.Snapshot()
}

// IsFocusActive reports whether a non-break session is counting down.
func (e *Engine) IsFocusActive() bool {
	return e.machine.IsFocusActive()
}

// CanShow evaluates the notification gate now.
func (e *Engine) CanShow(f model.Family) bool {
	return e.dispatcher.CanShow(f)
}

// Start begins a session and mirrors it in the background.
func (e *Engine) Start(req timer.StartRequest) (model.Session, error) {
	if e.isClosed() {
		return model.Session{}, ErrClosed
	}
	sess, err := e.machine.Start(req)
	if err != nil {
		return model.Session{}, err
	}
	e.markActive()
	e.logger.Info("session started",
		zap.String("local_id", sess.LocalID),
		zap.String("type", string(sess.SessionType)),
		zap.Int("planned_minutes", sess.PlannedDuration),
	)

	if e.mirror != nil {
		e.enqueue("start", func(ctx context.Context) error {
			_, err := e.mirror.Start(ctx, syncclient.StartRequest{
				SessionType:     sess.SessionType,
				PlannedDuration: sess.PlannedDuration,
				TaskID:          sess.TaskID,
				CategoryID:      sess.CategoryID,
			})
			return err
		})
	}
	if e.sessions != nil {
		e.goAsync("create session", func(ctx context.Context) error {
			return e.createSession(ctx, sess)
		})
	}
	return sess, nil
}

// Pause pauses a running session.
func (e *Engine) Pause() bool {
	if !e.machine.Pause() {
		return false
	}
	e.mirrorVerb("pause", e.mirrorPause)
	return true
}

// Resume continues a paused session.
func (e *Engine) Resume() bool {
	if !e.machine.Resume() {
		return false
	}
	e.markActive()
	e.mirrorVerb("resume", e.mirrorResume)
	return true
}

// Stop abandons the session. It is recorded locally but not sent as a completion.
func (e *Engine) Stop(ctx context.Context) bool {
	c, ok := e.machine.Stop()
	if !ok {
		return false
	}
	e.record(ctx, c)
	e.mirrorVerb("stop", e.mirrorStop)
	if e.sessions != nil && c.Session.ID == "" {
		e.mu.Lock()
		if _, ok := e.resolved[c.Session.LocalID]; ok {
			delete(e.resolved, c.Session.LocalID)
		} else {
			e.abandoned[c.Session.LocalID] = struct{}{}
		}
		e.mu.Unlock()
	}
	return true
}

// Complete finishes the session early with an optional rating and notes.
func (e *Engine) Complete(ctx context.Context, rating *int, notes string) bool {
	c, ok := e.machine.Complete(rating, notes)
	if !ok {
		return false
	}
	e.onComplete(ctx, c)
	return true
}

// Tick advances the countdown. It also runs the idle check while no session is active.
func (e *Engine) Tick(ctx context.Context) timer.TickResult {
	res := e.machine.Tick()
	if res.SleepDetected {
		e.onSleep("tick")
	}
	if res.Completion != nil {
		e.onComplete(ctx, *res.Completion)
	}
	e.checkIdle()
	return res
}

// FocusReturned runs when the user comes back to the program. A gap beyond the sleep
// threshold pauses the timer; activity is then recorded, clearing the sleep flag.
func (e *Engine) FocusReturned() bool {
	detected := e.machine.DetectSystemSleep()
	if detected {
		e.onSleep("focus")
	}
	e.Activity()
	return detected
}

// Activity records user activity.
func (e *Engine) Activity() {
	e.machine.UpdateLastActiveTime()
	e.markActive()
}

// UpdateSessionType selects the type for the next session.
func (e *Engine) UpdateSessionType(t model.SessionType) bool {
	return e.machine.UpdateSessionType(t)
}

// UpdatePlannedDuration sets the duration for the next session.
func (e *Engine) UpdatePlannedDuration(minutes int) bool {
	return e.machine.UpdatePlannedDuration(minutes)
}

// BreakCounters returns the counters since the last break.
func (e *Engine) BreakCounters() breaks.Counters {
	return e.breaks.Counters()
}

// CurrentSuggestion returns the break suggestion being shown.
func (e *Engine) CurrentSuggestion() (model.BreakSuggestion, bool) {
	return e.breaks.Current()
}

// AcceptBreak takes the shown suggestion: counters reset and a break session starts with
// the suggested duration.
func (e *Engine) AcceptBreak() (model.Session, error) {
	if e.machine.Snapshot().IsRunning {
		return model.Session{}, timer.ErrSessionActive
	}
	s, ok := e.breaks.Accept()
	if !ok {
		return model.Session{}, ErrNoSuggestion
	}
	e.metrics.RecordSuggestion(string(s.Type), "accepted")
	return e.Start(timer.StartRequest{
		SessionType:     model.SessionBreak,
		PlannedDuration: s.SuggestedDuration,
	})
}

// DismissBreak hides the suggestion without resetting counters.
func (e *Engine) DismissBreak() error {
	s, ok := e.breaks.Current()
	if !ok || !e.breaks.Dismiss(e.clock.Now()) {
		return ErrNoSuggestion
	}
	e.metrics.RecordSuggestion(string(s.Type), "dismissed")
	return nil
}

// SnoozeBreak hides the suggestion and suppresses new ones for d.
func (e *Engine) SnoozeBreak(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("snooze duration must be > 0")
	}
	s, ok := e.breaks.Current()
	if !ok {
		return ErrNoSuggestion
	}
	e.breaks.Snooze(e.clock.Now(), d)
	e.metrics.RecordSuggestion(string(s.Type), "snoozed")
	return nil
}

// StartReviews starts the background review poll.
func (e *Engine) StartReviews(ctx context.Context) error {
	return e.reviews.Start(ctx)
}

// PollReviews checks for due reviews once.
func (e *Engine) PollReviews() (model.ReviewPrompt, bool) {
	return e.reviews.Poll()
}

// ActiveReview returns the prompt awaiting an answer.
func (e *Engine) ActiveReview() (model.ReviewPrompt, bool) {
	return e.reviews.Active()
}

// NextReviews returns the scheduled daily and weekly review times.
func (e *Engine) NextReviews() (daily, weekly time.Time) {
	return e.reviews.Next()
}

// SnoozeReview postpones the active prompt by minutes.
func (e *Engine) SnoozeReview(t model.PromptType, minutes int) error {
	return e.reviews.Snooze(t, minutes)
}

// DismissReview skips the active prompt until its next occurrence.
func (e *Engine) DismissReview(t model.PromptType) error {
	return e.reviews.Dismiss(t)
}

// SubmitReview records answers. Session-end answers also rate the last finished session.
func (e *Engine) SubmitReview(ctx context.Context, t model.PromptType, answers map[string]string) (model.ReviewResponse, error) {
	var last timer.Completion
	if t == model.PromptSessionEnd {
		e.mu.Lock()
		if e.lastCompleted == nil {
			e.mu.Unlock()
			return model.ReviewResponse{}, ErrNoCompletedSession
		}
		last = *e.lastCompleted
		e.mu.Unlock()
	}

	resp, err := e.reviews.Submit(ctx, t, answers)
	if err != nil {
		return model.ReviewResponse{}, err
	}
	if t == model.PromptSessionEnd {
		e.rateSession(ctx, last, review.Rating(answers, "quality"), answers["notes"])
	}
	return resp, nil
}

// RecordReview stores a response locally and forwards it to the collaborator API.
func (e *Engine) RecordReview(ctx context.Context, r model.ReviewResponse) error {
	if e.history != nil {
		if _, err := e.history.InsertReview(ctx, r); err != nil {
			return err
		}
	}
	if e.sessions != nil {
		e.goAsync("submit review", func(ctx context.Context) error {
			return e.sessions.SubmitReview(ctx, r)
		})
	}
	return nil
}

// Wait blocks until background calls submitted so far have finished.
func (e *Engine) Wait() {
	done := make(chan struct{})
	queued := e.enqueueRaw(job{verb: "flush", fn: func(context.Context) error {
		close(done)
		return nil
	}})
	if queued {
		select {
		case <-done:
		case <-e.ctx.Done():
		}
	}
	e.calls.Wait()
}

// Close stops the review poll and waits for background calls until ctx is done, after
// which in-flight calls are cancelled.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.jobs)
	e.mu.Unlock()

	e.reviews.Stop()
	done := make(chan struct{})
	go func() {
		e.worker.Wait()
		e.calls.Wait()
		close(done)
	}()
	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		<-done
		return ctx.Err()
	}
}

func (e *Engine) createSession(ctx context.Context, sess model.Session) error {
	created, err := e.sessions.CreateSession(ctx, api.CreateSessionRequest{
		LocalID:         sess.LocalID,
		SessionType:     sess.SessionType,
		PlannedDuration: sess.PlannedDuration,
		StartTime:       sess.StartTime,
		TaskID:          sess.TaskID,
		CategoryID:      sess.CategoryID,
	})
	if err != nil {
		e.mu.Lock()
		delete(e.pending, sess.LocalID)
		delete(e.abandoned, sess.LocalID)
		e.mu.Unlock()
		return err
	}
	if e.machine.AttachServerID(sess.LocalID, created.ID) {
		return nil
	}

	// The session already ended locally; the response no longer applies to the timer.
	e.mu.Lock()
	req, ok := e.pending[sess.LocalID]
	delete(e.pending, sess.LocalID)
	if _, stopped := e.abandoned[sess.LocalID]; stopped {
		delete(e.abandoned, sess.LocalID)
	} else if !ok {
		e.resolved[sess.LocalID] = created.ID
	}
	if e.lastCompleted != nil && e.lastCompleted.Session.LocalID == sess.LocalID {
		e.lastCompleted.Session.ID = created.ID
	}
	e.mu.Unlock()
	if !ok {
		e.logger.Debug("dropping stale create-session response",
			zap.String("local_id", sess.LocalID),
			zap.String("server_id", created.ID),
		)
		return nil
	}
	return e.sessions.CompleteSession(ctx, created.ID, req)
}

func (e *Engine) onComplete(ctx context.Context, c timer.Completion) {
	e.record(ctx, c)
	e.mirrorVerb("complete", func(ctx context.Context) error {
		_, err := e.mirror.Complete(ctx, syncclient.CompleteRequest{QualityRating: c.QualityRating, Notes: c.Notes})
		return err
	})

	e.mu.Lock()
	last := c
	e.lastCompleted = &last
	e.mu.Unlock()
	e.forwardCompletion(c.Session, api.CompleteSessionRequest{
		Completed:      true,
		QualityRating:  c.QualityRating,
		Notes:          c.Notes,
		ActualDuration: c.WorkedSeconds / 60,
	})

	prefs := e.prefs.Current()
	now := e.clock.Now()
	isBreak := c.Session.SessionType == model.SessionBreak
	n := notify.Notification{
		Family: model.FamilySessionComplete,
		Title:  "Session complete",
		Body:   fmt.Sprintf("%s finished after %d min", labelFor(c.Session.SessionType), c.WorkedSeconds/60),
		Sound:  prefs.SessionComplete.Sound,
		At:     now,
	}
	if isBreak {
		n.Title = "Break over"
		n.Body = "Ready for the next session?"
	} else {
		prompt := review.SessionEndPrompt()
		n.Prompt = &prompt
	}
	e.dispatcher.Emit(n)
	if isBreak {
		return
	}

	e.breaks.RecordSession(c.Session.SessionType, c.PlannedDuration)
	e.suggestBreak(prefs, now)
	e.checkMilestones(ctx, prefs, now)
}

// record writes the finished session to local history.
func (e *Engine) record(ctx context.Context, c timer.Completion) {
	e.metrics.RecordSession(string(c.Session.SessionType), c.Completed)
	e.logger.Info("session finished",
		zap.String("local_id", c.Session.LocalID),
		zap.Bool("completed", c.Completed),
		zap.Int("worked_seconds", c.WorkedSeconds),
	)
	if e.history == nil {
		return
	}
	if _, err := e.history.InsertSession(ctx, c.Record()); err != nil {
		e.logger.Warn("failed to record session", zap.String("local_id", c.Session.LocalID), zap.Error(err))
	}
}

// forwardCompletion sends completion data once the server id is known. Until then it is
// held and sent by the create-session response.
func (e *Engine) forwardCompletion(sess model.Session, req api.CompleteSessionRequest) {
	if e.sessions == nil {
		return
	}
	e.mu.Lock()
	if sess.ID == "" {
		id, ok := e.resolved[sess.LocalID]
		if !ok {
			e.pending[sess.LocalID] = req
			e.mu.Unlock()
			return
		}
		delete(e.resolved, sess.LocalID)
		sess.ID = id
	}
	e.mu.Unlock()
	e.goAsync("complete session", func(ctx context.Context) error {
		return e.sessions.CompleteSession(ctx, sess.ID, req)
	})
}

func (e *Engine) rateSession(ctx context.Context, last timer.Completion, rating *int, notes string) {
	if e.history != nil {
		if err := e.history.RateSession(ctx, last.Session.LocalID, rating, notes); err != nil {
			e.logger.Warn("failed to store session rating", zap.String("local_id", last.Session.LocalID), zap.Error(err))
		}
	}

	e.mu.Lock()
	if cur := e.lastCompleted; cur != nil && cur.Session.LocalID == last.Session.LocalID {
		last.Session.ID = cur.Session.ID
	}
	if req, ok := e.pending[last.Session.LocalID]; ok {
		req.QualityRating = rating
		req.Notes = notes
		e.pending[last.Session.LocalID] = req
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	e.forwardCompletion(last.Session, api.CompleteSessionRequest{
		Completed:      last.Completed,
		QualityRating:  rating,
		Notes:          notes,
		ActualDuration: last.WorkedSeconds / 60,
	})
}

func (e *Engine) suggestBreak(prefs model.NotificationPreferences, now time.Time) {
	s, ok := e.breaks.Suggest(prefs.BreakReminders, now)
	if !ok {
		return
	}
	if !e.dispatcher.CanShow(model.FamilyBreakReminders) {
		e.metrics.RecordSuggestion(string(s.Type), "held")
		return
	}
	e.breaks.Show(s)
	e.metrics.RecordSuggestion(string(s.Type), "shown")
	e.dispatcher.Emit(notify.Notification{
		Family:     model.FamilyBreakReminders,
		Title:      "Time for a break",
		Body:       s.Reason,
		Sound:      prefs.BreakReminders.Sound,
		At:         now,
		Suggestion: &s,
	})
}

func (e *Engine) surfacePrompt(p model.ReviewPrompt) {
	prefs := e.prefs.Current()
	family, sound := model.FamilyDailyReview, prefs.DailyReview.Sound
	if p.Type == model.PromptWeekly {
		family, sound = model.FamilyWeeklyReview, prefs.WeeklyReview.Sound
	}
	e.dispatcher.Emit(notify.Notification{
		Family: family,
		Title:  p.Title,
		Body:   fmt.Sprintf("%d questions", len(p.Questions)),
		Sound:  sound,
		At:     e.clock.Now(),
		Prompt: &p,
	})
}

func (e *Engine) onSleep(source string) {
	e.metrics.RecordSleep(source)
	e.dispatcher.Emit(notify.Notification{
		Family: model.FamilySystemSleep,
		Title:  "Timer paused",
		Body:   "Your computer was asleep. Resume when you are ready.",
		At:     e.clock.Now(),
	})
}

func (e *Engine) checkIdle() {
	snap := e.machine.Snapshot()
	if snap.IsRunning {
		return
	}
	prefs := e.prefs.Current()
	if !prefs.IdleDetection.Enabled || prefs.IdleDetection.ThresholdMinutes <= 0 {
		return
	}
	now := e.clock.Now()
	idle := now.Sub(snap.LastActiveTime)
	if idle < time.Duration(prefs.IdleDetection.ThresholdMinutes)*time.Minute {
		return
	}
	e.mu.Lock()
	if e.idleNudged {
		e.mu.Unlock()
		return
	}
	e.idleNudged = true
	e.mu.Unlock()
	e.dispatcher.Emit(notify.Notification{
		Family: model.FamilyIdleDetection,
		Title:  "Still there?",
		Body:   fmt.Sprintf("No focus session for %d minutes", int(idle/time.Minute)),
		At:     now,
	})
}

func (e *Engine) markActive() {
	e.mu.Lock()
	e.idleNudged = false
	e.mu.Unlock()
}

func (e *Engine) mirrorVerb(verb string, fn func(ctx context.Context) error) {
	if e.mirror == nil {
		return
	}
	e.enqueue(verb, fn)
}

func (e *Engine) mirrorPause(ctx context.Context) error {
	_, err := e.mirror.Pause(ctx)
	return err
}

func (e *Engine) mirrorResume(ctx context.Context) error {
	_, err := e.mirror.Resume(ctx)
	return err
}

func (e *Engine) mirrorStop(ctx context.Context) error {
	_, err := e.mirror.Stop(ctx)
	return err
}

// enqueue schedules a mirror call. Mirror calls run one at a time in submission order.
func (e *Engine) enqueue(verb string, fn func(ctx context.Context) error) {
	if !e.enqueueRaw(job{verb: verb, fn: fn}) {
		e.logger.Warn("dropping sync call", zap.String("verb", verb))
		e.metrics.RecordSyncFailure(verb)
	}
}

func (e *Engine) enqueueRaw(j job) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	select {
	case e.jobs <- j:
		return true
	default:
		return false
	}
}

func (e *Engine) runMirror() {
	defer e.worker.Done()
	for j := range e.jobs {
		e.run(j)
	}
}

// goAsync runs a collaborator API call in its own goroutine.
func (e *Engine) goAsync(verb string, fn func(ctx context.Context) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.calls.Add(1)
	go func() {
		defer e.calls.Done()
		e.run(job{verb: verb, fn: fn})
	}()
}

func (e *Engine) run(j job) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in sync call", zap.String("verb", j.verb), zap.Any("panic", r))
		}
	}()
	if err := j.fn(e.ctx); err != nil {
		e.metrics.RecordSyncFailure(j.verb)
		e.logger.Warn("best-effort sync failed", zap.String("verb", j.verb), zap.Error(err))
		if e.onSyncError != nil {
			e.onSyncError(j.verb, err)
		}
	}
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func labelFor(t model.SessionType) string {
	switch t {
	case model.SessionDeepWork:
		return "Deep work"
	case model.SessionQuickTask:
		return "Quick task"
	case model.SessionBreak:
		return "Break"
	default:
		return "Custom session"
	}
}
