package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/focustimer/internal/clock"
	"github.com/verte-zerg/focustimer/internal/logging"
	"github.com/verte-zerg/focustimer/internal/model"
)

// DefaultPollInterval is how often due reviews are checked.
const DefaultPollInterval = time.Minute

var (
	// ErrNoActivePrompt is returned when answering or snoozing without a matching prompt.
	ErrNoActivePrompt = errors.New("no active review prompt")
	// ErrAlreadyRunning is returned by Start on a running poll.
	ErrAlreadyRunning = errors.New("review scheduler is already running")
)

// Recorder persists submitted responses.
type Recorder interface {
	RecordReview(ctx context.Context, r model.ReviewResponse) error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock driving the poll.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithPollInterval sets the poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithGate sets the predicate consulted when a prompt becomes due.
func WithGate(canShow func(model.Family) bool) Option {
	return func(s *Scheduler) { s.canShow = canShow }
}

// WithOnPrompt sets the callback invoked when a prompt is surfaced.
func WithOnPrompt(fn func(model.ReviewPrompt)) Option {
	return func(s *Scheduler) { s.onPrompt = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = logging.OrNop(l) }
}

// Scheduler tracks the next daily and weekly reviews and the active prompt.
type Scheduler struct {
	mu         sync.Mutex
	clock      clock.Clock
	interval   time.Duration
	canShow    func(model.Family) bool
	onPrompt   func(model.ReviewPrompt)
	recorder   Recorder
	logger     *zap.Logger
	prefs      model.NotificationPreferences
	nextDaily  time.Time
	nextWeekly time.Time
	active     *model.ReviewPrompt

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a scheduler. Call ScheduleNextReviews before polling.
func NewScheduler(recorder Recorder, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:    clock.Real{},
		interval: DefaultPollInterval,
		canShow:  func(model.Family) bool { return true },
		onPrompt: func(model.ReviewPrompt) {},
		recorder: recorder,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleNextReviews recomputes both timestamps from prefs.
// Disabled or invalid families get a zero timestamp and never fire.
func (s *Scheduler) ScheduleNextReviews(prefs model.NotificationPreferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = prefs.Clone()
	now := s.clock.Now()
	s.nextDaily = s.computeDaily(now)
	s.nextWeekly = s.computeWeekly(now)
	s.logger.Debug("review schedule updated",
		zap.Time("next_daily", s.nextDaily),
		zap.Time("next_weekly", s.nextWeekly),
	)
}

// Next returns the scheduled timestamps.
func (s *Scheduler) Next() (daily, weekly time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextDaily, s.nextWeekly
}

// Active returns the prompt awaiting an answer, if any.
func (s *Scheduler) Active() (model.ReviewPrompt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return model.ReviewPrompt{}, false
	}
	return *s.active, true
}

// Poll fires the first due prompt that passes the gate. An active prompt blocks
// further prompts until it is answered or snoozed. A due prompt that the gate holds
// back stays due and is retried on the next poll.
func (s *Scheduler) Poll() (model.ReviewPrompt, bool) {
	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return model.ReviewPrompt{}, false
	}
	now := s.clock.Now()
	var fired *model.ReviewPrompt
	for _, c := range []struct {
		next   time.Time
		family model.Family
		prompt func() model.ReviewPrompt
	}{
		{s.nextDaily, model.FamilyDailyReview, DailyPrompt},
		{s.nextWeekly, model.FamilyWeeklyReview, WeeklyPrompt},
	} {
		if c.next.IsZero() || now.Before(c.next) {
			continue
		}
		if !s.canShow(c.family) {
			s.logger.Debug("due review held back by notification gate", zap.String("family", string(c.family)))
			continue
		}
		p := c.prompt()
		fired = &p
		break
	}
	if fired == nil {
		s.mu.Unlock()
		return model.ReviewPrompt{}, false
	}
	s.active = fired
	onPrompt := s.onPrompt
	s.mu.Unlock()

	s.logger.Info("review prompt due", zap.String("type", string(fired.Type)))
	onPrompt(*fired)
	return *fired, true
}

// Snooze clears the active prompt of type t and reschedules it minutes from now.
func (s *Scheduler) Snooze(t model.PromptType, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("snooze minutes must be > 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.Type != t {
		return ErrNoActivePrompt
	}
	until := s.clock.Now().Add(time.Duration(minutes) * time.Minute)
	switch t {
	case model.PromptDaily:
		s.nextDaily = until
	case model.PromptWeekly:
		s.nextWeekly = until
	}
	s.active = nil
	return nil
}

// Dismiss clears the active prompt without answering and moves to the next occurrence.
func (s *Scheduler) Dismiss(t model.PromptType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.Type != t {
		return ErrNoActivePrompt
	}
	s.advanceLocked(t)
	s.active = nil
	return nil
}

// Submit validates and records answers for a prompt of type t. Daily and weekly answers
// must match the active prompt, which is then cleared and rescheduled. Session-end
// answers are recorded directly. The prompt stays active if recording fails.
func (s *Scheduler) Submit(ctx context.Context, t model.PromptType, answers map[string]string) (model.ReviewResponse, error) {
	prompt, ok := PromptFor(t)
	if !ok {
		return model.ReviewResponse{}, fmt.Errorf("unknown prompt type %q", t)
	}
	if t != model.PromptSessionEnd {
		if cur, active := s.Active(); !active || cur.Type != t {
			return model.ReviewResponse{}, ErrNoActivePrompt
		}
	}
	if err := ValidateAnswers(prompt, answers); err != nil {
		return model.ReviewResponse{}, err
	}

	resp := model.ReviewResponse{
		PromptType:  t,
		Answers:     copyAnswers(answers),
		CompletedAt: s.clock.Now(),
	}
	if s.recorder != nil {
		if err := s.recorder.RecordReview(ctx, resp); err != nil {
			return model.ReviewResponse{}, fmt.Errorf("failed to record review: %w", err)
		}
	}
	if t == model.PromptSessionEnd {
		return resp, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.Type == t {
		s.active = nil
	}
	s.advanceLocked(t)
	return resp, nil
}

// Start runs Poll every interval until Stop or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	ticker := s.clock.NewTicker(s.interval)
	go s.run(ctx, ticker, s.stopCh, s.doneCh)
	s.logger.Debug("review poll started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the poll and waits for the loop to exit. Safe to call when not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()
	<-done
}

// Running reports whether the poll loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context, ticker clock.Ticker, stop, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			s.safePoll()
		case <-stop:
			return
		case <-ctx.Done():
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		}
	}
}

func (s *Scheduler) safePoll() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("review poll panicked, continuing",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	s.Poll()
}

func (s *Scheduler) advanceLocked(t model.PromptType) {
	now := s.clock.Now()
	switch t {
	case model.PromptDaily:
		s.nextDaily = s.computeDaily(now)
	case model.PromptWeekly:
		s.nextWeekly = s.computeWeekly(now)
	}
}

func (s *Scheduler) computeDaily(now time.Time) time.Time {
	if !s.prefs.DailyReview.Enabled {
		return time.Time{}
	}
	next, err := NextDaily(now, s.prefs.DailyReview)
	if err != nil {
		s.logger.Warn("invalid daily review time", zap.String("time", s.prefs.DailyReview.Time), zap.Error(err))
		return time.Time{}
	}
	return next
}

func (s *Scheduler) computeWeekly(now time.Time) time.Time {
	if !s.prefs.WeeklyReview.Enabled {
		return time.Time{}
	}
	next, err := NextWeekly(now, s.prefs.WeeklyReview)
	if err != nil {
		s.logger.Warn("invalid weekly review schedule", zap.Error(err))
		return time.Time{}
	}
	return next
}

func copyAnswers(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
