package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/focustimer/internal/logging"
	"github.com/verte-zerg/focustimer/internal/model"
)

// Notification is one user-facing message.
type Notification struct {
	Family     model.Family
	Title      string
	Body       string
	Sound      bool
	At         time.Time
	Prompt     *model.ReviewPrompt
	Suggestion *model.BreakSuggestion
}

// Sink presents notifications to the user.
type Sink interface {
	Notify(n Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Notification)

// Notify implements Sink.
func (f SinkFunc) Notify(n Notification) { f(n) }

// Dispatcher gates and delivers notifications.
type Dispatcher struct {
	gate     *Gate
	sink     Sink
	logger   *zap.Logger
	observer func(f model.Family, shown bool)
}

// NewDispatcher creates a dispatcher. observer may be nil.
func NewDispatcher(gate *Gate, sink Sink, logger *zap.Logger, observer func(model.Family, bool)) *Dispatcher {
	if observer == nil {
		observer = func(model.Family, bool) {}
	}
	return &Dispatcher{gate: gate, sink: sink, logger: logging.OrNop(logger), observer: observer}
}

// Emit delivers n if the gate allows its family now.
func (d *Dispatcher) Emit(n Notification) bool {
	shown := d.gate.CanShow(n.Family)
	d.observer(n.Family, shown)
	if !shown {
		d.logger.Debug("notification suppressed", zap.String("family", string(n.Family)), zap.String("title", n.Title))
		return false
	}
	if d.sink != nil {
		d.sink.Notify(n)
	}
	return true
}

// CanShow exposes the gate for components that hold results back.
func (d *Dispatcher) CanShow(f model.Family) bool {
	return d.gate.CanShow(f)
}

// Queue is a Sink that buffers notifications for a polling consumer.
type Queue struct {
	mu    sync.Mutex
	items []Notification
	limit int
}

// NewQueue returns a queue keeping at most limit pending items (oldest dropped).
func NewQueue(limit int) *Queue {
	if limit <= 0 {
		limit = 32
	}
	return &Queue{limit: limit}
}

// Notify implements Sink.
func (q *Queue) Notify(n Notification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, n)
	if len(q.items) > q.limit {
		q.items = q.items[len(q.items)-q.limit:]
	}
}

// Drain returns and clears pending notifications.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// LogSink writes notifications to a logger, for headless use.
func LogSink(logger *zap.Logger) Sink {
	logger = logging.OrNop(logger)
	return SinkFunc(func(n Notification) {
		logger.Info("notification",
			zap.String("family", string(n.Family)),
			zap.String("title", n.Title),
			zap.String("body", n.Body),
		)
	})
}
