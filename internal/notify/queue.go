package notify

import (
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultDuration = 3 * time.Second

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

type Toast struct {
	ID        int64
	Level     Level
	Message   string
	CreatedAt time.Time
}

type Option func(*Queue)

// WithOnChange registers a callback run after every add or removal, outside the queue lock.
func WithOnChange(fn func()) Option {
	return func(q *Queue) { q.onChange = fn }
}

func WithLogger(logger *zap.Logger) Option {
	return func(q *Queue) { q.logger = logger }
}

// Queue holds transient user notifications. Each toast disappears on its own
// after the queue's duration unless dismissed first.
type Queue struct {
	duration time.Duration
	onChange func()
	logger   *zap.Logger

	mu     sync.Mutex
	nextID int64
	toasts []Toast
	timers map[int64]*time.Timer
	closed bool
}

func NewQueue(duration time.Duration, opts ...Option) *Queue {
	if duration <= 0 {
		duration = DefaultDuration
	}
	q := &Queue{
		duration: duration,
		logger:   zap.NewNop(),
		timers:   make(map[int64]*time.Timer),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Show enqueues a toast and returns its id. After Close it returns 0 and
// records nothing.
func (q *Queue) Show(level Level, message string) int64 {
	return q.show(level, message, q.duration)
}

// ShowFor is Show with a per-toast duration.
func (q *Queue) ShowFor(level Level, message string, d time.Duration) int64 {
	if d <= 0 {
		d = q.duration
	}
	return q.show(level, message, d)
}

func (q *Queue) Success(message string) int64 { return q.Show(LevelSuccess, message) }
func (q *Queue) Error(message string) int64   { return q.Show(LevelError, message) }
func (q *Queue) Info(message string) int64    { return q.Show(LevelInfo, message) }

func (q *Queue) show(level Level, message string, d time.Duration) int64 {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0
	}
	q.nextID++
	id := q.nextID
	q.toasts = append(q.toasts, Toast{ID: id, Level: level, Message: message, CreatedAt: time.Now()})
	q.timers[id] = time.AfterFunc(d, func() { q.expire(id) })
	q.mu.Unlock()

	q.logger.Debug("toast shown", zap.Int64("id", id), zap.String("level", string(level)), zap.String("message", message))
	q.changed()
	return id
}

// Dismiss removes a toast before it expires. It reports whether the toast was present.
func (q *Queue) Dismiss(id int64) bool {
	q.mu.Lock()
	if t, ok := q.timers[id]; ok {
		t.Stop()
	}
	removed := q.removeLocked(id)
	q.mu.Unlock()

	if removed {
		q.changed()
	}
	return removed
}

// List returns the visible toasts, oldest first.
func (q *Queue) List() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.toasts)
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.toasts)
}

// Close stops all pending expiry timers and drops the visible toasts.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for _, t := range q.timers {
		t.Stop()
	}
	clear(q.timers)
	q.toasts = nil
	q.mu.Unlock()
}

func (q *Queue) expire(id int64) {
	q.mu.Lock()
	removed := q.removeLocked(id)
	q.mu.Unlock()

	if removed {
		q.changed()
	}
}

func (q *Queue) removeLocked(id int64) bool {
	delete(q.timers, id)
	n := len(q.toasts)
	q.toasts = slices.DeleteFunc(q.toasts, func(t Toast) bool { return t.ID == id })
	return len(q.toasts) != n
}

func (q *Queue) changed() {
	if q.onChange != nil {
		q.onChange()
	}
}
