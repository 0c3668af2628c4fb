package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"suratadmin/internal/server/service"
)

const pushTimeout = 2 * time.Second

// Notification is a dismissible message waiting to be shown to its owner.
type Notification struct {
	ID        string                   `json:"id"`
	Kind      service.NotificationKind `json:"kind"`
	Title     string                   `json:"title"`
	Message   string                   `json:"message"`
	CreatedAt time.Time                `json:"createdAt"`
}

// New stamps a notification with a fresh id.
func New(kind service.NotificationKind, title, message string, now time.Time) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: now.UTC(),
	}
}

// Inbox stores pending notifications per owner until they are drained or
// dismissed.
type Inbox interface {
	Push(ctx context.Context, owner string, n Notification) error
	Drain(ctx context.Context, owner string) ([]Notification, error)
	Dismiss(ctx context.Context, owner, id string) (bool, error)
}

// Pruner is implemented by inboxes that expire entries themselves.
type Pruner interface {
	Prune(now time.Time) int
}

// Sink delivers one console's notifications into its owner's inbox.
type Sink struct {
	inbox  Inbox
	owner  string
	logger *zap.Logger
	now    func() time.Time
}

func NewSink(inbox Inbox, owner string, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{inbox: inbox, owner: owner, logger: logger, now: time.Now}
}

// Notify implements service.NotificationSink. Delivery failures are logged;
// the workflow that emitted the notification has already finished.
func (s *Sink) Notify(kind service.NotificationKind, title, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	n := New(kind, title, message, s.now())
	if err := s.inbox.Push(ctx, s.owner, n); err != nil {
		s.logger.Warn("failed to deliver notification",
			zap.String("owner", s.owner),
			zap.String("title", title),
			zap.Error(err),
		)
	}
}

// LogSink writes notifications to the log.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Notify(kind service.NotificationKind, title, message string) {
	fields := []zap.Field{zap.String("title", title), zap.String("message", message)}
	if kind == service.NotifyFailure {
		s.Logger.Warn("notification", fields...)
		return
	}
	s.Logger.Info("notification", fields...)
}

// Tee fans a notification out to several sinks.
type Tee []service.NotificationSink

func (t Tee) Notify(kind service.NotificationKind, title, message string) {
	for _, sink := range t {
		sink.Notify(kind, title, message)
	}
}

// MemoryInbox keeps notifications in process. Entries older than the TTL
// are dropped on read and by Prune.
type MemoryInbox struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string][]Notification
}

func NewMemoryInbox(ttl time.Duration) *MemoryInbox {
	return &MemoryInbox{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string][]Notification),
	}
}

func (m *MemoryInbox) Push(_ context.Context, owner string, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[owner] = append(m.items[owner], n)
	return nil
}

// Drain returns the owner's live notifications, oldest first, and empties
// the inbox.
func (m *MemoryInbox) Drain(_ context.Context, owner string) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.cutoff(m.now())
	out := make([]Notification, 0, len(m.items[owner]))
	for _, n := range m.items[owner] {
		if n.CreatedAt.After(cutoff) {
			out = append(out, n)
		}
	}
	delete(m.items, owner)
	return out, nil
}

func (m *MemoryInbox) Dismiss(_ context.Context, owner, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.items[owner]
	for i, n := range list {
		if n.ID == id {
			m.items[owner] = append(list[:i:i], list[i+1:]...)
			if len(m.items[owner]) == 0 {
				delete(m.items, owner)
			}
			return true, nil
		}
	}
	return false, nil
}

// Prune drops expired notifications and reports how many were removed.
func (m *MemoryInbox) Prune(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.cutoff(now)
	removed := 0
	for owner, list := range m.items {
		kept := list[:0]
		for _, n := range list {
			if n.CreatedAt.After(cutoff) {
				kept = append(kept, n)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(m.items, owner)
		} else {
			m.items[owner] = kept
		}
	}
	return removed
}

func (m *MemoryInbox) cutoff(now time.Time) time.Time {
	if m.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(-m.ttl)
}
