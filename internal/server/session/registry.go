package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"suratadmin/internal/server/metrics"
	"suratadmin/internal/server/service"
)

// ConsoleFactory builds the console for a newly seen principal.
type ConsoleFactory func(p *service.Principal) *service.Console

// Registry keeps one console per signed-in principal, the server-side
// counterpart of an open admin page.
type Registry struct {
	mu       sync.Mutex
	consoles map[string]*entry
	factory  ConsoleFactory
	logger   *zap.Logger
	now      func() time.Time
}

type entry struct {
	console  *service.Console
	token    string
	lastSeen time.Time
}

func NewRegistry(factory ConsoleFactory, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		consoles: make(map[string]*entry),
		factory:  factory,
		logger:   logger,
		now:      time.Now,
	}
}

func registryKey(p *service.Principal) string {
	return string(p.Role) + ":" + p.ID
}

// Console returns the principal's console, creating and activating it on
// first use. A new token for the same principal starts a fresh console.
// active is false for principals that may not use the console.
func (r *Registry) Console(ctx context.Context, p *service.Principal) (c *service.Console, active bool, err error) {
	key := registryKey(p)

	r.mu.Lock()
	e, ok := r.consoles[key]
	if ok && (e.token != p.Token || e.console.Closed()) {
		e.console.Close()
		delete(r.consoles, key)
		ok = false
	}
	if !ok {
		e = &entry{console: r.factory(p), token: p.Token}
		r.consoles[key] = e
		r.logger.Debug("console opened", zap.String("user_id", p.ID))
	}
	e.lastSeen = r.now()
	metrics.SetActiveConsoles(len(r.consoles))
	r.mu.Unlock()

	active, err = e.console.Activate(ctx)
	if err != nil {
		// Activation is resolved once per console; drop it so the next
		// request starts over.
		r.mu.Lock()
		if r.consoles[key] == e {
			delete(r.consoles, key)
			metrics.SetActiveConsoles(len(r.consoles))
		}
		r.mu.Unlock()
		e.console.Close()
		return nil, false, err
	}
	return e.console, active, nil
}

// EvictIdle closes consoles not used within maxIdle and returns how many
// were closed.
func (r *Registry) EvictIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	evicted := 0
	for key, e := range r.consoles {
		if e.lastSeen.Before(cutoff) {
			e.console.Close()
			delete(r.consoles, key)
			evicted++
		}
	}
	metrics.SetActiveConsoles(len(r.consoles))
	return evicted
}

// Len returns the number of open consoles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.consoles)
}

// CloseAll closes every console.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, e := range r.consoles {
		e.console.Close()
		delete(r.consoles, key)
	}
	metrics.SetActiveConsoles(0)
}
