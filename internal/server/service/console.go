package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"suratadmin/internal/server/storage"
)

// Sentinel errors for the service layer.
var (
	ErrInactive           = errors.New("console is not active for this principal")
	ErrClosed             = errors.New("console has been closed")
	ErrUploadInProgress   = errors.New("an upload is already in progress")
	ErrDeletionInProgress = errors.New("template is already being deleted")
	ErrTemplateNotFound   = errors.New("template not found in console")
)

const defaultTrackTimeout = 5 * time.Second

// Options configures a Console. Store and Session are required.
type Options struct {
	Store    storage.Store
	Session  SessionProvider
	Notifier NotificationSink
	Recorder Recorder
	Logger   *zap.Logger

	// Now and MonthName shape the synthetic analytics point.
	Now       func() time.Time
	MonthName func(time.Month) string

	// TrackTimeout bounds the download-tracking call.
	TrackTimeout time.Duration
}

// Console is one admin's template management page. It owns the canonical
// collection, the upload form, the per-id deletion markers and the
// analytics selection.
//
// State is guarded by mu, which is never held across a store call.
type Console struct {
	store        storage.Store
	session      SessionProvider
	notifier     NotificationSink
	recorder     Recorder
	logger       *zap.Logger
	now          func() time.Time
	monthName    func(time.Month) string
	trackTimeout time.Duration

	activateOnce sync.Once
	activateErr  error

	mu        sync.Mutex
	principal *Principal
	active    bool
	closed    bool
	loading   bool
	list      TemplateList
	deleting  map[string]struct{}
	uploading bool
	form      formState
	analytics analyticsState
}

type formState struct {
	name     string
	fileName string
}

// NewConsole creates an inactive console. Call Activate before use.
func NewConsole(opts Options) *Console {
	c := &Console{
		store:        opts.Store,
		session:      opts.Session,
		notifier:     opts.Notifier,
		recorder:     opts.Recorder,
		logger:       opts.Logger,
		now:          opts.Now,
		monthName:    opts.MonthName,
		trackTimeout: opts.TrackTimeout,
		deleting:     make(map[string]struct{}),
	}
	if c.notifier == nil {
		c.notifier = NotifierFunc(func(NotificationKind, string, string) {})
	}
	if c.recorder == nil {
		c.recorder = nopRecorder{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.monthName == nil {
		c.monthName = time.Month.String
	}
	if c.trackTimeout <= 0 {
		c.trackTimeout = defaultTrackTimeout
	}
	return c
}

// Activate resolves the principal once. Only an ADMIN principal activates
// the console, which then loads the collection; for anyone else it stays
// inactive and reports false without an error.
func (c *Console) Activate(ctx context.Context) (bool, error) {
	c.activateOnce.Do(func() {
		c.activateErr = c.activate(ctx)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}
	return c.active, c.activateErr
}

func (c *Console) activate(ctx context.Context) error {
	principal, err := c.session.CurrentPrincipal(ctx)
	if err != nil {
		return fmt.Errorf("resolve principal: %w", err)
	}
	if !principal.IsAdmin() {
		c.logger.Debug("console left inactive for non-admin principal")
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.principal = principal
	c.active = true
	c.loading = true
	c.mu.Unlock()

	c.logger.Info("console activated", zap.String("user_id", principal.ID))

	// A failed first load is already notified; the console stays usable.
	_ = c.reload(ctx)
	return nil
}

// Refresh reloads the collection from the store. On failure the previous
// collection is kept and a notification is emitted.
func (c *Console) Refresh(ctx context.Context) error {
	c.mu.Lock()
	err := c.readyLocked()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.reload(ctx)
}

func (c *Console) reload(ctx context.Context) error {
	seq, list, err := c.fetchAll(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.loading = false
	if err == nil {
		c.list.Apply(seq, list)
	}
	c.mu.Unlock()

	if err != nil {
		c.recorder.ObserveWorkflow(WorkflowLoad, OutcomeFailure)
		c.logger.Error("failed to load templates", zap.Error(err))
		c.notifyFailure(titleLoadFailed, msgLoadFailed, err)
		return err
	}
	c.recorder.ObserveWorkflow(WorkflowLoad, OutcomeSuccess)
	return nil
}

// fetchAll lists the store under a fresh refresh sequence number. The
// caller applies the result while holding mu.
func (c *Console) fetchAll(ctx context.Context) (uint64, []storage.Template, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, nil, ErrClosed
	}
	seq := c.list.Begin()
	c.mu.Unlock()

	list, err := c.store.ListAll(c.storeCtx(ctx))
	if err != nil {
		return seq, nil, fmt.Errorf("list templates: %w", err)
	}
	return seq, list, nil
}

// SetQuery updates the search text.
func (c *Console) SetQuery(q string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return err
	}
	c.list.SetQuery(q)
	return nil
}

// Lookup finds a template in the loaded collection.
func (c *Console) Lookup(id string) (storage.Template, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readyLocked(); err != nil {
		return storage.Template{}, err
	}
	t, ok := c.list.Find(id)
	if !ok {
		return storage.Template{}, ErrTemplateNotFound
	}
	return t, nil
}

// Close discards the console. Results of requests still in flight are
// dropped and no further notifications are emitted.
func (c *Console) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Closed reports whether Close has been called.
func (c *Console) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Principal returns the principal the console was activated for.
func (c *Console) Principal() *Principal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.principal
}

func (c *Console) readyLocked() error {
	if c.closed {
		return ErrClosed
	}
	if !c.active {
		return ErrInactive
	}
	return nil
}

// storeCtx attaches the principal's token. principal is written once,
// before active is set, so reading it after readyLocked is safe.
func (c *Console) storeCtx(ctx context.Context) context.Context {
	if c.principal == nil {
		return ctx
	}
	return storage.WithToken(ctx, c.principal.Token)
}

func (c *Console) notify(kind NotificationKind, title, message string) {
	if c.Closed() {
		return
	}
	c.notifier.Notify(kind, title, message)
}

func (c *Console) notifyFailure(title, generic string, err error) {
	c.notify(NotifyFailure, title, generic+": "+describe(err))
}

// describe returns the most user-meaningful text for err.
func describe(err error) string {
	var storeErr *storage.StoreError
	if errors.As(err, &storeErr) && storeErr.Message != "" {
		return storeErr.Message
	}
	return err.Error()
}

// --- View ---

// View is a snapshot of the console for the rendering layer.
type View struct {
	Active       bool          `json:"active"`
	Loading      bool          `json:"loading"`
	Total        int           `json:"total"`
	Query        string        `json:"query"`
	Rows         []TemplateRow `json:"rows"`
	EmptyMessage string        `json:"emptyMessage,omitempty"`
	Uploading    bool          `json:"uploading"`
	Form         FormView      `json:"form"`
	Analytics    AnalyticsView `json:"analytics"`
}

// TemplateRow is one row of the filtered list.
type TemplateRow struct {
	storage.Template
	Deleting bool `json:"deleting"`
}

type FormView struct {
	Name     string `json:"nama"`
	FileName string `json:"fileName,omitempty"`
}

type AnalyticsView struct {
	SelectedID   string          `json:"selectedId,omitempty"`
	Name         string          `json:"nama,omitempty"`
	Loading      bool            `json:"loading"`
	Points       []StatPointView `json:"points"`
	EmptyMessage string          `json:"emptyMessage,omitempty"`
}

// StatPointView is a statistics point with its count rounded for display.
type StatPointView struct {
	Month         string `json:"month"`
	Year          int    `json:"year"`
	DownloadCount int64  `json:"downloadCount"`
}

// View returns the current state. An inactive console renders nothing
// but Active=false.
func (c *Console) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || c.closed {
		return View{Rows: []TemplateRow{}, Analytics: AnalyticsView{Points: []StatPointView{}}}
	}

	filtered := c.list.Filtered()
	rows := make([]TemplateRow, 0, len(filtered))
	for _, t := range filtered {
		_, busy := c.deleting[t.ID]
		rows = append(rows, TemplateRow{Template: t, Deleting: busy})
	}

	v := View{
		Active:    true,
		Loading:   c.loading,
		Total:     c.list.Len(),
		Query:     c.list.Query(),
		Rows:      rows,
		Uploading: c.uploading,
		Form:      FormView{Name: c.form.name, FileName: c.form.fileName},
		Analytics: c.analyticsViewLocked(),
	}
	if len(rows) == 0 && !c.loading {
		if v.Query != "" {
			v.EmptyMessage = emptyNoMatch
		} else {
			v.EmptyMessage = emptyNoTemplates
		}
	}
	return v
}

// Deleting returns the ids whose deletion is in flight, sorted.
func (c *Console) Deleting() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.deleting))
	for id := range c.deleting {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsDeleting reports whether a deletion of id is in flight.
func (c *Console) IsDeleting(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, busy := c.deleting[id]
	return busy
}

// Templates returns a copy of the canonical collection.
func (c *Console) Templates() []storage.Template {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.All()
}
