package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"suratadmin/internal/core"
	"suratadmin/internal/server/storage"
)

// --- Fakes ---

// fakeStore is an in-memory storage.Store. hook, when set, runs at the start
// of every call (outside the store's lock) so tests can block a request.
type fakeStore struct {
	mu        sync.Mutex
	templates []storage.Template
	stats     map[string][]storage.DownloadStatPoint
	nextID    int

	listErr   error
	uploadErr error
	removeErr error
	statsErr  error
	trackErr  error

	calls map[string]int

	hook func(op, id string)
}

func newFakeStore(templates ...storage.Template) *fakeStore {
	return &fakeStore{
		templates: templates,
		stats:     make(map[string][]storage.DownloadStatPoint),
		nextID:    len(templates) + 1,
		calls:     make(map[string]int),
	}
}

func (s *fakeStore) enter(_ context.Context, op, id string) {
	if s.hook != nil {
		s.hook(op, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
}

func (s *fakeStore) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *fakeStore) ListAll(ctx context.Context) ([]storage.Template, error) {
	s.enter(ctx, "list", "")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]storage.Template(nil), s.templates...), nil
}

func (s *fakeStore) Upload(ctx context.Context, name string, file *core.File) (*storage.Template, error) {
	s.enter(ctx, "upload", name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	now := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	t := storage.Template{
		ID:          fmt.Sprintf("t%d", s.nextID),
		Name:        name,
		DownloadURL: "https://cdn.example/" + file.Name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.nextID++
	s.templates = append(s.templates, t)
	return &t, nil
}

func (s *fakeStore) Remove(ctx context.Context, id string) error {
	s.enter(ctx, "remove", id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	for i, t := range s.templates {
		if t.ID == id {
			s.templates = append(s.templates[:i], s.templates[i+1:]...)
			return nil
		}
	}
	return &storage.StoreError{Op: "delete template", StatusCode: 404, Message: "not found"}
}

func (s *fakeStore) GetStats(ctx context.Context, id string) ([]storage.DownloadStatPoint, error) {
	s.enter(ctx, "stats", id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statsErr != nil {
		return nil, s.statsErr
	}
	return append([]storage.DownloadStatPoint{}, s.stats[id]...), nil
}

func (s *fakeStore) RecordDownload(ctx context.Context, id string) error {
	s.enter(ctx, "track", id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trackErr != nil {
		return s.trackErr
	}
	for i := range s.templates {
		if s.templates[i].ID == id {
			s.templates[i].TotalDownloads++
		}
	}
	return nil
}

type notification struct {
	Kind    NotificationKind
	Title   string
	Message string
}

type recordingSink struct {
	mu   sync.Mutex
	sent []notification
}

func (r *recordingSink) Notify(kind NotificationKind, title, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, notification{kind, title, message})
}

func (r *recordingSink) all() []notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification(nil), r.sent...)
}

type recordingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *recordingRecorder) ObserveWorkflow(workflow, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[workflow+"/"+outcome]++
}

func (r *recordingRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

type countingSession struct {
	mu        sync.Mutex
	principal *Principal
	err       error
	calls     int
}

func (s *countingSession) CurrentPrincipal(context.Context) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.principal, s.err
}

// --- Helpers ---

var march2024 = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

type testConsole struct {
	*Console
	store    *fakeStore
	sink     *recordingSink
	recorder *recordingRecorder
}

func newTestConsole(t *testing.T, store *fakeStore, logger *zap.Logger) *testConsole {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}
	sink := &recordingSink{}
	rec := &recordingRecorder{}
	c := NewConsole(Options{
		Store:    store,
		Session:  StaticSession{Principal: &Principal{ID: "u1", Role: RoleAdmin, Token: "tok"}},
		Notifier: sink,
		Recorder: rec,
		Logger:   logger,
		Now:      func() time.Time { return march2024 },
	})
	return &testConsole{Console: c, store: store, sink: sink, recorder: rec}
}

// activeConsole returns an activated admin console over store.
func activeConsole(t *testing.T, store *fakeStore) *testConsole {
	t.Helper()
	tc := newTestConsole(t, store, nil)
	active, err := tc.Activate(context.Background())
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !active {
		t.Fatal("expected admin console to activate")
	}
	return tc
}

func assertNotifications(t *testing.T, sink *recordingSink, expected ...notification) {
	t.Helper()
	got := sink.all()
	if len(got) != len(expected) {
		t.Fatalf("expected %d notifications, got %d: %+v", len(expected), len(got), got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("notification %d = %+v, want %+v", i, got[i], expected[i])
		}
	}
}

func templateIDs(c *Console) []string {
	return ids(c.Templates())
}

// gate blocks the first call matching op and id until released.
type gate struct {
	op, id  string
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate(op, id string) *gate {
	return &gate{op: op, id: id, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) hook(op, id string) {
	if op != g.op || id != g.id {
		return
	}
	first := false
	g.once.Do(func() { first = true })
	if !first {
		return
	}
	close(g.entered)
	<-g.release
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for store call")
	}
}

// --- Activation ---

func TestConsole_Activate(t *testing.T) {
	t.Run("admin activates and loads the collection", func(t *testing.T) {
		tc := activeConsole(t, newFakeStore(sampleTemplates()...))

		v := tc.View()
		if !v.Active || v.Loading {
			t.Errorf("expected active, loaded view, got active=%v loading=%v", v.Active, v.Loading)
		}
		if v.Total != 4 || len(v.Rows) != 4 {
			t.Errorf("expected 4 templates, got total=%d rows=%d", v.Total, len(v.Rows))
		}
		if tc.store.count("list") != 1 {
			t.Errorf("expected one list call, got %d", tc.store.count("list"))
		}
	})

	t.Run("non-admin stays inactive without error", func(t *testing.T) {
		store := newFakeStore(sampleTemplates()...)
		c := NewConsole(Options{
			Store:   store,
			Session: StaticSession{Principal: &Principal{ID: "u2", Role: RoleUser}},
		})

		active, err := c.Activate(context.Background())
		if err != nil || active {
			t.Fatalf("Activate() = %v, %v; want false, nil", active, err)
		}
		if store.count("list") != 0 {
			t.Error("store should not be called for a non-admin")
		}
		if v := c.View(); v.Active || len(v.Rows) != 0 {
			t.Errorf("expected empty inactive view, got %+v", v)
		}

		ctx := context.Background()
		checks := map[string]error{
			"refresh":  c.Refresh(ctx),
			"query":    c.SetQuery("x"),
			"delete":   c.Delete(ctx, "t1"),
			"stats":    c.ShowStats(ctx, "t1"),
			"download": c.Download(ctx, storage.Template{ID: "t1"}, OpenerFunc(func(context.Context, string) error { return nil })),
		}
		for name, err := range checks {
			if !errors.Is(err, ErrInactive) {
				t.Errorf("%s: expected ErrInactive, got %v", name, err)
			}
		}
		if _, err := c.SubmitUpload(ctx, core.UploadCandidate{Name: "x"}); !errors.Is(err, ErrInactive) {
			t.Errorf("upload: expected ErrInactive, got %v", err)
		}
	})

	t.Run("nobody signed in", func(t *testing.T) {
		c := NewConsole(Options{Store: newFakeStore(), Session: StaticSession{}})
		active, err := c.Activate(context.Background())
		if err != nil || active {
			t.Errorf("Activate() = %v, %v; want false, nil", active, err)
		}
	})

	t.Run("session failure is returned", func(t *testing.T) {
		session := &countingSession{err: errors.New("session store down")}
		c := NewConsole(Options{Store: newFakeStore(), Session: session})

		if _, err := c.Activate(context.Background()); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("principal is resolved once", func(t *testing.T) {
		session := &countingSession{principal: &Principal{ID: "u1", Role: RoleAdmin}}
		c := NewConsole(Options{Store: newFakeStore(), Session: session})

		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if active, err := c.Activate(context.Background()); err != nil || !active {
					t.Errorf("Activate() = %v, %v", active, err)
				}
			}()
		}
		wg.Wait()

		if session.calls != 1 {
			t.Errorf("expected 1 principal lookup, got %d", session.calls)
		}
	})

	t.Run("load failure is notified and leaves console usable", func(t *testing.T) {
		store := newFakeStore()
		store.listErr = errors.New("connection refused")
		tc := newTestConsole(t, store, nil)

		active, err := tc.Activate(context.Background())
		if err != nil || !active {
			t.Fatalf("Activate() = %v, %v", active, err)
		}
		assertNotifications(t, tc.sink, notification{
			NotifyFailure, "Gagal memuat data",
			"Tidak dapat memuat daftar format surat: list templates: connection refused",
		})
		if v := tc.View(); v.Loading {
			t.Error("loading should end after a failed load")
		}

		store.mu.Lock()
		store.listErr = nil
		store.templates = sampleTemplates()
		store.mu.Unlock()

		if err := tc.Refresh(context.Background()); err != nil {
			t.Fatalf("refresh: %v", err)
		}
		if len(tc.Templates()) != 4 {
			t.Errorf("expected 4 templates after refresh, got %d", len(tc.Templates()))
		}
	})

	t.Run("store error message is surfaced", func(t *testing.T) {
		store := newFakeStore()
		store.listErr = &storage.StoreError{Op: "list templates", StatusCode: 500, Message: "database unavailable"}
		tc := newTestConsole(t, store, nil)

		tc.Activate(context.Background())
		assertNotifications(t, tc.sink, notification{
			NotifyFailure, "Gagal memuat data",
			"Tidak dapat memuat daftar format surat: database unavailable",
		})
	})
}

// --- View ---

func TestConsole_View(t *testing.T) {
	t.Run("empty collection", func(t *testing.T) {
		tc := activeConsole(t, newFakeStore())
		if v := tc.View(); v.EmptyMessage != "Mulai dengan mengunggah format surat baru" {
			t.Errorf("unexpected empty message %q", v.EmptyMessage)
		}
	})

	t.Run("query without matches", func(t *testing.T) {
		tc := activeConsole(t, newFakeStore(sampleTemplates()...))
		tc.SetQuery("zzz")

		v := tc.View()
		if v.EmptyMessage != "Tidak ada hasil yang cocok dengan pencarian Anda" {
			t.Errorf("unexpected empty message %q", v.EmptyMessage)
		}
		if v.Total != 4 {
			t.Errorf("total should count the whole collection, got %d", v.Total)
		}
	})

	t.Run("query filters rows in store order", func(t *testing.T) {
		tc := activeConsole(t, newFakeStore(sampleTemplates()...))
		tc.SetQuery("surat")

		v := tc.View()
		if v.Query != "surat" || v.EmptyMessage != "" {
			t.Errorf("unexpected view %+v", v)
		}
		var got []string
		for _, row := range v.Rows {
			got = append(got, row.ID)
		}
		if fmt.Sprint(got) != "[t1 t2 t4]" {
			t.Errorf("rows = %v", got)
		}
	})
}

// --- Close ---

func TestConsole_Close(t *testing.T) {
	t.Run("late deletion result is discarded", func(t *testing.T) {
		store := newFakeStore(sampleTemplates()...)
		tc := activeConsole(t, store)
		g := newGate("remove", "t1")
		store.hook = g.hook

		done := make(chan error, 1)
		go func() { done <- tc.Delete(context.Background(), "t1") }()
		waitFor(t, g.entered)

		tc.Close()
		close(g.release)

		if err := <-done; !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
		assertNotifications(t, tc.sink)
		if store.count("list") != 1 {
			t.Errorf("closed console should not reload, got %d list calls", store.count("list"))
		}
	})

	t.Run("operations after close", func(t *testing.T) {
		tc := activeConsole(t, newFakeStore(sampleTemplates()...))
		tc.Close()

		if err := tc.Refresh(context.Background()); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
		if _, err := tc.Activate(context.Background()); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed from Activate, got %v", err)
		}
		if tc.View().Active {
			t.Error("closed console should render inactive")
		}
	})
}

func TestConsole_ForwardsPrincipalToken(t *testing.T) {
	var seen []string
	var mu sync.Mutex
	store := newFakeStore()
	probe := &tokenStore{fakeStore: store, seen: func(token string) {
		mu.Lock()
		seen = append(seen, token)
		mu.Unlock()
	}}
	c := NewConsole(Options{
		Store:   probe,
		Session: StaticSession{Principal: &Principal{ID: "u1", Role: RoleAdmin, Token: "jwt-abc"}},
	})
	if _, err := c.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "jwt-abc" {
		t.Errorf("expected token forwarded once, got %v", seen)
	}
}

// tokenStore captures the token the HTTP store would send.
type tokenStore struct {
	*fakeStore
	seen func(string)
}

func (s *tokenStore) ListAll(ctx context.Context) ([]storage.Template, error) {
	s.seen(storage.TokenFrom(ctx))
	return s.fakeStore.ListAll(ctx)
}
