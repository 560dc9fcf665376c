package lesson

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pot-code/samba-client/internal/infrastructure/driver"
	"github.com/pot-code/samba-client/internal/infrastructure/eventloop"
	"github.com/pot-code/samba-client/internal/infrastructure/uuid"
	"github.com/pot-code/samba-client/internal/infrastructure/validate"
	"github.com/pot-code/samba-client/internal/media"
	"github.com/pot-code/samba-client/internal/preference"
	"github.com/pot-code/samba-client/internal/session"
	"github.com/spf13/afero"
	"go.uber.org/zap/zaptest"
)

var errUnavailable = errors.New("network unavailable")

type fakeCatalog struct {
	mu        sync.Mutex
	docs      map[string]Document
	nextID    int
	queries   int
	queryErr  error
	deleteErr error
	onQuery   func(ctx context.Context, n int) error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{docs: make(map[string]Document)}
}

func (fc *fakeCatalog) put(items ...Item) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	for _, it := range items {
		fc.docs[it.ID] = Document{ID: it.ID, Fields: it.Fields()}
	}
}

func (fc *fakeCatalog) reset(items ...Item) {
	fc.mu.Lock()
	fc.docs = make(map[string]Document)
	fc.mu.Unlock()
	fc.put(items...)
}

func (fc *fakeCatalog) has(id string) bool {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	_, ok := fc.docs[id]
	return ok
}

func (fc *fakeCatalog) fields(id string) Fields {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.docs[id].Fields
}

func (fc *fakeCatalog) Query(ctx context.Context, field string, value interface{}) ([]Document, error) {
	fc.mu.Lock()
	var result []Document
	for _, doc := range fc.docs {
		if doc.Fields[field] == value {
			result = append(result, doc)
		}
	}
	fc.queries++
	n, hook, err := fc.queries, fc.onQuery, fc.queryErr
	fc.mu.Unlock()

	if hook != nil {
		if hookErr := hook(ctx, n); hookErr != nil {
			return nil, hookErr
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (fc *fakeCatalog) setHook(hook func(ctx context.Context, n int) error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.onQuery = hook
}

func (fc *fakeCatalog) setQueryErr(err error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.queryErr = err
}

func (fc *fakeCatalog) setDeleteErr(err error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.deleteErr = err
}

// blockFirstQuery holds the first query after it has read the catalog,
// started is closed at that point
func (fc *fakeCatalog) blockFirstQuery() (started, release chan struct{}) {
	started = make(chan struct{})
	release = make(chan struct{})
	fc.setHook(func(ctx context.Context, n int) error {
		if n != 1 {
			return nil
		}
		close(started)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	return started, release
}

func (fc *fakeCatalog) queryCount() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.queries
}

func (fc *fakeCatalog) Add(ctx context.Context, fields Fields) (string, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.nextID++
	id := "N" + strconv.Itoa(fc.nextID)
	fc.docs[id] = Document{ID: id, Fields: fields}
	return id, nil
}

func (fc *fakeCatalog) Update(ctx context.Context, id string, fields Fields) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	doc, ok := fc.docs[id]
	if !ok {
		return ErrDocumentNotFound
	}
	for k, v := range fields {
		doc.Fields[k] = v
	}
	return nil
}

func (fc *fakeCatalog) Delete(ctx context.Context, id string) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.deleteErr != nil {
		return fc.deleteErr
	}
	if _, ok := fc.docs[id]; !ok {
		return ErrDocumentNotFound
	}
	delete(fc.docs, id)
	return nil
}

type fakeIdentity struct {
	uid        string
	privileged bool
}

func (fi *fakeIdentity) UID(ctx context.Context) string {
	if fi.uid == "" {
		return session.UnknownUID
	}
	return fi.uid
}

func (fi *fakeIdentity) RequireUID(ctx context.Context) (string, error) {
	if fi.uid == "" {
		return "", session.ErrUnauthenticated
	}
	return fi.uid, nil
}

func (fi *fakeIdentity) IsPrivileged() bool { return fi.privileged }

type mirrorCall struct {
	uid, itemID string
	favorite    bool
}

type fakeMirror struct {
	mu    sync.Mutex
	calls []mirrorCall
	fail  int // remaining calls to fail
}

func (fm *fakeMirror) SetFavorite(ctx context.Context, uid, itemID string, favorite bool) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.calls = append(fm.calls, mirrorCall{uid, itemID, favorite})
	if fm.fail > 0 {
		fm.fail--
		return errUnavailable
	}
	return nil
}

func (fm *fakeMirror) callCount() int {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return len(fm.calls)
}

type harness struct {
	loop     *eventloop.Loop
	catalog  *fakeCatalog
	prefs    preference.Store
	identity *fakeIdentity
	cache    *Cache
	fs       afero.Fs
	media    *media.Store
	mirror   *fakeMirror
	queue    *MirrorQueue
	adapter  *Adapter
	usecase  *LessonUseCaseImpl
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	conn, err := driver.GetDBConnection(&driver.DBConfig{
		Driver: driver.DriverSQLite,
		Host:   "file:" + filepath.Join(t.TempDir(), "prefs.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	prefs, err := preference.NewSQLStore(ctx, conn, "samba")
	if err != nil {
		t.Fatalf("NewSQLStore: %v", err)
	}

	fs := afero.NewMemMapFs()
	mediaStore, err := media.NewStore(fs, "/data/videos", uuid.NewNanoIDGenerator(12), logger)
	if err != nil {
		t.Fatalf("media.NewStore: %v", err)
	}

	h := &harness{
		loop:     eventloop.New(64),
		catalog:  newFakeCatalog(),
		prefs:    prefs,
		identity: &fakeIdentity{uid: "alice", privileged: true},
		fs:       fs,
		media:    mediaStore,
		mirror:   &fakeMirror{},
	}
	h.cache = NewCache(h.loop, h.catalog, logger, WithFetchTimeout(2*time.Second))
	h.queue = NewMirrorQueue(h.mirror, logger, time.Hour, 3)
	h.adapter = NewAdapter(h.cache, prefs, h.identity, h.catalog, mediaStore, h.queue, DefaultIcons(), logger)
	h.usecase = NewLessonUseCase(h.catalog, h.cache, prefs, h.identity, validate.NewValidator(), mediaStore, logger)

	t.Cleanup(func() {
		h.cache.Close(ctx)
		h.loop.Close()
		prefs.Close(ctx)
	})
	return h
}

// refresh runs a refresh and waits for its outcome
func (h *harness) refresh(t *testing.T, category Category) error {
	t.Helper()
	return wait(t, h.cache.Refresh(category))
}

func wait(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetch")
		return nil
	}
}

func ids(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	sort.Strings(out)
	return out
}

func equalIDs(got []Item, want ...string) bool {
	g := ids(got)
	sort.Strings(want)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

func beginner(id, time string) Item {
	return Item{ID: id, Category: Beginner, Title: "Samba " + id, ScheduledTime: time, Capacity: 20, CreatorID: "alice"}
}
