package appstate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/domain"
	"github.com/ahmetcoskunkizilkaya/fridgechef/internal/kv"
)

type listener struct {
	ctx        context.Context
	onSnapshot func([]Document)
	onError    func(error)
}

type write struct {
	op         string
	collection string
	id         string
	data       any
	fields     map[string]any
	merge      bool
}

// fakeDocs records every call and lets tests push snapshots through the
// listeners it was given.
type fakeDocs struct {
	mu        sync.Mutex
	listenErr error
	onListen  func()
	listeners map[string][]listener
	profiles  []func(domain.Profile)
	writes    []write
	seq       int
}

var _ DocumentStore = (*fakeDocs)(nil)

func newFakeDocs() *fakeDocs {
	return &fakeDocs{listeners: make(map[string][]listener)}
}

func (f *fakeDocs) Listen(ctx context.Context, collection string, onSnapshot func([]Document), onError func(error)) error {
	if f.onListen != nil {
		f.onListen()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listenErr != nil {
		return f.listenErr
	}
	f.listeners[collection] = append(f.listeners[collection], listener{ctx: ctx, onSnapshot: onSnapshot, onError: onError})
	return nil
}

func (f *fakeDocs) ListenProfile(_ context.Context, onProfile func(domain.Profile), _ func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles = append(f.profiles, onProfile)
	return nil
}

func (f *fakeDocs) Create(_ context.Context, collection string, data any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("doc-%d", f.seq)
	f.writes = append(f.writes, write{op: "create", collection: collection, id: id, data: data})
	return id, nil
}

func (f *fakeDocs) Set(_ context.Context, collection, id string, data any, merge bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, write{op: "set", collection: collection, id: id, data: data, merge: merge})
	return nil
}

func (f *fakeDocs) Update(_ context.Context, collection, id string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, write{op: "update", collection: collection, id: id, fields: fields})
	return nil
}

func (f *fakeDocs) Delete(_ context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, write{op: "delete", collection: collection, id: id})
	return nil
}

func (f *fakeDocs) listener(collection string, i int) listener {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listeners[collection][i]
}

func (f *fakeDocs) listenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.profiles)
	for _, ls := range f.listeners {
		n += len(ls)
	}
	return n
}

// emit delivers docs through the newest listener of collection.
func (f *fakeDocs) emit(collection string, docs ...Document) {
	f.mu.Lock()
	ls := f.listeners[collection]
	f.mu.Unlock()
	ls[len(ls)-1].onSnapshot(docs)
}

func (f *fakeDocs) emitProfile(p domain.Profile) {
	f.mu.Lock()
	ps := f.profiles
	f.mu.Unlock()
	ps[len(ps)-1](p)
}

func (f *fakeDocs) written() []write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]write(nil), f.writes...)
}

func doc(t *testing.T, id string, v any) Document {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return Document{ID: id, Data: data}
}

func memberDoc(t *testing.T, id, name string) Document {
	return doc(t, id, map[string]any{"schema": 1, "name": name})
}

// fakeAuth answers Watch synchronously and turns sign-in and sign-out
// into principal changes.
type fakeAuth struct {
	mu        sync.Mutex
	fn        func(*domain.Session)
	silent    bool
	current   *domain.Session
	signInErr error
	signOuts  int
}

var _ AuthProvider = (*fakeAuth)(nil)

func (f *fakeAuth) Watch(_ context.Context, fn func(*domain.Session)) {
	f.mu.Lock()
	f.fn = fn
	silent, cur := f.silent, f.current
	f.mu.Unlock()
	if !silent {
		fn(cur)
	}
}

func (f *fakeAuth) emit(s *domain.Session) {
	f.mu.Lock()
	f.current = s
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (f *fakeAuth) SignIn(_ context.Context, email, _ string) error {
	if f.signInErr != nil {
		return f.signInErr
	}
	f.emit(&domain.Session{UID: "uid-" + email, Email: email})
	return nil
}

func (f *fakeAuth) Register(ctx context.Context, email, password, _ string) error {
	return f.SignIn(ctx, email, password)
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.mu.Lock()
	f.signOuts++
	f.mu.Unlock()
	f.emit(nil)
	return nil
}

func (f *fakeAuth) SendPasswordReset(context.Context, string) error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startApp(t *testing.T, auth AuthProvider, docs DocumentStore, store kv.Store) *App {
	t.Helper()
	if store == nil {
		store = kv.NewMemory()
	}
	app := New(Options{
		Auth:        auth,
		Documents:   docs,
		KV:          store,
		Logger:      quietLogger(),
		AuthTimeout: time.Hour,
	})
	t.Cleanup(app.Close)
	app.Start(context.Background())
	return app
}

func signedIn(uid string) *fakeAuth {
	return &fakeAuth{current: &domain.Session{UID: uid, Email: uid + "@example.com"}}
}
