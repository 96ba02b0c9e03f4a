package cloudsync

import (
	"context"
	"errors"
	"sync"

	"attendance-cloud/internal/auth"
	"attendance-cloud/internal/docstore"
	"attendance-cloud/internal/model"
)

type storeCall struct {
	Op     string
	Path   string
	Fields map[string]any
	Merge  bool
}

// fakeStore records writes and hands subscription callbacks back to the test.
type fakeStore struct {
	mu       sync.Mutex
	calls    []storeCall
	writeErr error
	subErr   error

	docs    map[string]docstore.DocHandler
	queries map[string]docstore.QueryHandler
	errs    map[string]docstore.ErrorHandler
	subs    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:    map[string]docstore.DocHandler{},
		queries: map[string]docstore.QueryHandler{},
		errs:    map[string]docstore.ErrorHandler{},
	}
}

func (f *fakeStore) record(c storeCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return f.writeErr
}

func (f *fakeStore) Set(ctx context.Context, path string, fields map[string]any, opts ...docstore.SetOption) error {
	return f.record(storeCall{Op: "set", Path: path, Fields: fields, Merge: docstore.IsMerge(opts...)})
}

func (f *fakeStore) Update(ctx context.Context, path string, fields map[string]any) error {
	return f.record(storeCall{Op: "update", Path: path, Fields: fields})
}

func (f *fakeStore) Delete(ctx context.Context, path string) error {
	return f.record(storeCall{Op: "delete", Path: path})
}

func (f *fakeStore) SubscribeDoc(ctx context.Context, path string, onNext docstore.DocHandler, onErr docstore.ErrorHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return f.subErr
	}
	f.subs = append(f.subs, path)
	f.docs[path] = onNext
	f.errs[path] = onErr
	return nil
}

func (f *fakeStore) SubscribeCollection(ctx context.Context, path string, onNext docstore.QueryHandler, onErr docstore.ErrorHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return f.subErr
	}
	f.subs = append(f.subs, path)
	f.queries[path] = onNext
	f.errs[path] = onErr
	return nil
}

func (f *fakeStore) Calls() []storeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storeCall(nil), f.calls...)
}

func (f *fakeStore) Subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subs...)
}

func (f *fakeStore) pushDoc(path string, snap docstore.DocSnapshot) {
	f.mu.Lock()
	fn := f.docs[path]
	f.mu.Unlock()
	fn(snap)
}

func (f *fakeStore) pushQuery(path string, docs ...docstore.Document) {
	f.mu.Lock()
	fn := f.queries[path]
	f.mu.Unlock()
	fn(docstore.QuerySnapshot{Path: path, Docs: docs})
}

func (f *fakeStore) errorHandler(path string) docstore.ErrorHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[path]
}

// fakeIdentity signs in without a server. Either path can be made to fail.
type fakeIdentity struct {
	auth.StateNotifier

	customErr error
	anonErr   error

	mu         sync.Mutex
	customSeen []string
	anonCalls  int
}

var errSignIn = errors.New("sign-in refused")

func (f *fakeIdentity) SignInWithCustomToken(ctx context.Context, token string) (*model.Session, error) {
	f.mu.Lock()
	f.customSeen = append(f.customSeen, token)
	f.mu.Unlock()
	if f.customErr != nil {
		return nil, f.customErr
	}
	sess := &model.Session{UID: "custom-" + token, Token: "session"}
	f.SetSession(sess)
	return sess, nil
}

func (f *fakeIdentity) SignInAnonymously(ctx context.Context) (*model.Session, error) {
	f.mu.Lock()
	f.anonCalls++
	f.mu.Unlock()
	if f.anonErr != nil {
		return nil, f.anonErr
	}
	sess := &model.Session{UID: "anon", Anonymous: true, Token: "session"}
	f.SetSession(sess)
	return sess, nil
}

func (f *fakeIdentity) AnonCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.anonCalls
}
