package docstore

import (
	"context"
	"reflect"
	"sync"

	"attendance-cloud/internal/hub"
)

// MemoryStore keeps every collection in process memory. Writes are broadcast to
// subscribers through a hub keyed by collection path.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	hub         *hub.Hub[[]Document]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		hub:         hub.New[[]Document](),
	}
}

func (s *MemoryStore) Set(ctx context.Context, docPath string, fields map[string]any, opts ...SetOption) error {
	coll, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	data, err := Normalize(fields)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[coll]
	if docs == nil {
		docs = make(map[string]map[string]any)
		s.collections[coll] = docs
	}
	if existing, ok := docs[id]; ok && applySetOptions(opts).merge {
		data = mergeFields(existing, data)
	}
	docs[id] = data
	s.publishLocked(coll)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, docPath string, fields map[string]any) error {
	coll, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	data, err := Normalize(fields)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.collections[coll][id]
	if !ok {
		return ErrNotFound
	}
	s.collections[coll][id] = mergeFields(existing, data)
	s.publishLocked(coll)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, docPath string) error {
	coll, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[coll][id]; !ok {
		return nil
	}
	delete(s.collections[coll], id)
	if len(s.collections[coll]) == 0 {
		delete(s.collections, coll)
	}
	s.publishLocked(coll)
	return nil
}

func (s *MemoryStore) SubscribeCollection(ctx context.Context, collPath string, onNext QueryHandler, onErr ErrorHandler) error {
	coll, err := CleanCollection(collPath)
	if err != nil {
		return err
	}
	return s.subscribe(ctx, coll, func(docs []Document) func() {
		snap := QuerySnapshot{Path: coll, Docs: cloneDocs(docs)}
		return func() { onNext(snap) }
	})
}

func (s *MemoryStore) SubscribeDoc(ctx context.Context, docPath string, onNext DocHandler, onErr ErrorHandler) error {
	coll, id, err := SplitDoc(docPath)
	if err != nil {
		return err
	}
	path := Join(coll, id)

	// project always runs under s.mu, which serializes access to last.
	var last *DocSnapshot
	return s.subscribe(ctx, coll, func(docs []Document) func() {
		snap := DocSnapshot{Path: path, ID: id}
		for _, d := range docs {
			if d.ID == id {
				snap.Exists = true
				snap.Fields = deepCopy(d.Fields)
				break
			}
		}

		if last != nil && last.Exists == snap.Exists && reflect.DeepEqual(last.Fields, snap.Fields) {
			return nil
		}
		last = &snap
		return func() { onNext(snap) }
	})
}

// subscribe registers project under coll. project turns the current collection
// contents into the callback to run, or nil when nothing should be delivered.
func (s *MemoryStore) subscribe(ctx context.Context, coll string, project func([]Document) func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d := newDispatcher()
	conn := &hub.Connection[[]Document]{
		Topic:  coll,
		Writer: &dispatchWriter{d: d, project: project},
	}

	s.mu.Lock()
	initial := s.snapshotLocked(coll)
	if fn := project(initial); fn != nil {
		d.enqueue(fn)
	}
	s.hub.Register(conn)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.hub.Unregister(conn)
		d.stop()
	}()
	return nil
}

func (s *MemoryStore) publishLocked(coll string) {
	if s.hub.Count(coll) == 0 {
		return
	}
	s.hub.Broadcast(coll, s.snapshotLocked(coll))
}

// snapshotLocked copies the collection so subscribers never share maps with the store.
func (s *MemoryStore) snapshotLocked(coll string) []Document {
	docs := make([]Document, 0, len(s.collections[coll]))
	for id, fields := range s.collections[coll] {
		docs = append(docs, Document{ID: id, Fields: deepCopy(fields)})
	}
	sortDocs(docs)
	return docs
}

type dispatchWriter struct {
	d       *dispatcher
	project func([]Document) func()
}

func (w *dispatchWriter) Write(docs []Document) error {
	if fn := w.project(docs); fn != nil {
		w.d.enqueue(fn)
	}
	return nil
}

func (w *dispatchWriter) Close() error {
	w.d.stop()
	return nil
}

func cloneDocs(docs []Document) []Document {
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = Document{ID: d.ID, Fields: deepCopy(d.Fields)}
	}
	return out
}

func deepCopy(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
