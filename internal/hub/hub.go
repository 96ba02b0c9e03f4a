package hub

import (
	"sort"
	"sync"
)

type Writer[T any] interface {
	Write(message T) error
	Close() error
}

// Connection is one registration of a Writer under a topic.
type Connection[T any] struct {
	Topic  string
	Writer Writer[T]
}

type Hub[T any] struct {
	mu     sync.RWMutex
	topics map[string]map[*Connection[T]]struct{}
	order  map[*Connection[T]]uint64
	next   uint64
}

func New[T any]() *Hub[T] {
	return &Hub[T]{
		topics: make(map[string]map[*Connection[T]]struct{}),
		order:  make(map[*Connection[T]]uint64),
	}
}

func (h *Hub[T]) Register(conn *Connection[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.topics[conn.Topic] == nil {
		h.topics[conn.Topic] = make(map[*Connection[T]]struct{})
	}
	h.topics[conn.Topic][conn] = struct{}{}
	h.next++
	h.order[conn] = h.next
}

func (h *Hub[T]) Unregister(conn *Connection[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.topics[conn.Topic]
	if set == nil {
		return
	}
	delete(set, conn)
	delete(h.order, conn)
	if len(set) == 0 {
		delete(h.topics, conn.Topic)
	}
}

func (h *Hub[T]) Count(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Broadcast writes message to every connection of topic in registration order.
// Connections whose writer fails are closed and dropped.
func (h *Hub[T]) Broadcast(topic string, message T) {
	h.mu.RLock()
	set := h.topics[topic]
	conns := make([]*Connection[T], 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	sort.Slice(conns, func(i, j int) bool { return h.order[conns[i]] < h.order[conns[j]] })
	h.mu.RUnlock()

	var failed []*Connection[T]
	for _, c := range conns {
		if err := c.Writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Writer.Close()
		h.Unregister(c)
	}
}

// WriterFunc adapts a plain function to a Writer with a no-op Close.
type WriterFunc[T any] func(message T) error

func (f WriterFunc[T]) Write(message T) error { return f(message) }
func (f WriterFunc[T]) Close() error          { return nil }
