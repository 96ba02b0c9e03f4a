package hub

import "testing"

type testWriter struct {
	writes []string
	fail   bool
	closed bool
}

func (w *testWriter) Write(message string) error {
	w.writes = append(w.writes, message)
	if w.fail {
		return errTest
	}
	return nil
}

func (w *testWriter) Close() error {
	w.closed = true
	return nil
}

var errTest = &testErr{}

type testErr struct{}

func (*testErr) Error() string { return "test" }

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	h := New[string]()
	w1 := &testWriter{}
	c1 := &Connection[string]{Topic: "students", Writer: w1}

	h.Register(c1)
	h.Broadcast("students", "x")
	if len(w1.writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(w1.writes))
	}

	h.Broadcast("leaves", "y")
	if len(w1.writes) != 1 {
		t.Fatalf("expected other topics to be ignored, got %d writes", len(w1.writes))
	}

	h.Unregister(c1)
	h.Broadcast("students", "x")
	if len(w1.writes) != 1 {
		t.Fatalf("expected no more writes, got %d", len(w1.writes))
	}
	if h.Count("students") != 0 {
		t.Fatalf("expected empty topic")
	}
}

func TestHub_RemovesFailedConnections(t *testing.T) {
	h := New[string]()
	w1 := &testWriter{fail: true}
	c1 := &Connection[string]{Topic: "u", Writer: w1}
	h.Register(c1)

	h.Broadcast("u", "x")
	h.Broadcast("u", "x")
	if len(w1.writes) != 1 {
		t.Fatalf("expected only 1 write before removal, got %d", len(w1.writes))
	}
	if !w1.closed {
		t.Fatalf("expected failed writer to be closed")
	}
}

func TestHub_BroadcastFollowsRegistrationOrder(t *testing.T) {
	h := New[int]()
	var seen []string
	for _, name := range []string{"a", "b", "c", "d"} {
		name := name
		h.Register(&Connection[int]{Topic: "t", Writer: WriterFunc[int](func(int) error {
			seen = append(seen, name)
			return nil
		})})
	}

	h.Broadcast("t", 1)
	if len(seen) != 4 || seen[0] != "a" || seen[1] != "b" || seen[2] != "c" || seen[3] != "d" {
		t.Fatalf("unexpected delivery order %v", seen)
	}
}
