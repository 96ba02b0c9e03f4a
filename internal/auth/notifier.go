package auth

import (
	"sync"

	"attendance-cloud/internal/model"
)

// StateNotifier holds the current session and tells listeners when it changes.
// A listener added while a session exists is called with it right away.
type StateNotifier struct {
	mu        sync.RWMutex
	current   *model.Session
	listeners []func(*model.Session)
}

func (n *StateNotifier) CurrentUser() *model.Session {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.current == nil {
		return nil
	}
	s := *n.current
	return &s
}

func (n *StateNotifier) OnAuthStateChanged(fn func(*model.Session)) {
	n.mu.Lock()
	n.listeners = append(n.listeners, fn)
	current := n.current
	n.mu.Unlock()

	if current != nil {
		s := *current
		fn(&s)
	}
}

// SetSession replaces the current session (nil signs out) and notifies listeners.
func (n *StateNotifier) SetSession(sess *model.Session) {
	n.mu.Lock()
	if sess == nil {
		n.current = nil
	} else {
		s := *sess
		n.current = &s
	}
	listeners := append([]func(*model.Session){}, n.listeners...)
	n.mu.Unlock()

	for _, fn := range listeners {
		if sess == nil {
			fn(nil)
			continue
		}
		s := *sess
		fn(&s)
	}
}
