// Package state holds the client-side mirror of the remote store.
//
// AppState is the single container the UI reads from. It only changes through
// its update methods, and every change is announced to observers registered
// with Subscribe.
package state

import (
	"sync"

	"attendance-cloud/internal/hub"
	"attendance-cloud/internal/model"
)

type Observer func(Event)

type AppState struct {
	mu         sync.RWMutex
	students   []model.Student
	attendance []model.AttendanceRecord
	leaves     []model.LeaveRecord
	settings   model.Settings
	user       *model.Session
	localLogo  string

	observers *hub.Hub[Event]
}

func New() *AppState {
	return &AppState{
		students:   []model.Student{},
		attendance: []model.AttendanceRecord{},
		leaves:     []model.LeaveRecord{},
		settings:   model.DefaultSettings(),
		observers:  hub.New[Event](),
	}
}

// Subscribe registers fn for events published under topic and returns a
// function that removes it again.
func (s *AppState) Subscribe(topic string, fn Observer) (cancel func()) {
	conn := &hub.Connection[Event]{
		Topic:  topic,
		Writer: hub.WriterFunc[Event](func(e Event) error {
			fn(e)
			return nil
		}),
	}
	s.observers.Register(conn)
	return func() { s.observers.Unregister(conn) }
}

func (s *AppState) publish(e Event) {
	s.observers.Broadcast(e.Topic(), e)
}

func (s *AppState) Students() []model.Student {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Student(nil), s.students...)
}

func (s *AppState) Attendance() []model.AttendanceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.AttendanceRecord(nil), s.attendance...)
}

func (s *AppState) Leaves() []model.LeaveRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.LeaveRecord(nil), s.leaves...)
}

func (s *AppState) Settings() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

func (s *AppState) User() *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *AppState) LocalLogo() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localLogo
}

// MergeSettings overlays fields on the current settings and publishes SettingsUpdated.
func (s *AppState) MergeSettings(fields map[string]any) {
	s.mu.Lock()
	s.settings = s.settings.Merge(fields)
	snapshot := s.settings.Clone()
	s.mu.Unlock()

	s.publish(SettingsUpdated{Settings: snapshot})
}

func (s *AppState) ReplaceStudents(students []model.Student) {
	s.mu.Lock()
	s.students = append([]model.Student{}, students...)
	s.mu.Unlock()

	s.publish(StudentsUpdated{Students: append([]model.Student{}, students...)})
}

func (s *AppState) ReplaceAttendance(records []model.AttendanceRecord) {
	s.mu.Lock()
	s.attendance = append([]model.AttendanceRecord{}, records...)
	s.mu.Unlock()

	s.publish(AttendanceUpdated{Records: append([]model.AttendanceRecord{}, records...)})
}

func (s *AppState) ReplaceLeaves(records []model.LeaveRecord) {
	s.mu.Lock()
	s.leaves = append([]model.LeaveRecord{}, records...)
	s.mu.Unlock()

	s.publish(LeavesUpdated{Records: append([]model.LeaveRecord{}, records...)})
}

func (s *AppState) SetUser(user *model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil {
		s.user = nil
		return
	}
	u := *user
	s.user = &u
}

func (s *AppState) SetLocalLogo(logo string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localLogo = logo
}
