package state

import "attendance-cloud/internal/model"

const (
	TopicSettingsUpdated = "settings-updated"
	TopicDataUpdated     = "data-updated"
)

type Event interface {
	Topic() string
}

type SettingsUpdated struct {
	Settings model.Settings
}

type StudentsUpdated struct {
	Students []model.Student
}

type AttendanceUpdated struct {
	Records []model.AttendanceRecord
}

type LeavesUpdated struct {
	Records []model.LeaveRecord
}

func (SettingsUpdated) Topic() string   { return TopicSettingsUpdated }
func (StudentsUpdated) Topic() string   { return TopicDataUpdated }
func (AttendanceUpdated) Topic() string { return TopicDataUpdated }
func (LeavesUpdated) Topic() string     { return TopicDataUpdated }
