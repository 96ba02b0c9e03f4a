package model

import "time"

// Session is the identity the sync layer writes as.
type Session struct {
	UID       string
	Anonymous bool
	Token     string
}

type Student struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Classroom string `json:"classroom,omitempty"`
	Number    string `json:"number,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Photo     string `json:"photo,omitempty"`

	// Fields is the whole mirrored document; empty on records built for writing.
	Fields Fields `json:"-"`
}

type AttendanceRecord struct {
	ID          string  `json:"id"`
	StudentID   string  `json:"student_id"`
	StudentName string  `json:"student_name,omitempty"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Status      string  `json:"status"`
	Latitude    float64 `json:"lat,omitempty"`
	Longitude   float64 `json:"lng,omitempty"`
	Distance    float64 `json:"distance,omitempty"`
	Note        string  `json:"note,omitempty"`
	Timestamp   int64   `json:"timestamp,omitempty"`

	Fields Fields `json:"-"`
}

const (
	AttendanceOnTime = "on-time"
	AttendanceLate   = "late"
)

// AttendanceStatusAt reports whether a check-in at t is late against lateTime
// ("HH:MM" in t's location). An empty or malformed lateTime never marks late.
func AttendanceStatusAt(t time.Time, lateTime string) string {
	cutoff, err := time.Parse("15:04", lateTime)
	if err != nil {
		return AttendanceOnTime
	}
	now := t.Hour()*60 + t.Minute()
	limit := cutoff.Hour()*60 + cutoff.Minute()
	if now > limit {
		return AttendanceLate
	}
	return AttendanceOnTime
}

type LeaveRecord struct {
	ID          string `json:"id"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name,omitempty"`
	Type        string `json:"type"`
	Reason      string `json:"reason"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
	Status      string `json:"status"`
	Timestamp   int64  `json:"timestamp,omitempty"`

	Fields Fields `json:"-"`
}

const (
	LeavePending  = "pending"
	LeaveApproved = "approved"
	LeaveRejected = "rejected"
)
