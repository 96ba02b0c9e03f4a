package model

import (
	"encoding/json"
	"strconv"
)

// Fields is a document as mirrored: every stored field plus "id". Readers coerce
// scalars, so a number stored where text is expected still reads as text.
// Mirrored Fields are shared between readers and must not be modified.
type Fields map[string]any

func (f Fields) String(key string) string { return asString(f[key]) }
func (f Fields) Float(key string) float64 { return asFloat(f[key]) }
func (f Fields) Int(key string) int64     { return asInt(f[key]) }

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	}
	return 0
}

func asInt(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return int64(asFloat(v))
}

func StudentFromFields(f Fields) Student {
	return Student{
		ID:        f.String("id"),
		StudentID: f.String("student_id"),
		Name:      f.String("name"),
		Classroom: f.String("classroom"),
		Number:    f.String("number"),
		Phone:     f.String("phone"),
		Photo:     f.String("photo"),
		Fields:    f,
	}
}

func AttendanceFromFields(f Fields) AttendanceRecord {
	return AttendanceRecord{
		ID:          f.String("id"),
		StudentID:   f.String("student_id"),
		StudentName: f.String("student_name"),
		Date:        f.String("date"),
		Time:        f.String("time"),
		Status:      f.String("status"),
		Latitude:    f.Float("lat"),
		Longitude:   f.Float("lng"),
		Distance:    f.Float("distance"),
		Note:        f.String("note"),
		Timestamp:   f.Int("timestamp"),
		Fields:      f,
	}
}

func LeaveFromFields(f Fields) LeaveRecord {
	return LeaveRecord{
		ID:          f.String("id"),
		StudentID:   f.String("student_id"),
		StudentName: f.String("student_name"),
		Type:        f.String("type"),
		Reason:      f.String("reason"),
		StartDate:   f.String("start_date"),
		EndDate:     f.String("end_date"),
		Status:      f.String("status"),
		Timestamp:   f.Int("timestamp"),
		Fields:      f,
	}
}
