package cloudsync

import (
	"context"
	"fmt"
	"time"

	"attendance-cloud/internal/docstore"
	"attendance-cloud/internal/model"
)

// Every action below returns nil without calling the store when no session is
// active. Otherwise it issues exactly one store call and returns its error.

func (c *Client) signedIn() bool {
	return c.identity.CurrentUser() != nil
}

// RecordKey is the document id of an attendance or leave record. Two records of
// the same student created in the same millisecond get the same key.
func RecordKey(studentID string, at time.Time) string {
	return fmt.Sprintf("%s_%d", studentID, at.UnixMilli())
}

func (c *Client) SaveConfig(ctx context.Context, fields map[string]any) error {
	if !c.signedIn() {
		return nil
	}
	return wrap("save config", c.store.Set(ctx, c.paths.Config(), fields, docstore.Merge()))
}

func (c *Client) AddStudent(ctx context.Context, student model.Student) error {
	if !c.signedIn() {
		return nil
	}
	fields, err := recordFields(student)
	if err != nil {
		return wrap("add student", err)
	}
	return wrap("add student", c.store.Set(ctx, c.paths.Student(student.StudentID), fields))
}

func (c *Client) UpdateStudent(ctx context.Context, studentID string, fields map[string]any) error {
	if !c.signedIn() {
		return nil
	}
	return wrap("update student", c.store.Update(ctx, c.paths.Student(studentID), fields))
}

func (c *Client) DeleteStudent(ctx context.Context, studentID string) error {
	if !c.signedIn() {
		return nil
	}
	return wrap("delete student", c.store.Delete(ctx, c.paths.Student(studentID)))
}

func (c *Client) AddAttendance(ctx context.Context, rec model.AttendanceRecord) error {
	if !c.signedIn() {
		return nil
	}
	fields, err := recordFields(rec)
	if err != nil {
		return wrap("add attendance", err)
	}
	path := c.paths.Doc(docstore.CollectionAttendance, RecordKey(rec.StudentID, c.now()))
	return wrap("add attendance", c.store.Set(ctx, path, fields))
}

func (c *Client) AddLeave(ctx context.Context, rec model.LeaveRecord) error {
	if !c.signedIn() {
		return nil
	}
	fields, err := recordFields(rec)
	if err != nil {
		return wrap("add leave", err)
	}
	path := c.paths.Doc(docstore.CollectionLeaves, RecordKey(rec.StudentID, c.now()))
	return wrap("add leave", c.store.Set(ctx, path, fields))
}

func (c *Client) UpdateLeave(ctx context.Context, docID string, fields map[string]any) error {
	if !c.signedIn() {
		return nil
	}
	return wrap("update leave", c.store.Update(ctx, c.paths.Doc(docstore.CollectionLeaves, docID), fields))
}

// ClearAllData replaces the config document with an empty one. Students,
// attendance and leaves are left as they are.
func (c *Client) ClearAllData(ctx context.Context) error {
	if !c.signedIn() {
		return nil
	}
	return wrap("clear config", c.store.Set(ctx, c.paths.Config(), map[string]any{}))
}

// recordFields encodes v without its "id", which is the document key and not a field.
func recordFields(v any) (map[string]any, error) {
	fields, err := docstore.ToFields(v)
	if err != nil {
		return nil, err
	}
	delete(fields, "id")
	return fields, nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
