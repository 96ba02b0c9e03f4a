package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"attendance-cloud/internal/auth"
	"attendance-cloud/internal/config"
	"attendance-cloud/internal/model"
	"attendance-cloud/internal/prefs"
	"attendance-cloud/internal/state"
	"github.com/docopt/docopt-go"
)

func str(opts docopt.Opts, key string) string {
	v, _ := opts.String(key)
	return v
}

// parseAssignments turns key=value arguments into fields. Values that parse as
// JSON keep their JSON type; anything else is a string.
func parseAssignments(args []string) (map[string]any, error) {
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		fields[key] = v
	}
	return fields, nil
}

func assignments(opts docopt.Opts, key string) (map[string]any, error) {
	args, _ := opts[key].([]string)
	return parseAssignments(args)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func watch(ctx context.Context, sess *session) error {
	events := make(chan state.Event, 64)
	forward := func(e state.Event) {
		select {
		case events <- e:
		default:
		}
	}
	defer sess.State.Subscribe(state.TopicSettingsUpdated, forward)()
	defer sess.State.Subscribe(state.TopicDataUpdated, forward)()

	if err := printJSON(snapshotView(sess.State)); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-events:
			if err := printJSON(snapshotView(sess.State)); err != nil {
				return err
			}
		}
	}
}

type view struct {
	User       string         `json:"user,omitempty"`
	Settings   model.Settings `json:"settings"`
	LocalLogo  string         `json:"localLogo,omitempty"`
	Students   []model.Fields `json:"students"`
	Attendance []model.Fields `json:"attendance"`
	Leaves     []model.Fields `json:"leaves"`
}

func snapshotView(st *state.AppState) view {
	v := view{
		Settings:   st.Settings(),
		LocalLogo:  st.LocalLogo(),
		Students:   []model.Fields{},
		Attendance: []model.Fields{},
		Leaves:     []model.Fields{},
	}
	for _, s := range st.Students() {
		v.Students = append(v.Students, s.Fields)
	}
	for _, r := range st.Attendance() {
		v.Attendance = append(v.Attendance, r.Fields)
	}
	for _, r := range st.Leaves() {
		v.Leaves = append(v.Leaves, r.Fields)
	}
	if u := st.User(); u != nil {
		v.User = u.UID
	}
	return v
}

func addStudent(ctx context.Context, opts docopt.Opts, sess *session) error {
	return sess.Sync.AddStudent(ctx, model.Student{
		StudentID: str(opts, "<student_id>"),
		Name:      str(opts, "<name>"),
		Classroom: str(opts, "--classroom"),
		Number:    str(opts, "--number"),
		Phone:     str(opts, "--phone"),
	})
}

func updateStudent(ctx context.Context, opts docopt.Opts, sess *session) error {
	fields, err := assignments(opts, "<field=value>")
	if err != nil {
		return err
	}
	return sess.Sync.UpdateStudent(ctx, str(opts, "<student_id>"), fields)
}

func deleteStudent(ctx context.Context, opts docopt.Opts, sess *session) error {
	return sess.Sync.DeleteStudent(ctx, str(opts, "<student_id>"))
}

// studentName fills a record's name from --name or, failing that, the mirrored roster.
func studentName(ctx context.Context, opts docopt.Opts, sess *session, studentID string) string {
	if name := str(opts, "--name"); name != "" {
		return name
	}
	sess.waitForData(ctx)
	for _, s := range sess.State.Students() {
		if s.StudentID == studentID || s.ID == studentID {
			return s.Name
		}
	}
	return ""
}

func checkIn(ctx context.Context, opts docopt.Opts, sess *session) error {
	studentID := str(opts, "<student_id>")
	lat, err := strconv.ParseFloat(str(opts, "--lat"), 64)
	if err != nil {
		return fmt.Errorf("--lat: %w", err)
	}
	lng, err := strconv.ParseFloat(str(opts, "--lng"), 64)
	if err != nil {
		return fmt.Errorf("--lng: %w", err)
	}

	name := studentName(ctx, opts, sess, studentID)
	now := time.Now()
	status := str(opts, "--status")
	if status == "" {
		status = model.AttendanceStatusAt(now, sess.State.Settings().LateTime())
	}

	return sess.Sync.AddAttendance(ctx, model.AttendanceRecord{
		StudentID:   studentID,
		StudentName: name,
		Date:        now.Format("2006-01-02"),
		Time:        now.Format("15:04"),
		Status:      status,
		Latitude:    lat,
		Longitude:   lng,
		Note:        str(opts, "--note"),
		Timestamp:   now.UnixMilli(),
	})
}

func requestLeave(ctx context.Context, opts docopt.Opts, sess *session) error {
	studentID := str(opts, "<student_id>")
	start := str(opts, "--start")
	end := str(opts, "--end")
	if end == "" {
		end = start
	}
	return sess.Sync.AddLeave(ctx, model.LeaveRecord{
		StudentID:   studentID,
		StudentName: studentName(ctx, opts, sess, studentID),
		Type:        str(opts, "<type>"),
		Reason:      str(opts, "<reason>"),
		StartDate:   start,
		EndDate:     end,
		Status:      model.LeavePending,
		Timestamp:   time.Now().UnixMilli(),
	})
}

func updateLeave(ctx context.Context, opts docopt.Opts, sess *session) error {
	status := str(opts, "<status>")
	switch status {
	case model.LeavePending, model.LeaveApproved, model.LeaveRejected:
	default:
		return fmt.Errorf("unknown leave status %q", status)
	}
	return sess.Sync.UpdateLeave(ctx, str(opts, "<leave_id>"), map[string]any{"status": status})
}

func setConfig(ctx context.Context, opts docopt.Opts, sess *session) error {
	fields, err := assignments(opts, "<key=value>")
	if err != nil {
		return err
	}
	return sess.Sync.SaveConfig(ctx, fields)
}

func setLogo(opts docopt.Opts, cfg config.ClientConfig) error {
	p := prefs.New(cfg.PrefsFile)
	if err := p.SetCustomLogo(str(opts, "<logo>")); err != nil {
		return err
	}
	fmt.Println(p.Path())
	return nil
}

func mintToken(opts docopt.Opts) error {
	secret := secretFrom(opts)
	if secret == "" {
		return fmt.Errorf("--secret or MASTER_SECRET is required")
	}
	token, err := auth.CreateCustomToken(str(opts, "<uid>"), auth.DefaultTokenConfig(secret))
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
