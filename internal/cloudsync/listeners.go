package cloudsync

import (
	"context"

	"attendance-cloud/internal/docstore"
	"attendance-cloud/internal/model"
)

func (c *Client) openSubscriptions(ctx context.Context) {
	c.subscribeConfig(ctx)
	c.subscribeStudents(ctx)
	c.subscribeAttendance(ctx)
	c.subscribeLeaves(ctx)
}

func (c *Client) subscribeConfig(ctx context.Context) {
	path := c.paths.Config()
	err := c.store.SubscribeDoc(ctx, path, func(snap docstore.DocSnapshot) {
		if !snap.Exists {
			return
		}
		c.state.MergeSettings(snap.Fields)
	}, func(err error) {
		c.log.Warn().Err(err).Str("code", docstore.Code(err)).Msg("config listener warning")
	})
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("config listener not started")
	}
}

func (c *Client) subscribeStudents(ctx context.Context) {
	path := c.paths.Students()
	err := c.store.SubscribeCollection(ctx, path, func(snap docstore.QuerySnapshot) {
		c.state.ReplaceStudents(mirrorDocs(snap.Docs, model.StudentFromFields))
	}, func(err error) {
		c.log.Warn().Err(err).Str("code", docstore.Code(err)).Msg("students listener warning")
	})
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("students listener not started")
	}
}

// Attendance and leave subscriptions carry no error handler; a failed
// subscription simply stops updating its mirror.
func (c *Client) subscribeAttendance(ctx context.Context) {
	path := c.paths.Attendance()
	err := c.store.SubscribeCollection(ctx, path, func(snap docstore.QuerySnapshot) {
		c.state.ReplaceAttendance(mirrorDocs(snap.Docs, model.AttendanceFromFields))
	}, nil)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("attendance listener not started")
	}
}

func (c *Client) subscribeLeaves(ctx context.Context) {
	path := c.paths.Leaves()
	err := c.store.SubscribeCollection(ctx, path, func(snap docstore.QuerySnapshot) {
		c.state.ReplaceLeaves(mirrorDocs(snap.Docs, model.LeaveFromFields))
	}, nil)
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("leaves listener not started")
	}
}

// mirrorDocs maps each document to {...fields, id} and reads it with read.
// A stored "id" field is shadowed by the document id.
func mirrorDocs[T any](docs []docstore.Document, read func(model.Fields) T) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		fields := make(model.Fields, len(d.Fields)+1)
		for k, v := range d.Fields {
			fields[k] = v
		}
		fields["id"] = d.ID
		out = append(out, read(fields))
	}
	return out
}
