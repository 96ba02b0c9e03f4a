package remote

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"attendance-cloud/internal/auth"
	"attendance-cloud/internal/cloudsync"
	"attendance-cloud/internal/docstore"
	"attendance-cloud/internal/model"
	"attendance-cloud/internal/server"
	"attendance-cloud/internal/state"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenConfig = auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"}
	paths       = docstore.NewPaths("default-app")
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r, closeRouter := server.NewRouter(server.Deps{
		Store:       docstore.NewMemoryStore(),
		TokenConfig: tokenConfig,
		StaticRoot:  t.TempDir(),
		Logger:      zerolog.Nop(),
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	t.Cleanup(closeRouter)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(srv.URL)
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com")
	require.Error(t, err)
	_, err = New("://")
	require.Error(t, err)
}

func TestSignIn(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv)
	ctx := context.Background()

	var seen []*model.Session
	c.OnAuthStateChanged(func(s *model.Session) { seen = append(seen, s) })

	sess, err := c.SignInAnonymously(ctx)
	require.NoError(t, err)
	assert.True(t, sess.Anonymous)
	assert.NotEmpty(t, sess.UID)
	require.Len(t, seen, 1)
	assert.Equal(t, sess.UID, c.CurrentUser().UID)

	custom, err := auth.CreateCustomToken("staff-1", tokenConfig)
	require.NoError(t, err)
	sess, err = c.SignInWithCustomToken(ctx, custom)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", sess.UID)
	assert.False(t, sess.Anonymous)

	_, err = c.SignInWithCustomToken(ctx, "garbage")
	require.Error(t, err)
	assert.True(t, errors.Is(err, docstore.ErrPermissionDenied))
	assert.Equal(t, "staff-1", c.CurrentUser().UID)

	c.SignOut()
	assert.Nil(t, c.CurrentUser())
}

func TestWrites_RequireSession(t *testing.T) {
	c := newClient(t, newServer(t))

	err := c.Set(context.Background(), paths.Student("s1"), map[string]any{"name": "Ann"})
	require.Error(t, err)
	assert.Equal(t, "permission-denied", docstore.Code(err))

	err = c.SubscribeCollection(context.Background(), paths.Students(), func(docstore.QuerySnapshot) {}, nil)
	assert.Equal(t, "permission-denied", docstore.Code(err))
}

func TestWritesAndSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newClient(t, newServer(t))
	_, err := c.SignInAnonymously(ctx)
	require.NoError(t, err)

	snaps := make(chan docstore.QuerySnapshot, 16)
	require.NoError(t, c.SubscribeCollection(ctx, paths.Students(), func(s docstore.QuerySnapshot) { snaps <- s }, nil))
	next := func() docstore.QuerySnapshot {
		select {
		case s := <-snaps:
			return s
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for snapshot")
			return docstore.QuerySnapshot{}
		}
	}
	assert.Empty(t, next().Docs)

	require.NoError(t, c.Set(ctx, paths.Student("s1"), map[string]any{"name": "Ann", "classroom": "1/1"}))
	s := next()
	require.Len(t, s.Docs, 1)
	assert.Equal(t, "Ann", s.Docs[0].Fields["name"])

	require.NoError(t, c.Update(ctx, paths.Student("s1"), map[string]any{"name": "Anna"}))
	s = next()
	assert.Equal(t, "Anna", s.Docs[0].Fields["name"])
	assert.Equal(t, "1/1", s.Docs[0].Fields["classroom"])

	err = c.Update(ctx, paths.Student("missing"), map[string]any{"name": "x"})
	assert.True(t, errors.Is(err, docstore.ErrNotFound))

	require.NoError(t, c.Delete(ctx, paths.Student("s1")))
	assert.Empty(t, next().Docs)
}

func TestSubscribeDoc_MergeSet(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newClient(t, newServer(t))
	_, err := c.SignInAnonymously(ctx)
	require.NoError(t, err)

	snaps := make(chan docstore.DocSnapshot, 16)
	require.NoError(t, c.SubscribeDoc(ctx, paths.Config(), func(s docstore.DocSnapshot) { snaps <- s }, nil))
	next := func() docstore.DocSnapshot {
		select {
		case s := <-snaps:
			return s
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for snapshot")
			return docstore.DocSnapshot{}
		}
	}
	assert.False(t, next().Exists)

	require.NoError(t, c.Set(ctx, paths.Config(), map[string]any{"zone": "A", "lateTime": "08:30"}, docstore.Merge()))
	assert.Equal(t, "A", next().Fields["zone"])

	require.NoError(t, c.Set(ctx, paths.Config(), map[string]any{"zone": "B"}, docstore.Merge()))
	s := next()
	assert.Equal(t, "B", s.Fields["zone"])
	assert.Equal(t, "08:30", s.Fields["lateTime"])
}

func TestCancelClosesListener(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	c := newClient(t, newServer(t))
	_, err := c.SignInAnonymously(ctx)
	require.NoError(t, err)

	errs := make(chan error, 1)
	require.NoError(t, c.SubscribeCollection(ctx, paths.Leaves(), func(docstore.QuerySnapshot) {}, func(err error) { errs <- err }))
	cancel()

	select {
	case err := <-errs:
		t.Fatalf("cancelled listener reported %v", err)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSyncClientOverRemote(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newClient(t, newServer(t))
	st := state.New()
	syncer := cloudsync.New(cloudsync.Config{}, c, c, st)
	syncer.Start(ctx)
	require.NotNil(t, st.User())

	require.NoError(t, syncer.AddStudent(ctx, model.Student{StudentID: "s1", Name: "Ann"}))
	require.NoError(t, syncer.SaveConfig(ctx, map[string]any{"zone": "A"}))
	require.NoError(t, syncer.AddLeave(ctx, model.LeaveRecord{StudentID: "s1", Type: "sick", Status: model.LeavePending}))

	require.Eventually(t, func() bool {
		return len(st.Students()) == 1 && len(st.Leaves()) == 1 && st.Settings().Zone() == "A"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Ann", st.Students()[0].Name)
	assert.Equal(t, model.LeavePending, st.Leaves()[0].Status)

	leaveID := st.Leaves()[0].ID
	require.NoError(t, syncer.UpdateLeave(ctx, leaveID, map[string]any{"status": model.LeaveApproved}))
	require.Eventually(t, func() bool {
		leaves := st.Leaves()
		return len(leaves) == 1 && leaves[0].Status == model.LeaveApproved
	}, 2*time.Second, 10*time.Millisecond)
}
