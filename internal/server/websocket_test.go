package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"attendance-cloud/internal/auth"
	"attendance-cloud/internal/docstore"
	"attendance-cloud/internal/handler"
	"github.com/gorilla/websocket"
)

func dialListen(t *testing.T, srv *httptest.Server, token, kind, path string) *websocket.Conn {
	t.Helper()
	q := url.Values{"token": {token}, "kind": {kind}, "path": {path}}
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/listen?" + q.Encode()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) handler.ListenFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f handler.ListenFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return f
}

func TestListen_StreamsCollectionSnapshots(t *testing.T) {
	store := docstore.NewMemoryStore()
	srv := httptest.NewServer(newTestRouter(t, store))
	defer srv.Close()

	tok, err := auth.CreateSessionToken("user-1", true, testTokenConfig)
	if err != nil {
		t.Fatalf("CreateSessionToken: %v", err)
	}
	conn := dialListen(t, srv, tok, handler.KindCollection, "artifacts/app/public/data/students")
	defer conn.Close()

	first := readFrame(t, conn)
	if first.Type != handler.FrameSnapshot || len(first.Docs) != 0 {
		t.Fatalf("unexpected initial frame %+v", first)
	}

	w := do(srv.Config.Handler, http.MethodPut, "/v1/docs/artifacts/app/public/data/students/s1", tok, map[string]any{"name": "Ann"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("set: expected 204, got %d", w.Code)
	}

	next := readFrame(t, conn)
	if len(next.Docs) != 1 || next.Docs[0].ID != "s1" || next.Docs[0].Fields["name"] != "Ann" {
		t.Fatalf("unexpected snapshot %+v", next)
	}
}

func TestListen_DocSnapshotAndPing(t *testing.T) {
	store := docstore.NewMemoryStore()
	srv := httptest.NewServer(newTestRouter(t, store))
	defer srv.Close()

	tok, err := auth.CreateSessionToken("user-1", false, testTokenConfig)
	if err != nil {
		t.Fatalf("CreateSessionToken: %v", err)
	}
	conn := dialListen(t, srv, tok, handler.KindDoc, "artifacts/app/public/data/config/main")
	defer conn.Close()

	if f := readFrame(t, conn); f.Type != handler.FrameSnapshot || f.Exists {
		t.Fatalf("expected missing-document snapshot, got %+v", f)
	}

	if err := conn.WriteJSON(map[string]any{"type": "ping"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if f := readFrame(t, conn); f.Type != handler.FramePong {
		t.Fatalf("expected pong, got %+v", f)
	}
}

func TestListen_Rejects(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, docstore.NewMemoryStore()))
	defer srv.Close()

	tok, err := auth.CreateSessionToken("user-1", true, testTokenConfig)
	if err != nil {
		t.Fatalf("CreateSessionToken: %v", err)
	}

	cases := []struct {
		name  string
		token string
		kind  string
		path  string
		code  int
	}{
		{"no token", "", handler.KindCollection, "a/b/c", http.StatusUnauthorized},
		{"bad kind", tok, "query", "a/b/c", http.StatusBadRequest},
		{"doc path as collection", tok, handler.KindCollection, "a/b", http.StatusBadRequest},
	}
	for _, tc := range cases {
		q := url.Values{"token": {tc.token}, "kind": {tc.kind}, "path": {tc.path}}
		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/listen?" + q.Encode()
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err == nil {
			t.Fatalf("%s: expected dial failure", tc.name)
		}
		if resp == nil || resp.StatusCode != tc.code {
			t.Fatalf("%s: expected %d, got %+v", tc.name, tc.code, resp)
		}
	}
}
