package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"attendance-cloud/internal/auth"
	"attendance-cloud/internal/docstore"
	"attendance-cloud/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	KindDoc        = "doc"
	KindCollection = "collection"

	FrameSnapshot = "snapshot"
	FrameError    = "error"
	FramePong     = "pong"
)

// ListenFrame is one server-to-client message on a listen socket.
type ListenFrame struct {
	Type   string         `json:"type"`
	Kind   string         `json:"kind,omitempty"`
	Path   string         `json:"path,omitempty"`
	ID     string         `json:"id,omitempty"`
	Exists bool           `json:"exists,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
	Docs   []ListenDoc    `json:"docs,omitempty"`
	Code   string         `json:"code,omitempty"`
	Error  string         `json:"error,omitempty"`
}

type ListenDoc struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type clientMessage struct {
	Type string `json:"type"`
}

// ListenHandler streams store snapshots of one document or collection over a
// websocket until either side closes it.
type ListenHandler struct {
	Store       docstore.Store
	TokenConfig auth.TokenConfig
	Logger      zerolog.Logger
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	pongWait   = 60 * time.Second
	writeWait  = 10 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// wsWriter serializes writes; snapshot callbacks, pong replies and pings all
// write from different goroutines.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(frame ListenFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsWriter) Ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h *ListenHandler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = middleware.BearerToken(c)
	}
	claims, err := auth.VerifySessionToken(token, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token", "code": "permission-denied"})
		return
	}

	kind := c.DefaultQuery("kind", KindCollection)
	path := c.Query("path")
	switch kind {
	case KindDoc:
		_, _, err = docstore.SplitDoc(path)
	case KindCollection:
		_, err = docstore.CleanCollection(path)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown listen kind", "code": "invalid-argument"})
		return
	}
	if err != nil {
		writeStoreError(c, err)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	w := &wsWriter{conn: ws}
	log := h.Logger.With().
		Str("uid", claims.UserID).
		Str("path", path).
		Str("request_id", middleware.RequestIDFromContext(c)).
		Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		_ = w.Close()
	}()

	sendErr := func(err error) {
		log.Warn().Err(err).Str("code", docstore.Code(err)).Msg("listener failed")
		_ = w.Write(ListenFrame{Type: FrameError, Code: docstore.Code(err), Error: err.Error()})
		_ = w.Close()
	}

	if kind == KindDoc {
		err = h.Store.SubscribeDoc(ctx, path, func(s docstore.DocSnapshot) {
			_ = w.Write(ListenFrame{Type: FrameSnapshot, Kind: KindDoc, Path: s.Path, ID: s.ID, Exists: s.Exists, Fields: s.Fields})
		}, sendErr)
	} else {
		err = h.Store.SubscribeCollection(ctx, path, func(s docstore.QuerySnapshot) {
			docs := make([]ListenDoc, len(s.Docs))
			for i, d := range s.Docs {
				docs[i] = ListenDoc{ID: d.ID, Fields: d.Fields}
			}
			_ = w.Write(ListenFrame{Type: FrameSnapshot, Kind: KindCollection, Path: s.Path, Docs: docs})
		}, sendErr)
	}
	if err != nil {
		sendErr(err)
		return
	}
	log.Debug().Str("kind", kind).Msg("listener opened")

	ws.SetReadLimit(64 * 1024)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := w.Ping(); err != nil {
					_ = w.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("listener closed")
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			_ = w.Write(ListenFrame{Type: FramePong})
		}
	}
}
