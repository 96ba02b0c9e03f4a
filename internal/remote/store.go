package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"attendance-cloud/internal/docstore"
	"attendance-cloud/internal/handler"
	"github.com/gorilla/websocket"
)

func (c *Client) Set(ctx context.Context, docPath string, fields map[string]any, opts ...docstore.SetOption) error {
	u := c.docURL(docPath)
	if docstore.IsMerge(opts...) {
		u.RawQuery = url.Values{"merge": {"true"}}.Encode()
	}
	return c.write(ctx, http.MethodPut, u, fields)
}

func (c *Client) Update(ctx context.Context, docPath string, fields map[string]any) error {
	return c.write(ctx, http.MethodPatch, c.docURL(docPath), fields)
}

func (c *Client) Delete(ctx context.Context, docPath string) error {
	return c.write(ctx, http.MethodDelete, c.docURL(docPath), nil)
}

func (c *Client) docURL(docPath string) *url.URL {
	elem := append([]string{"v1", "docs"}, strings.Split(strings.Trim(docPath, "/"), "/")...)
	return c.endpoint(elem...)
}

func (c *Client) write(ctx context.Context, method string, u *url.URL, fields map[string]any) error {
	token, err := c.token()
	if err != nil {
		return err
	}
	var body any
	if method != http.MethodDelete {
		if fields == nil {
			fields = map[string]any{}
		}
		body = fields
	}
	resp, err := c.do(ctx, method, u, token, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	return nil
}

func (c *Client) SubscribeDoc(ctx context.Context, docPath string, onNext docstore.DocHandler, onErr docstore.ErrorHandler) error {
	if _, _, err := docstore.SplitDoc(docPath); err != nil {
		return err
	}
	return c.listen(ctx, handler.KindDoc, docPath, func(f handler.ListenFrame) {
		onNext(docstore.DocSnapshot{Path: f.Path, ID: f.ID, Exists: f.Exists, Fields: f.Fields})
	}, onErr)
}

func (c *Client) SubscribeCollection(ctx context.Context, collPath string, onNext docstore.QueryHandler, onErr docstore.ErrorHandler) error {
	if _, err := docstore.CleanCollection(collPath); err != nil {
		return err
	}
	return c.listen(ctx, handler.KindCollection, collPath, func(f handler.ListenFrame) {
		docs := make([]docstore.Document, len(f.Docs))
		for i, d := range f.Docs {
			docs[i] = docstore.Document{ID: d.ID, Fields: d.Fields}
		}
		onNext(docstore.QuerySnapshot{Path: f.Path, Docs: docs})
	}, onErr)
}

// listen opens the listen socket and delivers its frames on one goroutine, so
// snapshots reach the handler in the order the server sent them.
func (c *Client) listen(ctx context.Context, kind, path string, deliver func(handler.ListenFrame), onErr docstore.ErrorHandler) error {
	conn, err := c.dialListen(ctx, kind, path)
	if err != nil {
		return err
	}
	go c.stream(ctx, conn, kind, path, deliver, onErr)
	return nil
}

func (c *Client) dialListen(ctx context.Context, kind, path string) (*websocket.Conn, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}

	u := c.endpoint("v1", "listen")
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.RawQuery = url.Values{"kind": {kind}, "path": {path}, "token": {token}}.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, responseError(resp)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
	return conn, nil
}

// stream runs a subscription until ctx ends. A dropped socket or an unavailable
// backend is redialed; any other failure ends the subscription through onErr.
func (c *Client) stream(ctx context.Context, conn *websocket.Conn, kind, path string, deliver func(handler.ListenFrame), onErr docstore.ErrorHandler) {
	for {
		err := readFrames(ctx, conn, deliver)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, docstore.ErrUnavailable) {
			c.log.Debug().Err(err).Str("path", path).Msg("listener disconnected")
			conn, err = c.redial(ctx, kind, path)
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Debug().Err(err).Str("path", path).Str("code", docstore.Code(err)).Msg("listener stopped")
			if onErr != nil {
				onErr(err)
			}
			return
		}
	}
}

// redial reopens a listen socket with backoff. A rejected token triggers one
// fresh sign-in per outage.
func (c *Client) redial(ctx context.Context, kind, path string) (*websocket.Conn, error) {
	var (
		lastErr  error = docstore.ErrUnavailable
		resigned bool
	)
	for attempt := 0; ; attempt++ {
		delay, ok := c.retry.NextDelay(attempt, lastErr)
		if !ok {
			return nil, lastErr
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		conn, err := c.dialListen(ctx, kind, path)
		if err == nil {
			c.log.Debug().Str("path", path).Int("attempt", attempt).Msg("listener reconnected")
			return conn, nil
		}
		lastErr = err
		if errors.Is(err, docstore.ErrPermissionDenied) && !resigned {
			if err := c.signInAgain(ctx); err != nil {
				lastErr = err
			} else {
				resigned = true
				continue
			}
		}
		if !errors.Is(lastErr, docstore.ErrUnavailable) {
			return nil, lastErr
		}
	}
}

// readFrames delivers snapshots from conn until it fails or sends an error
// frame. conn is closed on return.
func readFrames(ctx context.Context, conn *websocket.Conn, deliver func(handler.ListenFrame)) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = conn.Close()
	}()

	for {
		var f handler.ListenFrame
		if err := conn.ReadJSON(&f); err != nil {
			return fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		switch f.Type {
		case handler.FrameSnapshot:
			deliver(f)
		case handler.FrameError:
			sentinel := docstore.ErrorForCode(f.Code)
			if sentinel == nil {
				sentinel = docstore.ErrUnavailable
			}
			return fmt.Errorf("%w: %s", sentinel, f.Error)
		}
	}
}

var _ docstore.Store = (*Client)(nil)
