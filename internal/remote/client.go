// Package remote talks to cmd/server. Client is both the identity provider and
// the document store of a sync client running away from the backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"attendance-cloud/internal/auth"
	"attendance-cloud/internal/docstore"
	"attendance-cloud/internal/handler"
	"attendance-cloud/internal/model"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type Client struct {
	auth.StateNotifier

	base   *url.URL
	http   *http.Client
	dialer *websocket.Dialer
	retry  Retryer
	log    zerolog.Logger

	mu     sync.Mutex
	resign func(context.Context) error
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.log = logger }
}

// WithRetryer sets the redial policy of dropped listeners.
func WithRetryer(r Retryer) Option {
	return func(c *Client) { c.retry = r }
}

func New(serverURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", serverURL)
	}
	c := &Client{
		base:   base,
		http:   &http.Client{Timeout: 30 * time.Second},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
		retry:  NewExponentialBackoff(),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(elem ...string) *url.URL {
	return c.base.JoinPath(elem...)
}

func (c *Client) SignInAnonymously(ctx context.Context) (*model.Session, error) {
	return c.signIn(ctx, "anonymous", nil)
}

func (c *Client) SignInWithCustomToken(ctx context.Context, token string) (*model.Session, error) {
	return c.signIn(ctx, "token", map[string]string{"token": token})
}

func (c *Client) SignOut() {
	c.mu.Lock()
	c.resign = nil
	c.mu.Unlock()
	c.SetSession(nil)
}

func (c *Client) signIn(ctx context.Context, endpoint string, body any) (*model.Session, error) {
	resp, err := c.do(ctx, http.MethodPost, c.endpoint("v1", "auth", endpoint), "", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}

	var sr handler.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess := &model.Session{UID: sr.UID, Anonymous: sr.Anonymous, Token: sr.Token}
	c.mu.Lock()
	c.resign = func(ctx context.Context) error {
		_, err := c.signIn(ctx, endpoint, body)
		return err
	}
	c.mu.Unlock()
	c.SetSession(sess)
	return sess, nil
}

// signInAgain repeats the last successful sign-in to refresh a rejected token.
func (c *Client) signInAgain(ctx context.Context) error {
	c.mu.Lock()
	resign := c.resign
	c.mu.Unlock()
	if resign == nil {
		return fmt.Errorf("%w: not signed in", docstore.ErrPermissionDenied)
	}
	return resign(ctx)
}

func (c *Client) token() (string, error) {
	sess := c.CurrentUser()
	if sess == nil || sess.Token == "" {
		return "", fmt.Errorf("%w: not signed in", docstore.ErrPermissionDenied)
	}
	return sess.Token, nil
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, token string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Join(docstore.ErrInvalidArgument, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
	return resp, nil
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// responseError turns a non-success response into a docstore sentinel error,
// preferring the code the server sent over the status.
func responseError(resp *http.Response) error {
	var body errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body)
	if body.Error == "" {
		body.Error = resp.Status
	}
	if sentinel := docstore.ErrorForCode(body.Code); sentinel != nil {
		return fmt.Errorf("%w: %s", sentinel, body.Error)
	}
	return fmt.Errorf("%w: %s", statusError(resp.StatusCode), body.Error)
}

func statusError(status int) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return docstore.ErrPermissionDenied
	case status == http.StatusNotFound:
		return docstore.ErrNotFound
	case status == http.StatusBadRequest:
		return docstore.ErrInvalidArgument
	default:
		return docstore.ErrUnavailable
	}
}
