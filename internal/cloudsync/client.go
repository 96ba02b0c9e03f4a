// Package cloudsync keeps an AppState mirror in step with the remote document store
// and exposes the write actions the UI calls.
//
// Writes never touch the mirror directly: a successful write shows up locally only
// when the store pushes the next snapshot of the affected collection.
package cloudsync

import (
	"context"
	"sync"
	"time"

	"attendance-cloud/internal/docstore"
	"attendance-cloud/internal/model"
	"attendance-cloud/internal/prefs"
	"attendance-cloud/internal/state"
	"github.com/rs/zerolog"
)

// IdentityProvider signs the client in and reports session changes.
type IdentityProvider interface {
	SignInWithCustomToken(ctx context.Context, token string) (*model.Session, error)
	SignInAnonymously(ctx context.Context) (*model.Session, error)
	CurrentUser() *model.Session
	OnAuthStateChanged(fn func(*model.Session))
}

type Config struct {
	AppID            string
	InitialAuthToken string
}

type Client struct {
	identity IdentityProvider
	store    docstore.Store
	state    *state.AppState
	prefs    *prefs.Store
	paths    docstore.Paths
	token    string
	log      zerolog.Logger
	now      func() time.Time

	listenMu      sync.Mutex
	listenCtx     context.Context
	listenersOnce sync.Once
}

type Option func(*Client)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.log = logger }
}

// WithClock replaces the clock used for attendance and leave keys.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func WithPrefs(p *prefs.Store) Option {
	return func(c *Client) { c.prefs = p }
}

func New(cfg Config, identity IdentityProvider, store docstore.Store, st *state.AppState, opts ...Option) *Client {
	appID := cfg.AppID
	if appID == "" {
		appID = "default-app"
	}
	c := &Client{
		identity:  identity,
		store:     store,
		state:     st,
		paths:     docstore.NewPaths(appID),
		token:     cfg.InitialAuthToken,
		log:       zerolog.Nop(),
		now:       time.Now,
		listenCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) State() *state.AppState { return c.state }

func (c *Client) Paths() docstore.Paths { return c.paths }

// Start loads local preferences, hooks the auth-state callback and signs in.
// Subscriptions opened as a result live until ctx is done. Sign-in failures are
// logged, never returned.
func (c *Client) Start(ctx context.Context) {
	c.loadPrefs()

	c.listenMu.Lock()
	c.listenCtx = ctx
	c.listenMu.Unlock()

	c.identity.OnAuthStateChanged(c.onAuthStateChanged)
	c.initAuth(ctx)
}

func (c *Client) loadPrefs() {
	if c.prefs == nil {
		return
	}
	logo, err := c.prefs.CustomLogo()
	if err != nil {
		c.log.Warn().Err(err).Str("file", c.prefs.Path()).Msg("could not read local preferences")
		return
	}
	if logo != "" {
		c.state.SetLocalLogo(logo)
	}
}

func (c *Client) initAuth(ctx context.Context) {
	var err error
	if c.token != "" {
		_, err = c.identity.SignInWithCustomToken(ctx, c.token)
	} else {
		_, err = c.identity.SignInAnonymously(ctx)
	}
	if err == nil {
		return
	}

	c.log.Error().Err(err).Msg("auth failed")
	if c.identity.CurrentUser() != nil {
		return
	}
	if _, err := c.identity.SignInAnonymously(ctx); err != nil {
		c.log.Error().Err(err).Msg("fallback auth failed")
	}
}

func (c *Client) onAuthStateChanged(sess *model.Session) {
	if sess == nil {
		return
	}
	c.log.Info().Str("uid", sess.UID).Bool("anonymous", sess.Anonymous).Msg("connected to cloud")
	c.state.SetUser(sess)
	c.startListeners()
}

func (c *Client) startListeners() {
	c.listenersOnce.Do(func() {
		c.listenMu.Lock()
		ctx := c.listenCtx
		c.listenMu.Unlock()
		c.openSubscriptions(ctx)
	})
}
