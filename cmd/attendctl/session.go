package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"attendance-cloud/internal/auth"
	"attendance-cloud/internal/cloudsync"
	"attendance-cloud/internal/config"
	"attendance-cloud/internal/docstore"
	"attendance-cloud/internal/prefs"
	"attendance-cloud/internal/remote"
	"attendance-cloud/internal/state"
	"github.com/docopt/docopt-go"
	"github.com/rs/zerolog"
)

// initialSyncWait bounds how long a command waits for the first snapshots
// before acting on the mirror.
const initialSyncWait = 2 * time.Second

type session struct {
	Sync  *cloudsync.Client
	State *state.AppState

	cancel    context.CancelFunc
	closeFns  []func()
	firstData chan struct{}
}

func (s *session) Close() {
	s.cancel()
	for _, fn := range s.closeFns {
		fn()
	}
}

// waitForData blocks until the first collection snapshot has been mirrored or
// initialSyncWait has passed.
func (s *session) waitForData(ctx context.Context) {
	select {
	case <-s.firstData:
	case <-time.After(initialSyncWait):
	case <-ctx.Done():
	}
}

func secretFrom(opts docopt.Opts) string {
	if secret, _ := opts.String("--secret"); secret != "" {
		return secret
	}
	return os.Getenv("MASTER_SECRET")
}

// openSession builds the identity provider and store selected on the command
// line, starts the sync client and waits until it is signed in.
func openSession(ctx context.Context, opts docopt.Opts, cfg config.ClientConfig, logger zerolog.Logger) (*session, error) {
	var (
		identity cloudsync.IdentityProvider
		store    docstore.Store
		closeFns []func()
	)

	redisAddr, _ := opts.String("--redis")
	databaseURL, _ := opts.String("--database")

	switch {
	case redisAddr != "" || databaseURL != "":
		secret := secretFrom(opts)
		if secret == "" {
			return nil, errors.New("--secret or MASTER_SECRET is required with a direct backend")
		}
		backend := docstore.BackendRedis
		if databaseURL != "" {
			backend = docstore.BackendPostgres
		}
		st, closeStore, err := docstore.Open(ctx, docstore.Options{
			Backend:     backend,
			RedisAddr:   redisAddr,
			DatabaseURL: databaseURL,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		store = st
		closeFns = append(closeFns, closeStore)
		identity = auth.NewLocalProvider(auth.DefaultTokenConfig(secret))

	default:
		serverURL, _ := opts.String("--server")
		if serverURL == "" {
			serverURL = cfg.App.ServerURL
		}
		if serverURL == "" {
			return nil, errors.New("no server: pass --server or set serverUrl in APP_CONFIG")
		}
		client, err := remote.New(serverURL, remote.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		identity = client
		store = client
	}

	appState := state.New()
	firstData := make(chan struct{})
	var firstOnce sync.Once
	cancelFirst := appState.Subscribe(state.TopicDataUpdated, func(state.Event) {
		firstOnce.Do(func() { close(firstData) })
	})
	closeFns = append(closeFns, cancelFirst)

	syncCtx, cancel := context.WithCancel(ctx)
	syncClient := cloudsync.New(
		cloudsync.Config{AppID: cfg.AppID, InitialAuthToken: cfg.InitialAuthToken},
		identity,
		store,
		appState,
		cloudsync.WithLogger(logger),
		cloudsync.WithPrefs(prefs.New(cfg.PrefsFile)),
	)
	syncClient.Start(syncCtx)

	sess := &session{Sync: syncClient, State: appState, cancel: cancel, closeFns: closeFns, firstData: firstData}
	if appState.User() == nil {
		sess.Close()
		return nil, fmt.Errorf("could not sign in to %s", cfg.AppID)
	}
	return sess, nil
}
