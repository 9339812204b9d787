package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/polaco8525/postit/internal/config"
	"github.com/polaco8525/postit/internal/drivestore"
	"github.com/polaco8525/postit/internal/googleauth"
	"github.com/polaco8525/postit/internal/store"
	"github.com/polaco8525/postit/internal/syncer"
)

// app bundles the wiring every command needs: config, local store, auth
// provider, and the sync orchestrator.
type app struct {
	cfg   config.Config
	store *store.Store
	auth  *googleauth.Provider
	sync  *syncer.Syncer
	log   *zap.Logger
}

func newApp(log *zap.Logger) (*app, error) {
	return newAppWith(log, nil)
}

// newAppWith additionally registers a state listener; watch mode uses it to
// report status transitions as they happen.
func newAppWith(log *zap.Logger, onState func(syncer.State)) (*app, error) {
	if log == nil {
		log = zap.NewNop()
	}

	cfg, err := config.ReadConfig()
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	st, err := store.OpenDefault(log)
	if err != nil {
		return nil, fmt.Errorf("open note store: %w", err)
	}

	provider, err := googleauth.New()
	if err != nil {
		st.Close()
		return nil, err
	}

	s := syncer.New(syncer.Options{
		Store:           st,
		Auth:            provider,
		Remote:          driveRemote(provider),
		Logger:          log,
		DebounceWindow:  cfg.Debounce(),
		AutoSyncDefault: cfg.AutoSync,
		OnState:         onState,
	})

	return &app{cfg: cfg, store: st, auth: provider, sync: s, log: log}, nil
}

func (a *app) Close() {
	a.sync.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn("close store", zap.Error(err))
	}
}

// connect restores the stored session; commands that talk to Drive call this
// first so a missing credential fails fast with a clear message.
func (a *app) connect(ctx context.Context) error {
	if a.sync.Restore(ctx) {
		return nil
	}
	return &googleauth.AuthenticationError{Cause: fmt.Errorf("not signed in; run 'postit login'")}
}

// driveRemote dials Drive lazily so the token is resolved per operation.
func driveRemote(p *googleauth.Provider) syncer.RemoteFactory {
	return func(ctx context.Context) (syncer.Remote, error) {
		ts, err := p.TokenSource(ctx)
		if err != nil {
			return nil, err
		}
		return drivestore.New(ctx, ts)
	}
}
