package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/polaco8525/postit/internal/config"
	"github.com/polaco8525/postit/internal/syncer"
	"github.com/polaco8525/postit/internal/ui"
)

type WatchCmd struct {
	SyncOnStart bool `name:"sync-on-start" help:"Run a sync immediately before watching" default:"true" negatable:""`
}

// Run watches the note database and schedules a debounced sync after each
// change, until interrupted.
func (c *WatchCmd) Run(ctx context.Context, log *zap.Logger) error {
	u := ui.FromContext(ctx)

	a, err := newAppWith(log, func(state syncer.State) {
		if state.Message != "" {
			u.Muted("status: %s (%s)", state.Status, state.Message)
			return
		}
		u.Muted("status: %s", state.Status)
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.connect(ctx); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.SyncOnStart {
		outcome := a.sync.SyncNow(ctx)
		switch {
		case outcome.Success:
			u.Success("%s", outcome.Message)
		case outcome.Skipped:
			u.Warn("%s", outcome.Message)
		default:
			u.Err("initial sync failed: %s", outcome.Message)
		}
	}

	dbPath, err := config.StorePath()
	if err != nil {
		return err
	}

	w, err := syncer.NewWatcher(dbPath, a.sync, log)
	if err != nil {
		return err
	}
	defer w.Stop()

	u.Out("watching %s (ctrl-c to stop)", dbPath)

	if err := w.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
