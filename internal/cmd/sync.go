package cmd

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/polaco8525/postit/internal/outfmt"
	"github.com/polaco8525/postit/internal/syncer"
	"github.com/polaco8525/postit/internal/ui"
)

type SyncCmd struct{}

func (c *SyncCmd) Run(ctx context.Context, flags *RootFlags, log *zap.Logger) error {
	return runSyncOp(ctx, flags, log, func(ctx context.Context, a *app) syncer.Outcome {
		return a.sync.SyncNow(ctx)
	})
}

type PushCmd struct{}

func (c *PushCmd) Run(ctx context.Context, flags *RootFlags, log *zap.Logger) error {
	return runSyncOp(ctx, flags, log, func(ctx context.Context, a *app) syncer.Outcome {
		return a.sync.Upload(ctx)
	})
}

type PullCmd struct{}

func (c *PullCmd) Run(ctx context.Context, flags *RootFlags, log *zap.Logger) error {
	return runSyncOp(ctx, flags, log, func(ctx context.Context, a *app) syncer.Outcome {
		return a.sync.Download(ctx)
	})
}

type WipeBackupCmd struct {
	Force bool `help:"Skip confirmation" short:"y"`
}

func (c *WipeBackupCmd) Run(ctx context.Context, flags *RootFlags, log *zap.Logger) error {
	if !c.Force {
		return newUsageError(errors.New("wipe-backup deletes the remote backup; re-run with --force"))
	}

	return runSyncOp(ctx, flags, log, func(ctx context.Context, a *app) syncer.Outcome {
		return a.sync.WipeBackup(ctx)
	})
}

func runSyncOp(ctx context.Context, flags *RootFlags, log *zap.Logger, op func(context.Context, *app) syncer.Outcome) error {
	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.connect(ctx); err != nil {
		return err
	}

	outcome := op(ctx, a)

	if outfmt.IsJSON(ctx) {
		state := a.sync.State()
		return errors.Join(
			emitJSON(ctx, flags, map[string]any{
				"success":   outcome.Success,
				"skipped":   outcome.Skipped,
				"message":   outcome.Message,
				"conflicts": outcome.Conflicts,
				"notes":     len(a.store.LoadNotes()),
				"lastSync":  state.LastSyncAt,
			}),
			exitFromOutcome(outcome),
		)
	}

	u := ui.FromContext(ctx)
	switch {
	case outcome.Success:
		u.Success("%s", outcome.Message)
		return nil
	case outcome.Skipped:
		u.Warn("%s", outcome.Message)
		return nil
	default:
		return exitFromOutcome(outcome)
	}
}

func exitFromOutcome(outcome syncer.Outcome) error {
	if outcome.Success || outcome.Skipped {
		return nil
	}
	if outcome.Err != nil {
		return stableExitCode(outcome.Err)
	}
	return errors.New(outcome.Message)
}

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx context.Context, flags *RootFlags, log *zap.Logger) error {
	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	a.sync.Restore(ctx)
	state := a.sync.State()
	notes := a.store.LoadNotes()

	if outfmt.IsJSON(ctx) {
		payload := map[string]any{
			"status":    state.Status.String(),
			"connected": state.Connected,
			"autoSync":  a.store.AutoSync(a.cfg.AutoSync),
			"notes":     len(notes),
			"lastSync":  state.LastSyncAt,
		}
		if state.Identity != nil {
			payload["account"] = state.Identity.Email
		}
		return emitJSON(ctx, flags, payload)
	}

	u := ui.FromContext(ctx)
	if state.Connected {
		u.Out("account:    %s", state.Identity.Email)
	} else {
		u.Out("account:    not signed in")
	}
	u.Out("notes:      %d", len(notes))
	u.Out("auto-sync:  %v", a.store.AutoSync(a.cfg.AutoSync))
	if state.LastSyncAt > 0 {
		u.Out("last sync:  %s", time.UnixMilli(state.LastSyncAt).Local().Format(time.RFC1123))
	} else {
		u.Out("last sync:  never")
	}
	return nil
}

type AutoCmd struct {
	State string `arg:"" help:"on|off" enum:"on,off"`
}

func (c *AutoCmd) Run(ctx context.Context, log *zap.Logger) error {
	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	enabled := c.State == "on"
	a.store.SetAutoSync(enabled)

	ui.FromContext(ctx).Out("auto-sync %s", c.State)
	return nil
}

type LogCmd struct {
	Limit int `help:"Number of entries to show" default:"20"`
}

func (c *LogCmd) Run(ctx context.Context, flags *RootFlags, log *zap.Logger) error {
	a, err := newApp(log)
	if err != nil {
		return err
	}
	defer a.Close()

	entries := a.store.RecentLog(c.Limit)

	if outfmt.IsJSON(ctx) {
		return emitJSON(ctx, flags, map[string]any{"entries": entries})
	}

	u := ui.FromContext(ctx)
	if len(entries) == 0 {
		u.Muted("no sync activity yet")
		return nil
	}

	for _, e := range entries {
		u.Out("%s  %-12s %s",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Action,
			e.Message)
	}
	return nil
}
