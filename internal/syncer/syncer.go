// Package syncer orchestrates backup runs: it owns the status state machine,
// debounces change-triggered syncs, and serializes access to the remote store.
package syncer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/polaco8525/postit/internal/drivestore"
	"github.com/polaco8525/postit/internal/googleauth"
	"github.com/polaco8525/postit/internal/note"
	"github.com/polaco8525/postit/internal/store"
)

// Status is the externally visible sync state.
type Status int

const (
	// StatusIdle means no sync activity and no recent result to show.
	StatusIdle Status = iota
	// StatusSyncing means a sync is in flight.
	StatusSyncing
	// StatusSuccess means the last sync finished; reverts to idle shortly.
	StatusSuccess
	// StatusError means the last sync failed; reverts to idle shortly.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSyncing:
		return "syncing"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is a point-in-time snapshot of the orchestrator.
type State struct {
	Status     Status
	Message    string
	Connected  bool
	Identity   *googleauth.Identity
	LastSyncAt int64
	Conflicts  int
}

// Outcome reports a single sync attempt. Expected refusals (already in
// progress, not connected, nothing changed) come back as !Success with a
// message, not as an error.
type Outcome struct {
	Success   bool
	Skipped   bool
	Message   string
	Conflicts int
	// Err is the classified failure, when one occurred.
	Err error
}

// Remote is the slice of the remote store the orchestrator drives.
// *drivestore.Store satisfies it; tests pass a fake.
type Remote interface {
	SyncPostIts(ctx context.Context, local []note.Note) (*drivestore.SyncResult, error)
	Upload(ctx context.Context, notes []note.Note) (*drivestore.SyncResult, error)
	Download(ctx context.Context) (*note.Snapshot, error)
	DeleteBackup(ctx context.Context) error
}

// Authenticator is the slice of the auth provider the orchestrator needs.
type Authenticator interface {
	SignIn(ctx context.Context, opts googleauth.SignInOptions) (*googleauth.Identity, error)
	SignInSilently(ctx context.Context) (*googleauth.Identity, error)
	SignOut() error
}

// RemoteFactory builds the remote store once a credential exists. The
// production factory dials Drive with the provider's token source.
type RemoteFactory func(ctx context.Context) (Remote, error)

// Options configures a Syncer. Zero durations fall back to the defaults.
type Options struct {
	Store  *store.Store
	Auth   Authenticator
	Remote RemoteFactory
	Logger *zap.Logger
	// OnState, when set, receives each status transition in order on a
	// dedicated goroutine.
	OnState func(State)

	// DebounceWindow is how long after the last change before an automatic
	// sync fires.
	DebounceWindow time.Duration
	// RevertAfter is how long success/error status lingers before idle.
	RevertAfter time.Duration
	// AutoSyncDefault is the configured auto-sync setting, used until the
	// user overrides it with a stored setting.
	AutoSyncDefault bool
}

const (
	// DefaultDebounceWindow batches rapid edits into one sync.
	DefaultDebounceWindow = 5 * time.Second
	// DefaultRevertAfter keeps the last result visible briefly.
	DefaultRevertAfter = 3 * time.Second
)

// Syncer is the sync orchestrator. One sync runs at a time; concurrent
// triggers are refused, never queued.
type Syncer struct {
	store  *store.Store
	auth   Authenticator
	remote RemoteFactory
	log    *zap.Logger

	debounceWindow  time.Duration
	revertAfter     time.Duration
	autoSyncDefault bool

	mu         gosync.Mutex
	states     chan State
	syncing    bool
	status     Status
	message    string
	conflicts  int
	identity   *googleauth.Identity
	debounce   *time.Timer
	revert     *time.Timer
	generation int
	closed     bool
}

// New builds a Syncer. Store, Auth, and Remote are required.
func New(opts Options) *Syncer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.DebounceWindow == 0 {
		opts.DebounceWindow = DefaultDebounceWindow
	}
	if opts.RevertAfter == 0 {
		opts.RevertAfter = DefaultRevertAfter
	}

	s := &Syncer{
		store:           opts.Store,
		auth:            opts.Auth,
		remote:          opts.Remote,
		log:             opts.Logger,
		debounceWindow:  opts.DebounceWindow,
		revertAfter:     opts.RevertAfter,
		autoSyncDefault: opts.AutoSyncDefault,
		status:          StatusIdle,
	}

	// A single dispatcher goroutine delivers state snapshots in transition
	// order. Close shuts it down.
	if opts.OnState != nil {
		s.states = make(chan State, 64)
		go func(states <-chan State, onState func(State)) {
			for state := range states {
				onState(state)
			}
		}(s.states, opts.OnState)
	}

	return s
}

// State returns the current snapshot.
func (s *Syncer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	lastSync, _ := s.store.LastSyncAt()

	return State{
		Status:     s.status,
		Message:    s.message,
		Connected:  s.identity != nil,
		Identity:   s.identity,
		LastSyncAt: lastSync,
		Conflicts:  s.conflicts,
	}
}

// Connected reports whether an account is signed in.
func (s *Syncer) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity != nil
}

// SignIn runs the interactive flow. A declined consent returns (nil, nil)
// and leaves the status idle; a hard failure surfaces as the error status.
func (s *Syncer) SignIn(ctx context.Context, opts googleauth.SignInOptions) (*googleauth.Identity, error) {
	identity, err := s.auth.SignIn(ctx, opts)
	if err != nil {
		s.mu.Lock()
		s.setStatusLocked(StatusError, err.Error(), 0)
		s.scheduleRevertLocked()
		s.mu.Unlock()
		return nil, err
	}
	if identity == nil {
		return nil, nil
	}

	s.mu.Lock()
	s.identity = identity
	s.setStatusLocked(StatusSuccess, "signed in", 0)
	s.scheduleRevertLocked()
	s.mu.Unlock()

	s.log.Info("signed in", zap.String("email", identity.Email))

	return identity, nil
}

// SignOut forgets the credential, cancels any pending automatic sync, and
// resets the status. A sync already in flight finishes with the token it
// holds.
func (s *Syncer) SignOut() error {
	s.mu.Lock()
	s.identity = nil
	s.cancelDebounceLocked()
	s.setStatusLocked(StatusIdle, "", 0)
	s.mu.Unlock()

	if err := s.auth.SignOut(); err != nil {
		return err
	}

	s.log.Info("signed out")

	return nil
}

// Restore rebuilds the session from a stored token without any network or
// sync activity. Reports whether an account is now connected.
func (s *Syncer) Restore(ctx context.Context) bool {
	if s.Connected() {
		return true
	}

	identity, err := s.auth.SignInSilently(ctx)
	if err != nil {
		s.log.Warn("silent sign-in failed", zap.Error(err))
		return false
	}
	if identity == nil {
		return false
	}

	s.mu.Lock()
	s.identity = identity
	s.mu.Unlock()

	return true
}

// Foreground is the app-resume trigger: restore the session silently, then
// sync immediately (not debounced) when connected and auto-sync is on.
func (s *Syncer) Foreground(ctx context.Context) Outcome {
	if !s.Restore(ctx) {
		return Outcome{Skipped: true, Message: "not connected"}
	}
	if !s.store.AutoSync(s.autoSyncDefault) {
		return Outcome{Skipped: true, Message: "auto-sync disabled"}
	}

	return s.SyncNow(ctx)
}

// NotesChanged schedules a debounced sync. Each call restarts the window,
// so a burst of edits produces one sync. No-op when signed out, when
// auto-sync is disabled, or after Close.
func (s *Syncer) NotesChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.identity == nil {
		return
	}
	if !s.store.AutoSync(s.autoSyncDefault) {
		return
	}

	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(s.debounceWindow, func() {
		s.autoSync()
	})
}

// autoSync is the debounce callback: skip when nothing changed since the
// last successful sync, otherwise run a full sync.
func (s *Syncer) autoSync() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	notes := s.store.LoadNotes()
	if len(notes) == 0 {
		return
	}

	hash := collectionHash(notes)
	if s.store.LastSyncedHash() == hash {
		s.log.Debug("auto-sync skipped, collection unchanged")
		return
	}

	outcome := s.SyncNow(ctx)
	if outcome.Skipped {
		s.log.Debug("auto-sync skipped", zap.String("reason", outcome.Message))
	}
}

// SyncNow runs a full reconcile sync. Refused (not errored) when another
// sync is in flight or no account is connected.
func (s *Syncer) SyncNow(ctx context.Context) Outcome {
	return s.run(ctx, "sync", func(ctx context.Context, remote Remote, notes []note.Note) (*drivestore.SyncResult, error) {
		return remote.SyncPostIts(ctx, notes)
	})
}

// Upload force-pushes the local collection, replacing the remote snapshot
// without merging.
func (s *Syncer) Upload(ctx context.Context) Outcome {
	return s.run(ctx, "upload", func(ctx context.Context, remote Remote, notes []note.Note) (*drivestore.SyncResult, error) {
		return remote.Upload(ctx, notes)
	})
}

// Download force-pulls the remote snapshot, replacing the local collection
// without merging. A missing backup is a refusal, not an error.
func (s *Syncer) Download(ctx context.Context) Outcome {
	return s.run(ctx, "download", func(ctx context.Context, remote Remote, _ []note.Note) (*drivestore.SyncResult, error) {
		snapshot, err := remote.Download(ctx)
		if err != nil {
			return nil, err
		}
		if snapshot == nil {
			return nil, nil
		}
		return &drivestore.SyncResult{Notes: snapshot.Notes, SyncedAt: snapshot.SyncedAt}, nil
	})
}

// WipeBackup deletes the remote snapshot. Runs under the same guard as a
// sync so it cannot interleave with one.
func (s *Syncer) WipeBackup(ctx context.Context) Outcome {
	return s.run(ctx, "wipe-backup", func(ctx context.Context, remote Remote, _ []note.Note) (*drivestore.SyncResult, error) {
		if err := remote.DeleteBackup(ctx); err != nil {
			return nil, err
		}
		return &drivestore.SyncResult{}, nil
	})
}

type syncOp func(ctx context.Context, remote Remote, notes []note.Note) (*drivestore.SyncResult, error)

// run acquires the guard, drives the operation, and manages the status
// transitions around it. The guard refuses, never queues.
func (s *Syncer) run(ctx context.Context, op string, fn syncOp) (outcome Outcome) {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return Outcome{Skipped: true, Message: "sync already in progress"}
	}
	if s.identity == nil {
		s.mu.Unlock()
		return Outcome{Skipped: true, Message: "not connected"}
	}
	s.syncing = true
	s.cancelDebounceLocked()
	s.setStatusLocked(StatusSyncing, "", 0)
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("sync panicked", zap.String("op", op), zap.Any("panic", r))
			outcome = Outcome{Message: fmt.Sprintf("internal error: %v", r)}
		}

		s.mu.Lock()
		s.syncing = false
		switch {
		case outcome.Skipped:
			s.setStatusLocked(StatusIdle, outcome.Message, 0)
		case outcome.Success:
			s.setStatusLocked(StatusSuccess, outcome.Message, outcome.Conflicts)
			s.scheduleRevertLocked()
		default:
			s.setStatusLocked(StatusError, outcome.Message, 0)
			s.scheduleRevertLocked()
		}
		s.mu.Unlock()
	}()

	remote, err := s.remote(ctx)
	if err != nil {
		s.log.Warn("remote unavailable", zap.String("op", op), zap.Error(err))
		s.store.AddLogEntry(op, "error: "+err.Error())
		return Outcome{Message: err.Error(), Err: err}
	}

	notes := s.store.LoadNotes()

	result, err := fn(ctx, remote, notes)
	if err != nil {
		s.log.Warn("sync failed", zap.String("op", op), zap.Error(err))
		s.store.AddLogEntry(op, "error: "+err.Error())
		return Outcome{Message: err.Error(), Err: err}
	}
	if result == nil {
		return Outcome{Skipped: true, Message: "no backup found"}
	}

	if op == "wipe-backup" {
		s.log.Info("backup deleted")
		s.store.AddLogEntry(op, "backup deleted")
		return Outcome{Success: true, Message: "backup deleted"}
	}

	if result.Notes != nil {
		s.store.SaveNotes(result.Notes)
		s.store.SetLastSyncedHash(collectionHash(result.Notes))
	}
	if result.SyncedAt != 0 {
		s.store.SetLastSyncAt(result.SyncedAt)
	}

	s.log.Info("sync finished",
		zap.String("op", op),
		zap.Int("notes", len(result.Notes)),
		zap.Int("conflicts", result.Conflicts))
	s.store.AddLogEntry(op, fmt.Sprintf("%d notes, %d conflicts", len(result.Notes), result.Conflicts))

	msg := "synced"
	if result.Conflicts > 0 {
		msg = fmt.Sprintf("synced, %d conflicts resolved", result.Conflicts)
	}

	return Outcome{Success: true, Message: msg, Conflicts: result.Conflicts}
}

// Close cancels pending timers. A sync in flight finishes.
func (s *Syncer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.cancelDebounceLocked()
	if s.revert != nil {
		s.revert.Stop()
		s.revert = nil
	}
	if s.states != nil {
		close(s.states)
		s.states = nil
	}
}

func (s *Syncer) cancelDebounceLocked() {
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
}

// setStatusLocked records the transition and notifies the listener.
// Callers hold s.mu.
func (s *Syncer) setStatusLocked(status Status, message string, conflicts int) {
	s.status = status
	s.message = message
	s.conflicts = conflicts
	s.generation++

	if s.states != nil {
		lastSync, _ := s.store.LastSyncAt()
		state := State{
			Status:     status,
			Message:    message,
			Connected:  s.identity != nil,
			Identity:   s.identity,
			LastSyncAt: lastSync,
			Conflicts:  conflicts,
		}
		// A listener that falls behind loses updates; the state machine
		// never blocks on it.
		select {
		case s.states <- state:
		default:
		}
	}
}

// scheduleRevertLocked arranges the fall back to idle. The generation check
// keeps a stale timer from clobbering a newer transition. Callers hold s.mu.
func (s *Syncer) scheduleRevertLocked() {
	gen := s.generation
	if s.revert != nil {
		s.revert.Stop()
	}
	s.revert = time.AfterFunc(s.revertAfter, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation != gen || s.closed {
			return
		}
		s.setStatusLocked(StatusIdle, "", 0)
	})
}

// collectionHash fingerprints a collection for change detection. Notes are
// hashed in id order so insertion order cannot fake a change.
func collectionHash(notes []note.Note) string {
	sorted := make([]note.Note, len(notes))
	copy(sorted, notes)
	note.SortByID(sorted)

	body, err := json.Marshal(sorted)
	if err != nil {
		return ""
	}

	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}
