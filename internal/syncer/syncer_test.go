package syncer

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/polaco8525/postit/internal/drivestore"
	"github.com/polaco8525/postit/internal/googleauth"
	"github.com/polaco8525/postit/internal/merge"
	"github.com/polaco8525/postit/internal/note"
	"github.com/polaco8525/postit/internal/store"
)

// fakeRemote is an in-memory remote snapshot.
type fakeRemote struct {
	snapshot *note.Snapshot
	syncs    atomic.Int32
	failWith error
	started  chan struct{} // closed on first SyncPostIts when set
	release  chan struct{} // SyncPostIts blocks on this when set
}

func (f *fakeRemote) SyncPostIts(_ context.Context, local []note.Note) (*drivestore.SyncResult, error) {
	if f.started != nil {
		close(f.started)
		f.started = nil
	}
	if f.release != nil {
		<-f.release
	}
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.syncs.Add(1)

	merged := local
	conflicts := 0
	if f.snapshot != nil {
		merged, conflicts = merge.Merge(local, f.snapshot.Notes)
	}
	syncedAt := note.NowMillis()
	f.snapshot = &note.Snapshot{Notes: merged, SyncedAt: syncedAt, Version: note.SnapshotVersion}

	return &drivestore.SyncResult{Notes: merged, Conflicts: conflicts, SyncedAt: syncedAt}, nil
}

func (f *fakeRemote) Upload(_ context.Context, notes []note.Note) (*drivestore.SyncResult, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	syncedAt := note.NowMillis()
	f.snapshot = &note.Snapshot{Notes: notes, SyncedAt: syncedAt, Version: note.SnapshotVersion}
	return &drivestore.SyncResult{Notes: notes, SyncedAt: syncedAt}, nil
}

func (f *fakeRemote) Download(context.Context) (*note.Snapshot, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.snapshot, nil
}

func (f *fakeRemote) DeleteBackup(context.Context) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.snapshot = nil
	return nil
}

// fakeAuth hands out a canned identity.
type fakeAuth struct {
	identity  *googleauth.Identity
	signOuts  int
	silentErr error
}

func (f *fakeAuth) SignIn(context.Context, googleauth.SignInOptions) (*googleauth.Identity, error) {
	return f.identity, nil
}

func (f *fakeAuth) SignInSilently(context.Context) (*googleauth.Identity, error) {
	if f.silentErr != nil {
		return nil, f.silentErr
	}
	return f.identity, nil
}

func (f *fakeAuth) SignOut() error {
	f.signOuts++
	return nil
}

func newTestSyncer(t *testing.T, remote *fakeRemote) (*Syncer, *store.Store) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "postit.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	auth := &fakeAuth{identity: &googleauth.Identity{Email: "u@example.com"}}
	s := New(Options{
		Store:           st,
		Auth:            auth,
		Remote:          func(context.Context) (Remote, error) { return remote, nil },
		DebounceWindow:  30 * time.Millisecond,
		RevertAfter:     30 * time.Millisecond,
		AutoSyncDefault: true,
	})
	t.Cleanup(s.Close)

	if _, err := s.SignIn(context.Background(), googleauth.SignInOptions{}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	return s, st
}

func seedNotes(st *store.Store, texts ...string) []note.Note {
	notes := make([]note.Note, 0, len(texts))
	for _, text := range texts {
		notes = append(notes, note.Create(text, note.ColorYellow, note.Position{X: 10, Y: 10}, 1, note.Size{}))
	}
	st.SaveNotes(notes)
	return notes
}

func TestSignInSetsSuccessStatus(t *testing.T) {
	s, _ := newTestSyncer(t, &fakeRemote{})

	state := s.State()
	if !state.Connected {
		t.Fatal("expected connected")
	}
	if state.Status != StatusSuccess {
		t.Fatalf("status = %v, want success", state.Status)
	}

	if err := s.SignOut(); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	state = s.State()
	if state.Connected || state.Status != StatusIdle {
		t.Fatalf("after sign-out: %+v", state)
	}
}

func TestForegroundSkipsWhenAutoSyncDisabled(t *testing.T) {
	remote := &fakeRemote{}
	s, st := newTestSyncer(t, remote)
	seedNotes(st, "note")
	st.SetAutoSync(false)

	outcome := s.Foreground(context.Background())
	if !outcome.Skipped {
		t.Fatalf("outcome = %+v", outcome)
	}
	if remote.syncs.Load() != 0 {
		t.Fatal("sync should not have run")
	}
}

func TestSyncNowUpdatesStoreAndBookkeeping(t *testing.T) {
	remote := &fakeRemote{}
	s, st := newTestSyncer(t, remote)
	seedNotes(st, "first", "second")

	outcome := s.SyncNow(context.Background())
	if !outcome.Success {
		t.Fatalf("outcome = %+v", outcome)
	}

	if remote.snapshot == nil || len(remote.snapshot.Notes) != 2 {
		t.Fatalf("remote snapshot = %+v", remote.snapshot)
	}
	if ts, ok := st.LastSyncAt(); !ok || ts == 0 {
		t.Fatal("last sync time not persisted")
	}
	if st.LastSyncedHash() == "" {
		t.Fatal("synced hash not persisted")
	}
}

func TestSyncNowRefusedWhenNotConnected(t *testing.T) {
	remote := &fakeRemote{}
	s, _ := newTestSyncer(t, remote)

	if err := s.SignOut(); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	outcome := s.SyncNow(context.Background())
	if !outcome.Skipped || outcome.Message != "not connected" {
		t.Fatalf("outcome = %+v", outcome)
	}
	if remote.syncs.Load() != 0 {
		t.Fatal("sync should not have run")
	}
}

func TestConcurrentSyncRefusedNotQueued(t *testing.T) {
	remote := &fakeRemote{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s, st := newTestSyncer(t, remote)
	seedNotes(st, "busy")

	started := remote.started
	done := make(chan Outcome, 1)
	go func() { done <- s.SyncNow(context.Background()) }()

	<-started
	if got := s.State().Status; got != StatusSyncing {
		t.Fatalf("status = %v, want syncing", got)
	}

	second := s.SyncNow(context.Background())
	if !second.Skipped || second.Message != "sync already in progress" {
		t.Fatalf("second outcome = %+v", second)
	}

	close(remote.release)
	first := <-done
	if !first.Success {
		t.Fatalf("first outcome = %+v", first)
	}
	if remote.syncs.Load() != 1 {
		t.Fatalf("syncs = %d, want 1", remote.syncs.Load())
	}
}

func TestStatusRevertsToIdle(t *testing.T) {
	remote := &fakeRemote{}
	s, st := newTestSyncer(t, remote)
	seedNotes(st, "note")

	if outcome := s.SyncNow(context.Background()); !outcome.Success {
		t.Fatalf("outcome = %+v", outcome)
	}
	if got := s.State().Status; got != StatusSuccess {
		t.Fatalf("status = %v, want success", got)
	}

	deadline := time.After(2 * time.Second)
	for s.State().Status != StatusIdle {
		select {
		case <-deadline:
			t.Fatalf("status never reverted, stuck at %v", s.State().Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestErrorStatusCarriesMessage(t *testing.T) {
	remote := &fakeRemote{failWith: errors.New("remote store error: backend error")}
	s, st := newTestSyncer(t, remote)
	seedNotes(st, "note")

	outcome := s.SyncNow(context.Background())
	if outcome.Success || outcome.Skipped {
		t.Fatalf("outcome = %+v", outcome)
	}

	state := s.State()
	if state.Status != StatusError {
		t.Fatalf("status = %v, want error", state.Status)
	}
	if state.Message == "" {
		t.Fatal("error state should carry a message")
	}
}

func TestNotesChangedDebouncesToOneSync(t *testing.T) {
	remote := &fakeRemote{}
	s, st := newTestSyncer(t, remote)
	seedNotes(st, "burst")

	for i := 0; i < 5; i++ {
		s.NotesChanged()
		time.Sleep(5 * time.Millisecond)
	}

	deadline := time.After(2 * time.Second)
	for remote.syncs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("debounced sync never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// Give a second (erroneous) sync a chance to fire.
	time.Sleep(100 * time.Millisecond)
	if got := remote.syncs.Load(); got != 1 {
		t.Fatalf("syncs = %d, want 1", got)
	}
}

func TestNotesChangedSkipsWhenUnchanged(t *testing.T) {
	remote := &fakeRemote{}
	s, st := newTestSyncer(t, remote)
	seedNotes(st, "same")

	if outcome := s.SyncNow(context.Background()); !outcome.Success {
		t.Fatalf("outcome = %+v", outcome)
	}

	// Collection unchanged since the sync: the debounce fires but skips.
	s.NotesChanged()
	time.Sleep(150 * time.Millisecond)

	if got := remote.syncs.Load(); got != 1 {
		t.Fatalf("syncs = %d, want 1", got)
	}
}

func TestSignOutCancelsPendingSync(t *testing.T) {
	remote := &fakeRemote{}
	s, st := newTestSyncer(t, remote)
	seedNotes(st, "pending")

	s.NotesChanged()
	if err := s.SignOut(); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	time.Sleep(150 * time.Millisecond)
	if got := remote.syncs.Load(); got != 0 {
		t.Fatalf("syncs = %d, want 0", got)
	}
}

func TestAutoSyncDisabledSuppressesTrigger(t *testing.T) {
	remote := &fakeRemote{}
	s, st := newTestSyncer(t, remote)
	seedNotes(st, "note")
	st.SetAutoSync(false)

	s.NotesChanged()
	time.Sleep(150 * time.Millisecond)

	if got := remote.syncs.Load(); got != 0 {
		t.Fatalf("syncs = %d, want 0", got)
	}
}

func TestConfiguredAutoSyncDefaultHonoredWithoutSetting(t *testing.T) {
	remote := &fakeRemote{}

	st, err := store.Open(filepath.Join(t.TempDir(), "postit.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	auth := &fakeAuth{identity: &googleauth.Identity{Email: "u@example.com"}}
	s := New(Options{
		Store:           st,
		Auth:            auth,
		Remote:          func(context.Context) (Remote, error) { return remote, nil },
		DebounceWindow:  30 * time.Millisecond,
		RevertAfter:     30 * time.Millisecond,
		AutoSyncDefault: false,
	})
	t.Cleanup(s.Close)

	if _, err := s.SignIn(context.Background(), googleauth.SignInOptions{}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	seedNotes(st, "note")

	// No stored setting: the configured default (off) decides.
	if outcome := s.Foreground(context.Background()); !outcome.Skipped || outcome.Message != "auto-sync disabled" {
		t.Fatalf("outcome = %+v", outcome)
	}

	s.NotesChanged()
	time.Sleep(150 * time.Millisecond)
	if got := remote.syncs.Load(); got != 0 {
		t.Fatalf("syncs = %d, want 0", got)
	}

	// An explicit setting overrides the configured default.
	st.SetAutoSync(true)
	if outcome := s.Foreground(context.Background()); !outcome.Success {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestDownloadWithoutBackup(t *testing.T) {
	remote := &fakeRemote{}
	s, _ := newTestSyncer(t, remote)

	outcome := s.Download(context.Background())
	if !outcome.Skipped || outcome.Message != "no backup found" {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestDownloadReplacesLocalCollection(t *testing.T) {
	remoteNotes := []note.Note{note.Create("from remote", note.ColorPink, note.Position{X: 1, Y: 1}, 1, note.Size{})}
	remote := &fakeRemote{snapshot: &note.Snapshot{
		Notes:    remoteNotes,
		SyncedAt: note.NowMillis(),
		Version:  note.SnapshotVersion,
	}}
	s, st := newTestSyncer(t, remote)
	seedNotes(st, "local only")

	outcome := s.Download(context.Background())
	if !outcome.Success {
		t.Fatalf("outcome = %+v", outcome)
	}

	loaded := st.LoadNotes()
	if len(loaded) != 1 || loaded[0].Text != "from remote" {
		t.Fatalf("local collection = %+v", loaded)
	}
}

func TestForegroundRestoresSessionAndSyncs(t *testing.T) {
	remote := &fakeRemote{}
	s, st := newTestSyncer(t, remote)
	seedNotes(st, "resume")

	// Drop the in-memory session; silent sign-in should restore it.
	s.mu.Lock()
	s.identity = nil
	s.mu.Unlock()

	outcome := s.Foreground(context.Background())
	if !outcome.Success {
		t.Fatalf("outcome = %+v", outcome)
	}
	if !s.Connected() {
		t.Fatal("session not restored")
	}
}

func TestWipeBackup(t *testing.T) {
	remote := &fakeRemote{snapshot: &note.Snapshot{Version: note.SnapshotVersion}}
	s, st := newTestSyncer(t, remote)

	outcome := s.WipeBackup(context.Background())
	if !outcome.Success {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.Message != "backup deleted" {
		t.Fatalf("message = %q, want %q", outcome.Message, "backup deleted")
	}
	if remote.snapshot != nil {
		t.Fatal("backup not deleted")
	}

	entries := st.RecentLog(1)
	if len(entries) != 1 || entries[0].Action != "wipe-backup" || entries[0].Message != "backup deleted" {
		t.Fatalf("log entries = %+v", entries)
	}
}

func TestOnStateDeliversTransitionsInOrder(t *testing.T) {
	remote := &fakeRemote{}

	st, err := store.Open(filepath.Join(t.TempDir(), "postit.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	var (
		mu     sync.Mutex
		states []State
	)
	onState := func(state State) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
	}

	auth := &fakeAuth{identity: &googleauth.Identity{Email: "u@example.com"}}
	s := New(Options{
		Store:           st,
		Auth:            auth,
		Remote:          func(context.Context) (Remote, error) { return remote, nil },
		DebounceWindow:  time.Hour,
		RevertAfter:     time.Hour,
		AutoSyncDefault: true,
		OnState:         onState,
	})
	t.Cleanup(s.Close)

	if _, err := s.SignIn(context.Background(), googleauth.SignInOptions{}); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	seedNotes(st, "note")

	if outcome := s.SyncNow(context.Background()); !outcome.Success {
		t.Fatalf("outcome = %+v", outcome)
	}

	// Sign-in success, then syncing, then sync success.
	want := []Status{StatusSuccess, StatusSyncing, StatusSuccess}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(states)
		mu.Unlock()
		if n >= len(want) {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d transitions delivered, want %d", n, len(want))
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, status := range want {
		if states[i].Status != status {
			t.Fatalf("transition %d = %v, want %v (all: %+v)", i, states[i].Status, status, states)
		}
	}
	if states[2].Message != "synced" {
		t.Fatalf("final message = %q, want %q", states[2].Message, "synced")
	}
}

func TestCollectionHashIgnoresOrder(t *testing.T) {
	a := note.Create("a", note.ColorYellow, note.Position{}, 1, note.Size{})
	b := note.Create("b", note.ColorBlue, note.Position{}, 2, note.Size{})

	h1 := collectionHash([]note.Note{a, b})
	h2 := collectionHash([]note.Note{b, a})
	if h1 != h2 {
		t.Fatal("hash should not depend on slice order")
	}

	b.Text = "changed"
	if collectionHash([]note.Note{a, b}) == h1 {
		t.Fatal("hash should change with content")
	}
}
