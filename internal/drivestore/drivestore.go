// Package drivestore backs the note collection up to a single JSON snapshot
// file in an app-private Google Drive folder.
package drivestore

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/polaco8525/postit/internal/merge"
	"github.com/polaco8525/postit/internal/note"
)

// Fixed remote names, shared by uploader and downloader.
const (
	FolderName = "PostItApp"
	FileName   = "postits_backup.json"
)

// SyncResult reports a completed remote operation.
type SyncResult struct {
	// Notes is the collection state after the operation (merged for
	// SyncPostIts, the uploaded notes for Upload).
	Notes []note.Note
	// Conflicts counts records the merge resolved by timestamp.
	Conflicts int
	// SyncedAt is the snapshot timestamp written remotely (epoch ms).
	SyncedAt int64
}

// Store is the remote store adapter. It never retries: every failure
// propagates, classified, to the orchestrator.
type Store struct {
	api      API
	deviceID string
	folderID string // cached after the first EnsureFolder
}

// New builds a store over the Drive API using the given token source.
func New(ctx context.Context, ts oauth2.TokenSource) (*Store, error) {
	svc, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return NewWithAPI(&driveAPI{service: svc}), nil
}

// NewWithAPI builds a store over an explicit API; tests pass a fake.
func NewWithAPI(api API) *Store {
	return &Store{
		api:      api,
		deviceID: note.NewDeviceID(),
	}
}

// EnsureFolder finds or creates the app-private folder and returns its id.
// Idempotent via search-then-create. Two concurrent first-time callers can
// still race into two folders; Drive offers no compare-and-create for named
// folders.
func (s *Store) EnsureFolder(ctx context.Context) (string, error) {
	if s.folderID != "" {
		return s.folderID, nil
	}

	id, err := s.api.FindFolder(ctx, FolderName)
	if err != nil {
		return "", classify("find folder", err)
	}

	if id == "" {
		id, err = s.api.CreateFolder(ctx, FolderName)
		if err != nil {
			return "", classify("create folder", err)
		}
	}

	s.folderID = id
	return id, nil
}

// FindBackupFile locates the backup file inside the folder, or nil when no
// backup exists yet.
func (s *Store) FindBackupFile(ctx context.Context, folderID string) (*FileMetadata, error) {
	meta, err := s.api.FindFile(ctx, folderID, FileName)
	if err != nil {
		return nil, classify("find backup file", err)
	}
	return meta, nil
}

// Upload replaces the remote snapshot with the given notes (create-or-update,
// whole file).
func (s *Store) Upload(ctx context.Context, notes []note.Note) (*SyncResult, error) {
	folderID, err := s.EnsureFolder(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := note.NewSnapshot(notes, s.deviceID)
	body, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	existing, err := s.FindBackupFile(ctx, folderID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		if _, err := s.api.UpdateFile(ctx, existing.ID, body); err != nil {
			return nil, classify("upload backup", err)
		}
	} else {
		if _, err := s.api.CreateFile(ctx, folderID, FileName, body); err != nil {
			return nil, classify("upload backup", err)
		}
	}

	return &SyncResult{Notes: snapshot.Notes, SyncedAt: snapshot.SyncedAt}, nil
}

// Download fetches and decodes the remote snapshot. A missing backup is not
// an error: (nil, nil) means fresh remote state.
func (s *Store) Download(ctx context.Context) (*note.Snapshot, error) {
	folderID, err := s.EnsureFolder(ctx)
	if err != nil {
		return nil, err
	}

	meta, err := s.FindBackupFile(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, nil
	}

	body, err := s.api.DownloadFile(ctx, meta.ID)
	if err != nil {
		return nil, classify("download backup", err)
	}

	var snapshot note.Snapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, &RemoteStoreError{Message: fmt.Sprintf("corrupt backup: %v", err), Cause: err}
	}

	return &snapshot, nil
}

// SyncPostIts reconciles local notes with the remote snapshot. When no
// backup exists yet the local notes are uploaded verbatim; otherwise the two
// collections are merged last-writer-wins and the merged result re-uploaded.
func (s *Store) SyncPostIts(ctx context.Context, local []note.Note) (*SyncResult, error) {
	remote, err := s.Download(ctx)
	if err != nil {
		return nil, err
	}

	if remote == nil {
		return s.Upload(ctx, local)
	}

	merged, conflicts := merge.Merge(local, remote.Notes)

	result, err := s.Upload(ctx, merged)
	if err != nil {
		return nil, err
	}
	result.Conflicts = conflicts

	return result, nil
}

// DeleteBackup removes the remote snapshot. Succeeds trivially when no
// backup exists.
func (s *Store) DeleteBackup(ctx context.Context) error {
	folderID, err := s.EnsureFolder(ctx)
	if err != nil {
		return err
	}

	meta, err := s.FindBackupFile(ctx, folderID)
	if err != nil {
		return err
	}
	if meta == nil {
		return nil
	}

	if err := s.api.DeleteFile(ctx, meta.ID); err != nil {
		return classify("delete backup", err)
	}

	return nil
}
