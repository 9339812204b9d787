package drivestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	drive "google.golang.org/api/drive/v3"
)

const folderMimeType = "application/vnd.google-apps.folder"

// FileMetadata identifies a remote file.
type FileMetadata struct {
	ID           string
	Name         string
	ModifiedTime time.Time
}

// API is the minimal Drive surface the store needs. The one non-test
// implementation wraps *drive.Service.
type API interface {
	FindFolder(ctx context.Context, name string) (string, error)
	CreateFolder(ctx context.Context, name string) (string, error)
	FindFile(ctx context.Context, folderID, name string) (*FileMetadata, error)
	CreateFile(ctx context.Context, folderID, name string, body []byte) (*FileMetadata, error)
	UpdateFile(ctx context.Context, fileID string, body []byte) (*FileMetadata, error)
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
	DeleteFile(ctx context.Context, fileID string) error
}

type driveAPI struct {
	service *drive.Service
}

// FindFolder searches for an untrashed folder by exact name and returns the
// first match, or "" when none exists.
func (a *driveAPI) FindFolder(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		escapeDriveQuery(name), folderMimeType)

	result, err := a.service.Files.List().
		Context(ctx).
		Q(query).
		Fields("files(id)").
		PageSize(1).
		Do()
	if err != nil {
		return "", fmt.Errorf("list folders: %w", err)
	}

	if len(result.Files) > 0 {
		return result.Files[0].Id, nil
	}

	return "", nil
}

func (a *driveAPI) CreateFolder(ctx context.Context, name string) (string, error) {
	folder := &drive.File{
		Name:     name,
		MimeType: folderMimeType,
	}

	result, err := a.service.Files.Create(folder).
		Context(ctx).
		Fields("id").
		Do()
	if err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}

	return result.Id, nil
}

// FindFile searches for an untrashed file by exact name inside folderID and
// returns the first match, or nil when none exists.
func (a *driveAPI) FindFile(ctx context.Context, folderID, name string) (*FileMetadata, error) {
	query := fmt.Sprintf("'%s' in parents and name = '%s' and mimeType != '%s' and trashed = false",
		folderID, escapeDriveQuery(name), folderMimeType)

	result, err := a.service.Files.List().
		Context(ctx).
		Q(query).
		Fields("files(id,name,modifiedTime)").
		PageSize(1).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	if len(result.Files) == 0 {
		return nil, nil
	}

	return fileMetadata(result.Files[0]), nil
}

func (a *driveAPI) CreateFile(ctx context.Context, folderID, name string, body []byte) (*FileMetadata, error) {
	file := &drive.File{
		Name:     name,
		MimeType: "application/json",
		Parents:  []string{folderID},
	}

	result, err := a.service.Files.Create(file).
		Context(ctx).
		Media(bytes.NewReader(body)).
		Fields("id,name,modifiedTime").
		Do()
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	return fileMetadata(result), nil
}

// UpdateFile replaces the file's whole body. Never a byte-range patch.
func (a *driveAPI) UpdateFile(ctx context.Context, fileID string, body []byte) (*FileMetadata, error) {
	result, err := a.service.Files.Update(fileID, &drive.File{}).
		Context(ctx).
		Media(bytes.NewReader(body)).
		Fields("id,name,modifiedTime").
		Do()
	if err != nil {
		return nil, fmt.Errorf("update file: %w", err)
	}

	return fileMetadata(result), nil
}

func (a *driveAPI) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := a.service.Files.Get(fileID).
		Context(ctx).
		Download()
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file content: %w", err)
	}

	return body, nil
}

func (a *driveAPI) DeleteFile(ctx context.Context, fileID string) error {
	if err := a.service.Files.Delete(fileID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func fileMetadata(f *drive.File) *FileMetadata {
	meta := &FileMetadata{ID: f.Id, Name: f.Name}
	if f.ModifiedTime != "" {
		if ts, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
			meta.ModifiedTime = ts
		}
	}
	return meta
}

// escapeDriveQuery escapes a string for use in Drive API queries.
func escapeDriveQuery(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "'", "\\'")

	return s
}
