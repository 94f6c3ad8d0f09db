package vfs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/michael-freling/ml-artifact-store/internal/config"
	"github.com/michael-freling/ml-artifact-store/internal/store"
)

var (
	ErrMalformedPath = errors.New("malformed path")
	ErrInvalidText   = errors.New("content is not valid UTF-8 text")
)

// Storage is the part of store.Engine used by Adapter
type Storage interface {
	ResolveDirectoryID(ctx context.Context, name string) (uint, error)
	GetOrCreateDirectory(ctx context.Context, path string) (uint, error)
	SaveFile(ctx context.Context, path string, directoryName string, replace bool) (uint, error)
	GetContent(ctx context.Context, name string, directoryName string) ([]byte, error)
	ListNames(ctx context.Context, directoryName string) ([]string, error)
	ClearDirectory(ctx context.Context, directoryName string) (int64, error)
	FileExists(ctx context.Context, name string, directoryName string) (bool, error)
	DeleteFile(ctx context.Context, name string, directoryName string) (bool, error)
}

var _ Storage = (*store.Engine)(nil)

// Adapter translates paths into calls to a Storage.
//
// Paths without enough segments are not rejected in the same way by every operation.
// Queries return an empty or false result, removals do nothing, and
// only WriteFile returns ErrMalformedPath.
type Adapter struct {
	logger  *slog.Logger
	storage Storage
	parser  Parser

	tempDirectory string
}

func NewAdapter(logger *slog.Logger, conf config.Config, storage Storage) *Adapter {
	return &Adapter{
		logger:        logger,
		storage:       storage,
		parser:        NewParser(conf.Storage.Root),
		tempDirectory: conf.TempDir(),
	}
}

func (adapter *Adapter) Parser() Parser {
	return adapter.parser
}

func (adapter *Adapter) parse(path string) Path {
	parsed, _ := adapter.parser.Parse(path)
	return parsed
}

// MakeDirectories makes sure a bucket exists. Directories below a bucket are not represented,
// so a deeper path only creates its bucket.
func (adapter *Adapter) MakeDirectories(ctx context.Context, path string) error {
	parsed := adapter.parse(path)
	if !parsed.HasBucket() {
		return nil
	}

	_, err := adapter.storage.ResolveDirectoryID(ctx, parsed.Bucket)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("storage.ResolveDirectoryID: %w", err)
	}
	if _, err := adapter.storage.GetOrCreateDirectory(ctx, parsed.Bucket); err != nil {
		return fmt.Errorf("storage.GetOrCreateDirectory: %w", err)
	}
	adapter.logger.DebugContext(ctx, "created a bucket", "bucket", parsed.Bucket)
	return nil
}

func (adapter *Adapter) ListDirectory(ctx context.Context, path string) ([]string, error) {
	parsed := adapter.parse(path)
	if parsed.IsMalformed() {
		return []string{}, nil
	}
	return adapter.storage.ListNames(ctx, parsed.Bucket)
}

// Remove deletes a file, and reports whether a file was deleted
func (adapter *Adapter) Remove(ctx context.Context, path string) (bool, error) {
	parsed := adapter.parse(path)
	if !parsed.HasName() {
		return false, nil
	}
	return adapter.storage.DeleteFile(ctx, parsed.Name, parsed.Bucket)
}

// RemoveTree deletes all files in a bucket, and returns the number of deleted files
func (adapter *Adapter) RemoveTree(ctx context.Context, path string) (int64, error) {
	parsed := adapter.parse(path)
	if parsed.IsMalformed() {
		return 0, nil
	}
	return adapter.storage.ClearDirectory(ctx, parsed.Bucket)
}

func (adapter *Adapter) Exists(ctx context.Context, path string) (bool, error) {
	parsed := adapter.parse(path)
	if parsed.IsMalformed() {
		return false, nil
	}
	if parsed.IsBucket() {
		return adapter.bucketExists(ctx, parsed.Bucket)
	}
	return adapter.fileExists(ctx, parsed)
}

func (adapter *Adapter) IsDir(ctx context.Context, path string) (bool, error) {
	parsed := adapter.parse(path)
	if !parsed.IsBucket() {
		return false, nil
	}
	return adapter.bucketExists(ctx, parsed.Bucket)
}

func (adapter *Adapter) IsFile(ctx context.Context, path string) (bool, error) {
	parsed := adapter.parse(path)
	if !parsed.HasName() {
		return false, nil
	}
	return adapter.fileExists(ctx, parsed)
}

func (adapter *Adapter) bucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := adapter.storage.ResolveDirectoryID(ctx, bucket)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("storage.ResolveDirectoryID: %w", err)
	}
	return true, nil
}

func (adapter *Adapter) fileExists(ctx context.Context, parsed Path) (bool, error) {
	exists, err := adapter.storage.FileExists(ctx, parsed.Name, parsed.Bucket)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("storage.FileExists: %w", err)
	}
	return exists, nil
}

// ReadFile returns the whole content of a file.
// When the file is not in the store, the path is read from the local disk instead.
func (adapter *Adapter) ReadFile(ctx context.Context, path string) ([]byte, error) {
	parsed := adapter.parse(path)
	if parsed.HasName() {
		content, err := adapter.storage.GetContent(ctx, parsed.Name, parsed.Bucket)
		if err == nil {
			return content, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("storage.GetContent: %w", err)
		}
		adapter.logger.DebugContext(ctx, "a file is not in the store. Read it from a disk",
			"path", path,
		)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile: %w", err)
	}
	return content, nil
}

func (adapter *Adapter) ReadText(ctx context.Context, path string) (string, error) {
	content, err := adapter.ReadFile(ctx, path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: %s", ErrInvalidText, path)
	}
	return string(content), nil
}

// WriteFile saves the whole content through a temporary file on a local disk.
// A file with the same name in the bucket is replaced.
func (adapter *Adapter) WriteFile(ctx context.Context, path string, content []byte) error {
	parsed := adapter.parse(path)
	if !parsed.HasName() {
		return fmt.Errorf("%w: %s", ErrMalformedPath, path)
	}

	if err := os.MkdirAll(adapter.tempDirectory, 0755); err != nil {
		return fmt.Errorf("os.MkdirAll: %w", err)
	}
	tempDirectory, err := os.MkdirTemp(adapter.tempDirectory, "write-*")
	if err != nil {
		return fmt.Errorf("os.MkdirTemp: %w", err)
	}
	defer os.RemoveAll(tempDirectory)

	tempPath := filepath.Join(tempDirectory, parsed.Name)
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return fmt.Errorf("os.WriteFile: %w", err)
	}
	if _, err := adapter.storage.SaveFile(ctx, tempPath, parsed.Bucket, true); err != nil {
		return fmt.Errorf("storage.SaveFile: %w", err)
	}
	return nil
}
