package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/michael-freling/ml-artifact-store/internal/config"
	"github.com/michael-freling/ml-artifact-store/internal/db"
	"github.com/samber/lo"
)

type FileInfo struct {
	Name        string
	Directory   string
	Size        int64
	ContentType string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Engine stores files in directories of a relational database.
// It knows nothing about paths except a directory path for GetOrCreateDirectory.
type Engine struct {
	logger   *slog.Logger
	dbClient *db.Client

	rootName      string
	bucketNames   []string
	tempDirectory string
}

func NewEngine(logger *slog.Logger, conf config.Config, dbClient *db.Client) *Engine {
	return &Engine{
		logger:        logger,
		dbClient:      dbClient,
		rootName:      conf.Storage.Root,
		bucketNames:   conf.Storage.Buckets,
		tempDirectory: conf.TempDir(),
	}
}

func (engine *Engine) RootName() string {
	return engine.rootName
}

func (engine *Engine) Initialize(ctx context.Context) error {
	if err := engine.dbClient.Migrate(ctx, engine.rootName, engine.bucketNames); err != nil {
		return fmt.Errorf("dbClient.Migrate: %w", err)
	}
	engine.logger.DebugContext(ctx, "initialized a store",
		"root", engine.rootName,
		"buckets", engine.bucketNames,
	)
	return nil
}

func (engine *Engine) ResolveDirectoryID(ctx context.Context, name string) (uint, error) {
	directory, err := engine.dbClient.Directory().FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: %s", ErrDirectoryNotFound, name)
		}
		return 0, fmt.Errorf("Directory.FindByName: %w", err)
	}
	return directory.ID, nil
}

// GetOrCreateDirectory walks a slash separated path from the root directory,
// and creates missing directories on the way. A leading root name is skipped.
// Because directory names are unique in the whole tree, an existing directory
// under another parent is reported as ErrDirectoryConflict.
func (engine *Engine) GetOrCreateDirectory(ctx context.Context, path string) (uint, error) {
	parentID, err := engine.ResolveDirectoryID(ctx, engine.rootName)
	if err != nil {
		return 0, err
	}

	segments := splitPath(path)
	if len(segments) > 0 && segments[0] == engine.rootName {
		segments = segments[1:]
	}

	directoryClient := engine.dbClient.Directory()
	for _, name := range segments {
		if err := directoryClient.CreateIfAbsent(ctx, &db.Directory{
			Name:     name,
			ParentID: &parentID,
		}); err != nil {
			return 0, fmt.Errorf("Directory.CreateIfAbsent: %w", err)
		}
		directory, err := directoryClient.FindByName(ctx, name)
		if err != nil {
			return 0, fmt.Errorf("Directory.FindByName: %w", err)
		}
		if directory.ParentID == nil || *directory.ParentID != parentID {
			return 0, fmt.Errorf("%w: %s in %s", ErrDirectoryConflict, name, path)
		}
		parentID = directory.ID
	}
	return parentID, nil
}

// SaveContent stores content and returns the ID of the file.
// With replace, the live file with the same name is updated in place.
// Otherwise a new file is inserted even if the name is already used.
func (engine *Engine) SaveContent(ctx context.Context, content []byte, name string, directoryName string, replace bool) (uint, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}
	directoryID, err := engine.ResolveDirectoryID(ctx, directoryName)
	if err != nil {
		return 0, err
	}
	contentType := ContentType(name, content)

	var fileID uint
	err = db.NewTransaction(ctx, engine.dbClient, func(ctx context.Context) error {
		// saves of the same directory are serialized, so concurrent saves cannot both miss the live file
		if err := engine.dbClient.Directory().LockByID(ctx, directoryID); err != nil {
			return fmt.Errorf("Directory.LockByID: %w", err)
		}

		fileClient := engine.dbClient.File()
		existing, err := fileClient.FindInfoByName(ctx, directoryID, name)
		if err == nil && replace {
			if err := fileClient.UpdateContent(ctx, existing.ID, content, contentType); err != nil {
				return fmt.Errorf("File.UpdateContent: %w", err)
			}
			fileID = existing.ID
			return nil
		}
		if err != nil && !errors.Is(err, db.ErrRecordNotFound) {
			return fmt.Errorf("File.FindInfoByName: %w", err)
		}

		file := db.File{
			Name:        name,
			DirectoryID: directoryID,
			Content:     content,
			ContentType: contentType,
		}
		if err := fileClient.Create(ctx, &file); err != nil {
			return fmt.Errorf("File.Create: %w", err)
		}
		fileID = file.ID
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("db.NewTransaction: %w", err)
	}

	engine.logger.DebugContext(ctx, "saved a file",
		"directory", directoryName,
		"name", name,
		"fileID", fileID,
		"size", len(content),
	)
	return fileID, nil
}

// SaveFile stores a file on a local disk under its base name
func (engine *Engine) SaveFile(ctx context.Context, path string, directoryName string, replace bool) (uint, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return 0, fmt.Errorf("os.ReadFile: %w", err)
	}
	return engine.SaveContent(ctx, content, filepath.Base(path), directoryName, replace)
}

func (engine *Engine) GetContent(ctx context.Context, name string, directoryName string) ([]byte, error) {
	directoryID, err := engine.ResolveDirectoryID(ctx, directoryName)
	if err != nil {
		return nil, err
	}

	file, err := engine.dbClient.File().FindByName(ctx, directoryID, name)
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s in %s", ErrFileNotFound, name, directoryName)
		}
		return nil, fmt.Errorf("File.FindByName: %w", err)
	}
	if file.Content == nil {
		return []byte{}, nil
	}
	return file.Content, nil
}

// MaterializeContent writes content of a file into a temporary directory and returns the path.
// The caller owns the returned file and its directory.
func (engine *Engine) MaterializeContent(ctx context.Context, name string, directoryName string) (string, error) {
	content, err := engine.GetContent(ctx, name, directoryName)
	if err != nil {
		return "", err
	}

	directory := filepath.Join(engine.tempDirectory, uuid.NewString())
	if err := os.MkdirAll(directory, 0755); err != nil {
		return "", fmt.Errorf("os.MkdirAll: %w", err)
	}
	path := filepath.Join(directory, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("os.WriteFile: %w", err)
	}
	return path, nil
}

func (engine *Engine) Stat(ctx context.Context, name string, directoryName string) (FileInfo, error) {
	directoryID, err := engine.ResolveDirectoryID(ctx, directoryName)
	if err != nil {
		return FileInfo{}, err
	}

	info, err := engine.dbClient.File().FindInfoByName(ctx, directoryID, name)
	if err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			return FileInfo{}, fmt.Errorf("%w: %s in %s", ErrFileNotFound, name, directoryName)
		}
		return FileInfo{}, fmt.Errorf("File.FindInfoByName: %w", err)
	}
	return FileInfo{
		Name:        info.Name,
		Directory:   directoryName,
		Size:        info.Size,
		ContentType: info.ContentType,
		CreatedAt:   info.CreatedAt,
		UpdatedAt:   info.UpdatedAt,
	}, nil
}

func (engine *Engine) ListNames(ctx context.Context, directoryName string) ([]string, error) {
	directoryID, err := engine.ResolveDirectoryID(ctx, directoryName)
	if err != nil {
		return nil, err
	}

	names, err := engine.dbClient.File().FindNamesByDirectoryID(ctx, directoryID)
	if err != nil {
		return nil, fmt.Errorf("File.FindNamesByDirectoryID: %w", err)
	}
	return names, nil
}

// ListDirectories returns names of the direct children of a directory
func (engine *Engine) ListDirectories(ctx context.Context, directoryName string) ([]string, error) {
	directoryID, err := engine.ResolveDirectoryID(ctx, directoryName)
	if err != nil {
		return nil, err
	}

	children, err := engine.dbClient.Directory().FindChildren(ctx, directoryID)
	if err != nil {
		return nil, fmt.Errorf("Directory.FindChildren: %w", err)
	}
	return lo.Map(children, func(directory db.Directory, _ int) string {
		return directory.Name
	}), nil
}

func (engine *Engine) ClearDirectory(ctx context.Context, directoryName string) (int64, error) {
	directoryID, err := engine.ResolveDirectoryID(ctx, directoryName)
	if err != nil {
		return 0, err
	}

	deleted, err := engine.dbClient.File().DeleteByDirectoryID(ctx, directoryID)
	if err != nil {
		return 0, fmt.Errorf("File.DeleteByDirectoryID: %w", err)
	}
	engine.logger.DebugContext(ctx, "cleared a directory",
		"directory", directoryName,
		"deleted", deleted,
	)
	return deleted, nil
}

func (engine *Engine) FileExists(ctx context.Context, name string, directoryName string) (bool, error) {
	directoryID, err := engine.ResolveDirectoryID(ctx, directoryName)
	if err != nil {
		return false, err
	}

	exists, err := engine.dbClient.File().Exists(ctx, directoryID, name)
	if err != nil {
		return false, fmt.Errorf("File.Exists: %w", err)
	}
	return exists, nil
}

// DeleteFile deletes all files with the name, and reports if any of them was deleted
func (engine *Engine) DeleteFile(ctx context.Context, name string, directoryName string) (bool, error) {
	directoryID, err := engine.ResolveDirectoryID(ctx, directoryName)
	if err != nil {
		return false, err
	}

	deleted, err := engine.dbClient.File().DeleteByName(ctx, directoryID, name)
	if err != nil {
		return false, fmt.Errorf("File.DeleteByName: %w", err)
	}
	return deleted > 0, nil
}

func splitPath(path string) []string {
	path = strings.ReplaceAll(path, `\`, "/")
	return lo.Filter(strings.Split(path, "/"), func(segment string, _ int) bool {
		return segment != ""
	})
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
