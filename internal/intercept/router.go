package intercept

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"

	"github.com/michael-freling/ml-artifact-store/internal/store"
	"github.com/michael-freling/ml-artifact-store/internal/vfs"
	"github.com/samber/lo"
)

// FileSystem is a set of file system operations
type FileSystem interface {
	MkdirAll(ctx context.Context, path string, perm fs.FileMode) error
	ListDir(ctx context.Context, path string) ([]string, error)
	Remove(ctx context.Context, path string) error
	RemoveAll(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) bool
	IsDir(ctx context.Context, path string) bool
	IsFile(ctx context.Context, path string) bool
	Open(ctx context.Context, path string) (File, error)
	Create(ctx context.Context, path string) (File, error)
	OpenFile(ctx context.Context, path string, flag int, perm fs.FileMode) (File, error)
}

// Router sends virtual paths to an Adapter and other paths to Primitives
type Router struct {
	logger     *slog.Logger
	adapter    Adapter
	parser     vfs.Parser
	primitives Primitives
}

var _ FileSystem = (*Router)(nil)

func NewRouter(logger *slog.Logger, adapter Adapter, parser vfs.Parser, primitives Primitives) *Router {
	return &Router{
		logger:     logger,
		adapter:    adapter,
		parser:     parser,
		primitives: primitives,
	}
}

func (router *Router) route(name string) (vfs.Path, bool) {
	if router.adapter == nil {
		return vfs.Path{}, false
	}
	return router.parser.Parse(name)
}

func notExist(op string, name string, err error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	return &fs.PathError{Op: op, Path: name, Err: err}
}

func (router *Router) MkdirAll(ctx context.Context, name string, perm fs.FileMode) error {
	if _, ok := router.route(name); !ok {
		return router.primitives.MkdirAll(name, perm)
	}
	if err := router.adapter.MakeDirectories(ctx, name); err != nil {
		return &fs.PathError{Op: "mkdir", Path: name, Err: err}
	}
	return nil
}

// ListDir returns names in a directory sorted by name
func (router *Router) ListDir(ctx context.Context, name string) ([]string, error) {
	if _, ok := router.route(name); !ok {
		entries, err := router.primitives.ReadDir(name)
		if err != nil {
			return nil, err
		}
		return lo.Map(entries, func(entry fs.DirEntry, _ int) string {
			return entry.Name()
		}), nil
	}

	names, err := router.adapter.ListDirectory(ctx, name)
	if err != nil {
		return nil, notExist("readdir", name, err)
	}
	return names, nil
}

// Remove deletes a file. A missing virtual file in an existing bucket is not an error
func (router *Router) Remove(ctx context.Context, name string) error {
	if _, ok := router.route(name); !ok {
		return router.primitives.Remove(name)
	}

	removed, err := router.adapter.Remove(ctx, name)
	if err != nil {
		return notExist("remove", name, err)
	}
	if !removed {
		router.logger.DebugContext(ctx, "no virtual file was removed", "path", name)
	}
	return nil
}

// RemoveAll removes all files in a bucket. Like os.RemoveAll, a missing bucket is not an error
func (router *Router) RemoveAll(ctx context.Context, name string) error {
	if _, ok := router.route(name); !ok {
		return router.primitives.RemoveAll(name)
	}

	deleted, err := router.adapter.RemoveTree(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return &fs.PathError{Op: "unlinkat", Path: name, Err: err}
	}
	router.logger.DebugContext(ctx, "removed virtual files",
		"path", name,
		"deleted", deleted,
	)
	return nil
}

func (router *Router) check(ctx context.Context, name string, f func(context.Context, string) (bool, error)) bool {
	result, err := f(ctx, name)
	if err != nil {
		router.logger.WarnContext(ctx, "failed to check a virtual path",
			"path", name,
			"error", err,
		)
		return false
	}
	return result
}

func (router *Router) Exists(ctx context.Context, name string) bool {
	if _, ok := router.route(name); !ok {
		_, err := router.primitives.Stat(name)
		return err == nil
	}
	return router.check(ctx, name, router.adapter.Exists)
}

func (router *Router) IsDir(ctx context.Context, name string) bool {
	if _, ok := router.route(name); !ok {
		info, err := router.primitives.Stat(name)
		return err == nil && info.IsDir()
	}
	return router.check(ctx, name, router.adapter.IsDir)
}

func (router *Router) IsFile(ctx context.Context, name string) bool {
	if _, ok := router.route(name); !ok {
		info, err := router.primitives.Stat(name)
		return err == nil && info.Mode().IsRegular()
	}
	return router.check(ctx, name, router.adapter.IsFile)
}

func (router *Router) Open(ctx context.Context, name string) (File, error) {
	return router.OpenFile(ctx, name, os.O_RDONLY, 0)
}

func (router *Router) Create(ctx context.Context, name string) (File, error) {
	return router.OpenFile(ctx, name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

// OpenFile opens a file like os.OpenFile.
//
// A virtual file opened only for reading is read into memory at once.
// A virtual file opened for writing is buffered in memory,
// and the content is saved when the returned File is closed.
func (router *Router) OpenFile(ctx context.Context, name string, flag int, perm fs.FileMode) (File, error) {
	parsed, ok := router.route(name)
	if !ok {
		return router.primitives.OpenFile(name, flag, perm)
	}

	accessMode := flag & (os.O_RDONLY | os.O_WRONLY | os.O_RDWR)
	if accessMode == os.O_RDONLY {
		content, err := router.adapter.ReadFile(ctx, name)
		if err != nil {
			return nil, notExist("open", name, err)
		}
		return newReadFile(name, content), nil
	}
	return router.openWriteBuffer(ctx, name, parsed, flag, accessMode)
}

func (router *Router) openWriteBuffer(ctx context.Context, name string, parsed vfs.Path, flag int, accessMode int) (File, error) {
	if !parsed.HasName() {
		return nil, &fs.PathError{Op: "open", Path: name, Err: vfs.ErrMalformedPath}
	}

	bucketPath := path.Join(router.parser.Root(), parsed.Bucket)
	bucketExists, err := router.adapter.IsDir(ctx, bucketPath)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	if !bucketExists {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	exists, err := router.adapter.IsFile(ctx, name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	if exists && flag&(os.O_CREATE|os.O_EXCL) == os.O_CREATE|os.O_EXCL {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrExist}
	}
	if !exists && flag&os.O_CREATE == 0 {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}

	buffer := &writeBuffer{
		ctx:      ctx,
		adapter:  router.adapter,
		name:     name,
		state:    bufferStateOpen,
		readable: accessMode == os.O_RDWR,
		append:   flag&os.O_APPEND != 0,
	}
	if exists && flag&os.O_TRUNC == 0 {
		content, err := router.adapter.ReadFile(ctx, name)
		if err != nil {
			return nil, notExist("open", name, err)
		}
		buffer.content = append([]byte(nil), content...)
	}
	router.logger.DebugContext(ctx, "opened a write buffer",
		"path", name,
		"flag", fmt.Sprintf("%#x", flag),
		"preloaded", len(buffer.content),
	)
	return buffer, nil
}
