// Package intercept routes file system operations on virtual paths to a store.
//
// Code which should work with both a local disk and a store uses the functions of this package
// instead of the os package. Before Activate is called, every path goes to the os package.
package intercept

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/michael-freling/ml-artifact-store/internal/vfs"
	"github.com/michael-freling/ml-artifact-store/internal/xlog"
)

var (
	activation   sync.Mutex
	activeRouter atomic.Pointer[Router]

	passthrough = NewRouter(xlog.Nop(), nil, vfs.Parser{}, OSPrimitives())
)

// Activate installs a Router for the whole process.
// Activate is idempotent: once a router is installed, later calls return it
// and the original primitives are never wrapped twice.
func Activate(logger *slog.Logger, adapter Adapter, parser vfs.Parser) *Router {
	activation.Lock()
	defer activation.Unlock()

	if router := activeRouter.Load(); router != nil {
		return router
	}
	router := NewRouter(logger, adapter, parser, OSPrimitives())
	activeRouter.Store(router)
	logger.Info("activated a file system interception", "root", parser.Root())
	return router
}

func IsActive() bool {
	return activeRouter.Load() != nil
}

func current() FileSystem {
	if router := activeRouter.Load(); router != nil {
		return router
	}
	return passthrough
}

func MkdirAll(ctx context.Context, path string, perm fs.FileMode) error {
	return current().MkdirAll(ctx, path, perm)
}

func ListDir(ctx context.Context, path string) ([]string, error) {
	return current().ListDir(ctx, path)
}

func Remove(ctx context.Context, path string) error {
	return current().Remove(ctx, path)
}

func RemoveAll(ctx context.Context, path string) error {
	return current().RemoveAll(ctx, path)
}

func Exists(ctx context.Context, path string) bool {
	return current().Exists(ctx, path)
}

func IsDir(ctx context.Context, path string) bool {
	return current().IsDir(ctx, path)
}

func IsFile(ctx context.Context, path string) bool {
	return current().IsFile(ctx, path)
}

func Open(ctx context.Context, path string) (File, error) {
	return current().Open(ctx, path)
}

func Create(ctx context.Context, path string) (File, error) {
	return current().Create(ctx, path)
}

func OpenFile(ctx context.Context, path string, flag int, perm fs.FileMode) (File, error) {
	return current().OpenFile(ctx, path, flag, perm)
}

func ReadFile(ctx context.Context, path string) ([]byte, error) {
	file, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// WriteFile writes data like os.WriteFile. For a virtual path, data is saved when this returns
func WriteFile(ctx context.Context, path string, data []byte, perm fs.FileMode) error {
	file, err := OpenFile(ctx, path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
