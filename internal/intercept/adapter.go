package intercept

import (
	"context"
)

//go:generate go run go.uber.org/mock/mockgen -source=adapter.go -destination=adapter_mock_test.go -package=intercept

// Adapter serves virtual paths. It is implemented by vfs.Adapter
type Adapter interface {
	MakeDirectories(ctx context.Context, path string) error
	ListDirectory(ctx context.Context, path string) ([]string, error)
	Remove(ctx context.Context, path string) (bool, error)
	RemoveTree(ctx context.Context, path string) (int64, error)
	Exists(ctx context.Context, path string) (bool, error)
	IsDir(ctx context.Context, path string) (bool, error)
	IsFile(ctx context.Context, path string) (bool, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, content []byte) error
}
