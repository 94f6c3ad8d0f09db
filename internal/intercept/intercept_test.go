package intercept

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/michael-freling/ml-artifact-store/internal/config"
	"github.com/michael-freling/ml-artifact-store/internal/db"
	"github.com/michael-freling/ml-artifact-store/internal/store"
	"github.com/michael-freling/ml-artifact-store/internal/vfs"
	"github.com/michael-freling/ml-artifact-store/internal/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tester struct {
	engine  *store.Engine
	adapter *vfs.Adapter
}

func newTester(t *testing.T) tester {
	t.Helper()

	conf := config.Config{
		TempDirectory: t.TempDir(),
		Storage: config.StorageConfig{
			Root:    db.TestRootName,
			Buckets: db.TestBucketNames,
		},
	}
	engine := store.NewEngine(xlog.Nop(), conf, db.NewTestClient(t).Client)
	return tester{
		engine:  engine,
		adapter: vfs.NewAdapter(xlog.Nop(), conf, engine),
	}
}

func (tester tester) activate(t *testing.T) *Router {
	t.Helper()

	t.Cleanup(func() {
		activeRouter.Store(nil)
	})
	return Activate(xlog.Nop(), tester.adapter, tester.adapter.Parser())
}

func TestActivate(t *testing.T) {
	first := newTester(t)
	second := newTester(t)
	assert.False(t, IsActive())

	router := first.activate(t)
	assert.True(t, IsActive())
	assert.Same(t, router, Activate(xlog.Nop(), second.adapter, second.adapter.Parser()))
	assert.Same(t, router, current())

	// the active router wraps the original primitives, not another router
	assert.Equal(t, OSPrimitives(), router.primitives)
}

func TestPassthroughBeforeActivation(t *testing.T) {
	require.False(t, IsActive())
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ml_system", "datasets", "t.csv")

	require.NoError(t, MkdirAll(ctx, filepath.Dir(path), 0755))
	require.NoError(t, WriteFile(ctx, path, []byte("on disk"), 0644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "on disk", string(got))
}

func TestWriteBufferLifecycle(t *testing.T) {
	tester := newTester(t)
	tester.activate(t)
	ctx := context.Background()
	path := "/work/ml_system/models/weights.bin"

	file, err := Create(ctx, path)
	require.NoError(t, err)
	_, err = file.Write([]byte("part1,"))
	require.NoError(t, err)
	require.NoError(t, file.Sync())
	_, err = file.Write([]byte("part2"))
	require.NoError(t, err)

	// nothing is visible before Close
	assert.False(t, IsFile(ctx, path))
	_, err = Open(ctx, path)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, file.Close())
	assert.ErrorIs(t, file.Close(), fs.ErrClosed)

	got, err := ReadFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "part1,part2", string(got))

	names, err := tester.engine.ListNames(ctx, "models")
	require.NoError(t, err)
	assert.Equal(t, []string{"weights.bin"}, names)
}

func TestWriteBufferLifecycle_ExistingFile(t *testing.T) {
	tester := newTester(t)
	tester.activate(t)
	ctx := context.Background()
	path := "/work/ml_system/datasets/t.csv"
	require.NoError(t, WriteFile(ctx, path, []byte("old"), 0644))

	file, err := Create(ctx, path)
	require.NoError(t, err)
	_, err = file.Write([]byte("new"))
	require.NoError(t, err)

	// readers see the committed content until Close
	got, err := ReadFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))

	require.NoError(t, file.Close())
	got, err = ReadFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))

	names, err := tester.engine.ListNames(ctx, "datasets")
	require.NoError(t, err)
	assert.Equal(t, []string{"t.csv"}, names)
}

func TestVirtualFileSystem(t *testing.T) {
	tester := newTester(t)
	tester.activate(t)
	ctx := context.Background()

	require.NoError(t, MkdirAll(ctx, "/work/ml_system/reports", 0755))
	assert.True(t, IsDir(ctx, "/work/ml_system/reports"))

	require.NoError(t, WriteFile(ctx, "/work/ml_system/reports/summary.txt", []byte("v1"), 0644))
	require.NoError(t, WriteFile(ctx, "/work/ml_system/reports/summary.txt", []byte("v2"), 0644))

	file, err := OpenFile(ctx, "/work/ml_system/reports/summary.txt", os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = file.Write([]byte(",v3"))
	require.NoError(t, err)
	require.NoError(t, file.Close())

	_, err = OpenFile(ctx, "/work/ml_system/reports/summary.txt", os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	assert.ErrorIs(t, err, fs.ErrExist)

	file, err = Open(ctx, "/work/ml_system/reports/summary.txt")
	require.NoError(t, err)
	got, err := io.ReadAll(file)
	require.NoError(t, err)
	require.NoError(t, file.Close())
	assert.Equal(t, "v2,v3", string(got))

	names, err := ListDir(ctx, "/work/ml_system/reports")
	require.NoError(t, err)
	assert.Equal(t, []string{"summary.txt"}, names)
	assert.True(t, Exists(ctx, "/work/ml_system/reports/summary.txt"))

	require.NoError(t, Remove(ctx, "/work/ml_system/reports/summary.txt"))
	assert.False(t, Exists(ctx, "/work/ml_system/reports/summary.txt"))

	require.NoError(t, WriteFile(ctx, "/work/ml_system/reports/a.txt", []byte("a"), 0644))
	require.NoError(t, WriteFile(ctx, "/work/ml_system/reports/b.txt", []byte("b"), 0644))
	require.NoError(t, RemoveAll(ctx, "/work/ml_system/reports"))
	names, err = ListDir(ctx, "/work/ml_system/reports")
	require.NoError(t, err)
	assert.Empty(t, names)

	// a bucket itself remains
	assert.True(t, IsDir(ctx, "/work/ml_system/reports"))
}
