package import_files

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/michael-freling/ml-artifact-store/internal/config"
	"github.com/michael-freling/ml-artifact-store/internal/db"
	"github.com/michael-freling/ml-artifact-store/internal/store"
	"github.com/michael-freling/ml-artifact-store/internal/xassert"
	"github.com/michael-freling/ml-artifact-store/internal/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tester struct {
	engine          *store.Engine
	sourceDirectory string
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
	return tester{
		engine:          store.NewEngine(xlog.Nop(), conf, db.NewTestClient(t).Client),
		sourceDirectory: t.TempDir(),
	}
}

func (tester tester) getBatchFileImporter() *BatchFileImporter {
	return NewBatchFileImporter(xlog.Nop(), tester.engine)
}

func (tester tester) createFile(t *testing.T, relativePath string, content string) string {
	t.Helper()

	path := filepath.Join(tester.sourceDirectory, relativePath)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestBatchFileImporter_ImportFiles(t *testing.T) {
	testCases := []struct {
		name          string
		existingFiles map[string]string
		files         map[string]string
		paths         []string
		replace       bool
		wantNames     []string
		wantContents  map[string]string
		wantFailed    []string
		wantErr       error
	}{
		{
			name: "import files and a directory",
			files: map[string]string{
				"a.csv":           "a",
				"dir/b.csv":       "b",
				"dir/c.csv":       "c",
				"dir/nested/d.md": "skipped",
			},
			paths:     []string{"a.csv", "dir"},
			wantNames: []string{"a.csv", "b.csv", "c.csv"},
			wantContents: map[string]string{
				"a.csv": "a",
				"b.csv": "b",
				"c.csv": "c",
			},
		},
		{
			name:          "an existing file is not overwritten without replace",
			existingFiles: map[string]string{"a.csv": "old"},
			files: map[string]string{
				"a.csv": "new",
				"b.csv": "b",
			},
			paths:     []string{"a.csv", "b.csv"},
			wantNames: []string{"b.csv"},
			wantContents: map[string]string{
				"a.csv": "old",
				"b.csv": "b",
			},
			wantFailed: []string{"a.csv"},
			wantErr:    ErrFileAlreadyExists,
		},
		{
			name:          "replace an existing file",
			existingFiles: map[string]string{"a.csv": "old"},
			files:         map[string]string{"a.csv": "new"},
			paths:         []string{"a.csv"},
			replace:       true,
			wantNames:     []string{"a.csv"},
			wantContents:  map[string]string{"a.csv": "new"},
		},
		{
			name: "duplicated names in a batch",
			files: map[string]string{
				"x/a.csv": "x",
				"y/a.csv": "y",
				"b.csv":   "b",
			},
			paths:        []string{"x", "y", "b.csv"},
			wantNames:    []string{"b.csv"},
			wantContents: map[string]string{"b.csv": "b"},
			wantFailed:   []string{"x/a.csv", "y/a.csv"},
			wantErr:      ErrDuplicatedName,
		},
		{
			name:       "missing path",
			files:      map[string]string{},
			paths:      []string{"missing.csv"},
			wantNames:  []string{},
			wantFailed: []string{"missing.csv"},
			wantErr:    os.ErrNotExist,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tester := newTester(t)
			ctx := context.Background()
			for name, content := range tc.existingFiles {
				_, err := tester.engine.SaveContent(ctx, []byte(content), name, "datasets", true)
				require.NoError(t, err)
			}
			for relativePath, content := range tc.files {
				tester.createFile(t, relativePath, content)
			}
			paths := make([]string, 0, len(tc.paths))
			for _, path := range tc.paths {
				paths = append(paths, filepath.Join(tester.sourceDirectory, path))
			}

			progressNotifier := NewProgressNotifier()
			got, err := tester.getBatchFileImporter().ImportFiles(ctx, "datasets", paths, tc.replace, progressNotifier)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}

			gotNames := make([]string, 0, len(got))
			for _, importedFile := range got {
				assert.NotZero(t, importedFile.ID)
				gotNames = append(gotNames, importedFile.Name)
			}
			xassert.ElementsMatch(t, tc.wantNames, gotNames)
			assert.Equal(t, len(tc.wantNames), progressNotifier.Completed)

			wantFailedPaths := make([]string, 0, len(tc.wantFailed))
			for _, path := range tc.wantFailed {
				wantFailedPaths = append(wantFailedPaths, filepath.Join(tester.sourceDirectory, path))
			}
			xassert.ElementsMatch(t, wantFailedPaths, progressNotifier.FailedPaths)

			for name, want := range tc.wantContents {
				content, err := tester.engine.GetContent(ctx, name, "datasets")
				require.NoError(t, err)
				assert.Equal(t, want, string(content))
			}
		})
	}
}

func TestBatchFileImporter_UnknownBucket(t *testing.T) {
	tester := newTester(t)
	path := tester.createFile(t, "a.csv", "a")

	_, err := tester.getBatchFileImporter().ImportFiles(context.Background(), "unknown", []string{path}, false, NewProgressNotifier())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProgressNotifier_Run(t *testing.T) {
	notifier := NewProgressNotifier()
	notifier.addSuccess()
	notifier.addSuccess()
	notifier.addFailure("a.csv", ErrDuplicatedName)

	done := make(chan struct{})
	close(done)

	var gotCompleted, gotFailed int
	notifier.Run(done, time.Hour, func(completed int, failed int) {
		gotCompleted, gotFailed = completed, failed
	})
	assert.Equal(t, 2, gotCompleted)
	assert.Equal(t, 1, gotFailed)
	assert.ErrorIs(t, notifier.Err(), ErrDuplicatedName)
}
