package import_files

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/michael-freling/ml-artifact-store/internal/store"
	"golang.org/x/sync/errgroup"
)

var (
	ErrFileAlreadyExists = errors.New("file already exists")
	ErrDuplicatedName    = errors.New("duplicated file name in a batch")
	ErrNotRegularFile    = errors.New("not a regular file")
)

const defaultConcurrency = 8

// Storage is the part of store.Engine used by BatchFileImporter
type Storage interface {
	ResolveDirectoryID(ctx context.Context, name string) (uint, error)
	FileExists(ctx context.Context, name string, directoryName string) (bool, error)
	SaveFile(ctx context.Context, path string, directoryName string, replace bool) (uint, error)
}

var _ Storage = (*store.Engine)(nil)

type ImportedFile struct {
	ID             uint
	Name           string
	SourceFilePath string
}

type BatchFileImporter struct {
	logger      *slog.Logger
	storage     Storage
	concurrency int
}

func NewBatchFileImporter(logger *slog.Logger, storage Storage) *BatchFileImporter {
	return &BatchFileImporter{
		logger:      logger,
		storage:     storage,
		concurrency: defaultConcurrency,
	}
}

// readFilePaths expands directories into the regular files directly under them.
// Subdirectories are skipped because a bucket has no directories
func (batchImporter *BatchFileImporter) readFilePaths(ctx context.Context, paths []string, progressNotifier *ProgressNotifier) []string {
	result := make([]string, 0, len(paths))
	for _, path := range paths {
		pathStat, err := os.Stat(path)
		if err != nil {
			progressNotifier.addFailure(path, fmt.Errorf("os.Stat: %w", err))
			continue
		}
		if !pathStat.IsDir() {
			if !pathStat.Mode().IsRegular() {
				progressNotifier.addFailure(path, fmt.Errorf("%w: %s", ErrNotRegularFile, path))
				continue
			}
			result = append(result, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			progressNotifier.addFailure(path, fmt.Errorf("os.ReadDir: %w", err))
			continue
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				batchImporter.logger.DebugContext(ctx, "skip a path which is not a regular file",
					"directory", path,
					"name", entry.Name(),
				)
				continue
			}
			result = append(result, filepath.Join(path, entry.Name()))
		}
	}
	return result
}

// validateFiles drops files whose names are used twice in a batch,
// or are already used in a bucket unless they are replaced.
func (batchImporter *BatchFileImporter) validateFiles(
	ctx context.Context,
	bucket string,
	sourceFilePaths []string,
	replace bool,
	progressNotifier *ProgressNotifier,
) ([]string, error) {
	pathsByName := make(map[string][]string, len(sourceFilePaths))
	for _, sourceFilePath := range sourceFilePaths {
		name := filepath.Base(sourceFilePath)
		pathsByName[name] = append(pathsByName[name], sourceFilePath)
	}

	validPaths := make([]string, len(sourceFilePaths))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(batchImporter.concurrency)
	for index, sourceFilePath := range sourceFilePaths {
		eg.Go(func() error {
			name := filepath.Base(sourceFilePath)
			if len(pathsByName[name]) > 1 {
				progressNotifier.addFailure(sourceFilePath, fmt.Errorf("%w: %s", ErrDuplicatedName, name))
				return nil
			}
			if replace {
				validPaths[index] = sourceFilePath
				return nil
			}

			exists, err := batchImporter.storage.FileExists(egCtx, name, bucket)
			if err != nil {
				// unexpected error and stop importing
				return fmt.Errorf("storage.FileExists: %w", err)
			}
			if exists {
				progressNotifier.addFailure(sourceFilePath, fmt.Errorf("%w: %s in %s", ErrFileAlreadyExists, name, bucket))
				return nil
			}
			validPaths[index] = sourceFilePath
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	result := make([]string, 0, len(validPaths))
	for _, path := range validPaths {
		if path == "" {
			continue
		}
		result = append(result, path)
	}
	return result, nil
}

// ImportFiles saves files and files directly under directories into a bucket.
// A file which fails to be imported is recorded in progressNotifier,
// and the errors are joined and returned together with the imported files.
func (batchImporter *BatchFileImporter) ImportFiles(
	ctx context.Context,
	bucket string,
	paths []string,
	replace bool,
	progressNotifier *ProgressNotifier,
) ([]ImportedFile, error) {
	if _, err := batchImporter.storage.ResolveDirectoryID(ctx, bucket); err != nil {
		return nil, fmt.Errorf("storage.ResolveDirectoryID: %w", err)
	}

	sourceFilePaths := batchImporter.readFilePaths(ctx, paths, progressNotifier)
	sourceFilePaths, err := batchImporter.validateFiles(ctx, bucket, sourceFilePaths, replace, progressNotifier)
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("validateFiles: %w", err),
			progressNotifier.Err(),
		)
	}
	batchImporter.logger.DebugContext(ctx, "importFiles",
		"bucket", bucket,
		"sourceFilePaths", sourceFilePaths,
	)
	if len(sourceFilePaths) == 0 {
		return nil, progressNotifier.Err()
	}

	results := make([]ImportedFile, len(sourceFilePaths))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(batchImporter.concurrency)
	for index, sourceFilePath := range sourceFilePaths {
		eg.Go(func() error {
			fileID, err := batchImporter.storage.SaveFile(egCtx, sourceFilePath, bucket, replace)
			if err != nil {
				progressNotifier.addFailure(sourceFilePath, fmt.Errorf("storage.SaveFile: %w", err))
				return nil
			}
			results[index] = ImportedFile{
				ID:             fileID,
				Name:           filepath.Base(sourceFilePath),
				SourceFilePath: sourceFilePath,
			}
			progressNotifier.addSuccess()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, errors.Join(
			fmt.Errorf("errgroup.Wait: %w", err),
			progressNotifier.Err(),
		)
	}

	importedFiles := make([]ImportedFile, 0, len(results))
	for _, result := range results {
		if result.ID == 0 {
			continue
		}
		importedFiles = append(importedFiles, result)
	}
	return importedFiles, progressNotifier.Err()
}

type ProgressNotifier struct {
	Completed    int
	Failed       int
	FailedPaths  []string
	FailedErrors []error

	mutex sync.Mutex
}

func NewProgressNotifier() *ProgressNotifier {
	return &ProgressNotifier{
		FailedPaths:  make([]string, 0),
		FailedErrors: make([]error, 0),
	}
}

func (notifier *ProgressNotifier) addSuccess() {
	notifier.mutex.Lock()
	notifier.Completed++
	notifier.mutex.Unlock()
}

func (notifier *ProgressNotifier) addFailure(path string, err error) {
	notifier.mutex.Lock()
	notifier.Failed++
	notifier.FailedPaths = append(notifier.FailedPaths, path)
	notifier.FailedErrors = append(notifier.FailedErrors, err)
	notifier.mutex.Unlock()
}

// Err joins all failures, or returns nil if nothing failed
func (notifier *ProgressNotifier) Err() error {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	return errors.Join(notifier.FailedErrors...)
}

func (notifier *ProgressNotifier) counts() (int, int) {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	return notifier.Completed, notifier.Failed
}

// Run calls progressCallback every interval until done is closed, and once more at the end
func (notifier *ProgressNotifier) Run(done <-chan struct{}, interval time.Duration, progressCallback func(completed int, failed int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			progressCallback(notifier.counts())
			return
		case <-ticker.C:
			progressCallback(notifier.counts())
		}
	}
}
