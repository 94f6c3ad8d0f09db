package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/michael-freling/ml-artifact-store/internal/store"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	ManifestName = "manifest.jsonl"

	defaultConcurrency      = 8
	defaultProgressInterval = 10 * time.Second
)

// Storage is the part of store.Engine read by BucketExporter
type Storage interface {
	ListNames(ctx context.Context, directoryName string) ([]string, error)
	GetContent(ctx context.Context, name string, directoryName string) ([]byte, error)
	Stat(ctx context.Context, name string, directoryName string) (store.FileInfo, error)
}

var _ Storage = (*store.Engine)(nil)

type BucketExporterOptions struct {
	Concurrency      int64
	ProgressInterval time.Duration
}

type BucketExporter struct {
	logger  *slog.Logger
	storage Storage
	options BucketExporterOptions
}

func NewBucketExporter(logger *slog.Logger, storage Storage, options BucketExporterOptions) *BucketExporter {
	if options.Concurrency <= 0 {
		options.Concurrency = defaultConcurrency
	}
	if options.ProgressInterval <= 0 {
		options.ProgressInterval = defaultProgressInterval
	}
	return &BucketExporter{
		logger:  logger,
		storage: storage,
		options: options,
	}
}

// Metadata is a line of a manifest written next to exported files
type Metadata struct {
	FileName    string    `json:"file_name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Export copies the live version of every file in a bucket to a sink, and writes a manifest.
// Nothing is written if any of the files already exists in the sink.
func (exporter *BucketExporter) Export(ctx context.Context, bucket string, sink Sink) ([]Metadata, error) {
	names, err := exporter.storage.ListNames(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("storage.ListNames: %w", err)
	}
	// names inserted without replacing a file are listed more than once
	names = lo.Uniq(names)
	for _, name := range names {
		if name == ManifestName {
			return nil, fmt.Errorf("%s cannot be exported with a manifest", ManifestName)
		}
	}
	manifestExists, err := sink.Exists(ctx, ManifestName)
	if err != nil {
		return nil, fmt.Errorf("sink.Exists: %w", err)
	}
	if manifestExists {
		return nil, fmt.Errorf("file already exists: %s in %s", ManifestName, sink)
	}

	allMetadata := make([]Metadata, len(names))
	eg, egCtx := errgroup.WithContext(ctx)
	for index, name := range names {
		eg.Go(func() error {
			exists, err := sink.Exists(egCtx, name)
			if err != nil {
				return fmt.Errorf("sink.Exists: %w", err)
			}
			if exists {
				return fmt.Errorf("file already exists: %s in %s", name, sink)
			}

			info, err := exporter.storage.Stat(egCtx, name, bucket)
			if err != nil {
				return fmt.Errorf("storage.Stat: %w", err)
			}
			allMetadata[index] = Metadata{
				FileName:    info.Name,
				Size:        info.Size,
				ContentType: info.ContentType,
				UpdatedAt:   info.UpdatedAt,
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("validation errors: %w", err)
	}
	exporter.logger.InfoContext(ctx, "Validation completed successfully. Start exporting files",
		"bucket", bucket,
		"sink", sink.String(),
		"total", len(names),
	)

	var exportedCount int64
	done := make(chan struct{})
	go exporter.reportProgress(ctx, done, &exportedCount, len(names))
	defer close(done)

	// contents are loaded into memory, so the number of files in flight is limited
	sem := semaphore.NewWeighted(exporter.options.Concurrency)
	eg, egCtx = errgroup.WithContext(ctx)
	for _, metadata := range allMetadata {
		if err := sem.Acquire(egCtx, 1); err != nil {
			break
		}
		eg.Go(func() error {
			defer sem.Release(1)

			content, err := exporter.storage.GetContent(egCtx, metadata.FileName, bucket)
			if err != nil {
				return fmt.Errorf("storage.GetContent: %w", err)
			}
			if err := sink.Write(egCtx, metadata.FileName, content, metadata.ContentType); err != nil {
				return fmt.Errorf("sink.Write: %w", err)
			}
			atomic.AddInt64(&exportedCount, 1)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("export errors: %w", err)
	}

	manifest, err := encodeManifest(allMetadata)
	if err != nil {
		return nil, err
	}
	if err := sink.Write(ctx, ManifestName, manifest, "application/jsonl"); err != nil {
		return nil, fmt.Errorf("sink.Write: %w", err)
	}
	exporter.logger.InfoContext(ctx, "Exported files",
		"bucket", bucket,
		"sink", sink.String(),
		"total", len(allMetadata),
	)
	return allMetadata, nil
}

func (exporter *BucketExporter) reportProgress(ctx context.Context, done <-chan struct{}, exportedCount *int64, total int) {
	ticker := time.NewTicker(exporter.options.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			completed := atomic.LoadInt64(exportedCount)
			exporter.logger.InfoContext(ctx, "Exporting files is in progress",
				"completed", completed,
				"total", total,
				"percentage", float64(completed)/float64(total)*100,
			)
		}
	}
}

func encodeManifest(allMetadata []Metadata) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	for _, metadata := range allMetadata {
		if err := encoder.Encode(metadata); err != nil {
			return nil, fmt.Errorf("json.Encode: %w", err)
		}
	}
	return buffer.Bytes(), nil
}
