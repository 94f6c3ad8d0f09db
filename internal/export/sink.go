package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Sink is a destination of exported files
type Sink interface {
	// Exists reports whether a file with the name was already exported
	Exists(ctx context.Context, name string) (bool, error)
	Write(ctx context.Context, name string, content []byte, contentType string) error
	String() string
}

// LocalSink writes files into a directory on a local disk
type LocalSink struct {
	directory string
}

func NewLocalSink(directory string) *LocalSink {
	return &LocalSink{directory: directory}
}

func (sink *LocalSink) String() string {
	return sink.directory
}

func (sink *LocalSink) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(sink.directory, name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("os.Stat: %w", err)
}

func (sink *LocalSink) Write(_ context.Context, name string, content []byte, _ string) error {
	if err := os.MkdirAll(sink.directory, 0755); err != nil {
		return fmt.Errorf("os.MkdirAll: %w", err)
	}
	file, err := os.OpenFile(
		filepath.Join(sink.directory, name),
		os.O_WRONLY|os.O_CREATE|os.O_EXCL,
		0644,
	)
	if err != nil {
		return fmt.Errorf("os.OpenFile: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(content); err != nil {
		return fmt.Errorf("file.Write: %w", err)
	}
	return file.Close()
}
