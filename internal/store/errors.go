package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDirectoryNotFound = fmt.Errorf("directory %w", ErrNotFound)
	ErrFileNotFound      = fmt.Errorf("file %w", ErrNotFound)

	ErrInvalidName       = errors.New("invalid name")
	ErrDirectoryConflict = errors.New("directory name is already used under another parent")
)
