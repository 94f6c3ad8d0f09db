package intercept

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
)

var (
	ErrReadOnly  = errors.New("file is opened read-only")
	ErrWriteOnly = errors.New("file is opened write-only")
)

// File is the subset of *os.File returned by Open, Create and OpenFile
type File interface {
	io.ReadWriteSeeker
	io.Closer
	Name() string
	Truncate(size int64) error
	Sync() error
}

// readFile holds the whole content of a virtual file opened for reading
type readFile struct {
	name   string
	reader *bytes.Reader
	closed bool
}

func newReadFile(name string, content []byte) *readFile {
	return &readFile{
		name:   name,
		reader: bytes.NewReader(content),
	}
}

func (file *readFile) Name() string {
	return file.name
}

func (file *readFile) pathError(op string, err error) error {
	return &fs.PathError{Op: op, Path: file.name, Err: err}
}

func (file *readFile) Read(p []byte) (int, error) {
	if file.closed {
		return 0, file.pathError("read", fs.ErrClosed)
	}
	return file.reader.Read(p)
}

func (file *readFile) Seek(offset int64, whence int) (int64, error) {
	if file.closed {
		return 0, file.pathError("seek", fs.ErrClosed)
	}
	return file.reader.Seek(offset, whence)
}

func (file *readFile) Write([]byte) (int, error) {
	return 0, file.pathError("write", ErrReadOnly)
}

func (file *readFile) Truncate(int64) error {
	return file.pathError("truncate", ErrReadOnly)
}

func (file *readFile) Sync() error {
	if file.closed {
		return file.pathError("sync", fs.ErrClosed)
	}
	return nil
}

func (file *readFile) Close() error {
	if file.closed {
		return file.pathError("close", fs.ErrClosed)
	}
	file.closed = true
	return nil
}

type bufferState int

const (
	bufferStateOpen bufferState = iota
	bufferStateClosed
)

// writeBuffer collects writes to a virtual file in memory.
// The content is committed once by Close, and nothing is visible before that.
// A writeBuffer must not be used from multiple goroutines.
type writeBuffer struct {
	ctx     context.Context
	adapter Adapter
	name    string

	content  []byte
	offset   int64
	state    bufferState
	readable bool
	append   bool
}

func (buffer *writeBuffer) Name() string {
	return buffer.name
}

func (buffer *writeBuffer) pathError(op string, err error) error {
	return &fs.PathError{Op: op, Path: buffer.name, Err: err}
}

func (buffer *writeBuffer) Read(p []byte) (int, error) {
	if buffer.state == bufferStateClosed {
		return 0, buffer.pathError("read", fs.ErrClosed)
	}
	if !buffer.readable {
		return 0, buffer.pathError("read", ErrWriteOnly)
	}
	if buffer.offset >= int64(len(buffer.content)) {
		return 0, io.EOF
	}
	n := copy(p, buffer.content[buffer.offset:])
	buffer.offset += int64(n)
	return n, nil
}

func (buffer *writeBuffer) Write(p []byte) (int, error) {
	if buffer.state == bufferStateClosed {
		return 0, buffer.pathError("write", fs.ErrClosed)
	}
	if buffer.append {
		buffer.offset = int64(len(buffer.content))
	}

	end := buffer.offset + int64(len(p))
	if end > int64(len(buffer.content)) {
		grown := make([]byte, end)
		copy(grown, buffer.content)
		buffer.content = grown
	}
	copy(buffer.content[buffer.offset:], p)
	buffer.offset = end
	return len(p), nil
}

func (buffer *writeBuffer) Seek(offset int64, whence int) (int64, error) {
	if buffer.state == bufferStateClosed {
		return 0, buffer.pathError("seek", fs.ErrClosed)
	}

	var position int64
	switch whence {
	case io.SeekStart:
		position = offset
	case io.SeekCurrent:
		position = buffer.offset + offset
	case io.SeekEnd:
		position = int64(len(buffer.content)) + offset
	default:
		return 0, buffer.pathError("seek", fmt.Errorf("%w: whence %d", fs.ErrInvalid, whence))
	}
	if position < 0 {
		return 0, buffer.pathError("seek", fmt.Errorf("%w: negative position", fs.ErrInvalid))
	}
	buffer.offset = position
	return position, nil
}

// Truncate changes the size of the content without moving the offset, like os.File
func (buffer *writeBuffer) Truncate(size int64) error {
	if buffer.state == bufferStateClosed {
		return buffer.pathError("truncate", fs.ErrClosed)
	}
	if size < 0 {
		return buffer.pathError("truncate", fs.ErrInvalid)
	}
	if size <= int64(len(buffer.content)) {
		buffer.content = buffer.content[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, buffer.content)
	buffer.content = grown
	return nil
}

// Sync does nothing because a write buffer is committed only by Close
func (buffer *writeBuffer) Sync() error {
	if buffer.state == bufferStateClosed {
		return buffer.pathError("sync", fs.ErrClosed)
	}
	return nil
}

func (buffer *writeBuffer) Close() error {
	if buffer.state == bufferStateClosed {
		return buffer.pathError("close", fs.ErrClosed)
	}
	buffer.state = bufferStateClosed

	content := buffer.content
	if content == nil {
		content = []byte{}
	}
	if err := buffer.adapter.WriteFile(buffer.ctx, buffer.name, content); err != nil {
		return buffer.pathError("close", err)
	}
	return nil
}
