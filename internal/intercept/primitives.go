package intercept

import (
	"io/fs"
	"os"
)

// Primitives are the file system operations used for paths which are not virtual
type Primitives interface {
	MkdirAll(path string, perm fs.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)
	Remove(name string) error
	RemoveAll(path string) error
	Stat(name string) (fs.FileInfo, error)
	OpenFile(name string, flag int, perm fs.FileMode) (File, error)
}

type osPrimitives struct{}

// OSPrimitives returns Primitives of the os package
func OSPrimitives() Primitives {
	return osPrimitives{}
}

func (osPrimitives) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (osPrimitives) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

func (osPrimitives) Remove(name string) error {
	return os.Remove(name)
}

func (osPrimitives) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (osPrimitives) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

func (osPrimitives) OpenFile(name string, flag int, perm fs.FileMode) (File, error) {
	file, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return file, nil
}
