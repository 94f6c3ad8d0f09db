// Package vfs maps file system paths onto directories and files of a store.
//
// A path is virtual when one of its segments is the root marker.
// The segment after the marker is a bucket, and the next one is a file name:
//
//	<anything>/<root>/<bucket>[/<name>]
package vfs

import (
	"strings"
)

type Parser struct {
	root string
}

func NewParser(root string) Parser {
	return Parser{root: root}
}

func (parser Parser) Root() string {
	return parser.root
}

// Path is a parsed virtual path
type Path struct {
	Bucket string
	Name   string

	// depth is the number of segments after the root marker
	depth int
}

func (path Path) HasBucket() bool {
	return path.depth >= 1
}

func (path Path) HasName() bool {
	return path.depth == 2
}

// IsMalformed reports a virtual path without a bucket or with segments below a file
func (path Path) IsMalformed() bool {
	return path.depth == 0 || path.depth > 2
}

// IsBucket reports a path addressing a bucket itself
func (path Path) IsBucket() bool {
	return path.depth == 1
}

// Parse reports whether the path is virtual and returns its parsed form
func (parser Parser) Parse(path string) (Path, bool) {
	segments := make([]string, 0)
	for _, segment := range strings.Split(strings.ReplaceAll(path, `\`, "/"), "/") {
		if segment == "" || segment == "." {
			continue
		}
		segments = append(segments, segment)
	}

	rootIndex := -1
	for index, segment := range segments {
		if segment == parser.root {
			rootIndex = index
			break
		}
	}
	if rootIndex < 0 {
		return Path{}, false
	}

	rest := segments[rootIndex+1:]
	result := Path{depth: len(rest)}
	if len(rest) >= 1 {
		result.Bucket = rest[0]
	}
	if len(rest) >= 2 {
		result.Name = rest[1]
	}
	return result, true
}

func (parser Parser) IsVirtual(path string) bool {
	_, ok := parser.Parse(path)
	return ok
}
