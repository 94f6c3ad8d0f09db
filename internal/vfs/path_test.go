package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParser_Parse(t *testing.T) {
	testCases := []struct {
		name        string
		path        string
		wantVirtual bool
		want        Path
	}{
		{
			name:        "file in a bucket",
			path:        "/work/ml_system/datasets/t.csv",
			wantVirtual: true,
			want:        Path{Bucket: "datasets", Name: "t.csv", depth: 2},
		},
		{
			name:        "relative path with a bucket",
			path:        "ml_system/models",
			wantVirtual: true,
			want:        Path{Bucket: "models", depth: 1},
		},
		{
			name:        "backslashes and a trailing separator",
			path:        `C:\data\ml_system\models\weights.bin\`,
			wantVirtual: true,
			want:        Path{Bucket: "models", Name: "weights.bin", depth: 2},
		},
		{
			name:        "duplicated separators and dots",
			path:        "./ml_system//runs/./log.txt",
			wantVirtual: true,
			want:        Path{Bucket: "runs", Name: "log.txt", depth: 2},
		},
		{
			name:        "root only",
			path:        "/tmp/ml_system",
			wantVirtual: true,
			want:        Path{},
		},
		{
			name:        "too deep",
			path:        "/ml_system/datasets/nested/t.csv",
			wantVirtual: true,
			want:        Path{Bucket: "datasets", Name: "nested", depth: 3},
		},
		{
			name:        "first root marker wins",
			path:        "/ml_system/ml_system/a.txt",
			wantVirtual: true,
			want:        Path{Bucket: "ml_system", Name: "a.txt", depth: 2},
		},
		{
			name:        "marker as a part of a segment",
			path:        "/home/user/ml_system_backup/datasets/t.csv",
			wantVirtual: false,
		},
		{
			name:        "marker as a file name suffix",
			path:        "/tmp/old.ml_system",
			wantVirtual: false,
		},
		{
			name:        "empty path",
			path:        "",
			wantVirtual: false,
		},
	}

	parser := NewParser("ml_system")
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, gotVirtual := parser.Parse(tc.path)
			assert.Equal(t, tc.wantVirtual, gotVirtual)
			assert.Equal(t, tc.wantVirtual, parser.IsVirtual(tc.path))
			if !tc.wantVirtual {
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPath(t *testing.T) {
	testCases := []struct {
		name          string
		path          Path
		wantBucket    bool
		wantName      bool
		wantMalformed bool
		wantIsBucket  bool
	}{
		{
			name:          "root only",
			path:          Path{},
			wantMalformed: true,
		},
		{
			name:         "bucket",
			path:         Path{Bucket: "datasets", depth: 1},
			wantBucket:   true,
			wantIsBucket: true,
		},
		{
			name:       "file",
			path:       Path{Bucket: "datasets", Name: "t.csv", depth: 2},
			wantBucket: true,
			wantName:   true,
		},
		{
			name:          "too deep",
			path:          Path{Bucket: "datasets", Name: "nested", depth: 3},
			wantBucket:    true,
			wantMalformed: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantBucket, tc.path.HasBucket())
			assert.Equal(t, tc.wantName, tc.path.HasName())
			assert.Equal(t, tc.wantMalformed, tc.path.IsMalformed())
			assert.Equal(t, tc.wantIsBucket, tc.path.IsBucket())
		})
	}
}
