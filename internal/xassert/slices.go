package xassert

import (
	"cmp"
	"testing"

	gocmp "github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// ElementsMatch reports a difference of two slices regardless of the order of their elements.
// A nil slice and an empty slice are equal
func ElementsMatch[T cmp.Ordered](t *testing.T, want, got []T, options ...gocmp.Option) {
	t.Helper()

	ElementsMatchFunc(t, want, got, cmp.Less[T], options...)
}

func ElementsMatchFunc[T any](t *testing.T, want, got []T, less func(a, b T) bool, options ...gocmp.Option) {
	t.Helper()

	options = append(options,
		cmpopts.SortSlices(less),
		cmpopts.EquateEmpty(),
	)
	if diff := gocmp.Diff(want, got, options...); diff != "" {
		t.Errorf("Elements do not match. Diff: %s", diff)
	}
}
