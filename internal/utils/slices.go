package utils

import (
	"slices"

	"golang.org/x/exp/constraints"
)

// SortedUnique returns a sorted copy of s with duplicates removed.
func SortedUnique[T constraints.Ordered](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	res := slices.Clone(s)
	slices.Sort(res)
	return slices.Compact(res)
}

// EqualInts reports whether a and b hold the same values in the same order.
func EqualInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
