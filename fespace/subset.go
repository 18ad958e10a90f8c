package fespace

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/wyvern-fem/wyvern/internal/utils"
)

// Subset is an immutable set of node ids of one function space, kept both
// as a sorted id slice for iteration and as a bitmask for membership tests.
type Subset struct {
	space   *FunctionSpace
	indices []int
	mask    *bitset.BitSet
}

// NewSubset builds the subset of V holding the given node ids. The ids are
// deduplicated and sorted; the input slice is not retained.
func NewSubset(V *FunctionSpace, indices []int) *Subset {
	sorted := utils.SortedUnique(indices)
	mask := bitset.New(uint(V.NodeCount()))
	for _, n := range sorted {
		mask.Set(uint(n))
	}
	return &Subset{space: V, indices: sorted, mask: mask}
}

// Space returns the function space the subset indexes into.
func (s *Subset) Space() *FunctionSpace { return s.space }

// Len returns the number of nodes in the subset.
func (s *Subset) Len() int { return len(s.indices) }

// Indices returns the sorted node ids. The slice is shared, callers must
// not mutate it.
func (s *Subset) Indices() []int { return s.indices }

// Contains reports whether node n is in the subset.
func (s *Subset) Contains(n int) bool { return s.mask.Test(uint(n)) }

// Mask returns the membership bitmask. The mask is shared, callers must
// not mutate it.
func (s *Subset) Mask() *bitset.BitSet { return s.mask }

// Union returns the subset holding the nodes of s and o, which must index
// the same space.
func (s *Subset) Union(o *Subset) *Subset {
	mask := s.mask.Union(o.mask)
	indices := make([]int, 0, mask.Count())
	for n, ok := mask.NextSet(0); ok; n, ok = mask.NextSet(n + 1) {
		indices = append(indices, int(n))
	}
	return &Subset{space: s.space, indices: indices, mask: mask}
}
