// Package matrix holds assembled linear operators: a dense gonum-backed
// matrix and a sparse triplet accumulator, both supporting the row
// replacement strongly imposed boundary conditions need.
package matrix

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"gonum.org/v1/gonum/mat"
)

// Condition is the part of a boundary condition an operator consumes: the
// global rows the condition constrains.
type Condition interface {
	ConstrainedDofs() []int
}

// Dense is a square dense operator.
type Dense struct {
	n    int
	data *mat.Dense
}

// NewDense returns the zero n x n dense operator.
func NewDense(n int) *Dense {
	return &Dense{n: n, data: mat.NewDense(n, n, nil)}
}

// Dims returns the operator dimensions.
func (m *Dense) Dims() (int, int) { return m.n, m.n }

// Add accumulates v into entry (i, j).
func (m *Dense) Add(i, j int, v float64) { m.data.Set(i, j, m.data.At(i, j)+v) }

// At returns entry (i, j).
func (m *Dense) At(i, j int) float64 { return m.data.At(i, j) }

// ZeroRows replaces each listed row by zeros with diag on the diagonal.
func (m *Dense) ZeroRows(dofs []int, diag float64) {
	for _, i := range dofs {
		for j := 0; j < m.n; j++ {
			m.data.Set(i, j, 0)
		}
		m.data.Set(i, i, diag)
	}
}

// AddBC replaces the rows constrained by c with identity rows.
func (m *Dense) AddBC(c Condition) { m.ZeroRows(c.ConstrainedDofs(), 1) }

// Mat exposes the underlying gonum matrix for solves.
func (m *Dense) Mat() *mat.Dense { return m.data }

// Triplet accumulates a sparse operator in coordinate form. Entries are
// appended as assembled; constrained rows are filtered out when the
// triplet is flushed to a dense operator.
type Triplet struct {
	n        int
	is, js   []int
	vs       []float64
	bcRows   *bitset.BitSet
	bcDiag   float64
}

// NewTriplet returns an empty n x n triplet accumulator.
func NewTriplet(n int) *Triplet {
	return &Triplet{n: n, bcRows: bitset.New(uint(n))}
}

// Dims returns the operator dimensions.
func (t *Triplet) Dims() (int, int) { return t.n, t.n }

// Add appends the entry (i, j, v).
func (t *Triplet) Add(i, j int, v float64) {
	if i < 0 || i >= t.n || j < 0 || j >= t.n {
		panic(fmt.Sprintf("matrix: entry (%d,%d) outside %dx%d triplet", i, j, t.n, t.n))
	}
	t.is = append(t.is, i)
	t.js = append(t.js, j)
	t.vs = append(t.vs, v)
}

// Len returns the number of accumulated entries.
func (t *Triplet) Len() int { return len(t.vs) }

// Each calls fn for every accumulated entry in insertion order.
func (t *Triplet) Each(fn func(i, j int, v float64)) {
	for k, v := range t.vs {
		fn(t.is[k], t.js[k], v)
	}
}

// ZeroRows marks the listed rows as constrained: their accumulated entries
// are dropped on flush and replaced by diag on the diagonal.
func (t *Triplet) ZeroRows(dofs []int, diag float64) {
	for _, i := range dofs {
		t.bcRows.Set(uint(i))
	}
	t.bcDiag = diag
}

// AddBC marks the rows constrained by c.
func (t *Triplet) AddBC(c Condition) { t.ZeroRows(c.ConstrainedDofs(), 1) }

// Flush folds the accumulated entries into a dense operator, applying the
// row constraints.
func (t *Triplet) Flush() *Dense {
	out := NewDense(t.n)
	for k, v := range t.vs {
		if t.bcRows.Test(uint(t.is[k])) {
			continue
		}
		out.Add(t.is[k], t.js[k], v)
	}
	for i, ok := t.bcRows.NextSet(0); ok; i, ok = t.bcRows.NextSet(i + 1) {
		out.Add(int(i), int(i), t.bcDiag)
	}
	return out
}
