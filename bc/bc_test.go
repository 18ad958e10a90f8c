package bc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wyvern-fem/wyvern/element"
	"github.com/wyvern-fem/wyvern/expr"
	"github.com/wyvern-fem/wyvern/fespace"
	"github.com/wyvern-fem/wyvern/field"
	"github.com/wyvern-fem/wyvern/mesh"
)

func cg1Square(n int) *fespace.FunctionSpace {
	return fespace.New(mesh.UnitSquare(n), element.New(element.Lagrange, 1))
}

// mixedSpace returns W = [vector CG1 (dim 2), scalar CG1] on a unit square.
func mixedSpace(n int) *fespace.FunctionSpace {
	m := mesh.UnitSquare(n)
	V := fespace.NewVector(m, element.New(element.Lagrange, 1), 2)
	Q := fespace.New(m, element.New(element.Lagrange, 1))
	return fespace.NewMixed(V, Q)
}

func TestIndexPath(t *testing.T) {
	assert := require.New(t)

	W := mixedSpace(2)

	d, err := NewDirichlet(W.Sub(0).Sub(1), expr.Constant(0), 1)
	assert.NoError(err)
	assert.Equal([]IndexStep{
		{Kind: StepIndex, Value: 0},
		{Kind: StepComponent, Value: 1},
	}, d.IndexPath())

	p, err := NewDirichlet(W.Sub(1), expr.Constant(0), 1)
	assert.NoError(err)
	assert.Equal([]IndexStep{{Kind: StepIndex, Value: 1}}, p.IndexPath())

	root, err := NewDirichlet(cg1Square(2), expr.Constant(0), 1)
	assert.NoError(err)
	assert.Empty(root.IndexPath())
}

func TestCacheKey(t *testing.T) {
	assert := require.New(t)

	W := mixedSpace(2)

	a, err := NewDirichlet(W.Sub(0).Sub(1), expr.Constant(1), []int{2, 1})
	assert.NoError(err)
	b, err := NewDirichlet(W.Sub(0).Sub(1), expr.Constant(9), []int{1, 2})
	assert.NoError(err)
	assert.Equal(a.CacheKey(), b.CacheKey(), "value plays no part in the key")
	assert.Equal(a.Nodes(), b.Nodes())

	c, err := NewDirichlet(W.Sub(0).Sub(0), expr.Constant(1), []int{1, 2})
	assert.NoError(err)
	assert.NotEqual(a.CacheKey(), c.CacheKey(), "different component, different key")

	g, err := NewDirichlet(W.Sub(0).Sub(1), expr.Constant(1), []int{1, 2}, WithMethod(fespace.Geometric))
	assert.NoError(err)
	assert.NotEqual(a.CacheKey(), g.CacheKey(), "method is part of the key")
}

func TestNodeResolution(t *testing.T) {
	assert := require.New(t)

	V := cg1Square(2)
	d, err := NewDirichlet(V, expr.Constant(0), 1)
	assert.NoError(err)
	assert.Equal([]int{0, 3, 6}, d.Nodes())
	assert.Equal(3, d.NodeSet().Len())
	assert.True(d.NodeSet() == d.NodeSet(), "node set is memoized")
	assert.Equal([]int{0, 3, 6}, d.ConstrainedDofs())

	// every second node on 1-D spaces with two dofs per vertex: the
	// derivative dofs are not constrained
	H := fespace.New(mesh.Interval(4, 1.0), element.New(element.Hermite, 3))
	h, err := NewDirichlet(H, expr.Constant(0), []int{1, 2})
	assert.NoError(err)
	assert.Equal([]int{0, 8}, h.Nodes())
}

func TestConstrainedDofsThroughViews(t *testing.T) {
	assert := require.New(t)

	W := mixedSpace(2) // velocity block: 9 nodes x 2; pressure: 9 nodes

	// y-component of velocity on x=0: nodes {0,3,6}, dofs 2n+1
	d, err := NewDirichlet(W.Sub(0).Sub(1), expr.Constant(0), 1)
	assert.NoError(err)
	assert.Equal([]int{1, 7, 13}, d.ConstrainedDofs())

	// whole velocity vector: both components interleave
	v, err := NewDirichlet(W.Sub(0), expr.Vector(0, 0), 1)
	assert.NoError(err)
	assert.Equal([]int{0, 1, 6, 7, 12, 13}, v.ConstrainedDofs())

	// pressure sits after the velocity segment
	p, err := NewDirichlet(W.Sub(1), expr.Constant(0), 1)
	assert.NoError(err)
	assert.Equal([]int{18, 21, 24}, p.ConstrainedDofs())
}

func TestConstructionErrors(t *testing.T) {
	assert := require.New(t)

	m := mesh.UnitSquare(2)

	for _, e := range []element.Element{
		element.New(element.Argyris, 5),
		element.New(element.Morley, 2),
		element.New(element.Bell, 5),
	} {
		_, err := NewDirichlet(fespace.New(m, e), expr.Constant(0), 1)
		assert.ErrorIs(err, ErrUnsupportedElement, "family %s", e)
	}

	// Hermite is excluded beyond one dimension but fine on intervals
	_, err := NewDirichlet(fespace.New(m, element.New(element.Hermite, 3)), expr.Constant(0), 1)
	assert.ErrorIs(err, ErrUnsupportedElement)
	_, err = NewDirichlet(fespace.New(mesh.Interval(3, 1), element.New(element.Hermite, 3)), expr.Constant(0), 1)
	assert.NoError(err)

	// component views of extruded spaces are not supported
	ext := mesh.Extrude(mesh.Interval(3, 1), 2, 1.0)
	EV := fespace.NewVector(ext, element.New(element.Lagrange, 1), 2)
	_, err = NewDirichlet(EV.Sub(0), expr.Constant(0), fespace.Top)
	assert.ErrorIs(err, ErrUnsupportedElement)
	_, err = NewDirichlet(EV, expr.Vector(0, 0), fespace.Top)
	assert.NoError(err, "the un-indexed extruded space is fine")

	V := cg1Square(2)
	_, err = NewDirichlet(V, expr.Constant(0), 1, WithMethod(fespace.Method(9)))
	assert.ErrorIs(err, ErrConfiguration)
	_, err = NewDirichlet(V, expr.Constant(0), "everywhere")
	assert.ErrorIs(err, ErrConfiguration)
	_, err = NewDirichlet(mixedSpace(2), expr.Constant(0), 1)
	assert.ErrorIs(err, ErrConfiguration, "mixed roots must be indexed first")
	_, err = NewDirichlet(V, expr.Constant(0), 7)
	assert.ErrorIs(err, fespace.ErrBadSubDomain)
}

func TestZero(t *testing.T) {
	assert := require.New(t)

	W := mixedSpace(2)
	d, err := NewDirichlet(W.Sub(0).Sub(1), expr.Constant(0), 1)
	assert.NoError(err)

	w := field.New(W)
	for i := range w.Data() {
		w.Data()[i] = 1
	}
	assert.NoError(d.Zero(w))
	for _, dof := range d.ConstrainedDofs() {
		assert.Equal(0.0, w.Data()[dof])
	}
	sum := 0.0
	for _, v := range w.Data() {
		sum += v
	}
	assert.Equal(float64(W.DofCount()-3), sum, "exactly the constrained dofs were zeroed")

	// functions on unrelated spaces are rejected
	other := field.New(cg1Square(3))
	assert.ErrorIs(d.Zero(other), ErrIncompatibleSpace)

	// operators cannot be zeroed through this primitive
	assert.ErrorIs(d.Zero(struct{}{}), ErrNotSupported)
}
