package bc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wyvern-fem/wyvern/element"
	"github.com/wyvern-fem/wyvern/expr"
	"github.com/wyvern-fem/wyvern/fespace"
	"github.com/wyvern-fem/wyvern/field"
	"github.com/wyvern-fem/wyvern/matrix"
	"github.com/wyvern-fem/wyvern/mesh"
)

func TestApplyConstant(t *testing.T) {
	assert := require.New(t)

	// the x=0 side of a 9x9 unit square carries exactly 10 boundary nodes
	V := cg1Square(9)
	d, err := NewDirichlet(V, 2.5, 1)
	assert.NoError(err)
	assert.Len(d.Nodes(), 10)

	r := field.New(V)
	assert.NoError(d.Apply(r))
	touched := 0
	for n := 0; n < V.NodeCount(); n++ {
		if d.NodeSet().Contains(n) {
			assert.Equal(2.5, r.At(n, 0))
			touched++
		} else {
			assert.Equal(0.0, r.At(n, 0))
		}
	}
	assert.Equal(10, touched)

	// with a current iterate the constrained entries become u - g
	u := field.New(V)
	assert.NoError(u.Interpolate(expr.Constant(4)))
	assert.NoError(d.Apply(r, u))
	for _, n := range d.Nodes() {
		assert.Equal(1.5, r.At(n, 0))
	}

	assert.ErrorIs(d.Apply(r, u, u), ErrConfiguration)
}

func TestApplyThroughMixedSpace(t *testing.T) {
	assert := require.New(t)

	W := mixedSpace(2)
	d, err := NewDirichlet(W.Sub(0).Sub(1), 3.0, 1)
	assert.NoError(err)

	w := field.New(W)
	assert.NoError(d.Apply(w))
	for _, dof := range d.ConstrainedDofs() {
		assert.Equal(3.0, w.Data()[dof])
	}
	sum := 0.0
	for _, v := range w.Data() {
		sum += v
	}
	assert.Equal(9.0, sum, "only the three constrained dofs were written")

	// a current iterate on a different space is rejected before any write
	other := field.New(mixedSpace(3))
	assert.ErrorIs(d.Apply(w, other), ErrIncompatibleSpace)

	// residuals on unrelated spaces are rejected
	assert.ErrorIs(d.Apply(field.New(cg1Square(3))), ErrIncompatibleSpace)
}

func TestApplyRecordsOnOperator(t *testing.T) {
	assert := require.New(t)

	V := cg1Square(2)
	d, err := NewDirichlet(V, 1.0, 1)
	assert.NoError(err)

	m := matrix.NewDense(V.DofCount())
	for i := 0; i < V.DofCount(); i++ {
		for j := 0; j < V.DofCount(); j++ {
			m.Add(i, j, 1)
		}
	}
	assert.NoError(d.Apply(m))
	for _, i := range d.ConstrainedDofs() {
		assert.Equal(1.0, m.At(i, i))
		assert.Equal(0.0, m.At(i, (i+1)%V.DofCount()))
	}

	tr := matrix.NewTriplet(V.DofCount())
	tr.Add(0, 1, 5)
	assert.NoError(d.Apply(tr))
	flushed := tr.Flush()
	assert.Equal(0.0, flushed.At(0, 1), "row 0 is constrained")
	assert.Equal(1.0, flushed.At(0, 0))
}

func TestHomogenizeRestore(t *testing.T) {
	assert := require.New(t)

	V := cg1Square(2)
	d, err := NewDirichlet(V, 7.0, 1)
	assert.NoError(err)

	g, err := d.Value()
	assert.NoError(err)
	assert.Equal(7.0, g.At(0, 0))

	d.Homogenize()
	assert.True(d.Homogenized())
	g, err = d.Value()
	assert.NoError(err)
	assert.Equal(0.0, g.At(0, 0))

	d.Restore()
	assert.False(d.Homogenized())
	g, err = d.Value()
	assert.NoError(err)
	assert.Equal(7.0, g.At(0, 0), "restore brings the pre-homogenize value back")

	// restore without a preceding homogenize is a no-op
	d.Restore()
	g, err = d.Value()
	assert.NoError(err)
	assert.Equal(7.0, g.At(0, 0))
}

func TestSetValueMovesRestorePoint(t *testing.T) {
	assert := require.New(t)

	V := cg1Square(2)
	d, err := NewDirichlet(V, 1.0, 1)
	assert.NoError(err)

	assert.NoError(d.SetValue(5.0))
	g, _ := d.Value()
	assert.Equal(5.0, g.At(0, 0))

	d.Homogenize()
	d.Restore()
	g, _ = d.Value()
	assert.Equal(5.0, g.At(0, 0), "restore goes to the latest set value, not the original")

	// SetValue while homogenized reactivates the condition
	d.Homogenize()
	assert.NoError(d.SetValue(9.0))
	assert.False(d.Homogenized())
	g, _ = d.Value()
	assert.Equal(9.0, g.At(0, 0))

	assert.ErrorIs(d.SetValue("sideways"), ErrInvalidValue)
}

func TestLazyRefresh(t *testing.T) {
	assert := require.New(t)

	V := cg1Square(2)
	p := expr.NewParametric(1, func(t float64, x, out []float64) {
		out[0] = t + x[0]
	})
	d, err := NewDirichlet(V, p, 1)
	assert.NoError(err)

	g, err := d.Value()
	assert.NoError(err)
	assert.Equal(0.0, g.At(0, 0))

	p.SetParam(2)
	g, err = d.Value()
	assert.NoError(err)
	assert.Equal(2.0, g.At(0, 0), "mutating the expression refreshes the value")

	// no refresh happens while homogenized: the zero must stay
	d.Homogenize()
	p.SetParam(5)
	g, err = d.Value()
	assert.NoError(err)
	assert.Equal(0.0, g.At(0, 0))

	// the pending mutation lands after restore
	d.Restore()
	g, err = d.Value()
	assert.NoError(err)
	assert.Equal(5.0, g.At(0, 0))
}

func TestValueResolution(t *testing.T) {
	assert := require.New(t)

	V := cg1Square(2)

	// functions on the right space pass through untouched
	f := field.New(V)
	f.SetAt(3, 0, 4)
	d, err := NewDirichlet(V, f, 1)
	assert.NoError(err)
	g, _ := d.Value()
	assert.True(g == f)

	// functions on another space are rejected
	_, err = NewDirichlet(V, field.New(cg1Square(3)), 1)
	assert.ErrorIs(err, ErrIncompatibleSpace)

	// shape mismatches read as invalid values
	_, err = NewDirichlet(V, expr.Vector(1, 2), 1)
	assert.ErrorIs(err, ErrInvalidValue)
	_, err = NewDirichlet(V, struct{}{}, 1)
	assert.ErrorIs(err, ErrInvalidValue)

	// spatially varying values interpolate onto point-evaluation spaces
	d, err = NewDirichlet(V, expr.F(func(x []float64) float64 { return x[1] }), 4)
	assert.NoError(err)
	g, _ = d.Value()
	assert.Equal(1.0, g.At(7, 0))

	// Hermite spaces resolve through projection: value dofs carry the
	// value, derivative dofs its slope
	H := fespace.New(mesh.Interval(4, 2.0), element.New(element.Hermite, 3))
	hd, err := NewDirichlet(H, expr.F(func(x []float64) float64 { return x[0] * x[0] }), 2)
	assert.NoError(err)
	hg, err := hd.Value()
	assert.NoError(err)
	assert.InDelta(4.0, hg.At(8, 0), 1e-9)
	assert.InDelta(4.0, hg.At(9, 0), 1e-9)
	assert.Equal([]int{8}, hd.Nodes(), "only the value dof is constrained")
}

func TestSet(t *testing.T) {
	assert := require.New(t)

	W := mixedSpace(2)
	d, err := NewDirichlet(W.Sub(1), 1.0, 2)
	assert.NoError(err)

	w := field.New(W)
	val := field.New(W)
	for i := range val.Data() {
		val.Data()[i] = 6
	}
	assert.NoError(d.Set(w, val))
	for _, dof := range d.ConstrainedDofs() {
		assert.Equal(6.0, w.Data()[dof])
	}
	sum := 0.0
	for _, v := range w.Data() {
		sum += v
	}
	assert.Equal(6.0*float64(len(d.Nodes())), sum)
}

func TestReconstruct(t *testing.T) {
	assert := require.New(t)

	V := cg1Square(2)
	f := field.New(V)
	d, err := NewDirichlet(V, f, 1, WithMethod(fespace.Geometric))
	assert.NoError(err)

	// no overrides, or overrides equal to the current fields: identity
	same, err := d.Reconstruct()
	assert.NoError(err)
	assert.True(same == d)

	same, err = d.Reconstruct(OverrideSpace(V), OverrideValue(f),
		OverrideSubDomain(1), OverrideMethod(fespace.Geometric))
	assert.NoError(err)
	assert.True(same == d)

	// one differing field produces a distinct condition with that change
	moved, err := d.Reconstruct(OverrideSubDomain(2))
	assert.NoError(err)
	assert.False(moved == d)
	assert.True(moved.SubDomain().Equal(fespace.Markers(2)))
	assert.Equal(d.Method(), moved.Method())
	g, _ := moved.Value()
	assert.True(g == f, "the value carries over")

	remethod, err := d.Reconstruct(OverrideMethod(fespace.Topological))
	assert.NoError(err)
	assert.False(remethod == d)
	assert.Equal(fespace.Topological, remethod.Method())
}

func TestHomogenizeFreeFunctions(t *testing.T) {
	assert := require.New(t)

	V := cg1Square(2)
	d1, err := NewDirichlet(V, 3.0, 1, WithMethod(fespace.Geometric))
	assert.NoError(err)
	d2, err := NewDirichlet(V, 4.0, 2)
	assert.NoError(err)

	h, err := Homogenize(d1)
	assert.NoError(err)
	assert.False(h == d1)
	assert.True(h.SubDomain().Equal(d1.SubDomain()))
	assert.Equal(d1.Method(), h.Method())
	g, _ := h.Value()
	assert.Equal(0.0, g.At(0, 0))
	// the original keeps its value
	g, _ = d1.Value()
	assert.Equal(3.0, g.At(0, 0))

	// unlike the method, the copy's restore point is zero too
	h.Homogenize()
	h.Restore()
	g, _ = h.Value()
	assert.Equal(0.0, g.At(0, 0))

	all, err := HomogenizeAll([]*Dirichlet{d1, d2})
	assert.NoError(err)
	assert.Len(all, 2)
	assert.True(all[0].SubDomain().Equal(d1.SubDomain()))
	assert.True(all[1].SubDomain().Equal(d2.SubDomain()))
}
