package test

import (
	"testing"

	"github.com/wyvern-fem/wyvern/bc"
	"github.com/wyvern-fem/wyvern/checkpoint"
	"github.com/wyvern-fem/wyvern/element"
	"github.com/wyvern-fem/wyvern/expr"
	"github.com/wyvern-fem/wyvern/fespace"
	"github.com/wyvern-fem/wyvern/field"
	"github.com/wyvern-fem/wyvern/form"
	"github.com/wyvern-fem/wyvern/mesh"
)

func p1Interval(n int) *fespace.FunctionSpace {
	return fespace.New(mesh.Interval(n, 1.0), element.New(element.Lagrange, 1))
}

// mass is the P1 interval mass operator, h/6 * [[2,1],[1,2]] per cell.
func mass(V *fespace.FunctionSpace) *form.Form {
	return form.NewMatrix(form.TestFunction(V), form.TrialFunction(V),
		form.CellMatrixTerm(func(c int, _ *field.Function, out [][]float64) {
			verts := V.Mesh().Cell(c)
			h := V.Mesh().Coordinates(verts[1])[0] - V.Mesh().Coordinates(verts[0])[0]
			out[0][0] += 2 * h / 6
			out[0][1] += h / 6
			out[1][0] += h / 6
			out[1][1] += 2 * h / 6
		}))
}

func TestCheckConditionKinds(t *testing.T) {
	assert := NewAssert(t)

	m := mesh.UnitSquare(4)

	assert.Run(func(assert *Assert) {
		d, err := bc.NewDirichlet(fespace.New(m, element.New(element.Lagrange, 1)), 2.0, 1)
		assert.NoError(err)
		assert.CheckCondition(d)
	}, "dirichlet", "scalar")

	assert.Run(func(assert *Assert) {
		W := fespace.NewMixed(
			fespace.NewVector(m, element.New(element.Lagrange, 1), 2),
			fespace.New(m, element.New(element.Lagrange, 1)),
		)
		d, err := bc.NewDirichlet(W.Sub(0).Sub(1), 0.0, fespace.Markers(1, 2))
		assert.NoError(err)
		assert.CheckCondition(d)
	}, "dirichlet", "component")

	assert.Run(func(assert *Assert) {
		V := p1Interval(5)
		u := field.New(V)
		e, err := bc.NewEquation(form.Eq(mass(V), nil), u, 1)
		assert.NoError(err)
		assert.CheckCondition(e)

		s, err := e.Split(bc.SplitF)
		assert.NoError(err)
		assert.CheckCondition(s)
	}, "equation")
}

func TestCheckpointRoundTripHelper(t *testing.T) {
	assert := NewAssert(t)

	V := fespace.NewVector(mesh.UnitSquare(3), element.New(element.Lagrange, 1), 2)
	f := field.New(V)
	assert.NoError(f.Interpolate(expr.VectorF(2, func(x, out []float64) {
		out[0] = x[0] + x[1]
		out[1] = x[0] * x[1]
	})))

	assert.CheckpointRoundTrip(f)
	assert.CheckpointRoundTrip(f, checkpoint.WithSubset(fespace.NewSubset(V, []int{0, 2, 9})))
}

func TestFunctionsMatch(t *testing.T) {
	assert := NewAssert(t)

	V := p1Interval(4)
	f := field.New(V)
	assert.NoError(f.Interpolate(expr.F(func(x []float64) float64 { return x[0] })))
	g := f.Copy()
	g.SetAt(2, 0, g.At(2, 0)+1e-12)

	assert.FunctionsMatch(f, g, 1e-9)
}
