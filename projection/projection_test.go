package projection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wyvern-fem/wyvern/element"
	"github.com/wyvern-fem/wyvern/expr"
	"github.com/wyvern-fem/wyvern/fespace"
	"github.com/wyvern-fem/wyvern/field"
	"github.com/wyvern-fem/wyvern/mesh"
)

// Projecting a function the space can represent exactly must reproduce its
// interpolant.
func TestProjectReproducesLinear(t *testing.T) {
	assert := require.New(t)

	V := fespace.New(mesh.UnitSquare(3), element.New(element.Lagrange, 1))
	g := expr.F(func(x []float64) float64 { return 2*x[0] - x[1] + 1 })

	u, err := Project(g, V)
	assert.NoError(err)

	want := field.New(V)
	assert.NoError(want.Interpolate(g))
	for n := 0; n < V.NodeCount(); n++ {
		assert.InDelta(want.At(n, 0), u.At(n, 0), 1e-10)
	}
}

func TestProjectHermite(t *testing.T) {
	assert := require.New(t)

	// x^2 is exactly representable by cubic Hermite elements: value dofs
	// carry x^2, derivative dofs carry 2x.
	V := fespace.New(mesh.Interval(4, 2.0), element.New(element.Hermite, 3))
	u, err := Project(expr.F(func(x []float64) float64 { return x[0] * x[0] }), V)
	assert.NoError(err)

	for v := 0; v <= 4; v++ {
		x := V.Mesh().Coordinates(v)[0]
		assert.InDelta(x*x, u.At(2*v, 0), 1e-10, "value dof at x=%g", x)
		assert.InDelta(2*x, u.At(2*v+1, 0), 1e-10, "derivative dof at x=%g", x)
	}
}

func TestProjectDG0(t *testing.T) {
	assert := require.New(t)

	V := fespace.New(mesh.Interval(4, 4.0), element.New(element.DiscontinuousLagrange, 0))
	u, err := Project(expr.F(func(x []float64) float64 { return x[0] }), V)
	assert.NoError(err)
	// cellwise constants land on the cell averages
	for c := 0; c < 4; c++ {
		assert.InDelta(float64(c)+0.5, u.At(c, 0), 1e-12)
	}
}

func TestProjectVectorAndExtruded(t *testing.T) {
	assert := require.New(t)

	V := fespace.NewVector(mesh.UnitSquare(2), element.New(element.Lagrange, 1), 2)
	u, err := Project(expr.VectorF(2, func(x, out []float64) {
		out[0], out[1] = x[0], -x[1]
	}), V)
	assert.NoError(err)
	// vertex 8 sits at (1,1)
	assert.InDelta(1.0, u.At(8, 0), 1e-10)
	assert.InDelta(-1.0, u.At(8, 1), 1e-10)

	ext := mesh.Extrude(mesh.Interval(2, 1.0), 2, 1.0)
	W := fespace.New(ext, element.New(element.Lagrange, 1))
	w, err := Project(expr.F(func(x []float64) float64 { return x[1] }), W)
	assert.NoError(err)
	assert.InDelta(0.5, w.At(W.Mesh().VertexOnLayer(1, 1), 0), 1e-10)
}

func TestProjectErrors(t *testing.T) {
	assert := require.New(t)

	V := fespace.New(mesh.UnitSquare(1), element.New(element.Morley, 2))
	_, err := Project(expr.Constant(1), V)
	assert.ErrorIs(err, ErrUnsupportedElement)

	W := fespace.New(mesh.UnitSquare(1), element.New(element.Lagrange, 1))
	_, err = Project(expr.Vector(1, 2), W)
	assert.ErrorIs(err, field.ErrShape)
}
