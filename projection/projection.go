// Package projection provides L2 projection of expressions onto function
// spaces: the value-resolution path for elements whose dofs are not point
// evaluations, where interpolation is not defined.
//
// The global mass matrix is assembled cell by cell with quadrature rules
// exact for the supported elements and factorized with a Cholesky
// decomposition.
package projection

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/wyvern-fem/wyvern/element"
	"github.com/wyvern-fem/wyvern/expr"
	"github.com/wyvern-fem/wyvern/fespace"
	"github.com/wyvern-fem/wyvern/field"
	"github.com/wyvern-fem/wyvern/mesh"
)

// ErrUnsupportedElement is returned when no quadrature rule is available
// for the space's element family.
var ErrUnsupportedElement = errors.New("projection: no quadrature rule for element")

// Project returns the L2 projection of e onto V: the function u minimizing
// the L2 distance to e, obtained by solving the mass matrix system.
func Project(e expr.Expr, V *fespace.FunctionSpace) (*field.Function, error) {
	if V.Mixed() {
		return nil, field.ErrMixed
	}
	d := V.ValueSize()
	if e.ValueSize() != d {
		return nil, fmt.Errorf("%w: expression has %d components, space stores %d per node",
			field.ErrShape, e.ValueSize(), d)
	}

	n := V.NodeCount()
	M := mat.NewSymDense(n, nil)
	B := mat.NewDense(n, d, nil)

	val := make([]float64, d)
	nc := V.Mesh().CellCount()
	for c := 0; c < nc; c++ {
		q, err := cellRule(V, c)
		if err != nil {
			return nil, err
		}
		nodes := V.CellNodes(c)
		for p := range q.weights {
			w := q.weights[p]
			phi := q.basis[p]
			for i, gi := range nodes {
				for j, gj := range nodes {
					if gj < gi {
						continue
					}
					M.SetSym(gi, gj, M.At(gi, gj)+w*phi[i]*phi[j])
				}
			}
			e.Eval(q.points[p], val)
			for i, gi := range nodes {
				for k := 0; k < d; k++ {
					B.Set(gi, k, B.At(gi, k)+w*phi[i]*val[k])
				}
			}
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(M) {
		return nil, fmt.Errorf("projection: mass matrix is not positive definite")
	}
	var U mat.Dense
	if err := chol.SolveTo(&U, B); err != nil {
		return nil, fmt.Errorf("projection: mass solve failed: %w", err)
	}

	u := field.New(V)
	for i := 0; i < n; i++ {
		for k := 0; k < d; k++ {
			u.SetAt(i, k, U.At(i, k))
		}
	}
	return u, nil
}

// rule holds one cell's quadrature: global point positions, weights scaled
// by the cell measure, and the local basis evaluated at each point.
type rule struct {
	points  [][]float64
	weights []float64
	basis   [][]float64
}

func cellRule(V *fespace.FunctionSpace, c int) (rule, error) {
	m := V.Mesh()
	verts := m.Cell(c)
	e := V.Element()

	switch {
	case e.Family() == element.Lagrange && len(verts) == 2:
		return intervalP1(m, verts), nil
	case e.Family() == element.Lagrange && len(verts) == 3:
		return triangleP1(m, verts), nil
	case e.Family() == element.Lagrange && len(verts) == 4:
		return quadQ1(m, verts), nil
	case e.Family() == element.DiscontinuousLagrange:
		return centroidRule(m, verts), nil
	case e.Family() == element.Hermite && len(verts) == 2:
		return intervalHermite(m, verts), nil
	default:
		return rule{}, fmt.Errorf("%w: %s on a %d-vertex cell", ErrUnsupportedElement, e, len(verts))
	}
}

// gauss2 and gauss4 are Gauss-Legendre abscissae and weights on [0,1].
var (
	gauss2pts = []float64{0.5 - 0.5/math.Sqrt(3), 0.5 + 0.5/math.Sqrt(3)}
	gauss2wts = []float64{0.5, 0.5}

	gauss4pts = []float64{
		0.5 - 0.5*math.Sqrt(3.0/7+2.0/7*math.Sqrt(6.0/5)),
		0.5 - 0.5*math.Sqrt(3.0/7-2.0/7*math.Sqrt(6.0/5)),
		0.5 + 0.5*math.Sqrt(3.0/7-2.0/7*math.Sqrt(6.0/5)),
		0.5 + 0.5*math.Sqrt(3.0/7+2.0/7*math.Sqrt(6.0/5)),
	}
	gauss4wts = []float64{
		(18 - math.Sqrt(30)) / 72,
		(18 + math.Sqrt(30)) / 72,
		(18 + math.Sqrt(30)) / 72,
		(18 - math.Sqrt(30)) / 72,
	}
)

func intervalP1(m *mesh.Mesh, verts []int) rule {
	x0 := m.Coordinates(verts[0])[0]
	x1 := m.Coordinates(verts[1])[0]
	h := x1 - x0
	r := rule{}
	for p, t := range gauss2pts {
		r.points = append(r.points, []float64{x0 + t*h})
		r.weights = append(r.weights, gauss2wts[p]*math.Abs(h))
		r.basis = append(r.basis, []float64{1 - t, t})
	}
	return r
}

func intervalHermite(m *mesh.Mesh, verts []int) rule {
	x0 := m.Coordinates(verts[0])[0]
	x1 := m.Coordinates(verts[1])[0]
	h := x1 - x0
	r := rule{}
	for p, t := range gauss4pts {
		r.points = append(r.points, []float64{x0 + t*h})
		r.weights = append(r.weights, gauss4wts[p]*math.Abs(h))
		// cubic Hermite shape functions: value and slope at each end,
		// slope dofs scaled by h so global derivatives are unit
		r.basis = append(r.basis, []float64{
			1 - 3*t*t + 2*t*t*t,
			h * (t - 2*t*t + t*t*t),
			3*t*t - 2*t*t*t,
			h * (t*t*t - t*t),
		})
	}
	return r
}

func triangleP1(m *mesh.Mesh, verts []int) rule {
	a := m.Coordinates(verts[0])
	b := m.Coordinates(verts[1])
	c := m.Coordinates(verts[2])
	area := 0.5 * math.Abs((b[0]-a[0])*(c[1]-a[1])-(c[0]-a[0])*(b[1]-a[1]))
	// edge-midpoint rule, exact for quadratics
	mids := [][3]float64{{0.5, 0.5, 0}, {0, 0.5, 0.5}, {0.5, 0, 0.5}}
	r := rule{}
	for _, l := range mids {
		r.points = append(r.points, []float64{
			l[0]*a[0] + l[1]*b[0] + l[2]*c[0],
			l[0]*a[1] + l[1]*b[1] + l[2]*c[1],
		})
		r.weights = append(r.weights, area/3)
		r.basis = append(r.basis, []float64{l[0], l[1], l[2]})
	}
	return r
}

func quadQ1(m *mesh.Mesh, verts []int) rule {
	// bilinear element on the parallelogram a,b,c,d (counterclockwise)
	a := m.Coordinates(verts[0])
	b := m.Coordinates(verts[1])
	d := m.Coordinates(verts[3])
	area := math.Abs((b[0]-a[0])*(d[1]-a[1]) - (d[0]-a[0])*(b[1]-a[1]))
	r := rule{}
	for _, s := range gauss2pts {
		for _, t := range gauss2pts {
			r.points = append(r.points, []float64{
				a[0] + s*(b[0]-a[0]) + t*(d[0]-a[0]),
				a[1] + s*(b[1]-a[1]) + t*(d[1]-a[1]),
			})
			r.weights = append(r.weights, 0.25*area)
			r.basis = append(r.basis, []float64{
				(1 - s) * (1 - t), s * (1 - t), s * t, (1 - s) * t,
			})
		}
	}
	return r
}

func centroidRule(m *mesh.Mesh, verts []int) rule {
	dim := len(m.Coordinates(verts[0]))
	centroid := make([]float64, dim)
	for _, v := range verts {
		xv := m.Coordinates(v)
		for k := range centroid {
			centroid[k] += xv[k]
		}
	}
	for k := range centroid {
		centroid[k] /= float64(len(verts))
	}
	var measure float64
	switch len(verts) {
	case 2:
		measure = math.Abs(m.Coordinates(verts[1])[0] - m.Coordinates(verts[0])[0])
	case 3:
		a, b, c := m.Coordinates(verts[0]), m.Coordinates(verts[1]), m.Coordinates(verts[2])
		measure = 0.5 * math.Abs((b[0]-a[0])*(c[1]-a[1])-(c[0]-a[0])*(b[1]-a[1]))
	default:
		a, b, d := m.Coordinates(verts[0]), m.Coordinates(verts[1]), m.Coordinates(verts[3])
		measure = math.Abs((b[0]-a[0])*(d[1]-a[1]) - (d[0]-a[0])*(b[1]-a[1]))
	}
	return rule{
		points:  [][]float64{centroid},
		weights: []float64{measure},
		basis:   [][]float64{{1}},
	}
}
