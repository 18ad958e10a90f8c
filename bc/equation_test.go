package bc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wyvern-fem/wyvern/element"
	"github.com/wyvern-fem/wyvern/fespace"
	"github.com/wyvern-fem/wyvern/field"
	"github.com/wyvern-fem/wyvern/form"
	"github.com/wyvern-fem/wyvern/mesh"
)

func p1Interval(n int) *fespace.FunctionSpace {
	return fespace.New(mesh.Interval(n, 1.0), element.New(element.Lagrange, 1))
}

// massJ is the P1 interval mass matrix, h/6 * [[2,1],[1,2]].
func massJ(V *fespace.FunctionSpace) *form.Form {
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

// massF applies the same operator to the coefficient directly.
func massF(V *fespace.FunctionSpace) *form.Form {
	return form.New(form.TestFunction(V),
		form.CellTerm(func(c int, coeff *field.Function, out []float64) {
			verts := V.Mesh().Cell(c)
			h := V.Mesh().Coordinates(verts[1])[0] - V.Mesh().Coordinates(verts[0])[0]
			u0, u1 := coeff.At(verts[0], 0), coeff.At(verts[1], 0)
			out[0] += h / 6 * (2*u0 + u1)
			out[1] += h / 6 * (u0 + 2*u1)
		}))
}

func TestEquationLinear(t *testing.T) {
	assert := require.New(t)

	V := p1Interval(4)
	u := field.New(V)
	J := massJ(V)
	L := massF(V)

	e, err := NewEquation(form.Eq(J, L), u, 1)
	assert.NoError(err)
	assert.True(e.IsLinear())
	assert.True(e.Jacobian() == J)
	assert.True(e.Unknown() == u)
	assert.True(e.FunctionSpace().Equal(V))

	// residual is action(J, u) - L: one action term plus one negated term
	assert.Equal(1, e.Residual().Arity())
	assert.Len(e.Residual().Integrals(), 2)

	// without a right-hand side the residual is the bare action
	homog, err := NewEquation(form.Eq(J, nil), u, 1)
	assert.NoError(err)
	assert.Len(homog.Residual().Integrals(), 1)

	// the default preconditioner is the Jacobian itself
	assert.True(e.UsesDefaultPreconditioner())
	assert.True(e.Preconditioner() == e.Jacobian())

	Jp := massJ(V)
	pre, err := NewEquation(form.Eq(J, L), u, 1, WithPreconditioner(Jp))
	assert.NoError(err)
	assert.False(pre.UsesDefaultPreconditioner())
	assert.True(pre.Preconditioner() == Jp)

	// a Jacobian override is not consulted in the linear case
	ignored, err := NewEquation(form.Eq(J, L), u, 1, WithJacobian(massJ(V)))
	assert.NoError(err)
	assert.True(ignored.Jacobian() == J)
}

func TestEquationLinearResidualValues(t *testing.T) {
	assert := require.New(t)

	V := p1Interval(2)
	u := field.New(V)
	for n := 0; n < V.NodeCount(); n++ {
		u.SetAt(n, 0, 1)
	}
	J := massJ(V)

	// with rhs = J*u the residual terms cancel cell by cell
	e, err := NewEquation(form.Eq(J, form.Action(J, u)), u, 1)
	assert.NoError(err)
	out := make([]float64, 2)
	for _, it := range e.Residual().Integrals() {
		it.CellV(0, u, out)
	}
	assert.InDelta(0, out[0], 1e-14)
	assert.InDelta(0, out[1], 1e-14)
}

func TestEquationNonlinear(t *testing.T) {
	assert := require.New(t)

	V := p1Interval(3)
	u := field.New(V)
	F := massF(V)

	e, err := NewEquation(form.Eq(F, nil), u, 2)
	assert.NoError(err)
	assert.False(e.IsLinear())
	assert.True(e.Residual() == F)
	assert.Equal(2, e.Jacobian().Arity())
	assert.True(e.UsesDefaultPreconditioner())
	assert.True(e.Preconditioner() == e.Jacobian())

	// the default Jacobian is the residual's linearization: for the mass
	// operator that is the mass matrix itself
	got := [][]float64{make([]float64, 2), make([]float64, 2)}
	want := [][]float64{make([]float64, 2), make([]float64, 2)}
	e.Jacobian().Integrals()[0].CellM(0, u, got)
	massJ(V).Integrals()[0].CellM(0, u, want)
	for i := range got {
		for j := range got[i] {
			assert.InDelta(want[i][j], got[i][j], 1e-9)
		}
	}

	J := massJ(V)
	withJ, err := NewEquation(form.Eq(F, nil), u, 2, WithJacobian(J))
	assert.NoError(err)
	assert.True(withJ.Jacobian() == J)
	assert.True(withJ.Preconditioner() == J)
}

func TestEquationShapeErrors(t *testing.T) {
	assert := require.New(t)

	V := p1Interval(3)
	u := field.New(V)
	J := massJ(V)
	F := massF(V)

	_, err := NewEquation(form.Eq(nil, nil), u, 1)
	assert.ErrorIs(err, ErrFormShape)

	_, err = NewEquation(form.Eq(J, nil), nil, 1)
	assert.ErrorIs(err, ErrConfiguration)

	// linear equation with a bilinear right-hand side
	_, err = NewEquation(form.Eq(J, massJ(V)), u, 1)
	assert.ErrorIs(err, ErrFormShape)

	// nonlinear equation must come with a zero right-hand side
	_, err = NewEquation(form.Eq(F, F), u, 1)
	assert.ErrorIs(err, ErrFormShape)

	// explicit Jacobian and preconditioner must be bilinear
	_, err = NewEquation(form.Eq(F, nil), u, 1, WithJacobian(F))
	assert.ErrorIs(err, ErrFormShape)
	_, err = NewEquation(form.Eq(F, nil), u, 1, WithPreconditioner(F))
	assert.ErrorIs(err, ErrFormShape)

	// unknown on a different space than the trial argument
	_, err = NewEquation(form.Eq(J, nil), field.New(p1Interval(5)), 1)
	assert.ErrorIs(err, ErrIncompatibleSpace)

	// a side that is neither a form nor a tensor
	_, err = NewEquation(form.Eq("J", nil), u, 1)
	assert.ErrorIs(err, ErrFormShape)
	_, err = NewEquation(form.Eq(J, 0.0), u, 1)
	assert.ErrorIs(err, ErrFormShape)
}

func TestEquationFromTensor(t *testing.T) {
	assert := require.New(t)

	V := p1Interval(4)
	u := field.New(V)
	for n := 0; n < V.NodeCount(); n++ {
		u.SetAt(n, 0, 1)
	}

	// tensor expressions are accepted in place of forms on either side
	lhs := form.AsTensor(massJ(V)).Scale(2)
	e, err := NewEquation(form.Eq(lhs, nil), u, 1)
	assert.NoError(err)
	assert.True(e.IsLinear())

	plain, err := NewEquation(form.Eq(massJ(V), nil), u, 1)
	assert.NoError(err)
	got := make([]float64, 2)
	want := make([]float64, 2)
	e.Residual().Integrals()[0].CellV(0, u, got)
	plain.Residual().Integrals()[0].CellV(0, u, want)
	assert.InDelta(2*want[0], got[0], 1e-14)
	assert.InDelta(2*want[1], got[1], 1e-14)
}

func TestEquationSplit(t *testing.T) {
	assert := require.New(t)

	V := p1Interval(4)
	u := field.New(V)
	e, err := NewEquation(form.Eq(massJ(V), massF(V)), u, 1)
	assert.NoError(err)

	sf, err := e.Split(SplitF)
	assert.NoError(err)
	sj, err := e.Split(SplitJ)
	assert.NoError(err)
	sjp, err := e.Split(SplitJp)
	assert.NoError(err)

	assert.True(sf.Form() == e.Residual())
	assert.True(sj.Form() == e.Jacobian())
	assert.True(sjp.Form() == e.Preconditioner())
	assert.Equal(SplitF, sf.Kind())
	assert.True(sf.Parent() == e)
	assert.True(sf.Unknown() == u)
	assert.Len(sf.Integrals(), 2)
	assert.Len(sj.Integrals(), 1)

	// the splits share the parent's identity and node resolution
	assert.Equal(e.CacheKey(), sf.CacheKey())
	assert.True(sf.NodeSet() == e.NodeSet())
	assert.True(sj.NodeSet() == sf.NodeSet())

	_, err = e.Split(SplitKind("X"))
	assert.ErrorIs(err, ErrConfiguration)
}

func TestEquationNestedConditions(t *testing.T) {
	assert := require.New(t)

	V := p1Interval(4)
	u := field.New(V)
	e, err := NewEquation(form.Eq(massJ(V), nil), u, 1)
	assert.NoError(err)

	sf, err := e.Split(SplitF)
	assert.NoError(err)
	assert.Empty(sf.NestedBCs())

	inner, err := NewDirichlet(V, 0.0, 2)
	assert.NoError(err)
	e.AttachBC(inner)

	// splits made before or after the attach both see the parent's list
	assert.Len(sf.NestedBCs(), 1)
	assert.True(sf.NestedBCs()[0].(*Dirichlet) == inner)

	nested, err := NewEquation(form.Eq(massJ(V), nil), u, 2)
	assert.NoError(err)
	e.AttachBC(nested)
	assert.Len(e.NestedBCs(), 2)
	assert.Len(sf.NestedBCs(), 2)
}
