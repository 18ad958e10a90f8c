package assemble

import (
	"fmt"

	"github.com/wyvern-fem/wyvern/bc"
	"github.com/wyvern-fem/wyvern/field"
	"github.com/wyvern-fem/wyvern/matrix"
)

// applyVectorCondition eliminates one condition from an assembled residual,
// recursing through equation conditions. Returns the number of kernel
// executions the recursion caused.
func applyVectorCondition(out *field.Function, c bc.Condition, u *field.Function) (int, error) {
	switch x := c.(type) {
	case *bc.Dirichlet:
		if u != nil {
			return 0, x.Apply(out, u)
		}
		return 0, x.Apply(out)
	case *bc.Equation:
		s, err := x.Split(bc.SplitF)
		if err != nil {
			return 0, err
		}
		return applyVectorEquation(out, s)
	case *bc.EquationSplit:
		return applyVectorEquation(out, x)
	default:
		return 0, fmt.Errorf("assemble: cannot apply condition type %T to a vector", c)
	}
}

// applyVectorEquation replaces the constrained rows of out with the
// equation's own assembled residual, then applies the equation's nested
// conditions on top.
func applyVectorEquation(out *field.Function, s *bc.EquationSplit) (int, error) {
	f := s.Form()
	if f.Arity() != 1 {
		return 0, fmt.Errorf("%w: equation split %q is not a residual", ErrShape, s.Kind())
	}
	if !rootOf(f.TestSpace()).Equal(out.Space()) {
		return 0, fmt.Errorf("%w: equation rows on %v, residual on %v",
			ErrSpace, rootOf(f.TestSpace()), out.Space())
	}

	scratch := make([]float64, len(out.Data()))
	runs, err := runVectorTerms(scratch, f, s.Unknown())
	if err != nil {
		return 0, err
	}
	for _, dof := range s.ConstrainedDofs() {
		out.Data()[dof] = scratch[dof]
	}

	for _, nested := range s.NestedBCs() {
		more, err := applyVectorCondition(out, nested, s.Unknown())
		if err != nil {
			return 0, err
		}
		runs += more
	}
	return runs, nil
}

// applyMatrixEquation replaces the constrained rows of out with the rows of
// the equation's own Jacobian, then applies the nested conditions.
func applyMatrixEquation(out *matrix.Dense, c bc.Condition) (int, error) {
	var s *bc.EquationSplit
	switch x := c.(type) {
	case *bc.Equation:
		var err error
		if s, err = x.Split(bc.SplitJ); err != nil {
			return 0, err
		}
	case *bc.EquationSplit:
		s = x
	default:
		return 0, fmt.Errorf("assemble: cannot apply condition type %T to a matrix", c)
	}

	f := s.Form()
	if f.Arity() != 2 {
		return 0, fmt.Errorf("%w: equation split %q is not a Jacobian", ErrShape, s.Kind())
	}
	n, _ := out.Dims()
	if rootOf(f.TestSpace()).DofCount() != n || !rootOf(f.TestSpace()).Equal(rootOf(f.TrialSpace())) {
		return 0, fmt.Errorf("%w: equation Jacobian does not fit the assembled system", ErrSpace)
	}

	tr, runs, err := runMatrixTerms(n, f, s.Unknown())
	if err != nil {
		return 0, err
	}
	rows := tr.Flush()
	for _, r := range s.ConstrainedDofs() {
		out.ZeroRows([]int{r}, 0)
		for j := 0; j < n; j++ {
			if v := rows.At(r, j); v != 0 {
				out.Add(r, j, v)
			}
		}
	}

	for _, nested := range s.NestedBCs() {
		switch x := nested.(type) {
		case *bc.Equation, *bc.EquationSplit:
			more, err := applyMatrixEquation(out, x)
			if err != nil {
				return 0, err
			}
			runs += more
		default:
			out.AddBC(nested)
		}
	}
	return runs, nil
}
