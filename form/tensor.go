package form

import (
	"github.com/wyvern-fem/wyvern/field"
	"github.com/wyvern-fem/wyvern/mesh"
)

// Tensor treats a form's element tensors as algebraic objects: expressions
// built by scaling, negating and summing forms before anything is
// assembled. A Tensor stands in for a form when declaring an equation;
// Form converts back for every other consumer.
//
// The algebra never evaluates kernels itself. Each operation wraps the
// operand kernels, so the cost is paid once, at assembly.
type Tensor struct {
	f *Form
}

// AsTensor lifts f into tensor algebra.
func AsTensor(f *Form) Tensor {
	if f == nil {
		panic("form: nil form has no tensor")
	}
	return Tensor{f: f}
}

// Form returns the weak form the expression has accumulated.
func (t Tensor) Form() *Form { return t.f }

// Arity returns the number of arguments.
func (t Tensor) Arity() int { return t.f.Arity() }

// Arguments returns the test (and trial) arguments.
func (t Tensor) Arguments() []Argument { return t.f.Arguments() }

// Integrals returns the expression's integral terms.
func (t Tensor) Integrals() []Integral { return t.f.Integrals() }

// Add returns t + u. Operands must match in arity and test space.
func (t Tensor) Add(u Tensor) Tensor {
	if t.f.Arity() != u.f.Arity() {
		panic("form: adding tensors of different arity")
	}
	if !t.f.test.space.Equal(u.f.test.space) {
		panic("form: adding tensors over different test spaces")
	}
	out := &Form{test: t.f.test, trial: t.f.trial}
	out.integrals = append(out.integrals, t.f.integrals...)
	out.integrals = append(out.integrals, u.f.integrals...)
	return Tensor{f: out}
}

// Sub returns t - u under the same compatibility rules as Add.
func (t Tensor) Sub(u Tensor) Tensor { return Tensor{f: Subtract(t.f, u.f)} }

// Negate returns -t.
func (t Tensor) Negate() Tensor { return t.Scale(-1) }

// Scale returns a*t.
func (t Tensor) Scale(a float64) Tensor {
	out := &Form{test: t.f.test, trial: t.f.trial}
	for _, it := range t.f.integrals {
		out.integrals = append(out.integrals, scaleTerm(it, a))
	}
	return Tensor{f: out}
}

func scaleTerm(it Integral, a float64) Integral {
	switch {
	case it.CellV != nil:
		k := it.CellV
		it.CellV = func(c int, coeff *field.Function, out []float64) {
			tmp := make([]float64, len(out))
			k(c, coeff, tmp)
			for i := range out {
				out[i] += a * tmp[i]
			}
		}
	case it.FacetV != nil:
		k := it.FacetV
		it.FacetV = func(f mesh.Facet, coeff *field.Function, out []float64) {
			tmp := make([]float64, len(out))
			k(f, coeff, tmp)
			for i := range out {
				out[i] += a * tmp[i]
			}
		}
	case it.CellM != nil:
		k := it.CellM
		it.CellM = func(c int, coeff *field.Function, out [][]float64) {
			tmp := newLocalMatrix(len(out), len(out[0]))
			k(c, coeff, tmp)
			for i := range out {
				for j := range out[i] {
					out[i][j] += a * tmp[i][j]
				}
			}
		}
	case it.FacetM != nil:
		k := it.FacetM
		it.FacetM = func(f mesh.Facet, coeff *field.Function, out [][]float64) {
			tmp := newLocalMatrix(len(out), len(out[0]))
			k(f, coeff, tmp)
			for i := range out {
				for j := range out[i] {
					out[i][j] += a * tmp[i][j]
				}
			}
		}
	}
	return it
}
