// Package form describes variational forms as collections of integral
// terms with evaluatable kernels, plus the small algebra over them that
// equation boundary conditions need: action of a bilinear form on a
// coefficient, subtraction, and linearization.
//
// A kernel adds one cell's (or facet's) contribution into a zeroed local
// buffer laid out like the space's CellNodes (FacetNodes) with the value
// components of each node consecutive. The assembler owns buffers and
// scatter; kernels only fill them.
package form

import (
	"fmt"
	"math"

	"github.com/wyvern-fem/wyvern/fespace"
	"github.com/wyvern-fem/wyvern/field"
	"github.com/wyvern-fem/wyvern/mesh"
)

// Argument is a test or trial function symbol on a function space.
type Argument struct {
	space  *fespace.FunctionSpace
	number int
}

// TestFunction returns the test argument (number 0) on V.
func TestFunction(V *fespace.FunctionSpace) Argument { return Argument{space: V, number: 0} }

// TrialFunction returns the trial argument (number 1) on V.
func TrialFunction(V *fespace.FunctionSpace) Argument { return Argument{space: V, number: 1} }

// Space returns the argument's function space.
func (a Argument) Space() *fespace.FunctionSpace { return a.space }

// Number returns the argument position: 0 for test, 1 for trial.
func (a Argument) Number() int { return a.number }

// DomainType says which mesh entities an integral runs over.
type DomainType uint8

const (
	// CellDomain integrates over every cell.
	CellDomain DomainType = iota
	// FacetDomain integrates over a set of exterior facets.
	FacetDomain
)

func (d DomainType) String() string {
	switch d {
	case CellDomain:
		return "cell"
	case FacetDomain:
		return "exterior_facet"
	default:
		return fmt.Sprintf("DomainType(%d)", uint8(d))
	}
}

// VectorKernel adds a cell's contribution to a rank-1 form into out, laid
// out like the test space's CellNodes.
type VectorKernel func(cell int, coeff *field.Function, out []float64)

// MatrixKernel adds a cell's contribution to a rank-2 form into out, rows
// indexed like the test space's CellNodes, columns like the trial space's.
type MatrixKernel func(cell int, coeff *field.Function, out [][]float64)

// FacetVectorKernel is VectorKernel's counterpart on an exterior facet,
// laid out like the test space's FacetNodes.
type FacetVectorKernel func(f mesh.Facet, coeff *field.Function, out []float64)

// FacetMatrixKernel is MatrixKernel's counterpart on an exterior facet.
type FacetMatrixKernel func(f mesh.Facet, coeff *field.Function, out [][]float64)

// Integral is one term of a form: a domain, the facet selector for facet
// terms, and the kernel matching the form's rank.
type Integral struct {
	Domain DomainType
	Over   fespace.SubDomain // facet terms only

	CellV  VectorKernel
	CellM  MatrixKernel
	FacetV FacetVectorKernel
	FacetM FacetMatrixKernel
}

// Rank returns 1 for vector terms, 2 for matrix terms.
func (it Integral) Rank() int {
	if it.CellM != nil || it.FacetM != nil {
		return 2
	}
	return 1
}

// CellTerm returns the rank-1 cell integral with the given kernel.
func CellTerm(k VectorKernel) Integral { return Integral{Domain: CellDomain, CellV: k} }

// CellMatrixTerm returns the rank-2 cell integral with the given kernel.
func CellMatrixTerm(k MatrixKernel) Integral { return Integral{Domain: CellDomain, CellM: k} }

// FacetTerm returns the rank-1 facet integral over the given boundary
// region.
func FacetTerm(over fespace.SubDomain, k FacetVectorKernel) Integral {
	return Integral{Domain: FacetDomain, Over: over, FacetV: k}
}

// FacetMatrixTerm returns the rank-2 facet integral over the given
// boundary region.
func FacetMatrixTerm(over fespace.SubDomain, k FacetMatrixKernel) Integral {
	return Integral{Domain: FacetDomain, Over: over, FacetM: k}
}

// Form is a variational form: its arguments and its integral terms.
type Form struct {
	test      Argument
	trial     *Argument
	integrals []Integral
}

// New returns the rank-1 form with the given test argument and terms.
func New(test Argument, integrals ...Integral) *Form {
	f := &Form{test: test, integrals: integrals}
	for _, it := range f.integrals {
		if it.Rank() != 1 {
			panic("form: rank-1 form built from a matrix term")
		}
	}
	return f
}

// NewMatrix returns the rank-2 form with the given test and trial
// arguments and terms.
func NewMatrix(test, trial Argument, integrals ...Integral) *Form {
	tr := trial
	f := &Form{test: test, trial: &tr, integrals: integrals}
	for _, it := range f.integrals {
		if it.Rank() != 2 {
			panic("form: rank-2 form built from a vector term")
		}
	}
	return f
}

// Arity returns the number of arguments: 1 for residual forms, 2 for
// bilinear ones.
func (f *Form) Arity() int {
	if f.trial != nil {
		return 2
	}
	return 1
}

// Arguments returns the form's arguments in argument-number order.
func (f *Form) Arguments() []Argument {
	if f.trial != nil {
		return []Argument{f.test, *f.trial}
	}
	return []Argument{f.test}
}

// TestSpace returns the test argument's space.
func (f *Form) TestSpace() *fespace.FunctionSpace { return f.test.space }

// TrialSpace returns the trial argument's space, nil for rank-1 forms.
func (f *Form) TrialSpace() *fespace.FunctionSpace {
	if f.trial == nil {
		return nil
	}
	return f.trial.space
}

// Integrals returns the form's terms. The slice is shared, callers must
// not mutate it.
func (f *Form) Integrals() []Integral { return f.integrals }

// Action applies the bilinear form J to the coefficient u, producing the
// rank-1 form v -> J(u, v). J must be rank 2 and u must live on J's trial
// space.
func Action(J *Form, u *field.Function) *Form {
	if J.Arity() != 2 {
		panic("form: action needs a rank-2 form")
	}
	Vt := J.trial.space
	if !u.Space().Equal(Vt) {
		panic("form: action coefficient lives on the wrong space")
	}
	out := &Form{test: J.test}
	for _, it := range J.integrals {
		out.integrals = append(out.integrals, actionTerm(it, Vt, u))
	}
	return out
}

func actionTerm(it Integral, Vt *fespace.FunctionSpace, u *field.Function) Integral {
	vs := Vt.ValueSize()
	contract := func(rows [][]float64, nodes []int, out []float64) {
		for i := range out {
			s := 0.0
			for j, n := range nodes {
				for k := 0; k < vs; k++ {
					s += rows[i][j*vs+k] * u.At(n, k)
				}
			}
			out[i] += s
		}
	}
	switch it.Domain {
	case CellDomain:
		mk := it.CellM
		return CellTerm(func(c int, coeff *field.Function, out []float64) {
			nodes := Vt.CellNodes(c)
			tmp := newLocalMatrix(len(out), len(nodes)*vs)
			mk(c, coeff, tmp)
			contract(tmp, nodes, out)
		})
	default:
		mk := it.FacetM
		return FacetTerm(it.Over, func(f mesh.Facet, coeff *field.Function, out []float64) {
			nodes := Vt.FacetNodes(f)
			tmp := newLocalMatrix(len(out), len(nodes)*vs)
			mk(f, coeff, tmp)
			contract(tmp, nodes, out)
		})
	}
}

// Subtract returns a - b. Both forms must have the same arity and test
// space.
func Subtract(a, b *Form) *Form {
	if a.Arity() != b.Arity() {
		panic("form: subtracting forms of different arity")
	}
	if !a.test.space.Equal(b.test.space) {
		panic("form: subtracting forms over different test spaces")
	}
	out := &Form{test: a.test, trial: a.trial}
	out.integrals = append(out.integrals, a.integrals...)
	for _, it := range b.integrals {
		out.integrals = append(out.integrals, negateTerm(it))
	}
	return out
}

func negateTerm(it Integral) Integral {
	switch {
	case it.CellV != nil:
		k := it.CellV
		it.CellV = func(c int, coeff *field.Function, out []float64) {
			tmp := make([]float64, len(out))
			k(c, coeff, tmp)
			for i := range out {
				out[i] -= tmp[i]
			}
		}
	case it.FacetV != nil:
		k := it.FacetV
		it.FacetV = func(f mesh.Facet, coeff *field.Function, out []float64) {
			tmp := make([]float64, len(out))
			k(f, coeff, tmp)
			for i := range out {
				out[i] -= tmp[i]
			}
		}
	case it.CellM != nil:
		k := it.CellM
		it.CellM = func(c int, coeff *field.Function, out [][]float64) {
			tmp := newLocalMatrix(len(out), len(out[0]))
			k(c, coeff, tmp)
			for i := range out {
				for j := range out[i] {
					out[i][j] -= tmp[i][j]
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
					out[i][j] -= tmp[i][j]
				}
			}
		}
	}
	return it
}

// fdStep is the central-difference step for Derivative, scaled by the
// perturbed value's magnitude.
const fdStep = 1e-6

// Derivative linearizes the rank-1 form F around the coefficient u: the
// returned rank-2 form's kernels compute dF/du columnwise by central
// differences. Kernels perturb a private copy of the coefficient, so the
// result is safe to assemble concurrently.
func Derivative(F *Form, u *field.Function) *Form {
	if F.Arity() != 1 {
		panic("form: derivative needs a rank-1 form")
	}
	V := u.Space()
	trial := TrialFunction(V)
	out := &Form{test: F.test, trial: &trial}
	for _, it := range F.integrals {
		out.integrals = append(out.integrals, derivativeTerm(it, V))
	}
	return out
}

func derivativeTerm(it Integral, V *fespace.FunctionSpace) Integral {
	vs := V.ValueSize()
	diff := func(eval func(w *field.Function, buf []float64), coeff *field.Function, nodes []int, out [][]float64) {
		if coeff == nil {
			// a term with no coefficient has a zero derivative
			return
		}
		w := coeff.Copy()
		rows := len(out)
		fp := make([]float64, rows)
		fm := make([]float64, rows)
		for j, n := range nodes {
			for k := 0; k < vs; k++ {
				col := j*vs + k
				orig := w.At(n, k)
				h := fdStep * math.Max(1, math.Abs(orig))

				w.SetAt(n, k, orig+h)
				zero(fp)
				eval(w, fp)
				w.SetAt(n, k, orig-h)
				zero(fm)
				eval(w, fm)
				w.SetAt(n, k, orig)

				for i := 0; i < rows; i++ {
					out[i][col] += (fp[i] - fm[i]) / (2 * h)
				}
			}
		}
	}
	switch it.Domain {
	case CellDomain:
		vk := it.CellV
		return CellMatrixTerm(func(c int, coeff *field.Function, out [][]float64) {
			diff(func(w *field.Function, buf []float64) { vk(c, w, buf) }, coeff, V.CellNodes(c), out)
		})
	default:
		vk := it.FacetV
		return FacetMatrixTerm(it.Over, func(f mesh.Facet, coeff *field.Function, out [][]float64) {
			diff(func(w *field.Function, buf []float64) { vk(f, w, buf) }, coeff, V.FacetNodes(f), out)
		})
	}
}

func newLocalMatrix(rows, cols int) [][]float64 {
	buf := make([]float64, rows*cols)
	out := make([][]float64, rows)
	for i := range out {
		out[i] = buf[i*cols : (i+1)*cols]
	}
	return out
}

func zero(s []float64) {
	for i := range s {
		s[i] = 0
	}
}

// Equation pairs a left- and a right-hand side. Each side is a *Form or
// a Tensor; a nil Rhs means the right-hand side is identically zero.
// Consumers extract the sides with AsForm.
type Equation struct {
	Lhs any
	Rhs any
}

// Eq returns the equation lhs == rhs. Pass a nil rhs for lhs == 0.
func Eq(lhs, rhs any) Equation { return Equation{Lhs: lhs, Rhs: rhs} }

// AsForm extracts the weak form from a form-or-tensor value. The second
// return is false when v is neither; a nil v extracts as a nil form.
func AsForm(v any) (*Form, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case *Form:
		return x, true
	case Tensor:
		return x.f, true
	}
	return nil, false
}
