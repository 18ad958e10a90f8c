// Package field holds discrete functions: the dof value arrays attached to
// a function space. Functions on mixed and vector spaces expose subspace
// views that alias the root storage, so writing a boundary value through a
// view updates the assembled system vector in place.
package field

import (
	"errors"
	"fmt"

	"github.com/wyvern-fem/wyvern/expr"
	"github.com/wyvern-fem/wyvern/fespace"
)

var (
	// ErrPointEvaluation is returned when interpolating onto an element
	// without point-evaluation dofs.
	ErrPointEvaluation = errors.New("field: element does not support point evaluation")
	// ErrShape is returned when an expression's value size does not match
	// the space.
	ErrShape = errors.New("field: value shape mismatch")
	// ErrMixed is returned for nodal operations on a mixed-space function,
	// which have no single node set.
	ErrMixed = errors.New("field: operation needs a non-mixed space")
	// ErrBadSubset is returned when a node subset belongs to a different
	// space than the function it is applied to.
	ErrBadSubset = errors.New("field: subset indexes a different space")
)

// Function is a discrete function: one value vector over a function space,
// or a view into part of one.
type Function struct {
	space *fespace.FunctionSpace
	data  []float64 // root storage, shared by all views
	view  bool      // true when data belongs to an enclosing function

	// view layout: dof k of node n lives at off + n*stride + k
	off, stride, vs int

	subs []*Function
}

// New returns the zero function on V. V may be any space, including a
// mixed space or a subspace view; in the latter case the function owns
// standalone storage for just that subspace.
func New(V *fespace.FunctionSpace) *Function {
	f := &Function{space: V, data: make([]float64, V.DofCount())}
	if !V.Mixed() {
		f.stride = V.ValueSize()
		f.vs = V.ValueSize()
	}
	return f
}

// Space returns the function space the function (or view) lives on.
func (f *Function) Space() *fespace.FunctionSpace { return f.space }

// View reports whether the function aliases an enclosing function's storage.
func (f *Function) View() bool { return f.view }

// Len returns the number of scalar values the function stores.
func (f *Function) Len() int { return f.space.DofCount() }

// Data returns the backing value storage of a function that owns its data.
// Views alias an enclosing function's storage and have no contiguous data
// of their own; Data panics for them.
func (f *Function) Data() []float64 {
	if f.view {
		panic("field: Data on a subspace view")
	}
	return f.data
}

// Sub returns the view of subspace i: a member of a mixed function or a
// component of a vector one. Views are memoized and alias f's storage.
func (f *Function) Sub(i int) *Function {
	V := f.space
	sub := V.Sub(i) // validates i
	if f.subs == nil {
		f.subs = make([]*Function, V.Len())
	}
	if s := f.subs[i]; s != nil {
		return s
	}

	var s *Function
	if V.Mixed() {
		s = &Function{
			space: sub, data: f.data, view: true,
			off: V.SegmentOffset(i), stride: sub.ValueSize(), vs: sub.ValueSize(),
		}
	} else {
		s = &Function{
			space: sub, data: f.data, view: true,
			off: f.off + i, stride: f.stride, vs: 1,
		}
	}
	f.subs[i] = s
	return s
}

// At returns component comp of node n.
func (f *Function) At(n, comp int) float64 {
	return f.data[f.off+n*f.stride+comp]
}

// SetAt sets component comp of node n.
func (f *Function) SetAt(n, comp int, v float64) {
	f.data[f.off+n*f.stride+comp] = v
}

// checkSubset validates that sub, when non-nil, indexes f's space.
func (f *Function) checkSubset(sub *fespace.Subset) error {
	if sub != nil && !sub.Space().Equal(f.space) {
		return fmt.Errorf("%w: %v vs %v", ErrBadSubset, sub.Space(), f.space)
	}
	return nil
}

// nodes returns the node ids an operation runs over: the subset when given,
// every node otherwise.
func (f *Function) nodes(sub *fespace.Subset) []int {
	if sub != nil {
		return sub.Indices()
	}
	all := make([]int, f.space.NodeCount())
	for i := range all {
		all[i] = i
	}
	return all
}

// Zero sets the function to zero on the subset, or everywhere when sub is
// nil.
func (f *Function) Zero(sub *fespace.Subset) error {
	if f.space.Mixed() {
		if sub != nil {
			return ErrMixed
		}
		for i := range f.data {
			f.data[i] = 0
		}
		return nil
	}
	if err := f.checkSubset(sub); err != nil {
		return err
	}
	for _, n := range f.nodes(sub) {
		for k := 0; k < f.vs; k++ {
			f.SetAt(n, k, 0)
		}
	}
	return nil
}

// Assign copies g's values into f on the subset, or everywhere when sub is
// nil. f and g must live on the same space.
func (f *Function) Assign(g *Function, sub *fespace.Subset) error {
	if f.space.Mixed() {
		return ErrMixed
	}
	if !g.space.Equal(f.space) {
		return fmt.Errorf("%w: assigning %v to %v", ErrShape, g.space, f.space)
	}
	if err := f.checkSubset(sub); err != nil {
		return err
	}
	for _, n := range f.nodes(sub) {
		for k := 0; k < f.vs; k++ {
			f.SetAt(n, k, g.At(n, k))
		}
	}
	return nil
}

// AssignDiff sets f to u - g on the subset, or everywhere when sub is nil.
// All three functions must live on the same space.
func (f *Function) AssignDiff(u, g *Function, sub *fespace.Subset) error {
	if f.space.Mixed() {
		return ErrMixed
	}
	if !u.space.Equal(f.space) || !g.space.Equal(f.space) {
		return fmt.Errorf("%w: differencing %v and %v on %v", ErrShape, u.space, g.space, f.space)
	}
	if err := f.checkSubset(sub); err != nil {
		return err
	}
	for _, n := range f.nodes(sub) {
		for k := 0; k < f.vs; k++ {
			f.SetAt(n, k, u.At(n, k)-g.At(n, k))
		}
	}
	return nil
}

// Interpolate fills f with e evaluated at its space's node positions. The
// element must have point-evaluation dofs; for others (where a dof is a
// derivative or moment, not a point value) callers fall back to L2
// projection.
func (f *Function) Interpolate(e expr.Expr) error {
	V := f.space
	if V.Mixed() {
		return ErrMixed
	}
	if e.ValueSize() != V.ValueSize() {
		return fmt.Errorf("%w: expression has %d components, space stores %d per node",
			ErrShape, e.ValueSize(), V.ValueSize())
	}
	if !V.Element().SupportsPointEvaluation() {
		return fmt.Errorf("%w: %s", ErrPointEvaluation, V.Element())
	}
	out := make([]float64, f.vs)
	n := V.NodeCount()
	for i := 0; i < n; i++ {
		e.Eval(V.NodeCoordinates(i), out)
		for k := 0; k < f.vs; k++ {
			f.SetAt(i, k, out[k])
		}
	}
	return nil
}

// Copy returns a new function on the same space with the same values.
// Copying a view copies only the view's logical values into a fresh
// standalone function on the view's space.
func (f *Function) Copy() *Function {
	if !f.view {
		out := New(f.space)
		copy(out.data, f.data)
		return out
	}
	out := New(f.space)
	n := f.space.NodeCount()
	for i := 0; i < n; i++ {
		for k := 0; k < f.vs; k++ {
			out.SetAt(i, k, f.At(i, k))
		}
	}
	return out
}
