package bc

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/wyvern-fem/wyvern/expr"
	"github.com/wyvern-fem/wyvern/fespace"
	"github.com/wyvern-fem/wyvern/field"
	"github.com/wyvern-fem/wyvern/logger"
	"github.com/wyvern-fem/wyvern/projection"
)

// Dirichlet pins the dofs of a boundary region to a prescribed value.
//
// The value given at construction is kept in two forms: the argument as
// supplied (a function, an expression, or anything coercible to one) and
// its resolution to nodal values on the condition's space. Homogenize
// temporarily replaces the resolution with zero, Restore brings the last
// resolution back, and SetValue permanently replaces both, which is the
// shape nonlinear solvers need: homogeneous conditions on Newton updates,
// the true value on the iterate.
//
// A Dirichlet instance must not be shared between goroutines without
// external serialization: the resolved value is mutable state.
type Dirichlet struct {
	*base

	originalArg any           // the supplied value, post coercion
	stateful    expr.Stateful // non-nil when originalArg reports mutations
	lastState   uint64

	resolved         *field.Function
	originalResolved *field.Function
	homogenized      bool
}

// NewDirichlet returns the condition pinning subDomain's dofs of V to g.
//
// g may be a *field.Function on V, an expr.Expr, or any value expr.As
// accepts (numeric scalars and slices). Values that cannot be evaluated
// pointwise on V's element are resolved by L2 projection instead of
// interpolation.
func NewDirichlet(V *fespace.FunctionSpace, g any, subDomain any, opts ...Option) (*Dirichlet, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	if cfg.jacobian != nil || cfg.preconditioner != nil {
		return nil, fmt.Errorf("%w: jacobian options only apply to equation conditions", ErrConfiguration)
	}
	b, err := newBase(V, subDomain, cfg.method)
	if err != nil {
		return nil, err
	}
	d := &Dirichlet{base: b}
	if err := d.setValue(g); err != nil {
		return nil, err
	}

	log := logger.Logger()
	log.Debug().Str("subDomain", d.sub.Key()).Str("method", d.method.String()).
		Msg("new dirichlet condition")
	return d, nil
}

// resolveValue turns a supplied boundary value into a function on the
// condition's space.
func (d *Dirichlet) resolveValue(g any) (resolved *field.Function, arg any, st expr.Stateful, err error) {
	V := d.space
	if fn, ok := g.(*field.Function); ok {
		if !fn.Space().Equal(V) {
			return nil, nil, nil, fmt.Errorf("%w: boundary value lives on %v, condition on %v",
				ErrIncompatibleSpace, fn.Space(), V)
		}
		return fn, fn, nil, nil
	}
	e, ok := g.(expr.Expr)
	if !ok {
		if e, ok = expr.As(g); !ok {
			return nil, nil, nil, fmt.Errorf("%w: cannot interpret %v (%T)", ErrInvalidValue, g, g)
		}
	}

	u := field.New(V)
	switch err := u.Interpolate(e); {
	case err == nil:
	case errors.Is(err, field.ErrPointEvaluation):
		if u, err = projection.Project(e, V); err != nil {
			return nil, nil, nil, err
		}
	case errors.Is(err, field.ErrShape):
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	default:
		return nil, nil, nil, err
	}
	st, _ = e.(expr.Stateful)
	return u, e, st, nil
}

// setValue runs the full resolution and moves the condition to the active
// state, updating the restore point.
func (d *Dirichlet) setValue(g any) error {
	resolved, arg, st, err := d.resolveValue(g)
	if err != nil {
		return err
	}
	d.originalArg = arg
	d.stateful = st
	if st != nil {
		d.lastState = st.State()
	}
	d.resolved = resolved
	d.originalResolved = resolved
	d.homogenized = false
	return nil
}

// Value returns the active boundary value as nodal data. When the
// prescribing expression has mutated since the last resolution the value
// is re-resolved first; no refresh happens while the condition is
// homogenized, so a zeroed condition stays zero.
func (d *Dirichlet) Value() (*field.Function, error) {
	if !d.homogenized && d.stateful != nil && d.stateful.State() != d.lastState {
		if err := d.setValue(d.originalArg); err != nil {
			return nil, err
		}
	}
	return d.resolved, nil
}

// SetValue permanently replaces the prescribed value: the condition
// becomes active and a later Restore comes back to g's resolution, not to
// any earlier value.
func (d *Dirichlet) SetValue(g any) error { return d.setValue(g) }

// Homogenize forces the active value to zero without touching the restore
// point. Calling it repeatedly is harmless.
func (d *Dirichlet) Homogenize() {
	d.resolved = field.New(d.space)
	d.homogenized = true
}

// Restore brings back the value resolved by the last construction or
// SetValue, undoing any Homogenize.
func (d *Dirichlet) Restore() {
	d.resolved = d.originalResolved
	d.homogenized = false
}

// Homogenized reports whether the active value is currently forced to
// zero.
func (d *Dirichlet) Homogenized() bool { return d.homogenized }

// Apply enforces the condition on a target.
//
// For an assembled operator (anything implementing Operator) the
// condition is recorded for row elimination and current is ignored. For a
// residual function r the constrained entries are overwritten: with no
// current, they become the boundary value itself; with a current iterate
// u, they become u - value, so the constrained residual vanishes exactly
// when the iterate satisfies the condition. r may live on the condition's
// space or any enclosing space; the index path narrows it down.
func (d *Dirichlet) Apply(target any, current ...*field.Function) error {
	if op, ok := target.(Operator); ok {
		op.AddBC(d)
		return nil
	}
	r, ok := target.(*field.Function)
	if !ok {
		return fmt.Errorf("%w: cannot apply to %T", ErrNotSupported, target)
	}
	if len(current) > 1 {
		return fmt.Errorf("%w: at most one current iterate", ErrConfiguration)
	}
	var u *field.Function
	if len(current) == 1 {
		u = current[0]
	}
	if u != nil && !u.Space().Equal(r.Space()) {
		return fmt.Errorf("%w: current iterate on %v, residual on %v",
			ErrIncompatibleSpace, u.Space(), r.Space())
	}

	rr, err := d.restrict(r)
	if err != nil {
		return err
	}
	g, err := d.Value()
	if err != nil {
		return err
	}
	if u != nil {
		uu, err := d.restrict(u)
		if err != nil {
			return err
		}
		return rewrapSubsetError(rr.AssignDiff(uu, g, d.NodeSet()))
	}
	return rewrapSubsetError(rr.Assign(g, d.NodeSet()))
}

// Set writes val into target on the constrained nodes, bypassing the
// stored value entirely. Both functions are narrowed through the index
// path first.
func (d *Dirichlet) Set(target, val *field.Function) error {
	rr, err := d.restrict(target)
	if err != nil {
		return err
	}
	vv, err := d.restrict(val)
	if err != nil {
		return err
	}
	return rewrapSubsetError(rr.Assign(vv, d.NodeSet()))
}

// Override adjusts one identity field during Reconstruct.
type Override func(*overrides)

type overrides struct {
	space     *fespace.FunctionSpace
	value     any
	hasValue  bool
	subDomain any
	method    *fespace.Method
}

// OverrideSpace rebuilds the condition on a different space.
func OverrideSpace(V *fespace.FunctionSpace) Override {
	return func(o *overrides) { o.space = V }
}

// OverrideValue rebuilds the condition with a different value.
func OverrideValue(g any) Override {
	return func(o *overrides) { o.value, o.hasValue = g, true }
}

// OverrideSubDomain rebuilds the condition on a different boundary region.
func OverrideSubDomain(sub any) Override {
	return func(o *overrides) { o.subDomain = sub }
}

// OverrideMethod rebuilds the condition with a different node selection
// method.
func OverrideMethod(m fespace.Method) Override {
	return func(o *overrides) { o.method = &m }
}

// Reconstruct returns a condition with the given fields replaced. When
// every effective field equals the current one, the receiver itself is
// returned unchanged, so callers rebuilding condition lists each solver
// iteration do not churn allocations or node resolutions.
func (d *Dirichlet) Reconstruct(ovs ...Override) (*Dirichlet, error) {
	var o overrides
	for _, f := range ovs {
		f(&o)
	}

	V := d.space
	if o.space != nil {
		V = o.space
	}
	g := d.originalArg
	if o.hasValue {
		g = o.value
	}
	sub := d.sub
	if o.subDomain != nil {
		s, ok := fespace.AsSubDomain(o.subDomain)
		if !ok {
			return nil, fmt.Errorf("%w: cannot interpret %v (%T) as a sub domain",
				ErrConfiguration, o.subDomain, o.subDomain)
		}
		sub = s
	}
	m := d.method
	if o.method != nil {
		m = *o.method
	}

	if V.Equal(d.space) && sameValue(g, d.originalArg) && sub.Equal(d.sub) && m == d.method {
		return d, nil
	}
	return NewDirichlet(V, g, sub, WithMethod(m))
}

// sameValue reports whether two supplied boundary values are the same
// object. Values of uncomparable types (closures) are never considered
// the same; rebuilding with them is correct, just not an identity.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// Homogenize returns a fresh condition constraining the same region of
// the same space to zero, with d untouched. Unlike the Homogenize method
// this is permanent: the copy's restore point is zero too.
func Homogenize(d *Dirichlet) (*Dirichlet, error) {
	return NewDirichlet(d.space, expr.Zero(d.space.ValueSize()), d.sub, WithMethod(d.method))
}

// HomogenizeAll maps Homogenize over a list of conditions, preserving
// order.
func HomogenizeAll(ds []*Dirichlet) ([]*Dirichlet, error) {
	out := make([]*Dirichlet, len(ds))
	for i, d := range ds {
		h, err := Homogenize(d)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}
