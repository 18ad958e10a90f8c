package bc

import (
	"fmt"

	"github.com/wyvern-fem/wyvern/field"
	"github.com/wyvern-fem/wyvern/form"
	"github.com/wyvern-fem/wyvern/logger"
)

// Equation is a boundary condition given as its own variational equation
// on the boundary region: instead of pinning dofs to values, the
// constrained rows of the global system are replaced by the assembled
// residual and Jacobian of this equation.
//
// An Equation classifies itself at construction. A bilinear left-hand
// side makes it linear: the Jacobian is the left-hand side and the
// residual is its action on the unknown, minus the right-hand side when
// one is given. A rank-1 left-hand side makes it nonlinear: the residual
// is taken as given, the right-hand side must be absent, and the Jacobian
// defaults to the residual's linearization around the unknown.
type Equation struct {
	*base

	u         *field.Function
	f, j, jp  *form.Form
	linear    bool
	defaultJp bool

	nested []Condition
}

// NewEquation returns the equation condition imposing eq on subDomain.
// The condition's space is the test space of eq's left-hand side; u is
// the unknown the surrounding solve is for. Either side of eq may be a
// form or a tensor expression.
//
// WithJacobian and WithPreconditioner override the nonlinear defaults;
// WithJacobian is not consulted for linear equations, whose Jacobian is
// always the left-hand side itself.
func NewEquation(eq form.Equation, u *field.Function, subDomain any, opts ...Option) (*Equation, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	lhs, ok := form.AsForm(eq.Lhs)
	if !ok {
		return nil, fmt.Errorf("%w: left-hand side must be a form or a tensor", ErrFormShape)
	}
	if lhs == nil {
		return nil, fmt.Errorf("%w: equation has no left-hand side", ErrFormShape)
	}
	rhs, ok := form.AsForm(eq.Rhs)
	if !ok {
		return nil, fmt.Errorf("%w: right-hand side must be a form or a tensor", ErrFormShape)
	}
	if u == nil {
		return nil, fmt.Errorf("%w: equation condition needs the unknown function", ErrConfiguration)
	}
	b, err := newBase(lhs.TestSpace(), subDomain, cfg.method)
	if err != nil {
		return nil, err
	}

	e := &Equation{base: b, u: u, defaultJp: cfg.preconditioner == nil}
	switch lhs.Arity() {
	case 2:
		e.linear = true
		e.j = lhs
		e.jp = cfg.preconditioner
		if e.jp == nil {
			e.jp = e.j
		}
		if !u.Space().Equal(e.j.TrialSpace()) {
			return nil, fmt.Errorf("%w: unknown on %v, trial argument on %v",
				ErrIncompatibleSpace, u.Space(), e.j.TrialSpace())
		}
		if rhs == nil {
			e.f = form.Action(e.j, u)
		} else {
			if rhs.Arity() != 1 {
				return nil, fmt.Errorf("%w: right-hand side of a linear equation must be a linear form", ErrFormShape)
			}
			e.f = form.Subtract(form.Action(e.j, u), rhs)
		}
	default:
		if rhs != nil {
			return nil, fmt.Errorf("%w: right-hand side of a nonlinear equation must be zero", ErrFormShape)
		}
		e.f = lhs
		if e.j = cfg.jacobian; e.j != nil {
			if e.j.Arity() != 2 {
				return nil, fmt.Errorf("%w: supplied Jacobian is not a bilinear form", ErrFormShape)
			}
		} else {
			e.j = form.Derivative(e.f, u)
		}
		if e.jp = cfg.preconditioner; e.jp != nil {
			if e.jp.Arity() != 2 {
				return nil, fmt.Errorf("%w: supplied preconditioner is not a bilinear form", ErrFormShape)
			}
		} else {
			e.jp = e.j
		}
	}

	log := logger.Logger()
	log.Debug().Str("subDomain", e.sub.Key()).Bool("linear", e.linear).
		Msg("new equation condition")
	return e, nil
}

// Unknown returns the function the surrounding solve is for.
func (e *Equation) Unknown() *field.Function { return e.u }

// IsLinear reports whether the equation was supplied in linear
// (bilinear lhs) shape.
func (e *Equation) IsLinear() bool { return e.linear }

// UsesDefaultPreconditioner reports whether the preconditioner form is
// the Jacobian itself rather than an explicitly supplied one.
func (e *Equation) UsesDefaultPreconditioner() bool { return e.defaultJp }

// Residual returns the residual form F.
func (e *Equation) Residual() *form.Form { return e.f }

// Jacobian returns the Jacobian form J.
func (e *Equation) Jacobian() *form.Form { return e.j }

// Preconditioner returns the preconditioner form Jp; identical to
// Jacobian unless one was supplied.
func (e *Equation) Preconditioner() *form.Form { return e.jp }

// AttachBC appends a condition applied recursively while assembling this
// equation's own forms. Conditions may nest arbitrarily deep; the
// assembler walks the tree.
func (e *Equation) AttachBC(c Condition) { e.nested = append(e.nested, c) }

// NestedBCs returns the attached conditions in attachment order. The
// slice is shared with the condition's split views.
func (e *Equation) NestedBCs() []Condition { return e.nested }

// Split returns the view addressing one of the equation's three forms.
func (e *Equation) Split(kind SplitKind) (*EquationSplit, error) {
	return NewEquationSplit(e, kind)
}

// SplitKind names one of an Equation's forms.
type SplitKind string

const (
	// SplitF selects the residual form.
	SplitF SplitKind = "F"
	// SplitJ selects the Jacobian form.
	SplitJ SplitKind = "J"
	// SplitJp selects the preconditioner form.
	SplitJp SplitKind = "Jp"
)

// EquationSplit addresses one form of an Equation as a condition of its
// own: what the assembler works with when building the residual, the
// Jacobian or the preconditioner of the enclosing system. It shares the
// parent's identity and node resolution rather than re-deriving them,
// and its nested conditions alias the parent's.
type EquationSplit struct {
	*base

	parent *Equation
	kind   SplitKind
	f      *form.Form
}

// NewEquationSplit returns the view of e's form named by kind.
func NewEquationSplit(e *Equation, kind SplitKind) (*EquationSplit, error) {
	var f *form.Form
	switch kind {
	case SplitF:
		f = e.f
	case SplitJ:
		f = e.j
	case SplitJp:
		f = e.jp
	default:
		return nil, fmt.Errorf("%w: unknown split kind %q", ErrConfiguration, string(kind))
	}
	return &EquationSplit{base: e.base, parent: e, kind: kind, f: f}, nil
}

// Parent returns the equation the split views.
func (s *EquationSplit) Parent() *Equation { return s.parent }

// Kind returns which form the split addresses.
func (s *EquationSplit) Kind() SplitKind { return s.kind }

// Form returns the addressed form.
func (s *EquationSplit) Form() *form.Form { return s.f }

// Unknown returns the parent equation's unknown.
func (s *EquationSplit) Unknown() *field.Function { return s.parent.u }

// Integrals returns the addressed form's integral terms.
func (s *EquationSplit) Integrals() []form.Integral { return s.f.Integrals() }

// NestedBCs returns the parent's nested conditions; the split does not
// carry its own list.
func (s *EquationSplit) NestedBCs() []Condition { return s.parent.NestedBCs() }
