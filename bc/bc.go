// Package bc implements boundary conditions for the assembly pipeline:
// where on a discretized domain degrees of freedom are constrained, to
// what values, and how those constraints reach residual vectors and
// assembled operators.
//
// Two condition kinds exist. Dirichlet pins dofs to prescribed values and
// tracks that value through homogenize/restore cycles, as nonlinear
// solvers need. Equation imposes a boundary condition given as its own
// variational equation, carrying residual, Jacobian and preconditioner
// forms plus recursively nested conditions on those forms; EquationSplit
// addresses one of the three forms as a standalone condition during
// assembly.
//
// Conditions are declared on any (sub)space of a space tree: a vector
// component, a member of a mixed space, or a component of a member. The
// index path from the root to that subspace is derived once at
// construction and replayed on every field the condition touches.
package bc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wyvern-fem/wyvern/element"
	"github.com/wyvern-fem/wyvern/fespace"
	"github.com/wyvern-fem/wyvern/field"
	"github.com/wyvern-fem/wyvern/form"
	"github.com/wyvern-fem/wyvern/matrix"
)

var (
	// ErrUnsupportedElement is returned at construction when the space's
	// element cannot carry strong boundary conditions.
	ErrUnsupportedElement = errors.New("bc: element does not support strong boundary conditions")
	// ErrConfiguration is returned for invalid construction arguments:
	// unknown methods, malformed sub-domain selectors, bad split kinds.
	ErrConfiguration = errors.New("bc: invalid configuration")
	// ErrIncompatibleSpace is returned when a supplied value or target
	// function lives on a space the condition cannot reach.
	ErrIncompatibleSpace = errors.New("bc: incompatible function space")
	// ErrInvalidValue is returned when a boundary value cannot be
	// interpreted as a constant, a vector of constants, an expression or
	// a function.
	ErrInvalidValue = errors.New("bc: invalid boundary value")
	// ErrFormShape is returned when an equation's forms have the wrong
	// arity for their role.
	ErrFormShape = errors.New("bc: form has the wrong shape")
	// ErrNotSupported is returned for operations a target type cannot
	// carry, like zeroing an assembled operator.
	ErrNotSupported = errors.New("bc: operation not supported")
)

// Condition is the contract shared by every boundary condition kind.
type Condition interface {
	// FunctionSpace returns the (sub)space the condition constrains.
	FunctionSpace() *fespace.FunctionSpace
	// SubDomain returns the boundary region selector.
	SubDomain() fespace.SubDomain
	// Method returns the node selection method.
	Method() fespace.Method
	// IndexPath returns the sub-indexing steps from the root space down
	// to the condition's space.
	IndexPath() []IndexStep
	// CacheKey returns a key two conditions share exactly when they
	// resolve to the same node set, for external map caching.
	CacheKey() string
	// Nodes returns the constrained node ids on the condition's space,
	// resolved once and memoized.
	Nodes() []int
	// NodeSet returns the memoized subset over Nodes.
	NodeSet() *fespace.Subset
	// ConstrainedDofs returns the constrained rows in root storage
	// numbering.
	ConstrainedDofs() []int
	// Zero zeroes the constrained entries of a residual function. It
	// fails with ErrNotSupported for assembled operators.
	Zero(target any) error
	// Integrals returns the condition's own form contributions; nil for
	// pointwise conditions.
	Integrals() []form.Integral
}

// Operator is the side of an assembled operator conditions record
// themselves on for row elimination.
type Operator interface {
	AddBC(c matrix.Condition)
}

// StepKind distinguishes the two sub-indexing moves in an index path.
type StepKind uint8

const (
	// StepIndex selects a member of a mixed space.
	StepIndex StepKind = iota
	// StepComponent selects a component of a vector space.
	StepComponent
)

func (k StepKind) String() string {
	if k == StepComponent {
		return "component"
	}
	return "index"
}

// IndexStep is one sub-indexing move: which kind, and which position.
type IndexStep struct {
	Kind  StepKind
	Value int
}

// base carries the identity and node resolution shared by all condition
// kinds. Identity fields are immutable after construction; nodes are
// resolved on first use and memoized, which is safe for the same reason.
type base struct {
	space  *fespace.FunctionSpace
	sub    fespace.SubDomain
	method fespace.Method
	path   []IndexStep

	once    sync.Once
	nodes   []int
	nodeSet *fespace.Subset
}

// excludedElement reports whether strong conditions are representable on
// the element: families whose vertex dofs are derivative or moment
// bundles are out, as is Hermite beyond one dimension.
func excludedElement(e element.Element, tdim int) bool {
	switch e.Family() {
	case element.Argyris, element.Morley, element.Bell:
		return true
	case element.Hermite:
		return tdim > 1
	default:
		return false
	}
}

func newBase(V *fespace.FunctionSpace, subDomain any, method fespace.Method) (*base, error) {
	if V == nil {
		return nil, fmt.Errorf("%w: nil function space", ErrConfiguration)
	}
	if V.Mixed() {
		return nil, fmt.Errorf("%w: conditions on a mixed space must target one of its subspaces", ErrConfiguration)
	}
	sub, ok := fespace.AsSubDomain(subDomain)
	if !ok {
		return nil, fmt.Errorf("%w: cannot interpret %v (%T) as a sub domain", ErrConfiguration, subDomain, subDomain)
	}
	if !method.Valid() {
		return nil, fmt.Errorf("%w: unknown method %q", ErrConfiguration, method)
	}
	if excludedElement(V.Element(), V.Mesh().TopologicalDimension()) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedElement, V.Element())
	}
	if V.Extruded() && V.Component() >= 0 {
		return nil, fmt.Errorf("%w: component of an extruded space", ErrUnsupportedElement)
	}
	if err := V.CheckSubDomain(sub); err != nil {
		return nil, err
	}

	// walk the parent chain collecting sub-indexing moves, root first
	var path []IndexStep
	for fs := V; fs.Parent() != nil; fs = fs.Parent() {
		if c := fs.Component(); c >= 0 {
			path = append(path, IndexStep{Kind: StepComponent, Value: c})
		}
		if i := fs.Index(); i >= 0 {
			path = append(path, IndexStep{Kind: StepIndex, Value: i})
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return &base{space: V, sub: sub, method: method, path: path}, nil
}

func (b *base) FunctionSpace() *fespace.FunctionSpace { return b.space }

func (b *base) SubDomain() fespace.SubDomain { return b.sub }

func (b *base) Method() fespace.Method { return b.method }

func (b *base) IndexPath() []IndexStep {
	out := make([]IndexStep, len(b.path))
	copy(out, b.path)
	return out
}

// CacheKey combines the sub-domain, the method and the two halves of the
// index path. Conditions with equal keys resolve to identical node sets.
func (b *base) CacheKey() string {
	var idx, comp []int
	for _, s := range b.path {
		if s.Kind == StepIndex {
			idx = append(idx, s.Value)
		} else {
			comp = append(comp, s.Value)
		}
	}
	return fmt.Sprintf("%s|%s|%v|%v", b.sub.Key(), b.method, idx, comp)
}

func (b *base) resolveNodes() {
	b.once.Do(func() {
		nodes := b.space.BoundaryNodes(b.sub, b.method)
		if b.space.Element().DofsPerVertex() == 2 && b.space.Mesh().TopologicalDimension() == 1 {
			// two dofs per vertex in 1-D: only the first of each pair is a
			// point value, the other carries the derivative
			kept := make([]int, 0, (len(nodes)+1)/2)
			for i := 0; i < len(nodes); i += 2 {
				kept = append(kept, nodes[i])
			}
			nodes = kept
		}
		b.nodes = nodes
		b.nodeSet = fespace.NewSubset(b.space, nodes)
	})
}

func (b *base) Nodes() []int {
	b.resolveNodes()
	return b.nodes
}

func (b *base) NodeSet() *fespace.Subset {
	b.resolveNodes()
	return b.nodeSet
}

// ConstrainedDofs maps the node set through the space's storage layout to
// root dof numbering: the rows an assembled operator eliminates.
func (b *base) ConstrainedDofs() []int {
	off, stride, vs := b.space.Layout()
	nodes := b.Nodes()
	out := make([]int, 0, len(nodes)*vs)
	for _, n := range nodes {
		for k := 0; k < vs; k++ {
			out = append(out, off+n*stride+k)
		}
	}
	return out
}

// restrict narrows a function on the condition's space, or on any space
// enclosing it, down to the condition's space by replaying the index path
// suffix below the matching level.
func (b *base) restrict(r *field.Function) (*field.Function, error) {
	var chain []*fespace.FunctionSpace
	for fs := b.space; fs != nil; fs = fs.Parent() {
		chain = append(chain, fs)
	}
	// chain is leaf..root; level k (root-first) applies path[k:]
	for k := 0; k < len(chain); k++ {
		if !chain[len(chain)-1-k].Equal(r.Space()) {
			continue
		}
		rr := r
		for _, step := range b.path[k:] {
			rr = rr.Sub(step.Value)
		}
		return rr, nil
	}
	return nil, fmt.Errorf("%w: %v is not the condition's space or one enclosing it",
		ErrIncompatibleSpace, r.Space())
}

// Zero zeroes the constrained entries of target, which must be a function
// on the condition's space or an enclosing one. Assembled operators
// cannot be zeroed through this primitive; recording the condition on the
// operator is the caller's job.
func (b *base) Zero(target any) error {
	r, ok := target.(*field.Function)
	if !ok {
		return fmt.Errorf("%w: cannot zero %T, only functions", ErrNotSupported, target)
	}
	rr, err := b.restrict(r)
	if err != nil {
		return err
	}
	if err := rr.Zero(b.NodeSet()); err != nil {
		return rewrapSubsetError(err)
	}
	return nil
}

// Integrals is the base contribution: none.
func (b *base) Integrals() []form.Integral { return nil }

// rewrapSubsetError folds the field layer's subset mismatch into this
// package's space error.
func rewrapSubsetError(err error) error {
	if errors.Is(err, field.ErrBadSubset) {
		return fmt.Errorf("%w: %v", ErrIncompatibleSpace, err)
	}
	return err
}
