// Package assemble is the reference assembler: it runs a form's integral
// kernels over the mesh, scatters into global storage, and eliminates
// boundary conditions, recursing through equation conditions and whatever
// conditions those carry themselves.
//
// It exists to pin down the contract between conditions and an assembler;
// a production solver would bring its own loops and call the same
// condition methods.
package assemble

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wyvern-fem/wyvern/bc"
	"github.com/wyvern-fem/wyvern/fespace"
	"github.com/wyvern-fem/wyvern/field"
	"github.com/wyvern-fem/wyvern/form"
	"github.com/wyvern-fem/wyvern/logger"
	"github.com/wyvern-fem/wyvern/matrix"
	"github.com/wyvern-fem/wyvern/profile"
)

var (
	// ErrShape is returned when a form's arity does not match the
	// requested assembly.
	ErrShape = errors.New("assemble: wrong form arity")
	// ErrSpace is returned when the form's argument spaces cannot be
	// assembled into a single flat system.
	ErrSpace = errors.New("assemble: incompatible argument spaces")
)

type config struct {
	bcs []bc.Condition
}

// Option configures a single assembly call.
type Option func(*config) error

// WithBCs supplies the boundary conditions to eliminate after the form's
// own terms are assembled. Order matters: later conditions overwrite rows
// of earlier ones where they overlap.
func WithBCs(cs ...bc.Condition) Option {
	return func(cfg *config) error {
		for _, c := range cs {
			if c == nil {
				return errors.New("assemble: nil condition")
			}
		}
		cfg.bcs = append(cfg.bcs, cs...)
		return nil
	}
}

// Vector assembles the rank-1 form F with coefficient u into a function on
// F's test space, then applies the conditions: Dirichlet rows become the
// residual convention's u - g (or g when u is nil), equation condition
// rows are replaced by the equation's own assembled residual, and nested
// conditions are applied recursively on top.
func Vector(F *form.Form, u *field.Function, opts ...Option) (*field.Function, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	if F.Arity() != 1 {
		return nil, fmt.Errorf("%w: Vector needs a linear form, got arity %d", ErrShape, F.Arity())
	}
	V := F.TestSpace()
	if V.Mixed() {
		return nil, fmt.Errorf("%w: mixed test space %v", ErrSpace, V)
	}
	if V.Parent() != nil {
		return nil, fmt.Errorf("%w: test space %v is a view; assemble through its root", ErrSpace, V)
	}

	start := time.Now()
	out := field.New(V)
	runs, err := runVectorTerms(out.Data(), F, u)
	if err != nil {
		return nil, err
	}
	for _, c := range cfg.bcs {
		more, err := applyVectorCondition(out, c, u)
		if err != nil {
			return nil, err
		}
		runs += more
	}
	for i := 0; i < runs; i++ {
		profile.RecordKernel()
	}

	log := logger.Logger()
	log.Debug().Int("integrals", len(F.Integrals())).Int("kernels", runs).
		Int("bcs", len(cfg.bcs)).Dur("took", time.Since(start)).Msg("assembled vector")
	return out, nil
}

// Matrix assembles the rank-2 form J with coefficient u, eliminates the
// conditions, and returns the dense result. Dirichlet rows become identity
// rows; equation condition rows are replaced by the rows of the equation's
// own Jacobian (the preconditioner variant when J is a preconditioner
// split), with nested conditions applied recursively.
func Matrix(J *form.Form, u *field.Function, opts ...Option) (*matrix.Dense, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	if J.Arity() != 2 {
		return nil, fmt.Errorf("%w: Matrix needs a bilinear form, got arity %d", ErrShape, J.Arity())
	}
	Vt, Vu := J.TestSpace(), J.TrialSpace()
	if Vt.Mixed() || Vu.Mixed() {
		return nil, fmt.Errorf("%w: mixed argument space", ErrSpace)
	}
	if !rootOf(Vt).Equal(rootOf(Vu)) {
		return nil, fmt.Errorf("%w: test root %v, trial root %v", ErrSpace, rootOf(Vt), rootOf(Vu))
	}

	start := time.Now()
	n := rootOf(Vt).DofCount()
	tr, runs, err := runMatrixTerms(n, J, u)
	if err != nil {
		return nil, err
	}

	// Dirichlet conditions mark rows on the accumulator so Flush turns
	// them into identity rows; equation conditions need the flushed matrix.
	var equations []bc.Condition
	for _, c := range cfg.bcs {
		switch c.(type) {
		case *bc.Equation, *bc.EquationSplit:
			equations = append(equations, c)
		default:
			tr.AddBC(c)
		}
	}
	out := tr.Flush()
	for _, c := range equations {
		more, err := applyMatrixEquation(out, c)
		if err != nil {
			return nil, err
		}
		runs += more
	}
	for i := 0; i < runs; i++ {
		profile.RecordKernel()
	}

	log := logger.Logger()
	log.Debug().Int("integrals", len(J.Integrals())).Int("kernels", runs).
		Int("bcs", len(cfg.bcs)).Int("entries", tr.Len()).
		Dur("took", time.Since(start)).Msg("assembled matrix")
	return out, nil
}

func newConfig(opts ...Option) (*config, error) {
	cfg := new(config)
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func rootOf(V *fespace.FunctionSpace) *fespace.FunctionSpace {
	for V.Parent() != nil {
		V = V.Parent()
	}
	return V
}
