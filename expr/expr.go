// Package expr describes the values boundary conditions impose: literal
// constants, coordinate-dependent functions, and mutable parametric
// expressions whose updates are tracked through a state counter.
package expr

import (
	"fmt"
	"sync/atomic"

	"github.com/wyvern-fem/wyvern/internal/utils"
)

// Expr is a value prescribed on part of a domain, evaluated pointwise.
type Expr interface {
	// ValueSize returns the number of components the expression produces.
	ValueSize() int
	// Eval evaluates the expression at position x into out, which holds
	// ValueSize values.
	Eval(x []float64, out []float64)
	// SpatiallyVarying reports whether the value depends on position.
	SpatiallyVarying() bool
}

// Stateful is implemented by mutable expressions. State returns a counter
// that increases on every mutation; consumers compare it against the value
// observed when they last evaluated the expression.
type Stateful interface {
	Expr
	State() uint64
}

type constant struct {
	values []float64
}

// Constant returns the expression with the fixed scalar value v.
func Constant(v float64) Expr { return constant{values: []float64{v}} }

// Vector returns the expression with the fixed vector value vs.
func Vector(vs ...float64) Expr {
	if len(vs) == 0 {
		panic("expr: vector constant needs at least one component")
	}
	out := make([]float64, len(vs))
	copy(out, vs)
	return constant{values: out}
}

// Zero returns the zero-valued expression with the given number of
// components.
func Zero(size int) Expr { return constant{values: make([]float64, size)} }

func (c constant) ValueSize() int { return len(c.values) }

func (c constant) Eval(_ []float64, out []float64) { copy(out, c.values) }

func (c constant) SpatiallyVarying() bool { return false }

func (c constant) String() string {
	if len(c.values) == 1 {
		return fmt.Sprintf("%g", c.values[0])
	}
	return fmt.Sprintf("%v", c.values)
}

type fn struct {
	size int
	f    func(x []float64, out []float64)
}

// F returns the scalar expression evaluating f at each position.
func F(f func(x []float64) float64) Expr {
	return fn{size: 1, f: func(x []float64, out []float64) { out[0] = f(x) }}
}

// VectorF returns the size-component expression evaluating f at each
// position.
func VectorF(size int, f func(x []float64, out []float64)) Expr {
	if size < 1 {
		panic(fmt.Sprintf("expr: VectorF needs size >= 1, got %d", size))
	}
	return fn{size: size, f: f}
}

func (e fn) ValueSize() int { return e.size }

func (e fn) Eval(x []float64, out []float64) { e.f(x, out) }

func (e fn) SpatiallyVarying() bool { return true }

// Parametric is a coordinate function closed over a scalar parameter,
// typically time. Updating the parameter bumps the state counter, so
// cached evaluations elsewhere know to refresh.
//
// Parametric is safe for concurrent State reads; SetParam must not race
// with Eval.
type Parametric struct {
	size  int
	f     func(p float64, x []float64, out []float64)
	param float64
	state atomic.Uint64
}

// NewParametric returns a size-component expression evaluating
// f(param, x). The parameter starts at 0.
func NewParametric(size int, f func(p float64, x []float64, out []float64)) *Parametric {
	if size < 1 {
		panic(fmt.Sprintf("expr: parametric expression needs size >= 1, got %d", size))
	}
	return &Parametric{size: size, f: f}
}

// SetParam updates the parameter and bumps the state counter.
func (p *Parametric) SetParam(v float64) {
	p.param = v
	p.state.Add(1)
}

// Param returns the current parameter value.
func (p *Parametric) Param() float64 { return p.param }

// State returns the mutation counter.
func (p *Parametric) State() uint64 { return p.state.Load() }

func (p *Parametric) ValueSize() int { return p.size }

func (p *Parametric) Eval(x []float64, out []float64) { p.f(p.param, x, out) }

func (p *Parametric) SpatiallyVarying() bool { return true }

// As coerces a Go value to an expression: an Expr is returned unchanged, a
// numeric scalar becomes a Constant, a numeric slice becomes a Vector. The
// second return value reports success.
func As(v interface{}) (Expr, bool) {
	if e, ok := v.(Expr); ok {
		return e, true
	}
	vals, ok := utils.Float64s(v)
	if !ok {
		return nil, false
	}
	return constant{values: vals}, true
}
