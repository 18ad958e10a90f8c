// Package element tabulates the finite-element families the reference kernel
// can number degrees of freedom for.
package element

import "fmt"

// Family identifies a finite-element family.
type Family uint8

const (
	Lagrange Family = iota
	DiscontinuousLagrange
	Hermite
	Argyris
	Morley
	Bell
)

func (f Family) String() string {
	switch f {
	case Lagrange:
		return "Lagrange"
	case DiscontinuousLagrange:
		return "Discontinuous Lagrange"
	case Hermite:
		return "Hermite"
	case Argyris:
		return "Argyris"
	case Morley:
		return "Morley"
	case Bell:
		return "Bell"
	default:
		return fmt.Sprintf("Family(%d)", uint8(f))
	}
}

// Element is a scalar element: a family at a fixed polynomial degree.
// Vector- and mixed-valued spaces are built on top of scalar elements by
// package fespace.
type Element struct {
	family Family
	degree int
}

// New returns the element of the given family and degree. It panics when the
// reference kernel has no dof numbering for the combination; the supported
// table is Lagrange 1, Discontinuous Lagrange 0, Hermite 3, Argyris 5,
// Morley 2 and Bell 5.
func New(f Family, degree int) Element {
	ok := false
	switch f {
	case Lagrange:
		ok = degree == 1
	case DiscontinuousLagrange:
		ok = degree == 0
	case Hermite:
		ok = degree == 3
	case Argyris, Bell:
		ok = degree == 5
	case Morley:
		ok = degree == 2
	}
	if !ok {
		panic(fmt.Sprintf("element: no reference numbering for %s of degree %d", f, degree))
	}
	return Element{family: f, degree: degree}
}

func (e Element) Family() Family { return e.family }
func (e Element) Degree() int    { return e.degree }

func (e Element) String() string {
	return fmt.Sprintf("%s(%d)", e.family, e.degree)
}

// DofsPerVertex returns how many dofs the element attaches to each mesh
// vertex. Hermite carries the point value plus a derivative at every vertex.
func (e Element) DofsPerVertex() int {
	switch e.family {
	case Lagrange:
		return 1
	case Hermite:
		return 2
	case Argyris, Bell:
		return 6
	case Morley:
		return 1
	default:
		return 0
	}
}

// DofsPerCell returns how many dofs the element attaches to cell interiors.
func (e Element) DofsPerCell() int {
	if e.family == DiscontinuousLagrange {
		return 1
	}
	return 0
}

// SupportsPointEvaluation reports whether the element's dual basis is pure
// point evaluation, i.e. whether nodal interpolation of an arbitrary
// expression is defined. Families with derivative or moment dofs resolve
// boundary values through an L2 projection instead.
func (e Element) SupportsPointEvaluation() bool {
	switch e.family {
	case Lagrange, DiscontinuousLagrange:
		return true
	default:
		return false
	}
}
