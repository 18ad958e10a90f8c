// Package wyvern provides boundary-condition bookkeeping for finite-element
// solvers, together with a compact reference kernel (structured meshes,
// nodal function spaces, fields and weak-form plumbing) sufficient to apply
// and test the conditions end to end.
//
// The heart of the library is package bc, which resolves the constrained
// degrees of freedom of strong (Dirichlet) and equation-type boundary
// conditions, tracks their prescribed values through homogenize/restore
// cycles, and exposes the node sets and form integrals assembly code needs.
//
// wyvern supports the following boundary-condition kinds:
//   - Dirichlet (strong, pointwise)
//   - Equation (weak-form residual/Jacobian, recursively nestable)
package wyvern

import (
	"github.com/blang/semver/v4"
)

var Version = semver.MustParse("0.4.1")
