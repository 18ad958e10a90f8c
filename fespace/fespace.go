// Package fespace implements the nodal function spaces boundary conditions
// are declared on: scalar and vector spaces over a mesh, mixed spaces
// composed of them, and the indexed/component subspace views that boundary
// conditions use to address parts of a bigger system.
//
// Subspace views carry explicit parent back-references. Walking Parent links
// from any view to its root recovers the exact sequence of sub-indexing
// steps separating the view from the root space; package bc derives its
// index paths from that walk once, at construction.
package fespace

import (
	"errors"
	"fmt"

	"github.com/wyvern-fem/wyvern/element"
	"github.com/wyvern-fem/wyvern/internal/utils"
	"github.com/wyvern-fem/wyvern/mesh"
)

// ErrBadSubDomain is returned when a sub-domain selector does not apply to
// the mesh: unknown marker ids, or top/bottom on a non-extruded mesh.
var ErrBadSubDomain = errors.New("fespace: invalid sub domain")

type spaceKind uint8

const (
	kindScalar spaceKind = iota
	kindVector
	kindComponent
	kindMixed
)

// FunctionSpace is a function space or a subspace view of one.
//
// Root spaces are built with New, NewVector and NewMixed. Sub returns
// subspace views: indexed views of mixed spaces and component views of
// vector spaces. Views alias their root's dof layout; they own no data.
type FunctionSpace struct {
	mesh *mesh.Mesh
	elem element.Element
	dim  int // values per node; 0 for mixed
	kind spaceKind

	subs []*FunctionSpace // mixed members

	parent    *FunctionSpace
	index     int // position in a mixed parent, -1 when unset
	component int // component in a vector parent, -1 when unset

	subCache []*FunctionSpace
}

// New returns a scalar function space over m.
func New(m *mesh.Mesh, e element.Element) *FunctionSpace {
	return &FunctionSpace{mesh: m, elem: e, dim: 1, kind: kindScalar, index: -1, component: -1}
}

// NewVector returns a vector-valued function space with dim components.
func NewVector(m *mesh.Mesh, e element.Element, dim int) *FunctionSpace {
	if dim < 2 {
		panic(fmt.Sprintf("fespace: vector space needs dim >= 2, got %d", dim))
	}
	return &FunctionSpace{mesh: m, elem: e, dim: dim, kind: kindVector, index: -1, component: -1}
}

// NewMixed returns the mixed space assembled from the given root spaces.
func NewMixed(spaces ...*FunctionSpace) *FunctionSpace {
	if len(spaces) < 2 {
		panic("fespace: mixed space needs at least two members")
	}
	for i, s := range spaces {
		if s.kind == kindMixed {
			panic("fespace: mixed spaces do not nest")
		}
		if s.parent != nil {
			panic(fmt.Sprintf("fespace: mixed member %d is a subspace view", i))
		}
		if s.mesh != spaces[0].mesh {
			panic("fespace: mixed members must share a mesh")
		}
	}
	return &FunctionSpace{
		mesh: spaces[0].mesh, kind: kindMixed,
		subs: spaces, index: -1, component: -1,
	}
}

// Sub returns the i-th subspace view: member i of a mixed space, or
// component i of a vector space. Views are memoized, repeated calls return
// the same object.
func (V *FunctionSpace) Sub(i int) *FunctionSpace {
	switch V.kind {
	case kindMixed:
		if i < 0 || i >= len(V.subs) {
			panic(fmt.Sprintf("fespace: subspace index %d out of range [0,%d)", i, len(V.subs)))
		}
	case kindVector:
		if i < 0 || i >= V.dim {
			panic(fmt.Sprintf("fespace: component %d out of range [0,%d)", i, V.dim))
		}
	default:
		panic("fespace: Sub on a space with no subspaces")
	}
	if V.subCache == nil {
		n := V.dim
		if V.kind == kindMixed {
			n = len(V.subs)
		}
		V.subCache = make([]*FunctionSpace, n)
	}
	if s := V.subCache[i]; s != nil {
		return s
	}

	var s *FunctionSpace
	if V.kind == kindMixed {
		member := V.subs[i]
		s = &FunctionSpace{
			mesh: member.mesh, elem: member.elem, dim: member.dim, kind: member.kind,
			parent: V, index: i, component: -1,
		}
	} else {
		s = &FunctionSpace{
			mesh: V.mesh, elem: V.elem, dim: 1, kind: kindComponent,
			parent: V, index: -1, component: i,
		}
	}
	V.subCache[i] = s
	return s
}

// Mesh returns the underlying mesh.
func (V *FunctionSpace) Mesh() *mesh.Mesh { return V.mesh }

// Element returns the scalar element; it panics for mixed spaces.
func (V *FunctionSpace) Element() element.Element {
	if V.kind == kindMixed {
		panic("fespace: mixed space has no single element")
	}
	return V.elem
}

// Parent returns the enclosing space of a view, nil for roots.
func (V *FunctionSpace) Parent() *FunctionSpace { return V.parent }

// Index returns the mixed-subspace position of a view, -1 when unset.
func (V *FunctionSpace) Index() int { return V.index }

// Component returns the vector component of a view, -1 when unset.
func (V *FunctionSpace) Component() int { return V.component }

// Mixed reports whether the space is a mixed space.
func (V *FunctionSpace) Mixed() bool { return V.kind == kindMixed }

// Vector reports whether the space is vector-valued.
func (V *FunctionSpace) Vector() bool { return V.kind == kindVector }

// Extruded reports whether the space lives on an extruded mesh.
func (V *FunctionSpace) Extruded() bool { return V.mesh.Extruded() }

// ValueSize returns the number of values stored per node: 1 for scalar and
// component spaces, the dimension for vector spaces. It panics for mixed
// spaces, whose members have their own value sizes.
func (V *FunctionSpace) ValueSize() int {
	if V.kind == kindMixed {
		panic("fespace: mixed space has no uniform value size")
	}
	return V.dim
}

// Len returns the number of immediate subspaces: the member count for mixed
// spaces, the dimension for vector spaces, 0 otherwise.
func (V *FunctionSpace) Len() int {
	switch V.kind {
	case kindMixed:
		return len(V.subs)
	case kindVector:
		return V.dim
	default:
		return 0
	}
}

// NodeCount returns the number of nodes of the space. All components of a
// vector space share nodes, so NodeCount is the same for a vector space and
// its component views. It panics for mixed spaces.
func (V *FunctionSpace) NodeCount() int {
	if V.kind == kindMixed {
		panic("fespace: mixed space has no single node set")
	}
	e := V.elem
	return e.DofsPerVertex()*V.mesh.VertexCount() + e.DofsPerCell()*V.mesh.CellCount()
}

// DofCount returns the total number of scalar values a function on the
// space stores.
func (V *FunctionSpace) DofCount() int {
	if V.kind == kindMixed {
		total := 0
		for _, s := range V.subs {
			total += s.DofCount()
		}
		return total
	}
	return V.NodeCount() * V.dim
}

// SegmentOffset returns the storage offset of mixed member i inside a
// function on the mixed space.
func (V *FunctionSpace) SegmentOffset(i int) int {
	if V.kind != kindMixed {
		panic("fespace: SegmentOffset on a non-mixed space")
	}
	off := 0
	for j := 0; j < i; j++ {
		off += V.subs[j].DofCount()
	}
	return off
}

// CellNodes returns the node ids with support on cell c, vertex-attached
// dofs first, then interior dofs.
func (V *FunctionSpace) CellNodes(c int) []int {
	e := V.elem
	dpv, dpc := e.DofsPerVertex(), e.DofsPerCell()
	verts := V.mesh.Cell(c)
	nodes := make([]int, 0, len(verts)*dpv+dpc)
	for _, v := range verts {
		for k := 0; k < dpv; k++ {
			nodes = append(nodes, v*dpv+k)
		}
	}
	cellBase := dpv * V.mesh.VertexCount()
	for k := 0; k < dpc; k++ {
		nodes = append(nodes, cellBase+c*dpc+k)
	}
	return nodes
}

// FacetNodes returns the node ids topologically attached to facet f.
// Interior dofs never appear here, so discontinuous spaces yield nothing.
func (V *FunctionSpace) FacetNodes(f mesh.Facet) []int {
	dpv := V.elem.DofsPerVertex()
	nodes := make([]int, 0, len(f.Vertices)*dpv)
	for _, v := range f.Vertices {
		for k := 0; k < dpv; k++ {
			nodes = append(nodes, v*dpv+k)
		}
	}
	return nodes
}

// NodeCoordinates returns the evaluation position of node n: the carrying
// vertex for vertex dofs, the cell centroid for interior dofs.
func (V *FunctionSpace) NodeCoordinates(n int) []float64 {
	e := V.elem
	dpv := e.DofsPerVertex()
	if dpv > 0 && n < dpv*V.mesh.VertexCount() {
		return V.mesh.Coordinates(n / dpv)
	}
	cellBase := dpv * V.mesh.VertexCount()
	c := (n - cellBase) / e.DofsPerCell()
	verts := V.mesh.Cell(c)
	dim := len(V.mesh.Coordinates(verts[0]))
	centroid := make([]float64, dim)
	for _, v := range verts {
		xv := V.mesh.Coordinates(v)
		for d := range centroid {
			centroid[d] += xv[d]
		}
	}
	for d := range centroid {
		centroid[d] /= float64(len(verts))
	}
	return centroid
}

// Equal reports whether two spaces are the same space: same mesh, element,
// shape and position in their parent structure. Distinct view objects of
// the same subspace compare equal.
func (V *FunctionSpace) Equal(o *FunctionSpace) bool {
	if V == o {
		return true
	}
	if V == nil || o == nil {
		return false
	}
	if V.kind != o.kind || V.mesh != o.mesh || V.elem != o.elem || V.dim != o.dim ||
		V.index != o.index || V.component != o.component {
		return false
	}
	if len(V.subs) != len(o.subs) {
		return false
	}
	for i := range V.subs {
		if !V.subs[i].Equal(o.subs[i]) {
			return false
		}
	}
	if (V.parent == nil) != (o.parent == nil) {
		return false
	}
	if V.parent != nil {
		return V.parent.Equal(o.parent)
	}
	return true
}

func (V *FunctionSpace) String() string {
	switch V.kind {
	case kindMixed:
		return fmt.Sprintf("MixedSpace(%d members)", len(V.subs))
	case kindVector:
		return fmt.Sprintf("VectorSpace(%s, dim=%d)", V.elem, V.dim)
	case kindComponent:
		return fmt.Sprintf("%s[component %d]", V.parent, V.component)
	default:
		if V.index >= 0 {
			return fmt.Sprintf("%s[sub %d]", V.parent, V.index)
		}
		return fmt.Sprintf("Space(%s)", V.elem)
	}
}

// CheckSubDomain validates a selector against the space's mesh: marker ids
// must exist, top/bottom require an extruded mesh.
func (V *FunctionSpace) CheckSubDomain(sub SubDomain) error {
	switch sub.kind {
	case subDomainTop, subDomainBottom:
		if !V.mesh.Extruded() {
			return fmt.Errorf("%w: %q on a non-extruded mesh", ErrBadSubDomain, sub.Key())
		}
	case subDomainMarkers:
		if len(sub.ids) == 0 {
			return fmt.Errorf("%w: empty marker list", ErrBadSubDomain)
		}
		for _, id := range sub.ids {
			if !V.mesh.HasMarker(id) {
				return fmt.Errorf("%w: unknown boundary id %d", ErrBadSubDomain, id)
			}
		}
	}
	return nil
}

// BoundaryNodes returns the sorted node ids the selector reaches under the
// given method. The selector must have been validated with CheckSubDomain;
// BoundaryNodes panics on selectors that do not apply to the mesh.
func (V *FunctionSpace) BoundaryNodes(sub SubDomain, method Method) []int {
	if V.kind == kindMixed {
		panic("fespace: boundary nodes of a mixed space are per member")
	}
	var nodes []int
	switch sub.kind {
	case subDomainTop, subDomainBottom:
		nodes = V.layerNodes(sub.kind == subDomainTop, method)
	default:
		var facets []mesh.Facet
		if sub.kind == subDomainOnBoundary {
			facets = V.mesh.ExteriorFacets()
		} else {
			for _, id := range sub.ids {
				facets = append(facets, V.mesh.FacetsWithMarker(id)...)
			}
		}
		for _, f := range facets {
			if method == Geometric {
				nodes = append(nodes, V.CellNodes(f.Cell)...)
			} else {
				nodes = append(nodes, V.FacetNodes(f)...)
			}
		}
	}
	return utils.SortedUnique(nodes)
}

// layerNodes resolves the top/bottom selectors of an extruded mesh.
func (V *FunctionSpace) layerNodes(top bool, method Method) []int {
	m := V.mesh
	nl := m.Layers()
	var nodes []int
	if method == Geometric {
		layer := 0
		if top {
			layer = nl - 1
		}
		baseCells := m.CellCount() / nl
		for bc := 0; bc < baseCells; bc++ {
			nodes = append(nodes, V.CellNodes(bc*nl+layer)...)
		}
		return nodes
	}
	layer := 0
	if top {
		layer = nl
	}
	dpv := V.elem.DofsPerVertex()
	for bv := 0; bv < m.BaseVertexCount(); bv++ {
		v := m.VertexOnLayer(bv, layer)
		for k := 0; k < dpv; k++ {
			nodes = append(nodes, v*dpv+k)
		}
	}
	return nodes
}

// Layout returns the storage layout of the space relative to the root
// function storage: dof k of node n lives at off + n*stride + k, with k
// ranging over vs values. It panics for mixed spaces, whose members each
// have their own layout.
func (V *FunctionSpace) Layout() (off, stride, vs int) {
	switch {
	case V.kind == kindMixed:
		panic("fespace: mixed space has no single layout")
	case V.parent == nil:
		return 0, V.dim, V.dim
	case V.parent.kind == kindMixed:
		return V.parent.SegmentOffset(V.index), V.dim, V.dim
	default:
		po, ps, _ := V.parent.Layout()
		return po + V.component, ps, 1
	}
}
