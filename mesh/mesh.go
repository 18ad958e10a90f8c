// Package mesh provides the structured reference meshes the library is
// exercised on: 1-D intervals, triangulated unit squares and extruded
// (layered) meshes built from a 1-D base.
//
// Boundary regions are identified by integer markers. The interval marks its
// left end 1 and its right end 2; the unit square marks the sides x=0, x=1,
// y=0, y=1 as 1, 2, 3 and 4. Extruded meshes inherit the side markers of
// their base; their top and bottom layers are addressed through the layer
// structure rather than facet markers.
package mesh

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/wyvern-fem/wyvern/internal/utils"
)

// Facet is an exterior (boundary) facet: a vertex in 1-D, an edge in 2-D.
type Facet struct {
	Vertices []int // vertex ids of the facet
	Marker   int   // boundary region id
	Cell     int   // the unique incident cell
}

// Mesh is an immutable simplicial or layered mesh.
type Mesh struct {
	tdim     int
	coords   [][]float64
	cells    [][]int
	facets   []Facet
	extruded bool
	layers   int
	baseNV   int
}

// Interval returns a uniform 1-D mesh of n cells on [0, length].
// The left end carries marker 1, the right end marker 2.
func Interval(n int, length float64) *Mesh {
	if n < 1 {
		panic(fmt.Sprintf("mesh: interval needs at least one cell, got %d", n))
	}
	h := length / float64(n)
	m := &Mesh{tdim: 1}
	m.coords = make([][]float64, n+1)
	for i := 0; i <= n; i++ {
		m.coords[i] = []float64{float64(i) * h}
	}
	m.cells = make([][]int, n)
	for c := 0; c < n; c++ {
		m.cells[c] = []int{c, c + 1}
	}
	m.facets = []Facet{
		{Vertices: []int{0}, Marker: 1, Cell: 0},
		{Vertices: []int{n}, Marker: 2, Cell: n - 1},
	}
	return m
}

// UnitSquare returns an n x n triangulated mesh of [0,1]^2.
// Side markers: 1 for x=0, 2 for x=1, 3 for y=0, 4 for y=1.
func UnitSquare(n int) *Mesh {
	if n < 1 {
		panic(fmt.Sprintf("mesh: unit square needs at least one cell per side, got %d", n))
	}
	h := 1.0 / float64(n)
	vid := func(i, j int) int { return j*(n+1) + i }

	m := &Mesh{tdim: 2}
	m.coords = make([][]float64, (n+1)*(n+1))
	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			m.coords[vid(i, j)] = []float64{float64(i) * h, float64(j) * h}
		}
	}

	// each grid square (i,j) splits into a lower and an upper triangle
	m.cells = make([][]int, 0, 2*n*n)
	lower := func(i, j int) int { return 2 * (j*n + i) }
	upper := func(i, j int) int { return 2*(j*n+i) + 1 }
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			m.cells = append(m.cells,
				[]int{vid(i, j), vid(i+1, j), vid(i+1, j+1)},
				[]int{vid(i, j), vid(i+1, j+1), vid(i, j+1)})
		}
	}

	for j := 0; j < n; j++ {
		m.facets = append(m.facets,
			Facet{Vertices: []int{vid(0, j), vid(0, j+1)}, Marker: 1, Cell: upper(0, j)},
			Facet{Vertices: []int{vid(n, j), vid(n, j+1)}, Marker: 2, Cell: lower(n-1, j)})
	}
	for i := 0; i < n; i++ {
		m.facets = append(m.facets,
			Facet{Vertices: []int{vid(i, 0), vid(i+1, 0)}, Marker: 3, Cell: lower(i, 0)},
			Facet{Vertices: []int{vid(i, n), vid(i+1, n)}, Marker: 4, Cell: upper(i, n-1)})
	}
	return m
}

// Extrude builds a layered mesh from a 1-D base: layers quadrilateral cells
// stacked over every base cell, total height height. Vertex ids are
// column-major, all layers of one base vertex contiguous. Side facets keep
// the base markers.
func Extrude(base *Mesh, layers int, height float64) *Mesh {
	if base.tdim != 1 {
		panic("mesh: extrusion is only supported from a 1-D base")
	}
	if layers < 1 {
		panic(fmt.Sprintf("mesh: extrusion needs at least one layer, got %d", layers))
	}
	nl := layers
	dz := height / float64(nl)
	baseNV := len(base.coords)
	vid := func(bv, l int) int { return bv*(nl+1) + l }

	m := &Mesh{tdim: 2, extruded: true, layers: nl, baseNV: baseNV}
	m.coords = make([][]float64, baseNV*(nl+1))
	for bv := 0; bv < baseNV; bv++ {
		for l := 0; l <= nl; l++ {
			m.coords[vid(bv, l)] = []float64{base.coords[bv][0], float64(l) * dz}
		}
	}

	m.cells = make([][]int, 0, len(base.cells)*nl)
	for bc := range base.cells {
		v0, v1 := base.cells[bc][0], base.cells[bc][1]
		for l := 0; l < nl; l++ {
			m.cells = append(m.cells, []int{vid(v0, l), vid(v1, l), vid(v1, l+1), vid(v0, l+1)})
		}
	}

	for _, f := range base.facets {
		bv := f.Vertices[0]
		for l := 0; l < nl; l++ {
			m.facets = append(m.facets, Facet{
				Vertices: []int{vid(bv, l), vid(bv, l+1)},
				Marker:   f.Marker,
				Cell:     f.Cell*nl + l,
			})
		}
	}
	return m
}

// TopologicalDimension returns the mesh dimension (1 or 2).
func (m *Mesh) TopologicalDimension() int { return m.tdim }

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.coords) }

// CellCount returns the number of cells.
func (m *Mesh) CellCount() int { return len(m.cells) }

// Cell returns the vertex ids of cell c.
func (m *Mesh) Cell(c int) []int { return m.cells[c] }

// Coordinates returns the coordinates of vertex v.
func (m *Mesh) Coordinates(v int) []float64 { return m.coords[v] }

// ExteriorFacets returns all boundary facets.
func (m *Mesh) ExteriorFacets() []Facet { return m.facets }

// FacetsWithMarker returns boundary facets carrying the given marker id.
func (m *Mesh) FacetsWithMarker(id int) []Facet {
	var out []Facet
	for _, f := range m.facets {
		if f.Marker == id {
			out = append(out, f)
		}
	}
	return out
}

// MarkerIDs returns the distinct boundary marker ids, sorted.
func (m *Mesh) MarkerIDs() []int {
	ids := make([]int, 0, len(m.facets))
	for _, f := range m.facets {
		ids = append(ids, f.Marker)
	}
	return utils.SortedUnique(ids)
}

// HasMarker reports whether any boundary facet carries the given id.
func (m *Mesh) HasMarker(id int) bool {
	for _, f := range m.facets {
		if f.Marker == id {
			return true
		}
	}
	return false
}

// BoundaryMask returns a bitmask over vertices that lie on any exterior facet.
func (m *Mesh) BoundaryMask() *bitset.BitSet {
	mask := bitset.New(uint(len(m.coords)))
	for _, f := range m.facets {
		for _, v := range f.Vertices {
			mask.Set(uint(v))
		}
	}
	return mask
}

// Extruded reports whether the mesh was built by Extrude.
func (m *Mesh) Extruded() bool { return m.extruded }

// Layers returns the number of cell layers of an extruded mesh, 0 otherwise.
func (m *Mesh) Layers() int { return m.layers }

// BaseVertexCount returns the vertex count of the extrusion base, 0 otherwise.
func (m *Mesh) BaseVertexCount() int { return m.baseNV }

// VertexOnLayer returns the vertex id of base vertex bv on layer l of an
// extruded mesh.
func (m *Mesh) VertexOnLayer(bv, l int) int {
	if !m.extruded {
		panic("mesh: VertexOnLayer on a non-extruded mesh")
	}
	return bv*(m.layers+1) + l
}
