package fespace

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wyvern-fem/wyvern/internal/utils"
	"github.com/wyvern-fem/wyvern/mesh"
)

type subDomainKind uint8

const (
	subDomainMarkers subDomainKind = iota
	subDomainOnBoundary
	subDomainTop
	subDomainBottom
)

// SubDomain selects the boundary region a condition applies to: one or more
// facet marker ids, the whole boundary, or the top/bottom surface of an
// extruded mesh.
type SubDomain struct {
	kind subDomainKind
	ids  []int
}

// OnBoundary selects every exterior facet of the mesh.
var OnBoundary = SubDomain{kind: subDomainOnBoundary}

// Top and Bottom select the top and bottom surfaces of an extruded mesh.
var (
	Top    = SubDomain{kind: subDomainTop}
	Bottom = SubDomain{kind: subDomainBottom}
)

// Markers selects the boundary facets carrying any of the given marker ids.
// The ids are canonicalized to sorted order so that two selectors picking
// the same region compare equal and produce the same cache key.
func Markers(ids ...int) SubDomain {
	return SubDomain{kind: subDomainMarkers, ids: utils.SortedUnique(ids)}
}

// IDs returns the marker ids, nil for sentinel selectors.
func (s SubDomain) IDs() []int { return s.ids }

// Key returns the canonical spelling of the selector, used in cache keys:
// "on_boundary", "top", "bottom" or the comma-joined marker ids.
func (s SubDomain) Key() string {
	switch s.kind {
	case subDomainOnBoundary:
		return "on_boundary"
	case subDomainTop:
		return "top"
	case subDomainBottom:
		return "bottom"
	default:
		parts := make([]string, len(s.ids))
		for i, id := range s.ids {
			parts[i] = strconv.Itoa(id)
		}
		return strings.Join(parts, ",")
	}
}

func (s SubDomain) String() string { return s.Key() }

// Facets returns the exterior facets the selector picks on m. The top and
// bottom surfaces of an extruded mesh are layer sets, not facet sets, and
// cannot be iterated this way.
func (s SubDomain) Facets(m *mesh.Mesh) ([]mesh.Facet, error) {
	switch s.kind {
	case subDomainOnBoundary:
		return m.ExteriorFacets(), nil
	case subDomainMarkers:
		var fs []mesh.Facet
		for _, id := range s.ids {
			fs = append(fs, m.FacetsWithMarker(id)...)
		}
		return fs, nil
	default:
		return nil, fmt.Errorf("%s surface has no facet representation", s.Key())
	}
}

// Equal reports whether two selectors pick the same region spelling.
func (s SubDomain) Equal(o SubDomain) bool {
	return s.kind == o.kind && utils.EqualInts(s.ids, o.ids)
}

// AsSubDomain coerces the accepted selector spellings: a SubDomain, an int,
// a slice of ints, or one of the strings "on_boundary", "top", "bottom".
// The second return value reports success.
func AsSubDomain(v interface{}) (SubDomain, bool) {
	switch x := v.(type) {
	case SubDomain:
		return x, true
	case string:
		switch x {
		case "on_boundary":
			return OnBoundary, true
		case "top":
			return Top, true
		case "bottom":
			return Bottom, true
		}
		return SubDomain{}, false
	default:
		ids, ok := utils.Ints(v)
		if !ok {
			return SubDomain{}, false
		}
		return Markers(ids...), true
	}
}
