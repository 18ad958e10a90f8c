package fespace

import "fmt"

// Method selects how boundary nodes are determined.
//
// Topological picks nodes topologically associated with boundary facets.
// Geometric picks nodes whose basis functions do not vanish on the boundary,
// which is how strong conditions reach discontinuous spaces.
type Method uint8

const (
	Topological Method = iota
	Geometric
)

func (m Method) String() string {
	switch m {
	case Topological:
		return "topological"
	case Geometric:
		return "geometric"
	default:
		return fmt.Sprintf("Method(%d)", uint8(m))
	}
}

// Valid reports whether m is one of the two recognized methods.
func (m Method) Valid() bool { return m == Topological || m == Geometric }

// ParseMethod converts the wire/CLI spelling of a method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "topological":
		return Topological, nil
	case "geometric":
		return Geometric, nil
	default:
		return 0, fmt.Errorf("fespace: unknown boundary condition method %q", s)
	}
}
