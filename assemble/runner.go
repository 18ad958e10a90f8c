package assemble

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/wyvern-fem/wyvern/debug"
	"github.com/wyvern-fem/wyvern/field"
	"github.com/wyvern-fem/wyvern/form"
	"github.com/wyvern-fem/wyvern/matrix"
)

// runVectorTerms runs F's kernels and scatters into dst, a flat vector on
// the root of F's test space. Integrals run in parallel, each into its own
// partial, summed after the group finishes. Returns the number of kernel
// executions.
func runVectorTerms(dst []float64, F *form.Form, u *field.Function) (int, error) {
	V := F.TestSpace()
	off, stride, vs := V.Layout()
	its := F.Integrals()
	partials := make([][]float64, len(its))
	counts := make([]int, len(its))

	var g errgroup.Group
	for i, it := range its {
		i, it := i, it
		g.Go(func() (err error) {
			// recover from panics in user kernels to print friendlier messages
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("kernel panic: %v\n%s", r, debug.Stack())
				}
			}()
			p := make([]float64, len(dst))
			switch it.Domain {
			case form.CellDomain:
				for c := 0; c < V.Mesh().CellCount(); c++ {
					nodes := V.CellNodes(c)
					local := make([]float64, len(nodes)*vs)
					it.CellV(c, u, local)
					for a, n := range nodes {
						for k := 0; k < vs; k++ {
							p[off+n*stride+k] += local[a*vs+k]
						}
					}
					counts[i]++
				}
			case form.FacetDomain:
				facets, err := it.Over.Facets(V.Mesh())
				if err != nil {
					return fmt.Errorf("%w: %v", ErrSpace, err)
				}
				for _, f := range facets {
					nodes := V.FacetNodes(f)
					if len(nodes) == 0 {
						continue
					}
					local := make([]float64, len(nodes)*vs)
					it.FacetV(f, u, local)
					for a, n := range nodes {
						for k := 0; k < vs; k++ {
							p[off+n*stride+k] += local[a*vs+k]
						}
					}
					counts[i]++
				}
			}
			partials[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	runs := 0
	for i, p := range partials {
		if p == nil {
			continue
		}
		for j, v := range p {
			dst[j] += v
		}
		runs += counts[i]
	}
	return runs, nil
}

// runMatrixTerms runs J's kernels into a COO accumulator of size n, the
// dof count of the argument spaces' shared root.
func runMatrixTerms(n int, J *form.Form, u *field.Function) (*matrix.Triplet, int, error) {
	Vt, Vu := J.TestSpace(), J.TrialSpace()
	offT, strideT, vsT := Vt.Layout()
	offU, strideU, vsU := Vu.Layout()
	its := J.Integrals()
	partials := make([]*matrix.Triplet, len(its))
	counts := make([]int, len(its))

	var g errgroup.Group
	for i, it := range its {
		i, it := i, it
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("kernel panic: %v\n%s", r, debug.Stack())
				}
			}()
			p := matrix.NewTriplet(n)
			scatter := func(rowNodes, colNodes []int, local [][]float64) {
				for a, rn := range rowNodes {
					for k := 0; k < vsT; k++ {
						r := offT + rn*strideT + k
						for b, cn := range colNodes {
							for l := 0; l < vsU; l++ {
								if v := local[a*vsT+k][b*vsU+l]; v != 0 {
									p.Add(r, offU+cn*strideU+l, v)
								}
							}
						}
					}
				}
			}
			switch it.Domain {
			case form.CellDomain:
				for c := 0; c < Vt.Mesh().CellCount(); c++ {
					rowNodes := Vt.CellNodes(c)
					colNodes := Vu.CellNodes(c)
					local := newLocal(len(rowNodes)*vsT, len(colNodes)*vsU)
					it.CellM(c, u, local)
					scatter(rowNodes, colNodes, local)
					counts[i]++
				}
			case form.FacetDomain:
				facets, err := it.Over.Facets(Vt.Mesh())
				if err != nil {
					return fmt.Errorf("%w: %v", ErrSpace, err)
				}
				for _, f := range facets {
					rowNodes := Vt.FacetNodes(f)
					colNodes := Vu.FacetNodes(f)
					if len(rowNodes) == 0 || len(colNodes) == 0 {
						continue
					}
					local := newLocal(len(rowNodes)*vsT, len(colNodes)*vsU)
					it.FacetM(f, u, local)
					scatter(rowNodes, colNodes, local)
					counts[i]++
				}
			}
			partials[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	tr := matrix.NewTriplet(n)
	runs := 0
	for i, p := range partials {
		if p == nil {
			continue
		}
		p.Each(tr.Add)
		runs += counts[i]
	}
	return tr, runs, nil
}

func newLocal(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}
