// Package test provides helpers to exercise boundary conditions and the
// surrounding assembly plumbing in unit tests.
package test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wyvern-fem/wyvern/bc"
	"github.com/wyvern-fem/wyvern/checkpoint"
	"github.com/wyvern-fem/wyvern/fespace"
	"github.com/wyvern-fem/wyvern/field"
)

// Assert is a helper to test boundary conditions.
type Assert struct {
	t *testing.T
	*require.Assertions
}

// NewAssert returns an Assert helper embedding a testify/require object for
// convenience.
func NewAssert(t *testing.T) *Assert {
	return &Assert{t: t, Assertions: require.New(t)}
}

// Run runs the test function fn as a subtest. The subtest is parametrized by
// the description strings descs.
func (a *Assert) Run(fn func(assert *Assert), descs ...string) {
	desc := strings.Join(descs, "/")
	a.t.Run(desc, func(t *testing.T) {
		assert := &Assert{t, require.New(t)}
		fn(assert)
	})
}

// Log logs using the test instance logger.
func (assert *Assert) Log(v ...interface{}) {
	assert.t.Log(v...)
}

// CheckCondition verifies the bookkeeping every condition kind must get
// right: node resolution, memoization, dof numbering and residual zeroing.
func (assert *Assert) CheckCondition(c bc.Condition) {
	V := c.FunctionSpace()

	nodes := c.Nodes()
	for i, n := range nodes {
		assert.True(n >= 0 && n < V.NodeCount(), "node %d out of range", n)
		if i > 0 {
			assert.Less(nodes[i-1], n, "nodes must be sorted and unique")
		}
	}

	set := c.NodeSet()
	assert.True(set.Space().Equal(V))
	assert.Equal(len(nodes), set.Len())
	for _, n := range nodes {
		assert.True(set.Contains(n))
	}
	assert.True(set == c.NodeSet(), "node set must be resolved once and shared")

	root := rootOf(V)
	dofs := c.ConstrainedDofs()
	for i, dof := range dofs {
		assert.True(dof >= 0 && dof < root.DofCount(), "dof %d out of range", dof)
		if i > 0 {
			assert.Less(dofs[i-1], dof, "dofs must be sorted and unique")
		}
	}
	if !V.Mixed() {
		assert.Equal(len(nodes)*V.ValueSize(), len(dofs))
	}

	assert.NotEmpty(c.CacheKey())
	assert.Equal(c.CacheKey(), c.CacheKey())

	// zeroing a residual clears exactly the constrained entries
	r := field.New(root)
	data := r.Data()
	for i := range data {
		data[i] = 1
	}
	assert.NoError(c.Zero(r))
	constrained := make(map[int]bool, len(dofs))
	for _, dof := range dofs {
		constrained[dof] = true
	}
	for i, v := range data {
		if constrained[i] {
			assert.Zero(v, "dof %d is constrained", i)
		} else {
			assert.Equal(1.0, v, "dof %d is free", i)
		}
	}
}

// FunctionsMatch verifies g approximates f entry by entry within tol. Both
// functions must own their storage and live on the same space.
func (assert *Assert) FunctionsMatch(f, g *field.Function, tol float64) {
	assert.True(f.Space().Equal(g.Space()), "functions live on different spaces")
	assert.InDeltaSlice(f.Data(), g.Data(), tol)
}

// CheckpointRoundTrip verifies f survives a save/load cycle bit for bit.
func (assert *Assert) CheckpointRoundTrip(f *field.Function, opts ...checkpoint.Option) {
	var buf bytes.Buffer
	assert.NoError(checkpoint.Save(&buf, f, opts...))

	g, sub, err := checkpoint.Load(bytes.NewReader(buf.Bytes()), f.Space())
	assert.NoError(err)

	V := f.Space()
	for n := 0; n < V.NodeCount(); n++ {
		stored := sub == nil || sub.Contains(n)
		for k := 0; k < V.ValueSize(); k++ {
			if stored {
				assert.Equal(f.At(n, k), g.At(n, k), "node %d component %d", n, k)
			} else {
				assert.Zero(g.At(n, k), "node %d was not stored", n)
			}
		}
	}
}

func rootOf(V *fespace.FunctionSpace) *fespace.FunctionSpace {
	for V.Parent() != nil {
		V = V.Parent()
	}
	return V
}
