package tn_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjdu10/quimb/internal/tn"
)

// ringNetwork builds the 4-tensor ring with open physical indices
// p0..p3 and bonds b0..b3.
func ringNetwork(t *testing.T, rng *rand.Rand, phys, bond int) *tn.TensorNetwork {
	t.Helper()
	ts := []*tn.Tensor{
		randTensor(t, []string{"b3", "p0", "b0"}, []int{bond, phys, bond}, rng),
		randTensor(t, []string{"b0", "p1", "b1"}, []int{bond, phys, bond}, rng),
		randTensor(t, []string{"b1", "p2", "b2"}, []int{bond, phys, bond}, rng),
		randTensor(t, []string{"b2", "p3", "b3"}, []int{bond, phys, bond}, rng),
	}
	net, err := tn.NewNetwork(ts...)
	require.NoError(t, err)
	return net
}

func TestNetwork_OpenAndInnerInds(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	net := ringNetwork(t, rng, 2, 3)

	assert.Equal(t, []string{"p0", "p1", "p2", "p3"}, net.OpenInds())
	assert.Equal(t, []string{"b0", "b1", "b2", "b3"}, net.InnerInds())
	assert.Equal(t, 4, net.NumTensors())
}

func TestNetwork_DimensionAgreementEnforced(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	a := randTensor(t, []string{"x"}, []int{2}, rng)
	b := randTensor(t, []string{"x"}, []int{3}, rng)

	_, err := tn.NewNetwork(a, b)
	var serr *tn.ShapeMismatchError
	require.ErrorAs(t, err, &serr)
}

func TestNetwork_HyperedgeDetection(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	// Star: three tensors share the single index s.
	ts := []*tn.Tensor{
		randTensor(t, []string{"s", "a"}, []int{2, 3}, rng),
		randTensor(t, []string{"s", "b"}, []int{2, 3}, rng),
		randTensor(t, []string{"s", "c"}, []int{2, 3}, rng),
	}
	net, err := tn.NewNetwork(ts...)
	require.NoError(t, err)

	reg := net.Registry()
	assert.True(t, reg.IsHyper("s"))
	assert.False(t, reg.IsHyper("a"))
	assert.Equal(t, []int{0, 1, 2}, reg.Neighbors("s"))
	assert.Equal(t, 3, reg.Multiplicity("s"))
}

func TestNetwork_RepeatedIndexWithinTensorIsHyper(t *testing.T) {
	rng := rand.New(rand.NewSource(14))
	a := randTensor(t, []string{"i", "i"}, []int{2, 2}, rng)

	net, err := tn.NewNetwork(a)
	require.NoError(t, err)
	assert.True(t, net.Registry().IsHyper("i"))
}

func TestNetwork_RemoveKeepsRegistryConsistent(t *testing.T) {
	rng := rand.New(rand.NewSource(15))
	net := ringNetwork(t, rng, 2, 3)

	_, err := net.Remove(0)
	require.NoError(t, err)

	// b3 and b0 were shared with tensor 0; they are open now.
	reg := net.Registry()
	assert.True(t, reg.IsOpen("b0"))
	assert.True(t, reg.IsOpen("b3"))
	assert.False(t, reg.IsOpen("b1"))

	// p0 belonged only to tensor 0 and is gone.
	_, ok := reg.Dim("p0")
	assert.False(t, ok)
}

func TestNetwork_ReplaceValidatesDimensions(t *testing.T) {
	rng := rand.New(rand.NewSource(16))
	net := ringNetwork(t, rng, 2, 3)

	bad := randTensor(t, []string{"b3", "p0", "b0"}, []int{5, 2, 5}, rng)
	err := net.Replace(0, bad)
	var serr *tn.ShapeMismatchError
	require.ErrorAs(t, err, &serr)

	// The failed replace must leave the network untouched.
	assert.Equal(t, []string{"b0", "b1", "b2", "b3"}, net.InnerInds())
	d, _ := net.Registry().Dim("b0")
	assert.Equal(t, 3, d)
}

func TestNetwork_ReindexConflict(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	a := randTensor(t, []string{"x", "y"}, []int{2, 3}, rng)
	net, err := tn.NewNetwork(a)
	require.NoError(t, err)

	err = net.Reindex(map[string]string{"x": "y"})
	var cerr *tn.ConflictError
	require.ErrorAs(t, err, &cerr)

	require.NoError(t, net.Reindex(map[string]string{"x": "z"}))
	_, ok := net.Registry().Dim("z")
	assert.True(t, ok)
}

func TestNetwork_ReindexMergeFormsBond(t *testing.T) {
	rng := rand.New(rand.NewSource(18))
	a := randTensor(t, []string{"x", "p"}, []int{4, 2}, rng)
	b := randTensor(t, []string{"y", "q"}, []int{4, 2}, rng)
	net, err := tn.NewNetwork(a, b)
	require.NoError(t, err)

	require.NoError(t, net.Reindex(map[string]string{"y": "x"}))
	assert.Equal(t, []string{"x"}, net.InnerInds())
	assert.Equal(t, []int{0, 1}, net.Registry().Neighbors("x"))
}

func TestNetwork_CombineManglesCollidingInnerInds(t *testing.T) {
	rng := rand.New(rand.NewSource(19))
	left := ringNetwork(t, rng, 2, 3)

	// A second ring reusing the same inner bond labels but fresh open ones.
	right := ringNetwork(t, rng, 2, 3)
	require.NoError(t, right.Reindex(map[string]string{
		"p0": "q0", "p1": "q1", "p2": "q2", "p3": "q3",
	}))

	combined, err := left.Combine(right)
	require.NoError(t, err)

	assert.Equal(t, 8, combined.NumTensors())
	// The rings stay disconnected: every b-bond still joins exactly 2 tensors.
	for _, ind := range combined.InnerInds() {
		assert.Len(t, combined.TidsWithInd(ind), 2)
	}
	assert.Equal(t,
		[]string{"p0", "p1", "p2", "p3", "q0", "q1", "q2", "q3"},
		combined.OpenInds())
}

func TestNetwork_CombineJoinsSharedOpenInds(t *testing.T) {
	rng := rand.New(rand.NewSource(20))
	a := randTensor(t, []string{"v", "l"}, []int{2, 3}, rng)
	b := randTensor(t, []string{"v", "r"}, []int{2, 3}, rng)

	na, err := tn.NewNetwork(a)
	require.NoError(t, err)
	nb, err := tn.NewNetwork(b)
	require.NoError(t, err)

	joined, err := na.Combine(nb)
	require.NoError(t, err)

	// v was open on both sides and now forms a bond.
	assert.Equal(t, []string{"v"}, joined.InnerInds())
	assert.Equal(t, []string{"l", "r"}, joined.OpenInds())
}

func TestNetwork_TagLookup(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	a := randTensor(t, []string{"i"}, []int{2}, rng)
	a.AddTag("site0")
	b := randTensor(t, []string{"i"}, []int{2}, rng)
	b.AddTag("site1")

	net, err := tn.NewNetwork(a, b)
	require.NoError(t, err)

	assert.Equal(t, []int{0}, net.TidsWithTag("site0"))
	assert.Equal(t, []int{1}, net.TidsWithTag("site1"))
	assert.Empty(t, net.TidsWithTag("missing"))
}
