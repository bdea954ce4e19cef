package permuter

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cycleLengths(perm []int) []int {
	seen := make([]bool, len(perm))
	var lengths []int
	for i := range perm {
		if seen[i] {
			continue
		}
		l := 0
		for j := i; !seen[j]; j = perm[j] {
			seen[j] = true
			l++
		}
		lengths = append(lengths, l)
	}
	return lengths
}

func collect(t *testing.T, P *Permuter) [][]int {
	t.Helper()
	var all [][]int
	for P.Next() {
		p := make([]int, P.Len())
		for i := range p {
			p[i] = P.Local(i)
		}
		all = append(all, p)
	}
	return all
}

func TestPermuterCounts(t *testing.T) {
	tests := []struct {
		size int
		k    int
		twos bool
		want int
	}{
		{1, 2, false, 1},
		{2, 2, false, 2},
		{3, 3, false, 3},
		{3, 2, false, 4},
		{4, 2, false, 10},
		{4, 4, false, 7},
		{4, 4, true, 16},
		{5, 3, false, 21},
		{6, 6, true, 196},
		{6, 6, false, 121},
		{4, 1, false, 1},
		{3, 7, false, 1},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("n%d_k%d_twos%v", tc.size, tc.k, tc.twos), func(t *testing.T) {
			idx := make([]int, tc.size)
			for i := range idx {
				idx[i] = i
			}
			P, err := NewPermuter(idx, tc.k, tc.twos)
			require.NoError(t, err)
			all := collect(t, P)
			assert.Len(t, all, tc.want)
			assert.Equal(t, float64(tc.want), Count(tc.size, tc.k, tc.twos))
			assert.Equal(t, float64(tc.want), P.Count())
			distinct := make(map[string]bool)
			for n, p := range all {
				key := fmt.Sprint(p)
				assert.False(t, distinct[key], "permutation %v repeated", p)
				distinct[key] = true
				for _, l := range cycleLengths(p) {
					ok := l == 1 || l == tc.k || (tc.twos && l == 2)
					assert.True(t, ok, "permutation %d (%v) has a cycle of length %d", n, p, l)
				}
			}
			for i, v := range all[0] {
				assert.Equal(t, i, v, "the first permutation must be the identity")
			}
			assert.False(t, P.Next(), "an exhausted permuter must stay exhausted")
		})
	}
}

func TestPermuterDivisorCycles(t *testing.T) {
	//a C6 permuter gives neither the C3 nor the C2 sub-orbits.
	P, err := NewPermuter([]int{0, 1, 2, 3, 4, 5}, 6, false)
	require.NoError(t, err)
	for _, p := range collect(t, P) {
		assert.NotEqual(t, []int{1, 2, 0, 4, 5, 3}, p)
		assert.NotEqual(t, []int{1, 0, 3, 2, 5, 4}, p)
		for _, l := range cycleLengths(p) {
			assert.NotContains(t, []int{2, 3}, l)
		}
	}
}

func TestPermuterReset(t *testing.T) {
	P, err := NewPermuter([]int{3, 5, 7, 9}, 2, false)
	require.NoError(t, err)
	first := collect(t, P)
	P.Reset()
	second := collect(t, P)
	assert.Equal(t, first, second)
}

func TestPermuterIndexes(t *testing.T) {
	P, err := NewPermuter([]int{10, 20}, 2, false)
	require.NoError(t, err)
	require.True(t, P.Next())
	assert.Equal(t, 10, P.At(0))
	require.True(t, P.Next())
	assert.Equal(t, 20, P.At(0))
	assert.Equal(t, 10, P.At(1))
}

func TestPermuterErrors(t *testing.T) {
	_, err := NewPermuter(nil, 2, false)
	assert.Error(t, err)
	_, err = NewPermuter([]int{0, 1}, 0, false)
	assert.Error(t, err)
}

func TestGroupPermuter(t *testing.T) {
	sizes := []int{3, 2, 1}
	G, err := NewGroupPermuter(sizes, 8, 2, false)
	require.NoError(t, err)
	want := Count(3, 2, false) * Count(2, 2, false) * Count(1, 2, false)
	assert.Equal(t, want, G.Total())
	seen := make(map[string]bool)
	n := 0
	var perm []int
	for G.Next() {
		perm = G.Perm(perm)
		if n == 0 {
			assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, perm, "the first permutation must be the identity")
		}
		//elements outside the groups and groups boundaries are respected.
		assert.Equal(t, 6, perm[6])
		assert.Equal(t, 7, perm[7])
		for i := 0; i < 3; i++ {
			assert.Less(t, perm[i], 3)
		}
		assert.GreaterOrEqual(t, perm[3], 3)
		assert.Less(t, perm[3], 5)
		seen[fmt.Sprint(perm)] = true
		n++
	}
	assert.Equal(t, int(want), n)
	assert.Len(t, seen, n)
	assert.False(t, G.Next())

	G.Reset()
	require.True(t, G.Next())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, G.Perm(nil))
}

func TestGroupPermuterIndexes(t *testing.T) {
	G, err := NewGroupPermuterIndexes([][]int{{0, 2, 4}, {1, 3}}, 5, 3, true)
	require.NoError(t, err)
	n := 0
	for G.Next() {
		p := G.Perm(nil)
		for _, i := range []int{0, 2, 4} {
			assert.Equal(t, 0, p[i]%2)
		}
		for _, i := range []int{1, 3} {
			assert.Equal(t, 1, p[i]%2)
		}
		for _, l := range cycleLengths(p) {
			assert.Contains(t, []int{1, 2, 3}, l)
		}
		n++
	}
	assert.Equal(t, int(Count(3, 3, true)*Count(2, 3, true)), n)

	_, err = NewGroupPermuterIndexes([][]int{{0, 1}, {1, 2}}, 3, 2, false)
	assert.Error(t, err, "overlapping groups")
	_, err = NewGroupPermuterIndexes([][]int{{0, 5}}, 3, 2, false)
	assert.Error(t, err, "index out of range")
	_, err = NewGroupPermuterIndexes([][]int{{}}, 3, 2, false)
	assert.Error(t, err, "empty group")
}

func TestGroupPermuterNoGroups(t *testing.T) {
	G, err := NewGroupPermuter(nil, 3, 2, false)
	require.NoError(t, err)
	require.True(t, G.Next())
	assert.Equal(t, []int{0, 1, 2}, G.Perm(nil))
	assert.False(t, G.Next())
}
