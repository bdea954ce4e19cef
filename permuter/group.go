/*
 * group.go, part of gocsm.
 *
 * Copyright 2024 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package permuter

import "fmt"

// GroupPermuter combines one Permuter per equivalence group into permutations of a whole
// set of elements. It works as an odometer: the first group advances fastest,
// and each exhausted group is reset while the next one advances. Elements that
// belong to no group are always fixed points.
type GroupPermuter struct {
	perms []*Permuter
	owner []int //owner[i] is the group of element i, or -1.
	local []int //local[i] is the position of element i inside its group.
	total int
	first bool
	done  bool
}

// NewGroupPermuter returns a GroupPermuter for groups laid out contiguously:
// the first group spans elements 0 to sizes[0]-1, the next one starts at sizes[0] and so on.
func NewGroupPermuter(sizes []int, total, k int, twos bool) (*GroupPermuter, error) {
	groups := make([][]int, len(sizes))
	start := 0
	for i, s := range sizes {
		groups[i] = make([]int, s)
		for j := range groups[i] {
			groups[i][j] = start + j
		}
		start += s
	}
	return NewGroupPermuterIndexes(groups, total, k, twos)
}

// NewGroupPermuterIndexes returns a GroupPermuter for groups given as sets of element indexes.
// Groups must be disjoint and their indexes must be smaller than total.
func NewGroupPermuterIndexes(groups [][]int, total, k int, twos bool) (*GroupPermuter, error) {
	G := &GroupPermuter{total: total}
	G.owner = make([]int, total)
	G.local = make([]int, total)
	for i := range G.owner {
		G.owner[i] = -1
	}
	for gi, g := range groups {
		for li, idx := range g {
			if idx < 0 || idx >= total {
				return nil, Error{fmt.Sprintf("permuter: index %d out of range in group %d", idx, gi), []string{"NewGroupPermuterIndexes"}, true}
			}
			if G.owner[idx] >= 0 {
				return nil, Error{fmt.Sprintf("permuter: index %d belongs to more than one group", idx), []string{"NewGroupPermuterIndexes"}, true}
			}
			G.owner[idx] = gi
			G.local[idx] = li
		}
		p, err := NewPermuter(g, k, twos)
		if err != nil {
			err2 := err.(Error)
			err2.deco = err2.Decorate("NewGroupPermuterIndexes")
			return nil, err2
		}
		G.perms = append(G.perms, p)
	}
	G.Reset()
	return G, nil
}

// Reset puts the GroupPermuter back before its first permutation.
func (G *GroupPermuter) Reset() {
	for _, p := range G.perms {
		p.Reset()
		p.Next() //every group starts at its identity.
	}
	G.first = true
	G.done = false
}

// Len returns the number of elements permuted.
func (G *GroupPermuter) Len() int {
	return G.total
}

// Next advances to the next permutation, returning false when all
// the combinations have been produced. The first call gives the identity.
func (G *GroupPermuter) Next() bool {
	if G.done {
		return false
	}
	if G.first {
		G.first = false
		return true
	}
	for _, p := range G.perms {
		if p.Next() {
			return true
		}
		p.Reset()
		p.Next()
	}
	G.done = true
	return false
}

// At returns the image of element i under the current permutation.
func (G *GroupPermuter) At(i int) int {
	g := G.owner[i]
	if g < 0 {
		return i
	}
	return G.perms[g].At(G.local[i])
}

// Perm copies the current permutation into dst, which is allocated
// if it is nil or too short, and returns it.
func (G *GroupPermuter) Perm(dst []int) []int {
	if len(dst) < G.total {
		dst = make([]int, G.total)
	}
	dst = dst[:G.total]
	for i := range dst {
		dst[i] = G.At(i)
	}
	return dst
}

// Total returns the number of permutations the GroupPermuter will produce.
func (G *GroupPermuter) Total() float64 {
	total := 1.0
	for _, p := range G.perms {
		total *= p.Count()
	}
	return total
}
