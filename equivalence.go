/*
 * equivalence.go, part of gocsm.
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

package csm

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// BondGraph returns the bonds of mol as an undirected graph where the ID of each
// node is the index of its atom. Bonds to atoms out of range are ignored.
func BondGraph(mol Atomer) *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	n := mol.Len()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < n; i++ {
		for _, b := range mol.Atom(i).Bonds {
			if b < 0 || b >= n || b == i {
				continue
			}
			g.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(b)})
		}
	}
	return g
}

// Fragments returns the covalently bonded fragments of mol, each sorted, ordered
// by their first atom.
func Fragments(mol Atomer) [][]int {
	cc := topo.ConnectedComponents(BondGraph(mol))
	frags := make([][]int, 0, len(cc))
	for _, c := range cc {
		f := make([]int, 0, len(c))
		for _, node := range c {
			f = append(f, int(node.ID()))
		}
		sort.Ints(f)
		frags = append(frags, f)
	}
	sort.Slice(frags, func(i, j int) bool { return frags[i][0] < frags[j][0] })
	return frags
}

func neighbors(g graph.Graph, i int) []int {
	it := g.From(int64(i))
	var ret []int
	for it.Next() {
		ret = append(ret, int(it.Node().ID()))
	}
	return ret
}

// GroupsBySymbol puts all the atoms with the same element symbol in one group.
// Groups are ordered by the first atom in each.
func GroupsBySymbol(mol Atomer) [][]int {
	index := make(map[string]int)
	var groups [][]int
	for i := 0; i < mol.Len(); i++ {
		s := normalSymbol(mol.Atom(i).Symbol)
		g, ok := index[s]
		if !ok {
			g = len(groups)
			index[s] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

// EquivalenceClasses splits the atoms in groups of equivalent atoms. Two atoms are
// equivalent if they have the same symbol and, for every group, the same number of
// bonded atoms in that group. The groups are refined until they don't change.
// Without bonds, the result is that of GroupsBySymbol.
func EquivalenceClasses(mol Atomer) [][]int {
	n := mol.Len()
	class := make([]int, n)
	for g, members := range GroupsBySymbol(mol) {
		for _, i := range members {
			class[i] = g
		}
	}
	nclasses := countClasses(class)
	g := BondGraph(mol)
	for {
		index := make(map[string]int)
		next := make([]int, n)
		for i := 0; i < n; i++ {
			neigh := neighbors(g, i)
			for k, b := range neigh {
				neigh[k] = class[b]
			}
			sort.Ints(neigh)
			key := fmt.Sprintf("%d:%s", class[i], strings.Trim(fmt.Sprint(neigh), "[]"))
			c, ok := index[key]
			if !ok {
				c = len(index)
				index[key] = c
			}
			next[i] = c
		}
		class = next
		if c := countClasses(class); c == nclasses {
			break
		} else {
			nclasses = c
		}
	}
	groups := make([][]int, nclasses)
	for i, c := range class {
		groups[c] = append(groups[c], i)
	}
	return groups
}

func countClasses(class []int) int {
	seen := make(map[int]bool)
	for _, c := range class {
		seen[c] = true
	}
	return len(seen)
}

// checkGroups verifies that the groups are disjoint and within range, and returns them
// with a singleton group added for each atom that was in no group.
func checkGroups(groups [][]int, n int) ([][]int, error) {
	seen := make([]bool, n)
	ret := make([][]int, 0, len(groups))
	for gi, g := range groups {
		if len(g) == 0 {
			return nil, newError("checkGroups", "%s: group %d is empty", ErrBadGroups, gi)
		}
		for _, i := range g {
			if i < 0 || i >= n {
				return nil, newError("checkGroups", "%s: atom %d in group %d out of range", ErrBadGroups, i, gi)
			}
			if seen[i] {
				return nil, newError("checkGroups", "%s: atom %d in more than one group", ErrBadGroups, i)
			}
			seen[i] = true
		}
		ret = append(ret, g)
	}
	for i, s := range seen {
		if !s {
			ret = append(ret, []int{i})
		}
	}
	return ret, nil
}
