/*
 * bonds.go, part of gocsm.
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
	"sort"

	v3 "github.com/rmera/gocsm/v3"
)

// constants from DOI:10.1186/1758-2946-3-33
const (
	tooclose = 0.63
	bondtol  = 0.45
)

// AssignBonds assigns bonds to a molecule based on a simple distance
// criterium, similar to that described in DOI:10.1186/1758-2946-3-33.
// Previous bonds are discarded. The coordinates are assumed to be in A.
func AssignBonds(mol *Molecule) error {
	coord := mol.Coords()
	tot := mol.Len()
	for i := 0; i < tot; i++ {
		mol.Atom(i).Bonds = nil
	}
	dists := make(map[[2]int]float64)
	for i := 0; i < tot; i++ {
		at1 := mol.Atom(i)
		cov1, ok := symbolCovrad[normalSymbol(at1.Symbol)]
		if !ok {
			return newError("AssignBonds", "goCSM: Couldn't find the covalent radius for %s %d", at1.Symbol, i)
		}
		t1 := coord.Vec(i)
		for j := i + 1; j < tot; j++ {
			at2 := mol.Atom(j)
			cov2, ok := symbolCovrad[normalSymbol(at2.Symbol)]
			if !ok {
				return newError("AssignBonds", "goCSM: Couldn't find the covalent radius for %s %d", at2.Symbol, j)
			}
			t2 := coord.Vec(j)
			d := v3.Norm([3]float64{t2[0] - t1[0], t2[1] - t1[1], t2[2] - t1[2]})
			if d < cov1+cov2+bondtol && d > tooclose {
				at1.Bonds = append(at1.Bonds, j)
				at2.Bonds = append(at2.Bonds, i)
				dists[[2]int{i, j}] = d
				dists[[2]int{j, i}] = d
			}
		}
	}
	//Now we check that no atom has too many bonds, removing the longest ones.
	for i := 0; i < tot; i++ {
		at := mol.Atom(i)
		max := symbolMaxBonds[normalSymbol(at.Symbol)]
		if max == 0 { //means there is not a specified number of bonds for this atom.
			continue
		}
		sort.Slice(at.Bonds, func(a, b int) bool { return dists[[2]int{i, at.Bonds[a]}] < dists[[2]int{i, at.Bonds[b]}] })
		for len(at.Bonds) > max {
			last := at.Bonds[len(at.Bonds)-1]
			at.Bonds = at.Bonds[:len(at.Bonds)-1]
			other := mol.Atom(last)
			other.Bonds = removeInt(other.Bonds, i)
		}
	}
	for i := 0; i < tot; i++ {
		sort.Ints(mol.Atom(i).Bonds)
	}
	return nil
}

func removeInt(s []int, v int) []int {
	for i, e := range s {
		if e == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
