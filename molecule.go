/*
 * molecule.go, part of gocsm.
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

	v3 "github.com/rmera/gocsm/v3"
)

// Atom contains the information about one atom needed to measure symmetry.
type Atom struct {
	Symbol string
	Name   string
	ID     int
	Mass   float64
	Bonds  []int //indexes of the bonded atoms.
}

// Copy returns a copy of the Atom object.
func (A *Atom) Copy() *Atom {
	if A == nil {
		panic("Attempted to copy a nil atom")
	}
	ret := *A
	ret.Bonds = append([]int(nil), A.Bonds...)
	return &ret
}

// Atomer is the basic interface for a topology.
type Atomer interface {
	//Atom returns the Atom corresponding to the index i
	//of the Atom slice in the Topology. Should panic if
	//out of range.
	Atom(i int) *Atom

	Len() int
}

// Masser can  return a slice with the masses of each atom in the reference.
type Masser interface {
	//Returns a slice with the masses of all atoms
	Masses() ([]float64, error)
}

// Ref is what a symmetry measure needs from a structure:
// the atoms, their masses, their positions and the groups of atoms
// that may be exchanged by a symmetry operation.
type Ref interface {
	Atomer
	Masser
	Coords() *v3.Matrix
	EquivalenceGroups() [][]int
}

// Molecule is a set of atoms with one set of coordinates.
type Molecule struct {
	Atoms  []*Atom
	coords *v3.Matrix
	//Groups are the equivalence groups. If nil, they are obtained from
	//the symbols and the bonds of the atoms.
	Groups [][]int
}

// NewMolecule returns a Molecule with the given atoms and coordinates, which are not copied.
func NewMolecule(atoms []*Atom, coords *v3.Matrix) (*Molecule, error) {
	if len(atoms) == 0 || coords == nil {
		return nil, newError("NewMolecule", ErrNoAtoms)
	}
	if coords.NVecs() != len(atoms) {
		return nil, newError("NewMolecule", "goCSM: %d atoms but %d coordinates", len(atoms), coords.NVecs())
	}
	return &Molecule{Atoms: atoms, coords: coords}, nil
}

// Atom returns the ith atom of the molecule.
func (M *Molecule) Atom(i int) *Atom {
	return M.Atoms[i]
}

// Len returns the number of atoms in the molecule.
func (M *Molecule) Len() int {
	return len(M.Atoms)
}

// Coords returns the coordinates of the molecule.
func (M *Molecule) Coords() *v3.Matrix {
	return M.coords
}

// Masses returns a slice with the masses of all atoms. It returns an
// error if any mass is not positive.
func (M *Molecule) Masses() ([]float64, error) {
	mass := make([]float64, len(M.Atoms))
	for i, at := range M.Atoms {
		if at.Mass <= 0 {
			return nil, newError("Masses", "goCSM: Atom %d (%s) has no mass", i, at.Symbol)
		}
		mass[i] = at.Mass
	}
	return mass, nil
}

// EquivalenceGroups returns the groups of atoms that may be exchanged
// by a symmetry operation.
func (M *Molecule) EquivalenceGroups() [][]int {
	if M.Groups == nil {
		M.Groups = EquivalenceClasses(M)
	}
	return M.Groups
}

// Copy returns a deep copy of the molecule.
func (M *Molecule) Copy() *Molecule {
	ret := &Molecule{Atoms: make([]*Atom, len(M.Atoms))}
	for i, at := range M.Atoms {
		ret.Atoms[i] = at.Copy()
	}
	ret.coords = v3.Zeros(M.coords.NVecs())
	ret.coords.Copy(M.coords)
	for _, g := range M.Groups {
		ret.Groups = append(ret.Groups, append([]int(nil), g...))
	}
	return ret
}

// String returns a short description of the molecule.
func (M *Molecule) String() string {
	return fmt.Sprintf("Molecule with %d atoms and %d equivalence groups", M.Len(), len(M.EquivalenceGroups()))
}

// WithoutHydrogens returns a copy of the molecule without its hydrogen atoms, and the index,
// in M, of each atom of the copy. Bonds to hydrogens are dropped, and so are the hydrogens in
// the equivalence groups, if those were set.
func (M *Molecule) WithoutHydrogens() (*Molecule, []int, error) {
	newIndex := make([]int, M.Len())
	var kept []int
	for i, at := range M.Atoms {
		if normalSymbol(at.Symbol) == "H" {
			newIndex[i] = -1
			continue
		}
		newIndex[i] = len(kept)
		kept = append(kept, i)
	}
	if len(kept) == 0 {
		return nil, nil, newError("WithoutHydrogens", "%s: only hydrogens in the structure", ErrNoAtoms)
	}
	ret := &Molecule{Atoms: make([]*Atom, len(kept)), coords: v3.Zeros(len(kept))}
	for k, i := range kept {
		at := M.Atoms[i].Copy()
		bonds := at.Bonds[:0]
		for _, b := range at.Bonds {
			if b >= 0 && b < len(newIndex) && newIndex[b] >= 0 {
				bonds = append(bonds, newIndex[b])
			}
		}
		at.Bonds = bonds
		ret.Atoms[k] = at
		ret.coords.SetVec(k, M.coords.Vec(i))
	}
	for _, g := range M.Groups {
		var ng []int
		for _, i := range g {
			if i >= 0 && i < len(newIndex) && newIndex[i] >= 0 {
				ng = append(ng, newIndex[i])
			}
		}
		if len(ng) > 0 {
			ret.Groups = append(ret.Groups, ng)
		}
	}
	return ret, kept, nil
}
