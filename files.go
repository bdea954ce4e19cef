/*
 * files.go, part of gocsm.
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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	v3 "github.com/rmera/gocsm/v3"
)

// XYZFileRead reads the first structure of an xyz file, which may be compressed with gzip
// (.gz) or zstd (.zst). The masses of the atoms are taken from their symbols and, unless
// nobonds is true, bonds are assigned from the covalent radii.
func XYZFileRead(xyzname string, nobonds bool) (*Molecule, error) {
	xyzfile, err := openFile(xyzname)
	if err != nil {
		return nil, errDecorate(err, "XYZFileRead "+xyzname)
	}
	defer xyzfile.Close()
	mol, err := XYZRead(xyzfile)
	if err != nil {
		return nil, errDecorate(err, "XYZFileRead "+xyzname)
	}
	if !nobonds {
		if err := AssignBonds(mol); err != nil {
			return nil, errDecorate(err, "XYZFileRead "+xyzname)
		}
	}
	return mol, nil
}

// XYZRead reads the first structure in xyz format from r. Atoms with unknown symbols
// get a zero mass.
func XYZRead(r io.Reader) (*Molecule, error) {
	xyz := bufio.NewReader(r)
	line, err := xyz.ReadString('\n')
	if err != nil && line == "" {
		return nil, newError("XYZRead", "goCSM: Ill formatted XYZ file: %s", err.Error())
	}
	natoms, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || natoms <= 0 {
		return nil, newError("XYZRead", "goCSM: Ill formatted XYZ file: the first line must be the number of atoms, not %q", strings.TrimSpace(line))
	}
	if _, err = xyz.ReadString('\n'); err != nil { //the comment line
		return nil, newError("XYZRead", "goCSM: Ill formatted XYZ file: no comment line")
	}
	atoms := make([]*Atom, natoms)
	coords := make([]float64, natoms*3)
	for i := 0; i < natoms; i++ {
		line, err = xyz.ReadString('\n')
		if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
			return nil, newError("XYZRead", "goCSM: Ill formatted XYZ file: %d atoms expected, %d found", natoms, i)
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			return nil, newError("XYZRead", "goCSM: Line %d of the XYZ file ill formed", i+3)
		}
		at := &Atom{Symbol: normalSymbol(fields[0]), Name: fields[0], ID: i + 1}
		at.Mass, _ = SymbolMass(at.Symbol)
		for j := 0; j < 3; j++ {
			coords[i*3+j], err = strconv.ParseFloat(fields[j+1], 64)
			if err != nil {
				return nil, newError("XYZRead", "goCSM: Line %d of the XYZ file ill formed: %s", i+3, err.Error())
			}
		}
		atoms[i] = at
	}
	mcoords, err := v3.NewMatrix(coords)
	if err != nil {
		return nil, errDecorate(err, "XYZRead")
	}
	return NewMolecule(atoms, mcoords)
}

// XYZFileWrite writes the coordinates coords, with the symbols in mol, to an xyz file with
// name xyzname, compressed according to its extension. If the file exists it will be overwritten.
func XYZFileWrite(xyzname string, coords *v3.Matrix, mol Atomer, comment string) error {
	out, err := createFile(xyzname)
	if err != nil {
		return errDecorate(err, "XYZFileWrite "+xyzname)
	}
	if err := XYZWrite(out, coords, mol, comment); err != nil {
		out.Close()
		return errDecorate(err, "XYZFileWrite "+xyzname)
	}
	if err := out.Close(); err != nil {
		return errDecorate(err, "XYZFileWrite "+xyzname)
	}
	return nil
}

// XYZWrite writes coords, with the symbols in mol, in xyz format to out.
// The comment must be a single line.
func XYZWrite(out io.Writer, coords *v3.Matrix, mol Atomer, comment string) error {
	if mol.Len() != coords.NVecs() {
		return newError("XYZWrite", "goCSM: %d atoms but %d coordinates", mol.Len(), coords.NVecs())
	}
	comment = strings.ReplaceAll(comment, "\n", " ")
	if _, err := fmt.Fprintf(out, "%-4d\n%s\n", mol.Len(), comment); err != nil {
		return errDecorate(err, "XYZWrite")
	}
	for i := 0; i < mol.Len(); i++ {
		c := coords.Vec(i)
		if _, err := fmt.Fprintf(out, "%-2s  %12.6f%12.6f%12.6f\n", mol.Atom(i).Symbol, c[0], c[1], c[2]); err != nil {
			return errDecorate(err, "XYZWrite")
		}
	}
	return nil
}
