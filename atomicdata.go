/*
 * atomicdata.go, part of gocsm.
 *
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
 *
 */

package csm

import "strings"

// A map for assigning mass to elements.
var symbolMass = map[string]float64{
	"H":  1.008,
	"B":  10.81,
	"C":  12.01,
	"O":  16.00,
	"N":  14.01,
	"P":  30.97,
	"S":  32.06,
	"Se": 78.96,
	"K":  39.1,
	"Ca": 40.08,
	"Mg": 24.30,
	"Cl": 35.45,
	"Na": 22.99,
	"Cu": 63.55,
	"Zn": 65.38,
	"Co": 58.93,
	"Fe": 55.84,
	"Mn": 54.94,
	"Cr": 51.996,
	"Ni": 58.69,
	"Pt": 195.08,
	"Pd": 106.42,
	"Ru": 101.07,
	"Si": 28.08,
	"Be": 9.012,
	"Al": 26.98,
	"F":  18.998,
	"Br": 79.904,
	"I":  126.90,
	"Li": 6.94,
	"Sn": 118.71,
	"Xe": 131.29,
}

// A map for assigning covalent radii to elements
// Values from Cordero et al., 2008 (DOI:10.1039/B801115J)
var symbolCovrad = map[string]float64{
	"H":  0.4, // 0.31 altered. H always has only one bond, the extra bonds get eliminated later.
	"B":  0.84,
	"C":  0.76, //the sp3 radius
	"O":  0.66,
	"N":  0.71,
	"P":  1.07,
	"S":  1.05,
	"Se": 1.2,
	"K":  2.03,
	"Ca": 1.76,
	"Mg": 1.41,
	"Cl": 1.02,
	"Na": 1.66,
	"Cu": 1.32,
	"Zn": 1.22,
	"Co": 1.5,  // hs
	"Fe": 1.52, //hs
	"Mn": 1.61, //hs
	"Cr": 1.39,
	"Ni": 1.24,
	"Pt": 1.36,
	"Pd": 1.39,
	"Ru": 1.46,
	"Si": 1.11,
	"Be": 0.96,
	"Al": 1.21,
	"F":  0.57,
	"Br": 1.2,
	"I":  1.39,
	"Li": 1.28,
	"Sn": 1.39,
	"Xe": 1.40,
}

// A map for checking that atoms don't
// have too many bonds. A value of 0 means
// undefined, i.e. that this atom shouldn't
// be checked for max bonds.
var symbolMaxBonds = map[string]int{
	"H":  1, //this is the only one truly important.
	"C":  4,
	"O":  2,
	"F":  1,
	"Cl": 1,
	"Br": 1,
	"I":  1,
}

// normalSymbol returns the symbol with the capitalization used in the tables,
// so "CL" and "cl" become "Cl".
func normalSymbol(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}

// SymbolMass returns the mass for the element with the given symbol, and false
// if the element is not known.
func SymbolMass(symbol string) (float64, bool) {
	m, ok := symbolMass[normalSymbol(symbol)]
	return m, ok
}
