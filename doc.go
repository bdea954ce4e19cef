/*
 * doc.go, part of gocsm.
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

/*
Package csm computes Continuous Symmetry Measures (CSM) of molecules: how far, in units
of 0 to 100, a structure is from having a given symmetry.

	**goCSM Capabilities**

	Measures CN (rotation), SN (improper rotation), CS (mirror) and CI (inversion)
	symmetry, and chirality (the lowest of CS and the even SN).

	Finds the best permutation of equivalent atoms either by enumerating all the
	permutations that the operation allows (optionally in parallel) or from
	estimated directions of the symmetry element.

	Finds the best direction of the symmetry element for a permutation
	analytically, or uses a given one.

	Returns the closest symmetric structure, and the contribution of each atom
	to the measure.

	Reads and writes XYZ files, plain or compressed with gzip or zstd.

	Assigns bonds and finds the groups of equivalent atoms.

	Writes every permutation evaluated to a trace file.

A measure is obtained with Measure:

	mol, err := csm.XYZFileRead("ch4.xyz", false)
	op, err := csm.ParseOperation("c3")
	res, err := csm.Measure(mol, op, csm.DefaultOptions())
	fmt.Println(res.CSM)

The subpackage permuter enumerates the permutations, csmplot plots the local measures and
metrics exports Prometheus metrics for the searches.
*/
package csm
