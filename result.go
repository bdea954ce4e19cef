/*
 * result.go, part of gocsm.
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
	"encoding/json"
	"fmt"
	"strings"

	v3 "github.com/rmera/gocsm/v3"
)

// Result is the outcome of a symmetry measure.
type Result struct {
	Op        Operation //the operation that gave the measure (for CH, one of CS or SN).
	Requested Operation
	CSM       float64
	//Perm[k] is the atom onto which the operation carries atom k.
	Perm []int
	Dir  [3]float64
	//Symmetric is the closest symmetric structure, in the frame of the input coordinates.
	Symmetric *v3.Matrix
	//DMin is the scale of the structure: the root mean square distance of the atoms
	//to the center (to the origin, with KeepCenter). It is the factor that the
	//coordinates would be divided by to normalize them, not a bound on CSM.
	DMin float64
	//Normalized is the measure with the Normalization of the options. It equals
	//CSM for the Standard normalization.
	Normalization Normalization
	Normalized    float64
	Local         []float64 //per-atom contributions to CSM.
	//Outliers are the atoms left out of the direction fit.
	Outliers     []int
	Permutations int64 //number of permutations evaluated.
	Truncated    bool  //the search was stopped by a limit before it was complete.
	Warnings     []string
}

// String returns a report of the result, in the manner of the output of the
// command line program.
func (R *Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", R.Requested.Name())
	if R.Op != R.Requested {
		fmt.Fprintf(&b, "BEST OPERATION: %s\n", R.Op)
	}
	fmt.Fprintf(&b, "CSM: %.6f\n", R.CSM)
	if R.Normalization != Standard {
		fmt.Fprintf(&b, "NORMALIZED CSM (%s): %.6f\n", R.Normalization, R.Normalized)
	}
	fmt.Fprintf(&b, "SCALING FACTOR: %.6f\n", R.DMin)
	fmt.Fprintf(&b, "DIRECTIONAL COSINES: %.6f %.6f %.6f\n", R.Dir[0], R.Dir[1], R.Dir[2])
	b.WriteString("PERMUTATION:")
	for _, p := range R.Perm {
		fmt.Fprintf(&b, " %d", p+1)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "PERMUTATIONS EVALUATED: %d\n", R.Permutations)
	if R.Truncated {
		b.WriteString("THE SEARCH WAS NOT COMPLETE\n")
	}
	for _, w := range R.Warnings {
		fmt.Fprintf(&b, "WARNING: %s\n", w)
	}
	return b.String()
}

// LocalString returns the local measure of each atom, one per line, with the atom symbols
// taken from mol, if it is not nil.
func (R *Result) LocalString(mol Atomer) string {
	var b strings.Builder
	b.WriteString("LOCAL CSM:\n")
	var sum float64
	for i, l := range R.Local {
		sym := ""
		if mol != nil && i < mol.Len() {
			sym = mol.Atom(i).Symbol
		}
		fmt.Fprintf(&b, "%-4d %-2s %10.4f\n", i+1, sym, l)
		sum += l
	}
	fmt.Fprintf(&b, "SUM: %.4f\n", sum)
	return b.String()
}

type jsonResult struct {
	Op           Operation     `json:"operation"`
	Requested    Operation     `json:"requested"`
	CSM          float64       `json:"csm"`
	Perm         []int         `json:"perm"`
	Dir          [3]float64    `json:"dir"`
	Symmetric    [][3]float64  `json:"symmetric"`
	DMin         float64       `json:"dmin"`
	Norm         Normalization `json:"normalization"`
	Normalized   float64       `json:"normalized"`
	Local        []float64     `json:"local,omitempty"`
	Outliers     []int         `json:"outliers,omitempty"`
	Permutations int64         `json:"permutations"`
	Truncated    bool          `json:"truncated,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
}

// MarshalJSON writes the result with the symmetric structure as a list of
// coordinate triplets.
func (R *Result) MarshalJSON() ([]byte, error) {
	j := jsonResult{
		Op:           R.Op,
		Requested:    R.Requested,
		CSM:          R.CSM,
		Perm:         R.Perm,
		Dir:          R.Dir,
		DMin:         R.DMin,
		Norm:         R.Normalization,
		Normalized:   R.Normalized,
		Local:        R.Local,
		Outliers:     R.Outliers,
		Permutations: R.Permutations,
		Truncated:    R.Truncated,
		Warnings:     R.Warnings,
	}
	if R.Symmetric != nil {
		j.Symmetric = R.Symmetric.Vecs()
	}
	return json.Marshal(j)
}

// UnmarshalJSON reads a result written by MarshalJSON.
func (R *Result) UnmarshalJSON(data []byte) error {
	var j jsonResult
	if err := json.Unmarshal(data, &j); err != nil {
		return errDecorate(err, "UnmarshalJSON")
	}
	*R = Result{
		Op:            j.Op,
		Requested:     j.Requested,
		CSM:           j.CSM,
		Perm:          j.Perm,
		Dir:           j.Dir,
		DMin:          j.DMin,
		Normalization: j.Norm,
		Normalized:    j.Normalized,
		Local:         j.Local,
		Outliers:      j.Outliers,
		Permutations:  j.Permutations,
		Truncated:     j.Truncated,
		Warnings:      j.Warnings,
	}
	if len(j.Symmetric) > 0 {
		R.Symmetric = v3.FromVecs(j.Symmetric)
	}
	return nil
}
