/*
 * gocoords.go, part of gocsm.
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

package v3

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

const appzero float64 = 0.000000000001 //used to correct floating point
//errors. Everything equal or less than this is considered zero.

// Matrix is a set of vectors in 3D space.
// Within the package it is understood that a "vector" is a row vector, i.e. the
// cartesian coordinates of a point in 3D space.
type Matrix struct {
	*mat.Dense
}

// NewMatrix generates and returns a Matrix with 3 columns from data.
func NewMatrix(data []float64) (*Matrix, error) {
	const cols int = 3
	l := len(data)
	rows := l / cols
	if l%cols != 0 || l == 0 {
		return nil, Error{fmt.Sprintf("Input slice length %d not divisible by %d, or empty", l, cols), []string{"NewMatrix"}, true}
	}
	r := mat.NewDense(rows, cols, data)
	return &Matrix{r}, nil
}

// Zeros returns a zero-filled Matrix with vecs vectors and 3 in the other dimension.
func Zeros(vecs int) *Matrix {
	const cols int = 3
	f := make([]float64, cols*vecs)
	return &Matrix{mat.NewDense(vecs, cols, f)}
}

// FromVecs builds a new Matrix from the given vectors, which are copied.
func FromVecs(vecs [][3]float64) *Matrix {
	F := Zeros(len(vecs))
	for i, v := range vecs {
		F.SetVec(i, v)
	}
	return F
}

//METHODS

// NVecs returns the number of vecs in F.
func (F *Matrix) NVecs() int {
	r, c := F.Dims()
	if c != 3 {
		panic(ErrNotXx3Matrix)
	}
	return r
}

// Vec returns a copy of the ith vector of F.
func (F *Matrix) Vec(i int) [3]float64 {
	return [3]float64{F.At(i, 0), F.At(i, 1), F.At(i, 2)}
}

// SetVec sets the ith vector of F to v.
func (F *Matrix) SetVec(i int, v [3]float64) {
	for j := 0; j < 3; j++ {
		F.Set(i, j, v[j])
	}
}

// Vecs returns a copy of all the vectors in F.
func (F *Matrix) Vecs() [][3]float64 {
	ret := make([][3]float64, F.NVecs())
	for i := range ret {
		ret[i] = F.Vec(i)
	}
	return ret
}

// SwapVecs swaps the vectors i and j of F.
func (F *Matrix) SwapVecs(i, j int) {
	if i >= F.NVecs() || j >= F.NVecs() {
		panic(ErrIndexOutOfRange)
	}
	rowi := F.Vec(i)
	F.SetVec(i, F.Vec(j))
	F.SetVec(j, rowi)
}

// SubVec subtracts the vector to each vector of the matrix A, putting
// the result on the receiver. Panics if matrices are mismatched.
func (F *Matrix) SubVec(A, vec *Matrix) {
	ar, ac := A.Dims()
	rr, rc := vec.Dims()
	fr, fc := F.Dims()
	if ac != rc || rr != 1 || ac != fc || ar != fr {
		panic(ErrShape)
	}
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			F.Set(i, j, A.At(i, j)-vec.At(0, j))
		}
	}
}

// String returns a neat string representation of a Matrix
func (F *Matrix) String() string {
	r, c := F.Dims()
	v := make([]string, r+2)
	v[0] = "\n["
	v[len(v)-1] = " ]"
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, F.Dense)
		if i == 0 {
			v[i+1] = fmt.Sprintf("%6.2f %6.2f %6.2f\n", row[0], row[1], row[2])
			continue
		} else if i == r-1 {
			v[i+1] = fmt.Sprintf(" %6.2f %6.2f %6.2f", row[0], row[1], row[2])
			continue
		} else {
			v[i+1] = fmt.Sprintf(" %6.2f %6.2f %6.2f\n", row[0], row[1], row[2])
		}
	}
	v[len(v)-2] = strings.Replace(v[len(v)-2], "\n", "", 1)
	return strings.Join(v, "")
}

//Plain array helpers. The hot loops of the symmetry search work on
//[3]float64 values and use these.

// Cross returns the cross product a x b.
func Cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Dot returns the dot product a.b
func Dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// Norm returns the euclidean norm of a.
func Norm(a [3]float64) float64 {
	return math.Sqrt(Dot(a, a))
}

// Unit returns a normalized copy of a, and false if a is (numerically) a zero vector.
func Unit(a [3]float64) ([3]float64, bool) {
	n := Norm(a)
	if n <= appzero {
		return a, false
	}
	return [3]float64{a[0] / n, a[1] / n, a[2] / n}, true
}
