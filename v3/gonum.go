/*
 * gonum.go, part of gocsm.
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

//gonum.go contains the linear algebra that goes beyond storing coordinates:
//the symmetric eigendecomposition and the orthonormalization of vectors.
//There is only one eigensolver in goCSM, and it is here.

package v3

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// det returns the determinant of a 3x3 matrix. Panics if the matrix is not 3x3.
func det(A mat.Matrix) float64 {
	r, c := A.Dims()
	if r != 3 || c != 3 {
		panic(ErrDeterminant)
	}
	return (A.At(0, 0)*(A.At(1, 1)*A.At(2, 2)-A.At(2, 1)*A.At(1, 2)) - A.At(1, 0)*(A.At(0, 1)*A.At(2, 2)-A.At(2, 1)*A.At(0, 2)) + A.At(2, 0)*(A.At(0, 1)*A.At(1, 2)-A.At(1, 1)*A.At(0, 2)))
}

// eigenpair is a facility to sort Eigenvectors/Eigenvalues pairs
// It satisfies the sort.Interface interface.
type eigenpair struct {
	//evecs must have as many rows as evals has elements.
	evecs *Matrix
	evals sort.Float64Slice
}

func (E eigenpair) Less(i, j int) bool {
	return E.evals[i] < E.evals[j]
}
func (E eigenpair) Swap(i, j int) {
	E.evals.Swap(i, j)
	E.evecs.SwapVecs(i, j)
}
func (E eigenpair) Len() int {
	return len(E.evals)
}

// EigenWrap obtains the eigenvectors and eigenvalues of the symmetric 3x3 matrix in.
// Only the upper triangle of (in+in')/2 is used. The eigenvectors are returned as the rows
// of the returned Matrix, sorted by increasing eigenvalue, and they form
// a right-handed basis. If epsilon is negative, a default tolerance is used
// for the orthogonality check.
func EigenWrap(in *Matrix, epsilon float64) (*Matrix, []float64, error) {
	if epsilon < 0 {
		epsilon = appzero
	}
	r, c := in.Dims()
	if r != 3 || c != 3 {
		panic(ErrShape)
	}
	sym := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			sym.SetSym(i, j, (in.At(i, j)+in.At(j, i))/2)
		}
	}
	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return nil, nil, Error{string(ErrEigen), []string{"EigenWrap"}, true}
	}
	evals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	//gonum returns the eigenvectors as columns.
	evecs := Zeros(3)
	evecs.Copy(vecs.T())
	eig := eigenpair{evecs, evals}
	sort.Sort(eig)
	if !orthogonal(eig.evecs, epsilon) {
		//nearly degenerate eigenvalues can give slightly skewed eigenvectors.
		if err := GramSchmidt(eig.evecs); err != nil {
			return eig.evecs, eig.evals, Error{fmt.Sprintf("Eigenvectors not orthogonal: %s", err), []string{"EigenWrap"}, true}
		}
	}
	//Checking and fixing the handedness of the matrix.
	if det(eig.evecs) < 0 {
		eig.evecs.Dense.Scale(-1, eig.evecs.Dense)
	}
	return eig.evecs, eig.evals, nil
}

// GramSchmidt orthonormalizes, in place, the vectors of F, in order.
// It returns an error if a vector is linearly dependent on the previous ones.
func GramSchmidt(F *Matrix) error {
	n := F.NVecs()
	for i := 0; i < n; i++ {
		v := F.Vec(i)
		for j := 0; j < i; j++ {
			u := F.Vec(j)
			p := Dot(v, u)
			for k := range v {
				v[k] -= p * u[k]
			}
		}
		u, ok := Unit(v)
		if !ok {
			return Error{fmt.Sprintf("goCSM/v3: vector %d is linearly dependent", i), []string{"GramSchmidt"}, true}
		}
		F.SetVec(i, u)
	}
	return nil
}

// orthogonal tells whether the vectors of F are pairwise orthogonal within epsilon (or 1e-8
// if that is larger).
func orthogonal(F *Matrix, epsilon float64) bool {
	n := F.NVecs()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if math.Abs(Dot(F.Vec(i), F.Vec(j))) > math.Max(epsilon, 1e-8) {
				return false
			}
		}
	}
	return true
}

//Errors

// Error is the error type of the package.
type Error struct {
	message  string
	deco     []string
	critical bool
}

// Error returns a string with an error message.
func (err Error) Error() string {
	return err.message
}

// Decorate will add the dec string to the decoration slice of strings of the error,
// and return the resulting slice.
func (err Error) Decorate(dec string) []string {
	err.deco = append(err.deco, dec)
	return err.deco
}

// Critical return whether the error is critical or it can be ignored
func (err Error) Critical() bool { return err.critical }

// PanicMsg is a message used for panics, even though it does satisfy the error interface.
// for errors use Error.
type PanicMsg string

func (v PanicMsg) Error() string { return string(v) }

const (
	ErrNotXx3Matrix    = PanicMsg("goCSM/v3: A VecMatrix should have 3 columns")
	ErrEigen           = PanicMsg("goCSM/v3: Can't obtain eigenvectors/eigenvalues of given matrix")
	ErrDeterminant     = PanicMsg("goCSM/v3: Determinants are only available for 3x3 matrices")
	ErrShape           = PanicMsg("goCSM/v3: Dimension mismatch")
	ErrIndexOutOfRange = PanicMsg("goCSM/v3: index out of range")
)
