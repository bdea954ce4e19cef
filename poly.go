/*
 * poly.go, part of gocsm.
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
	"gonum.org/v1/gonum/mat"
)

// Polynomials are slices of coefficients, from the highest degree down to the constant.

// polyMul returns the product of the polynomials a and b.
func polyMul(a, b []float64) []float64 {
	ret := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		for j, y := range b {
			ret[i+j] += x * y
		}
	}
	return ret
}

// polyAdd returns a + f*b. The polynomials are aligned on their constant term.
func polyAdd(a, b []float64, f float64) []float64 {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	ret := make([]float64, n)
	copy(ret[n-len(a):], a)
	for i, y := range b {
		ret[n-len(b)+i] += f * y
	}
	return ret
}

// polyEval evaluates the polynomial p at x (Horner).
func polyEval(p []float64, x float64) float64 {
	var r float64
	for _, c := range p {
		r = r*x + c
	}
	return r
}

// polyRoots returns all the complex roots of the polynomial p, as the eigenvalues of
// its companion matrix. Leading zero coefficients are ignored.
func polyRoots(p []float64) ([]complex128, error) {
	for len(p) > 0 && p[0] == 0 {
		p = p[1:]
	}
	deg := len(p) - 1
	if deg < 1 {
		return nil, nil
	}
	comp := mat.NewDense(deg, deg, nil)
	for j := 0; j < deg; j++ {
		comp.Set(0, j, -p[j+1]/p[0])
	}
	for i := 1; i < deg; i++ {
		comp.Set(i, i-1, 1)
	}
	var eig mat.Eigen
	if ok := eig.Factorize(comp, mat.EigenNone); !ok {
		return nil, newError("polyRoots", "goCSM: The companion matrix of a degree %d polynomial could not be factorized", deg)
	}
	return eig.Values(nil), nil
}
