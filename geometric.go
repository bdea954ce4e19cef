/*
 * geometric.go, part of gocsm.
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
	"math"

	v3 "github.com/rmera/gocsm/v3"
	"gonum.org/v1/gonum/floats"
)

const appzero float64 = 0.000000000001 //used to correct floating point
//errors. Everything equal or less than this is considered zero.

// CenterOfMass returns the center of mass the atoms represented by the coordinates in geometry
// and the masses in mass, and an error. If mass is nil, it calculates the geometric center
func CenterOfMass(geometry *v3.Matrix, mass []float64) ([3]float64, error) {
	var center [3]float64
	if geometry == nil {
		return center, newError("CenterOfMass", "goCSM: nil matrix to get the center of mass")
	}
	gr := geometry.NVecs()
	if mass == nil {
		mass = make([]float64, gr)
		for i := range mass {
			mass[i] = 1
		}
	}
	if len(mass) != gr {
		return center, newError("CenterOfMass", "goCSM: %d masses for %d atoms", len(mass), gr)
	}
	total := floats.Sum(mass)
	if total <= 0 {
		return center, newError("CenterOfMass", "goCSM: total mass is not positive")
	}
	for i := 0; i < gr; i++ {
		for j := 0; j < 3; j++ {
			center[j] += mass[i] * geometry.At(i, j)
		}
	}
	for j := range center {
		center[j] /= total
	}
	return center, nil
}

// MassCentrate returns a copy of in, centered in its center of mass, and the center.
// If mass is nil, the geometric center is used.
func MassCentrate(in *v3.Matrix, mass []float64) (*v3.Matrix, [3]float64, error) {
	center, err := CenterOfMass(in, mass)
	if err != nil {
		return nil, center, errDecorate(err, "MassCentrate")
	}
	c := v3.FromVecs([][3]float64{center})
	ret := v3.Zeros(in.NVecs())
	ret.SubVec(in, c)
	return ret, center, nil
}

// scatter returns the (weighted) second moment tensor of the points around the origin,
// considering only the points for which skip is false (skip can be nil).
func scatter(points [][3]float64, weights []float64, skip []bool) *v3.Matrix {
	S := v3.Zeros(3)
	for i, p := range points {
		if skip != nil && skip[i] {
			continue
		}
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				S.Set(a, b, S.At(a, b)+w*p[a]*p[b])
			}
		}
	}
	return S
}

// MomentTensor returns the moment tensor for a matrix A of coordinates, weighted by
// the masses in massslice (which can be nil). The coordinates are centered first.
func MomentTensor(A *v3.Matrix, massslice []float64) (*v3.Matrix, error) {
	centered, _, err := MassCentrate(A, massslice)
	if err != nil {
		return nil, errDecorate(err, "MomentTensor")
	}
	return scatter(centered.Vecs(), massslice, nil), nil
}

// RMSRadius returns the root of the mean squared distance of the points to the origin.
func RMSRadius(points [][3]float64) float64 {
	if len(points) == 0 {
		return 0
	}
	return math.Sqrt(sumSquares(points) / float64(len(points)))
}

func sumSquares(points [][3]float64) float64 {
	var s float64
	for _, p := range points {
		s += v3.Dot(p, p)
	}
	return s
}
