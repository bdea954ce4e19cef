/*
 * direction.go, part of gocsm.
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
	"sort"

	v3 "github.com/rmera/gocsm/v3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// degenerate is the relative difference under which two eigenvalues of a fit are
// considered equal, so both eigenvectors are candidate directions.
const degenerate = 0.05

// fit is the result of fitting a line or a plane to a set of points.
type fit struct {
	center   [3]float64    //the weighted centroid of the fitted points, which the line or plane contains
	dirs     [3][3]float64 //the direction (of the line, or normal to the plane) first
	vals     [3]float64    //the eigenvalues for the directions
	outliers []int         //points excluded from the fit
	ok       bool
}

// lineFit fits a line to the points, with the given weights (nil means
// equal weights). If detect is true and there are more than o.MinGroupsForOutliers points,
// the points too far from the first fit are flagged as outliers and the line is fitted again
// without them.
func lineFit(points [][3]float64, weights []float64, detect bool, o *Options) fit {
	return pointFit(points, weights, detect, false, o)
}

// planeFit fits a plane to the points. See lineFit.
func planeFit(points [][3]float64, weights []float64, detect bool, o *Options) fit {
	return pointFit(points, weights, detect, true, o)
}

func pointFit(points [][3]float64, weights []float64, detect, plane bool, o *Options) fit {
	ret := fitOnce(points, weights, nil, plane)
	if !ret.ok || !detect || len(points) <= o.MinGroupsForOutliers {
		return ret
	}
	res := make([]float64, len(points))
	for i, p := range points {
		res[i] = residual(p, ret.center, ret.dirs[0], plane)
	}
	mean, std := stat.MeanStdDev(res, nil)
	threshold := mean + o.OutlierFactor*std
	skip := make([]bool, len(points))
	var outliers []int
	for i, r := range res {
		if r > threshold && r > o.MinDouble {
			skip[i] = true
			outliers = append(outliers, i)
		}
	}
	if len(outliers) == 0 || len(outliers) == len(points) {
		return ret
	}
	refit := fitOnce(points, weights, skip, plane)
	if !refit.ok {
		return ret
	}
	refit.outliers = outliers
	return refit
}

// residual is the distance from p to the line (or the plane) through c with direction
// (or normal) d.
func residual(p, c, d [3]float64, plane bool) float64 {
	v := [3]float64{p[0] - c[0], p[1] - c[1], p[2] - c[2]}
	proj := v3.Dot(v, d)
	if plane {
		return math.Abs(proj)
	}
	perp := v[:]
	floats.AddScaled(perp, -proj, d[:])
	return floats.Norm(perp, 2)
}

func fitOnce(points [][3]float64, weights []float64, skip []bool, plane bool) fit {
	var ret fit
	var total float64
	for i, p := range points {
		if skip != nil && skip[i] {
			continue
		}
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		total += w
		for a := 0; a < 3; a++ {
			ret.center[a] += w * p[a]
		}
	}
	if total <= appzero {
		return ret
	}
	for a := 0; a < 3; a++ {
		ret.center[a] /= total
	}
	shifted := make([][3]float64, len(points))
	for i, p := range points {
		for a := 0; a < 3; a++ {
			shifted[i][a] = p[a] - ret.center[a]
		}
	}
	S := scatter(shifted, weights, skip)
	trace := S.At(0, 0) + S.At(1, 1) + S.At(2, 2)
	if trace <= appzero {
		return ret
	}
	evecs, evals, err := v3.EigenWrap(S, -1)
	if err != nil {
		return ret
	}
	order := [3]int{2, 1, 0}
	if plane {
		order = [3]int{0, 1, 2}
	}
	for i, j := range order {
		ret.dirs[i] = evecs.Vec(j)
		ret.vals[i] = evals[j]
	}
	ret.ok = true
	return ret
}

// findSymmetryDirection returns candidate directions for the symmetry element of op, and the
// atoms considered outliers by the fit that produced the first candidate. The centers of the
// equivalence groups lie on the axis of a rotation, and on the plane of a reflection, so a
// line (or a plane) is fitted to them. The principal axes of the whole structure are added
// as further candidates.
func (s *search) findSymmetryDirection(op Operation) ([][3]float64, []int) {
	if op.Type == CI {
		return [][3]float64{{0, 0, 1}}, nil
	}
	centers := make([][3]float64, len(s.groups))
	gweights := make([]float64, len(s.groups))
	for g, members := range s.groups {
		for _, i := range members {
			w := s.weight(i)
			gweights[g] += w
			for a := 0; a < 3; a++ {
				centers[g][a] += w * s.q[i][a]
			}
		}
		for a := 0; a < 3; a++ {
			centers[g][a] /= gweights[g]
		}
	}
	var f fit
	if op.Type == CS {
		f = planeFit(centers, gweights, s.o.DetectOutliers, s.o)
	} else {
		f = lineFit(centers, gweights, s.o.DetectOutliers, s.o)
	}
	var dirs [][3]float64
	var outliers []int
	if f.ok {
		dirs = append(dirs, f.dirs[0])
		for i := 1; i < 3; i++ {
			near := math.Abs(f.vals[i]-f.vals[0]) <= degenerate*math.Max(math.Abs(f.vals[0]), math.Abs(f.vals[i]))
			if s.o.OrthogonalDirs || near {
				dirs = append(dirs, f.dirs[i])
			}
		}
		for _, g := range f.outliers {
			outliers = append(outliers, s.groups[g]...)
		}
		sort.Ints(outliers)
	}
	//the principal axes of the structure.
	if T, err := MomentTensor(v3.FromVecs(s.q), s.masses); err == nil {
		if evecs, _, err := v3.EigenWrap(T, -1); err == nil {
			for i := 2; i >= 0; i-- {
				dirs = append(dirs, evecs.Vec(i))
			}
		}
	}
	if len(dirs) == 0 {
		dirs = append(dirs, [3]float64{0, 0, 1})
	}
	return uniqueDirs(dirs), outliers
}

// uniqueDirs removes the directions parallel or antiparallel to a previous one.
func uniqueDirs(dirs [][3]float64) [][3]float64 {
	ret := dirs[:0:0]
	for _, d := range dirs {
		u, ok := v3.Unit(d)
		if !ok {
			continue
		}
		dup := false
		for _, r := range ret {
			if math.Abs(v3.Dot(u, r)) > 1-1e-6 {
				dup = true
				break
			}
		}
		if !dup {
			ret = append(ret, u)
		}
	}
	return ret
}

// apply returns the image of y under one application of op with element along the unit vector m.
func apply(op Operation, m, y [3]float64) [3]float64 {
	c, s, mu := op.steps()
	//O is the transpose of O^-1.
	mxy := v3.Cross(m, y)
	my := v3.Dot(m, y)
	var ret [3]float64
	for a := 0; a < 3; a++ {
		ret[a] = c[1]*y[a] + s[1]*mxy[a] + mu[1]*my*m[a]
	}
	return ret
}

type pair struct {
	from, to int
	d        float64
}

// estimatePerm guesses, for a direction, the permutation that op realizes: each atom is
// sent to the closest equivalent atom to its image under op. Pairs are taken greedily by
// increasing distance. Cycles with a length not allowed for op are then split.
func (s *search) estimatePerm(op Operation, dir [3]float64) []int {
	m, _ := v3.Unit(dir)
	perm := make([]int, len(s.q))
	for i := range perm {
		perm[i] = i
	}
	for _, g := range s.groups {
		if len(g) == 1 {
			continue
		}
		images := make([][3]float64, len(g))
		for a, i := range g {
			images[a] = apply(op, m, s.q[i])
		}
		pairs := make([]pair, 0, len(g)*len(g))
		for a := range g {
			for b, j := range g {
				d := [3]float64{images[a][0] - s.q[j][0], images[a][1] - s.q[j][1], images[a][2] - s.q[j][2]}
				pairs = append(pairs, pair{a, b, v3.Dot(d, d)})
			}
		}
		sort.SliceStable(pairs, func(x, y int) bool { return pairs[x].d < pairs[y].d })
		fromUsed := make([]bool, len(g))
		toUsed := make([]bool, len(g))
		assigned := 0
		for _, p := range pairs {
			if fromUsed[p.from] || toUsed[p.to] {
				continue
			}
			fromUsed[p.from] = true
			toUsed[p.to] = true
			perm[g[p.from]] = g[p.to]
			assigned++
			if assigned == len(g) {
				break
			}
		}
	}
	repairCycles(perm, op)
	return perm
}

// repairCycles splits, in place, the cycles of perm whose length op doesn't allow into
// cycles of allowed lengths, using the longest ones possible.
func repairCycles(perm []int, op Operation) {
	seen := make([]bool, len(perm))
	for start := range perm {
		if seen[start] {
			continue
		}
		var cycle []int
		for j := start; !seen[j]; j = perm[j] {
			seen[j] = true
			cycle = append(cycle, j)
		}
		if op.allowsCycle(len(cycle)) {
			continue
		}
		for pos := 0; pos < len(cycle); {
			l := len(cycle) - pos
			for ; l > 1 && !op.allowsCycle(l); l-- {
			}
			for t := 0; t < l; t++ {
				perm[cycle[pos+t]] = cycle[pos+(t+1)%l]
			}
			pos += l
		}
	}
}
