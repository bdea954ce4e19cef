/*
 * evaluate.go, part of gocsm.
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

//The measure for a permutation P and an operation O of order n is obtained from the
//symmetric structure X, which is the average of the n structures O^-i Q[P^i(k)]
//(the projection of Q onto the structures that O and P leave unchanged). Since the
//projection is orthogonal, sum|Q-X|^2 = sum|Q|^2 - F/n, with
//
//  F(m) = sum_i sum_k Q[k]'O^-i Q[P^i(k)] = K + m'Am + B.m
//
//for the unit direction m of the symmetry element. The best direction maximizes
//F on the unit sphere. The Lagrange condition (lI-A)m = B/2 leads to a sixth degree
//polynomial in l (Pinsky et al., J. Comput. Chem. 29, 2712, 2008) whose largest real
//roots give the candidates.

package csm

import (
	"math"

	v3 "github.com/rmera/gocsm/v3"
)

// evaluator measures the symmetry of one structure for different permutations.
// It is not safe for concurrent use; each goroutine needs its own.
type evaluator struct {
	q      [][3]float64
	norm   float64 //sum of the squared norms of q
	op     Operation
	c      []float64
	s      []float64
	mu     []float64
	pw     [][]int //pw[i][k] is P^i(k)
	zeroIm float64
}

func newEvaluator(q [][3]float64, op Operation, zeroIm float64) *evaluator {
	e := &evaluator{q: q, op: op, zeroIm: zeroIm}
	e.norm = sumSquares(q)
	e.c, e.s, e.mu = op.steps()
	e.pw = make([][]int, op.Order)
	for i := range e.pw {
		e.pw[i] = make([]int, len(q))
	}
	return e
}

// setPerm sets the permutation to be evaluated and its powers.
func (e *evaluator) setPerm(perm []int) {
	for k := range e.pw[0] {
		e.pw[0][k] = k
	}
	for i := 1; i < len(e.pw); i++ {
		prev := e.pw[i-1]
		for k := range e.pw[i] {
			e.pw[i][k] = perm[prev[k]]
		}
	}
}

// terms returns K, A and B such that F(m) = K + m'Am + B.m for the current permutation.
func (e *evaluator) terms() (K float64, A [3][3]float64, B [3]float64) {
	for i, pw := range e.pw {
		c, s, mu := e.c[i], e.s[i], e.mu[i]
		for k, Q := range e.q {
			Y := e.q[pw[k]]
			K += c * v3.Dot(Q, Y)
			if s != 0 {
				cr := v3.Cross(Q, Y)
				for a := range B {
					B[a] += s * cr[a]
				}
			}
			if mu != 0 {
				for a := 0; a < 3; a++ {
					for b := 0; b < 3; b++ {
						A[a][b] += mu * (Q[a]*Y[b] + Q[b]*Y[a]) / 2
					}
				}
			}
		}
	}
	return K, A, B
}

// measure turns F into the symmetry measure, between 0 and 100.
func (e *evaluator) measure(F float64) float64 {
	if e.norm <= appzero {
		return 0
	}
	v := 100 * (1 - F/(float64(e.op.Order)*e.norm))
	if v < 0 {
		v = 0
	}
	return v
}

// atDir returns the measure for the current permutation with the symmetry element along
// dir or -dir (whichever is better), and the direction used.
func (e *evaluator) atDir(dir [3]float64) (float64, [3]float64) {
	m, _ := v3.Unit(dir)
	K, A, B := e.terms()
	neg := [3]float64{-m[0], -m[1], -m[2]}
	fp := quadratic(A, B, m)
	fn := quadratic(A, B, neg)
	if fn > fp {
		return e.measure(K + fn), neg
	}
	return e.measure(K + fp), m
}

// optimal returns the measure for the current permutation with the best direction,
// and that direction.
func (e *evaluator) optimal() (float64, [3]float64, error) {
	K, A, B := e.terms()
	m, f, err := maximizeOnSphere(A, B, e.zeroIm)
	if err != nil {
		return 0, m, errDecorate(err, "optimal")
	}
	return e.measure(K + f), m, nil
}

func quadratic(A [3][3]float64, B, m [3]float64) float64 {
	var r float64
	for a := 0; a < 3; a++ {
		r += B[a] * m[a]
		for b := 0; b < 3; b++ {
			r += m[a] * A[a][b] * m[b]
		}
	}
	return r
}

// maximizeOnSphere returns the unit vector m that maximizes m'Am + B.m for a
// symmetric A, and the maximum.
func maximizeOnSphere(A [3][3]float64, B [3]float64, zeroIm float64) ([3]float64, float64, error) {
	Am := v3.Zeros(3)
	for a := 0; a < 3; a++ {
		Am.SetVec(a, A[a])
	}
	evecs, evals, err := v3.EigenWrap(Am, -1)
	if err != nil {
		return [3]float64{0, 0, 1}, 0, errDecorate(err, "maximizeOnSphere")
	}
	vecs := evecs.Vecs()
	candidates := make([][3]float64, 0, 12)
	for _, v := range vecs {
		candidates = append(candidates, v, [3]float64{-v[0], -v[1], -v[2]})
	}
	//beta are the components of B/2 in the eigenvector basis.
	var beta [3]float64
	bnorm := v3.Norm(B)
	for j, v := range vecs {
		beta[j] = v3.Dot(v, B) / 2
	}
	scale := math.Max(math.Abs(evals[0]), math.Abs(evals[2]))
	if bnorm > appzero*math.Max(1, scale) {
		//prod_j (l-a_j)^2 - sum_j beta_j^2 prod_{i!=j} (l-a_i)^2
		sq := make([][]float64, 3)
		for j, a := range evals {
			sq[j] = []float64{1, -2 * a, a * a}
		}
		poly := polyMul(polyMul(sq[0], sq[1]), sq[2])
		for j := range evals {
			rest := []float64{1}
			for i := range evals {
				if i != j {
					rest = polyMul(rest, sq[i])
				}
			}
			poly = polyAdd(poly, rest, -beta[j]*beta[j])
		}
		roots, err := polyRoots(poly)
		if err == nil {
			for _, r := range roots {
				if math.Abs(imag(r)) >= zeroIm {
					continue
				}
				l := real(r)
				var m [3]float64
				ok := true
				for j, v := range vecs {
					d := l - evals[j]
					if math.Abs(d) < appzero {
						ok = false
						break
					}
					for a := range m {
						m[a] += beta[j] / d * v[a]
					}
				}
				if !ok {
					continue
				}
				if u, ok := v3.Unit(m); ok {
					candidates = append(candidates, u)
				}
			}
		}
	}
	best := math.Inf(-1)
	var bestm [3]float64
	for _, m := range candidates {
		if f := quadratic(A, B, m); f > best {
			best = f
			bestm = m
		}
	}
	return bestm, best, nil
}

// symmetricStructure returns the structure closest to q which is left unchanged by
// the operation op with element along dir, when combined with the permutation perm.
func symmetricStructure(q [][3]float64, perm []int, dir [3]float64, op Operation) [][3]float64 {
	m, _ := v3.Unit(dir)
	c, s, mu := op.steps()
	n := op.Order
	pw := make([]int, len(q))
	for k := range pw {
		pw[k] = k
	}
	ret := make([][3]float64, len(q))
	for i := 0; i < n; i++ {
		for k := range q {
			y := q[pw[k]]
			mxy := v3.Cross(m, y)
			my := v3.Dot(m, y)
			for a := 0; a < 3; a++ {
				ret[k][a] += (c[i]*y[a] - s[i]*mxy[a] + mu[i]*my*m[a]) / float64(n)
			}
		}
		for k := range pw {
			pw[k] = perm[pw[k]]
		}
	}
	return ret
}

// localCSM returns the contribution of each atom to the measure of q against its symmetric
// structure sym. The contributions add up to the measure.
func localCSM(q, sym [][3]float64) []float64 {
	norm := sumSquares(q)
	ret := make([]float64, len(q))
	if norm <= appzero {
		return ret
	}
	for k := range q {
		d := [3]float64{q[k][0] - sym[k][0], q[k][1] - sym[k][1], q[k][2] - sym[k][2]}
		ret[k] = 100 * v3.Dot(d, d) / norm
	}
	return ret
}

// SymmetricStructure returns the structure closest to coords which is symmetric under op,
// with the symmetry element along dir, when atom k is sent to atom perm[k].
// The coordinates should be centered.
func SymmetricStructure(coords *v3.Matrix, perm []int, dir [3]float64, op Operation) (*v3.Matrix, error) {
	q := coords.Vecs()
	if err := checkPerm(perm, nil, len(q), op); err != nil {
		return nil, errDecorate(err, "SymmetricStructure")
	}
	if op.Type == CH {
		return nil, newError("SymmetricStructure", "%s: CH is not a single operation", ErrBadOperation)
	}
	if _, ok := v3.Unit(dir); !ok && op.Type != CI {
		return nil, newError("SymmetricStructure", ErrBadDirection)
	}
	return v3.FromVecs(symmetricStructure(q, perm, dir, op)), nil
}

// LocalCSM returns the contribution of each atom of coords to the measure against its
// symmetric structure sym.
func LocalCSM(coords, sym *v3.Matrix) ([]float64, error) {
	if coords.NVecs() != sym.NVecs() {
		return nil, newError("LocalCSM", "goCSM: %d atoms but %d in the symmetric structure", coords.NVecs(), sym.NVecs())
	}
	return localCSM(coords.Vecs(), sym.Vecs()), nil
}

// checkPerm verifies that perm is a permutation of n elements which keeps every atom in its
// group (if groups is not nil) and has only the cycle lengths allowed by op.
func checkPerm(perm []int, groups [][]int, n int, op Operation) error {
	if len(perm) != n {
		return newError("checkPerm", "%s: %d elements for %d atoms", ErrBadPermutation, len(perm), n)
	}
	seen := make([]bool, n)
	for _, p := range perm {
		if p < 0 || p >= n || seen[p] {
			return newError("checkPerm", "%s: not a permutation", ErrBadPermutation)
		}
		seen[p] = true
	}
	if groups != nil {
		owner := make([]int, n)
		for g, members := range groups {
			for _, i := range members {
				owner[i] = g
			}
		}
		for k, p := range perm {
			if owner[k] != owner[p] {
				return newError("checkPerm", "%s: atoms %d and %d are not equivalent", ErrBadPermutation, k, p)
			}
		}
	}
	if op.Type == CH {
		return nil
	}
	for k := range seen {
		seen[k] = false
	}
	for k := range perm {
		if seen[k] {
			continue
		}
		l := 0
		for j := k; !seen[j]; j = perm[j] {
			seen[j] = true
			l++
		}
		if !op.allowsCycle(l) {
			return newError("checkPerm", "%s: a cycle of length %d is not allowed for %s", ErrBadPermutation, l, op)
		}
	}
	return nil
}
