/*
 * csm_test.go, part of gocsm.
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
	"bytes"
	"encoding/json"
	"math"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	v3 "github.com/rmera/gocsm/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func newMol(t *testing.T, symbols []string, coords [][3]float64) *Molecule {
	t.Helper()
	atoms := make([]*Atom, len(symbols))
	for i, s := range symbols {
		atoms[i] = &Atom{Symbol: s, ID: i + 1}
		atoms[i].Mass, _ = SymbolMass(s)
	}
	mol, err := NewMolecule(atoms, v3.FromVecs(coords))
	require.NoError(t, err)
	return mol
}

// water, with the C2 axis along z and the molecule on the xz plane.
func water(t *testing.T, eps float64) *Molecule {
	return newMol(t, []string{"O", "H", "H"}, [][3]float64{
		{0, 0, 0.12},
		{0.76 * (1 + eps), 0, -0.47 * (1 + eps)},
		{-0.76, 0, -0.47},
	})
}

// ammonia-like: three H at 120 degrees around z, and N on the axis.
func pyramid(t *testing.T) *Molecule {
	var c [][3]float64
	for i := 0; i < 3; i++ {
		a := 2 * math.Pi * float64(i) / 3
		c = append(c, [3]float64{math.Cos(a), math.Sin(a), 0})
	}
	c = append(c, [3]float64{0, 0, 0.6})
	return newMol(t, []string{"H", "H", "H", "N"}, c)
}

func randomMol(t *testing.T, n int, seed int64) *Molecule {
	r := rand.New(rand.NewSource(seed))
	symbols := make([]string, n)
	coords := make([][3]float64, n)
	for i := range coords {
		symbols[i] = "H"
		for a := 0; a < 3; a++ {
			coords[i][a] = 2*r.Float64() - 1
		}
	}
	return newMol(t, symbols, coords)
}

func testOptions(t *testing.T) *Options {
	o := DefaultOptions()
	o.Log = zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))
	return o
}

func mustOp(t *testing.T, code string) Operation {
	op, err := ParseOperation(code)
	require.NoError(t, err)
	return op
}

func TestParseOperation(t *testing.T) {
	cases := []struct {
		code string
		want Operation
	}{
		{"c2", Operation{CN, 2}},
		{"C7", Operation{CN, 7}},
		{"s4", Operation{SN, 4}},
		{"cs", Operation{CS, 2}},
		{"s1", Operation{CS, 2}},
		{"ci", Operation{CI, 2}},
		{"s2", Operation{CI, 2}},
		{" ch ", Operation{CH, 2}},
	}
	for _, c := range cases {
		op, err := ParseOperation(c.code)
		require.NoError(t, err, c.code)
		assert.Equal(t, c.want, op, c.code)
	}
	for _, bad := range []string{"s3", "c1", "c0", "x2", "c", "cx", ""} {
		_, err := ParseOperation(bad)
		assert.Error(t, err, bad)
	}
	assert.Equal(t, "S4", Operation{SN, 4}.String())
	var op Operation
	require.NoError(t, op.UnmarshalText([]byte("c5")))
	assert.Equal(t, Operation{CN, 5}, op)
}

func TestPolyRoots(t *testing.T) {
	//(x-1)(x-2)(x+3)
	roots, err := polyRoots([]float64{0, 1, 0, -7, 6})
	require.NoError(t, err)
	require.Len(t, roots, 3)
	re := make([]float64, len(roots))
	for i, r := range roots {
		assert.InDelta(t, 0, imag(r), 1e-9)
		re[i] = real(r)
	}
	sort.Float64s(re)
	assert.InDeltaSlice(t, []float64{-3, 1, 2}, re, 1e-9)
	assert.InDelta(t, 0, polyEval([]float64{1, 0, -7, 6}, 2), 1e-12)
	assert.Equal(t, []float64{1, 0, -7, 6}, polyAdd(polyMul([]float64{1, -1}, []float64{1, 1, -6}), []float64{0}, 1))
}

func TestMaximizeOnSphere(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		var A [3][3]float64
		var B [3]float64
		for a := 0; a < 3; a++ {
			B[a] = 4*r.Float64() - 2
			for b := a; b < 3; b++ {
				A[a][b] = 4*r.Float64() - 2
				A[b][a] = A[a][b]
			}
		}
		m, best, err := maximizeOnSphere(A, B, ZeroImPartMax)
		require.NoError(t, err)
		assert.InDelta(t, 1, v3.Norm(m), 1e-9)
		assert.InDelta(t, quadratic(A, B, m), best, 1e-9)
		for i := 0; i < 2000; i++ {
			u, ok := v3.Unit([3]float64{r.NormFloat64(), r.NormFloat64(), r.NormFloat64()})
			if !ok {
				continue
			}
			require.GreaterOrEqual(t, best, quadratic(A, B, u)-1e-9)
		}
	}
}

func TestRepairCycles(t *testing.T) {
	perm := []int{1, 2, 3, 0}
	repairCycles(perm, Operation{CN, 3})
	assert.Equal(t, []int{1, 2, 0, 3}, perm)
	perm = []int{1, 2, 3, 4, 0}
	repairCycles(perm, Operation{CN, 2})
	assert.Equal(t, []int{1, 0, 3, 2, 4}, perm)
	perm = []int{1, 2, 0}
	repairCycles(perm, Operation{SN, 4})
	assert.Equal(t, []int{1, 0, 2}, perm)
}

func TestMeasureExact(t *testing.T) {
	o := testOptions(t)
	res, err := Measure(water(t, 0), mustOp(t, "c2"), o)
	require.NoError(t, err)
	assert.InDelta(t, 0, res.CSM, 1e-6)
	assert.Equal(t, []int{0, 2, 1}, res.Perm)
	assert.InDelta(t, 1, math.Abs(res.Dir[2]), 1e-6)
	assert.EqualValues(t, 2, res.Permutations)
	assert.False(t, res.Truncated)

	//the plane of the molecule leaves every atom in place.
	res, err = Measure(water(t, 0), mustOp(t, "cs"), o)
	require.NoError(t, err)
	assert.InDelta(t, 0, res.CSM, 1e-6)
	assert.Equal(t, []int{0, 1, 2}, res.Perm)
	assert.InDelta(t, 1, math.Abs(res.Dir[1]), 1e-6)
	assert.EqualValues(t, 1, res.Permutations)

	res, err = Measure(pyramid(t), mustOp(t, "c3"), o)
	require.NoError(t, err)
	assert.InDelta(t, 0, res.CSM, 1e-6)
	assert.InDelta(t, 1, math.Abs(res.Dir[2]), 1e-6)
	assert.EqualValues(t, 2, res.Permutations)
	assert.Equal(t, 3, res.Perm[3])
}

func TestMeasureIdentityOnly(t *testing.T) {
	//every atom is different, so the identity is the only permutation.
	mol := newMol(t, []string{"C", "H", "F", "Cl", "Br"}, [][3]float64{
		{0, 0, 0}, {0.63, 0.63, 0.63}, {-0.8, -0.8, 0.8}, {-1.02, 1.02, -1.02}, {1.1, -1.1, -1.1},
	})
	res, err := Measure(mol, mustOp(t, "c3"), testOptions(t))
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Permutations)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, res.Perm)
	assert.Greater(t, res.CSM, 0.0)
}

func TestMeasureMonotonic(t *testing.T) {
	o := testOptions(t)
	prev := -1.0
	for _, eps := range []float64{0, 1e-3, 1e-2, 5e-2, 1e-1} {
		res, err := Measure(water(t, eps), mustOp(t, "c2"), o)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.CSM, 0.0)
		assert.LessOrEqual(t, res.CSM, 100.0)
		assert.Greater(t, res.CSM, prev, "eps %g", eps)
		prev = res.CSM
	}
}

func TestChirality(t *testing.T) {
	o := testOptions(t)
	res, err := Measure(water(t, 0), mustOp(t, "ch"), o)
	require.NoError(t, err)
	assert.Equal(t, Operation{CS, 2}, res.Op)
	assert.Equal(t, Operation{CH, 2}, res.Requested)
	assert.InDelta(t, 0, res.CSM, 1e-6)

	chiral := newMol(t, []string{"C", "H", "F", "Cl", "Br"}, [][3]float64{
		{0, 0, 0}, {0.63, 0.63, 0.63}, {-0.8, -0.8, 0.8}, {-1.02, 1.02, -1.02}, {1.1, -1.1, -1.1},
	})
	res, err = Measure(chiral, mustOp(t, "ch"), o)
	require.NoError(t, err)
	assert.Greater(t, res.CSM, 0.01)
	assert.Contains(t, []OpType{CS, SN}, res.Op.Type)
	//S2 and the larger SN send every vector to the origin with the identity.
	assert.Equal(t, CS, res.Op.Type)
}

func TestDirectionSearch(t *testing.T) {
	o := testOptions(t)
	o.FindPerm = true
	res, err := Measure(pyramid(t), mustOp(t, "c3"), o)
	require.NoError(t, err)
	assert.InDelta(t, 0, res.CSM, 1e-6)
	assert.InDelta(t, 1, math.Abs(res.Dir[2]), 1e-6)

	mol := randomMol(t, 6, 11)
	exact, err := Measure(mol, mustOp(t, "c3"), testOptions(t))
	require.NoError(t, err)
	approx, err := Measure(mol, mustOp(t, "c3"), o)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, approx.CSM, exact.CSM-1e-9)
}

func TestLineFitOutliers(t *testing.T) {
	o := DefaultOptions()
	u, _ := v3.Unit([3]float64{1, 2, 3})
	var points [][3]float64
	for i := -5; i <= 5; i++ {
		s := float64(i)
		points = append(points, [3]float64{1 + s*u[0], 1 + s*u[1], s * u[2]})
	}
	points = append(points, [3]float64{4, -3, 2})
	require.Greater(t, len(points), o.MinGroupsForOutliers+1)

	f := lineFit(points, nil, true, o)
	require.True(t, f.ok)
	assert.Equal(t, []int{len(points) - 1}, f.outliers)
	assert.InDelta(t, 1, math.Abs(v3.Dot(f.dirs[0], u)), 1e-9)
	assert.InDeltaSlice(t, []float64{1, 1, 0}, f.center[:], 1e-9)

	f = lineFit(points, nil, false, o)
	assert.Empty(t, f.outliers)
	//too few points to look for outliers.
	f = lineFit(points[6:], nil, true, o)
	assert.Empty(t, f.outliers)
}

func TestPlaneFitOutliers(t *testing.T) {
	o := DefaultOptions()
	normal, _ := v3.Unit([3]float64{0, -1, 1})
	var points [][3]float64
	for i := -2; i <= 1; i++ {
		for j := -1; j <= 1; j++ {
			s := float64(j) / math.Sqrt2
			points = append(points, [3]float64{1 + float64(i), 1 + s, 3 + s})
		}
	}
	points = append(points, [3]float64{1.5, 1 - 3/math.Sqrt2, 3 + 3/math.Sqrt2})

	f := planeFit(points, nil, true, o)
	require.True(t, f.ok)
	assert.Equal(t, []int{len(points) - 1}, f.outliers)
	assert.InDelta(t, 1, math.Abs(v3.Dot(f.dirs[0], normal)), 1e-9)
	for _, p := range points[:len(points)-1] {
		assert.InDelta(t, 0, residual(p, f.center, f.dirs[0], true), 1e-9)
	}
}

func TestFixedDirection(t *testing.T) {
	o := testOptions(t)
	o.UseDir = true
	o.Dir = [3]float64{0, 0, 2}
	res, err := Measure(pyramid(t), mustOp(t, "c3"), o)
	require.NoError(t, err)
	assert.InDelta(t, 0, res.CSM, 1e-6)
	assert.InDelta(t, 1, math.Abs(res.Dir[2]), 1e-9)

	o.Dir = [3]float64{1, 0, 0}
	res, err = Measure(pyramid(t), mustOp(t, "c3"), o)
	require.NoError(t, err)
	assert.Greater(t, res.CSM, 1.0)
}

func TestSymmetricStructure(t *testing.T) {
	mol := randomMol(t, 6, 3)
	o := testOptions(t)
	res, err := Measure(mol, mustOp(t, "c3"), o)
	require.NoError(t, err)
	var sum float64
	for _, l := range res.Local {
		assert.GreaterOrEqual(t, l, 0.0)
		sum += l
	}
	assert.InDelta(t, res.CSM, sum, 1e-6)

	//the symmetric structure is its own closest symmetric structure.
	sym, err := NewMolecule(mol.Atoms, res.Symmetric)
	require.NoError(t, err)
	o.UsePerm = true
	o.Perm = res.Perm
	again, err := Measure(sym, mustOp(t, "c3"), o)
	require.NoError(t, err)
	assert.InDelta(t, 0, again.CSM, 1e-6)
	assert.EqualValues(t, 1, again.Permutations)

	//and it realizes the operation: the image of atom k is atom perm[k].
	q, _, err := MassCentrate(res.Symmetric, nil)
	require.NoError(t, err)
	m, _ := v3.Unit(res.Dir)
	for k := 0; k < q.NVecs(); k++ {
		img := apply(res.Op, m, q.Vec(k))
		want := q.Vec(res.Perm[k])
		for a := 0; a < 3; a++ {
			assert.InDelta(t, want[a], img[a], 1e-6)
		}
	}
}

func TestConcurrentSearch(t *testing.T) {
	mol := randomMol(t, 9, 5)
	o := testOptions(t)
	o.LimitRun = false
	serial, err := Measure(mol, mustOp(t, "c2"), o)
	require.NoError(t, err)
	//9 atoms have 2620 involutions.
	assert.EqualValues(t, 2620, serial.Permutations)
	for _, cpus := range []int{2, 3} {
		o.Cpus = cpus
		conc, err := Measure(mol, mustOp(t, "c2"), o)
		require.NoError(t, err)
		assert.Equal(t, serial.CSM, conc.CSM)
		assert.Equal(t, serial.Perm, conc.Perm)
		assert.Equal(t, serial.Permutations, conc.Permutations)
	}
}

func TestLimitPolicy(t *testing.T) {
	mol := randomMol(t, 9, 5)
	o := testOptions(t)
	o.LimitRun = false
	full, err := Measure(mol, mustOp(t, "c2"), o)
	require.NoError(t, err)

	o = testOptions(t)
	o.GroupSizeLimit = 4
	res, err := Measure(mol, mustOp(t, "c2"), o)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warnings)
	assert.False(t, res.Truncated)
	assert.Less(t, res.Permutations, full.Permutations)
	assert.GreaterOrEqual(t, res.CSM, full.CSM-1e-9)

	o = testOptions(t)
	o.LimitPolicy = Truncate
	o.ApproxRunPerSec = 100
	o.MaxRunTime = time.Second
	res, err = Measure(mol, mustOp(t, "c2"), o)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.EqualValues(t, 100, res.Permutations)
	assert.GreaterOrEqual(t, res.CSM, full.CSM)
	assert.Len(t, res.Warnings, 2)

	o.LimitPolicy = Proceed
	res, err = Measure(mol, mustOp(t, "c2"), o)
	require.NoError(t, err)
	assert.False(t, res.Truncated)
	assert.Equal(t, full.Permutations, res.Permutations)
	assert.Equal(t, full.CSM, res.CSM)
	assert.Len(t, res.Warnings, 1)
}

func TestTracer(t *testing.T) {
	var buf bytes.Buffer
	pw, err := NewPermWriter(&buf)
	require.NoError(t, err)
	o := testOptions(t)
	o.Tracer = pw
	res, err := Measure(water(t, 0), mustOp(t, "c2"), o)
	require.NoError(t, err)
	require.NoError(t, pw.Close())
	assert.Equal(t, res.Permutations, pw.Lines())
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "#"))
	assert.True(t, strings.HasPrefix(lines[2], "C2\t"))
	assert.True(t, strings.HasSuffix(lines[2], "\t1 3 2"))
}

type countObserver struct {
	perms   map[Operation]int64
	results int
}

func (c *countObserver) ObservePermutations(op Operation, n int64) { c.perms[op] += n }
func (c *countObserver) ObserveResult(r *Result)                   { c.results++ }

func TestObserver(t *testing.T) {
	obs := &countObserver{perms: make(map[Operation]int64)}
	o := testOptions(t)
	o.Observer = obs
	o.SnMax = 4
	chiral := newMol(t, []string{"C", "H", "F", "Cl", "Br"}, [][3]float64{
		{0, 0, 0}, {0.63, 0.63, 0.63}, {-0.8, -0.8, 0.8}, {-1.02, 1.02, -1.02}, {1.1, -1.1, -1.1},
	})
	res, err := Measure(chiral, mustOp(t, "ch"), o)
	require.NoError(t, err)
	assert.Equal(t, 1, obs.results)
	assert.Len(t, obs.perms, 3) //CS, S2 and S4
	var total int64
	for _, n := range obs.perms {
		total += n
	}
	assert.Equal(t, res.Permutations, total)
}

func TestMeasureErrors(t *testing.T) {
	o := testOptions(t)
	_, err := Measure(water(t, 0), Operation{SN, 3}, o)
	assert.Error(t, err)

	_, err = Measure(nil, mustOp(t, "c2"), o)
	assert.Error(t, err)

	o.UsePerm = true
	o.Perm = []int{0, 2, 1}
	_, err = Measure(water(t, 0), mustOp(t, "c3"), o)
	assert.Error(t, err, "a 2-cycle is not allowed for C3")

	o.Perm = []int{1, 0, 2}
	_, err = Measure(water(t, 0), mustOp(t, "c2"), o)
	assert.Error(t, err, "O and H are not equivalent")

	o.Perm = []int{0, 1}
	_, err = Measure(water(t, 0), mustOp(t, "c2"), o)
	assert.Error(t, err)

	o = testOptions(t)
	o.UseDir = true
	_, err = Measure(water(t, 0), mustOp(t, "c2"), o)
	assert.Error(t, err)

	o = testOptions(t)
	o.UseMass = true
	mol := newMol(t, []string{"X", "H"}, [][3]float64{{0, 0, 0}, {1, 0, 0}})
	_, err = Measure(mol, mustOp(t, "c2"), o)
	assert.Error(t, err)

	mol.Groups = [][]int{{0, 1}, {1}}
	_, err = Measure(mol, mustOp(t, "c2"), testOptions(t))
	assert.Error(t, err)
}

func TestUseMass(t *testing.T) {
	o := testOptions(t)
	o.UseMass = true
	res, err := Measure(water(t, 0), mustOp(t, "c2"), o)
	require.NoError(t, err)
	assert.InDelta(t, 0, res.CSM, 1e-6)
	o.FindPerm = true
	res, err = Measure(water(t, 0), mustOp(t, "c2"), o)
	require.NoError(t, err)
	assert.InDelta(t, 0, res.CSM, 1e-6)
}

func TestNormalization(t *testing.T) {
	for _, name := range []string{"standard", "atom_number", "fragment_mass_center", "symmetric_fragment_mass_center"} {
		n, err := ParseNormalization(name)
		require.NoError(t, err)
		assert.Equal(t, name, n.String())
	}
	n, err := ParseNormalization(" Atom_Number ")
	require.NoError(t, err)
	assert.Equal(t, AtomNumber, n)
	_, err = ParseNormalization("by_mass")
	assert.ErrorContains(t, err, ErrBadOptions)

	mol := water(t, 0.1)
	centered, _, err := MassCentrate(mol.Coords(), nil)
	require.NoError(t, err)
	var sq float64
	for _, q := range centered.Vecs() {
		sq += v3.Dot(q, q)
	}
	o := testOptions(t)
	o.Normalization = AtomNumber
	res, err := Measure(mol, mustOp(t, "c2"), o)
	require.NoError(t, err)
	require.Greater(t, res.CSM, 0.01)
	assert.Equal(t, AtomNumber, res.Normalization)
	assert.InEpsilon(t, res.CSM*sq/3, res.Normalized, 1e-6)
	assert.Contains(t, res.String(), "NORMALIZED CSM (atom_number)")

	data, err := json.Marshal(res)
	require.NoError(t, err)
	var read Result
	require.NoError(t, json.Unmarshal(data, &read))
	assert.Equal(t, AtomNumber, read.Normalization)
	assert.InDelta(t, res.Normalized, read.Normalized, 1e-9)

	//without bonds every atom is its own fragment.
	o.Normalization = FragmentCenter
	_, err = Measure(mol, mustOp(t, "c2"), o)
	assert.Error(t, err)

	//one fragment, centered on its geometric center, gives back the standard measure.
	require.NoError(t, AssignBonds(mol))
	require.Len(t, Fragments(mol), 1)
	res, err = Measure(mol, mustOp(t, "c2"), o)
	require.NoError(t, err)
	assert.InEpsilon(t, res.CSM, res.Normalized, 1e-6)

	o.Normalization = SymmetricFragmentCenter
	res, err = Measure(mol, mustOp(t, "c2"), o)
	require.NoError(t, err)
	assert.Greater(t, res.Normalized, 0.0)

	o.Normalization = Normalization(len(normalizationNames))
	_, err = Measure(mol, mustOp(t, "c2"), o)
	assert.ErrorContains(t, err, ErrBadOptions)

	o = testOptions(t)
	res, err = Measure(mol, mustOp(t, "c2"), o)
	require.NoError(t, err)
	assert.Equal(t, res.CSM, res.Normalized)
	assert.NotContains(t, res.String(), "NORMALIZED")
}

func TestKeepCenter(t *testing.T) {
	o := testOptions(t)
	o.KeepCenter = true
	//the C2 axis of water is the z axis, so the origin is on it.
	res, err := Measure(water(t, 0), mustOp(t, "c2"), o)
	require.NoError(t, err)
	assert.InDelta(t, 0, res.CSM, 1e-6)

	shifted := water(t, 0)
	for i := 0; i < shifted.Len(); i++ {
		p := shifted.Coords().Vec(i)
		p[0] += 5
		shifted.Coords().SetVec(i, p)
	}
	res, err = Measure(shifted, mustOp(t, "c2"), testOptions(t))
	require.NoError(t, err)
	assert.InDelta(t, 0, res.CSM, 1e-6)
	//DMin is the RMS distance to the center, whatever the measure.
	centered, _, err := MassCentrate(shifted.Coords(), nil)
	require.NoError(t, err)
	assert.InDelta(t, RMSRadius(centered.Vecs()), res.DMin, 1e-9)
	assert.Greater(t, res.DMin, 0.5)
	res, err = Measure(shifted, mustOp(t, "c2"), o)
	require.NoError(t, err)
	assert.Greater(t, res.CSM, 1e-3)
	//the symmetric structure keeps its axis through the origin.
	sym := res.Symmetric.Vecs()
	for k, p := range sym {
		d := 2 * v3.Dot(p, res.Dir)
		r := [3]float64{d*res.Dir[0] - p[0], d*res.Dir[1] - p[1], d*res.Dir[2] - p[2]}
		assert.InDeltaSlice(t, sym[res.Perm[k]][:], r[:], 1e-6)
	}
}
