/*
 * search.go, part of gocsm.
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
	"fmt"
	"sync"
	"time"

	"github.com/rmera/gocsm/permuter"
	v3 "github.com/rmera/gocsm/v3"
	"go.uber.org/zap"
)

// candidate is a permutation and direction with its measure.
type candidate struct {
	op       Operation
	csm      float64
	perm     []int
	dir      [3]float64
	outliers []int
}

// search holds the state of one symmetry measure.
type search struct {
	q         [][3]float64 //centered coordinates
	masses    []float64    //nil unless masses are used
	groups    [][]int
	frags     [][]int //bonded fragments, only for the fragment normalizations
	o         *Options
	log       *zap.Logger
	start     time.Time
	count     int64
	truncated bool
	warnings  []string
}

// Measure returns the continuous symmetry measure of mol for the operation op, and the
// permutation, direction and symmetric structure that produce it. If opts is nil, DefaultOptions
// is used. Configuration errors are returned before any search starts. Limits reached during
// the search are not errors: they are reported in the Warnings of the Result.
func Measure(mol Ref, op Operation, opts *Options) (*Result, error) {
	if err := op.validate(); err != nil {
		return nil, errDecorate(err, "Measure")
	}
	if mol == nil || mol.Len() == 0 {
		return nil, newError("Measure", ErrNoAtoms)
	}
	o := DefaultOptions()
	if opts != nil {
		c := *opts
		o = &c
	}
	n := mol.Len()
	if err := o.check(n); err != nil {
		return nil, errDecorate(err, "Measure")
	}
	coords := mol.Coords()
	if coords == nil || coords.NVecs() != n {
		return nil, newError("Measure", "goCSM: the coordinates don't match the %d atoms", n)
	}
	var masses []float64
	var err error
	if o.UseMass {
		masses, err = mol.Masses()
		if err != nil {
			return nil, errDecorate(err, "Measure")
		}
	}
	var centered *v3.Matrix
	var center [3]float64
	if o.KeepCenter {
		centered = v3.Zeros(n)
		centered.Copy(coords)
	} else {
		centered, center, err = MassCentrate(coords, masses)
		if err != nil {
			return nil, errDecorate(err, "Measure")
		}
	}
	groups, err := checkGroups(mol.EquivalenceGroups(), n)
	if err != nil {
		return nil, errDecorate(err, "Measure")
	}
	if o.UsePerm {
		if err := checkPerm(o.Perm, groups, n, op); err != nil {
			return nil, errDecorate(err, "Measure")
		}
	}
	s := &search{q: centered.Vecs(), masses: masses, groups: groups, o: o, log: o.Log, start: time.Now()}
	if o.Normalization.fragments() {
		s.frags = Fragments(mol)
		if len(s.frags) == n {
			return nil, newError("Measure", "%s: %s needs bonded fragments, but every atom is a fragment", ErrBadOptions, o.Normalization)
		}
		if o.Normalization == FragmentCenter && fragmentSpread(s.q, s.frags) <= appzero {
			return nil, newError("Measure", "%s: the atoms coincide with the centers of their fragments", ErrBadOptions)
		}
	}
	s.log.Info("Measuring symmetry", zap.Stringer("operation", op), zap.Int("atoms", n), zap.Int("groups", len(groups)))
	var best candidate
	if op.Type == CH {
		best, err = s.chirality()
	} else {
		best, err = s.measureOp(op)
	}
	if err != nil {
		return nil, errDecorate(err, "Measure")
	}
	res := s.result(best, op, center)
	s.log.Info("Symmetry measured", zap.Stringer("operation", res.Op), zap.Float64("csm", res.CSM), zap.Int64("permutations", res.Permutations), zap.Duration("elapsed", time.Since(s.start)))
	if o.Observer != nil {
		o.Observer.ObserveResult(res)
	}
	return res, nil
}

func (s *search) result(best candidate, requested Operation, center [3]float64) *Result {
	sym := symmetricStructure(s.q, best.perm, best.dir, best.op)
	local := localCSM(s.q, sym)
	normalized := s.normalize(best.csm, sym)
	for k := range sym {
		for a := 0; a < 3; a++ {
			sym[k][a] += center[a]
		}
	}
	return &Result{
		Op:            best.op,
		Requested:     requested,
		CSM:           best.csm,
		Perm:          best.perm,
		Dir:           best.dir,
		Symmetric:     v3.FromVecs(sym),
		DMin:          RMSRadius(s.q),
		Normalization: s.o.Normalization,
		Normalized:    normalized,
		Local:         local,
		Outliers:      best.outliers,
		Permutations:  s.count,
		Truncated:     s.truncated,
		Warnings:      s.warnings,
	}
}

// normalize returns the measure csm, of the structure with closest symmetric structure sym,
// with the normalization of the options.
func (s *search) normalize(csm float64, sym [][3]float64) float64 {
	var d float64
	for k, q := range s.q {
		for a := 0; a < 3; a++ {
			d += (q[a] - sym[k][a]) * (q[a] - sym[k][a])
		}
	}
	var norm float64
	switch s.o.Normalization {
	case AtomNumber:
		norm = float64(len(s.q))
	case FragmentCenter:
		norm = fragmentSpread(s.q, s.frags)
	case SymmetricFragmentCenter:
		norm = fragmentSpread(sym, s.frags)
		if norm <= appzero {
			s.warn("The fragments of the symmetric structure collapse to points; the standard normalization is used")
			return csm
		}
	default:
		return csm
	}
	return 100 * d / norm
}

// fragmentSpread returns the sum of the squared distances of the points to the geometric
// centers of their fragments.
func fragmentSpread(points [][3]float64, frags [][]int) float64 {
	var ret float64
	for _, f := range frags {
		var c [3]float64
		for _, i := range f {
			for a := 0; a < 3; a++ {
				c[a] += points[i][a] / float64(len(f))
			}
		}
		for _, i := range f {
			d := [3]float64{points[i][0] - c[0], points[i][1] - c[1], points[i][2] - c[2]}
			ret += v3.Dot(d, d)
		}
	}
	return ret
}

func (s *search) weight(i int) float64 {
	if s.masses == nil {
		return 1
	}
	return s.masses[i]
}

func (s *search) warn(msg string) {
	s.warnings = append(s.warnings, msg)
	s.log.Warn(msg)
}

func (s *search) timedOut() bool {
	return s.o.Timeout > 0 && time.Since(s.start) > s.o.Timeout
}

func (s *search) trace(op Operation, perm []int, dir [3]float64, csm float64) error {
	if s.o.Tracer == nil {
		return nil
	}
	if err := s.o.Tracer.Trace(op, perm, dir, csm); err != nil {
		return errDecorate(err, "trace")
	}
	return nil
}

func (s *search) progress(n int64) {
	if n%1000000 == 0 {
		s.log.Info("Permutations evaluated", zap.Int64("millions", n/1000000))
	}
}

// stop tells whether the enumeration must end before evaluating permutation number n.
func (s *search) stop(n, budget int64) bool {
	if budget >= 0 && n >= budget {
		if !s.truncated {
			s.truncated = true
			s.warn(fmt.Sprintf("Search truncated after %d permutations", n))
		}
		return true
	}
	if n%256 == 0 && s.timedOut() {
		if !s.truncated {
			s.truncated = true
			s.warn(fmt.Sprintf("Timeout of %s reached after %d permutations", s.o.Timeout, n))
		}
		return true
	}
	return false
}

// evalPerm measures perm, either with the fixed direction of the options, or with the best one.
func evalPerm(ev *evaluator, perm []int, o *Options) (float64, [3]float64, error) {
	ev.setPerm(perm)
	if o.UseDir {
		csm, dir := ev.atDir(o.Dir)
		return csm, dir, nil
	}
	return ev.optimal()
}

// measureOp chooses the kind of search for one operation.
func (s *search) measureOp(op Operation) (candidate, error) {
	before := s.count
	var c candidate
	var err error
	switch {
	case s.o.UsePerm:
		c, err = s.runSinglePerm(op)
	case s.o.FindPerm:
		c, err = s.directionSearch(op)
	default:
		c, err = s.findBestPerm(op)
	}
	if s.o.Observer != nil {
		s.o.Observer.ObservePermutations(op, s.count-before)
	}
	return c, err
}

// runSinglePerm measures only the permutation given in the options.
func (s *search) runSinglePerm(op Operation) (candidate, error) {
	if err := checkPerm(s.o.Perm, s.groups, len(s.q), op); err != nil {
		return candidate{}, errDecorate(err, "runSinglePerm")
	}
	perm := append([]int(nil), s.o.Perm...)
	ev := newEvaluator(s.q, op, s.o.ZeroImPartMax)
	csm, dir, err := evalPerm(ev, perm, s.o)
	s.count++
	if err != nil {
		return candidate{}, errDecorate(err, "runSinglePerm")
	}
	if err := s.trace(op, perm, dir, csm); err != nil {
		return candidate{}, err
	}
	return candidate{op: op, csm: csm, perm: perm, dir: dir}, nil
}

// costCheck estimates the cost of enumerating total permutations. It returns the number of
// permutations that may be evaluated (-1 for all of them) and whether the enumeration
// should be replaced by the direction-based search.
func (s *search) costCheck(op Operation, total float64) (int64, bool) {
	secs := total / s.o.ApproxRunPerSec
	s.log.Info("Exhaustive search", zap.Stringer("operation", op), zap.Float64("permutations", total), zap.Float64("estimatedHours", secs/3600))
	if !s.o.LimitRun {
		return -1, false
	}
	largest := 0
	for _, g := range s.groups {
		if len(g) > largest {
			largest = len(g)
		}
	}
	var reason string
	switch {
	case secs > s.o.MaxRunTime.Seconds():
		reason = fmt.Sprintf("%s: %.3g permutations would take about %.3g hours", op, total, secs/3600)
	case total > s.o.GroupSizeFactor:
		reason = fmt.Sprintf("%s: %.3g permutations exceed the limit of %.3g", op, total, s.o.GroupSizeFactor)
	case largest > s.o.GroupSizeLimit && total > 1:
		reason = fmt.Sprintf("%s: a group of %d equivalent atoms exceeds the limit of %d", op, largest, s.o.GroupSizeLimit)
	default:
		return -1, false
	}
	switch s.o.LimitPolicy {
	case Proceed:
		s.warn(reason + "; enumerating all of them anyway")
		return -1, false
	case Truncate:
		budget := int64(s.o.MaxRunTime.Seconds() * s.o.ApproxRunPerSec)
		if float64(budget) > s.o.GroupSizeFactor {
			budget = int64(s.o.GroupSizeFactor)
		}
		if budget < 1 {
			budget = 1
		}
		s.warn(fmt.Sprintf("%s; only %d will be evaluated", reason, budget))
		return budget, false
	}
	s.warn(reason + "; using the direction-based search instead")
	return -1, true
}

// findBestPerm enumerates all the permutations allowed by op and the equivalence groups, and
// returns the one with the lowest measure. The identity is evaluated first and ties keep the
// earliest permutation.
func (s *search) findBestPerm(op Operation) (candidate, error) {
	k, twos := op.cycles()
	gp, err := permuter.NewGroupPermuterIndexes(s.groups, len(s.q), k, twos)
	if err != nil {
		return candidate{}, errDecorate(err, "findBestPerm")
	}
	budget, refuse := s.costCheck(op, gp.Total())
	if refuse {
		return s.directionSearch(op)
	}
	if s.o.Cpus > 1 {
		return s.findBestPermConc(op, gp, budget)
	}
	ev := newEvaluator(s.q, op, s.o.ZeroImPartMax)
	best := candidate{op: op, csm: s.o.MaxDouble}
	perm := make([]int, len(s.q))
	var n int64
	for gp.Next() {
		if s.stop(n, budget) {
			break
		}
		perm = gp.Perm(perm)
		csm, dir, err := evalPerm(ev, perm, s.o)
		n++
		s.progress(n)
		if err != nil {
			s.log.Debug("Permutation skipped", zap.Ints("perm", perm), zap.Error(err))
			continue
		}
		if err := s.trace(op, perm, dir, csm); err != nil {
			return candidate{}, err
		}
		if csm < best.csm {
			best.csm = csm
			best.perm = append(best.perm[:0], perm...)
			best.dir = dir
		}
		if best.csm < s.o.MinDouble {
			break
		}
	}
	s.count += n
	if best.perm == nil {
		return candidate{}, newError("findBestPerm", ErrNoResult)
	}
	return best, nil
}

type outcome struct {
	csm float64
	dir [3]float64
	err error
}

// findBestPermConc is findBestPerm with the permutations evaluated by s.o.Cpus goroutines.
// Permutations are produced in batches, and each batch is reduced in enumeration order,
// so the result is the same as that of findBestPerm.
func (s *search) findBestPermConc(op Operation, gp *permuter.GroupPermuter, budget int64) (candidate, error) {
	cpus := s.o.Cpus
	evs := make([]*evaluator, cpus)
	for i := range evs {
		evs[i] = newEvaluator(s.q, op, s.o.ZeroImPartMax)
	}
	batch := 256 * cpus
	perms := make([][]int, batch)
	outs := make([]outcome, batch)
	best := candidate{op: op, csm: s.o.MaxDouble}
	var n int64
	for more := true; more; {
		size := 0
		for size < batch {
			if !gp.Next() || s.stop(n+int64(size), budget) {
				more = false
				break
			}
			perms[size] = gp.Perm(perms[size])
			size++
		}
		if size == 0 {
			break
		}
		jobs := make(chan int, size)
		for i := 0; i < size; i++ {
			jobs <- i
		}
		close(jobs)
		var wg sync.WaitGroup
		for _, ev := range evs {
			wg.Add(1)
			go func(ev *evaluator) {
				defer wg.Done()
				for i := range jobs {
					csm, dir, err := evalPerm(ev, perms[i], s.o)
					outs[i] = outcome{csm, dir, err}
				}
			}(ev)
		}
		wg.Wait()
		for i := 0; i < size; i++ {
			n++
			s.progress(n)
			out := outs[i]
			if out.err != nil {
				s.log.Debug("Permutation skipped", zap.Ints("perm", perms[i]), zap.Error(out.err))
				continue
			}
			if err := s.trace(op, perms[i], out.dir, out.csm); err != nil {
				return candidate{}, err
			}
			if out.csm < best.csm {
				best.csm = out.csm
				best.perm = append(best.perm[:0], perms[i]...)
				best.dir = out.dir
			}
			if best.csm < s.o.MinDouble {
				more = false
				break
			}
		}
	}
	s.count += n
	if best.perm == nil {
		return candidate{}, newError("findBestPermConc", ErrNoResult)
	}
	return best, nil
}

// directionSearch estimates candidate directions for op (or takes the one in the options)
// and refines a permutation from each. The identity is always evaluated too.
func (s *search) directionSearch(op Operation) (candidate, error) {
	ev := newEvaluator(s.q, op, s.o.ZeroImPartMax)
	var dirs [][3]float64
	var outliers []int
	if s.o.UseDir {
		d, _ := v3.Unit(s.o.Dir)
		dirs = [][3]float64{d}
	} else {
		dirs, outliers = s.findSymmetryDirection(op)
	}
	s.log.Debug("Candidate directions", zap.Stringer("operation", op), zap.Int("directions", len(dirs)), zap.Ints("outliers", outliers))
	best := candidate{op: op, csm: s.o.MaxDouble}
	id := make([]int, len(s.q))
	for i := range id {
		id[i] = i
	}
	csm, dir, err := evalPerm(ev, id, s.o)
	s.count++
	if err == nil {
		if err := s.trace(op, id, dir, csm); err != nil {
			return candidate{}, err
		}
		best = candidate{op: op, csm: csm, perm: id, dir: dir, outliers: outliers}
	}
	for _, d := range dirs {
		if best.csm < s.o.MinDouble {
			break
		}
		if s.timedOut() {
			s.truncated = true
			s.warn(fmt.Sprintf("Timeout of %s reached in the direction-based search", s.o.Timeout))
			break
		}
		c, err := s.findBestPermUsingDir(ev, op, d)
		if err != nil {
			return candidate{}, errDecorate(err, "directionSearch")
		}
		if c.perm == nil {
			s.log.Debug("Direction skipped", zap.Float64s("dir", d[:]))
			continue
		}
		if c.csm < best.csm {
			best = c
			best.outliers = outliers
		}
	}
	if best.perm == nil {
		return candidate{}, newError("directionSearch", ErrNoResult)
	}
	return best, nil
}

// findBestPermUsingDir estimates the permutation for the direction dir and, unless the direction
// is fixed, alternates between optimizing the direction for the permutation and estimating
// the permutation for the direction, while the measure improves. If the first permutation
// can't be evaluated, the returned candidate has a nil permutation. Only errors from the
// Tracer are returned.
func (s *search) findBestPermUsingDir(ev *evaluator, op Operation, dir [3]float64) (candidate, error) {
	perm := s.estimatePerm(op, dir)
	csm, d, err := evalPerm(ev, perm, s.o)
	s.count++
	if err != nil {
		s.log.Debug("Permutation skipped", zap.Ints("perm", perm), zap.Error(err))
		return candidate{op: op, csm: s.o.MaxDouble}, nil
	}
	if err := s.trace(op, perm, d, csm); err != nil {
		return candidate{}, err
	}
	best := candidate{op: op, csm: csm, perm: perm, dir: d}
	if s.o.UseDir {
		return best, nil
	}
	for i := 0; i < s.o.MaxRefine && best.csm >= s.o.MinDouble; i++ {
		next := s.estimatePerm(op, best.dir)
		if equalInts(next, best.perm) {
			break
		}
		csm, d, err := evalPerm(ev, next, s.o)
		s.count++
		if err != nil {
			break
		}
		if err := s.trace(op, next, d, csm); err != nil {
			return candidate{}, err
		}
		if csm >= best.csm {
			break
		}
		best = candidate{op: op, csm: csm, perm: next, dir: d}
	}
	return best, nil
}

// chirality returns the lowest measure among CS and the SN with even n up to s.o.SnMax.
// It stops as soon as an exact symmetry is found.
func (s *search) chirality() (candidate, error) {
	best := candidate{csm: s.o.MaxDouble}
	found := false
	for _, op := range chiralityOps(s.o.SnMax) {
		if s.o.UsePerm && checkPerm(s.o.Perm, s.groups, len(s.q), op) != nil {
			s.log.Debug("Permutation not valid for operation", zap.Stringer("operation", op))
			continue
		}
		c, err := s.measureOp(op)
		if err != nil {
			return candidate{}, errDecorate(err, "chirality")
		}
		found = true
		s.log.Info("Chirality step", zap.Stringer("operation", op), zap.Float64("csm", c.csm))
		if c.csm < best.csm {
			best = c
		}
		if best.csm < s.o.MinDouble {
			break
		}
	}
	if !found {
		return candidate{}, newError("chirality", "%s: not valid for CS or any SN up to S%d", ErrBadPermutation, s.o.SnMax)
	}
	return best, nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
