/*
 * options.go, part of gocsm.
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
	"strings"
	"time"

	v3 "github.com/rmera/gocsm/v3"
	"go.uber.org/zap"
)

// Default values for the numerical thresholds of the search.
const (
	MaxDouble            = 1e8  //initial value for the best measure found.
	MinDouble            = 1e-8 //measures under this are exact symmetry; the search stops.
	GroupSizeLimit       = 15   //largest group enumerated exhaustively if the run is limited.
	GroupSizeFactor      = 1.32e11
	ApproxRunPerSec      = 8e4 //permutations evaluated per second, for the time estimate.
	ZeroImPartMax        = 1e-3
	MinGroupsForOutliers = 10
	OutlierFactor        = 2.0
)

// LimitPolicy tells what to do when an exhaustive search is estimated to exceed its budget.
type LimitPolicy int

const (
	Refuse   LimitPolicy = iota //don't enumerate; use the direction-based search instead.
	Truncate                    //enumerate only as many permutations as the budget allows.
	Proceed                     //warn and enumerate everything anyway.
)

func (l LimitPolicy) String() string {
	switch l {
	case Truncate:
		return "truncate"
	case Proceed:
		return "proceed"
	}
	return "refuse"
}

// ParseLimitPolicy reads "refuse", "truncate" or "proceed".
func ParseLimitPolicy(s string) (LimitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "refuse", "":
		return Refuse, nil
	case "truncate":
		return Truncate, nil
	case "proceed":
		return Proceed, nil
	}
	return Refuse, newError("ParseLimitPolicy", "%s: unknown limit policy %q", ErrBadOptions, s)
}

// Normalization selects what divides the squared distance between a structure and its closest
// symmetric structure in Result.Normalized. Result.CSM always uses Standard.
type Normalization int

const (
	Standard                Normalization = iota //the squared distances of the atoms to the center.
	AtomNumber                                   //the number of atoms.
	FragmentCenter                               //the squared distances of the atoms to the centers of their fragments.
	SymmetricFragmentCenter                      //as FragmentCenter, measured on the symmetric structure.
)

var normalizationNames = [...]string{"standard", "atom_number", "fragment_mass_center", "symmetric_fragment_mass_center"}

func (n Normalization) String() string {
	if n < 0 || int(n) >= len(normalizationNames) {
		return "unknown"
	}
	return normalizationNames[n]
}

// ParseNormalization reads one of "standard", "atom_number", "fragment_mass_center"
// or "symmetric_fragment_mass_center".
func ParseNormalization(s string) (Normalization, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Standard, nil
	}
	for i, name := range normalizationNames {
		if s == name {
			return Normalization(i), nil
		}
	}
	return Standard, newError("ParseNormalization", "%s: unknown normalization %q", ErrBadOptions, s)
}

// MarshalText writes the name of the normalization.
func (n Normalization) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText reads a normalization name.
func (n *Normalization) UnmarshalText(text []byte) error {
	r, err := ParseNormalization(string(text))
	if err != nil {
		return err
	}
	*n = r
	return nil
}

func (n Normalization) fragments() bool {
	return n == FragmentCenter || n == SymmetricFragmentCenter
}

// Tracer receives every permutation evaluated in a search, with the direction and
// the measure obtained for it.
type Tracer interface {
	Trace(op Operation, perm []int, dir [3]float64, csm float64) error
}

// Observer is informed of the work done by each search.
type Observer interface {
	ObservePermutations(op Operation, n int64)
	ObserveResult(r *Result)
}

// Options contains the configuration of a symmetry measure.
type Options struct {
	//FindPerm uses the direction-based heuristic search instead of enumerating
	//all permutations.
	FindPerm bool
	//UsePerm evaluates only Perm.
	UsePerm bool
	Perm    []int
	//UseDir fixes the symmetry element to Dir (the axis, or the normal to the mirror
	//plane) instead of optimizing it.
	UseDir bool
	Dir    [3]float64
	//UseMass uses the atomic masses to obtain the center of the structure and
	//to weight the direction fits.
	UseMass bool
	//KeepCenter measures the symmetry about the origin of the input coordinates
	//instead of moving the structure to its center.
	KeepCenter     bool
	DetectOutliers bool
	//OrthogonalDirs adds, to each fitted direction, the two perpendicular ones.
	OrthogonalDirs bool
	//SnMax is the largest SN order used for chirality.
	SnMax int
	//LimitRun enables the cost check before exhaustive searches.
	LimitRun    bool
	LimitPolicy LimitPolicy
	MaxRunTime  time.Duration //estimated enumeration time above which LimitPolicy applies.
	Timeout     time.Duration //wall clock limit for a search. 0 means no limit.
	Cpus        int
	MaxRefine   int //iterations of the direction/permutation refinement.
	//Normalization is used for Result.Normalized.
	Normalization Normalization

	MaxDouble            float64
	MinDouble            float64
	ZeroImPartMax        float64
	OutlierFactor        float64
	MinGroupsForOutliers int
	GroupSizeLimit       int
	GroupSizeFactor      float64
	ApproxRunPerSec      float64

	Log      *zap.Logger
	Tracer   Tracer
	Observer Observer
}

// DefaultOptions returns options for an exhaustive, single-threaded search
// with the cost check enabled.
func DefaultOptions() *Options {
	r := new(Options)
	r.OrthogonalDirs = true
	r.SnMax = 8
	r.LimitRun = true
	r.LimitPolicy = Refuse
	r.MaxRunTime = 24 * time.Hour
	r.Cpus = 1
	r.MaxRefine = 50
	r.MaxDouble = MaxDouble
	r.MinDouble = MinDouble
	r.ZeroImPartMax = ZeroImPartMax
	r.OutlierFactor = OutlierFactor
	r.MinGroupsForOutliers = MinGroupsForOutliers
	r.GroupSizeLimit = GroupSizeLimit
	r.GroupSizeFactor = GroupSizeFactor
	r.ApproxRunPerSec = ApproxRunPerSec
	return r
}

// check fills the unset values with defaults and verifies the rest.
func (O *Options) check(natoms int) error {
	if O.Log == nil {
		O.Log = zap.NewNop()
	}
	if O.Cpus < 1 {
		O.Cpus = 1
	}
	d := DefaultOptions()
	if O.SnMax <= 0 {
		O.SnMax = d.SnMax
	}
	if O.SnMax%2 != 0 {
		return newError("check", "%s: SnMax must be even, not %d", ErrBadOptions, O.SnMax)
	}
	if O.MaxDouble <= 0 {
		O.MaxDouble = d.MaxDouble
	}
	if O.MinDouble <= 0 {
		O.MinDouble = d.MinDouble
	}
	if O.ZeroImPartMax <= 0 {
		O.ZeroImPartMax = d.ZeroImPartMax
	}
	if O.OutlierFactor <= 0 {
		O.OutlierFactor = d.OutlierFactor
	}
	if O.MinGroupsForOutliers <= 0 {
		O.MinGroupsForOutliers = d.MinGroupsForOutliers
	}
	if O.GroupSizeLimit <= 0 {
		O.GroupSizeLimit = d.GroupSizeLimit
	}
	if O.GroupSizeFactor <= 0 {
		O.GroupSizeFactor = d.GroupSizeFactor
	}
	if O.ApproxRunPerSec <= 0 {
		O.ApproxRunPerSec = d.ApproxRunPerSec
	}
	if O.MaxRunTime <= 0 {
		O.MaxRunTime = d.MaxRunTime
	}
	if O.MaxRefine <= 0 {
		O.MaxRefine = d.MaxRefine
	}
	if O.UseDir {
		if _, ok := v3.Unit(O.Dir); !ok {
			return newError("check", "%s: the direction is a zero vector", ErrBadDirection)
		}
	}
	if O.Normalization < Standard || O.Normalization > SymmetricFragmentCenter {
		return newError("check", "%s: unknown normalization %d", ErrBadOptions, int(O.Normalization))
	}
	if O.UsePerm && len(O.Perm) != natoms {
		return newError("check", "%s: %d elements for %d atoms", ErrBadPermutation, len(O.Perm), natoms)
	}
	return nil
}
