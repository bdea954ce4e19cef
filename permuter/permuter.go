/*
 * permuter.go, part of gocsm.
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

// Package permuter enumerates the permutations of equivalent atoms that a
// symmetry operation of order k can realize: permutations made only of fixed
// points, cycles of length k and, optionally, cycles of length 2.
package permuter

import (
	"fmt"
	"sort"
)

// Enumerator is a lazily advanced sequence of permutations.
// Next must be called before the first permutation can be read.
type Enumerator interface {
	//Next advances to the next permutation. It returns false when the sequence is exhausted.
	Next() bool
	//Reset puts the enumerator back to its initial state.
	Reset()
	//At returns the image of element i under the current permutation.
	At(i int) int
	//Len is the number of elements permuted.
	Len() int
}

// frame is the state of one step of the cycle-building walk.
// Stages: 0 try to close the cycle, 1 undo the closing, 2 try the next
// extension, 3 undo the extension.
type frame struct {
	curr, head, length int
	stage              int
	closed             bool
	started            int //first element of the cycle opened after closing this one, or -1.
	next               int //next extension candidate.
	extended           int
}

// Permuter enumerates, in a fixed canonical order, every permutation of a set of indexes
// whose cycles all have an allowed length. The identity is always the first permutation.
// The allowed lengths are only 1, k and, when requested, 2. Cycles whose length is
// another divisor of k are never produced: for k=6 there are no 2-cycles (unless
// allowed) and no 3-cycles, so atoms on a C3 sub-orbit of a C6 structure are not
// matched that way.
type Permuter struct {
	indexes []int
	allowed []bool //allowed[l] is true if cycles of length l can be used.
	maxLen  int
	k       int
	twos    bool
	p       []int //p[i] is the local image of local element i, or -1.
	used    []bool
	stack   []frame
	done    bool
	valid   bool
}

// NewPermuter returns a Permuter over the given indexes, with cycles of length 1, k
// and, if twos is true, 2. The indexes slice is not copied.
func NewPermuter(indexes []int, k int, twos bool) (*Permuter, error) {
	if len(indexes) == 0 {
		return nil, Error{"permuter: empty group", []string{"NewPermuter"}, true}
	}
	if k < 1 {
		return nil, Error{fmt.Sprintf("permuter: invalid cycle length %d", k), []string{"NewPermuter"}, true}
	}
	P := new(Permuter)
	P.indexes = indexes
	P.k = k
	P.twos = twos
	P.allowed = allowedLengths(len(indexes), k, twos)
	for l, ok := range P.allowed {
		if ok {
			P.maxLen = l
		}
	}
	P.p = make([]int, len(indexes))
	P.used = make([]bool, len(indexes))
	P.Reset()
	return P, nil
}

func allowedLengths(size, k int, twos bool) []bool {
	allowed := make([]bool, size+1)
	allowed[1] = true
	if k <= size {
		allowed[k] = true
	}
	if twos && size >= 2 {
		allowed[2] = true
	}
	return allowed
}

// Reset puts the permuter back before its first permutation.
func (P *Permuter) Reset() {
	for i := range P.p {
		P.p[i] = -1
		P.used[i] = false
	}
	P.used[0] = true
	P.stack = append(P.stack[:0], frame{curr: 0, head: 0, length: 1, started: -1})
	P.done = false
	P.valid = false
}

// Len returns the number of elements permuted.
func (P *Permuter) Len() int {
	return len(P.indexes)
}

// Local returns the position, within the group, of the image of the ith element of the group.
func (P *Permuter) Local(i int) int {
	if !P.valid {
		return i
	}
	return P.p[i]
}

// At returns the index (from the ones given on creation) to which the
// ith element of the group is sent.
func (P *Permuter) At(i int) int {
	return P.indexes[P.Local(i)]
}

func (P *Permuter) firstFree() int {
	for i, u := range P.used {
		if !u {
			return i
		}
	}
	return -1
}

// Next advances to the next permutation, returning false if there are no more.
func (P *Permuter) Next() bool {
	if P.done {
		return false
	}
	for len(P.stack) > 0 {
		f := &P.stack[len(P.stack)-1]
		switch f.stage {
		case 0:
			f.stage = 1
			if !P.allowed[f.length] {
				continue
			}
			P.p[f.curr] = f.head
			f.closed = true
			u := P.firstFree()
			if u < 0 {
				P.valid = true
				return true
			}
			P.used[u] = true
			f.started = u
			P.stack = append(P.stack, frame{curr: u, head: u, length: 1, started: -1})
		case 1:
			if f.started >= 0 {
				P.used[f.started] = false
				f.started = -1
			}
			if f.closed {
				P.p[f.curr] = -1
				f.closed = false
			}
			f.stage = 2
			f.next = 0
		case 2:
			if f.length >= P.maxLen {
				P.stack = P.stack[:len(P.stack)-1]
				continue
			}
			j := f.next
			for ; j < len(P.used) && P.used[j]; j++ {
			}
			if j >= len(P.used) {
				P.stack = P.stack[:len(P.stack)-1]
				continue
			}
			f.next = j + 1
			f.extended = j
			f.stage = 3
			P.p[f.curr] = j
			P.used[j] = true
			P.stack = append(P.stack, frame{curr: j, head: f.head, length: f.length + 1, started: -1})
		case 3:
			P.p[f.curr] = -1
			P.used[f.extended] = false
			f.stage = 2
		}
	}
	P.done = true
	P.valid = false
	return false
}

// Count returns the number of permutations the Permuter produces.
func (P *Permuter) Count() float64 {
	return Count(len(P.indexes), P.k, P.twos)
}

// Count returns the number of permutations of size elements with cycles
// of length 1, k and, if twos is true, 2. It is a float64 so it can
// hold the very large numbers that big groups produce.
func Count(size, k int, twos bool) float64 {
	if size <= 0 || k < 1 {
		return 0
	}
	allowed := allowedLengths(size, k, twos)
	lengths := make([]int, 0, 3)
	for l, ok := range allowed {
		if ok {
			lengths = append(lengths, l)
		}
	}
	sort.Ints(lengths)
	//counts[n] is the number of valid permutations of n elements.
	counts := make([]float64, size+1)
	counts[0] = 1
	for n := 1; n <= size; n++ {
		for _, l := range lengths {
			if l > n {
				break
			}
			//the cycle containing the first element: choose and order its other l-1 members.
			ways := 1.0
			for i := 0; i < l-1; i++ {
				ways *= float64(n - 1 - i)
			}
			counts[n] += ways * counts[n-l]
		}
	}
	return counts[size]
}

// Error is the error type of the package. It mirrors the goCSM errors.
type Error struct {
	message  string
	deco     []string
	critical bool
}

// Error returns a string with an error message.
func (err Error) Error() string { return err.message }

// Decorate will add the dec string to the decoration slice of strings of the error,
// and return the resulting slice.
func (err Error) Decorate(dec string) []string {
	err.deco = append(err.deco, dec)
	return err.deco
}

// Critical return whether the error is critical or it can be ignored
func (err Error) Critical() bool { return err.critical }
