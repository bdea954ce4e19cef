/*
 * operation.go, part of gocsm.
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
	"math"
	"strconv"
	"strings"
)

// OpType is the kind of symmetry operation.
type OpType int

const (
	CN OpType = iota //proper rotation
	SN               //improper rotation (rotation followed by a reflection)
	CS               //reflection through a plane
	CI               //inversion through the center
	CH               //chirality: the lowest of CS and the even SN
)

func (t OpType) String() string {
	switch t {
	case CN:
		return "CN"
	case SN:
		return "SN"
	case CS:
		return "CS"
	case CI:
		return "CI"
	case CH:
		return "CH"
	}
	return "unknown"
}

// Operation is a symmetry operation and its order. CS and CI always have order 2.
type Operation struct {
	Type  OpType
	Order int
}

// NewOperation returns a valid operation of the given type and order.
// The order is ignored for CS, CI and CH.
func NewOperation(t OpType, order int) (Operation, error) {
	op := Operation{Type: t, Order: order}
	switch t {
	case CS, CI, CH:
		op.Order = 2
	}
	return op, op.validate()
}

// ParseOperation reads an operation code such as c2, s4, cs, ci or ch.
// s1 is the same as cs and s2 the same as ci. SN orders must be even.
func ParseOperation(code string) (Operation, error) {
	c := strings.ToLower(strings.TrimSpace(code))
	switch c {
	case "cs", "s1":
		return Operation{CS, 2}, nil
	case "ci", "s2":
		return Operation{CI, 2}, nil
	case "ch":
		return Operation{CH, 2}, nil
	}
	if len(c) < 2 || (c[0] != 'c' && c[0] != 's') {
		return Operation{}, newError("ParseOperation", "%s: %q", ErrBadOperation, code)
	}
	n, err := strconv.Atoi(c[1:])
	if err != nil {
		return Operation{}, newError("ParseOperation", "%s: %q", ErrBadOperation, code)
	}
	op := Operation{CN, n}
	if c[0] == 's' {
		op.Type = SN
	}
	if err := op.validate(); err != nil {
		return Operation{}, errDecorate(err, "ParseOperation")
	}
	return op, nil
}

func (op Operation) validate() error {
	switch op.Type {
	case CN:
		if op.Order < 2 {
			return newError("validate", "%s: C%d, the order must be at least 2", ErrBadOperation, op.Order)
		}
	case SN:
		if op.Order < 2 || op.Order%2 != 0 {
			return newError("validate", "%s: S%d, SN orders must be even and positive", ErrBadOperation, op.Order)
		}
	case CS, CI, CH:
		if op.Order != 2 {
			return newError("validate", "%s: %s has order 2", ErrBadOperation, op.Type)
		}
	default:
		return newError("validate", "%s: unknown type %d", ErrBadOperation, op.Type)
	}
	return nil
}

// String returns the short code of the operation, i.e. C3, S4, CS, CI or CH.
func (op Operation) String() string {
	switch op.Type {
	case CN:
		return fmt.Sprintf("C%d", op.Order)
	case SN:
		return fmt.Sprintf("S%d", op.Order)
	}
	return op.Type.String()
}

// Name returns a human readable name of the operation.
func (op Operation) Name() string {
	switch op.Type {
	case CN, SN:
		return op.String() + " SYMMETRY"
	case CS:
		return "MIRROR SYMMETRY"
	case CI:
		return "INVERSION (S2)"
	case CH:
		return "CHIRALITY"
	}
	return "UNKNOWN"
}

// MarshalText implements encoding.TextMarshaler, so operations are written as their codes.
func (op Operation) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (op *Operation) UnmarshalText(text []byte) error {
	o, err := ParseOperation(string(text))
	if err != nil {
		return err
	}
	*op = o
	return nil
}

// cycles returns the length k of the long cycles the operation allows in permutations,
// and whether 2-cycles are also allowed.
func (op Operation) cycles() (int, bool) {
	switch op.Type {
	case CN:
		return op.Order, false
	case SN:
		return op.Order, true
	}
	return 2, false
}

// allowsCycle returns true if a cycle of length l is allowed in permutations for op.
func (op Operation) allowsCycle(l int) bool {
	k, twos := op.cycles()
	return l == 1 || l == k || (twos && l == 2)
}

// steps returns the coefficients of the powers O^-i, i=0..n-1, of the operation:
// O^-i = c[i]*I - s[i]*[m]x + mu[i]*m*m', for a unit direction m (the axis
// or the normal to the mirror plane).
func (op Operation) steps() (c, s, mu []float64) {
	n := op.Order
	c = make([]float64, n)
	s = make([]float64, n)
	mu = make([]float64, n)
	c[0] = 1
	for i := 1; i < n; i++ {
		switch op.Type {
		case CS:
			c[i], s[i], mu[i] = 1, 0, -2
		case CI:
			c[i], s[i], mu[i] = -1, 0, 0
		default:
			theta := 2 * math.Pi * float64(i) / float64(n)
			c[i] = math.Cos(theta)
			s[i] = math.Sin(theta)
			mu[i] = 1 - c[i]
			if op.Type == SN && i%2 == 1 {
				mu[i] = -1 - c[i]
			}
		}
	}
	return c, s, mu
}

// chiralityOps returns the operations tested for chirality: CS and
// the SN with n = 2, 4 ... snMax.
func chiralityOps(snMax int) []Operation {
	ops := []Operation{{CS, 2}}
	for n := 2; n <= snMax; n += 2 {
		ops = append(ops, Operation{SN, n})
	}
	return ops
}
