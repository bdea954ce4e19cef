/*
 * errors.go, part of gocsm.
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
	"strings"
)

// Decorator is the interface for errors that all packages in this library implement. The Decorate method allows to add and retrieve info from the
// error, without changing its type or wrapping it around something else.
type Decorator interface {
	Error() string
	//Decorate adds the name of a function in the calling stack, and returns the resulting decoration. An empty string
	//just returns the current value.
	Decorate(string) []string
	Critical() bool
}

// Error is the error type of goCSM.
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
	if dec == "" {
		return err.deco
	}
	err.deco = append(err.deco, dec)
	return err.deco
}

// Critical return whether the error is critical or it can be ignored
func (err Error) Critical() bool { return err.critical }

// Trace returns the calling stack recorded in the error, innermost first.
func (err Error) Trace() string {
	return strings.Join(err.deco, " <- ")
}

// errDecorate adds the caller's name to a goCSM error before passing it up.
// Errors from other libraries are wrapped in a critical Error.
func errDecorate(err error, caller string) error {
	if err == nil {
		return nil
	}
	if e, ok := err.(Error); ok {
		e.deco = e.Decorate(caller)
		return e
	}
	return Error{fmt.Sprintf("%s: %s", caller, err.Error()), []string{caller}, true}
}

// newError returns a critical error raised by caller.
func newError(caller, format string, args ...interface{}) Error {
	return Error{fmt.Sprintf(format, args...), []string{caller}, true}
}

// Messages for the errors that can be returned before a search is started.
const (
	ErrNoAtoms        = "goCSM: No atoms in the structure"
	ErrBadOperation   = "goCSM: Invalid symmetry operation"
	ErrBadPermutation = "goCSM: Invalid permutation"
	ErrBadDirection   = "goCSM: Invalid direction"
	ErrBadGroups      = "goCSM: Invalid equivalence groups"
	ErrBadOptions     = "goCSM: Invalid options"
	ErrNoResult       = "goCSM: No permutation could be evaluated"
)
