/*
 * trace.go, part of gocsm.
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
	"bufio"
	"io"
	"strconv"
	"sync"
)

// PermWriter is a Tracer that writes each permutation evaluated in a search as a line of text:
// the operation, the measure, the three components of the direction, and the permutation,
// with atoms counted from 1, all separated by tabs.
type PermWriter struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
	buf    []byte
	lines  int64
}

// NewPermWriter returns a PermWriter that writes to w. The header line is written first.
func NewPermWriter(w io.Writer) (*PermWriter, error) {
	P := &PermWriter{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		P.closer = c
	}
	if _, err := P.w.WriteString("#op\tcsm\tdx\tdy\tdz\tperm\n"); err != nil {
		return nil, errDecorate(err, "NewPermWriter")
	}
	return P, nil
}

// CreatePermFile creates the file name and returns a PermWriter for it. The file is compressed
// with gzip or zstd if name ends in .gz or .zst.
func CreatePermFile(name string) (*PermWriter, error) {
	f, err := createFile(name)
	if err != nil {
		return nil, errDecorate(err, "CreatePermFile "+name)
	}
	P, err := NewPermWriter(f)
	if err != nil {
		f.Close()
		return nil, errDecorate(err, "CreatePermFile "+name)
	}
	return P, nil
}

// Trace writes one permutation. It is safe for concurrent use.
func (P *PermWriter) Trace(op Operation, perm []int, dir [3]float64, csm float64) error {
	P.mu.Lock()
	defer P.mu.Unlock()
	b := P.buf[:0]
	b = append(b, op.String()...)
	b = append(b, '\t')
	b = strconv.AppendFloat(b, csm, 'g', 10, 64)
	for _, d := range dir {
		b = append(b, '\t')
		b = strconv.AppendFloat(b, d, 'f', 6, 64)
	}
	b = append(b, '\t')
	for i, p := range perm {
		if i > 0 {
			b = append(b, ' ')
		}
		b = strconv.AppendInt(b, int64(p+1), 10)
	}
	b = append(b, '\n')
	P.buf = b
	if _, err := P.w.Write(b); err != nil {
		return errDecorate(err, "Trace")
	}
	P.lines++
	return nil
}

// Lines returns the number of permutations written so far.
func (P *PermWriter) Lines() int64 {
	P.mu.Lock()
	defer P.mu.Unlock()
	return P.lines
}

// Close flushes the PermWriter and, if the underlying writer is an io.Closer, closes it.
func (P *PermWriter) Close() error {
	P.mu.Lock()
	defer P.mu.Unlock()
	err := P.w.Flush()
	if P.closer != nil {
		if err2 := P.closer.Close(); err == nil {
			err = err2
		}
	}
	return errDecorate(err, "Close")
}
