/*
 * compress.go, part of gocsm.
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
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression is the compression format of a file.
type Compression int

const (
	Plain Compression = iota
	Gzip
	Zstd
)

// CompressionFor returns the compression format implied by the extension of name:
// .gz for gzip, .zst or .zstd for zstd, plain otherwise.
func CompressionFor(name string) Compression {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	}
	return Plain
}

// zstd's Decoder doesn't implement io.ReadCloser, as its Close returns nothing.
type zstdql struct {
	*zstd.Decoder
}

func (z zstdql) Close() error {
	z.Decoder.Close()
	return nil
}

// NewDecompressor returns a reader that decompresses r with the format c.
func NewDecompressor(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case Gzip:
		g, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return g, nil
	case Zstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zstdql{d}, nil
	}
	return io.NopCloser(r), nil
}

// NewCompressor returns a writer that compresses, with the format c, what is
// written to it, and writes it to w. Close must be called to flush it.
func NewCompressor(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case Gzip:
		g, err := gzip.NewWriterLevel(w, gzip.DefaultCompression)
		if err != nil {
			return nil, err
		}
		return g, nil
	case Zstd:
		z, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		return z, nil
	}
	return nopWriteCloser{w}, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// file is a compressed stream on top of an open file. Closing it closes both.
type file struct {
	r io.ReadCloser
	w io.WriteCloser
	b *bufio.Writer
	f *os.File
}

func (F *file) Read(p []byte) (int, error) {
	return F.r.Read(p)
}

func (F *file) Write(p []byte) (int, error) {
	return F.w.Write(p)
}

func (F *file) Close() error {
	var err error
	if F.r != nil {
		err = F.r.Close()
	}
	if F.w != nil {
		err = F.w.Close()
		if F.b != nil {
			if err2 := F.b.Flush(); err == nil {
				err = err2
			}
		}
	}
	if err2 := F.f.Close(); err == nil {
		err = err2
	}
	return err
}

// openFile opens name for reading, decompressing it according to its extension.
func openFile(name string) (io.ReadCloser, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	r, err := NewDecompressor(bufio.NewReader(f), CompressionFor(name))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &file{r: r, f: f}, nil
}

// createFile creates name for writing, compressing according to its extension.
func createFile(name string) (io.WriteCloser, error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	b := bufio.NewWriter(f)
	w, err := NewCompressor(b, CompressionFor(name))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &file{w: w, b: b, f: f}, nil
}
