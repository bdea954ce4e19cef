/*
 * plot.go, part of gocsm.
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

// Package csmplot draws the local (per-atom) symmetry measures of a result.
package csmplot

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	csm "github.com/rmera/gocsm"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Error is the error type of the package.
type Error struct {
	message string
	deco    []string
}

func (err Error) Error() string { return err.message }

// Decorate adds dec to the calling stack of the error and returns it.
func (err Error) Decorate(dec string) []string {
	if dec == "" {
		return err.deco
	}
	err.deco = append(err.deco, dec)
	return err.deco
}

// Critical returns true. Every error of csmplot means no plot was produced.
func (err Error) Critical() bool { return true }

// Labels returns, for each atom of mol, its number (from 1) and symbol.
func Labels(mol csm.Atomer) []string {
	ret := make([]string, mol.Len())
	for i := range ret {
		ret[i] = fmt.Sprintf("%d%s", i+1, mol.Atom(i).Symbol)
	}
	return ret
}

// LocalPlot returns a bar chart of the local measures, with one bar per atom.
// If labels is not nil, it must have one label per atom.
func LocalPlot(local []float64, labels []string, title string) (*plot.Plot, error) {
	if len(local) == 0 {
		return nil, Error{"csmplot: No local measures to plot", []string{"LocalPlot"}}
	}
	if labels != nil && len(labels) != len(local) {
		return nil, Error{fmt.Sprintf("csmplot: %d labels for %d atoms", len(labels), len(local)), []string{"LocalPlot"}}
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Atom"
	p.Y.Label.Text = "Local CSM"
	p.Y.Min = 0
	p.Add(plotter.NewGrid())
	bars, err := plotter.NewBarChart(plotter.Values(local), vg.Points(12))
	if err != nil {
		return nil, Error{err.Error(), []string{"plotter.NewBarChart", "LocalPlot"}}
	}
	bars.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	if labels == nil {
		labels = make([]string, len(local))
		for i := range labels {
			labels[i] = fmt.Sprint(i + 1)
		}
	}
	p.NominalX(labels...)
	return p, nil
}

// size returns a width that leaves room for all the bars.
func size(n int) (vg.Length, vg.Length) {
	w := vg.Length(n) * vg.Points(18)
	if w < 4*vg.Inch {
		w = 4 * vg.Inch
	}
	return w, 3 * vg.Inch
}

// SaveResult plots the local measures of res, labeled with the atoms in mol (which may be nil),
// to filename. The format is taken from the extension, e.g. png, svg or pdf.
func SaveResult(res *csm.Result, mol csm.Atomer, filename string) error {
	var labels []string
	if mol != nil {
		labels = Labels(mol)
	}
	p, err := LocalPlot(res.Local, labels, fmt.Sprintf("Local %s, CSM %.4f", res.Op, res.CSM))
	if err != nil {
		return err
	}
	w, h := size(len(res.Local))
	if err := p.Save(w, h, filename); err != nil {
		return Error{err.Error(), []string{"plot.Save", "SaveResult"}}
	}
	return nil
}

// WriteResult writes the plot of the local measures of res to out, in the given format
// ("png", "svg", "pdf"...).
func WriteResult(out io.Writer, res *csm.Result, mol csm.Atomer, format string) error {
	var labels []string
	if mol != nil {
		labels = Labels(mol)
	}
	p, err := LocalPlot(res.Local, labels, fmt.Sprintf("Local %s, CSM %.4f", res.Op, res.CSM))
	if err != nil {
		return err
	}
	w, h := size(len(res.Local))
	format = strings.TrimPrefix(strings.ToLower(format), ".")
	if format == "" {
		format = "png"
	}
	wt, err := p.WriterTo(w, h, format)
	if err != nil {
		return Error{err.Error(), []string{"plot.WriterTo", "WriteResult"}}
	}
	if _, err := wt.WriteTo(out); err != nil {
		return Error{err.Error(), []string{"WriteTo", "WriteResult"}}
	}
	return nil
}

// FormatFor returns the plot format for filename, from its extension.
func FormatFor(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}
