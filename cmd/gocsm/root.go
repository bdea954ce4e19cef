/*
 * root.go, part of gocsm.
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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	csm "github.com/rmera/gocsm"
	"github.com/rmera/gocsm/csmplot"
	"github.com/rmera/gocsm/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// envPrefix is the prefix of the environment variables that override the settings,
// i.e. GOCSM_CPUS for --cpus.
const envPrefix = "GOCSM"

type app struct {
	v   *viper.Viper
	cmd *cobra.Command
}

// report is what gets written to the JSON output.
type report struct {
	RunID   string      `json:"run_id"`
	Input   string      `json:"input"`
	Version string      `json:"version"`
	Result  *csm.Result `json:"result"`
}

func newApp() *app {
	a := &app{v: viper.New()}
	a.cmd = &cobra.Command{
		Use:   "gocsm <operation> <input.xyz> [output.json]",
		Short: "Continuous symmetry measures of molecules",
		Long: `gocsm measures how far a molecule is from having a symmetry: 0 means the molecule
has the symmetry, 100 is the largest possible distance.

Operations: cN (rotation), sN (improper rotation, N even), cs (mirror), ci (inversion)
and ch (chirality). The input is an xyz file, which may be compressed with gzip (.gz)
or zstd (.zst). Settings can also be given in a YAML file (--config) or in GOCSM_*
environment variables.`,
		Version:       fmt.Sprintf("%s (commit %s)", version, commit),
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(args)
		},
	}
	f := a.cmd.Flags()
	f.String("config", "", "YAML file with settings")
	f.String("log-level", "warn", "log level (debug, info, warn, error)")
	f.String("log-format", "console", "log format (console, json)")
	f.Bool("json", false, "print the result as JSON instead of text")
	f.Bool("find-perm", false, "estimate the permutation from directions instead of enumerating all of them")
	f.String("use-perm", "", "file with the permutation to use, with atoms counted from 1")
	f.String("use-dir", "", "comma separated direction of the symmetry element, i.e. 0,0,1")
	f.Bool("use-mass", false, "weight the atoms with their masses")
	f.Bool("no-bonds", false, "don't assign bonds, so equivalence depends only on the element")
	f.Bool("remove-hy", false, "remove the hydrogen atoms before measuring")
	f.Bool("keep-center", false, "measure about the origin of the input coordinates instead of the center")
	f.String("normalization", "standard", "normalization of the reported normalized measure (standard, atom_number, fragment_mass_center, symmetric_fragment_mass_center)")
	f.Bool("detect-outliers", false, "leave the outliers out of the direction fit")
	f.Bool("no-orthogonal", false, "don't add the perpendicular directions to the fitted ones")
	f.Int("sn-max", 8, "largest SN order tried for chirality")
	f.Bool("no-limit", false, "never limit the exhaustive enumeration")
	f.String("limit-policy", "refuse", "what to do when an enumeration would take too long (refuse, truncate, proceed)")
	f.Duration("max-run-time", 24*time.Hour, "estimated enumeration time that triggers the limit policy")
	f.Duration("timeout", 0, "stop the search after this time (0 for no limit)")
	f.Int("cpus", 1, "goroutines used in the enumeration (0 for one per CPU)")
	f.Int("max-refine", csm.DefaultOptions().MaxRefine, "iterations of the direction/permutation refinement")
	f.Bool("print-local", false, "print the contribution of each atom")
	f.String("output-perms", "", "write every permutation evaluated to this file (.gz and .zst are compressed)")
	f.String("symmetric", "", "write the closest symmetric structure to this xyz file")
	f.String("plot", "", "plot the local measures to this file (png, svg or pdf)")
	f.String("metrics-file", "", "write Prometheus metrics to this textfile")
	return a
}

// loadConfig binds the flags, the environment and the configuration file, in that order of precedence.
func (a *app) loadConfig() error {
	v := a.v
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(a.cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	return nil
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	if format == "json" {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// options builds the options of the measure from the settings.
func (a *app) options(log *zap.Logger) (*csm.Options, error) {
	v := a.v
	o := csm.DefaultOptions()
	o.Log = log
	o.FindPerm = v.GetBool("find-perm")
	o.UseMass = v.GetBool("use-mass")
	o.DetectOutliers = v.GetBool("detect-outliers")
	o.KeepCenter = v.GetBool("keep-center")
	o.OrthogonalDirs = !v.GetBool("no-orthogonal")
	o.SnMax = v.GetInt("sn-max")
	o.LimitRun = !v.GetBool("no-limit")
	o.MaxRunTime = v.GetDuration("max-run-time")
	o.Timeout = v.GetDuration("timeout")
	o.MaxRefine = v.GetInt("max-refine")
	o.Cpus = v.GetInt("cpus")
	if o.Cpus <= 0 {
		o.Cpus = runtime.NumCPU()
	}
	var err error
	if o.LimitPolicy, err = csm.ParseLimitPolicy(v.GetString("limit-policy")); err != nil {
		return nil, err
	}
	if o.Normalization, err = csm.ParseNormalization(v.GetString("normalization")); err != nil {
		return nil, err
	}
	if d := v.GetString("use-dir"); d != "" {
		if o.Dir, err = parseDir(d); err != nil {
			return nil, err
		}
		o.UseDir = true
	}
	if p := v.GetString("use-perm"); p != "" {
		if o.Perm, err = readPerm(p); err != nil {
			return nil, err
		}
		o.UsePerm = true
	}
	return o, nil
}

func parseDir(s string) ([3]float64, error) {
	var dir [3]float64
	fields := strings.Split(s, ",")
	if len(fields) != 3 {
		return dir, fmt.Errorf("direction %q: three comma separated components expected", s)
	}
	for i, f := range fields {
		var err error
		if dir[i], err = strconv.ParseFloat(strings.TrimSpace(f), 64); err != nil {
			return dir, fmt.Errorf("direction %q: %w", s, err)
		}
	}
	return dir, nil
}

// readPerm reads a permutation, with the atoms counted from 1, from a file.
func readPerm(name string) ([]int, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("permutation file: %w", err)
	}
	fields := strings.Fields(string(data))
	perm := make([]int, len(fields))
	for i, f := range fields {
		p, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("permutation file %s: %w", name, err)
		}
		perm[i] = p - 1
	}
	return perm, nil
}

func (a *app) run(args []string) (err error) {
	v := a.v
	runID := uuid.NewString()
	log, err := newLogger(v.GetString("log-level"), v.GetString("log-format"))
	if err != nil {
		return err
	}
	log = log.With(zap.String("run", runID))
	defer log.Sync()

	op, err := csm.ParseOperation(args[0])
	if err != nil {
		return err
	}
	mol, err := csm.XYZFileRead(args[1], v.GetBool("no-bonds"))
	if err != nil {
		return err
	}
	if v.GetBool("remove-hy") {
		if mol, _, err = mol.WithoutHydrogens(); err != nil {
			return err
		}
	}
	log.Info("Structure read", zap.String("input", args[1]), zap.Int("atoms", mol.Len()), zap.Int("groups", len(mol.EquivalenceGroups())), zap.Int("fragments", len(csm.Fragments(mol))))
	o, err := a.options(log)
	if err != nil {
		return err
	}
	if name := v.GetString("output-perms"); name != "" {
		pw, perr := csm.CreatePermFile(name)
		if perr != nil {
			return perr
		}
		defer func() {
			if cerr := pw.Close(); err == nil {
				err = cerr
			}
		}()
		o.Tracer = pw
	}
	var col *metrics.Collector
	if v.GetString("metrics-file") != "" {
		col, err = metrics.New(metrics.Config{ConstLabels: map[string]string{"input": filepath.Base(args[1])}})
		if err != nil {
			return err
		}
		o.Observer = col
	}

	start := time.Now()
	res, err := csm.Measure(mol, op, o)
	if err != nil {
		return err
	}
	if col != nil {
		col.ObserveDuration(start)
		if err := col.WriteTextfile(v.GetString("metrics-file")); err != nil {
			return err
		}
	}

	rep := &report{RunID: runID, Input: args[1], Version: version, Result: res}
	out := a.cmd.OutOrStdout()
	if v.GetBool("json") {
		if err := writeJSON(out, rep); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, res.String())
		if v.GetBool("print-local") {
			fmt.Fprint(out, res.LocalString(mol))
		}
	}
	if len(args) > 2 {
		f, err := os.Create(args[2])
		if err != nil {
			return err
		}
		if err := writeJSON(f, rep); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	if name := v.GetString("symmetric"); name != "" {
		comment := fmt.Sprintf("%s symmetric structure, CSM %.6f", res.Op, res.CSM)
		if err := csm.XYZFileWrite(name, res.Symmetric, mol, comment); err != nil {
			return err
		}
	}
	if name := v.GetString("plot"); name != "" {
		if err := csmplot.SaveResult(res, mol, name); err != nil {
			return err
		}
	}
	log.Info("Done", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func writeJSON(w io.Writer, rep *report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
