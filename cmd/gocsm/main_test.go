/*
 * main_test.go, part of gocsm.
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
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	csm "github.com/rmera/gocsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const water = `3
water
O    0.000000    0.000000    0.120000
H    0.760000    0.000000   -0.470000
H   -0.760000    0.000000   -0.470000
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "water.xyz", water)
	out := filepath.Join(dir, "result.json")
	perms := filepath.Join(dir, "perms.txt.zst")
	prom := filepath.Join(dir, "gocsm.prom")
	sym := filepath.Join(dir, "sym.xyz")

	a := newApp()
	var stdout bytes.Buffer
	a.cmd.SetOut(&stdout)
	a.cmd.SetArgs([]string{"c2", input, out, "--print-local", "--output-perms", perms, "--metrics-file", prom, "--symmetric", sym})
	require.NoError(t, a.cmd.Execute())
	assert.Contains(t, stdout.String(), "C2 SYMMETRY")
	assert.Contains(t, stdout.String(), "LOCAL CSM")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var rep struct {
		RunID  string          `json:"run_id"`
		Result json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &rep))
	_, err = uuid.Parse(rep.RunID)
	assert.NoError(t, err)
	var res csm.Result
	require.NoError(t, json.Unmarshal(rep.Result, &res))
	assert.InDelta(t, 0, res.CSM, 1e-6)
	assert.Equal(t, []int{0, 2, 1}, res.Perm)
	assert.Equal(t, "C2", res.Op.String())

	for _, f := range []string{perms, prom, sym} {
		info, err := os.Stat(f)
		require.NoError(t, err, f)
		assert.Greater(t, info.Size(), int64(0), f)
	}
	symmol, err := csm.XYZFileRead(sym, true)
	require.NoError(t, err)
	assert.Equal(t, 3, symmol.Len())
}

func TestRunJSON(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "water.xyz", water)
	permfile := writeFile(t, dir, "perm.txt", "1 3 2\n")
	a := newApp()
	var stdout bytes.Buffer
	a.cmd.SetOut(&stdout)
	a.cmd.SetArgs([]string{"cs", input, "--json", "--use-perm", permfile})
	require.NoError(t, a.cmd.Execute())
	var rep report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	require.NotNil(t, rep.Result)
	assert.Equal(t, []int{0, 2, 1}, rep.Result.Perm)
	assert.EqualValues(t, 1, rep.Result.Permutations)
	//the yz plane exchanges the hydrogens.
	assert.InDelta(t, 0, rep.Result.CSM, 1e-6)

	a = newApp()
	stdout.Reset()
	a.cmd.SetOut(&stdout)
	a.cmd.SetArgs([]string{"c2", input, "--json", "--normalization", "atom_number", "--keep-center"})
	require.NoError(t, a.cmd.Execute())
	rep = report{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	require.NotNil(t, rep.Result)
	assert.Equal(t, csm.AtomNumber, rep.Result.Normalization)
	//the axis of this water already goes through the origin.
	assert.InDelta(t, 0, rep.Result.CSM, 1e-6)
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "water.xyz", water)
	for _, args := range [][]string{
		{"c2"},
		{"s3", input},
		{"c2", filepath.Join(dir, "missing.xyz")},
		{"c2", input, "--limit-policy", "maybe"},
		{"c2", input, "--use-dir", "1,0"},
		{"c2", input, "--log-level", "loud"},
		{"c2", input, "--normalization", "by_mass"},
	} {
		a := newApp()
		a.cmd.SetOut(&bytes.Buffer{})
		a.cmd.SetErr(&bytes.Buffer{})
		a.cmd.SetArgs(args)
		assert.Error(t, a.cmd.Execute(), strings.Join(args, " "))
	}
}

func TestConfigPrecedence(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "gocsm.yaml", "find-perm: true\nsn-max: 4\ncpus: 2\nuse-dir: \"0, 0, 1\"\n")
	t.Setenv("GOCSM_LIMIT_POLICY", "truncate")
	a := newApp()
	require.NoError(t, a.cmd.ParseFlags([]string{"--config", config, "--cpus", "3"}))
	require.NoError(t, a.loadConfig())
	o, err := a.options(zap.NewNop())
	require.NoError(t, err)
	assert.True(t, o.FindPerm)
	assert.Equal(t, 4, o.SnMax)
	assert.Equal(t, 3, o.Cpus)
	assert.Equal(t, csm.Truncate, o.LimitPolicy)
	assert.True(t, o.UseDir)
	assert.Equal(t, [3]float64{0, 0, 1}, o.Dir)
	assert.False(t, o.UsePerm)
}
