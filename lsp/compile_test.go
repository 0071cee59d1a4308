/*
Copyright © 2025 The Knot Language Authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package lsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"knotlang.dev/knot/compiler"
	"knotlang.dev/knot/toolchain"
)

func TestBeginCompileTransitions(t *testing.T) {
	registry := newWorkspaceRegistry()
	w := toolchain.FolderKey(t.TempDir())

	// Absent workspaces enter as Init.
	registry.BeginCompile(w)
	st, ok := registry.Get(w)
	require.True(t, ok)
	assert.Equal(t, PhaseInit, st.Phase)
	assert.Nil(t, st.DB)

	// Ready keeps the old database visible while compiling.
	db := &AnalysisDatabase{Diags: compiler.NewDiagnostics()}
	registry.Install(w, db)
	registry.BeginCompile(w)
	st, _ = registry.Get(w)
	assert.Equal(t, PhaseCompiling, st.Phase)
	assert.Same(t, db, st.DB)

	// A concurrent trigger leaves Compiling untouched.
	registry.BeginCompile(w)
	st, _ = registry.Get(w)
	assert.Equal(t, PhaseCompiling, st.Phase)
	assert.Same(t, db, st.DB)

	// Install replaces, last writer wins.
	db2 := &AnalysisDatabase{Diags: compiler.NewDiagnostics()}
	registry.Install(w, db2)
	st, _ = registry.Get(w)
	assert.Equal(t, PhaseReady, st.Phase)
	assert.Same(t, db2, st.DB)
}

// A snapshot taken before a compile observes the installed Ready state after
// it: snapshots clone handles, not data.
func TestSnapshotMonotonicRead(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "knot.mod", "name: demo\n")
	writeFile(t, dir, "a.k", "replicas = 1\n")
	w1 := toolchain.FolderKey(dir)

	gated := newGatedCompiler()
	state, _ := newTestState(t, dir, WithCompiler(gated.compile))

	snap := state.Snapshot()
	if st, ok := snap.Workspaces.Get(w1); ok {
		assert.NotEqual(t, PhaseReady, st.Phase)
	}

	gated.release()
	eventually(t, func() bool {
		st, ok := snap.Workspaces.Get(w1)
		return ok && st.Phase == PhaseReady
	}, "snapshot never observed the Ready install")
}

// A failing compile removes the workspace from the registry; diagnostics
// emitted during the attempt are still delivered; a later open re-runs
// discovery and recovers.
func TestCompileFailureRemovesWorkspace(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "knot.mod", "name: demo\n")
	a := writeFile(t, dir, "a.k", "replicas = 1\n")
	w1 := toolchain.FolderKey(dir)

	gated := newGatedCompiler()
	gated.failNext(1, compiler.Diagnostic{
		File:     a,
		Line:     1,
		Severity: compiler.SeverityError,
		Message:  "entry not loadable",
	})
	state, sender := newTestState(t, dir, WithCompiler(gated.compile))
	gated.release()

	eventually(t, func() bool {
		diags, ok := sender.diagnosticsFor("file://" + a)
		return ok && len(diags) == 1
	}, "failure diagnostics were not delivered")
	eventually(t, func() bool {
		_, ok := state.workspaces.Get(w1)
		return !ok
	}, "failed workspace was not removed")

	// Opening the file re-runs discovery and the compile now succeeds.
	state.events <- didOpen(t, a, "replicas = 1\n")
	eventually(t, func() bool {
		st, ok := state.workspaces.Get(w1)
		return ok && st.Phase == PhaseReady
	}, "workspace never recovered after failure")
}

// Opening a file while its workspace is mid-compile defers classification
// until the compile settles, then resolves ownership.
func TestOpenDuringCompile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "knot.mod", "name: demo\n")
	writeFile(t, dir, "a.k", "replicas = 1\n")
	b := writeFile(t, dir, "b.k", "limit = 2\n")
	w1 := toolchain.FolderKey(dir)

	gated := newGatedCompiler()
	state, _ := newTestState(t, dir, WithCompiler(gated.compile))

	// The initial compile of W1 is still in flight when b.k opens.
	state.events <- didOpen(t, b, "limit = 2\n")
	gated.release()

	eventually(t, func() bool {
		id, ok := state.vfs.FileID(b)
		if !ok {
			return false
		}
		owners, open := state.openedFiles.Workspaces(id)
		if !open {
			return false
		}
		for _, owner := range owners {
			if owner == w1 {
				return true
			}
		}
		return false
	}, "deferred classification never resolved into W1")
}
