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
	"knotlang.dev/knot/toolchain"
	"knotlang.dev/knot/vfs"
)

// Opening a file under a discovered workspace records that workspace as the
// file's owner and leaves no temporary workspace behind.
func TestDidOpenInDiscoveredWorkspace(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "knot.mod", "name: demo\n")
	a := writeFile(t, dir, "a.k", "replicas = 1\n")
	w1 := toolchain.FolderKey(dir)

	state, sender := newTestState(t, dir)

	// Folder init discovered and compiled W1.
	eventually(t, func() bool {
		st, ok := state.workspaces.Get(w1)
		return ok && st.Phase == PhaseReady
	}, "initial compile never became Ready")

	state.events <- didOpen(t, a, "replicas = 1\n")

	eventually(t, func() bool {
		id, ok := state.vfs.FileID(a)
		if !ok {
			return false
		}
		owners, open := state.openedFiles.Workspaces(id)
		return open && len(owners) == 1 && owners[0] == w1
	}, "open file was not classified into W1")

	id, _ := state.vfs.FileID(a)
	_, present := state.temporaryWorkspace.Get(id)
	assert.False(t, present, "no temporary workspace expected for an owned file")

	// A clean compile publishes no markers for a clean file.
	if diags, ok := sender.diagnosticsFor("file://" + a); ok {
		assert.Empty(t, diags)
	}
}

// A loose file gets a temporary workspace, and closing it retires both the
// registry entry and the workspace.
func TestLooseFileLifecycle(t *testing.T) {
	dir := t.TempDir()
	x := writeFile(t, dir, "x.k", "x = 1\n")
	loose := toolchain.LooseKey(x)

	// No settings file anywhere: folder init finds the folder unit, so point
	// the server at an empty folder and open the loose file from outside it.
	empty := t.TempDir()
	state, _ := newTestState(t, empty)

	state.events <- didOpen(t, x, "x = 1\n")

	var id vfs.FileID
	eventually(t, func() bool {
		var ok bool
		id, ok = state.vfs.FileID(x)
		if !ok {
			return false
		}
		ws, present := state.temporaryWorkspace.Get(id)
		return present && ws != nil && *ws == loose
	}, "temporary workspace never resolved")

	st, ok := state.workspaces.Get(loose)
	require.True(t, ok)
	require.Equal(t, PhaseReady, st.Phase)

	state.events <- didClose(t, x)

	eventually(t, func() bool {
		_, present := state.temporaryWorkspace.Get(id)
		if present {
			return false
		}
		_, ok := state.workspaces.Get(loose)
		return !ok
	}, "temporary workspace was not retired on close")
}

// Rapid edits converge: the final Ready state reflects the last buffer.
func TestRapidEditsConverge(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "knot.mod", "name: demo\n")
	a := writeFile(t, dir, "a.k", "replicas = 0\n")
	w1 := toolchain.FolderKey(dir)

	// Gate the compiler so all five edit compiles observe the final buffer:
	// convergence is by last write, and the test wants it deterministic.
	gated := newGatedCompiler()
	state, sender := newTestState(t, dir, WithCompiler(gated.compile))
	gated.allow(1)
	eventually(t, func() bool {
		st, ok := state.workspaces.Get(w1)
		return ok && st.Phase == PhaseReady
	}, "initial compile never became Ready")

	state.events <- didOpen(t, a, "replicas = 0\n")
	for i := 1; i <= 4; i++ {
		state.events <- didChange(t, a, "replicas = "+string(rune('0'+i))+"\n")
	}
	// The fifth edit leaves a syntax error in the buffer.
	state.events <- didChange(t, a, "replicas = 5\nbroken !\n")
	gated.release()

	eventually(t, func() bool {
		st, ok := state.workspaces.Get(w1)
		if !ok || st.Phase != PhaseReady {
			return false
		}
		sym, ok := st.DB.GS.Lookup("replicas")
		return ok && sym.Value == "5"
	}, "final Ready state does not reflect the last edit")

	eventually(t, func() bool {
		diags, ok := sender.diagnosticsFor("file://" + a)
		return ok && len(diags) == 1
	}, "diagnostics never converged on the final buffer")
}

// Fixing the error cancels the stale markers with an empty publish.
func TestDiagnosticsCancelledOnFix(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "knot.mod", "name: demo\n")
	a := writeFile(t, dir, "a.k", "replicas = 1\n")
	w1 := toolchain.FolderKey(dir)

	state, sender := newTestState(t, dir)
	eventually(t, func() bool {
		st, ok := state.workspaces.Get(w1)
		return ok && st.Phase == PhaseReady
	}, "initial compile never became Ready")

	state.events <- didOpen(t, a, "replicas = 1\n")
	state.events <- didChange(t, a, "broken !\n")

	eventually(t, func() bool {
		diags, ok := sender.diagnosticsFor("file://" + a)
		return ok && len(diags) > 0
	}, "error was never published")

	state.events <- didChange(t, a, "replicas = 2\n")

	eventually(t, func() bool {
		diags, ok := sender.diagnosticsFor("file://" + a)
		return ok && len(diags) == 0
	}, "stale markers were never cancelled")
}

// Replaying the same classification task any number of times leaves the
// registries unchanged.
func TestClassificationIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "knot.mod", "name: demo\n")
	a := writeFile(t, dir, "a.k", "replicas = 1\n")
	w1 := toolchain.FolderKey(dir)

	state, _ := newTestState(t, dir)
	eventually(t, func() bool {
		st, ok := state.workspaces.Get(w1)
		return ok && st.Phase == PhaseReady
	}, "initial compile never became Ready")

	state.events <- didOpen(t, a, "replicas = 1\n")

	var id vfs.FileID
	eventually(t, func() bool {
		var ok bool
		id, ok = state.vfs.FileID(a)
		if !ok {
			return false
		}
		owners, open := state.openedFiles.Workspaces(id)
		return open && len(owners) == 1
	}, "open file was not classified")

	for range 3 {
		state.sendTask(ChangedFileTask{File: id, Kind: vfs.Create})
	}

	eventually(t, func() bool {
		owners, open := state.openedFiles.Workspaces(id)
		if !open || len(owners) != 1 || owners[0] != w1 {
			return false
		}
		_, present := state.temporaryWorkspace.Get(id)
		return !present
	}, "replayed classification changed the registries")
}
