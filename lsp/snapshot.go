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
	"knotlang.dev/knot/compiler"
	"knotlang.dev/knot/toolchain"
	"knotlang.dev/knot/vfs"
)

// Snapshot is a consistent read view over the server's shared state for
// worker threads. It clones handles, not data: every field is the same
// internally synchronized registry or cache the event loop uses, so taking a
// snapshot is cheap and a snapshot taken before a compile observes that
// compile's installed result afterwards.
type Snapshot struct {
	VFS                *vfs.VFS
	Workspaces         *workspaceRegistry
	OpenedFiles        *openFileRegistry
	TemporaryWorkspace *tempWorkspaceRegistry
	RequestRetry       *retryRegistry
	WordIndex          *wordIndexRegistry
	WorkspaceConfig    *configCache
	ModuleCache        *compiler.ModuleCache
	ScopeCache         *compiler.ScopeCache
	EntryCache         *compiler.EntryCache
	GSCache            *compiler.GlobalStateCache
	Tool               toolchain.Toolchain
}

// ownerState finds an analysis database able to answer for path. It prefers
// a Ready owner; a Compiling owner with a previous database still serves.
// The second return is true when the caller should retry after the pending
// compile settles.
func (snap *Snapshot) ownerState(path string) (*AnalysisDatabase, bool) {
	var fallback *AnalysisDatabase
	pending := false
	for _, st := range snap.Workspaces.States() {
		switch st.Phase {
		case PhaseReady:
			if st.DB.Prog.Module(path) != nil {
				return st.DB, false
			}
		case PhaseCompiling:
			pending = true
			if st.DB != nil && st.DB.Prog.Module(path) != nil {
				fallback = st.DB
			}
		case PhaseInit:
			pending = true
		}
	}
	if fallback != nil {
		return fallback, false
	}
	return nil, pending
}
