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
	"slices"

	protocol "github.com/tliron/glsp/protocol_3_16"
	"knotlang.dev/knot/compiler"
	"knotlang.dev/knot/toolchain"
	"knotlang.dev/knot/vfs"
)

// asyncCompile schedules a compile of one workspace on the worker pool.
//
// Multiple compiles of the same workspace may run in parallel; they serialize
// only through the registry write that installs the final Ready state, last
// writer wins. The unit options are cached before the job is enqueued so
// readers can rely on them while the workspace is Compiling or Ready.
func (s *LanguageServerState) asyncCompile(ws toolchain.Key, unit compiler.UnitOptions, changed vfs.FileID, temp bool) {
	filename := ""
	if changed.Valid() {
		if path, err := s.vfs.FilePath(changed); err == nil {
			filename = path
		}
	}

	s.workspaceConfig.Set(ws, unit)

	snap := s.Snapshot()
	files := slices.Clone(unit.Files)
	s.submit(func() {
		oldDiags := compiler.NewDiagnostics()
		if st, ok := snap.Workspaces.Get(ws); ok && st.DB != nil {
			oldDiags = st.DB.Diags
		}

		// Keep the previous database visible while this job runs.
		snap.Workspaces.BeginCompile(ws)

		diags, prog, gs, err := s.compile(compiler.Params{
			File:        filename,
			ModuleCache: snap.ModuleCache,
			ScopeCache:  snap.ScopeCache,
			VFS:         snap.VFS,
			EntryCache:  snap.EntryCache,
			Tool:        snap.Tool,
			GSCache:     snap.GSCache,
		}, files, unit.Options)

		s.publishDiagnosticsDiff(oldDiags, diags)

		if err != nil {
			s.logMessage("compile %s failed: %v", ws, err)
			snap.Workspaces.Remove(ws)
			if temp && changed.Valid() {
				snap.TemporaryWorkspace.Remove(changed)
			}
			return
		}
		snap.Workspaces.Install(ws, &AnalysisDatabase{Prog: prog, GS: gs, Diags: diags})
		if temp && changed.Valid() {
			snap.TemporaryWorkspace.Resolve(changed, ws)
		}
	})
}

// publishDiagnosticsDiff publishes the new diagnostics per file URL, and an
// empty set for every file that had diagnostics before but not now, so stale
// editor markers are cancelled.
func (s *LanguageServerState) publishDiagnosticsDiff(oldDiags, newDiags compiler.Diagnostics) {
	oldByURI := diagsByURI(oldDiags)
	newByURI := diagsByURI(newDiags)

	for uri := range oldByURI {
		if _, still := newByURI[uri]; !still {
			s.sendTask(NotifyTask{
				Method: string(protocol.ServerTextDocumentPublishDiagnostics),
				Params: &protocol.PublishDiagnosticsParams{
					URI:         protocol.DocumentUri(uri),
					Diagnostics: []protocol.Diagnostic{},
				},
			})
		}
	}
	for uri, diagnostics := range newByURI {
		s.sendTask(NotifyTask{
			Method: string(protocol.ServerTextDocumentPublishDiagnostics),
			Params: &protocol.PublishDiagnosticsParams{
				URI:         protocol.DocumentUri(uri),
				Diagnostics: diagnostics,
			},
		})
	}
}
