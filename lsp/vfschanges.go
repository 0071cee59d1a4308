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
	"knotlang.dev/knot/vfs"
)

// processVFSChanges atomically takes the pending change list from the VFS
// and classifies each entry. It returns true when anything changed.
func (s *LanguageServerState) processVFSChanges() bool {
	changes := s.vfs.TakeChanges()
	if len(changes) == 0 {
		return false
	}
	for _, change := range changes {
		s.processChangedFile(change.File, change.Kind)
	}
	return true
}

// processChangedFile routes one VFS change: Create classifies the file into
// owning workspaces (or spins up a temporary one), Modify schedules compiles
// for its owners, Delete retires a temporary workspace.
func (s *LanguageServerState) processChangedFile(id vfs.FileID, kind vfs.ChangeKind) {
	switch kind {
	case vfs.Create:
		s.classifyOpenedFile(id)
	case vfs.Modify:
		s.compileForModifiedFile(id)
	case vfs.Delete:
		s.retireClosedFile(id)
	}
}

// classifyOpenedFile decides which workspaces own a newly opened file. If a
// Ready workspace's program already contains it, that workspace is recorded
// as an owner. Workspaces still Compiling (or Init) cannot be decided yet, so
// classification is re-run later. A file owned by nothing gets workspace
// discovery and a temporary workspace.
func (s *LanguageServerState) classifyOpenedFile(id vfs.FileID) {
	path, err := s.vfs.FilePath(id)
	if err != nil {
		s.logMessage("file %d not found: %v", id, err)
		return
	}

	// Placeholder meaning classification is in progress.
	s.temporaryWorkspace.SetPlaceholder(id)

	contains := false
	for ws, st := range s.workspaces.States() {
		switch st.Phase {
		case PhaseReady:
			if st.DB.Prog.Module(path) != nil {
				s.openedFiles.AddWorkspace(id, ws)
				contains = true
			}
		case PhaseCompiling, PhaseInit:
			// Cannot decide while a compile is in flight: re-run
			// classification once it settles.
			s.sendTask(ChangedFileTask{File: id, Kind: vfs.Create})
		}
	}

	if contains {
		s.temporaryWorkspace.Remove(id)
		return
	}

	workspaces, failed := s.tool.LookupCompileWorkspaces(path, true)
	for key, err := range failed {
		s.logMessage("workspace discovery failed: %s: %v", key, err)
	}
	for ws, unit := range workspaces {
		s.asyncCompile(ws, unit, id, true)
	}
	// Discovery may have produced nothing; an unresolved placeholder means
	// the file is orphaned until the next event.
	s.temporaryWorkspace.RemoveIfUnresolved(id)
}

// compileForModifiedFile schedules compiles for every workspace owning a
// modified file, or for its temporary workspace. A file whose classification
// is still in flight is retried.
func (s *LanguageServerState) compileForModifiedFile(id vfs.FileID) {
	if _, err := s.vfs.FilePath(id); err != nil {
		s.logMessage("file %d not found: %v", id, err)
		return
	}
	owners, open := s.openedFiles.Workspaces(id)
	if !open {
		return
	}

	if len(owners) > 0 {
		for _, ws := range owners {
			unit, ok := s.workspaceConfig.Get(ws)
			if !ok {
				s.logMessage("no compile options cached for %s", ws)
				continue
			}
			s.asyncCompile(ws, unit, id, false)
		}
		return
	}

	temp, present := s.temporaryWorkspace.Get(id)
	if !present {
		return
	}
	if temp == nil {
		// Classification in flight: retry once the compile completes.
		s.sendTask(ChangedFileTask{File: id, Kind: vfs.Modify})
		return
	}
	unit, ok := s.workspaceConfig.Get(*temp)
	if !ok {
		s.logMessage("no compile options cached for %s", *temp)
		return
	}
	s.asyncCompile(*temp, unit, id, true)
}

// retireClosedFile removes a closed file's temporary workspace, if it had
// one. Persistent workspaces are never removed on close.
func (s *LanguageServerState) retireClosedFile(id vfs.FileID) {
	if ws, ok := s.temporaryWorkspace.Remove(id); ok && ws != nil {
		s.workspaces.Remove(*ws)
	}
}
