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
	"encoding/json"

	"github.com/sourcegraph/jsonrpc2"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"knotlang.dev/knot/internal/logging"
)

// onNotification dispatches a client notification. Lifecycle notifications
// mutate the VFS; the change pipeline runs when the event loop drains it
// afterwards.
func (s *LanguageServerState) onNotification(req *Request) {
	switch req.Method {
	case "initialized":
		s.startSettingsWatcher()
		s.logMessage("knot language server initialized")

	case "textDocument/didOpen":
		var params protocol.DidOpenTextDocumentParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.logMessage("didOpen: bad params: %v", err)
			return
		}
		path, err := pathFromURI(string(params.TextDocument.URI))
		if err != nil {
			s.logMessage("didOpen: %v", err)
			return
		}
		id := s.vfs.Set(path, []byte(params.TextDocument.Text))
		s.openedFiles.Open(id)

	case "textDocument/didChange":
		var params protocol.DidChangeTextDocumentParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.logMessage("didChange: bad params: %v", err)
			return
		}
		path, err := pathFromURI(string(params.TextDocument.URI))
		if err != nil {
			s.logMessage("didChange: %v", err)
			return
		}
		id, ok := s.vfs.FileID(path)
		if !ok {
			s.logMessage("didChange: %s is not open", path)
			return
		}
		current, _ := s.vfs.Contents(id)
		s.vfs.Set(path, applyContentChanges(current, params.ContentChanges))

	case "textDocument/didSave":
		// Buffer and disk agree now; the open-file owners already compiled
		// the buffer contents.

	case "textDocument/didClose":
		var params protocol.DidCloseTextDocumentParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.logMessage("didClose: bad params: %v", err)
			return
		}
		path, err := pathFromURI(string(params.TextDocument.URI))
		if err != nil {
			s.logMessage("didClose: %v", err)
			return
		}
		if id, ok := s.vfs.FileID(path); ok {
			s.openedFiles.Close(id)
		}
		s.vfs.Remove(path)

	case "$/cancelRequest":
		var params protocol.CancelParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return
		}
		s.queue.complete(cancelID(params.ID))

	case "$/setTrace":
		var params protocol.SetTraceParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return
		}
		logging.SetDebugEnabled(params.Value == protocol.TraceValueVerbose)
	}
}

// cancelID converts a protocol cancel id to the request queue's key form.
func cancelID(id protocol.IntegerOrString) jsonrpc2.ID {
	switch v := id.Value.(type) {
	case string:
		return jsonrpc2.ID{Str: v, IsString: true}
	case float64:
		return jsonrpc2.ID{Num: uint64(v)}
	case int32:
		return jsonrpc2.ID{Num: uint64(v)}
	default:
		return jsonrpc2.ID{}
	}
}

// applyContentChanges folds the client's content changes over the current
// buffer. Whole-document and ranged changes both occur; ranged changes are
// spliced by position.
func applyContentChanges(current []byte, changes []any) []byte {
	content := string(current)
	for _, change := range changes {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			content = c.Text
		case protocol.TextDocumentContentChangeEvent:
			if c.Range == nil {
				content = c.Text
				continue
			}
			start := positionToOffset(content, c.Range.Start)
			end := positionToOffset(content, c.Range.End)
			if start > end || end > len(content) {
				continue
			}
			content = content[:start] + c.Text + content[end:]
		}
	}
	return []byte(content)
}

// positionToOffset converts a 0-based protocol position to a byte offset.
func positionToOffset(content string, pos protocol.Position) int {
	line := uint32(0)
	char := uint32(0)
	for i := 0; i < len(content); i++ {
		if line == pos.Line && char == pos.Character {
			return i
		}
		if content[i] == '\n' {
			if line == pos.Line {
				// Position past end of line clamps to the newline.
				return i
			}
			line++
			char = 0
		} else {
			char++
		}
	}
	return len(content)
}
