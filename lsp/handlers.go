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
	"fmt"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"
	"knotlang.dev/knot/compiler"
)

// handleRequest services a read-only client request against a snapshot.
// The language semantics here stay thin: answers come from the last good
// analysis database and the word index, and a request whose owner workspace
// is still compiling returns errRetry.
func handleRequest(snap *Snapshot, req *Request) (any, error) {
	switch req.Method {
	case "textDocument/hover":
		var params protocol.HoverParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		return hover(snap, params)
	case "textDocument/definition":
		var params protocol.DefinitionParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		return definition(snap, params)
	case "textDocument/references":
		var params protocol.ReferenceParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		return references(snap, params)
	case "textDocument/completion":
		var params protocol.CompletionParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		return completion(snap, params)
	case "workspace/symbol":
		var params protocol.WorkspaceSymbolParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, err
		}
		return workspaceSymbol(snap, params)
	default:
		return nil, fmt.Errorf("unhandled method %s", req.Method)
	}
}

// symbolAt resolves the symbol under the cursor from the owning database.
func symbolAt(snap *Snapshot, uri protocol.DocumentUri, pos protocol.Position) (compiler.Symbol, *AnalysisDatabase, error) {
	path, err := pathFromURI(string(uri))
	if err != nil {
		return compiler.Symbol{}, nil, err
	}
	db, pending := snap.ownerState(path)
	if db == nil {
		if pending {
			return compiler.Symbol{}, nil, errRetry
		}
		return compiler.Symbol{}, nil, nil
	}
	content, err := snap.VFS.ReadFile(path)
	if err != nil {
		return compiler.Symbol{}, nil, err
	}
	word := wordAt(string(content), pos.Line, pos.Character)
	if word == "" {
		return compiler.Symbol{}, db, nil
	}
	sym, ok := db.GS.Lookup(word)
	if !ok {
		return compiler.Symbol{}, db, nil
	}
	return sym, db, nil
}

func hover(snap *Snapshot, params protocol.HoverParams) (*protocol.Hover, error) {
	sym, _, err := symbolAt(snap, params.TextDocument.URI, params.Position)
	if err != nil || sym.Name == "" {
		return nil, err
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: fmt.Sprintf("```knot\n%s: %s = %s\n```", sym.Name, sym.Type, sym.Value),
		},
	}, nil
}

func definition(snap *Snapshot, params protocol.DefinitionParams) (any, error) {
	sym, _, err := symbolAt(snap, params.TextDocument.URI, params.Position)
	if err != nil || sym.Name == "" || sym.File == "" || sym.File == "<definition>" {
		return nil, err
	}
	return symbolLocation(sym), nil
}

func references(snap *Snapshot, params protocol.ReferenceParams) ([]protocol.Location, error) {
	path, err := pathFromURI(string(params.TextDocument.URI))
	if err != nil {
		return nil, err
	}
	content, err := snap.VFS.ReadFile(path)
	if err != nil {
		return nil, err
	}
	word := wordAt(string(content), params.Position.Line, params.Position.Character)
	if word == "" {
		return []protocol.Location{}, nil
	}
	return snap.WordIndex.Lookup(word), nil
}

func completion(snap *Snapshot, params protocol.CompletionParams) (any, error) {
	path, err := pathFromURI(string(params.TextDocument.URI))
	if err != nil {
		return nil, err
	}
	db, pending := snap.ownerState(path)
	if db == nil && pending {
		return nil, errRetry
	}

	kind := protocol.CompletionItemKindVariable
	var items []protocol.CompletionItem
	if db != nil {
		for _, name := range db.GS.Names() {
			sym, _ := db.GS.Lookup(name)
			detail := sym.Type
			items = append(items, protocol.CompletionItem{
				Label:  name,
				Kind:   &kind,
				Detail: &detail,
			})
		}
	}
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		seen[item.Label] = true
	}
	for _, word := range snap.WordIndex.Words() {
		if !seen[word] {
			items = append(items, protocol.CompletionItem{Label: word, Kind: &kind})
		}
	}
	return items, nil
}

func workspaceSymbol(snap *Snapshot, params protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	var symbols []protocol.SymbolInformation
	for _, st := range snap.Workspaces.States() {
		if st.Phase != PhaseReady {
			continue
		}
		for _, name := range st.DB.GS.Names() {
			if params.Query != "" && !strings.Contains(name, params.Query) {
				continue
			}
			sym, _ := st.DB.GS.Lookup(name)
			if sym.File == "" || sym.File == "<definition>" {
				continue
			}
			symbols = append(symbols, protocol.SymbolInformation{
				Name:     name,
				Kind:     protocol.SymbolKindVariable,
				Location: symbolLocation(sym),
			})
		}
	}
	return symbols, nil
}

// symbolLocation converts a symbol's 1-based source position to a protocol
// location.
func symbolLocation(sym compiler.Symbol) protocol.Location {
	line := uint32(0)
	if sym.Line > 0 {
		line = uint32(sym.Line - 1)
	}
	col := uint32(0)
	if sym.Col > 0 {
		col = uint32(sym.Col - 1)
	}
	return protocol.Location{
		URI: protocol.DocumentUri(uriFromPath(sym.File)),
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: col},
			End:   protocol.Position{Line: line, Character: col + uint32(len(sym.Name))},
		},
	}
}
