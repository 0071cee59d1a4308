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
	protocol "github.com/tliron/glsp/protocol_3_16"
	"knotlang.dev/knot/compiler"
)

func TestPathFromURI(t *testing.T) {
	path, err := pathFromURI("file:///ws/a.k")
	require.NoError(t, err)
	assert.Equal(t, "/ws/a.k", path)

	_, err = pathFromURI("http://example.com/a.k")
	require.Error(t, err)
}

func TestWordAt(t *testing.T) {
	content := "app.name = \"demo\"\nreplicas = 3\n"

	assert.Equal(t, "app.name", wordAt(content, 0, 2))
	assert.Equal(t, "app.name", wordAt(content, 0, 0))
	assert.Equal(t, "replicas", wordAt(content, 1, 8))
	assert.Equal(t, "", wordAt(content, 0, 9))
	assert.Equal(t, "", wordAt(content, 5, 0))
}

func TestDiagToLSPPositions(t *testing.T) {
	d := compiler.Diagnostic{
		File:     "/ws/a.k",
		Line:     3,
		Col:      5,
		Severity: compiler.SeverityWarning,
		Code:     "W0201",
		Message:  "rebound",
	}
	converted := diagToLSP(d)
	assert.Equal(t, uint32(2), converted.Range.Start.Line)
	assert.Equal(t, uint32(4), converted.Range.Start.Character)
	require.NotNil(t, converted.Severity)
	assert.Equal(t, protocol.DiagnosticSeverityWarning, *converted.Severity)
	require.NotNil(t, converted.Code)
}

func TestApplyContentChanges(t *testing.T) {
	current := []byte("replicas = 1\n")

	// Whole-document replacement, both shapes the decoder produces.
	updated := applyContentChanges(current, []any{
		protocol.TextDocumentContentChangeEventWhole{Text: "replicas = 2\n"},
	})
	assert.Equal(t, "replicas = 2\n", string(updated))

	updated = applyContentChanges(current, []any{
		protocol.TextDocumentContentChangeEvent{Text: "replicas = 3\n"},
	})
	assert.Equal(t, "replicas = 3\n", string(updated))

	// Ranged splice: replace the "1".
	updated = applyContentChanges(current, []any{
		protocol.TextDocumentContentChangeEvent{
			Range: &protocol.Range{
				Start: protocol.Position{Line: 0, Character: 11},
				End:   protocol.Position{Line: 0, Character: 12},
			},
			Text: "42",
		},
	})
	assert.Equal(t, "replicas = 42\n", string(updated))
}

func TestPositionToOffset(t *testing.T) {
	content := "ab\ncd\n"
	assert.Equal(t, 0, positionToOffset(content, protocol.Position{Line: 0, Character: 0}))
	assert.Equal(t, 4, positionToOffset(content, protocol.Position{Line: 1, Character: 1}))
	// Past end of line clamps to the newline.
	assert.Equal(t, 2, positionToOffset(content, protocol.Position{Line: 0, Character: 99}))
	// Past end of document clamps to the end.
	assert.Equal(t, 6, positionToOffset(content, protocol.Position{Line: 9, Character: 0}))
}
