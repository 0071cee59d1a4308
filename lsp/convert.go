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
	"fmt"
	"net/url"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"
	"knotlang.dev/knot/compiler"
)

// pathFromURI converts a file:// URI to a filesystem path.
func pathFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse uri %q: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported uri scheme %q", u.Scheme)
	}
	path := u.Path
	if path == "" {
		return "", fmt.Errorf("uri %q has no path", uri)
	}
	return path, nil
}

// uriFromPath converts a filesystem path to a file:// URI.
func uriFromPath(path string) string {
	return "file://" + path
}

// diagToLSP converts one compiler diagnostic to its protocol form. Compiler
// positions are 1-based; the protocol is 0-based.
func diagToLSP(d compiler.Diagnostic) protocol.Diagnostic {
	line := uint32(0)
	if d.Line > 0 {
		line = uint32(d.Line - 1)
	}
	col := uint32(0)
	if d.Col > 0 {
		col = uint32(d.Col - 1)
	}
	severity := protocol.DiagnosticSeverityError
	switch d.Severity {
	case compiler.SeverityWarning:
		severity = protocol.DiagnosticSeverityWarning
	case compiler.SeverityInfo:
		severity = protocol.DiagnosticSeverityInformation
	case compiler.SeverityHint:
		severity = protocol.DiagnosticSeverityHint
	}
	source := "knot"
	diag := protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: col},
			End:   protocol.Position{Line: line, Character: col},
		},
		Severity: &severity,
		Source:   &source,
		Message:  d.Message,
	}
	if d.Code != "" {
		code := protocol.IntegerOrString{Value: d.Code}
		diag.Code = &code
	}
	return diag
}

// diagsByURI groups a diagnostic set by target file URI, preserving emission
// order within each file.
func diagsByURI(diags compiler.Diagnostics) map[string][]protocol.Diagnostic {
	grouped := make(map[string][]protocol.Diagnostic)
	if diags == nil {
		return grouped
	}
	for _, d := range diags.Values() {
		uri := uriFromPath(d.File)
		grouped[uri] = append(grouped[uri], diagToLSP(d))
	}
	return grouped
}

// wordAt returns the identifier covering the given 0-based position in
// content, or empty when the position is not on one.
func wordAt(content string, line, character uint32) string {
	lines := strings.Split(content, "\n")
	if int(line) >= len(lines) {
		return ""
	}
	text := lines[line]
	if int(character) > len(text) {
		return ""
	}
	isWord := func(b byte) bool {
		return b == '_' || b == '.' ||
			(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
	}
	start := int(character)
	for start > 0 && isWord(text[start-1]) {
		start--
	}
	end := int(character)
	for end < len(text) && isWord(text[end]) {
		end++
	}
	return strings.Trim(text[start:end], ".")
}
