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

// Package wordindex builds the per-folder identifier index the language
// server answers references and completion from. The index is built eagerly
// at initialization and rebuilt wholesale; it is not maintained
// incrementally.
package wordindex

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Index maps identifier strings to the locations where they occur, in file
// then position order.
type Index map[string][]protocol.Location

// Build scans the source files under root and indexes every identifier
// occurrence. With prune set, files that vanish between glob and read are
// skipped rather than reported.
func Build(root string, prune bool) (Index, error) {
	index := make(Index)
	matches, err := doublestar.Glob(os.DirFS(root), "**/*.k")
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	for _, m := range matches {
		path := filepath.Join(root, m)
		data, err := os.ReadFile(path)
		if err != nil {
			if prune {
				continue
			}
			return nil, fmt.Errorf("index %s: %w", path, err)
		}
		IndexFile(index, path, data)
	}
	return index, nil
}

// IndexFile adds every identifier occurrence in one file to the index.
func IndexFile(index Index, path string, data []byte) {
	uri := protocol.DocumentUri("file://" + path)
	line := uint32(0)
	col := uint32(0)
	start := uint32(0)
	var word []rune
	flush := func() {
		if len(word) == 0 {
			return
		}
		w := string(word)
		word = word[:0]
		if unicode.IsDigit(rune(w[0])) {
			return
		}
		index[w] = append(index[w], protocol.Location{
			URI: uri,
			Range: protocol.Range{
				Start: protocol.Position{Line: line, Character: start},
				End:   protocol.Position{Line: line, Character: col},
			},
		})
	}
	for _, r := range string(data) {
		switch {
		case r == '\n':
			flush()
			line++
			col = 0
			continue
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			if len(word) == 0 {
				start = col
			}
			word = append(word, r)
		default:
			flush()
		}
		col++
	}
	flush()
}

// Words returns the identifiers in the index, unordered.
func (i Index) Words() []string {
	words := make([]string, 0, len(i))
	for w := range i {
		words = append(words, w)
	}
	return words
}
