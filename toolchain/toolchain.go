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

// Package toolchain provides the workspace-discovery capability: it decides
// which compile units a path belongs to, from knot.work workspace files,
// knot.mod module files, or loose-file fallback.
package toolchain

import (
	"fmt"
	"os"
	"path/filepath"

	"knotlang.dev/knot/compiler"
)

const (
	// WorkFile is the workspace settings file name.
	WorkFile = "knot.work"
	// ModFile is the module settings file name.
	ModFile = "knot.mod"
	// SourceExt is the source file extension.
	SourceExt = ".k"
)

// Kind discriminates the variants of a workspace key.
type Kind int

const (
	// KindFolder is a workspace rooted at a module folder.
	KindFolder Kind = iota
	// KindWorkFile is a workspace defined by a knot.work file.
	KindWorkFile
	// KindLoose is a synthetic workspace for a single open file not covered
	// by any discovered workspace.
	KindLoose
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindWorkFile:
		return "workfile"
	case KindLoose:
		return "loose"
	default:
		return "unknown"
	}
}

// Key identifies a workspace. Equality is the key's canonical form: the kind
// plus the cleaned absolute path, so Key is usable directly as a map key.
type Key struct {
	Kind Kind
	Path string
}

// FolderKey returns the key for a module folder workspace.
func FolderKey(dir string) Key { return Key{Kind: KindFolder, Path: canonical(dir)} }

// WorkFileKey returns the key for a knot.work workspace.
func WorkFileKey(path string) Key { return Key{Kind: KindWorkFile, Path: canonical(path)} }

// LooseKey returns the synthetic key for a loose file.
func LooseKey(path string) Key { return Key{Kind: KindLoose, Path: canonical(path)} }

// String returns the key in kind:path form.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Kind, k.Path)
}

func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}

// Toolchain provides workspace discovery and import resolution for the
// language server and the command line tools.
type Toolchain interface {
	compiler.Toolchain

	// LookupCompileWorkspaces discovers the compile workspaces covering path,
	// which may be a source file or a folder. Discovery failures for
	// individual workspaces are non-fatal and returned in the second map.
	// A folder covered by no settings file yields one folder workspace for
	// its sources. With strict set, a source file covered by no settings
	// file yields a loose workspace instead of nothing.
	LookupCompileWorkspaces(path string, strict bool) (map[Key]compiler.UnitOptions, map[string]error)
}

// Default returns the standard toolchain.
func Default() Toolchain { return &defaultToolchain{} }

type defaultToolchain struct{}

// ResolveImport resolves an import written in fromFile: relative to the
// importing file's directory, with the source extension appended when
// missing. The target must exist.
func (t *defaultToolchain) ResolveImport(fromFile, importPath string) (string, error) {
	p := importPath
	if filepath.Ext(p) == "" {
		p += SourceExt
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(filepath.Dir(fromFile), p)
	}
	p = filepath.Clean(p)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("resolve import %q: %w", importPath, err)
	}
	return p, nil
}
