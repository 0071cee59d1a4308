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

// Package compiler exposes the compile capability the rest of the toolchain
// is built against: Compile turns a compile unit into a resolved Program,
// a GlobalState and an ordered diagnostic set, reading through the VFS
// overlay and the shared caches it is handed.
package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"knotlang.dev/knot/vfs"
)

// Options is the recognized build-option record of a compile unit.
type Options struct {
	// Definitions are externally supplied bindings, merged below source
	// assignments.
	Definitions map[string]string `yaml:"definitions"`
	// Strict promotes duplicate-binding warnings to errors.
	Strict bool `yaml:"strict"`
}

// UnitOptions pairs the ordered input files of a compile unit with its build
// options.
type UnitOptions struct {
	Files   []string
	Options Options
}

// Toolchain is the slice of the toolchain the compiler needs: import
// resolution. The full toolchain lives in the toolchain package.
type Toolchain interface {
	// ResolveImport resolves an import path written in fromFile to an
	// absolute file path.
	ResolveImport(fromFile, importPath string) (string, error)
}

// Params carries the shared handles a compile reads through. All fields other
// than Tool are optional; absent caches are simply not consulted.
type Params struct {
	// File is the changed file that triggered the compile, if any.
	File string
	// ModuleCache caches parses across compiles.
	ModuleCache *ModuleCache
	// ScopeCache caches resolved module scopes.
	ScopeCache *ScopeCache
	// VFS overlays editor buffers over the disk.
	VFS *vfs.VFS
	// EntryCache caches compile units per entry file.
	EntryCache *EntryCache
	// Tool resolves imports.
	Tool Toolchain
	// GSCache receives the computed global state.
	GSCache *GlobalStateCache
}

func (p Params) readFile(path string) ([]byte, error) {
	if p.VFS != nil {
		return p.VFS.ReadFile(path)
	}
	return os.ReadFile(path)
}

// Compile compiles a unit. It must be safe to call concurrently from worker
// threads sharing the caches in params.
//
// The diagnostic set is returned even when compilation fails; the error marks
// failures that leave no usable program (unreadable inputs, empty unit).
func Compile(params Params, files []string, opts Options) (Diagnostics, *Program, *GlobalState, error) {
	diags := NewDiagnostics()
	if len(files) == 0 {
		return diags, nil, nil, fmt.Errorf("compile: empty compile unit")
	}

	prog := &Program{Root: files[0], Modules: make(map[string]*Module)}

	queue := make([]string, 0, len(files))
	for _, f := range files {
		queue = append(queue, filepath.Clean(f))
	}

	// Imports are resolved per compile, never written back into the shared
	// module cache.
	imports := make(map[string][]string)

	for i := 0; i < len(queue); i++ {
		path := queue[i]
		if _, done := prog.Modules[path]; done {
			continue
		}
		data, err := params.readFile(path)
		if err != nil {
			return diags, nil, nil, fmt.Errorf("compile: read %s: %w", path, err)
		}

		var mod *Module
		var parseDiags []Diagnostic
		if params.ModuleCache != nil {
			mod, parseDiags = params.ModuleCache.Parse(path, data)
		} else {
			mod, parseDiags = parseModule(path, data)
		}
		diags.Add(parseDiags...)
		prog.Modules[path] = mod

		if params.Tool == nil {
			continue
		}
		for _, imp := range mod.Imports {
			resolved, err := params.Tool.ResolveImport(path, imp.Path)
			if err != nil {
				diags.Add(Diagnostic{
					File:     path,
					Line:     imp.Line,
					Severity: SeverityError,
					Code:     "E0404",
					Message:  fmt.Sprintf("cannot resolve import %q: %v", imp.Path, err),
				})
				continue
			}
			imports[path] = append(imports[path], resolved)
			queue = append(queue, resolved)
		}
	}

	gs := resolve(prog, mergeOrder(files, imports), opts, diags)

	if params.ScopeCache != nil {
		for path, mod := range prog.Modules {
			names := make([]string, 0, len(mod.Assignments))
			for _, a := range mod.Assignments {
				names = append(names, a.Name)
			}
			sort.Strings(names)
			params.ScopeCache.Set(path, names)
		}
	}
	if params.EntryCache != nil {
		params.EntryCache.Store(prog.Root, UnitOptions{Files: files, Options: opts})
	}
	if params.GSCache != nil {
		params.GSCache.Set(gs)
	}
	return diags, prog, gs, nil
}

// mergeOrder returns the modules dependencies-first: a module's imports merge
// into the global state before the module itself, so importers shadow what
// they import.
func mergeOrder(entries []string, imports map[string][]string) []string {
	var order []string
	visited := make(map[string]bool)
	var visit func(path string)
	visit = func(path string) {
		if visited[path] {
			return
		}
		visited[path] = true
		for _, dep := range imports[path] {
			visit(dep)
		}
		order = append(order, path)
	}
	for _, entry := range entries {
		visit(filepath.Clean(entry))
	}
	return order
}

// resolve merges modules in compile order into the global state. Later
// bindings shadow earlier ones; a rebinding inside the same unit is reported.
func resolve(prog *Program, order []string, opts Options, diags Diagnostics) *GlobalState {
	gs := NewGlobalState()
	for name, value := range opts.Definitions {
		gs.Symbols[name] = Symbol{Name: name, Value: value, Type: typeOf(value), File: "<definition>"}
	}
	for _, path := range order {
		mod := prog.Modules[path]
		if mod == nil {
			continue
		}
		for _, a := range mod.Assignments {
			if prev, ok := gs.Symbols[a.Name]; ok && prev.File != "<definition>" {
				sev := SeverityWarning
				if opts.Strict {
					sev = SeverityError
				}
				diags.Add(Diagnostic{
					File:     path,
					Line:     a.Line,
					Col:      a.Col,
					Severity: sev,
					Code:     "W0201",
					Message:  fmt.Sprintf("%s rebinds a value first bound in %s", a.Name, prev.File),
				})
			}
			gs.Symbols[a.Name] = Symbol{
				Name:  a.Name,
				Value: a.Value,
				Type:  a.Type,
				File:  path,
				Line:  a.Line,
				Col:   a.Col,
			}
		}
	}
	return gs
}

// parseModule parses one source file. The grammar is line-oriented: comments,
// import statements, and assignments.
func parseModule(path string, data []byte) (*Module, []Diagnostic) {
	mod := &Module{Path: path}
	var diags []Diagnostic
	lines := strings.Split(string(data), "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lineno := i + 1
		if rest, ok := strings.CutPrefix(line, "import "); ok {
			target := strings.TrimSpace(rest)
			unquoted, err := strconv.Unquote(target)
			if err != nil {
				diags = append(diags, Diagnostic{
					File:     path,
					Line:     lineno,
					Severity: SeverityError,
					Code:     "E0100",
					Message:  fmt.Sprintf("import path must be a quoted string, got %s", target),
				})
				continue
			}
			mod.Imports = append(mod.Imports, Import{Path: unquoted, Line: lineno})
			continue
		}
		name, value, ok := strings.Cut(line, "=")
		if !ok {
			diags = append(diags, Diagnostic{
				File:     path,
				Line:     lineno,
				Severity: SeverityError,
				Code:     "E0101",
				Message:  fmt.Sprintf("expected assignment or import, got %q", line),
			})
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if !validName(name) {
			diags = append(diags, Diagnostic{
				File:     path,
				Line:     lineno,
				Severity: SeverityError,
				Code:     "E0102",
				Message:  fmt.Sprintf("invalid binding name %q", name),
			})
			continue
		}
		col := strings.Index(raw, name) + 1
		mod.Assignments = append(mod.Assignments, Assignment{
			Name:  name,
			Value: value,
			Type:  typeOf(value),
			Line:  lineno,
			Col:   col,
		})
	}
	return mod, diags
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			alpha := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
			digit := r >= '0' && r <= '9'
			if !alpha && !(digit && i > 0) {
				return false
			}
		}
	}
	return true
}

func typeOf(value string) string {
	switch {
	case value == "true" || value == "false":
		return "bool"
	case len(value) >= 2 && value[0] == '"':
		return "str"
	default:
		if _, err := strconv.Atoi(value); err == nil {
			return "int"
		}
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			return "float"
		}
		return "str"
	}
}
