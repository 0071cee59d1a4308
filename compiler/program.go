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

package compiler

import "sort"

// Program is the resolved module tree produced by one compile.
type Program struct {
	// Root is the entry file the compile started from.
	Root string
	// Modules maps absolute file paths to their parsed modules.
	Modules map[string]*Module
}

// Module returns the module compiled from the given path, or nil.
func (p *Program) Module(path string) *Module {
	if p == nil {
		return nil
	}
	return p.Modules[path]
}

// Files returns the compiled file paths in sorted order.
func (p *Program) Files() []string {
	files := make([]string, 0, len(p.Modules))
	for f := range p.Modules {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Module is a single parsed source file.
type Module struct {
	Path        string
	Imports     []Import
	Assignments []Assignment
}

// Import is an import statement within a module. Path is the import path as
// written in the source; resolution happens per compile.
type Import struct {
	Path string
	Line int
}

// Assignment binds a (possibly dotted) name to a value.
type Assignment struct {
	Name  string
	Value string
	Type  string
	Line  int
	Col   int
}

// Symbol is a resolved top-level binding in the global semantic state.
type Symbol struct {
	Name  string
	Value string
	Type  string
	File  string
	Line  int
	Col   int
}

// GlobalState is the global semantic state of a compiled workspace: the final
// value of every binding after all modules are merged in compile order.
type GlobalState struct {
	Symbols map[string]Symbol
}

// NewGlobalState returns an empty global state.
func NewGlobalState() *GlobalState {
	return &GlobalState{Symbols: make(map[string]Symbol)}
}

// Lookup returns the symbol bound to name.
func (gs *GlobalState) Lookup(name string) (Symbol, bool) {
	if gs == nil {
		return Symbol{}, false
	}
	sym, ok := gs.Symbols[name]
	return sym, ok
}

// Names returns all bound names in sorted order.
func (gs *GlobalState) Names() []string {
	if gs == nil {
		return nil
	}
	names := make([]string, 0, len(gs.Symbols))
	for n := range gs.Symbols {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
