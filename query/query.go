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

// Package query selects variables out of compiled program state by dotted
// path selector. It is the toolchain's query surface over the same compiler
// capability the language server uses.
package query

import (
	"fmt"
	"sort"
	"strings"

	"knotlang.dev/knot/compiler"
)

// Variable is one selected binding.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

// Select returns the variables in gs matched by selector, in name order.
//
// A selector is a dotted path: "a.b" matches the binding a.b and everything
// below it (a.b.c). The empty selector and "*" match every binding.
func Select(gs *compiler.GlobalState, selector string) ([]Variable, error) {
	if gs == nil {
		return nil, fmt.Errorf("query: no global state")
	}
	selector = strings.TrimSpace(selector)
	matches := func(string) bool { return true }
	if selector != "" && selector != "*" {
		if !validSelector(selector) {
			return nil, fmt.Errorf("query: invalid selector %q", selector)
		}
		prefix := selector + "."
		matches = func(name string) bool {
			return name == selector || strings.HasPrefix(name, prefix)
		}
	}

	var vars []Variable
	for _, name := range gs.Names() {
		if !matches(name) {
			continue
		}
		sym, _ := gs.Lookup(name)
		vars = append(vars, Variable{Name: sym.Name, Value: sym.Value, Type: sym.Type})
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars, nil
}

func validSelector(selector string) bool {
	for _, part := range strings.Split(selector, ".") {
		if part == "" {
			return false
		}
	}
	return true
}
