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

package query_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"knotlang.dev/knot/compiler"
	"knotlang.dev/knot/query"
)

func state(t *testing.T, bindings map[string]string) *compiler.GlobalState {
	t.Helper()
	gs := compiler.NewGlobalState()
	for name, value := range bindings {
		gs.Symbols[name] = compiler.Symbol{Name: name, Value: value, Type: "str", File: "main.k"}
	}
	return gs
}

func TestSelectAll(t *testing.T) {
	gs := state(t, map[string]string{"a": "1", "b": "2"})

	for _, selector := range []string{"", "*"} {
		vars, err := query.Select(gs, selector)
		require.NoError(t, err)
		require.Len(t, vars, 2, "selector %q", selector)
	}
}

func TestSelectPathPrefix(t *testing.T) {
	gs := state(t, map[string]string{
		"app.name":     "demo",
		"app.replicas": "3",
		"appendix":     "x",
		"db.host":      "localhost",
	})

	vars, err := query.Select(gs, "app")
	require.NoError(t, err)
	want := []query.Variable{
		{Name: "app.name", Value: "demo", Type: "str"},
		{Name: "app.replicas", Value: "3", Type: "str"},
	}
	if diff := cmp.Diff(want, vars); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectExact(t *testing.T) {
	gs := state(t, map[string]string{"app.name": "demo", "app.name.full": "demo app"})

	vars, err := query.Select(gs, "app.name")
	require.NoError(t, err)
	require.Len(t, vars, 2)
}

func TestSelectInvalid(t *testing.T) {
	gs := state(t, map[string]string{"a": "1"})

	_, err := query.Select(gs, "a..b")
	require.Error(t, err)
	_, err = query.Select(nil, "a")
	require.Error(t, err)
}
