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

package toolchain

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
	"knotlang.dev/knot/compiler"
)

// workSettings is the parsed form of a knot.work file.
type workSettings struct {
	// Members are module directories, relative to the work file.
	Members []string `yaml:"members"`
}

// modSettings is the parsed form of a knot.mod file.
type modSettings struct {
	Name        string            `yaml:"name"`
	Definitions map[string]string `yaml:"definitions"`
	Strict      bool              `yaml:"strict"`
}

// LookupCompileWorkspaces walks up from path looking for a knot.work, then a
// knot.mod; a knot.work yields one folder workspace per member, a knot.mod
// one workspace for its folder. A plain folder with sources, or (in strict
// mode) a file covered by nothing, yields a fallback workspace.
func (t *defaultToolchain) LookupCompileWorkspaces(path string, strict bool) (map[Key]compiler.UnitOptions, map[string]error) {
	found := make(map[Key]compiler.UnitOptions)
	failed := make(map[string]error)

	path = canonical(path)
	dir := path
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		dir = filepath.Dir(path)
	}

	if workPath, ok := findUp(dir, WorkFile); ok {
		t.workspacesFromWork(workPath, found, failed)
		if len(found) > 0 || !strict {
			return found, failedOrNil(failed)
		}
	}

	if modDir, ok := findUpDir(dir, ModFile); ok {
		t.workspaceFromMod(modDir, found, failed)
		return found, failedOrNil(failed)
	}

	// No settings file. A folder still compiles as one unit; a file gets a
	// loose workspace in strict mode.
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		files, err := sourcesUnder(path)
		if err != nil {
			failed[path] = err
		} else if len(files) > 0 {
			found[FolderKey(path)] = compiler.UnitOptions{Files: files}
		}
		return found, failedOrNil(failed)
	}
	if strict && filepath.Ext(path) == SourceExt {
		found[LooseKey(path)] = compiler.UnitOptions{Files: []string{path}}
	}
	return found, failedOrNil(failed)
}

func (t *defaultToolchain) workspacesFromWork(workPath string, found map[Key]compiler.UnitOptions, failed map[string]error) {
	data, err := os.ReadFile(workPath)
	if err != nil {
		failed[workPath] = err
		return
	}
	var work workSettings
	if err := yaml.Unmarshal(data, &work); err != nil {
		failed[workPath] = fmt.Errorf("parse %s: %w", WorkFile, err)
		return
	}
	base := filepath.Dir(workPath)
	for _, member := range work.Members {
		memberDir := member
		if !filepath.IsAbs(memberDir) {
			memberDir = filepath.Join(base, member)
		}
		if info, err := os.Stat(memberDir); err != nil || !info.IsDir() {
			failed[memberDir] = fmt.Errorf("workspace member %q is not a directory", member)
			continue
		}
		t.workspaceFromMod(memberDir, found, failed)
	}
}

func (t *defaultToolchain) workspaceFromMod(dir string, found map[Key]compiler.UnitOptions, failed map[string]error) {
	opts := compiler.Options{}
	modPath := filepath.Join(dir, ModFile)
	if data, err := os.ReadFile(modPath); err == nil {
		var mod modSettings
		if err := yaml.Unmarshal(data, &mod); err != nil {
			failed[modPath] = fmt.Errorf("parse %s: %w", ModFile, err)
			return
		}
		opts.Definitions = mod.Definitions
		opts.Strict = mod.Strict
	}
	files, err := sourcesUnder(dir)
	if err != nil {
		failed[dir] = err
		return
	}
	if len(files) == 0 {
		failed[dir] = fmt.Errorf("no %s sources under %s", SourceExt, dir)
		return
	}
	found[FolderKey(dir)] = compiler.UnitOptions{Files: files, Options: opts}
}

// sourcesUnder globs the source files under dir, in stable order.
func sourcesUnder(dir string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), "**/*"+SourceExt)
	if err != nil {
		return nil, fmt.Errorf("glob sources under %s: %w", dir, err)
	}
	sort.Strings(matches)
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		files = append(files, filepath.Join(dir, m))
	}
	return files, nil
}

// findUp searches dir and its ancestors for a file called name.
func findUp(dir, name string) (string, bool) {
	for {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// findUpDir is findUp returning the containing directory.
func findUpDir(dir, name string) (string, bool) {
	path, ok := findUp(dir, name)
	if !ok {
		return "", false
	}
	return filepath.Dir(path), true
}

func failedOrNil(failed map[string]error) map[string]error {
	if len(failed) == 0 {
		return nil
	}
	return failed
}
