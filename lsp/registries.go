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
	"sync"

	"github.com/sourcegraph/jsonrpc2"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"knotlang.dev/knot/compiler"
	"knotlang.dev/knot/lsp/wordindex"
	"knotlang.dev/knot/set"
	"knotlang.dev/knot/toolchain"
	"knotlang.dev/knot/vfs"
)

// Each shared map gets its own reader/writer lock; the hot path is concurrent
// reads during compiles, so there is deliberately no big lock. None of these
// registries may be held across a compiler call.

// DBPhase is the phase of a workspace's analysis database state machine.
type DBPhase int

const (
	// PhaseInit means no compile has completed yet.
	PhaseInit DBPhase = iota
	// PhaseCompiling means a compile is in flight; DB holds the previous
	// Ready database, if any, so readers still see a value.
	PhaseCompiling
	// PhaseReady means DB holds the newest successful compile.
	PhaseReady
)

// String returns the string representation of the phase.
func (p DBPhase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseCompiling:
		return "compiling"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// AnalysisDatabase is the product of one successful compile of one workspace.
type AnalysisDatabase struct {
	Prog  *compiler.Program
	GS    *compiler.GlobalState
	Diags compiler.Diagnostics
}

// DBState is one workspace's position in the Init / Compiling / Ready state
// machine.
type DBState struct {
	Phase DBPhase
	DB    *AnalysisDatabase
}

// workspaceRegistry maps workspace keys to their analysis database states.
type workspaceRegistry struct {
	mu sync.RWMutex
	m  map[toolchain.Key]DBState
}

func newWorkspaceRegistry() *workspaceRegistry {
	return &workspaceRegistry{m: make(map[toolchain.Key]DBState)}
}

func (r *workspaceRegistry) Get(k toolchain.Key) (DBState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.m[k]
	return st, ok
}

func (r *workspaceRegistry) Install(k toolchain.Key, db *AnalysisDatabase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[k] = DBState{Phase: PhaseReady, DB: db}
}

func (r *workspaceRegistry) Remove(k toolchain.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, k)
}

// BeginCompile transitions the workspace toward Compiling, keeping the old
// database visible for readers: Ready(db) becomes Compiling(db), Compiling
// and Init stay as they are, and an absent workspace enters as Init.
func (r *workspaceRegistry) BeginCompile(k toolchain.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.m[k]
	if !ok {
		r.m[k] = DBState{Phase: PhaseInit}
		return
	}
	if st.Phase == PhaseReady {
		r.m[k] = DBState{Phase: PhaseCompiling, DB: st.DB}
	}
}

// States returns a point-in-time copy of the registry.
func (r *workspaceRegistry) States() map[toolchain.Key]DBState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	states := make(map[toolchain.Key]DBState, len(r.m))
	for k, st := range r.m {
		states[k] = st
	}
	return states
}

// OpenFileInfo tracks which workspaces own an open file.
type OpenFileInfo struct {
	Workspaces set.Set[toolchain.Key]
}

// openFileRegistry tracks per-open-file state.
type openFileRegistry struct {
	mu sync.RWMutex
	m  map[vfs.FileID]*OpenFileInfo
}

func newOpenFileRegistry() *openFileRegistry {
	return &openFileRegistry{m: make(map[vfs.FileID]*OpenFileInfo)}
}

func (r *openFileRegistry) Open(id vfs.FileID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[id]; !ok {
		r.m[id] = &OpenFileInfo{Workspaces: set.NewSet[toolchain.Key]()}
	}
}

func (r *openFileRegistry) Close(id vfs.FileID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, id)
}

func (r *openFileRegistry) AddWorkspace(id vfs.FileID, k toolchain.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.m[id]
	if !ok {
		return
	}
	info.Workspaces.Add(k)
}

// Workspaces returns a copy of the owner set for an open file. The second
// return is false when the file is not open.
func (r *openFileRegistry) Workspaces(id vfs.FileID) ([]toolchain.Key, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.m[id]
	if !ok {
		return nil, false
	}
	return info.Workspaces.Members(), true
}

// tempWorkspaceRegistry tracks loose files: an entry with a nil value means
// classification is in progress; a resolved entry names the ephemeral
// workspace compiled for the file.
type tempWorkspaceRegistry struct {
	mu sync.RWMutex
	m  map[vfs.FileID]*toolchain.Key
}

func newTempWorkspaceRegistry() *tempWorkspaceRegistry {
	return &tempWorkspaceRegistry{m: make(map[vfs.FileID]*toolchain.Key)}
}

// SetPlaceholder marks classification as in progress.
func (r *tempWorkspaceRegistry) SetPlaceholder(id vfs.FileID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[id] = nil
}

// Resolve assigns the ephemeral workspace for a loose file.
func (r *tempWorkspaceRegistry) Resolve(id vfs.FileID, k toolchain.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[id] = &k
}

// Get returns the entry for id: (nil, true) while classification is in
// progress, (key, true) once resolved, (nil, false) when absent.
func (r *tempWorkspaceRegistry) Get(id vfs.FileID) (*toolchain.Key, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.m[id]
	return k, ok
}

// Remove drops the entry and returns the resolved workspace, if any.
func (r *tempWorkspaceRegistry) Remove(id vfs.FileID) (*toolchain.Key, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.m[id]
	delete(r.m, id)
	return k, ok
}

// RemoveIfUnresolved drops the placeholder when classification assigned
// nothing.
func (r *tempWorkspaceRegistry) RemoveIfUnresolved(id vfs.FileID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.m[id]; ok && k == nil {
		delete(r.m, id)
	}
}

// configCache caches the compile unit options per workspace. It is written
// strictly before the compile job for that workspace is enqueued, so readers
// may rely on it being present while the workspace is Compiling or Ready.
type configCache struct {
	mu sync.RWMutex
	m  map[toolchain.Key]compiler.UnitOptions
}

func newConfigCache() *configCache {
	return &configCache{m: make(map[toolchain.Key]compiler.UnitOptions)}
}

func (c *configCache) Set(k toolchain.Key, unit compiler.UnitOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[k] = unit
}

func (c *configCache) Get(k toolchain.Key) (compiler.UnitOptions, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	unit, ok := c.m[k]
	return unit, ok
}

// retryRegistry counts retries per request id, for observability only.
type retryRegistry struct {
	mu sync.RWMutex
	m  map[jsonrpc2.ID]int
}

func newRetryRegistry() *retryRegistry {
	return &retryRegistry{m: make(map[jsonrpc2.ID]int)}
}

func (r *retryRegistry) Bump(id jsonrpc2.ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[id]++
	return r.m[id]
}

func (r *retryRegistry) Count(id jsonrpc2.ID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.m[id]
}

// wordIndexRegistry maps workspace folder URIs to their word indexes.
type wordIndexRegistry struct {
	mu sync.RWMutex
	m  map[string]wordindex.Index
}

func newWordIndexRegistry() *wordIndexRegistry {
	return &wordIndexRegistry{m: make(map[string]wordindex.Index)}
}

func (r *wordIndexRegistry) Set(folderURI string, index wordindex.Index) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[folderURI] = index
}

// Lookup returns every indexed location of word across all folders.
func (r *wordIndexRegistry) Lookup(word string) []protocol.Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var locations []protocol.Location
	for _, index := range r.m {
		locations = append(locations, index[word]...)
	}
	return locations
}

// Words returns the union of indexed identifiers across all folders.
func (r *wordIndexRegistry) Words() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := set.NewSet[string]()
	for _, index := range r.m {
		seen.Add(index.Words()...)
	}
	return seen.Members()
}
