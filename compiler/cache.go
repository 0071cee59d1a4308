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

import (
	"hash/fnv"
	"sync"
	"time"
)

// The caches below are shared handles: the language server clones them into
// snapshots and concurrent compiles read and write them freely. Each cache
// owns its own synchronization so callers never coordinate around them.

// ModuleCache caches parsed modules keyed by path, invalidated by a content
// hash.
type ModuleCache struct {
	mu      sync.Mutex
	entries map[string]moduleEntry
}

type moduleEntry struct {
	hash  uint64
	mod   *Module
	diags []Diagnostic
}

// NewModuleCache returns an empty module cache.
func NewModuleCache() *ModuleCache {
	return &ModuleCache{entries: make(map[string]moduleEntry)}
}

func contentHash(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

// Parse returns the module for path/data, reusing the cached parse when the
// contents are unchanged.
func (c *ModuleCache) Parse(path string, data []byte) (*Module, []Diagnostic) {
	hash := contentHash(data)
	c.mu.Lock()
	if e, ok := c.entries[path]; ok && e.hash == hash {
		c.mu.Unlock()
		return e.mod, e.diags
	}
	c.mu.Unlock()

	mod, diags := parseModule(path, data)

	c.mu.Lock()
	c.entries[path] = moduleEntry{hash: hash, mod: mod, diags: diags}
	c.mu.Unlock()
	return mod, diags
}

// Len returns the number of cached modules.
func (c *ModuleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ScopeCache caches the resolved top-level names of each module.
type ScopeCache struct {
	mu     sync.RWMutex
	scopes map[string][]string
}

// NewScopeCache returns an empty scope cache.
func NewScopeCache() *ScopeCache {
	return &ScopeCache{scopes: make(map[string][]string)}
}

// Set records the resolved names for a module path.
func (c *ScopeCache) Set(path string, names []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopes[path] = names
}

// Get returns the resolved names for a module path.
func (c *ScopeCache) Get(path string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names, ok := c.scopes[path]
	return names, ok
}

// Entry records the compile unit an entry file belonged to and when it was
// recorded.
type Entry struct {
	Unit UnitOptions
	At   time.Time
}

// EntryCache caches compile units keyed by entry file path.
type EntryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewEntryCache returns an empty entry cache.
func NewEntryCache() *EntryCache {
	return &EntryCache{entries: make(map[string]Entry)}
}

// Store records the compile unit for an entry file.
func (c *EntryCache) Store(path string, unit UnitOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = Entry{Unit: unit, At: time.Now()}
}

// Get returns the cached compile unit for an entry file.
func (c *EntryCache) Get(path string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[path]
	return e, ok
}

// GlobalStateCache holds the most recently computed global state.
type GlobalStateCache struct {
	mu sync.Mutex
	gs *GlobalState
}

// NewGlobalStateCache returns an empty global state cache.
func NewGlobalStateCache() *GlobalStateCache {
	return &GlobalStateCache{}
}

// Set replaces the cached global state.
func (c *GlobalStateCache) Set(gs *GlobalState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gs = gs
}

// Get returns the cached global state, which may be nil.
func (c *GlobalStateCache) Get() *GlobalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gs
}
