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
	"runtime"

	"github.com/sourcegraph/conc/pool"
	"github.com/sourcegraph/jsonrpc2"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"knotlang.dev/knot/compiler"
	"knotlang.dev/knot/lsp/wordindex"
	"knotlang.dev/knot/toolchain"
	"knotlang.dev/knot/vfs"
)

// Sender delivers messages to the client. Only the event loop calls it,
// except for logMessage which workers reach through the task bus.
type Sender interface {
	Notify(method string, params any) error
	Reply(id jsonrpc2.ID, result any) error
	ReplyWithError(id jsonrpc2.ID, respErr *jsonrpc2.Error) error
}

// CompileFunc is the compiler capability the state schedules onto workers.
// It must be safe to call concurrently with shared caches.
type CompileFunc func(params compiler.Params, files []string, opts compiler.Options) (compiler.Diagnostics, *compiler.Program, *compiler.GlobalState, error)

// LanguageServerState coordinates everything behind the language server: the
// virtual filesystem, the workspace registry, the layered caches, background
// compiles and the client connection.
type LanguageServerState struct {
	// sender delivers messages to the client.
	sender Sender
	// queue tracks in-flight incoming requests; event loop only.
	queue *requestQueue
	// pool bounds the number of concurrently running background jobs.
	pool *pool.Pool
	// tasks carries work from background jobs to the event loop.
	tasks chan Task
	// events carries decoded client messages into the event loop.
	events chan Event
	// shutdownRequested is set by the shutdown request; the loop still runs
	// until exit.
	shutdownRequested bool

	// vfs holds all file contents.
	vfs *vfs.VFS
	// workspaces holds the analysis state per workspace.
	workspaces *workspaceRegistry
	// openedFiles tracks which workspaces own each open file.
	openedFiles *openFileRegistry
	// temporaryWorkspace tracks loose files and their ephemeral workspaces.
	temporaryWorkspace *tempWorkspaceRegistry
	// requestRetry counts request retries for observability.
	requestRetry *retryRegistry
	// wordIndex holds the per-folder identifier indexes.
	wordIndex *wordIndexRegistry
	// workspaceConfig caches compile unit options per workspace.
	workspaceConfig *configCache

	moduleCache *compiler.ModuleCache
	scopeCache  *compiler.ScopeCache
	entryCache  *compiler.EntryCache
	gsCache     *compiler.GlobalStateCache

	// tool provides workspace discovery and import resolution.
	tool toolchain.Toolchain
	// compile is the compiler capability.
	compile CompileFunc

	// folders are the workspace folder paths from initialize.
	folders []string
	// watcher re-runs workspace init when settings files change.
	watcher *SettingsWatcher
}

// StateOption overrides a default of the language server state.
type StateOption func(*LanguageServerState)

// WithToolchain sets the workspace-discovery toolchain.
func WithToolchain(tool toolchain.Toolchain) StateOption {
	return func(s *LanguageServerState) { s.tool = tool }
}

// WithCompiler sets the compiler capability.
func WithCompiler(fn CompileFunc) StateOption {
	return func(s *LanguageServerState) { s.compile = fn }
}

// WithWorkers sets the background worker pool size.
func WithWorkers(n int) StateOption {
	return func(s *LanguageServerState) { s.pool = pool.New().WithMaxGoroutines(n) }
}

// NewLanguageServerState builds the server state from the client's
// initialize parameters, discovers the initial workspaces, and kicks off
// word-index builds for each workspace folder.
func NewLanguageServerState(sender Sender, params *protocol.InitializeParams, opts ...StateOption) *LanguageServerState {
	s := &LanguageServerState{
		sender:             sender,
		queue:              newRequestQueue(),
		pool:               pool.New().WithMaxGoroutines(max(2, runtime.NumCPU()-1)),
		tasks:              make(chan Task, 128),
		events:             make(chan Event, 128),
		vfs:                vfs.New(),
		workspaces:         newWorkspaceRegistry(),
		openedFiles:        newOpenFileRegistry(),
		temporaryWorkspace: newTempWorkspaceRegistry(),
		requestRetry:       newRetryRegistry(),
		wordIndex:          newWordIndexRegistry(),
		workspaceConfig:    newConfigCache(),
		moduleCache:        compiler.NewModuleCache(),
		scopeCache:         compiler.NewScopeCache(),
		entryCache:         compiler.NewEntryCache(),
		gsCache:            compiler.NewGlobalStateCache(),
		tool:               toolchain.Default(),
		compile:            compiler.Compile,
	}
	for _, opt := range opts {
		opt(s)
	}
	if params != nil {
		for _, folder := range params.WorkspaceFolders {
			if path, err := pathFromURI(string(folder.URI)); err == nil {
				s.folders = append(s.folders, path)
			}
		}
		if len(s.folders) == 0 && params.RootURI != nil {
			if path, err := pathFromURI(string(*params.RootURI)); err == nil {
				s.folders = append(s.folders, path)
			}
		}
	}

	s.initWorkspaces()
	s.buildWordIndexes(true)
	return s
}

// Events is the channel the transport feeds decoded client messages into.
// Closing it stops the event loop.
func (s *LanguageServerState) Events() chan<- Event { return s.events }

// submit runs a job on the worker pool, containing panics so a broken worker
// cannot take down the server. Submission itself never blocks the caller.
func (s *LanguageServerState) submit(job func()) {
	go s.pool.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				s.logMessage("worker panic: %v", r)
			}
		}()
		job()
	})
}

// sendTask posts a task to the event loop without ever blocking the loop
// thread itself.
func (s *LanguageServerState) sendTask(t Task) {
	select {
	case s.tasks <- t:
	default:
		go func() { s.tasks <- t }()
	}
}

// logMessage sends a window/logMessage notification through the task bus.
func (s *LanguageServerState) logMessage(format string, args ...any) {
	s.sendTask(NotifyTask{
		Method: string(protocol.ServerWindowLogMessage),
		Params: &protocol.LogMessageParams{
			Type:    protocol.MessageTypeInfo,
			Message: fmt.Sprintf(format, args...),
		},
	})
}

// initState resets the caches that would otherwise leak settings from a
// previous workspace generation.
func (s *LanguageServerState) initState() {
	s.moduleCache = compiler.NewModuleCache()
	s.scopeCache = compiler.NewScopeCache()
	s.entryCache = compiler.NewEntryCache()
	s.gsCache = compiler.NewGlobalStateCache()
	s.workspaceConfig = newConfigCache()
	s.temporaryWorkspace = newTempWorkspaceRegistry()
}

// initWorkspaces discovers the workspaces under every workspace folder and
// schedules their initial compiles.
func (s *LanguageServerState) initWorkspaces() {
	s.logMessage("init workspaces")
	s.initState()
	for _, folder := range s.folders {
		workspaces, failed := s.tool.LookupCompileWorkspaces(folder, true)
		for key, err := range failed {
			s.logMessage("workspace discovery failed: %s: %v", key, err)
		}
		for ws, unit := range workspaces {
			s.asyncCompile(ws, unit, 0, false)
		}
	}
}

// buildWordIndexes scans every workspace folder on the worker pool.
func (s *LanguageServerState) buildWordIndexes(prune bool) {
	for _, folder := range s.folders {
		s.submit(func() {
			index, err := wordindex.Build(folder, prune)
			if err != nil {
				s.logMessage("word index build failed: %v", err)
				return
			}
			s.wordIndex.Set(uriFromPath(folder), index)
		})
	}
}

// Snapshot clones the shared handles into a cheap, consistent read view for
// worker threads.
func (s *LanguageServerState) Snapshot() *Snapshot {
	return &Snapshot{
		VFS:                s.vfs,
		Workspaces:         s.workspaces,
		OpenedFiles:        s.openedFiles,
		TemporaryWorkspace: s.temporaryWorkspace,
		RequestRetry:       s.requestRetry,
		WordIndex:          s.wordIndex,
		WorkspaceConfig:    s.workspaceConfig,
		ModuleCache:        s.moduleCache,
		ScopeCache:         s.scopeCache,
		EntryCache:         s.entryCache,
		GSCache:            s.gsCache,
		Tool:               s.tool,
	}
}
