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
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"knotlang.dev/knot/compiler"
)

// fakeSender records everything the server sends to the client.
type fakeSender struct {
	mu            sync.Mutex
	notifications []sentNotification
	replies       []Response
}

type sentNotification struct {
	method string
	params any
}

func (f *fakeSender) Notify(method string, params any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, sentNotification{method: method, params: params})
	return nil
}

func (f *fakeSender) Reply(id jsonrpc2.ID, result any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, Response{ID: id, Result: result})
	return nil
}

func (f *fakeSender) ReplyWithError(id jsonrpc2.ID, respErr *jsonrpc2.Error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, Response{ID: id, Error: respErr})
	return nil
}

// diagnosticsFor returns the most recently published diagnostics for a file
// URI. The second return is false when nothing was published.
func (f *fakeSender) diagnosticsFor(uri string) ([]protocol.Diagnostic, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest []protocol.Diagnostic
	found := false
	for _, n := range f.notifications {
		if n.method != string(protocol.ServerTextDocumentPublishDiagnostics) {
			continue
		}
		params, ok := n.params.(*protocol.PublishDiagnosticsParams)
		if !ok || string(params.URI) != uri {
			continue
		}
		latest = params.Diagnostics
		found = true
	}
	return latest, found
}

// sentCount returns the total number of messages recorded.
func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notifications) + len(f.replies)
}

// lastReplyFor returns the recorded reply to a request id.
func (f *fakeSender) lastReplyFor(id jsonrpc2.ID) (Response, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.replies) - 1; i >= 0; i-- {
		if f.replies[i].ID == id {
			return f.replies[i], true
		}
	}
	return Response{}, false
}

// gatedCompiler wraps the real compiler behind a gate channel so tests can
// hold a workspace in Compiling.
type gatedCompiler struct {
	gate chan struct{}
	once sync.Once
	// failures is the number of next compiles that return an error
	// alongside diags; failNext sets both.
	mu       sync.Mutex
	failures int
	diags    []compiler.Diagnostic
}

func newGatedCompiler() *gatedCompiler {
	return &gatedCompiler{gate: make(chan struct{}, 64)}
}

// allow lets the next n compiles through the gate.
func (g *gatedCompiler) allow(n int) {
	for range n {
		g.gate <- struct{}{}
	}
}

func (g *gatedCompiler) failNext(n int, diags ...compiler.Diagnostic) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures = n
	g.diags = diags
}

func (g *gatedCompiler) compile(params compiler.Params, files []string, opts compiler.Options) (compiler.Diagnostics, *compiler.Program, *compiler.GlobalState, error) {
	<-g.gate
	g.mu.Lock()
	if g.failures > 0 {
		g.failures--
		diags := compiler.NewDiagnostics(g.diags...)
		g.mu.Unlock()
		return diags, nil, nil, os.ErrInvalid
	}
	g.mu.Unlock()
	return compiler.Compile(params, files, opts)
}

// release opens the gate for all pending and future compiles.
func (g *gatedCompiler) release() {
	g.once.Do(func() { close(g.gate) })
}

// newTestState builds a state over real discovery in dir and runs its event
// loop. The loop is stopped at test cleanup; jobs still running on the
// worker pool are not waited for.
func newTestState(t *testing.T, dir string, opts ...StateOption) (*LanguageServerState, *fakeSender) {
	t.Helper()
	sender := &fakeSender{}
	rootURI := protocol.DocumentUri("file://" + dir)
	params := &protocol.InitializeParams{
		WorkspaceFolders: []protocol.WorkspaceFolder{{URI: protocol.URI(rootURI), Name: filepath.Base(dir)}},
	}
	state := NewLanguageServerState(sender, params, opts...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = state.Run()
	}()
	t.Cleanup(func() {
		select {
		case state.events <- LSPEvent{Request: &Request{Method: "exit", Notif: true}}:
		case <-done:
		}
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("event loop did not stop")
		}
	})
	return state, sender
}

// notif builds a notification event with JSON-encoded params.
func notif(t *testing.T, method string, params any) Event {
	t.Helper()
	data, err := json.Marshal(params)
	require.NoError(t, err)
	return LSPEvent{Request: &Request{Method: method, Params: data, Notif: true}}
}

// request builds a request event with JSON-encoded params.
func request(t *testing.T, id uint64, method string, params any) Event {
	t.Helper()
	data, err := json.Marshal(params)
	require.NoError(t, err)
	return LSPEvent{Request: &Request{ID: jsonrpc2.ID{Num: id}, Method: method, Params: data}}
}

func didOpen(t *testing.T, path, text string) Event {
	return notif(t, "textDocument/didOpen", &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:     protocol.DocumentUri("file://" + path),
			Text:    text,
			Version: 1,
		},
	})
}

func didChange(t *testing.T, path, text string) Event {
	// A whole-document change: glsp models it as an event without a range.
	return notif(t, "textDocument/didChange", map[string]any{
		"textDocument":   map[string]any{"uri": "file://" + path, "version": 2},
		"contentChanges": []map[string]any{{"text": text}},
	})
}

func didClose(t *testing.T, path string) Event {
	return notif(t, "textDocument/didClose", &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: protocol.DocumentUri("file://" + path)},
	})
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// eventually polls cond until it reports true, failing the test with msg
// after five seconds.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 10*time.Millisecond, msg)
}
