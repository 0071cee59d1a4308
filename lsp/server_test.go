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
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// testClient is the editor side of a piped connection.
type testClient struct {
	conn *jsonrpc2.Conn

	mu            sync.Mutex
	notifications map[string][]json.RawMessage
}

func (c *testClient) Handle(ctx context.Context, conn *jsonrpc2.Conn, r *jsonrpc2.Request) {
	if !r.Notif {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var params json.RawMessage
	if r.Params != nil {
		params = *r.Params
	}
	c.notifications[r.Method] = append(c.notifications[r.Method], params)
}

func (c *testClient) received(method string) []json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]json.RawMessage(nil), c.notifications[method]...)
}

func startServer(t *testing.T) (*testClient, chan error) {
	t.Helper()
	serverSide, clientSide := net.Pipe()

	server, err := NewServer(TransportStdio)
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- server.serveStream(serverSide) }()

	client := &testClient{notifications: make(map[string][]json.RawMessage)}
	client.conn = jsonrpc2.NewConn(
		context.Background(),
		jsonrpc2.NewBufferedStream(clientSide, jsonrpc2.VSCodeObjectCodec{}),
		client,
	)
	t.Cleanup(func() { client.conn.Close() })
	return client, served
}

func TestServerLifecycle(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "x.k", "x = 1\n")

	client, served := startServer(t)
	ctx := context.Background()

	var result protocol.InitializeResult
	err := client.conn.Call(ctx, "initialize", protocol.InitializeParams{}, &result)
	require.NoError(t, err)
	require.NotNil(t, result.Capabilities.HoverProvider)
	require.NotNil(t, result.ServerInfo)
	assert.Equal(t, "knot-lsp", result.ServerInfo.Name)

	require.NoError(t, client.conn.Notify(ctx, "initialized", &protocol.InitializedParams{}))

	// Opening a broken loose file produces diagnostics for it.
	require.NoError(t, client.conn.Notify(ctx, "textDocument/didOpen", &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:     protocol.DocumentUri("file://" + a),
			Text:    "broken !\n",
			Version: 1,
		},
	}))

	require.Eventually(t, func() bool {
		for _, raw := range client.received(string(protocol.ServerTextDocumentPublishDiagnostics)) {
			var params protocol.PublishDiagnosticsParams
			if json.Unmarshal(raw, &params) == nil &&
				string(params.URI) == "file://"+a && len(params.Diagnostics) > 0 {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond, "diagnostics were never published")

	// Orderly shutdown: the connection closes after exit.
	var shutdownResult any
	require.NoError(t, client.conn.Call(ctx, "shutdown", nil, &shutdownResult))
	require.NoError(t, client.conn.Notify(ctx, "exit", nil))

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after exit")
	}
}
