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

// Package lsp implements the knot language server: a framed JSON-RPC
// transport in front of an event loop that coordinates a virtual filesystem,
// per-workspace analysis databases, background compiles and diagnostic
// publication.
package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/pterm/pterm"
	"github.com/sourcegraph/jsonrpc2"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"knotlang.dev/knot/internal/logging"
	"knotlang.dev/knot/internal/version"
)

// TransportKind represents different LSP transport methods
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportTCP   TransportKind = "tcp"
)

// Server owns the client connection and hands decoded messages to the
// language server state's event loop. The state is created by the initialize
// handshake, mirroring the protocol's lifecycle.
type Server struct {
	transport TransportKind
	addr      string
	stateOpts []StateOption

	mu    sync.Mutex
	state *LanguageServerState
}

// ServerOption overrides a default of the server.
type ServerOption func(*Server)

// WithAddr sets the listen address for the TCP transport.
func WithAddr(addr string) ServerOption {
	return func(s *Server) { s.addr = addr }
}

// WithStateOptions passes options through to the language server state
// created at initialize time.
func WithStateOptions(opts ...StateOption) ServerOption {
	return func(s *Server) { s.stateOpts = append(s.stateOpts, opts...) }
}

// NewServer creates a knot language server for the given transport.
func NewServer(transport TransportKind, opts ...ServerOption) (*Server, error) {
	// All terminal output goes to stderr so the protocol stream on stdout
	// stays clean.
	pterm.SetDefaultOutput(os.Stderr)

	s := &Server{
		transport: transport,
		addr:      "localhost:7658",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run serves the configured transport until the client disconnects.
func (s *Server) Run() error {
	switch s.transport {
	case TransportStdio:
		return s.serveStream(stdrwc{})
	case TransportTCP:
		listener, err := net.Listen("tcp", s.addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", s.addr, err)
		}
		defer listener.Close()
		conn, err := listener.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		return s.serveStream(conn)
	default:
		return fmt.Errorf("unsupported transport kind: %s", s.transport)
	}
}

// serveStream runs one client connection to completion.
func (s *Server) serveStream(rwc io.ReadWriteCloser) error {
	ctx := context.Background()
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, s)
	<-conn.DisconnectNotify()
	return nil
}

// Handle is the jsonrpc2 dispatch: the initialize handshake builds the state,
// everything after feeds the event loop. jsonrpc2 invokes it sequentially
// from the connection's read loop, so client messages enter the loop in
// arrival order.
func (s *Server) Handle(ctx context.Context, conn *jsonrpc2.Conn, r *jsonrpc2.Request) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	if state == nil {
		if r.Method != "initialize" {
			if !r.Notif {
				_ = conn.ReplyWithError(ctx, r.ID, &jsonrpc2.Error{
					Code:    jsonrpc2.CodeInvalidRequest,
					Message: "server not initialized",
				})
			}
			return
		}
		s.initialize(ctx, conn, r)
		return
	}

	var params json.RawMessage
	if r.Params != nil {
		params = *r.Params
	}
	// Responses flow back through the state's sender, not from here.
	state.Events() <- LSPEvent{Request: &Request{
		ID:     r.ID,
		Method: r.Method,
		Params: params,
		Notif:  r.Notif,
	}}
}

// initialize builds the language server state from the client's parameters
// and answers with the server's capabilities.
func (s *Server) initialize(ctx context.Context, conn *jsonrpc2.Conn, r *jsonrpc2.Request) {
	var params protocol.InitializeParams
	if r.Params != nil {
		if err := json.Unmarshal(*r.Params, &params); err != nil {
			_ = conn.ReplyWithError(ctx, r.ID, &jsonrpc2.Error{
				Code:    jsonrpc2.CodeInvalidParams,
				Message: err.Error(),
			})
			return
		}
	}

	sender := &connSender{ctx: ctx, conn: conn}
	logging.SetNotifier(sender)

	state := NewLanguageServerState(sender, &params, s.stateOpts...)
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	go func() {
		if err := state.Run(); err != nil {
			logging.Error("event loop: %v", err)
		}
		state.stopSettingsWatcher()
		conn.Close()
	}()

	openClose := true
	changeKind := protocol.TextDocumentSyncKindIncremental
	serverVersion := version.GetVersion()
	result := protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: &openClose,
				Change:    &changeKind,
			},
			HoverProvider:           &protocol.HoverOptions{},
			DefinitionProvider:      &protocol.DefinitionOptions{},
			ReferencesProvider:      &protocol.ReferenceOptions{},
			CompletionProvider:      &protocol.CompletionOptions{TriggerCharacters: []string{"."}},
			WorkspaceSymbolProvider: &protocol.WorkspaceSymbolOptions{},
		},
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    "knot-lsp",
			Version: &serverVersion,
		},
	}
	if err := conn.Reply(ctx, r.ID, result); err != nil {
		logging.Error("initialize reply: %v", err)
	}
}

// connSender adapts the jsonrpc2 connection to the state's Sender and the
// logging package's Notifier.
type connSender struct {
	ctx  context.Context
	conn *jsonrpc2.Conn
}

func (c *connSender) Notify(method string, params any) error {
	return c.conn.Notify(c.ctx, method, params)
}

func (c *connSender) Reply(id jsonrpc2.ID, result any) error {
	return c.conn.Reply(c.ctx, id, result)
}

func (c *connSender) ReplyWithError(id jsonrpc2.ID, respErr *jsonrpc2.Error) error {
	return c.conn.ReplyWithError(c.ctx, id, respErr)
}

// stdrwc is the stdio transport: reads from stdin, writes to stdout.
type stdrwc struct{}

func (stdrwc) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdrwc) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func (stdrwc) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
