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

// Package gateway exposes toolchain services to non-editor clients over a
// length-prefixed JSON bytestream. It is a second, fully independent client
// surface: it shares no mutable state with the language server path and runs
// a fresh compile per request.
package gateway

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"knotlang.dev/knot/compiler"
	"knotlang.dev/knot/internal/logging"
	"knotlang.dev/knot/internal/version"
	"knotlang.dev/knot/query"
	"knotlang.dev/knot/toolchain"
)

// maxFrame bounds a single request frame.
const maxFrame = 4 << 20

// Request is one gateway call.
type Request struct {
	ID      uint64          `json:"id"`
	Service string          `json:"service"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// Response answers one gateway call.
type Response struct {
	ID     uint64          `json:"id"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// QueryArgs are the arguments of the Query service.
type QueryArgs struct {
	File     string `json:"file"`
	Selector string `json:"selector"`
}

// Server serves gateway connections.
type Server struct {
	tool toolchain.Toolchain

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a gateway server.
func NewServer() *Server {
	return &Server{tool: toolchain.Default()}
}

// ListenAndServe listens on addr and serves connections until Close.
func (s *Server) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway: listen %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on the listener, one goroutine per connection.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("gateway: accept: %w", err)
		}
		go s.serveConn(conn)
	}
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) serveConn(conn net.Conn) {
	session := uuid.NewString()
	logging.Debug("gateway session %s: %s connected", session, conn.RemoteAddr())
	defer func() {
		conn.Close()
		logging.Debug("gateway session %s: closed", session)
	}()

	for {
		frame, err := readFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logging.Debug("gateway session %s: read: %v", session, err)
			}
			return
		}
		var req Request
		resp := Response{}
		if err := json.Unmarshal(frame, &req); err != nil {
			resp.Error = fmt.Sprintf("bad request: %v", err)
		} else {
			resp = s.dispatch(req)
		}
		if err := writeFrame(conn, resp); err != nil {
			logging.Debug("gateway session %s: write: %v", session, err)
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{ID: req.ID}
	result, err := s.call(req)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	data, err := json.Marshal(result)
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.Result = data
	return resp
}

func (s *Server) call(req Request) (any, error) {
	switch req.Service {
	case "Ping":
		return "Pong", nil
	case "Version":
		return version.GetBuildInfo(), nil
	case "Query":
		var args QueryArgs
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, fmt.Errorf("bad Query args: %w", err)
		}
		return s.runQuery(args)
	default:
		return nil, fmt.Errorf("unknown service %q", req.Service)
	}
}

// runQuery compiles the file's workspace from disk and selects variables
// from the resulting global state.
func (s *Server) runQuery(args QueryArgs) ([]query.Variable, error) {
	workspaces, _ := s.tool.LookupCompileWorkspaces(args.File, true)
	for _, unit := range workspaces {
		_, _, gs, err := compiler.Compile(compiler.Params{Tool: s.tool}, unit.Files, unit.Options)
		if err != nil {
			return nil, err
		}
		return query.Select(gs, args.Selector)
	}
	return nil, fmt.Errorf("no workspace found for %s", args.File)
}

// readFrame reads one length-prefixed frame: a 4-byte big-endian length
// followed by that many bytes of JSON.
func readFrame(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length == 0 || length > maxFrame {
		return nil, fmt.Errorf("frame length %d out of range", length)
	}
	frame := make([]byte, length)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// writeFrame writes one length-prefixed JSON frame.
func writeFrame(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
