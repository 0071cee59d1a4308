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
	"time"

	"github.com/sourcegraph/jsonrpc2"
)

// errRetry signals that a handler needs a pending compile to finish before
// it can answer; the request is re-entered after the retry backoff.
var errRetry = fmt.Errorf("retry after compile")

// onRequest registers an incoming request and dispatches it: shutdown is
// answered synchronously, read-only requests run on workers against a
// snapshot and answer through the task bus.
func (s *LanguageServerState) onRequest(req *Request, received time.Time) {
	s.queue.register(req, received)

	if s.shutdownRequested {
		s.respond(Response{ID: req.ID, Error: &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInvalidRequest,
			Message: "server is shutting down",
		}})
		return
	}

	switch req.Method {
	case "shutdown":
		s.shutdownRequested = true
		s.respond(Response{ID: req.ID})

	case "textDocument/hover",
		"textDocument/definition",
		"textDocument/references",
		"textDocument/completion",
		"workspace/symbol":
		snap := s.Snapshot()
		s.submit(func() {
			result, err := handleRequest(snap, req)
			if err == errRetry {
				s.sendTask(RetryTask{Request: req})
				return
			}
			resp := Response{ID: req.ID, Result: result}
			if err != nil {
				resp.Result = nil
				resp.Error = &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
			}
			s.sendTask(ResponseTask{Response: resp})
		})

	default:
		s.respond(Response{ID: req.ID, Error: &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("method not supported: %s", req.Method),
		}})
	}
}
