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
	"time"

	"github.com/sourcegraph/jsonrpc2"
)

// requestQueue tracks in-flight incoming client requests: method name and
// arrival instant, keyed by request id. It is accessed only from the event
// loop thread, so it carries no lock. Outgoing server requests are correlated
// by the jsonrpc2 connection itself.
type requestQueue struct {
	incoming map[jsonrpc2.ID]requestEntry
}

type requestEntry struct {
	method   string
	received time.Time
}

func newRequestQueue() *requestQueue {
	return &requestQueue{incoming: make(map[jsonrpc2.ID]requestEntry)}
}

// register records an incoming request so it can be completed, cancelled and
// timed from the client's point of view.
func (q *requestQueue) register(req *Request, received time.Time) {
	q.incoming[req.ID] = requestEntry{method: req.Method, received: received}
}

// complete removes the request and returns its entry. The second return is
// false when the request was already completed or cancelled.
func (q *requestQueue) complete(id jsonrpc2.ID) (requestEntry, bool) {
	e, ok := q.incoming[id]
	if ok {
		delete(q.incoming, id)
	}
	return e, ok
}

// isCompleted reports whether the request is no longer in flight.
func (q *requestQueue) isCompleted(id jsonrpc2.ID) bool {
	_, ok := q.incoming[id]
	return !ok
}
