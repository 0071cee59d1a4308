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

	"github.com/sourcegraph/jsonrpc2"
	"knotlang.dev/knot/vfs"
)

// Request is a decoded incoming client message: a request when Notif is
// false, a notification otherwise.
type Request struct {
	ID     jsonrpc2.ID
	Method string
	Params json.RawMessage
	Notif  bool
}

// Response is an answer to a client request, routed through the task bus so
// only the event loop talks to the connection.
type Response struct {
	ID     jsonrpc2.ID
	Result any
	Error  *jsonrpc2.Error
}

// A Task is sent from background workers to the event loop for processing.
// This keeps resources like the client connection synchronized on the loop.
type Task interface{ task() }

// ResponseTask asks the loop to answer a client request.
type ResponseTask struct{ Response Response }

// NotifyTask asks the loop to forward a server notification to the client.
type NotifyTask struct {
	Method string
	Params any
}

// RetryTask re-enters request handling after a short backoff; used when a
// handler needs a compile to finish before it can answer.
type RetryTask struct{ Request *Request }

// ChangedFileTask re-runs file classification after a short backoff; used to
// defer handling until an in-progress compile settles.
type ChangedFileTask struct {
	File vfs.FileID
	Kind vfs.ChangeKind
}

// SettingsChangedTask re-runs workspace initialization after a settings file
// (knot.work, knot.mod) changed on disk.
type SettingsChangedTask struct{}

func (ResponseTask) task()        {}
func (NotifyTask) task()          {}
func (RetryTask) task()           {}
func (ChangedFileTask) task()     {}
func (SettingsChangedTask) task() {}

// An Event is one unit of work for the event loop: either a client message
// or an internal task.
type Event interface{ event() }

// LSPEvent wraps an incoming client message.
type LSPEvent struct{ Request *Request }

// TaskEvent wraps an internal task.
type TaskEvent struct{ Task Task }

func (LSPEvent) event()  {}
func (TaskEvent) event() {}
