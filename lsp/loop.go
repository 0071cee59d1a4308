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
)

// retryBackoff is the coarse scheduler for Retry and ChangedFile tasks: a
// deliberate sleep that decouples event-loop progress from worker completion
// without building a dependency tracker. Must not be replaced with a spin.
const retryBackoff = 20 * time.Millisecond

// Run drives the event loop to completion: it blocks multiplexing client
// messages and internal tasks until the client's exit notification arrives or
// the event channel closes.
func (s *LanguageServerState) Run() error {
	for {
		event, ok := s.nextEvent()
		if !ok {
			return nil
		}
		if lsp, ok := event.(LSPEvent); ok {
			if lsp.Request.Notif && lsp.Request.Method == "exit" {
				return nil
			}
		}
		if err := s.handleEvent(event); err != nil {
			return err
		}
	}
}

// nextEvent blocks until an event arrives from the client or the task bus.
func (s *LanguageServerState) nextEvent() (Event, bool) {
	select {
	case event, ok := <-s.events:
		return event, ok
	case task := <-s.tasks:
		return TaskEvent{Task: task}, true
	}
}

// handleEvent dispatches one event and then drains accumulated VFS changes,
// so any compile triggered by the event observes every file change that
// arrived with it.
func (s *LanguageServerState) handleEvent(event Event) error {
	start := time.Now()
	switch e := event.(type) {
	case TaskEvent:
		if err := s.handleTask(e.Task, start); err != nil {
			return err
		}
	case LSPEvent:
		if e.Request.Notif {
			s.onNotification(e.Request)
		} else {
			s.onRequest(e.Request, start)
		}
	}
	s.processVFSChanges()
	return nil
}

// handleTask handles a task sent by a background job.
func (s *LanguageServerState) handleTask(task Task, received time.Time) error {
	switch t := task.(type) {
	case NotifyTask:
		return s.sender.Notify(t.Method, t.Params)
	case ResponseTask:
		return s.respond(t.Response)
	case RetryTask:
		if s.queue.isCompleted(t.Request.ID) {
			return nil
		}
		time.Sleep(retryBackoff)
		s.requestRetry.Bump(t.Request.ID)
		s.onRequest(t.Request, received)
	case ChangedFileTask:
		time.Sleep(retryBackoff)
		s.processChangedFile(t.File, t.Kind)
	case SettingsChangedTask:
		s.initWorkspaces()
		s.buildWordIndexes(true)
	}
	return nil
}

// respond answers a client request, logging the time the request took from
// the client's point of view. Responses for completed or cancelled requests
// are discarded.
func (s *LanguageServerState) respond(resp Response) error {
	entry, ok := s.queue.complete(resp.ID)
	if !ok {
		return nil
	}
	var err error
	if resp.Error != nil {
		err = s.sender.ReplyWithError(resp.ID, resp.Error)
	} else {
		err = s.sender.Reply(resp.ID, resp.Result)
	}
	if err != nil {
		return err
	}
	s.logMessage("finished request %q in %d micros", entry.method, time.Since(entry.received).Microseconds())
	return nil
}
