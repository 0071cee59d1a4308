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
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"knotlang.dev/knot/toolchain"
)

// settingsDebounce coalesces bursts of settings-file events into one
// workspace re-initialization.
const settingsDebounce = 100 * time.Millisecond

// SettingsWatcher watches workspace folders for changes to knot.work and
// knot.mod files. The editor does not reliably report settings edits, so
// discovery has to notice them itself.
type SettingsWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// startSettingsWatcher begins watching the workspace folders. Watch failures
// are logged, never fatal; the server just stops noticing settings edits.
func (s *LanguageServerState) startSettingsWatcher() {
	if s.watcher != nil || len(s.folders) == 0 {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logMessage("settings watcher unavailable: %v", err)
		return
	}
	for _, folder := range s.folders {
		if err := watcher.Add(folder); err != nil {
			s.logMessage("cannot watch %s: %v", folder, err)
		}
	}
	s.watcher = &SettingsWatcher{watcher: watcher, done: make(chan struct{})}
	go s.watchSettings(s.watcher)
}

// watchSettings forwards debounced settings-file changes to the event loop
// as SettingsChangedTask. It owns no state beyond the timer.
func (s *LanguageServerState) watchSettings(w *SettingsWatcher) {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isSettingsFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(settingsDebounce, func() {
				s.sendTask(SettingsChangedTask{})
			})
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			s.logMessage("settings watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

func isSettingsFile(path string) bool {
	base := filepath.Base(path)
	return base == toolchain.WorkFile || base == toolchain.ModFile
}

// stopSettingsWatcher shuts the watcher down. Safe to call when no watcher
// was started.
func (s *LanguageServerState) stopSettingsWatcher() {
	if s.watcher == nil {
		return
	}
	close(s.watcher.done)
	if err := s.watcher.watcher.Close(); err != nil {
		s.logMessage("settings watcher close: %v", err)
	}
	s.watcher = nil
}
