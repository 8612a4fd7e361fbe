// Package config implements configuration file change detection.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of filesystem events an editor
// produces when saving a file.
const reloadDebounce = 2 * time.Second

// Manager watches the configuration file for changes.
//
// Bridge state is immutable after startup — the packet path reads it
// without locks — so changes are not applied live. The manager reloads
// and validates the new file, then tells the operator whether a restart
// would pick it up cleanly or the edit is broken.
type Manager struct {
	configPath string
	watcher    *fsnotify.Watcher
	done       chan struct{}
}

// NewManager creates a manager for an already-loaded configuration file.
func NewManager(configPath string) *Manager {
	return &Manager{
		configPath: configPath,
		done:       make(chan struct{}),
	}
}

// Start begins watching the configuration file.
func (m *Manager) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	m.watcher = watcher

	if err := watcher.Add(m.configPath); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config file: %w", err)
	}

	slog.Info("watching config file", "path", m.configPath)

	go m.watchLoop()
	return nil
}

// Stop stops watching the configuration file.
func (m *Manager) Stop() {
	if m.watcher != nil {
		m.watcher.Close()
	}
	close(m.done)
}

// watchLoop monitors config file changes with debouncing.
func (m *Manager) watchLoop() {
	var timer *time.Timer

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDebounce, m.checkConfig)
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)

		case <-m.done:
			return
		}
	}
}

// checkConfig revalidates the on-disk configuration after a change.
func (m *Manager) checkConfig() {
	if _, err := LoadConfig(m.configPath); err != nil {
		slog.Error("config file changed but does not validate; keeping running configuration",
			"path", m.configPath, "error", err)
		return
	}
	slog.Warn("config file changed; restart mdns-bridge to apply it", "path", m.configPath)
}
