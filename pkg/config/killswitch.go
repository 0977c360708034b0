package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// KillSwitch is a live view of the kill_switch config value. When
// engaged, the governance gate forces human review on every run
// regardless of confidence. The value follows the config file: edits
// take effect without a restart.
type KillSwitch struct {
	engaged    atomic.Bool
	configFile string
	logger     *slog.Logger
}

// NewKillSwitch creates a kill switch seeded from cfg.
func NewKillSwitch(cfg *Config, logger *slog.Logger) *KillSwitch {
	if logger == nil {
		logger = slog.Default()
	}
	ks := &KillSwitch{configFile: cfg.ConfigFile, logger: logger}
	ks.engaged.Store(cfg.KillSwitch)
	return ks
}

// Engaged reports the current kill-switch state.
func (ks *KillSwitch) Engaged() bool {
	return ks.engaged.Load()
}

// Set forces the state. Used by tests and by deployments without a
// config file.
func (ks *KillSwitch) Set(engaged bool) {
	ks.engaged.Store(engaged)
}

// Watch re-reads the kill_switch key whenever the config file changes.
// Blocks until ctx is done; run it in its own goroutine. A no-op when
// no config file is configured.
func (ks *KillSwitch) Watch(ctx context.Context) error {
	if ks.configFile == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files on save
	// and a file-level watch goes stale after the rename.
	if err := watcher.Add(filepath.Dir(ks.configFile)); err != nil {
		return err
	}
	target := filepath.Clean(ks.configFile)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			ks.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ks.logger.Error("kill-switch watcher error", "error", err)
		}
	}
}

func (ks *KillSwitch) reload() {
	v, err := newViper(ks.configFile)
	if err != nil {
		ks.logger.Warn("kill-switch reload failed, keeping previous state",
			"file", ks.configFile, "error", err)
		return
	}
	engaged := v.GetBool("kill_switch")
	if engaged != ks.engaged.Load() {
		ks.logger.Warn("kill switch changed", "engaged", engaged)
	}
	ks.engaged.Store(engaged)
}
