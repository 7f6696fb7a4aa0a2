package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/go-cmp/cmp"
)

// settleDelay coalesces the burst of events an editor produces for one save.
const settleDelay = 100 * time.Millisecond

// Watch reloads the config file at path after it changes and passes each valid
// revision to onChange. It blocks until ctx is cancelled.
//
// Only the mapping and log sections take effect without a restart. Edits to
// server, jira or refdata are still delivered, but Watch logs a warning for
// each of those sections so operators know the change is pending.
//
// The parent directory is watched rather than the file, so rename-based
// atomic saves keep being seen. Invalid revisions are logged and skipped.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	current, err := Load(path)
	if err != nil {
		return err
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: watch %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(target)); err != nil {
		return err
	}
	slog.Info("config: watching", "path", target)

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			settle = time.After(settleDelay)

		case <-settle:
			settle = nil
			next, err := Load(target)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config", "path", target, "err", err)
				continue
			}
			for _, section := range restartSections(current, next) {
				slog.Warn("config: change needs a restart", "section", section)
			}
			slog.Info("config: reloaded", "path", target,
				"cycle_time_statuses", next.Mapping.CycleTimeStatuses,
				"skip_malformed", next.Mapping.SkipMalformed,
				"log_level", next.Log.Level)
			current = next
			onChange(next)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}

// restartSections names the sections that differ between old and next and
// are only read at startup.
func restartSections(old, next *Config) []string {
	var out []string
	if !cmp.Equal(old.Server, next.Server) {
		out = append(out, "server")
	}
	if !cmp.Equal(old.Jira, next.Jira) {
		out = append(out, "jira")
	}
	if !cmp.Equal(old.Refdata, next.Refdata) {
		out = append(out, "refdata")
	}
	return out
}
