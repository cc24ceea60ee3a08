package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/team-kosa-skynet/Morningstar-back-sub001/internal/observability"
)

const reloadDebounce = 300 * time.Millisecond

// Watch reloads the bank file whenever it changes until ctx is done. A file
// that fails to parse is logged and the previous banks stay in place.
func (c *Catalog) Watch(ctx context.Context, path string) error {
	log := observability.LoggerFromContext(ctx).With("question_bank", path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("question bank watcher: %w", err)
	}
	defer watcher.Close()

	// editors replace files by rename, so watch the directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	target := filepath.Clean(path)

	var (
		reloadTimer *time.Timer
		reloadCh    <-chan time.Time
	)
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if reloadTimer == nil {
				reloadTimer = time.NewTimer(reloadDebounce)
			} else {
				if !reloadTimer.Stop() {
					select {
					case <-reloadTimer.C:
					default:
					}
				}
				reloadTimer.Reset(reloadDebounce)
			}
			reloadCh = reloadTimer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("question bank watcher error", "error", err)
		case <-reloadCh:
			reloadCh = nil
			banks, err := LoadFile(path)
			if err != nil {
				log.Warn("question bank reload failed", "error", err)
				continue
			}
			c.Replace(banks)
			log.Info("question bank reloaded", "roles", len(banks))
		}
	}
}
