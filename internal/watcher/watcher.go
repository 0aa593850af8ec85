// Package watcher implements the filesystem watch daemon (component N): a
// long-running process that keeps a project's cached artifact current by
// re-running the indexer whenever the tree changes, debounced so a burst of
// saves collapses into a single rebuild.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rtk-mem/rtk-mem/internal/config"
	"github.com/rtk-mem/rtk-mem/internal/indexer"
	"github.com/rtk-mem/rtk-mem/internal/store"
	"github.com/rtk-mem/rtk-mem/internal/walker"
)

// RebuildFunc is invoked after the initial scan and after every debounced
// batch of filesystem events, with the resulting build state.
type RebuildFunc func(indexer.BuildState)

// Daemon watches a project root and keeps its cached artifact current.
type Daemon struct {
	root string
	cfg  *config.Config
	st   *store.Store
	fsw  *fsnotify.Watcher
	done chan struct{}

	onRebuild RebuildFunc
}

// NewDaemon creates a watch daemon rooted at root. onRebuild may be nil.
func NewDaemon(root string, cfg *config.Config, st *store.Store, onRebuild RebuildFunc) (*Daemon, error) {
	canonical, err := indexer.CanonicalProjectRoot(root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: create fsnotify watcher: %w", err)
	}
	return &Daemon{root: canonical, cfg: cfg, st: st, fsw: fsw, done: make(chan struct{}), onRebuild: onRebuild}, nil
}

// Run performs an initial snapshot rebuild, starts watching the tree, and
// blocks until ctx is canceled or the fsnotify channels are closed out from
// under it. It runs a single goroutine-free event loop on the calling
// goroutine; callers that want it in the background should run Run in a
// goroutine of their own.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.fsw.Close()

	if err := d.rebuild(ctx); err != nil {
		return fmt.Errorf("watcher: initial scan: %w", err)
	}
	if err := d.addWatchDirs(); err != nil {
		return fmt.Errorf("watcher: add watch dirs: %w", err)
	}

	debounce := time.Duration(d.cfg.Watch.DebounceMs) * time.Millisecond
	if debounce < time.Second {
		debounce = time.Second
	}

	var timer *time.Timer
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-d.done:
			return nil

		case event, ok := <-d.fsw.Events:
			if !ok {
				return errors.New("watcher: fsnotify events channel closed")
			}
			if d.shouldIgnore(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := d.addWatchDirs(); err != nil {
						log.Printf("watcher: rescan dirs after create: %v", err)
					}
				}
			}
			pending = true
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}

		case err, ok := <-d.fsw.Errors:
			if !ok {
				return errors.New("watcher: fsnotify errors channel closed")
			}
			log.Printf("watcher: event error: %v", err)

		case <-timerChan(timer):
			if !pending {
				continue
			}
			pending = false
			if err := d.rebuild(ctx); err != nil {
				log.Printf("watcher: rebuild failed: %v", err)
			}
		}
	}
}

// timerChan returns t's channel, or nil if t hasn't been started yet. A nil
// channel blocks forever in a select, which is exactly what we want before
// the first event arrives.
func timerChan(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (d *Daemon) rebuild(ctx context.Context) error {
	state, err := indexer.Build(ctx, d.st, d.cfg, d.root, false, true, false)
	if err != nil {
		return err
	}
	if !state.CacheHit || state.StalePrevious {
		if err := d.st.StoreArtifact(state.Artifact, d.cfg.Cache.MaxProjects, d.cfg.Cache.RetryAttempts, d.cfg.Cache.RetryBaseMs); err != nil {
			return fmt.Errorf("watcher: persist artifact: %w", err)
		}
	}
	if d.onRebuild != nil {
		d.onRebuild(state)
	}
	return nil
}

// addWatchDirs walks the project tree and registers every non-excluded
// directory with the fsnotify watcher. fsnotify has no recursive mode, so
// this has to be re-run whenever a new directory is created underneath one
// already watched.
func (d *Daemon) addWatchDirs() error {
	return filepath.Walk(d.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != d.root && d.isExcludedDir(info.Name()) {
			return filepath.SkipDir
		}
		if err := d.fsw.Add(path); err != nil {
			log.Printf("watcher: add watch on %s: %v", path, err)
		}
		return nil
	})
}

func (d *Daemon) isExcludedDir(name string) bool {
	for _, excl := range walker.DefaultExcludes {
		if strings.EqualFold(name, excl) {
			return true
		}
	}
	return false
}

// shouldIgnore reports whether an fsnotify event path falls under an
// excluded directory or matches a configured exclude pattern.
func (d *Daemon) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(d.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if d.isExcludedDir(part) {
			return true
		}
	}
	return walker.MatchesExclude(rel, d.cfg.Exclude)
}

// Stop signals an in-flight Run call to return. Safe to call once; Run
// itself closes the underlying fsnotify watcher on the way out.
func (d *Daemon) Stop() {
	close(d.done)
}
