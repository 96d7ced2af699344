// Package watch re-runs a sync whenever configuration files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher runs Run once at start and again after changes under Root
// matching Pattern. Runs never overlap.
type Watcher struct {
	Root     string
	Pattern  string // glob relative to Root; empty matches everything
	Debounce time.Duration
	Run      func(ctx context.Context) error
}

// Watch blocks until ctx is cancelled. A failed run is logged and the
// watcher keeps going.
func (w *Watcher) Watch(ctx context.Context) error {
	log := zerolog.Ctx(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := addTree(fw, w.Root); err != nil {
		return err
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timer := time.NewTimer(0) // initial run
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(fw, ev.Name); err != nil {
						log.Warn().Err(err).Str("dir", ev.Name).Msg("Cannot watch new directory")
					}
				}
			}
			if !w.relevant(ev) {
				continue
			}
			log.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("Change detected")
			timer.Reset(debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Watch error")

		case <-timer.C:
			if err := w.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Sync run failed")
			}
			log.Info().Str("root", w.Root).Msg("Waiting for changes")
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if w.Pattern == "" {
		return true
	}
	rel, err := filepath.Rel(w.Root, ev.Name)
	if err != nil {
		return false
	}
	ok, err := doublestar.Match(filepath.ToSlash(w.Pattern), filepath.ToSlash(rel))
	return err == nil && ok
}

// addTree watches dir and every directory below it.
func addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path != dir {
				return nil
			}
			return fmt.Errorf("walking %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
