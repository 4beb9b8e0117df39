package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/4thel00z/keeper/internal"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const clearScreen = "\x1b[H\x1b[2J"

// watchRepository calls redraw once, then again after every burst of changes
// to HEAD, the refs or keeper's database, until the command's context ends.
func watchRepository(cmd *cobra.Command, loc internal.Location, debounce time.Duration, redraw func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, loc); err != nil {
		return fmt.Errorf("add watch dirs: %w", err)
	}

	if err := redraw(); err != nil {
		return err
	}

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if shouldIgnoreEvent(event) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				// New ref namespaces, e.g. the first branch under feature/.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if !pending {
				timer.Reset(debounce)
				pending = true
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
		case <-timer.C:
			pending = false
			if err := redraw(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "keeper: %v\n", err)
			}
		}
	}
}

// addWatchDirs watches the git dir itself (HEAD, packed-refs), every
// directory under refs, and keeper's metadata directory.
func addWatchDirs(watcher *fsnotify.Watcher, loc internal.Location) error {
	if err := watcher.Add(loc.GitDir); err != nil {
		return err
	}
	if loc.CommonDir() != loc.GitDir {
		if err := watcher.Add(loc.CommonDir()); err != nil {
			return err
		}
	}
	if loc.IsInitialized() {
		if err := watcher.Add(loc.MetaDir()); err != nil {
			return err
		}
	}

	return filepath.Walk(loc.RefsDir(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func shouldIgnoreEvent(event fsnotify.Event) bool {
	if strings.HasSuffix(event.Name, ".lock") {
		return true
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}

	return false
}
