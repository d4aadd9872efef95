/*
 * Copyright (c) Huawei Technologies Co., Ltd. 2025-2026. All rights reserved.
 */

// Package watchers creates the file and signal watchers the run loop
// selects on.
package watchers

import (
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// NewFSWatcher returns a watcher on the given files. Each file's parent
// directory is watched as well, so editors and config mounts that replace
// the file by rename keep generating events.
func NewFSWatcher(files ...string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	watched := make(map[string]bool)
	for _, f := range files {
		for _, path := range []string{f, filepath.Dir(f)} {
			if watched[path] {
				continue
			}
			if err = watcher.Add(path); err != nil {
				watcher.Close()
				return nil, err
			}
			watched[path] = true
		}
	}

	return watcher, nil
}

// NewOSWatcher returns a channel delivering the given signals.
func NewOSWatcher(sigs ...os.Signal) chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, sigs...)
	return sigChan
}
