package config

import (
	"context"
	"log"
	"os"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors path for changes and calls onChange with the newly loaded
// Config each time the file is written. It runs until ctx is cancelled.
//
// If a reload fails (invalid yaml or a failed validation), the error is
// logged and the previous config remains active.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Editors often save via rename, which arrives as Create.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			// A plain save truncates before writing data. Loading inside
			// that window reads an empty file as pure defaults, so wait
			// for the write event that follows.
			if fi, err := os.Stat(path); err == nil && fi.Size() == 0 {
				continue
			}

			cfg, err := Load(path)
			if err != nil {
				log.Printf("config reload failed, keeping previous: %v", err)
				continue
			}

			log.Printf("config reloaded from %s", path)
			onChange(cfg)

			// Re-add the file in case an atomic save replaced the inode.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("config watcher error: %v", err)
		}
	}
}
