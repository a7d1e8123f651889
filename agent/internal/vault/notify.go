package vault

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Subscribe calls fn whenever a .css or .json file under the configuration
// directory, its snippets directory or a theme directory changes. The
// returned function stops watching and waits for the event loop to exit.
// If the directories cannot be watched, the failure is logged and fn is
// never called.
func (v *Vault) Subscribe(fn func()) (unsubscribe func()) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("vault: create file watcher", "err", err)
		return func() {}
	}

	for _, dir := range v.watchDirs() {
		if err := w.Add(dir); err != nil {
			slog.Debug("vault: skip watch dir", "dir", dir, "err", err)
		}
	}
	slog.Info("vault: watching for style changes", "root", v.root)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					// A new theme directory needs its own watch. It may
					// have arrived by rename with theme.css already inside.
					if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
						if err := w.Add(event.Name); err != nil {
							slog.Debug("vault: skip watch dir", "dir", event.Name, "err", err)
						}
						fn()
						continue
					}
				}
				if !relevant(event.Name) || event.Op == fsnotify.Chmod {
					continue
				}
				fn()

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Error("vault: watcher error", "err", err)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = w.Close()
			<-done
		})
	}
}

func (v *Vault) watchDirs() []string {
	dirs := []string{
		v.configPath(),
		v.configPath("snippets"),
		v.configPath("themes"),
	}
	entries, err := os.ReadDir(v.configPath("themes"))
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, v.configPath("themes", e.Name()))
			}
		}
	}
	return dirs
}

func relevant(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".css", ".json":
		return true
	}
	return false
}
