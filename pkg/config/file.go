package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// fileDocument is the on-disk YAML shape: a flat map of provider name to
// backend config, the same shape NewRegistry accepts.
type fileDocument struct {
	Providers map[string]BackendConfig `yaml:"providers"`
}

// LoadFile reads path and parses it into a Registry. It performs no
// watching; callers that want hot reload should use Watcher.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return NewRegistry(doc.Providers)
}

// Watcher holds the current Registry behind an atomic pointer and
// replaces it wholesale on every valid reload of the backing file. A
// request in flight keeps whatever snapshot it already loaded via
// Current(); the registered provider map is never mutated in place,
// only swapped — grounded on kadirpekel-hector's
// pkg/config/provider/file.go FileProvider, generalized from "signal a
// channel on change" to "own and atomically replace the parsed result".
type Watcher struct {
	path    string
	current atomic.Pointer[Registry]

	watcher *fsnotify.Watcher
	done    chan struct{}

	// onReloadErr receives parse/validation errors from a reload so
	// a bad edit to the file never takes down the running registry;
	// it may be nil.
	onReloadErr func(error)
}

// NewWatcher loads path once and starts watching it for changes. The
// returned Watcher must be closed to release the fsnotify handle.
func NewWatcher(path string, onReloadErr func(error)) (*Watcher, error) {
	reg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to resolve path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(absPath)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	w := &Watcher{path: absPath, watcher: fw, done: make(chan struct{}), onReloadErr: onReloadErr}
	w.current.Store(reg)

	go w.loop(filepath.Base(absPath))
	return w, nil
}

// Current returns the most recently loaded, fully validated Registry.
func (w *Watcher) Current() *Registry {
	return w.current.Load()
}

// Close stops watching and releases the fsnotify handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop(configFile string) {
	var debounce *time.Timer
	const debounceDelay = 100 * time.Millisecond

	reload := func() {
		reg, err := LoadFile(w.path)
		if err != nil {
			if w.onReloadErr != nil {
				w.onReloadErr(err)
			}
			return
		}
		w.current.Store(reg)
	}

	for {
		select {
		case <-w.done:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.onReloadErr != nil {
				w.onReloadErr(fmt.Errorf("config: watcher error: %w", err))
			}
		}
	}
}
