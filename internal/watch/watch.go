// Package watch re-runs the pipeline when project sources change.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/PentesterFlow/OpenContract/internal/logger"
	"github.com/PentesterFlow/OpenContract/internal/scanner"
)

// DefaultDebounce coalesces bursts of editor writes into one run.
const DefaultDebounce = 300 * time.Millisecond

// RunFunc is invoked once per debounced batch of changes.
type RunFunc func(ctx context.Context, changed []string) error

// Options configures a Watcher.
type Options struct {
	Policy   scanner.Policy
	Exclude  []string
	Debounce time.Duration
	Logger   *logger.Logger
}

// Watcher watches every non-ignored directory under a root.
type Watcher struct {
	root     string
	policy   scanner.Policy
	exclude  []string
	exts     map[string]bool
	ignore   map[string]bool
	debounce time.Duration
	log      *logger.Logger
}

// New creates a watcher for root.
func New(root string, opts Options) *Watcher {
	p := opts.Policy
	if len(p.Extensions) == 0 {
		p = scanner.DefaultPolicy()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	w := &Watcher{
		root:     root,
		policy:   p,
		debounce: opts.Debounce,
		exts:     make(map[string]bool, len(p.Extensions)),
		ignore:   make(map[string]bool, len(p.IgnoreDirs)),
		log:      opts.Logger.WithComponent("watch"),
	}
	for _, ext := range p.Extensions {
		w.exts[strings.ToLower(ext)] = true
	}
	for _, d := range p.IgnoreDirs {
		w.ignore[d] = true
	}
	for _, ex := range opts.Exclude {
		if abs, err := filepath.Abs(ex); err == nil {
			w.exclude = append(w.exclude, abs)
		}
	}
	return w
}

func (w *Watcher) skipDir(path string) bool {
	if path != w.root && w.ignore[filepath.Base(path)] {
		return true
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, ex := range w.exclude {
		if abs == ex || strings.HasPrefix(abs, ex+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Relevant reports whether a change to path should trigger a run.
func (w *Watcher) Relevant(path string) bool {
	for dir := filepath.Dir(path); dir != "." && dir != string(filepath.Separator); dir = filepath.Dir(dir) {
		if w.skipDir(dir) {
			return false
		}
		if dir == w.root {
			break
		}
	}
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".env") {
		return true
	}
	return w.exts[strings.ToLower(filepath.Ext(base))]
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if w.skipDir(path) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

// Run blocks until ctx is cancelled, calling fn after each debounced batch
// of relevant changes. Runs never overlap; changes arriving during a run
// are batched into the next one.
func (w *Watcher) Run(ctx context.Context, fn RunFunc) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addRecursive(fw, w.root); err != nil {
		return err
	}
	w.log.WithField("root", w.root).Info("watching for changes")

	fire := make(chan struct{}, 1)
	pending := make(map[string]bool)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !w.skipDir(ev.Name) {
					if err := w.addRecursive(fw, ev.Name); err != nil {
						w.log.WithError(err).WithFile(ev.Name).Warn("failed to watch new directory")
					}
					continue
				}
			}
			if !w.Relevant(ev.Name) {
				continue
			}
			pending[ev.Name] = true
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case <-fire:
			changed := sortedKeys(pending)
			pending = make(map[string]bool)
			w.log.WithField("changes", len(changed)).Info("sources changed, re-running")
			if err := fn(ctx, changed); err != nil {
				w.log.WithError(err).Warn("run failed")
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watch error")
		}
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
