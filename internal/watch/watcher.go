// Package watch reports created, modified, and deleted source files under a
// directory tree.
//
// Events matching the configured glob patterns are batched over a short
// debounce window and delivered to a callback as one deduplicated set.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a batch is delivered.
const DefaultDebounce = 200 * time.Millisecond

// defaultIgnores are always excluded: VCS metadata, dependency trees, and
// editor swap files.
var defaultIgnores = []string{
	"**/.git/**",
	"**/vendor/**",
	"**/node_modules/**",
	"**/*.swp",
	"**/*~",
}

// Op is the kind of change observed for a path.
type Op int

const (
	Created Op = iota + 1
	Modified
	Deleted
)

func (o Op) String() string {
	switch o {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// Event is one changed file, relative to the watched root.
type Event struct {
	Path string
	Op   Op
}

// Config holds the parameters for a Watcher.
type Config struct {
	// BaseDir is the root directory to watch.
	BaseDir string

	// Patterns select which files produce events. Empty means all files.
	Patterns []string

	// Ignore patterns are merged with the built-in defaults.
	Ignore []string

	// Debounce falls back to DefaultDebounce when zero or negative.
	Debounce time.Duration

	// OnChange receives each batch, sorted by path. The last op seen for a
	// path wins within a batch.
	OnChange func(ctx context.Context, events []Event)

	Logger *log.Logger
}

// Watcher monitors a directory tree. Run must be called exactly once.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	ignores  []string
	debounce time.Duration
	baseDir  string
	logger   *log.Logger
	started  atomic.Bool

	// dirs holds the absolute paths registered with fsnotify. Only Run's
	// goroutine touches it after New returns.
	dirs map[string]bool
}

// New validates cfg, creates the fsnotify watcher, and registers every
// non-ignored directory under BaseDir.
func New(cfg Config) (*Watcher, error) {
	absBase, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve base directory: %w", err)
	}
	if err := validatePatterns(cfg.Patterns, "watch"); err != nil {
		return nil, err
	}
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  append(append([]string{}, defaultIgnores...), cfg.Ignore...),
		debounce: debounce,
		baseDir:  absBase,
		logger:   logger,
		dirs:     make(map[string]bool),
	}
	if err := w.addDirectories(); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is cancelled, delivering debounced batches. It
// returns nil on cancellation and an error when fsnotify fails.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]Op)
		timer   *time.Timer
	)

	fire := func() {
		if ctx.Err() != nil {
			return
		}
		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		events := make([]Event, 0, len(pending))
		for p, op := range pending {
			events = append(events, Event{Path: p, Op: op})
		}
		clear(pending)
		mu.Unlock()

		sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })
		if w.cfg.OnChange != nil {
			w.cfg.OnChange(ctx, events)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: fsnotify event channel closed unexpectedly")
			}
			op, ok := classify(evt)
			if !ok {
				continue
			}
			rel, err := filepath.Rel(w.baseDir, evt.Name)
			if err != nil {
				rel = evt.Name
			}
			rel = filepath.ToSlash(rel)

			// Directory events bypass Patterns: a package directory moved in
			// or out of the tree carries matching files with it.
			switch {
			case op == Created && w.maybeAddDir(evt.Name):
			case op == Deleted && w.forgetDir(evt.Name):
			case w.isIgnored(rel) || !w.matchesPatterns(rel):
				continue
			}

			mu.Lock()
			pending[rel] = op
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: fsnotify error channel closed unexpectedly")
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// classify maps an fsnotify event to an Op. Chmod-only events are dropped.
func classify(evt fsnotify.Event) (Op, bool) {
	switch {
	case evt.Has(fsnotify.Remove), evt.Has(fsnotify.Rename):
		return Deleted, true
	case evt.Has(fsnotify.Create):
		return Created, true
	case evt.Has(fsnotify.Write):
		return Modified, true
	}
	return 0, false
}

// addDirectories adds every non-ignored directory under BaseDir.
// Inaccessible paths are skipped.
func (w *Watcher) addDirectories() error {
	walkErr := filepath.WalkDir(w.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping inaccessible path", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.baseDir, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if w.isIgnored(rel) || w.isIgnored(rel+"/") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		w.dirs[path] = true
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk directory tree: %w", walkErr)
	}
	return nil
}

// maybeAddDir watches a directory created or moved in after startup,
// along with its subdirectories. It reports whether path was a directory
// that is now watched.
func (w *Watcher) maybeAddDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	added := false
	_ = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.baseDir, p)
		if relErr != nil {
			return filepath.SkipDir
		}
		rel = filepath.ToSlash(rel)
		if w.isIgnored(rel) || w.isIgnored(rel+"/") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			w.logger.Warn("add new directory", "path", p, "err", err)
			return filepath.SkipDir
		}
		w.dirs[p] = true
		if p == path {
			added = true
		}
		return nil
	})
	return added
}

// forgetDir drops a removed or renamed directory and everything below it.
// It reports whether path was a watched directory.
func (w *Watcher) forgetDir(path string) bool {
	if !w.dirs[path] {
		return false
	}
	prefix := path + string(filepath.Separator)
	for d := range w.dirs {
		if d == path || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
			// The watch is already gone for a removed directory.
			_ = w.fsw.Remove(d)
		}
	}
	return true
}

func (w *Watcher) isIgnored(rel string) bool {
	for _, pat := range w.ignores {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Watcher) matchesPatterns(rel string) bool {
	if len(w.cfg.Patterns) == 0 {
		return true
	}
	for _, pat := range w.cfg.Patterns {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid %s pattern %q", label, pat)
		}
	}
	return nil
}
