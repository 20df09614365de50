package ifacemap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jward/ifacemap/internal/extract"
	"github.com/jward/ifacemap/internal/index"
	"github.com/jward/ifacemap/internal/resolve"
	"github.com/jward/ifacemap/internal/scan"
	"github.com/jward/ifacemap/internal/watch"
)

// DefaultConcurrency is the number of files read and extracted at once.
const DefaultConcurrency = 10

// Source lists and reads the files that make up the indexed tree.
// The default Source is a scanner over the Engine's root directory.
type Source interface {
	Enumerate(ctx context.Context) ([]string, error)
	Read(path string) ([]byte, error)
}

// RebuildStats describes one published generation.
type RebuildStats struct {
	Seq             uint64
	Reason          string
	Files           int
	Skipped         []*FileError
	Interfaces      int
	Declarations    int
	Implementations int
	Duration        time.Duration
}

// Engine is the sole writer of the cross-reference index. It runs full
// rebuilds one at a time and coalesces rebuild requests that arrive while
// one is in flight.
type Engine struct {
	root      string
	source    Source
	extractor extract.Extractor
	index     *index.Index
	logger    *log.Logger
	metrics   *metrics

	patterns    []string
	ignore      []string
	useGit      bool
	concurrency int
	debounce    time.Duration
	onPublish   func(*Generation, *RebuildStats)

	// rebuildMu serializes Rebuild.
	rebuildMu sync.Mutex
	// pending holds at most one queued rebuild reason.
	pending chan string
	seq     atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithSource replaces the file system scanner. Patterns, ignore globs, and
// the git setting have no effect on a custom Source.
func WithSource(s Source) Option {
	return func(e *Engine) {
		e.source = s
	}
}

// WithExtractor replaces the pattern-based declaration extractor.
func WithExtractor(x extract.Extractor) Option {
	return func(e *Engine) {
		e.extractor = x
	}
}

// WithPatterns sets the doublestar globs selecting source files.
// The default is **/*.go.
func WithPatterns(patterns ...string) Option {
	return func(e *Engine) {
		e.patterns = patterns
	}
}

// WithIgnore sets doublestar globs for files to leave out.
func WithIgnore(patterns ...string) Option {
	return func(e *Engine) {
		e.ignore = patterns
	}
}

// WithGit controls whether enumeration asks git for the file list before
// falling back to a directory walk. Enabled by default.
func WithGit(enabled bool) Option {
	return func(e *Engine) {
		e.useGit = enabled
	}
}

// WithConcurrency bounds how many files are read and extracted at once.
// Values below one fall back to DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// WithDebounce sets the quiet period Watch waits for before triggering.
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.debounce = d
	}
}

// WithLogger sets the Engine's logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithPublishHook registers fn to run after each generation is published.
// fn runs on the rebuilding goroutine and must not call Rebuild.
func WithPublishHook(fn func(*Generation, *RebuildStats)) Option {
	return func(e *Engine) {
		e.onPublish = fn
	}
}

// New creates an Engine for the tree rooted at root. The index starts empty;
// call Rebuild, or Trigger together with Run, to populate it.
func New(root string, opts ...Option) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("ifacemap: resolve root: %w", err)
	}

	e := &Engine{
		root:        abs,
		index:       index.New(),
		patterns:    scan.DefaultPatterns,
		useGit:      true,
		concurrency: DefaultConcurrency,
		debounce:    watch.DefaultDebounce,
		pending:     make(chan string, 1),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.concurrency < 1 {
		e.concurrency = DefaultConcurrency
	}
	if e.logger == nil {
		e.logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "ifacemap",
			Level:  log.WarnLevel,
		})
	}
	if e.extractor == nil {
		e.extractor = extract.New()
	}
	if e.source == nil {
		e.source = &scan.Scanner{
			Root:     abs,
			Patterns: e.patterns,
			Ignore:   e.ignore,
			UseGit:   e.useGit,
			Logger:   e.logger,
		}
	}
	e.metrics = newMetrics()

	return e, nil
}

// Root returns the absolute root directory.
func (e *Engine) Root() string {
	return e.root
}

// Logger returns the Engine's logger.
func (e *Engine) Logger() *log.Logger {
	return e.logger
}

// Index returns the index the Engine publishes into.
func (e *Engine) Index() *index.Index {
	return e.index
}

// Query returns a QueryBuilder over the live index.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{index: e.index}
}

// Clear drops the published generation. A rebuild already in flight will
// still publish when it finishes.
func (e *Engine) Clear() {
	e.index.Clear()
	e.metrics.observeGeneration(nil)
	e.logger.Debug("index cleared")
}

// Rebuild enumerates, reads, extracts, merges, and resolves the whole tree,
// then publishes the result. Only one Rebuild runs at a time.
//
// An error is returned only when enumeration fails or ctx is cancelled; the
// previous generation then stays published. Files that cannot be read are
// listed in RebuildStats.Skipped and left out of the index.
func (e *Engine) Rebuild(ctx context.Context) (*RebuildStats, error) {
	return e.rebuild(ctx, "manual")
}

func (e *Engine) rebuild(ctx context.Context, reason string) (*RebuildStats, error) {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	start := time.Now()
	paths, err := e.source.Enumerate(ctx)
	if err != nil {
		e.metrics.rebuildFailed()
		return nil, fmt.Errorf("ifacemap: enumerate: %w", err)
	}

	results, skipped, err := e.extractAll(ctx, paths)
	if err != nil {
		e.metrics.rebuildFailed()
		return nil, fmt.Errorf("ifacemap: extract: %w", err)
	}

	b := index.NewBuilder()
	types := resolve.NewTypeTable()
	for _, res := range results {
		if res == nil {
			continue
		}
		b.AddFile(res.Path, res.Interfaces, res.Declarations)
		types.AddFile(res.Path, res.Structs, res.Declarations)
	}
	b.SetImplementations(resolve.Resolve(b.Interfaces(), types))

	if err := ctx.Err(); err != nil {
		e.metrics.rebuildFailed()
		return nil, fmt.Errorf("ifacemap: rebuild: %w", err)
	}

	gen := b.Build(e.seq.Add(1))
	e.index.Publish(gen)

	ifaces, decls, impls := gen.Counts()
	stats := &RebuildStats{
		Seq:             gen.Seq,
		Reason:          reason,
		Files:           len(gen.Files),
		Skipped:         skipped,
		Interfaces:      ifaces,
		Declarations:    decls,
		Implementations: impls,
		Duration:        time.Since(start),
	}
	e.metrics.rebuildSucceeded(stats)
	e.metrics.observeGeneration(gen)

	for _, fe := range skipped {
		e.logger.Warn("skipped unreadable file", "path", fe.Path, "err", fe.Err)
	}
	e.logger.Info("published index",
		"seq", stats.Seq,
		"reason", reason,
		"files", stats.Files,
		"interfaces", ifaces,
		"implementations", impls,
		"duration", stats.Duration.Round(time.Millisecond),
	)

	if e.onPublish != nil {
		e.onPublish(gen, stats)
	}
	return stats, nil
}

// Trigger asks for a rebuild without blocking. It returns false when a
// rebuild is already queued, in which case this request is folded into it.
func (e *Engine) Trigger(reason string) bool {
	select {
	case e.pending <- reason:
		e.metrics.triggered(reason)
		return true
	default:
		e.metrics.coalesced()
		e.logger.Debug("rebuild already queued", "reason", reason)
		return false
	}
}

// Run processes queued rebuilds one at a time until ctx is cancelled.
// Rebuild failures are logged and do not stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case reason := <-e.pending:
			if _, err := e.rebuild(ctx, reason); err != nil {
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					return nil
				}
				e.logger.Error("rebuild failed", "reason", reason, "err", err)
			}
		}
	}
}
