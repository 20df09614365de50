package ifacemap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/ifacemap/internal/scan"
	"github.com/jward/ifacemap/internal/store"
)

// memSource is an in-memory Source. Files are enumerated in path order.
type memSource struct {
	mu       sync.Mutex
	files    map[string]string
	readErrs map[string]error
	enumErr  error

	// gate, when set, blocks Enumerate until closed. entered receives one
	// value per Enumerate call.
	gate    chan struct{}
	entered chan struct{}

	enumerations atomic.Int32
}

func newMemSource(files map[string]string) *memSource {
	return &memSource{files: files, readErrs: map[string]error{}}
}

func (s *memSource) Enumerate(ctx context.Context) ([]string, error) {
	s.enumerations.Add(1)
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enumErr != nil {
		return nil, s.enumErr
	}
	paths := make([]string, 0, len(s.files))
	for p := range s.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *memSource) Read(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readErrs[path]; err != nil {
		return nil, err
	}
	src, ok := s.files[path]
	if !ok {
		return nil, &scan.FileError{Path: path, Err: os.ErrNotExist}
	}
	return []byte(src), nil
}

func (s *memSource) set(path, src string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = src
}

func (s *memSource) remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
}

const shapesFile = `package shapes

type Shape interface {
	Area() float64
}

type Circle struct {
	R float64
}

func (c *Circle) Area() float64 {
	return 3.14 * c.R * c.R
}
`

const squareFile = `package shapes

type Square struct{ S float64 }

func (s Square) Area() float64 { return s.S * s.S }

func (s Square) Perimeter() float64 { return 4 * s.S }
`

func quietLogger() *log.Logger {
	l := log.New(os.Stderr)
	l.SetLevel(log.ErrorLevel)
	return l
}

func newTestEngine(t *testing.T, src *memSource, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithSource(src), WithLogger(quietLogger())}, opts...)
	e, err := New(t.TempDir(), opts...)
	require.NoError(t, err)
	return e
}

func rebuild(t *testing.T, e *Engine) *RebuildStats {
	t.Helper()
	stats, err := e.Rebuild(context.Background())
	require.NoError(t, err)
	return stats
}

// =============================================================================
// New / options
// =============================================================================

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	e, err := New(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, e.Root())
	assert.Equal(t, DefaultConcurrency, e.concurrency)
	assert.False(t, e.Index().Populated())

	sc, ok := e.source.(*scan.Scanner)
	require.True(t, ok, "default source should be the file scanner")
	assert.Equal(t, dir, sc.Root)
	assert.Equal(t, scan.DefaultPatterns, sc.Patterns)
	assert.True(t, sc.UseGit)
}

func TestNew_ScannerOptions(t *testing.T) {
	t.Parallel()
	e, err := New(t.TempDir(),
		WithPatterns("pkg/**/*.go"),
		WithIgnore("**/*_test.go"),
		WithGit(false),
		WithConcurrency(0),
	)
	require.NoError(t, err)

	sc := e.source.(*scan.Scanner)
	assert.Equal(t, []string{"pkg/**/*.go"}, sc.Patterns)
	assert.Equal(t, []string{"**/*_test.go"}, sc.Ignore)
	assert.False(t, sc.UseGit)
	assert.Equal(t, DefaultConcurrency, e.concurrency)
}

// =============================================================================
// Rebuild
// =============================================================================

func TestRebuild_ShapeCircle(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, newMemSource(map[string]string{"/src/shapes.go": shapesFile}))

	stats := rebuild(t, e)
	assert.EqualValues(t, 1, stats.Seq)
	assert.Equal(t, 1, stats.Files)
	assert.Equal(t, 1, stats.Interfaces)
	assert.Equal(t, 1, stats.Implementations)
	assert.Equal(t, "manual", stats.Reason)
	assert.Empty(t, stats.Skipped)

	sum, ok := e.Query().ImplementationSummary("Shape")
	require.True(t, ok)
	assert.Equal(t, 1, sum.Count)
	assert.Equal(t, []ImplementationRecord{{ConcreteType: "Circle", DeclaringFile: "/src/shapes.go"}}, sum.Implementations)
}

func TestRebuild_Idempotent(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, newMemSource(map[string]string{
		"/src/shapes.go": shapesFile,
		"/src/square.go": squareFile,
	}))

	rebuild(t, e)
	first := e.Index().Current()
	rebuild(t, e)
	second := e.Index().Current()

	assert.Equal(t, first.Seq+1, second.Seq)
	assert.Equal(t, store.Fingerprint(first), store.Fingerprint(second))
	assert.Equal(t, first.InterfaceNames(), second.InterfaceNames())
	assert.Equal(t, first.DeclarationNames(), second.DeclarationNames())
}

func TestRebuild_SkipsUnreadableFile(t *testing.T) {
	t.Parallel()
	src := newMemSource(map[string]string{
		"/src/shapes.go": shapesFile,
		"/src/square.go": squareFile,
	})
	src.readErrs["/src/square.go"] = errors.New("permission denied")
	e := newTestEngine(t, src)

	stats := rebuild(t, e)
	require.Len(t, stats.Skipped, 1)
	assert.Equal(t, "/src/square.go", stats.Skipped[0].Path)
	assert.ErrorIs(t, stats.Skipped[0], ErrUnavailable)
	assert.Equal(t, 1, stats.Files)

	sum, ok := e.Query().ImplementationSummary("Shape")
	require.True(t, ok)
	assert.Equal(t, 1, sum.Count, "Square comes only from the unreadable file")
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.filesSkipped))
}

func TestRebuild_EnumerateErrorKeepsPreviousGeneration(t *testing.T) {
	t.Parallel()
	src := newMemSource(map[string]string{"/src/shapes.go": shapesFile})
	e := newTestEngine(t, src)
	rebuild(t, e)
	before := e.Index().Current()

	src.enumErr = errors.New("disk gone")
	_, err := e.Rebuild(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	assert.Same(t, before, e.Index().Current())
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.rebuilds.WithLabelValues("error")))
}

func TestRebuild_CancelledContextPublishesNothing(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, newMemSource(map[string]string{"/src/shapes.go": shapesFile}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Rebuild(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, e.Index().Populated())
}

func TestRebuild_DeletionRemovesImplementation(t *testing.T) {
	t.Parallel()
	src := newMemSource(map[string]string{
		"/src/iface.go":  "package p\n\ntype Runner interface {\n\tRun()\n}\n",
		"/src/worker.go": "package p\n\ntype Worker struct{}\n\nfunc (w *Worker) Run() {}\n",
	})
	e := newTestEngine(t, src)
	rebuild(t, e)
	_, ok := e.Query().ImplementationSummary("Runner")
	require.True(t, ok)

	src.remove("/src/worker.go")
	rebuild(t, e)

	_, ok = e.Query().ImplementationSummary("Runner")
	assert.False(t, ok, "no zero-count summary may remain")
	assert.Empty(t, e.Query().Declarations("Run"))
	_, ok = e.Query().Interface("Runner")
	assert.True(t, ok)
}

func TestRebuild_NewFileIsPickedUp(t *testing.T) {
	t.Parallel()
	src := newMemSource(map[string]string{"/src/shapes.go": shapesFile})
	e := newTestEngine(t, src)
	rebuild(t, e)

	src.set("/src/square.go", squareFile)
	rebuild(t, e)

	sum, ok := e.Query().ImplementationSummary("Shape")
	require.True(t, ok)
	assert.Equal(t, 2, sum.Count)
}

func TestRebuild_ConcurrencyDoesNotChangeResult(t *testing.T) {
	t.Parallel()
	files := map[string]string{}
	for i := range 40 {
		files[filepath.Join("/src", "f"+string(rune('a'+i%26))+string(rune('a'+i/26))+".go")] = squareFile
	}
	files["/src/shapes.go"] = shapesFile

	serial := newTestEngine(t, newMemSource(files), WithConcurrency(1))
	parallel := newTestEngine(t, newMemSource(files), WithConcurrency(16))
	rebuild(t, serial)
	rebuild(t, parallel)

	assert.Equal(t, serial.Index().Current().Files, parallel.Index().Current().Files)
	assert.Equal(t, store.Fingerprint(serial.Index().Current()), store.Fingerprint(parallel.Index().Current()))
}

func TestRebuild_FromDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shapes.go"), []byte(shapesFile), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# not go"), 0o644))

	e, err := New(dir, WithGit(false), WithLogger(quietLogger()))
	require.NoError(t, err)
	stats := rebuild(t, e)
	assert.Equal(t, 1, stats.Files)

	sum, ok := e.Query().ImplementationSummary("Shape")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "shapes.go"), sum.Implementations[0].DeclaringFile)
}

func TestRebuild_MissingRootFails(t *testing.T) {
	t.Parallel()
	e, err := New(filepath.Join(t.TempDir(), "nope"), WithGit(false), WithLogger(quietLogger()))
	require.NoError(t, err)
	_, err = e.Rebuild(context.Background())
	require.Error(t, err)
	assert.False(t, e.Index().Populated())
}

func TestClear(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, newMemSource(map[string]string{"/src/shapes.go": shapesFile}))
	rebuild(t, e)
	require.True(t, e.Index().Populated())

	e.Clear()
	assert.False(t, e.Index().Populated())
	assert.Empty(t, e.Query().Interfaces())
	assert.Equal(t, 0.0, testutil.ToFloat64(e.metrics.generation))
}

func TestWithPublishHook(t *testing.T) {
	t.Parallel()
	var got []uint64
	e := newTestEngine(t, newMemSource(map[string]string{"/src/shapes.go": shapesFile}),
		WithPublishHook(func(gen *Generation, stats *RebuildStats) {
			assert.Equal(t, gen.Seq, stats.Seq)
			got = append(got, gen.Seq)
		}))

	rebuild(t, e)
	rebuild(t, e)
	assert.Equal(t, []uint64{1, 2}, got)
}

// =============================================================================
// Trigger / Run
// =============================================================================

func TestTrigger_QueuesAtMostOne(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, newMemSource(map[string]string{}))

	assert.True(t, e.Trigger("activate"))
	assert.False(t, e.Trigger("edit"))
	assert.False(t, e.Trigger("edit"))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.triggersFolded))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.triggers.WithLabelValues("activate")))
}

func TestRun_CoalescesTriggersDuringRebuild(t *testing.T) {
	t.Parallel()
	src := newMemSource(map[string]string{"/src/shapes.go": shapesFile})
	src.gate = make(chan struct{})
	src.entered = make(chan struct{}, 8)

	published := make(chan uint64, 8)
	e := newTestEngine(t, src, WithPublishHook(func(gen *Generation, _ *RebuildStats) {
		published <- gen.Seq
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	require.True(t, e.Trigger("activate"))
	select {
	case <-src.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first rebuild never started")
	}

	// The first rebuild is blocked in Enumerate. Only one of these may queue.
	queued := 0
	for range 10 {
		if e.Trigger("edit") {
			queued++
		}
	}
	assert.Equal(t, 1, queued)

	close(src.gate)
	for want := uint64(1); want <= 2; want++ {
		select {
		case seq := <-published:
			assert.Equal(t, want, seq)
		case <-time.After(5 * time.Second):
			t.Fatalf("rebuild %d never published", want)
		}
	}

	select {
	case seq := <-published:
		t.Fatalf("unexpected extra rebuild %d", seq)
	case <-time.After(100 * time.Millisecond):
	}
	assert.EqualValues(t, 2, src.enumerations.Load())
	assert.Equal(t, 9.0, testutil.ToFloat64(e.metrics.triggersFolded))
}

func TestRun_FailedRebuildDoesNotStopLoop(t *testing.T) {
	t.Parallel()
	src := newMemSource(map[string]string{"/src/shapes.go": shapesFile})
	src.enumErr = errors.New("flaky")

	published := make(chan struct{}, 1)
	e := newTestEngine(t, src, WithPublishHook(func(*Generation, *RebuildStats) {
		published <- struct{}{}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	e.Trigger("activate")
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(e.metrics.rebuilds.WithLabelValues("error")) == 1
	}, 5*time.Second, 10*time.Millisecond)

	src.mu.Lock()
	src.enumErr = nil
	src.mu.Unlock()
	e.Trigger("edit")

	select {
	case <-published:
	case <-time.After(5 * time.Second):
		t.Fatal("loop stopped after a failed rebuild")
	}
	assert.True(t, e.Index().Populated())
}

func TestRun_ReturnsOnCancel(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, newMemSource(map[string]string{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Run(ctx))
}

// =============================================================================
// Metrics
// =============================================================================

func TestMetrics_GaugesTrackGeneration(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, newMemSource(map[string]string{
		"/src/shapes.go": shapesFile,
		"/src/square.go": squareFile,
	}))
	rebuild(t, e)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.generation))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.files))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.interfaces))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.implementations))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.rebuilds.WithLabelValues("ok")))

	n, err := testutil.GatherAndCount(e.Registry(), "ifacemap_rebuild_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
