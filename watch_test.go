package ifacemap

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_RebuildsOnChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "iface.go"),
		[]byte("package p\n\ntype Runner interface {\n\tRun()\n}\n"), 0o644))

	published := make(chan *Generation, 16)
	e, err := New(dir,
		WithGit(false),
		WithDebounce(50*time.Millisecond),
		WithLogger(quietLogger()),
		WithPublishHook(func(gen *Generation, _ *RebuildStats) { published <- gen }),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	waitFor := func(cond func(*Generation) bool) {
		t.Helper()
		deadline := time.After(5 * time.Second)
		for {
			select {
			case gen := <-published:
				if cond(gen) {
					return
				}
			case <-deadline:
				t.Fatal("timed out waiting for rebuild")
			}
		}
	}

	waitFor(func(g *Generation) bool {
		_, ok := g.Interface("Runner")
		return ok
	})

	worker := filepath.Join(dir, "worker.go")
	require.NoError(t, os.WriteFile(worker,
		[]byte("package p\n\ntype Worker struct{}\n\nfunc (w *Worker) Run() {}\n"), 0o644))
	waitFor(func(g *Generation) bool {
		_, ok := g.Implementation("Runner")
		return ok
	})

	require.NoError(t, os.Remove(worker))
	waitFor(func(g *Generation) bool {
		_, ok := g.Implementation("Runner")
		return !ok
	})
	assert.Empty(t, e.Query().Declarations("Run"))
}

func TestWatch_InvalidPatternFails(t *testing.T) {
	t.Parallel()
	e, err := New(t.TempDir(), WithPatterns("[unclosed"), WithLogger(quietLogger()))
	require.NoError(t, err)
	require.Error(t, e.Watch(context.Background()))
}

func TestWatch_DirectoryMovedOutDropsDeclarations(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	outside := t.TempDir()
	pkg := filepath.Join(dir, "pkg")
	require.NoError(t, os.MkdirAll(pkg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "iface.go"),
		[]byte("package pkg\n\ntype Closer interface {\n\tClose()\n}\n"), 0o644))

	published := make(chan *Generation, 16)
	e, err := New(dir,
		WithGit(false),
		WithDebounce(50*time.Millisecond),
		WithLogger(quietLogger()),
		WithPublishHook(func(gen *Generation, _ *RebuildStats) { published <- gen }),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	waitFor := func(cond func(*Generation) bool) {
		t.Helper()
		deadline := time.After(5 * time.Second)
		for {
			select {
			case gen := <-published:
				if cond(gen) {
					return
				}
			case <-deadline:
				t.Fatal("timed out waiting for rebuild")
			}
		}
	}

	waitFor(func(g *Generation) bool {
		_, ok := g.Interface("Closer")
		return ok
	})

	require.NoError(t, os.Rename(pkg, filepath.Join(outside, "pkg")))
	waitFor(func(g *Generation) bool {
		_, ok := g.Interface("Closer")
		return !ok
	})
}
