package ifacemap

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/jward/ifacemap/internal/runtime"
)

// ScriptOption configures a script run.
type ScriptOption func(*scriptConfig)

type scriptConfig struct {
	fsys     fs.FS
	snapshot *Snapshot
	globals  map[string]any
}

// WithScriptFS loads the script and its imports from fsys.
func WithScriptFS(fsys fs.FS) ScriptOption {
	return func(c *scriptConfig) {
		c.fsys = fsys
	}
}

// WithScriptGlobals adds globals visible to the script.
func WithScriptGlobals(globals map[string]any) ScriptOption {
	return func(c *scriptConfig) {
		c.globals = globals
	}
}

// WithSnapshotDB exposes the snapshot's database to the script as db_query.
func WithSnapshotDB(s *Snapshot) ScriptOption {
	return func(c *scriptConfig) {
		c.snapshot = s
	}
}

// RunScript runs a Risor script against the Engine's live index and returns
// the script's final value. Imports resolve relative to the script's
// directory.
func (e *Engine) RunScript(ctx context.Context, path string, opts ...ScriptOption) (any, error) {
	return runScript(ctx, e.index, e, path, opts)
}

// RunScript runs a Risor script against the snapshot's index. db_query is
// always available.
func (s *Snapshot) RunScript(ctx context.Context, path string, opts ...ScriptOption) (any, error) {
	opts = append(opts, WithSnapshotDB(s))
	return runScript(ctx, s.index, nil, path, opts)
}

func runScript(ctx context.Context, idx runtime.IndexReader, e *Engine, path string, opts []ScriptOption) (any, error) {
	cfg := &scriptConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var rtOpts []runtime.RuntimeOption
	if cfg.fsys != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(cfg.fsys))
	}
	if cfg.snapshot != nil {
		rtOpts = append(rtOpts, runtime.WithStore(cfg.snapshot.store))
	}
	if e != nil {
		rtOpts = append(rtOpts, runtime.WithLogger(e.logger))
	}

	dir := ""
	if cfg.fsys == nil {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		dir, path = filepath.Dir(abs), filepath.Base(abs)
	}
	rt := runtime.NewRuntime(idx, dir, rtOpts...)
	return rt.RunScript(ctx, path, cfg.globals)
}
