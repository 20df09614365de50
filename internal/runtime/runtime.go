package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/ifacemap/internal/index"
	"github.com/jward/ifacemap/internal/store"
)

// scriptExt is the extension resolved by script imports.
const scriptExt = ".risor"

// IndexReader is the read side of the cross-reference index. Each host
// function call reads the generation current at that moment.
type IndexReader interface {
	Current() *index.Generation
}

// Runtime embeds a Risor VM and exposes index accessors and tree-sitter
// host functions to user scripts.
type Runtime struct {
	index      IndexReader
	store      *store.Store
	scriptsDir string
	fsys       fs.FS
	trees      *treeRegistry
	logger     *log.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithStore exposes a snapshot database to scripts through db_query.
func WithStore(s *store.Store) RuntimeOption {
	return func(r *Runtime) {
		r.store = s
	}
}

// WithLogger sets the logger behind the script "log" global.
func WithLogger(l *log.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime reading from idx. scriptsDir is the base for
// relative script paths and imports; it may be empty.
func NewRuntime(idx IndexReader, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		index:      idx,
		scriptsDir: scriptsDir,
		trees:      newTreeRegistry(),
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller. The script's final value
// is returned converted to a Go value.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) (any, error) {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) (any, error) {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) (any, error) {
	globals := r.globals(extraGlobals)
	names := make([]string, 0, len(globals))
	opts := make([]risor.Option, 0, len(globals)+1)
	for name, val := range globals {
		names = append(names, name)
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Imported modules see the same globals as the script itself.
	switch {
	case r.fsys != nil:
		opts = append(opts, risor.WithImporter(importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: names,
			SourceFS:    r.fsys,
			Extensions:  []string{scriptExt},
		})))
	case r.scriptsDir != "":
		opts = append(opts, risor.WithImporter(importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: names,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{scriptExt},
		})))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	if result == nil {
		return nil, nil
	}
	return result.Interface(), nil
}

// LoadScript returns the source of a script. Paths are relative to the
// Runtime's FS when one is set, otherwise to scriptsDir.
func (r *Runtime) LoadScript(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if r.fsys != nil {
		path = strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err = fs.ReadFile(r.fsys, path)
	} else {
		if !filepath.IsAbs(path) && r.scriptsDir != "" {
			path = filepath.Join(r.scriptsDir, path)
		}
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("runtime: load %s: %w", path, err)
	}
	return string(data), nil
}

// globals returns the syntax-tree builtins, the index accessors when an
// index is set, db_query when a store is set, and extra on top.
func (r *Runtime) globals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"parse":      makeParseFn(r.trees),
		"parse_src":  makeParseSrcFn(r.trees),
		"node_text":  makeNodeTextFn(r.trees),
		"node_child": makeNodeChildFn(),
		"query":      makeQueryFn(r.trees),
		"log":        mustProxy(&scriptLog{logger: r.logger}),
	}

	if r.index != nil {
		globals["get_interface"] = makeGetInterfaceFn(r.index)
		globals["get_declarations"] = makeGetDeclarationsFn(r.index)
		globals["get_implementations"] = makeGetImplementationsFn(r.index)
		globals["interfaces_requiring"] = makeInterfacesRequiringFn(r.index)
		globals["methods_of"] = makeMethodsOfFn(r.index)
		globals["interface_names"] = makeInterfaceNamesFn(r.index)
	}

	if r.store != nil {
		globals["db_query"] = makeDBQueryFn(r.store)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy %T: %v", v, err))
	}
	return p
}
