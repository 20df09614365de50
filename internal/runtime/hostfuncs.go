package runtime

import (
	"context"
	"os"
	"sync"
	"unsafe"

	"github.com/charmbracelet/log"
	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
)

// parsedTree is what node_text and query need to work on any node of a tree.
type parsedTree struct {
	src  []byte
	lang *sitter.Language
}

// treeRegistry maps the root node of every tree parsed during a run back to
// its source and language. go-tree-sitter has no Node.Tree(), so lookups walk
// Parent() to the root and key on its address.
type treeRegistry struct {
	mu    sync.RWMutex
	trees map[uintptr]parsedTree
}

func newTreeRegistry() *treeRegistry {
	return &treeRegistry{trees: make(map[uintptr]parsedTree)}
}

func nodeKey(n *sitter.Node) uintptr {
	for n.Parent() != nil {
		n = n.Parent()
	}
	return uintptr(unsafe.Pointer(n))
}

func (r *treeRegistry) remember(tree *sitter.Tree, src []byte, lang *sitter.Language) {
	r.mu.Lock()
	r.trees[uintptr(unsafe.Pointer(tree.RootNode()))] = parsedTree{src: src, lang: lang}
	r.mu.Unlock()
}

func (r *treeRegistry) lookup(n *sitter.Node) (parsedTree, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pt, ok := r.trees[nodeKey(n)]
	return pt, ok
}

// nodeArg unwraps a proxied *sitter.Node. The returned object is non-nil
// only when obj is not a node.
func nodeArg(fn string, obj object.Object) (*sitter.Node, object.Object) {
	proxy, ok := obj.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected a Node, got %s", fn, obj.Type())
	}
	node, ok := proxy.Interface().(*sitter.Node)
	if !ok {
		return nil, object.Errorf("%s: expected *sitter.Node, got %T", fn, proxy.Interface())
	}
	return node, nil
}

// sourceLoader turns the first argument of a parse builtin into source
// bytes and the language implied by it.
type sourceLoader func(arg string) (src []byte, lang string, err error)

// newParseBuiltin returns a builtin taking (arg[, language]) that parses the
// loaded source into a proxied *sitter.Tree.
func newParseBuiltin(name string, reg *treeRegistry, load sourceLoader) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.Errorf("%s: expected 1 or 2 arguments, got %d", name, len(args))
		}
		arg, err := toString(args[0])
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		src, lang, err := load(arg)
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		if len(args) == 2 {
			if lang, err = toString(args[1]); err != nil {
				return object.Errorf("%s: language: %v", name, err)
			}
		}

		grammar, ok := ParserForLanguage(lang)
		if !ok {
			return object.Errorf("%s: unsupported language %q", name, lang)
		}
		parser := sitter.NewParser()
		defer parser.Close()
		parser.SetLanguage(grammar)

		tree, err := parser.ParseCtx(ctx, nil, src)
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		reg.remember(tree, src, grammar)

		proxy, err := object.NewProxy(tree)
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		return proxy
	})
}

// makeParseFn creates "parse", which reads and parses a file.
//
// parse(path[, language]) → Tree
func makeParseFn(reg *treeRegistry) *object.Builtin {
	return newParseBuiltin("parse", reg, func(path string) ([]byte, string, error) {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, "", err
		}
		lang, ok := LanguageForFile(path)
		if !ok {
			lang = DefaultLanguage
		}
		return src, lang, nil
	})
}

// makeParseSrcFn creates "parse_src", which parses source text.
//
// parse_src(source[, language]) → Tree
func makeParseSrcFn(reg *treeRegistry) *object.Builtin {
	return newParseBuiltin("parse_src", reg, func(src string) ([]byte, string, error) {
		return []byte(src), DefaultLanguage, nil
	})
}

// makeNodeTextFn creates "node_text". Risor proxies cannot pass []byte to
// Node.Content, so the source is supplied from the registry.
//
// node_text(node) → string
func makeNodeTextFn(reg *treeRegistry) *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		node, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		pt, ok := reg.lookup(node)
		if !ok {
			return object.Errorf("node_text: node does not belong to a parsed tree")
		}
		return object.NewString(node.Content(pt.src))
	})
}

// makeQueryFn creates "query". Each match is a map from capture name to
// node.
//
// query(pattern, node) → [{capture: Node}]
func makeQueryFn(reg *treeRegistry) *object.Builtin {
	return object.NewBuiltin("query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("query", 2, len(args))
		}
		pattern, err := toString(args[0])
		if err != nil {
			return object.Errorf("query: pattern: %v", err)
		}
		node, errObj := nodeArg("query", args[1])
		if errObj != nil {
			return errObj
		}
		pt, ok := reg.lookup(node)
		if !ok {
			return object.Errorf("query: node does not belong to a parsed tree")
		}

		q, err := sitter.NewQuery([]byte(pattern), pt.lang)
		if err != nil {
			return object.Errorf("query: invalid pattern: %v", err)
		}
		defer q.Close()
		cursor := sitter.NewQueryCursor()
		defer cursor.Close()
		cursor.Exec(q, node)

		matches := []object.Object{}
		for {
			m, ok := cursor.NextMatch()
			if !ok {
				break
			}
			m = cursor.FilterPredicates(m, pt.src)
			captures := make(map[string]object.Object, len(m.Captures))
			for _, c := range m.Captures {
				name := q.CaptureNameForId(c.Index)
				p, err := object.NewProxy(c.Node)
				if err != nil {
					return object.Errorf("query: capture %q: %v", name, err)
				}
				captures[name] = p
			}
			matches = append(matches, object.NewMap(captures))
		}
		return object.NewList(matches)
	})
}

// makeNodeChildFn creates "node_child". A missing field yields nil rather
// than a proxied nil pointer.
//
// node_child(node, field) → Node or nil
func makeNodeChildFn() *object.Builtin {
	return object.NewBuiltin("node_child", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("node_child", 2, len(args))
		}
		node, errObj := nodeArg("node_child", args[0])
		if errObj != nil {
			return errObj
		}
		field, err := toString(args[1])
		if err != nil {
			return object.Errorf("node_child: field: %v", err)
		}
		child := node.ChildByFieldName(field)
		if child == nil {
			return object.Nil
		}
		p, err := object.NewProxy(child)
		if err != nil {
			return object.Errorf("node_child: %v", err)
		}
		return p
	})
}

// scriptLog is exposed to scripts as log.Info, log.Warn and log.Error.
type scriptLog struct {
	logger *log.Logger
}

func (l *scriptLog) Info(msg string)  { l.logger.Info(msg, "source", "script") }
func (l *scriptLog) Warn(msg string)  { l.logger.Warn(msg, "source", "script") }
func (l *scriptLog) Error(msg string) { l.logger.Error(msg, "source", "script") }
