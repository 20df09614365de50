// Package ifacemap keeps a structural index of a Go source tree: which
// interfaces are declared and what they require, which methods and functions
// exist and whether they call themselves, and which concrete types
// structurally satisfy which interfaces.
//
// # Pipeline
//
// Every rebuild starts from nothing:
//
//  1. Enumerate: list the source files under the root (git ls-files when
//     available, a directory walk otherwise) filtered by glob patterns.
//
//  2. Extract: read each file and pull out interface, method, function, and
//     struct declarations with pattern matching over the raw text. Files are
//     read in parallel; results are merged in enumeration order.
//
//  3. Resolve: compare every interface's method set against every concrete
//     type's method set. A type implements an interface when it has every
//     method the interface names.
//
//  4. Publish: the finished generation replaces the previous one in a single
//     atomic swap. Readers never see a half-built index.
//
// # Usage
//
//	e, err := ifacemap.New("path/to/project")
//	if err != nil { ... }
//
//	if _, err := e.Rebuild(ctx); err != nil { ... }
//
//	q := e.Query()
//	sum, ok := q.ImplementationSummary("Shape")
//
// # Continuous indexing
//
// [Engine.Trigger] requests a rebuild without blocking. While one rebuild is
// running at most one more is queued; further triggers are coalesced into it.
// [Engine.Run] drains the queue and [Engine.Watch] feeds it from file system
// events.
//
// # Accuracy
//
// Extraction is textual, not a Go parser. Satisfaction compares method names
// only, never signatures, and embedded interfaces are not expanded. The index
// is advisory: it is fast and tolerant of code that does not compile.
package ifacemap
