package index

import (
	"slices"
	"time"
)

// Builder assembles a Generation from per-file results. Files must be added
// in enumeration order; later files win over earlier ones.
type Builder struct {
	gen *Generation
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{gen: emptyGeneration()}
}

// AddFile merges one file's interfaces and declarations.
//
// Interfaces are keyed by name: a later declaration replaces the earlier one
// but keeps its position. Declarations are keyed by (name, receiver): entries
// with that key from other files are dropped before this file's entries are
// appended. Duplicates within one file are all kept.
func (b *Builder) AddFile(path string, ifaces []Interface, decls []Declaration) {
	g := b.gen
	g.Files = append(g.Files, path)

	for i := range ifaces {
		iface := ifaces[i]
		iface.Methods = slices.Clone(iface.Methods)
		if _, ok := g.interfaces[iface.Name]; !ok {
			g.interfaceOrder = append(g.interfaceOrder, iface.Name)
		}
		g.interfaces[iface.Name] = &iface
	}

	for _, d := range decls {
		existing, ok := g.declarations[d.Name]
		if !ok {
			g.declOrder = append(g.declOrder, d.Name)
		}
		existing = slices.DeleteFunc(existing, func(e Declaration) bool {
			return e.ReceiverType == d.ReceiverType && e.Location.File != path
		})
		g.declarations[d.Name] = append(existing, d)
	}
}

// Interfaces returns the merged interfaces in index order.
func (b *Builder) Interfaces() []*Interface {
	return b.gen.Interfaces()
}

// SetImplementations installs the resolved summaries. Summaries with a zero
// count are dropped.
func (b *Builder) SetImplementations(sums []ImplementationSummary) {
	g := b.gen
	g.implementations = make(map[string]*ImplementationSummary, len(sums))
	g.implOrder = g.implOrder[:0]
	for i := range sums {
		sum := sums[i]
		if len(sum.Implementations) == 0 {
			continue
		}
		sum.Count = len(sum.Implementations)
		if _, ok := g.implementations[sum.InterfaceName]; !ok {
			g.implOrder = append(g.implOrder, sum.InterfaceName)
		}
		g.implementations[sum.InterfaceName] = &sum
	}
}

// Build finalizes the generation. The Builder must not be used afterwards.
func (b *Builder) Build(seq uint64) *Generation {
	g := b.gen
	g.Seq = seq
	g.BuiltAt = time.Now()
	b.gen = nil
	return g
}

// Restore rebuilds a Generation from already merged data, such as a loaded
// snapshot. Interfaces, declarations, and summaries are taken in the order
// given; declarations are grouped by name in first-seen order.
func Restore(seq uint64, builtAt time.Time, files []string, ifaces []Interface, decls []Declaration, sums []ImplementationSummary) *Generation {
	g := emptyGeneration()
	g.Seq = seq
	g.BuiltAt = builtAt
	g.Files = slices.Clone(files)
	for i := range ifaces {
		iface := ifaces[i]
		if _, ok := g.interfaces[iface.Name]; !ok {
			g.interfaceOrder = append(g.interfaceOrder, iface.Name)
		}
		g.interfaces[iface.Name] = &iface
	}
	for _, d := range decls {
		if _, ok := g.declarations[d.Name]; !ok {
			g.declOrder = append(g.declOrder, d.Name)
		}
		g.declarations[d.Name] = append(g.declarations[d.Name], d)
	}
	b := &Builder{gen: g}
	b.SetImplementations(sums)
	return g
}
