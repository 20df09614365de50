// Package resolve computes which concrete types structurally satisfy which
// interfaces.
//
// Matching compares method names only. Parameter and result types are
// ignored, so a reported implementation is a hint, not a guarantee that the
// type satisfies the interface under the Go type checker.
package resolve

import (
	"github.com/jward/ifacemap/internal/index"
)

type typeInfo struct {
	methods     map[string]bool
	structFile  string
	methodsFile string
}

// TypeTable collects the method set and declaring file of every concrete
// type seen during a rebuild. Files must be added in enumeration order.
type TypeTable struct {
	types map[string]*typeInfo
	order []string
}

// NewTypeTable returns an empty table.
func NewTypeTable() *TypeTable {
	return &TypeTable{types: make(map[string]*typeInfo)}
}

func (tt *TypeTable) info(name string) *typeInfo {
	ti, ok := tt.types[name]
	if !ok {
		ti = &typeInfo{}
		tt.types[name] = ti
		tt.order = append(tt.order, name)
	}
	return ti
}

// AddFile records one file's struct declarations and methods. Methods are
// merged into the type's set across files, except that a file re-declaring
// "type T struct" after an earlier file did replaces T's set with the
// methods this file declares.
func (tt *TypeTable) AddFile(path string, structs []string, decls []index.Declaration) {
	for _, name := range structs {
		ti := tt.info(name)
		if ti.structFile != "" && ti.structFile != path {
			ti.methods = nil
		}
		ti.structFile = path
	}
	for _, d := range decls {
		if !d.IsMethod() {
			continue
		}
		ti := tt.info(d.ReceiverType)
		if ti.methods == nil {
			ti.methods = make(map[string]bool)
		}
		ti.methods[d.Name] = true
		ti.methodsFile = path
	}
}

// Types returns concrete type names in first-encounter order.
func (tt *TypeTable) Types() []string {
	return append([]string(nil), tt.order...)
}

// Methods returns the method names recorded for a type.
func (tt *TypeTable) Methods(name string) []string {
	ti, ok := tt.types[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(ti.methods))
	for m := range ti.methods {
		out = append(out, m)
	}
	return out
}

// DeclaringFile returns the last file declaring "type name struct", or the
// last file that contributed methods when no struct declaration was seen.
func (tt *TypeTable) DeclaringFile(name string) string {
	ti, ok := tt.types[name]
	if !ok {
		return ""
	}
	if ti.structFile != "" {
		return ti.structFile
	}
	return ti.methodsFile
}

// Resolve returns one summary per interface with at least one implementer,
// in interface order. Implementations follow type first-encounter order.
// Only types that receive at least one method are candidates, so a struct
// without methods never implements anything, not even an empty interface.
func Resolve(ifaces []*index.Interface, tt *TypeTable) []index.ImplementationSummary {
	var receivers []int
	postings := make(map[string][]int)
	for i, name := range tt.order {
		methods := tt.types[name].methods
		if len(methods) == 0 {
			continue
		}
		receivers = append(receivers, i)
		for m := range methods {
			postings[m] = append(postings[m], i)
		}
	}

	var out []index.ImplementationSummary
	for _, iface := range ifaces {
		var recs []index.ImplementationRecord
		for _, i := range candidates(iface.Methods, postings, receivers) {
			name := tt.order[i]
			if satisfies(tt.types[name].methods, iface.Methods) {
				recs = append(recs, index.ImplementationRecord{
					ConcreteType:  name,
					DeclaringFile: tt.DeclaringFile(name),
				})
			}
		}
		if len(recs) > 0 {
			out = append(out, index.ImplementationSummary{
				InterfaceName:   iface.Name,
				Count:           len(recs),
				Implementations: recs,
			})
		}
	}
	return out
}

// candidates returns the type positions worth checking: every receiver type
// for an empty interface, otherwise the posting list of the rarest method.
func candidates(methods []string, postings map[string][]int, receivers []int) []int {
	if len(methods) == 0 {
		return receivers
	}
	best := postings[methods[0]]
	for _, m := range methods[1:] {
		if p := postings[m]; len(p) < len(best) {
			best = p
		}
	}
	return best
}

func satisfies(have map[string]bool, want []string) bool {
	for _, m := range want {
		if !have[m] {
			return false
		}
	}
	return true
}
