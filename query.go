package ifacemap

import (
	"slices"

	"github.com/jward/ifacemap/internal/index"
)

// generationReader is satisfied by *index.Index.
type generationReader interface {
	Current() *index.Generation
}

// QueryBuilder is the read API over the index. Every method reads the
// generation published at the moment of the call and reports absence with a
// false flag or an empty result, never an error. Returned values are copies.
type QueryBuilder struct {
	index generationReader
}

// Generation returns the generation queries currently read from.
func (q *QueryBuilder) Generation() *Generation {
	return q.index.Current()
}

// Interface returns the declaration of the named interface.
func (q *QueryBuilder) Interface(name string) (*Interface, bool) {
	iface, ok := q.index.Current().Interface(name)
	if !ok {
		return nil, false
	}
	out := *iface
	out.Methods = slices.Clone(iface.Methods)
	return &out, true
}

// Declarations returns every method and function called name, in index order.
func (q *QueryBuilder) Declarations(name string) []Declaration {
	return q.index.Current().Declarations(name)
}

// ImplementationSummary returns the concrete types implementing the named
// interface. It reports false for unknown interfaces and for interfaces
// nothing implements.
func (q *QueryBuilder) ImplementationSummary(name string) (*ImplementationSummary, bool) {
	sum, ok := q.index.Current().Implementation(name)
	if !ok {
		return nil, false
	}
	out := *sum
	out.Implementations = slices.Clone(sum.Implementations)
	return &out, true
}

// InterfacesRequiring returns the interfaces whose method set includes method.
func (q *QueryBuilder) InterfacesRequiring(method string) []string {
	return q.index.Current().InterfacesRequiring(method)
}

// MethodsOf returns the method names required by the named interface.
func (q *QueryBuilder) MethodsOf(name string) []string {
	return q.index.Current().MethodsOf(name)
}

// Interfaces returns every interface name in index order.
func (q *QueryBuilder) Interfaces() []string {
	return q.index.Current().InterfaceNames()
}

// InterfacesImplementedBy returns the interfaces that typeName satisfies.
func (q *QueryBuilder) InterfacesImplementedBy(typeName string) []string {
	var out []string
	for _, sum := range q.index.Current().Implementations() {
		for _, rec := range sum.Implementations {
			if rec.ConcreteType == typeName {
				out = append(out, sum.InterfaceName)
				break
			}
		}
	}
	return out
}

// InterfaceLocation is the go-to target for an interface name.
func (q *QueryBuilder) InterfaceLocation(name string) (Location, bool) {
	iface, ok := q.index.Current().Interface(name)
	if !ok {
		return Location{}, false
	}
	return iface.Location, true
}

// DeclarationLocation is the go-to target for a method on receiver, or for a
// free function when receiver is empty. When several declarations share the
// pair, the last one in document order wins.
func (q *QueryBuilder) DeclarationLocation(name, receiver string) (Location, bool) {
	d, ok := q.index.Current().LastDeclaration(name, receiver)
	if !ok {
		return Location{}, false
	}
	return d.Location, true
}

// RecursiveDeclarations returns every declaration flagged as calling itself,
// grouped by name in index order.
func (q *QueryBuilder) RecursiveDeclarations() []Declaration {
	gen := q.index.Current()
	var out []Declaration
	for _, name := range gen.DeclarationNames() {
		for _, d := range gen.Declarations(name) {
			if d.IsRecursive {
				out = append(out, d)
			}
		}
	}
	return out
}
