package index

import (
	"slices"
	"time"
)

// Generation is one complete, immutable result of a rebuild. It is built by
// a Builder and never mutated after Build returns.
type Generation struct {
	Seq     uint64
	BuiltAt time.Time
	Files   []string

	interfaces      map[string]*Interface
	interfaceOrder  []string
	declarations    map[string][]Declaration
	declOrder       []string
	implementations map[string]*ImplementationSummary
	implOrder       []string
}

// emptyGeneration is what readers see in the Empty state.
func emptyGeneration() *Generation {
	return &Generation{
		interfaces:      map[string]*Interface{},
		declarations:    map[string][]Declaration{},
		implementations: map[string]*ImplementationSummary{},
	}
}

// IsEmpty reports whether the generation holds no interfaces, declarations,
// or implementation summaries.
func (g *Generation) IsEmpty() bool {
	return len(g.interfaces) == 0 && len(g.declarations) == 0 && len(g.implementations) == 0
}

// Interface returns the interface with the given name.
func (g *Generation) Interface(name string) (*Interface, bool) {
	iface, ok := g.interfaces[name]
	return iface, ok
}

// Interfaces returns all interfaces in index order.
func (g *Generation) Interfaces() []*Interface {
	out := make([]*Interface, 0, len(g.interfaceOrder))
	for _, name := range g.interfaceOrder {
		out = append(out, g.interfaces[name])
	}
	return out
}

// Declarations returns a copy of the declarations sharing name.
func (g *Generation) Declarations(name string) []Declaration {
	return slices.Clone(g.declarations[name])
}

// DeclarationNames returns every declared name in index order.
func (g *Generation) DeclarationNames() []string {
	return slices.Clone(g.declOrder)
}

// Implementation returns the summary for an interface with at least one
// implementer.
func (g *Generation) Implementation(name string) (*ImplementationSummary, bool) {
	sum, ok := g.implementations[name]
	return sum, ok
}

// Implementations returns all summaries in index order.
func (g *Generation) Implementations() []*ImplementationSummary {
	out := make([]*ImplementationSummary, 0, len(g.implOrder))
	for _, name := range g.implOrder {
		out = append(out, g.implementations[name])
	}
	return out
}

// Counts returns the number of interfaces, declared names, and summaries.
func (g *Generation) Counts() (interfaces, declarations, implementations int) {
	return len(g.interfaces), len(g.declarations), len(g.implementations)
}

// InterfacesRequiring returns, in index order, the names of interfaces whose
// method set contains method.
func (g *Generation) InterfacesRequiring(method string) []string {
	var out []string
	for _, name := range g.interfaceOrder {
		if g.interfaces[name].Requires(method) {
			out = append(out, name)
		}
	}
	return out
}

// MethodsOf returns the method names of an interface, or nil when unknown.
func (g *Generation) MethodsOf(name string) []string {
	iface, ok := g.interfaces[name]
	if !ok {
		return nil
	}
	return slices.Clone(iface.Methods)
}

// InterfaceNames returns every interface name in index order.
func (g *Generation) InterfaceNames() []string {
	return slices.Clone(g.interfaceOrder)
}

// LastDeclaration returns the last declaration, in document order, with the
// exact name and receiver. An empty receiver selects free functions.
func (g *Generation) LastDeclaration(name, receiver string) (Declaration, bool) {
	decls := g.declarations[name]
	for i := len(decls) - 1; i >= 0; i-- {
		if decls[i].ReceiverType == receiver {
			return decls[i], true
		}
	}
	return Declaration{}, false
}
