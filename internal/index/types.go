package index

import "slices"

// Location is a span inside a source file. Start and End are byte offsets
// (End exclusive); lines and columns are 0-based, columns counted in bytes.
type Location struct {
	File      string
	Start     int
	End       int
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Interface is a declared interface and the method names it requires.
// Methods holds each name once, in the order first seen in the body.
type Interface struct {
	Name     string
	Methods  []string
	Location Location
}

// Requires reports whether name is in the interface's method set.
func (i *Interface) Requires(name string) bool {
	return slices.Contains(i.Methods, name)
}

// Declaration is a method (ReceiverType set) or a free function
// (ReceiverType empty). Location covers the signature only.
type Declaration struct {
	Name         string
	ReceiverType string
	Location     Location
	IsRecursive  bool
}

// IsMethod reports whether the declaration has a receiver.
func (d Declaration) IsMethod() bool {
	return d.ReceiverType != ""
}

// ImplementationRecord is one concrete type satisfying one interface.
type ImplementationRecord struct {
	ConcreteType  string
	DeclaringFile string
}

// ImplementationSummary lists the concrete types that structurally satisfy
// an interface. Summaries only exist for Count > 0.
type ImplementationSummary struct {
	InterfaceName   string
	Count           int
	Implementations []ImplementationRecord
}
