package store

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/jward/ifacemap/internal/index"
)

// Fingerprint computes a deterministic hash of a generation's contents.
// Covers interfaces, declarations, and implementations. Seq and BuiltAt do
// NOT affect the hash, so two rebuilds of an unchanged tree agree.
func Fingerprint(gen *index.Generation) string {
	h := sha256.New()

	for _, iface := range gen.Interfaces() {
		methods := make([]string, len(iface.Methods))
		copy(methods, iface.Methods)
		sort.Strings(methods)
		fmt.Fprintf(h, "iface:%s:%s:%s\n", iface.Name, strings.Join(methods, ","), locKey(iface.Location))
	}

	names := gen.DeclarationNames()
	sort.Strings(names)
	for _, name := range names {
		for _, d := range gen.Declarations(name) {
			fmt.Fprintf(h, "decl:%s:%s:%v:%s\n", d.Name, d.ReceiverType, d.IsRecursive, locKey(d.Location))
		}
	}

	for _, sum := range gen.Implementations() {
		fmt.Fprintf(h, "impl:%s:%d\n", sum.InterfaceName, sum.Count)
		for _, rec := range sum.Implementations {
			fmt.Fprintf(h, "  %s:%s\n", rec.ConcreteType, rec.DeclaringFile)
		}
	}

	return fmt.Sprintf("%x", h.Sum(nil))
}

func locKey(l index.Location) string {
	return fmt.Sprintf("%s@%d-%d", l.File, l.Start, l.End)
}
