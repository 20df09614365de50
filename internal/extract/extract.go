// Package extract pulls interface, method, function, and struct declarations
// out of Go source text.
//
// Extraction is pattern based and works on raw bytes. It never fails: input
// that matches nothing yields an empty FileResult. Nested braces inside an
// interface body, embedded interfaces, and generics are handled only as far
// as the patterns allow.
package extract

import (
	"regexp"
	"strings"

	"github.com/jward/ifacemap/internal/index"
)

// FileResult is everything extracted from one file, in document order.
type FileResult struct {
	Path         string
	Interfaces   []index.Interface
	Declarations []index.Declaration
	Structs      []string
}

// Extractor turns one file's text into declarations.
type Extractor interface {
	Extract(path string, src []byte) *FileResult
}

var (
	interfaceRe       = regexp.MustCompile(`type\s+([a-zA-Z_][a-zA-Z0-9_]*)\s+interface\s*\{([^}]*)\}`)
	interfaceMethodRe = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_]*)\s*\([^)]*\)`)
	methodRe          = regexp.MustCompile(`func\s*\(([^)]+)\)\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\(`)
	functionRe        = regexp.MustCompile(`func\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\(`)
	structRe          = regexp.MustCompile(`type\s+(\w+)\s+struct`)
	typeParamsRe      = regexp.MustCompile(`\[[^\]]*\]`)
	receiverSplitRe   = regexp.MustCompile(`[\s*]+`)
)

// Patterns is the regular-expression Extractor.
type Patterns struct{}

// New returns the default Extractor.
func New() *Patterns {
	return &Patterns{}
}

// Extract scans src for interfaces, then methods, then free functions, then
// struct types. Each declaration is checked for self-recursion.
func (p *Patterns) Extract(path string, src []byte) *FileResult {
	res := &FileResult{Path: path}
	lines := newLineIndex(src)

	for _, m := range interfaceRe.FindAllSubmatchIndex(src, -1) {
		res.Interfaces = append(res.Interfaces, index.Interface{
			Name:     string(src[m[2]:m[3]]),
			Methods:  interfaceMethods(src[m[4]:m[5]]),
			Location: lines.location(path, m[0], m[1]),
		})
	}

	for _, m := range methodRe.FindAllSubmatchIndex(src, -1) {
		recv := ReceiverType(string(src[m[2]:m[3]]))
		name := string(src[m[4]:m[5]])
		res.Declarations = append(res.Declarations, index.Declaration{
			Name:         name,
			ReceiverType: recv,
			Location:     lines.location(path, m[0], m[1]),
			IsRecursive:  IsRecursive(Body(src, m[0]), name, recv),
		})
	}

	for _, m := range functionRe.FindAllSubmatchIndex(src, -1) {
		name := string(src[m[2]:m[3]])
		res.Declarations = append(res.Declarations, index.Declaration{
			Name:        name,
			Location:    lines.location(path, m[0], m[1]),
			IsRecursive: IsRecursive(Body(src, m[0]), name, ""),
		})
	}

	for _, m := range structRe.FindAllSubmatch(src, -1) {
		res.Structs = append(res.Structs, string(m[1]))
	}

	return res
}

// ReceiverType reduces a receiver clause such as "s *Stack[T]" to the bare
// type name "Stack".
func ReceiverType(clause string) string {
	clause = strings.TrimSpace(typeParamsRe.ReplaceAllString(clause, ""))
	parts := receiverSplitRe.Split(clause, -1)
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return clause
}

// interfaceMethods returns the distinct method names in an interface body.
// "func" is skipped so function-typed parameters are not taken as methods.
func interfaceMethods(body []byte) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range interfaceMethodRe.FindAllSubmatch(body, -1) {
		name := string(m[1])
		if name == "func" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
