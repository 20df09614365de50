package extract

import (
	"regexp"
	"strings"
)

// IsRecursive reports whether body calls name. For methods (receiver set)
// calls qualified by the receiver type or by a conventional receiver alias
// count too. A bare pattern also matches selector calls such as x.name(),
// so calls to a same-named method on another value are reported.
func IsRecursive(body, name, receiver string) bool {
	if body == "" || name == "" {
		return false
	}
	return recursionPattern(name, receiver).MatchString(body)
}

func recursionPattern(name, receiver string) *regexp.Regexp {
	return regexp.MustCompile(strings.Join(recursionForms(name, receiver), "|"))
}

// recursionForms returns the call shapes counted as a self call: the bare
// name, then for methods the type-qualified call (Type.name, *Type.name,
// (*Type).name) and a call through a receiver alias.
func recursionForms(name, receiver string) []string {
	n := regexp.QuoteMeta(name)
	forms := []string{`\b` + n + `\s*\(`}
	if receiver != "" {
		r := regexp.QuoteMeta(receiver)
		forms = append(forms,
			`(?:\(\s*\*\s*|\*\s*|\b)`+r+`\s*\)?\s*\.\s*`+n+`\s*\(`,
			`\b(?:this|self|r|receiver)\s*\.\s*`+n+`\s*\(`,
		)
	}
	return forms
}
