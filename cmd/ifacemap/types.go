package main

import "github.com/jward/ifacemap"

// CLIResult is the top-level JSON envelope for every command.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLILocation is a JSON-friendly source span. Lines and columns are 0-based.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLIInterface is a JSON-friendly interface declaration.
type CLIInterface struct {
	Name     string      `json:"name"`
	Methods  []string    `json:"methods"`
	Location CLILocation `json:"location"`
}

// CLIDeclaration is a JSON-friendly method or function declaration.
type CLIDeclaration struct {
	Name         string      `json:"name"`
	ReceiverType string      `json:"receiver_type,omitempty"`
	IsRecursive  bool        `json:"is_recursive"`
	Location     CLILocation `json:"location"`
}

// CLIImplementation is one concrete type satisfying an interface.
type CLIImplementation struct {
	Type string `json:"type"`
	File string `json:"file"`
}

// CLIImplementationSummary lists an interface's implementers.
type CLIImplementationSummary struct {
	Interface       string              `json:"interface"`
	Count           int                 `json:"count"`
	Implementations []CLIImplementation `json:"implementations"`
}

// CLIIndexStats summarizes one rebuild.
type CLIIndexStats struct {
	Root            string   `json:"root"`
	Seq             uint64   `json:"seq"`
	Files           int      `json:"files"`
	Skipped         []string `json:"skipped,omitempty"`
	Interfaces      int      `json:"interfaces"`
	Declarations    int      `json:"declarations"`
	Implementations int      `json:"implementations"`
	DurationMS      int64    `json:"duration_ms"`
	Database        string   `json:"database,omitempty"`
	Written         bool     `json:"written,omitempty"`
}

func toCLILocation(l ifacemap.Location) CLILocation {
	return CLILocation{
		File:      l.File,
		StartLine: l.StartLine,
		StartCol:  l.StartCol,
		EndLine:   l.EndLine,
		EndCol:    l.EndCol,
	}
}

func toCLIInterface(i *ifacemap.Interface) CLIInterface {
	methods := i.Methods
	if methods == nil {
		methods = []string{}
	}
	return CLIInterface{Name: i.Name, Methods: methods, Location: toCLILocation(i.Location)}
}

func toCLIDeclarations(decls []ifacemap.Declaration) []CLIDeclaration {
	out := make([]CLIDeclaration, 0, len(decls))
	for _, d := range decls {
		out = append(out, CLIDeclaration{
			Name:         d.Name,
			ReceiverType: d.ReceiverType,
			IsRecursive:  d.IsRecursive,
			Location:     toCLILocation(d.Location),
		})
	}
	return out
}

func toCLISummary(s *ifacemap.ImplementationSummary) CLIImplementationSummary {
	impls := make([]CLIImplementation, 0, len(s.Implementations))
	for _, rec := range s.Implementations {
		impls = append(impls, CLIImplementation{Type: rec.ConcreteType, File: rec.DeclaringFile})
	}
	return CLIImplementationSummary{Interface: s.InterfaceName, Count: s.Count, Implementations: impls}
}

func toCLIIndexStats(root string, s *ifacemap.RebuildStats) CLIIndexStats {
	var skipped []string
	for _, fe := range s.Skipped {
		skipped = append(skipped, fe.Path)
	}
	return CLIIndexStats{
		Root:            root,
		Seq:             s.Seq,
		Files:           s.Files,
		Skipped:         skipped,
		Interfaces:      s.Interfaces,
		Declarations:    s.Declarations,
		Implementations: s.Implementations,
		DurationMS:      s.Duration.Milliseconds(),
	}
}
