package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/ifacemap"
)

var flagRoot string

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the interface index",
	Long: "Run queries against the index. With --db the queries read an exported snapshot; otherwise the tree is indexed in-process first. " +
		"All line and column numbers are 0-based.",
}

func init() {
	queryCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "tree to index when --db is not set (default: enclosing repository)")

	queryCmd.AddCommand(interfacesCmd)
	queryCmd.AddCommand(interfaceCmd)
	queryCmd.AddCommand(declarationsCmd)
	queryCmd.AddCommand(implementationsCmd)
	queryCmd.AddCommand(implementedByCmd)
	queryCmd.AddCommand(requiringCmd)
	queryCmd.AddCommand(methodsCmd)
	queryCmd.AddCommand(recursiveCmd)
	queryCmd.AddCommand(gotoInterfaceCmd)
	queryCmd.AddCommand(gotoMethodCmd)
}

// --- Helpers ---

// openQuery returns a QueryBuilder over the --db snapshot, or over a fresh
// in-process index of --root. The returned func releases resources.
func openQuery(ctx context.Context) (*ifacemap.QueryBuilder, func(), error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if flagDB != "" {
		snap, err := ifacemap.OpenSnapshot(ctx, flagDB)
		if err != nil {
			return nil, nil, err
		}
		return snap.Query(), func() { snap.Close() }, nil
	}

	var args []string
	if flagRoot != "" {
		args = []string{flagRoot}
	}
	root, err := resolveTargetDir(args)
	if err != nil {
		return nil, nil, err
	}
	engine, _, err := newEngine(root)
	if err != nil {
		return nil, nil, err
	}
	if _, err := engine.Rebuild(ctx); err != nil {
		return nil, nil, err
	}
	return engine.Query(), func() {}, nil
}

// queryRunE wraps a query body with QueryBuilder setup and error output.
func queryRunE(command string, fn func(q *ifacemap.QueryBuilder, args []string) (CLIResult, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		q, release, err := openQuery(cmd.Context())
		if err != nil {
			return outputError(cmd, command, err)
		}
		defer release()

		result, err := fn(q, args)
		if err != nil {
			return outputError(cmd, command, err)
		}
		result.Command = command
		return outputResult(cmd, result)
	}
}

func stringList(ss []string) CLIResult {
	if ss == nil {
		ss = []string{}
	}
	n := len(ss)
	return CLIResult{Results: ss, TotalCount: &n}
}

func outputResult(cmd *cobra.Command, result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(cmd.OutOrStdout(), result)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(cmd *cobra.Command, command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// --- Commands ---

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List every indexed interface",
	Args:  cobra.NoArgs,
	RunE: queryRunE("interfaces", func(q *ifacemap.QueryBuilder, _ []string) (CLIResult, error) {
		var out []CLIInterface
		for _, name := range q.Interfaces() {
			if iface, ok := q.Interface(name); ok {
				out = append(out, toCLIInterface(iface))
			}
		}
		if out == nil {
			out = []CLIInterface{}
		}
		n := len(out)
		return CLIResult{Results: out, TotalCount: &n}, nil
	}),
}

var interfaceCmd = &cobra.Command{
	Use:   "interface <name>",
	Short: "Show an interface's methods and location",
	Args:  cobra.ExactArgs(1),
	RunE: queryRunE("interface", func(q *ifacemap.QueryBuilder, args []string) (CLIResult, error) {
		iface, ok := q.Interface(args[0])
		if !ok {
			return CLIResult{}, nil
		}
		return CLIResult{Results: toCLIInterface(iface)}, nil
	}),
}

var declarationsCmd = &cobra.Command{
	Use:   "declarations <name>",
	Short: "List methods and functions with the given name",
	Args:  cobra.ExactArgs(1),
	RunE: queryRunE("declarations", func(q *ifacemap.QueryBuilder, args []string) (CLIResult, error) {
		out := toCLIDeclarations(q.Declarations(args[0]))
		n := len(out)
		return CLIResult{Results: out, TotalCount: &n}, nil
	}),
}

var implementationsCmd = &cobra.Command{
	Use:   "implementations <interface>",
	Short: "List the concrete types that structurally satisfy an interface",
	Long:  "Matching compares method names only. Signatures are not checked and embedded interfaces are not expanded.",
	Args:  cobra.ExactArgs(1),
	RunE: queryRunE("implementations", func(q *ifacemap.QueryBuilder, args []string) (CLIResult, error) {
		sum, ok := q.ImplementationSummary(args[0])
		if !ok {
			return CLIResult{}, nil
		}
		return CLIResult{Results: toCLISummary(sum)}, nil
	}),
}

var implementedByCmd = &cobra.Command{
	Use:   "implemented-by <type>",
	Short: "List the interfaces a concrete type satisfies",
	Args:  cobra.ExactArgs(1),
	RunE: queryRunE("implemented-by", func(q *ifacemap.QueryBuilder, args []string) (CLIResult, error) {
		return stringList(q.InterfacesImplementedBy(args[0])), nil
	}),
}

var requiringCmd = &cobra.Command{
	Use:   "requiring <method>",
	Short: "List the interfaces whose method set includes a method",
	Args:  cobra.ExactArgs(1),
	RunE: queryRunE("requiring", func(q *ifacemap.QueryBuilder, args []string) (CLIResult, error) {
		return stringList(q.InterfacesRequiring(args[0])), nil
	}),
}

var methodsCmd = &cobra.Command{
	Use:   "methods <interface>",
	Short: "List the methods an interface requires",
	Args:  cobra.ExactArgs(1),
	RunE: queryRunE("methods", func(q *ifacemap.QueryBuilder, args []string) (CLIResult, error) {
		return stringList(q.MethodsOf(args[0])), nil
	}),
}

var recursiveCmd = &cobra.Command{
	Use:   "recursive",
	Short: "List methods and functions that call themselves",
	Args:  cobra.NoArgs,
	RunE: queryRunE("recursive", func(q *ifacemap.QueryBuilder, _ []string) (CLIResult, error) {
		out := toCLIDeclarations(q.RecursiveDeclarations())
		n := len(out)
		return CLIResult{Results: out, TotalCount: &n}, nil
	}),
}

var gotoInterfaceCmd = &cobra.Command{
	Use:   "goto-interface <name>",
	Short: "Print the location of an interface declaration",
	Args:  cobra.ExactArgs(1),
	RunE: queryRunE("goto-interface", func(q *ifacemap.QueryBuilder, args []string) (CLIResult, error) {
		loc, ok := q.InterfaceLocation(args[0])
		if !ok {
			return CLIResult{}, nil
		}
		return CLIResult{Results: []CLILocation{toCLILocation(loc)}}, nil
	}),
}

var gotoMethodCmd = &cobra.Command{
	Use:   "goto-method <name> [receiver]",
	Short: "Print the location of a method on a receiver type, or of a function",
	Long:  "Without a receiver the free function with that name is located. When the pair is declared more than once the last declaration wins.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: queryRunE("goto-method", func(q *ifacemap.QueryBuilder, args []string) (CLIResult, error) {
		receiver := ""
		if len(args) == 2 {
			receiver = args[1]
		}
		loc, ok := q.DeclarationLocation(args[0], receiver)
		if !ok {
			return CLIResult{}, nil
		}
		return CLIResult{Results: []CLILocation{toCLILocation(loc)}}, nil
	}),
}
