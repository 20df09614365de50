package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

var validFormats = []string{"json", "text"}

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine, loc.StartCol)
	}
}

// formatInterfacesText formats interfaces as aligned columns.
func formatInterfacesText(w io.Writer, ifaces []CLIInterface) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMETHODS\tFILE\tLINE")
	for _, i := range ifaces {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", i.Name, strings.Join(i.Methods, ","), i.Location.File, i.Location.StartLine)
	}
	tw.Flush()
}

// formatDeclarationsText formats declarations as aligned columns.
func formatDeclarationsText(w io.Writer, decls []CLIDeclaration) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tRECEIVER\tRECURSIVE\tFILE\tLINE")
	for _, d := range decls {
		recv := d.ReceiverType
		if recv == "" {
			recv = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%d\n", d.Name, recv, d.IsRecursive, d.Location.File, d.Location.StartLine)
	}
	tw.Flush()
}

// formatSummaryText formats an implementation summary.
func formatSummaryText(w io.Writer, s CLIImplementationSummary) {
	fmt.Fprintf(w, "%s: %d implementation(s)\n", s.Interface, s.Count)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, impl := range s.Implementations {
		fmt.Fprintf(tw, "  %s\t%s\n", impl.Type, impl.File)
	}
	tw.Flush()
}

// formatIndexStatsText formats rebuild statistics.
func formatIndexStatsText(w io.Writer, s CLIIndexStats) {
	fmt.Fprintf(w, "Indexed %s in %dms (generation %d)\n", s.Root, s.DurationMS, s.Seq)
	fmt.Fprintf(w, "  files:           %d\n", s.Files)
	fmt.Fprintf(w, "  interfaces:      %d\n", s.Interfaces)
	fmt.Fprintf(w, "  declarations:    %d\n", s.Declarations)
	fmt.Fprintf(w, "  implemented:     %d\n", s.Implementations)
	for _, p := range s.Skipped {
		fmt.Fprintf(w, "  skipped:         %s\n", p)
	}
	if s.Database != "" {
		state := "unchanged"
		if s.Written {
			state = "written"
		}
		fmt.Fprintf(w, "Database: %s (%s)\n", s.Database, state)
	}
}

// outputResultText writes result in the human-readable format.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLIInterface:
		formatInterfacesText(w, v)
	case CLIInterface:
		formatInterfacesText(w, []CLIInterface{v})
	case []CLIDeclaration:
		formatDeclarationsText(w, v)
	case CLIImplementationSummary:
		formatSummaryText(w, v)
	case CLIIndexStats:
		formatIndexStatsText(w, v)
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
	case nil:
		// Nothing found.
	default:
		fmt.Fprintf(w, "%v\n", v)
	}
	return nil
}

func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
