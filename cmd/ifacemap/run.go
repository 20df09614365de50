package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jward/ifacemap"
)

var runCmd = &cobra.Command{
	Use:   "run <script.risor> [path]",
	Short: "Run a Risor script against the index",
	Long: "Runs a Risor script with the index query functions as globals and prints the script's final value. " +
		"With --db the script reads the snapshot and may also call db_query; otherwise the tree is indexed first.",
	Args: cobra.RangeArgs(1, 2),
	RunE: runScript,
}

func runScript(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	script := args[0]

	if flagDB != "" {
		snap, err := ifacemap.OpenSnapshot(ctx, flagDB)
		if err != nil {
			return outputError(cmd, "run", err)
		}
		defer snap.Close()

		result, err := snap.RunScript(ctx, script)
		if err != nil {
			return outputError(cmd, "run", err)
		}
		return outputResult(cmd, CLIResult{Command: "run", Results: result})
	}

	root, err := resolveTargetDir(args[1:])
	if err != nil {
		return outputError(cmd, "run", err)
	}
	engine, _, err := newEngine(root)
	if err != nil {
		return outputError(cmd, "run", err)
	}
	if _, err := engine.Rebuild(ctx); err != nil {
		return outputError(cmd, "run", err)
	}
	result, err := engine.RunScript(ctx, script)
	if err != nil {
		return outputError(cmd, "run", err)
	}
	return outputResult(cmd, CLIResult{Command: "run", Results: result})
}
