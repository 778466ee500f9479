// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/pdiddy/docflow/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the active project as MCP tools over stdio",
	Long: `Mcp starts a Model Context Protocol server on standard input and output.
Its tools mirror the CLI commands and act on the active project; the project
is saved after every tool call that changes it. Logs go to standard error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		w, err := openWorkspace(ctx, true)
		if err != nil {
			return err
		}
		defer w.Close()

		conv, err := w.converter(ctx)
		if err != nil {
			return err
		}
		klog.V(1).Infof("mcp: serving project %q", w.engine.Snapshot().Project.Name)
		return mcpserver.Serve(mcpserver.New(w.engine, conv, w.saveSnapshot))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
