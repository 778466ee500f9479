// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docflow/internal/outline"
)

var flowCmd = &cobra.Command{
	Use:   "flow",
	Short: "Manage the documents of the active project",
	Long: `A flow is one document: its outline, the content of each section, and
the Outliner conversation that produced the outline. Commands act on the
active flow.`,
}

var flowNewCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "Create a flow and make it active",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, false, func(_ context.Context, w *workspace) error {
			id, err := w.engine.CreateFlow(strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created flow %s\n", id)
			return nil
		})
	},
}

var flowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the flows of the active project",
	RunE: func(cmd *cobra.Command, args []string) error {
		return view(cmd, func(_ context.Context, w *workspace) error {
			s := w.engine.Snapshot()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tTITLE\tSECTIONS")
			for _, f := range s.Project.Flows {
				mark := ""
				if f.ID == s.ActiveFlow {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", mark, f.ID, f.Title, outline.Count(f.Outline))
			}
			return tw.Flush()
		})
	},
}

var flowUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Make a flow active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, false, func(_ context.Context, w *workspace) error {
			return w.engine.SelectFlow(args[0])
		})
	},
}

var flowDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, false, func(_ context.Context, w *workspace) error {
			return w.engine.DeleteFlow(args[0])
		})
	},
}

func init() {
	flowCmd.AddCommand(flowNewCmd)
	flowCmd.AddCommand(flowListCmd)
	flowCmd.AddCommand(flowUseCmd)
	flowCmd.AddCommand(flowDeleteCmd)

	rootCmd.AddCommand(flowCmd)
}
