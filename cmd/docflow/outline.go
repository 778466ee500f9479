// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docflow/internal/outline"
	"github.com/pdiddy/docflow/pkg/types"
)

var outlineCmd = &cobra.Command{
	Use:   "outline",
	Short: "Draft, edit, and finalize the outline of the active flow",
	Long: `The outline starts as a Markdown draft written with the Outliner agent or
by hand. Finalizing parses the draft into the numbered section tree that the
section commands work on.`,
}

var outlineChatCmd = &cobra.Command{
	Use:   "chat <instruction>",
	Short: "Ask the Outliner to create or revise the draft",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, w *workspace) error {
			draft, err := w.engine.SubmitOutlinerCommand(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), draft)
			return nil
		})
	},
}

var outlineEditCmd = &cobra.Command{
	Use:   "edit [file]",
	Short: "Replace the draft with a Markdown outline",
	Long: `Edit replaces the outline draft with the contents of file, or of standard
input when no file is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		return run(cmd, false, func(_ context.Context, w *workspace) error {
			return w.engine.EditOutlineDraft(text)
		})
	},
}

var outlineFinalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Parse the draft into the section tree",
	Long: `Finalize sends the draft to the parser agent and replaces the section tree
with the result. With --local the draft is parsed without a model. On failure
the draft and the previous tree are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		local, _ := cmd.Flags().GetBool("local")
		return run(cmd, !local, func(ctx context.Context, w *workspace) error {
			var (
				tree []types.OutlineNode
				err  error
			)
			if local {
				tree, err = w.engine.FinalizeOutlineLocal()
			} else {
				tree, err = w.engine.FinalizeOutline(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), outline.RenderMarkdown(tree))
			return nil
		})
	},
}

var outlineShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the section tree, or the draft with --draft",
	RunE: func(cmd *cobra.Command, args []string) error {
		showDraft, _ := cmd.Flags().GetBool("draft")
		return view(cmd, func(_ context.Context, w *workspace) error {
			s := w.engine.Snapshot()
			f, err := s.Active()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if showDraft {
				fmt.Fprintln(out, f.OutlineDraft)
				return nil
			}
			if !f.Finalized() {
				fmt.Fprintln(out, "Outline not finalized. Draft:")
				fmt.Fprintln(out, f.OutlineDraft)
				return nil
			}
			outline.Walk(f.Outline, func(n types.OutlineNode) {
				mark := " "
				if n.ID == s.Selected {
					mark = ">"
				}
				fmt.Fprintf(out, "%s %s%s [%s]\n", mark, strings.Repeat("  ", n.Level), n.Title, n.Status)
			})
			return nil
		})
	},
}

var outlineImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Replace the section tree with an outline YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := outline.LoadYAML(args[0])
		if err != nil {
			return err
		}
		return run(cmd, false, func(_ context.Context, w *workspace) error {
			return w.engine.ImportOutline(tree)
		})
	},
}

var outlineExportCmd = &cobra.Command{
	Use:   "export <file.yaml>",
	Short: "Write the section tree to an outline YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return view(cmd, func(_ context.Context, w *workspace) error {
			f, err := w.engine.Snapshot().Active()
			if err != nil {
				return err
			}
			if !f.Finalized() {
				return fmt.Errorf("nothing to export: outline has not been finalized")
			}
			if err := outline.SaveYAML(args[0], f.Outline); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d sections to %s\n", outline.Count(f.Outline), args[0])
			return nil
		})
	},
}

// readInput returns the contents of args[0], or standard input.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		data, err := os.ReadFile(args[0])
		return string(data), err
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	return string(data), err
}

func init() {
	outlineFinalizeCmd.Flags().Bool("local", false, "parse the draft without a model")
	outlineShowCmd.Flags().Bool("draft", false, "print the Markdown draft")

	outlineCmd.AddCommand(outlineChatCmd)
	outlineCmd.AddCommand(outlineEditCmd)
	outlineCmd.AddCommand(outlineFinalizeCmd)
	outlineCmd.AddCommand(outlineShowCmd)
	outlineCmd.AddCommand(outlineImportCmd)
	outlineCmd.AddCommand(outlineExportCmd)

	rootCmd.AddCommand(outlineCmd)
}
