// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docflow/internal/workflow"
)

var sectionCmd = &cobra.Command{
	Use:   "section",
	Short: "Select, write, and commit sections of the active flow",
	Long: `Section commands work on the finalized outline of the active flow. The
selected section is remembered between invocations.

Files passed with --file are attached to the section for that one command
only; they are never saved.`,
}

var sectionSelectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Select a section, tailoring its Writer persona on first visit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, w *workspace) error {
			return w.engine.SelectSection(ctx, args[0])
		})
	},
}

var sectionDeselectCmd = &cobra.Command{
	Use:   "deselect",
	Short: "Clear the selection",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, false, func(_ context.Context, w *workspace) error {
			return w.engine.DeselectSection()
		})
	},
}

var sectionShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a section's content, references, and research",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		history, _ := cmd.Flags().GetBool("history")
		return view(cmd, func(_ context.Context, w *workspace) error {
			s := w.engine.Snapshot()
			f, err := s.Active()
			if err != nil {
				return err
			}
			id := s.Selected
			if len(args) == 1 {
				id = args[0]
			}
			if id == "" {
				return fmt.Errorf("no section selected: %w", workflow.ErrNoSection)
			}
			n, err := workflow.Node(f, id)
			if err != nil {
				return err
			}
			c := workflow.Sections(f).Get(id)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s [%s]\n", n.Title, n.Status)
			if len(c.ContextIDs) > 0 {
				fmt.Fprintf(out, "references: %s\n", strings.Join(c.ContextIDs, ", "))
			}
			for _, r := range c.ResearchResults {
				fmt.Fprintf(out, "research: %s <%s>\n", r.Title, r.URL)
			}
			if history {
				for _, m := range c.Messages {
					fmt.Fprintf(out, "\n[%s]\n%s\n", m.Sender, m.Text)
				}
				return nil
			}
			if c.HasContent() {
				fmt.Fprintf(out, "\n%s\n", c.Content)
			}
			return nil
		})
	},
}

var sectionGenerateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Continue the selected section's Writer conversation",
	Long: `Generate sends prompt to the Writer for the selected section, or asks for a
complete draft when no prompt is given. --ref replaces the sections sent as
reference context; without it the section's saved references are used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, _ := cmd.Flags().GetStringSlice("file")
		var refs []string
		if cmd.Flags().Changed("ref") {
			refs, _ = cmd.Flags().GetStringSlice("ref")
			if refs == nil {
				refs = []string{}
			}
		}
		return run(cmd, true, func(ctx context.Context, w *workspace) error {
			if err := w.attach(cmd, w.engine.Snapshot().Selected, paths); err != nil {
				return err
			}
			content, err := w.engine.GenerateForSection(ctx, strings.Join(args, " "), refs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), content)
			return nil
		})
	},
}

var sectionDraftCmd = &cobra.Command{
	Use:   "draft <id> [instruction]",
	Short: "Write a fresh single-turn draft of one section",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, _ := cmd.Flags().GetStringSlice("file")
		return run(cmd, true, func(ctx context.Context, w *workspace) error {
			if err := w.attach(cmd, args[0], paths); err != nil {
				return err
			}
			content, err := w.engine.DraftSection(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), content)
			return nil
		})
	},
}

var sectionDraftAllCmd = &cobra.Command{
	Use:   "draft-all",
	Short: "Draft every section that has no content",
	Long: `Draft-all writes an initial draft for each empty section of the active
flow, a few at a time. A failed section is reported and the rest continue.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("concurrency")
		return run(cmd, true, func(ctx context.Context, w *workspace) error {
			if limit <= 0 {
				limit = w.cfg.DraftConcurrency
			}
			summary, err := w.engine.DraftAll(ctx, limit, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "drafted %d, skipped %d, failed %d\n",
				summary.Drafted, summary.Skipped, summary.Failed)
			if summary.HasFailures() {
				return fmt.Errorf("%d section(s) failed drafting", summary.Failed)
			}
			return nil
		})
	},
}

var sectionCommitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Mark the selected section completed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, false, func(_ context.Context, w *workspace) error {
			return w.engine.CommitSection()
		})
	},
}

var sectionRefsCmd = &cobra.Command{
	Use:   "refs <ref-id>...",
	Short: "Add or remove sections sent as reference context",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		remove, _ := cmd.Flags().GetBool("remove")
		target, _ := cmd.Flags().GetString("section")
		return run(cmd, false, func(_ context.Context, w *workspace) error {
			id := target
			if id == "" {
				id = w.engine.Snapshot().Selected
			}
			if id == "" {
				return fmt.Errorf("no section selected: %w", workflow.ErrNoSection)
			}
			for _, ref := range args {
				if err := w.engine.ToggleContextReference(id, ref, !remove); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var sectionResetPromptCmd = &cobra.Command{
	Use:   "reset-prompt [id]",
	Short: "Discard a section's tailored Writer persona",
	Long: `Reset-prompt clears the cached Writer persona so it is tailored again the
next time the section is selected or drafted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, false, func(_ context.Context, w *workspace) error {
			id := w.engine.Snapshot().Selected
			if len(args) == 1 {
				id = args[0]
			}
			if id == "" {
				return fmt.Errorf("no section selected: %w", workflow.ErrNoSection)
			}
			return w.engine.InvalidateSystemPrompt(id)
		})
	},
}

// attach loads paths as session files of section id.
func (w *workspace) attach(cmd *cobra.Command, id string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	if id == "" {
		return fmt.Errorf("no section selected: %w", workflow.ErrNoSection)
	}
	files, err := w.loadFiles(cmd, paths)
	if err != nil {
		return err
	}
	return w.engine.SetSessionFiles(id, files)
}

func init() {
	sectionShowCmd.Flags().Bool("history", false, "print the Writer conversation instead of the content")
	sectionGenerateCmd.Flags().StringSlice("ref", nil, "section ids to send as reference context")
	sectionGenerateCmd.Flags().StringSlice("file", nil, "files attached for this command")
	sectionDraftCmd.Flags().StringSlice("file", nil, "files attached for this command")
	sectionDraftAllCmd.Flags().Int("concurrency", 0, "sections drafted at once (default from draft_concurrency)")
	sectionRefsCmd.Flags().Bool("remove", false, "remove the references instead of adding them")
	sectionRefsCmd.Flags().String("section", "", "section to change (default the selection)")

	sectionCmd.AddCommand(sectionSelectCmd)
	sectionCmd.AddCommand(sectionDeselectCmd)
	sectionCmd.AddCommand(sectionShowCmd)
	sectionCmd.AddCommand(sectionGenerateCmd)
	sectionCmd.AddCommand(sectionDraftCmd)
	sectionCmd.AddCommand(sectionDraftAllCmd)
	sectionCmd.AddCommand(sectionCommitCmd)
	sectionCmd.AddCommand(sectionRefsCmd)
	sectionCmd.AddCommand(sectionResetPromptCmd)

	rootCmd.AddCommand(sectionCmd)
}
