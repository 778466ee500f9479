// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docflow/internal/store"
)

var researchCmd = &cobra.Command{
	Use:   "research <query>",
	Short: "Find sources for the selected section",
	Long: `Research asks the configured source (research.source: model or arxiv) for
material on query and replaces the selected section's research results with
at most three of them. The results are sent to the Writer on later turns.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true, func(ctx context.Context, w *workspace) error {
			results, err := w.engine.SubmitResearch(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(out, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.URL, r.Summary)
			}
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over the saved sections of the active project",
	Long: `Search runs an SQLite FTS5 query over every saved section of the active
project, across all flows. Matches are shown between square brackets.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		jsonOutput, _ := cmd.Flags().GetBool("json")
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			projectID, err := st.Session(ctx, store.KeyProject)
			if err != nil {
				return err
			}
			if projectID == "" {
				return errNoProject
			}
			hits, err := st.SearchSections(ctx, projectID, strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			return formatSearchOutput(cmd, hits, jsonOutput)
		})
	},
}

func formatSearchOutput(cmd *cobra.Command, hits []store.SearchHit, jsonOutput bool) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}
	if len(hits) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FLOW\tSECTION\tSNIPPET")
	for _, h := range hits {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", h.FlowTitle, h.SectionID, strings.ReplaceAll(h.Snippet, "\n", " "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d results\n", len(hits))
	return nil
}

func init() {
	searchCmd.Flags().Int("limit", 0, "maximum results (0 = default)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(researchCmd)
	rootCmd.AddCommand(searchCmd)
}
