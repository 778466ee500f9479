// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/docflow/internal/store"
	"github.com/pdiddy/docflow/internal/workflow"
	"github.com/pdiddy/docflow/pkg/types"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Create, list, and select projects",
	Long: `A project holds one or more document flows plus the settings they share:
the coordinator prompt prepended to every agent and the global knowledge
files every agent can read.`,
}

var projectNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a project and make it active",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			p := types.Project{
				ID:    uuid.NewString(),
				Name:  strings.Join(args, " "),
				Flows: []types.Flow{},
			}
			if err := saveState(ctx, st, workflow.NewState(p, "")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created project %s (%s)\n", p.Name, p.ID)
			return nil
		})
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			projects, err := st.ListProjects(ctx)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No projects.")
				return nil
			}
			active, err := st.Session(ctx, store.KeyProject)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tNAME\tFLOWS\tUPDATED")
			for _, p := range projects {
				mark := ""
				if p.ID == active {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", mark, p.ID, p.Name, p.Flows, p.UpdatedAt)
			}
			return tw.Flush()
		})
	},
}

var projectUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Make a stored project active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			p, err := st.LoadProject(ctx, args[0])
			if err != nil {
				return err
			}
			if err := saveState(ctx, st, workflow.NewState(p, "")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "using project %s\n", p.Name)
			return nil
		})
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project and all its flows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			if err := st.DeleteProject(ctx, args[0]); err != nil {
				return err
			}
			active, err := st.Session(ctx, store.KeyProject)
			if err != nil {
				return err
			}
			if active == args[0] {
				for _, key := range []string{store.KeyProject, store.KeyFlow, store.KeySelected} {
					if err := st.SetSession(ctx, key, ""); err != nil {
						return err
					}
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted project %s\n", args[0])
			return nil
		})
	},
}

var projectRenameCmd = &cobra.Command{
	Use:   "rename <name>",
	Short: "Rename the active project",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, false, func(_ context.Context, w *workspace) error {
			return w.engine.Apply(workflow.RenameProject{Name: strings.Join(args, " ")})
		})
	},
}

var projectCoordinatorCmd = &cobra.Command{
	Use:   "coordinator [prompt]",
	Short: "Show or set the coordinator prompt",
	Long: `Coordinator sets the master directive prepended to every agent's system
instruction. With no argument and no --file it prints the current prompt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if len(args) == 0 && file == "" {
			return view(cmd, func(_ context.Context, w *workspace) error {
				fmt.Fprintln(cmd.OutOrStdout(), w.engine.Snapshot().Project.CoordinatorPrompt)
				return nil
			})
		}
		prompt := strings.Join(args, " ")
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			prompt = string(data)
		}
		return run(cmd, false, func(_ context.Context, w *workspace) error {
			return w.engine.SetCoordinatorPrompt(prompt)
		})
	},
}

var projectKnowledgeCmd = &cobra.Command{
	Use:   "knowledge [files...]",
	Short: "Replace the global knowledge files",
	Long: `Knowledge converts each file to text and replaces the project's global
knowledge with the result. Text and Markdown pass through, HTML is converted
to Markdown, and PDF or Office files go through the markitdown container when
convert.markitdown is enabled. With no files it lists the current set; with
--clear it removes them all.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		clearAll, _ := cmd.Flags().GetBool("clear")
		if len(args) == 0 && !clearAll {
			return view(cmd, func(_ context.Context, w *workspace) error {
				for _, f := range w.engine.Snapshot().Project.KnowledgeFiles {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d bytes\n", f.Name, len(f.Text))
				}
				return nil
			})
		}
		return run(cmd, false, func(_ context.Context, w *workspace) error {
			files, err := w.loadFiles(cmd, args)
			if err != nil {
				return err
			}
			return w.engine.SetGlobalKnowledgeFiles(files)
		})
	},
}

// withStore opens the store for commands that work on projects rather
// than on the active project.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(appConfig().Store)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st)
}

func init() {
	projectCoordinatorCmd.Flags().String("file", "", "read the prompt from a file")
	projectKnowledgeCmd.Flags().Bool("clear", false, "remove all knowledge files")

	projectCmd.AddCommand(projectNewCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectUseCmd)
	projectCmd.AddCommand(projectDeleteCmd)
	projectCmd.AddCommand(projectRenameCmd)
	projectCmd.AddCommand(projectCoordinatorCmd)
	projectCmd.AddCommand(projectKnowledgeCmd)

	rootCmd.AddCommand(projectCmd)
}
