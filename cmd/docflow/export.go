// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the completed sections of the active flow as Markdown",
	Long: `Export writes every completed section, in outline order, as one Markdown
document. Sections still being written are left out. The output goes to
standard output unless --output names a file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		return view(cmd, func(_ context.Context, w *workspace) error {
			doc, err := w.engine.ExportCompletedDocument()
			if err != nil {
				return err
			}
			if output == "" {
				fmt.Fprint(cmd.OutOrStdout(), doc)
				return nil
			}
			if err := os.WriteFile(output, []byte(doc), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", output, len(doc))
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "write the document to a file")

	rootCmd.AddCommand(exportCmd)
}
