package cmd

import (
	"fmt"

	"post-archivist/internal/markdown"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <markdown_path>",
	Short: "Parse a day document and print its date, type and threads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := markdown.ParseFile(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "date: %s\n", doc.String("date"))
		fmt.Fprintf(out, "type: %s\n", doc.String("type"))
		headings := doc.LinkedHeadings()
		fmt.Fprintf(out, "threads: %d\n", len(headings))
		for _, h := range headings {
			fmt.Fprintf(out, "  %s  %s\n", h.Text, h.URL)
		}
		fmt.Fprintf(out, "body bytes: %d\n", len(doc.Body))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
