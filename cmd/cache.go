package cmd

import (
	"context"
	"fmt"
	"time"

	"post-archivist/internal/timerange"

	"github.com/spf13/cobra"
)

var cacheEnd string

// cacheCmd groups snapshot inspection subcommands.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect cached snapshots",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show [YYYY-MM-DD]",
	Short: "Report the cached snapshot and archive record for a range",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		var start string
		if len(args) == 1 {
			start = args[0]
		}
		r, err := timerange.Parse(start, cacheEnd, time.Now())
		if err != nil {
			return err
		}
		be := openBackend(cfg)
		defer be.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "range: %s (key %s)\n", r, r.Key())
		if c, ok := be.Snapshots.Lookup(ctx, r); ok {
			fmt.Fprintf(out, "snapshot: %d posts, %d included, %d requests\n", len(c.Posts), len(c.Includes.Posts), c.RequestCount)
		} else {
			fmt.Fprintln(out, "snapshot: none")
		}
		rec, ok, err := be.Ledger.Get(ctx, r.Key())
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "archived: no")
			return nil
		}
		fmt.Fprintf(out, "archived: %s, %d posts, %d documents\n", rec.At.In(timerange.Local).Format(time.RFC3339), rec.Posts, len(rec.Documents))
		for _, d := range rec.Documents {
			fmt.Fprintf(out, "  %s\n", d)
		}
		return nil
	},
}

func init() {
	cacheShowCmd.Flags().StringVar(&cacheEnd, "end", "", "end date YYYY-MM-DD, exclusive (default: start + 1 day)")
	cacheCmd.AddCommand(cacheShowCmd)
	rootCmd.AddCommand(cacheCmd)
}
