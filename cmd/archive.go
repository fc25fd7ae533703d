package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"post-archivist/internal/timerange"
	"post-archivist/worker"

	"github.com/spf13/cobra"
)

var (
	archiveEnd     string
	archiveRefresh bool
)

var archiveCmd = &cobra.Command{
	Use:   "archive [YYYY-MM-DD]",
	Short: "Archive posts for a date range into daily markdown documents",
	Long:  "Archives posts from the start date (default: yesterday, UTC+9) up to --end (exclusive, default: start + 1 day).",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}
		var start string
		if len(args) == 1 {
			start = args[0]
		}
		r, err := timerange.Parse(start, archiveEnd, time.Now())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		be := openBackend(cfg)
		defer be.Close()
		a, err := buildArchiver(ctx, cfg, be)
		if err != nil {
			return err
		}
		res, err := a.Run(ctx, r, archiveRefresh)
		if errors.Is(err, worker.ErrNoPosts) {
			fmt.Fprintf(cmd.OutOrStdout(), "no posts in %s\n", r)
			return nil
		}
		if err != nil {
			return err
		}
		for _, p := range res.Documents {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	archiveCmd.Flags().StringVar(&archiveEnd, "end", "", "end date YYYY-MM-DD, exclusive (default: start + 1 day)")
	archiveCmd.Flags().BoolVar(&archiveRefresh, "refresh", false, "ignore the cached snapshot and fetch again")
	rootCmd.AddCommand(archiveCmd)
}
