package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"post-archivist/worker"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Archive yesterday's posts every day on a schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}
		be := openBackend(cfg)
		defer be.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Signal handling for systemd
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			s := <-sigc
			log.Printf("received signal: %s, shutting down", s)
			cancel()
		}()

		a, err := buildArchiver(ctx, cfg, be)
		if err != nil {
			return err
		}
		daily := &worker.DailyArchiver{
			Archiver: a,
			Ledger:   be.Ledger,
			Spec:     cfg.Schedule.Cron,
		}
		slog.Info("serve: starting daily archiver", "cron", cfg.Schedule.Cron, "backend", cfg.Cache.Backend, "output", cfg.Output.Dir)
		return worker.NewManager(daily).Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
