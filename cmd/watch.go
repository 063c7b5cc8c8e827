package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/engram-os/engram-os/internal/collector"
)

func watchCmd() *cobra.Command {
	var inboxDir string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the inbox folder and ingest dropped files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if inboxDir == "" {
				inboxDir = cfg.Collector.InboxDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := collector.New(inboxDir, cfg.Collector.APIURL, cfg.HTTP.AuthToken)
			return c.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&inboxDir, "dir", "", "inbox directory to watch (default from config)")
	return cmd
}
