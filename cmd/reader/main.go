package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aryan0dhankhar/doorgate/internal/controller"
	"github.com/aryan0dhankhar/doorgate/internal/controller/console"
	"github.com/aryan0dhankhar/doorgate/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/doorgate/pkg/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		iface      string
		width      int
	)
	cmd := &cobra.Command{
		Use:          "doorgate-reader",
		Short:        "Run a door reader against the doorgate server",
		Long:         "Reads tag UIDs from stdin (decimal or colon separated hex bytes), asks the server for a decision and renders the result.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadReader(configPath)
			if err != nil {
				return err
			}

			// status frames go to stdout, logs to stderr
			log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logger.ParseLevel(cfg.LogLevel)}))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ctrl := controller.New(controller.Config{
				DoorID:              cfg.DoorID,
				PollInterval:        cfg.PollInterval,
				Dwell:               cfg.Dwell,
				IdleAfter:           cfg.IdleAfter,
				IdleTick:            cfg.IdleTick,
				DisplayInitAttempts: cfg.DisplayInitAttempts,
				EscalateAfter:       cfg.EscalateAfter,
				RetryWait:           cfg.RetryWait,
				EscalatedWait:       cfg.EscalatedWait,
				LinkRetryWait:       cfg.LinkRetryWait,
			}, controller.Hardware{
				Reader:    console.NewLineReader(cmd.InOrStdin()),
				Display:   console.NewTerminalDisplay(cmd.OutOrStdout(), width),
				Indicator: console.NewLogIndicator(log),
				Link:      console.NewHostLink(iface),
			}, controller.NewDecisionClient(cfg.ServerURL, cfg.RequestTimeout), log)

			log.Info("reader starting", slog.Int64("door_id", cfg.DoorID), slog.String("server_url", cfg.ServerURL))
			return ctrl.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "reader YAML config file")
	cmd.Flags().StringVar(&iface, "interface", "", "network interface to report (default: first active)")
	cmd.Flags().IntVar(&width, "width", 24, "display width in columns")
	return cmd
}
