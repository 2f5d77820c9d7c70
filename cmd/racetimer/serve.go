package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/GamesDoneQuick/agdq17-layouts/internal/config"
)

func newServeCmd() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the race clock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			setupLogging(cfg.Log, os.Stderr)

			a, err := newApp(cfg, defaultDeps(cfg))
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if interactive {
				con := newConsole(a, os.Stdout)
				go func() {
					if err := con.run(ctx, cancel); err != nil {
						log.Error().Err(err).Msg("console failed")
					}
				}()
			}

			log.Info().
				Str("version", Version).
				Bool("serial", cfg.Serial.Enabled).
				Bool("footpedal", cfg.FootPedal.Enabled).
				Bool("nats", cfg.NATS.Enabled).
				Msg("racetimer starting")
			return a.run(ctx)
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Start the operator console")
	return cmd
}
