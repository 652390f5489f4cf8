package main

import (
	"github.com/spf13/cobra"

	"reelsmith/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevelFlag string
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: logLevelFlag})
		},
	}
	cmd.Flags().StringVar(&logLevelFlag, "log-level", "", "Override configured log level")
	return cmd
}
