package main

import (
	"github.com/spf13/cobra"
)

func serveCMD() *cobra.Command {
	var port int
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.ServerPort = port
			}

			ctx, stop := signalContext()
			defer stop()
			return run(ctx, cfg)
		},
	}
	serve.Flags().IntVar(&port, "port", 8081, "listen port (overrides SERVER_PORT)")

	return serve
}
