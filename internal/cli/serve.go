package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EndaleK/Synaptic-sub005/internal/server"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			if a.cfg.Server.Port < 1 || a.cfg.Server.Port > 65535 {
				return fmt.Errorf("invalid port %d", a.cfg.Server.Port)
			}

			srv, err := server.New(server.Options{
				Port:     a.cfg.Server.Port,
				Router:   a.factory,
				Study:    a.study,
				Gatherer: a.registry,
				Logger:   a.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			for _, t := range a.factory.ConfiguredProviders() {
				a.logger.Info("provider configured", "provider", string(t))
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}
