package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cometbft/cometbft/abci/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sweepchain/internal/app"
	"sweepchain/internal/config"
	"sweepchain/internal/gateway"
	"sweepchain/internal/state"
)

func startCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the ABCI application and the REST/websocket gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			logger, err := cfg.NewLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			store, err := state.OpenStore(cfg.Home, cfg.DB.Backend, logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			a, err := app.New(store, app.Options{Logger: logger})
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}

			srv, err := server.NewServer(cfg.ABCI.Addr, cfg.ABCI.Transport, a)
			if err != nil {
				return fmt.Errorf("create abci server: %w", err)
			}
			if err := srv.Start(); err != nil {
				return fmt.Errorf("abci server start: %w", err)
			}
			defer func() { _ = srv.Stop() }()
			logger.Info("abci server listening", "addr", cfg.ABCI.Addr, "transport", cfg.ABCI.Transport)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var errCh chan error
			if cfg.REST.Addr != "" {
				errCh = make(chan error, 1)
				gw := gateway.NewServer(cfg.REST.Addr, gateway.NewHandler(a, a.Events(), logger), logger)
				go func() { errCh <- gw.Run(ctx) }()
			}

			select {
			case <-ctx.Done():
				logger.Info("shutting down")
				if errCh != nil {
					return <-errCh
				}
				return nil
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("gateway: %w", err)
				}
				return nil
			}
		},
	}

	f := cmd.Flags()
	d := config.DefaultConfig()
	f.String(config.KeyABCIAddr, d.ABCI.Addr, "ABCI listen address")
	f.String(config.KeyABCITransport, d.ABCI.Transport, "ABCI transport (socket|grpc)")
	f.String(config.KeyRESTAddr, d.REST.Addr, "REST/websocket gateway listen address (empty disables)")
	f.String(config.KeyDBBackend, d.DB.Backend, "state database backend (goleveldb|memdb)")
	bindFlags(v, f, config.KeyABCIAddr, config.KeyABCITransport, config.KeyRESTAddr, config.KeyDBBackend)
	return cmd
}
